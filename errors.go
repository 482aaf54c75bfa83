package formstore

import "errors"

// ErrNotFound is returned when a requested record (or cache key) does not exist.
var ErrNotFound = errors.New("formstore: record not found")

// Additional package-level errors
var (
	ErrInsertFailed = errors.New("formstore: row store rejected insert")
	ErrUpdateFailed = errors.New("formstore: row store rejected update")
	ErrDeleteFailed = errors.New("formstore: row store rejected delete")
	// ErrInvalidFilter indicates a query variable that cannot be compiled safely.
	ErrInvalidFilter = errors.New("formstore: query filter cannot be compiled")
	ErrUnknownColumn = errors.New("formstore: column not declared in schema")
	ErrUnknownKind   = errors.New("formstore: no manager registered for entity kind")
	// ErrNotPersisted is returned for operations that require a primary key,
	// such as meta access on a record that was never saved.
	ErrNotPersisted      = errors.New("formstore: record has not been persisted")
	ErrRelationshipCycle = errors.New("formstore: relationship would make a manager its own ancestor")
	ErrNotAllowed        = errors.New("formstore: operation not permitted for caller")
	// ErrDuplicationIncomplete wraps a clone failure mid-subtree. Clones inserted
	// before the failure are kept; the caller receives the partial translation table.
	ErrDuplicationIncomplete = errors.New("formstore: duplication aborted before completing the subtree")
)
