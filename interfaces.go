package formstore

import (
	"context"
	"time"
)

// RowStore is the persistence contract managers run on. Implementations are
// table-agnostic: every call names its target table and receives structured
// fields or criteria, never SQL fragments.
type RowStore interface {
	// Insert writes a new row and returns its generated primary key.
	Insert(ctx context.Context, table string, fields []Field) (int64, error)
	// Update rewrites the given fields of the row whose pkColumn equals id.
	// Returns ErrNotFound when no row matched.
	Update(ctx context.Context, table, pkColumn string, id int64, fields []Field) error
	// Delete removes the row whose pkColumn equals id. Returns ErrNotFound
	// when no row matched.
	Delete(ctx context.Context, table, pkColumn string, id int64) error
	// Select returns the matching rows plus the total match count with
	// Limit/Offset ignored.
	Select(ctx context.Context, table string, c Criteria) ([]Row, int64, error)
}

// Field is one column value bound for an insert or update.
type Field struct {
	Column string
	Type   ColumnType
	Value  any
}

// Row is a single result row keyed by column name.
type Row map[string]any

// Condition matches a column against one value (equality) or several
// (membership). Column may be table-qualified, e.g. "submissions.form_id".
type Condition struct {
	Column string
	Values []any
}

// Join declares an extra table pulled into a select. On is a raw join
// predicate; only schema-declared joins ever reach a store.
type Join struct {
	Table string
	On    string
}

// Order is one ORDER BY term.
type Order struct {
	Column     string
	Descending bool
}

// Criteria is the compiled form of a query handed to a RowStore. Only the
// query compiler and managers construct it.
type Criteria struct {
	// Columns to select; empty means all.
	Columns []string
	Where   []Condition
	Joins   []Join
	OrderBy []Order
	// OrderByIDs switches ordering to this exact sequence of IDColumn values.
	OrderByIDs []int64
	IDColumn   string
	// Limit caps the result; values <= 0 mean unlimited.
	Limit  int
	Offset int
}

// CacheClient is the group-scoped key/value cache managers write through.
// Get reports a miss as ErrNotFound. A nil or failing cache never breaks a
// manager: reads degrade to the row store, writes are dropped.
type CacheClient interface {
	Get(ctx context.Context, group, key string) (string, error)
	Set(ctx context.Context, group, key, value string, ttl time.Duration) error
	// Add stores the value only if the key is absent and reports whether it won.
	Add(ctx context.Context, group, key, value string) (bool, error)
	Delete(ctx context.Context, group, key string) error
}

// CacheStats is a snapshot of driver operation counters.
type CacheStats struct {
	Counters map[string]int
}
