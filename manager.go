package formstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// DefaultCacheTTL applies to record, meta and query cache entries unless the
// registry overrides it.
const DefaultCacheTTL = 1 * time.Hour

// Actions passed to the host capability check before a mutation runs.
const (
	ActionCreate = "create"
	ActionUpdate = "update"
	ActionDelete = "delete"
)

// Manager is the per-kind service: CRUD, meta store, query compilation,
// caching and relationship traversal for one entity type. Managers are built
// by a Registry and share its row store and cache.
//
// Relationship maps are wired during registry setup and read-only afterwards;
// all other state lives in the store and cache, so a manager is safe for
// concurrent use once setup is done.
type Manager struct {
	schema    *Schema
	store     RowStore
	cache     CacheClient
	ttl       time.Duration
	authorize CapabilityFunc

	parents    map[Kind]*Manager
	children   map[Kind]*Manager
	childOrder []Kind
	dupSkip    map[Kind]bool
}

// Schema returns the schema the manager was registered with.
func (m *Manager) Schema() *Schema { return m.schema }

// Kind returns the entity kind the manager serves.
func (m *Manager) Kind() Kind { return m.schema.Kind }

// Get fetches one record by primary key, cache first. A cache miss or cache
// error falls through to the row store; a fresh read is written back.
func (m *Manager) Get(ctx context.Context, id int64) (*Record, error) {
	if id <= 0 {
		return nil, ErrNotFound
	}
	if m.cache != nil {
		key := recordKey(id)
		raw, err := m.cache.Get(ctx, m.schema.CacheGroup, key)
		if err == nil {
			var fields map[string]any
			if jsonErr := json.Unmarshal([]byte(raw), &fields); jsonErr == nil {
				return m.hydrate(id, Row(fields)), nil
			}
			// Unreadable payload: drop it and reload from the store.
			_ = m.cache.Delete(ctx, m.schema.CacheGroup, key)
		} else if !errors.Is(err, ErrNotFound) {
			logger.Warn().Err(err).Str("group", m.schema.CacheGroup).Str("key", key).
				Msg("cache read failed, falling back to row store")
		}
	}
	rows, _, err := m.store.Select(ctx, m.schema.Table, Criteria{
		Where: []Condition{{Column: m.schema.Primary, Values: []any{id}}},
		Limit: 1,
	})
	if err != nil {
		return nil, fmt.Errorf("formstore: fetching %s %d: %w", m.schema.Kind, id, err)
	}
	if len(rows) == 0 {
		return nil, ErrNotFound
	}
	rec := m.hydrate(id, rows[0])
	m.cacheRecord(ctx, rec)
	return rec, nil
}

// Create builds a transient record: schema defaults overlaid with the given
// fields. Nothing is persisted until Save.
func (m *Manager) Create(fields map[string]any) (*Record, error) {
	rec := &Record{mgr: m, fields: m.schema.defaults()}
	for column, value := range fields {
		if err := rec.Set(column, value); err != nil {
			return nil, err
		}
	}
	return rec, nil
}

// Add creates and persists a record in one step, returning the new id.
func (m *Manager) Add(ctx context.Context, fields map[string]any) (int64, error) {
	rec, err := m.Create(fields)
	if err != nil {
		return 0, err
	}
	if err := m.Save(ctx, rec); err != nil {
		return 0, err
	}
	return rec.id, nil
}

// Save inserts when the record is transient and updates otherwise. On success
// the record cache is refreshed and the group generation bumped.
func (m *Manager) Save(ctx context.Context, rec *Record) error {
	if rec == nil || rec.mgr != m {
		return fmt.Errorf("formstore: record does not belong to manager %q", m.schema.Kind)
	}
	if rec.id == 0 {
		if !m.allowed(ActionCreate, 0) {
			return ErrNotAllowed
		}
		id, err := m.store.Insert(ctx, m.schema.Table, rec.Fields())
		if err != nil {
			return fmt.Errorf("%w: %s: %v", ErrInsertFailed, m.schema.Kind, err)
		}
		rec.id = id
	} else {
		if !m.allowed(ActionUpdate, rec.id) {
			return ErrNotAllowed
		}
		err := m.store.Update(ctx, m.schema.Table, m.schema.Primary, rec.id, rec.Fields())
		if errors.Is(err, ErrNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("%w: %s %d: %v", ErrUpdateFailed, m.schema.Kind, rec.id, err)
		}
	}
	m.cacheRecord(ctx, rec)
	m.bumpGeneration(ctx)
	return nil
}

// Update loads a record, applies the fields and persists it.
func (m *Manager) Update(ctx context.Context, id int64, fields map[string]any) (*Record, error) {
	rec, err := m.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	for column, value := range fields {
		if err := rec.Set(column, value); err != nil {
			return nil, err
		}
	}
	if err := m.Save(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// Delete removes a record and everything hanging off it: child records of
// every linked kind first (recursively), then the meta rows, then the row
// itself, finishing with cache eviction and a generation bump. The root row
// is the last thing to go, so a failure partway leaves the tree reachable.
func (m *Manager) Delete(ctx context.Context, id int64) error {
	if !m.allowed(ActionDelete, id) {
		return ErrNotAllowed
	}
	if _, err := m.Get(ctx, id); err != nil {
		return err
	}
	for _, kind := range m.childOrder {
		child := m.children[kind]
		fk, ok := child.schema.ParentColumns[m.schema.Kind]
		if !ok {
			continue
		}
		ids, err := child.idsWhere(ctx, fk, id)
		if err != nil {
			return err
		}
		for _, childID := range ids {
			if err := child.Delete(ctx, childID); err != nil && !errors.Is(err, ErrNotFound) {
				return err
			}
		}
	}
	if err := m.deleteAllMeta(ctx, id); err != nil {
		return err
	}
	err := m.store.Delete(ctx, m.schema.Table, m.schema.Primary, id)
	if errors.Is(err, ErrNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("%w: %s %d: %v", ErrDeleteFailed, m.schema.Kind, id, err)
	}
	if m.cache != nil {
		_ = m.cache.Delete(ctx, m.schema.CacheGroup, recordKey(id))
		_ = m.cache.Delete(ctx, m.schema.CacheGroup, metaKey(id))
	}
	m.bumpGeneration(ctx)
	return nil
}

// Query runs a declarative query and returns the matching collection in id
// mode. See QueryVars for the accepted variables.
func (m *Manager) Query(ctx context.Context, vars QueryVars) (*Collection, error) {
	return newQuery(m).Run(ctx, vars)
}

// ParentManager returns the linked parent manager for the kind, if any.
func (m *Manager) ParentManager(kind Kind) (*Manager, bool) {
	p, ok := m.parents[kind]
	return p, ok
}

// ChildManager returns the linked child manager for the kind, if any.
func (m *Manager) ChildManager(kind Kind) (*Manager, bool) {
	c, ok := m.children[kind]
	return c, ok
}

// ChildKinds returns the linked child kinds in registration order.
func (m *Manager) ChildKinds() []Kind {
	return append([]Kind(nil), m.childOrder...)
}

// isAncestorOf walks the child links from m looking for other.
func (m *Manager) isAncestorOf(other *Manager) bool {
	for _, child := range m.children {
		if child == other || child.isAncestorOf(other) {
			return true
		}
	}
	return false
}

func (m *Manager) allowed(action string, id int64) bool {
	if m.authorize == nil {
		return true
	}
	return m.authorize(action, m.schema.Kind, id)
}

// hydrate builds a record from a row or decoded cache payload, normalizing
// each value to its column type. Unknown row columns are dropped.
func (m *Manager) hydrate(id int64, row Row) *Record {
	fields := m.schema.defaults()
	for _, col := range m.schema.Columns {
		raw, ok := row[col.Name]
		if !ok {
			continue
		}
		if v, err := col.normalize(raw); err == nil {
			fields[col.Name] = v
		}
	}
	return &Record{mgr: m, id: id, fields: fields}
}

func (m *Manager) cacheRecord(ctx context.Context, rec *Record) {
	if m.cache == nil || rec.id == 0 {
		return
	}
	raw, err := json.Marshal(rec.fields)
	if err != nil {
		return
	}
	if err := m.cache.Set(ctx, m.schema.CacheGroup, recordKey(rec.id), string(raw), m.ttl); err != nil {
		logger.Warn().Err(err).Str("group", m.schema.CacheGroup).Int64("id", rec.id).
			Msg("record cache write failed")
	}
}

// idsWhere selects the primary keys of rows matching one equality condition.
// Used by cascade deletion; queries go through the compiler instead.
func (m *Manager) idsWhere(ctx context.Context, column string, value any) ([]int64, error) {
	rows, _, err := m.store.Select(ctx, m.schema.Table, Criteria{
		Columns: []string{m.schema.Primary},
		Where:   []Condition{{Column: column, Values: []any{value}}},
		OrderBy: []Order{{Column: m.schema.Primary}},
	})
	if err != nil {
		return nil, fmt.Errorf("formstore: selecting %s ids by %s: %w", m.schema.Kind, column, err)
	}
	ids := make([]int64, 0, len(rows))
	for _, row := range rows {
		if id := toInt64(row[m.schema.Primary]); id > 0 {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// generation returns the group's current last_changed token, minting one on
// first use. Add is used for the mint so concurrent first readers agree on a
// single token. An unreachable cache yields "" and callers skip the query
// cache entirely.
func (m *Manager) generation(ctx context.Context) string {
	if m.cache == nil {
		return ""
	}
	token, err := m.cache.Get(ctx, m.schema.CacheGroup, lastChangedKey)
	if err == nil {
		return token
	}
	if !errors.Is(err, ErrNotFound) {
		return ""
	}
	fresh := newGenerationToken()
	if _, err := m.cache.Add(ctx, m.schema.CacheGroup, lastChangedKey, fresh); err != nil {
		return ""
	}
	if token, err := m.cache.Get(ctx, m.schema.CacheGroup, lastChangedKey); err == nil {
		return token
	}
	return fresh
}

// bumpGeneration refreshes last_changed after a successful mutation. Every
// query key minted from the old token is never looked up again; those entries
// expire through their TTL rather than being enumerated and deleted.
func (m *Manager) bumpGeneration(ctx context.Context) {
	if m.cache == nil {
		return
	}
	if err := m.cache.Set(ctx, m.schema.CacheGroup, lastChangedKey, newGenerationToken(), 0); err != nil {
		logger.Warn().Err(err).Str("group", m.schema.CacheGroup).Msg("generation bump failed")
	}
}
