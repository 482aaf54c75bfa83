package formstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// Meta rows live in the schema's MetaTable with a fixed shape. Every key is
// multi-valued unless the schema lists it in SingleMeta.
const (
	metaPrimary     = "id"
	metaOwnerColumn = "owner_id"
	metaKeyColumn   = "meta_key"
	metaValueColumn = "meta_value"
)

// GetMeta returns all values stored under key for the owner, in insertion
// order. A missing key yields an empty slice.
func (m *Manager) GetMeta(ctx context.Context, ownerID int64, key string) ([]string, error) {
	all, err := m.allMeta(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	return all[key], nil
}

// HasMeta reports whether any value exists under key for the owner.
func (m *Manager) HasMeta(ctx context.Context, ownerID int64, key string) (bool, error) {
	values, err := m.GetMeta(ctx, ownerID, key)
	if err != nil {
		return false, err
	}
	return len(values) > 0, nil
}

// AddMeta appends a value under key. Keys the schema declares single-valued
// are replaced instead of appended.
func (m *Manager) AddMeta(ctx context.Context, ownerID int64, key, value string) error {
	if ownerID <= 0 {
		return ErrNotPersisted
	}
	if m.schema.singleMeta(key) {
		return m.UpdateMeta(ctx, ownerID, key, value)
	}
	return m.insertMetaRow(ctx, ownerID, key, value)
}

// UpdateMeta replaces every value under key with the single given value.
func (m *Manager) UpdateMeta(ctx context.Context, ownerID int64, key, value string) error {
	if ownerID <= 0 {
		return ErrNotPersisted
	}
	if err := m.removeMetaRows(ctx, ownerID, key); err != nil {
		return err
	}
	return m.insertMetaRow(ctx, ownerID, key, value)
}

// DeleteMeta removes every value under key. Deleting an absent key is a no-op.
func (m *Manager) DeleteMeta(ctx context.Context, ownerID int64, key string) error {
	if ownerID <= 0 {
		return ErrNotPersisted
	}
	if err := m.removeMetaRows(ctx, ownerID, key); err != nil {
		return err
	}
	m.invalidateMeta(ctx, ownerID)
	m.bumpGeneration(ctx)
	return nil
}

func (m *Manager) insertMetaRow(ctx context.Context, ownerID int64, key, value string) error {
	fields := []Field{
		{Column: metaOwnerColumn, Type: TypeInt, Value: ownerID},
		{Column: metaKeyColumn, Type: TypeString, Value: key},
		{Column: metaValueColumn, Type: TypeString, Value: value},
	}
	if _, err := m.store.Insert(ctx, m.schema.MetaTable, fields); err != nil {
		return fmt.Errorf("%w: %s meta %q: %v", ErrInsertFailed, m.schema.Kind, key, err)
	}
	m.invalidateMeta(ctx, ownerID)
	m.bumpGeneration(ctx)
	return nil
}

func (m *Manager) removeMetaRows(ctx context.Context, ownerID int64, key string) error {
	rowIDs, err := m.metaRowIDs(ctx, []Condition{
		{Column: metaOwnerColumn, Values: []any{ownerID}},
		{Column: metaKeyColumn, Values: []any{key}},
	})
	if err != nil {
		return err
	}
	return m.deleteMetaRowIDs(ctx, rowIDs)
}

// deleteAllMeta drops every meta row of the owner. Part of record deletion.
func (m *Manager) deleteAllMeta(ctx context.Context, ownerID int64) error {
	rowIDs, err := m.metaRowIDs(ctx, []Condition{
		{Column: metaOwnerColumn, Values: []any{ownerID}},
	})
	if err != nil {
		return err
	}
	if err := m.deleteMetaRowIDs(ctx, rowIDs); err != nil {
		return err
	}
	m.invalidateMeta(ctx, ownerID)
	return nil
}

func (m *Manager) metaRowIDs(ctx context.Context, where []Condition) ([]int64, error) {
	rows, _, err := m.store.Select(ctx, m.schema.MetaTable, Criteria{
		Columns: []string{metaPrimary},
		Where:   where,
		OrderBy: []Order{{Column: metaPrimary}},
	})
	if err != nil {
		return nil, fmt.Errorf("formstore: selecting %s meta rows: %w", m.schema.Kind, err)
	}
	ids := make([]int64, 0, len(rows))
	for _, row := range rows {
		if id := toInt64(row[metaPrimary]); id > 0 {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (m *Manager) deleteMetaRowIDs(ctx context.Context, rowIDs []int64) error {
	for _, rowID := range rowIDs {
		err := m.store.Delete(ctx, m.schema.MetaTable, metaPrimary, rowID)
		if err != nil && !errors.Is(err, ErrNotFound) {
			return fmt.Errorf("%w: %s meta row %d: %v", ErrDeleteFailed, m.schema.Kind, rowID, err)
		}
	}
	return nil
}

// allMeta loads the owner's complete meta map, cache first. The whole map is
// cached as one entry per owner so single-key reads after a warm load cost no
// store round trip.
func (m *Manager) allMeta(ctx context.Context, ownerID int64) (map[string][]string, error) {
	if ownerID <= 0 {
		return nil, ErrNotPersisted
	}
	if m.cache != nil {
		raw, err := m.cache.Get(ctx, m.schema.CacheGroup, metaKey(ownerID))
		if err == nil {
			var all map[string][]string
			if jsonErr := json.Unmarshal([]byte(raw), &all); jsonErr == nil {
				return all, nil
			}
			_ = m.cache.Delete(ctx, m.schema.CacheGroup, metaKey(ownerID))
		} else if !errors.Is(err, ErrNotFound) {
			logger.Warn().Err(err).Str("group", m.schema.CacheGroup).Int64("owner", ownerID).
				Msg("meta cache read failed, falling back to row store")
		}
	}
	rows, _, err := m.store.Select(ctx, m.schema.MetaTable, Criteria{
		Columns: []string{metaKeyColumn, metaValueColumn},
		Where:   []Condition{{Column: metaOwnerColumn, Values: []any{ownerID}}},
		OrderBy: []Order{{Column: metaPrimary}},
	})
	if err != nil {
		return nil, fmt.Errorf("formstore: loading %s meta for %d: %w", m.schema.Kind, ownerID, err)
	}
	all := make(map[string][]string, len(rows))
	for _, row := range rows {
		key, ok := stringValue(row[metaKeyColumn])
		if !ok || key == "" {
			continue
		}
		value, _ := stringValue(row[metaValueColumn])
		all[key] = append(all[key], value)
	}
	m.cacheMeta(ctx, ownerID, all)
	return all, nil
}

func (m *Manager) cacheMeta(ctx context.Context, ownerID int64, all map[string][]string) {
	if m.cache == nil {
		return
	}
	raw, err := json.Marshal(all)
	if err != nil {
		return
	}
	if err := m.cache.Set(ctx, m.schema.CacheGroup, metaKey(ownerID), string(raw), m.ttl); err != nil {
		logger.Warn().Err(err).Str("group", m.schema.CacheGroup).Int64("owner", ownerID).
			Msg("meta cache write failed")
	}
}

func (m *Manager) invalidateMeta(ctx context.Context, ownerID int64) {
	if m.cache == nil {
		return
	}
	_ = m.cache.Delete(ctx, m.schema.CacheGroup, metaKey(ownerID))
}

func stringValue(v any) (string, bool) {
	switch x := v.(type) {
	case string:
		return x, true
	case []byte:
		return string(x), true
	default:
		return "", false
	}
}
