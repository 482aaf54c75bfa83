package formstore

import (
	"context"
	"fmt"
	"strconv"
)

// Record is one hydrated entity instance. Declared columns are read and
// written through Get/Set; ad hoc attributes live behind the Meta accessors.
// The two tiers never blur: an undeclared column name is an error, not a
// silent meta lookup.
type Record struct {
	mgr    *Manager
	id     int64
	fields map[string]any
}

// Manager returns the manager this record belongs to.
func (r *Record) Manager() *Manager { return r.mgr }

// Kind returns the entity kind.
func (r *Record) Kind() Kind { return r.mgr.schema.Kind }

// ID returns the primary key, 0 while the record is transient.
func (r *Record) ID() int64 { return r.id }

// Persisted reports whether the record has been written to the row store.
func (r *Record) Persisted() bool { return r.id != 0 }

// Get returns a declared column value. Values are normalized per column type:
// int64 for integers, string otherwise.
func (r *Record) Get(column string) (any, error) {
	v, ok := r.fields[column]
	if !ok {
		return nil, fmt.Errorf("%w: %s.%s", ErrUnknownColumn, r.mgr.schema.Kind, column)
	}
	return v, nil
}

// Int returns an integer column, 0 when the column is unknown.
func (r *Record) Int(column string) int64 {
	v, err := r.Get(column)
	if err != nil {
		return 0
	}
	return toInt64(v)
}

// String returns a column rendered as string, "" when the column is unknown.
func (r *Record) String(column string) string {
	v, err := r.Get(column)
	if err != nil {
		return ""
	}
	switch x := v.(type) {
	case string:
		return x
	case int64:
		return strconv.FormatInt(x, 10)
	default:
		return fmt.Sprint(v)
	}
}

// Set assigns a declared column, coercing the value to the column type.
func (r *Record) Set(column string, value any) error {
	col, ok := r.mgr.schema.column(column)
	if !ok {
		return fmt.Errorf("%w: %s.%s", ErrUnknownColumn, r.mgr.schema.Kind, column)
	}
	v, err := col.normalize(value)
	if err != nil {
		return err
	}
	r.fields[column] = v
	return nil
}

// Fields returns every declared property in declaration order, ready for a
// row-store write. The primary key is not part of the representation.
func (r *Record) Fields() []Field {
	out := make([]Field, 0, len(r.mgr.schema.Columns))
	for _, col := range r.mgr.schema.Columns {
		out = append(out, Field{Column: col.Name, Type: col.Type, Value: r.fields[col.Name]})
	}
	return out
}

// Values returns a copy of the declared properties as a plain map.
func (r *Record) Values() map[string]any {
	out := make(map[string]any, len(r.fields))
	for k, v := range r.fields {
		out[k] = v
	}
	return out
}

// Meta returns every value stored under key for this record, in insertion
// order. Missing keys yield an empty slice, not an error.
func (r *Record) Meta(ctx context.Context, key string) ([]string, error) {
	if r.id == 0 {
		return nil, ErrNotPersisted
	}
	return r.mgr.GetMeta(ctx, r.id, key)
}

// MetaValue returns the first value under key and whether any exists.
func (r *Record) MetaValue(ctx context.Context, key string) (string, bool, error) {
	values, err := r.Meta(ctx, key)
	if err != nil || len(values) == 0 {
		return "", false, err
	}
	return values[0], true, nil
}

// SetMeta replaces all values under key with one value. A nil value deletes
// the key entirely.
func (r *Record) SetMeta(ctx context.Context, key string, value any) error {
	if r.id == 0 {
		return ErrNotPersisted
	}
	if value == nil {
		return r.mgr.DeleteMeta(ctx, r.id, key)
	}
	return r.mgr.UpdateMeta(ctx, r.id, key, metaString(value))
}

// HasMeta reports whether any value is stored under key.
func (r *Record) HasMeta(ctx context.Context, key string) (bool, error) {
	if r.id == 0 {
		return false, ErrNotPersisted
	}
	return r.mgr.HasMeta(ctx, r.id, key)
}

func metaString(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case int64:
		return strconv.FormatInt(x, 10)
	case int:
		return strconv.Itoa(x)
	case bool:
		return strconv.FormatBool(x)
	default:
		return fmt.Sprint(v)
	}
}
