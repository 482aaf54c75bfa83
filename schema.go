package formstore

import (
	"fmt"
	"strconv"
)

// Kind identifies an entity type by its stable slug, e.g. "form" or "element".
type Kind string

// ColumnType enumerates the scalar property types a schema can declare.
type ColumnType int

const (
	TypeInt ColumnType = iota
	TypeString
	// TypeEnum is string-backed and defaults to the first declared Enum value.
	TypeEnum
)

// Column declares one scalar property backed by a table column. The primary
// key is never listed here; Schema.Primary names it separately.
type Column struct {
	Name    string
	Type    ColumnType
	Default any
	Enum    []string
}

// JoinFilter declares a filter name that lives on a related table. Column is
// the qualified column the filter compares against.
type JoinFilter struct {
	Join   Join
	Column string
}

// Schema describes one entity type: its tables, declared columns, behavioral
// traits and relationships to other kinds. Schemas are plain data handed to
// Registry.Register; managers never reflect over entity structs.
type Schema struct {
	Kind       Kind
	Table      string
	MetaTable  string
	CacheGroup string
	Primary    string
	Columns    []Column

	// Optional trait columns.
	SortColumn   string
	TitleColumn  string
	AuthorColumn string
	TypeColumn   string
	StatusColumn string

	// ParentColumns maps a parent kind to the column on this table holding
	// the parent's primary key.
	ParentColumns map[Kind]string
	// RefColumns maps columns whose values point at other entities of the
	// given kind. Duplication pass 2 rewrites them when the referenced entity
	// was cloned in the same batch.
	RefColumns map[string]Kind
	// Orderable whitelists extra sort columns. The primary and sort columns
	// are always accepted.
	Orderable []string
	// SingleMeta lists meta keys restricted to one value per owner.
	SingleMeta []string
	// FilterJoins declares filter names resolved through a joined table.
	FilterJoins map[string]JoinFilter
}

func (s *Schema) validate() error {
	if s.Kind == "" {
		return fmt.Errorf("formstore: schema is missing a kind")
	}
	if s.Table == "" || s.MetaTable == "" {
		return fmt.Errorf("formstore: schema %q is missing a table name", s.Kind)
	}
	if s.Primary == "" {
		return fmt.Errorf("formstore: schema %q is missing a primary key column", s.Kind)
	}
	if s.CacheGroup == "" {
		return fmt.Errorf("formstore: schema %q is missing a cache group", s.Kind)
	}
	seen := make(map[string]bool, len(s.Columns))
	for _, c := range s.Columns {
		if c.Name == "" || c.Name == s.Primary {
			return fmt.Errorf("formstore: schema %q declares an invalid column %q", s.Kind, c.Name)
		}
		if seen[c.Name] {
			return fmt.Errorf("formstore: schema %q declares column %q twice", s.Kind, c.Name)
		}
		seen[c.Name] = true
		if c.Type == TypeEnum && len(c.Enum) == 0 {
			return fmt.Errorf("formstore: schema %q column %q is an enum without values", s.Kind, c.Name)
		}
	}
	for kind, col := range s.ParentColumns {
		if !seen[col] {
			return fmt.Errorf("formstore: schema %q parent link for %q names undeclared column %q", s.Kind, kind, col)
		}
	}
	for col := range s.RefColumns {
		if !seen[col] {
			return fmt.Errorf("formstore: schema %q reference fixup names undeclared column %q", s.Kind, col)
		}
	}
	for _, col := range []string{s.SortColumn, s.TitleColumn, s.AuthorColumn, s.TypeColumn, s.StatusColumn} {
		if col != "" && !seen[col] {
			return fmt.Errorf("formstore: schema %q trait names undeclared column %q", s.Kind, col)
		}
	}
	for _, col := range s.Orderable {
		if col != s.Primary && !seen[col] {
			return fmt.Errorf("formstore: schema %q whitelists undeclared sort column %q", s.Kind, col)
		}
	}
	return nil
}

func (s *Schema) column(name string) (Column, bool) {
	for _, c := range s.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

func (s *Schema) hasColumn(name string) bool {
	_, ok := s.column(name)
	return ok
}

// orderable reports whether queries may sort by the column.
func (s *Schema) orderable(name string) bool {
	if name == s.Primary || (s.SortColumn != "" && name == s.SortColumn) {
		return true
	}
	for _, c := range s.Orderable {
		if c == name {
			return true
		}
	}
	return false
}

func (s *Schema) singleMeta(key string) bool {
	for _, k := range s.SingleMeta {
		if k == key {
			return true
		}
	}
	return false
}

// defaults builds a fresh field map with every declared column set to its
// default value, already normalized to the column type.
func (s *Schema) defaults() map[string]any {
	out := make(map[string]any, len(s.Columns))
	for _, c := range s.Columns {
		out[c.Name] = c.defaultValue()
	}
	return out
}

func (c Column) defaultValue() any {
	if c.Default != nil {
		if v, err := c.normalize(c.Default); err == nil {
			return v
		}
	}
	switch c.Type {
	case TypeInt:
		return int64(0)
	case TypeEnum:
		return c.Enum[0]
	default:
		return ""
	}
}

// normalize coerces a value to the column's canonical Go representation:
// int64 for integers, string for text and enums. Row stores and JSON decoding
// both produce looser types (float64, []byte) that funnel through here.
func (c Column) normalize(v any) (any, error) {
	switch c.Type {
	case TypeInt:
		switch x := v.(type) {
		case nil:
			return int64(0), nil
		case int64:
			return x, nil
		case int:
			return int64(x), nil
		case int32:
			return int64(x), nil
		case uint64:
			return int64(x), nil
		case float64:
			return int64(x), nil
		case []byte:
			return parseIntValue(c.Name, string(x))
		case string:
			return parseIntValue(c.Name, x)
		default:
			return nil, fmt.Errorf("formstore: column %q wants an integer, got %T", c.Name, v)
		}
	default:
		switch x := v.(type) {
		case nil:
			return "", nil
		case string:
			return x, nil
		case []byte:
			return string(x), nil
		case int64:
			return strconv.FormatInt(x, 10), nil
		case int:
			return strconv.Itoa(x), nil
		case float64:
			return strconv.FormatInt(int64(x), 10), nil
		default:
			return nil, fmt.Errorf("formstore: column %q wants a string, got %T", c.Name, v)
		}
	}
}

func parseIntValue(column, raw string) (any, error) {
	if raw == "" {
		return int64(0), nil
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("formstore: column %q wants an integer, got %q", column, raw)
	}
	return n, nil
}

// toInt64 loosely converts row-store and cache values to an id. Returns 0 for
// anything non-numeric.
func toInt64(v any) int64 {
	switch x := v.(type) {
	case int64:
		return x
	case int:
		return int64(x)
	case float64:
		return int64(x)
	case []byte:
		n, _ := strconv.ParseInt(string(x), 10, 64)
		return n
	case string:
		n, _ := strconv.ParseInt(x, 10, 64)
		return n
	default:
		return 0
	}
}
