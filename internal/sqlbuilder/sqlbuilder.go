// Package sqlbuilder compiles formstore criteria into SQL with ?-style
// placeholders. Identifiers are double-quoted; values never appear inline
// except the positional ranks of an explicit id ordering.
package sqlbuilder

import (
	"fmt"
	"strings"

	"formstore"
)

// Quote quotes an identifier, handling table-qualified names.
func Quote(identifier string) string {
	parts := strings.Split(identifier, ".")
	for i, p := range parts {
		parts[i] = `"` + p + `"`
	}
	return strings.Join(parts, ".")
}

// BuildInsert renders an INSERT for the given fields.
func BuildInsert(table string, fields []formstore.Field) (string, []any) {
	columns := make([]string, len(fields))
	placeholders := make([]string, len(fields))
	args := make([]any, len(fields))
	for i, f := range fields {
		columns[i] = Quote(f.Column)
		placeholders[i] = "?"
		args[i] = f.Value
	}
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		Quote(table), strings.Join(columns, ", "), strings.Join(placeholders, ", "))
	return query, args
}

// BuildUpdate renders an UPDATE of the row whose pkColumn equals id.
func BuildUpdate(table, pkColumn string, id int64, fields []formstore.Field) (string, []any) {
	assignments := make([]string, len(fields))
	args := make([]any, 0, len(fields)+1)
	for i, f := range fields {
		assignments[i] = Quote(f.Column) + " = ?"
		args = append(args, f.Value)
	}
	args = append(args, id)
	query := fmt.Sprintf("UPDATE %s SET %s WHERE %s = ?",
		Quote(table), strings.Join(assignments, ", "), Quote(pkColumn))
	return query, args
}

// BuildDelete renders a DELETE of the row whose pkColumn equals id.
func BuildDelete(table, pkColumn string, id int64) (string, []any) {
	query := fmt.Sprintf("DELETE FROM %s WHERE %s = ?", Quote(table), Quote(pkColumn))
	return query, []any{id}
}

// BuildSelect renders a full SELECT from criteria. Argument order is join-free:
// where args, then ordering args, then limit/offset.
func BuildSelect(table string, c formstore.Criteria) (string, []any) {
	var b strings.Builder
	var args []any

	b.WriteString("SELECT ")
	if len(c.Columns) == 0 {
		b.WriteString("*")
	} else {
		quoted := make([]string, len(c.Columns))
		for i, col := range c.Columns {
			quoted[i] = Quote(col)
		}
		b.WriteString(strings.Join(quoted, ", "))
	}
	b.WriteString(" FROM ")
	b.WriteString(Quote(table))

	writeJoins(&b, c.Joins)

	where, whereArgs := BuildWhere(c.Where)
	if where != "" {
		b.WriteString(" WHERE ")
		b.WriteString(where)
		args = append(args, whereArgs...)
	}

	order, orderArgs := buildOrderBy(c)
	if order != "" {
		b.WriteString(" ORDER BY ")
		b.WriteString(order)
		args = append(args, orderArgs...)
	}

	if c.Limit > 0 {
		b.WriteString(" LIMIT ?")
		args = append(args, c.Limit)
	}
	if c.Offset > 0 {
		if c.Limit <= 0 {
			// SQLite requires a LIMIT clause before OFFSET.
			b.WriteString(" LIMIT -1")
		}
		b.WriteString(" OFFSET ?")
		args = append(args, c.Offset)
	}
	return b.String(), args
}

// BuildCount renders the unpaginated match count for the same criteria.
func BuildCount(table string, c formstore.Criteria) (string, []any) {
	var b strings.Builder
	b.WriteString("SELECT COUNT(*) FROM ")
	b.WriteString(Quote(table))
	writeJoins(&b, c.Joins)
	where, args := BuildWhere(c.Where)
	if where != "" {
		b.WriteString(" WHERE ")
		b.WriteString(where)
	}
	return b.String(), args
}

// BuildWhere renders conditions joined by AND. One value is an equality, more
// become an IN list. An empty value list can match no row and is rendered as
// IN (NULL).
func BuildWhere(conds []formstore.Condition) (string, []any) {
	if len(conds) == 0 {
		return "", nil
	}
	clauses := make([]string, 0, len(conds))
	var args []any
	for _, cond := range conds {
		switch len(cond.Values) {
		case 0:
			clauses = append(clauses, Quote(cond.Column)+" IN (NULL)")
		case 1:
			clauses = append(clauses, Quote(cond.Column)+" = ?")
			args = append(args, cond.Values[0])
		default:
			placeholders := strings.Repeat("?, ", len(cond.Values))
			placeholders = placeholders[:len(placeholders)-2]
			clauses = append(clauses, fmt.Sprintf("%s IN (%s)", Quote(cond.Column), placeholders))
			args = append(args, cond.Values...)
		}
	}
	return strings.Join(clauses, " AND "), args
}

func writeJoins(b *strings.Builder, joins []formstore.Join) {
	for _, j := range joins {
		b.WriteString(" JOIN ")
		b.WriteString(Quote(j.Table))
		b.WriteString(" ON ")
		b.WriteString(j.On)
	}
}

// buildOrderBy renders either plain sort terms or, when an explicit id
// sequence is given, a CASE expression assigning each id its rank. Rows
// outside the sequence sort last.
func buildOrderBy(c formstore.Criteria) (string, []any) {
	if len(c.OrderByIDs) > 0 && c.IDColumn != "" {
		var b strings.Builder
		args := make([]any, 0, len(c.OrderByIDs))
		b.WriteString("CASE ")
		b.WriteString(Quote(c.IDColumn))
		for i, id := range c.OrderByIDs {
			fmt.Fprintf(&b, " WHEN ? THEN %d", i)
			args = append(args, id)
		}
		fmt.Fprintf(&b, " ELSE %d END", len(c.OrderByIDs))
		return b.String(), args
	}
	if len(c.OrderBy) == 0 {
		return "", nil
	}
	terms := make([]string, len(c.OrderBy))
	for i, o := range c.OrderBy {
		direction := " ASC"
		if o.Descending {
			direction = " DESC"
		}
		terms[i] = Quote(o.Column) + direction
	}
	return strings.Join(terms, ", "), nil
}
