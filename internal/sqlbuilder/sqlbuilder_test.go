package sqlbuilder

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"formstore"
)

func TestQuote(t *testing.T) {
	assert.Equal(t, `"forms"`, Quote("forms"))
	assert.Equal(t, `"submissions"."form_id"`, Quote("submissions.form_id"))
}

func TestBuildInsert(t *testing.T) {
	query, args := BuildInsert("forms", []formstore.Field{
		{Column: "title", Value: "Survey"},
		{Column: "author_id", Value: int64(7)},
	})
	assert.Equal(t, `INSERT INTO "forms" ("title", "author_id") VALUES (?, ?)`, query)
	assert.Equal(t, []any{"Survey", int64(7)}, args)
}

func TestBuildUpdate(t *testing.T) {
	query, args := BuildUpdate("forms", "id", 3, []formstore.Field{
		{Column: "title", Value: "Renamed"},
	})
	assert.Equal(t, `UPDATE "forms" SET "title" = ? WHERE "id" = ?`, query)
	assert.Equal(t, []any{"Renamed", int64(3)}, args)
}

func TestBuildDelete(t *testing.T) {
	query, args := BuildDelete("forms", "id", 9)
	assert.Equal(t, `DELETE FROM "forms" WHERE "id" = ?`, query)
	assert.Equal(t, []any{int64(9)}, args)
}

func TestBuildWhereExpandsMembership(t *testing.T) {
	where, args := BuildWhere([]formstore.Condition{
		{Column: "form_id", Values: []any{int64(1)}},
		{Column: "type", Values: []any{"a", "b", "c"}},
	})
	assert.Equal(t, `"form_id" = ? AND "type" IN (?, ?, ?)`, where)
	assert.Equal(t, []any{int64(1), "a", "b", "c"}, args)
}

func TestBuildWhereEmptyListMatchesNothing(t *testing.T) {
	where, args := BuildWhere([]formstore.Condition{
		{Column: "id", Values: nil},
	})
	assert.Equal(t, `"id" IN (NULL)`, where)
	assert.Empty(t, args)
}

func TestBuildSelectFull(t *testing.T) {
	query, args := BuildSelect("elements", formstore.Criteria{
		Columns: []string{"id"},
		Where:   []formstore.Condition{{Column: "container_id", Values: []any{int64(4)}}},
		OrderBy: []formstore.Order{{Column: "sort"}, {Column: "label", Descending: true}},
		Limit:   10,
		Offset:  20,
	})
	assert.Equal(t,
		`SELECT "id" FROM "elements" WHERE "container_id" = ? ORDER BY "sort" ASC, "label" DESC LIMIT ? OFFSET ?`,
		query)
	assert.Equal(t, []any{int64(4), 10, 20}, args)
}

func TestBuildSelectOffsetWithoutLimit(t *testing.T) {
	query, args := BuildSelect("forms", formstore.Criteria{Offset: 5})
	assert.Equal(t, `SELECT * FROM "forms" LIMIT -1 OFFSET ?`, query)
	assert.Equal(t, []any{5}, args)
}

func TestBuildSelectExplicitIDOrder(t *testing.T) {
	query, args := BuildSelect("forms", formstore.Criteria{
		Columns:    []string{"id"},
		OrderByIDs: []int64{9, 3, 7},
		IDColumn:   "id",
	})
	assert.Equal(t,
		`SELECT "id" FROM "forms" ORDER BY CASE "id" WHEN ? THEN 0 WHEN ? THEN 1 WHEN ? THEN 2 ELSE 3 END`,
		query)
	assert.Equal(t, []any{int64(9), int64(3), int64(7)}, args)
}

func TestBuildSelectWithJoin(t *testing.T) {
	query, args := BuildSelect("submission_values", formstore.Criteria{
		Columns: []string{"submission_values.id"},
		Joins: []formstore.Join{{
			Table: "submissions",
			On:    `"submissions"."id" = "submission_values"."submission_id"`,
		}},
		Where: []formstore.Condition{{Column: "submissions.form_id", Values: []any{int64(2)}}},
	})
	assert.Equal(t,
		`SELECT "submission_values"."id" FROM "submission_values" JOIN "submissions" ON "submissions"."id" = "submission_values"."submission_id" WHERE "submissions"."form_id" = ?`,
		query)
	assert.Equal(t, []any{int64(2)}, args)
}

func TestBuildCountIgnoresPagination(t *testing.T) {
	query, args := BuildCount("forms", formstore.Criteria{
		Where:  []formstore.Condition{{Column: "status", Values: []any{"published"}}},
		Limit:  10,
		Offset: 5,
	})
	assert.Equal(t, `SELECT COUNT(*) FROM "forms" WHERE "status" = ?`, query)
	assert.Equal(t, []any{"published"}, args)
}
