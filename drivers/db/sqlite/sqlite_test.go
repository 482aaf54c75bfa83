package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"formstore"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "driver_test.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	_, err = store.DB().Exec(`CREATE TABLE "items" (
		"id" INTEGER PRIMARY KEY AUTOINCREMENT,
		"name" TEXT NOT NULL DEFAULT '',
		"rank" INTEGER NOT NULL DEFAULT 0
	)`)
	require.NoError(t, err)
	return store
}

func insertItem(t *testing.T, store *Store, name string, rank int64) int64 {
	t.Helper()
	id, err := store.Insert(context.Background(), "items", []formstore.Field{
		{Column: "name", Type: formstore.TypeString, Value: name},
		{Column: "rank", Type: formstore.TypeInt, Value: rank},
	})
	require.NoError(t, err)
	return id
}

func TestInsertAndSelect(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	id := insertItem(t, store, "first", 1)
	require.Greater(t, id, int64(0))

	rows, total, err := store.Select(ctx, "items", formstore.Criteria{
		Where: []formstore.Condition{{Column: "id", Values: []any{id}}},
	})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, "first", rows[0]["name"])
	assert.Equal(t, int64(1), rows[0]["rank"])
}

func TestUpdateMissingRow(t *testing.T) {
	store := newTestStore(t)
	err := store.Update(context.Background(), "items", "id", 999, []formstore.Field{
		{Column: "name", Value: "nope"},
	})
	assert.ErrorIs(t, err, formstore.ErrNotFound)
}

func TestDeleteMissingRow(t *testing.T) {
	store := newTestStore(t)
	err := store.Delete(context.Background(), "items", "id", 999)
	assert.ErrorIs(t, err, formstore.ErrNotFound)
}

func TestUpdateAndDelete(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	id := insertItem(t, store, "before", 0)
	require.NoError(t, store.Update(ctx, "items", "id", id, []formstore.Field{
		{Column: "name", Value: "after"},
	}))

	rows, _, err := store.Select(ctx, "items", formstore.Criteria{})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "after", rows[0]["name"])

	require.NoError(t, store.Delete(ctx, "items", "id", id))
	rows, total, err := store.Select(ctx, "items", formstore.Criteria{})
	require.NoError(t, err)
	assert.Empty(t, rows)
	assert.Equal(t, int64(0), total)
}

func TestSelectPaginationCountsAllMatches(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for i := int64(1); i <= 5; i++ {
		insertItem(t, store, "item", i)
	}

	rows, total, err := store.Select(ctx, "items", formstore.Criteria{
		OrderBy: []formstore.Order{{Column: "rank"}},
		Limit:   2,
		Offset:  1,
	})
	require.NoError(t, err)
	assert.Len(t, rows, 2)
	assert.Equal(t, int64(5), total)
	assert.Equal(t, int64(2), rows[0]["rank"])
	assert.Equal(t, int64(3), rows[1]["rank"])
}

func TestSelectMembershipAndExplicitOrder(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	a := insertItem(t, store, "a", 1)
	b := insertItem(t, store, "b", 2)
	c := insertItem(t, store, "c", 3)

	rows, _, err := store.Select(ctx, "items", formstore.Criteria{
		Columns:    []string{"id"},
		Where:      []formstore.Condition{{Column: "id", Values: []any{a, b, c}}},
		OrderByIDs: []int64{c, a, b},
		IDColumn:   "id",
	})
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, c, rows[0]["id"])
	assert.Equal(t, a, rows[1]["id"])
	assert.Equal(t, b, rows[2]["id"])
}

func TestCloseTwice(t *testing.T) {
	store, err := Open(filepath.Join(t.TempDir(), "close_test.db"), nil)
	require.NoError(t, err)
	require.NoError(t, store.Close())
	require.NoError(t, store.Close())
}
