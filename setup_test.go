package formstore_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"formstore"
	"formstore/drivers/cache/memory"
	"formstore/drivers/db/sqlite"
	"formstore/entities"
)

// testEnv is one isolated registry on a throwaway SQLite file plus an
// in-process cache.
type testEnv struct {
	reg   *formstore.Registry
	cache *memory.Client
	store *sqlite.Store
}

func newTestEnv(t *testing.T, opts ...formstore.Option) *testEnv {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "formstore_test.db")
	store, err := sqlite.Open(dsn, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	require.NoError(t, entities.CreateTables(context.Background(), store.DB()))

	cache := memory.NewClient()
	reg, err := entities.NewRegistry(store, cache, opts...)
	require.NoError(t, err)
	return &testEnv{reg: reg, cache: cache, store: store}
}

func (e *testEnv) manager(t *testing.T, kind formstore.Kind) *formstore.Manager {
	t.Helper()
	m, err := e.reg.Manager(kind)
	require.NoError(t, err)
	return m
}

// addForm inserts a form and returns its id.
func (e *testEnv) addForm(t *testing.T, title string) int64 {
	t.Helper()
	id, err := e.manager(t, entities.KindForm).Add(context.Background(), map[string]any{
		"title":     title,
		"slug":      title,
		"author_id": 1,
	})
	require.NoError(t, err)
	return id
}

func (e *testEnv) addContainer(t *testing.T, formID int64, label string, sort int) int64 {
	t.Helper()
	id, err := e.manager(t, entities.KindContainer).Add(context.Background(), map[string]any{
		"form_id": formID,
		"label":   label,
		"sort":    sort,
	})
	require.NoError(t, err)
	return id
}

func (e *testEnv) addElement(t *testing.T, containerID int64, label, typ string, sort int) int64 {
	t.Helper()
	id, err := e.manager(t, entities.KindElement).Add(context.Background(), map[string]any{
		"container_id": containerID,
		"label":        label,
		"type":         typ,
		"sort":         sort,
	})
	require.NoError(t, err)
	return id
}
