package formstore_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"formstore"
	"formstore/entities"
)

// Two minimal schemas pointing at each other, for relationship edge cases.
// Registration and linking never touch the store, so nil backends suffice.
func nodeSchema(kind, parent formstore.Kind) *formstore.Schema {
	s := &formstore.Schema{
		Kind:       kind,
		Table:      string(kind) + "s",
		MetaTable:  string(kind) + "_meta",
		CacheGroup: string(kind) + "s",
		Primary:    "id",
		Columns: []formstore.Column{
			{Name: "label", Type: formstore.TypeString},
			{Name: "parent_id", Type: formstore.TypeInt},
		},
	}
	if parent != "" {
		s.ParentColumns = map[formstore.Kind]string{parent: "parent_id"}
	}
	return s
}

func TestRegistryRegisterAndLookup(t *testing.T) {
	reg := formstore.NewRegistry(nil, nil)

	m, err := reg.Register(nodeSchema("node", ""))
	require.NoError(t, err)
	assert.Equal(t, formstore.Kind("node"), m.Kind())

	found, err := reg.Manager("node")
	require.NoError(t, err)
	assert.Same(t, m, found)

	_, err = reg.Manager("ghost")
	assert.ErrorIs(t, err, formstore.ErrUnknownKind)

	_, err = reg.Register(nodeSchema("node", ""))
	assert.Error(t, err)
}

func TestRegistryRejectsInvalidSchema(t *testing.T) {
	reg := formstore.NewRegistry(nil, nil)

	_, err := reg.Register(nil)
	assert.Error(t, err)

	broken := nodeSchema("broken", "")
	broken.Primary = ""
	_, err = reg.Register(broken)
	assert.Error(t, err)

	undeclared := nodeSchema("undeclared", "")
	undeclared.ParentColumns = map[formstore.Kind]string{"other": "missing_column"}
	_, err = reg.Register(undeclared)
	assert.Error(t, err)
}

func TestRegistryLinkWiresBothSides(t *testing.T) {
	reg := formstore.NewRegistry(nil, nil)
	parent, err := reg.Register(nodeSchema("branch", ""))
	require.NoError(t, err)
	child, err := reg.Register(nodeSchema("leaf", "branch"))
	require.NoError(t, err)

	require.NoError(t, reg.Link("branch", "leaf"))

	got, ok := parent.ChildManager("leaf")
	require.True(t, ok)
	assert.Same(t, child, got)
	got, ok = child.ParentManager("branch")
	require.True(t, ok)
	assert.Same(t, parent, got)
	assert.Equal(t, []formstore.Kind{"leaf"}, parent.ChildKinds())

	// Same edge twice is an error.
	assert.Error(t, reg.Link("branch", "leaf"))
}

func TestRegistryLinkRejectsCycle(t *testing.T) {
	reg := formstore.NewRegistry(nil, nil)
	_, err := reg.Register(nodeSchema("a", "b"))
	require.NoError(t, err)
	_, err = reg.Register(nodeSchema("b", "a"))
	require.NoError(t, err)

	require.NoError(t, reg.Link("a", "b"))
	err = reg.Link("b", "a")
	assert.ErrorIs(t, err, formstore.ErrRelationshipCycle)
}

func TestRegistryLinkRequiresParentColumn(t *testing.T) {
	reg := formstore.NewRegistry(nil, nil)
	_, err := reg.Register(nodeSchema("x", ""))
	require.NoError(t, err)
	_, err = reg.Register(nodeSchema("y", ""))
	require.NoError(t, err)

	// y declares no parent column for x.
	assert.Error(t, reg.Link("x", "y"))
	assert.ErrorIs(t, reg.Link("x", "ghost"), formstore.ErrUnknownKind)
}

func TestRegistryDuplicatorIsStable(t *testing.T) {
	reg := formstore.NewRegistry(nil, nil)
	assert.Same(t, reg.Duplicator(), reg.Duplicator())
}

func TestEntitiesRegistryWiring(t *testing.T) {
	env := newTestEnv(t)

	assert.Equal(t, []formstore.Kind{
		entities.KindForm,
		entities.KindContainer,
		entities.KindElement,
		entities.KindElementSetting,
		entities.KindElementChoice,
		entities.KindSubmission,
		entities.KindSubmissionValue,
		entities.KindParticipant,
	}, env.reg.Kinds())

	forms := env.manager(t, entities.KindForm)
	assert.Equal(t, []formstore.Kind{
		entities.KindContainer,
		entities.KindSubmission,
		entities.KindParticipant,
	}, forms.ChildKinds())

	elements := env.manager(t, entities.KindElement)
	parent, ok := elements.ParentManager(entities.KindContainer)
	require.True(t, ok)
	assert.Equal(t, entities.KindContainer, parent.Kind())
}

func TestRegistryWithSingleValuedMetaKey(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	// A fresh registry over the same tables, with a schema that declares
	// "slug_lock" single-valued.
	schema := entities.FormSchema()
	schema.SingleMeta = []string{"slug_lock"}
	reg := formstore.NewRegistry(env.store, env.cache)
	forms, err := reg.Register(schema)
	require.NoError(t, err)

	id, err := forms.Add(ctx, map[string]any{"title": "single"})
	require.NoError(t, err)

	require.NoError(t, forms.AddMeta(ctx, id, "slug_lock", "one"))
	require.NoError(t, forms.AddMeta(ctx, id, "slug_lock", "two"))
	values, err := forms.GetMeta(ctx, id, "slug_lock")
	require.NoError(t, err)
	assert.Equal(t, []string{"two"}, values)
}
