package formstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyShapes(t *testing.T) {
	assert.Equal(t, "record:42", recordKey(42))
	assert.Equal(t, "meta:42", metaKey(42))
	assert.Equal(t, "query:gen1:abc", queryKey("gen1", "abc"))
}

func TestHashCriteriaDeterministic(t *testing.T) {
	crit := Criteria{
		Columns: []string{"id"},
		Where: []Condition{
			{Column: "form_id", Values: []any{int64(3)}},
			{Column: "type", Values: []any{"textfield", "radio"}},
		},
		OrderBy: []Order{{Column: "sort"}},
		Limit:   10,
	}
	first, err := hashCriteria(crit)
	require.NoError(t, err)
	second, err := hashCriteria(crit)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Len(t, first, 64)
}

func TestHashCriteriaNormalizesIntegerWidths(t *testing.T) {
	a := Criteria{Where: []Condition{{Column: "form_id", Values: []any{3}}}}
	b := Criteria{Where: []Condition{{Column: "form_id", Values: []any{int64(3)}}}}
	ha, err := hashCriteria(a)
	require.NoError(t, err)
	hb, err := hashCriteria(b)
	require.NoError(t, err)
	assert.Equal(t, ha, hb)
}

func TestHashCriteriaDistinguishesQueries(t *testing.T) {
	base := Criteria{Where: []Condition{{Column: "form_id", Values: []any{int64(3)}}}}
	other := Criteria{Where: []Condition{{Column: "form_id", Values: []any{int64(4)}}}}
	paged := base
	paged.Limit = 5

	hBase, err := hashCriteria(base)
	require.NoError(t, err)
	hOther, err := hashCriteria(other)
	require.NoError(t, err)
	hPaged, err := hashCriteria(paged)
	require.NoError(t, err)
	assert.NotEqual(t, hBase, hOther)
	assert.NotEqual(t, hBase, hPaged)
}

func TestGenerationTokensNeverRepeat(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		token := newGenerationToken()
		require.False(t, seen[token], "token %q repeated", token)
		seen[token] = true
	}
}
