package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"formstore"
)

func TestGetSetDelete(t *testing.T) {
	c := NewClient()
	ctx := context.Background()

	_, err := c.Get(ctx, "forms", "record:1")
	assert.ErrorIs(t, err, formstore.ErrNotFound)

	require.NoError(t, c.Set(ctx, "forms", "record:1", "payload", 0))
	value, err := c.Get(ctx, "forms", "record:1")
	require.NoError(t, err)
	assert.Equal(t, "payload", value)

	// Same key in another group is a separate entry.
	_, err = c.Get(ctx, "elements", "record:1")
	assert.ErrorIs(t, err, formstore.ErrNotFound)

	require.NoError(t, c.Delete(ctx, "forms", "record:1"))
	_, err = c.Get(ctx, "forms", "record:1")
	assert.ErrorIs(t, err, formstore.ErrNotFound)
}

func TestAddIsSetIfAbsent(t *testing.T) {
	c := NewClient()
	ctx := context.Background()

	won, err := c.Add(ctx, "forms", "last_changed", "t1")
	require.NoError(t, err)
	assert.True(t, won)

	won, err = c.Add(ctx, "forms", "last_changed", "t2")
	require.NoError(t, err)
	assert.False(t, won)

	value, err := c.Get(ctx, "forms", "last_changed")
	require.NoError(t, err)
	assert.Equal(t, "t1", value)
}

func TestEntriesExpire(t *testing.T) {
	c := NewClient()
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "forms", "short", "v", 10*time.Millisecond))
	value, err := c.Get(ctx, "forms", "short")
	require.NoError(t, err)
	assert.Equal(t, "v", value)

	time.Sleep(25 * time.Millisecond)
	_, err = c.Get(ctx, "forms", "short")
	assert.ErrorIs(t, err, formstore.ErrNotFound)

	// An expired entry no longer blocks Add.
	require.NoError(t, c.Set(ctx, "forms", "gone", "v", 10*time.Millisecond))
	time.Sleep(25 * time.Millisecond)
	won, err := c.Add(ctx, "forms", "gone", "new")
	require.NoError(t, err)
	assert.True(t, won)
}

func TestFlushAndStats(t *testing.T) {
	c := NewClient()
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "forms", "k", "v", 0))
	c.Flush()
	_, err := c.Get(ctx, "forms", "k")
	assert.ErrorIs(t, err, formstore.ErrNotFound)

	stats := c.Stats()
	assert.Equal(t, 1, stats.Counters["Set"])
	assert.Equal(t, 2, stats.Counters["Get"])
	assert.Equal(t, 2, stats.Counters["GetMiss"])
}
