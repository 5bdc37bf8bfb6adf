package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loomworks/loom/pkg/models"
)

func TestMemoryCache_SetGet(t *testing.T) {
	t.Parallel()

	cache := NewMemoryCache(time.Minute)
	ctx := context.Background()

	state := models.NewExecutionState("n1", time.Now().UTC())
	state.SetVariable("global", "customer", "acme")

	require.NoError(t, cache.Set(ctx, "exec-1", state))

	loaded, err := cache.Get(ctx, "exec-1")
	require.NoError(t, err)
	require.NotNil(t, loaded)

	assert.Equal(t, "n1", loaded.CurrentNodeID)

	value, ok := loaded.Variable("global", "customer")
	require.True(t, ok)
	assert.Equal(t, "acme", value)
}

func TestMemoryCache_MissReturnsNil(t *testing.T) {
	t.Parallel()

	cache := NewMemoryCache(time.Minute)

	loaded, err := cache.Get(context.Background(), "missing")
	require.NoError(t, err)
	assert.Nil(t, loaded)
}

func TestMemoryCache_Expiry(t *testing.T) {
	t.Parallel()

	cache := NewMemoryCache(30 * time.Millisecond)
	ctx := context.Background()

	state := models.NewExecutionState("n1", time.Now().UTC())
	require.NoError(t, cache.Set(ctx, "exec-1", state))

	time.Sleep(60 * time.Millisecond)

	// Expired entries are invisible even before cleanup runs.
	loaded, err := cache.Get(ctx, "exec-1")
	require.NoError(t, err)
	assert.Nil(t, loaded)

	removed, err := cache.CleanupExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
}

func TestMemoryCache_Delete(t *testing.T) {
	t.Parallel()

	cache := NewMemoryCache(time.Minute)
	ctx := context.Background()

	state := models.NewExecutionState("n1", time.Now().UTC())
	require.NoError(t, cache.Set(ctx, "exec-1", state))
	require.NoError(t, cache.Delete(ctx, "exec-1"))

	loaded, err := cache.Get(ctx, "exec-1")
	require.NoError(t, err)
	assert.Nil(t, loaded)
}
