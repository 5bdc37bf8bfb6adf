package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateKey_Deterministic(t *testing.T) {
	t.Parallel()

	payload := map[string]any{
		"user_id": "u-1",
		"amount":  42.5,
		"nested":  map[string]any{"b": 2, "a": 1},
	}

	first := GenerateKey("wf-1", payload, "owner-1")

	// Same logical payload built in a different insertion order.
	shuffled := map[string]any{
		"nested":  map[string]any{"a": 1, "b": 2},
		"amount":  42.5,
		"user_id": "u-1",
	}

	assert.Equal(t, first, GenerateKey("wf-1", shuffled, "owner-1"))
	assert.Len(t, first, 64)
}

func TestGenerateKey_DistinguishesInputs(t *testing.T) {
	t.Parallel()

	payload := map[string]any{"user_id": "u-1"}
	base := GenerateKey("wf-1", payload, "owner-1")

	assert.NotEqual(t, base, GenerateKey("wf-2", payload, "owner-1"))
	assert.NotEqual(t, base, GenerateKey("wf-1", payload, "owner-2"))
	assert.NotEqual(t, base, GenerateKey("wf-1", map[string]any{"user_id": "u-2"}, "owner-1"))
}

func TestKeyCache_Expiry(t *testing.T) {
	t.Parallel()

	cache := NewKeyCache(50 * time.Millisecond)
	cache.put("key-1", "exec-1")

	id, ok := cache.get("key-1")
	require.True(t, ok)
	assert.Equal(t, "exec-1", id)

	time.Sleep(80 * time.Millisecond)

	_, ok = cache.get("key-1")
	assert.False(t, ok)

	assert.Equal(t, 1, cache.CleanupExpired())
}

func TestKeyCache_Drop(t *testing.T) {
	t.Parallel()

	cache := NewKeyCache(time.Hour)
	cache.put("key-1", "exec-1")
	cache.drop("key-1")

	_, ok := cache.get("key-1")
	assert.False(t, ok)
}
