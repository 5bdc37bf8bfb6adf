package engine

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/loomworks/loom/pkg/persistence"
)

// DefaultDedupWindow is the rolling window inside which logically identical
// triggers map to one execution.
const DefaultDedupWindow = 24 * time.Hour

// KeyCache is the in-process idempotency key accelerator. It is explicitly
// constructed and injected so tests can substitute a fresh instance; the
// persisted store remains the source of truth.
type KeyCache struct {
	window time.Duration
	mu     sync.RWMutex
	keys   map[string]keyEntry
}

type keyEntry struct {
	executionID string
	expiresAt   time.Time
}

// NewKeyCache creates a key cache whose entries expire after the dedup
// window.
func NewKeyCache(window time.Duration) *KeyCache {
	return &KeyCache{
		window: window,
		keys:   make(map[string]keyEntry),
	}
}

func (c *KeyCache) get(key string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.keys[key]
	if !ok || time.Now().After(entry.expiresAt) {
		return "", false
	}

	return entry.executionID, true
}

func (c *KeyCache) put(key, executionID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.keys[key] = keyEntry{
		executionID: executionID,
		expiresAt:   time.Now().Add(c.window),
	}
}

func (c *KeyCache) drop(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.keys, key)
}

// CleanupExpired removes expired keys and returns how many were dropped.
func (c *KeyCache) CleanupExpired() int {
	now := time.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0

	for key, entry := range c.keys {
		if now.After(entry.expiresAt) {
			delete(c.keys, key)

			removed++
		}
	}

	return removed
}

// IdempotencyManager provides at-most-once semantics for a given trigger
// inside the dedup window.
type IdempotencyManager struct {
	executions persistence.ExecutionRepository
	cache      *KeyCache
	window     time.Duration
	logger     *slog.Logger
}

func NewIdempotencyManager(executions persistence.ExecutionRepository, cache *KeyCache, window time.Duration, logger *slog.Logger) *IdempotencyManager {
	if window <= 0 {
		window = DefaultDedupWindow
	}

	return &IdempotencyManager{
		executions: executions,
		cache:      cache,
		window:     window,
		logger:     logger,
	}
}

// GenerateKey derives a deterministic key from the trigger's logical
// identity. encoding/json writes map keys in sorted order at every nesting
// level, so insertion order inside the payload never changes the digest.
func GenerateKey(workflowID string, payload map[string]any, owner string) string {
	identity := map[string]any{
		"workflow_id": workflowID,
		"payload":     payload,
		"owner":       owner,
	}

	canonical, err := json.Marshal(identity)
	if err != nil {
		// Maps of JSON-decoded values always marshal; anything else is a
		// programming error and still needs a stable fallback.
		canonical = []byte(workflowID + ":" + owner)
	}

	digest := sha256.Sum256(canonical)

	return hex.EncodeToString(digest[:])
}

// CheckDuplicate returns the execution already bound to the key inside the
// dedup window, or empty when the trigger is new. The cache self-heals when
// its entry outlives the persisted row.
func (m *IdempotencyManager) CheckDuplicate(ctx context.Context, key string) (string, error) {
	if executionID, ok := m.cache.get(key); ok {
		_, err := m.executions.GetByID(ctx, executionID)
		if err == nil {
			return executionID, nil
		}

		if !persistence.IsExecutionNotFound(err) {
			return "", err
		}

		m.logger.DebugContext(ctx, "Dropping stale idempotency cache entry",
			"key", key, "execution_id", executionID)
		m.cache.drop(key)
	}

	since := time.Now().Add(-m.window)

	execution, err := m.executions.GetByIdempotencyKey(ctx, key, since)
	if err != nil {
		if persistence.IsExecutionNotFound(err) {
			return "", nil
		}

		return "", err
	}

	m.cache.put(key, execution.ID)

	return execution.ID, nil
}

// Register binds a key to an execution in the in-process cache. The durable
// binding is the idempotency key already persisted on the execution's
// trigger data.
func (m *IdempotencyManager) Register(key, executionID string) {
	m.cache.put(key, executionID)
}
