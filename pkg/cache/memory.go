package cache

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/loomworks/loom/pkg/models"
)

type memoryEntry struct {
	payload   []byte
	expiresAt time.Time
}

func (e *memoryEntry) isExpired(now time.Time) bool {
	return now.After(e.expiresAt)
}

// MemoryCache is an in-process TTL cache. Entries are stored as JSON so a
// cached state never aliases the caller's copy.
type MemoryCache struct {
	ttl     time.Duration
	mu      sync.RWMutex
	entries map[string]*memoryEntry
}

// NewMemoryCache creates a memory cache with the given entry TTL.
func NewMemoryCache(ttl time.Duration) *MemoryCache {
	return &MemoryCache{
		ttl:     ttl,
		entries: make(map[string]*memoryEntry),
	}
}

func (c *MemoryCache) Get(_ context.Context, executionID string) (*models.ExecutionState, error) {
	c.mu.RLock()
	entry, ok := c.entries[executionID]
	c.mu.RUnlock()

	if !ok || entry.isExpired(time.Now()) {
		return nil, nil
	}

	var state models.ExecutionState
	if err := json.Unmarshal(entry.payload, &state); err != nil {
		return nil, err
	}

	return &state, nil
}

func (c *MemoryCache) Set(_ context.Context, executionID string, state *models.ExecutionState) error {
	payload, err := json.Marshal(state)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[executionID] = &memoryEntry{
		payload:   payload,
		expiresAt: time.Now().Add(c.ttl),
	}

	return nil
}

func (c *MemoryCache) Delete(_ context.Context, executionID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.entries, executionID)

	return nil
}

func (c *MemoryCache) CleanupExpired(_ context.Context) (int, error) {
	now := time.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0

	for id, entry := range c.entries {
		if entry.isExpired(now) {
			delete(c.entries, id)

			removed++
		}
	}

	return removed, nil
}
