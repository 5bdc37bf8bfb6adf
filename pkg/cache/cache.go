// Package cache provides a TTL cache fronting persisted execution state.
// Caches here are best-effort accelerators, never sources of truth: every
// read path must be able to fall back to the persisted store.
package cache

import (
	"context"

	"github.com/loomworks/loom/pkg/models"
)

// ExecutionCache caches execution state snapshots by execution ID. A miss
// (nil, nil) is always a valid answer.
type ExecutionCache interface {
	Get(ctx context.Context, executionID string) (*models.ExecutionState, error)
	Set(ctx context.Context, executionID string, state *models.ExecutionState) error
	Delete(ctx context.Context, executionID string) error

	// CleanupExpired removes expired entries and returns how many were
	// dropped. Advisory: read paths honor expiry independently.
	CleanupExpired(ctx context.Context) (int, error)
}
