package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/loomworks/loom/pkg/models"
	"github.com/loomworks/loom/pkg/persistence"
)

// DefaultMaxConcurrentExecutions caps running executions per owner.
const DefaultMaxConcurrentExecutions = 10

// ResourceLimitError indicates an owner hit their concurrency quota.
type ResourceLimitError struct {
	Owner   string
	Limit   int
	Current int
}

func (e *ResourceLimitError) Error() string {
	return fmt.Sprintf("owner %s has %d running executions, limit is %d", e.Owner, e.Current, e.Limit)
}

// LimitsManager enforces the per-owner concurrency quota and stamps
// per-execution resource limits into the execution state. Memory and CPU
// limits are advisory metadata for the sandbox running activities; only the
// timeout limit is enforced here, via deadlines.
type LimitsManager struct {
	executions    persistence.ExecutionRepository
	maxConcurrent int
}

func NewLimitsManager(executions persistence.ExecutionRepository, maxConcurrent int) *LimitsManager {
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrentExecutions
	}

	return &LimitsManager{
		executions:    executions,
		maxConcurrent: maxConcurrent,
	}
}

// CheckUserConcurrentLimit reports whether the owner may start another
// execution, along with their current running count.
func (m *LimitsManager) CheckUserConcurrentLimit(ctx context.Context, owner string) (bool, int, error) {
	count, err := m.executions.RunningCountByOwner(ctx, owner)
	if err != nil {
		return false, 0, err
	}

	return count < m.maxConcurrent, count, nil
}

// EnforceUserLimits rejects with ResourceLimitError when the owner is at
// their quota. Callers invoke this before creating an execution.
func (m *LimitsManager) EnforceUserLimits(ctx context.Context, owner string) error {
	allowed, count, err := m.CheckUserConcurrentLimit(ctx, owner)
	if err != nil {
		return err
	}

	if !allowed {
		return &ResourceLimitError{
			Owner:   owner,
			Limit:   m.maxConcurrent,
			Current: count,
		}
	}

	return nil
}

// ApplyExecutionLimits stamps resource limits into the state and derives
// the workflow deadline from the timeout limit.
func (m *LimitsManager) ApplyExecutionLimits(state *models.ExecutionState, limits models.ResourceLimits) {
	state.Limits = limits

	if limits.TimeoutSeconds > 0 {
		deadline := time.Now().UTC().Add(time.Duration(limits.TimeoutSeconds) * time.Second)
		state.WorkflowTimeout = &deadline
	}
}
