package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/loomworks/loom/pkg/models"
)

// TimeoutManager tracks per-node and per-workflow deadlines stored as
// absolute timestamps in the execution state. There are no background
// timers: detection is poll-driven, callers check at poll boundaries before
// and after node execution.
type TimeoutManager struct {
	engine *Engine
}

func NewTimeoutManager(engine *Engine) *TimeoutManager {
	return &TimeoutManager{engine: engine}
}

// SetNodeTimeout records an absolute node deadline seconds from now.
func (m *TimeoutManager) SetNodeTimeout(state *models.ExecutionState, nodeID string, timeout time.Duration) {
	state.SetNodeTimeout(nodeID, time.Now().UTC().Add(timeout))
}

// SetWorkflowTimeout records an absolute workflow deadline from now.
func (m *TimeoutManager) SetWorkflowTimeout(state *models.ExecutionState, timeout time.Duration) {
	deadline := time.Now().UTC().Add(timeout)
	state.WorkflowTimeout = &deadline
}

// CheckNodeTimeout reports whether the node's deadline has passed. Nodes
// without a deadline never time out.
func (m *TimeoutManager) CheckNodeTimeout(state *models.ExecutionState, nodeID string, now time.Time) bool {
	deadline, ok := state.NodeTimeouts[nodeID]
	if !ok {
		return false
	}

	return now.After(deadline)
}

// CheckWorkflowTimeout reports whether the execution's deadline has passed.
func (m *TimeoutManager) CheckWorkflowTimeout(state *models.ExecutionState, now time.Time) bool {
	if state.WorkflowTimeout == nil {
		return false
	}

	return now.After(*state.WorkflowTimeout)
}

// HandleNodeTimeout reacts to an expired node deadline: schedule a retry
// when the caller allows it and attempts remain, otherwise fail the
// execution outright.
func (m *TimeoutManager) HandleNodeTimeout(ctx context.Context, executionID, nodeID string, retry bool) error {
	message := fmt.Sprintf("node %s exceeded its deadline", nodeID)

	return m.engine.FailExecution(ctx, executionID, message, retry)
}

// HandleWorkflowTimeout fails an execution whose overall deadline passed.
// Workflow timeouts are not retried: the budget covers all attempts.
func (m *TimeoutManager) HandleWorkflowTimeout(ctx context.Context, executionID string) error {
	return m.engine.FailExecution(ctx, executionID, "workflow exceeded its deadline", false)
}
