package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loomworks/loom/pkg/cache"
	"github.com/loomworks/loom/pkg/models"
	"github.com/loomworks/loom/pkg/persistence"
	"github.com/loomworks/loom/pkg/persistence/file"
	"github.com/loomworks/loom/pkg/protocol"
	"github.com/loomworks/loom/pkg/registry"
)

// stubFactory builds activities whose behavior is driven by node config:
// "fail" forces an error, "panic" forces a panic, anything under "output"
// is echoed back.
type stubFactory struct{}

func (f *stubFactory) ID() string          { return "stub" }
func (f *stubFactory) Name() string        { return "Stub" }
func (f *stubFactory) Description() string { return "configurable test activity" }

func (f *stubFactory) Schema() map[string]any {
	return map[string]any{"type": "object"}
}

func (f *stubFactory) Create(config map[string]any) (protocol.Activity, error) {
	return &stubActivity{config: config}, nil
}

type stubActivity struct {
	config map[string]any
}

func (a *stubActivity) Execute(ctx context.Context, state *models.ExecutionState, executionID string) (map[string]any, error) {
	if shouldPanic, _ := a.config["panic"].(bool); shouldPanic {
		panic("stub activity exploded")
	}

	if shouldFail, _ := a.config["fail"].(bool); shouldFail {
		return nil, errors.New("stub activity failed")
	}

	output := map[string]any{"ran": true}
	if extra, ok := a.config["output"].(map[string]any); ok {
		for key, value := range extra {
			output[key] = value
		}
	}

	return output, nil
}

func newTestEngine(t *testing.T, opts ...Option) (*Engine, persistence.Persistence) {
	t.Helper()

	p := file.NewPersistence(t.TempDir())

	reg := registry.NewRegistry(slog.Default())
	reg.RegisterActivity(&stubFactory{})

	eng := NewEngine(p, reg, cache.NewMemoryCache(time.Minute), nil, slog.Default(), opts...)

	return eng, p
}

func saveTwoNodeWorkflow(t *testing.T, p persistence.Persistence, id string, secondConfig map[string]any) {
	t.Helper()

	workflow := &models.Workflow{
		ID:      id,
		Name:    "Two Node Workflow",
		Owner:   "owner-1",
		Active:  true,
		Version: 1,
		Nodes: []*models.WorkflowNode{
			{ID: "n1", Type: "stub", Name: "first", Enabled: true, Config: map[string]any{}},
			{ID: "n2", Type: "stub", Name: "second", Enabled: true, Config: secondConfig},
		},
		Edges: []*models.Edge{
			{ID: "e1", SourceNodeID: "n1", TargetNodeID: "n2"},
		},
		GraphConfig: models.GraphConfig{EntryNodeID: "n1"},
	}

	require.NoError(t, p.Workflows().Save(context.Background(), workflow))
}

func TestEngine_CreateExecution(t *testing.T) {
	t.Parallel()

	eng, p := newTestEngine(t)
	ctx := context.Background()

	saveTwoNodeWorkflow(t, p, "wf-1", map[string]any{})

	executionID, err := eng.CreateExecution(ctx, "wf-1", models.TriggerData{
		Type:    "manual",
		Payload: map[string]any{"user_id": "u-1"},
	})
	require.NoError(t, err)
	require.NotEmpty(t, executionID)

	execution, err := p.Executions().GetByID(ctx, executionID)
	require.NoError(t, err)

	assert.Equal(t, models.ExecutionStatusRunning, execution.Status)
	assert.Equal(t, "owner-1", execution.Owner)
	assert.Equal(t, 1, execution.Version)
	assert.Equal(t, "n1", execution.State.CurrentNodeID)
	assert.NotEmpty(t, execution.TriggerData.IdempotencyKey)
}

func TestEngine_CreateExecution_UnknownWorkflow(t *testing.T) {
	t.Parallel()

	eng, _ := newTestEngine(t)

	_, err := eng.CreateExecution(context.Background(), "missing", models.TriggerData{Type: "manual"})
	assert.True(t, persistence.IsWorkflowNotFound(err))
}

func TestEngine_CreateExecution_InactiveWorkflow(t *testing.T) {
	t.Parallel()

	eng, p := newTestEngine(t)
	ctx := context.Background()

	workflow := &models.Workflow{
		ID:      "wf-inactive",
		Name:    "Inactive Workflow",
		Owner:   "owner-1",
		Active:  false,
		Version: 1,
	}
	require.NoError(t, p.Workflows().Save(ctx, workflow))

	_, err := eng.CreateExecution(ctx, "wf-inactive", models.TriggerData{Type: "manual"})
	assert.ErrorIs(t, err, persistence.ErrWorkflowInactive)
}

func TestEngine_CreateExecution_DuplicateReturnsExisting(t *testing.T) {
	t.Parallel()

	eng, p := newTestEngine(t)
	ctx := context.Background()

	saveTwoNodeWorkflow(t, p, "wf-1", map[string]any{})

	trigger := models.TriggerData{
		Type:    "webhook",
		Payload: map[string]any{"order_id": "o-1"},
	}

	first, err := eng.CreateExecution(ctx, "wf-1", trigger)
	require.NoError(t, err)

	second, err := eng.CreateExecution(ctx, "wf-1", trigger)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	// Skipping idempotency always creates a fresh run.
	third, err := eng.CreateExecution(ctx, "wf-1", trigger, WithoutIdempotency())
	require.NoError(t, err)
	assert.NotEqual(t, first, third)
}

func TestEngine_CreateExecution_ConcurrencyLimit(t *testing.T) {
	t.Parallel()

	eng, p := newTestEngine(t, WithMaxConcurrentExecutions(2))
	ctx := context.Background()

	saveTwoNodeWorkflow(t, p, "wf-1", map[string]any{})

	for i := range 2 {
		_, err := eng.CreateExecution(ctx, "wf-1", models.TriggerData{
			Type:    "manual",
			Payload: map[string]any{"attempt": fmt.Sprintf("%d", i)},
		})
		require.NoError(t, err)
	}

	_, err := eng.CreateExecution(ctx, "wf-1", models.TriggerData{
		Type:    "manual",
		Payload: map[string]any{"attempt": "third"},
	})

	var limitErr *ResourceLimitError

	require.ErrorAs(t, err, &limitErr)
	assert.Equal(t, "owner-1", limitErr.Owner)
	assert.Equal(t, 2, limitErr.Limit)
	assert.Equal(t, 2, limitErr.Current)
}

func TestEngine_ExecuteWorkflow_Success(t *testing.T) {
	t.Parallel()

	eng, p := newTestEngine(t)
	ctx := context.Background()

	saveTwoNodeWorkflow(t, p, "wf-1", map[string]any{
		"output": map[string]any{"answer": 42.0},
	})

	executionID, err := eng.CreateExecution(ctx, "wf-1", models.TriggerData{Type: "manual"})
	require.NoError(t, err)

	require.NoError(t, eng.ExecuteWorkflow(ctx, executionID))

	execution, err := p.Executions().GetByID(ctx, executionID)
	require.NoError(t, err)

	assert.Equal(t, models.ExecutionStatusCompleted, execution.Status)
	require.NotNil(t, execution.CompletedAt)
	assert.Greater(t, execution.Version, 1)

	require.Len(t, execution.State.NodeResults, 2)
	assert.Equal(t, models.NodeResultSuccess, execution.State.NodeResults["n1"].Status)
	assert.Equal(t, models.NodeResultSuccess, execution.State.NodeResults["n2"].Status)
	assert.Equal(t, 42.0, execution.State.NodeResults["n2"].Output["answer"])
	assert.ElementsMatch(t, []string{"n1", "n2"}, execution.State.CompletedNodeIDs)
}

func TestEngine_ExecuteWorkflow_NodeFailureSchedulesRetry(t *testing.T) {
	t.Parallel()

	eng, p := newTestEngine(t)
	ctx := context.Background()

	saveTwoNodeWorkflow(t, p, "wf-1", map[string]any{"fail": true})

	executionID, err := eng.CreateExecution(ctx, "wf-1", models.TriggerData{Type: "manual"})
	require.NoError(t, err)

	require.NoError(t, eng.ExecuteWorkflow(ctx, executionID))

	execution, err := p.Executions().GetByID(ctx, executionID)
	require.NoError(t, err)

	// Still runnable: the failure scheduled a retry instead of failing.
	assert.Equal(t, models.ExecutionStatusRunning, execution.Status)
	assert.Equal(t, 1, execution.State.RetryCount)
	require.NotNil(t, execution.State.RetryAt)
	assert.True(t, execution.State.RetryAt.After(time.Now()))
	assert.Contains(t, execution.Error, "stub activity failed")
}

func TestEngine_ExecuteWorkflow_FailsAfterRetriesExhausted(t *testing.T) {
	t.Parallel()

	eng, p := newTestEngine(t, WithRetryPolicy(RetryPolicy{
		MaxRetries:        0,
		InitialDelay:      time.Second,
		BackoffMultiplier: 2.0,
		MaxDelay:          time.Minute,
	}))
	ctx := context.Background()

	saveTwoNodeWorkflow(t, p, "wf-1", map[string]any{"fail": true})

	executionID, err := eng.CreateExecution(ctx, "wf-1", models.TriggerData{Type: "manual"})
	require.NoError(t, err)

	require.NoError(t, eng.ExecuteWorkflow(ctx, executionID))

	execution, err := p.Executions().GetByID(ctx, executionID)
	require.NoError(t, err)

	assert.Equal(t, models.ExecutionStatusFailed, execution.Status)
	require.NotNil(t, execution.CompletedAt)
	assert.Contains(t, execution.Error, "stub activity failed")
}

func TestEngine_ExecuteWorkflow_PanicBecomesFailure(t *testing.T) {
	t.Parallel()

	eng, p := newTestEngine(t, WithRetryPolicy(RetryPolicy{MaxRetries: 0}))
	ctx := context.Background()

	saveTwoNodeWorkflow(t, p, "wf-1", map[string]any{"panic": true})

	executionID, err := eng.CreateExecution(ctx, "wf-1", models.TriggerData{Type: "manual"})
	require.NoError(t, err)

	require.NoError(t, eng.ExecuteWorkflow(ctx, executionID))

	execution, err := p.Executions().GetByID(ctx, executionID)
	require.NoError(t, err)

	assert.Equal(t, models.ExecutionStatusFailed, execution.Status)
	assert.Contains(t, execution.Error, "panicked")
}

func TestEngine_ExecuteNode_DisabledNodeSkipped(t *testing.T) {
	t.Parallel()

	eng, _ := newTestEngine(t)

	node := &models.WorkflowNode{ID: "n1", Type: "stub", Name: "disabled", Enabled: false}
	state := models.NewExecutionState("n1", time.Now().UTC())

	result := eng.ExecuteNode(context.Background(), node, state, "exec-1")

	assert.Equal(t, models.NodeResultSuccess, result.Status)
	assert.Equal(t, true, result.Output["skipped"])
}

func TestEngine_ExecuteWorkflow_WorkflowTimeout(t *testing.T) {
	t.Parallel()

	eng, p := newTestEngine(t)
	ctx := context.Background()

	saveTwoNodeWorkflow(t, p, "wf-1", map[string]any{})

	executionID, err := eng.CreateExecution(ctx, "wf-1", models.TriggerData{Type: "manual"})
	require.NoError(t, err)

	state, err := eng.ExecutionState(ctx, executionID)
	require.NoError(t, err)

	deadline := time.Now().UTC().Add(-time.Minute)
	state.WorkflowTimeout = &deadline
	require.NoError(t, eng.SaveExecutionState(ctx, executionID, state))

	require.NoError(t, eng.ExecuteWorkflow(ctx, executionID))

	execution, err := p.Executions().GetByID(ctx, executionID)
	require.NoError(t, err)

	// Workflow timeouts are never retried.
	assert.Equal(t, models.ExecutionStatusFailed, execution.Status)
}

func TestEngine_PauseResume(t *testing.T) {
	t.Parallel()

	eng, p := newTestEngine(t)
	ctx := context.Background()

	saveTwoNodeWorkflow(t, p, "wf-1", map[string]any{})

	executionID, err := eng.CreateExecution(ctx, "wf-1", models.TriggerData{Type: "manual"})
	require.NoError(t, err)

	require.NoError(t, eng.PauseExecution(ctx, executionID))

	execution, err := p.Executions().GetByID(ctx, executionID)
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusPaused, execution.Status)

	// Pausing a paused execution is a no-op.
	require.NoError(t, eng.PauseExecution(ctx, executionID))

	require.NoError(t, eng.ResumeExecution(ctx, executionID))

	execution, err = p.Executions().GetByID(ctx, executionID)
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusRunning, execution.Status)

	// Resuming a running execution is a no-op.
	require.NoError(t, eng.ResumeExecution(ctx, executionID))
}

func TestEngine_TransitionStatus_StaleVersionConflicts(t *testing.T) {
	t.Parallel()

	eng, p := newTestEngine(t)
	ctx := context.Background()

	saveTwoNodeWorkflow(t, p, "wf-1", map[string]any{})

	executionID, err := eng.CreateExecution(ctx, "wf-1", models.TriggerData{Type: "manual"})
	require.NoError(t, err)

	execution, err := p.Executions().GetByID(ctx, executionID)
	require.NoError(t, err)

	// First transition with the current version wins.
	require.NoError(t, p.Executions().TransitionStatus(ctx, executionID,
		models.ExecutionStatusRunning, models.ExecutionStatusRunning, execution.Version))

	// Second transition against the same snapshot loses.
	err = p.Executions().TransitionStatus(ctx, executionID,
		models.ExecutionStatusRunning, models.ExecutionStatusPaused, execution.Version)
	assert.True(t, persistence.IsExecutionConflict(err))
}

func TestEngine_ExecutionState_RoundTrip(t *testing.T) {
	t.Parallel()

	eng, p := newTestEngine(t)
	ctx := context.Background()

	saveTwoNodeWorkflow(t, p, "wf-1", map[string]any{})

	executionID, err := eng.CreateExecution(ctx, "wf-1", models.TriggerData{Type: "manual"})
	require.NoError(t, err)

	state, err := eng.ExecutionState(ctx, executionID)
	require.NoError(t, err)

	state.SetVariable("global", "customer", "acme")
	require.NoError(t, eng.SaveExecutionState(ctx, executionID, state))

	reloaded, err := eng.ExecutionState(ctx, executionID)
	require.NoError(t, err)

	value, ok := reloaded.Variable("global", "customer")
	require.True(t, ok)
	assert.Equal(t, "acme", value)
	assert.Equal(t, "n1", reloaded.CurrentNodeID)
}

func TestRetryDue(t *testing.T) {
	t.Parallel()

	now := time.Now().UTC()

	execution := &models.WorkflowExecution{State: models.NewExecutionState("n1", now)}
	assert.True(t, RetryDue(execution, now))

	future := now.Add(time.Minute)
	execution.State.RetryAt = &future
	assert.False(t, RetryDue(execution, now))

	past := now.Add(-time.Minute)
	execution.State.RetryAt = &past
	assert.True(t, RetryDue(execution, now))
}
