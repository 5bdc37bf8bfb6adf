// Package engine implements the workflow execution engine: it creates
// executions, drives node execution through registered activities, persists
// execution state, and applies the retry, timeout, idempotency, priority
// and resource-limit policies.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/loomworks/loom/pkg/cache"
	"github.com/loomworks/loom/pkg/eventbus"
	"github.com/loomworks/loom/pkg/events"
	"github.com/loomworks/loom/pkg/models"
	"github.com/loomworks/loom/pkg/persistence"
	"github.com/loomworks/loom/pkg/registry"
)

type Engine struct {
	persistence persistence.Persistence
	registry    *registry.Registry
	stateCache  cache.ExecutionCache
	bus         eventbus.EventBus
	logger      *slog.Logger

	retryPolicy    RetryPolicy
	idempotency    *IdempotencyManager
	limits         *LimitsManager
	timeouts       *TimeoutManager
	prioritization *PrioritizationManager
	signals        *SignalService
}

// Option configures engine policies at construction.
type Option func(*engineConfig)

type engineConfig struct {
	retryPolicy   RetryPolicy
	maxConcurrent int
	dedupWindow   time.Duration
	keyCache      *KeyCache
}

func WithRetryPolicy(policy RetryPolicy) Option {
	return func(c *engineConfig) {
		c.retryPolicy = policy
	}
}

func WithMaxConcurrentExecutions(limit int) Option {
	return func(c *engineConfig) {
		c.maxConcurrent = limit
	}
}

func WithDedupWindow(window time.Duration) Option {
	return func(c *engineConfig) {
		c.dedupWindow = window
	}
}

// WithKeyCache injects an idempotency key cache, letting tests substitute a
// fresh instance.
func WithKeyCache(keyCache *KeyCache) Option {
	return func(c *engineConfig) {
		c.keyCache = keyCache
	}
}

// NewEngine wires the engine with its managers. The event bus may be nil;
// lifecycle publishing is best-effort and never aborts engine operations.
func NewEngine(
	p persistence.Persistence,
	reg *registry.Registry,
	stateCache cache.ExecutionCache,
	bus eventbus.EventBus,
	logger *slog.Logger,
	opts ...Option,
) *Engine {
	config := engineConfig{
		retryPolicy:   DefaultRetryPolicy(),
		maxConcurrent: DefaultMaxConcurrentExecutions,
		dedupWindow:   DefaultDedupWindow,
	}

	for _, opt := range opts {
		opt(&config)
	}

	if config.keyCache == nil {
		config.keyCache = NewKeyCache(config.dedupWindow)
	}

	engine := &Engine{
		persistence: p,
		registry:    reg,
		stateCache:  stateCache,
		bus:         bus,
		logger:      logger.With("module", "engine"),
		retryPolicy: config.retryPolicy,
	}

	engine.idempotency = NewIdempotencyManager(p.Executions(), config.keyCache, config.dedupWindow, engine.logger)
	engine.limits = NewLimitsManager(p.Executions(), config.maxConcurrent)
	engine.timeouts = NewTimeoutManager(engine)
	engine.prioritization = NewPrioritizationManager(p.Executions())
	engine.signals = NewSignalService(p, bus, engine.logger)

	return engine
}

func (e *Engine) RetryPolicy() RetryPolicy {
	return e.retryPolicy
}

func (e *Engine) Limits() *LimitsManager {
	return e.limits
}

func (e *Engine) Timeouts() *TimeoutManager {
	return e.timeouts
}

func (e *Engine) Prioritization() *PrioritizationManager {
	return e.prioritization
}

func (e *Engine) Signals() *SignalService {
	return e.signals
}

// CreateOption adjusts how one execution is created.
type CreateOption func(*createConfig)

type createConfig struct {
	idempotent bool
	limits     models.ResourceLimits
}

// WithoutIdempotency always creates a fresh execution, skipping duplicate
// detection. Scheduled triggers use this: every fire is a distinct run.
func WithoutIdempotency() CreateOption {
	return func(c *createConfig) {
		c.idempotent = false
	}
}

// WithResourceLimits stamps advisory resource limits into the new
// execution's state.
func WithResourceLimits(limits models.ResourceLimits) CreateOption {
	return func(c *createConfig) {
		c.limits = limits
	}
}

// CreateExecution creates one run of a workflow. By default it is
// idempotent: a trigger logically identical to one already seen inside the
// dedup window returns the existing execution ID instead of creating a
// duplicate row.
func (e *Engine) CreateExecution(ctx context.Context, workflowID string, trigger models.TriggerData, opts ...CreateOption) (string, error) {
	config := createConfig{idempotent: true}
	for _, opt := range opts {
		opt(&config)
	}

	workflow, err := e.persistence.Workflows().GetByID(ctx, workflowID)
	if err != nil {
		return "", err
	}

	if !workflow.Active {
		return "", persistence.NewWorkflowError("CreateExecution", workflowID, persistence.ErrWorkflowInactive)
	}

	if err := e.limits.EnforceUserLimits(ctx, workflow.Owner); err != nil {
		return "", err
	}

	if config.idempotent {
		if trigger.IdempotencyKey == "" {
			trigger.IdempotencyKey = GenerateKey(workflowID, trigger.Payload, workflow.Owner)
		}

		existingID, err := e.idempotency.CheckDuplicate(ctx, trigger.IdempotencyKey)
		if err != nil {
			return "", err
		}

		if existingID != "" {
			e.logger.InfoContext(ctx, "Returning existing execution for duplicate trigger",
				"workflow_id", workflowID, "execution_id", existingID)

			return existingID, nil
		}
	}

	now := time.Now().UTC()

	entryNodeID := ""
	if entry := workflow.EntryNode(); entry != nil {
		entryNodeID = entry.ID
	}

	state := models.NewExecutionState(entryNodeID, now)
	state.Priority = models.ParsePriority(trigger.Priority)
	e.limits.ApplyExecutionLimits(state, config.limits)

	execution := &models.WorkflowExecution{
		ID:          uuid.New().String(),
		WorkflowID:  workflowID,
		Owner:       workflow.Owner,
		Status:      models.ExecutionStatusRunning,
		TriggerData: trigger,
		State:       state,
		Version:     1,
		StartedAt:   now,
	}

	if err := e.persistence.Executions().Save(ctx, execution); err != nil {
		return "", err
	}

	if config.idempotent {
		e.idempotency.Register(trigger.IdempotencyKey, execution.ID)
	}

	e.cacheState(ctx, execution.ID, state)
	e.publish(ctx, execution.ID, events.ExecutionStarted{
		BaseEvent:   e.baseEvent(events.ExecutionStartedEvent, execution),
		TriggerType: trigger.Type,
	})

	e.logger.InfoContext(ctx, "Created execution",
		"workflow_id", workflowID, "execution_id", execution.ID, "trigger_type", trigger.Type)

	return execution.ID, nil
}

// ExecutionState loads an execution's state, preferring the TTL cache and
// falling back to the persisted row.
func (e *Engine) ExecutionState(ctx context.Context, executionID string) (*models.ExecutionState, error) {
	if e.stateCache != nil {
		state, err := e.stateCache.Get(ctx, executionID)
		if err != nil {
			e.logger.WarnContext(ctx, "Execution state cache read failed",
				"execution_id", executionID, "error", err)
		} else if state != nil {
			return state, nil
		}
	}

	execution, err := e.persistence.Executions().GetByID(ctx, executionID)
	if err != nil {
		return nil, err
	}

	if execution.State == nil {
		return nil, persistence.NewExecutionError("ExecutionState", executionID, persistence.ErrExecutionNotFound)
	}

	e.cacheState(ctx, executionID, execution.State)

	return execution.State, nil
}

// SaveExecutionState persists the state on the execution row, then
// refreshes the cache. The store write is the durability point.
func (e *Engine) SaveExecutionState(ctx context.Context, executionID string, state *models.ExecutionState) error {
	execution, err := e.persistence.Executions().GetByID(ctx, executionID)
	if err != nil {
		return err
	}

	execution.State = state

	if err := e.persistence.Executions().Save(ctx, execution); err != nil {
		return err
	}

	e.cacheState(ctx, executionID, state)

	return nil
}

// ExecuteNode runs one node through its registered activity. Activity
// errors and panics are captured into a failed result; this never
// propagates a node failure as an error.
func (e *Engine) ExecuteNode(ctx context.Context, node *models.WorkflowNode, state *models.ExecutionState, executionID string) *models.NodeExecutionResult {
	if !node.Enabled {
		return &models.NodeExecutionResult{
			NodeID: node.ID,
			Status: models.NodeResultSuccess,
			Output: map[string]any{"skipped": true},
		}
	}

	started := time.Now()

	nodeCtx := ctx

	if node.TimeoutSeconds > 0 {
		timeout := time.Duration(node.TimeoutSeconds) * time.Second
		e.timeouts.SetNodeTimeout(state, node.ID, timeout)

		var cancel context.CancelFunc

		nodeCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	output, err := e.runActivity(nodeCtx, node, state, executionID)

	duration := time.Since(started)

	if err != nil {
		e.logger.WarnContext(ctx, "Node execution failed",
			"execution_id", executionID, "node_id", node.ID, "node_type", node.Type, "error", err)
		e.publishNodeFailed(ctx, executionID, node.ID, err.Error(), duration)

		return &models.NodeExecutionResult{
			NodeID: node.ID,
			Status: models.NodeResultFailed,
			Error:  err.Error(),
		}
	}

	e.publishNodeFinished(ctx, executionID, node.ID, output, duration)

	return &models.NodeExecutionResult{
		NodeID: node.ID,
		Status: models.NodeResultSuccess,
		Output: output,
	}
}

// runActivity isolates the activity call so a panicking handler becomes an
// ordinary failure.
func (e *Engine) runActivity(ctx context.Context, node *models.WorkflowNode, state *models.ExecutionState, executionID string) (output map[string]any, err error) {
	defer func() {
		if r := recover(); r != nil {
			output = nil
			err = fmt.Errorf("activity panicked: %v", r)
		}
	}()

	activity, err := e.registry.CreateActivity(node.Type, node.Config)
	if err != nil {
		return nil, err
	}

	return activity.Execute(ctx, state, executionID)
}

// ExecuteWorkflow drives a running execution's nodes forward until
// completion, failure, or a timeout. Intended to be called by the worker
// after it has claimed the execution.
func (e *Engine) ExecuteWorkflow(ctx context.Context, executionID string) error {
	execution, err := e.persistence.Executions().GetByID(ctx, executionID)
	if err != nil {
		return err
	}

	if execution.Status != models.ExecutionStatusRunning {
		return nil
	}

	workflow, err := e.persistence.Workflows().GetByID(ctx, execution.WorkflowID)
	if err != nil {
		return err
	}

	state := execution.State
	if state == nil {
		state = models.NewExecutionState("", execution.StartedAt)
	}

	for state.CurrentNodeID != "" {
		if err := ctx.Err(); err != nil {
			return err
		}

		now := time.Now().UTC()
		if e.timeouts.CheckWorkflowTimeout(state, now) {
			e.publishTimeout(ctx, execution, "", *state.WorkflowTimeout)

			return e.timeouts.HandleWorkflowTimeout(ctx, executionID)
		}

		node := workflow.NodeByID(state.CurrentNodeID)
		if node == nil {
			return e.FailExecution(ctx, executionID,
				fmt.Sprintf("node %s not found in workflow %s", state.CurrentNodeID, workflow.ID), false)
		}

		result := e.ExecuteNode(ctx, node, state, executionID)
		state.RecordResult(result)

		if result.Status == models.NodeResultFailed {
			if err := e.SaveExecutionState(ctx, executionID, state); err != nil {
				return err
			}

			return e.FailExecution(ctx, executionID, result.Error, true)
		}

		if next := workflow.NextNode(node.ID); next != nil {
			state.CurrentNodeID = next.ID
		} else {
			state.CurrentNodeID = ""
		}

		if err := e.SaveExecutionState(ctx, executionID, state); err != nil {
			return err
		}
	}

	return e.CompleteExecution(ctx, executionID)
}

// CompleteExecution transitions a running execution to completed.
func (e *Engine) CompleteExecution(ctx context.Context, executionID string) error {
	execution, err := e.persistence.Executions().GetByID(ctx, executionID)
	if err != nil {
		return err
	}

	if execution.Status != models.ExecutionStatusRunning {
		return nil
	}

	err = e.persistence.Executions().TransitionStatus(ctx, executionID,
		models.ExecutionStatusRunning, models.ExecutionStatusCompleted, execution.Version)
	if err != nil {
		return err
	}

	e.publish(ctx, executionID, events.ExecutionCompleted{
		BaseEvent: e.baseEvent(events.ExecutionCompletedEvent, execution),
		Duration:  time.Since(execution.StartedAt),
	})

	e.logger.InfoContext(ctx, "Execution completed",
		"workflow_id", execution.WorkflowID, "execution_id", executionID)

	return nil
}

// PauseExecution transitions running to paused. Pausing a non-running
// execution is a no-op.
func (e *Engine) PauseExecution(ctx context.Context, executionID string) error {
	execution, err := e.persistence.Executions().GetByID(ctx, executionID)
	if err != nil {
		return err
	}

	if execution.Status != models.ExecutionStatusRunning {
		return nil
	}

	err = e.persistence.Executions().TransitionStatus(ctx, executionID,
		models.ExecutionStatusRunning, models.ExecutionStatusPaused, execution.Version)
	if err != nil {
		return err
	}

	e.publish(ctx, executionID, events.ExecutionPaused{
		BaseEvent: e.baseEvent(events.ExecutionPausedEvent, execution),
	})

	return nil
}

// ResumeExecution transitions paused back to running. Resuming a non-paused
// execution is a no-op.
func (e *Engine) ResumeExecution(ctx context.Context, executionID string) error {
	execution, err := e.persistence.Executions().GetByID(ctx, executionID)
	if err != nil {
		return err
	}

	if execution.Status != models.ExecutionStatusPaused {
		return nil
	}

	err = e.persistence.Executions().TransitionStatus(ctx, executionID,
		models.ExecutionStatusPaused, models.ExecutionStatusRunning, execution.Version)
	if err != nil {
		return err
	}

	e.publish(ctx, executionID, events.ExecutionResumed{
		BaseEvent: e.baseEvent(events.ExecutionResumedEvent, execution),
	})

	return nil
}

// SignalExecution appends a signal to the execution's log. Signals do not
// drive state transitions here; the worker consumes them on its next poll.
func (e *Engine) SignalExecution(ctx context.Context, executionID, signalType string, data map[string]any) (string, error) {
	signal, err := e.signals.Emit(ctx, executionID, signalType, data)
	if err != nil {
		return "", err
	}

	return signal.ID, nil
}

// FailExecution marks an execution failed. With scheduleRetry, and while
// the retry policy allows another attempt, the execution instead stays
// runnable with a future retry time stamped into its state.
func (e *Engine) FailExecution(ctx context.Context, executionID, message string, scheduleRetry bool) error {
	execution, err := e.persistence.Executions().GetByID(ctx, executionID)
	if err != nil {
		return err
	}

	state := execution.State
	if state == nil {
		state = models.NewExecutionState("", execution.StartedAt)
		execution.State = state
	}

	if scheduleRetry && e.retryPolicy.ShouldRetry(state.RetryCount) {
		retryAt := e.retryPolicy.NextRetryAt(state.RetryCount, time.Now().UTC())
		state.RetryCount++
		state.RetryAt = &retryAt
		execution.Error = message

		if err := e.persistence.Executions().Save(ctx, execution); err != nil {
			return err
		}

		e.cacheState(ctx, executionID, state)
		e.publish(ctx, executionID, events.ExecutionRetryScheduled{
			BaseEvent:  e.baseEvent(events.ExecutionRetryEvent, execution),
			RetryCount: state.RetryCount,
			RetryAt:    retryAt,
		})

		e.logger.InfoContext(ctx, "Scheduled execution retry",
			"execution_id", executionID, "retry_count", state.RetryCount, "retry_at", retryAt)

		return nil
	}

	if execution.Status.Terminal() {
		return nil
	}

	execution.Error = message
	if err := e.persistence.Executions().Save(ctx, execution); err != nil {
		return err
	}

	err = e.persistence.Executions().TransitionStatus(ctx, executionID,
		execution.Status, models.ExecutionStatusFailed, execution.Version)
	if err != nil {
		return err
	}

	if e.stateCache != nil {
		if err := e.stateCache.Delete(ctx, executionID); err != nil {
			e.logger.WarnContext(ctx, "Failed to drop cached state", "execution_id", executionID, "error", err)
		}
	}

	e.publish(ctx, executionID, events.ExecutionFailed{
		BaseEvent: e.baseEvent(events.ExecutionFailedEvent, execution),
		Error:     message,
		Duration:  time.Since(execution.StartedAt),
	})

	e.logger.WarnContext(ctx, "Execution failed",
		"workflow_id", execution.WorkflowID, "execution_id", executionID, "error", message)

	return nil
}

// RetryDue reports whether an execution's scheduled retry time has passed.
// Executions without a pending retry are always due.
func RetryDue(execution *models.WorkflowExecution, now time.Time) bool {
	if execution.State == nil || execution.State.RetryAt == nil {
		return true
	}

	return !now.Before(*execution.State.RetryAt)
}

func (e *Engine) cacheState(ctx context.Context, executionID string, state *models.ExecutionState) {
	if e.stateCache == nil {
		return
	}

	if err := e.stateCache.Set(ctx, executionID, state); err != nil {
		e.logger.WarnContext(ctx, "Execution state cache write failed",
			"execution_id", executionID, "error", err)
	}
}

func (e *Engine) baseEvent(eventType events.EventType, execution *models.WorkflowExecution) events.BaseEvent {
	id := ""
	if e.bus != nil {
		id = e.bus.GenerateID()
	}

	return events.BaseEvent{
		ID:          id,
		Type:        eventType,
		Timestamp:   time.Now().UTC(),
		WorkflowID:  execution.WorkflowID,
		ExecutionID: execution.ID,
	}
}

func (e *Engine) publish(ctx context.Context, key string, event eventbus.Event) {
	if e.bus == nil {
		return
	}

	if err := e.bus.Publish(ctx, key, event); err != nil {
		e.logger.WarnContext(ctx, "Failed to publish lifecycle event",
			"event_type", event.GetType(), "key", key, "error", err)
	}
}

func (e *Engine) publishNodeFinished(ctx context.Context, executionID, nodeID string, output map[string]any, duration time.Duration) {
	if e.bus == nil {
		return
	}

	e.publish(ctx, executionID, events.NodeFinished{
		BaseEvent: events.BaseEvent{
			ID:          e.bus.GenerateID(),
			Type:        events.NodeFinishedEvent,
			Timestamp:   time.Now().UTC(),
			ExecutionID: executionID,
		},
		NodeID:     nodeID,
		Output:     output,
		DurationMs: duration.Milliseconds(),
	})
}

func (e *Engine) publishNodeFailed(ctx context.Context, executionID, nodeID, message string, duration time.Duration) {
	if e.bus == nil {
		return
	}

	e.publish(ctx, executionID, events.NodeFailed{
		BaseEvent: events.BaseEvent{
			ID:          e.bus.GenerateID(),
			Type:        events.NodeFailedEvent,
			Timestamp:   time.Now().UTC(),
			ExecutionID: executionID,
		},
		NodeID:     nodeID,
		Error:      message,
		DurationMs: duration.Milliseconds(),
	})
}

func (e *Engine) publishTimeout(ctx context.Context, execution *models.WorkflowExecution, nodeID string, deadline time.Time) {
	e.publish(ctx, execution.ID, events.ExecutionTimeout{
		BaseEvent: e.baseEvent(events.ExecutionTimeoutEvent, execution),
		NodeID:    nodeID,
		Deadline:  deadline,
	})
}
