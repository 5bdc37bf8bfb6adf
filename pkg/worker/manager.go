// Package worker implements the polling execution worker: it claims
// runnable executions with an optimistic version check, drives them through
// the engine, and resumes paused executions that received signals.
package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/loomworks/loom/pkg/engine"
	"github.com/loomworks/loom/pkg/models"
	"github.com/loomworks/loom/pkg/otelhelper"
	"github.com/loomworks/loom/pkg/persistence"
)

const (
	DefaultPollInterval   = 5 * time.Second
	DefaultBatchSize      = 10
	DefaultMaxConcurrency = 10
)

// Manager polls for runnable executions and processes them. Multiple
// managers can share one database: the claim is an optimistic status
// transition, so an execution picked up by two pollers is only processed
// by the one whose version check wins.
type Manager struct {
	id          string
	engine      *engine.Engine
	persistence persistence.Persistence
	router      *engine.SignalRouter
	logger      *slog.Logger
	tracer      trace.Tracer

	pollInterval   time.Duration
	batchSize      int
	maxConcurrency int

	inFlight sync.WaitGroup
	slots    chan struct{}
}

type ManagerOption func(*Manager)

func WithPollInterval(interval time.Duration) ManagerOption {
	return func(m *Manager) {
		m.pollInterval = interval
	}
}

func WithBatchSize(size int) ManagerOption {
	return func(m *Manager) {
		m.batchSize = size
	}
}

func WithMaxConcurrency(limit int) ManagerOption {
	return func(m *Manager) {
		m.maxConcurrency = limit
	}
}

func WithTracer(tracer trace.Tracer) ManagerOption {
	return func(m *Manager) {
		m.tracer = tracer
	}
}

func NewManager(
	id string,
	eng *engine.Engine,
	p persistence.Persistence,
	router *engine.SignalRouter,
	logger *slog.Logger,
	opts ...ManagerOption,
) *Manager {
	manager := &Manager{
		id:             id,
		engine:         eng,
		persistence:    p,
		router:         router,
		logger:         logger.With("module", "worker", "worker_id", id),
		tracer:         noop.NewTracerProvider().Tracer("worker"),
		pollInterval:   DefaultPollInterval,
		batchSize:      DefaultBatchSize,
		maxConcurrency: DefaultMaxConcurrency,
	}

	for _, opt := range opts {
		opt(manager)
	}

	manager.slots = make(chan struct{}, manager.maxConcurrency)

	return manager
}

// Start runs the poll loop until the context is cancelled, then waits for
// in-flight executions to finish.
func (m *Manager) Start(ctx context.Context) error {
	m.logger.InfoContext(ctx, "Starting worker",
		"poll_interval", m.pollInterval,
		"batch_size", m.batchSize,
		"max_concurrency", m.maxConcurrency)

	ticker := time.NewTicker(m.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.logger.Info("Worker shutting down, waiting for in-flight executions")
			m.inFlight.Wait()
			m.logger.Info("Worker stopped")

			return nil
		case <-ticker.C:
			m.pollOnce(ctx)
		}
	}
}

// pollOnce processes one poll cycle: resume signalled executions first so
// they compete in this cycle's claim pass, then claim and run due work.
func (m *Manager) pollOnce(ctx context.Context) {
	if err := m.resumeSignalled(ctx); err != nil {
		m.logger.ErrorContext(ctx, "Failed to process paused executions", "error", err)
	}

	executions, err := m.engine.Prioritization().PrioritizedExecutions(ctx, models.ExecutionStatusRunning, m.batchSize)
	if err != nil {
		m.logger.ErrorContext(ctx, "Failed to list runnable executions", "error", err)

		return
	}

	now := time.Now().UTC()

	for _, execution := range executions {
		if !engine.RetryDue(execution, now) {
			continue
		}

		if !m.claim(ctx, execution) {
			continue
		}

		m.inFlight.Add(1)
		m.slots <- struct{}{}

		go func(executionID string) {
			defer m.inFlight.Done()
			defer func() { <-m.slots }()

			spanCtx, span := otelhelper.StartSpan(ctx, m.tracer, "worker.process_execution",
				attribute.String(otelhelper.ExecutionIDKey, executionID),
				attribute.String(otelhelper.WorkerIDKey, m.id))
			defer span.End()

			if err := m.engine.ExecuteWorkflow(spanCtx, executionID); err != nil {
				otelhelper.SetError(span, err)
				m.logger.ErrorContext(ctx, "Execution processing failed",
					"execution_id", executionID, "error", err)
			}
		}(execution.ID)
	}
}

// claim takes ownership of an execution for this cycle. The status stays
// running; the transition exists to bump the version, so a concurrent
// claim of the same snapshot loses with a conflict.
func (m *Manager) claim(ctx context.Context, execution *models.WorkflowExecution) bool {
	err := m.persistence.Executions().TransitionStatus(ctx, execution.ID,
		models.ExecutionStatusRunning, models.ExecutionStatusRunning, execution.Version)
	if err != nil {
		if persistence.IsExecutionConflict(err) {
			m.logger.DebugContext(ctx, "Execution claimed elsewhere", "execution_id", execution.ID)
		} else {
			m.logger.ErrorContext(ctx, "Failed to claim execution",
				"execution_id", execution.ID, "error", err)
		}

		return false
	}

	return true
}

// resumeSignalled routes pending signals on paused executions and resumes
// them. Signal handler outputs land in the execution's "signals" variable
// scope keyed by signal type.
func (m *Manager) resumeSignalled(ctx context.Context) error {
	paused, err := m.persistence.Executions().GetByStatus(ctx, models.ExecutionStatusPaused, 0)
	if err != nil {
		return err
	}

	for _, execution := range paused {
		signals, err := m.engine.Signals().Pending(ctx, execution.ID, "")
		if err != nil {
			m.logger.ErrorContext(ctx, "Failed to list pending signals",
				"execution_id", execution.ID, "error", err)

			continue
		}

		if len(signals) == 0 {
			continue
		}

		if err := m.applySignals(ctx, execution, signals); err != nil {
			m.logger.ErrorContext(ctx, "Failed to apply signals",
				"execution_id", execution.ID, "error", err)

			continue
		}

		if err := m.engine.ResumeExecution(ctx, execution.ID); err != nil {
			m.logger.ErrorContext(ctx, "Failed to resume execution",
				"execution_id", execution.ID, "error", err)

			continue
		}

		m.logger.InfoContext(ctx, "Resumed signalled execution",
			"execution_id", execution.ID, "signal_count", len(signals))
	}

	return nil
}

func (m *Manager) applySignals(ctx context.Context, execution *models.WorkflowExecution, signals []*models.Signal) error {
	state, err := m.engine.ExecutionState(ctx, execution.ID)
	if err != nil {
		return err
	}

	for _, signal := range signals {
		output, err := m.router.Route(ctx, signal)
		if err != nil {
			m.logger.WarnContext(ctx, "Signal handler failed",
				"execution_id", execution.ID,
				"signal_id", signal.ID,
				"signal_type", signal.Type,
				"error", err)

			continue
		}

		state.SetVariable("signals", signal.Type, output)

		if err := m.engine.Signals().MarkProcessed(ctx, signal.ID); err != nil {
			return err
		}
	}

	return m.engine.SaveExecutionState(ctx, execution.ID, state)
}
