// Package persistence provides the data storage abstraction for workflows,
// executions, schedules, signals and webhook subscriptions.
package persistence

import (
	"context"
	"time"

	"github.com/loomworks/loom/pkg/models"
)

// Persistence is the storage boundary of the engine. Implementations must be
// safe for concurrent use.
type Persistence interface {
	Workflows() WorkflowRepository
	Executions() ExecutionRepository
	Schedules() ScheduleRepository
	Signals() SignalRepository
	WebhookSubscriptions() WebhookSubscriptionRepository

	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}

// WorkflowRepository stores workflow definitions.
type WorkflowRepository interface {
	Save(ctx context.Context, workflow *models.Workflow) error
	GetByID(ctx context.Context, id string) (*models.Workflow, error)
	GetAll(ctx context.Context) ([]*models.Workflow, error)
	Delete(ctx context.Context, id string) error
}

// ExecutionRepository stores workflow executions and their embedded state.
type ExecutionRepository interface {
	Save(ctx context.Context, execution *models.WorkflowExecution) error
	GetByID(ctx context.Context, id string) (*models.WorkflowExecution, error)

	// GetByStatus returns executions with the given status in insertion
	// (started_at) order, bounded by limit. limit <= 0 means no bound.
	GetByStatus(ctx context.Context, status models.ExecutionStatus, limit int) ([]*models.WorkflowExecution, error)

	// RunningCountByOwner counts running executions across all of an
	// owner's workflows.
	RunningCountByOwner(ctx context.Context, owner string) (int, error)

	// GetByIdempotencyKey returns the most recent execution whose trigger
	// data carries the key and that started at or after since, or
	// ErrExecutionNotFound.
	GetByIdempotencyKey(ctx context.Context, key string, since time.Time) (*models.WorkflowExecution, error)

	// TransitionStatus performs a compare-and-set status transition: the
	// update applies only when the stored status and version still match.
	// Returns ErrExecutionConflict when the race is lost.
	TransitionStatus(ctx context.Context, id string, from, to models.ExecutionStatus, version int) error
}

// ScheduleRepository stores cron schedules with precomputed next run times.
type ScheduleRepository interface {
	Save(ctx context.Context, schedule *models.Schedule) error
	GetByID(ctx context.Context, id string) (*models.Schedule, error)
	GetByWorkflowID(ctx context.Context, workflowID string) ([]*models.Schedule, error)

	// Due returns active schedules with next_run_at <= now, bounded by
	// limit. Ordering beyond "due" is not guaranteed.
	Due(ctx context.Context, now time.Time, limit int) ([]*models.Schedule, error)

	Delete(ctx context.Context, id string) error
}

// SignalRepository stores the append-only signal log of executions.
type SignalRepository interface {
	Append(ctx context.Context, signal *models.Signal) error
	GetByID(ctx context.Context, id string) (*models.Signal, error)

	// Pending returns unprocessed signals for the execution in received
	// order, optionally filtered by signal type (empty matches all).
	Pending(ctx context.Context, executionID, signalType string) ([]*models.Signal, error)

	// MarkProcessed flips a signal to processed. One-way: already-processed
	// signals stay processed.
	MarkProcessed(ctx context.Context, id string) error
}

// WebhookSubscriptionRepository stores webhook path registrations.
type WebhookSubscriptionRepository interface {
	Save(ctx context.Context, sub *models.WebhookSubscription) error
	GetByPath(ctx context.Context, path string) (*models.WebhookSubscription, error)
	GetByWorkflowID(ctx context.Context, workflowID string) ([]*models.WebhookSubscription, error)
	Delete(ctx context.Context, id string) error
}
