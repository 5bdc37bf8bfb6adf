// Package scheduler implements the centralized cron scheduler: schedules
// are stored with a precomputed next run time and a single poller queries
// due entries and triggers executions, regardless of each schedule's cron
// expression.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/loomworks/loom/pkg/engine"
	"github.com/loomworks/loom/pkg/models"
	"github.com/loomworks/loom/pkg/persistence"
)

// ErrInvalidCronExpression is returned when a cron expression does not
// parse as 5-field cron.
var ErrInvalidCronExpression = errors.New("invalid cron expression")

// SchedulerError wraps schedule processing failures with the schedule ID.
type SchedulerError struct {
	Op         string
	ScheduleID string
	Err        error
}

func (e *SchedulerError) Error() string {
	return fmt.Sprintf("scheduler %s failed for schedule %s: %v", e.Op, e.ScheduleID, e.Err)
}

func (e *SchedulerError) Unwrap() error {
	return e.Err
}

// Scheduler manages workflow schedules and drives scheduled executions.
type Scheduler struct {
	persistence persistence.Persistence
	engine      *engine.Engine
	logger      *slog.Logger
}

func NewScheduler(p persistence.Persistence, eng *engine.Engine, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		persistence: p,
		engine:      eng,
		logger:      logger.With("module", "scheduler"),
	}
}

// ValidateCron checks a 5-field cron expression without registering it.
func ValidateCron(expression string) error {
	if _, err := models.CronParser.Parse(expression); err != nil {
		return fmt.Errorf("%w: %q: %v", ErrInvalidCronExpression, expression, err)
	}

	return nil
}

// NextRun returns the first fire time strictly after the given time.
func NextRun(expression string, after time.Time) (time.Time, error) {
	cronSchedule, err := models.CronParser.Parse(expression)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q: %v", ErrInvalidCronExpression, expression, err)
	}

	return cronSchedule.Next(after), nil
}

// CreateSchedule registers a recurring trigger for a workflow. The workflow
// must exist; the schedule starts active with its first fire time
// precomputed.
func (s *Scheduler) CreateSchedule(ctx context.Context, workflowID, cronExpression string) (*models.Schedule, error) {
	if _, err := s.persistence.Workflows().GetByID(ctx, workflowID); err != nil {
		return nil, err
	}

	schedule, err := models.NewSchedule(uuid.New().String(), workflowID, cronExpression)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrInvalidCronExpression, cronExpression, err)
	}

	if err := s.persistence.Schedules().Save(ctx, schedule); err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "Created schedule",
		"schedule_id", schedule.ID,
		"workflow_id", workflowID,
		"cron_expression", cronExpression,
		"next_run_at", schedule.NextRunAt)

	return schedule, nil
}

// DueSchedules returns active schedules whose next run time has passed,
// earliest first. A limit of 0 means unbounded.
func (s *Scheduler) DueSchedules(ctx context.Context, now time.Time, limit int) ([]*models.Schedule, error) {
	return s.persistence.Schedules().Due(ctx, now, limit)
}

// TriggerScheduledExecution fires one schedule: it creates an execution and
// advances the schedule's next run time. Scheduled runs skip idempotency on
// purpose, every fire is a distinct execution.
func (s *Scheduler) TriggerScheduledExecution(ctx context.Context, schedule *models.Schedule) (string, error) {
	firedAt := time.Now().UTC()

	trigger := models.TriggerData{
		Type:   "schedule",
		Source: schedule.ID,
		Payload: map[string]any{
			"cron_expression": schedule.CronExpression,
			"scheduled_for":   schedule.NextRunAt.Format(time.RFC3339),
			"fired_at":        firedAt.Format(time.RFC3339),
		},
	}

	executionID, err := s.engine.CreateExecution(ctx, schedule.WorkflowID, trigger, engine.WithoutIdempotency())
	if err != nil {
		return "", &SchedulerError{Op: "trigger", ScheduleID: schedule.ID, Err: err}
	}

	if err := schedule.Advance(firedAt); err != nil {
		return executionID, &SchedulerError{Op: "advance", ScheduleID: schedule.ID, Err: err}
	}

	if err := s.persistence.Schedules().Save(ctx, schedule); err != nil {
		return executionID, &SchedulerError{Op: "save", ScheduleID: schedule.ID, Err: err}
	}

	s.logger.InfoContext(ctx, "Triggered scheduled execution",
		"schedule_id", schedule.ID,
		"workflow_id", schedule.WorkflowID,
		"execution_id", executionID,
		"next_run_at", schedule.NextRunAt)

	return executionID, nil
}

// ProcessDueSchedules fires every due schedule once. A failing schedule is
// logged and skipped so the rest still fire.
func (s *Scheduler) ProcessDueSchedules(ctx context.Context, now time.Time) error {
	dueSchedules, err := s.DueSchedules(ctx, now, 0)
	if err != nil {
		return err
	}

	if len(dueSchedules) > 0 {
		s.logger.InfoContext(ctx, "Processing due schedules", "count", len(dueSchedules))
	}

	for _, schedule := range dueSchedules {
		if _, err := s.TriggerScheduledExecution(ctx, schedule); err != nil {
			s.logger.ErrorContext(ctx, "Failed to process due schedule",
				"schedule_id", schedule.ID,
				"workflow_id", schedule.WorkflowID,
				"error", err)

			continue
		}
	}

	return nil
}

// DeactivateSchedule stops a schedule from firing without deleting it.
func (s *Scheduler) DeactivateSchedule(ctx context.Context, scheduleID string) error {
	schedule, err := s.persistence.Schedules().GetByID(ctx, scheduleID)
	if err != nil {
		return err
	}

	schedule.Active = false
	schedule.UpdatedAt = time.Now().UTC()

	return s.persistence.Schedules().Save(ctx, schedule)
}
