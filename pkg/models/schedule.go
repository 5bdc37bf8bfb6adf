package models

import (
	"errors"
	"time"

	"github.com/robfig/cron/v3"
)

// Schedule is a recurring trigger for a workflow, stored with a precomputed
// next run time so the schedule poller can query due entries directly
// instead of keeping per-schedule timers.
type Schedule struct {
	// ID uniquely identifies this schedule entry
	ID string `json:"id" validate:"required"`

	// WorkflowID identifies the workflow this schedule triggers
	WorkflowID string `json:"workflow_id" validate:"required"`

	// CronExpression defines when this schedule fires.
	// Standard 5-field cron format (minute hour day month weekday).
	CronExpression string `json:"cron_expression" validate:"required"`

	// NextRunAt is the precomputed next fire time. While the schedule is
	// active this is always the earliest future fire time consistent with
	// the cron expression as of the last update.
	NextRunAt time.Time `json:"next_run_at"`

	// LastRunAt is when the schedule last triggered an execution
	LastRunAt *time.Time `json:"last_run_at,omitempty"`

	// Active indicates if this schedule is processed by the poller
	Active bool `json:"active"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ErrInvalidSchedule is returned when schedule validation fails.
var ErrInvalidSchedule = errors.New("invalid schedule configuration")

// CronParser is the shared 5-field parser. No seconds field: existing
// schedules were written against classic UNIX cron semantics.
var CronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// NewSchedule creates a schedule with its first fire time precomputed.
func NewSchedule(id, workflowID, cronExpression string) (*Schedule, error) {
	now := time.Now().UTC()
	schedule := &Schedule{
		ID:             id,
		WorkflowID:     workflowID,
		CronExpression: cronExpression,
		CreatedAt:      now,
		UpdatedAt:      now,
		Active:         true,
	}

	if err := schedule.calculateNextRunAt(now); err != nil {
		return nil, err
	}

	return schedule, nil
}

// Advance records a fire at the given time and recomputes NextRunAt from it.
func (s *Schedule) Advance(firedAt time.Time) error {
	fired := firedAt
	s.LastRunAt = &fired

	return s.calculateNextRunAt(firedAt)
}

// UpdateNextRunAt recomputes the next fire time from the current time.
func (s *Schedule) UpdateNextRunAt() error {
	return s.calculateNextRunAt(time.Now().UTC())
}

func (s *Schedule) calculateNextRunAt(referenceTime time.Time) error {
	cronSchedule, err := CronParser.Parse(s.CronExpression)
	if err != nil {
		return err
	}

	s.NextRunAt = cronSchedule.Next(referenceTime)
	s.UpdatedAt = time.Now().UTC()

	return nil
}

// IsDue checks if this schedule should fire at the given time.
func (s *Schedule) IsDue(now time.Time) bool {
	return s.Active && !s.NextRunAt.After(now)
}

// Validate performs validation on the schedule fields.
func (s *Schedule) Validate() error {
	if s.ID == "" || s.WorkflowID == "" || s.CronExpression == "" {
		return ErrInvalidSchedule
	}

	_, err := CronParser.Parse(s.CronExpression)

	return err
}
