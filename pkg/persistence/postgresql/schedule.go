package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/loomworks/loom/pkg/models"
	"github.com/loomworks/loom/pkg/persistence"
)

// ScheduleRepository handles workflow schedule database operations.
type ScheduleRepository struct {
	db *sql.DB
}

func (r *ScheduleRepository) Save(ctx context.Context, schedule *models.Schedule) error {
	query := `
		INSERT INTO workflow_schedules (
			id, workflow_id, cron_expression, next_run_at, last_run_at,
			active, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			cron_expression = EXCLUDED.cron_expression,
			next_run_at = EXCLUDED.next_run_at,
			last_run_at = EXCLUDED.last_run_at,
			active = EXCLUDED.active,
			updated_at = EXCLUDED.updated_at
	`

	_, err := r.db.ExecContext(ctx, query,
		schedule.ID,
		schedule.WorkflowID,
		schedule.CronExpression,
		schedule.NextRunAt,
		schedule.LastRunAt,
		schedule.Active,
		schedule.CreatedAt,
		schedule.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save schedule %s: %w", schedule.ID, err)
	}

	return nil
}

const scheduleColumns = `
	id, workflow_id, cron_expression, next_run_at, last_run_at,
	active, created_at, updated_at
`

func (r *ScheduleRepository) GetByID(ctx context.Context, id string) (*models.Schedule, error) {
	query := `SELECT ` + scheduleColumns + ` FROM workflow_schedules WHERE id = $1`

	schedule, err := scanSchedule(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.ErrScheduleNotFound
		}

		return nil, fmt.Errorf("failed to get schedule %s: %w", id, err)
	}

	return schedule, nil
}

func (r *ScheduleRepository) GetByWorkflowID(ctx context.Context, workflowID string) ([]*models.Schedule, error) {
	query := `SELECT ` + scheduleColumns + ` FROM workflow_schedules WHERE workflow_id = $1 ORDER BY created_at`

	return r.querySchedules(ctx, query, workflowID)
}

func (r *ScheduleRepository) Due(ctx context.Context, now time.Time, limit int) ([]*models.Schedule, error) {
	query := `SELECT ` + scheduleColumns + `
		FROM workflow_schedules
		WHERE active AND next_run_at <= $1`

	args := []any{now}

	if limit > 0 {
		query += ` LIMIT $2`

		args = append(args, limit)
	}

	return r.querySchedules(ctx, query, args...)
}

func (r *ScheduleRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM workflow_schedules WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete schedule %s: %w", id, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete schedule %s: %w", id, err)
	}

	if affected == 0 {
		return persistence.ErrScheduleNotFound
	}

	return nil
}

func (r *ScheduleRepository) querySchedules(ctx context.Context, query string, args ...any) ([]*models.Schedule, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query schedules: %w", err)
	}
	defer rows.Close()

	var schedules []*models.Schedule

	for rows.Next() {
		schedule, err := scanSchedule(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan schedule: %w", err)
		}

		schedules = append(schedules, schedule)
	}

	return schedules, rows.Err()
}

func scanSchedule(row rowScanner) (*models.Schedule, error) {
	var (
		schedule  models.Schedule
		lastRunAt sql.NullTime
	)

	err := row.Scan(
		&schedule.ID,
		&schedule.WorkflowID,
		&schedule.CronExpression,
		&schedule.NextRunAt,
		&lastRunAt,
		&schedule.Active,
		&schedule.CreatedAt,
		&schedule.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if lastRunAt.Valid {
		schedule.LastRunAt = &lastRunAt.Time
	}

	return &schedule, nil
}
