package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/loomworks/loom/pkg/models"
	"github.com/loomworks/loom/pkg/persistence"
)

// ExecutionRepository handles workflow execution database operations.
type ExecutionRepository struct {
	db *sql.DB
}

func (r *ExecutionRepository) Save(ctx context.Context, execution *models.WorkflowExecution) error {
	triggerDataJSON, err := json.Marshal(execution.TriggerData)
	if err != nil {
		return fmt.Errorf("failed to marshal trigger data: %w", err)
	}

	stateJSON, err := json.Marshal(execution.State)
	if err != nil {
		return fmt.Errorf("failed to marshal execution state: %w", err)
	}

	query := `
		INSERT INTO workflow_executions (
			id, workflow_id, owner, status, trigger_data, execution_state,
			error_message, version, started_at, completed_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			trigger_data = EXCLUDED.trigger_data,
			execution_state = EXCLUDED.execution_state,
			error_message = EXCLUDED.error_message,
			version = EXCLUDED.version,
			completed_at = EXCLUDED.completed_at
	`

	_, err = r.db.ExecContext(ctx, query,
		execution.ID,
		execution.WorkflowID,
		execution.Owner,
		execution.Status,
		triggerDataJSON,
		stateJSON,
		execution.Error,
		execution.Version,
		execution.StartedAt,
		execution.CompletedAt,
	)
	if err != nil {
		return persistence.NewExecutionError("Save", execution.ID, err)
	}

	return nil
}

const executionColumns = `
	id, workflow_id, owner, status, trigger_data, execution_state,
	error_message, version, started_at, completed_at
`

func (r *ExecutionRepository) GetByID(ctx context.Context, id string) (*models.WorkflowExecution, error) {
	query := `SELECT ` + executionColumns + ` FROM workflow_executions WHERE id = $1`

	execution, err := scanExecution(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewExecutionError("GetByID", id, persistence.ErrExecutionNotFound)
		}

		return nil, persistence.NewExecutionError("GetByID", id, err)
	}

	return execution, nil
}

func (r *ExecutionRepository) GetByStatus(ctx context.Context, status models.ExecutionStatus, limit int) ([]*models.WorkflowExecution, error) {
	query := `SELECT ` + executionColumns + `
		FROM workflow_executions
		WHERE status = $1
		ORDER BY started_at`

	args := []any{status}

	if limit > 0 {
		query += ` LIMIT $2`

		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query executions by status: %w", err)
	}
	defer rows.Close()

	var executions []*models.WorkflowExecution

	for rows.Next() {
		execution, err := scanExecution(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan execution: %w", err)
		}

		executions = append(executions, execution)
	}

	return executions, rows.Err()
}

func (r *ExecutionRepository) RunningCountByOwner(ctx context.Context, owner string) (int, error) {
	var count int

	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM workflow_executions WHERE owner = $1 AND status = $2`,
		owner, models.ExecutionStatusRunning,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count running executions: %w", err)
	}

	return count, nil
}

func (r *ExecutionRepository) GetByIdempotencyKey(ctx context.Context, key string, since time.Time) (*models.WorkflowExecution, error) {
	query := `SELECT ` + executionColumns + `
		FROM workflow_executions
		WHERE trigger_data->>'idempotency_key' = $1 AND started_at >= $2
		ORDER BY started_at DESC
		LIMIT 1`

	execution, err := scanExecution(r.db.QueryRowContext(ctx, query, key, since))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.ErrExecutionNotFound
		}

		return nil, fmt.Errorf("failed to query execution by idempotency key: %w", err)
	}

	return execution, nil
}

// TransitionStatus performs an optimistic status transition. The row updates
// only when status and version still match; zero rows affected means the
// race was lost.
func (r *ExecutionRepository) TransitionStatus(ctx context.Context, id string, from, to models.ExecutionStatus, version int) error {
	query := `
		UPDATE workflow_executions
		SET status = $1,
		    version = version + 1,
		    completed_at = CASE WHEN $2 THEN NOW() ELSE completed_at END
		WHERE id = $3 AND status = $4 AND version = $5
	`

	result, err := r.db.ExecContext(ctx, query, to, to.Terminal(), id, from, version)
	if err != nil {
		return persistence.NewExecutionError("TransitionStatus", id, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return persistence.NewExecutionError("TransitionStatus", id, err)
	}

	if affected == 0 {
		return persistence.NewExecutionError("TransitionStatus", id, persistence.ErrExecutionConflict)
	}

	return nil
}

func scanExecution(row rowScanner) (*models.WorkflowExecution, error) {
	var (
		execution       models.WorkflowExecution
		triggerDataJSON []byte
		stateJSON       []byte
		completedAt     sql.NullTime
	)

	err := row.Scan(
		&execution.ID,
		&execution.WorkflowID,
		&execution.Owner,
		&execution.Status,
		&triggerDataJSON,
		&stateJSON,
		&execution.Error,
		&execution.Version,
		&execution.StartedAt,
		&completedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(triggerDataJSON, &execution.TriggerData); err != nil {
		return nil, fmt.Errorf("failed to unmarshal trigger data: %w", err)
	}

	if len(stateJSON) > 0 && string(stateJSON) != "null" {
		execution.State = &models.ExecutionState{}
		if err := json.Unmarshal(stateJSON, execution.State); err != nil {
			return nil, fmt.Errorf("failed to unmarshal execution state: %w", err)
		}
	}

	if completedAt.Valid {
		execution.CompletedAt = &completedAt.Time
	}

	return &execution, nil
}
