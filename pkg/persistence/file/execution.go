package file

import (
	"context"
	"encoding/json"
	"sort"
	"time"

	"github.com/loomworks/loom/pkg/models"
	"github.com/loomworks/loom/pkg/persistence"
)

const executionEntity = "executions"

// ExecutionRepository stores workflow executions as JSON files. The shared
// store mutex makes TransitionStatus atomic within one process.
type ExecutionRepository struct {
	store *Persistence
}

func (r *ExecutionRepository) Save(_ context.Context, execution *models.WorkflowExecution) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	return r.store.writeJSON(executionEntity, execution.ID, execution)
}

func (r *ExecutionRepository) GetByID(_ context.Context, id string) (*models.WorkflowExecution, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	return r.getLocked(id)
}

func (r *ExecutionRepository) getLocked(id string) (*models.WorkflowExecution, error) {
	var execution models.WorkflowExecution
	if err := r.store.readJSON(executionEntity, id, &execution, persistence.ErrExecutionNotFound); err != nil {
		return nil, persistence.NewExecutionError("GetByID", id, err)
	}

	return &execution, nil
}

func (r *ExecutionRepository) GetByStatus(_ context.Context, status models.ExecutionStatus, limit int) ([]*models.WorkflowExecution, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	executions, err := r.listLocked(func(e *models.WorkflowExecution) bool {
		return e.Status == status
	})
	if err != nil {
		return nil, err
	}

	if limit > 0 && len(executions) > limit {
		executions = executions[:limit]
	}

	return executions, nil
}

func (r *ExecutionRepository) RunningCountByOwner(_ context.Context, owner string) (int, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	executions, err := r.listLocked(func(e *models.WorkflowExecution) bool {
		return e.Owner == owner && e.Status == models.ExecutionStatusRunning
	})
	if err != nil {
		return 0, err
	}

	return len(executions), nil
}

func (r *ExecutionRepository) GetByIdempotencyKey(_ context.Context, key string, since time.Time) (*models.WorkflowExecution, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	executions, err := r.listLocked(func(e *models.WorkflowExecution) bool {
		return e.TriggerData.IdempotencyKey == key && !e.StartedAt.Before(since)
	})
	if err != nil {
		return nil, err
	}

	if len(executions) == 0 {
		return nil, persistence.ErrExecutionNotFound
	}

	// listLocked sorts ascending by start time; the most recent match wins.
	return executions[len(executions)-1], nil
}

func (r *ExecutionRepository) TransitionStatus(_ context.Context, id string, from, to models.ExecutionStatus, version int) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	execution, err := r.getLocked(id)
	if err != nil {
		return err
	}

	if execution.Status != from || execution.Version != version {
		return persistence.NewExecutionError("TransitionStatus", id, persistence.ErrExecutionConflict)
	}

	execution.Status = to
	execution.Version++

	if to.Terminal() {
		now := time.Now().UTC()
		execution.CompletedAt = &now
	}

	return r.store.writeJSON(executionEntity, id, execution)
}

func (r *ExecutionRepository) listLocked(match func(*models.WorkflowExecution) bool) ([]*models.WorkflowExecution, error) {
	var executions []*models.WorkflowExecution

	err := r.store.listJSON(executionEntity, func(data []byte) error {
		var execution models.WorkflowExecution
		if err := json.Unmarshal(data, &execution); err != nil {
			return err
		}

		if match(&execution) {
			executions = append(executions, &execution)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(executions, func(i, j int) bool {
		return executions[i].StartedAt.Before(executions[j].StartedAt)
	})

	return executions, nil
}
