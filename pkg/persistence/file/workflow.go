package file

import (
	"context"
	"encoding/json"
	"sort"

	"github.com/loomworks/loom/pkg/models"
	"github.com/loomworks/loom/pkg/persistence"
)

const workflowEntity = "workflows"

// WorkflowRepository stores workflow definitions as JSON files.
type WorkflowRepository struct {
	store *Persistence
}

func (r *WorkflowRepository) Save(_ context.Context, workflow *models.Workflow) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	return r.store.writeJSON(workflowEntity, workflow.ID, workflow)
}

func (r *WorkflowRepository) GetByID(_ context.Context, id string) (*models.Workflow, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	var workflow models.Workflow
	if err := r.store.readJSON(workflowEntity, id, &workflow, persistence.ErrWorkflowNotFound); err != nil {
		return nil, persistence.NewWorkflowError("GetByID", id, err)
	}

	return &workflow, nil
}

func (r *WorkflowRepository) GetAll(_ context.Context) ([]*models.Workflow, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	var workflows []*models.Workflow

	err := r.store.listJSON(workflowEntity, func(data []byte) error {
		var workflow models.Workflow
		if err := json.Unmarshal(data, &workflow); err != nil {
			return err
		}

		workflows = append(workflows, &workflow)

		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(workflows, func(i, j int) bool {
		return workflows[i].CreatedAt.Before(workflows[j].CreatedAt)
	})

	return workflows, nil
}

func (r *WorkflowRepository) Delete(_ context.Context, id string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	return r.store.removeJSON(workflowEntity, id, persistence.ErrWorkflowNotFound)
}
