package engine

import (
	"context"
	"sort"

	"github.com/loomworks/loom/pkg/models"
	"github.com/loomworks/loom/pkg/persistence"
)

// PrioritizationManager orders executions for worker pickup.
type PrioritizationManager struct {
	executions persistence.ExecutionRepository
}

func NewPrioritizationManager(executions persistence.ExecutionRepository) *PrioritizationManager {
	return &PrioritizationManager{executions: executions}
}

// PrioritizedExecutions fetches executions with the given status and
// returns them in non-increasing priority order, bounded by limit. The sort
// is stable: executions sharing a priority keep their fetch order, which is
// start-time order from the store.
func (m *PrioritizationManager) PrioritizedExecutions(ctx context.Context, status models.ExecutionStatus, limit int) ([]*models.WorkflowExecution, error) {
	executions, err := m.executions.GetByStatus(ctx, status, 0)
	if err != nil {
		return nil, err
	}

	sort.SliceStable(executions, func(i, j int) bool {
		return executions[i].EffectivePriority() > executions[j].EffectivePriority()
	})

	if limit > 0 && len(executions) > limit {
		executions = executions[:limit]
	}

	return executions, nil
}
