package graph

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loomworks/loom/pkg/models"
	"github.com/loomworks/loom/pkg/persistence"
	"github.com/loomworks/loom/pkg/persistence/file"
)

func newTestManager(t *testing.T, workflowIDs ...string) (*Manager, persistence.Persistence) {
	t.Helper()

	p := file.NewPersistence(t.TempDir())

	for _, id := range workflowIDs {
		workflow := &models.Workflow{
			ID:      id,
			Name:    "Workflow " + id,
			Owner:   "owner-1",
			Active:  true,
			Version: 1,
		}
		require.NoError(t, p.Workflows().Save(context.Background(), workflow))
	}

	return NewManager(p.Workflows()), p
}

func TestManager_AddDependency(t *testing.T) {
	t.Parallel()

	manager, _ := newTestManager(t, "a", "b")
	ctx := context.Background()

	require.NoError(t, manager.AddDependency(ctx, "a", "b"))

	deps, err := manager.Dependencies(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, deps)

	// Re-adding is a no-op, not a duplicate.
	require.NoError(t, manager.AddDependency(ctx, "a", "b"))

	deps, err = manager.Dependencies(ctx, "a")
	require.NoError(t, err)
	assert.Len(t, deps, 1)
}

func TestManager_AddDependency_UnknownWorkflow(t *testing.T) {
	t.Parallel()

	manager, _ := newTestManager(t, "a")
	ctx := context.Background()

	err := manager.AddDependency(ctx, "a", "missing")
	assert.True(t, persistence.IsWorkflowNotFound(err))

	err = manager.AddDependency(ctx, "missing", "a")
	assert.True(t, persistence.IsWorkflowNotFound(err))
}

func TestManager_AddDependency_RejectsCycles(t *testing.T) {
	t.Parallel()

	manager, _ := newTestManager(t, "a", "b", "c")
	ctx := context.Background()

	require.NoError(t, manager.AddDependency(ctx, "a", "b"))
	require.NoError(t, manager.AddDependency(ctx, "b", "c"))

	// Self edges and closing edges are both rejected.
	assert.ErrorIs(t, manager.AddDependency(ctx, "a", "a"), ErrDependencyCycle)
	assert.ErrorIs(t, manager.AddDependency(ctx, "c", "a"), ErrDependencyCycle)

	// The rejected edge left the graph untouched.
	deps, err := manager.Dependencies(ctx, "c")
	require.NoError(t, err)
	assert.Empty(t, deps)
}

func TestManager_RemoveDependency(t *testing.T) {
	t.Parallel()

	manager, _ := newTestManager(t, "a", "b")
	ctx := context.Background()

	require.NoError(t, manager.AddDependency(ctx, "a", "b"))
	require.NoError(t, manager.RemoveDependency(ctx, "a", "b"))

	deps, err := manager.Dependencies(ctx, "a")
	require.NoError(t, err)
	assert.Empty(t, deps)

	// Removing a missing edge is a no-op.
	require.NoError(t, manager.RemoveDependency(ctx, "a", "b"))

	// Once the edge is gone the reverse direction is legal again.
	require.NoError(t, manager.AddDependency(ctx, "b", "a"))
}

func TestManager_ExecutionOrder(t *testing.T) {
	t.Parallel()

	manager, _ := newTestManager(t, "a", "b", "c", "d")
	ctx := context.Background()

	// a depends on b and c; c depends on d.
	require.NoError(t, manager.AddDependency(ctx, "a", "b"))
	require.NoError(t, manager.AddDependency(ctx, "a", "c"))
	require.NoError(t, manager.AddDependency(ctx, "c", "d"))

	order, err := manager.ExecutionOrder(ctx)
	require.NoError(t, err)
	require.Len(t, order, 4)

	position := make(map[string]int, len(order))
	for i, id := range order {
		position[id] = i
	}

	assert.Less(t, position["b"], position["a"])
	assert.Less(t, position["c"], position["a"])
	assert.Less(t, position["d"], position["c"])
}

func TestManager_ExecutionOrder_Deterministic(t *testing.T) {
	t.Parallel()

	manager, _ := newTestManager(t, "a", "b", "c")
	ctx := context.Background()

	first, err := manager.ExecutionOrder(ctx)
	require.NoError(t, err)

	second, err := manager.ExecutionOrder(ctx)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, []string{"a", "b", "c"}, first)
}

func TestManager_ExecutionOrder_DetectsPreexistingCycle(t *testing.T) {
	t.Parallel()

	manager, p := newTestManager(t, "a", "b")
	ctx := context.Background()

	// Write a cyclic graph directly, bypassing AddDependency's guard.
	for _, pair := range [][2]string{{"a", "b"}, {"b", "a"}} {
		workflow, err := p.Workflows().GetByID(ctx, pair[0])
		require.NoError(t, err)
		workflow.GraphConfig.Dependencies = []string{pair[1]}
		require.NoError(t, p.Workflows().Save(ctx, workflow))
	}

	_, err := manager.ExecutionOrder(ctx)
	assert.ErrorIs(t, err, ErrDependencyCycle)
}

func TestManager_ExecutionOrder_DeepChain(t *testing.T) {
	t.Parallel()

	// A linear chain deep enough that recursive traversal would be risky.
	ids := make([]string, 0, 200)
	for i := range 200 {
		ids = append(ids, workflowID(i))
	}

	manager, p := newTestManager(t, ids...)
	ctx := context.Background()

	for i := 1; i < len(ids); i++ {
		workflow, err := p.Workflows().GetByID(ctx, ids[i])
		require.NoError(t, err)
		workflow.GraphConfig.Dependencies = []string{ids[i-1]}
		require.NoError(t, p.Workflows().Save(ctx, workflow))
	}

	order, err := manager.ExecutionOrder(ctx)
	require.NoError(t, err)
	require.Len(t, order, len(ids))
	assert.Equal(t, ids[0], order[0])
	assert.Equal(t, ids[len(ids)-1], order[len(order)-1])
}

func workflowID(i int) string {
	return string(rune('a'+i/26/26)) + string(rune('a'+(i/26)%26)) + string(rune('a'+i%26))
}
