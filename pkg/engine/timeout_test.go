package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loomworks/loom/pkg/models"
)

func TestTimeoutManager_SetAndCheckNodeTimeout(t *testing.T) {
	t.Parallel()

	eng, _ := newTestEngine(t)
	manager := eng.Timeouts()

	now := time.Now().UTC()
	state := models.NewExecutionState("n1", now)

	manager.SetNodeTimeout(state, "n1", 30*time.Second)

	deadline, ok := state.NodeTimeouts["n1"]
	require.True(t, ok)
	assert.WithinDuration(t, now.Add(30*time.Second), deadline, time.Second)

	assert.False(t, manager.CheckNodeTimeout(state, "n1", deadline.Add(-time.Second)))
	assert.True(t, manager.CheckNodeTimeout(state, "n1", deadline.Add(time.Second)))

	// No deadline recorded means never timed out.
	assert.False(t, manager.CheckNodeTimeout(state, "other", deadline.Add(time.Hour)))
}

func TestTimeoutManager_SetAndCheckWorkflowTimeout(t *testing.T) {
	t.Parallel()

	eng, _ := newTestEngine(t)
	manager := eng.Timeouts()

	now := time.Now().UTC()
	state := models.NewExecutionState("n1", now)

	assert.False(t, manager.CheckWorkflowTimeout(state, now.Add(time.Hour)))

	manager.SetWorkflowTimeout(state, time.Minute)
	require.NotNil(t, state.WorkflowTimeout)

	assert.False(t, manager.CheckWorkflowTimeout(state, now.Add(30*time.Second)))
	assert.True(t, manager.CheckWorkflowTimeout(state, now.Add(2*time.Minute)))
}
