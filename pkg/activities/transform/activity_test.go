package transform

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loomworks/loom/pkg/models"
)

func testState() *models.ExecutionState {
	state := models.NewExecutionState("n2", time.Now().UTC())
	state.RecordResult(&models.NodeExecutionResult{
		NodeID: "fetch_user",
		Status: models.NodeResultSuccess,
		Output: map[string]any{
			"body": map[string]any{"email": "x@example.com", "id": "u-1"},
		},
	})
	state.SetVariable("global", "tenant", "acme")

	return state
}

func TestTransformActivity_Execute(t *testing.T) {
	t.Parallel()

	activity, err := NewTransformActivity(map[string]any{
		"mappings": map[string]any{
			"email":  "nodes.fetch_user.body.email",
			"tenant": "variables.global.tenant",
		},
	})
	require.NoError(t, err)

	output, err := activity.Execute(context.Background(), testState(), "exec-1")
	require.NoError(t, err)

	assert.Equal(t, "x@example.com", output["email"])
	assert.Equal(t, "acme", output["tenant"])
}

func TestTransformActivity_ScopeWritesVariables(t *testing.T) {
	t.Parallel()

	activity, err := NewTransformActivity(map[string]any{
		"mappings": map[string]any{"user_id": "nodes.fetch_user.body.id"},
		"scope":    "derived",
	})
	require.NoError(t, err)

	state := testState()

	_, err = activity.Execute(context.Background(), state, "exec-1")
	require.NoError(t, err)

	value, ok := state.Variable("derived", "user_id")
	require.True(t, ok)
	assert.Equal(t, "u-1", value)
}

func TestTransformActivity_MissingPathFails(t *testing.T) {
	t.Parallel()

	activity, err := NewTransformActivity(map[string]any{
		"mappings": map[string]any{"missing": "nodes.nope.body"},
	})
	require.NoError(t, err)

	_, err = activity.Execute(context.Background(), testState(), "exec-1")
	assert.ErrorContains(t, err, "nodes.nope.body")
}

func TestNewTransformActivity_Validation(t *testing.T) {
	t.Parallel()

	_, err := NewTransformActivity(map[string]any{})
	assert.Error(t, err)

	_, err = NewTransformActivity(map[string]any{
		"mappings": map[string]any{"key": 42},
	})
	assert.Error(t, err)
}
