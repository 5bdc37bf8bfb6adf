package logmsg

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loomworks/loom/pkg/models"
)

func TestLogActivity_Execute(t *testing.T) {
	t.Parallel()

	activity, err := NewLogActivity(map[string]any{
		"message": "processing order",
		"level":   "warn",
	})
	require.NoError(t, err)

	state := models.NewExecutionState("n1", time.Now().UTC())

	output, err := activity.Execute(context.Background(), state, "exec-1")
	require.NoError(t, err)

	assert.Equal(t, "processing order", output["message"])
	assert.Equal(t, "warn", output["level"])
	assert.Equal(t, true, output["logged"])
}

func TestNewLogActivity_Validation(t *testing.T) {
	t.Parallel()

	_, err := NewLogActivity(map[string]any{})
	assert.Error(t, err)

	activity, err := NewLogActivity(map[string]any{"message": "hi"})
	require.NoError(t, err)
	assert.Equal(t, "info", activity.level)
}
