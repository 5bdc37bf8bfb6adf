package registry_test

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loomworks/loom/pkg/activities/delay"
	"github.com/loomworks/loom/pkg/activities/logmsg"
	"github.com/loomworks/loom/pkg/registry"
)

func newTestRegistry(t *testing.T) *registry.Registry {
	t.Helper()

	reg := registry.NewRegistry(slog.Default())
	reg.RegisterActivity(logmsg.NewLogActivityFactory())
	reg.RegisterActivity(delay.NewDelayActivityFactory())

	return reg
}

func TestRegistry_CreateActivity(t *testing.T) {
	t.Parallel()

	reg := newTestRegistry(t)

	activity, err := reg.CreateActivity("log", map[string]any{
		"message": "hello",
		"level":   "info",
	})
	require.NoError(t, err)
	assert.NotNil(t, activity)
}

func TestRegistry_CreateActivity_UnknownType(t *testing.T) {
	t.Parallel()

	reg := newTestRegistry(t)

	_, err := reg.CreateActivity("nope", map[string]any{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not registered")
}

func TestRegistry_CreateActivity_SchemaRejectsConfig(t *testing.T) {
	t.Parallel()

	reg := newTestRegistry(t)

	tests := []struct {
		name     string
		nodeType string
		config   map[string]any
	}{
		{
			name:     "missing required field",
			nodeType: "log",
			config:   map[string]any{"level": "info"},
		},
		{
			name:     "value outside enum",
			nodeType: "log",
			config:   map[string]any{"message": "hi", "level": "shout"},
		},
		{
			name:     "wrong field type",
			nodeType: "delay",
			config:   map[string]any{"duration_seconds": "ten"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := reg.CreateActivity(tt.nodeType, tt.config)
			require.Error(t, err)
			assert.Contains(t, err.Error(), "invalid config")
		})
	}
}

func TestRegistry_AvailableActivities(t *testing.T) {
	t.Parallel()

	reg := newTestRegistry(t)

	types := reg.AvailableActivities()
	assert.ElementsMatch(t, []string{"log", "delay"}, types)
}
