// Package protocol defines the interfaces between the engine and pluggable
// activity handlers.
package protocol

import (
	"context"

	"github.com/loomworks/loom/pkg/models"
)

// Activity does the actual work of one node type. Implementations must honor
// context cancellation: timeouts are cooperative, the engine never preempts
// a running activity.
type Activity interface {
	// Execute runs the activity against the execution's current state and
	// returns the node output. Returning an error marks the node failed;
	// the engine translates it into a failed NodeExecutionResult instead
	// of propagating.
	Execute(ctx context.Context, state *models.ExecutionState, executionID string) (map[string]any, error)
}

// ActivityFactory builds activities of one node type from node config.
type ActivityFactory interface {
	// ID is the node type this factory handles.
	ID() string
	Name() string
	Description() string

	// Schema is the JSON schema node configs are validated against before
	// Create is called.
	Schema() map[string]any

	Create(config map[string]any) (Activity, error)
}
