// Package transform provides the transform activity: it projects values
// out of the execution state into a new node output using dot-notation
// source paths.
package transform

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/loomworks/loom/pkg/models"
)

// TransformActivity maps output keys to values resolved from earlier node
// outputs and execution variables. Source paths are dot notation rooted at
// "nodes" or "variables", e.g. "nodes.fetch_user.body.email" or
// "variables.global.api_key".
type TransformActivity struct {
	mappings map[string]string
	scope    string
}

func NewTransformActivity(config map[string]any) (*TransformActivity, error) {
	raw, ok := config["mappings"].(map[string]any)
	if !ok || len(raw) == 0 {
		return nil, errors.New("missing required field 'mappings'")
	}

	mappings := make(map[string]string, len(raw))

	for key, value := range raw {
		path, ok := value.(string)
		if !ok {
			return nil, fmt.Errorf("mapping %q must be a source path string", key)
		}

		mappings[key] = path
	}

	scope, _ := config["scope"].(string)

	return &TransformActivity{
		mappings: mappings,
		scope:    scope,
	}, nil
}

func (a *TransformActivity) Execute(ctx context.Context, state *models.ExecutionState, executionID string) (map[string]any, error) {
	source := buildSource(state)
	output := make(map[string]any, len(a.mappings))

	for key, path := range a.mappings {
		value, found := lookupPath(source, path)
		if !found {
			return nil, fmt.Errorf("source path %q not found", path)
		}

		output[key] = value
	}

	if a.scope != "" {
		for key, value := range output {
			state.SetVariable(a.scope, key, value)
		}
	}

	return output, nil
}

// buildSource exposes the addressable parts of the state as one nested map.
func buildSource(state *models.ExecutionState) map[string]any {
	nodes := make(map[string]any, len(state.NodeResults))

	for nodeID, result := range state.NodeResults {
		if result != nil {
			nodes[nodeID] = result.Output
		}
	}

	variables := make(map[string]any, len(state.Variables))
	for scope, bindings := range state.Variables {
		variables[scope] = bindings
	}

	return map[string]any{
		"nodes":     nodes,
		"variables": variables,
	}
}

func lookupPath(source map[string]any, path string) (any, bool) {
	var current any = source

	for _, segment := range strings.Split(path, ".") {
		object, ok := toMap(current)
		if !ok {
			return nil, false
		}

		current, ok = object[segment]
		if !ok {
			return nil, false
		}
	}

	return current, true
}

func toMap(value any) (map[string]any, bool) {
	switch typed := value.(type) {
	case map[string]any:
		return typed, true
	default:
		return nil, false
	}
}
