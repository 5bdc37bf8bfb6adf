// Package registry maps node types to their activity factories and
// validates node configs before dispatch.
package registry

import (
	"fmt"
	"log/slog"

	"github.com/xeipuuv/gojsonschema"

	"github.com/loomworks/loom/pkg/protocol"
)

type Registry struct {
	logger            *slog.Logger
	activityFactories map[string]protocol.ActivityFactory
}

func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		logger:            logger,
		activityFactories: make(map[string]protocol.ActivityFactory),
	}
}

func (r *Registry) RegisterActivity(factory protocol.ActivityFactory) {
	r.activityFactories[factory.ID()] = factory
}

// CreateActivity validates the config against the factory's schema and
// builds the activity.
func (r *Registry) CreateActivity(nodeType string, config map[string]any) (protocol.Activity, error) {
	factory, ok := r.activityFactories[nodeType]
	if !ok {
		return nil, fmt.Errorf("node type '%s' not registered", nodeType)
	}

	if err := r.validateConfig(factory, config); err != nil {
		return nil, err
	}

	return factory.Create(config)
}

// AvailableActivities returns all registered node types.
func (r *Registry) AvailableActivities() []string {
	types := make([]string, 0, len(r.activityFactories))
	for nodeType := range r.activityFactories {
		types = append(types, nodeType)
	}

	return types
}

func (r *Registry) validateConfig(factory protocol.ActivityFactory, config map[string]any) error {
	schema := factory.Schema()
	if schema == nil {
		return nil
	}

	schemaLoader := gojsonschema.NewGoLoader(schema)
	dataLoader := gojsonschema.NewGoLoader(config)

	result, err := gojsonschema.Validate(schemaLoader, dataLoader)
	if err != nil {
		return fmt.Errorf("failed to validate config for node type '%s': %w", factory.ID(), err)
	}

	if !result.Valid() {
		errs := result.Errors()
		if len(errs) > 0 {
			return fmt.Errorf("invalid config for node type '%s': %s", factory.ID(), errs[0].String())
		}

		return fmt.Errorf("invalid config for node type '%s'", factory.ID())
	}

	return nil
}
