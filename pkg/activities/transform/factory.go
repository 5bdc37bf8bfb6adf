package transform

import (
	"github.com/loomworks/loom/pkg/protocol"
)

// TransformActivityFactory creates TransformActivity instances.
type TransformActivityFactory struct{}

func NewTransformActivityFactory() protocol.ActivityFactory {
	return &TransformActivityFactory{}
}

func (f *TransformActivityFactory) ID() string {
	return "transform"
}

func (f *TransformActivityFactory) Name() string {
	return "Transform"
}

func (f *TransformActivityFactory) Description() string {
	return "Projects values out of earlier node outputs and execution variables into a new output"
}

func (f *TransformActivityFactory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"mappings": map[string]any{
				"type":        "object",
				"description": "Output key to dot-notation source path, rooted at 'nodes' or 'variables'",
				"additionalProperties": map[string]any{
					"type": "string",
				},
				"minProperties": 1,
			},
			"scope": map[string]any{
				"type":        "string",
				"description": "When set, mapped values are also stored as execution variables under this scope",
			},
		},
		"required": []string{"mappings"},
	}
}

func (f *TransformActivityFactory) Create(config map[string]any) (protocol.Activity, error) {
	return NewTransformActivity(config)
}
