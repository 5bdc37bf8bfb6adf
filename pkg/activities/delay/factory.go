package delay

import (
	"github.com/loomworks/loom/pkg/protocol"
)

// DelayActivityFactory creates DelayActivity instances.
type DelayActivityFactory struct{}

func NewDelayActivityFactory() protocol.ActivityFactory {
	return &DelayActivityFactory{}
}

func (f *DelayActivityFactory) ID() string {
	return "delay"
}

func (f *DelayActivityFactory) Name() string {
	return "Delay"
}

func (f *DelayActivityFactory) Description() string {
	return "Waits a fixed duration before continuing to the next node"
}

func (f *DelayActivityFactory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"duration_seconds": map[string]any{
				"type":             "number",
				"description":      "Seconds to wait",
				"exclusiveMinimum": 0,
			},
		},
		"required": []string{"duration_seconds"},
	}
}

func (f *DelayActivityFactory) Create(config map[string]any) (protocol.Activity, error) {
	return NewDelayActivity(config)
}
