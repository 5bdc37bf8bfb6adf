package logmsg

import (
	"github.com/loomworks/loom/pkg/protocol"
)

// LogActivityFactory creates LogActivity instances.
type LogActivityFactory struct{}

func NewLogActivityFactory() protocol.ActivityFactory {
	return &LogActivityFactory{}
}

func (f *LogActivityFactory) ID() string {
	return "log"
}

func (f *LogActivityFactory) Name() string {
	return "Log"
}

func (f *LogActivityFactory) Description() string {
	return "Logs a message at a chosen level (debug, info, warn, error)"
}

func (f *LogActivityFactory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"message": map[string]any{
				"type":        "string",
				"description": "Message to log",
			},
			"level": map[string]any{
				"type":        "string",
				"description": "Log level for the message",
				"enum":        []string{"debug", "info", "warn", "error"},
				"default":     "info",
			},
		},
		"required": []string{"message"},
	}
}

func (f *LogActivityFactory) Create(config map[string]any) (protocol.Activity, error) {
	return NewLogActivity(config)
}
