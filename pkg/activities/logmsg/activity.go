// Package logmsg provides the log activity: it writes a configured message
// to the structured log at a chosen level.
package logmsg

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/loomworks/loom/pkg/models"
)

// LogActivity writes one message per node execution.
type LogActivity struct {
	message string
	level   string
	logger  *slog.Logger
}

func NewLogActivity(config map[string]any) (*LogActivity, error) {
	message, ok := config["message"].(string)
	if !ok {
		return nil, errors.New("missing required field 'message'")
	}

	level := "info"
	if lvl, ok := config["level"].(string); ok {
		level = lvl
	}

	return &LogActivity{
		message: message,
		level:   level,
		logger:  slog.Default(),
	}, nil
}

func (a *LogActivity) Execute(ctx context.Context, state *models.ExecutionState, executionID string) (map[string]any, error) {
	logger := a.logger.With("execution_id", executionID, "node_type", "log")

	switch a.level {
	case "debug":
		logger.DebugContext(ctx, a.message)
	case "warn":
		logger.WarnContext(ctx, a.message)
	case "error":
		logger.ErrorContext(ctx, a.message)
	default:
		logger.InfoContext(ctx, a.message)
	}

	return map[string]any{
		"message": a.message,
		"level":   a.level,
		"logged":  true,
	}, nil
}

// Validate checks the raw config before construction.
func (a *LogActivity) Validate(config map[string]any) error {
	if _, ok := config["message"]; !ok {
		return errors.New("missing required field 'message'")
	}

	if level, ok := config["level"].(string); ok {
		switch level {
		case "debug", "info", "warn", "error":
		default:
			return fmt.Errorf("invalid log level %q (must be debug, info, warn, or error)", level)
		}
	}

	return nil
}
