// Package delay provides the delay activity: it waits a configured amount
// of time before succeeding, honoring context cancellation.
package delay

import (
	"context"
	"errors"
	"time"

	"github.com/loomworks/loom/pkg/models"
)

// DelayActivity blocks for a fixed duration. Cancellation or a node
// timeout interrupts the wait and fails the node.
type DelayActivity struct {
	duration time.Duration
}

func NewDelayActivity(config map[string]any) (*DelayActivity, error) {
	seconds, ok := config["duration_seconds"].(float64)
	if !ok || seconds <= 0 {
		return nil, errors.New("missing or invalid field 'duration_seconds'")
	}

	return &DelayActivity{
		duration: time.Duration(seconds * float64(time.Second)),
	}, nil
}

func (a *DelayActivity) Execute(ctx context.Context, state *models.ExecutionState, executionID string) (map[string]any, error) {
	timer := time.NewTimer(a.duration)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timer.C:
	}

	return map[string]any{
		"delayed_seconds": a.duration.Seconds(),
	}, nil
}
