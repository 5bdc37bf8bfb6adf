// Package eventbus provides publish/subscribe plumbing for execution
// lifecycle events on top of watermill.
package eventbus

import (
	"context"

	"github.com/loomworks/loom/pkg/events"
)

// Event is any lifecycle event carrying its own type tag.
type Event interface {
	GetType() events.EventType
}

// EventHandler consumes one decoded event.
type EventHandler func(ctx context.Context, event any) error

// EventBus decouples event producers from consumers.
type EventBus interface {
	GenerateID() string
	Publish(ctx context.Context, key string, event Event) error
	Handle(eventType events.EventType, handler EventHandler) error
	Subscribe(ctx context.Context) error
	Close() error
}
