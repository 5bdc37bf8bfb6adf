package cmd

import (
	"fmt"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill"

	"github.com/loomworks/loom/pkg/channels/gochannel"
	"github.com/loomworks/loom/pkg/channels/kafka"
	"github.com/loomworks/loom/pkg/eventbus"
)

// NewEventBus creates an event bus instance based on the provider.
// "gochannel" is in-process and suits single-binary deployments;
// "kafka" connects to the brokers named by KAFKA_BROKERS.
func NewEventBus(provider string, logger *slog.Logger) eventbus.EventBus {
	switch provider {
	case "kafka":
		pub, sub, err := kafka.CreateChannel(watermill.NewSlogLogger(logger), "loom")
		if err != nil {
			panic(fmt.Errorf("failed to create Kafka pub/sub: %w", err))
		}

		return eventbus.NewWatermillEventBus(pub, sub)
	case "gochannel":
		pub, sub, err := gochannel.CreateChannel(watermill.NewSlogLogger(logger))
		if err != nil {
			panic(fmt.Errorf("failed to create in-process pub/sub: %w", err))
		}

		return eventbus.NewWatermillEventBus(pub, sub)
	default:
		panic("unsupported event bus provider: " + provider + " (supported: kafka, gochannel)")
	}
}
