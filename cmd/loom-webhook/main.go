package main

import (
	"context"
	"os"
	"time"

	cli "github.com/urfave/cli/v3"

	"github.com/loomworks/loom/pkg/cmd"
	"github.com/loomworks/loom/pkg/engine"
	"github.com/loomworks/loom/pkg/log"
	"github.com/loomworks/loom/pkg/webhook"
)

func main() {
	command := &cli.Command{
		Name:                  "loom-webhook",
		EnableShellCompletion: true,
		Usage:                 "Start the webhook gateway for inbound triggers",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "database-url",
				Usage:    "Database connection URL for persistence (file://..., postgres://...)",
				Required: true,
				Sources:  cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:    "event-bus",
				Usage:   "Event bus type (kafka, gochannel)",
				Value:   "gochannel",
				Sources: cli.EnvVars("EVENT_BUS_TYPE"),
			},
			&cli.IntFlag{
				Name:    "port",
				Usage:   "HTTP port for the gateway",
				Value:   8085,
				Sources: cli.EnvVars("WEBHOOK_PORT"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"))

			logger := log.WithModule("loom-webhook")
			logger.InfoContext(ctx, "Initializing webhook gateway")

			registry := cmd.NewRegistry(logger)

			eventBus := cmd.NewEventBus(command.String("event-bus"), logger)
			defer func() {
				if err := eventBus.Close(); err != nil {
					logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
				}
			}()

			persistence := cmd.NewPersistence(ctx, logger, command.String("database-url"))
			defer func() {
				if err := persistence.Close(ctx); err != nil {
					logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
				}
			}()

			stateCache := cmd.NewExecutionCache("", 30*time.Minute)
			eng := engine.NewEngine(persistence, registry, stateCache, eventBus, logger)

			gateway := webhook.NewGateway(eng, persistence, logger)

			return gateway.Start(int(command.Int("port")))
		},
	}

	if err := command.Run(context.Background(), os.Args); err != nil {
		panic(err)
	}
}
