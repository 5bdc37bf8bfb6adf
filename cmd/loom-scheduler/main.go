package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	cli "github.com/urfave/cli/v3"

	"github.com/loomworks/loom/pkg/cmd"
	"github.com/loomworks/loom/pkg/engine"
	"github.com/loomworks/loom/pkg/log"
	"github.com/loomworks/loom/pkg/scheduler"
)

func main() {
	command := &cli.Command{
		Name:                  "loom-scheduler",
		EnableShellCompletion: true,
		Usage:                 "Start the centralized cron scheduler",
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
			&cli.DurationFlag{
				Name:    "poll-interval",
				Usage:   "How often the scheduler checks for due schedules",
				Value:   scheduler.DefaultPollInterval,
				Sources: cli.EnvVars("SCHEDULER_POLL_INTERVAL"),
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

			logger := log.WithModule("loom-scheduler")
			logger.InfoContext(ctx, "Initializing scheduler")

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

			daemon := scheduler.NewDaemon(
				scheduler.NewScheduler(persistence, eng, logger),
				command.Duration("poll-interval"),
			)

			runCtx, cancel := context.WithCancel(ctx)
			defer cancel()

			if err := daemon.Start(runCtx); err != nil {
				return err
			}

			sigChan := make(chan os.Signal, 1)
			signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
			<-sigChan

			logger.Info("Shutting down scheduler...")
			cancel()

			return daemon.Stop(ctx)
		},
	}

	if err := command.Run(context.Background(), os.Args); err != nil {
		panic(err)
	}
}
