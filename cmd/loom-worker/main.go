package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	cli "github.com/urfave/cli/v3"

	"github.com/loomworks/loom/pkg/cmd"
	"github.com/loomworks/loom/pkg/engine"
	"github.com/loomworks/loom/pkg/log"
	"github.com/loomworks/loom/pkg/otelhelper"
	"github.com/loomworks/loom/pkg/worker"
)

func main() {
	command := &cli.Command{
		Name:                  "loom-worker",
		EnableShellCompletion: true,
		Usage:                 "Start a worker to process workflow executions",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "worker-id",
				Aliases: []string{"id"},
				Usage:   "Custom worker ID (auto-generated if not provided)",
				Value:   "",
				Sources: cli.EnvVars("WORKER_ID"),
			},
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
			&cli.StringFlag{
				Name:    "redis-url",
				Usage:   "Redis URL for the execution state cache (in-memory cache when empty)",
				Value:   "",
				Sources: cli.EnvVars("REDIS_URL"),
			},
			&cli.DurationFlag{
				Name:    "poll-interval",
				Usage:   "How often the worker polls for runnable executions",
				Value:   worker.DefaultPollInterval,
				Sources: cli.EnvVars("WORKER_POLL_INTERVAL"),
			},
			&cli.IntFlag{
				Name:    "max-concurrency",
				Usage:   "Maximum executions processed concurrently by this worker",
				Value:   worker.DefaultMaxConcurrency,
				Sources: cli.EnvVars("WORKER_MAX_CONCURRENCY"),
			},
			&cli.BoolFlag{
				Name:    "otel-enabled",
				Usage:   "Enable OpenTelemetry tracing",
				Value:   false,
				Sources: cli.EnvVars("OTEL_ENABLED"),
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

			workerID := command.String("worker-id")
			if workerID == "" {
				workerID = "worker-" + uuid.New().String()[:8]
			}

			logger := log.WithModule("loom-worker").With("worker_id", workerID)
			logger.InfoContext(ctx, "Initializing worker")

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

			stateCache := cmd.NewExecutionCache(command.String("redis-url"), 30*time.Minute)

			eng := engine.NewEngine(persistence, registry, stateCache, eventBus, logger)

			options := []worker.ManagerOption{
				worker.WithPollInterval(command.Duration("poll-interval")),
				worker.WithMaxConcurrency(int(command.Int("max-concurrency"))),
			}

			if command.Bool("otel-enabled") {
				tracer, err := otelhelper.NewTracer(ctx, "loom-worker")
				if err != nil {
					return err
				}

				options = append(options, worker.WithTracer(tracer))
			}

			manager := worker.NewManager(workerID, eng, persistence, engine.NewSignalRouter(), logger, options...)

			runCtx, cancel := context.WithCancel(ctx)
			defer cancel()

			go func() {
				sigChan := make(chan os.Signal, 1)
				signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
				<-sigChan
				logger.Info("Shutting down worker...")
				cancel()
			}()

			return manager.Start(runCtx)
		},
	}

	if err := command.Run(context.Background(), os.Args); err != nil {
		panic(err)
	}
}
