package main

import (
	"context"
	"os"

	"github.com/google/uuid"
	cli "github.com/urfave/cli/v3"

	"github.com/dripkit/dripkit/pkg/cmd"
	"github.com/dripkit/dripkit/pkg/log"
	"github.com/dripkit/dripkit/pkg/otelhelper"
)

func main() {
	command := &cli.Command{
		Name:                  "dripkit-worker",
		EnableShellCompletion: true,
		Usage:                 "Start workers to execute automation steps",
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
				Usage:    "Database connection URL for persistence",
				Required: true,
				Sources:  cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:     "event-bus",
				Usage:    "Event bus type (kafka, gochannel)",
				Required: true,
				Sources:  cli.EnvVars("EVENT_BUS_TYPE"),
			},
			&cli.StringFlag{
				Name:     "mailer-api-url",
				Usage:    "Delivery provider transmissions endpoint",
				Required: true,
				Sources:  cli.EnvVars("MAILER_API_URL"),
			},
			&cli.StringFlag{
				Name:     "mailer-api-key",
				Usage:    "Delivery provider API key",
				Required: true,
				Sources:  cli.EnvVars("MAILER_API_KEY"),
			},
			&cli.StringFlag{
				Name:     "redis-url",
				Usage:    "Redis connection URL for send attribution",
				Required: true,
				Sources:  cli.EnvVars("REDIS_URL"),
			},
			&cli.BoolFlag{
				Name:    "tracing",
				Usage:   "Enable OpenTelemetry tracing",
				Sources: cli.EnvVars("TRACING_ENABLED"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup("dripkit-worker", command.String("log-level"))

			workerID := command.String("worker-id")
			if workerID == "" {
				workerID = "worker-" + uuid.New().String()[:8]
			}

			logger := log.WithModule("dripkit-worker").With("worker_id", workerID)

			logger.InfoContext(ctx, "Initializing Dripkit Worker")

			eventBus := cmd.NewEventBus(command.String("event-bus"), "dripkit-worker", logger)
			defer func() {
				err := eventBus.Close()
				if err != nil {
					logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
				}
			}()

			persistence := cmd.NewPersistence(ctx, logger, command.String("database-url"))
			defer func() {
				err := persistence.Close(ctx)
				if err != nil {
					logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
				}
			}()

			registry := cmd.NewRegistry(ctx, logger, persistence, cmd.MailerConfig{
				APIURL:   command.String("mailer-api-url"),
				APIKey:   command.String("mailer-api-key"),
				RedisURL: command.String("redis-url"),
			})

			worker := NewWorkerManager(
				workerID,
				persistence,
				eventBus,
				logger,
				registry,
			)

			if command.Bool("tracing") {
				tracer, err := otelhelper.NewTracer(ctx, "dripkit-worker")
				if err != nil {
					logger.ErrorContext(ctx, "Failed to initialize tracer", "error", err)
				} else {
					worker = worker.WithTracer(tracer)
				}
			}

			err := worker.Start(ctx)
			if err != nil {
				logger.ErrorContext(ctx, "Failed to start event-driven worker", "error", err)
			}

			return nil
		},
	}

	err := command.Run(context.Background(), os.Args)
	if err != nil {
		panic(err)
	}
}
