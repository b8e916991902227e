package main

import (
	"context"
	"os"

	cli "github.com/urfave/cli/v3"

	"github.com/dripkit/dripkit/pkg/cmd"
	"github.com/dripkit/dripkit/pkg/log"
	"github.com/dripkit/dripkit/pkg/otelhelper"
)

const defaultPort = 9091

func main() {
	command := &cli.Command{
		Name:                  "dripkit-api",
		Usage:                 "Create and manage audiences, segments and automations",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port to run the API server on",
				Value:   defaultPort,
				Sources: cli.EnvVars("PORT"),
			},
			&cli.StringFlag{
				Name:     "database-url",
				Usage:    "Database connection URL for persistence",
				Required: true,
				Sources:  cli.EnvVars("DATABASE_URL"),
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
			log.Setup("dripkit-api", command.String("log-level"))

			logger := log.WithModule("dripkit-api")

			logger.InfoContext(ctx, "Initializing Dripkit API")

			if command.Bool("tracing") {
				_, err := otelhelper.NewTracer(ctx, "dripkit-api")
				if err != nil {
					logger.ErrorContext(ctx, "Failed to initialize tracer", "error", err)
				}
			}

			persistence := cmd.NewPersistence(ctx, logger, command.String("database-url"))
			defer func() {
				err := persistence.Close(ctx)
				if err != nil {
					logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
				}
			}()

			registry := cmd.NewAuthoringRegistry(logger, persistence)

			api := NewAPI(
				logger,
				persistence,
				registry,
			)

			err := api.Start(command.Int("port"))
			if err != nil {
				logger.ErrorContext(ctx, "Failed to start API server", "error", err)
			}

			return nil
		},
	}

	err := command.Run(context.Background(), os.Args)
	if err != nil {
		panic(err)
	}
}
