package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	cli "github.com/urfave/cli/v3"

	"github.com/dripkit/dripkit/pkg/cmd"
	"github.com/dripkit/dripkit/pkg/enrollment"
	"github.com/dripkit/dripkit/pkg/log"
)

func main() {
	command := &cli.Command{
		Name:                  "dripkit-enroller",
		EnableShellCompletion: true,
		Usage:                 "Sweep audiences and enroll matching contacts into active automations",
		Flags: []cli.Flag{
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
				Name:    "schedule",
				Usage:   "Cron expression for enrollment sweeps",
				Value:   "@every 1m",
				Sources: cli.EnvVars("ENROLLMENT_SCHEDULE"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup("dripkit-enroller", command.String("log-level"))

			logger := log.WithModule("dripkit-enroller")

			logger.InfoContext(ctx, "Initializing Dripkit Enroller")

			eventBus := cmd.NewEventBus(command.String("event-bus"), "dripkit-enroller", logger)
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

			enroller := enrollment.NewEnroller(persistence, eventBus, logger)

			err := enroller.Start(ctx, command.String("schedule"))
			if err != nil {
				return err
			}

			sigChan := make(chan os.Signal, 1)
			signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

			<-sigChan
			logger.InfoContext(ctx, "Shutting down enroller...")
			enroller.Stop()

			return nil
		},
	}

	err := command.Run(context.Background(), os.Args)
	if err != nil {
		panic(err)
	}
}
