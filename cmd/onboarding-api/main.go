package main

import (
	"context"
	"os"
	"time"

	"github.com/dukex/onboarding/pkg/cmd"
	"github.com/dukex/onboarding/pkg/log"
	"github.com/dukex/onboarding/pkg/otelhelper"
	"github.com/dukex/onboarding/pkg/sweeper"
	cli "github.com/urfave/cli/v3"
)

const defaultPort = 9091

func main() {
	command := &cli.Command{
		Name:                  "onboarding-api",
		Usage:                 "Serve tenant onboarding progress",
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
				Name:    "database-url",
				Usage:   "Progress storage URL (file://dir, postgres://..., redis://...)",
				Value:   "file://./data",
				Sources: cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:    "event-bus",
				Usage:   "Event bus type (gochannel, kafka)",
				Value:   "gochannel",
				Sources: cli.EnvVars("EVENT_BUS"),
			},
			&cli.StringFlag{
				Name:    "api-token",
				Usage:   "Shared bearer token; any token is accepted when empty",
				Sources: cli.EnvVars("ONBOARDING_TOKEN"),
			},
			&cli.StringFlag{
				Name:    "sweep-schedule",
				Usage:   "Cron schedule of the stalled provisioning sweep",
				Value:   sweeper.DefaultSchedule,
				Sources: cli.EnvVars("SWEEP_SCHEDULE"),
			},
			&cli.DurationFlag{
				Name:    "stall-after",
				Usage:   "Age after which a provisioning tenant is reported as stalled",
				Value:   sweeper.DefaultStallAfter,
				Sources: cli.EnvVars("STALL_AFTER"),
			},
			&cli.BoolFlag{
				Name:    "otel-enabled",
				Usage:   "Export traces over OTLP/HTTP",
				Sources: cli.EnvVars("OTEL_ENABLED"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
			&cli.StringFlag{
				Name:    "log-format",
				Usage:   "Log format (text, json)",
				Value:   "text",
				Sources: cli.EnvVars("LOG_FORMAT"),
			},
		},
		Action: run,
	}

	err := command.Run(context.Background(), os.Args)
	if err != nil {
		panic(err)
	}
}

func run(ctx context.Context, command *cli.Command) error {
	log.Setup(command.String("log-level"), command.String("log-format"))

	logger := log.WithModule("api")
	logger.InfoContext(ctx, "Initializing onboarding API")

	if command.Bool("otel-enabled") {
		tp, err := otelhelper.NewTracerProvider(ctx, "onboarding-api")
		if err != nil {
			return err
		}

		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			if err := tp.Shutdown(shutdownCtx); err != nil {
				logger.ErrorContext(ctx, "Failed to shut down tracer provider", "error", err)
			}
		}()
	}

	persistence, err := cmd.NewPersistence(ctx, logger, command.String("database-url"))
	if err != nil {
		return err
	}

	defer func() {
		err := persistence.Close(ctx)
		if err != nil {
			logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
		}
	}()

	eventBus, err := cmd.NewEventBus(command.String("event-bus"), logger)
	if err != nil {
		return err
	}

	defer func() {
		if err := eventBus.Close(); err != nil {
			logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
		}
	}()

	api := NewAPI(logger, persistence, eventBus, command.String("api-token"))

	err = api.Subscribe(ctx)
	if err != nil {
		return err
	}

	sweep, err := sweeper.New(api.Progress(), eventBus,
		sweeper.WithSchedule(command.String("sweep-schedule")),
		sweeper.WithStallAfter(command.Duration("stall-after")),
		sweeper.WithLogger(logger))
	if err != nil {
		return err
	}

	err = sweep.Start(ctx)
	if err != nil {
		return err
	}

	defer func() {
		if err := sweep.Stop(ctx); err != nil {
			logger.ErrorContext(ctx, "Failed to stop sweeper", "error", err)
		}
	}()

	return api.Start(command.Int("port"))
}
