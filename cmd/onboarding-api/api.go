// Package main provides the onboarding progress store server.
package main

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/dukex/onboarding/pkg/eventbus"
	"github.com/dukex/onboarding/pkg/events"
	"github.com/dukex/onboarding/pkg/persistence"
	"github.com/dukex/onboarding/pkg/services"
	"github.com/dukex/onboarding/pkg/steps"
	"github.com/dukex/onboarding/pkg/web"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"
)

// auditedEvents are logged by the API as they come off the bus.
var auditedEvents = []events.EventType{
	events.StepCompletedEvent,
	events.StepEditStartedEvent,
	events.CompletedEvent,
	events.ProvisioningStartedEvent,
	events.ProvisioningSucceededEvent,
	events.ProvisioningFailedEvent,
	events.ProvisioningStillWorkingEvent,
	events.ProvisioningStalledEvent,
}

type API struct {
	logger   *slog.Logger
	progress *services.Progress
	eventBus eventbus.EventBus
	validate *validator.Validate
	verify   web.TokenVerifier
}

func NewAPI(
	logger *slog.Logger,
	persistence persistence.Persistence,
	eventBus eventbus.EventBus,
	token string,
) *API {
	verify := web.AnyToken
	if token != "" {
		verify = web.StaticToken(token)
	}

	opts := []services.ProgressOption{services.WithLogger(logger)}
	if eventBus != nil {
		opts = append(opts, services.WithPublisher(eventBus))
	}

	return &API{
		logger:   logger,
		progress: services.NewProgress(persistence, steps.Default(), opts...),
		eventBus: eventBus,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		verify:   verify,
	}
}

func (a *API) Progress() *services.Progress {
	return a.progress
}

func (a *API) App() *fiber.App {
	handlers := web.NewAPIHandlers(a.progress, a.validate)

	app := fiber.New()
	app.Use(cors.New())
	app.Use(logger.New(logger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker(healthcheck.Config{
		Probe: func(c fiber.Ctx) bool {
			_, ok := a.progress.HealthCheck(c.Context())

			return ok
		},
	}))

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("Onboarding API")
	})

	handlers.Register(app, a.verify)

	return app
}

// Subscribe logs every lifecycle event published on the bus.
func (a *API) Subscribe(ctx context.Context) error {
	if a.eventBus == nil {
		return nil
	}

	audit := a.logger.With("module", "audit")

	for _, eventType := range auditedEvents {
		err := a.eventBus.Handle(eventType, func(ctx context.Context, event any) error {
			audit.InfoContext(ctx, "onboarding event", "event_type", eventType, "event", event)

			return nil
		})
		if err != nil {
			return err
		}
	}

	return a.eventBus.Subscribe(ctx)
}

func (a *API) Start(port int) error {
	app := a.App()

	err := app.Listen(":" + strconv.Itoa(port))

	return err
}
