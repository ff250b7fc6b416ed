package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dukex/onboarding/pkg/client"
	"github.com/dukex/onboarding/pkg/cmd"
	"github.com/dukex/onboarding/pkg/log"
	"github.com/dukex/onboarding/pkg/onboarding"
	"github.com/dukex/onboarding/pkg/provisioning"
	"github.com/dukex/onboarding/pkg/services"
	"github.com/dukex/onboarding/pkg/steps"
	cli "github.com/urfave/cli/v3"
)

type controllerAction func(ctx context.Context, command *cli.Command, controller *onboarding.Controller, view *onboarding.View) error

// withController loads the tenant's progress before running action and
// tears the session down afterwards.
func withController(action controllerAction) cli.ActionFunc {
	return func(ctx context.Context, command *cli.Command) error {
		logger := log.WithModule("onboarding-cli")

		controller, closeFn, err := newController(ctx, command, logger)
		if err != nil {
			return err
		}

		defer closeFn()

		view, err := controller.LoadProgress(ctx)
		if err != nil {
			return err
		}

		return action(ctx, command, controller, view)
	}
}

func newController(ctx context.Context, command *cli.Command, logger *slog.Logger) (*onboarding.Controller, func(), error) {
	tenantID := command.String("tenant")

	session, err := client.NewSession(tenantID, command.String("token"))
	if err != nil {
		return nil, nil, fmt.Errorf("tenant and token are required: %w", err)
	}

	logger = log.WithTenant(logger, tenantID)
	registry := steps.Default()
	closeFn := func() {}

	var store onboarding.ProgressStore

	if databaseURL := command.String("database-url"); databaseURL != "" {
		p, err := cmd.NewPersistence(ctx, logger, databaseURL)
		if err != nil {
			return nil, nil, err
		}

		closeFn = func() {
			if err := p.Close(ctx); err != nil {
				logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
			}
		}

		store = services.NewProgress(p, registry, services.WithLogger(logger)).Tenant(tenantID)
	} else {
		store, err = client.NewProgressClient(command.String("onboarding-api-url"), session, client.WithLogger(logger))
		if err != nil {
			return nil, nil, err
		}
	}

	api, err := client.NewProvisioningClient(command.String("provisioning-api-url"), session, client.WithLogger(logger))
	if err != nil {
		closeFn()

		return nil, nil, err
	}

	orchestrator := provisioning.New(api, store, registry.Total(),
		provisioning.WithInterval(command.Duration("poll-interval")),
		provisioning.WithMaxPolls(command.Int("max-polls")),
		provisioning.WithLogger(logger))

	controller := onboarding.New(tenantID, store, orchestrator,
		onboarding.WithRegistry(registry),
		onboarding.WithLogger(logger))

	return controller, func() {
		controller.Close()
		closeFn()
	}, nil
}
