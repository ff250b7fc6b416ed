package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/dukex/onboarding/pkg/gate"
	"github.com/dukex/onboarding/pkg/log"
	"github.com/dukex/onboarding/pkg/onboarding"
	"github.com/dukex/onboarding/pkg/provisioning"
	"github.com/dukex/onboarding/pkg/steps"
	cli "github.com/urfave/cli/v3"
)

func newCommand() *cli.Command {
	return &cli.Command{
		Name:                  "onboarding",
		Usage:                 "Drive a tenant onboarding session",
		EnableShellCompletion: true,
		Before: func(ctx context.Context, command *cli.Command) (context.Context, error) {
			log.Setup(command.String("log-level"), "text")

			return ctx, nil
		},
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "tenant",
				Aliases: []string{"t"},
				Usage:   "Tenant id",
				Sources: cli.EnvVars("TENANT_ID"),
			},
			&cli.StringFlag{
				Name:    "token",
				Usage:   "Bearer token of the session",
				Sources: cli.EnvVars("ONBOARDING_TOKEN"),
			},
			&cli.StringFlag{
				Name:    "onboarding-api-url",
				Usage:   "Progress store API base URL",
				Value:   "http://localhost:9091",
				Sources: cli.EnvVars("ONBOARDING_API_URL"),
			},
			&cli.StringFlag{
				Name:    "provisioning-api-url",
				Usage:   "Provisioning API base URL",
				Value:   "http://localhost:9092",
				Sources: cli.EnvVars("PROVISIONING_API_URL"),
			},
			&cli.StringFlag{
				Name:    "database-url",
				Usage:   "Use progress storage directly instead of the progress store API",
				Sources: cli.EnvVars("DATABASE_URL"),
			},
			&cli.DurationFlag{
				Name:  "poll-interval",
				Usage: "Provisioning status poll interval",
				Value: provisioning.DefaultInterval,
			},
			&cli.IntFlag{
				Name:  "max-polls",
				Usage: "Provisioning status polls before reporting still working",
				Value: provisioning.DefaultMaxPolls,
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "warn",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "steps",
				Usage: "List the onboarding steps",
				Action: func(_ context.Context, command *cli.Command) error {
					return writeJSON(command.Root().Writer, steps.Default().Steps())
				},
			},
			{
				Name:   "status",
				Usage:  "Show the current onboarding state",
				Action: withController(statusAction),
			},
			{
				Name:  "submit",
				Usage: "Submit the data of one step",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:     "step",
						Aliases:  []string{"s"},
						Usage:    "Step id; an earlier step is edited in place",
						Required: true,
					},
					&cli.StringFlag{
						Name:    "data",
						Aliases: []string{"d"},
						Usage:   "Step data as a JSON object",
					},
					&cli.StringFlag{
						Name:    "data-file",
						Aliases: []string{"f"},
						Usage:   "Read step data from a JSON file",
					},
					&cli.BoolFlag{
						Name:  "wait",
						Usage: "Wait for provisioning after submitting the review step",
						Value: true,
					},
				},
				Action: withController(submitAction),
			},
			{
				Name:   "check",
				Usage:  "Run the provisioning gate on the saved data",
				Action: withController(checkAction),
			},
			{
				Name:   "provision",
				Usage:  "Start provisioning again from review and wait for it",
				Action: withController(provisionAction),
			},
			{
				Name:   "await",
				Usage:  "Wait for a running provisioning attempt",
				Action: withController(awaitAction),
			},
		},
	}
}

func statusAction(_ context.Context, command *cli.Command, _ *onboarding.Controller, view *onboarding.View) error {
	return writeJSON(command.Root().Writer, view)
}

func submitAction(ctx context.Context, command *cli.Command, controller *onboarding.Controller, _ *onboarding.View) error {
	payload, err := parseData(command.String("data"), command.String("data-file"))
	if err != nil {
		return err
	}

	step := command.Int("step")

	if step < controller.CurrentStepID() {
		err = controller.JumpTo(step)
		if err != nil {
			return err
		}
	}

	view, err := controller.Advance(ctx, step, payload)
	if err != nil {
		return describe(err)
	}

	if view.Phase == onboarding.PhaseProvisioning && command.Bool("wait") {
		return await(ctx, command, controller)
	}

	return writeJSON(command.Root().Writer, view)
}

func checkAction(_ context.Context, command *cli.Command, controller *onboarding.Controller, _ *onboarding.View) error {
	violations := gate.Check(controller.SavedDataSoFar())

	return writeJSON(command.Root().Writer, map[string]any{
		"eligible":   len(violations) == 0,
		"violations": violations,
	})
}

func provisionAction(ctx context.Context, command *cli.Command, controller *onboarding.Controller, _ *onboarding.View) error {
	_, err := controller.Provision(ctx)
	if err != nil {
		return describe(err)
	}

	return await(ctx, command, controller)
}

func awaitAction(ctx context.Context, command *cli.Command, controller *onboarding.Controller, _ *onboarding.View) error {
	return await(ctx, command, controller)
}

func await(ctx context.Context, command *cli.Command, controller *onboarding.Controller) error {
	_, err := controller.AwaitProvisioning(ctx)
	if err != nil && !errors.Is(err, onboarding.ErrProvisioningFailed) {
		return err
	}

	view, viewErr := controller.View()
	if viewErr != nil {
		return viewErr
	}

	if writeErr := writeJSON(command.Root().Writer, view); writeErr != nil {
		return writeErr
	}

	return err
}

// describe spells out validation failures field by field.
func describe(err error) error {
	var validationErr *onboarding.ValidationError
	if !errors.As(err, &validationErr) {
		return err
	}

	return fmt.Errorf("%w\n%s", err, formatValidation(validationErr))
}
