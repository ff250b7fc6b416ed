// Package provisioning drives the terminal phase of onboarding: it submits
// the finished bundle, polls the provisioning API and reflects the outcome
// into the progress store.
package provisioning

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/dukex/onboarding/pkg/client"
	"github.com/dukex/onboarding/pkg/eventbus"
	"github.com/dukex/onboarding/pkg/events"
	"github.com/dukex/onboarding/pkg/models"
	"github.com/dukex/onboarding/pkg/otelhelper"
	"github.com/dukex/onboarding/pkg/services"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
)

const (
	DefaultInterval = 3 * time.Second
	DefaultMaxPolls = 40
)

// API is the external provisioning service.
type API interface {
	Start(ctx context.Context, bundle models.SavedData) error
	Status(ctx context.Context) (*models.ProvisioningStatus, error)
}

// Store is the part of the progress store the orchestrator writes to.
type Store interface {
	CompleteStep(ctx context.Context, completion models.StepCompletion) (*models.OnboardingProgress, error)
	MarkCompleted(ctx context.Context) (*models.OnboardingProgress, error)
}

// Result is the end state of a poll loop.
type Result struct {
	Attempt      *models.ProvisioningAttempt
	Status       *models.ProvisioningStatus
	Progress     *models.OnboardingProgress
	StillWorking bool
}

type Orchestrator struct {
	api        API
	store      Store
	totalSteps int

	interval  time.Duration
	maxPolls  int
	logger    *slog.Logger
	publisher eventbus.EventPublisher
	now       func() time.Time

	tracker *Tracker
}

type Option func(*Orchestrator)

func WithInterval(interval time.Duration) Option {
	return func(o *Orchestrator) {
		o.interval = interval
	}
}

// WithMaxPolls bounds the poll loop; it is the only timeout of a provisioning run.
func WithMaxPolls(maxPolls int) Option {
	return func(o *Orchestrator) {
		o.maxPolls = maxPolls
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		o.logger = logger
	}
}

func WithPublisher(publisher eventbus.EventPublisher) Option {
	return func(o *Orchestrator) {
		o.publisher = publisher
	}
}

// WithTracker shares one poll task registry between orchestrators, as the
// multi-tenant admin view does.
func WithTracker(tracker *Tracker) Option {
	return func(o *Orchestrator) {
		o.tracker = tracker
	}
}

func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		o.now = now
	}
}

// New builds an orchestrator; totalSteps is the review step id written with
// every lifecycle status.
func New(api API, store Store, totalSteps int, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		api:        api,
		store:      store,
		totalSteps: totalSteps,
		interval:   DefaultInterval,
		maxPolls:   DefaultMaxPolls,
		logger:     slog.Default(),
		now:        time.Now,
	}

	for _, opt := range opts {
		opt(o)
	}

	o.logger = o.logger.With("module", "provisioning")

	if o.tracker == nil {
		o.tracker = NewTracker()
	}

	return o
}

// Tracker returns the per-tenant poll task registry of this orchestrator.
func (o *Orchestrator) Tracker() *Tracker {
	return o.tracker
}

// Watch runs the poll loop for the attempt as a tracked task. A task already
// running for the tenant is returned instead of starting a second loop.
func (o *Orchestrator) Watch(ctx context.Context, attempt *models.ProvisioningAttempt) *Task {
	return o.tracker.Watch(ctx, attempt.TenantID, func(ctx context.Context) (*Result, error) {
		return o.Run(ctx, attempt)
	})
}

// Start submits the bundle and records the provisioning status. Concurrent
// calls are not coalesced here.
func (o *Orchestrator) Start(ctx context.Context, tenantID string, bundle models.SavedData) (*models.ProvisioningAttempt, error) {
	ctx, span := otelhelper.StartSpan(ctx, otelhelper.Tracer(), "provisioning.start",
		attribute.String(otelhelper.TenantIDKey, tenantID))
	defer span.End()

	attempt := &models.ProvisioningAttempt{
		ID:        uuid.NewString(),
		TenantID:  tenantID,
		StartedAt: o.now().UTC(),
		Outcome:   models.OutcomePending,
	}
	span.SetAttributes(attribute.String(otelhelper.AttemptIDKey, attempt.ID))

	err := o.api.Start(ctx, bundle)
	if err != nil {
		otelhelper.SetError(span, err)
		o.logger.ErrorContext(ctx, "failed to submit provisioning bundle", "tenant_id", tenantID, "error", err)

		return nil, &StartError{Op: "submit", TenantID: tenantID, Err: err}
	}

	_, err = o.store.CompleteStep(ctx, models.StepCompletion{
		Step:   o.totalSteps,
		Status: models.StatusProvisioning,
	})
	if err != nil {
		otelhelper.SetError(span, err)
		o.logger.ErrorContext(ctx, "failed to record provisioning status", "tenant_id", tenantID, "error", err)

		return nil, &StartError{Op: "record status", TenantID: tenantID, Err: err}
	}

	o.logger.InfoContext(ctx, "provisioning started", "tenant_id", tenantID, "attempt_id", attempt.ID)

	o.publish(ctx, tenantID, events.ProvisioningStarted{
		BaseEvent: events.NewBaseEvent(events.ProvisioningStartedEvent, tenantID),
		AttemptID: attempt.ID,
	})

	return attempt, nil
}

// Poll fetches the status once, classifies it and, on a terminal outcome,
// reflects it into the store. The returned progress is nil while pending.
func (o *Orchestrator) Poll(ctx context.Context, attempt *models.ProvisioningAttempt) (models.Outcome, *models.ProvisioningStatus, *models.OnboardingProgress, error) {
	ctx, span := otelhelper.StartSpan(ctx, otelhelper.Tracer(), "provisioning.poll",
		attribute.String(otelhelper.TenantIDKey, attempt.TenantID),
		attribute.String(otelhelper.AttemptIDKey, attempt.ID),
		attribute.Int(otelhelper.PollKey, attempt.Polls+1))
	defer span.End()

	status, err := o.api.Status(ctx)

	attempt.Polls++

	if err != nil {
		otelhelper.SetError(span, err)

		return models.OutcomePending, nil, nil, fmt.Errorf("%w: %w", ErrStatusUnavailable, err)
	}

	if !status.Known() {
		o.logger.WarnContext(ctx, "unknown provisioning status treated as pending",
			"tenant_id", attempt.TenantID,
			"status", status.Status)
	}

	outcome := status.Outcome()
	span.SetAttributes(attribute.String(otelhelper.OutcomeKey, string(outcome)))

	if !outcome.IsTerminal() {
		return outcome, status, nil, nil
	}

	progress, err := o.reflect(ctx, attempt, outcome, status)
	if err != nil {
		otelhelper.SetError(span, err)

		return outcome, status, nil, err
	}

	return outcome, status, progress, nil
}

func (o *Orchestrator) reflect(
	ctx context.Context,
	attempt *models.ProvisioningAttempt,
	outcome models.Outcome,
	status *models.ProvisioningStatus,
) (*models.OnboardingProgress, error) {
	finishedAt := o.now().UTC()
	attempt.Outcome = outcome
	attempt.FinishedAt = &finishedAt

	switch outcome {
	case models.OutcomeSucceeded:
		attempt.AgentID = status.AgentID
		attempt.PhoneNumber = status.PhoneNumber

		// a completed record already carries the outcome of an earlier poll
		_, err := o.store.CompleteStep(ctx, models.StepCompletion{Step: o.totalSteps, Status: models.StatusReady})
		if err != nil && !alreadyCompleted(err) {
			return nil, fmt.Errorf("failed to record ready status: %w", err)
		}

		progress, err := o.store.MarkCompleted(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to mark onboarding completed: %w", err)
		}

		o.logger.InfoContext(ctx, "provisioning succeeded",
			"tenant_id", attempt.TenantID,
			"attempt_id", attempt.ID,
			"polls", attempt.Polls)

		o.publish(ctx, attempt.TenantID, events.ProvisioningSucceeded{
			BaseEvent:   events.NewBaseEvent(events.ProvisioningSucceededEvent, attempt.TenantID),
			AttemptID:   attempt.ID,
			AgentID:     status.AgentID,
			PhoneNumber: status.PhoneNumber,
		})

		return progress, nil
	default:
		attempt.ErrorMessage = status.ErrorMessage

		// an empty payload leaves every saved field in place
		progress, err := o.store.CompleteStep(ctx, models.StepCompletion{
			Step:   o.totalSteps,
			Status: models.StatusReview,
			Data:   models.SavedData{},
		})
		if err != nil {
			return nil, fmt.Errorf("failed to revert to review: %w", err)
		}

		o.logger.WarnContext(ctx, "provisioning failed",
			"tenant_id", attempt.TenantID,
			"attempt_id", attempt.ID,
			"error_message", status.ErrorMessage)

		o.publish(ctx, attempt.TenantID, events.ProvisioningFailed{
			BaseEvent:    events.NewBaseEvent(events.ProvisioningFailedEvent, attempt.TenantID),
			AttemptID:    attempt.ID,
			ErrorMessage: status.ErrorMessage,
		})

		return progress, nil
	}
}

// alreadyCompleted matches the in-process and the HTTP rejection of a write
// to a completed record.
func alreadyCompleted(err error) bool {
	return errors.Is(err, services.ErrOnboardingCompleted) || client.IsAPIError(err, http.StatusConflict)
}

// Run polls every interval until a terminal outcome, the poll budget or ctx
// ends it. A failed outcome returns the Result together with a *FailureError.
// A transient status error is retried within the same budget.
func (o *Orchestrator) Run(ctx context.Context, attempt *models.ProvisioningAttempt) (*Result, error) {
	result := &Result{Attempt: attempt}

	timer := time.NewTimer(o.interval)
	defer timer.Stop()

	for range o.maxPolls {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
		}

		outcome, status, progress, err := o.Poll(ctx, attempt)
		if ctx.Err() != nil && (progress == nil || !outcome.IsTerminal()) {
			return nil, ctx.Err()
		}

		switch {
		case err != nil && status == nil:
			o.logger.WarnContext(ctx, "provisioning status poll failed",
				"tenant_id", attempt.TenantID,
				"poll", attempt.Polls,
				"error", err)
		case err != nil:
			return nil, err
		case outcome == models.OutcomeSucceeded:
			result.Status = status
			result.Progress = progress

			return result, nil
		case outcome == models.OutcomeFailed:
			result.Status = status
			result.Progress = progress

			return result, &FailureError{AttemptID: attempt.ID, Message: status.ErrorMessage}
		default:
			result.Status = status
		}

		timer.Reset(o.interval)
	}

	result.StillWorking = true

	o.logger.InfoContext(ctx, "provisioning still working after poll budget",
		"tenant_id", attempt.TenantID,
		"attempt_id", attempt.ID,
		"polls", attempt.Polls)

	o.publish(ctx, attempt.TenantID, events.ProvisioningStillWorking{
		BaseEvent: events.NewBaseEvent(events.ProvisioningStillWorkingEvent, attempt.TenantID),
		AttemptID: attempt.ID,
		Polls:     attempt.Polls,
	})

	return result, nil
}

func (o *Orchestrator) publish(ctx context.Context, tenantID string, event eventbus.Event) {
	if o.publisher == nil {
		return
	}

	err := o.publisher.Publish(ctx, tenantID, event)
	if err != nil {
		o.logger.ErrorContext(ctx, "failed to publish event",
			"tenant_id", tenantID,
			"event_type", event.GetType(),
			"error", err)
	}
}
