// Package onboarding implements the per-tenant onboarding state machine: it
// rebuilds the step pointer from the progress store, validates and persists
// each step, guards navigation and hands the finished bundle to provisioning.
package onboarding

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/dukex/onboarding/pkg/eventbus"
	"github.com/dukex/onboarding/pkg/events"
	"github.com/dukex/onboarding/pkg/gate"
	"github.com/dukex/onboarding/pkg/models"
	"github.com/dukex/onboarding/pkg/otelhelper"
	"github.com/dukex/onboarding/pkg/provisioning"
	"github.com/dukex/onboarding/pkg/steps"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
)

// ProgressStore is the tenant-bound progress store of record.
type ProgressStore interface {
	Load(ctx context.Context) (*models.OnboardingProgress, error)
	CompleteStep(ctx context.Context, completion models.StepCompletion) (*models.OnboardingProgress, error)
	MarkCompleted(ctx context.Context) (*models.OnboardingProgress, error)
}

// Provisioner is the part of the provisioning orchestrator the controller drives.
type Provisioner interface {
	Start(ctx context.Context, tenantID string, bundle models.SavedData) (*models.ProvisioningAttempt, error)
	Watch(ctx context.Context, attempt *models.ProvisioningAttempt) *provisioning.Task
	Tracker() *provisioning.Tracker
}

type Controller struct {
	tenantID    string
	store       ProgressStore
	provisioner Provisioner
	registry    *steps.Registry
	gate        *gate.Gate
	logger      *slog.Logger
	publisher   eventbus.EventPublisher

	mu                sync.Mutex
	loaded            bool
	progress          *models.OnboardingProgress
	current           int
	submitting        bool
	attempt           *models.ProvisioningAttempt
	provisioningError string
	stillWorking      bool
}

type Option func(*Controller)

func WithRegistry(registry *steps.Registry) Option {
	return func(c *Controller) {
		c.registry = registry
	}
}

func WithGate(g *gate.Gate) Option {
	return func(c *Controller) {
		c.gate = g
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Controller) {
		c.logger = logger
	}
}

// WithPublisher emits step.edit_started events. step.completed belongs to
// the progress store, which publishes it once per accepted write.
func WithPublisher(publisher eventbus.EventPublisher) Option {
	return func(c *Controller) {
		c.publisher = publisher
	}
}

func New(tenantID string, store ProgressStore, provisioner Provisioner, opts ...Option) *Controller {
	c := &Controller{
		tenantID:    tenantID,
		store:       store,
		provisioner: provisioner,
		logger:      slog.Default(),
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.registry == nil {
		c.registry = steps.Default()
	}

	if c.gate == nil {
		c.gate = gate.New()
	}

	c.logger = c.logger.With("module", "onboarding", "tenant_id", tenantID)

	return c
}

// LoadProgress fetches the snapshot and rebuilds the pointer from it. It is
// not retried; on failure the controller stays unloaded.
func (c *Controller) LoadProgress(ctx context.Context) (*View, error) {
	ctx, span := otelhelper.StartSpan(ctx, otelhelper.Tracer(), "onboarding.load",
		attribute.String(otelhelper.TenantIDKey, c.tenantID))
	defer span.End()

	progress, err := c.store.Load(ctx)
	if err == nil {
		err = c.checkSnapshot(progress)
	}

	if err == nil && progress.Status == models.StatusReady && !progress.OnboardingCompleted {
		// a success whose completion marker was never written
		progress, err = c.store.MarkCompleted(ctx)
		if err == nil {
			err = c.checkSnapshot(progress)
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err != nil {
		otelhelper.SetError(span, err)
		c.logger.ErrorContext(ctx, "failed to load progress", "error", err)

		c.loaded = false
		c.progress = nil

		return nil, &LoadError{TenantID: c.tenantID, Err: err}
	}

	c.loaded = true
	c.progress = progress.Clone()
	c.current = c.clamp(progress.CurrentStep)
	c.provisioningError = ""
	c.stillWorking = false

	switch progress.Status {
	case models.StatusProvisioning, models.StatusFailed:
		c.current = c.registry.Total()
	}

	c.logger.InfoContext(ctx, "progress loaded",
		"status", progress.Status,
		"current_step", c.current,
		"completed_steps", progress.CompletedSteps,
		"onboarding_completed", progress.OnboardingCompleted)

	return c.view(), nil
}

// checkSnapshot rejects a record the step pointer cannot be rebuilt from.
func (c *Controller) checkSnapshot(progress *models.OnboardingProgress) error {
	total := c.registry.Total()

	switch {
	case progress == nil:
		return fmt.Errorf("%w: empty snapshot", ErrMalformedProgress)
	case progress.CurrentStep < 1 || progress.CurrentStep > total:
		return fmt.Errorf("%w: current step %d outside 1..%d", ErrMalformedProgress, progress.CurrentStep, total)
	case !c.registry.ValidStatus(progress.Status):
		return fmt.Errorf("%w: unknown status %q", ErrMalformedProgress, progress.Status)
	case progress.CompletedSteps < 0 || progress.CompletedSteps > total:
		return fmt.Errorf("%w: %d completed steps outside 0..%d", ErrMalformedProgress, progress.CompletedSteps, total)
	}

	return nil
}

// Advance validates and persists the payload of the current step. The
// pointer moves only once the store has accepted the write. On the review
// step the full bundle must pass the gate and provisioning is started.
func (c *Controller) Advance(ctx context.Context, stepID int, payload models.SavedData) (*View, error) {
	ctx, span := otelhelper.StartSpan(ctx, otelhelper.Tracer(), "onboarding.advance",
		attribute.String(otelhelper.TenantIDKey, c.tenantID),
		attribute.Int(otelhelper.StepIDKey, stepID))
	defer span.End()

	c.mu.Lock()

	err := c.checkNavigable()
	if err == nil && c.submitting {
		err = ErrSubmissionInFlight
	}

	if err == nil && stepID != c.current {
		err = fmt.Errorf("%w: got %d, current is %d", ErrStepOutOfOrder, stepID, c.current)
	}

	if err != nil {
		c.mu.Unlock()

		return nil, err
	}

	def, _ := c.registry.Step(stepID)
	span.SetAttributes(attribute.String(otelhelper.StepKeyKey, def.Key))

	fieldErrors, err := c.registry.Validate(stepID, payload)
	if err != nil {
		c.mu.Unlock()
		otelhelper.SetError(span, err)

		return nil, err
	}

	if len(fieldErrors) > 0 {
		c.mu.Unlock()

		return nil, &ValidationError{StepID: stepID, Fields: fieldErrors}
	}

	review := c.registry.IsReview(stepID)

	if review {
		violations := c.gate.Check(c.progress.SavedData.Merge(payload))
		if len(violations) > 0 {
			c.mu.Unlock()

			return nil, &ValidationError{StepID: stepID, Violations: violations}
		}
	}

	c.submitting = true
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.submitting = false
		c.mu.Unlock()
	}()

	snapshot, err := c.store.CompleteStep(ctx, models.StepCompletion{
		Step:   stepID,
		Status: def.Status(),
		Data:   payload,
	})
	if err != nil {
		otelhelper.SetError(span, err)
		c.logger.ErrorContext(ctx, "failed to persist step", "step", stepID, "error", err)

		return nil, &PersistError{StepID: stepID, Err: err}
	}

	c.mu.Lock()
	c.progress = snapshot.Clone()
	c.current = c.clamp(snapshot.CurrentStep)
	c.provisioningError = ""
	c.mu.Unlock()

	c.logger.InfoContext(ctx, "step completed", "step", stepID, "key", def.Key)

	if review {
		_, err = c.startProvisioning(ctx, snapshot.SavedData)
		if err != nil {
			otelhelper.SetError(span, err)

			return nil, err
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	return c.view(), nil
}

// GoBack moves the pointer one step back without any I/O.
func (c *Controller) GoBack() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	err := c.checkNavigable()
	if err != nil {
		return err
	}

	if c.current <= 1 {
		return ErrAtFirstStep
	}

	c.current--

	return nil
}

// JumpTo moves the pointer back to an already reached step. The stored
// status is untouched until that step is submitted again.
func (c *Controller) JumpTo(stepID int) error {
	c.mu.Lock()

	err := c.checkNavigable()
	if err != nil {
		c.mu.Unlock()

		return err
	}

	if stepID < 1 || stepID > c.current {
		c.mu.Unlock()

		return fmt.Errorf("%w: step %d, current is %d", ErrJumpForward, stepID, c.current)
	}

	from := c.current
	c.current = stepID
	c.mu.Unlock()

	if stepID < from {
		c.publish(context.Background(), events.StepEditStarted{
			BaseEvent: events.NewBaseEvent(events.StepEditStartedEvent, c.tenantID),
			Step:      stepID,
			From:      from,
		})
	}

	return nil
}

// Provision starts a new provisioning attempt from review with the data
// already saved, which is how a failed attempt is retried.
func (c *Controller) Provision(ctx context.Context) (*models.ProvisioningAttempt, error) {
	c.mu.Lock()

	err := c.checkLoaded()
	if err != nil {
		c.mu.Unlock()

		return nil, err
	}

	switch {
	case c.progress.OnboardingCompleted || c.progress.Status == models.StatusReady:
		err = ErrOnboardingCompleted
	case c.progress.Status == models.StatusProvisioning || c.attempt != nil:
		err = ErrProvisioningInFlight
	case c.submitting:
		err = ErrSubmissionInFlight
	case !c.registry.IsReview(c.current):
		err = ErrNotAtReview
	case c.progress.Status != models.StatusReview && c.progress.Status != models.StatusFailed:
		err = ErrNotAtReview
	}

	if err != nil {
		c.mu.Unlock()

		return nil, err
	}

	bundle := c.progress.SavedData.Clone()

	violations := c.gate.Check(bundle)
	if len(violations) > 0 {
		c.mu.Unlock()

		return nil, &ValidationError{StepID: c.current, Violations: violations}
	}

	c.submitting = true
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.submitting = false
		c.mu.Unlock()
	}()

	attempt, err := c.startProvisioning(ctx, bundle)
	if err != nil {
		return nil, err
	}

	started := *attempt

	return &started, nil
}

func (c *Controller) startProvisioning(ctx context.Context, bundle models.SavedData) (*models.ProvisioningAttempt, error) {
	attempt, err := c.provisioner.Start(ctx, c.tenantID, bundle)
	if err != nil {
		c.logger.ErrorContext(ctx, "failed to start provisioning", "error", err)

		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.attempt = attempt
	c.progress.Status = models.StatusProvisioning
	c.provisioningError = ""
	c.stillWorking = false

	return attempt, nil
}

// AwaitProvisioning runs the tenant's poll loop through the tracker and
// reflects the outcome. A loop already running for the tenant is joined.
// Ending ctx cancels the loop.
func (c *Controller) AwaitProvisioning(ctx context.Context) (*provisioning.Result, error) {
	c.mu.Lock()

	err := c.checkLoaded()
	if err != nil {
		c.mu.Unlock()

		return nil, err
	}

	if c.progress.OnboardingCompleted {
		c.mu.Unlock()

		return nil, ErrOnboardingCompleted
	}

	if c.progress.Status != models.StatusProvisioning {
		c.mu.Unlock()

		return nil, ErrNotProvisioning
	}

	attempt := c.attempt
	if attempt == nil {
		// resumed after a reload: the attempt itself was never persisted
		attempt = &models.ProvisioningAttempt{
			ID:        uuid.NewString(),
			TenantID:  c.tenantID,
			StartedAt: c.progress.UpdatedAt,
			Outcome:   models.OutcomePending,
		}
		c.attempt = attempt
	}
	c.mu.Unlock()

	task := c.provisioner.Watch(ctx, attempt)

	result, err := task.Wait(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()

	var failure *provisioning.FailureError

	switch {
	case errors.As(err, &failure):
		c.attempt = nil
		c.provisioningError = failure.Message
		c.adopt(result)
		c.current = c.registry.Total()
	case err != nil:
		return nil, err
	case result.StillWorking:
		c.stillWorking = true
	default:
		c.attempt = nil
		c.stillWorking = false
		c.adopt(result)
	}

	return result, err
}

func (c *Controller) adopt(result *provisioning.Result) {
	if result != nil && result.Progress != nil {
		c.progress = result.Progress.Clone()
	}
}

// Close cancels the tenant's poll loop, if any.
func (c *Controller) Close() {
	c.provisioner.Tracker().Cancel(c.tenantID)
}

func (c *Controller) TenantID() string {
	return c.tenantID
}

func (c *Controller) CurrentStepID() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.current
}

func (c *Controller) CurrentStep() (models.StepDefinition, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.checkLoaded(); err != nil {
		return models.StepDefinition{}, err
	}

	return c.registry.Step(c.current)
}

// SavedDataSoFar returns a deep copy of everything persisted.
func (c *Controller) SavedDataSoFar() models.SavedData {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.progress == nil {
		return models.SavedData{}
	}

	return c.progress.SavedData.Clone()
}

func (c *Controller) IsSubmitting() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.submitting
}

func (c *Controller) Status() models.Status {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.progress == nil {
		return ""
	}

	return c.progress.Status
}

func (c *Controller) Progress() *models.OnboardingProgress {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.progress.Clone()
}

// ProvisioningError is the vendor message of the last failed attempt.
func (c *Controller) ProvisioningError() string {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.provisioningError
}

func (c *Controller) View() (*View, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.checkLoaded(); err != nil {
		return nil, err
	}

	return c.view(), nil
}

func (c *Controller) view() *View {
	v := &View{
		TotalSteps:        c.registry.Total(),
		Progress:          c.progress.Clone(),
		ProvisioningError: c.provisioningError,
		StillWorking:      c.stillWorking,
	}

	switch {
	case c.progress.OnboardingCompleted:
		v.Phase = PhaseDone
		v.Redirect = true

		return v
	case c.progress.Status == models.StatusProvisioning:
		v.Phase = PhaseProvisioning
	default:
		v.Phase = PhaseSteps
	}

	def, err := c.registry.Step(c.current)
	if err == nil {
		v.Step = &def
	}

	return v
}

func (c *Controller) checkLoaded() error {
	if !c.loaded {
		return ErrNotLoaded
	}

	return nil
}

// checkNavigable guards pointer changes: none after completion and none
// while the bundle is with the provisioning API.
func (c *Controller) checkNavigable() error {
	if err := c.checkLoaded(); err != nil {
		return err
	}

	if c.progress.OnboardingCompleted || c.progress.Status == models.StatusReady {
		return ErrOnboardingCompleted
	}

	if c.progress.Status == models.StatusProvisioning {
		return ErrProvisioningInFlight
	}

	return nil
}

func (c *Controller) clamp(step int) int {
	return min(max(step, 1), c.registry.Total())
}

func (c *Controller) publish(ctx context.Context, event eventbus.Event) {
	if c.publisher == nil {
		return
	}

	err := c.publisher.Publish(ctx, c.tenantID, event)
	if err != nil {
		c.logger.ErrorContext(ctx, "failed to publish event", "event_type", event.GetType(), "error", err)
	}
}
