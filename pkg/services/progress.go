package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dukex/onboarding/pkg/eventbus"
	"github.com/dukex/onboarding/pkg/events"
	"github.com/dukex/onboarding/pkg/models"
	"github.com/dukex/onboarding/pkg/persistence"
	"github.com/dukex/onboarding/pkg/steps"
)

// Progress applies step completions to the stored progress documents. All
// backends share these transition rules.
type Progress struct {
	persistence persistence.Persistence
	registry    *steps.Registry
	logger      *slog.Logger
	publisher   eventbus.EventPublisher

	locks sync.Map
}

type ProgressOption func(*Progress)

// WithPublisher publishes an event for every accepted write.
func WithPublisher(publisher eventbus.EventPublisher) ProgressOption {
	return func(p *Progress) {
		p.publisher = publisher
	}
}

func WithLogger(logger *slog.Logger) ProgressOption {
	return func(p *Progress) {
		p.logger = logger
	}
}

func NewProgress(persistence persistence.Persistence, registry *steps.Registry, opts ...ProgressOption) *Progress {
	p := &Progress{
		persistence: persistence,
		registry:    registry,
		logger:      slog.Default(),
	}

	for _, opt := range opts {
		opt(p)
	}

	p.logger = p.logger.With("module", "progress_service")

	return p
}

// HealthCheck checks the health of the persistence layer.
func (p *Progress) HealthCheck(ctx context.Context) (string, bool) {
	if p.persistence == nil {
		return "Persistence layer not initialized", false
	}

	err := p.persistence.HealthCheck(ctx)
	if err != nil {
		return "Persistence layer is unhealthy: " + err.Error(), false
	}

	return "Persistence layer is healthy", true
}

// Load returns the tenant's progress, creating it on first access.
func (p *Progress) Load(ctx context.Context, tenantID string) (*models.OnboardingProgress, error) {
	progress, err := p.persistence.Progress(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to load progress: %w", err)
	}

	return progress, nil
}

// CompleteStep merges the submitted data and moves the step pointer.
func (p *Progress) CompleteStep(ctx context.Context, tenantID string, completion models.StepCompletion) (*models.OnboardingProgress, error) {
	total := p.registry.Total()

	if completion.Step < 1 || completion.Step > total {
		return nil, NewValidationError("CompleteStep", "invalid_step",
			fmt.Sprintf("step %d is outside 1..%d", completion.Step, total), ErrInvalidStep)
	}

	if !p.registry.ValidStatus(completion.Status) {
		return nil, NewValidationError("CompleteStep", "invalid_status",
			fmt.Sprintf("status %q is not known", completion.Status), ErrInvalidStatus)
	}

	unlock := p.lock(tenantID)
	defer unlock()

	progress, err := p.persistence.Progress(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to load progress: %w", err)
	}

	if progress.OnboardingCompleted {
		return nil, &ServiceError{Op: "CompleteStep", Code: "onboarding_completed", Err: ErrOnboardingCompleted}
	}

	next := p.apply(progress, completion)

	err = p.persistence.SaveProgress(ctx, tenantID, next)
	if err != nil {
		return nil, fmt.Errorf("failed to save progress: %w", err)
	}

	p.logger.InfoContext(ctx, "step completed",
		"tenant_id", tenantID,
		"step", completion.Step,
		"status", completion.Status,
		"current_step", next.CurrentStep)

	p.publish(ctx, tenantID, events.StepCompleted{
		BaseEvent:      events.NewBaseEvent(events.StepCompletedEvent, tenantID),
		Step:           completion.Step,
		Status:         completion.Status,
		CompletedSteps: next.CompletedSteps,
	})

	return next.Clone(), nil
}

func (p *Progress) apply(progress *models.OnboardingProgress, completion models.StepCompletion) *models.OnboardingProgress {
	total := p.registry.Total()
	next := progress.Clone()

	next.SavedData = next.SavedData.Merge(completion.Data)
	next.Status = completion.Status

	if p.registry.IsStepStatus(completion.Status) {
		next.CurrentStep = min(completion.Step+1, total)
	} else {
		next.CurrentStep = completion.Step
	}

	if p.registry.IsStepStatus(completion.Status) || completion.Status == models.StatusReview {
		next.CompletedSteps = max(next.CompletedSteps, min(completion.Step, total))
	}

	return next
}

// MarkCompleted sets the completion marker. Repeated calls are no-ops.
func (p *Progress) MarkCompleted(ctx context.Context, tenantID string) (*models.OnboardingProgress, error) {
	unlock := p.lock(tenantID)
	defer unlock()

	progress, err := p.persistence.Progress(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to load progress: %w", err)
	}

	if progress.OnboardingCompleted {
		return progress, nil
	}

	progress.OnboardingCompleted = true

	err = p.persistence.SaveProgress(ctx, tenantID, progress)
	if err != nil {
		return nil, fmt.Errorf("failed to save progress: %w", err)
	}

	p.logger.InfoContext(ctx, "onboarding completed", "tenant_id", tenantID)

	p.publish(ctx, tenantID, events.OnboardingCompleted{
		BaseEvent: events.NewBaseEvent(events.CompletedEvent, tenantID),
	})

	return progress.Clone(), nil
}

// Stalled lists tenants whose provisioning record was last written before now-threshold.
func (p *Progress) Stalled(ctx context.Context, threshold time.Duration, now time.Time) ([]*persistence.TenantProgress, error) {
	provisioning, err := p.persistence.ProgressByStatus(ctx, models.StatusProvisioning)
	if err != nil {
		return nil, fmt.Errorf("failed to list provisioning tenants: %w", err)
	}

	cutoff := now.Add(-threshold)
	stalled := make([]*persistence.TenantProgress, 0)

	for _, record := range provisioning {
		if record.Progress.UpdatedAt.Before(cutoff) {
			stalled = append(stalled, record)
		}
	}

	return stalled, nil
}

func (p *Progress) lock(tenantID string) func() {
	value, _ := p.locks.LoadOrStore(tenantID, &sync.Mutex{})
	mu := value.(*sync.Mutex)
	mu.Lock()

	return mu.Unlock
}

func (p *Progress) publish(ctx context.Context, tenantID string, event eventbus.Event) {
	if p.publisher == nil {
		return
	}

	err := p.publisher.Publish(ctx, tenantID, event)
	if err != nil {
		p.logger.ErrorContext(ctx, "failed to publish event",
			"tenant_id", tenantID,
			"event_type", event.GetType(),
			"error", err)
	}
}
