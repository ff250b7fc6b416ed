package client

import (
	"context"
	"net/http"

	"github.com/dukex/onboarding/pkg/models"
)

// ProgressClient is the progress store of record seen from one session.
type ProgressClient struct {
	*base
}

func NewProgressClient(baseURL string, session *Session, opts ...Option) (*ProgressClient, error) {
	b, err := newBase("progress_client", baseURL, session, DefaultTimeout, opts)
	if err != nil {
		return nil, err
	}

	return &ProgressClient{base: b}, nil
}

func (c *ProgressClient) TenantID() string {
	return c.session.TenantID
}

func (c *ProgressClient) Load(ctx context.Context) (*models.OnboardingProgress, error) {
	var progress models.OnboardingProgress

	err := c.do(ctx, http.MethodGet, "/onboarding/progress", nil, &progress)
	if err != nil {
		return nil, err
	}

	return normalize(&progress), nil
}

func (c *ProgressClient) CompleteStep(ctx context.Context, completion models.StepCompletion) (*models.OnboardingProgress, error) {
	if completion.Data == nil {
		completion.Data = models.SavedData{}
	}

	var progress models.OnboardingProgress

	err := c.do(ctx, http.MethodPost, "/onboarding/step", completion, &progress)
	if err != nil {
		return nil, err
	}

	return normalize(&progress), nil
}

func (c *ProgressClient) MarkCompleted(ctx context.Context) (*models.OnboardingProgress, error) {
	var progress models.OnboardingProgress

	err := c.do(ctx, http.MethodPost, "/onboarding/complete", nil, &progress)
	if err != nil {
		return nil, err
	}

	return normalize(&progress), nil
}

func normalize(progress *models.OnboardingProgress) *models.OnboardingProgress {
	if progress.SavedData == nil {
		progress.SavedData = models.SavedData{}
	}

	return progress
}
