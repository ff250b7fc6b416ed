package services

import (
	"context"

	"github.com/dukex/onboarding/pkg/models"
)

// TenantStore binds the progress service to one tenant. It is the in-process
// counterpart of the HTTP progress client.
type TenantStore struct {
	progress *Progress
	tenantID string
}

func (p *Progress) Tenant(tenantID string) *TenantStore {
	return &TenantStore{progress: p, tenantID: tenantID}
}

func (s *TenantStore) TenantID() string {
	return s.tenantID
}

func (s *TenantStore) Load(ctx context.Context) (*models.OnboardingProgress, error) {
	return s.progress.Load(ctx, s.tenantID)
}

func (s *TenantStore) CompleteStep(ctx context.Context, completion models.StepCompletion) (*models.OnboardingProgress, error) {
	return s.progress.CompleteStep(ctx, s.tenantID, completion)
}

func (s *TenantStore) MarkCompleted(ctx context.Context) (*models.OnboardingProgress, error) {
	return s.progress.MarkCompleted(ctx, s.tenantID)
}
