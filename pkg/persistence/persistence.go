// Package persistence provides the storage abstraction for tenant onboarding progress.
package persistence

import (
	"context"
	"regexp"

	"github.com/dukex/onboarding/pkg/models"
)

// Persistence stores one progress document per tenant.
type Persistence interface {
	// Progress returns the tenant's document, creating the empty one on first access.
	Progress(ctx context.Context, tenantID string) (*models.OnboardingProgress, error)
	SaveProgress(ctx context.Context, tenantID string, progress *models.OnboardingProgress) error
	ProgressByStatus(ctx context.Context, status models.Status) ([]*TenantProgress, error)
	HealthCheck(ctx context.Context) error

	Close(ctx context.Context) error
}

type TenantProgress struct {
	TenantID string                     `json:"tenantId"`
	Progress *models.OnboardingProgress `json:"progress"`
}

var tenantIDPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.-]{0,127}$`)

// ValidateTenantID rejects ids that cannot be used as a storage key, such as
// blanks or path fragments.
func ValidateTenantID(tenantID string) error {
	if !tenantIDPattern.MatchString(tenantID) {
		return NewProgressError("ValidateTenantID", tenantID, ErrInvalidTenantID)
	}

	return nil
}
