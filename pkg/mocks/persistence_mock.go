package mocks

import (
	"context"

	"github.com/dukex/onboarding/pkg/models"
	"github.com/dukex/onboarding/pkg/persistence"
	"github.com/stretchr/testify/mock"
)

// MockPersistence is a mock implementation of persistence.Persistence interface.
type MockPersistence struct {
	mock.Mock
}

func (m *MockPersistence) Progress(ctx context.Context, tenantID string) (*models.OnboardingProgress, error) {
	args := m.Called(ctx, tenantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.OnboardingProgress), args.Error(1)
}

func (m *MockPersistence) SaveProgress(ctx context.Context, tenantID string, progress *models.OnboardingProgress) error {
	args := m.Called(ctx, tenantID, progress)

	return args.Error(0)
}

func (m *MockPersistence) ProgressByStatus(ctx context.Context, status models.Status) ([]*persistence.TenantProgress, error) {
	args := m.Called(ctx, status)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*persistence.TenantProgress), args.Error(1)
}

func (m *MockPersistence) HealthCheck(ctx context.Context) error {
	args := m.Called(ctx)

	return args.Error(0)
}

func (m *MockPersistence) Close(ctx context.Context) error {
	args := m.Called(ctx)

	return args.Error(0)
}
