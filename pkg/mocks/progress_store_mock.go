package mocks

import (
	"context"

	"github.com/dukex/onboarding/pkg/models"
	"github.com/stretchr/testify/mock"
)

// MockProgressStore is a mock implementation of onboarding.ProgressStore and provisioning.Store.
type MockProgressStore struct {
	mock.Mock
}

func (m *MockProgressStore) Load(ctx context.Context) (*models.OnboardingProgress, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.OnboardingProgress), args.Error(1)
}

func (m *MockProgressStore) CompleteStep(ctx context.Context, completion models.StepCompletion) (*models.OnboardingProgress, error) {
	args := m.Called(ctx, completion)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.OnboardingProgress), args.Error(1)
}

func (m *MockProgressStore) MarkCompleted(ctx context.Context) (*models.OnboardingProgress, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.OnboardingProgress), args.Error(1)
}

// MockProvisioningAPI is a mock implementation of provisioning.API.
type MockProvisioningAPI struct {
	mock.Mock
}

func (m *MockProvisioningAPI) Start(ctx context.Context, bundle models.SavedData) error {
	args := m.Called(ctx, bundle)

	return args.Error(0)
}

func (m *MockProvisioningAPI) Status(ctx context.Context) (*models.ProvisioningStatus, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.ProvisioningStatus), args.Error(1)
}
