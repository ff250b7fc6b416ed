package sweeper_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dukex/onboarding/pkg/events"
	"github.com/dukex/onboarding/pkg/mocks"
	"github.com/dukex/onboarding/pkg/models"
	"github.com/dukex/onboarding/pkg/persistence"
	"github.com/dukex/onboarding/pkg/persistence/file"
	"github.com/dukex/onboarding/pkg/services"
	"github.com/dukex/onboarding/pkg/steps"
	"github.com/dukex/onboarding/pkg/sweeper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type failingLister struct{}

func (failingLister) Stalled(context.Context, time.Duration, time.Time) ([]*persistence.TenantProgress, error) {
	return nil, errors.New("database unavailable")
}

func seed(t *testing.T, p *file.Persistence, tenantID string, status models.Status) {
	t.Helper()

	progress := models.NewProgress()
	progress.CurrentStep = 7
	progress.Status = status
	require.NoError(t, p.SaveProgress(context.Background(), tenantID, progress))
}

func TestNew_Validation(t *testing.T) {
	progress := services.NewProgress(file.NewPersistence(t.TempDir()), steps.Default())

	_, err := sweeper.New(progress, nil, sweeper.WithSchedule("not a schedule"))
	require.Error(t, err)

	_, err = sweeper.New(progress, nil, sweeper.WithStallAfter(0))
	require.Error(t, err)

	s, err := sweeper.New(progress, nil)
	require.NoError(t, err)
	require.NotNil(t, s)
}

func TestSweep_PublishesStalledTenants(t *testing.T) {
	ctx := context.Background()
	p := file.NewPersistence(t.TempDir())

	seed(t, p, "tenant-a", models.StatusProvisioning)
	seed(t, p, "tenant-b", models.StatusProvisioning)
	seed(t, p, "tenant-c", models.StatusReview)

	bus := &mocks.MockEventBus{}
	bus.On("Publish", mock.Anything, mock.Anything, mock.MatchedBy(func(e events.ProvisioningStalled) bool {
		return e.GetType() == events.ProvisioningStalledEvent && !e.Since.IsZero()
	})).Return(nil)

	s, err := sweeper.New(services.NewProgress(p, steps.Default()), bus,
		sweeper.WithStallAfter(time.Minute),
		sweeper.WithClock(func() time.Time { return time.Now().Add(time.Hour) }))
	require.NoError(t, err)

	count, err := s.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	bus.AssertNumberOfCalls(t, "Publish", 2)
	bus.AssertCalled(t, "Publish", mock.Anything, "tenant-a", mock.Anything)
	bus.AssertCalled(t, "Publish", mock.Anything, "tenant-b", mock.Anything)

	// status is never changed by the sweep
	progress, err := p.Progress(ctx, "tenant-a")
	require.NoError(t, err)
	assert.Equal(t, models.StatusProvisioning, progress.Status)
}

func TestSweep_FreshProvisioningIsNotStalled(t *testing.T) {
	p := file.NewPersistence(t.TempDir())
	seed(t, p, "tenant-a", models.StatusProvisioning)

	bus := &mocks.MockEventBus{}

	s, err := sweeper.New(services.NewProgress(p, steps.Default()), bus, sweeper.WithStallAfter(time.Hour))
	require.NoError(t, err)

	count, err := s.Sweep(context.Background())
	require.NoError(t, err)
	assert.Zero(t, count)

	bus.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything)
}

func TestSweep_ListerError(t *testing.T) {
	s, err := sweeper.New(failingLister{}, nil)
	require.NoError(t, err)

	_, err = s.Sweep(context.Background())
	require.Error(t, err)
}

func TestStartStop(t *testing.T) {
	ctx := context.Background()

	s, err := sweeper.New(services.NewProgress(file.NewPersistence(t.TempDir()), steps.Default()), nil,
		sweeper.WithSchedule("@every 1h"))
	require.NoError(t, err)

	require.NoError(t, s.Start(ctx))
	require.ErrorIs(t, s.Start(ctx), sweeper.ErrAlreadyStarted)
	require.NoError(t, s.Stop(ctx))
	require.NoError(t, s.Stop(ctx))
}
