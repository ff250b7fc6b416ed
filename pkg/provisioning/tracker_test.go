package provisioning_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dukex/onboarding/pkg/models"
	"github.com/dukex/onboarding/pkg/provisioning"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func blockingRun(started *atomic.Int32) func(ctx context.Context) (*provisioning.Result, error) {
	return func(ctx context.Context) (*provisioning.Result, error) {
		started.Add(1)
		<-ctx.Done()

		return nil, ctx.Err()
	}
}

func TestTracker_WatchCoalescesPerTenant(t *testing.T) {
	tracker := provisioning.NewTracker()

	var started atomic.Int32

	first := tracker.Watch(context.Background(), "tenant-1", blockingRun(&started))
	second := tracker.Watch(context.Background(), "tenant-1", blockingRun(&started))
	other := tracker.Watch(context.Background(), "tenant-2", blockingRun(&started))

	assert.Same(t, first, second)
	assert.NotSame(t, first, other)
	assert.Equal(t, 2, tracker.Len())

	tracker.CancelAll()

	for _, task := range []*provisioning.Task{first, other} {
		_, err := task.Wait(context.Background())
		require.ErrorIs(t, err, context.Canceled)
	}

	assert.Equal(t, int32(2), started.Load())
	assert.Equal(t, 0, tracker.Len())
}

func TestTracker_CancelOneTenant(t *testing.T) {
	tracker := provisioning.NewTracker()

	var started atomic.Int32

	task := tracker.Watch(context.Background(), "tenant-1", blockingRun(&started))
	other := tracker.Watch(context.Background(), "tenant-2", blockingRun(&started))

	assert.True(t, tracker.Cancel("tenant-1"))
	assert.False(t, tracker.Cancel("tenant-3"))

	<-task.Done()
	assert.False(t, tracker.Active("tenant-1"))
	assert.True(t, tracker.Active("tenant-2"))

	other.Cancel()
	<-other.Done()
	assert.False(t, tracker.Active("tenant-2"))
}

func TestTracker_ParentContextCancels(t *testing.T) {
	tracker := provisioning.NewTracker()
	ctx, cancel := context.WithCancel(context.Background())

	var started atomic.Int32

	task := tracker.Watch(ctx, "tenant-1", blockingRun(&started))
	cancel()

	_, err := task.Wait(context.Background())
	require.ErrorIs(t, err, context.Canceled)
	assert.False(t, tracker.Active("tenant-1"))
}

func TestTracker_TaskRemovesItselfOnCompletion(t *testing.T) {
	tracker := provisioning.NewTracker()
	want := &provisioning.Result{Attempt: &models.ProvisioningAttempt{ID: "a-1"}}

	task := tracker.Watch(context.Background(), "tenant-1", func(context.Context) (*provisioning.Result, error) {
		return want, nil
	})

	got, err := task.Wait(context.Background())
	require.NoError(t, err)
	assert.Same(t, want, got)
	assert.False(t, tracker.Active("tenant-1"))

	// a finished task does not block a new one
	next := tracker.Watch(context.Background(), "tenant-1", func(context.Context) (*provisioning.Result, error) {
		return nil, nil
	})
	assert.NotSame(t, task, next)
	<-next.Done()
}

func TestTask_WaitHonoursCallerContext(t *testing.T) {
	tracker := provisioning.NewTracker()

	var started atomic.Int32

	task := tracker.Watch(context.Background(), "tenant-1", blockingRun(&started))
	defer tracker.CancelAll()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := task.Wait(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.True(t, tracker.Active("tenant-1"))
}

func TestTask_WaitPrefersFinishedResult(t *testing.T) {
	tracker := provisioning.NewTracker()
	want := &provisioning.Result{Attempt: &models.ProvisioningAttempt{ID: "a-1"}}

	task := tracker.Watch(context.Background(), "tenant-1", func(context.Context) (*provisioning.Result, error) {
		return want, nil
	})
	<-task.Done()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	for range 20 {
		got, err := task.Wait(ctx)
		require.NoError(t, err)
		assert.Same(t, want, got)
	}
}

func TestOrchestrator_WatchRunsTrackedLoop(t *testing.T) {
	store := newStore(t)
	bundle := seedReview(t, store)
	api := &scriptedAPI{script: []statusReply{pending(), {status: &models.ProvisioningStatus{Status: "succeeded"}}}}
	tracker := provisioning.NewTracker()
	o := newOrchestrator(api, store, provisioning.WithTracker(tracker))

	assert.Same(t, tracker, o.Tracker())

	attempt, err := o.Start(context.Background(), tenantID, bundle)
	require.NoError(t, err)

	task := o.Watch(context.Background(), attempt)

	result, err := task.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeSucceeded, result.Attempt.Outcome)
	assert.False(t, tracker.Active(tenantID))
}
