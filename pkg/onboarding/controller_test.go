package onboarding_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dukex/onboarding/pkg/client"
	"github.com/dukex/onboarding/pkg/events"
	"github.com/dukex/onboarding/pkg/gate"
	"github.com/dukex/onboarding/pkg/mocks"
	"github.com/dukex/onboarding/pkg/models"
	"github.com/dukex/onboarding/pkg/onboarding"
	"github.com/dukex/onboarding/pkg/persistence/file"
	"github.com/dukex/onboarding/pkg/provisioning"
	"github.com/dukex/onboarding/pkg/services"
	"github.com/dukex/onboarding/pkg/steps"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const tenantID = "tenant-1"

type fixture struct {
	persistence *file.Persistence
	store       *services.TenantStore
	api         *mocks.MockProvisioningAPI
	tracker     *provisioning.Tracker
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	p := file.NewPersistence(t.TempDir())

	return &fixture{
		persistence: p,
		store:       services.NewProgress(p, steps.Default()).Tenant(tenantID),
		api:         &mocks.MockProvisioningAPI{},
		tracker:     provisioning.NewTracker(),
	}
}

func (f *fixture) orchestrator(opts ...provisioning.Option) *provisioning.Orchestrator {
	opts = append([]provisioning.Option{
		provisioning.WithInterval(time.Millisecond),
		provisioning.WithMaxPolls(5),
		provisioning.WithTracker(f.tracker),
	}, opts...)

	return provisioning.New(f.api, f.store, steps.Default().Total(), opts...)
}

func (f *fixture) controller(t *testing.T, opts ...onboarding.Option) *onboarding.Controller {
	t.Helper()

	c := onboarding.New(tenantID, f.store, f.orchestrator(), opts...)
	t.Cleanup(c.Close)

	return c
}

func (f *fixture) loaded(t *testing.T, opts ...onboarding.Option) *onboarding.Controller {
	t.Helper()

	c := f.controller(t, opts...)

	_, err := c.LoadProgress(context.Background())
	require.NoError(t, err)

	return c
}

func stepPayloads() map[int]models.SavedData {
	return map[int]models.SavedData{
		1: {"name": "Elite Salon", "email": "a@b.com"},
		2: {"services": []any{map[string]any{"name": "Haircut", "durationMinutes": 30}}},
		3: {"staff": []any{map[string]any{
			"name":         "Ana",
			"services":     []any{"Haircut"},
			"workingHours": []any{map[string]any{"dayOfWeek": 1, "start": "09:00", "end": "17:00"}},
		}}},
		4: {"calendarConnected": true, "calendarProvider": "google"},
		5: {"voiceId": "voice-1"},
		6: {"areaCode": "415"},
		7: {"confirmed": true},
	}
}

// advanceThrough submits steps 1..last in order.
func advanceThrough(t *testing.T, c *onboarding.Controller, last int) {
	t.Helper()

	payloads := stepPayloads()

	for step := 1; step <= last; step++ {
		_, err := c.Advance(context.Background(), step, payloads[step])
		require.NoError(t, err, "step %d", step)
	}
}

func TestLoadProgress_FreshTenantRendersFirstStep(t *testing.T) {
	c := newFixture(t).controller(t)

	view, err := c.LoadProgress(context.Background())
	require.NoError(t, err)

	assert.Equal(t, onboarding.PhaseSteps, view.Phase)
	assert.False(t, view.Redirect)
	require.NotNil(t, view.Step)
	assert.Equal(t, 1, view.Step.ID)
	assert.Equal(t, 7, view.TotalSteps)
	assert.Equal(t, 1, view.Progress.CurrentStep)
	assert.Equal(t, models.StatusNotStarted, view.Progress.Status)
	assert.Equal(t, 0, view.Progress.CompletedSteps)
	assert.Empty(t, view.Progress.SavedData)
}

func TestLoadProgress_MalformedSnapshot(t *testing.T) {
	bodies := map[string]string{
		"empty object":         `{}`,
		"step zero":            `{"currentStep":0,"status":"not_started"}`,
		"unknown status":       `{"currentStep":1,"status":"bogus"}`,
		"step past review":     `{"currentStep":99,"status":"staff","completedSteps":3}`,
		"too many completed":   `{"currentStep":7,"status":"review","completedSteps":8}`,
		"negative completed":   `{"currentStep":2,"status":"business_info","completedSteps":-1}`,
		"missing current step": `{"status":"services","completedSteps":2}`,
	}

	for name, body := range bodies {
		t.Run(name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				_, _ = w.Write([]byte(body))
			}))
			defer server.Close()

			session, err := client.NewSession(tenantID, "secret")
			require.NoError(t, err)

			store, err := client.NewProgressClient(server.URL, session)
			require.NoError(t, err)

			c := onboarding.New(tenantID, store, newFixture(t).orchestrator())

			view, err := c.LoadProgress(context.Background())
			require.ErrorIs(t, err, onboarding.ErrLoadFailed)
			require.ErrorIs(t, err, onboarding.ErrMalformedProgress)
			assert.Nil(t, view)

			_, err = c.CurrentStep()
			require.ErrorIs(t, err, onboarding.ErrNotLoaded)

			_, err = c.Advance(context.Background(), 1, stepPayloads()[1])
			require.ErrorIs(t, err, onboarding.ErrNotLoaded)
		})
	}
}

func TestLoadProgress_Failure(t *testing.T) {
	store := &mocks.MockProgressStore{}
	store.On("Load", mock.Anything).Return(nil, errors.New("connection refused"))

	c := onboarding.New(tenantID, store, newFixture(t).orchestrator())

	_, err := c.LoadProgress(context.Background())
	require.ErrorIs(t, err, onboarding.ErrLoadFailed)

	var loadErr *onboarding.LoadError
	require.ErrorAs(t, err, &loadErr)
	assert.Equal(t, tenantID, loadErr.TenantID)

	_, err = c.Advance(context.Background(), 1, stepPayloads()[1])
	require.ErrorIs(t, err, onboarding.ErrNotLoaded)
	require.ErrorIs(t, c.GoBack(), onboarding.ErrNotLoaded)
	require.ErrorIs(t, c.JumpTo(1), onboarding.ErrNotLoaded)

	_, err = c.Provision(context.Background())
	require.ErrorIs(t, err, onboarding.ErrNotLoaded)

	_, err = c.View()
	require.ErrorIs(t, err, onboarding.ErrNotLoaded)

	store.AssertNotCalled(t, "CompleteStep", mock.Anything, mock.Anything)
}

func TestAdvance_FirstStep(t *testing.T) {
	c := newFixture(t).loaded(t)

	view, err := c.Advance(context.Background(), 1, models.SavedData{"name": "Elite Salon", "email": "a@b.com"})
	require.NoError(t, err)

	assert.Equal(t, 2, view.Progress.CurrentStep)
	assert.Equal(t, models.Status(steps.KeyBusinessInfo), view.Progress.Status)
	assert.Equal(t, models.SavedData{"name": "Elite Salon", "email": "a@b.com"}, view.Progress.SavedData)
	assert.Equal(t, 2, c.CurrentStepID())
	assert.Equal(t, 2, view.Step.ID)
}

func TestAdvance_AdditiveMerge(t *testing.T) {
	c := newFixture(t).loaded(t)
	payloads := stepPayloads()

	for step := 1; step <= 6; step++ {
		_, err := c.Advance(context.Background(), step, payloads[step])
		require.NoError(t, err)

		saved := c.SavedDataSoFar()
		for earlier := 1; earlier <= step; earlier++ {
			for key := range payloads[earlier] {
				assert.True(t, saved.Has(key), "field %q of step %d lost after step %d", key, earlier, step)
			}
		}

		assert.Equal(t, "Elite Salon", saved["name"])
	}
}

func TestAdvance_NoSkipAhead(t *testing.T) {
	c := newFixture(t).loaded(t)

	_, err := c.Advance(context.Background(), 3, stepPayloads()[3])
	require.ErrorIs(t, err, onboarding.ErrStepOutOfOrder)
	assert.Equal(t, 1, c.CurrentStepID())

	advanceThrough(t, c, 2)
	assert.Equal(t, 3, c.CurrentStepID())

	_, err = c.Advance(context.Background(), 2, stepPayloads()[2])
	require.ErrorIs(t, err, onboarding.ErrStepOutOfOrder)
	assert.Equal(t, 3, c.CurrentStepID())
}

func TestAdvance_ValidationFailureIsNotPersisted(t *testing.T) {
	store := &mocks.MockProgressStore{}
	store.On("Load", mock.Anything).Return(models.NewProgress(), nil)

	c := onboarding.New(tenantID, store, newFixture(t).orchestrator())

	_, err := c.LoadProgress(context.Background())
	require.NoError(t, err)

	_, err = c.Advance(context.Background(), 1, models.SavedData{"name": "", "email": "not-an-email"})
	require.ErrorIs(t, err, onboarding.ErrValidation)

	var validationErr *onboarding.ValidationError
	require.ErrorAs(t, err, &validationErr)

	fields := make([]string, 0, len(validationErr.Fields))
	for _, field := range validationErr.Fields {
		fields = append(fields, field.Field)
	}

	assert.Contains(t, fields, "name")
	assert.Contains(t, fields, "email")
	assert.Equal(t, 1, c.CurrentStepID())

	store.AssertNotCalled(t, "CompleteStep", mock.Anything, mock.Anything)
}

func TestAdvance_PersistFailureKeepsPointer(t *testing.T) {
	store := &mocks.MockProgressStore{}
	progress := models.NewProgress()
	progress.CurrentStep = 2
	progress.CompletedSteps = 1
	progress.Status = steps.KeyBusinessInfo
	progress.SavedData = models.SavedData{"name": "Elite Salon", "email": "a@b.com"}

	store.On("Load", mock.Anything).Return(progress, nil)
	store.On("CompleteStep", mock.Anything, mock.Anything).Return(nil, errors.New("503 service unavailable"))

	c := onboarding.New(tenantID, store, newFixture(t).orchestrator())

	_, err := c.LoadProgress(context.Background())
	require.NoError(t, err)

	_, err = c.Advance(context.Background(), 2, stepPayloads()[2])
	require.ErrorIs(t, err, onboarding.ErrPersistFailed)

	var persistErr *onboarding.PersistError
	require.ErrorAs(t, err, &persistErr)
	assert.Equal(t, 2, persistErr.StepID)

	assert.Equal(t, 2, c.CurrentStepID())
	assert.False(t, c.SavedDataSoFar().Has("services"))
	assert.False(t, c.IsSubmitting())
}

func TestAdvance_SubmissionInFlight(t *testing.T) {
	store := &mocks.MockProgressStore{}
	release := make(chan struct{})
	entered := make(chan struct{})

	next := models.NewProgress()
	next.CurrentStep = 2
	next.Status = steps.KeyBusinessInfo

	store.On("Load", mock.Anything).Return(models.NewProgress(), nil)
	store.On("CompleteStep", mock.Anything, mock.Anything).
		Run(func(mock.Arguments) {
			close(entered)
			<-release
		}).
		Return(next, nil).Once()

	c := onboarding.New(tenantID, store, newFixture(t).orchestrator())

	_, err := c.LoadProgress(context.Background())
	require.NoError(t, err)

	done := make(chan error, 1)

	go func() {
		_, err := c.Advance(context.Background(), 1, stepPayloads()[1])
		done <- err
	}()

	<-entered
	assert.True(t, c.IsSubmitting())

	_, err = c.Advance(context.Background(), 1, stepPayloads()[1])
	require.ErrorIs(t, err, onboarding.ErrSubmissionInFlight)

	close(release)
	require.NoError(t, <-done)

	assert.False(t, c.IsSubmitting())
	assert.Equal(t, 2, c.CurrentStepID())
	store.AssertNumberOfCalls(t, "CompleteStep", 1)
}

func TestGoBack(t *testing.T) {
	c := newFixture(t).loaded(t)

	require.ErrorIs(t, c.GoBack(), onboarding.ErrAtFirstStep)

	advanceThrough(t, c, 2)
	before := c.SavedDataSoFar()

	require.NoError(t, c.GoBack())
	assert.Equal(t, 2, c.CurrentStepID())
	assert.Equal(t, before, c.SavedDataSoFar())
	assert.Equal(t, models.Status(steps.KeyServices), c.Status())
}

func TestJumpTo_Bound(t *testing.T) {
	c := newFixture(t).loaded(t)

	require.ErrorIs(t, c.JumpTo(2), onboarding.ErrJumpForward)
	require.ErrorIs(t, c.JumpTo(0), onboarding.ErrJumpForward)
	require.NoError(t, c.JumpTo(1))

	advanceThrough(t, c, 3)

	for step := 5; step <= 8; step++ {
		require.ErrorIs(t, c.JumpTo(step), onboarding.ErrJumpForward)
		assert.Equal(t, 4, c.CurrentStepID())
	}
}

func TestJumpTo_EditCompletedStep(t *testing.T) {
	bus := &mocks.MockEventBus{}
	bus.On("Publish", mock.Anything, tenantID, mock.Anything).Return(nil)

	f := newFixture(t)
	c := f.loaded(t, onboarding.WithPublisher(bus))
	advanceThrough(t, c, 3)
	require.Equal(t, 4, c.CurrentStepID())

	require.NoError(t, c.JumpTo(2))
	assert.Equal(t, 2, c.CurrentStepID())
	assert.Equal(t, models.Status(steps.KeyStaff), c.Status(), "status keeps the last completed step")

	services := models.SavedData{"services": []any{
		map[string]any{"name": "Haircut", "durationMinutes": 30},
		map[string]any{"name": "Color", "durationMinutes": 90},
	}}

	view, err := c.Advance(context.Background(), 2, services)
	require.NoError(t, err)

	assert.Equal(t, 3, view.Progress.CurrentStep)
	assert.Equal(t, 3, c.CurrentStepID())
	assert.Equal(t, 3, view.Progress.CompletedSteps)
	assert.Equal(t, "Elite Salon", view.Progress.SavedData["name"])
	assert.Equal(t, "a@b.com", view.Progress.SavedData["email"])
	assert.Len(t, view.Progress.SavedData["services"], 2)

	bus.AssertCalled(t, "Publish", mock.Anything, tenantID, mock.MatchedBy(func(e events.StepEditStarted) bool {
		return e.Step == 2 && e.From == 4
	}))
}

func TestAdvance_StepCompletedPublishedOncePerStep(t *testing.T) {
	bus := &mocks.MockEventBus{}
	bus.On("Publish", mock.Anything, tenantID, mock.Anything).Return(nil)

	f := newFixture(t)
	f.store = services.NewProgress(f.persistence, steps.Default(), services.WithPublisher(bus)).Tenant(tenantID)

	c := f.loaded(t, onboarding.WithPublisher(bus))
	advanceThrough(t, c, 3)

	var completed []int

	for _, call := range bus.Calls {
		if event, ok := call.Arguments.Get(2).(events.StepCompleted); ok {
			completed = append(completed, event.Step)
		}
	}

	assert.Equal(t, []int{1, 2, 3}, completed)
}

func TestAdvance_ReviewGateRejectsMissingStaff(t *testing.T) {
	f := newFixture(t)

	progress := &models.OnboardingProgress{
		CurrentStep:    7,
		Status:         steps.KeyPhone,
		CompletedSteps: 6,
		SavedData: models.SavedData{
			"name":              "Elite Salon",
			"email":             "a@b.com",
			"services":          []any{map[string]any{"name": "Haircut"}},
			"calendarConnected": true,
			"voiceId":           "voice-1",
			"areaCode":          "415",
		},
	}
	require.NoError(t, f.persistence.SaveProgress(context.Background(), tenantID, progress))

	c := f.loaded(t)
	require.Equal(t, 7, c.CurrentStepID())

	_, err := c.Advance(context.Background(), 7, stepPayloads()[7])

	var validationErr *onboarding.ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.Equal(t, []string{gate.MsgStaffRequired}, validationErr.Violations)
	assert.Equal(t, models.Status(steps.KeyPhone), c.Status())

	f.api.AssertNotCalled(t, "Start", mock.Anything, mock.Anything)
}

func TestProvisioning_FailureRevertsToReviewAndRetries(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	c := f.loaded(t)

	f.api.On("Start", mock.Anything, mock.Anything).Return(nil)
	f.api.On("Status", mock.Anything).Return(&models.ProvisioningStatus{Status: "in_progress"}, nil).Once()
	f.api.On("Status", mock.Anything).Return(&models.ProvisioningStatus{Status: "failed", ErrorMessage: "phone number unavailable"}, nil).Once()

	advanceThrough(t, c, 6)

	view, err := c.Advance(ctx, 7, stepPayloads()[7])
	require.NoError(t, err)
	assert.Equal(t, onboarding.PhaseProvisioning, view.Phase)
	assert.Equal(t, models.StatusProvisioning, c.Status())
	assert.Equal(t, 7, c.CurrentStepID())

	beforeSubmission := c.SavedDataSoFar()

	_, err = c.Advance(ctx, 7, stepPayloads()[7])
	require.ErrorIs(t, err, onboarding.ErrProvisioningInFlight)
	require.ErrorIs(t, c.GoBack(), onboarding.ErrProvisioningInFlight)

	_, err = c.AwaitProvisioning(ctx)
	require.ErrorIs(t, err, onboarding.ErrProvisioningFailed)
	assert.EqualError(t, err, "phone number unavailable")

	assert.Equal(t, models.StatusReview, c.Status())
	assert.Equal(t, "phone number unavailable", c.ProvisioningError())
	assert.Equal(t, beforeSubmission, c.SavedDataSoFar())
	assert.Equal(t, 7, c.CurrentStepID())

	stored, err := f.store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.StatusReview, stored.Status)
	assert.Equal(t, beforeSubmission, stored.SavedData)

	view, err = c.View()
	require.NoError(t, err)
	assert.Equal(t, onboarding.PhaseSteps, view.Phase)
	assert.Equal(t, "phone number unavailable", view.ProvisioningError)

	// retry without re-entering any step
	f.api.On("Status", mock.Anything).Return(&models.ProvisioningStatus{Status: "ready", AgentID: "agent-1"}, nil)

	attempt, err := c.Provision(ctx)
	require.NoError(t, err)
	assert.Equal(t, tenantID, attempt.TenantID)
	assert.Empty(t, c.ProvisioningError())

	result, err := c.AwaitProvisioning(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeSucceeded, result.Attempt.Outcome)

	f.api.AssertNumberOfCalls(t, "Start", 2)
	f.api.AssertCalled(t, "Start", mock.Anything, beforeSubmission)
}

func TestProvisioning_SuccessIsTerminal(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	c := f.loaded(t)

	f.api.On("Start", mock.Anything, mock.Anything).Return(nil)
	f.api.On("Status", mock.Anything).Return(&models.ProvisioningStatus{Status: "succeeded", PhoneNumber: "+14155550100"}, nil)

	advanceThrough(t, c, 7)

	result, err := c.AwaitProvisioning(ctx)
	require.NoError(t, err)
	assert.Equal(t, "+14155550100", result.Attempt.PhoneNumber)

	assert.Equal(t, models.StatusReady, c.Status())
	assert.True(t, c.Progress().OnboardingCompleted)

	// terminal guard
	pointer := c.CurrentStepID()

	_, err = c.Advance(ctx, pointer, stepPayloads()[pointer])
	require.ErrorIs(t, err, onboarding.ErrOnboardingCompleted)
	require.ErrorIs(t, c.GoBack(), onboarding.ErrOnboardingCompleted)
	require.ErrorIs(t, c.JumpTo(1), onboarding.ErrOnboardingCompleted)

	_, err = c.Provision(ctx)
	require.ErrorIs(t, err, onboarding.ErrOnboardingCompleted)
	assert.Equal(t, pointer, c.CurrentStepID())

	// a later session short-circuits to the redirect
	again := onboarding.New(tenantID, f.store, f.orchestrator())

	view, err := again.LoadProgress(ctx)
	require.NoError(t, err)
	assert.True(t, view.Redirect)
	assert.Equal(t, onboarding.PhaseDone, view.Phase)
	assert.Nil(t, view.Step)
}

func TestProvisioning_BudgetExhaustedStaysProvisioning(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	c := f.loaded(t)

	f.api.On("Start", mock.Anything, mock.Anything).Return(nil)
	f.api.On("Status", mock.Anything).Return(&models.ProvisioningStatus{Status: "queued"}, nil)

	advanceThrough(t, c, 7)

	result, err := c.AwaitProvisioning(ctx)
	require.NoError(t, err)
	assert.True(t, result.StillWorking)

	view, err := c.View()
	require.NoError(t, err)
	assert.True(t, view.StillWorking)
	assert.Equal(t, onboarding.PhaseProvisioning, view.Phase)
	assert.Equal(t, models.StatusProvisioning, c.Status())

	_, err = c.Provision(ctx)
	require.ErrorIs(t, err, onboarding.ErrProvisioningInFlight)
}

func TestLoadProgress_ResumesProvisioning(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	progress := models.NewProgress()
	progress.CurrentStep = 7
	progress.CompletedSteps = 7
	progress.Status = models.StatusProvisioning
	require.NoError(t, f.persistence.SaveProgress(ctx, tenantID, progress))

	f.api.On("Status", mock.Anything).Return(&models.ProvisioningStatus{Status: "completed"}, nil)

	c := f.controller(t)

	view, err := c.LoadProgress(ctx)
	require.NoError(t, err)
	assert.Equal(t, onboarding.PhaseProvisioning, view.Phase)

	_, err = c.AwaitProvisioning(ctx)
	require.NoError(t, err)
	assert.True(t, c.Progress().OnboardingCompleted)

	f.api.AssertNotCalled(t, "Start", mock.Anything, mock.Anything)
}

func TestAwaitProvisioning_SuccessRecordedElsewhere(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	progress := models.NewProgress()
	progress.CurrentStep = 7
	progress.CompletedSteps = 7
	progress.Status = models.StatusProvisioning
	require.NoError(t, f.persistence.SaveProgress(ctx, tenantID, progress))

	c := f.controller(t)
	_, err := c.LoadProgress(ctx)
	require.NoError(t, err)

	// an earlier poll loop recorded the outcome after this session stopped waiting
	progress.Status = models.StatusReady
	progress.OnboardingCompleted = true
	require.NoError(t, f.persistence.SaveProgress(ctx, tenantID, progress))

	f.api.On("Status", mock.Anything).Return(&models.ProvisioningStatus{Status: "ready"}, nil)

	result, err := c.AwaitProvisioning(ctx)
	require.NoError(t, err)

	assert.Equal(t, models.OutcomeSucceeded, result.Attempt.Outcome)
	assert.Equal(t, models.StatusReady, c.Status())
	assert.True(t, c.Progress().OnboardingCompleted)

	view, err := c.View()
	require.NoError(t, err)
	assert.True(t, view.Redirect)

	_, err = c.AwaitProvisioning(ctx)
	require.ErrorIs(t, err, onboarding.ErrOnboardingCompleted)
}

func TestLoadProgress_RepairsMissingCompletionMarker(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	progress := models.NewProgress()
	progress.CurrentStep = 7
	progress.Status = models.StatusReady
	require.NoError(t, f.persistence.SaveProgress(ctx, tenantID, progress))

	view, err := f.controller(t).LoadProgress(ctx)
	require.NoError(t, err)
	assert.True(t, view.Redirect)

	stored, err := f.store.Load(ctx)
	require.NoError(t, err)
	assert.True(t, stored.OnboardingCompleted)
}

func TestClose_CancelsPollLoop(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	f.api.On("Start", mock.Anything, mock.Anything).Return(nil)
	f.api.On("Status", mock.Anything).Return(&models.ProvisioningStatus{Status: "in_progress"}, nil)

	c := onboarding.New(tenantID, f.store, f.orchestrator(provisioning.WithInterval(time.Hour)))

	_, err := c.LoadProgress(ctx)
	require.NoError(t, err)

	advanceThrough(t, c, 7)

	done := make(chan error, 1)

	go func() {
		_, err := c.AwaitProvisioning(ctx)
		done <- err
	}()

	require.Eventually(t, func() bool { return f.tracker.Active(tenantID) }, time.Second, time.Millisecond)

	c.Close()

	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("poll loop was not cancelled")
	}

	assert.False(t, f.tracker.Active(tenantID))
	assert.Equal(t, models.StatusProvisioning, c.Status())
}

func TestAwaitProvisioning_RequiresProvisioningStatus(t *testing.T) {
	c := newFixture(t).loaded(t)

	_, err := c.AwaitProvisioning(context.Background())
	require.ErrorIs(t, err, onboarding.ErrNotProvisioning)

	_, err = c.Provision(context.Background())
	require.ErrorIs(t, err, onboarding.ErrNotAtReview)
}
