package models

import (
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSavedData_MergeIsAdditive(t *testing.T) {
	base := SavedData{"name": "Elite Salon", "email": "a@b.com"}

	merged := base.Merge(SavedData{"services": []any{map[string]any{"name": "Cut"}}})

	assert.Equal(t, "Elite Salon", merged["name"])
	assert.Equal(t, "a@b.com", merged["email"])
	assert.Len(t, merged["services"], 1)
	assert.NotContains(t, base, "services", "merge must not mutate the receiver")
}

func TestSavedData_MergeOverwritesResubmittedKeys(t *testing.T) {
	base := SavedData{"name": "Old", "email": "a@b.com"}

	merged := base.Merge(SavedData{"name": "New"})

	assert.Equal(t, "New", merged["name"])
	assert.Equal(t, "a@b.com", merged["email"])
}

func TestSavedData_MergeOnNil(t *testing.T) {
	var base SavedData

	merged := base.Merge(SavedData{"name": "x"})

	assert.Equal(t, SavedData{"name": "x"}, merged)
}

func TestSavedData_CloneIsDeep(t *testing.T) {
	original := SavedData{
		"staff": []any{map[string]any{"name": "Ann"}},
	}

	clone := original.Clone()
	staff := clone["staff"].([]any)
	staff[0].(map[string]any)["name"] = "Bob"

	assert.Equal(t, "Ann", original["staff"].([]any)[0].(map[string]any)["name"])
}

func TestSavedData_Has(t *testing.T) {
	data := SavedData{"name": "", "services": []any{}, "voiceId": "v1", "calendarConnected": false}

	assert.False(t, data.Has("name"))
	assert.False(t, data.Has("services"))
	assert.False(t, data.Has("missing"))
	assert.True(t, data.Has("voiceId"))
	assert.True(t, data.Has("calendarConnected"))
}

func TestSavedData_Decode(t *testing.T) {
	data := SavedData{
		"staff": []any{
			map[string]any{"name": "Ann", "services": []any{"Cut"}},
		},
	}

	var staff []StaffMember

	require.NoError(t, data.Decode("staff", &staff))
	require.Len(t, staff, 1)
	assert.Equal(t, "Ann", staff[0].Name)
	assert.Equal(t, []string{"Cut"}, staff[0].Services)

	err := data.Decode("services", &staff)
	assert.ErrorIs(t, err, ErrFieldMissing)
}

func TestNewProgress(t *testing.T) {
	p := NewProgress()

	assert.Equal(t, 1, p.CurrentStep)
	assert.Equal(t, StatusNotStarted, p.Status)
	assert.Equal(t, 0, p.CompletedSteps)
	assert.Empty(t, p.SavedData)
	assert.False(t, p.IsTerminal())
}

func TestOnboardingProgress_IsTerminal(t *testing.T) {
	assert.True(t, (&OnboardingProgress{Status: StatusReady}).IsTerminal())
	assert.True(t, (&OnboardingProgress{Status: StatusFailed}).IsTerminal())
	assert.True(t, (&OnboardingProgress{Status: StatusReview, OnboardingCompleted: true}).IsTerminal())
	assert.False(t, (&OnboardingProgress{Status: StatusProvisioning}).IsTerminal())
}

func TestStaffWorkingHours_Validate(t *testing.T) {
	assert.NoError(t, StaffWorkingHours{DayOfWeek: 1, Start: "09:00", End: "17:00"}.Validate())
	assert.ErrorIs(t, StaffWorkingHours{DayOfWeek: 1, Start: "17:00", End: "09:00"}.Validate(), ErrInvalidWorkingHours)
	assert.ErrorIs(t, StaffWorkingHours{DayOfWeek: 1, Start: "09:00", End: "09:00"}.Validate(), ErrInvalidWorkingHours)
	assert.Error(t, StaffWorkingHours{DayOfWeek: 1, Start: "9am", End: "17:00"}.Validate())
}

func TestStaffMember_StructValidation(t *testing.T) {
	validate := validator.New(validator.WithRequiredStructEnabled())
	now := time.Now().UTC()

	valid := StaffMember{
		Name:     "Ann",
		Services: []string{"Cut"},
		WorkingHours: []StaffWorkingHours{
			{DayOfWeek: 1, Start: "09:00", End: "12:00"},
			{DayOfWeek: 1, Start: "13:00", End: "17:00"},
		},
		TimeOff: []StaffTimeOff{{TimeMin: now, TimeMax: now.Add(time.Hour)}},
	}
	assert.NoError(t, validate.Struct(valid))

	badDay := valid
	badDay.WorkingHours = []StaffWorkingHours{{DayOfWeek: 7, Start: "09:00", End: "12:00"}}
	assert.Error(t, validate.Struct(badDay))

	badTimeOff := valid
	badTimeOff.TimeOff = []StaffTimeOff{{TimeMin: now, TimeMax: now.Add(-time.Hour)}}
	assert.Error(t, validate.Struct(badTimeOff))
}

func TestProvisioningStatus_Outcome(t *testing.T) {
	tests := []struct {
		status  string
		outcome Outcome
		known   bool
	}{
		{"queued", OutcomePending, true},
		{"in_progress", OutcomePending, true},
		{"ready", OutcomeSucceeded, true},
		{"Succeeded", OutcomeSucceeded, true},
		{"failed", OutcomeFailed, true},
		{"error", OutcomeFailed, true},
		{"warming_up", OutcomePending, false},
	}

	for _, tt := range tests {
		t.Run(tt.status, func(t *testing.T) {
			s := ProvisioningStatus{Status: tt.status}
			assert.Equal(t, tt.outcome, s.Outcome())
			assert.Equal(t, tt.known, s.Known())
		})
	}

	assert.True(t, OutcomeFailed.IsTerminal())
	assert.False(t, OutcomePending.IsTerminal())
}
