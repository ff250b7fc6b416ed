// Package models defines the domain models of the tenant onboarding workflow.
package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// Status is the lifecycle marker stored next to the step pointer. Besides the
// fixed values below it can hold the key of any registered step.
type Status string

const (
	StatusNotStarted   Status = "not_started"
	StatusReview       Status = "review"
	StatusProvisioning Status = "provisioning"
	StatusReady        Status = "ready"
	StatusFailed       Status = "failed"
)

// OnboardingProgress is the authoritative per-tenant onboarding record owned
// by the progress store. Controllers only ever hold a cached copy.
type OnboardingProgress struct {
	CurrentStep         int       `json:"currentStep"`
	Status              Status    `json:"status"`
	CompletedSteps      int       `json:"completedSteps"`
	SavedData           SavedData `json:"savedData"`
	OnboardingCompleted bool      `json:"onboardingCompleted"`
	UpdatedAt           time.Time `json:"updatedAt,omitzero"`
}

// NewProgress returns the record created on first access for a tenant.
func NewProgress() *OnboardingProgress {
	return &OnboardingProgress{
		CurrentStep:    1,
		Status:         StatusNotStarted,
		CompletedSteps: 0,
		SavedData:      SavedData{},
	}
}

// Clone returns a deep copy.
func (p *OnboardingProgress) Clone() *OnboardingProgress {
	if p == nil {
		return nil
	}

	c := *p
	c.SavedData = p.SavedData.Clone()

	return &c
}

// IsTerminal reports whether the record is in a state that ends the workflow.
// Failed is soft-terminal: it is left by re-entering review.
func (p *OnboardingProgress) IsTerminal() bool {
	return p.OnboardingCompleted || p.Status == StatusReady || p.Status == StatusFailed
}

// StepCompletion is the write accepted by the progress store.
type StepCompletion struct {
	Step   int       `json:"step"   validate:"required,min=1"`
	Status Status    `json:"status" validate:"required"`
	Data   SavedData `json:"data"`
}

// SavedData is the union of all step field sets.
type SavedData map[string]any

// Merge returns a new SavedData holding every key of d overlaid with the keys
// of patch. Keys absent from patch are never removed.
func (d SavedData) Merge(patch SavedData) SavedData {
	merged := d.Clone()
	if merged == nil {
		merged = SavedData{}
	}

	for key, value := range patch {
		merged[key] = cloneValue(value)
	}

	return merged
}

// Clone deep-copies nested maps and slices so callers cannot mutate the
// original through the copy.
func (d SavedData) Clone() SavedData {
	if d == nil {
		return nil
	}

	c := make(SavedData, len(d))
	for key, value := range d {
		c[key] = cloneValue(value)
	}

	return c
}

// Has reports whether key is present with a non-empty value.
func (d SavedData) Has(key string) bool {
	value, ok := d[key]
	if !ok {
		return false
	}

	return !IsEmptyValue(value)
}

// Decode converts the value stored under key into out via its JSON form.
func (d SavedData) Decode(key string, out any) error {
	value, ok := d[key]
	if !ok {
		return fmt.Errorf("field %q: %w", key, ErrFieldMissing)
	}

	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("field %q: %w", key, err)
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("field %q: %w", key, err)
	}

	return nil
}

// IsEmptyValue treats nil, blank strings, empty slices and empty maps as empty.
func IsEmptyValue(value any) bool {
	switch v := value.(type) {
	case nil:
		return true
	case string:
		return v == ""
	case []any:
		return len(v) == 0
	case map[string]any:
		return len(v) == 0
	case SavedData:
		return len(v) == 0
	default:
		return false
	}
}

func cloneValue(value any) any {
	switch v := value.(type) {
	case map[string]any:
		return map[string]any(SavedData(v).Clone())
	case SavedData:
		return v.Clone()
	case []any:
		c := make([]any, len(v))
		for i, item := range v {
			c[i] = cloneValue(item)
		}

		return c
	default:
		return v
	}
}
