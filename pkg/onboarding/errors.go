package onboarding

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dukex/onboarding/pkg/provisioning"
	"github.com/dukex/onboarding/pkg/steps"
)

var (
	ErrNotLoaded            = errors.New("progress not loaded")
	ErrLoadFailed           = errors.New("progress could not be loaded")
	ErrMalformedProgress    = errors.New("stored progress is malformed")
	ErrStepOutOfOrder       = errors.New("step is not the current step")
	ErrJumpForward          = errors.New("cannot jump past the current step")
	ErrAtFirstStep          = errors.New("already at the first step")
	ErrNotAtReview          = errors.New("provisioning can only start from review")
	ErrNotProvisioning      = errors.New("no provisioning in progress")
	ErrSubmissionInFlight   = errors.New("a submission is already in flight")
	ErrProvisioningInFlight = errors.New("provisioning is already in progress")
	ErrOnboardingCompleted  = errors.New("onboarding already completed")
	ErrValidation           = errors.New("validation failed")
	ErrPersistFailed        = errors.New("progress could not be saved")

	// ErrProvisioningFailed matches the *provisioning.FailureError returned by AwaitProvisioning.
	ErrProvisioningFailed = provisioning.ErrProvisioningFailed
)

// LoadError is returned by LoadProgress. The controller stays unloaded.
type LoadError struct {
	TenantID string
	Err      error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("loading progress of tenant %q: %v", e.TenantID, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

func (e *LoadError) Is(target error) bool {
	return target == ErrLoadFailed
}

// ValidationError lists the offending fields of a step payload or the gate
// violations of the full bundle. Nothing was persisted.
type ValidationError struct {
	StepID     int
	Fields     []steps.FieldError
	Violations []string
}

func (e *ValidationError) Error() string {
	messages := make([]string, 0, len(e.Fields)+len(e.Violations))

	for _, field := range e.Fields {
		messages = append(messages, field.String())
	}

	messages = append(messages, e.Violations...)

	return fmt.Sprintf("step %d: %s: %s", e.StepID, ErrValidation, strings.Join(messages, "; "))
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// PersistError is returned when the progress store rejected or lost a write.
// The step pointer did not move.
type PersistError struct {
	StepID int
	Err    error
}

func (e *PersistError) Error() string {
	return fmt.Sprintf("saving step %d: %v", e.StepID, e.Err)
}

func (e *PersistError) Unwrap() error {
	return e.Err
}

func (e *PersistError) Is(target error) bool {
	return target == ErrPersistFailed
}
