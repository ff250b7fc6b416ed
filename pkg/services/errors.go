// Package services holds the store-of-record rules for onboarding progress.
package services

import (
	"errors"
	"fmt"
)

var (
	// Validation errors (400 Bad Request).
	ErrInvalidRequest = errors.New("invalid request")
	ErrInvalidStep    = errors.New("step out of range")
	ErrInvalidStatus  = errors.New("unknown onboarding status")

	// ErrOnboardingCompleted rejects writes to a finished onboarding (409 Conflict).
	ErrOnboardingCompleted = errors.New("onboarding already completed")
)

// ServiceError wraps service-level errors with additional context.
type ServiceError struct {
	Op      string
	Code    string
	Message string
	Err     error
}

func (e *ServiceError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}

	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

func (e *ServiceError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// IsValidationError reports errors that should map to HTTP 400.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidRequest) ||
		errors.Is(err, ErrInvalidStep) ||
		errors.Is(err, ErrInvalidStatus)
}

// IsConflictError reports errors that should map to HTTP 409.
func IsConflictError(err error) bool {
	return errors.Is(err, ErrOnboardingCompleted)
}

func NewValidationError(op, code, message string, err error) *ServiceError {
	return &ServiceError{
		Op:      op,
		Code:    code,
		Message: message,
		Err:     err,
	}
}
