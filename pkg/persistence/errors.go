package persistence

import (
	"errors"
	"fmt"
)

var (
	// ErrProgressNotFound indicates no document exists yet for the tenant.
	ErrProgressNotFound = errors.New("progress not found")

	// ErrInvalidTenantID indicates a tenant id that cannot be used as a storage key.
	ErrInvalidTenantID = errors.New("invalid tenant id")

	ErrNilProgress = errors.New("progress is nil")
)

// ProgressError wraps progress storage errors with the operation and tenant.
type ProgressError struct {
	Op       string
	TenantID string
	Err      error
}

func (e *ProgressError) Error() string {
	return fmt.Sprintf("%s operation failed for tenant %q: %v", e.Op, e.TenantID, e.Err)
}

func (e *ProgressError) Unwrap() error {
	return e.Err
}

func (e *ProgressError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

func NewProgressError(op, tenantID string, err error) *ProgressError {
	return &ProgressError{
		Op:       op,
		TenantID: tenantID,
		Err:      err,
	}
}

func IsProgressNotFound(err error) bool {
	return errors.Is(err, ErrProgressNotFound)
}
