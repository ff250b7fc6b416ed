package provisioning

import (
	"errors"
	"fmt"
)

var (
	ErrStartFailed        = errors.New("provisioning could not be started")
	ErrProvisioningFailed = errors.New("provisioning failed")
	ErrStatusUnavailable  = errors.New("provisioning status unavailable")
)

// FailureError carries the vendor's error message verbatim so it can be shown
// to the tenant as is.
type FailureError struct {
	AttemptID string
	Message   string
}

func (e *FailureError) Error() string {
	if e.Message == "" {
		return ErrProvisioningFailed.Error()
	}

	return e.Message
}

func (e *FailureError) Unwrap() error {
	return ErrProvisioningFailed
}

// StartError wraps a failure to submit the bundle or to record the
// provisioning status afterwards.
type StartError struct {
	Op       string
	TenantID string
	Err      error
}

func (e *StartError) Error() string {
	return fmt.Sprintf("%s failed for tenant %q: %v", e.Op, e.TenantID, e.Err)
}

func (e *StartError) Unwrap() error {
	return e.Err
}

func (e *StartError) Is(target error) bool {
	return target == ErrStartFailed || errors.Is(e.Err, target)
}
