package models

import "errors"

var (
	// ErrFieldMissing indicates a saved-data key is absent.
	ErrFieldMissing = errors.New("field missing")

	// ErrInvalidWorkingHours indicates a working-hours entry whose start is not before its end.
	ErrInvalidWorkingHours = errors.New("working hours start must be before end")
)
