package models

import (
	"fmt"
	"time"
)

const clockLayout = "15:04"

// Service is one bookable offering captured during onboarding.
type Service struct {
	Name            string  `json:"name"            validate:"required"`
	DurationMinutes int     `json:"durationMinutes" validate:"min=5,max=1440"`
	Price           float64 `json:"price"           validate:"min=0"`
}

// StaffMember is a person taking bookings, with the services they perform.
type StaffMember struct {
	Name         string              `json:"name"                   validate:"required"`
	Email        string              `json:"email,omitempty"        validate:"omitempty,email"`
	Services     []string            `json:"services"`
	WorkingHours []StaffWorkingHours `json:"workingHours,omitempty" validate:"dive"`
	TimeOff      []StaffTimeOff      `json:"timeOff,omitempty"      validate:"dive"`
}

// StaffWorkingHours is one shift on a weekday (0 = Sunday). Several disjoint or
// overlapping shifts per day are allowed; overlap is resolved by scheduling.
type StaffWorkingHours struct {
	DayOfWeek int    `json:"dayOfWeek" validate:"min=0,max=6"`
	Start     string `json:"start"     validate:"required,datetime=15:04"`
	End       string `json:"end"       validate:"required,datetime=15:04"`
}

// Validate checks start < end. Field formats are checked by struct tags.
func (h StaffWorkingHours) Validate() error {
	start, err := time.Parse(clockLayout, h.Start)
	if err != nil {
		return fmt.Errorf("start %q: %w", h.Start, err)
	}

	end, err := time.Parse(clockLayout, h.End)
	if err != nil {
		return fmt.Errorf("end %q: %w", h.End, err)
	}

	if !start.Before(end) {
		return fmt.Errorf("%s-%s on day %d: %w", h.Start, h.End, h.DayOfWeek, ErrInvalidWorkingHours)
	}

	return nil
}

// StaffTimeOff is a blocked interval for one staff member.
type StaffTimeOff struct {
	TimeMin time.Time `json:"timeMin"          validate:"required"`
	TimeMax time.Time `json:"timeMax"          validate:"required,gtfield=TimeMin"`
	Reason  string    `json:"reason,omitempty"`
}
