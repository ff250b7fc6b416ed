// Package gate decides whether the accumulated onboarding data is complete
// enough to start provisioning. Every rule is a pure function of the saved
// data so the review screen can re-run it on each change.
package gate

import (
	"errors"
	"fmt"

	"github.com/dukex/onboarding/pkg/models"
	"github.com/dukex/onboarding/pkg/steps"
	"github.com/go-playground/validator/v10"
)

const (
	MsgBusinessNameRequired = "Business name is required"
	MsgEmailRequired        = "A contact email is required"
	MsgServiceRequired      = "At least one service is required"
	MsgStaffRequired        = "At least one staff member is required"
	MsgCalendarRequired     = "Calendar connection must be confirmed"
	MsgVoiceRequired        = "A voice selection is required"
	MsgPhoneRequired        = "A phone number preference is required"
	MsgStaffMalformed       = "Staff data is malformed"
)

// Rule inspects the saved data and returns zero or more violation messages.
type Rule func(data models.SavedData) []string

// Gate evaluates its rules in order.
type Gate struct {
	rules []Rule
}

// New builds a gate with the given rules; with none it uses DefaultRules.
func New(rules ...Rule) *Gate {
	if len(rules) == 0 {
		rules = DefaultRules()
	}

	return &Gate{rules: rules}
}

// Check returns every violation. An empty result means provisioning may start.
func (g *Gate) Check(data models.SavedData) []string {
	violations := make([]string, 0)

	for _, rule := range g.rules {
		violations = append(violations, rule(data)...)
	}

	return violations
}

// Eligible is Check reduced to a boolean.
func (g *Gate) Eligible(data models.SavedData) bool {
	return len(g.Check(data)) == 0
}

var defaultGate = New()

// Check runs the default rules.
func Check(data models.SavedData) []string {
	return defaultGate.Check(data)
}

// DefaultRules are the production rules in display order.
func DefaultRules() []Rule {
	structValidator := validator.New(validator.WithRequiredStructEnabled())

	return []Rule{
		present(steps.FieldName, MsgBusinessNameRequired),
		present(steps.FieldEmail, MsgEmailRequired),
		atLeastOne(steps.FieldServices, MsgServiceRequired),
		atLeastOne(steps.FieldStaff, MsgStaffRequired),
		staffConsistency(structValidator),
		confirmed(steps.FieldCalendarConnected, MsgCalendarRequired),
		present(steps.FieldVoiceID, MsgVoiceRequired),
		present(steps.FieldAreaCode, MsgPhoneRequired),
	}
}

func present(field, message string) Rule {
	return func(data models.SavedData) []string {
		if data.Has(field) {
			return nil
		}

		return []string{message}
	}
}

func atLeastOne(field, message string) Rule {
	return func(data models.SavedData) []string {
		var items []any
		if err := data.Decode(field, &items); err != nil || len(items) == 0 {
			return []string{message}
		}

		return nil
	}
}

func confirmed(field, message string) Rule {
	return func(data models.SavedData) []string {
		if ok, _ := data[field].(bool); ok {
			return nil
		}

		return []string{message}
	}
}

// staffConsistency catches omissions that only show up across steps: staff
// without services, services nobody offers, and malformed schedules.
func staffConsistency(structValidator *validator.Validate) Rule {
	return func(data models.SavedData) []string {
		var staff []models.StaffMember
		err := data.Decode(steps.FieldStaff, &staff)
		if errors.Is(err, models.ErrFieldMissing) {
			return nil
		}

		if err != nil {
			return []string{MsgStaffMalformed}
		}

		var offered []models.Service
		_ = data.Decode(steps.FieldServices, &offered)

		known := make(map[string]bool, len(offered))
		for _, service := range offered {
			known[service.Name] = true
		}

		var violations []string

		for i, member := range staff {
			name := member.Name
			if name == "" {
				name = fmt.Sprintf("#%d", i+1)
			}

			if len(member.Services) == 0 {
				violations = append(violations, fmt.Sprintf("Staff member %q has no assigned services", name))
			}

			for _, service := range member.Services {
				if len(known) > 0 && !known[service] {
					violations = append(violations, fmt.Sprintf("Staff member %q is assigned unknown service %q", name, service))
				}
			}

			if !validHours(structValidator, member.WorkingHours) {
				violations = append(violations, fmt.Sprintf("Staff member %q has invalid working hours", name))
			}

			if !validTimeOff(structValidator, member.TimeOff) {
				violations = append(violations, fmt.Sprintf("Staff member %q has invalid time off", name))
			}
		}

		return violations
	}
}

func validHours(structValidator *validator.Validate, hours []models.StaffWorkingHours) bool {
	for _, entry := range hours {
		if structValidator.Struct(entry) != nil || entry.Validate() != nil {
			return false
		}
	}

	return true
}

func validTimeOff(structValidator *validator.Validate, timeOff []models.StaffTimeOff) bool {
	for _, entry := range timeOff {
		if structValidator.Struct(entry) != nil {
			return false
		}
	}

	return true
}
