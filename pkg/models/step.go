package models

// StepDefinition describes one onboarding screen. Definitions are static and
// never persisted.
type StepDefinition struct {
	ID             int            `json:"id"`
	Key            string         `json:"key"`
	Title          string         `json:"title"`
	RequiredFields []string       `json:"requiredFields"`
	Schema         map[string]any `json:"-"`
}

// Status returns the status recorded once this step has been completed.
func (s StepDefinition) Status() Status {
	return Status(s.Key)
}
