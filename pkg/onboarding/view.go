package onboarding

import "github.com/dukex/onboarding/pkg/models"

// Phase tells the shell which surface to show.
type Phase string

const (
	PhaseSteps        Phase = "steps"
	PhaseProvisioning Phase = "provisioning"
	PhaseDone         Phase = "done"
)

// View is a snapshot of the controller for rendering. It shares nothing with
// the controller's state.
type View struct {
	Phase             Phase                      `json:"phase"`
	Step              *models.StepDefinition     `json:"step,omitempty"`
	TotalSteps        int                        `json:"totalSteps"`
	Progress          *models.OnboardingProgress `json:"progress"`
	Redirect          bool                       `json:"redirect"`
	ProvisioningError string                     `json:"provisioningError,omitempty"`
	StillWorking      bool                       `json:"stillWorking,omitempty"`
}
