// Package web serves the progress store API over HTTP.
package web

import "github.com/dukex/onboarding/pkg/models"

// CompleteStepRequest is the body of POST /onboarding/step.
type CompleteStepRequest struct {
	Step   int              `json:"step"   validate:"required,min=1"`
	Status string           `json:"status" validate:"required,max=64"`
	Data   models.SavedData `json:"data"`
}

func (r CompleteStepRequest) Completion() models.StepCompletion {
	data := r.Data
	if data == nil {
		data = models.SavedData{}
	}

	return models.StepCompletion{
		Step:   r.Step,
		Status: models.Status(r.Status),
		Data:   data,
	}
}

type HealthResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}
