package web

import (
	"net/http"

	"github.com/dukex/onboarding/pkg/services"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
)

type APIHandlers struct {
	progress  *services.Progress
	validator *validator.Validate
}

func NewAPIHandlers(progress *services.Progress, validator *validator.Validate) *APIHandlers {
	return &APIHandlers{
		progress:  progress,
		validator: validator,
	}
}

// Register mounts the progress store routes behind the tenant middleware.
func (h *APIHandlers) Register(app *fiber.App, verify TokenVerifier) {
	o := app.Group("/onboarding", RequireTenant(verify))
	o.Get("/progress", h.GetProgress)
	o.Post("/step", h.CompleteStep)
	o.Post("/complete", h.MarkCompleted)

	app.Get("/health", h.HealthCheck)
}

func (h *APIHandlers) GetProgress(c fiber.Ctx) error {
	progress, err := h.progress.Load(c.Context(), tenantID(c))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(progress)
}

func (h *APIHandlers) CompleteStep(c fiber.Ctx) error {
	var req CompleteStepRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	progress, err := h.progress.CompleteStep(c.Context(), tenantID(c), req.Completion())
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(progress)
}

func (h *APIHandlers) MarkCompleted(c fiber.Ctx) error {
	progress, err := h.progress.MarkCompleted(c.Context(), tenantID(c))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(progress)
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	message, ok := h.progress.HealthCheck(c.Context())
	if !ok {
		return c.Status(http.StatusServiceUnavailable).JSON(HealthResponse{Status: "unhealthy", Message: message})
	}

	return c.JSON(HealthResponse{Status: "healthy", Message: message})
}
