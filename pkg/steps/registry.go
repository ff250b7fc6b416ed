// Package steps holds the static, ordered registry of onboarding steps and the
// per-step payload contracts.
package steps

import (
	"errors"
	"fmt"
	"slices"

	"github.com/dukex/onboarding/pkg/models"
	"github.com/xeipuuv/gojsonschema"
)

var (
	ErrStepNotFound     = errors.New("step not found")
	ErrInvalidRegistry  = errors.New("invalid step registry")
	ErrSchemaValidation = errors.New("payload schema validation failed")
)

// Registry is an immutable ordered list of step definitions. The last step is
// the review step that hands over to provisioning.
type Registry struct {
	steps   []models.StepDefinition
	byKey   map[string]int
	schemas map[int]*gojsonschema.Schema
}

// New builds a registry. Step ids must run 1..n in order, keys must be unique
// and no step may require a field that is only captured by a later step.
func New(definitions ...models.StepDefinition) (*Registry, error) {
	if len(definitions) == 0 {
		return nil, fmt.Errorf("%w: no steps", ErrInvalidRegistry)
	}

	r := &Registry{
		steps:   make([]models.StepDefinition, 0, len(definitions)),
		byKey:   make(map[string]int, len(definitions)),
		schemas: make(map[int]*gojsonschema.Schema, len(definitions)),
	}

	captured := make(map[string]bool)

	for i, def := range definitions {
		if def.ID != i+1 {
			return nil, fmt.Errorf("%w: step %q has id %d, expected %d", ErrInvalidRegistry, def.Key, def.ID, i+1)
		}

		if def.Key == "" {
			return nil, fmt.Errorf("%w: step %d has no key", ErrInvalidRegistry, def.ID)
		}

		if _, dup := r.byKey[def.Key]; dup {
			return nil, fmt.Errorf("%w: duplicate step key %q", ErrInvalidRegistry, def.Key)
		}

		if isReservedStatus(models.Status(def.Key)) && i != len(definitions)-1 {
			return nil, fmt.Errorf("%w: step key %q is reserved", ErrInvalidRegistry, def.Key)
		}

		for _, field := range schemaProperties(def.Schema) {
			captured[field] = true
		}

		for _, field := range def.RequiredFields {
			if !captured[field] {
				return nil, fmt.Errorf("%w: step %q requires %q which no step up to it captures", ErrInvalidRegistry, def.Key, field)
			}
		}

		if def.Schema != nil {
			schema, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(def.Schema))
			if err != nil {
				return nil, fmt.Errorf("%w: step %q schema: %w", ErrInvalidRegistry, def.Key, err)
			}

			r.schemas[def.ID] = schema
		}

		r.byKey[def.Key] = def.ID
		r.steps = append(r.steps, def)
	}

	return r, nil
}

// Total is the number of steps including review.
func (r *Registry) Total() int {
	return len(r.steps)
}

// Steps returns a copy of the ordered definitions.
func (r *Registry) Steps() []models.StepDefinition {
	return slices.Clone(r.steps)
}

// Step returns the definition with the given 1-based id.
func (r *Registry) Step(id int) (models.StepDefinition, error) {
	if id < 1 || id > len(r.steps) {
		return models.StepDefinition{}, fmt.Errorf("step %d: %w", id, ErrStepNotFound)
	}

	return r.steps[id-1], nil
}

// ByKey looks a step up by its status key.
func (r *Registry) ByKey(key string) (models.StepDefinition, error) {
	id, ok := r.byKey[key]
	if !ok {
		return models.StepDefinition{}, fmt.Errorf("step %q: %w", key, ErrStepNotFound)
	}

	return r.steps[id-1], nil
}

// Review is the final content step.
func (r *Registry) Review() models.StepDefinition {
	return r.steps[len(r.steps)-1]
}

// IsReview reports whether id is the review step.
func (r *Registry) IsReview(id int) bool {
	return id == len(r.steps)
}

// IsStepStatus reports whether status names a content step other than review.
func (r *Registry) IsStepStatus(status models.Status) bool {
	id, ok := r.byKey[string(status)]

	return ok && !r.IsReview(id)
}

// ValidStatus accepts the lifecycle statuses and every step key.
func (r *Registry) ValidStatus(status models.Status) bool {
	if isReservedStatus(status) {
		return true
	}

	_, ok := r.byKey[string(status)]

	return ok
}

func isReservedStatus(status models.Status) bool {
	switch status {
	case models.StatusNotStarted, models.StatusReview, models.StatusProvisioning,
		models.StatusReady, models.StatusFailed:
		return true
	default:
		return false
	}
}

func schemaProperties(schema map[string]any) []string {
	properties, _ := schema["properties"].(map[string]any)

	fields := make([]string, 0, len(properties))
	for field := range properties {
		fields = append(fields, field)
	}

	return fields
}
