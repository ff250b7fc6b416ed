package steps

import (
	"fmt"
	"strings"

	"github.com/dukex/onboarding/pkg/models"
	"github.com/xeipuuv/gojsonschema"
)

const rootField = "(root)"

// FieldError names one offending field so a form can highlight it.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e FieldError) String() string {
	return e.Field + ": " + e.Message
}

// Validate runs the presence check for the step's required fields and then the
// step schema. It never looks at data captured by other steps.
func (r *Registry) Validate(id int, payload models.SavedData) ([]FieldError, error) {
	def, err := r.Step(id)
	if err != nil {
		return nil, err
	}

	var fieldErrors []FieldError

	for _, field := range def.RequiredFields {
		if !payload.Has(field) {
			fieldErrors = append(fieldErrors, FieldError{Field: field, Message: "is required"})
		}
	}

	schema, ok := r.schemas[id]
	if !ok {
		return fieldErrors, nil
	}

	document := payload
	if document == nil {
		document = models.SavedData{}
	}

	result, err := schema.Validate(gojsonschema.NewGoLoader(document))
	if err != nil {
		return nil, fmt.Errorf("%w: step %q: %w", ErrSchemaValidation, def.Key, err)
	}

	for _, resultErr := range result.Errors() {
		// Missing required properties are already reported by the presence check.
		if resultErr.Type() == "required" {
			continue
		}

		fieldErrors = append(fieldErrors, FieldError{
			Field:   schemaField(resultErr),
			Message: resultErr.Description(),
		})
	}

	return fieldErrors, nil
}

func schemaField(resultErr gojsonschema.ResultError) string {
	field := resultErr.Field()
	if field == "" {
		return rootField
	}

	return strings.TrimPrefix(field, rootField+".")
}
