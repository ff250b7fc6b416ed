package steps

import "github.com/dukex/onboarding/pkg/models"

// Step keys double as the status recorded after each step is completed.
const (
	KeyBusinessInfo = "business_info"
	KeyServices     = "services"
	KeyStaff        = "staff"
	KeyCalendar     = "calendar"
	KeyVoice        = "voice"
	KeyPhone        = "phone"
	KeyReview       = "review"
)

// Saved-data field keys shared by the registry and the validation gate.
const (
	FieldName              = "name"
	FieldEmail             = "email"
	FieldPhone             = "phone"
	FieldTimezone          = "timezone"
	FieldServices          = "services"
	FieldStaff             = "staff"
	FieldCalendarConnected = "calendarConnected"
	FieldCalendarProvider  = "calendarProvider"
	FieldVoiceID           = "voiceId"
	FieldGreeting          = "greeting"
	FieldAreaCode          = "areaCode"
	FieldForwardingNumber  = "forwardingNumber"
	FieldConfirmed         = "confirmed"
)

const clockPattern = `^([01][0-9]|2[0-3]):[0-5][0-9]$`

// DefaultDefinitions is the production step table.
func DefaultDefinitions() []models.StepDefinition {
	return []models.StepDefinition{
		{
			ID:             1,
			Key:            KeyBusinessInfo,
			Title:          "Business information",
			RequiredFields: []string{FieldName, FieldEmail},
			Schema: object(map[string]any{
				FieldName:     map[string]any{"type": "string", "minLength": 1, "maxLength": 200},
				FieldEmail:    map[string]any{"type": "string", "format": "email"},
				FieldPhone:    map[string]any{"type": "string"},
				FieldTimezone: map[string]any{"type": "string"},
			}),
		},
		{
			ID:             2,
			Key:            KeyServices,
			Title:          "Services",
			RequiredFields: []string{FieldServices},
			Schema: object(map[string]any{
				FieldServices: map[string]any{
					"type":     "array",
					"minItems": 1,
					"items": map[string]any{
						"type":     "object",
						"required": []any{"name"},
						"properties": map[string]any{
							"name":            map[string]any{"type": "string", "minLength": 1},
							"durationMinutes": map[string]any{"type": "integer", "minimum": 5, "maximum": 1440},
							"price":           map[string]any{"type": "number", "minimum": 0},
						},
					},
				},
			}),
		},
		{
			ID:             3,
			Key:            KeyStaff,
			Title:          "Staff",
			RequiredFields: []string{FieldStaff},
			Schema: object(map[string]any{
				FieldStaff: map[string]any{
					"type":     "array",
					"minItems": 1,
					"items": map[string]any{
						"type":     "object",
						"required": []any{"name"},
						"properties": map[string]any{
							"name":     map[string]any{"type": "string", "minLength": 1},
							"email":    map[string]any{"type": "string"},
							"services": map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
							"workingHours": map[string]any{
								"type": "array",
								"items": map[string]any{
									"type":     "object",
									"required": []any{"dayOfWeek", "start", "end"},
									"properties": map[string]any{
										"dayOfWeek": map[string]any{"type": "integer", "minimum": 0, "maximum": 6},
										"start":     map[string]any{"type": "string", "pattern": clockPattern},
										"end":       map[string]any{"type": "string", "pattern": clockPattern},
									},
								},
							},
							"timeOff": map[string]any{
								"type": "array",
								"items": map[string]any{
									"type":     "object",
									"required": []any{"timeMin", "timeMax"},
									"properties": map[string]any{
										"timeMin": map[string]any{"type": "string", "format": "date-time"},
										"timeMax": map[string]any{"type": "string", "format": "date-time"},
										"reason":  map[string]any{"type": "string"},
									},
								},
							},
						},
					},
				},
			}),
		},
		{
			ID:             4,
			Key:            KeyCalendar,
			Title:          "Calendar connection",
			RequiredFields: []string{FieldCalendarConnected},
			Schema: object(map[string]any{
				FieldCalendarConnected: map[string]any{"type": "boolean"},
				FieldCalendarProvider:  map[string]any{"type": "string", "enum": []any{"google", "outlook"}},
			}),
		},
		{
			ID:             5,
			Key:            KeyVoice,
			Title:          "Voice",
			RequiredFields: []string{FieldVoiceID},
			Schema: object(map[string]any{
				FieldVoiceID:  map[string]any{"type": "string", "minLength": 1},
				FieldGreeting: map[string]any{"type": "string", "maxLength": 500},
			}),
		},
		{
			ID:             6,
			Key:            KeyPhone,
			Title:          "Phone number",
			RequiredFields: []string{FieldAreaCode},
			Schema: object(map[string]any{
				FieldAreaCode:         map[string]any{"type": "string", "pattern": `^[0-9]{3}$`},
				FieldForwardingNumber: map[string]any{"type": "string"},
			}),
		},
		{
			ID:             7,
			Key:            KeyReview,
			Title:          "Review",
			RequiredFields: []string{FieldConfirmed},
			Schema: object(map[string]any{
				FieldConfirmed: map[string]any{"type": "boolean", "const": true},
			}),
		},
	}
}

// Default returns the production registry. The table is static, so a
// construction error is a programming error.
func Default() *Registry {
	registry, err := New(DefaultDefinitions()...)
	if err != nil {
		panic(err)
	}

	return registry
}

func object(properties map[string]any) map[string]any {
	return map[string]any{
		"type":       "object",
		"properties": properties,
	}
}
