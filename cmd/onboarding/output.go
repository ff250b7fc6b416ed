package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/dukex/onboarding/pkg/models"
	"github.com/dukex/onboarding/pkg/onboarding"
)

var ErrConflictingData = errors.New("--data and --data-file are mutually exclusive")

func writeJSON(w io.Writer, v any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")

	return encoder.Encode(v)
}

func parseData(raw, path string) (models.SavedData, error) {
	if raw != "" && path != "" {
		return nil, ErrConflictingData
	}

	if path != "" {
		content, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read step data: %w", err)
		}

		raw = string(content)
	}

	data := models.SavedData{}

	if strings.TrimSpace(raw) == "" {
		return data, nil
	}

	err := json.Unmarshal([]byte(raw), &data)
	if err != nil {
		return nil, fmt.Errorf("step data must be a JSON object: %w", err)
	}

	return data, nil
}

func formatValidation(err *onboarding.ValidationError) string {
	lines := make([]string, 0, len(err.Fields)+len(err.Violations))

	for _, field := range err.Fields {
		lines = append(lines, "  - "+field.String())
	}

	for _, violation := range err.Violations {
		lines = append(lines, "  - "+violation)
	}

	return strings.Join(lines, "\n")
}
