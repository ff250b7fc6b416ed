package models

import (
	"strings"
	"time"
)

// Outcome classifies a provisioning attempt.
type Outcome string

const (
	OutcomePending   Outcome = "pending"
	OutcomeSucceeded Outcome = "succeeded"
	OutcomeFailed    Outcome = "failed"
)

// IsTerminal reports whether polling can stop.
func (o Outcome) IsTerminal() bool {
	return o == OutcomeSucceeded || o == OutcomeFailed
}

// ProvisioningAttempt lives only for the active session; it is discarded once
// its terminal outcome has been reflected into the progress record.
type ProvisioningAttempt struct {
	ID           string     `json:"id"`
	TenantID     string     `json:"tenantId"`
	StartedAt    time.Time  `json:"startedAt"`
	FinishedAt   *time.Time `json:"finishedAt,omitempty"`
	Outcome      Outcome    `json:"outcome"`
	ErrorMessage string     `json:"errorMessage,omitempty"`
	AgentID      string     `json:"agentId,omitempty"`
	PhoneNumber  string     `json:"phoneNumber,omitempty"`
	Polls        int        `json:"polls"`
}

// ProvisioningStatus is the provisioning API status payload.
type ProvisioningStatus struct {
	Status       string `json:"status"`
	AgentID      string `json:"agentId,omitempty"`
	PhoneNumber  string `json:"phoneNumber,omitempty"`
	ErrorMessage string `json:"errorMessage,omitempty"`
}

// Outcome maps the vendor status vocabulary onto the three outcomes. Unknown
// values stay pending so that a new intermediate state never reads as failure.
func (s ProvisioningStatus) Outcome() Outcome {
	switch strings.ToLower(strings.TrimSpace(s.Status)) {
	case "ready", "succeeded", "success", "completed":
		return OutcomeSucceeded
	case "failed", "error":
		return OutcomeFailed
	default:
		return OutcomePending
	}
}

// Known reports whether the status belongs to the documented vocabulary.
func (s ProvisioningStatus) Known() bool {
	switch strings.ToLower(strings.TrimSpace(s.Status)) {
	case "queued", "pending", "in_progress", "provisioning",
		"ready", "succeeded", "success", "completed", "failed", "error":
		return true
	default:
		return false
	}
}
