// Package events defines the onboarding lifecycle notifications.
package events

import (
	"time"

	"github.com/dukex/onboarding/pkg/models"
	"github.com/google/uuid"
)

type EventType string

const Topic = "onboarding.events"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	StepCompletedEvent   EventType = "onboarding.step.completed"
	StepEditStartedEvent EventType = "onboarding.step.edit_started"
	CompletedEvent       EventType = "onboarding.completed"

	ProvisioningStartedEvent      EventType = "onboarding.provisioning.started"
	ProvisioningSucceededEvent    EventType = "onboarding.provisioning.succeeded"
	ProvisioningFailedEvent       EventType = "onboarding.provisioning.failed"
	ProvisioningStillWorkingEvent EventType = "onboarding.provisioning.still_working"
	ProvisioningStalledEvent      EventType = "onboarding.provisioning.stalled"
)

type BaseEvent struct {
	ID        string         `json:"id"`
	Type      EventType      `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	TenantID  string         `json:"tenant_id"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

func NewBaseEvent(eventType EventType, tenantID string) BaseEvent {
	return BaseEvent{
		ID:        uuid.New().String(),
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		TenantID:  tenantID,
	}
}

type StepCompleted struct {
	BaseEvent

	Step           int           `json:"step"`
	Status         models.Status `json:"status"`
	CompletedSteps int           `json:"completed_steps"`
}

func (e StepCompleted) GetType() EventType {
	return StepCompletedEvent
}

// StepEditStarted marks a jump back to an already completed step.
type StepEditStarted struct {
	BaseEvent

	Step int `json:"step"`
	From int `json:"from"`
}

func (e StepEditStarted) GetType() EventType {
	return StepEditStartedEvent
}

type OnboardingCompleted struct {
	BaseEvent
}

func (e OnboardingCompleted) GetType() EventType {
	return CompletedEvent
}

type ProvisioningStarted struct {
	BaseEvent

	AttemptID string `json:"attempt_id"`
}

func (e ProvisioningStarted) GetType() EventType {
	return ProvisioningStartedEvent
}

type ProvisioningSucceeded struct {
	BaseEvent

	AttemptID   string `json:"attempt_id"`
	AgentID     string `json:"agent_id,omitempty"`
	PhoneNumber string `json:"phone_number,omitempty"`
}

func (e ProvisioningSucceeded) GetType() EventType {
	return ProvisioningSucceededEvent
}

type ProvisioningFailed struct {
	BaseEvent

	AttemptID    string `json:"attempt_id"`
	ErrorMessage string `json:"error_message"`
}

func (e ProvisioningFailed) GetType() EventType {
	return ProvisioningFailedEvent
}

type ProvisioningStillWorking struct {
	BaseEvent

	AttemptID string `json:"attempt_id"`
	Polls     int    `json:"polls"`
}

func (e ProvisioningStillWorking) GetType() EventType {
	return ProvisioningStillWorkingEvent
}

// ProvisioningStalled is raised by the sweeper for tenants that stayed in
// provisioning past the configured threshold.
type ProvisioningStalled struct {
	BaseEvent

	Since time.Time `json:"since"`
}

func (e ProvisioningStalled) GetType() EventType {
	return ProvisioningStalledEvent
}
