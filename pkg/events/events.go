// Package events defines the asynchronous work units and lifecycle
// notifications exchanged over the automation event bus.
package events

import (
	"time"

	"github.com/google/uuid"
)

type EventType string

// Topic is the Kafka topic carrying automation events.
const Topic = "dripkit.automations"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	// StepAvailableEvent is the unit of work: run one step for one contact.
	// Publishing it is the only way a traversal continues.
	StepAvailableEvent EventType = "automation.step.available"

	// StepCompletedEvent records that a (contact, step) execution finished.
	StepCompletedEvent EventType = "automation.step.completed"

	// StepFailedEvent records a failed (contact, step) execution after the
	// job has been surfaced to the queue for its retry policy.
	StepFailedEvent EventType = "automation.step.failed"

	// ContactFinishedEvent records that a contact's traversal of an
	// automation reached an end step or ran out of successors.
	ContactFinishedEvent EventType = "automation.contact.finished"
)

type BaseEvent struct {
	ID           string         `json:"id"`
	Type         EventType      `json:"type"`
	Timestamp    time.Time      `json:"timestamp"`
	AutomationID string         `json:"automation_id"`
	WorkerID     string         `json:"worker_id,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}

// StepAvailable schedules one step of an automation for one contact.
type StepAvailable struct {
	BaseEvent

	StepID    string `json:"step_id"`
	ContactID string `json:"contact_id"`
}

func (e StepAvailable) GetType() EventType {
	return StepAvailableEvent
}

// StepCompleted reports a finished (contact, step) execution.
type StepCompleted struct {
	BaseEvent

	StepID      string        `json:"step_id"`
	ContactID   string        `json:"contact_id"`
	Subtype     string        `json:"subtype"`
	Duration    time.Duration `json:"duration"`
	CompletedAt time.Time     `json:"completed_at"`
}

func (e StepCompleted) GetType() EventType {
	return StepCompletedEvent
}

// StepFailed reports a (contact, step) execution that errored.
type StepFailed struct {
	BaseEvent

	StepID    string `json:"step_id"`
	ContactID string `json:"contact_id"`
	Error     string `json:"error"`
}

func (e StepFailed) GetType() EventType {
	return StepFailedEvent
}

// ContactFinished reports the end of a contact's traversal.
type ContactFinished struct {
	BaseEvent

	ContactID  string `json:"contact_id"`
	LastStepID string `json:"last_step_id"`
}

func (e ContactFinished) GetType() EventType {
	return ContactFinishedEvent
}

func NewBaseEvent(eventType EventType, automationID string) BaseEvent {
	return BaseEvent{
		ID:           uuid.New().String(),
		Type:         eventType,
		Timestamp:    time.Now().UTC(),
		AutomationID: automationID,
		Metadata:     make(map[string]any),
	}
}
