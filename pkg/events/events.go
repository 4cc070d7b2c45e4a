// Package events defines event types and structures for run lifecycle
// notifications.
package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/dukex/operand/pkg/models"
)

type EventType string

const Topic = "operand.events"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	// Run lifecycle events.
	RunStartedEvent   EventType = "run.started"
	RunPausedEvent    EventType = "run.paused"
	RunResumedEvent   EventType = "run.resumed"
	RunCompletedEvent EventType = "run.completed"
	RunFailedEvent    EventType = "run.failed"
	RunCancelledEvent EventType = "run.cancelled"

	// Step events.
	StepFinishedEvent EventType = "step.finished"
	StepFailedEvent   EventType = "step.failed"

	// Scheduler events.
	ScheduleFiredEvent EventType = "schedule.fired"
)

type BaseEvent struct {
	ID          string         `json:"id"`
	Type        EventType      `json:"type"`
	Timestamp   time.Time      `json:"timestamp"`
	WorkflowID  string         `json:"workflow_id"`
	RunID       string         `json:"run_id,omitempty"`
	WorkspaceID string         `json:"workspace_id,omitempty"`
	RunnerID    string         `json:"runner_id,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

func NewBaseEvent(eventType EventType, workflowID string) BaseEvent {
	return BaseEvent{
		ID:         uuid.New().String(),
		Type:       eventType,
		Timestamp:  time.Now().UTC(),
		WorkflowID: workflowID,
	}
}

type RunStarted struct {
	BaseEvent

	InputValues map[string]any `json:"input_values,omitempty"`
}

func (RunStarted) GetType() EventType { return RunStartedEvent }

type RunPaused struct {
	BaseEvent

	// PausedSteps lists the step IDs currently blocking the run.
	PausedSteps []string `json:"paused_steps"`
}

func (RunPaused) GetType() EventType { return RunPausedEvent }

type RunResumed struct {
	BaseEvent

	StepID string `json:"step_id"`
}

func (RunResumed) GetType() EventType { return RunResumedEvent }

type RunCompleted struct {
	BaseEvent

	Duration time.Duration `json:"duration"`
}

func (RunCompleted) GetType() EventType { return RunCompletedEvent }

type RunFailed struct {
	BaseEvent

	Error string `json:"error,omitempty"`
}

func (RunFailed) GetType() EventType { return RunFailedEvent }

type RunCancelled struct {
	BaseEvent
}

func (RunCancelled) GetType() EventType { return RunCancelledEvent }

type StepFinished struct {
	BaseEvent

	StepID     string            `json:"step_id"`
	ActionType string            `json:"action_type"`
	Status     models.StepStatus `json:"status"`
}

func (StepFinished) GetType() EventType { return StepFinishedEvent }

type StepFailed struct {
	BaseEvent

	StepID     string `json:"step_id"`
	ActionType string `json:"action_type"`
	Error      string `json:"error"`
}

func (StepFailed) GetType() EventType { return StepFailedEvent }

type ScheduleFired struct {
	BaseEvent

	ScheduleID string    `json:"schedule_id"`
	FiredAt    time.Time `json:"fired_at"`
}

func (ScheduleFired) GetType() EventType { return ScheduleFiredEvent }
