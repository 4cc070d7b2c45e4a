package models

import "time"

// RunStatus represents the lifecycle state of a workflow run.
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusPaused    RunStatus = "paused"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
	RunStatusCancelled RunStatus = "cancelled"
)

// IsTerminal reports whether the run can never make further progress.
func (s RunStatus) IsTerminal() bool {
	return s == RunStatusCompleted || s == RunStatusFailed || s == RunStatusCancelled
}

// IsActive reports whether the poller should keep driving the run.
func (s RunStatus) IsActive() bool {
	return s == RunStatusRunning || s == RunStatusPaused
}

// StepStatus represents the state of one node's execution within a run.
type StepStatus string

const (
	StepStatusPending StepStatus = "pending"
	StepStatusRunning StepStatus = "running"
	StepStatusSuccess StepStatus = "success"
	StepStatusFailed  StepStatus = "failed"
	StepStatusPaused  StepStatus = "paused"
	StepStatusSkipped StepStatus = "skipped"
)

// StepExecutionState is the per-node execution record inside a run. Outputs
// are populated on success, or on a paused step that deliberately exposes
// partial state (spawned child run IDs). Logs are append-only across
// re-invocations of a paused step.
type StepExecutionState struct {
	StepID      string         `json:"step_id"`
	Status      StepStatus     `json:"status"`
	InputValues map[string]any `json:"input_values,omitempty"`
	Outputs     map[string]any `json:"outputs,omitempty"`
	Logs        []string       `json:"logs,omitempty"`
	StartTime   *time.Time     `json:"start_time,omitempty"`
	EndTime     *time.Time     `json:"end_time,omitempty"`
	Error       string         `json:"error,omitempty"`
}

// UserLogEntry is a user-facing markdown log line on a run, independent from
// the technical per-step logs.
type UserLogEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Content   string    `json:"content"`
	StepID    string    `json:"step_id,omitempty"`
}

// WorkflowRun is one execution instance of a workflow against a workspace.
type WorkflowRun struct {
	ID          string                         `json:"id"`
	WorkflowID  string                         `json:"workflow_id"  validate:"required"`
	WorkspaceID string                         `json:"workspace_id" validate:"required"`
	Status      RunStatus                      `json:"status"`
	Steps       map[string]*StepExecutionState `json:"steps"`
	Variables   map[string]any                 `json:"variables,omitempty"`
	InputValues map[string]any                 `json:"input_values,omitempty"`
	StartTime   time.Time                      `json:"start_time"`
	EndTime     *time.Time                     `json:"end_time,omitempty"`
	Description string                         `json:"description,omitempty"`
	UserLogs    []UserLogEntry                 `json:"user_logs,omitempty"`
}

// Step returns the execution state for a node ID, or nil if it never started.
func (r *WorkflowRun) Step(stepID string) *StepExecutionState {
	if r.Steps == nil {
		return nil
	}

	return r.Steps[stepID]
}

// HasStepInStatus reports whether any step of the run is in the given status.
func (r *WorkflowRun) HasStepInStatus(status StepStatus) bool {
	for _, step := range r.Steps {
		if step.Status == status {
			return true
		}
	}

	return false
}
