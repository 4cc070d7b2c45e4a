// Package persistence provides standardized error types for persistence operations.
package persistence

import (
	"errors"
	"fmt"
)

// Standard persistence error types that all implementations should use.
var (
	// ErrWorkflowNotFound indicates a workflow was not found by the given identifier.
	ErrWorkflowNotFound = errors.New("workflow not found")

	// ErrWorkspaceNotFound indicates a workspace was not found by the given identifier.
	ErrWorkspaceNotFound = errors.New("workspace not found")

	// ErrRunNotFound indicates a run was not found by the given identifier.
	ErrRunNotFound = errors.New("run not found")

	// ErrScheduleNotFound indicates a schedule was not found by the given identifier.
	ErrScheduleNotFound = errors.New("schedule not found")

	// ErrRunAlreadyExists indicates a run with the same identifier already exists.
	ErrRunAlreadyExists = errors.New("run already exists")

	// ErrStepNotFound indicates a step state was not found within a run.
	ErrStepNotFound = errors.New("step not found")
)

// RunError wraps run-related errors with additional context.
type RunError struct {
	Op     string // Operation being performed (e.g., "GetByID", "SavePartial")
	RunID  string // Run ID if applicable
	StepID string // Step ID if applicable
	Err    error  // Underlying error
}

func (e *RunError) Error() string {
	if e.StepID != "" {
		return fmt.Sprintf("%s operation failed for step %s of run %s: %v", e.Op, e.StepID, e.RunID, e.Err)
	}

	return fmt.Sprintf("%s operation failed for run %s: %v", e.Op, e.RunID, e.Err)
}

func (e *RunError) Unwrap() error {
	return e.Err
}

func (e *RunError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewRunError creates a new run error with context.
func NewRunError(op, runID string, err error) *RunError {
	return &RunError{Op: op, RunID: runID, Err: err}
}

// WorkflowError wraps workflow-related errors with additional context.
type WorkflowError struct {
	Op         string
	WorkflowID string
	Err        error
}

func (e *WorkflowError) Error() string {
	return fmt.Sprintf("%s operation failed for workflow %s: %v", e.Op, e.WorkflowID, e.Err)
}

func (e *WorkflowError) Unwrap() error {
	return e.Err
}

func (e *WorkflowError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewWorkflowError creates a new workflow error with context.
func NewWorkflowError(op, workflowID string, err error) *WorkflowError {
	return &WorkflowError{Op: op, WorkflowID: workflowID, Err: err}
}

// IsWorkflowNotFound checks if an error indicates a workflow was not found.
func IsWorkflowNotFound(err error) bool {
	return errors.Is(err, ErrWorkflowNotFound)
}

// IsWorkspaceNotFound checks if an error indicates a workspace was not found.
func IsWorkspaceNotFound(err error) bool {
	return errors.Is(err, ErrWorkspaceNotFound)
}

// IsRunNotFound checks if an error indicates a run was not found.
func IsRunNotFound(err error) bool {
	return errors.Is(err, ErrRunNotFound)
}

// IsScheduleNotFound checks if an error indicates a schedule was not found.
func IsScheduleNotFound(err error) bool {
	return errors.Is(err, ErrScheduleNotFound)
}

// IsNotFound checks if an error indicates any aggregate was not found.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrWorkflowNotFound) ||
		errors.Is(err, ErrWorkspaceNotFound) ||
		errors.Is(err, ErrRunNotFound) ||
		errors.Is(err, ErrScheduleNotFound)
}
