package web

import "github.com/dukex/operand/pkg/models"

// CreateWorkflowRequest is the payload for creating or replacing a workflow
// definition.
type CreateWorkflowRequest struct {
	Name        string                 `json:"name"        validate:"required,min=3"`
	Description string                 `json:"description"`
	Nodes       []*models.WorkflowNode `json:"nodes"`
	Edges       []*models.Edge         `json:"edges"`
	Inputs      []models.WorkflowInput `json:"inputs"`
}

// CreateWorkspaceRequest is the payload for creating a workspace.
type CreateWorkspaceRequest struct {
	Name             string `json:"name"              validate:"required,min=1"`
	WorkingDirectory string `json:"working_directory" validate:"required"`
}

// LaunchRunRequest is the payload for starting a run of a workflow.
type LaunchRunRequest struct {
	WorkspaceID string         `json:"workspace_id" validate:"required"`
	InputValues map[string]any `json:"input_values"`
}

// ResumeStepRequest carries the outputs a human attaches when resuming a
// paused step.
type ResumeStepRequest struct {
	Outputs map[string]any `json:"outputs"`
}

// CreateScheduleRequest is the payload for creating a cron schedule.
type CreateScheduleRequest struct {
	WorkflowID     string         `json:"workflow_id"     validate:"required"`
	WorkspaceID    string         `json:"workspace_id"    validate:"required"`
	CronExpression string         `json:"cron_expression" validate:"required"`
	InputValues    map[string]any `json:"input_values"`
}
