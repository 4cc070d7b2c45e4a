// Package setdescription provides an action that updates the run's
// human-readable description mid-run.
package setdescription

import (
	"context"
	"fmt"

	"github.com/dukex/operand/pkg/models"
	"github.com/dukex/operand/pkg/persistence"
	"github.com/dukex/operand/pkg/protocol"
)

// ActionFactory creates Action instances.
type ActionFactory struct{}

// NewActionFactory creates a new instance of ActionFactory.
func NewActionFactory() *ActionFactory {
	return &ActionFactory{}
}

func (*ActionFactory) ID() string {
	return "set-description"
}

func (*ActionFactory) Name() string {
	return "Set Run Description"
}

func (*ActionFactory) Description() string {
	return "Update the description of the current run (Markdown supported)."
}

func (*ActionFactory) Create(_ map[string]any) (protocol.Action, error) {
	return &Action{}, nil
}

func (*ActionFactory) Schema() *models.JSONSchema {
	return &models.JSONSchema{
		Type:  "object",
		Title: "Set Run Description",
		Properties: map[string]*models.Property{
			"description": {
				Type:        "string",
				Format:      "markdown",
				Description: "The new run description.",
			},
		},
		Required: []string{"description"},
	}
}

// Action is side-effect-only: it mutates the run through the context's
// narrow persistence capability and returns no outputs.
type Action struct{}

func (a *Action) Execute(ctx context.Context, inputs map[string]any, execCtx protocol.ExecutionContext) (*protocol.ExecutionResult, error) {
	description := ""
	if v, ok := inputs["description"]; ok && v != nil {
		description = fmt.Sprintf("%v", v)
	}

	logs := []string{fmt.Sprintf("Setting run description to: %s", description)}

	err := execCtx.Runs.UpdateRun(ctx, execCtx.RunID, &persistence.RunPatch{
		Description: &description,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to update run description: %w", err)
	}

	logs = append(logs, "Run description updated.")

	return &protocol.ExecutionResult{
		Status: models.StepStatusSuccess,
		Logs:   logs,
	}, nil
}
