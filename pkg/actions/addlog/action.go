// Package addlog provides an action that appends a user-facing markdown log
// entry to the run, separate from the technical per-step logs.
package addlog

import (
	"context"
	"fmt"
	"time"

	"github.com/dukex/operand/pkg/models"
	"github.com/dukex/operand/pkg/persistence"
	"github.com/dukex/operand/pkg/protocol"
)

const previewLength = 20

// ActionFactory creates Action instances.
type ActionFactory struct{}

// NewActionFactory creates a new instance of ActionFactory.
func NewActionFactory() *ActionFactory {
	return &ActionFactory{}
}

func (*ActionFactory) ID() string {
	return "add-log"
}

func (*ActionFactory) Name() string {
	return "Add Log Entry"
}

func (*ActionFactory) Description() string {
	return "Append a markdown log entry to the run view."
}

func (*ActionFactory) Create(_ map[string]any) (protocol.Action, error) {
	return &Action{}, nil
}

func (*ActionFactory) Schema() *models.JSONSchema {
	return &models.JSONSchema{
		Type:  "object",
		Title: "Add Log Entry",
		Properties: map[string]*models.Property{
			"content": {
				Type:        "string",
				Format:      "markdown",
				Description: "The log content.",
			},
		},
		Required: []string{"content"},
	}
}

type Action struct{}

func (a *Action) Execute(ctx context.Context, inputs map[string]any, execCtx protocol.ExecutionContext) (*protocol.ExecutionResult, error) {
	content := ""
	if v, ok := inputs["content"]; ok && v != nil {
		content = fmt.Sprintf("%v", v)
	}

	preview := content
	if len(preview) > previewLength {
		preview = preview[:previewLength] + "..."
	}

	logs := []string{fmt.Sprintf("Adding user log: %s", preview)}

	// Read the current list and append; the patch replaces the stored list.
	run, err := execCtx.Runs.GetRun(ctx, execCtx.RunID)
	if err != nil {
		return nil, fmt.Errorf("failed to load run: %w", err)
	}

	userLogs := append(run.UserLogs, models.UserLogEntry{
		Timestamp: time.Now().UTC(),
		Content:   content,
		StepID:    execCtx.StepID,
	})

	err = execCtx.Runs.UpdateRun(ctx, execCtx.RunID, &persistence.RunPatch{
		UserLogs: userLogs,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to append user log: %w", err)
	}

	logs = append(logs, "User log added.")

	return &protocol.ExecutionResult{
		Status: models.StepStatusSuccess,
		Logs:   logs,
	}, nil
}
