// Package confirm provides the confirmation gate action. It always pauses;
// a human resolves the step through the persistence layer and the driver's
// re-poll observes the change.
package confirm

import (
	"context"

	"github.com/dukex/operand/pkg/models"
	"github.com/dukex/operand/pkg/protocol"
)

// ActionFactory creates Action instances.
type ActionFactory struct{}

// NewActionFactory creates a new instance of ActionFactory.
func NewActionFactory() *ActionFactory {
	return &ActionFactory{}
}

func (*ActionFactory) ID() string {
	return "confirm"
}

func (*ActionFactory) Name() string {
	return "Confirmation"
}

func (*ActionFactory) Description() string {
	return "Pause the workflow and ask for user confirmation."
}

func (*ActionFactory) Create(_ map[string]any) (protocol.Action, error) {
	return &Action{}, nil
}

func (*ActionFactory) Schema() *models.JSONSchema {
	return &models.JSONSchema{
		Type:  "object",
		Title: "Confirmation",
		Properties: map[string]*models.Property{
			"message": {
				Type:        "string",
				Description: "The question shown to the user.",
			},
			"confirmed": {
				Type:        "boolean",
				Description: "Output: whether the user confirmed.",
			},
		},
		Required: []string{"message"},
	}
}

// Action pauses unconditionally. Resumption never happens inline: the step
// stays paused until an external actor writes outputs and a success status.
type Action struct{}

func (a *Action) Execute(_ context.Context, _ map[string]any, execCtx protocol.ExecutionContext) (*protocol.ExecutionResult, error) {
	execCtx.Logger.Info("Waiting for user confirmation")

	return &protocol.ExecutionResult{
		Status: models.StepStatusPaused,
		Logs:   []string{"Waiting for user confirmation..."},
	}, nil
}
