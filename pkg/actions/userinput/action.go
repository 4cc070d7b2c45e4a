// Package userinput provides the user-input action: a pause point that waits
// for a human to supply a value through the persistence layer.
package userinput

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
	return "user-input"
}

func (*ActionFactory) Name() string {
	return "User Input"
}

func (*ActionFactory) Description() string {
	return "Pause the workflow and request input from the user."
}

func (*ActionFactory) Create(_ map[string]any) (protocol.Action, error) {
	return &Action{}, nil
}

func (*ActionFactory) Schema() *models.JSONSchema {
	return &models.JSONSchema{
		Type:  "object",
		Title: "User Input",
		Properties: map[string]*models.Property{
			"prompt": {
				Type:        "string",
				Description: "The prompt shown to the user.",
			},
			"fieldName": {
				Type:        "string",
				Default:     "userInput",
				Description: "Name used to label the requested value.",
			},
			"contextData": {
				Type:        "string",
				Description: "Optional context to show alongside the prompt.",
			},
			"value": {
				Type:        "string",
				Description: "Output: the value the user supplied.",
			},
		},
		Required: []string{"prompt"},
	}
}

// Action never succeeds inline; the driver keeps re-invoking it while the
// step is paused, and an external resume writes the value output.
type Action struct{}

func (a *Action) Execute(_ context.Context, _ map[string]any, execCtx protocol.ExecutionContext) (*protocol.ExecutionResult, error) {
	execCtx.Logger.Info("Waiting for user input")

	return &protocol.ExecutionResult{
		Status: models.StepStatusPaused,
		Logs:   []string{"Waiting for user input..."},
	}, nil
}
