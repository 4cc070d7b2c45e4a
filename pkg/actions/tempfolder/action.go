// Package tempfolder provides an action that creates a unique temporary
// directory for downstream steps to work in.
package tempfolder

import (
	"context"
	"fmt"
	"os"

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
	return "new-temp-folder"
}

func (*ActionFactory) Name() string {
	return "New Temp Folder"
}

func (*ActionFactory) Description() string {
	return "Create a new temporary folder and output its absolute path."
}

func (*ActionFactory) Create(_ map[string]any) (protocol.Action, error) {
	return &Action{}, nil
}

func (*ActionFactory) Schema() *models.JSONSchema {
	return &models.JSONSchema{
		Type:  "object",
		Title: "New Temp Folder",
		Properties: map[string]*models.Property{
			"path": {
				Type:        "string",
				Description: "Output: absolute path to the new folder.",
			},
		},
	}
}

type Action struct{}

func (a *Action) Execute(_ context.Context, _ map[string]any, _ protocol.ExecutionContext) (*protocol.ExecutionResult, error) {
	path, err := os.MkdirTemp("", "operand-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp folder: %w", err)
	}

	return &protocol.ExecutionResult{
		Status:  models.StepStatusSuccess,
		Outputs: map[string]any{"path": path},
		Logs:    []string{fmt.Sprintf("Created temp folder %s", path)},
	}, nil
}
