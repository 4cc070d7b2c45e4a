// Package splitstring provides a small data-shaping action that splits a
// string into trimmed, non-empty parts.
package splitstring

import (
	"context"
	"fmt"
	"strings"

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
	return "split-string"
}

func (*ActionFactory) Name() string {
	return "Split String"
}

func (*ActionFactory) Description() string {
	return "Split a string by a delimiter into a list of trimmed parts."
}

func (*ActionFactory) Create(_ map[string]any) (protocol.Action, error) {
	return &Action{}, nil
}

func (*ActionFactory) Schema() *models.JSONSchema {
	return &models.JSONSchema{
		Type:  "object",
		Title: "Split String",
		Properties: map[string]*models.Property{
			"inputString": {
				Type:        "string",
				Description: "The string to split.",
			},
			"delimiter": {
				Type:        "string",
				Default:     ",",
				Description: "Delimiter to split on.",
			},
			"strings": {
				Type:        "array",
				Items:       &models.Property{Type: "string"},
				Description: "Output: the resulting parts.",
			},
		},
		Required: []string{"inputString"},
	}
}

type Action struct{}

const inputPreviewLength = 50

func (a *Action) Execute(_ context.Context, inputs map[string]any, _ protocol.ExecutionContext) (*protocol.ExecutionResult, error) {
	delimiter, _ := inputs["delimiter"].(string)
	if delimiter == "" {
		delimiter = ","
	}

	inputString, _ := inputs["inputString"].(string)

	parts := make([]any, 0)

	for _, part := range strings.Split(inputString, delimiter) {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			parts = append(parts, trimmed)
		}
	}

	preview := inputString
	if len(preview) > inputPreviewLength {
		preview = preview[:inputPreviewLength] + "..."
	}

	logs := []string{
		fmt.Sprintf("Splitting string of length %d with delimiter %q", len(inputString), delimiter),
		fmt.Sprintf("Input preview: %s", preview),
		fmt.Sprintf("Resulting parts: %d", len(parts)),
	}

	return &protocol.ExecutionResult{
		Status:  models.StepStatusSuccess,
		Outputs: map[string]any{"strings": parts},
		Logs:    logs,
	}, nil
}
