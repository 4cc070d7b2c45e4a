package foreach

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/dukex/operand/pkg/models"
	"github.com/dukex/operand/pkg/protocol"
)

// ErrInvalidItems is returned when the items input is neither an array nor a
// string.
var ErrInvalidItems = errors.New("items input must be an array or a newline-separated string")

// ListActionFactory creates ListAction instances.
type ListActionFactory struct{}

// NewListActionFactory creates a new instance of ListActionFactory.
func NewListActionFactory() *ListActionFactory {
	return &ListActionFactory{}
}

func (*ListActionFactory) ID() string {
	return "foreach-list"
}

func (*ListActionFactory) Name() string {
	return "For Each Item"
}

func (*ListActionFactory) Description() string {
	return "Iterate through a list of items and run a child workflow for each."
}

func (*ListActionFactory) Create(_ map[string]any) (protocol.Action, error) {
	return &ListAction{}, nil
}

func (*ListActionFactory) Schema() *models.JSONSchema {
	return &models.JSONSchema{
		Type:  "object",
		Title: "For Each Item",
		Properties: map[string]*models.Property{
			"items": {
				Type:        "string",
				Description: "Array of items, or a newline-separated string.",
			},
			"childWorkflowId": {
				Type:        "string",
				Description: "Workflow to run once per item.",
			},
			"itemVariableName": {
				Type:        "string",
				Default:     "item",
				Description: "Name of the input variable the item is passed as.",
			},
			"additionalInput": {
				Type:        "string",
				Description: "JSON object merged into every child run's inputs.",
			},
		},
		Required: []string{"items", "childWorkflowId"},
	}
}

// ListAction fans out one child run per item of a list.
type ListAction struct{}

func (a *ListAction) Execute(ctx context.Context, inputs map[string]any, execCtx protocol.ExecutionContext) (*protocol.ExecutionResult, error) {
	items, err := parseItems(inputs["items"])
	if err != nil {
		return nil, err
	}

	cfg := spawnConfig{
		childWorkflowID: stringInput(inputs, "childWorkflowId"),
		itemVariable:    stringInput(inputs, "itemVariableName"),
		extraInputs:     parseAdditionalInput(inputs["additionalInput"]),
	}

	return drive(ctx, execCtx, cfg, items)
}

func parseItems(raw any) ([]any, error) {
	switch raw := raw.(type) {
	case []any:
		return raw, nil
	case []string:
		items := make([]any, len(raw))
		for i, s := range raw {
			items[i] = s
		}

		return items, nil
	case string:
		var items []any

		for _, line := range strings.Split(raw, "\n") {
			line = strings.TrimSpace(line)
			if line != "" {
				items = append(items, line)
			}
		}

		return items, nil
	default:
		return nil, ErrInvalidItems
	}
}

// parseAdditionalInput accepts either an already-decoded object or a JSON
// string; anything unparseable is silently ignored.
func parseAdditionalInput(raw any) map[string]any {
	switch raw := raw.(type) {
	case map[string]any:
		return raw
	case string:
		var extra map[string]any
		if err := json.Unmarshal([]byte(raw), &extra); err == nil {
			return extra
		}

		return nil
	default:
		return nil
	}
}

func stringInput(inputs map[string]any, key string) string {
	s, _ := inputs[key].(string)

	return s
}
