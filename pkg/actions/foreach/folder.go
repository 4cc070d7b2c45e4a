package foreach

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dukex/operand/pkg/models"
	"github.com/dukex/operand/pkg/protocol"
)

// ErrMissingBasePath is returned when the basePath input is absent.
var ErrMissingBasePath = errors.New("basePath input is required")

// FolderActionFactory creates FolderAction instances.
type FolderActionFactory struct{}

// NewFolderActionFactory creates a new instance of FolderActionFactory.
func NewFolderActionFactory() *FolderActionFactory {
	return &FolderActionFactory{}
}

func (*FolderActionFactory) ID() string {
	return "foreach-folder"
}

func (*FolderActionFactory) Name() string {
	return "For Each Folder"
}

func (*FolderActionFactory) Description() string {
	return "Iterate over folders matching a pattern and run a child workflow for each."
}

func (*FolderActionFactory) Create(_ map[string]any) (protocol.Action, error) {
	return &FolderAction{}, nil
}

func (*FolderActionFactory) Schema() *models.JSONSchema {
	return &models.JSONSchema{
		Type:  "object",
		Title: "For Each Folder",
		Properties: map[string]*models.Property{
			"basePath": {
				Type:        "string",
				Description: "Directory whose subfolders are iterated.",
			},
			"pattern": {
				Type:        "string",
				Default:     "*",
				Description: "Glob pattern matched against folder names.",
			},
			"childWorkflowId": {
				Type:        "string",
				Description: "Workflow to run once per matching folder.",
			},
			"itemVariableName": {
				Type:        "string",
				Default:     "item",
				Description: "Name of the input variable the folder path is passed as.",
			},
		},
		Required: []string{"basePath", "childWorkflowId"},
	}
}

// FolderAction fans out one child run per subfolder of basePath whose name
// matches the glob pattern. Folder paths are passed to children as absolute
// paths.
type FolderAction struct{}

func (a *FolderAction) Execute(ctx context.Context, inputs map[string]any, execCtx protocol.ExecutionContext) (*protocol.ExecutionResult, error) {
	basePath := stringInput(inputs, "basePath")
	if basePath == "" {
		return nil, ErrMissingBasePath
	}

	pattern := stringInput(inputs, "pattern")
	if pattern == "" {
		pattern = "*"
	}

	folders, err := matchingFolders(basePath, pattern)
	if err != nil {
		return nil, err
	}

	cfg := spawnConfig{
		childWorkflowID: stringInput(inputs, "childWorkflowId"),
		itemVariable:    stringInput(inputs, "itemVariableName"),
	}

	return drive(ctx, execCtx, cfg, folders)
}

func matchingFolders(basePath, pattern string) ([]any, error) {
	entries, err := os.ReadDir(basePath)
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", basePath, err)
	}

	var folders []any

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		matched, err := filepath.Match(pattern, entry.Name())
		if err != nil {
			return nil, fmt.Errorf("invalid pattern %q: %w", pattern, err)
		}

		if matched {
			folders = append(folders, filepath.Join(basePath, entry.Name()))
		}
	}

	return folders, nil
}
