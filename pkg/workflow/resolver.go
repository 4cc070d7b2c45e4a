package workflow

import (
	"strings"

	"github.com/dukex/operand/pkg/models"
	"github.com/dukex/operand/pkg/template"
)

// ResolveInputs materializes a node's input mappings against the current run
// state. Resolution never fails: unresolved references yield nil (or an
// empty string inside a longer template) and it is the action's job to
// validate what it received. Pausing a predecessor therefore does not poison
// downstream resolution, it just produces empty values until its outputs
// exist.
func ResolveInputs(node *models.WorkflowNode, run *models.WorkflowRun, workspace *models.Workspace) map[string]any {
	inputs := make(map[string]any, len(node.InputMappings))

	for key, mapping := range node.InputMappings {
		switch mapping.Type {
		case models.InputMappingConstant:
			if text, ok := mapping.Value.(string); ok {
				inputs[key] = template.Substitute(text, run, workspace)
			} else {
				inputs[key] = mapping.Value
			}
		case models.InputMappingContext:
			switch mapping.Value {
			case models.ContextKeyWorkingDir:
				inputs[key] = workspace.WorkingDirectory
			case models.ContextKeyWorkspaceID:
				inputs[key] = workspace.ID
			}
		case models.InputMappingVariable:
			if ref, ok := mapping.Value.(string); ok && strings.Contains(ref, ".") {
				inputs[key] = template.ResolvePath(ref, run, workspace)
			}
		}
	}

	return inputs
}
