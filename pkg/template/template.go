// Package template provides variable substitution for dynamic workflow
// configuration. Templates reference run state with "{{ path }}" tokens.
//
// Path grammar:
//
//	input.<name>                 run-level input value
//	workspace.id                 workspace identifier
//	workspace.workingDirectory   workspace directory
//	<stepId>.outputs.<key>       a step's recorded output
//	<stepId>.<key>               shorthand for the same output
package template

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/dukex/operand/pkg/models"
)

var (
	tokenPattern     = regexp.MustCompile(`\{\{\s*([a-zA-Z0-9_\-.]+)\s*\}\}`)
	soleTokenPattern = regexp.MustCompile(`^\{\{\s*([a-zA-Z0-9_\-.]+)\s*\}\}$`)
)

// Substitute replaces "{{ path }}" tokens in text with values from the run
// and workspace. A string that is exactly one token resolves to the typed
// underlying value; any other string undergoes token-by-token replacement
// with stringified values, unresolved tokens becoming empty strings.
// Substitution never fails; validating required inputs is the action
// implementation's job.
func Substitute(text string, run *models.WorkflowRun, workspace *models.Workspace) any {
	if match := soleTokenPattern.FindStringSubmatch(text); match != nil {
		return ResolvePath(match[1], run, workspace)
	}

	return tokenPattern.ReplaceAllStringFunc(text, func(token string) string {
		path := tokenPattern.FindStringSubmatch(token)[1]

		value := ResolvePath(path, run, workspace)
		if value == nil {
			return ""
		}

		return Stringify(value)
	})
}

// ResolvePath looks up a dotted path against the run and workspace. It
// returns nil for anything it cannot resolve.
func ResolvePath(path string, run *models.WorkflowRun, workspace *models.Workspace) any {
	parts := strings.Split(path, ".")
	root := parts[0]

	if root == "input" && len(parts) > 1 {
		if run == nil || run.InputValues == nil {
			return nil
		}

		return run.InputValues[parts[1]]
	}

	if root == "workspace" && len(parts) > 1 {
		if workspace == nil {
			return nil
		}

		switch parts[1] {
		case "id":
			return workspace.ID
		case "workingDirectory":
			return workspace.WorkingDirectory
		}

		return nil
	}

	// Remaining roots are step IDs.
	if run == nil {
		return nil
	}

	step := run.Step(root)
	if step == nil || step.Outputs == nil {
		return nil
	}

	if len(parts) > 2 && parts[1] == "outputs" {
		return step.Outputs[parts[2]]
	}

	if len(parts) > 1 {
		if value, ok := step.Outputs[parts[1]]; ok {
			return value
		}
	}

	return nil
}

// Stringify renders a resolved value for embedding into a longer string.
func Stringify(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case float64:
		// JSON numbers decode as float64; keep integral values clean.
		if v == float64(int64(v)) {
			return fmt.Sprintf("%d", int64(v))
		}

		return fmt.Sprintf("%v", v)
	default:
		return fmt.Sprintf("%v", v)
	}
}
