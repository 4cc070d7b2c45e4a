// Package gitcheckout provides the git-checkout action: shallow clone into
// the workspace, or fast-forward an existing clone. Git is always invoked
// with an argv vector, never through a shell.
package gitcheckout

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path"
	"path/filepath"
	"strings"

	"github.com/dukex/operand/pkg/models"
	"github.com/dukex/operand/pkg/protocol"
)

var (
	// ErrMissingRepoURL is returned when the repoUrl input is absent.
	ErrMissingRepoURL = errors.New("repoUrl input is required")
	// ErrNotARepository is returned when the target path exists but is not
	// a git clone. Failing closed avoids clobbering unrelated files.
	ErrNotARepository = errors.New("target path exists but is not a git repository")
)

// ActionFactory creates Action instances.
type ActionFactory struct{}

// NewActionFactory creates a new instance of ActionFactory.
func NewActionFactory() *ActionFactory {
	return &ActionFactory{}
}

func (*ActionFactory) ID() string {
	return "git-checkout"
}

func (*ActionFactory) Name() string {
	return "Checkout Git Repository"
}

func (*ActionFactory) Description() string {
	return "Clone a git repository into the workspace, or fast-forward an existing clone."
}

func (*ActionFactory) Create(_ map[string]any) (protocol.Action, error) {
	return &Action{}, nil
}

func (*ActionFactory) Schema() *models.JSONSchema {
	return &models.JSONSchema{
		Type:  "object",
		Title: "Checkout Git Repository",
		Properties: map[string]*models.Property{
			"repoUrl": {
				Type:        "string",
				Description: "Repository URL to clone.",
			},
			"branch": {
				Type:        "string",
				Default:     "main",
				Description: "Branch to check out.",
			},
			"repoPath": {
				Type:        "string",
				Description: "Output: absolute path to the checked out repo.",
			},
		},
		Required: []string{"repoUrl"},
	}
}

type Action struct{}

func (a *Action) Execute(ctx context.Context, inputs map[string]any, execCtx protocol.ExecutionContext) (*protocol.ExecutionResult, error) {
	repoURL, _ := inputs["repoUrl"].(string)
	if repoURL == "" {
		return nil, ErrMissingRepoURL
	}

	branch, _ := inputs["branch"].(string)
	if branch == "" {
		branch = "main"
	}

	repoPath := filepath.Join(execCtx.Workspace.WorkingDirectory, repoName(repoURL))

	var (
		logs []string
		err  error
	)

	if _, statErr := os.Stat(repoPath); os.IsNotExist(statErr) {
		logs = append(logs, fmt.Sprintf("Cloning %s to %s...", repoURL, repoPath))
		err = runGit(ctx, "", "clone", "--depth", "1", "--branch", branch, "--", repoURL, repoPath)
	} else {
		if _, gitErr := os.Stat(filepath.Join(repoPath, ".git")); os.IsNotExist(gitErr) {
			return nil, fmt.Errorf("%w: %s", ErrNotARepository, repoPath)
		}

		logs = append(logs, fmt.Sprintf("Updating existing clone at %s...", repoPath))

		err = runGit(ctx, repoPath, "fetch", "--depth", "1", "origin", branch)
		if err == nil {
			err = runGit(ctx, repoPath, "checkout", branch)
		}

		if err == nil {
			err = runGit(ctx, repoPath, "merge", "--ff-only", "origin/"+branch)
		}
	}

	if err != nil {
		return &protocol.ExecutionResult{
			Status: models.StepStatusFailed,
			Error:  err.Error(),
			Logs:   append(logs, fmt.Sprintf("git failed: %v", err)),
		}, nil
	}

	logs = append(logs, fmt.Sprintf("Checked out branch: %s", branch))

	return &protocol.ExecutionResult{
		Status:  models.StepStatusSuccess,
		Outputs: map[string]any{"repoPath": repoPath},
		Logs:    logs,
	}, nil
}

func runGit(ctx context.Context, dir string, args ...string) error {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir

	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("git %s: %v: %s", args[0], err, strings.TrimSpace(string(output)))
	}

	return nil
}

// repoName derives the checkout directory name from the repository URL.
func repoName(repoURL string) string {
	name := strings.TrimSuffix(path.Base(strings.TrimSuffix(repoURL, "/")), ".git")
	if name == "" || name == "." || name == "/" {
		return "repo"
	}

	return name
}
