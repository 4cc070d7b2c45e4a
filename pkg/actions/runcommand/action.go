// Package runcommand provides the run-command action: subprocess execution
// with shell-like argument parsing but no shell invocation.
package runcommand

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"syscall"
	"time"

	"github.com/dukex/operand/pkg/models"
	"github.com/dukex/operand/pkg/protocol"
)

const (
	// commandTimeout is the hard wall-clock ceiling for one invocation.
	commandTimeout = 10 * time.Minute
	// termGracePeriod is how long the process gets after SIGTERM before
	// SIGKILL.
	termGracePeriod = 10 * time.Second
	// maxCapturedBytes caps stdout/stderr capture; older output is dropped.
	maxCapturedBytes = 64 * 1024
)

// ErrEmptyCommand is returned when the command input parses to nothing.
var ErrEmptyCommand = errors.New("command is empty")

// ActionFactory creates Action instances.
type ActionFactory struct{}

// NewActionFactory creates a new instance of ActionFactory.
func NewActionFactory() *ActionFactory {
	return &ActionFactory{}
}

func (*ActionFactory) ID() string {
	return "run-command"
}

func (*ActionFactory) Name() string {
	return "Run Command"
}

func (*ActionFactory) Description() string {
	return "Execute a command as an argv vector with a bounded output capture and a 10-minute timeout."
}

func (*ActionFactory) Create(_ map[string]any) (protocol.Action, error) {
	return &Action{}, nil
}

func (*ActionFactory) Schema() *models.JSONSchema {
	return &models.JSONSchema{
		Type:  "object",
		Title: "Run Command",
		Properties: map[string]*models.Property{
			"command": {
				Type:        "string",
				Description: "The command to run. Parsed with shell-like quoting rules, never through a shell.",
			},
			"args": {
				Type:        "string",
				Description: "Extra arguments, appended after any arguments embedded in the command string.",
			},
			"workingDir": {
				Type:        "string",
				Description: "Directory to run in. Defaults to the workspace working directory.",
			},
			"stdout":   {Type: "string", Description: "Output: captured stdout tail."},
			"stderr":   {Type: "string", Description: "Output: captured stderr tail."},
			"exitCode": {Type: "number", Description: "Output: process exit code."},
		},
		Required: []string{"command"},
	}
}

type Action struct{}

func (a *Action) Execute(ctx context.Context, inputs map[string]any, execCtx protocol.ExecutionContext) (*protocol.ExecutionResult, error) {
	argv, err := buildArgv(inputs)
	if err != nil {
		return nil, err
	}

	workingDir, _ := inputs["workingDir"].(string)
	if workingDir == "" && execCtx.Workspace != nil {
		workingDir = execCtx.Workspace.WorkingDirectory
	}

	logs := []string{
		fmt.Sprintf("Running command: %v", argv),
		fmt.Sprintf("cwd: %s", workingDir),
	}

	cmdCtx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	stdout := newTailWriter(maxCapturedBytes)
	stderr := newTailWriter(maxCapturedBytes)

	cmd := exec.CommandContext(cmdCtx, argv[0], argv[1:]...)
	cmd.Dir = workingDir
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	// Ask nicely first; WaitDelay escalates to SIGKILL.
	cmd.Cancel = func() error {
		return cmd.Process.Signal(syscall.SIGTERM)
	}
	cmd.WaitDelay = termGracePeriod

	runErr := cmd.Run()

	exitCode := 0

	if runErr != nil {
		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) {
			exitCode = exitErr.ExitCode()
		} else {
			exitCode = -1
		}
	}

	outputs := map[string]any{
		"stdout":   stdout.String(),
		"stderr":   stderr.String(),
		"exitCode": exitCode,
	}

	if cmdCtx.Err() == context.DeadlineExceeded {
		return &protocol.ExecutionResult{
			Status:  models.StepStatusFailed,
			Outputs: outputs,
			Error:   fmt.Sprintf("command timed out after %s", commandTimeout),
			Logs:    append(logs, "Command timed out, process terminated."),
		}, nil
	}

	if runErr != nil {
		return &protocol.ExecutionResult{
			Status:  models.StepStatusFailed,
			Outputs: outputs,
			Error:   fmt.Sprintf("command failed: %v", runErr),
			Logs:    append(logs, fmt.Sprintf("Command exited with code %d", exitCode)),
		}, nil
	}

	return &protocol.ExecutionResult{
		Status:  models.StepStatusSuccess,
		Outputs: outputs,
		Logs:    append(logs, "Command exited with code 0"),
	}, nil
}

// buildArgv parses the command string and merges the args input, which may
// be a string to parse or an array of values.
func buildArgv(inputs map[string]any) ([]string, error) {
	command, _ := inputs["command"].(string)

	argv, err := SplitArgs(command)
	if err != nil {
		return nil, fmt.Errorf("failed to parse command: %w", err)
	}

	switch args := inputs["args"].(type) {
	case string:
		extra, err := SplitArgs(args)
		if err != nil {
			return nil, fmt.Errorf("failed to parse args: %w", err)
		}

		argv = append(argv, extra...)
	case []any:
		for _, arg := range args {
			argv = append(argv, fmt.Sprintf("%v", arg))
		}
	case []string:
		argv = append(argv, args...)
	}

	if len(argv) == 0 {
		return nil, ErrEmptyCommand
	}

	return argv, nil
}
