package gitcheckout

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukex/operand/pkg/models"
	"github.com/dukex/operand/pkg/protocol"
)

func TestRepoName(t *testing.T) {
	tests := []struct {
		url      string
		expected string
	}{
		{"https://github.com/dukex/operand.git", "operand"},
		{"https://github.com/dukex/operand", "operand"},
		{"https://github.com/dukex/operand/", "operand"},
		{"git@github.com:dukex/operand.git", "operand"},
		{"operand", "operand"},
		{"", "repo"},
		{"/", "repo"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, repoName(tt.url), "url: %q", tt.url)
	}
}

func TestExecuteMissingRepoURL(t *testing.T) {
	action, err := NewActionFactory().Create(nil)
	require.NoError(t, err)

	execCtx := protocol.ExecutionContext{
		Workspace: &models.Workspace{ID: "ws-1", WorkingDirectory: t.TempDir()},
	}

	_, err = action.Execute(context.Background(), map[string]any{}, execCtx)
	assert.ErrorIs(t, err, ErrMissingRepoURL)
}

func TestExecuteRefusesNonRepositoryTarget(t *testing.T) {
	workingDir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(workingDir, "operand"), 0o755))

	action, err := NewActionFactory().Create(nil)
	require.NoError(t, err)

	execCtx := protocol.ExecutionContext{
		Workspace: &models.Workspace{ID: "ws-1", WorkingDirectory: workingDir},
	}

	_, err = action.Execute(context.Background(), map[string]any{
		"repoUrl": "https://github.com/dukex/operand.git",
	}, execCtx)
	assert.ErrorIs(t, err, ErrNotARepository)
}

func TestExecuteCloneFailureIsResult(t *testing.T) {
	action, err := NewActionFactory().Create(nil)
	require.NoError(t, err)

	execCtx := protocol.ExecutionContext{
		Workspace: &models.Workspace{ID: "ws-1", WorkingDirectory: t.TempDir()},
	}

	result, err := action.Execute(context.Background(), map[string]any{
		"repoUrl": filepath.Join(t.TempDir(), "does-not-exist"),
	}, execCtx)
	require.NoError(t, err)

	assert.Equal(t, models.StepStatusFailed, result.Status)
	assert.NotEmpty(t, result.Error)
}
