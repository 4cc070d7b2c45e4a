package runcommand

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukex/operand/pkg/models"
	"github.com/dukex/operand/pkg/protocol"
)

func execContext(t *testing.T) protocol.ExecutionContext {
	t.Helper()

	return protocol.ExecutionContext{
		Workspace: &models.Workspace{
			ID:               "ws-1",
			WorkingDirectory: t.TempDir(),
		},
	}
}

func TestSplitArgs(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []string
	}{
		{"simple", "echo hello world", []string{"echo", "hello", "world"}},
		{"single quotes", `echo 'hello world'`, []string{"echo", "hello world"}},
		{"double quotes", `echo "hello world"`, []string{"echo", "hello world"}},
		{"escaped quote in double quotes", `echo "say \"hi\""`, []string{"echo", `say "hi"`}},
		{"backslash escape", `echo hello\ world`, []string{"echo", "hello world"}},
		{"single quotes are literal", `echo 'a\nb'`, []string{"echo", `a\nb`}},
		{"collapses whitespace", "  echo \t hello \n", []string{"echo", "hello"}},
		{"empty quoted arg", `echo ''`, []string{"echo", ""}},
		{"empty input", "", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args, err := SplitArgs(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, args)
		})
	}
}

func TestSplitArgsUnterminatedQuote(t *testing.T) {
	for _, input := range []string{`echo 'oops`, `echo "oops`, `echo oops\`} {
		_, err := SplitArgs(input)
		assert.ErrorIs(t, err, ErrUnterminatedQuote, "input: %s", input)
	}
}

func TestBuildArgv(t *testing.T) {
	t.Run("command only", func(t *testing.T) {
		argv, err := buildArgv(map[string]any{"command": "ls -la"})
		require.NoError(t, err)
		assert.Equal(t, []string{"ls", "-la"}, argv)
	})

	t.Run("string args appended", func(t *testing.T) {
		argv, err := buildArgv(map[string]any{
			"command": "git",
			"args":    `commit -m "first commit"`,
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"git", "commit", "-m", "first commit"}, argv)
	})

	t.Run("array args formatted", func(t *testing.T) {
		argv, err := buildArgv(map[string]any{
			"command": "sleep",
			"args":    []any{5, "extra"},
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"sleep", "5", "extra"}, argv)
	})

	t.Run("string slice args", func(t *testing.T) {
		argv, err := buildArgv(map[string]any{
			"command": "echo",
			"args":    []string{"a", "b"},
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"echo", "a", "b"}, argv)
	})

	t.Run("empty command", func(t *testing.T) {
		_, err := buildArgv(map[string]any{"command": "   "})
		assert.ErrorIs(t, err, ErrEmptyCommand)
	})

	t.Run("bad quoting surfaces parse error", func(t *testing.T) {
		_, err := buildArgv(map[string]any{"command": `echo 'oops`})
		assert.ErrorIs(t, err, ErrUnterminatedQuote)
	})
}

func TestExecuteSuccess(t *testing.T) {
	action, err := NewActionFactory().Create(nil)
	require.NoError(t, err)

	result, err := action.Execute(context.Background(), map[string]any{
		"command": "echo hello",
	}, execContext(t))
	require.NoError(t, err)

	assert.Equal(t, models.StepStatusSuccess, result.Status)
	assert.Equal(t, "hello\n", result.Outputs["stdout"])
	assert.Equal(t, "", result.Outputs["stderr"])
	assert.Equal(t, 0, result.Outputs["exitCode"])
}

func TestExecuteFailureIsResultNotError(t *testing.T) {
	action, err := NewActionFactory().Create(nil)
	require.NoError(t, err)

	result, err := action.Execute(context.Background(), map[string]any{
		"command": "false",
	}, execContext(t))
	require.NoError(t, err)

	assert.Equal(t, models.StepStatusFailed, result.Status)
	assert.Equal(t, 1, result.Outputs["exitCode"])
	assert.Contains(t, result.Error, "command failed")
}

func TestExecuteMissingBinary(t *testing.T) {
	action, err := NewActionFactory().Create(nil)
	require.NoError(t, err)

	result, err := action.Execute(context.Background(), map[string]any{
		"command": "definitely-not-a-real-binary-xyz",
	}, execContext(t))
	require.NoError(t, err)

	assert.Equal(t, models.StepStatusFailed, result.Status)
	assert.Equal(t, -1, result.Outputs["exitCode"])
}

func TestExecuteRunsInWorkspaceByDefault(t *testing.T) {
	execCtx := execContext(t)

	action, err := NewActionFactory().Create(nil)
	require.NoError(t, err)

	result, err := action.Execute(context.Background(), map[string]any{
		"command": "pwd",
	}, execCtx)
	require.NoError(t, err)

	require.Equal(t, models.StepStatusSuccess, result.Status)

	stdout, ok := result.Outputs["stdout"].(string)
	require.True(t, ok)
	assert.Equal(t, execCtx.Workspace.WorkingDirectory, strings.TrimSpace(stdout))
}

func TestTailWriterKeepsLastBytes(t *testing.T) {
	w := newTailWriter(8)

	_, err := w.Write([]byte("0123456789abcdef"))
	require.NoError(t, err)

	got := w.String()
	assert.True(t, strings.HasPrefix(got, "...[truncated]...\n"))
	assert.True(t, strings.HasSuffix(got, "89abcdef"))
}

func TestTailWriterNoTruncationMarkerWhenUnderCap(t *testing.T) {
	w := newTailWriter(64)

	_, err := w.Write([]byte("short output"))
	require.NoError(t, err)

	assert.Equal(t, "short output", w.String())
}
