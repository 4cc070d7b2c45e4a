package splitstring

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukex/operand/pkg/models"
	"github.com/dukex/operand/pkg/protocol"
)

func execute(t *testing.T, inputs map[string]any) *protocol.ExecutionResult {
	t.Helper()

	action, err := NewActionFactory().Create(nil)
	require.NoError(t, err)

	result, err := action.Execute(context.Background(), inputs, protocol.ExecutionContext{})
	require.NoError(t, err)
	require.NotNil(t, result)

	return result
}

func TestSplitStringDefaultDelimiter(t *testing.T) {
	result := execute(t, map[string]any{"inputString": "a,b,c"})

	assert.Equal(t, models.StepStatusSuccess, result.Status)
	assert.Equal(t, []any{"a", "b", "c"}, result.Outputs["strings"])
}

func TestSplitStringCustomDelimiter(t *testing.T) {
	result := execute(t, map[string]any{
		"inputString": "one|two|three",
		"delimiter":   "|",
	})

	assert.Equal(t, []any{"one", "two", "three"}, result.Outputs["strings"])
}

func TestSplitStringTrimsAndDropsEmptyParts(t *testing.T) {
	result := execute(t, map[string]any{"inputString": "  a , , b ,,  c  "})

	assert.Equal(t, []any{"a", "b", "c"}, result.Outputs["strings"])
}

func TestSplitStringNewlineDelimiter(t *testing.T) {
	result := execute(t, map[string]any{
		"inputString": "first\nsecond\n\nthird\n",
		"delimiter":   "\n",
	})

	assert.Equal(t, []any{"first", "second", "third"}, result.Outputs["strings"])
}

func TestSplitStringEmptyInput(t *testing.T) {
	result := execute(t, map[string]any{"inputString": ""})

	assert.Equal(t, models.StepStatusSuccess, result.Status)
	assert.Equal(t, []any{}, result.Outputs["strings"])
}

func TestSplitStringLongInputPreviewTruncated(t *testing.T) {
	long := ""
	for range 20 {
		long += "abcde,"
	}

	result := execute(t, map[string]any{"inputString": long})

	require.Len(t, result.Logs, 3)
	assert.Contains(t, result.Logs[1], "...")
}
