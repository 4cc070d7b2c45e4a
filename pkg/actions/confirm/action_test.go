package confirm

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukex/operand/pkg/models"
	"github.com/dukex/operand/pkg/protocol"
)

func TestExecuteAlwaysPauses(t *testing.T) {
	action, err := NewActionFactory().Create(nil)
	require.NoError(t, err)

	execCtx := protocol.ExecutionContext{Logger: slog.Default()}

	result, err := action.Execute(context.Background(), map[string]any{
		"message": "Deploy to production?",
	}, execCtx)
	require.NoError(t, err)

	assert.Equal(t, models.StepStatusPaused, result.Status)
	assert.Empty(t, result.Outputs)

	// Re-invocation on the next poll cycle pauses again.
	again, err := action.Execute(context.Background(), map[string]any{
		"message": "Deploy to production?",
	}, execCtx)
	require.NoError(t, err)
	assert.Equal(t, models.StepStatusPaused, again.Status)
}
