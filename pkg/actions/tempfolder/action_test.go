package tempfolder

import (
	"context"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukex/operand/pkg/models"
	"github.com/dukex/operand/pkg/protocol"
)

func TestExecuteCreatesFolder(t *testing.T) {
	action, err := NewActionFactory().Create(nil)
	require.NoError(t, err)

	result, err := action.Execute(context.Background(), nil, protocol.ExecutionContext{})
	require.NoError(t, err)

	assert.Equal(t, models.StepStatusSuccess, result.Status)

	path, ok := result.Outputs["path"].(string)
	require.True(t, ok)

	t.Cleanup(func() {
		_ = os.RemoveAll(path)
	})

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
	assert.True(t, strings.Contains(path, "operand-"))
}

func TestExecuteFoldersAreUnique(t *testing.T) {
	action, err := NewActionFactory().Create(nil)
	require.NoError(t, err)

	first, err := action.Execute(context.Background(), nil, protocol.ExecutionContext{})
	require.NoError(t, err)

	second, err := action.Execute(context.Background(), nil, protocol.ExecutionContext{})
	require.NoError(t, err)

	firstPath := first.Outputs["path"].(string)
	secondPath := second.Outputs["path"].(string)

	t.Cleanup(func() {
		_ = os.RemoveAll(firstPath)
		_ = os.RemoveAll(secondPath)
	})

	assert.NotEqual(t, firstPath, secondPath)
}
