package addlog

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukex/operand/pkg/models"
	"github.com/dukex/operand/pkg/persistence"
	"github.com/dukex/operand/pkg/protocol"
)

type stubRuns struct {
	run       *models.WorkflowRun
	lastPatch *persistence.RunPatch
}

func (s *stubRuns) GetRun(_ context.Context, _ string) (*models.WorkflowRun, error) {
	return s.run, nil
}

func (s *stubRuns) GetWorkflow(_ context.Context, _ string) (*models.Workflow, error) {
	return nil, persistence.ErrWorkflowNotFound
}

func (s *stubRuns) CreateRun(_ context.Context, _ *models.WorkflowRun) error {
	return nil
}

func (s *stubRuns) UpdateRun(_ context.Context, _ string, patch *persistence.RunPatch) error {
	s.lastPatch = patch
	return nil
}

func TestExecuteAppendsUserLog(t *testing.T) {
	runs := &stubRuns{
		run: &models.WorkflowRun{
			ID: "run-1",
			UserLogs: []models.UserLogEntry{
				{Timestamp: time.Now().UTC().Add(-time.Minute), Content: "earlier", StepID: "step-0"},
			},
		},
	}

	action, err := NewActionFactory().Create(nil)
	require.NoError(t, err)

	result, err := action.Execute(context.Background(), map[string]any{
		"content": "## Deploy started",
	}, protocol.ExecutionContext{RunID: "run-1", StepID: "step-1", Runs: runs})
	require.NoError(t, err)

	assert.Equal(t, models.StepStatusSuccess, result.Status)

	require.NotNil(t, runs.lastPatch)
	require.Len(t, runs.lastPatch.UserLogs, 2)
	assert.Equal(t, "earlier", runs.lastPatch.UserLogs[0].Content)
	assert.Equal(t, "## Deploy started", runs.lastPatch.UserLogs[1].Content)
	assert.Equal(t, "step-1", runs.lastPatch.UserLogs[1].StepID)
	assert.False(t, runs.lastPatch.UserLogs[1].Timestamp.IsZero())
}

func TestExecuteCoercesNonStringContent(t *testing.T) {
	runs := &stubRuns{run: &models.WorkflowRun{ID: "run-1"}}

	action, err := NewActionFactory().Create(nil)
	require.NoError(t, err)

	_, err = action.Execute(context.Background(), map[string]any{
		"content": 42,
	}, protocol.ExecutionContext{RunID: "run-1", StepID: "step-1", Runs: runs})
	require.NoError(t, err)

	require.NotNil(t, runs.lastPatch)
	require.Len(t, runs.lastPatch.UserLogs, 1)
	assert.Equal(t, "42", runs.lastPatch.UserLogs[0].Content)
}
