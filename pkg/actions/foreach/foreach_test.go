package foreach

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukex/operand/pkg/models"
	"github.com/dukex/operand/pkg/persistence"
	"github.com/dukex/operand/pkg/persistence/file"
	"github.com/dukex/operand/pkg/protocol"
)

// testRuns adapts file persistence to the narrow surface actions see.
type testRuns struct {
	p *file.Persistence
}

func (r testRuns) GetRun(ctx context.Context, id string) (*models.WorkflowRun, error) {
	return r.p.RunRepository().GetByID(ctx, id)
}

func (r testRuns) GetWorkflow(ctx context.Context, id string) (*models.Workflow, error) {
	return r.p.WorkflowRepository().GetByID(ctx, id)
}

func (r testRuns) CreateRun(ctx context.Context, run *models.WorkflowRun) error {
	return r.p.RunRepository().Create(ctx, run)
}

func (r testRuns) UpdateRun(ctx context.Context, id string, patch *persistence.RunPatch) error {
	return r.p.RunRepository().SavePartial(ctx, id, patch)
}

type harness struct {
	p       *file.Persistence
	execCtx protocol.ExecutionContext
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	ctx := context.Background()
	p := file.NewPersistence(t.TempDir())

	child := &models.Workflow{
		ID:   "child-wf",
		Name: "Child Workflow",
		Nodes: []*models.WorkflowNode{
			{ID: "a", ActionType: "add-log", Name: "A"},
		},
	}
	require.NoError(t, p.WorkflowRepository().Save(ctx, child))

	parent := &models.WorkflowRun{
		ID:          "run-parent",
		WorkflowID:  "parent-wf",
		WorkspaceID: "ws-1",
		Status:      models.RunStatusRunning,
		Steps:       map[string]*models.StepExecutionState{},
		StartTime:   time.Now().UTC(),
	}
	require.NoError(t, p.RunRepository().Create(ctx, parent))

	return &harness{
		p: p,
		execCtx: protocol.ExecutionContext{
			Workspace:  &models.Workspace{ID: "ws-1", Name: "WS", WorkingDirectory: t.TempDir()},
			WorkflowID: "parent-wf",
			RunID:      "run-parent",
			StepID:     "fanout",
			Runs:       testRuns{p: p},
			Logger:     slog.Default(),
		},
	}
}

// persistOutputs mimics the executor persisting a step result between poll
// cycles.
func (h *harness) persistOutputs(t *testing.T, status models.StepStatus, outputs map[string]any) {
	t.Helper()

	require.NoError(t, h.p.RunRepository().SaveStep(context.Background(), "run-parent", &models.StepExecutionState{
		StepID:  "fanout",
		Status:  status,
		Outputs: outputs,
	}))
}

func (h *harness) childRuns(t *testing.T) []*models.WorkflowRun {
	t.Helper()

	runs, err := h.p.RunRepository().GetByWorkspace(context.Background(), "ws-1")
	require.NoError(t, err)

	children := make([]*models.WorkflowRun, 0, len(runs))

	for _, run := range runs {
		if run.ID != "run-parent" {
			children = append(children, run)
		}
	}

	return children
}

func (h *harness) finishChildren(t *testing.T, status models.RunStatus, ids ...string) {
	t.Helper()

	endTime := time.Now().UTC()

	for _, id := range ids {
		s := status
		require.NoError(t, h.p.RunRepository().SavePartial(context.Background(), id, &persistence.RunPatch{
			Status:  &s,
			EndTime: &endTime,
		}))
	}
}

func TestListAction_SpawnPhaseCreatesChildren(t *testing.T) {
	h := newHarness(t)
	action := &ListAction{}

	result, err := action.Execute(context.Background(), map[string]any{
		"items":            []any{"alpha", "beta", "gamma"},
		"childWorkflowId":  "child-wf",
		"itemVariableName": "folder",
		"additionalInput":  map[string]any{"mode": "fast"},
	}, h.execCtx)
	require.NoError(t, err)

	assert.Equal(t, models.StepStatusPaused, result.Status)

	ids := childIDsFromOutputs(result.Outputs)
	require.Len(t, ids, 3)

	children := h.childRuns(t)
	require.Len(t, children, 3)

	itemValues := make([]any, 0, 3)

	for _, child := range children {
		assert.Equal(t, "child-wf", child.WorkflowID)
		assert.Equal(t, models.RunStatusRunning, child.Status)
		assert.Equal(t, "fast", child.InputValues["mode"])
		itemValues = append(itemValues, child.InputValues["folder"])
	}

	assert.ElementsMatch(t, []any{"alpha", "beta", "gamma"}, itemValues)
}

func TestListAction_EmptyListSucceedsImmediately(t *testing.T) {
	h := newHarness(t)
	action := &ListAction{}

	result, err := action.Execute(context.Background(), map[string]any{
		"items":           []any{},
		"childWorkflowId": "child-wf",
	}, h.execCtx)
	require.NoError(t, err)

	assert.Equal(t, models.StepStatusSuccess, result.Status)
	assert.Equal(t, 0, result.Outputs["totalProcessed"])
	assert.Empty(t, childIDsFromOutputs(result.Outputs))
	assert.Empty(t, h.childRuns(t))
}

func TestListAction_AwaitPhaseDoesNotRespawn(t *testing.T) {
	h := newHarness(t)
	action := &ListAction{}
	ctx := context.Background()

	inputs := map[string]any{
		"items":           []any{"one", "two"},
		"childWorkflowId": "child-wf",
	}

	first, err := action.Execute(ctx, inputs, h.execCtx)
	require.NoError(t, err)
	h.persistOutputs(t, models.StepStatusPaused, first.Outputs)

	// Children still running: stay paused, snapshot statuses.
	second, err := action.Execute(ctx, inputs, h.execCtx)
	require.NoError(t, err)
	assert.Equal(t, models.StepStatusPaused, second.Status)

	statuses, ok := second.Outputs["childStatuses"].(map[string]any)
	require.True(t, ok)
	assert.Len(t, statuses, 2)

	assert.Len(t, h.childRuns(t), 2, "re-invocation must not spawn duplicates")
}

func TestListAction_AllChildrenCompleted(t *testing.T) {
	h := newHarness(t)
	action := &ListAction{}
	ctx := context.Background()

	inputs := map[string]any{
		"items":           []any{"one", "two"},
		"childWorkflowId": "child-wf",
	}

	first, err := action.Execute(ctx, inputs, h.execCtx)
	require.NoError(t, err)
	h.persistOutputs(t, models.StepStatusPaused, first.Outputs)

	ids := childIDsFromOutputs(first.Outputs)
	h.finishChildren(t, models.RunStatusCompleted, ids...)

	final, err := action.Execute(ctx, inputs, h.execCtx)
	require.NoError(t, err)
	assert.Equal(t, models.StepStatusSuccess, final.Status)
	assert.Equal(t, 2, final.Outputs["totalProcessed"])
}

func TestListAction_FailedChildFailsStep(t *testing.T) {
	h := newHarness(t)
	action := &ListAction{}
	ctx := context.Background()

	inputs := map[string]any{
		"items":           []any{"one", "two"},
		"childWorkflowId": "child-wf",
	}

	first, err := action.Execute(ctx, inputs, h.execCtx)
	require.NoError(t, err)
	h.persistOutputs(t, models.StepStatusPaused, first.Outputs)

	ids := childIDsFromOutputs(first.Outputs)
	h.finishChildren(t, models.RunStatusCompleted, ids[0])
	h.finishChildren(t, models.RunStatusFailed, ids[1])

	final, err := action.Execute(ctx, inputs, h.execCtx)
	require.NoError(t, err)
	assert.Equal(t, models.StepStatusFailed, final.Status)
	assert.Equal(t, "1 child runs failed", final.Error)
}

func TestListAction_MissingChildWorkflowInput(t *testing.T) {
	h := newHarness(t)
	action := &ListAction{}

	_, err := action.Execute(context.Background(), map[string]any{
		"items": []any{"one"},
	}, h.execCtx)
	assert.ErrorIs(t, err, ErrMissingChildWorkflow)
}

func TestListAction_UnknownChildWorkflow(t *testing.T) {
	h := newHarness(t)
	action := &ListAction{}

	_, err := action.Execute(context.Background(), map[string]any{
		"items":           []any{"one"},
		"childWorkflowId": "no-such-workflow",
	}, h.execCtx)
	assert.ErrorIs(t, err, ErrChildWorkflowNotFound)
}

func TestParseItems(t *testing.T) {
	items, err := parseItems("one\ntwo\n\n  three  \n")
	require.NoError(t, err)
	assert.Equal(t, []any{"one", "two", "three"}, items)

	items, err = parseItems([]string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, []any{"a", "b"}, items)

	_, err = parseItems(42)
	assert.ErrorIs(t, err, ErrInvalidItems)
}

func TestParseAdditionalInput(t *testing.T) {
	assert.Equal(t, map[string]any{"k": "v"}, parseAdditionalInput(map[string]any{"k": "v"}))
	assert.Equal(t, map[string]any{"k": "v"}, parseAdditionalInput(`{"k":"v"}`))
	assert.Nil(t, parseAdditionalInput("not json"))
	assert.Nil(t, parseAdditionalInput(nil))
}

func TestFolderAction_MatchesSubfolders(t *testing.T) {
	h := newHarness(t)
	action := &FolderAction{}

	base := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(base, "ticket-1"), 0o755))
	require.NoError(t, os.Mkdir(filepath.Join(base, "ticket-2"), 0o755))
	require.NoError(t, os.Mkdir(filepath.Join(base, "archive"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(base, "ticket-3.txt"), []byte("not a dir"), 0o600))

	result, err := action.Execute(context.Background(), map[string]any{
		"basePath":        base,
		"pattern":         "ticket-*",
		"childWorkflowId": "child-wf",
	}, h.execCtx)
	require.NoError(t, err)

	assert.Equal(t, models.StepStatusPaused, result.Status)
	require.Len(t, childIDsFromOutputs(result.Outputs), 2)

	paths := make([]any, 0, 2)
	for _, child := range h.childRuns(t) {
		paths = append(paths, child.InputValues["item"])
	}

	assert.ElementsMatch(t, []any{
		filepath.Join(base, "ticket-1"),
		filepath.Join(base, "ticket-2"),
	}, paths)
}

func TestFolderAction_RequiresBasePath(t *testing.T) {
	h := newHarness(t)
	action := &FolderAction{}

	_, err := action.Execute(context.Background(), map[string]any{
		"childWorkflowId": "child-wf",
	}, h.execCtx)
	assert.ErrorIs(t, err, ErrMissingBasePath)
}
