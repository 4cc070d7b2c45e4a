package file

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukex/operand/pkg/models"
	"github.com/dukex/operand/pkg/persistence"
)

func newTestPersistence(t *testing.T) *Persistence {
	t.Helper()

	return NewPersistence(t.TempDir())
}

func newRun(id string, status models.RunStatus, start time.Time) *models.WorkflowRun {
	return &models.WorkflowRun{
		ID:          id,
		WorkflowID:  "wf-1",
		WorkspaceID: "ws-1",
		Status:      status,
		Steps:       map[string]*models.StepExecutionState{},
		StartTime:   start,
	}
}

func TestNewPersistence_StripsFileScheme(t *testing.T) {
	dir := t.TempDir()
	p := NewPersistence("file://" + dir)

	assert.NoError(t, p.HealthCheck(context.Background()))
}

func TestWorkflowRepository_RoundTrip(t *testing.T) {
	p := newTestPersistence(t)
	ctx := context.Background()
	repo := p.WorkflowRepository()

	workflow := &models.Workflow{
		ID:   "wf-1",
		Name: "Round Trip",
		Nodes: []*models.WorkflowNode{
			{ID: "a", ActionType: "add-log", Name: "A", InputMappings: map[string]models.InputMapping{
				"content": {Type: models.InputMappingConstant, Value: "hi"},
			}},
		},
		Edges: []*models.Edge{},
	}

	require.NoError(t, repo.Save(ctx, workflow))

	stored, err := repo.GetByID(ctx, "wf-1")
	require.NoError(t, err)
	assert.Equal(t, "Round Trip", stored.Name)
	require.Len(t, stored.Nodes, 1)
	assert.Equal(t, "hi", stored.Nodes[0].InputMappings["content"].Value)

	all, err := repo.GetAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)

	require.NoError(t, repo.Delete(ctx, "wf-1"))

	_, err = repo.GetByID(ctx, "wf-1")
	assert.True(t, persistence.IsWorkflowNotFound(err))
}

func TestWriteDocument_AtomicReplace(t *testing.T) {
	root := t.TempDir()

	require.NoError(t, writeDocument(root, "workflows", "wf-1", map[string]any{"name": "v1"}))
	require.NoError(t, writeDocument(root, "workflows", "wf-1", map[string]any{"name": "v2"}))

	entries, err := os.ReadDir(filepath.Join(root, "workflows"))
	require.NoError(t, err)
	require.Len(t, entries, 1, "no temp files left behind")
	assert.Equal(t, "wf-1.json", entries[0].Name())

	var doc map[string]any

	require.NoError(t, readDocument(root, "workflows", "wf-1", &doc, persistence.ErrWorkflowNotFound))
	assert.Equal(t, "v2", doc["name"])
}

func TestListDocumentIDs_IgnoresStrayTempFiles(t *testing.T) {
	root := t.TempDir()

	require.NoError(t, writeDocument(root, "runs", "run-1", map[string]any{"id": "run-1"}))

	// A crash between temp-file creation and rename leaves one of these.
	stray := filepath.Join(root, "runs", "run-2.123.tmp")
	require.NoError(t, os.WriteFile(stray, []byte(`{"id":"run-`), 0600))

	ids, err := listDocumentIDs(root, "runs")
	require.NoError(t, err)
	assert.Equal(t, []string{"run-1"}, ids)
}

func TestWorkspaceRepository_NotFound(t *testing.T) {
	p := newTestPersistence(t)

	_, err := p.WorkspaceRepository().GetByID(context.Background(), "missing")
	assert.True(t, persistence.IsWorkspaceNotFound(err))
}

func TestRunRepository_CreateRejectsDuplicates(t *testing.T) {
	p := newTestPersistence(t)
	ctx := context.Background()
	repo := p.RunRepository()

	run := newRun("run-1", models.RunStatusRunning, time.Now().UTC())

	require.NoError(t, repo.Create(ctx, run))

	err := repo.Create(ctx, run)
	assert.ErrorIs(t, err, persistence.ErrRunAlreadyExists)
}

func TestRunRepository_SaveStepMergesByID(t *testing.T) {
	p := newTestPersistence(t)
	ctx := context.Background()
	repo := p.RunRepository()

	require.NoError(t, repo.Create(ctx, newRun("run-1", models.RunStatusRunning, time.Now().UTC())))

	require.NoError(t, repo.SaveStep(ctx, "run-1", &models.StepExecutionState{
		StepID: "a", Status: models.StepStatusSuccess, Outputs: map[string]any{"x": "1"},
	}))
	require.NoError(t, repo.SaveStep(ctx, "run-1", &models.StepExecutionState{
		StepID: "b", Status: models.StepStatusRunning,
	}))

	stored, err := repo.GetByID(ctx, "run-1")
	require.NoError(t, err)
	assert.Len(t, stored.Steps, 2)
	assert.Equal(t, "1", stored.Step("a").Outputs["x"])

	// Overwriting one step leaves the other untouched.
	require.NoError(t, repo.SaveStep(ctx, "run-1", &models.StepExecutionState{
		StepID: "b", Status: models.StepStatusSuccess,
	}))

	stored, err = repo.GetByID(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, models.StepStatusSuccess, stored.Step("b").Status)
	assert.Equal(t, models.StepStatusSuccess, stored.Step("a").Status)
}

func TestRunRepository_SavePartialMergeContract(t *testing.T) {
	p := newTestPersistence(t)
	ctx := context.Background()
	repo := p.RunRepository()

	run := newRun("run-1", models.RunStatusRunning, time.Now().UTC())
	run.Description = "initial"
	require.NoError(t, repo.Create(ctx, run))

	// A patch with only steps leaves status and description alone.
	require.NoError(t, repo.SavePartial(ctx, "run-1", &persistence.RunPatch{
		Steps: map[string]*models.StepExecutionState{
			"a": {StepID: "a", Status: models.StepStatusPaused},
		},
	}))

	stored, err := repo.GetByID(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusRunning, stored.Status)
	assert.Equal(t, "initial", stored.Description)
	assert.Equal(t, models.StepStatusPaused, stored.Step("a").Status)

	// Status, end time and user logs apply together.
	completed := models.RunStatusCompleted
	endTime := time.Now().UTC()
	description := "all done"

	require.NoError(t, repo.SavePartial(ctx, "run-1", &persistence.RunPatch{
		Status:      &completed,
		EndTime:     &endTime,
		Description: &description,
		UserLogs: []models.UserLogEntry{
			{Timestamp: endTime, Content: "finished", StepID: "a"},
		},
	}))

	stored, err = repo.GetByID(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusCompleted, stored.Status)
	assert.Equal(t, "all done", stored.Description)
	require.NotNil(t, stored.EndTime)
	assert.WithinDuration(t, endTime, *stored.EndTime, time.Second)
	require.Len(t, stored.UserLogs, 1)
	assert.Equal(t, "finished", stored.UserLogs[0].Content)
}

func TestRunRepository_ListActiveOrdering(t *testing.T) {
	p := newTestPersistence(t)
	ctx := context.Background()
	repo := p.RunRepository()

	base := time.Now().UTC()

	require.NoError(t, repo.Create(ctx, newRun("run-paused-old", models.RunStatusPaused, base.Add(-3*time.Hour))))
	require.NoError(t, repo.Create(ctx, newRun("run-running-new", models.RunStatusRunning, base.Add(-1*time.Hour))))
	require.NoError(t, repo.Create(ctx, newRun("run-running-old", models.RunStatusRunning, base.Add(-2*time.Hour))))
	require.NoError(t, repo.Create(ctx, newRun("run-done", models.RunStatusCompleted, base.Add(-4*time.Hour))))

	active, err := repo.ListActive(ctx)
	require.NoError(t, err)

	ids := make([]string, 0, len(active))
	for _, run := range active {
		ids = append(ids, run.ID)
	}

	assert.Equal(t, []string{"run-running-old", "run-running-new", "run-paused-old"}, ids)
}

func TestRunRepository_GetByWorkspaceNewestFirst(t *testing.T) {
	p := newTestPersistence(t)
	ctx := context.Background()
	repo := p.RunRepository()

	base := time.Now().UTC()

	older := newRun("run-older", models.RunStatusCompleted, base.Add(-2*time.Hour))
	newer := newRun("run-newer", models.RunStatusRunning, base)
	other := newRun("run-other", models.RunStatusRunning, base)
	other.WorkspaceID = "ws-2"

	require.NoError(t, repo.Create(ctx, older))
	require.NoError(t, repo.Create(ctx, newer))
	require.NoError(t, repo.Create(ctx, other))

	runs, err := repo.GetByWorkspace(ctx, "ws-1")
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "run-newer", runs[0].ID)
	assert.Equal(t, "run-older", runs[1].ID)
}

func TestScheduleRepository_ListDue(t *testing.T) {
	p := newTestPersistence(t)
	ctx := context.Background()
	repo := p.ScheduleRepository()

	due, err := models.NewSchedule("sched-due", "wf-1", "ws-1", "* * * * *")
	require.NoError(t, err)
	due.NextDueAt = time.Now().UTC().Add(-time.Minute)
	require.NoError(t, repo.Save(ctx, due))

	future, err := models.NewSchedule("sched-future", "wf-1", "ws-1", "0 0 1 1 *")
	require.NoError(t, err)
	require.NoError(t, repo.Save(ctx, future))

	inactive, err := models.NewSchedule("sched-off", "wf-1", "ws-1", "* * * * *")
	require.NoError(t, err)
	inactive.NextDueAt = time.Now().UTC().Add(-time.Minute)
	inactive.Active = false
	require.NoError(t, repo.Save(ctx, inactive))

	list, err := repo.ListDue(ctx, time.Now().UTC())
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "sched-due", list[0].ID)
}
