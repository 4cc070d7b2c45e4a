package runner

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukex/operand/pkg/models"
	"github.com/dukex/operand/pkg/persistence/file"
	"github.com/dukex/operand/pkg/registry"
	"github.com/dukex/operand/pkg/workflow"
)

func newTestRunner(t *testing.T, config Config) (*Runner, *file.Persistence, *workflow.Manager) {
	t.Helper()

	p := file.NewPersistence(t.TempDir())
	reg := registry.NewRegistry(slog.Default())
	driver := workflow.NewDriver(p, reg, nil, slog.Default())
	manager := workflow.NewManager(p, nil, slog.Default())

	return New(config, p, driver, manager, nil, nil, slog.Default()), p, manager
}

func TestNew_AppliesDefaults(t *testing.T) {
	r, _, _ := newTestRunner(t, Config{RunnerID: "runner-test"})

	assert.Equal(t, defaultPollInterval, r.config.PollInterval)
	assert.Equal(t, defaultMaxConcurrent, r.config.MaxConcurrent)
	assert.IsType(t, NoopLocker{}, r.locker)
}

func TestAdmit_CapsConcurrency(t *testing.T) {
	r, _, _ := newTestRunner(t, Config{RunnerID: "runner-test", MaxConcurrent: 2})

	assert.True(t, r.admit("run-1"))
	assert.True(t, r.admit("run-2"))
	assert.False(t, r.admit("run-3"), "cap reached")

	r.done("run-1")
	assert.True(t, r.admit("run-3"), "capacity freed")
}

func TestAdmit_RejectsRunAlreadyInFlight(t *testing.T) {
	r, _, _ := newTestRunner(t, Config{RunnerID: "runner-test", MaxConcurrent: 4})

	assert.True(t, r.admit("run-1"))
	assert.False(t, r.admit("run-1"))

	r.done("run-1")
	assert.True(t, r.admit("run-1"))
}

func TestFireSchedule_LaunchesRunAndAdvances(t *testing.T) {
	r, p, manager := newTestRunner(t, Config{RunnerID: "runner-test"})
	ctx := context.Background()

	wf := &models.Workflow{
		Name: "Scheduled",
		Nodes: []*models.WorkflowNode{
			{ID: "a", ActionType: "add-log", Name: "A"},
		},
	}
	require.NoError(t, manager.SaveWorkflow(ctx, wf))
	require.NoError(t, p.WorkspaceRepository().Save(ctx, &models.Workspace{
		ID: "ws-1", Name: "WS", WorkingDirectory: t.TempDir(),
	}))

	schedule, err := models.NewSchedule("sched-1", wf.ID, "ws-1", "* * * * *")
	require.NoError(t, err)
	schedule.InputValues = map[string]any{"source": "cron"}
	schedule.NextDueAt = time.Now().UTC().Add(-time.Minute)
	require.NoError(t, p.ScheduleRepository().Save(ctx, schedule))

	r.fireSchedule(ctx, schedule)

	runs, err := p.RunRepository().GetByWorkspace(ctx, "ws-1")
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, wf.ID, runs[0].WorkflowID)
	assert.Equal(t, "cron", runs[0].InputValues["source"])

	stored, err := p.ScheduleRepository().GetByID(ctx, "sched-1")
	require.NoError(t, err)
	assert.True(t, stored.Active)
	assert.True(t, stored.NextDueAt.After(time.Now().UTC().Add(-time.Second)), "next due advanced")
}

func TestFireSchedule_DeactivatesOnMissingWorkflow(t *testing.T) {
	r, p, _ := newTestRunner(t, Config{RunnerID: "runner-test"})
	ctx := context.Background()

	schedule, err := models.NewSchedule("sched-orphan", "gone-wf", "ws-1", "* * * * *")
	require.NoError(t, err)
	schedule.NextDueAt = time.Now().UTC().Add(-time.Minute)
	require.NoError(t, p.ScheduleRepository().Save(ctx, schedule))

	r.fireSchedule(ctx, schedule)

	stored, err := p.ScheduleRepository().GetByID(ctx, "sched-orphan")
	require.NoError(t, err)
	assert.False(t, stored.Active)

	runs, err := p.RunRepository().GetByWorkspace(ctx, "ws-1")
	require.NoError(t, err)
	assert.Empty(t, runs)
}

func TestStart_StopsOnContextCancel(t *testing.T) {
	r, _, _ := newTestRunner(t, Config{RunnerID: "runner-test", PollInterval: 10 * time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)

	go func() {
		done <- r.Start(ctx)
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("runner did not stop after cancellation")
	}
}

func TestNoopLocker_AlwaysClaims(t *testing.T) {
	locker := NoopLocker{}
	ctx := context.Background()

	claimed, err := locker.Acquire(ctx, "run-1")
	require.NoError(t, err)
	assert.True(t, claimed)

	assert.NoError(t, locker.Release(ctx, "run-1"))
}
