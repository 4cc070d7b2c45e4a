package file

import (
	"context"
	"os"
	"path"
	"sort"
	"sync"

	"github.com/dukex/operand/pkg/models"
	"github.com/dukex/operand/pkg/persistence"
)

const runsDir = "runs"

// RunRepository handles run-related file operations. Merging writes follow
// read-merge-write; the mutex serializes writers within this process, while
// cross-process writers remain last-write-wins.
type RunRepository struct {
	root string
	mu   sync.Mutex
}

// NewRunRepository creates a new run repository.
func NewRunRepository(root string) *RunRepository {
	return &RunRepository{root: root}
}

func (rr *RunRepository) GetByID(_ context.Context, id string) (*models.WorkflowRun, error) {
	var run models.WorkflowRun
	if err := readDocument(rr.root, runsDir, id, &run,
		persistence.NewRunError("GetByID", id, persistence.ErrRunNotFound)); err != nil {
		return nil, err
	}

	if run.Steps == nil {
		run.Steps = make(map[string]*models.StepExecutionState)
	}

	return &run, nil
}

func (rr *RunRepository) GetByWorkspace(ctx context.Context, workspaceID string) ([]*models.WorkflowRun, error) {
	ids, err := listDocumentIDs(rr.root, runsDir)
	if err != nil {
		return nil, err
	}

	var runs []*models.WorkflowRun

	for _, id := range ids {
		run, err := rr.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}

		if run.WorkspaceID == workspaceID {
			runs = append(runs, run)
		}
	}

	sort.Slice(runs, func(i, j int) bool {
		return runs[i].StartTime.After(runs[j].StartTime)
	})

	return runs, nil
}

func (rr *RunRepository) Create(_ context.Context, run *models.WorkflowRun) error {
	rr.mu.Lock()
	defer rr.mu.Unlock()

	if _, err := os.Stat(path.Join(rr.root, runsDir, run.ID+".json")); err == nil {
		return persistence.NewRunError("Create", run.ID, persistence.ErrRunAlreadyExists)
	}

	if run.Steps == nil {
		run.Steps = make(map[string]*models.StepExecutionState)
	}

	return writeDocument(rr.root, runsDir, run.ID, run)
}

// SaveStep merges a single step's state into the run document.
func (rr *RunRepository) SaveStep(ctx context.Context, runID string, step *models.StepExecutionState) error {
	rr.mu.Lock()
	defer rr.mu.Unlock()

	run, err := rr.GetByID(ctx, runID)
	if err != nil {
		return err
	}

	run.Steps[step.StepID] = step

	return writeDocument(rr.root, runsDir, run.ID, run)
}

// SavePartial merges the non-nil patch fields into the run document.
func (rr *RunRepository) SavePartial(ctx context.Context, runID string, patch *persistence.RunPatch) error {
	rr.mu.Lock()
	defer rr.mu.Unlock()

	run, err := rr.GetByID(ctx, runID)
	if err != nil {
		return err
	}

	applyPatch(run, patch)

	return writeDocument(rr.root, runsDir, run.ID, run)
}

// ListActive returns runs with status running or paused, ordered
// running-first then by oldest start time.
func (rr *RunRepository) ListActive(ctx context.Context) ([]*models.WorkflowRun, error) {
	ids, err := listDocumentIDs(rr.root, runsDir)
	if err != nil {
		return nil, err
	}

	var active []*models.WorkflowRun

	for _, id := range ids {
		run, err := rr.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}

		if run.Status.IsActive() {
			active = append(active, run)
		}
	}

	sortActive(active)

	return active, nil
}

// sortActive orders runs for admission: running before paused, ties broken
// by oldest start.
func sortActive(runs []*models.WorkflowRun) {
	sort.SliceStable(runs, func(i, j int) bool {
		if runs[i].Status != runs[j].Status {
			return runs[i].Status == models.RunStatusRunning
		}

		return runs[i].StartTime.Before(runs[j].StartTime)
	})
}

// applyPatch implements the RunPatch merge contract shared by all
// persistence backends.
func applyPatch(run *models.WorkflowRun, patch *persistence.RunPatch) {
	if patch.Status != nil {
		run.Status = *patch.Status
	}

	if patch.EndTime != nil {
		run.EndTime = patch.EndTime
	}

	if patch.Description != nil {
		run.Description = *patch.Description
	}

	for stepID, step := range patch.Steps {
		run.Steps[stepID] = step
	}

	if patch.UserLogs != nil {
		run.UserLogs = patch.UserLogs
	}
}
