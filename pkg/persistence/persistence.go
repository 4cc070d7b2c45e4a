// Package persistence provides the data storage abstraction layer for
// workflows, workspaces, runs and schedules.
package persistence

import (
	"context"
	"time"

	"github.com/dukex/operand/pkg/models"
)

// RunPatch is a partial update applied to a stored run. Nil fields are left
// untouched; Steps entries are merged by step ID; UserLogs replaces the
// stored list (callers append to a freshly read copy).
type RunPatch struct {
	Status      *models.RunStatus
	EndTime     *time.Time
	Description *string
	Steps       map[string]*models.StepExecutionState
	UserLogs    []models.UserLogEntry
}

// WorkflowRepository reads and writes workflow definitions.
type WorkflowRepository interface {
	GetAll(ctx context.Context) ([]*models.Workflow, error)
	GetByID(ctx context.Context, id string) (*models.Workflow, error)
	Save(ctx context.Context, workflow *models.Workflow) error
	Delete(ctx context.Context, id string) error
}

// WorkspaceRepository reads and writes workspaces.
type WorkspaceRepository interface {
	GetAll(ctx context.Context) ([]*models.Workspace, error)
	GetByID(ctx context.Context, id string) (*models.Workspace, error)
	Save(ctx context.Context, workspace *models.Workspace) error
	Delete(ctx context.Context, id string) error
}

// RunRepository is the only actor allowed to mutate a run's durable
// representation. Writers follow a read-merge-write pattern; there is no
// compare-and-swap, so concurrent writers are last-write-wins at the
// granularity of one call.
type RunRepository interface {
	GetByID(ctx context.Context, id string) (*models.WorkflowRun, error)
	GetByWorkspace(ctx context.Context, workspaceID string) ([]*models.WorkflowRun, error)
	Create(ctx context.Context, run *models.WorkflowRun) error
	// SaveStep merges a single step's state into the run document.
	SaveStep(ctx context.Context, runID string, step *models.StepExecutionState) error
	// SavePartial merges the non-nil patch fields into the run document.
	SavePartial(ctx context.Context, runID string, patch *RunPatch) error
	// ListActive returns runs with status running or paused, ordered
	// running-first then by oldest start time.
	ListActive(ctx context.Context) ([]*models.WorkflowRun, error)
}

// ScheduleRepository reads and writes cron schedules.
type ScheduleRepository interface {
	GetAll(ctx context.Context) ([]*models.Schedule, error)
	GetByID(ctx context.Context, id string) (*models.Schedule, error)
	Save(ctx context.Context, schedule *models.Schedule) error
	Delete(ctx context.Context, id string) error
	// ListDue returns active schedules whose NextDueAt is at or before now.
	ListDue(ctx context.Context, now time.Time) ([]*models.Schedule, error)
}

// Persistence is the gateway facade handed to the engine and the web layer.
type Persistence interface {
	WorkflowRepository() WorkflowRepository
	WorkspaceRepository() WorkspaceRepository
	RunRepository() RunRepository
	ScheduleRepository() ScheduleRepository

	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}
