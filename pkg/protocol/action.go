// Package protocol defines the interfaces and contracts for workflow actions.
package protocol

import (
	"context"
	"log/slog"

	"github.com/dukex/operand/pkg/models"
	"github.com/dukex/operand/pkg/persistence"
)

// ExecutionResult is what every action returns. Status must be success,
// failed or paused; pending/running/skipped are engine-owned states.
type ExecutionResult struct {
	Status  models.StepStatus `json:"status"`
	Outputs map[string]any    `json:"outputs,omitempty"`
	Error   string            `json:"error,omitempty"`
	Logs    []string          `json:"logs"`
}

// RunCapabilities is the narrow slice of the persistence gateway exposed to
// actions. Actions that need side effects (logging, spawning child runs)
// depend on this instead of the whole gateway, so the same action logic
// works whether persistence is in-memory, file-backed or networked.
type RunCapabilities interface {
	GetRun(ctx context.Context, id string) (*models.WorkflowRun, error)
	GetWorkflow(ctx context.Context, id string) (*models.Workflow, error)
	CreateRun(ctx context.Context, run *models.WorkflowRun) error
	UpdateRun(ctx context.Context, id string, patch *persistence.RunPatch) error
}

// ExecutionContext carries everything an action may need beyond its resolved
// inputs.
type ExecutionContext struct {
	Workspace  *models.Workspace
	WorkflowID string
	RunID      string
	StepID     string
	Runs       RunCapabilities
	Logger     *slog.Logger
}

// Action is one executable step implementation. Implementations invoked for
// a paused step must be idempotent: the driver re-executes paused steps every
// poll cycle, and prior outputs survive across invocations for exactly-once
// side effects (the for-each actions rely on this).
type Action interface {
	Execute(ctx context.Context, inputs map[string]any, execCtx ExecutionContext) (*ExecutionResult, error)
}

// ActionFactory creates action instances and provides the static catalog
// metadata the builder renders.
type ActionFactory interface {
	Create(config map[string]any) (Action, error)
	ID() string
	Name() string
	Description() string
	Schema() *models.JSONSchema
}
