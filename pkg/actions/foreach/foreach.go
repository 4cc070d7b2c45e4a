// Package foreach implements the fan-out actions that spawn one child run
// per item and wait for all of them to finish. The wait is modelled as a
// persisted two-phase state machine: whether the step already carries
// childRunIds in its outputs decides which phase a (re-)invocation is in,
// so the action is safe to re-invoke every poll cycle.
package foreach

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dukex/operand/pkg/models"
	"github.com/dukex/operand/pkg/protocol"
)

const outputChildRunIDs = "childRunIds"

var (
	// ErrMissingChildWorkflow is returned when no child workflow ID input
	// is present.
	ErrMissingChildWorkflow = errors.New("childWorkflowId input is required")
	// ErrChildWorkflowNotFound is returned when the referenced child
	// workflow does not exist.
	ErrChildWorkflowNotFound = errors.New("child workflow not found")
)

// phase is the resume state of a for-each step, reconstructed from the
// persisted step outputs on every invocation.
type phase interface {
	isPhase()
}

// spawnPhase means no children exist yet; the next invocation fans out.
type spawnPhase struct{}

// awaitPhase means children were already spawned; the next invocation polls
// their statuses instead of spawning again.
type awaitPhase struct {
	childRunIDs []string
}

func (spawnPhase) isPhase() {}
func (awaitPhase) isPhase() {}

// currentPhase reads the step's persisted outputs and decides which phase
// this invocation is in. A non-empty childRunIds output always means await,
// regardless of how many children have finished.
func currentPhase(ctx context.Context, execCtx protocol.ExecutionContext) (phase, error) {
	run, err := execCtx.Runs.GetRun(ctx, execCtx.RunID)
	if err != nil {
		return nil, fmt.Errorf("load run %s: %w", execCtx.RunID, err)
	}

	step := run.Step(execCtx.StepID)
	if step == nil || step.Outputs == nil {
		return spawnPhase{}, nil
	}

	ids := childIDsFromOutputs(step.Outputs)
	if len(ids) == 0 {
		return spawnPhase{}, nil
	}

	return awaitPhase{childRunIDs: ids}, nil
}

// childIDsFromOutputs tolerates both []string (in-memory) and []any (after a
// JSON round trip through persistence).
func childIDsFromOutputs(outputs map[string]any) []string {
	switch raw := outputs[outputChildRunIDs].(type) {
	case []string:
		return raw
	case []any:
		ids := make([]string, 0, len(raw))

		for _, v := range raw {
			if s, ok := v.(string); ok {
				ids = append(ids, s)
			}
		}

		return ids
	default:
		return nil
	}
}

// spawnConfig is everything the fan-out needs to create child runs.
type spawnConfig struct {
	childWorkflowID string
	itemVariable    string
	extraInputs     map[string]any
}

// drive runs one invocation of the two-phase machine: spawn children when
// none exist yet, otherwise poll them. items is only consulted during the
// spawn phase; by the await phase the item list is already frozen into the
// spawned children.
func drive(ctx context.Context, execCtx protocol.ExecutionContext, cfg spawnConfig, items []any) (*protocol.ExecutionResult, error) {
	if cfg.childWorkflowID == "" {
		return nil, ErrMissingChildWorkflow
	}

	childWorkflow, err := execCtx.Runs.GetWorkflow(ctx, cfg.childWorkflowID)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrChildWorkflowNotFound, cfg.childWorkflowID)
	}

	ph, err := currentPhase(ctx, execCtx)
	if err != nil {
		return nil, err
	}

	switch ph := ph.(type) {
	case spawnPhase:
		return spawnChildren(ctx, execCtx, cfg, childWorkflow, items)
	case awaitPhase:
		return awaitChildren(ctx, execCtx, ph.childRunIDs)
	default:
		return nil, fmt.Errorf("unknown for-each phase %T", ph)
	}
}

func spawnChildren(ctx context.Context, execCtx protocol.ExecutionContext, cfg spawnConfig, childWorkflow *models.Workflow, items []any) (*protocol.ExecutionResult, error) {
	// Nothing to fan out. Persisting an empty childRunIds would read back
	// as the spawn phase and pause forever, so finish right away.
	if len(items) == 0 {
		return &protocol.ExecutionResult{
			Status: models.StepStatusSuccess,
			Outputs: map[string]any{
				outputChildRunIDs: []string{},
				"totalProcessed":  0,
			},
			Logs: []string{"No items to process."},
		}, nil
	}

	itemVar := cfg.itemVariable
	if itemVar == "" {
		itemVar = "item"
	}

	logs := []string{fmt.Sprintf("Spawning %d child runs of workflow %s...", len(items), childWorkflow.ID)}
	childRunIDs := make([]string, 0, len(items))

	for i, item := range items {
		childInputs := make(map[string]any, len(cfg.extraInputs)+1)
		for k, v := range cfg.extraInputs {
			childInputs[k] = v
		}

		childInputs[itemVar] = item

		childRun := &models.WorkflowRun{
			ID:          "run-" + uuid.New().String(),
			WorkflowID:  childWorkflow.ID,
			WorkspaceID: execCtx.Workspace.ID,
			Status:      models.RunStatusRunning,
			StartTime:   time.Now().UTC(),
			Steps:       make(map[string]*models.StepExecutionState),
			Variables:   make(map[string]any),
			InputValues: childInputs,
			Description: fmt.Sprintf("Child of %s (item %d)", execCtx.RunID, i+1),
		}

		if err := execCtx.Runs.CreateRun(ctx, childRun); err != nil {
			return nil, fmt.Errorf("create child run %d of %d: %w", i+1, len(items), err)
		}

		childRunIDs = append(childRunIDs, childRun.ID)
	}

	return &protocol.ExecutionResult{
		Status:  models.StepStatusPaused,
		Outputs: map[string]any{outputChildRunIDs: childRunIDs},
		Logs:    append(logs, fmt.Sprintf("Spawned %d runs. Waiting for completion...", len(childRunIDs))),
	}, nil
}

func awaitChildren(ctx context.Context, execCtx protocol.ExecutionContext, childRunIDs []string) (*protocol.ExecutionResult, error) {
	childStatuses := make(map[string]any, len(childRunIDs))

	var active, failed int

	for _, childID := range childRunIDs {
		childRun, err := execCtx.Runs.GetRun(ctx, childID)
		if err != nil {
			failed++
			childStatuses[childID] = "missing"

			continue
		}

		childStatuses[childID] = string(childRun.Status)

		switch {
		case childRun.Status == models.RunStatusFailed:
			failed++
		case childRun.Status.IsActive():
			active++
		}
	}

	if active > 0 {
		// Re-persist the status snapshot so a paused run surfaces the
		// live state of each child.
		return &protocol.ExecutionResult{
			Status: models.StepStatusPaused,
			Outputs: map[string]any{
				outputChildRunIDs: childRunIDs,
				"childStatuses":   childStatuses,
			},
			Logs: []string{},
		}, nil
	}

	if failed > 0 {
		return &protocol.ExecutionResult{
			Status:  models.StepStatusFailed,
			Error:   fmt.Sprintf("%d child runs failed", failed),
			Outputs: map[string]any{outputChildRunIDs: childRunIDs, "childStatuses": childStatuses},
			Logs:    []string{fmt.Sprintf("%d of %d child runs failed.", failed, len(childRunIDs))},
		}, nil
	}

	return &protocol.ExecutionResult{
		Status: models.StepStatusSuccess,
		Outputs: map[string]any{
			outputChildRunIDs: childRunIDs,
			"totalProcessed":  len(childRunIDs),
		},
		Logs: []string{"All child runs completed."},
	}, nil
}
