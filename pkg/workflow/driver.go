package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/dukex/operand/pkg/eventbus"
	"github.com/dukex/operand/pkg/events"
	"github.com/dukex/operand/pkg/models"
	"github.com/dukex/operand/pkg/otelhelper"
	"github.com/dukex/operand/pkg/persistence"
	"github.com/dukex/operand/pkg/registry"
)

// Driver advances one run by one poll cycle. It is designed to be invoked
// repeatedly by the poller for as long as the run stays active; each call
// executes whatever is ready, re-polls paused steps, and settles the run
// status.
type Driver struct {
	persistence persistence.Persistence
	executor    *Executor
	eventBus    eventbus.EventPublisher
	logger      *slog.Logger
}

func NewDriver(
	persistence persistence.Persistence,
	registry *registry.Registry,
	eventBus eventbus.EventPublisher,
	logger *slog.Logger,
) *Driver {
	return &Driver{
		persistence: persistence,
		executor:    NewExecutor(persistence, registry, eventBus, logger),
		eventBus:    eventBus,
		logger:      logger.With("module", "run_driver"),
	}
}

// ProcessRun drives one poll cycle of a run. Terminal and unknown runs are
// skipped silently; a run whose workflow or workspace has disappeared fails
// immediately with no step-level detail.
func (d *Driver) ProcessRun(ctx context.Context, runID string) error {
	ctx, span := otelhelper.StartRunSpan(ctx, runID)
	defer span.End()

	runs := d.persistence.RunRepository()

	run, err := runs.GetByID(ctx, runID)
	if err != nil {
		if persistence.IsNotFound(err) {
			return nil
		}

		return fmt.Errorf("load run %s: %w", runID, err)
	}

	if !run.Status.IsActive() {
		return nil
	}

	logger := d.logger.With("run_id", runID, "workflow_id", run.WorkflowID)

	workflow, workspace, err := d.loadDependencies(ctx, run)
	if err != nil {
		logger.ErrorContext(ctx, "Run dependencies missing", "error", err)

		return d.failRun(ctx, run, err.Error())
	}

	d.ensureWorkingDirectory(ctx, workspace, logger)

	// Execute every ready step against a fresh view of the run.
	for _, stepID := range NextSteps(run, workflow) {
		node := workflow.NodeByID(stepID)
		if node == nil {
			continue
		}

		if err := d.executor.ExecuteStep(ctx, stepID, node, run, workflow, workspace); err != nil {
			return err
		}

		if run, err = runs.GetByID(ctx, runID); err != nil {
			return fmt.Errorf("reload run %s: %w", runID, err)
		}
	}

	// Re-poll paused steps so re-entrant actions can observe external
	// progress (resumed human steps, finished child runs).
	for _, step := range run.Steps {
		if step.Status != models.StepStatusPaused {
			continue
		}

		node := workflow.NodeByID(step.StepID)
		if node == nil {
			continue
		}

		if err := d.executor.ExecuteStep(ctx, step.StepID, node, run, workflow, workspace); err != nil {
			return err
		}

		if run, err = runs.GetByID(ctx, runID); err != nil {
			return fmt.Errorf("reload run %s: %w", runID, err)
		}
	}

	return d.settle(ctx, run, workflow, logger)
}

func (d *Driver) loadDependencies(ctx context.Context, run *models.WorkflowRun) (*models.Workflow, *models.Workspace, error) {
	workflow, err := d.persistence.WorkflowRepository().GetByID(ctx, run.WorkflowID)
	if err != nil {
		return nil, nil, fmt.Errorf("workflow %s not found", run.WorkflowID)
	}

	workspace, err := d.persistence.WorkspaceRepository().GetByID(ctx, run.WorkspaceID)
	if err != nil {
		return nil, nil, fmt.Errorf("workspace %s not found", run.WorkspaceID)
	}

	return workflow, workspace, nil
}

func (d *Driver) ensureWorkingDirectory(ctx context.Context, workspace *models.Workspace, logger *slog.Logger) {
	if workspace.WorkingDirectory == "" {
		return
	}

	if err := os.MkdirAll(workspace.WorkingDirectory, 0o755); err != nil {
		logger.ErrorContext(ctx, "Failed to create workspace directory",
			"working_directory", workspace.WorkingDirectory, "error", err)
	}
}

// settle decides whether the run as a whole has finished. A failed step
// fails the run once nothing is still running; all nodes in success or
// skipped completes it; anything else leaves the status for the next cycle.
func (d *Driver) settle(ctx context.Context, run *models.WorkflowRun, workflow *models.Workflow, logger *slog.Logger) error {
	anyRunning := run.HasStepInStatus(models.StepStatusRunning)
	anyPaused := run.HasStepInStatus(models.StepStatusPaused)
	anyFailed := run.HasStepInStatus(models.StepStatusFailed)

	if anyFailed && !anyRunning {
		logger.InfoContext(ctx, "Run failed")

		return d.failRun(ctx, run, firstStepError(run))
	}

	if anyRunning || anyPaused || run.Status != models.RunStatusRunning {
		return nil
	}

	for _, node := range workflow.Nodes {
		step := run.Step(node.ID)
		if step == nil || (step.Status != models.StepStatusSuccess && step.Status != models.StepStatusSkipped) {
			return nil
		}
	}

	logger.InfoContext(ctx, "Run completed")

	return d.completeRun(ctx, run)
}

func (d *Driver) failRun(ctx context.Context, run *models.WorkflowRun, message string) error {
	otelhelper.RecordFailure(ctx, message)

	if err := d.finishRun(ctx, run, models.RunStatusFailed); err != nil {
		return err
	}

	d.publish(ctx, run, events.RunFailed{
		BaseEvent: d.baseEvent(events.RunFailedEvent, run),
		Error:     message,
	})

	return nil
}

func (d *Driver) completeRun(ctx context.Context, run *models.WorkflowRun) error {
	if err := d.finishRun(ctx, run, models.RunStatusCompleted); err != nil {
		return err
	}

	d.publish(ctx, run, events.RunCompleted{
		BaseEvent: d.baseEvent(events.RunCompletedEvent, run),
		Duration:  time.Since(run.StartTime),
	})

	return nil
}

func (d *Driver) finishRun(ctx context.Context, run *models.WorkflowRun, status models.RunStatus) error {
	endTime := time.Now().UTC()

	patch := &persistence.RunPatch{Status: &status, EndTime: &endTime}
	if err := d.persistence.RunRepository().SavePartial(ctx, run.ID, patch); err != nil {
		return fmt.Errorf("finish run %s as %s: %w", run.ID, status, err)
	}

	run.Status = status

	return nil
}

func (d *Driver) baseEvent(eventType events.EventType, run *models.WorkflowRun) events.BaseEvent {
	base := events.NewBaseEvent(eventType, run.WorkflowID)
	base.RunID = run.ID
	base.WorkspaceID = run.WorkspaceID

	return base
}

func (d *Driver) publish(ctx context.Context, run *models.WorkflowRun, event eventbus.Event) {
	if d.eventBus == nil {
		return
	}

	if err := d.eventBus.Publish(ctx, run.ID, event); err != nil {
		d.logger.WarnContext(ctx, "Failed to publish run event", "error", err)
	}
}

func firstStepError(run *models.WorkflowRun) string {
	for _, step := range run.Steps {
		if step.Status == models.StepStatusFailed && step.Error != "" {
			return step.Error
		}
	}

	return "one or more steps failed"
}
