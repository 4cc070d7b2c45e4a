package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/dukex/operand/pkg/eventbus"
	"github.com/dukex/operand/pkg/events"
	"github.com/dukex/operand/pkg/models"
	"github.com/dukex/operand/pkg/otelhelper"
	"github.com/dukex/operand/pkg/persistence"
	"github.com/dukex/operand/pkg/protocol"
	"github.com/dukex/operand/pkg/registry"
)

// Executor runs a single step of a run: resolve inputs, invoke the action,
// persist the result, and flip the run between running and paused when the
// step's status demands it.
type Executor struct {
	persistence persistence.Persistence
	registry    *registry.Registry
	eventBus    eventbus.EventPublisher
	logger      *slog.Logger
}

func NewExecutor(
	persistence persistence.Persistence,
	registry *registry.Registry,
	eventBus eventbus.EventPublisher,
	logger *slog.Logger,
) *Executor {
	return &Executor{
		persistence: persistence,
		registry:    registry,
		eventBus:    eventBus,
		logger:      logger.With("module", "step_executor"),
	}
}

// ExecuteStep drives one invocation of a node's action. It is called both
// for freshly ready steps and for re-polls of paused steps; in the latter
// case prior outputs and logs survive into the new invocation so re-entrant
// actions can pick up where they left off.
func (e *Executor) ExecuteStep(
	ctx context.Context,
	stepID string,
	node *models.WorkflowNode,
	run *models.WorkflowRun,
	workflow *models.Workflow,
	workspace *models.Workspace,
) error {
	ctx, span := otelhelper.StartStepSpan(ctx, run.ID, stepID, node.ActionType)
	defer span.End()

	logger := e.logger.With(
		"run_id", run.ID,
		"step_id", stepID,
		"action_type", node.ActionType,
	)

	stepInputs := ResolveInputs(node, run, workspace)

	running := e.markRunning(ctx, stepID, run, stepInputs, logger)

	execCtx := protocol.ExecutionContext{
		Workspace:  workspace,
		WorkflowID: workflow.ID,
		RunID:      run.ID,
		StepID:     stepID,
		Runs:       newRunCapabilities(e.persistence),
		Logger:     logger,
	}

	result := e.invokeAction(ctx, node, stepInputs, execCtx, logger)

	return e.recordResult(ctx, stepID, node, run, running, result, logger)
}

// markRunning persists the step as running before the action is invoked, so
// a crash mid-action leaves observable state. Prior outputs and logs are
// carried over.
func (e *Executor) markRunning(
	ctx context.Context,
	stepID string,
	run *models.WorkflowRun,
	stepInputs map[string]any,
	logger *slog.Logger,
) *models.StepExecutionState {
	startTime := time.Now().UTC()
	outputs := map[string]any{}

	var logs []string

	if prior := run.Step(stepID); prior != nil {
		if prior.StartTime != nil {
			startTime = *prior.StartTime
		}

		if prior.Outputs != nil {
			outputs = prior.Outputs
		}

		logs = prior.Logs
	}

	running := &models.StepExecutionState{
		StepID:      stepID,
		Status:      models.StepStatusRunning,
		InputValues: stepInputs,
		Outputs:     outputs,
		Logs:        logs,
		StartTime:   &startTime,
	}

	if err := e.persistence.RunRepository().SaveStep(ctx, run.ID, running); err != nil {
		logger.ErrorContext(ctx, "Failed to persist running step state", "error", err)
	}

	return running
}

// invokeAction creates and executes the action, converting every failure
// mode (unknown action type, creation error, returned error, panic, nil
// result) into a failed ExecutionResult instead of an engine error.
func (e *Executor) invokeAction(
	ctx context.Context,
	node *models.WorkflowNode,
	stepInputs map[string]any,
	execCtx protocol.ExecutionContext,
	logger *slog.Logger,
) *protocol.ExecutionResult {
	if !e.registry.IsActionRegistered(node.ActionType) {
		logger.ErrorContext(ctx, "Unknown action type")

		return &protocol.ExecutionResult{
			Status: models.StepStatusFailed,
			Error:  fmt.Sprintf("unknown action: %s", node.ActionType),
			Logs:   []string{fmt.Sprintf("Unknown action: %s", node.ActionType)},
		}
	}

	action, err := e.registry.CreateAction(node.ActionType, map[string]any{"id": node.ID})
	if err != nil {
		logger.ErrorContext(ctx, "Failed to create action", "error", err)

		return &protocol.ExecutionResult{
			Status: models.StepStatusFailed,
			Error:  err.Error(),
			Logs:   []string{fmt.Sprintf("Error creating %s: %v", node.ActionType, err)},
		}
	}

	logger.InfoContext(ctx, "Executing action", "action_name", node.Name)

	result, err := executeRecovering(ctx, action, stepInputs, execCtx)
	if err != nil {
		logger.ErrorContext(ctx, "Action returned error", "error", err)

		return &protocol.ExecutionResult{
			Status: models.StepStatusFailed,
			Error:  err.Error(),
			Logs:   []string{fmt.Sprintf("Error executing %s: %v", node.ActionType, err)},
		}
	}

	if result == nil {
		return &protocol.ExecutionResult{
			Status: models.StepStatusFailed,
			Error:  fmt.Sprintf("action %s returned no result", node.ActionType),
			Logs:   []string{},
		}
	}

	return result
}

// executeRecovering invokes the action and turns a panic into a returned
// error. Actions include compiled plugins running in-process; one of them
// panicking must fail the step, not take the daemon down.
func executeRecovering(
	ctx context.Context,
	action protocol.Action,
	stepInputs map[string]any,
	execCtx protocol.ExecutionContext,
) (result *protocol.ExecutionResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = fmt.Errorf("action panicked: %v", r)
		}
	}()

	return action.Execute(ctx, stepInputs, execCtx)
}

// recordResult merges the action's result into the step state and adjusts
// the run status: paused result suspends the run, a finished step on a
// paused run resumes it. Logs are re-read from persistence before appending
// because an action may have written logs through its own UpdateRun calls
// while executing.
func (e *Executor) recordResult(
	ctx context.Context,
	stepID string,
	node *models.WorkflowNode,
	run *models.WorkflowRun,
	running *models.StepExecutionState,
	result *protocol.ExecutionResult,
	logger *slog.Logger,
) error {
	runs := e.persistence.RunRepository()

	currentLogs := running.Logs

	if fresh, err := runs.GetByID(ctx, run.ID); err == nil {
		if freshStep := fresh.Step(stepID); freshStep != nil {
			currentLogs = freshStep.Logs
		}
	}

	endTime := time.Now().UTC()

	final := &models.StepExecutionState{
		StepID:      stepID,
		Status:      result.Status,
		InputValues: running.InputValues,
		Outputs:     running.Outputs,
		Logs:        append(currentLogs, result.Logs...),
		StartTime:   running.StartTime,
		EndTime:     &endTime,
		Error:       result.Error,
	}

	if result.Outputs != nil {
		final.Outputs = result.Outputs
	}

	if result.Status == models.StepStatusPaused {
		// A paused step stays open.
		final.EndTime = nil
	}

	if result.Status == models.StepStatusFailed {
		otelhelper.RecordFailure(ctx, result.Error,
			attribute.String(otelhelper.StepIDKey, stepID))
	}

	if err := runs.SaveStep(ctx, run.ID, final); err != nil {
		return fmt.Errorf("persist step %s result: %w", stepID, err)
	}

	e.publishStepEvent(ctx, node, run, result)

	switch {
	case result.Status == models.StepStatusPaused:
		if run.Status != models.RunStatusPaused {
			if err := e.setRunStatus(ctx, run, models.RunStatusPaused); err != nil {
				return err
			}

			e.publishRunEvent(ctx, run, events.RunPaused{
				BaseEvent:   e.baseEvent(events.RunPausedEvent, run),
				PausedSteps: []string{stepID},
			})
		}
	case run.Status == models.RunStatusPaused:
		// The blocking step finished, let the driver keep going.
		if err := e.setRunStatus(ctx, run, models.RunStatusRunning); err != nil {
			return err
		}

		e.publishRunEvent(ctx, run, events.RunResumed{
			BaseEvent: e.baseEvent(events.RunResumedEvent, run),
			StepID:    stepID,
		})
	}

	logger.InfoContext(ctx, "Step finished", "status", string(result.Status))

	return nil
}

func (e *Executor) setRunStatus(ctx context.Context, run *models.WorkflowRun, status models.RunStatus) error {
	if err := e.persistence.RunRepository().SavePartial(ctx, run.ID, &persistence.RunPatch{Status: &status}); err != nil {
		return fmt.Errorf("update run %s status to %s: %w", run.ID, status, err)
	}

	run.Status = status

	return nil
}

func (e *Executor) baseEvent(eventType events.EventType, run *models.WorkflowRun) events.BaseEvent {
	base := events.NewBaseEvent(eventType, run.WorkflowID)
	base.RunID = run.ID
	base.WorkspaceID = run.WorkspaceID

	return base
}

func (e *Executor) publishStepEvent(ctx context.Context, node *models.WorkflowNode, run *models.WorkflowRun, result *protocol.ExecutionResult) {
	if e.eventBus == nil {
		return
	}

	var event eventbus.Event

	if result.Status == models.StepStatusFailed {
		event = events.StepFailed{
			BaseEvent:  e.baseEvent(events.StepFailedEvent, run),
			StepID:     node.ID,
			ActionType: node.ActionType,
			Error:      result.Error,
		}
	} else {
		event = events.StepFinished{
			BaseEvent:  e.baseEvent(events.StepFinishedEvent, run),
			StepID:     node.ID,
			ActionType: node.ActionType,
			Status:     result.Status,
		}
	}

	if err := e.eventBus.Publish(ctx, run.ID, event); err != nil {
		e.logger.WarnContext(ctx, "Failed to publish step event", "error", err)
	}
}

func (e *Executor) publishRunEvent(ctx context.Context, run *models.WorkflowRun, event eventbus.Event) {
	if e.eventBus == nil {
		return
	}

	if err := e.eventBus.Publish(ctx, run.ID, event); err != nil {
		e.logger.WarnContext(ctx, "Failed to publish run event", "error", err)
	}
}

// runCapabilities adapts the persistence gateway to the narrow surface
// actions are allowed to touch.
type runCapabilities struct {
	persistence persistence.Persistence
}

func newRunCapabilities(p persistence.Persistence) protocol.RunCapabilities {
	return &runCapabilities{persistence: p}
}

func (c *runCapabilities) GetRun(ctx context.Context, id string) (*models.WorkflowRun, error) {
	return c.persistence.RunRepository().GetByID(ctx, id)
}

func (c *runCapabilities) GetWorkflow(ctx context.Context, id string) (*models.Workflow, error) {
	return c.persistence.WorkflowRepository().GetByID(ctx, id)
}

func (c *runCapabilities) CreateRun(ctx context.Context, run *models.WorkflowRun) error {
	return c.persistence.RunRepository().Create(ctx, run)
}

func (c *runCapabilities) UpdateRun(ctx context.Context, id string, patch *persistence.RunPatch) error {
	return c.persistence.RunRepository().SavePartial(ctx, id, patch)
}
