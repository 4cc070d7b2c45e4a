package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/xeipuuv/gojsonschema"

	"github.com/dukex/operand/pkg/eventbus"
	"github.com/dukex/operand/pkg/events"
	"github.com/dukex/operand/pkg/models"
	"github.com/dukex/operand/pkg/persistence"
)

var (
	// ErrWorkflowHasCycle is returned when a workflow's edges form a cycle.
	ErrWorkflowHasCycle = errors.New("workflow graph contains a cycle")
	// ErrUnknownEdgeNode is returned when an edge references a node ID that
	// does not exist in the workflow.
	ErrUnknownEdgeNode = errors.New("edge references unknown node")
	// ErrInvalidInputValues is returned when launch inputs do not satisfy
	// the workflow's declared input schema.
	ErrInvalidInputValues = errors.New("invalid input values")
	// ErrRunNotActive is returned when cancelling a run that already ended.
	ErrRunNotActive = errors.New("run is not active")
	// ErrStepNotPaused is returned when resuming a step that is not paused.
	ErrStepNotPaused = errors.New("step is not paused")
)

// Manager is the write-side API over workflows and runs: validated workflow
// saves, run launches, external resumption of paused steps and cancellation.
// The web layer is a thin shell around it.
type Manager struct {
	persistence persistence.Persistence
	eventBus    eventbus.EventPublisher
	validator   *validator.Validate
	logger      *slog.Logger
}

func NewManager(persistence persistence.Persistence, eventBus eventbus.EventPublisher, logger *slog.Logger) *Manager {
	return &Manager{
		persistence: persistence,
		eventBus:    eventBus,
		validator:   validator.New(),
		logger:      logger.With("module", "workflow_manager"),
	}
}

// SaveWorkflow validates and persists a workflow definition. Graph cycles
// are rejected here, at save time, so the readiness evaluator can assume an
// acyclic graph at run time.
func (m *Manager) SaveWorkflow(ctx context.Context, workflow *models.Workflow) error {
	if workflow.ID == "" {
		workflow.ID = uuid.New().String()
		workflow.CreatedAt = time.Now().UTC()
	}

	workflow.UpdatedAt = time.Now().UTC()

	if err := m.validator.Struct(workflow); err != nil {
		return fmt.Errorf("validate workflow: %w", err)
	}

	if err := ValidateGraph(workflow); err != nil {
		return err
	}

	return m.persistence.WorkflowRepository().Save(ctx, workflow)
}

// ValidateGraph checks edge references and detects cycles with a
// three-color depth-first search.
func ValidateGraph(workflow *models.Workflow) error {
	nodeIDs := make(map[string]bool, len(workflow.Nodes))
	for _, node := range workflow.Nodes {
		nodeIDs[node.ID] = true
	}

	adjacency := make(map[string][]string, len(workflow.Nodes))

	for _, edge := range workflow.Edges {
		if !nodeIDs[edge.Source] {
			return fmt.Errorf("%w: %s", ErrUnknownEdgeNode, edge.Source)
		}

		if !nodeIDs[edge.Target] {
			return fmt.Errorf("%w: %s", ErrUnknownEdgeNode, edge.Target)
		}

		adjacency[edge.Source] = append(adjacency[edge.Source], edge.Target)
	}

	const (
		white = 0
		gray  = 1
		black = 2
	)

	color := make(map[string]int, len(workflow.Nodes))

	var visit func(id string) error

	visit = func(id string) error {
		color[id] = gray

		for _, next := range adjacency[id] {
			switch color[next] {
			case gray:
				return fmt.Errorf("%w: via node %s", ErrWorkflowHasCycle, next)
			case white:
				if err := visit(next); err != nil {
					return err
				}
			}
		}

		color[id] = black

		return nil
	}

	for _, node := range workflow.Nodes {
		if color[node.ID] == white {
			if err := visit(node.ID); err != nil {
				return err
			}
		}
	}

	return nil
}

// LaunchRun creates a new run of a workflow against a workspace. Supplied
// input values are validated against the workflow's declared input schema;
// declared inputs that are absent fall back to their defaults.
func (m *Manager) LaunchRun(ctx context.Context, workflowID, workspaceID string, inputValues map[string]any) (*models.WorkflowRun, error) {
	workflow, err := m.persistence.WorkflowRepository().GetByID(ctx, workflowID)
	if err != nil {
		return nil, err
	}

	if _, err := m.persistence.WorkspaceRepository().GetByID(ctx, workspaceID); err != nil {
		return nil, err
	}

	resolved, err := resolveInputValues(workflow, inputValues)
	if err != nil {
		return nil, err
	}

	run := &models.WorkflowRun{
		ID:          "run-" + uuid.New().String(),
		WorkflowID:  workflow.ID,
		WorkspaceID: workspaceID,
		Status:      models.RunStatusRunning,
		Steps:       make(map[string]*models.StepExecutionState),
		Variables:   make(map[string]any),
		InputValues: resolved,
		StartTime:   time.Now().UTC(),
	}

	if err := m.persistence.RunRepository().Create(ctx, run); err != nil {
		return nil, err
	}

	m.logger.InfoContext(ctx, "Launched run", "run_id", run.ID, "workflow_id", workflowID)

	m.publish(ctx, run, events.RunStarted{
		BaseEvent:   m.baseEvent(events.RunStartedEvent, run),
		InputValues: resolved,
	})

	return run, nil
}

// ResumeStep is the external half of the pause protocol: a human (through
// the API) marks a paused step successful and attaches its outputs. The next
// poll cycle observes the change and continues the run.
func (m *Manager) ResumeStep(ctx context.Context, runID, stepID string, outputs map[string]any) error {
	run, err := m.persistence.RunRepository().GetByID(ctx, runID)
	if err != nil {
		return err
	}

	step := run.Step(stepID)
	if step == nil {
		return persistence.NewRunError("ResumeStep", runID, persistence.ErrStepNotFound)
	}

	if step.Status != models.StepStatusPaused {
		return fmt.Errorf("%w: step %s is %s", ErrStepNotPaused, stepID, step.Status)
	}

	endTime := time.Now().UTC()

	merged := make(map[string]any, len(step.Outputs)+len(outputs))
	for k, v := range step.Outputs {
		merged[k] = v
	}

	for k, v := range outputs {
		merged[k] = v
	}

	step.Status = models.StepStatusSuccess
	step.Outputs = merged
	step.EndTime = &endTime
	step.Logs = append(step.Logs, "Resumed externally.")

	running := models.RunStatusRunning

	patch := &persistence.RunPatch{
		Status: &running,
		Steps:  map[string]*models.StepExecutionState{stepID: step},
	}

	if err := m.persistence.RunRepository().SavePartial(ctx, runID, patch); err != nil {
		return err
	}

	m.logger.InfoContext(ctx, "Resumed step", "run_id", runID, "step_id", stepID)

	run.Status = running

	m.publish(ctx, run, events.RunResumed{
		BaseEvent: m.baseEvent(events.RunResumedEvent, run),
		StepID:    stepID,
	})

	return nil
}

// CancelRun forces a run into the terminal cancelled state, removing it from
// future polling. Steps that were mid-flight keep their last recorded state.
func (m *Manager) CancelRun(ctx context.Context, runID string) error {
	run, err := m.persistence.RunRepository().GetByID(ctx, runID)
	if err != nil {
		return err
	}

	if !run.Status.IsActive() {
		return fmt.Errorf("%w: run %s is %s", ErrRunNotActive, runID, run.Status)
	}

	cancelled := models.RunStatusCancelled
	endTime := time.Now().UTC()

	patch := &persistence.RunPatch{Status: &cancelled, EndTime: &endTime}
	if err := m.persistence.RunRepository().SavePartial(ctx, runID, patch); err != nil {
		return err
	}

	m.logger.InfoContext(ctx, "Cancelled run", "run_id", runID)

	run.Status = cancelled

	m.publish(ctx, run, events.RunCancelled{
		BaseEvent: m.baseEvent(events.RunCancelledEvent, run),
	})

	return nil
}

// resolveInputValues applies declared defaults and validates the result
// against a JSON schema generated from the workflow's input declarations.
func resolveInputValues(workflow *models.Workflow, supplied map[string]any) (map[string]any, error) {
	resolved := make(map[string]any, len(workflow.Inputs))

	for k, v := range supplied {
		resolved[k] = v
	}

	for _, input := range workflow.Inputs {
		if _, ok := resolved[input.Name]; !ok && input.DefaultValue != nil {
			resolved[input.Name] = input.DefaultValue
		}
	}

	if len(workflow.Inputs) == 0 {
		return resolved, nil
	}

	schemaLoader := gojsonschema.NewGoLoader(inputSchema(workflow.Inputs))
	documentLoader := gojsonschema.NewGoLoader(resolved)

	result, err := gojsonschema.Validate(schemaLoader, documentLoader)
	if err != nil {
		return nil, fmt.Errorf("validate input values: %w", err)
	}

	if !result.Valid() {
		details := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			details = append(details, desc.String())
		}

		return nil, fmt.Errorf("%w: %s", ErrInvalidInputValues, strings.Join(details, "; "))
	}

	return resolved, nil
}

// inputSchema builds a JSON schema document from the workflow's typed input
// declarations. Image inputs travel as strings (URLs or data URIs).
func inputSchema(inputs []models.WorkflowInput) map[string]any {
	properties := make(map[string]any, len(inputs))
	required := make([]string, 0, len(inputs))

	for _, input := range inputs {
		var schemaType string

		switch input.Type {
		case models.WorkflowInputNumber:
			schemaType = "number"
		case models.WorkflowInputBoolean:
			schemaType = "boolean"
		case models.WorkflowInputText, models.WorkflowInputImage:
			schemaType = "string"
		default:
			schemaType = "string"
		}

		properties[input.Name] = map[string]any{"type": schemaType}

		if input.DefaultValue == nil {
			required = append(required, input.Name)
		}
	}

	return map[string]any{
		"type":       "object",
		"properties": properties,
		"required":   required,
	}
}

func (m *Manager) baseEvent(eventType events.EventType, run *models.WorkflowRun) events.BaseEvent {
	base := events.NewBaseEvent(eventType, run.WorkflowID)
	base.RunID = run.ID
	base.WorkspaceID = run.WorkspaceID

	return base
}

func (m *Manager) publish(ctx context.Context, run *models.WorkflowRun, event eventbus.Event) {
	if m.eventBus == nil {
		return
	}

	if err := m.eventBus.Publish(ctx, run.ID, event); err != nil {
		m.logger.WarnContext(ctx, "Failed to publish run event", "error", err)
	}
}
