// Package web provides HTTP handlers and REST API endpoints for workflow,
// workspace, run and schedule management.
package web

import (
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"

	"github.com/dukex/operand/pkg/models"
	"github.com/dukex/operand/pkg/persistence"
	"github.com/dukex/operand/pkg/registry"
	"github.com/dukex/operand/pkg/workflow"
)

type APIHandlers struct {
	persistence persistence.Persistence
	manager     *workflow.Manager
	validator   *validator.Validate
	registry    *registry.Registry
}

func NewAPIHandlers(
	persistence persistence.Persistence,
	manager *workflow.Manager,
	validator *validator.Validate,
	registry *registry.Registry,
) *APIHandlers {
	return &APIHandlers{
		persistence: persistence,
		manager:     manager,
		validator:   validator,
		registry:    registry,
	}
}

// --- Workflows ---

func (h *APIHandlers) GetWorkflows(c fiber.Ctx) error {
	workflows, err := h.persistence.WorkflowRepository().GetAll(c.Context())
	if err != nil {
		return internalError(c, err)
	}

	return c.JSON(fiber.Map{"workflows": workflows})
}

func (h *APIHandlers) GetWorkflow(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Workflow ID is required")
	}

	wf, err := h.persistence.WorkflowRepository().GetByID(c.Context(), id)
	if err != nil {
		return handleEngineError(c, err)
	}

	return c.JSON(wf)
}

func (h *APIHandlers) CreateWorkflow(c fiber.Ctx) error {
	var req CreateWorkflowRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	if err := h.validateNodes(req.Nodes); err != nil {
		return badRequest(c, err.Error())
	}

	wf := &models.Workflow{
		Name:        req.Name,
		Description: req.Description,
		Nodes:       req.Nodes,
		Edges:       req.Edges,
		Inputs:      req.Inputs,
	}

	if err := h.manager.SaveWorkflow(c.Context(), wf); err != nil {
		return handleEngineError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(wf)
}

func (h *APIHandlers) UpdateWorkflow(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Workflow ID is required")
	}

	existing, err := h.persistence.WorkflowRepository().GetByID(c.Context(), id)
	if err != nil {
		return handleEngineError(c, err)
	}

	var req CreateWorkflowRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	if err := h.validateNodes(req.Nodes); err != nil {
		return badRequest(c, err.Error())
	}

	existing.Name = req.Name
	existing.Description = req.Description
	existing.Nodes = req.Nodes
	existing.Edges = req.Edges
	existing.Inputs = req.Inputs

	if err := h.manager.SaveWorkflow(c.Context(), existing); err != nil {
		return handleEngineError(c, err)
	}

	return c.JSON(existing)
}

func (h *APIHandlers) DeleteWorkflow(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Workflow ID is required")
	}

	if err := h.persistence.WorkflowRepository().Delete(c.Context(), id); err != nil {
		return handleEngineError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

// validateNodes checks every node against the action catalog before a save.
func (h *APIHandlers) validateNodes(nodes []*models.WorkflowNode) error {
	for _, node := range nodes {
		if err := h.registry.ValidateNode(node); err != nil {
			return err
		}
	}

	return nil
}

// --- Workspaces ---

func (h *APIHandlers) GetWorkspaces(c fiber.Ctx) error {
	workspaces, err := h.persistence.WorkspaceRepository().GetAll(c.Context())
	if err != nil {
		return internalError(c, err)
	}

	return c.JSON(fiber.Map{"workspaces": workspaces})
}

func (h *APIHandlers) GetWorkspace(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Workspace ID is required")
	}

	workspace, err := h.persistence.WorkspaceRepository().GetByID(c.Context(), id)
	if err != nil {
		return handleEngineError(c, err)
	}

	return c.JSON(workspace)
}

func (h *APIHandlers) CreateWorkspace(c fiber.Ctx) error {
	var req CreateWorkspaceRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	workspace := &models.Workspace{
		ID:               uuid.New().String(),
		Name:             req.Name,
		WorkingDirectory: req.WorkingDirectory,
	}

	if err := h.persistence.WorkspaceRepository().Save(c.Context(), workspace); err != nil {
		return internalError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(workspace)
}

func (h *APIHandlers) DeleteWorkspace(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Workspace ID is required")
	}

	if err := h.persistence.WorkspaceRepository().Delete(c.Context(), id); err != nil {
		return handleEngineError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

// --- Runs ---

// GetWorkspaceRuns lists the runs of one workspace, newest first.
func (h *APIHandlers) GetWorkspaceRuns(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Workspace ID is required")
	}

	runs, err := h.persistence.RunRepository().GetByWorkspace(c.Context(), id)
	if err != nil {
		return handleEngineError(c, err)
	}

	return c.JSON(fiber.Map{"runs": runs})
}

func (h *APIHandlers) GetRun(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Run ID is required")
	}

	run, err := h.persistence.RunRepository().GetByID(c.Context(), id)
	if err != nil {
		return handleEngineError(c, err)
	}

	return c.JSON(run)
}

// LaunchRun starts a new run of a workflow. The body carries the workspace
// and the run-level input values.
func (h *APIHandlers) LaunchRun(c fiber.Ctx) error {
	workflowID := c.Params("id")
	if workflowID == "" {
		return badRequest(c, "Workflow ID is required")
	}

	var req LaunchRunRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	run, err := h.manager.LaunchRun(c.Context(), workflowID, req.WorkspaceID, req.InputValues)
	if err != nil {
		return handleEngineError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(run)
}

// ResumeStep marks a paused step successful with the supplied outputs. The
// runner's next poll cycle picks the run back up.
func (h *APIHandlers) ResumeStep(c fiber.Ctx) error {
	runID := c.Params("id")
	stepID := c.Params("stepID")

	if runID == "" || stepID == "" {
		return badRequest(c, "Run ID and step ID are required")
	}

	var req ResumeStepRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.manager.ResumeStep(c.Context(), runID, stepID, req.Outputs); err != nil {
		return handleEngineError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) CancelRun(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Run ID is required")
	}

	if err := h.manager.CancelRun(c.Context(), id); err != nil {
		return handleEngineError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

// --- Schedules ---

func (h *APIHandlers) GetSchedules(c fiber.Ctx) error {
	schedules, err := h.persistence.ScheduleRepository().GetAll(c.Context())
	if err != nil {
		return internalError(c, err)
	}

	return c.JSON(fiber.Map{"schedules": schedules})
}

func (h *APIHandlers) CreateSchedule(c fiber.Ctx) error {
	var req CreateScheduleRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	schedule, err := models.NewSchedule(uuid.New().String(), req.WorkflowID, req.WorkspaceID, req.CronExpression)
	if err != nil {
		return badRequest(c, "Invalid cron expression: "+err.Error())
	}

	schedule.InputValues = req.InputValues

	if err := h.persistence.ScheduleRepository().Save(c.Context(), schedule); err != nil {
		return internalError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(schedule)
}

func (h *APIHandlers) DeleteSchedule(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Schedule ID is required")
	}

	if err := h.persistence.ScheduleRepository().Delete(c.Context(), id); err != nil {
		return handleEngineError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

// --- Catalog and health ---

// GetComponents serves the static action catalog the builder renders.
func (h *APIHandlers) GetComponents(c fiber.Ctx) error {
	return c.JSON(fiber.Map{"components": h.registry.Components()})
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	status := "healthy"
	httpStatus := http.StatusOK

	if err := h.persistence.HealthCheck(c.Context()); err != nil {
		status = "unhealthy"
		httpStatus = http.StatusInternalServerError
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status":    status,
		"timestamp": time.Now().UTC(),
	})
}
