package web

import (
	"errors"

	"github.com/gofiber/fiber/v3"
	"github.com/moogar0880/problems"

	"github.com/dukex/operand/pkg/persistence"
	"github.com/dukex/operand/pkg/workflow"
)

func badRequest(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(400).
		WithInstance(c.Path()).
		WithType("validation_error").
		WithDetail(detail)

	return c.Status(fiber.StatusBadRequest).JSON(problem)
}

func notFound(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(404).
		WithInstance(c.Path()).
		WithType("not_found").
		WithDetail(detail)

	return c.Status(fiber.StatusNotFound).JSON(problem)
}

func conflict(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(409).
		WithInstance(c.Path()).
		WithType("conflict").
		WithDetail(detail)

	return c.Status(fiber.StatusConflict).JSON(problem)
}

func internalError(c fiber.Ctx, err error) error {
	problem := problems.NewStatusProblem(500).
		WithInstance(c.Path()).
		WithType("internal_error").
		WithError(err)

	return c.Status(fiber.StatusInternalServerError).JSON(problem)
}

// handleEngineError maps manager and persistence errors onto problem
// responses.
func handleEngineError(c fiber.Ctx, err error) error {
	switch {
	case persistence.IsNotFound(err):
		return notFound(c, err.Error())

	case errors.Is(err, persistence.ErrStepNotFound):
		return notFound(c, "step not found")

	case errors.Is(err, workflow.ErrWorkflowHasCycle),
		errors.Is(err, workflow.ErrUnknownEdgeNode),
		errors.Is(err, workflow.ErrInvalidInputValues):
		return badRequest(c, err.Error())

	case errors.Is(err, workflow.ErrRunNotActive),
		errors.Is(err, workflow.ErrStepNotPaused):
		return conflict(c, err.Error())

	default:
		return internalError(c, err)
	}
}
