// Package main provides the Operand API server implementation.
package main

import (
	"log/slog"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"

	"github.com/dukex/operand/pkg/eventbus"
	"github.com/dukex/operand/pkg/persistence"
	"github.com/dukex/operand/pkg/registry"
	"github.com/dukex/operand/pkg/web"
	"github.com/dukex/operand/pkg/workflow"
)

type API struct {
	logger      *slog.Logger
	persistence persistence.Persistence
	registry    *registry.Registry
	eventBus    eventbus.EventBus
	validate    *validator.Validate
}

func NewAPI(
	logger *slog.Logger,
	persistence persistence.Persistence,
	registry *registry.Registry,
	eventBus eventbus.EventBus,
) *API {
	return &API{
		persistence: persistence,
		logger:      logger,
		registry:    registry,
		eventBus:    eventBus,
		validate:    validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (a *API) App() *fiber.App {
	manager := workflow.NewManager(a.persistence, a.eventBus, a.logger)

	handlers := web.NewAPIHandlers(a.persistence, manager, a.validate, a.registry)

	app := fiber.New()
	app.Use(cors.New())
	app.Use(logger.New(logger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker())

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("Operand API")
	})

	w := app.Group("/workflows")
	w.Get("/", handlers.GetWorkflows)
	w.Post("/", handlers.CreateWorkflow)
	w.Get("/:id", handlers.GetWorkflow)
	w.Patch("/:id", handlers.UpdateWorkflow)
	w.Delete("/:id", handlers.DeleteWorkflow)
	w.Post("/:id/runs", handlers.LaunchRun)

	ws := app.Group("/workspaces")
	ws.Get("/", handlers.GetWorkspaces)
	ws.Post("/", handlers.CreateWorkspace)
	ws.Get("/:id", handlers.GetWorkspace)
	ws.Delete("/:id", handlers.DeleteWorkspace)
	ws.Get("/:id/runs", handlers.GetWorkspaceRuns)

	r := app.Group("/runs")
	r.Get("/:id", handlers.GetRun)
	r.Post("/:id/cancel", handlers.CancelRun)
	r.Post("/:id/steps/:stepID/resume", handlers.ResumeStep)

	s := app.Group("/schedules")
	s.Get("/", handlers.GetSchedules)
	s.Post("/", handlers.CreateSchedule)
	s.Delete("/:id", handlers.DeleteSchedule)

	app.Get("/components", handlers.GetComponents)
	app.Get("/health", handlers.HealthCheck)

	return app
}

func (a *API) Start(port int) error {
	app := a.App()

	err := app.Listen(":" + strconv.Itoa(port))

	return err
}
