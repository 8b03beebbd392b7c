// Package main provides the Flowline API server.
package main

import (
	"log/slog"
	"strconv"

	validator "github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"

	"github.com/craftdesk/flowline/pkg/eventbus"
	"github.com/craftdesk/flowline/pkg/lock"
	"github.com/craftdesk/flowline/pkg/notify"
	"github.com/craftdesk/flowline/pkg/persistence"
	"github.com/craftdesk/flowline/pkg/services"
	"github.com/craftdesk/flowline/pkg/web"
)

type API struct {
	logger      *slog.Logger
	persistence persistence.Persistence
	eventBus    eventbus.EventBus
	locker      lock.Locker
	validate    *validator.Validate
}

func NewAPI(
	logger *slog.Logger,
	persistence persistence.Persistence,
	eventBus eventbus.EventBus,
	locker lock.Locker,
) *API {
	return &API{
		logger:      logger,
		persistence: persistence,
		eventBus:    eventBus,
		locker:      locker,
		validate:    validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (a *API) App() *fiber.App {
	definitionService := services.NewDefinition(a.persistence, a.eventBus, a.logger)
	projectService := services.NewProject(a.persistence, a.locker, notify.NewSink(a.eventBus), a.eventBus, a.logger)
	roleService := services.NewRoles(a.persistence, a.logger)

	handlers := web.NewAPIHandlers(definitionService, projectService, roleService, a.validate)

	app := fiber.New()
	app.Use(cors.New())
	app.Use(logger.New(logger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker())

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("Flowline API")
	})

	d := app.Group("/definitions")
	d.Get("/", handlers.GetDefinitions)
	d.Post("/", handlers.CreateDefinition)
	d.Post("/import", handlers.ImportDefinition)
	d.Get("/alias", handlers.GetActiveAlias)
	d.Get("/:id", handlers.GetDefinition)
	d.Patch("/:id", handlers.EditDefinition)
	d.Delete("/:id", handlers.DeleteDefinition)
	d.Post("/:id/activate", handlers.ActivateDefinition)
	d.Get("/:id/export", handlers.ExportDefinition)

	r := app.Group("/roles")
	r.Get("/", handlers.GetRoles)
	r.Post("/", handlers.AddRole)
	r.Delete("/:name", handlers.RemoveRole)

	p := app.Group("/projects")
	p.Get("/", handlers.GetProjects)
	p.Post("/", handlers.CreateProject)
	p.Get("/:id", handlers.GetProject)
	p.Delete("/:id", handlers.DeleteProject)
	p.Get("/:id/actions", handlers.GetProjectActions)
	p.Post("/:id/approvals", handlers.ApproveProject)
	p.Post("/:id/move", handlers.MoveProject)
	p.Post("/:id/revise", handlers.ReviseProject)
	p.Post("/:id/restore", handlers.RestoreProject)
	p.Get("/:id/revisions", handlers.GetProjectRevisions)
	p.Get("/:id/revisions/:number", handlers.ViewProjectRevision)
	p.Post("/:id/switch", handlers.SwitchProjectWorkflow)
	p.Post("/:id/documents", handlers.RecordProjectDocument)

	app.Get("/health", handlers.HealthCheck)

	return app
}

func (a *API) Start(port int) error {
	app := a.App()

	return app.Listen(":" + strconv.Itoa(port))
}
