// Package main provides the Dripkit API server implementation.
package main

import (
	"log/slog"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"

	"github.com/dripkit/dripkit/pkg/persistence"
	"github.com/dripkit/dripkit/pkg/registry"
	"github.com/dripkit/dripkit/pkg/segment"
	"github.com/dripkit/dripkit/pkg/web"
)

type API struct {
	logger      *slog.Logger
	persistence persistence.Persistence
	registry    *registry.Registry
	validate    *validator.Validate
}

func NewAPI(
	logger *slog.Logger,
	persistence persistence.Persistence,
	registry *registry.Registry,
) *API {
	return &API{
		logger:      logger,
		persistence: persistence,
		registry:    registry,
		validate:    validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (a *API) App() *fiber.App {
	segmentService := segment.NewService(a.persistence)

	handlers := web.NewAPIHandlers(a.persistence, segmentService, a.validate, a.registry)

	app := fiber.New()
	app.Use(cors.New())
	app.Use(logger.New(logger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker())

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("Dripkit API")
	})

	audiences := app.Group("/audiences")
	audiences.Get("/", handlers.GetAudiences)
	audiences.Post("/", handlers.CreateAudience)
	audiences.Get("/:id", handlers.GetAudience)
	audiences.Post("/:id/contacts", handlers.CreateContact)
	audiences.Get("/:id/tags", handlers.GetTags)
	audiences.Post("/:id/tags", handlers.CreateTag)
	audiences.Post("/:id/segments/preview", handlers.PreviewSegment)
	audiences.Get("/:id/automations", handlers.GetAutomations)
	audiences.Post("/:id/automations", handlers.CreateAutomation)
	audiences.Get("/:id/templates", handlers.GetEmailTemplates)
	audiences.Post("/:id/templates", handlers.CreateEmailTemplate)
	audiences.Post("/:id/senders", handlers.CreateSenderIdentity)

	app.Get("/contacts/:id", handlers.GetContact)

	automations := app.Group("/automations")
	automations.Get("/:id", handlers.GetAutomation)
	automations.Patch("/:id", handlers.UpdateAutomation)
	automations.Get("/:id/steps", handlers.GetAutomationSteps)
	automations.Post("/:id/steps", handlers.CreateStep)

	app.Patch("/steps/:id", handlers.UpdateStep)

	app.Get("/templates/:id", handlers.GetEmailTemplate)
	app.Delete("/templates/:id", handlers.DeleteEmailTemplate)
	app.Get("/senders/:id", handlers.GetSenderIdentity)

	app.Get("/health", handlers.HealthCheck)

	return app
}

func (a *API) Start(port int) error {
	app := a.App()

	return app.Listen(":" + strconv.Itoa(port))
}
