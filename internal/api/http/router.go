package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/assignment-engine/internal/api/http/handlers"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health     *handlers.HealthHandler
	Assignment *handlers.AssignmentHandler
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	app.Get("/metrics", cfg.Health.Metrics)

	api := app.Group("/api/v1")
	api.Post("/tickets/:id/assign", cfg.Assignment.Assign)
	api.Post("/assignments/preview", cfg.Assignment.Preview)
	api.Get("/assignments/rules", cfg.Assignment.ListRules)
}
