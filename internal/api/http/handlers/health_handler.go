package handlers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sony/gobreaker/v2"

	"github.com/spec-kit/assignment-engine/internal/observability"
	"github.com/spec-kit/assignment-engine/internal/persistence"
)

// BreakerStater reports the agent directory circuit breaker state.
type BreakerStater interface {
	State() gobreaker.State
}

// HealthDependencies bundles what the health checks inspect. Nil entries are reported as disabled.
type HealthDependencies struct {
	ServiceName    string
	Version        string
	Postgres       *persistence.Postgres
	Redis          *persistence.Redis
	AgentDirectory BreakerStater
	Metrics        *observability.Metrics
}

// HealthHandler responds to liveness and readiness checks.
type HealthHandler struct {
	deps HealthDependencies
}

// NewHealthHandler returns a new handler instance.
func NewHealthHandler(deps HealthDependencies) *HealthHandler {
	return &HealthHandler{deps: deps}
}

type dependencyCheck struct {
	name    string
	enabled bool
	check   func(context.Context) error
}

// Live reports service liveness.
func (h *HealthHandler) Live(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":  "alive",
		"service": h.deps.ServiceName,
		"version": h.deps.Version,
	})
}

// Ready reports readiness: storage must answer and the agent directory breaker must not be open.
func (h *HealthHandler) Ready(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
	defer cancel()

	checks := []dependencyCheck{
		{name: "postgres", enabled: h.deps.Postgres.Enabled(), check: h.deps.Postgres.Ping},
		{name: "redis", enabled: h.deps.Redis.Enabled(), check: h.deps.Redis.Ping},
	}

	depStatus := fiber.Map{}
	ready := true
	for _, dep := range checks {
		switch {
		case !dep.enabled:
			depStatus[dep.name] = "disabled"
		case dep.check(ctx) != nil:
			depStatus[dep.name] = "unreachable"
			ready = false
		default:
			depStatus[dep.name] = "ok"
		}
	}
	if h.deps.AgentDirectory != nil {
		state := h.deps.AgentDirectory.State()
		depStatus["agent_directory"] = state.String()
		if state == gobreaker.StateOpen {
			ready = false
		}
	}

	if ready {
		return c.JSON(fiber.Map{
			"status":       "ready",
			"dependencies": depStatus,
		})
	}

	return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
		"error": fiber.Map{
			"code":    "DEPENDENCY_UNAVAILABLE",
			"message": "one or more dependencies unavailable",
			"details": depStatus,
		},
	})
}

// Metrics reports in-memory counters.
func (h *HealthHandler) Metrics(c *fiber.Ctx) error {
	return c.JSON(h.deps.Metrics.Snapshot())
}
