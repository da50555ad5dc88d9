package http

import (
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/spec-kit/assignment-engine/internal/api/http/handlers"
	"github.com/spec-kit/assignment-engine/internal/domain"
	"github.com/spec-kit/assignment-engine/internal/observability"
	"github.com/spec-kit/assignment-engine/internal/repository"
	"github.com/spec-kit/assignment-engine/internal/service"
)

type stubBreaker struct{ state gobreaker.State }

func (s *stubBreaker) State() gobreaker.State { return s.state }

func newTestApp(t *testing.T) (*fiber.App, *repository.MemoryStore) {
	t.Helper()
	logger := zaptest.NewLogger(t)
	metrics := observability.NewMetrics()
	store := repository.NewMemoryStore()

	store.PutAgent(domain.Agent{
		ID: "A", Name: "Ada", IsActive: true, Presence: domain.PresenceOnline,
		Department: "billing", CreatedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	})
	store.PutRule(domain.AssignmentRule{ID: "dept", Name: "By department", Type: domain.RuleTypeDepartmentMatch, Priority: 1, Enabled: true})
	store.PutTicket(domain.Ticket{ID: "t1", Category: "billing", Status: domain.TicketStatusOpen})

	svc := service.NewAssignmentService(service.AssignmentDependencies{
		TicketRepo:   store.Tickets(),
		RuleRepo:     store.Rules(),
		AgentRepo:    store.Agents(),
		HistoryRepo:  store.AssignmentHistory(),
		ActivityRepo: store.Activity(),
		Logger:       logger,
		Metrics:      metrics,
		Defaults:     domain.ConfigDefaults{Category: "uncategorized"},
	})

	breaker := &stubBreaker{state: gobreaker.StateClosed}
	app := fiber.New()
	RegisterMiddlewares(app, logger, metrics, 5*time.Second)
	RegisterRoutes(app, RouteConfig{
		Health: handlers.NewHealthHandler(handlers.HealthDependencies{
			ServiceName:    "assignment-engine",
			Version:        "test",
			AgentDirectory: breaker,
			Metrics:        metrics,
		}),
		Assignment: handlers.NewAssignmentHandler(svc),
	})
	return app, store
}

func doRequest(t *testing.T, app *fiber.App, method, path, body string) (int, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded), string(raw))
	return resp.StatusCode, decoded
}

func errorCode(t *testing.T, body map[string]any) string {
	t.Helper()
	errBody, ok := body["error"].(map[string]any)
	require.True(t, ok, "missing error envelope: %v", body)
	code, _ := errBody["code"].(string)
	return code
}

func TestAssignEndpoint(t *testing.T) {
	app, store := newTestApp(t)

	status, body := doRequest(t, app, fiber.MethodPost, "/api/v1/tickets/t1/assign", "")
	require.Equal(t, fiber.StatusOK, status)
	data := body["data"].(map[string]any)
	assert.Equal(t, true, data["assigned"])
	assert.Equal(t, "A", data["agent_id"])
	assert.Equal(t, "dept", data["rule_id"])
	assert.Len(t, store.History(), 1)

	status, body = doRequest(t, app, fiber.MethodPost, "/api/v1/tickets/t1/assign", "")
	require.Equal(t, fiber.StatusOK, status)
	data = body["data"].(map[string]any)
	assert.Equal(t, false, data["assigned"])
	assert.Equal(t, domain.ReasonAlreadyAssigned, data["reason"])
}

func TestAssignEndpointMissingTicket(t *testing.T) {
	app, _ := newTestApp(t)
	status, body := doRequest(t, app, fiber.MethodPost, "/api/v1/tickets/nope/assign", "")
	assert.Equal(t, fiber.StatusNotFound, status)
	assert.Equal(t, "NOT_FOUND", errorCode(t, body))
}

func TestPreviewEndpointWithSnapshot(t *testing.T) {
	app, store := newTestApp(t)
	status, body := doRequest(t, app, fiber.MethodPost, "/api/v1/assignments/preview", `{"ticket":{"id":"draft","category":"billing"}}`)
	require.Equal(t, fiber.StatusOK, status)

	data := body["data"].(map[string]any)
	results := data["results"].([]any)
	require.Len(t, results, 1)
	first := data["first_match"].(map[string]any)
	assert.Equal(t, "dept", first["rule_id"])
	assert.Equal(t, "A", first["agent"].(map[string]any)["id"])
	assert.Empty(t, store.History())
}

func TestPreviewEndpointWithStoredTicket(t *testing.T) {
	app, _ := newTestApp(t)
	status, body := doRequest(t, app, fiber.MethodPost, "/api/v1/assignments/preview", `{"ticket_id":"t1"}`)
	require.Equal(t, fiber.StatusOK, status)
	assert.NotNil(t, body["data"].(map[string]any)["first_match"])
}

func TestPreviewEndpointValidation(t *testing.T) {
	app, _ := newTestApp(t)
	for _, payload := range []string{
		`{}`,
		`{"ticket_id":"t1","ticket":{"category":"billing"}}`,
	} {
		status, body := doRequest(t, app, fiber.MethodPost, "/api/v1/assignments/preview", payload)
		assert.Equal(t, fiber.StatusBadRequest, status, payload)
		assert.Equal(t, "VALIDATION_FAILED", errorCode(t, body))
	}
}

func TestListRulesEndpoint(t *testing.T) {
	app, _ := newTestApp(t)
	status, body := doRequest(t, app, fiber.MethodGet, "/api/v1/assignments/rules", "")
	require.Equal(t, fiber.StatusOK, status)
	rules := body["data"].([]any)
	require.Len(t, rules, 1)
	rule := rules[0].(map[string]any)
	assert.Equal(t, "department_match", rule["rule_type"])
	assert.Equal(t, true, rule["supported"])
}

func TestHealthEndpoints(t *testing.T) {
	app, _ := newTestApp(t)

	status, body := doRequest(t, app, fiber.MethodGet, "/health/live", "")
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "alive", body["status"])

	status, body = doRequest(t, app, fiber.MethodGet, "/health/ready", "")
	assert.Equal(t, fiber.StatusOK, status)
	deps := body["dependencies"].(map[string]any)
	assert.Equal(t, "disabled", deps["postgres"])
	assert.Equal(t, "disabled", deps["redis"])
	assert.Equal(t, "closed", deps["agent_directory"])
}

func TestMetricsEndpointCountsRequests(t *testing.T) {
	app, _ := newTestApp(t)
	doRequest(t, app, fiber.MethodPost, "/api/v1/tickets/t1/assign", "")

	status, body := doRequest(t, app, fiber.MethodGet, "/metrics", "")
	require.Equal(t, fiber.StatusOK, status)
	assignments := body["assignments"].(map[string]any)
	assert.EqualValues(t, 1, assignments["assigned|department_match"])
}

func TestUnknownRouteUsesErrorEnvelope(t *testing.T) {
	app, _ := newTestApp(t)
	status, body := doRequest(t, app, fiber.MethodGet, "/api/v1/unknown", "")
	assert.Equal(t, fiber.StatusNotFound, status)
	assert.Equal(t, "HTTP_ERROR", errorCode(t, body))
}

func TestResponsesCarryRequestID(t *testing.T) {
	app, _ := newTestApp(t)
	resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/health/live", nil), -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.NotEmpty(t, resp.Header.Get(fiber.HeaderXRequestID))
}
