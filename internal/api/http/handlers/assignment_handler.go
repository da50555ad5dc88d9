package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/assignment-engine/internal/api/dto"
	"github.com/spec-kit/assignment-engine/internal/domain"
	"github.com/spec-kit/assignment-engine/internal/service"
	apperrors "github.com/spec-kit/assignment-engine/pkg/util/errorutil"
)

// AssignmentHandler exposes the rules engine over HTTP.
type AssignmentHandler struct {
	service *service.AssignmentService
}

// NewAssignmentHandler constructs handler.
func NewAssignmentHandler(assignmentService *service.AssignmentService) *AssignmentHandler {
	return &AssignmentHandler{service: assignmentService}
}

// Assign POST /api/v1/tickets/:id/assign.
func (h *AssignmentHandler) Assign(c *fiber.Ctx) error {
	ticketID := strings.TrimSpace(c.Params("id"))
	if ticketID == "" {
		return apperrors.NewValidationError("ticket id required", nil)
	}
	result, err := h.service.Assign(c.UserContext(), ticketID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewAssignmentResponse(result)})
}

// Preview POST /api/v1/assignments/preview.
func (h *AssignmentHandler) Preview(c *fiber.Ctx) error {
	var req dto.PreviewRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	ticketID := strings.TrimSpace(req.TicketID)
	if (ticketID == "") == (req.Ticket == nil) {
		return apperrors.NewValidationError("exactly one of ticket_id or ticket required", nil)
	}

	var (
		result *domain.PreviewResult
		err    error
	)
	if ticketID != "" {
		result, err = h.service.PreviewTicket(c.UserContext(), ticketID)
	} else {
		result, err = h.service.Preview(c.UserContext(), domain.Ticket{
			ID:       req.Ticket.ID,
			Category: strings.TrimSpace(req.Ticket.Category),
			Status:   domain.TicketStatusOpen,
		})
	}
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewPreviewResponse(result)})
}

// ListRules GET /api/v1/assignments/rules.
func (h *AssignmentHandler) ListRules(c *fiber.Ctx) error {
	rules, err := h.service.ListRules(c.UserContext())
	if err != nil {
		return err
	}
	items := make([]dto.RuleResponse, 0, len(rules))
	for _, rule := range rules {
		items = append(items, dto.NewRuleResponse(rule))
	}
	return c.JSON(fiber.Map{"data": items})
}
