package service

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/assignment-engine/internal/domain"
	"github.com/spec-kit/assignment-engine/internal/events"
	"github.com/spec-kit/assignment-engine/internal/observability"
	"github.com/spec-kit/assignment-engine/internal/repository"
	"github.com/spec-kit/assignment-engine/internal/routing"
	apperrors "github.com/spec-kit/assignment-engine/pkg/util/errorutil"
)

// Assign outcome labels used for metrics.
const (
	outcomeAssigned        = "assigned"
	outcomeAlreadyAssigned = "already_assigned"
	outcomeNoRules         = "no_rules"
	outcomeNoMatch         = "no_match"
)

// AssignmentService claims tickets for the agent chosen by the rule chain.
type AssignmentService struct {
	tickets    repository.TicketRepository
	rules      repository.RuleRepository
	history    repository.AssignmentHistoryRepository
	activity   repository.ActivityRepository
	ring       routing.RingPositionStore
	evaluator  *routing.Evaluator
	dispatcher events.Dispatcher
	logger     *zap.Logger
	metrics    *observability.Metrics
	engineName string
	newBackOff func() backoff.BackOff
	now        func() time.Time
}

// AssignmentDependencies bundles repositories and tuning.
type AssignmentDependencies struct {
	TicketRepo   repository.TicketRepository
	RuleRepo     repository.RuleRepository
	AgentRepo    repository.AgentRepository
	HistoryRepo  repository.AssignmentHistoryRepository
	ActivityRepo repository.ActivityRepository
	// RingStore defaults to the history-backed store.
	RingStore  routing.RingPositionStore
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
	Metrics    *observability.Metrics
	EngineName string
	Defaults   domain.ConfigDefaults
	// WriteRetryMax bounds retries of post-claim writes.
	WriteRetryMax int
	// RetryBackOff overrides the post-claim retry schedule.
	RetryBackOff func() backoff.BackOff
}

// NewAssignmentService creates the service.
func NewAssignmentService(deps AssignmentDependencies) *AssignmentService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	ring := deps.RingStore
	if ring == nil {
		ring = routing.NewHistoryRingStore(deps.HistoryRepo)
	}
	retryMax := deps.WriteRetryMax
	if retryMax <= 0 {
		retryMax = 5
	}
	newBackOff := deps.RetryBackOff
	if newBackOff == nil {
		newBackOff = func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 50 * time.Millisecond
			b.MaxElapsedTime = 10 * time.Second
			return b
		}
	}
	engineName := deps.EngineName
	if engineName == "" {
		engineName = "Assignment Rules Engine"
	}
	return &AssignmentService{
		tickets:  deps.TicketRepo,
		rules:    deps.RuleRepo,
		history:  deps.HistoryRepo,
		activity: deps.ActivityRepo,
		ring:     ring,
		evaluator: routing.NewEvaluator(routing.EvaluatorDependencies{
			RuleRepo:  deps.RuleRepo,
			AgentRepo: deps.AgentRepo,
			RingStore: ring,
			Defaults:  deps.Defaults,
			Logger:    logger,
			Metrics:   deps.Metrics,
		}),
		dispatcher: deps.Dispatcher,
		logger:     logger,
		metrics:    deps.Metrics,
		engineName: engineName,
		newBackOff: func() backoff.BackOff {
			return backoff.WithMaxRetries(newBackOff(), uint64(retryMax))
		},
		now: time.Now,
	}
}

// Assign routes an unassigned ticket to an agent. Business outcomes such as an
// existing assignee or no matching rule are reported in the result, not as errors.
func (s *AssignmentService) Assign(ctx context.Context, ticketID string) (*domain.AssignmentResult, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
		}
		return nil, apperrors.MapError(err)
	}
	if ticket.Assigned() {
		s.metrics.RecordAssignment(outcomeAlreadyAssigned, "")
		return &domain.AssignmentResult{Reason: domain.ReasonAlreadyAssigned}, nil
	}

	eval, err := s.evaluator.Evaluate(ctx, *ticket)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	if eval.State != routing.StateResolved {
		outcome := outcomeNoMatch
		if eval.Reason == domain.ReasonNoRules {
			outcome = outcomeNoRules
		}
		s.metrics.RecordAssignment(outcome, "")
		s.logger.Info("ticket not assigned",
			zap.String("ticket_id", ticket.ID),
			zap.String("reason", eval.Reason),
			zap.Int("rules_evaluated", len(eval.Trace)))
		s.publish(ctx, events.EventAssignmentUnmatched, ticket.ID, events.AssignmentUnmatchedPayload{
			Reason:         eval.Reason,
			RulesEvaluated: len(eval.Trace),
		})
		return &domain.AssignmentResult{Reason: eval.Reason}, nil
	}

	// past this point the claim commits us to finishing the bookkeeping
	if err := ctx.Err(); err != nil {
		return nil, apperrors.MapError(err)
	}

	rule, agent := eval.Rule, eval.Agent
	entry := &domain.AssignmentHistory{
		ID:              uuid.NewString(),
		RuleID:          rule.ID,
		RuleType:        rule.Type,
		TicketID:        ticket.ID,
		AssignedAgentID: agent.ID,
		AssignedAt:      s.now(),
		Metadata: map[string]any{
			"rule_name":       rule.Name,
			"rule_priority":   rule.Priority,
			"agent_load":      agent.CurrentLoad + 1,
			"ticket_category": ticket.Category,
		},
	}

	claimed, historyWritten, err := s.claim(ctx, ticket.ID, agent.ID, entry)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	if !claimed {
		s.metrics.RecordAssignment(outcomeAlreadyAssigned, "")
		return &domain.AssignmentResult{Reason: domain.ReasonAlreadyAssigned}, nil
	}

	writeCtx := context.WithoutCancel(ctx)
	if !historyWritten {
		s.retryWrite(writeCtx, "append assignment history", ticket.ID, func() error {
			return s.history.Append(writeCtx, entry)
		})
	}
	record := &domain.ActivityRecord{
		ID:              uuid.NewString(),
		TicketID:        ticket.ID,
		ActivityType:    domain.ActivityTypeAssigned,
		NewValue:        agent.ID,
		PerformedBy:     domain.PerformedBySystem,
		PerformedByName: s.engineName,
		CreatedAt:       entry.AssignedAt,
	}
	s.retryWrite(writeCtx, "append activity record", ticket.ID, func() error {
		return s.activity.Append(writeCtx, record)
	})
	if err := s.ring.Advance(writeCtx, rule.Type, agent.ID); err != nil {
		s.logger.Warn("ring position not recorded",
			zap.String("ticket_id", ticket.ID),
			zap.String("agent_id", agent.ID),
			zap.Error(err))
	}

	s.metrics.RecordAssignment(outcomeAssigned, string(rule.Type))
	s.logger.Info("ticket assigned",
		zap.String("ticket_id", ticket.ID),
		zap.String("agent_id", agent.ID),
		zap.String("rule_id", rule.ID),
		zap.String("rule_type", string(rule.Type)))
	s.publish(writeCtx, events.EventTicketAssigned, ticket.ID, events.TicketAssignedPayload{
		AgentID:   agent.ID,
		AgentName: agent.Name,
		RuleID:    rule.ID,
		RuleName:  rule.Name,
		RuleType:  rule.Type,
		AgentLoad: agent.CurrentLoad + 1,
	})

	return &domain.AssignmentResult{
		Assigned:  true,
		AgentID:   agent.ID,
		AgentName: agent.Name,
		RuleID:    rule.ID,
		RuleName:  rule.Name,
		RuleType:  rule.Type,
	}, nil
}

// Preview runs the rule chain for a ticket snapshot without writing anything.
func (s *AssignmentService) Preview(ctx context.Context, ticket domain.Ticket) (*domain.PreviewResult, error) {
	eval, err := s.evaluator.Evaluate(ctx, ticket)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	result := &domain.PreviewResult{Results: eval.Trace}
	if result.Results == nil {
		result.Results = []domain.RuleTrace{}
	}
	if eval.State == routing.StateResolved {
		first := eval.Trace[len(eval.Trace)-1]
		result.FirstMatch = &first
	} else {
		result.Reason = eval.Reason
	}
	return result, nil
}

// PreviewTicket loads a stored ticket and previews it.
func (s *AssignmentService) PreviewTicket(ctx context.Context, ticketID string) (*domain.PreviewResult, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
		}
		return nil, apperrors.MapError(err)
	}
	return s.Preview(ctx, *ticket)
}

// ListRules returns the enabled rules in evaluation order.
func (s *AssignmentService) ListRules(ctx context.Context) ([]domain.AssignmentRule, error) {
	rules, err := s.rules.ListEnabled(ctx)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return rules, nil
}

// BatchItem is the outcome of one ticket in AssignUnassigned.
type BatchItem struct {
	TicketID string
	Result   *domain.AssignmentResult
	Err      error
}

// AssignUnassigned runs Assign over up to limit unassigned open tickets. A failure on
// one ticket is recorded in its item and does not stop the batch.
func (s *AssignmentService) AssignUnassigned(ctx context.Context, limit int) ([]BatchItem, error) {
	tickets, err := s.tickets.ListUnassigned(ctx, limit)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	items := make([]BatchItem, 0, len(tickets))
	for _, ticket := range tickets {
		if err := ctx.Err(); err != nil {
			return items, apperrors.MapError(err)
		}
		result, err := s.Assign(ctx, ticket.ID)
		if err != nil {
			s.logger.Warn("batch assignment failed", zap.String("ticket_id", ticket.ID), zap.Error(err))
		}
		items = append(items, BatchItem{TicketID: ticket.ID, Result: result, Err: err})
	}
	return items, nil
}

// claim reports whether this call won the ticket and whether the history row was
// written in the same step.
func (s *AssignmentService) claim(ctx context.Context, ticketID, agentID string, entry *domain.AssignmentHistory) (bool, bool, error) {
	if claimer, ok := s.tickets.(repository.HistoryClaimer); ok {
		claimed, err := claimer.ClaimWithHistory(ctx, ticketID, agentID, entry)
		return claimed, claimed, err
	}
	claimed, err := s.tickets.Claim(ctx, ticketID, agentID)
	return claimed, false, err
}

func (s *AssignmentService) retryWrite(ctx context.Context, op, ticketID string, fn func() error) {
	attempt := 0
	err := backoff.Retry(func() error {
		attempt++
		return fn()
	}, backoff.WithContext(s.newBackOff(), ctx))
	if err != nil {
		s.logger.Error("post-claim write failed",
			zap.String("op", op),
			zap.String("ticket_id", ticketID),
			zap.Int("attempts", attempt),
			zap.Error(err))
	}
}

func (s *AssignmentService) publish(ctx context.Context, eventType events.EventType, ticketID string, payload any) {
	if s.dispatcher == nil {
		return
	}
	event := events.Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		TicketID:  ticketID,
		Actor:     events.Actor{Type: domain.PerformedBySystem, Name: s.engineName},
		Timestamp: s.now(),
		Payload:   payload,
	}
	if err := s.dispatcher.Publish(ctx, event); err != nil {
		s.logger.Warn("event handlers failed",
			zap.String("event_type", string(eventType)),
			zap.String("ticket_id", ticketID),
			zap.Error(err))
	}
}
