package routing

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/spec-kit/assignment-engine/internal/domain"
	"github.com/spec-kit/assignment-engine/internal/observability"
	"github.com/spec-kit/assignment-engine/internal/repository"
)

// State is the terminal state of one evaluation.
type State string

const (
	StateResolved  State = "resolved"
	StateExhausted State = "exhausted"
)

// Evaluation is the result of running the rule chain for a ticket.
type Evaluation struct {
	State  State
	Rule   *domain.AssignmentRule
	Agent  *domain.Agent
	Trace  []domain.RuleTrace
	Reason string
}

// Evaluator runs enabled rules in priority order until one selects an agent.
type Evaluator struct {
	rules      repository.RuleRepository
	agents     repository.AgentRepository
	strategies map[domain.RuleType]Strategy
	defaults   domain.ConfigDefaults
	logger     *zap.Logger
	metrics    *observability.Metrics
}

// EvaluatorDependencies bundles collaborators.
type EvaluatorDependencies struct {
	RuleRepo  repository.RuleRepository
	AgentRepo repository.AgentRepository
	RingStore RingPositionStore
	Defaults  domain.ConfigDefaults
	Logger    *zap.Logger
	Metrics   *observability.Metrics
}

// NewEvaluator wires the four built-in strategies.
func NewEvaluator(deps EvaluatorDependencies) *Evaluator {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Evaluator{
		rules:  deps.RuleRepo,
		agents: deps.AgentRepo,
		strategies: map[domain.RuleType]Strategy{
			domain.RuleTypeRoundRobin:      NewRoundRobin(deps.RingStore),
			domain.RuleTypeLoadBased:       LoadBased{},
			domain.RuleTypeDepartmentMatch: DepartmentMatch{},
			domain.RuleTypeSkillMatch:      SkillMatch{},
		},
		defaults: deps.Defaults,
		logger:   logger,
		metrics:  deps.Metrics,
	}
}

// Evaluate walks the rule chain. It returns an error only when the rule set cannot be
// loaded or ctx is done; per-rule failures count as non-matches.
func (e *Evaluator) Evaluate(ctx context.Context, ticket domain.Ticket) (*Evaluation, error) {
	rules, err := e.rules.ListEnabled(ctx)
	if err != nil {
		return nil, fmt.Errorf("list assignment rules: %w", err)
	}
	enabled := rules[:0:0]
	for _, rule := range rules {
		if rule.Enabled {
			enabled = append(enabled, rule)
		}
	}
	sort.SliceStable(enabled, func(i, j int) bool {
		return enabled[i].Priority < enabled[j].Priority
	})

	if len(enabled) == 0 {
		return &Evaluation{State: StateExhausted, Reason: domain.ReasonNoRules}, nil
	}

	eval := &Evaluation{}
	for i := range enabled {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rule := enabled[i]
		trace := domain.RuleTrace{
			RuleID:   rule.ID,
			RuleName: rule.Name,
			RuleType: rule.Type,
			Priority: rule.Priority,
		}
		agent, err := e.runRule(ctx, ticket, rule)
		if err != nil {
			trace.Error = err.Error()
		}
		if agent != nil {
			trace.Matched = true
			trace.Agent = agent
			eval.Trace = append(eval.Trace, trace)
			eval.State = StateResolved
			eval.Rule = &rule
			eval.Agent = agent
			return eval, nil
		}
		eval.Trace = append(eval.Trace, trace)
	}

	// A deadline hit inside the last rule is a timeout, not a miss.
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	eval.State = StateExhausted
	eval.Reason = domain.ReasonNoMatch
	return eval, nil
}

func (e *Evaluator) runRule(ctx context.Context, ticket domain.Ticket, rule domain.AssignmentRule) (*domain.Agent, error) {
	fields := []zap.Field{
		zap.String("rule_id", rule.ID),
		zap.String("rule_type", string(rule.Type)),
		zap.String("ticket_id", ticket.ID),
	}
	strategy, ok := e.strategies[rule.Type]
	if !ok {
		e.logger.Warn("skipping rule with unknown type", fields...)
		return nil, fmt.Errorf("unknown rule type %q", rule.Type)
	}

	cfg, err := domain.ParseRuleConfig(rule.Type, rule.Config, e.defaults)
	if err != nil {
		e.logger.Warn("invalid rule config, using defaults", append(fields, zap.Error(err))...)
	}

	pool, err := e.agents.ListActiveOnline(ctx, repository.AgentFilter{})
	if err != nil {
		e.logger.Warn("agent lookup failed, rule treated as no match", append(fields, zap.Error(err))...)
		e.metrics.RecordRuleFailure(string(rule.Type))
		return nil, err
	}

	agent, err := strategy.Select(ctx, ticket, pool, cfg)
	if err != nil {
		e.logger.Warn("rule strategy failed, rule treated as no match", append(fields, zap.Error(err))...)
		e.metrics.RecordRuleFailure(string(rule.Type))
		return nil, err
	}
	return agent, nil
}
