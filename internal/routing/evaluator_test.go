package routing

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"

	"github.com/spec-kit/assignment-engine/internal/domain"
	"github.com/spec-kit/assignment-engine/internal/observability"
	"github.com/spec-kit/assignment-engine/internal/repository"
)

type staticRules struct {
	rules []domain.AssignmentRule
	err   error
}

func (s staticRules) ListEnabled(context.Context) ([]domain.AssignmentRule, error) {
	return s.rules, s.err
}

type failingAgents struct{ err error }

func (f failingAgents) ListActiveOnline(context.Context, repository.AgentFilter) ([]domain.Agent, error) {
	return nil, f.err
}

// failFirstAgents fails the first lookup and then delegates.
type failFirstAgents struct {
	inner repository.AgentRepository
	calls int
}

func (f *failFirstAgents) ListActiveOnline(ctx context.Context, filter repository.AgentFilter) ([]domain.Agent, error) {
	f.calls++
	if f.calls == 1 {
		return nil, errors.New("directory timeout")
	}
	return f.inner.ListActiveOnline(ctx, filter)
}

// cancellingAgents cancels the caller's context and fails the lookup, like a
// directory call that outlives the request deadline.
type cancellingAgents struct{ cancel context.CancelFunc }

func (c cancellingAgents) ListActiveOnline(ctx context.Context, _ repository.AgentFilter) ([]domain.Agent, error) {
	c.cancel()
	return nil, ctx.Err()
}

func rule(id string, ruleType domain.RuleType, priority int) domain.AssignmentRule {
	return domain.AssignmentRule{ID: id, Name: "rule " + id, Type: ruleType, Priority: priority, Enabled: true}
}

func seededAgents(t *testing.T) *repository.MemoryStore {
	t.Helper()
	store := repository.NewMemoryStore()
	a, b := agent("A", 1, 0), agent("B", 2, 0)
	a.Department = "sales"
	b.Department = "billing"
	store.PutAgent(a)
	store.PutAgent(b)
	return store
}

func newTestEvaluator(t *testing.T, rules repository.RuleRepository, agents repository.AgentRepository, logger *zap.Logger) *Evaluator {
	t.Helper()
	if logger == nil {
		logger = zaptest.NewLogger(t)
	}
	return NewEvaluator(EvaluatorDependencies{
		RuleRepo:  rules,
		AgentRepo: agents,
		RingStore: NewMemoryRingStore(),
		Defaults:  domain.ConfigDefaults{Category: "uncategorized"},
		Logger:    logger,
		Metrics:   observability.NewMetrics(),
	})
}

func TestEvaluateOrdersByPriority(t *testing.T) {
	rules := staticRules{rules: []domain.AssignmentRule{
		rule("p2", domain.RuleTypeRoundRobin, 2),
		rule("p1", domain.RuleTypeDepartmentMatch, 1),
		rule("p3", domain.RuleTypeLoadBased, 3),
	}}
	eval, err := newTestEvaluator(t, rules, seededAgents(t).Agents(), nil).
		Evaluate(context.Background(), domain.Ticket{ID: "t1", Category: "billing"})
	require.NoError(t, err)

	assert.Equal(t, StateResolved, eval.State)
	assert.Equal(t, "p1", eval.Rule.ID)
	assert.Equal(t, "B", eval.Agent.ID)
	require.Len(t, eval.Trace, 1)
	assert.True(t, eval.Trace[0].Matched)
}

func TestEvaluateStableOnPriorityTies(t *testing.T) {
	rules := staticRules{rules: []domain.AssignmentRule{
		rule("first", domain.RuleTypeDepartmentMatch, 1),
		rule("second", domain.RuleTypeRoundRobin, 1),
	}}
	eval, err := newTestEvaluator(t, rules, seededAgents(t).Agents(), nil).
		Evaluate(context.Background(), domain.Ticket{ID: "t1"})
	require.NoError(t, err)
	assert.Equal(t, "first", eval.Rule.ID)
}

func TestEvaluateNoRules(t *testing.T) {
	eval, err := newTestEvaluator(t, staticRules{}, seededAgents(t).Agents(), nil).
		Evaluate(context.Background(), domain.Ticket{ID: "t1"})
	require.NoError(t, err)
	assert.Equal(t, StateExhausted, eval.State)
	assert.Equal(t, domain.ReasonNoRules, eval.Reason)
	assert.Empty(t, eval.Trace)
}

func TestEvaluateSkipsDisabledRules(t *testing.T) {
	disabled := rule("off", domain.RuleTypeRoundRobin, 1)
	disabled.Enabled = false
	eval, err := newTestEvaluator(t, staticRules{rules: []domain.AssignmentRule{disabled}}, seededAgents(t).Agents(), nil).
		Evaluate(context.Background(), domain.Ticket{ID: "t1"})
	require.NoError(t, err)
	assert.Equal(t, domain.ReasonNoRules, eval.Reason)
}

func TestEvaluateUnknownRuleTypeIsSkipped(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	rules := staticRules{rules: []domain.AssignmentRule{
		rule("mystery", domain.RuleType("weighted_random"), 1),
		rule("rr", domain.RuleTypeRoundRobin, 2),
	}}
	eval, err := newTestEvaluator(t, rules, seededAgents(t).Agents(), zap.New(core)).
		Evaluate(context.Background(), domain.Ticket{ID: "t1"})
	require.NoError(t, err)

	assert.Equal(t, StateResolved, eval.State)
	assert.Equal(t, "rr", eval.Rule.ID)
	assert.Equal(t, "A", eval.Agent.ID)
	require.Len(t, eval.Trace, 2)
	assert.False(t, eval.Trace[0].Matched)
	assert.NotEmpty(t, eval.Trace[0].Error)
	assert.Equal(t, 1, logs.FilterMessage("skipping rule with unknown type").Len())
}

func TestEvaluateInvalidConfigUsesDefaults(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	broken := rule("dept", domain.RuleTypeDepartmentMatch, 1)
	broken.Config = json.RawMessage(`{"default_category":`)

	eval, err := newTestEvaluator(t, staticRules{rules: []domain.AssignmentRule{broken}}, seededAgents(t).Agents(), zap.New(core)).
		Evaluate(context.Background(), domain.Ticket{ID: "t1", Category: "billing"})
	require.NoError(t, err)
	assert.Equal(t, "B", eval.Agent.ID)
	assert.Equal(t, 1, logs.FilterMessage("invalid rule config, using defaults").Len())
}

func TestEvaluateAgentLookupFailureMovesToNextRule(t *testing.T) {
	agents := &failFirstAgents{inner: seededAgents(t).Agents()}
	rules := staticRules{rules: []domain.AssignmentRule{
		rule("dept", domain.RuleTypeDepartmentMatch, 1),
		rule("load", domain.RuleTypeLoadBased, 2),
	}}
	ev := newTestEvaluator(t, rules, agents, nil)
	eval, err := ev.Evaluate(context.Background(), domain.Ticket{ID: "t1", Category: "billing"})
	require.NoError(t, err)

	assert.Equal(t, "load", eval.Rule.ID)
	require.Len(t, eval.Trace, 2)
	assert.Equal(t, "directory timeout", eval.Trace[0].Error)
	assert.Equal(t, int64(1), ev.metrics.Snapshot().RuleFailures[string(domain.RuleTypeDepartmentMatch)])
}

func TestEvaluateEveryRuleFailingIsNoMatch(t *testing.T) {
	rules := staticRules{rules: []domain.AssignmentRule{
		rule("rr", domain.RuleTypeRoundRobin, 1),
		rule("load", domain.RuleTypeLoadBased, 2),
	}}
	eval, err := newTestEvaluator(t, rules, failingAgents{err: errors.New("down")}, nil).
		Evaluate(context.Background(), domain.Ticket{ID: "t1"})
	require.NoError(t, err)
	assert.Equal(t, StateExhausted, eval.State)
	assert.Equal(t, domain.ReasonNoMatch, eval.Reason)
	assert.Len(t, eval.Trace, 2)
}

func TestEvaluateEmptyPoolIsNoMatch(t *testing.T) {
	rules := staticRules{rules: []domain.AssignmentRule{rule("rr", domain.RuleTypeRoundRobin, 1)}}
	eval, err := newTestEvaluator(t, rules, repository.NewMemoryStore().Agents(), nil).
		Evaluate(context.Background(), domain.Ticket{ID: "t1"})
	require.NoError(t, err)
	assert.Equal(t, domain.ReasonNoMatch, eval.Reason)
}

func TestEvaluateRuleLoadFailureIsError(t *testing.T) {
	_, err := newTestEvaluator(t, staticRules{err: errors.New("db down")}, seededAgents(t).Agents(), nil).
		Evaluate(context.Background(), domain.Ticket{ID: "t1"})
	require.Error(t, err)
}

func TestEvaluateHonoursCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	rules := staticRules{rules: []domain.AssignmentRule{rule("rr", domain.RuleTypeRoundRobin, 1)}}
	_, err := newTestEvaluator(t, rules, seededAgents(t).Agents(), nil).Evaluate(ctx, domain.Ticket{ID: "t1"})
	require.ErrorIs(t, err, context.Canceled)
}

func TestEvaluateCancelledDuringLastRuleIsNotNoMatch(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	rules := staticRules{rules: []domain.AssignmentRule{rule("lb", domain.RuleTypeLoadBased, 1)}}

	eval, err := newTestEvaluator(t, rules, cancellingAgents{cancel: cancel}, nil).Evaluate(ctx, domain.Ticket{ID: "t1"})
	require.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, eval)
}
