package routing

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/spec-kit/assignment-engine/internal/domain"
)

// Strategy picks zero or one agent from a candidate pool. Strategies never write state.
type Strategy interface {
	Select(ctx context.Context, ticket domain.Ticket, pool []domain.Agent, cfg domain.RuleConfig) (*domain.Agent, error)
}

// RoundRobin cycles through the pool ordered by agent creation time.
type RoundRobin struct {
	ring RingPositionStore
}

// NewRoundRobin builds the strategy on a ring position store.
func NewRoundRobin(ring RingPositionStore) *RoundRobin {
	return &RoundRobin{ring: ring}
}

func (s *RoundRobin) Select(ctx context.Context, _ domain.Ticket, pool []domain.Agent, _ domain.RuleConfig) (*domain.Agent, error) {
	if len(pool) == 0 {
		return nil, nil
	}
	ring := make([]domain.Agent, len(pool))
	copy(ring, pool)
	sort.SliceStable(ring, func(i, j int) bool {
		return ring[i].CreatedAt.Before(ring[j].CreatedAt)
	})

	lastID, ok, err := s.ring.LastAssigned(ctx, domain.RuleTypeRoundRobin)
	if err != nil {
		return nil, fmt.Errorf("read ring position: %w", err)
	}
	next := 0
	if ok {
		for i := range ring {
			if ring[i].ID == lastID {
				next = (i + 1) % len(ring)
				break
			}
		}
	}
	return &ring[next], nil
}

// LoadBased picks the least loaded agent under capacity, or the least loaded overall
// when every agent is saturated.
type LoadBased struct{}

func (LoadBased) Select(_ context.Context, _ domain.Ticket, pool []domain.Agent, cfg domain.RuleConfig) (*domain.Agent, error) {
	maxLoad := domain.DefaultMaxLoad
	if c, ok := cfg.(domain.LoadBasedConfig); ok && c.DefaultMaxLoad > 0 {
		maxLoad = c.DefaultMaxLoad
	}
	if agent := leastLoadedUnderCap(pool, maxLoad); agent != nil {
		return agent, nil
	}
	return leastLoaded(pool), nil
}

// DepartmentMatch prefers agents whose department equals the ticket category,
// ignoring case like SkillMatch does, and
// falls back to the whole pool, least loaded first in both cases.
type DepartmentMatch struct{}

func (DepartmentMatch) Select(_ context.Context, ticket domain.Ticket, pool []domain.Agent, cfg domain.RuleConfig) (*domain.Agent, error) {
	fallback := ""
	if c, ok := cfg.(domain.DepartmentMatchConfig); ok {
		fallback = c.DefaultCategory
	}
	category := ticket.CategoryOr(fallback)

	var matching []domain.Agent
	for _, agent := range pool {
		if strings.EqualFold(agent.Department, category) {
			matching = append(matching, agent)
		}
	}
	if len(matching) == 0 {
		return leastLoaded(pool), nil
	}
	return leastLoaded(matching), nil
}

// SkillMatch prefers agents tagged with the ticket category. Without any, it runs the
// capacity-filtered least-load pick over the whole pool, which may find no one.
type SkillMatch struct{}

func (SkillMatch) Select(_ context.Context, ticket domain.Ticket, pool []domain.Agent, cfg domain.RuleConfig) (*domain.Agent, error) {
	fallback := ""
	maxLoad := domain.DefaultMaxLoad
	if c, ok := cfg.(domain.SkillMatchConfig); ok {
		fallback = c.DefaultCategory
		if c.DefaultMaxLoad > 0 {
			maxLoad = c.DefaultMaxLoad
		}
	}
	category := ticket.CategoryOr(fallback)

	var skilled []domain.Agent
	for _, agent := range pool {
		if agent.HasSkill(category) {
			skilled = append(skilled, agent)
		}
	}
	if len(skilled) > 0 {
		return leastLoaded(skilled), nil
	}
	return leastLoadedUnderCap(pool, maxLoad), nil
}

// leastLoaded returns the first agent with the minimum CurrentLoad.
func leastLoaded(agents []domain.Agent) *domain.Agent {
	best := -1
	for i := range agents {
		if best < 0 || agents[i].CurrentLoad < agents[best].CurrentLoad {
			best = i
		}
	}
	if best < 0 {
		return nil
	}
	agent := agents[best]
	return &agent
}

func leastLoadedUnderCap(agents []domain.Agent, fallbackMax int) *domain.Agent {
	var eligible []domain.Agent
	for _, agent := range agents {
		if agent.CurrentLoad < agent.EffectiveMaxLoad(fallbackMax) {
			eligible = append(eligible, agent)
		}
	}
	return leastLoaded(eligible)
}
