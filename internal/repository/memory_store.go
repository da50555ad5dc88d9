package repository

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/spec-kit/assignment-engine/internal/domain"
)

// MemoryStore is a process-local store backing every repository interface.
// It is used when no database is configured and as the store in tests.
type MemoryStore struct {
	mu         sync.RWMutex
	rules      []domain.AssignmentRule
	agents     []domain.Agent
	tickets    map[string]*domain.Ticket
	ticketSeq  []string
	history    []domain.AssignmentHistory
	activities []domain.ActivityRecord
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{tickets: make(map[string]*domain.Ticket)}
}

// PutRule adds or replaces a rule by ID, keeping its original position on replace.
func (m *MemoryStore) PutRule(rule domain.AssignmentRule) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.rules {
		if m.rules[i].ID == rule.ID {
			m.rules[i] = rule
			return
		}
	}
	m.rules = append(m.rules, rule)
}

// PutAgent adds or replaces an agent by ID.
func (m *MemoryStore) PutAgent(agent domain.Agent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	agent.Skills = append([]string(nil), agent.Skills...)
	for i := range m.agents {
		if m.agents[i].ID == agent.ID {
			m.agents[i] = agent
			return
		}
	}
	m.agents = append(m.agents, agent)
}

// UpdateAgent applies fn to the stored agent. It reports whether the agent exists.
func (m *MemoryStore) UpdateAgent(id string, fn func(*domain.Agent)) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.agents {
		if m.agents[i].ID == id {
			fn(&m.agents[i])
			return true
		}
	}
	return false
}

// PutTicket adds or replaces a ticket.
func (m *MemoryStore) PutTicket(ticket domain.Ticket) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tickets[ticket.ID]; !ok {
		m.ticketSeq = append(m.ticketSeq, ticket.ID)
	}
	if ticket.CreatedAt.IsZero() {
		ticket.CreatedAt = time.Now()
	}
	m.tickets[ticket.ID] = &ticket
}

// History returns a copy of all assignment history entries in append order.
func (m *MemoryStore) History() []domain.AssignmentHistory {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]domain.AssignmentHistory(nil), m.history...)
}

// Activities returns a copy of all activity records in append order.
func (m *MemoryStore) Activities() []domain.ActivityRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]domain.ActivityRecord(nil), m.activities...)
}

// Rules exposes the store as a RuleRepository.
func (m *MemoryStore) Rules() RuleRepository { return memoryRules{m} }

// Agents exposes the store as an AgentRepository.
func (m *MemoryStore) Agents() AgentRepository { return memoryAgents{m} }

// Tickets exposes the store as a TicketRepository that also implements HistoryClaimer.
func (m *MemoryStore) Tickets() TicketRepository { return memoryTickets{m} }

// AssignmentHistory exposes the store as an AssignmentHistoryRepository.
func (m *MemoryStore) AssignmentHistory() AssignmentHistoryRepository { return memoryHistory{m} }

// Activity exposes the store as an ActivityRepository.
func (m *MemoryStore) Activity() ActivityRepository { return memoryActivity{m} }

type memoryRules struct{ m *MemoryStore }

func (r memoryRules) ListEnabled(ctx context.Context) ([]domain.AssignmentRule, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()
	var result []domain.AssignmentRule
	for _, rule := range r.m.rules {
		if rule.Enabled {
			result = append(result, rule)
		}
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Priority < result[j].Priority
	})
	return result, nil
}

type memoryAgents struct{ m *MemoryStore }

func (r memoryAgents) ListActiveOnline(ctx context.Context, filter AgentFilter) ([]domain.Agent, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()

	load := make(map[string]int)
	for _, ticket := range r.m.tickets {
		if ticket.Assigned() && ticket.Status.CountsTowardLoad() {
			load[*ticket.AssigneeID]++
		}
	}

	result := []domain.Agent{}
	for _, agent := range r.m.agents {
		if !agent.IsActive || agent.Presence != domain.PresenceOnline {
			continue
		}
		if filter.Department != nil && !strings.EqualFold(agent.Department, *filter.Department) {
			continue
		}
		agent.Skills = append([]string(nil), agent.Skills...)
		agent.CurrentLoad = load[agent.ID]
		result = append(result, agent)
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	if filter.Limit > 0 && len(result) > filter.Limit {
		result = result[:filter.Limit]
	}
	return result, nil
}

type memoryTickets struct{ m *MemoryStore }

func (r memoryTickets) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()
	ticket, ok := r.m.tickets[id]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *ticket
	if ticket.AssigneeID != nil {
		assignee := *ticket.AssigneeID
		copied.AssigneeID = &assignee
	}
	return &copied, nil
}

func (r memoryTickets) Claim(ctx context.Context, ticketID, agentID string) (bool, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	return r.m.claimLocked(ticketID, agentID), nil
}

func (r memoryTickets) ClaimWithHistory(ctx context.Context, ticketID, agentID string, entry *domain.AssignmentHistory) (bool, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if !r.m.claimLocked(ticketID, agentID) {
		return false, nil
	}
	r.m.appendHistoryLocked(entry)
	return true, nil
}

func (r memoryTickets) ListUnassigned(ctx context.Context, limit int) ([]domain.Ticket, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()
	var result []domain.Ticket
	for _, id := range r.m.ticketSeq {
		ticket := r.m.tickets[id]
		if ticket.Assigned() || !ticket.Status.CountsTowardLoad() {
			continue
		}
		result = append(result, *ticket)
		if limit > 0 && len(result) == limit {
			break
		}
	}
	return result, nil
}

func (m *MemoryStore) claimLocked(ticketID, agentID string) bool {
	ticket, ok := m.tickets[ticketID]
	if !ok || ticket.Assigned() {
		return false
	}
	assignee := agentID
	ticket.AssigneeID = &assignee
	ticket.UpdatedAt = time.Now()
	return true
}

func (m *MemoryStore) appendHistoryLocked(entry *domain.AssignmentHistory) {
	for _, existing := range m.history {
		if entry.ID != "" && existing.ID == entry.ID {
			return
		}
	}
	if entry.AssignedAt.IsZero() {
		entry.AssignedAt = time.Now()
	}
	m.history = append(m.history, *entry)
}

type memoryHistory struct{ m *MemoryStore }

func (r memoryHistory) Append(ctx context.Context, entry *domain.AssignmentHistory) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	r.m.appendHistoryLocked(entry)
	return nil
}

func (r memoryHistory) Latest(ctx context.Context, ruleType domain.RuleType) (*domain.AssignmentHistory, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()
	for i := len(r.m.history) - 1; i >= 0; i-- {
		if r.m.history[i].RuleType == ruleType {
			entry := r.m.history[i]
			return &entry, nil
		}
	}
	return nil, ErrNotFound
}

type memoryActivity struct{ m *MemoryStore }

func (r memoryActivity) Append(ctx context.Context, record *domain.ActivityRecord) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now()
	}
	r.m.activities = append(r.m.activities, *record)
	return nil
}
