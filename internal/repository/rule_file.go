package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/spec-kit/assignment-engine/internal/domain"
)

// fixtureEpoch anchors agents without created_at so file order is ring order.
var fixtureEpoch = time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)

type ruleFile struct {
	Rules   []ruleFileEntry   `yaml:"rules"`
	Agents  []agentFileEntry  `yaml:"agents"`
	Tickets []ticketFileEntry `yaml:"tickets"`
}

type ruleFileEntry struct {
	ID       string         `yaml:"id"`
	Name     string         `yaml:"name"`
	Type     string         `yaml:"type"`
	Priority int            `yaml:"priority"`
	Enabled  *bool          `yaml:"enabled"`
	Config   map[string]any `yaml:"config"`
}

type agentFileEntry struct {
	ID         string    `yaml:"id"`
	Name       string    `yaml:"name"`
	Active     *bool     `yaml:"active"`
	Presence   string    `yaml:"presence"`
	Department string    `yaml:"department"`
	Skills     []string  `yaml:"skills"`
	MaxLoad    int       `yaml:"max_load"`
	CreatedAt  time.Time `yaml:"created_at"`
}

type ticketFileEntry struct {
	ID       string `yaml:"id"`
	Category string `yaml:"category"`
	Status   string `yaml:"status"`
	Assignee string `yaml:"assignee"`
}

// Fixture is the parsed content of a rules file. Agents and tickets are
// optional and only meaningful for the in-memory stores.
type Fixture struct {
	Rules   []domain.AssignmentRule
	Agents  []domain.Agent
	Tickets []domain.Ticket
}

// HasDirectory reports whether the fixture carries agents or tickets.
func (f *Fixture) HasDirectory() bool {
	return len(f.Agents) > 0 || len(f.Tickets) > 0
}

// RuleRepository exposes the fixture rules read-only.
func (f *Fixture) RuleRepository() RuleRepository {
	return &fileRuleRepository{rules: append([]domain.AssignmentRule(nil), f.Rules...)}
}

// Seed loads every fixture record into store.
func (f *Fixture) Seed(store *MemoryStore) {
	for _, rule := range f.Rules {
		store.PutRule(rule)
	}
	for _, agent := range f.Agents {
		store.PutAgent(agent)
	}
	for _, ticket := range f.Tickets {
		store.PutTicket(ticket)
	}
}

type fileRuleRepository struct {
	rules []domain.AssignmentRule
}

// LoadFixtureFile reads a rules file, including optional agents and tickets.
func LoadFixtureFile(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rules file: %w", err)
	}
	return ParseFixture(data)
}

// LoadRuleFile reads assignment rules from a YAML document on disk.
func LoadRuleFile(path string) (RuleRepository, error) {
	fixture, err := LoadFixtureFile(path)
	if err != nil {
		return nil, err
	}
	return fixture.RuleRepository(), nil
}

// ParseRuleFile builds a read-only RuleRepository from YAML. Rules default to enabled.
func ParseRuleFile(data []byte) (RuleRepository, error) {
	fixture, err := ParseFixture(data)
	if err != nil {
		return nil, err
	}
	return fixture.RuleRepository(), nil
}

// ParseFixture decodes a rules file. Agents default to active and online,
// tickets default to open.
func ParseFixture(data []byte) (*Fixture, error) {
	var doc ruleFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse rules file: %w", err)
	}
	fixture := &Fixture{}
	for i, entry := range doc.Rules {
		if entry.ID == "" {
			return nil, fmt.Errorf("rule %d: id required", i)
		}
		rule := domain.AssignmentRule{
			ID:       entry.ID,
			Name:     entry.Name,
			Type:     domain.RuleType(entry.Type),
			Priority: entry.Priority,
			Enabled:  entry.Enabled == nil || *entry.Enabled,
		}
		if len(entry.Config) > 0 {
			raw, err := json.Marshal(entry.Config)
			if err != nil {
				return nil, fmt.Errorf("rule %s: encode config: %w", entry.ID, err)
			}
			rule.Config = raw
		}
		fixture.Rules = append(fixture.Rules, rule)
	}

	for i, entry := range doc.Agents {
		if entry.ID == "" {
			return nil, fmt.Errorf("agent %d: id required", i)
		}
		agent := domain.Agent{
			ID:         entry.ID,
			Name:       entry.Name,
			IsActive:   entry.Active == nil || *entry.Active,
			Presence:   domain.PresenceStatus(entry.Presence),
			Department: entry.Department,
			Skills:     append([]string(nil), entry.Skills...),
			MaxLoad:    entry.MaxLoad,
			CreatedAt:  entry.CreatedAt,
		}
		if agent.Presence == "" {
			agent.Presence = domain.PresenceOnline
		}
		if agent.CreatedAt.IsZero() {
			agent.CreatedAt = fixtureEpoch.Add(time.Duration(i) * time.Second)
		}
		fixture.Agents = append(fixture.Agents, agent)
	}

	for i, entry := range doc.Tickets {
		if entry.ID == "" {
			return nil, fmt.Errorf("ticket %d: id required", i)
		}
		ticket := domain.Ticket{
			ID:       entry.ID,
			Category: entry.Category,
			Status:   domain.TicketStatus(entry.Status),
		}
		if ticket.Status == "" {
			ticket.Status = domain.TicketStatusOpen
		}
		if entry.Assignee != "" {
			assignee := entry.Assignee
			ticket.AssigneeID = &assignee
		}
		fixture.Tickets = append(fixture.Tickets, ticket)
	}
	return fixture, nil
}

func (r *fileRuleRepository) ListEnabled(ctx context.Context) ([]domain.AssignmentRule, error) {
	var result []domain.AssignmentRule
	for _, rule := range r.rules {
		if rule.Enabled {
			result = append(result, rule)
		}
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Priority < result[j].Priority
	})
	return result, nil
}
