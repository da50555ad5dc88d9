package events

import (
	"time"

	"github.com/spec-kit/assignment-engine/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketAssigned      EventType = "ticket_assigned"
	EventAssignmentUnmatched EventType = "assignment_unmatched"
)

// Actor encapsulates actor metadata for an event.
type Actor struct {
	Type string `json:"type"`
	Name string `json:"name,omitempty"`
}

// Event represents a domain event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	TicketID  string      `json:"ticket_id"`
	Actor     Actor       `json:"actor"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// TicketAssignedPayload payload.
type TicketAssignedPayload struct {
	AgentID   string          `json:"agent_id"`
	AgentName string          `json:"agent_name,omitempty"`
	RuleID    string          `json:"rule_id"`
	RuleName  string          `json:"rule_name"`
	RuleType  domain.RuleType `json:"rule_type"`
	AgentLoad int             `json:"agent_load"`
}

// AssignmentUnmatchedPayload payload.
type AssignmentUnmatchedPayload struct {
	Reason         string `json:"reason"`
	RulesEvaluated int    `json:"rules_evaluated"`
}
