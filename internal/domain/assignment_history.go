package domain

import "time"

// AssignmentHistory is an immutable record of one automatic assignment.
type AssignmentHistory struct {
	ID              string
	RuleID          string
	RuleType        RuleType
	TicketID        string
	AssignedAgentID string
	AssignedAt      time.Time
	Metadata        map[string]any
}

// ActivityType names an audit event on a ticket.
type ActivityType string

const ActivityTypeAssigned ActivityType = "assigned"

// PerformedBySystem marks activities written by the engine rather than a person.
const PerformedBySystem = "system"

// ActivityRecord is an append-only audit trail entry.
type ActivityRecord struct {
	ID              string
	TicketID        string
	ActivityType    ActivityType
	NewValue        string
	PerformedBy     string
	PerformedByName string
	CreatedAt       time.Time
}
