package domain

import "time"

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusOpen     TicketStatus = "open"
	TicketStatusPending  TicketStatus = "pending"
	TicketStatusResolved TicketStatus = "resolved"
	TicketStatusClosed   TicketStatus = "closed"
)

// CountsTowardLoad reports whether a ticket in this status occupies its assignee.
func (s TicketStatus) CountsTowardLoad() bool {
	return s == TicketStatusOpen || s == TicketStatusPending
}

// Ticket is the slice of a support request the engine routes on.
type Ticket struct {
	ID         string
	Category   string
	AssigneeID *string
	Status     TicketStatus
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Assigned reports whether the ticket already has an assignee.
func (t Ticket) Assigned() bool {
	return t.AssigneeID != nil && *t.AssigneeID != ""
}

// CategoryOr returns the ticket category, or fallback when unset.
func (t Ticket) CategoryOr(fallback string) string {
	if t.Category != "" {
		return t.Category
	}
	return fallback
}
