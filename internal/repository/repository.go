package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/assignment-engine/internal/domain"
)

// ErrNotFound is returned when a looked-up record does not exist.
var ErrNotFound = errors.New("record not found")

// RuleRepository exposes the rule configuration store.
type RuleRepository interface {
	// ListEnabled returns enabled rules in ascending priority.
	ListEnabled(ctx context.Context) ([]domain.AssignmentRule, error)
}

// AgentFilter narrows the active+online agent pool.
type AgentFilter struct {
	Department *string
	Limit      int
}

// AgentRepository is the agent pool accessor.
type AgentRepository interface {
	// ListActiveOnline returns active, online agents ordered by creation time with
	// CurrentLoad computed at call time. No match is an empty slice, not an error.
	ListActiveOnline(ctx context.Context, filter AgentFilter) ([]domain.Agent, error)
}

// TicketRepository is the ticket store.
type TicketRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Ticket, error)
	// Claim sets the assignee only if none is set. It reports whether this call won.
	Claim(ctx context.Context, ticketID, agentID string) (bool, error)
	ListUnassigned(ctx context.Context, limit int) ([]domain.Ticket, error)
}

// HistoryClaimer is implemented by stores that can claim a ticket and append its
// assignment history atomically.
type HistoryClaimer interface {
	ClaimWithHistory(ctx context.Context, ticketID, agentID string, entry *domain.AssignmentHistory) (bool, error)
}

// AssignmentHistoryRepository stores automatic assignment records.
type AssignmentHistoryRepository interface {
	Append(ctx context.Context, entry *domain.AssignmentHistory) error
	// Latest returns the most recent entry for ruleType, or ErrNotFound.
	Latest(ctx context.Context, ruleType domain.RuleType) (*domain.AssignmentHistory, error)
}

// ActivityRepository is the audit log sink.
type ActivityRepository interface {
	Append(ctx context.Context, record *domain.ActivityRecord) error
}

func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}
