package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/assignment-engine/internal/domain"
)

type assignmentHistoryRepository struct {
	pool *pgxpool.Pool
}

// NewAssignmentHistoryRepository builds repository.
func NewAssignmentHistoryRepository(pool *pgxpool.Pool) AssignmentHistoryRepository {
	return &assignmentHistoryRepository{pool: pool}
}

type rowQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func insertHistory(ctx context.Context, q rowQuerier, entry *domain.AssignmentHistory) error {
	const query = `
        INSERT INTO assignment_history (id, rule_id, rule_type, ticket_id, assigned_agent_id, assigned_at, metadata)
        VALUES ($1,$2,$3,$4,$5,$6,$7)
        ON CONFLICT (id) DO NOTHING
        RETURNING assigned_at`
	err := q.QueryRow(ctx, query,
		entry.ID,
		entry.RuleID,
		entry.RuleType,
		entry.TicketID,
		entry.AssignedAgentID,
		entry.AssignedAt,
		entry.Metadata,
	).Scan(&entry.AssignedAt)
	// the entry id is fixed across retries, so no row means an earlier attempt landed
	if errors.Is(err, pgx.ErrNoRows) {
		return nil
	}
	return err
}

func (r *assignmentHistoryRepository) Append(ctx context.Context, entry *domain.AssignmentHistory) error {
	return insertHistory(ctx, r.pool, entry)
}

func (r *assignmentHistoryRepository) Latest(ctx context.Context, ruleType domain.RuleType) (*domain.AssignmentHistory, error) {
	const query = `
        SELECT id, rule_id, rule_type, ticket_id, assigned_agent_id, assigned_at, metadata
        FROM assignment_history WHERE rule_type=$1
        ORDER BY assigned_at DESC, seq DESC LIMIT 1`
	var entry domain.AssignmentHistory
	if err := r.pool.QueryRow(ctx, query, ruleType).Scan(
		&entry.ID,
		&entry.RuleID,
		&entry.RuleType,
		&entry.TicketID,
		&entry.AssignedAgentID,
		&entry.AssignedAt,
		&entry.Metadata,
	); err != nil {
		return nil, notFound(err)
	}
	return &entry, nil
}
