package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/assignment-engine/internal/domain"
)

type ticketRepository struct {
	pool *pgxpool.Pool
}

// NewTicketRepository instantiates repository.
func NewTicketRepository(pool *pgxpool.Pool) TicketRepository {
	return &ticketRepository{pool: pool}
}

const claimTicketQuery = `
        UPDATE tickets SET assignee_id=$1, updated_at=NOW()
        WHERE id=$2 AND assignee_id IS NULL`

func (r *ticketRepository) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	const query = `
        SELECT id, COALESCE(category, ''), assignee_id, status, created_at, updated_at
        FROM tickets WHERE id=$1`
	var ticket domain.Ticket
	if err := r.pool.QueryRow(ctx, query, id).Scan(
		&ticket.ID,
		&ticket.Category,
		&ticket.AssigneeID,
		&ticket.Status,
		&ticket.CreatedAt,
		&ticket.UpdatedAt,
	); err != nil {
		return nil, notFound(err)
	}
	return &ticket, nil
}

func (r *ticketRepository) Claim(ctx context.Context, ticketID, agentID string) (bool, error) {
	cmd, err := r.pool.Exec(ctx, claimTicketQuery, agentID, ticketID)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() == 1, nil
}

// ClaimWithHistory claims the ticket and appends its history row in one transaction.
// A lost claim writes nothing.
func (r *ticketRepository) ClaimWithHistory(ctx context.Context, ticketID, agentID string, entry *domain.AssignmentHistory) (bool, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return false, err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	cmd, err := tx.Exec(ctx, claimTicketQuery, agentID, ticketID)
	if err != nil {
		return false, err
	}
	if cmd.RowsAffected() != 1 {
		return false, nil
	}
	if err := insertHistory(ctx, tx, entry); err != nil {
		return false, fmt.Errorf("append history: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return false, err
	}
	return true, nil
}

func (r *ticketRepository) ListUnassigned(ctx context.Context, limit int) ([]domain.Ticket, error) {
	if limit <= 0 {
		limit = 100
	}
	const query = `
        SELECT id, COALESCE(category, ''), assignee_id, status, created_at, updated_at
        FROM tickets WHERE assignee_id IS NULL AND status IN ('open','pending')
        ORDER BY created_at ASC LIMIT $1`
	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Ticket
	for rows.Next() {
		var ticket domain.Ticket
		if err := rows.Scan(
			&ticket.ID,
			&ticket.Category,
			&ticket.AssigneeID,
			&ticket.Status,
			&ticket.CreatedAt,
			&ticket.UpdatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, ticket)
	}
	return result, rows.Err()
}
