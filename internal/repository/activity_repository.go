package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/assignment-engine/internal/domain"
)

type activityRepository struct {
	pool *pgxpool.Pool
}

// NewActivityRepository builds repository.
func NewActivityRepository(pool *pgxpool.Pool) ActivityRepository {
	return &activityRepository{pool: pool}
}

func (r *activityRepository) Append(ctx context.Context, record *domain.ActivityRecord) error {
	const query = `
        INSERT INTO ticket_activities (id, ticket_id, activity_type, new_value, performed_by, performed_by_name)
        VALUES ($1,$2,$3,$4,$5,$6)
        ON CONFLICT (id) DO NOTHING
        RETURNING created_at`
	err := r.pool.QueryRow(ctx, query,
		record.ID,
		record.TicketID,
		record.ActivityType,
		record.NewValue,
		record.PerformedBy,
		record.PerformedByName,
	).Scan(&record.CreatedAt)
	// a retried insert that already landed returns no row
	if errors.Is(err, pgx.ErrNoRows) {
		return nil
	}
	return err
}
