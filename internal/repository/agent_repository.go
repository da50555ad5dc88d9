package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/assignment-engine/internal/domain"
)

type agentRepository struct {
	pool *pgxpool.Pool
}

// NewAgentRepository instantiates the postgres agent directory.
func NewAgentRepository(pool *pgxpool.Pool) AgentRepository {
	return &agentRepository{pool: pool}
}

func (r *agentRepository) ListActiveOnline(ctx context.Context, filter AgentFilter) ([]domain.Agent, error) {
	query := `
        SELECT a.id, a.name, a.is_active, a.presence_status, a.department, COALESCE(a.skills, ''),
               COALESCE(a.max_load, 0), a.created_at,
               COUNT(t.id) FILTER (WHERE t.status IN ('open','pending')) AS current_load
        FROM agents a
        LEFT JOIN tickets t ON t.assignee_id = a.id`
	args := []any{domain.PresenceOnline}
	clauses := []string{"a.is_active = TRUE", "a.presence_status = $1"}

	if filter.Department != nil {
		args = append(args, *filter.Department)
		clauses = append(clauses, fmt.Sprintf("LOWER(a.department)=LOWER($%d)", len(args)))
	}
	query += " WHERE " + strings.Join(clauses, " AND ")
	query += " GROUP BY a.id ORDER BY a.created_at ASC, a.id ASC"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []domain.Agent{}
	for rows.Next() {
		var (
			agent  domain.Agent
			skills string
		)
		if err := rows.Scan(
			&agent.ID,
			&agent.Name,
			&agent.IsActive,
			&agent.Presence,
			&agent.Department,
			&skills,
			&agent.MaxLoad,
			&agent.CreatedAt,
			&agent.CurrentLoad,
		); err != nil {
			return nil, err
		}
		agent.Skills = domain.ParseSkills(skills)
		result = append(result, agent)
	}
	return result, rows.Err()
}
