package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/assignment-engine/internal/domain"
)

type ruleRepository struct {
	pool *pgxpool.Pool
}

// NewRuleRepository builds the postgres rule configuration store.
func NewRuleRepository(pool *pgxpool.Pool) RuleRepository {
	return &ruleRepository{pool: pool}
}

func (r *ruleRepository) ListEnabled(ctx context.Context) ([]domain.AssignmentRule, error) {
	const query = `
        SELECT id, name, rule_type, priority, enabled, config, created_at
        FROM assignment_rules WHERE enabled = TRUE
        ORDER BY priority ASC, seq ASC`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.AssignmentRule
	for rows.Next() {
		var (
			rule   domain.AssignmentRule
			config []byte
		)
		if err := rows.Scan(
			&rule.ID,
			&rule.Name,
			&rule.Type,
			&rule.Priority,
			&rule.Enabled,
			&config,
			&rule.CreatedAt,
		); err != nil {
			return nil, err
		}
		rule.Config = config
		result = append(result, rule)
	}
	return result, rows.Err()
}
