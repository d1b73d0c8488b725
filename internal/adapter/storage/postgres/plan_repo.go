package postgres

import (
	"context"
	"errors"
	"fmt"

	"survey-public-api/internal/core/domain"

	"github.com/jackc/pgx/v5"
)

// PlanRepo implements ports.PlanRepository over the account_plans table.
type PlanRepo struct {
	pool Pool
}

// NewPlanRepo creates a new PlanRepo.
func NewPlanRepo(pool Pool) *PlanRepo {
	return &PlanRepo{pool: pool}
}

// GetTier looks up the subject's plan tier.
func (r *PlanRepo) GetTier(ctx context.Context, subject string) (domain.Tier, bool, error) {
	var tier string
	err := r.pool.QueryRow(ctx, `SELECT tier FROM account_plans WHERE subject = $1`, subject).Scan(&tier)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("get plan tier: %w", err)
	}
	return domain.Tier(tier), true, nil
}
