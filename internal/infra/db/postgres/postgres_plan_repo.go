package postgres

import (
	"context"

	"wellness-payments/internal/domain"
	"wellness-payments/internal/domain/model"
	"wellness-payments/internal/domain/ports/repository"

	"github.com/jackc/pgx/v4/pgxpool"
)

// Ensure interface compliance
var _ repository.SubscriptionPlanRepository = (*PostgresPlanRepo)(nil)

type PostgresPlanRepo struct {
	pool *pgxpool.Pool
}

func NewPostgresPlanRepo(pool *pgxpool.Pool) *PostgresPlanRepo {
	return &PostgresPlanRepo{pool: pool}
}

// Save is used by seeding and tests; the reconciler only reads plans.
func (r *PostgresPlanRepo) Save(ctx context.Context, tx repository.Tx, plan *model.SubscriptionPlan) error {
	const q = `
INSERT INTO subscription_plans (id, name, duration_days, price, created_at)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (id) DO UPDATE
  SET name          = EXCLUDED.name,
      duration_days = EXCLUDED.duration_days,
      price         = EXCLUDED.price;
`
	_, err := execSQL(ctx, r.pool, tx, q, plan.ID, plan.Name, plan.DurationDays, plan.Price, plan.CreatedAt)
	return mapExecErr(err)
}

func (r *PostgresPlanRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.SubscriptionPlan, error) {
	const q = `
SELECT id, name, duration_days, price, created_at
  FROM subscription_plans
 WHERE id = $1;
`
	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, err
	}
	var p model.SubscriptionPlan
	if err := row.Scan(&p.ID, &p.Name, &p.DurationDays, &p.Price, &p.CreatedAt); err != nil {
		return nil, mapScanErr(err, domain.ErrPlanNotFound)
	}
	return &p, nil
}

func (r *PostgresPlanRepo) DurationDays(ctx context.Context, planID string) (int, error) {
	const q = `SELECT duration_days FROM subscription_plans WHERE id = $1;`
	row, err := pickRow(ctx, r.pool, nil, q, planID)
	if err != nil {
		return 0, err
	}
	var days int
	if err := row.Scan(&days); err != nil {
		return 0, mapScanErr(err, domain.ErrPlanNotFound)
	}
	return days, nil
}
