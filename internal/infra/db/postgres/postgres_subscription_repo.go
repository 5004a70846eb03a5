package postgres

import (
	"context"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"wellness-payments/internal/domain"
	"wellness-payments/internal/domain/model"
	"wellness-payments/internal/domain/ports/repository"
)

var _ repository.SubscriptionRepository = (*subscriptionRepo)(nil)
var _ repository.ChatUsageRepository = (*chatUsageRepo)(nil)

type subscriptionRepo struct{ pool *pgxpool.Pool }

func NewSubscriptionRepo(pool *pgxpool.Pool) *subscriptionRepo {
	return &subscriptionRepo{pool: pool}
}

const subscriptionColumns = `id, user_id, plan_id, status, start_date, end_date, payment_ref, created_at, updated_at`

// Upsert keeps the original id and created_at of an existing (user_id, payment_ref) row.
// An already active row also keeps its period, so a replayed activation does not extend it.
func (r *subscriptionRepo) Upsert(ctx context.Context, tx repository.Tx, s *model.UserSubscription) (*model.UserSubscription, error) {
	const q = `
INSERT INTO user_subscriptions (` + subscriptionColumns + `)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
ON CONFLICT (user_id, payment_ref) DO UPDATE SET
  plan_id    = EXCLUDED.plan_id,
  status     = EXCLUDED.status,
  start_date = CASE WHEN user_subscriptions.status = 'active' THEN user_subscriptions.start_date ELSE EXCLUDED.start_date END,
  end_date   = CASE WHEN user_subscriptions.status = 'active' THEN user_subscriptions.end_date ELSE EXCLUDED.end_date END,
  updated_at = EXCLUDED.updated_at
RETURNING ` + subscriptionColumns + `;`

	row, err := pickRow(ctx, r.pool, tx, q,
		s.ID, s.UserID, s.PlanID, string(s.Status), s.StartDate, s.EndDate, s.PaymentRef, s.CreatedAt, s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	out, err := scanSubscription(row)
	if err != nil {
		if err == domain.ErrNotFound || err == domain.ErrReadDatabaseRow {
			return nil, domain.ErrOperationFailed
		}
		return nil, err
	}
	return out, nil
}

func (r *subscriptionRepo) FindByPaymentRef(ctx context.Context, tx repository.Tx, userID, paymentRef string) (*model.UserSubscription, error) {
	q := `SELECT ` + subscriptionColumns + ` FROM user_subscriptions WHERE user_id=$1 AND payment_ref=$2` + lockClause(tx) + `;`
	row, err := pickRow(ctx, r.pool, tx, q, userID, paymentRef)
	if err != nil {
		return nil, err
	}
	return scanSubscription(row)
}

func scanSubscription(row pgx.Row) (*model.UserSubscription, error) {
	var (
		s      model.UserSubscription
		status string
	)
	if err := row.Scan(&s.ID, &s.UserID, &s.PlanID, &status, &s.StartDate, &s.EndDate, &s.PaymentRef, &s.CreatedAt, &s.UpdatedAt); err != nil {
		return nil, mapScanErr(err, domain.ErrNotFound)
	}
	s.Status = model.SubscriptionStatus(status)
	return &s, nil
}

// -----------------------------
// Chat usage
// -----------------------------

type chatUsageRepo struct{ pool *pgxpool.Pool }

func NewChatUsageRepo(pool *pgxpool.Pool) *chatUsageRepo {
	return &chatUsageRepo{pool: pool}
}

func (r *chatUsageRepo) GrantPremium(ctx context.Context, tx repository.Tx, userID string, quota int) error {
	const q = `
INSERT INTO chat_usage (user_id, is_premium, message_quota, updated_at)
VALUES ($1, TRUE, $2, NOW())
ON CONFLICT (user_id) DO UPDATE SET
  is_premium    = TRUE,
  message_quota = EXCLUDED.message_quota,
  updated_at    = NOW();`
	_, err := execSQL(ctx, r.pool, tx, q, userID, quota)
	return mapExecErr(err)
}

func (r *chatUsageRepo) FindByUser(ctx context.Context, tx repository.Tx, userID string) (*model.ChatUsage, error) {
	const q = `SELECT user_id, is_premium, message_quota, updated_at FROM chat_usage WHERE user_id=$1;`
	row, err := pickRow(ctx, r.pool, tx, q, userID)
	if err != nil {
		return nil, err
	}
	var u model.ChatUsage
	if err := row.Scan(&u.UserID, &u.IsPremium, &u.MessageQuota, &u.UpdatedAt); err != nil {
		return nil, mapScanErr(err, domain.ErrNotFound)
	}
	return &u, nil
}
