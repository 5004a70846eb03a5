package postgres

import (
	"context"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/oklog/ulid/v2"

	"wellness-payments/internal/domain"
	"wellness-payments/internal/domain/model"
	"wellness-payments/internal/domain/ports/repository"
)

var _ repository.ProvisioningFailureRepository = (*provisioningFailureRepo)(nil)
var _ repository.WebhookEventRepository = (*webhookEventRepo)(nil)

type provisioningFailureRepo struct{ pool *pgxpool.Pool }

func NewProvisioningFailureRepo(pool *pgxpool.Pool) *provisioningFailureRepo {
	return &provisioningFailureRepo{pool: pool}
}

const failureColumns = `id, payment_id, ref_code, step, error, retryable, attempts, created_at, updated_at, resolved_at`

func (r *provisioningFailureRepo) Record(ctx context.Context, tx repository.Tx, f *model.ProvisioningFailure) (*model.ProvisioningFailure, error) {
	const q = `
INSERT INTO provisioning_failures (id, payment_id, ref_code, step, error, retryable, attempts, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, 1, NOW(), NOW())
ON CONFLICT (payment_id, step) WHERE resolved_at IS NULL DO UPDATE SET
  error      = EXCLUDED.error,
  retryable  = EXCLUDED.retryable,
  attempts   = provisioning_failures.attempts + 1,
  updated_at = NOW()
RETURNING ` + failureColumns + `;`
	id := f.ID
	if id == "" {
		id = ulid.Make().String()
	}
	row, err := pickRow(ctx, r.pool, tx, q, id, f.PaymentID, f.RefCode, string(f.Step), f.Error, f.Retryable)
	if err != nil {
		return nil, err
	}
	out, err := scanFailure(row)
	if err != nil {
		if err == domain.ErrFailureNotFound || err == domain.ErrReadDatabaseRow {
			return nil, domain.ErrOperationFailed
		}
		return nil, err
	}
	return out, nil
}

func (r *provisioningFailureRepo) Resolve(ctx context.Context, tx repository.Tx, paymentID string, step model.ProvisioningStep) error {
	const q = `UPDATE provisioning_failures SET resolved_at=NOW(), updated_at=NOW() WHERE payment_id=$1 AND step=$2 AND resolved_at IS NULL;`
	_, err := execSQL(ctx, r.pool, tx, q, paymentID, string(step))
	return mapExecErr(err)
}

func (r *provisioningFailureRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.ProvisioningFailure, error) {
	q := `SELECT ` + failureColumns + ` FROM provisioning_failures WHERE id=$1` + lockClause(tx) + `;`
	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, err
	}
	return scanFailure(row)
}

func (r *provisioningFailureRepo) ListOpen(ctx context.Context, tx repository.Tx, retryableOnly bool, maxAttempts, limit int) ([]*model.ProvisioningFailure, error) {
	if limit <= 0 {
		limit = 100
	}
	const q = `
SELECT ` + failureColumns + `
  FROM provisioning_failures
 WHERE resolved_at IS NULL
   AND ($1 = FALSE OR retryable)
   AND ($2 <= 0 OR attempts < $2)
 ORDER BY created_at ASC
 LIMIT $3;`
	rows, err := queryRows(ctx, r.pool, tx, q, retryableOnly, maxAttempts, limit)
	if err != nil {
		return nil, mapExecErr(err)
	}
	defer rows.Close()

	var out []*model.ProvisioningFailure
	for rows.Next() {
		f, err := scanFailure(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.ErrReadDatabaseRow
	}
	return out, nil
}

func scanFailure(row pgx.Row) (*model.ProvisioningFailure, error) {
	var (
		f    model.ProvisioningFailure
		step string
	)
	if err := row.Scan(&f.ID, &f.PaymentID, &f.RefCode, &step, &f.Error, &f.Retryable, &f.Attempts, &f.CreatedAt, &f.UpdatedAt, &f.ResolvedAt); err != nil {
		return nil, mapScanErr(err, domain.ErrFailureNotFound)
	}
	f.Step = model.ProvisioningStep(step)
	return &f, nil
}

// -----------------------------
// Webhook events
// -----------------------------

type webhookEventRepo struct{ pool *pgxpool.Pool }

func NewWebhookEventRepo(pool *pgxpool.Pool) *webhookEventRepo {
	return &webhookEventRepo{pool: pool}
}

func (r *webhookEventRepo) Save(ctx context.Context, tx repository.Tx, e *model.WebhookEvent) error {
	const q = `
INSERT INTO webhook_events (id, payment_id, ref_code, transaction_status, derived_status, payload, result, error, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9);`
	_, err := execSQL(ctx, r.pool, tx, q,
		e.ID, e.PaymentID, e.RefCode, e.TransactionStatus, string(e.DerivedStatus), jsonParam(e.Payload), string(e.Result), e.Error, e.CreatedAt)
	return mapExecErr(err)
}

func (r *webhookEventRepo) MarkResult(ctx context.Context, tx repository.Tx, id string, result model.WebhookResult, errMsg string) error {
	const q = `UPDATE webhook_events SET result=$2, error=$3 WHERE id=$1;`
	_, err := execSQL(ctx, r.pool, tx, q, id, string(result), errMsg)
	return mapExecErr(err)
}

func (r *webhookEventRepo) ListByRefCode(ctx context.Context, tx repository.Tx, refCode string, limit int) ([]*model.WebhookEvent, error) {
	if limit <= 0 {
		limit = 50
	}
	const q = `
SELECT id, payment_id, ref_code, transaction_status, derived_status, payload, result, error, created_at
  FROM webhook_events
 WHERE ref_code = $1
 ORDER BY created_at DESC
 LIMIT $2;`
	rows, err := queryRows(ctx, r.pool, tx, q, refCode, limit)
	if err != nil {
		return nil, mapExecErr(err)
	}
	defer rows.Close()

	var out []*model.WebhookEvent
	for rows.Next() {
		var (
			e       model.WebhookEvent
			derived string
			result  string
		)
		if err := rows.Scan(&e.ID, &e.PaymentID, &e.RefCode, &e.TransactionStatus, &derived, &e.Payload, &result, &e.Error, &e.CreatedAt); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		e.DerivedStatus = model.PaymentStatus(derived)
		e.Result = model.WebhookResult(result)
		out = append(out, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.ErrReadDatabaseRow
	}
	return out, nil
}
