package postgres

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"wellness-payments/internal/domain"
	"wellness-payments/internal/domain/model"
	"wellness-payments/internal/domain/ports/repository"
)

var _ repository.PaymentRepository = (*paymentRepo)(nil)

type paymentRepo struct{ pool *pgxpool.Pool }

func NewPaymentRepo(pool *pgxpool.Pool) *paymentRepo {
	return &paymentRepo{pool: pool}
}

const paymentColumns = `id, ref_code, user_id, amount, currency, payment_type, status, metadata, provider_response, created_at, updated_at, paid_at`

func (r *paymentRepo) Save(ctx context.Context, tx repository.Tx, p *model.Payment) error {
	const q = `
INSERT INTO payments (
  id, ref_code, user_id, amount, currency, payment_type, status, metadata, provider_response, created_at, updated_at, paid_at
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12
) ON CONFLICT (id) DO UPDATE SET
  amount=$4, currency=$5, status=$7, metadata=$8, provider_response=$9, updated_at=$11, paid_at=$12;`

	meta, err := json.Marshal(p.Metadata)
	if err != nil {
		return domain.ErrInvalidArgument
	}
	if p.Metadata == nil {
		meta = []byte("{}")
	}
	_, err = execSQL(ctx, r.pool, tx, q,
		p.ID, p.RefCode, p.UserID, p.Amount, p.Currency, string(p.Type), string(p.Status),
		string(meta), jsonParam(p.ProviderResponse), p.CreatedAt, p.UpdatedAt, p.PaidAt)
	return mapExecErr(err)
}

func (r *paymentRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Payment, error) {
	q := `SELECT ` + paymentColumns + ` FROM payments WHERE id=$1` + lockClause(tx) + `;`
	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, err
	}
	return scanPayment(row)
}

func (r *paymentRepo) FindByRefCode(ctx context.Context, tx repository.Tx, refCode string) (*model.Payment, error) {
	q := `SELECT ` + paymentColumns + ` FROM payments WHERE ref_code=$1 LIMIT 1` + lockClause(tx) + `;`
	row, err := pickRow(ctx, r.pool, tx, q, refCode)
	if err != nil {
		return nil, err
	}
	return scanPayment(row)
}

func (r *paymentRepo) UpdateStatus(ctx context.Context, tx repository.Tx, id string, status model.PaymentStatus, providerResponse json.RawMessage) error {
	const q = `
UPDATE payments
   SET status = $2,
       provider_response = $3,
       paid_at = CASE WHEN $2 = 'paid' THEN COALESCE(paid_at, NOW()) ELSE paid_at END,
       updated_at = NOW()
 WHERE id = $1;`
	cmd, err := execSQL(ctx, r.pool, tx, q, id, string(status), jsonParam(providerResponse))
	if err != nil {
		return mapExecErr(err)
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrPaymentNotFound
	}
	return nil
}

func (r *paymentRepo) ListPendingOlderThan(ctx context.Context, tx repository.Tx, olderThan time.Time, limit int) ([]*model.Payment, error) {
	if limit <= 0 {
		limit = 100
	}
	q := `SELECT ` + paymentColumns + ` FROM payments WHERE status='pending' AND created_at < $1 ORDER BY created_at ASC LIMIT $2;`
	rows, err := queryRows(ctx, r.pool, tx, q, olderThan, limit)
	if err != nil {
		return nil, mapExecErr(err)
	}
	defer rows.Close()

	var out []*model.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.ErrReadDatabaseRow
	}
	return out, nil
}

func scanPayment(row pgx.Row) (*model.Payment, error) {
	var (
		p        model.Payment
		typ      string
		status   string
		meta     []byte
		provider []byte
	)
	err := row.Scan(&p.ID, &p.RefCode, &p.UserID, &p.Amount, &p.Currency, &typ, &status,
		&meta, &provider, &p.CreatedAt, &p.UpdatedAt, &p.PaidAt)
	if err != nil {
		return nil, mapScanErr(err, domain.ErrPaymentNotFound)
	}
	p.Type = model.PaymentType(typ)
	p.Status = model.PaymentStatus(status)
	if len(meta) > 0 {
		if err := json.Unmarshal(meta, &p.Metadata); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
	}
	if len(provider) > 0 {
		p.ProviderResponse = json.RawMessage(provider)
	}
	return &p, nil
}

// jsonParam passes a raw payload as text, byte for byte; empty is NULL.
func jsonParam(raw []byte) interface{} {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}
