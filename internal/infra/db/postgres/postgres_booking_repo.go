package postgres

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"wellness-payments/internal/domain"
	"wellness-payments/internal/domain/model"
	"wellness-payments/internal/domain/ports/repository"
)

var _ repository.BookingRepository = (*bookingRepo)(nil)
var _ repository.ChatChannelRepository = (*chatChannelRepo)(nil)

type bookingRepo struct{ pool *pgxpool.Pool }

func NewBookingRepo(pool *pgxpool.Pool) *bookingRepo {
	return &bookingRepo{pool: pool}
}

const bookingColumns = `id, user_id, professional_id, status, payment_ref, scheduled_at, created_at, updated_at`

// Save is used by checkout fixtures and tests.
func (r *bookingRepo) Save(ctx context.Context, tx repository.Tx, b *model.Booking) error {
	const q = `
INSERT INTO bookings (` + bookingColumns + `)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
ON CONFLICT (id) DO UPDATE SET
  status=$4, payment_ref=$5, scheduled_at=$6, updated_at=$8;`
	_, err := execSQL(ctx, r.pool, tx, q,
		b.ID, b.UserID, b.ProfessionalID, string(b.Status), b.PaymentRef, b.ScheduledAt, b.CreatedAt, b.UpdatedAt)
	return mapExecErr(err)
}

func (r *bookingRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Booking, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, domain.ErrBookingNotFound
	}
	q := `SELECT ` + bookingColumns + ` FROM bookings WHERE id=$1` + lockClause(tx) + `;`
	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, err
	}
	return scanBooking(row)
}

func (r *bookingRepo) MarkPaid(ctx context.Context, tx repository.Tx, id, paymentRef string) (*model.Booking, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, domain.ErrBookingNotFound
	}
	const q = `
UPDATE bookings
   SET status = 'paid',
       payment_ref = $2,
       updated_at = NOW()
 WHERE id = $1
RETURNING ` + bookingColumns + `;`
	row, err := pickRow(ctx, r.pool, tx, q, id, paymentRef)
	if err != nil {
		return nil, err
	}
	return scanBooking(row)
}

func scanBooking(row pgx.Row) (*model.Booking, error) {
	var (
		b      model.Booking
		status string
	)
	if err := row.Scan(&b.ID, &b.UserID, &b.ProfessionalID, &status, &b.PaymentRef, &b.ScheduledAt, &b.CreatedAt, &b.UpdatedAt); err != nil {
		return nil, mapScanErr(err, domain.ErrBookingNotFound)
	}
	b.Status = model.BookingStatus(status)
	return &b, nil
}

// -----------------------------
// Chat channels
// -----------------------------

type chatChannelRepo struct{ pool *pgxpool.Pool }

func NewChatChannelRepo(pool *pgxpool.Pool) *chatChannelRepo {
	return &chatChannelRepo{pool: pool}
}

const chatChannelColumns = `id, user_id, professional_id, booking_id, created_at, updated_at`

// UpsertForPair relies on the (user_id, professional_id) unique constraint, so concurrent
// callers converge on one row. A nil bookingID keeps whatever booking is already attached.
func (r *chatChannelRepo) UpsertForPair(ctx context.Context, tx repository.Tx, userID, professionalID string, bookingID *string) (*model.ChatChannel, error) {
	const q = `
INSERT INTO chat_channels (` + chatChannelColumns + `)
VALUES ($1, $2, $3, $4, NOW(), NOW())
ON CONFLICT (user_id, professional_id) DO UPDATE SET
  booking_id = COALESCE(EXCLUDED.booking_id, chat_channels.booking_id),
  updated_at = NOW()
RETURNING ` + chatChannelColumns + `;`
	row, err := pickRow(ctx, r.pool, tx, q, uuid.NewString(), userID, professionalID, bookingID)
	if err != nil {
		return nil, err
	}
	ch, err := scanChatChannel(row)
	if err != nil {
		if err == domain.ErrNotFound || err == domain.ErrReadDatabaseRow {
			return nil, domain.ErrOperationFailed
		}
		return nil, err
	}
	return ch, nil
}

func (r *chatChannelRepo) FindByPair(ctx context.Context, tx repository.Tx, userID, professionalID string) (*model.ChatChannel, error) {
	q := `SELECT ` + chatChannelColumns + ` FROM chat_channels WHERE user_id=$1 AND professional_id=$2` + lockClause(tx) + `;`
	row, err := pickRow(ctx, r.pool, tx, q, userID, professionalID)
	if err != nil {
		return nil, err
	}
	return scanChatChannel(row)
}

func scanChatChannel(row pgx.Row) (*model.ChatChannel, error) {
	var ch model.ChatChannel
	if err := row.Scan(&ch.ID, &ch.UserID, &ch.ProfessionalID, &ch.BookingID, &ch.CreatedAt, &ch.UpdatedAt); err != nil {
		return nil, mapScanErr(err, domain.ErrNotFound)
	}
	return &ch, nil
}
