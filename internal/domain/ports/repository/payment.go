package repository

import (
	"context"
	"encoding/json"
	"time"

	"wellness-payments/internal/domain/model"
)

// -----------------------------
// Payments
// -----------------------------

type PaymentRepository interface {
	Save(ctx context.Context, tx Tx, p *model.Payment) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.Payment, error)
	// FindByRefCode returns domain.ErrPaymentNotFound when no row matches. When tx is a
	// database transaction the row is locked until it ends.
	FindByRefCode(ctx context.Context, tx Tx, refCode string) (*model.Payment, error)
	// UpdateStatus persists the status, replaces provider_response and stamps updated_at.
	// paid_at is set the first time the status becomes paid.
	UpdateStatus(ctx context.Context, tx Tx, id string, status model.PaymentStatus, providerResponse json.RawMessage) error
	ListPendingOlderThan(ctx context.Context, tx Tx, olderThan time.Time, limit int) ([]*model.Payment, error)
}
