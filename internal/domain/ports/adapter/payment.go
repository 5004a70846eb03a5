package adapter

import (
	"context"
	"time"

	"wellness-payments/internal/domain/model"
)

// SignatureVerifier authenticates provider notifications.
type SignatureVerifier interface {
	// Verify reports whether the notification's signature matches the server key.
	Verify(n *model.Notification) bool
}

// ProviderStatus is a provider-side view of a transaction fetched by us.
type ProviderStatus struct {
	OrderID           string
	StatusCode        string
	GrossAmount       string
	TransactionStatus string
	FraudStatus       string
	Raw               []byte
}

// PaymentStatusProvider queries the payment provider for a transaction's current state.
type PaymentStatusProvider interface {
	Name() string
	TransactionStatus(ctx context.Context, refCode string) (*ProviderStatus, error)
}

// PaymentStatusChanged is published after a status change commits.
type PaymentStatusChanged struct {
	RefCode    string              `json:"ref_code"`
	PaymentID  string              `json:"payment_id"`
	UserID     string              `json:"user_id"`
	Type       model.PaymentType   `json:"payment_type"`
	Previous   model.PaymentStatus `json:"previous"`
	Status     model.PaymentStatus `json:"status"`
	Amount     int64               `json:"amount"`
	OccurredAt time.Time           `json:"occurred_at"`
}

// EventPublisher delivers domain events to downstream consumers (best effort).
type EventPublisher interface {
	PublishPaymentStatusChanged(ctx context.Context, ev PaymentStatusChanged) error
	Close() error
}
