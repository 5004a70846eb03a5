package repository

import (
	"context"

	"wellness-payments/internal/domain/model"
)

// ProvisioningFailureRepository is the dead-letter store for failed side effects.
type ProvisioningFailureRepository interface {
	// Record inserts an open failure or, if one is already open for (payment_id, step),
	// refreshes its error and increments attempts. The stored row is returned.
	Record(ctx context.Context, tx Tx, f *model.ProvisioningFailure) (*model.ProvisioningFailure, error)
	// Resolve closes the open failure for (payment_id, step), if any.
	Resolve(ctx context.Context, tx Tx, paymentID string, step model.ProvisioningStep) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.ProvisioningFailure, error)
	// ListOpen returns unresolved failures, oldest first. retryableOnly filters out rows that
	// need a human; maxAttempts <= 0 disables the attempts filter.
	ListOpen(ctx context.Context, tx Tx, retryableOnly bool, maxAttempts, limit int) ([]*model.ProvisioningFailure, error)
}

// WebhookEventRepository keeps the audit trail of webhook deliveries.
type WebhookEventRepository interface {
	Save(ctx context.Context, tx Tx, e *model.WebhookEvent) error
	MarkResult(ctx context.Context, tx Tx, id string, result model.WebhookResult, errMsg string) error
	ListByRefCode(ctx context.Context, tx Tx, refCode string, limit int) ([]*model.WebhookEvent, error)
}
