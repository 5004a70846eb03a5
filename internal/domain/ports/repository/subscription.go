package repository

import (
	"context"

	"wellness-payments/internal/domain/model"
)

// SubscriptionRepository is the port for user subscriptions.
type SubscriptionRepository interface {
	// Upsert inserts the subscription or, when one already exists for the same
	// (user_id, payment_ref), updates its dates and status in place. The stored row is returned.
	Upsert(ctx context.Context, tx Tx, sub *model.UserSubscription) (*model.UserSubscription, error)
	FindByPaymentRef(ctx context.Context, tx Tx, userID, paymentRef string) (*model.UserSubscription, error)
}

// ChatUsageRepository tracks chat allowances.
type ChatUsageRepository interface {
	// GrantPremium marks the user premium with the given quota, creating the row if needed.
	GrantPremium(ctx context.Context, tx Tx, userID string, quota int) error
	FindByUser(ctx context.Context, tx Tx, userID string) (*model.ChatUsage, error)
}
