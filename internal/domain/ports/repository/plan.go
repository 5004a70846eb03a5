package repository

import (
	"context"

	"wellness-payments/internal/domain/model"
)

// SubscriptionPlanRepository is the read-only plan catalog.
type SubscriptionPlanRepository interface {
	FindByID(ctx context.Context, tx Tx, id string) (*model.SubscriptionPlan, error)
	// DurationDays returns the plan duration; domain.ErrPlanNotFound when unknown.
	DurationDays(ctx context.Context, planID string) (int, error)
}
