package model

import (
	"time"

	"wellness-payments/internal/domain"
)

type SubscriptionStatus string

const (
	SubscriptionStatusActive    SubscriptionStatus = "active"
	SubscriptionStatusExpired   SubscriptionStatus = "expired"
	SubscriptionStatusCancelled SubscriptionStatus = "cancelled"
)

// DefaultPlanDurationDays is used when the plan catalog cannot be read.
const DefaultPlanDurationDays = 30

// UserSubscription links a user to a plan for a period. At most one row exists per
// (user_id, payment_ref).
type UserSubscription struct {
	ID         string // UUID
	UserID     string
	PlanID     string
	Status     SubscriptionStatus
	StartDate  time.Time
	EndDate    time.Time
	PaymentRef string // ref_code of the payment that activated it
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// NewActiveSubscription builds an active subscription starting at start. The end date uses
// calendar arithmetic in start's location, not a fixed number of hours.
func NewActiveSubscription(id, userID, planID, paymentRef string, durationDays int, start time.Time) (*UserSubscription, error) {
	if id == "" || userID == "" || planID == "" || paymentRef == "" || durationDays <= 0 {
		return nil, domain.ErrInvalidArgument
	}
	return &UserSubscription{
		ID:         id,
		UserID:     userID,
		PlanID:     planID,
		Status:     SubscriptionStatusActive,
		StartDate:  start,
		EndDate:    SubscriptionEndDate(start, durationDays),
		PaymentRef: paymentRef,
		CreatedAt:  start,
		UpdatedAt:  start,
	}, nil
}

// SubscriptionEndDate adds durationDays calendar days to start.
func SubscriptionEndDate(start time.Time, durationDays int) time.Time {
	return start.AddDate(0, 0, durationDays)
}

// UnlimitedMessageQuota is the chat quota granted to premium users.
const UnlimitedMessageQuota = 999999

// ChatUsage tracks a user's AI chat allowance.
type ChatUsage struct {
	UserID       string
	IsPremium    bool
	MessageQuota int
	UpdatedAt    time.Time
}
