package model

import (
	"strings"
	"time"

	"wellness-payments/internal/domain"
)

// MaxPlanDurationDays caps catalog entries; longer plans are data entry mistakes.
const MaxPlanDurationDays = 3650

// SubscriptionPlan is a catalog entry. The reconciler only needs its duration.
type SubscriptionPlan struct {
	ID           string
	Name         string
	DurationDays int
	Price        int64 // smallest currency unit
	CreatedAt    time.Time
}

func (p *SubscriptionPlan) IsZero() bool { return p == nil || p.ID == "" }

// NewSubscriptionPlan trims and validates catalog input.
func NewSubscriptionPlan(id, name string, durationDays int, price int64) (*SubscriptionPlan, error) {
	id, name = strings.TrimSpace(id), strings.TrimSpace(name)
	if id == "" || name == "" || price <= 0 {
		return nil, domain.ErrInvalidArgument
	}
	if durationDays <= 0 || durationDays > MaxPlanDurationDays {
		return nil, domain.ErrInvalidArgument
	}
	return &SubscriptionPlan{
		ID:           id,
		Name:         name,
		DurationDays: durationDays,
		Price:        price,
		CreatedAt:    time.Now().UTC(),
	}, nil
}
