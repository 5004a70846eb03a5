// File: internal/usecase/payment_uc.go
package usecase

import (
	"context"
	"strings"

	"wellness-payments/internal/domain"
	"wellness-payments/internal/domain/model"
	"wellness-payments/internal/domain/ports/repository"
)

// Compile-time check
var _ PaymentUseCase = (*paymentUC)(nil)

type PaymentUseCase interface {
	// GetStatus returns the payment for refCode; domain.ErrPaymentNotFound if unknown.
	GetStatus(ctx context.Context, refCode string) (*model.Payment, error)
	// Events lists recorded webhook deliveries for refCode, newest first.
	Events(ctx context.Context, refCode string, limit int) ([]*model.WebhookEvent, error)
}

type paymentUC struct {
	payments repository.PaymentRepository
	events   repository.WebhookEventRepository
}

func NewPaymentUseCase(payments repository.PaymentRepository, events repository.WebhookEventRepository) *paymentUC {
	return &paymentUC{payments: payments, events: events}
}

func (u *paymentUC) GetStatus(ctx context.Context, refCode string) (*model.Payment, error) {
	refCode = strings.TrimSpace(refCode)
	if refCode == "" {
		return nil, domain.ErrInvalidArgument
	}
	return u.payments.FindByRefCode(ctx, nil, refCode)
}

func (u *paymentUC) Events(ctx context.Context, refCode string, limit int) ([]*model.WebhookEvent, error) {
	refCode = strings.TrimSpace(refCode)
	if refCode == "" {
		return nil, domain.ErrInvalidArgument
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return u.events.ListByRefCode(ctx, nil, refCode, limit)
}
