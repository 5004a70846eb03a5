//go:build !integration

package web

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"wellness-payments/internal/domain"
	"wellness-payments/internal/domain/model"
	"wellness-payments/internal/usecase"
)

// --- Mock use cases ---

type mockReconcileUC struct {
	ListFailuresFunc     func(ctx context.Context, retryableOnly bool, limit int) ([]*model.ProvisioningFailure, error)
	RetryPaymentFunc     func(ctx context.Context, paymentID string) (model.ProvisioningReport, error)
	RetryFailureFunc     func(ctx context.Context, failureID string) (model.ProvisioningReport, error)
	ReconcilePendingFunc func(ctx context.Context, olderThan time.Duration, limit int) (usecase.ReconcileSummary, error)
}

var _ usecase.ReconcileUseCase = (*mockReconcileUC)(nil)

func (m *mockReconcileUC) ListFailures(ctx context.Context, retryableOnly bool, limit int) ([]*model.ProvisioningFailure, error) {
	if m.ListFailuresFunc != nil {
		return m.ListFailuresFunc(ctx, retryableOnly, limit)
	}
	return nil, nil
}

func (m *mockReconcileUC) RetryPayment(ctx context.Context, paymentID string) (model.ProvisioningReport, error) {
	if m.RetryPaymentFunc != nil {
		return m.RetryPaymentFunc(ctx, paymentID)
	}
	return nil, domain.ErrPaymentNotFound
}

func (m *mockReconcileUC) RetryFailure(ctx context.Context, failureID string) (model.ProvisioningReport, error) {
	if m.RetryFailureFunc != nil {
		return m.RetryFailureFunc(ctx, failureID)
	}
	return nil, domain.ErrFailureNotFound
}

func (m *mockReconcileUC) ReconcilePending(ctx context.Context, olderThan time.Duration, limit int) (usecase.ReconcileSummary, error) {
	if m.ReconcilePendingFunc != nil {
		return m.ReconcilePendingFunc(ctx, olderThan, limit)
	}
	return usecase.ReconcileSummary{}, nil
}

type mockPaymentUC struct {
	payments map[string]*model.Payment
	events   map[string][]*model.WebhookEvent
}

var _ usecase.PaymentUseCase = (*mockPaymentUC)(nil)

func (m *mockPaymentUC) GetStatus(ctx context.Context, refCode string) (*model.Payment, error) {
	if p, ok := m.payments[refCode]; ok {
		return p, nil
	}
	return nil, domain.ErrPaymentNotFound
}

func (m *mockPaymentUC) Events(ctx context.Context, refCode string, limit int) ([]*model.WebhookEvent, error) {
	return m.events[refCode], nil
}

// --- Mock limiter ---

type mockLimiter struct {
	mu     sync.Mutex
	counts map[string]int
	err    error
}

func newMockLimiter() *mockLimiter { return &mockLimiter{counts: map[string]int{}} }

func (m *mockLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	if m.err != nil {
		return false, m.err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counts[key]++
	return m.counts[key] <= limit, nil
}

// newTestLogger creates a silent logger for tests.
func newTestLogger() *zerolog.Logger {
	logger := zerolog.New(io.Discard)
	return &logger
}
