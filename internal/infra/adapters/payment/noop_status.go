package payment

import (
	"context"
	"sync"

	"wellness-payments/internal/domain"
	"wellness-payments/internal/domain/ports/adapter"
)

var _ adapter.PaymentStatusProvider = (*NoopStatusProvider)(nil)

// NoopStatusProvider is an in-memory provider for tests and local runs.
type NoopStatusProvider struct {
	mu       sync.Mutex
	statuses map[string]*adapter.ProviderStatus
}

func NewNoopStatusProvider() *NoopStatusProvider {
	return &NoopStatusProvider{statuses: make(map[string]*adapter.ProviderStatus)}
}

func (p *NoopStatusProvider) Name() string { return "noop" }

// Set registers the status returned for refCode.
func (p *NoopStatusProvider) Set(refCode, transactionStatus, fraudStatus string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.statuses[refCode] = &adapter.ProviderStatus{
		OrderID:           refCode,
		StatusCode:        "200",
		TransactionStatus: transactionStatus,
		FraudStatus:       fraudStatus,
		Raw:               []byte(`{"order_id":"` + refCode + `","transaction_status":"` + transactionStatus + `"}`),
	}
}

func (p *NoopStatusProvider) TransactionStatus(ctx context.Context, refCode string) (*adapter.ProviderStatus, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	st, ok := p.statuses[refCode]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *st
	return &cp, nil
}
