package events

import (
	"context"
	"sync"

	"wellness-payments/internal/domain/ports/adapter"
)

var _ adapter.EventPublisher = (*MemoryPublisher)(nil)

// MemoryPublisher keeps events in memory. Used when no brokers are configured and in tests.
type MemoryPublisher struct {
	mu     sync.Mutex
	events []adapter.PaymentStatusChanged
}

func NewMemoryPublisher() *MemoryPublisher { return &MemoryPublisher{} }

func (p *MemoryPublisher) PublishPaymentStatusChanged(ctx context.Context, ev adapter.PaymentStatusChanged) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

func (p *MemoryPublisher) Events() []adapter.PaymentStatusChanged {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]adapter.PaymentStatusChanged, len(p.events))
	copy(out, p.events)
	return out
}

func (p *MemoryPublisher) Close() error { return nil }
