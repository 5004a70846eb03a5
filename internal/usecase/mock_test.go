//go:build !integration

package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"wellness-payments/internal/domain"
	"wellness-payments/internal/domain/model"
	"wellness-payments/internal/domain/ports/adapter"
	"wellness-payments/internal/domain/ports/repository"
)

// writeCounter counts mutating store calls across all mocks of one test.
type writeCounter struct{ n int64 }

func (w *writeCounter) inc() {
	if w != nil {
		atomic.AddInt64(&w.n, 1)
	}
}

func (w *writeCounter) Load() int64 { return atomic.LoadInt64(&w.n) }

// ---- Mock PaymentRepository ----

type MockPaymentRepo struct {
	mu     sync.Mutex
	data   map[string]*model.Payment // by id
	byRef  map[string]string         // ref_code -> id
	writes *writeCounter

	FindByRefCodeFunc func(ctx context.Context, tx repository.Tx, refCode string) (*model.Payment, error)
	UpdateStatusFunc  func(ctx context.Context, tx repository.Tx, id string, status model.PaymentStatus, raw json.RawMessage) error
}

var _ repository.PaymentRepository = (*MockPaymentRepo)(nil)

func NewMockPaymentRepo(w *writeCounter) *MockPaymentRepo {
	return &MockPaymentRepo{data: map[string]*model.Payment{}, byRef: map[string]string{}, writes: w}
}

func (r *MockPaymentRepo) Save(ctx context.Context, tx repository.Tx, p *model.Payment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	cp := *p
	r.data[p.ID] = &cp
	r.byRef[p.RefCode] = p.ID
	return nil
}

func (r *MockPaymentRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.data[id]; ok {
		cp := *p
		return &cp, nil
	}
	return nil, domain.ErrPaymentNotFound
}

func (r *MockPaymentRepo) FindByRefCode(ctx context.Context, tx repository.Tx, refCode string) (*model.Payment, error) {
	if r.FindByRefCodeFunc != nil {
		return r.FindByRefCodeFunc(ctx, tx, refCode)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if id, ok := r.byRef[refCode]; ok {
		cp := *r.data[id]
		return &cp, nil
	}
	return nil, domain.ErrPaymentNotFound
}

func (r *MockPaymentRepo) UpdateStatus(ctx context.Context, tx repository.Tx, id string, status model.PaymentStatus, raw json.RawMessage) error {
	if r.UpdateStatusFunc != nil {
		return r.UpdateStatusFunc(ctx, tx, id, status, raw)
	}
	r.writes.inc()
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.data[id]
	if !ok {
		return domain.ErrPaymentNotFound
	}
	p.Status = status
	p.ProviderResponse = raw
	p.UpdatedAt = time.Now()
	if status == model.PaymentStatusPaid && p.PaidAt == nil {
		now := time.Now()
		p.PaidAt = &now
	}
	return nil
}

func (r *MockPaymentRepo) ListPendingOlderThan(ctx context.Context, tx repository.Tx, olderThan time.Time, limit int) ([]*model.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.Payment
	for _, p := range r.data {
		if p.Status == model.PaymentStatusPending && p.CreatedAt.Before(olderThan) {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

// ---- Mock SubscriptionRepository ----

type MockSubscriptionRepo struct {
	mu     sync.Mutex
	data   map[string]*model.UserSubscription // key: user_id|payment_ref
	writes *writeCounter

	UpsertFunc func(ctx context.Context, tx repository.Tx, s *model.UserSubscription) (*model.UserSubscription, error)
}

var _ repository.SubscriptionRepository = (*MockSubscriptionRepo)(nil)

func NewMockSubscriptionRepo(w *writeCounter) *MockSubscriptionRepo {
	return &MockSubscriptionRepo{data: map[string]*model.UserSubscription{}, writes: w}
}

func (r *MockSubscriptionRepo) Upsert(ctx context.Context, tx repository.Tx, s *model.UserSubscription) (*model.UserSubscription, error) {
	if r.UpsertFunc != nil {
		return r.UpsertFunc(ctx, tx, s)
	}
	r.writes.inc()
	r.mu.Lock()
	defer r.mu.Unlock()
	key := s.UserID + "|" + s.PaymentRef
	cp := *s
	if existing, ok := r.data[key]; ok {
		cp.ID = existing.ID
		cp.CreatedAt = existing.CreatedAt
		if existing.Status == model.SubscriptionStatusActive {
			cp.StartDate, cp.EndDate = existing.StartDate, existing.EndDate
		}
	}
	r.data[key] = &cp
	out := cp
	return &out, nil
}

func (r *MockSubscriptionRepo) FindByPaymentRef(ctx context.Context, tx repository.Tx, userID, paymentRef string) (*model.UserSubscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.data[userID+"|"+paymentRef]; ok {
		cp := *s
		return &cp, nil
	}
	return nil, domain.ErrNotFound
}

func (r *MockSubscriptionRepo) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.data)
}

// ---- Mock ChatUsageRepository ----

type MockChatUsageRepo struct {
	mu     sync.Mutex
	data   map[string]*model.ChatUsage
	writes *writeCounter

	GrantPremiumFunc func(ctx context.Context, tx repository.Tx, userID string, quota int) error
}

var _ repository.ChatUsageRepository = (*MockChatUsageRepo)(nil)

func NewMockChatUsageRepo(w *writeCounter) *MockChatUsageRepo {
	return &MockChatUsageRepo{data: map[string]*model.ChatUsage{}, writes: w}
}

func (r *MockChatUsageRepo) GrantPremium(ctx context.Context, tx repository.Tx, userID string, quota int) error {
	if r.GrantPremiumFunc != nil {
		return r.GrantPremiumFunc(ctx, tx, userID, quota)
	}
	r.writes.inc()
	r.mu.Lock()
	defer r.mu.Unlock()
	r.data[userID] = &model.ChatUsage{UserID: userID, IsPremium: true, MessageQuota: quota, UpdatedAt: time.Now()}
	return nil
}

func (r *MockChatUsageRepo) FindByUser(ctx context.Context, tx repository.Tx, userID string) (*model.ChatUsage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.data[userID]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, domain.ErrNotFound
}

// ---- Mock SubscriptionPlanRepository ----

type MockPlanRepo struct {
	DurationDaysFunc func(ctx context.Context, planID string) (int, error)
}

var _ repository.SubscriptionPlanRepository = (*MockPlanRepo)(nil)

func (r *MockPlanRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.SubscriptionPlan, error) {
	days, err := r.DurationDays(ctx, id)
	if err != nil {
		return nil, err
	}
	return &model.SubscriptionPlan{ID: id, Name: id, DurationDays: days, Price: 1}, nil
}

func (r *MockPlanRepo) DurationDays(ctx context.Context, planID string) (int, error) {
	if r.DurationDaysFunc != nil {
		return r.DurationDaysFunc(ctx, planID)
	}
	return 0, domain.ErrPlanNotFound
}

// ---- Mock BookingRepository ----

type MockBookingRepo struct {
	mu     sync.Mutex
	data   map[string]*model.Booking
	writes *writeCounter

	MarkPaidFunc func(ctx context.Context, tx repository.Tx, id, paymentRef string) (*model.Booking, error)
}

var _ repository.BookingRepository = (*MockBookingRepo)(nil)

func NewMockBookingRepo(w *writeCounter) *MockBookingRepo {
	return &MockBookingRepo{data: map[string]*model.Booking{}, writes: w}
}

func (r *MockBookingRepo) Add(b *model.Booking) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *b
	r.data[b.ID] = &cp
}

func (r *MockBookingRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if b, ok := r.data[id]; ok {
		cp := *b
		return &cp, nil
	}
	return nil, domain.ErrBookingNotFound
}

func (r *MockBookingRepo) MarkPaid(ctx context.Context, tx repository.Tx, id, paymentRef string) (*model.Booking, error) {
	if r.MarkPaidFunc != nil {
		return r.MarkPaidFunc(ctx, tx, id, paymentRef)
	}
	r.writes.inc()
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.data[id]
	if !ok {
		return nil, domain.ErrBookingNotFound
	}
	b.Status = model.BookingStatusPaid
	ref := paymentRef
	b.PaymentRef = &ref
	cp := *b
	return &cp, nil
}

// ---- Mock ChatChannelRepository ----

type MockChatChannelRepo struct {
	mu     sync.Mutex
	data   map[string]*model.ChatChannel // key: user|professional
	writes *writeCounter

	UpsertForPairFunc func(ctx context.Context, tx repository.Tx, userID, professionalID string, bookingID *string) (*model.ChatChannel, error)
}

var _ repository.ChatChannelRepository = (*MockChatChannelRepo)(nil)

func NewMockChatChannelRepo(w *writeCounter) *MockChatChannelRepo {
	return &MockChatChannelRepo{data: map[string]*model.ChatChannel{}, writes: w}
}

func (r *MockChatChannelRepo) UpsertForPair(ctx context.Context, tx repository.Tx, userID, professionalID string, bookingID *string) (*model.ChatChannel, error) {
	if r.UpsertForPairFunc != nil {
		return r.UpsertForPairFunc(ctx, tx, userID, professionalID, bookingID)
	}
	r.writes.inc()
	r.mu.Lock()
	defer r.mu.Unlock()
	key := userID + "|" + professionalID
	ch, ok := r.data[key]
	if !ok {
		ch = &model.ChatChannel{ID: uuid.NewString(), UserID: userID, ProfessionalID: professionalID, CreatedAt: time.Now()}
		r.data[key] = ch
	}
	if bookingID != nil {
		b := *bookingID
		ch.BookingID = &b
	}
	ch.UpdatedAt = time.Now()
	cp := *ch
	return &cp, nil
}

func (r *MockChatChannelRepo) FindByPair(ctx context.Context, tx repository.Tx, userID, professionalID string) (*model.ChatChannel, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if ch, ok := r.data[userID+"|"+professionalID]; ok {
		cp := *ch
		return &cp, nil
	}
	return nil, domain.ErrNotFound
}

func (r *MockChatChannelRepo) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.data)
}

// ---- Mock ProvisioningFailureRepository ----

type MockFailureRepo struct {
	mu     sync.Mutex
	data   map[string]*model.ProvisioningFailure // by id
	writes *writeCounter

	ResolveFunc func(ctx context.Context, tx repository.Tx, paymentID string, step model.ProvisioningStep) error
}

var _ repository.ProvisioningFailureRepository = (*MockFailureRepo)(nil)

func NewMockFailureRepo(w *writeCounter) *MockFailureRepo {
	return &MockFailureRepo{data: map[string]*model.ProvisioningFailure{}, writes: w}
}

func (r *MockFailureRepo) Record(ctx context.Context, tx repository.Tx, f *model.ProvisioningFailure) (*model.ProvisioningFailure, error) {
	r.writes.inc()
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ex := range r.data {
		if ex.PaymentID == f.PaymentID && ex.Step == f.Step && ex.ResolvedAt == nil {
			ex.Attempts++
			ex.Error = f.Error
			ex.Retryable = f.Retryable
			cp := *ex
			return &cp, nil
		}
	}
	cp := *f
	cp.Attempts = 1
	cp.CreatedAt = time.Now()
	r.data[cp.ID] = &cp
	out := cp
	return &out, nil
}

func (r *MockFailureRepo) Resolve(ctx context.Context, tx repository.Tx, paymentID string, step model.ProvisioningStep) error {
	if r.ResolveFunc != nil {
		return r.ResolveFunc(ctx, tx, paymentID, step)
	}
	r.writes.inc()
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ex := range r.data {
		if ex.PaymentID == paymentID && ex.Step == step && ex.ResolvedAt == nil {
			now := time.Now()
			ex.ResolvedAt = &now
		}
	}
	return nil
}

func (r *MockFailureRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.ProvisioningFailure, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if f, ok := r.data[id]; ok {
		cp := *f
		return &cp, nil
	}
	return nil, domain.ErrFailureNotFound
}

func (r *MockFailureRepo) ListOpen(ctx context.Context, tx repository.Tx, retryableOnly bool, maxAttempts, limit int) ([]*model.ProvisioningFailure, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.ProvisioningFailure
	for _, f := range r.data {
		if f.ResolvedAt != nil || (retryableOnly && !f.Retryable) || (maxAttempts > 0 && f.Attempts >= maxAttempts) {
			continue
		}
		cp := *f
		out = append(out, &cp)
	}
	return out, nil
}

func (r *MockFailureRepo) Open() []*model.ProvisioningFailure {
	out, _ := r.ListOpen(context.Background(), nil, false, 0, 0)
	return out
}

// ---- Mock WebhookEventRepository ----

type MockWebhookEventRepo struct {
	mu     sync.Mutex
	data   []*model.WebhookEvent
	writes *writeCounter
}

var _ repository.WebhookEventRepository = (*MockWebhookEventRepo)(nil)

func NewMockWebhookEventRepo(w *writeCounter) *MockWebhookEventRepo {
	return &MockWebhookEventRepo{writes: w}
}

func (r *MockWebhookEventRepo) Save(ctx context.Context, tx repository.Tx, e *model.WebhookEvent) error {
	r.writes.inc()
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *e
	r.data = append(r.data, &cp)
	return nil
}

func (r *MockWebhookEventRepo) MarkResult(ctx context.Context, tx repository.Tx, id string, result model.WebhookResult, errMsg string) error {
	r.writes.inc()
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.data {
		if e.ID == id {
			e.Result = result
			e.Error = errMsg
			return nil
		}
	}
	return domain.ErrNotFound
}

func (r *MockWebhookEventRepo) ListByRefCode(ctx context.Context, tx repository.Tx, refCode string, limit int) ([]*model.WebhookEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.WebhookEvent
	for i := len(r.data) - 1; i >= 0; i-- {
		if r.data[i].RefCode == refCode {
			cp := *r.data[i]
			out = append(out, &cp)
		}
	}
	return out, nil
}

// =============================
// Infra helpers for tests
// =============================

// ---- Mock TransactionManager ----

type MockTxManager struct {
	WithTxFunc func(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error
}

func NewMockTxManager() *MockTxManager {
	return &MockTxManager{}
}

var _ repository.TransactionManager = (*MockTxManager)(nil)

// WithTx runs fn immediately with NoTX unless WithTxFunc is set.
func (m *MockTxManager) WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	if m.WithTxFunc != nil {
		return m.WithTxFunc(ctx, txOpt, fn)
	}
	return fn(ctx, repository.NoTX)
}

// ---- In-memory Locker ----

type MockLocker struct {
	mu    sync.Mutex
	held  map[string]string
	ErrOn map[string]error
}

var _ Locker = (*MockLocker)(nil)

func NewMockLocker() *MockLocker {
	return &MockLocker{held: map[string]string{}, ErrOn: map[string]error{}}
}

func (l *MockLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err, bad := l.ErrOn[key]; bad {
		return "", err
	}
	if tok, ok := l.held[key]; ok && tok != "" {
		return "", domain.ErrLockNotAcquired
	}
	tok := uuid.NewString()
	l.held[key] = tok
	return tok, nil
}

func (l *MockLocker) Unlock(ctx context.Context, key, token string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[key] == token {
		delete(l.held, key)
		return nil
	}
	return errors.New("unlock token mismatch")
}

// ---- Adapters ----

type MockVerifier struct{ Valid bool }

func (v *MockVerifier) Verify(n *model.Notification) bool { return v.Valid }

type MockPublisher struct {
	mu     sync.Mutex
	Events []adapter.PaymentStatusChanged
	Err    error
}

func (p *MockPublisher) PublishPaymentStatusChanged(ctx context.Context, ev adapter.PaymentStatusChanged) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Events = append(p.Events, ev)
	return p.Err
}

func (p *MockPublisher) Close() error { return nil }

type MockNotifier struct {
	mu   sync.Mutex
	Sent []*model.ProvisioningFailure
}

func (n *MockNotifier) NotifyProvisioningFailure(ctx context.Context, f *model.ProvisioningFailure) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.Sent = append(n.Sent, f)
	return nil
}

type MockStatusProvider struct {
	Statuses map[string]*adapter.ProviderStatus
	Err      error
}

func (p *MockStatusProvider) Name() string { return "mock" }

func (p *MockStatusProvider) TransactionStatus(ctx context.Context, refCode string) (*adapter.ProviderStatus, error) {
	if p.Err != nil {
		return nil, p.Err
	}
	st, ok := p.Statuses[refCode]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *st
	return &cp, nil
}

// newTestLogger creates a silent zerolog.Logger for use in tests.
func newTestLogger() *zerolog.Logger {
	logger := zerolog.New(io.Discard)
	return &logger
}
