//go:build !integration

package usecase

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"wellness-payments/internal/domain"
	"wellness-payments/internal/domain/model"
	"wellness-payments/internal/domain/ports/adapter"
	"wellness-payments/internal/domain/ports/repository"
)

func newReconcileFixture(provider adapter.PaymentStatusProvider) (*webhookFixture, *reconcileUC) {
	f := newWebhookFixture(WebhookOptions{})
	plans := &MockPlanRepo{}
	prov := NewProvisioningUseCase(f.subs, f.usage, plans, f.bookings, f.channels, f.failures, f.notifier, ProvisioningOptions{}, newTestLogger())
	return f, NewReconcileUseCase(f.payments, f.failures, prov, f.uc, provider, 5, newTestLogger())
}

func TestReconcileUseCase_RetryPayment(t *testing.T) {
	ctx := context.Background()

	t.Run("should resolve the failure once the step succeeds", func(t *testing.T) {
		// --- Arrange ---
		f, uc := newReconcileFixture(nil)
		p := f.seedSubscriptionPayment("RT-1", model.PaymentStatusPaid)
		broken := true
		f.usage.GrantPremiumFunc = func(ctx context.Context, tx repository.Tx, userID string, quota int) error {
			if broken {
				return errors.New("timeout")
			}
			return nil
		}
		uc.provisioning.Dispatch(ctx, p)
		if len(f.failures.Open()) != 1 {
			t.Fatalf("precondition: expected one open failure")
		}
		broken = false

		// --- Act ---
		report, err := uc.RetryPayment(ctx, p.ID)

		// --- Assert ---
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !report.OK() {
			t.Fatalf("expected ok retry, got %+v", report.Failures())
		}
		if n := len(f.failures.Open()); n != 0 {
			t.Errorf("expected failures resolved, %d still open", n)
		}
	})

	t.Run("should refuse to provision an unpaid payment", func(t *testing.T) {
		// --- Arrange ---
		f, uc := newReconcileFixture(nil)
		p := f.seedSubscriptionPayment("RT-2", model.PaymentStatusPending)

		// --- Act ---
		_, err := uc.RetryPayment(ctx, p.ID)

		// --- Assert ---
		if !errors.Is(err, domain.ErrInvalidArgument) {
			t.Fatalf("expected ErrInvalidArgument, got %v", err)
		}
		if f.subs.Count() != 0 {
			t.Errorf("nothing should be provisioned")
		}
	})

	t.Run("should clear a metadata failure after the payment is fixed", func(t *testing.T) {
		// --- Arrange ---
		f, uc := newReconcileFixture(nil)
		p := f.seedSubscriptionPayment("RT-3", model.PaymentStatusPaid)
		p.Metadata = model.Metadata{}
		_ = f.payments.Save(ctx, nil, p)
		uc.provisioning.Dispatch(ctx, p)
		p.Metadata = model.Metadata{model.MetaPlanID: "monthly"}
		_ = f.payments.Save(ctx, nil, p)

		// --- Act ---
		report, err := uc.RetryPayment(ctx, p.ID)

		// --- Assert ---
		if err != nil || !report.OK() {
			t.Fatalf("expected ok retry, got %v %+v", err, report)
		}
		if n := len(f.failures.Open()); n != 0 {
			t.Errorf("metadata failure should be resolved, %d open", n)
		}
	})

	t.Run("should keep the active period when only a later step is retried", func(t *testing.T) {
		// --- Arrange ---
		f := newWebhookFixture(WebhookOptions{})
		p := f.seedSubscriptionPayment("RT-4", model.PaymentStatusPaid)
		prov := NewProvisioningUseCase(f.subs, f.usage, &MockPlanRepo{}, f.bookings, f.channels, f.failures, f.notifier, ProvisioningOptions{}, newTestLogger())
		clock := time.Date(2025, time.May, 1, 9, 0, 0, 0, time.UTC)
		prov.now = func() time.Time { return clock }
		f.usage.GrantPremiumFunc = func(ctx context.Context, tx repository.Tx, userID string, quota int) error {
			return errors.New("timeout")
		}
		prov.Dispatch(ctx, p)
		before, err := f.subs.FindByPaymentRef(ctx, nil, p.UserID, p.RefCode)
		if err != nil {
			t.Fatalf("precondition: subscription not stored: %v", err)
		}
		clock = clock.Add(72 * time.Hour)
		f.usage.GrantPremiumFunc = nil
		uc := NewReconcileUseCase(f.payments, f.failures, prov, f.uc, nil, 5, newTestLogger())

		// --- Act ---
		report, err := uc.RetryPayment(ctx, p.ID)

		// --- Assert ---
		if err != nil || !report.OK() {
			t.Fatalf("expected ok retry, got %v %+v", err, report)
		}
		after, err := f.subs.FindByPaymentRef(ctx, nil, p.UserID, p.RefCode)
		if err != nil {
			t.Fatalf("subscription lost: %v", err)
		}
		if !after.StartDate.Equal(before.StartDate) || !after.EndDate.Equal(before.EndDate) {
			t.Errorf("period moved: %v-%v, want %v-%v", after.StartDate, after.EndDate, before.StartDate, before.EndDate)
		}
	})

	t.Run("should log resolve errors for untouched metadata steps", func(t *testing.T) {
		// --- Arrange ---
		var buf bytes.Buffer
		logger := zerolog.New(&buf)
		f := newWebhookFixture(WebhookOptions{})
		p := f.seedSubscriptionPayment("RT-5", model.PaymentStatusPaid)
		f.failures.ResolveFunc = func(ctx context.Context, tx repository.Tx, paymentID string, step model.ProvisioningStep) error {
			return errors.New("db down")
		}
		prov := NewProvisioningUseCase(f.subs, f.usage, &MockPlanRepo{}, f.bookings, f.channels, f.failures, f.notifier, ProvisioningOptions{}, newTestLogger())
		uc := NewReconcileUseCase(f.payments, f.failures, prov, f.uc, nil, 5, &logger)

		// --- Act ---
		report, err := uc.RetryPayment(ctx, p.ID)

		// --- Assert ---
		if err != nil || !report.OK() {
			t.Fatalf("resolve errors must not fail the retry, got %v %+v", err, report)
		}
		out := buf.String()
		if !strings.Contains(out, string(model.StepSubscriptionMetadata)) || !strings.Contains(out, "db down") {
			t.Errorf("expected the metadata resolve error in the log, got %s", out)
		}
	})
}

func TestReconcileUseCase_RetryFailure(t *testing.T) {
	ctx := context.Background()

	t.Run("should retry by failure id", func(t *testing.T) {
		// --- Arrange ---
		f, uc := newReconcileFixture(nil)
		p := f.seedSubscriptionPayment("RF-1", model.PaymentStatusPaid)
		fail := true
		f.subs.UpsertFunc = func(ctx context.Context, tx repository.Tx, s *model.UserSubscription) (*model.UserSubscription, error) {
			if fail {
				return nil, domain.ErrOperationFailed
			}
			cp := *s
			return &cp, nil
		}
		uc.provisioning.Dispatch(ctx, p)
		open := f.failures.Open()
		if len(open) != 1 {
			t.Fatalf("precondition: expected one open failure, got %d", len(open))
		}
		fail = false

		// --- Act ---
		report, err := uc.RetryFailure(ctx, open[0].ID)

		// --- Assert ---
		if err != nil || !report.OK() {
			t.Fatalf("expected ok retry, got %v %+v", err, report)
		}
		if _, err := uc.RetryFailure(ctx, open[0].ID); !errors.Is(err, domain.ErrInvalidArgument) {
			t.Errorf("retrying a resolved failure should be rejected, got %v", err)
		}
	})

	t.Run("should return not found for an unknown failure", func(t *testing.T) {
		// --- Arrange ---
		_, uc := newReconcileFixture(nil)

		// --- Act ---
		_, err := uc.RetryFailure(ctx, "missing")

		// --- Assert ---
		if !errors.Is(err, domain.ErrFailureNotFound) {
			t.Fatalf("expected ErrFailureNotFound, got %v", err)
		}
	})
}

func TestReconcileUseCase_ListFailures(t *testing.T) {
	ctx := context.Background()

	// --- Arrange ---
	f, uc := newReconcileFixture(nil)
	_, _ = f.failures.Record(ctx, nil, &model.ProvisioningFailure{ID: "f1", PaymentID: "p1", Step: model.StepChatPremium, Retryable: true})
	_, _ = f.failures.Record(ctx, nil, &model.ProvisioningFailure{ID: "f2", PaymentID: "p2", Step: model.StepBookingLoad, Retryable: false})
	for i := 0; i < 5; i++ {
		_, _ = f.failures.Record(ctx, nil, &model.ProvisioningFailure{ID: "f3", PaymentID: "p3", Step: model.StepChatChannel, Retryable: true})
	}

	// --- Act ---
	all, err1 := uc.ListFailures(ctx, false, 50)
	retryable, err2 := uc.ListFailures(ctx, true, 50)

	// --- Assert ---
	if err1 != nil || err2 != nil {
		t.Fatalf("unexpected errors: %v / %v", err1, err2)
	}
	if len(all) != 3 {
		t.Errorf("expected 3 open failures, got %d", len(all))
	}
	if len(retryable) != 1 || retryable[0].ID != "f1" {
		t.Errorf("expected only f1 retryable under the attempts cap, got %+v", retryable)
	}
}

func TestReconcileUseCase_ReconcilePending(t *testing.T) {
	ctx := context.Background()

	t.Run("should settle stale pending payments from the provider", func(t *testing.T) {
		// --- Arrange ---
		provider := &MockStatusProvider{Statuses: map[string]*adapter.ProviderStatus{
			"RP-1": {TransactionStatus: "settlement", Raw: []byte(`{}`)},
			"RP-2": {TransactionStatus: "pending", Raw: []byte(`{}`)},
		}}
		f, uc := newReconcileFixture(provider)
		f.seedSubscriptionPayment("RP-1", model.PaymentStatusPending)
		f.seedSubscriptionPayment("RP-2", model.PaymentStatusPending)
		f.seedSubscriptionPayment("RP-3", model.PaymentStatusPending)

		// --- Act ---
		sum, err := uc.ReconcilePending(ctx, 10*time.Minute, 100)

		// --- Assert ---
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if sum.Checked != 3 || sum.Updated != 1 || sum.Missing != 1 || sum.Errors != 0 {
			t.Errorf("unexpected summary %+v", sum)
		}
		p, _ := f.payments.FindByRefCode(ctx, nil, "RP-1")
		if p.Status != model.PaymentStatusPaid {
			t.Errorf("expected RP-1 paid, got %s", p.Status)
		}
		if f.subs.Count() != 1 {
			t.Errorf("expected provisioning for RP-1, got %d subscriptions", f.subs.Count())
		}
	})

	t.Run("should count provider errors and continue", func(t *testing.T) {
		// --- Arrange ---
		provider := &MockStatusProvider{Err: errors.New("503 from provider")}
		f, uc := newReconcileFixture(provider)
		f.seedSubscriptionPayment("RP-4", model.PaymentStatusPending)
		f.seedSubscriptionPayment("RP-5", model.PaymentStatusPending)

		// --- Act ---
		sum, err := uc.ReconcilePending(ctx, time.Minute, 100)

		// --- Assert ---
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if sum.Errors != 2 || sum.Updated != 0 {
			t.Errorf("unexpected summary %+v", sum)
		}
	})

	t.Run("should do nothing without a provider", func(t *testing.T) {
		// --- Arrange ---
		f, uc := newReconcileFixture(nil)
		f.seedSubscriptionPayment("RP-6", model.PaymentStatusPending)

		// --- Act ---
		sum, err := uc.ReconcilePending(ctx, time.Minute, 100)

		// --- Assert ---
		if err != nil || sum.Checked != 0 {
			t.Errorf("expected no-op, got %+v %v", sum, err)
		}
	})
}
