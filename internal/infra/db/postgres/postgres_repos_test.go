//go:build integration

package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/oklog/ulid/v2"

	"wellness-payments/internal/domain"
	"wellness-payments/internal/domain/model"
	"wellness-payments/internal/domain/ports/repository"
)

func seedPayment(t *testing.T, typ model.PaymentType, meta model.Metadata) *model.Payment {
	t.Helper()
	now := time.Now().UTC().Truncate(time.Microsecond)
	p := &model.Payment{
		ID:        uuid.NewString(),
		RefCode:   "REF-" + uuid.NewString()[:8],
		UserID:    uuid.NewString(),
		Amount:    150000,
		Currency:  "IDR",
		Type:      typ,
		Status:    model.PaymentStatusPending,
		Metadata:  meta,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := NewPaymentRepo(testPool).Save(context.Background(), nil, p); err != nil {
		t.Fatalf("seed payment: %v", err)
	}
	return p
}

func TestPaymentRepo(t *testing.T) {
	ctx := context.Background()
	repo := NewPaymentRepo(testPool)

	t.Run("should find a payment by ref code with metadata", func(t *testing.T) {
		cleanup(t)
		p := seedPayment(t, model.PaymentTypeSubscription, model.Metadata{"plan_id": "plan-1"})

		got, err := repo.FindByRefCode(ctx, nil, p.RefCode)
		if err != nil {
			t.Fatalf("FindByRefCode failed: %v", err)
		}
		if got.ID != p.ID || got.Metadata.String(model.MetaPlanID) != "plan-1" {
			t.Errorf("unexpected payment %+v", got)
		}
		if got.PaidAt != nil {
			t.Error("pending payment should not have paid_at")
		}
	})

	t.Run("should return ErrPaymentNotFound for unknown ref", func(t *testing.T) {
		cleanup(t)
		_, err := repo.FindByRefCode(ctx, nil, "NOPE")
		if !errors.Is(err, domain.ErrPaymentNotFound) {
			t.Errorf("expected ErrPaymentNotFound, got %v", err)
		}
	})

	t.Run("should stamp paid_at once and keep the provider response", func(t *testing.T) {
		cleanup(t)
		p := seedPayment(t, model.PaymentTypeBooking, nil)
		raw := json.RawMessage(`{"transaction_status": "settlement", "order_id":"x"}`)

		err := NewTxManager(testPool).WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
			if _, err := repo.FindByRefCode(ctx, tx, p.RefCode); err != nil {
				return err
			}
			return repo.UpdateStatus(ctx, tx, p.ID, model.PaymentStatusPaid, raw)
		})
		if err != nil {
			t.Fatalf("tx failed: %v", err)
		}
		first, _ := repo.FindByID(ctx, nil, p.ID)
		if first.Status != model.PaymentStatusPaid || first.PaidAt == nil {
			t.Fatalf("expected paid with paid_at, got %+v", first)
		}

		time.Sleep(10 * time.Millisecond)
		if err := repo.UpdateStatus(ctx, nil, p.ID, model.PaymentStatusPaid, raw); err != nil {
			t.Fatalf("second update failed: %v", err)
		}
		second, _ := repo.FindByID(ctx, nil, p.ID)
		if !second.PaidAt.Equal(*first.PaidAt) {
			t.Errorf("paid_at changed from %v to %v", first.PaidAt, second.PaidAt)
		}
		if string(second.ProviderResponse) != string(raw) {
			t.Errorf("provider response not stored verbatim: %s", second.ProviderResponse)
		}
	})

	t.Run("should list stale pending payments", func(t *testing.T) {
		cleanup(t)
		seedPayment(t, model.PaymentTypeSubscription, nil)
		list, err := repo.ListPendingOlderThan(ctx, nil, time.Now().Add(time.Minute), 10)
		if err != nil {
			t.Fatalf("ListPendingOlderThan failed: %v", err)
		}
		if len(list) != 1 {
			t.Errorf("expected 1 pending payment, got %d", len(list))
		}
	})
}

func TestSubscriptionRepo_Upsert(t *testing.T) {
	ctx := context.Background()
	cleanup(t)
	repo := NewSubscriptionRepo(testPool)
	userID := uuid.NewString()
	start := time.Now().UTC().Truncate(time.Microsecond)

	first, _ := model.NewActiveSubscription(uuid.NewString(), userID, "plan-1", "SUB-1", 30, start)
	stored1, err := repo.Upsert(ctx, nil, first)
	if err != nil {
		t.Fatalf("first upsert failed: %v", err)
	}

	second, _ := model.NewActiveSubscription(uuid.NewString(), userID, "plan-1", "SUB-1", 30, start.Add(time.Hour))
	stored2, err := repo.Upsert(ctx, nil, second)
	if err != nil {
		t.Fatalf("second upsert failed: %v", err)
	}

	if stored1.ID != stored2.ID {
		t.Errorf("expected the same row, got %s and %s", stored1.ID, stored2.ID)
	}
	if !stored2.StartDate.Equal(stored1.StartDate) || !stored2.EndDate.Equal(stored1.EndDate) {
		t.Errorf("active period moved on replay: %v-%v, want %v-%v",
			stored2.StartDate, stored2.EndDate, stored1.StartDate, stored1.EndDate)
	}
	if _, err := testPool.Exec(ctx, `UPDATE user_subscriptions SET status='expired' WHERE id=$1`, stored1.ID); err != nil {
		t.Fatalf("expire subscription: %v", err)
	}
	third, _ := model.NewActiveSubscription(uuid.NewString(), userID, "plan-1", "SUB-1", 30, start.Add(2*time.Hour))
	stored3, err := repo.Upsert(ctx, nil, third)
	if err != nil {
		t.Fatalf("third upsert failed: %v", err)
	}
	if stored3.Status != model.SubscriptionStatusActive || !stored3.EndDate.Equal(third.EndDate) {
		t.Errorf("expected an expired row reactivated until %v, got %s until %v", third.EndDate, stored3.Status, stored3.EndDate)
	}

	var n int
	_ = testPool.QueryRow(ctx, `SELECT COUNT(*) FROM user_subscriptions WHERE user_id=$1`, userID).Scan(&n)
	if n != 1 {
		t.Errorf("expected 1 subscription row, got %d", n)
	}
}

func TestChatUsageRepo_GrantPremium(t *testing.T) {
	ctx := context.Background()
	cleanup(t)
	repo := NewChatUsageRepo(testPool)
	userID := uuid.NewString()

	for i := 0; i < 2; i++ {
		if err := repo.GrantPremium(ctx, nil, userID, model.UnlimitedMessageQuota); err != nil {
			t.Fatalf("GrantPremium failed: %v", err)
		}
	}
	u, err := repo.FindByUser(ctx, nil, userID)
	if err != nil {
		t.Fatalf("FindByUser failed: %v", err)
	}
	if !u.IsPremium || u.MessageQuota != model.UnlimitedMessageQuota {
		t.Errorf("unexpected usage %+v", u)
	}
}

func seedBooking(t *testing.T, userID, professionalID string) *model.Booking {
	t.Helper()
	now := time.Now().UTC()
	b := &model.Booking{
		ID:             uuid.NewString(),
		UserID:         userID,
		ProfessionalID: professionalID,
		Status:         model.BookingStatusPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := NewBookingRepo(testPool).Save(context.Background(), nil, b); err != nil {
		t.Fatalf("seed booking: %v", err)
	}
	return b
}

func TestBookingRepo_MarkPaid(t *testing.T) {
	ctx := context.Background()
	repo := NewBookingRepo(testPool)

	t.Run("should mark the booking paid", func(t *testing.T) {
		cleanup(t)
		b := seedBooking(t, uuid.NewString(), uuid.NewString())
		got, err := repo.MarkPaid(ctx, nil, b.ID, "SESSION-1")
		if err != nil {
			t.Fatalf("MarkPaid failed: %v", err)
		}
		if got.Status != model.BookingStatusPaid || got.PaymentRef == nil || *got.PaymentRef != "SESSION-1" {
			t.Errorf("unexpected booking %+v", got)
		}
	})

	t.Run("should return ErrBookingNotFound", func(t *testing.T) {
		cleanup(t)
		_, err := repo.MarkPaid(ctx, nil, uuid.NewString(), "SESSION-1")
		if !errors.Is(err, domain.ErrBookingNotFound) {
			t.Errorf("expected ErrBookingNotFound, got %v", err)
		}
		_, err = repo.FindByID(ctx, nil, "not-a-uuid")
		if !errors.Is(err, domain.ErrBookingNotFound) {
			t.Errorf("expected ErrBookingNotFound for malformed id, got %v", err)
		}
	})
}

func TestChatChannelRepo_UpsertForPair(t *testing.T) {
	ctx := context.Background()
	repo := NewChatChannelRepo(testPool)

	t.Run("should keep one channel and point it at the latest booking", func(t *testing.T) {
		cleanup(t)
		userID, proID := uuid.NewString(), uuid.NewString()
		b1 := seedBooking(t, userID, proID)
		b2 := seedBooking(t, userID, proID)

		ch1, err := repo.UpsertForPair(ctx, nil, userID, proID, &b1.ID)
		if err != nil {
			t.Fatalf("first upsert failed: %v", err)
		}
		ch2, err := repo.UpsertForPair(ctx, nil, userID, proID, &b2.ID)
		if err != nil {
			t.Fatalf("second upsert failed: %v", err)
		}
		if ch1.ID != ch2.ID {
			t.Errorf("expected the same channel, got %s and %s", ch1.ID, ch2.ID)
		}
		if ch2.BookingID == nil || *ch2.BookingID != b2.ID {
			t.Errorf("expected booking %s, got %v", b2.ID, ch2.BookingID)
		}
	})

	t.Run("should converge concurrent upserts on one row", func(t *testing.T) {
		cleanup(t)
		userID, proID := uuid.NewString(), uuid.NewString()
		b := seedBooking(t, userID, proID)

		var wg sync.WaitGroup
		errs := make(chan error, 8)
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if _, err := repo.UpsertForPair(ctx, nil, userID, proID, &b.ID); err != nil {
					errs <- err
				}
			}()
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			t.Errorf("concurrent upsert failed: %v", err)
		}

		var n int
		_ = testPool.QueryRow(ctx, `SELECT COUNT(*) FROM chat_channels WHERE user_id=$1 AND professional_id=$2`, userID, proID).Scan(&n)
		if n != 1 {
			t.Errorf("expected 1 channel, got %d", n)
		}
	})
}

func TestProvisioningFailureRepo(t *testing.T) {
	ctx := context.Background()
	cleanup(t)
	repo := NewProvisioningFailureRepo(testPool)
	p := seedPayment(t, model.PaymentTypeSubscription, nil)

	f := &model.ProvisioningFailure{
		ID:        ulid.Make().String(),
		PaymentID: p.ID,
		RefCode:   p.RefCode,
		Step:      model.StepChatPremium,
		Error:     "timeout",
		Retryable: true,
	}
	first, err := repo.Record(ctx, nil, f)
	if err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	f.ID = ulid.Make().String()
	second, err := repo.Record(ctx, nil, f)
	if err != nil {
		t.Fatalf("second Record failed: %v", err)
	}
	if first.ID != second.ID || second.Attempts != 2 {
		t.Errorf("expected the same open row with 2 attempts, got %+v", second)
	}

	open, err := repo.ListOpen(ctx, nil, true, 0, 10)
	if err != nil || len(open) != 1 {
		t.Fatalf("expected 1 open failure, got %d (%v)", len(open), err)
	}
	if capped, _ := repo.ListOpen(ctx, nil, true, 2, 10); len(capped) != 0 {
		t.Errorf("expected attempts cap to filter the row, got %d", len(capped))
	}

	if err := repo.Resolve(ctx, nil, p.ID, model.StepChatPremium); err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if open, _ := repo.ListOpen(ctx, nil, false, 0, 10); len(open) != 0 {
		t.Errorf("expected no open failures, got %d", len(open))
	}

	f.ID = ulid.Make().String()
	third, err := repo.Record(ctx, nil, f)
	if err != nil {
		t.Fatalf("Record after resolve failed: %v", err)
	}
	if third.ID == first.ID || third.Attempts != 1 {
		t.Errorf("expected a fresh failure row, got %+v", third)
	}
}

func TestWebhookEventRepo(t *testing.T) {
	ctx := context.Background()
	cleanup(t)
	repo := NewWebhookEventRepo(testPool)
	p := seedPayment(t, model.PaymentTypeBooking, nil)

	ev := &model.WebhookEvent{
		ID:                ulid.Make().String(),
		PaymentID:         p.ID,
		RefCode:           p.RefCode,
		TransactionStatus: "settlement",
		DerivedStatus:     model.PaymentStatusPaid,
		Payload:           []byte(`{"order_id":"` + p.RefCode + `"}`),
		Result:            model.WebhookReceived,
		CreatedAt:         time.Now().UTC(),
	}
	if err := repo.Save(ctx, nil, ev); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if err := repo.MarkResult(ctx, nil, ev.ID, model.WebhookHandleFailed, "booking.load: not found"); err != nil {
		t.Fatalf("MarkResult failed: %v", err)
	}
	list, err := repo.ListByRefCode(ctx, nil, p.RefCode, 10)
	if err != nil || len(list) != 1 {
		t.Fatalf("expected 1 event, got %d (%v)", len(list), err)
	}
	if list[0].Result != model.WebhookHandleFailed || list[0].Error == "" {
		t.Errorf("unexpected event %+v", list[0])
	}
}
