// File: internal/usecase/webhook_uc.go
package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"wellness-payments/internal/domain"
	"wellness-payments/internal/domain/model"
	"wellness-payments/internal/domain/ports/adapter"
	"wellness-payments/internal/domain/ports/repository"
	"wellness-payments/internal/infra/logging"
	"wellness-payments/internal/infra/metrics"
)

// Compile-time check
var _ WebhookUseCase = (*webhookUC)(nil)

// WebhookOutcome is what one notification did to the system.
type WebhookOutcome struct {
	Transition model.Transition
	// Report is nil unless the payment became paid with this delivery.
	Report model.ProvisioningReport
}

type WebhookUseCase interface {
	// Handle authenticates a provider notification, updates the payment and, when it just
	// became paid, runs provisioning. Provisioning failures never surface as an error.
	Handle(ctx context.Context, n *model.Notification) (*WebhookOutcome, error)
	// ApplyProviderStatus feeds a status we fetched from the provider ourselves through the
	// same update and provisioning path, without signature verification.
	ApplyProviderStatus(ctx context.Context, st *adapter.ProviderStatus) (*WebhookOutcome, error)
}

// Locker serializes deliveries for the same ref_code across instances.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (token string, err error)
	Unlock(ctx context.Context, key, token string) error
}

type WebhookOptions struct {
	AllowUnsigned  bool          // accept notifications without signature_key
	AllowSimulated bool          // accept {ref_code, status:"paid"} bodies (dev only)
	StoreTimeout   time.Duration // bound for each store call
	LockTTL        time.Duration // per-ref_code lock lifetime
	Dev            bool          // log signatures unmasked
}

type webhookUC struct {
	payments     repository.PaymentRepository
	events       repository.WebhookEventRepository
	tm           repository.TransactionManager
	verifier     adapter.SignatureVerifier
	provisioning ProvisioningUseCase
	publisher    adapter.EventPublisher
	locker       Locker
	opts         WebhookOptions
	now          func() time.Time
	log          *zerolog.Logger
}

// NewWebhookUseCase wires the reconciler. publisher and locker may be nil.
func NewWebhookUseCase(
	payments repository.PaymentRepository,
	events repository.WebhookEventRepository,
	tm repository.TransactionManager,
	verifier adapter.SignatureVerifier,
	provisioning ProvisioningUseCase,
	publisher adapter.EventPublisher,
	locker Locker,
	opts WebhookOptions,
	logger *zerolog.Logger,
) *webhookUC {
	if opts.StoreTimeout <= 0 {
		opts.StoreTimeout = 3 * time.Second
	}
	if opts.LockTTL <= 0 {
		opts.LockTTL = 30 * time.Second
	}
	l := logger.With().Str("component", "WebhookUC").Logger()
	return &webhookUC{
		payments:     payments,
		events:       events,
		tm:           tm,
		verifier:     verifier,
		provisioning: provisioning,
		publisher:    publisher,
		locker:       locker,
		opts:         opts,
		now:          time.Now,
		log:          &l,
	}
}

// statusUpdate is the provider-agnostic input of the state updater.
type statusUpdate struct {
	refCode           string
	transactionStatus string
	fraudStatus       string
	raw               json.RawMessage
	source            string
}

func (u *webhookUC) Handle(ctx context.Context, n *model.Notification) (*WebhookOutcome, error) {
	if n == nil || strings.TrimSpace(n.Reference()) == "" {
		return nil, domain.ErrInvalidPayload
	}
	log := logging.With(logging.WithRefCode(ctx, n.Reference()), u.log)

	upd := statusUpdate{
		refCode:           strings.TrimSpace(n.Reference()),
		transactionStatus: n.TransactionStatus,
		fraudStatus:       n.FraudStatus,
		raw:               n.Raw,
		source:            "webhook",
	}

	switch {
	case n.Simulated():
		if !u.opts.AllowSimulated {
			log.Warn().Msg("simulated payment rejected: simulation disabled")
			return nil, domain.ErrInvalidSignature
		}
		log.Warn().Msg("accepting simulated payment notification")
		upd.transactionStatus = "settlement"
		upd.fraudStatus = ""
		upd.source = "simulate"
	case !n.Signed():
		if !u.opts.AllowUnsigned {
			log.Warn().Msg("unsigned notification rejected")
			return nil, domain.ErrInvalidSignature
		}
		log.Warn().Msg("accepting unsigned notification (allow_unsigned=true)")
	case !u.verifier.Verify(n):
		log.Warn().
			Str("signature_key", logging.Redact(n.SignatureKey, u.opts.Dev)).
			Str("status_code", n.StatusCode).
			Msg("signature mismatch")
		return nil, domain.ErrInvalidSignature
	}

	return u.process(ctx, upd)
}

func (u *webhookUC) ApplyProviderStatus(ctx context.Context, st *adapter.ProviderStatus) (*WebhookOutcome, error) {
	if st == nil || strings.TrimSpace(st.OrderID) == "" {
		return nil, domain.ErrInvalidPayload
	}
	return u.process(ctx, statusUpdate{
		refCode:           strings.TrimSpace(st.OrderID),
		transactionStatus: st.TransactionStatus,
		fraudStatus:       st.FraudStatus,
		raw:               json.RawMessage(st.Raw),
		source:            "status_query",
	})
}

func (u *webhookUC) process(ctx context.Context, upd statusUpdate) (*WebhookOutcome, error) {
	ctx = logging.WithRefCode(ctx, upd.refCode)
	log := logging.With(ctx, u.log)

	if u.locker != nil {
		key := "payment:webhook:" + upd.refCode
		token, err := u.locker.TryLock(ctx, key, u.opts.LockTTL)
		switch {
		case errors.Is(err, domain.ErrLockNotAcquired):
			return nil, domain.ErrLockNotAcquired
		case err != nil:
			// The payment row lock still serializes concurrent deliveries.
			log.Warn().Err(err).Msg("webhook lock unavailable; continuing on the row lock")
		default:
			defer func() {
				if err := u.locker.Unlock(context.WithoutCancel(ctx), key, token); err != nil {
					log.Warn().Err(err).Msg("unlock failed; lock will expire")
				}
			}()
		}
	}

	tr, err := u.applyStatus(ctx, upd)
	if err != nil {
		return nil, err
	}
	p := tr.Payment
	// The payment is committed; a client disconnect must not abort the side effects.
	ctx = context.WithoutCancel(ctx)
	log.Info().
		Str("source", upd.source).
		Str("transaction_status", upd.transactionStatus).
		Str("previous", string(tr.Previous)).
		Str("status", string(tr.Current)).
		Msg("payment status applied")

	if tr.Derived != tr.Current {
		log.Warn().Str("derived", string(tr.Derived)).Msg("late notification ignored for terminal payment")
	}
	if tr.Changed() {
		metrics.IncPaymentTransition(string(tr.Previous), string(tr.Current))
		if tr.BecamePaid() {
			metrics.AddPaidAmount(p.Currency, string(p.Type), p.Amount)
		}
		u.publish(ctx, tr)
	}

	evID := u.recordEvent(ctx, p, upd, tr.Derived)

	out := &WebhookOutcome{Transition: tr}
	if !tr.BecamePaid() {
		u.markEvent(ctx, evID, model.WebhookHandled, "")
		return out, nil
	}

	out.Report = u.provisioning.Dispatch(ctx, p)
	if fails := out.Report.Failures(); len(fails) > 0 {
		msgs := make([]string, 0, len(fails))
		for _, f := range fails {
			msgs = append(msgs, f.Error())
		}
		u.markEvent(ctx, evID, model.WebhookHandleFailed, strings.Join(msgs, "; "))
	} else {
		u.markEvent(ctx, evID, model.WebhookHandled, "")
	}
	return out, nil
}

// applyStatus is the payment state updater: lock the row, derive and persist the status.
func (u *webhookUC) applyStatus(ctx context.Context, upd statusUpdate) (model.Transition, error) {
	derived := model.DerivePaymentStatus(upd.transactionStatus, upd.fraudStatus)

	sctx, cancel := context.WithTimeout(ctx, u.opts.StoreTimeout)
	defer cancel()

	var tr model.Transition
	err := u.tm.WithTx(sctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		p, err := u.payments.FindByRefCode(ctx, tx, upd.refCode)
		if err != nil {
			return err
		}
		next := model.NextPaymentStatus(p.Status, derived)
		if err := u.payments.UpdateStatus(ctx, tx, p.ID, next, upd.raw); err != nil {
			return err
		}
		now := u.now()
		prev := p.Status
		p.Status = next
		p.ProviderResponse = upd.raw
		p.UpdatedAt = now
		if next == model.PaymentStatusPaid && p.PaidAt == nil {
			p.PaidAt = &now
		}
		tr = model.Transition{Payment: p, Previous: prev, Current: next, Derived: derived}
		return nil
	})
	if err != nil {
		if errors.Is(err, domain.ErrPaymentNotFound) {
			return model.Transition{}, domain.ErrPaymentNotFound
		}
		return model.Transition{}, &PersistenceError{Op: "apply payment status", Err: err}
	}
	return tr, nil
}

func (u *webhookUC) publish(ctx context.Context, tr model.Transition) {
	if u.publisher == nil {
		return
	}
	p := tr.Payment
	ev := adapter.PaymentStatusChanged{
		RefCode:    p.RefCode,
		PaymentID:  p.ID,
		UserID:     p.UserID,
		Type:       p.Type,
		Previous:   tr.Previous,
		Status:     tr.Current,
		Amount:     p.Amount,
		OccurredAt: u.now(),
	}
	if err := u.publisher.PublishPaymentStatusChanged(ctx, ev); err != nil {
		logging.With(ctx, u.log).Warn().Err(err).Msg("publish payment status event failed")
	}
}

// recordEvent writes the audit row; failures are logged only.
func (u *webhookUC) recordEvent(ctx context.Context, p *model.Payment, upd statusUpdate, derived model.PaymentStatus) string {
	if u.events == nil {
		return ""
	}
	ev := &model.WebhookEvent{
		ID:                ulid.Make().String(),
		PaymentID:         p.ID,
		RefCode:           p.RefCode,
		TransactionStatus: upd.transactionStatus,
		DerivedStatus:     derived,
		Payload:           upd.raw,
		Result:            model.WebhookReceived,
		CreatedAt:         u.now(),
	}
	sctx, cancel := context.WithTimeout(ctx, u.opts.StoreTimeout)
	defer cancel()
	if err := u.events.Save(sctx, nil, ev); err != nil {
		logging.With(ctx, u.log).Warn().Err(err).Msg("record webhook event failed")
		return ""
	}
	return ev.ID
}

func (u *webhookUC) markEvent(ctx context.Context, id string, result model.WebhookResult, msg string) {
	if u.events == nil || id == "" {
		return
	}
	sctx, cancel := context.WithTimeout(ctx, u.opts.StoreTimeout)
	defer cancel()
	if err := u.events.MarkResult(sctx, nil, id, result, msg); err != nil {
		logging.With(ctx, u.log).Warn().Err(err).Msg("update webhook event failed")
	}
}
