// File: internal/usecase/provisioning_uc.go
package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
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
var _ ProvisioningUseCase = (*provisioningUC)(nil)

// ProvisioningUseCase grants what a paid payment bought.
type ProvisioningUseCase interface {
	// Dispatch runs the side effects for p's type and reports every step. Failed steps are
	// recorded in the dead-letter store; nothing here touches the payment row.
	Dispatch(ctx context.Context, p *model.Payment) model.ProvisioningReport
}

type ProvisioningOptions struct {
	StoreTimeout time.Duration
	Location     *time.Location // subscription dates are computed in this zone
}

type provisioningUC struct {
	subs     repository.SubscriptionRepository
	usage    repository.ChatUsageRepository
	plans    repository.SubscriptionPlanRepository
	bookings repository.BookingRepository
	channels repository.ChatChannelRepository
	failures repository.ProvisioningFailureRepository
	notifier adapter.OpsNotifier
	opts     ProvisioningOptions
	now      func() time.Time
	log      *zerolog.Logger
}

// NewProvisioningUseCase wires the dispatcher. failures and notifier may be nil.
func NewProvisioningUseCase(
	subs repository.SubscriptionRepository,
	usage repository.ChatUsageRepository,
	plans repository.SubscriptionPlanRepository,
	bookings repository.BookingRepository,
	channels repository.ChatChannelRepository,
	failures repository.ProvisioningFailureRepository,
	notifier adapter.OpsNotifier,
	opts ProvisioningOptions,
	logger *zerolog.Logger,
) *provisioningUC {
	if opts.StoreTimeout <= 0 {
		opts.StoreTimeout = 3 * time.Second
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	l := logger.With().Str("component", "ProvisioningUC").Logger()
	return &provisioningUC{
		subs:     subs,
		usage:    usage,
		plans:    plans,
		bookings: bookings,
		channels: channels,
		failures: failures,
		notifier: notifier,
		opts:     opts,
		now:      time.Now,
		log:      &l,
	}
}

func (u *provisioningUC) Dispatch(ctx context.Context, p *model.Payment) model.ProvisioningReport {
	ctx = logging.WithUserID(logging.WithRefCode(ctx, p.RefCode), p.UserID)
	log := logging.With(ctx, u.log)
	defer logging.TraceDuration(log, "ProvisioningUC.Dispatch")()

	var report model.ProvisioningReport
	switch p.Type {
	case model.PaymentTypeSubscription:
		report = u.activateSubscription(ctx, p)
	case model.PaymentTypeBooking:
		report = u.confirmBooking(ctx, p)
	default:
		report = model.ProvisioningReport{
			u.failed(p, model.StepUnknownType, false, fmt.Errorf("unsupported payment type %q", p.Type)),
		}
	}

	for _, o := range report {
		metrics.IncProvisioningStep(string(o.Step), string(o.Status))
		if o.Status == model.OutcomeFailed && o.Err != nil {
			log.Error().Err(o.Err.Err).
				Str("step", string(o.Step)).
				Bool("retryable", o.Err.Retryable).
				Msg("provisioning step failed")
			u.recordFailure(ctx, o.Err)
		}
	}
	return report
}

// --- subscription branch ---

func (u *provisioningUC) activateSubscription(ctx context.Context, p *model.Payment) model.ProvisioningReport {
	planID := p.Metadata.String(model.MetaPlanID)
	if planID == "" {
		return model.ProvisioningReport{
			u.failed(p, model.StepSubscriptionMetadata, false, errors.New("plan_id missing from payment metadata")),
			skipped(model.StepSubscriptionActivate),
			skipped(model.StepChatPremium),
		}
	}

	days := u.planDuration(ctx, planID)
	start := u.now().In(u.opts.Location)
	sub, err := model.NewActiveSubscription(uuid.NewString(), p.UserID, planID, p.RefCode, days, start)
	if err != nil {
		return model.ProvisioningReport{
			u.failed(p, model.StepSubscriptionActivate, false, fmt.Errorf("build subscription: %w", err)),
			skipped(model.StepChatPremium),
		}
	}

	sctx, cancel := context.WithTimeout(ctx, u.opts.StoreTimeout)
	stored, err := u.subs.Upsert(sctx, nil, sub)
	cancel()
	if err != nil {
		return model.ProvisioningReport{
			u.failed(p, model.StepSubscriptionActivate, true, err),
			skipped(model.StepChatPremium),
		}
	}
	metrics.IncSubscriptionsActivated()
	logging.With(ctx, u.log).Info().
		Str("subscription_id", stored.ID).
		Str("plan_id", planID).
		Time("end_date", stored.EndDate).
		Msg("subscription active")

	report := model.ProvisioningReport{ok(model.StepSubscriptionActivate)}

	sctx, cancel = context.WithTimeout(ctx, u.opts.StoreTimeout)
	err = u.usage.GrantPremium(sctx, nil, p.UserID, model.UnlimitedMessageQuota)
	cancel()
	if err != nil {
		return append(report, u.failed(p, model.StepChatPremium, true, err))
	}
	return append(report, ok(model.StepChatPremium))
}

// planDuration falls back to the default when the catalog has no usable answer.
func (u *provisioningUC) planDuration(ctx context.Context, planID string) int {
	sctx, cancel := context.WithTimeout(ctx, u.opts.StoreTimeout)
	defer cancel()
	days, err := u.plans.DurationDays(sctx, planID)
	if err != nil || days <= 0 {
		ev := logging.With(ctx, u.log).Warn().Str("plan_id", planID).Int("default_days", model.DefaultPlanDurationDays)
		if err != nil && !errors.Is(err, domain.ErrPlanNotFound) {
			ev = ev.Err(err)
		}
		ev.Msg("plan duration unavailable; using default")
		return model.DefaultPlanDurationDays
	}
	return days
}

// --- booking branch ---

func (u *provisioningUC) confirmBooking(ctx context.Context, p *model.Payment) model.ProvisioningReport {
	bookingID := p.Metadata.String(model.MetaSessionID)
	if bookingID == "" {
		bookingID = p.Metadata.String(model.MetaBookingID)
	}
	if bookingID == "" {
		return model.ProvisioningReport{
			u.failed(p, model.StepBookingMetadata, false, errors.New("session_id/booking_id missing from payment metadata")),
			skipped(model.StepBookingLoad),
			skipped(model.StepBookingMarkPaid),
			skipped(model.StepChatChannel),
		}
	}

	sctx, cancel := context.WithTimeout(ctx, u.opts.StoreTimeout)
	b, err := u.bookings.FindByID(sctx, nil, bookingID)
	cancel()
	if err != nil {
		// A missing booking means the metadata points nowhere; retrying will not help.
		retryable := !errors.Is(err, domain.ErrBookingNotFound)
		return model.ProvisioningReport{
			u.failed(p, model.StepBookingLoad, retryable, fmt.Errorf("load booking %s: %w", bookingID, err)),
			skipped(model.StepBookingMarkPaid),
			skipped(model.StepChatChannel),
		}
	}
	if b.UserID != p.UserID {
		return model.ProvisioningReport{
			u.failed(p, model.StepBookingLoad, false, fmt.Errorf("booking %s belongs to another user", bookingID)),
			skipped(model.StepBookingMarkPaid),
			skipped(model.StepChatChannel),
		}
	}
	if metaPro := p.Metadata.String(model.MetaProfessionalID); metaPro != "" && metaPro != b.ProfessionalID {
		logging.With(ctx, u.log).Warn().
			Str("booking_id", b.ID).
			Str("metadata_professional_id", metaPro).
			Str("booking_professional_id", b.ProfessionalID).
			Msg("professional mismatch; using booking")
	}
	report := model.ProvisioningReport{ok(model.StepBookingLoad)}

	sctx, cancel = context.WithTimeout(ctx, u.opts.StoreTimeout)
	_, err = u.bookings.MarkPaid(sctx, nil, b.ID, p.RefCode)
	cancel()
	if err != nil {
		return append(report,
			u.failed(p, model.StepBookingMarkPaid, true, err),
			skipped(model.StepChatChannel),
		)
	}
	report = append(report, ok(model.StepBookingMarkPaid))

	sctx, cancel = context.WithTimeout(ctx, u.opts.StoreTimeout)
	bid := b.ID
	ch, err := u.channels.UpsertForPair(sctx, nil, b.UserID, b.ProfessionalID, &bid)
	cancel()
	if err != nil {
		return append(report, u.failed(p, model.StepChatChannel, true, err))
	}
	logging.With(ctx, u.log).Info().
		Str("booking_id", b.ID).
		Str("channel_id", ch.ID).
		Msg("booking paid; chat channel ready")
	return append(report, ok(model.StepChatChannel))
}

// --- dead letter ---

func (u *provisioningUC) recordFailure(ctx context.Context, pe *model.ProvisioningError) {
	if u.failures == nil {
		return
	}
	f := &model.ProvisioningFailure{
		ID:        ulid.Make().String(),
		PaymentID: pe.PaymentID,
		RefCode:   pe.RefCode,
		Step:      pe.Step,
		Error:     pe.Err.Error(),
		Retryable: pe.Retryable,
	}
	sctx, cancel := context.WithTimeout(ctx, u.opts.StoreTimeout)
	stored, err := u.failures.Record(sctx, nil, f)
	cancel()
	if err != nil {
		logging.With(ctx, u.log).Error().Err(err).Str("step", string(pe.Step)).Msg("record provisioning failure failed")
		return
	}
	// Alert once per failure, not on every retry.
	if u.notifier != nil && stored.Attempts <= 1 {
		if err := u.notifier.NotifyProvisioningFailure(ctx, stored); err != nil {
			logging.With(ctx, u.log).Warn().Err(err).Msg("ops alert failed")
		}
	}
}

func (u *provisioningUC) failed(p *model.Payment, step model.ProvisioningStep, retryable bool, err error) model.ProvisioningOutcome {
	return model.ProvisioningOutcome{
		Step:   step,
		Status: model.OutcomeFailed,
		Err: &model.ProvisioningError{
			Step:      step,
			PaymentID: p.ID,
			RefCode:   p.RefCode,
			Retryable: retryable,
			Err:       err,
		},
	}
}

func ok(step model.ProvisioningStep) model.ProvisioningOutcome {
	return model.ProvisioningOutcome{Step: step, Status: model.OutcomeOK}
}

func skipped(step model.ProvisioningStep) model.ProvisioningOutcome {
	return model.ProvisioningOutcome{Step: step, Status: model.OutcomeSkipped}
}
