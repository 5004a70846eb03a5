// File: internal/usecase/reconcile_uc.go
package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"wellness-payments/internal/domain"
	"wellness-payments/internal/domain/model"
	"wellness-payments/internal/domain/ports/adapter"
	"wellness-payments/internal/domain/ports/repository"
	"wellness-payments/internal/infra/logging"
)

// Compile-time check
var _ ReconcileUseCase = (*reconcileUC)(nil)

// ReconcileSummary counts what one pending-payment sweep did.
type ReconcileSummary struct {
	Checked int
	Updated int
	Missing int // provider has no transaction for the ref_code
	Errors  int
}

// ReconcileUseCase repairs state the webhook path could not finish.
type ReconcileUseCase interface {
	// ListFailures returns open dead-letter rows. retryableOnly also applies the attempts cap.
	ListFailures(ctx context.Context, retryableOnly bool, limit int) ([]*model.ProvisioningFailure, error)
	// RetryPayment re-runs provisioning for a paid payment and resolves the steps that now succeed.
	RetryPayment(ctx context.Context, paymentID string) (model.ProvisioningReport, error)
	// RetryFailure is RetryPayment addressed by a dead-letter row id.
	RetryFailure(ctx context.Context, failureID string) (model.ProvisioningReport, error)
	// ReconcilePending asks the provider about payments pending longer than olderThan.
	ReconcilePending(ctx context.Context, olderThan time.Duration, limit int) (ReconcileSummary, error)
}

type reconcileUC struct {
	payments     repository.PaymentRepository
	failures     repository.ProvisioningFailureRepository
	provisioning ProvisioningUseCase
	webhook      WebhookUseCase
	provider     adapter.PaymentStatusProvider
	maxAttempts  int
	now          func() time.Time
	log          *zerolog.Logger
}

// NewReconcileUseCase wires the repair paths. provider may be nil, which disables
// ReconcilePending.
func NewReconcileUseCase(
	payments repository.PaymentRepository,
	failures repository.ProvisioningFailureRepository,
	provisioning ProvisioningUseCase,
	webhook WebhookUseCase,
	provider adapter.PaymentStatusProvider,
	maxAttempts int,
	logger *zerolog.Logger,
) *reconcileUC {
	l := logger.With().Str("component", "ReconcileUC").Logger()
	return &reconcileUC{
		payments:     payments,
		failures:     failures,
		provisioning: provisioning,
		webhook:      webhook,
		provider:     provider,
		maxAttempts:  maxAttempts,
		now:          time.Now,
		log:          &l,
	}
}

func (u *reconcileUC) ListFailures(ctx context.Context, retryableOnly bool, limit int) ([]*model.ProvisioningFailure, error) {
	maxAttempts := 0
	if retryableOnly {
		maxAttempts = u.maxAttempts
	}
	return u.failures.ListOpen(ctx, nil, retryableOnly, maxAttempts, limit)
}

func (u *reconcileUC) RetryPayment(ctx context.Context, paymentID string) (model.ProvisioningReport, error) {
	p, err := u.payments.FindByID(ctx, nil, paymentID)
	if err != nil {
		return nil, err
	}
	if p.Status != model.PaymentStatusPaid {
		return nil, fmt.Errorf("%w: payment %s is %s, not paid", domain.ErrInvalidArgument, p.RefCode, p.Status)
	}

	log := logging.With(logging.WithRefCode(ctx, p.RefCode), u.log)
	report := u.provisioning.Dispatch(ctx, p)
	for _, o := range report {
		if o.Status != model.OutcomeOK {
			continue
		}
		if err := u.failures.Resolve(ctx, nil, p.ID, o.Step); err != nil {
			log.Warn().Err(err).Str("step", string(o.Step)).Msg("resolve provisioning failure failed")
		}
	}
	// Metadata problems are reported under the metadata step; a successful branch clears them too.
	if report.OK() {
		for _, step := range []model.ProvisioningStep{model.StepSubscriptionMetadata, model.StepBookingMetadata, model.StepUnknownType} {
			if _, ran := report.Outcome(step); !ran {
				if err := u.failures.Resolve(ctx, nil, p.ID, step); err != nil {
					log.Warn().Err(err).Str("step", string(step)).Msg("resolve provisioning failure failed")
				}
			}
		}
	}
	log.Info().Bool("ok", report.OK()).Int("failed_steps", len(report.Failures())).Msg("provisioning retried")
	return report, nil
}

func (u *reconcileUC) RetryFailure(ctx context.Context, failureID string) (model.ProvisioningReport, error) {
	f, err := u.failures.FindByID(ctx, nil, failureID)
	if err != nil {
		return nil, err
	}
	if f.ResolvedAt != nil {
		return nil, fmt.Errorf("%w: failure %s already resolved", domain.ErrInvalidArgument, failureID)
	}
	return u.RetryPayment(ctx, f.PaymentID)
}

func (u *reconcileUC) ReconcilePending(ctx context.Context, olderThan time.Duration, limit int) (ReconcileSummary, error) {
	var sum ReconcileSummary
	if u.provider == nil {
		return sum, nil
	}
	list, err := u.payments.ListPendingOlderThan(ctx, nil, u.now().Add(-olderThan), limit)
	if err != nil {
		return sum, err
	}

	for _, p := range list {
		if ctx.Err() != nil {
			return sum, ctx.Err()
		}
		sum.Checked++
		log := logging.With(logging.WithRefCode(ctx, p.RefCode), u.log)

		st, err := u.provider.TransactionStatus(ctx, p.RefCode)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				sum.Missing++
				continue
			}
			sum.Errors++
			log.Warn().Err(err).Str("provider", u.provider.Name()).Msg("provider status query failed")
			continue
		}
		st.OrderID = p.RefCode

		out, err := u.webhook.ApplyProviderStatus(ctx, st)
		if err != nil {
			sum.Errors++
			log.Warn().Err(err).Msg("apply provider status failed")
			continue
		}
		if out.Transition.Changed() {
			sum.Updated++
		}
	}
	return sum, nil
}
