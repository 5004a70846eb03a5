package sched

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"wellness-payments/internal/infra/metrics"
	"wellness-payments/internal/usecase"
)

const jobReconcilePending = "reconcile_pending"

// PaymentReconciler periodically asks the provider about payments still pending after
// staleAfter. It covers webhooks that never arrived or were rejected while we were down.
type PaymentReconciler struct {
	uc         usecase.ReconcileUseCase
	interval   time.Duration
	staleAfter time.Duration
	batch      int
	log        *zerolog.Logger
}

func NewPaymentReconciler(uc usecase.ReconcileUseCase, interval, staleAfter time.Duration, batch int, logger *zerolog.Logger) *PaymentReconciler {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	if staleAfter <= 0 {
		staleAfter = 30 * time.Minute
	}
	if batch <= 0 {
		batch = 50
	}
	l := logger.With().Str("component", "PaymentReconciler").Logger()
	return &PaymentReconciler{uc: uc, interval: interval, staleAfter: staleAfter, batch: batch, log: &l}
}

func (w *PaymentReconciler) Run(ctx context.Context) error {
	w.log.Info().Dur("interval", w.interval).Dur("stale_after", w.staleAfter).Msg("Starting payment reconciler")
	t := time.NewTicker(w.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Stopping payment reconciler")
			return ctx.Err()
		case <-t.C:
			_, _ = w.RunOnce(ctx)
		}
	}
}

// RunOnce performs a single sweep.
func (w *PaymentReconciler) RunOnce(ctx context.Context) (usecase.ReconcileSummary, error) {
	sum, err := w.uc.ReconcilePending(ctx, w.staleAfter, w.batch)
	if err != nil {
		metrics.IncJobRun(jobReconcilePending, "error")
		w.log.Error().Err(err).Msg("reconcile pending failed")
		return sum, err
	}
	metrics.IncJobRun(jobReconcilePending, "ok")
	metrics.AddJobItems(jobReconcilePending, "checked", sum.Checked)
	metrics.AddJobItems(jobReconcilePending, "updated", sum.Updated)
	metrics.AddJobItems(jobReconcilePending, "missing", sum.Missing)
	metrics.AddJobItems(jobReconcilePending, "error", sum.Errors)
	if sum.Checked > 0 {
		w.log.Info().
			Int("checked", sum.Checked).
			Int("updated", sum.Updated).
			Int("missing", sum.Missing).
			Int("errors", sum.Errors).
			Msg("pending payments reconciled")
	}
	return sum, nil
}
