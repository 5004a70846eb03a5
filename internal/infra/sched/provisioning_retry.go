package sched

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"wellness-payments/internal/infra/metrics"
	"wellness-payments/internal/infra/worker"
	"wellness-payments/internal/usecase"
)

const jobProvisioningRetry = "provisioning_retry"

// RetrySummary counts one pass over the dead-letter table.
type RetrySummary struct {
	Payments int // distinct payments retried
	Resolved int // payments whose provisioning now fully succeeds
	Failing  int // payments with at least one step still failing
	Errors   int // retries that could not run at all
}

// ProvisioningRetryWorker re-runs provisioning for payments with open, retryable failures.
type ProvisioningRetryWorker struct {
	uc       usecase.ReconcileUseCase
	pool     *worker.Pool
	interval time.Duration
	batch    int
	log      *zerolog.Logger
}

// NewProvisioningRetryWorker fans retries out over pool, which the caller starts and stops.
func NewProvisioningRetryWorker(uc usecase.ReconcileUseCase, pool *worker.Pool, interval time.Duration, batch int, logger *zerolog.Logger) *ProvisioningRetryWorker {
	if interval <= 0 {
		interval = 2 * time.Minute
	}
	if batch <= 0 {
		batch = 50
	}
	l := logger.With().Str("component", "ProvisioningRetryWorker").Logger()
	return &ProvisioningRetryWorker{uc: uc, pool: pool, interval: interval, batch: batch, log: &l}
}

func (w *ProvisioningRetryWorker) Run(ctx context.Context) error {
	w.log.Info().Dur("interval", w.interval).Msg("Starting provisioning retry worker")
	t := time.NewTicker(w.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Stopping provisioning retry worker")
			return ctx.Err()
		case <-t.C:
			_, _ = w.RunOnce(ctx)
		}
	}
}

// RunOnce retries each affected payment once and waits for all of them.
func (w *ProvisioningRetryWorker) RunOnce(ctx context.Context) (RetrySummary, error) {
	var sum RetrySummary
	failures, err := w.uc.ListFailures(ctx, true, w.batch)
	if err != nil {
		metrics.IncJobRun(jobProvisioningRetry, "error")
		w.log.Error().Err(err).Msg("list provisioning failures failed")
		return sum, err
	}

	// Several steps of one payment may be open; one Dispatch covers them all.
	seen := make(map[string]struct{}, len(failures))
	var paymentIDs []string
	for _, f := range failures {
		if _, ok := seen[f.PaymentID]; ok {
			continue
		}
		seen[f.PaymentID] = struct{}{}
		paymentIDs = append(paymentIDs, f.PaymentID)
	}

	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for _, id := range paymentIDs {
		wg.Add(1)
		err := w.pool.SubmitWait(ctx, func(ctx context.Context) error {
			defer wg.Done()
			report, err := w.uc.RetryPayment(ctx, id)
			mu.Lock()
			defer mu.Unlock()
			sum.Payments++
			switch {
			case err != nil:
				sum.Errors++
				return err
			case report.OK():
				sum.Resolved++
			default:
				sum.Failing++
			}
			return nil
		})
		if err != nil {
			wg.Done()
			w.log.Warn().Err(err).Str("payment_id", id).Msg("could not schedule provisioning retry")
			break
		}
	}
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		metrics.IncJobRun(jobProvisioningRetry, "cancelled")
		mu.Lock()
		defer mu.Unlock()
		return sum, ctx.Err()
	}

	metrics.IncJobRun(jobProvisioningRetry, "ok")
	metrics.AddJobItems(jobProvisioningRetry, "resolved", sum.Resolved)
	metrics.AddJobItems(jobProvisioningRetry, "failing", sum.Failing)
	metrics.AddJobItems(jobProvisioningRetry, "error", sum.Errors)
	if sum.Payments > 0 {
		w.log.Info().
			Int("payments", sum.Payments).
			Int("resolved", sum.Resolved).
			Int("failing", sum.Failing).
			Int("errors", sum.Errors).
			Msg("provisioning retries finished")
	}
	return sum, nil
}
