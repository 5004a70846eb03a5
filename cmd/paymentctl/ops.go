package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"wellness-payments/internal/application"
	"wellness-payments/internal/config"
	pg "wellness-payments/internal/infra/db/postgres"
	"wellness-payments/internal/infra/logging"
	"wellness-payments/internal/infra/sched"
	"wellness-payments/internal/infra/worker"
)

func migrateCmd() *cobra.Command {
	var steps int
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply the embedded database migrations",
		Long: `Applies the embedded schema migrations.

Examples:
  paymentctl migrate
  paymentctl migrate --steps -1`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(configPath, devMode)
			if err != nil {
				return err
			}
			if err := pg.Migrate(cfg.Database.URL, steps); err != nil {
				return err
			}
			v, dirty, err := pg.MigrationVersion(cfg.Database.URL)
			if err != nil {
				return fmt.Errorf("read schema version: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "schema version %d (dirty=%t)\n", v, dirty)
			return nil
		},
	}
	cmd.Flags().IntVar(&steps, "steps", 0, "number of steps; 0 migrates all the way up, negative rolls back")
	return cmd
}

func retryCmd() *cobra.Command {
	var limit, workers int
	cmd := &cobra.Command{
		Use:   "retry-provisioning",
		Short: "Retry open, retryable provisioning failures once",
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := bootstrap(cmd.Context())
			if err != nil {
				return err
			}
			defer env.close()
			ctx, app := env.ctx, env.app

			pool := worker.NewPool(workers, env.log)
			pool.Start(ctx)
			defer pool.Stop()

			w := sched.NewProvisioningRetryWorker(app.Reconcile, pool, time.Minute, limit, env.log)
			sum, err := w.RunOnce(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "payments=%d resolved=%d failing=%d errors=%d\n",
				sum.Payments, sum.Resolved, sum.Failing, sum.Errors)
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 50, "maximum failures to load")
	cmd.Flags().IntVar(&workers, "workers", 4, "concurrent retries")
	return cmd
}

func reconcileCmd() *cobra.Command {
	var (
		olderThan time.Duration
		limit     int
	)
	cmd := &cobra.Command{
		Use:   "reconcile-pending",
		Short: "Ask the provider about payments stuck in pending",
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := bootstrap(cmd.Context())
			if err != nil {
				return err
			}
			defer env.close()
			ctx, app := env.ctx, env.app
			if !app.Config.Payment.Reconcile.Enabled && !devMode {
				return fmt.Errorf("payment.reconcile.enabled is false")
			}

			w := sched.NewPaymentReconciler(app.Reconcile, time.Minute, olderThan, limit, env.log)
			sum, err := w.RunOnce(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "checked=%d updated=%d missing=%d errors=%d\n",
				sum.Checked, sum.Updated, sum.Missing, sum.Errors)
			return nil
		},
	}
	cmd.Flags().DurationVar(&olderThan, "older-than", 30*time.Minute, "only payments pending longer than this")
	cmd.Flags().IntVarP(&limit, "limit", "n", 50, "maximum payments to check")
	return cmd
}

type cliEnv struct {
	ctx    context.Context
	cancel context.CancelFunc
	app    *application.App
	log    *zerolog.Logger
}

func (e *cliEnv) close() {
	e.app.Close()
	e.cancel()
}

// bootstrap loads the config and wires the use cases. The context is cancelled on SIGINT.
func bootstrap(parent context.Context) (*cliEnv, error) {
	cfg, err := config.LoadConfig(configPath, devMode)
	if err != nil {
		return nil, err
	}
	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)

	app, err := application.Build(ctx, cfg, logger)
	if err != nil {
		cancel()
		return nil, err
	}
	return &cliEnv{ctx: ctx, cancel: cancel, app: app, log: logger}, nil
}
