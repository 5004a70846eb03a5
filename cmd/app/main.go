// File: cmd/app/main.go
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"wellness-payments/internal/application"
	"wellness-payments/internal/config"
	"wellness-payments/internal/infra/api"
	"wellness-payments/internal/infra/logging"
	"wellness-payments/internal/infra/metrics"
	"wellness-payments/internal/infra/sched"
	"wellness-payments/internal/infra/web"
	"wellness-payments/internal/infra/worker"
)

var (
	version = "dev"
	commit  = "none"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (console logs, simulated provider)")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	metrics.MustRegister()
	metrics.SetBuildInfo(version, commit)
	if cfg.Runtime.Dev {
		logger.Warn().Msg("[DEV MODE] Enabled")
	}
	if cfg.Payment.Simulate.Enabled {
		logger.Warn().Msg("simulated payment notifications are accepted")
	}

	// ---- Stores and use cases ----
	app, err := application.Build(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("bootstrap failed")
	}
	defer app.Close()

	// ---- Webhook API ----
	router := api.NewRouter(cfg.HTTP, app.Webhook, app.Payments, logger)
	srv := api.NewServer(cfg.HTTP, router, logger)
	go func() {
		if err := srv.Start(); err != nil {
			logger.Error().Err(err).Msg("http server error")
			cancel()
		}
	}()

	// ---- Admin API ----
	var admin *web.HTTPServer
	if cfg.Admin.Addr != "" {
		auth := web.NewAuthManager(cfg.Admin.JWTSecret, !cfg.Runtime.Dev, cfg.Admin.TokenTTL)
		var limiter web.LoginLimiter
		if rl := app.LoginLimiter(); rl != nil {
			limiter = rl
		}
		adminSrv := web.NewServer(
			app.Reconcile,
			app.Payments,
			web.Credentials{Username: cfg.Admin.Username, Password: cfg.Admin.Password},
			auth,
			limiter,
			logger,
		).WithReconcileDefaults(cfg.Payment.Reconcile.PendingAfter, cfg.Payment.Reconcile.BatchSize)
		admin = web.NewHTTPServer(cfg.Admin.Addr, adminSrv)
		go func() {
			if err := admin.Start(); err != nil {
				logger.Error().Err(err).Msg("admin server error")
			}
		}()
	}

	// ---- Background workers ----
	pool := worker.NewPool(cfg.Payment.Reconcile.Workers, logger)
	pool.Start(ctx)
	rc := cfg.Payment.Reconcile
	retry := sched.NewProvisioningRetryWorker(app.Reconcile, pool, rc.RetryEvery, rc.BatchSize, logger)
	go func() { _ = retry.Run(ctx) }()
	if rc.Enabled {
		reconciler := sched.NewPaymentReconciler(app.Reconcile, rc.Interval, rc.PendingAfter, rc.BatchSize, logger)
		go func() { _ = reconciler.Run(ctx) }()
	}
	go reportPoolStats(ctx, app, logger)

	// ---- Graceful shutdown ----
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigc:
		logger.Info().Msg("shutdown requested")
	case <-ctx.Done():
	}
	cancel()

	shutdownCtx, done := context.WithTimeout(context.Background(), 10*time.Second)
	defer done()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown")
	}
	if admin != nil {
		if err := admin.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("admin shutdown")
		}
	}
	pool.Stop()
	logger.Info().Msg("bye")
}

func reportPoolStats(ctx context.Context, app *application.App, logger *zerolog.Logger) {
	t := time.NewTicker(15 * time.Second)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			st := app.DB.Stat()
			metrics.ObserveDBPool(st)
			logger.Trace().Int32("total", st.TotalConns()).Int32("idle", st.IdleConns()).Msg("db pool stats")
		}
	}
}
