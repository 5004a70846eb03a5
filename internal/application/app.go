package application

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/rs/zerolog"

	"wellness-payments/internal/config"
	"wellness-payments/internal/domain/ports/adapter"
	"wellness-payments/internal/domain/ports/repository"
	payAdapters "wellness-payments/internal/infra/adapters/payment"
	tele "wellness-payments/internal/infra/adapters/telegram"
	pg "wellness-payments/internal/infra/db/postgres"
	"wellness-payments/internal/infra/events"
	"wellness-payments/internal/infra/payment"
	red "wellness-payments/internal/infra/redis"
	"wellness-payments/internal/usecase"
)

// App holds the wired use cases shared by the server binary and the ops CLI.
type App struct {
	Config *config.Config
	DB     *pgxpool.Pool
	Redis  *red.Client // nil when redis.url is empty

	Publisher    adapter.EventPublisher
	Provisioning usecase.ProvisioningUseCase
	Webhook      usecase.WebhookUseCase
	Payments     usecase.PaymentUseCase
	Reconcile    usecase.ReconcileUseCase

	log *zerolog.Logger
}

// Build connects the stores and composes the use cases. The caller owns Close.
func Build(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (*App, error) {
	if cfg.Database.MigrateOnBoot {
		if err := pg.Migrate(cfg.Database.URL, 0); err != nil {
			return nil, fmt.Errorf("migrate: %w", err)
		}
		logger.Info().Msg("database migrations applied")
	}

	pool, err := pg.Connect(ctx, cfg.Database.URL)
	if err != nil {
		return nil, fmt.Errorf("postgres: %w", err)
	}
	app := &App{Config: cfg, DB: pool, log: logger}

	var plans repository.SubscriptionPlanRepository = pg.NewPostgresPlanRepo(pool)
	var locker usecase.Locker
	if cfg.Redis.URL != "" {
		rc, err := red.NewClient(ctx, &cfg.Redis)
		if err != nil {
			pool.Close()
			return nil, fmt.Errorf("redis: %w", err)
		}
		app.Redis = rc
		locker = red.NewLocker(rc)
		plans = pg.NewPlanRepoCacheDecorator(plans, rc, cfg.Redis.TTL)
	} else {
		logger.Warn().Msg("redis.url is empty; webhook lock and plan cache disabled")
	}

	payments := pg.NewPaymentRepo(pool)
	webhookEvents := pg.NewWebhookEventRepo(pool)
	failures := pg.NewProvisioningFailureRepo(pool)

	var notifier adapter.OpsNotifier
	if cfg.Ops.TelegramToken != "" {
		n, err := tele.NewOpsNotifier(&cfg.Ops, logger)
		if err != nil {
			logger.Warn().Err(err).Msg("ops notifier unavailable; alerts go to the log")
			notifier = tele.NewNoopNotifier(logger)
		} else {
			notifier = n
		}
	} else {
		notifier = tele.NewNoopNotifier(logger)
	}

	if len(cfg.Kafka.Brokers) > 0 {
		app.Publisher = events.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic, logger)
	} else {
		app.Publisher = events.NewMemoryPublisher()
	}

	app.Provisioning = usecase.NewProvisioningUseCase(
		pg.NewSubscriptionRepo(pool),
		pg.NewChatUsageRepo(pool),
		plans,
		pg.NewBookingRepo(pool),
		pg.NewChatChannelRepo(pool),
		failures,
		notifier,
		usecase.ProvisioningOptions{StoreTimeout: cfg.Payment.StoreTimeout, Location: cfg.Location()},
		logger,
	)

	app.Webhook = usecase.NewWebhookUseCase(
		payments,
		webhookEvents,
		pg.NewTxManager(pool),
		payment.NewMidtransVerifier(cfg.Payment.Midtrans.ServerKey),
		app.Provisioning,
		app.Publisher,
		locker,
		usecase.WebhookOptions{
			AllowUnsigned:  cfg.Payment.Midtrans.AllowUnsigned,
			AllowSimulated: cfg.Payment.Simulate.Enabled,
			StoreTimeout:   cfg.Payment.StoreTimeout,
			LockTTL:        cfg.Payment.LockTTL,
			Dev:            cfg.Runtime.Dev,
		},
		logger,
	)

	app.Payments = usecase.NewPaymentUseCase(payments, webhookEvents)

	var provider adapter.PaymentStatusProvider
	switch {
	case cfg.Payment.Reconcile.Enabled:
		provider = payAdapters.NewMidtransStatusClient(cfg.Payment.Midtrans.ServerKey, cfg.Payment.Midtrans.Production)
	case cfg.Runtime.Dev:
		provider = payAdapters.NewNoopStatusProvider()
	}
	app.Reconcile = usecase.NewReconcileUseCase(
		payments,
		failures,
		app.Provisioning,
		app.Webhook,
		provider,
		cfg.Payment.Reconcile.MaxAttempts,
		logger,
	)
	return app, nil
}

// LoginLimiter returns the admin login throttle, or nil without Redis.
func (a *App) LoginLimiter() *red.RateLimiter {
	if a.Redis == nil {
		return nil
	}
	return red.NewRateLimiter(a.Redis)
}

// Close releases the publisher, Redis and the database pool in that order.
func (a *App) Close() {
	if a.Publisher != nil {
		if err := a.Publisher.Close(); err != nil {
			a.log.Warn().Err(err).Msg("close event publisher")
		}
	}
	if a.Redis != nil {
		_ = a.Redis.Close()
	}
	if a.DB != nil {
		a.DB.Close()
	}
}
