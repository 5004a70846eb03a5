// File: internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type HTTPConfig struct {
	Addr         string        `yaml:"addr"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	// RequestTimeout bounds a single webhook request end to end.
	RequestTimeout time.Duration `yaml:"request_timeout"`
	WebhookPath    string        `yaml:"webhook_path"`
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type DatabaseConfig struct {
	URL           string `yaml:"url"`
	MigrateOnBoot bool   `yaml:"migrate_on_boot"`
}

type RedisConfig struct {
	URL      string        `yaml:"url"` // empty disables the webhook lock and the plan cache
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`
}

type MidtransConfig struct {
	ServerKey     string `yaml:"server_key"`
	Production    bool   `yaml:"production"`
	AllowUnsigned bool   `yaml:"allow_unsigned"`
}

type SimulateConfig struct {
	Enabled bool `yaml:"enabled"`
}

type ReconcileConfig struct {
	Enabled      bool          `yaml:"enabled"`
	Interval     time.Duration `yaml:"interval"`
	PendingAfter time.Duration `yaml:"pending_after"` // query provider for payments pending longer than this
	BatchSize    int           `yaml:"batch_size"`
	RetryEvery   time.Duration `yaml:"retry_every"` // provisioning dead-letter retry interval
	MaxAttempts  int           `yaml:"max_attempts"`
	Workers      int           `yaml:"workers"`
}

type PaymentConfig struct {
	Midtrans     MidtransConfig  `yaml:"midtrans"`
	Simulate     SimulateConfig  `yaml:"simulate"`
	StoreTimeout time.Duration   `yaml:"store_timeout"`
	LockTTL      time.Duration   `yaml:"lock_ttl"`
	Reconcile    ReconcileConfig `yaml:"reconcile"`
}

type AdminConfig struct {
	Addr      string        `yaml:"addr"` // empty disables the admin API
	Username  string        `yaml:"username"`
	Password  string        `yaml:"password"`
	JWTSecret string        `yaml:"jwt_secret"`
	TokenTTL  time.Duration `yaml:"token_ttl"`
}

type OpsConfig struct {
	TelegramToken  string `yaml:"telegram_token"` // empty disables ops alerts
	TelegramChatID int64  `yaml:"telegram_chat_id"`
}

type KafkaConfig struct {
	Brokers []string `yaml:"brokers"` // empty disables event publishing
	Topic   string   `yaml:"topic"`
}

type Config struct {
	HTTP     HTTPConfig     `yaml:"http"`
	Log      LogConfig      `yaml:"log"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Payment  PaymentConfig  `yaml:"payment"`
	Admin    AdminConfig    `yaml:"admin"`
	Ops      OpsConfig      `yaml:"ops"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Timezone string         `yaml:"timezone"`

	Runtime RuntimeConfig `yaml:"-"`
}

// LoadConfig reads the YAML file at path, expands ${ENV} references, applies defaults and
// validates the required keys.
func LoadConfig(path string, dev bool) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(b, dev)
}

// Parse is LoadConfig without the file read.
func Parse(b []byte, dev bool) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(b))), &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	applyDefaults(&cfg)

	// Minimal validation
	if cfg.Database.URL == "" {
		return nil, errors.New("database.url is required")
	}
	if cfg.Payment.Midtrans.ServerKey == "" {
		return nil, errors.New("payment.midtrans.server_key is required")
	}
	if cfg.Admin.Addr != "" && cfg.Admin.JWTSecret == "" {
		return nil, errors.New("admin.jwt_secret is required when admin.addr is set")
	}
	if _, err := time.LoadLocation(cfg.Timezone); err != nil {
		return nil, fmt.Errorf("timezone: %w", err)
	}

	cfg.Runtime.Dev = dev
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.HTTP.Addr == "" {
		cfg.HTTP.Addr = ":8080"
	}
	if cfg.HTTP.ReadTimeout <= 0 {
		cfg.HTTP.ReadTimeout = 10 * time.Second
	}
	if cfg.HTTP.WriteTimeout <= 0 {
		cfg.HTTP.WriteTimeout = 15 * time.Second
	}
	if cfg.HTTP.RequestTimeout <= 0 {
		cfg.HTTP.RequestTimeout = 10 * time.Second
	}
	if cfg.HTTP.WebhookPath == "" {
		cfg.HTTP.WebhookPath = "/api/v1/payments/webhook"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	cfg.Redis.TTL = normalizeTTL(cfg.Redis.TTL)

	p := &cfg.Payment
	if p.StoreTimeout <= 0 {
		p.StoreTimeout = 3 * time.Second
	}
	if p.LockTTL <= 0 {
		p.LockTTL = 30 * time.Second
	}
	if p.Reconcile.Interval <= 0 {
		p.Reconcile.Interval = 5 * time.Minute
	}
	if p.Reconcile.PendingAfter <= 0 {
		p.Reconcile.PendingAfter = 30 * time.Minute
	}
	if p.Reconcile.BatchSize <= 0 {
		p.Reconcile.BatchSize = 50
	}
	if p.Reconcile.RetryEvery <= 0 {
		p.Reconcile.RetryEvery = 2 * time.Minute
	}
	if p.Reconcile.MaxAttempts <= 0 {
		p.Reconcile.MaxAttempts = 10
	}
	if p.Reconcile.Workers <= 0 {
		p.Reconcile.Workers = 4
	}

	if cfg.Admin.TokenTTL <= 0 {
		cfg.Admin.TokenTTL = 12 * time.Hour
	}
	if cfg.Kafka.Topic == "" {
		cfg.Kafka.Topic = "payment.status_changed"
	}
	if cfg.Timezone == "" {
		cfg.Timezone = "UTC"
	}
}

func normalizeTTL(d time.Duration) time.Duration {
	if d <= 0 {
		return time.Hour
	}
	return d
}

// Location returns the configured timezone; callers get UTC if it cannot be loaded.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
