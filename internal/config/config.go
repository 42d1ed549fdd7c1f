// Package config defines the top-level configuration for the copy-trading
// bot and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Config is the root configuration structure. Fields are populated from a
// TOML file and then optionally overridden by COPYBOT_* environment
// variables.
type Config struct {
	Breaker     BreakerConfig     `toml:"breaker"`
	Coordinator CoordinatorConfig `toml:"coordinator"`
	Exchange    ExchangeConfig    `toml:"exchange"`
	Feed        FeedConfig        `toml:"feed"`
	Redis       RedisConfig       `toml:"redis"`
	Postgres    PostgresConfig    `toml:"postgres"`
	S3          S3Config          `toml:"s3"`
	Archive     ArchiveConfig     `toml:"archive"`
	Server      ServerConfig      `toml:"server"`
	Notify      NotifyConfig      `toml:"notify"`
	LogLevel    string            `toml:"log_level"`
}

// BreakerConfig holds the circuit breaker limits and persistence location.
type BreakerConfig struct {
	// MaxDailyLoss is the daily loss limit as a decimal string, e.g. "500".
	MaxDailyLoss             string   `toml:"max_daily_loss"`
	ConsecutiveLossThreshold int      `toml:"consecutive_loss_threshold"`
	Cooldown                 duration `toml:"cooldown"`
	StateFile                string   `toml:"state_file"`
	CheckInterval            duration `toml:"check_interval"`
}

// CoordinatorConfig holds position sizing and supervision parameters. All
// monetary values are decimal strings so exact arithmetic survives the
// config round trip.
type CoordinatorConfig struct {
	// RiskBudgetFraction scales the breaker's max_daily_loss into the
	// per-trade risk budget.
	RiskBudgetFraction string   `toml:"risk_budget_fraction"`
	MinPositionSize    string   `toml:"min_position_size"`
	MaxPositionSize    string   `toml:"max_position_size"`
	StopLossPct        string   `toml:"stop_loss_pct"`
	TakeProfitPct      string   `toml:"take_profit_pct"`
	PriceEpsilon       string   `toml:"price_epsilon"`
	PriceTimeout       duration `toml:"price_timeout"`
	SuperviseInterval  duration `toml:"supervise_interval"`
	Markets            []string `toml:"markets"`
}

// ExchangeConfig holds the trading venue API endpoint and credentials.
type ExchangeConfig struct {
	BaseURL          string   `toml:"base_url"`
	APIKey           string   `toml:"api_key"`
	PriceCacheMaxAge duration `toml:"price_cache_max_age"`
}

// FeedConfig holds the websocket signal feed parameters.
type FeedConfig struct {
	URL              string   `toml:"url"`
	ReconnectMin     duration `toml:"reconnect_min"`
	ReconnectMax     duration `toml:"reconnect_max"`
	SignalBufferSize int      `toml:"signal_buffer_size"`
}

// RedisConfig holds Redis connection parameters. Leave Addr empty to run
// without the price cache.
type RedisConfig struct {
	Addr       string   `toml:"addr"`
	Password   string   `toml:"password"`
	DB         int      `toml:"db"`
	PoolSize   int      `toml:"pool_size"`
	MaxRetries int      `toml:"max_retries"`
	TLSEnabled bool     `toml:"tls_enabled"`
	PriceTTL   duration `toml:"price_ttl"`
}

// PostgresConfig holds trade journal connection parameters. Leave both DSN
// and Host empty to run without the journal.
type PostgresConfig struct {
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// S3Config holds S3-compatible object storage parameters for the archiver.
type S3Config struct {
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// ArchiveConfig controls the journal-to-S3 archival job.
type ArchiveConfig struct {
	Enabled       bool     `toml:"enabled"`
	RetentionDays int      `toml:"retention_days"`
	Interval      duration `toml:"interval"`
}

// ServerConfig holds the status HTTP server parameters.
type ServerConfig struct {
	Enabled bool `toml:"enabled"`
	Port    int  `toml:"port"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// duration is a wrapper around time.Duration that supports TOML string
// decoding (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with reasonable default values.
// These match the values in config.example.toml.
func Defaults() Config {
	return Config{
		Breaker: BreakerConfig{
			MaxDailyLoss:             "500",
			ConsecutiveLossThreshold: 5,
			Cooldown:                 duration{time.Hour},
			StateFile:                "data/breaker_state.json",
			CheckInterval:            duration{30 * time.Second},
		},
		Coordinator: CoordinatorConfig{
			RiskBudgetFraction: "0.02",
			MinPositionSize:    "1",
			MaxPositionSize:    "1000",
			StopLossPct:        "0.05",
			TakeProfitPct:      "0.10",
			PriceEpsilon:       "0.0001",
			PriceTimeout:       duration{5 * time.Second},
			SuperviseInterval:  duration{10 * time.Second},
		},
		Exchange: ExchangeConfig{
			BaseURL:          "https://api.venue.example/v1",
			PriceCacheMaxAge: duration{3 * time.Second},
		},
		Feed: FeedConfig{
			ReconnectMin:     duration{time.Second},
			ReconnectMax:     duration{30 * time.Second},
			SignalBufferSize: 64,
		},
		Redis: RedisConfig{
			PoolSize:   20,
			MaxRetries: 3,
			PriceTTL:   duration{time.Minute},
		},
		Postgres: PostgresConfig{
			Port:          5432,
			Database:      "copybot",
			User:          "copybot",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		S3: S3Config{
			Region:         "us-east-1",
			Bucket:         "copybot-data",
			UseSSL:         true,
			ForcePathStyle: true,
		},
		Archive: ArchiveConfig{
			Enabled:       false,
			RetentionDays: 90,
			Interval:      duration{24 * time.Hour},
		},
		Server: ServerConfig{
			Enabled: true,
			Port:    8000,
		},
		Notify: NotifyConfig{
			Events: []string{"position_opened", "position_closed", "breaker_activated", "breaker_recovered"},
		},
		LogLevel: "info",
	}
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks Config for obviously invalid or missing values and returns
// a combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Breaker
	if v, err := decimal.NewFromString(c.Breaker.MaxDailyLoss); err != nil || !v.IsPositive() {
		errs = append(errs, fmt.Sprintf("breaker: max_daily_loss must be a positive decimal, got %q", c.Breaker.MaxDailyLoss))
	}
	if c.Breaker.ConsecutiveLossThreshold < 1 {
		errs = append(errs, "breaker: consecutive_loss_threshold must be >= 1")
	}
	if c.Breaker.Cooldown.Duration <= 0 {
		errs = append(errs, "breaker: cooldown must be > 0")
	}
	if c.Breaker.StateFile == "" {
		errs = append(errs, "breaker: state_file must not be empty")
	}

	// Coordinator decimal fields.
	decFields := []struct {
		name  string
		value string
	}{
		{"risk_budget_fraction", c.Coordinator.RiskBudgetFraction},
		{"min_position_size", c.Coordinator.MinPositionSize},
		{"max_position_size", c.Coordinator.MaxPositionSize},
		{"stop_loss_pct", c.Coordinator.StopLossPct},
		{"take_profit_pct", c.Coordinator.TakeProfitPct},
		{"price_epsilon", c.Coordinator.PriceEpsilon},
	}
	for _, f := range decFields {
		if v, err := decimal.NewFromString(f.value); err != nil || !v.IsPositive() {
			errs = append(errs, fmt.Sprintf("coordinator: %s must be a positive decimal, got %q", f.name, f.value))
		}
	}
	minSize, errMin := decimal.NewFromString(c.Coordinator.MinPositionSize)
	maxSize, errMax := decimal.NewFromString(c.Coordinator.MaxPositionSize)
	if errMin == nil && errMax == nil && minSize.GreaterThan(maxSize) {
		errs = append(errs, "coordinator: min_position_size must not exceed max_position_size")
	}
	if c.Coordinator.PriceTimeout.Duration <= 0 {
		errs = append(errs, "coordinator: price_timeout must be > 0")
	}
	if c.Coordinator.SuperviseInterval.Duration <= 0 {
		errs = append(errs, "coordinator: supervise_interval must be > 0")
	}

	// Exchange
	if c.Exchange.BaseURL == "" {
		errs = append(errs, "exchange: base_url must not be empty")
	}
	if c.Exchange.APIKey == "" {
		errs = append(errs, "exchange: api_key must not be empty")
	}

	// Feed
	if c.Feed.URL == "" {
		errs = append(errs, "feed: url must not be empty")
	}
	if c.Feed.SignalBufferSize < 1 {
		errs = append(errs, "feed: signal_buffer_size must be >= 1")
	}

	// Redis is optional; when enabled the pool must be sane.
	if c.Redis.Addr != "" && c.Redis.PoolSize < 1 {
		errs = append(errs, "redis: pool_size must be >= 1")
	}

	// Postgres is optional; when enabled the pool must be sane.
	if c.postgresEnabled() {
		if c.Postgres.PoolMaxConns < 1 {
			errs = append(errs, "postgres: pool_max_conns must be >= 1")
		}
		if c.Postgres.PoolMinConns < 0 {
			errs = append(errs, "postgres: pool_min_conns must be >= 0")
		}
		if c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
			errs = append(errs, "postgres: pool_min_conns must not exceed pool_max_conns")
		}
	}

	// Archive requires both the journal and object storage.
	if c.Archive.Enabled {
		if !c.postgresEnabled() {
			errs = append(errs, "archive: requires postgres to be configured")
		}
		if c.S3.Endpoint == "" && c.S3.Bucket == "" {
			errs = append(errs, "archive: requires s3 to be configured")
		}
		if c.Archive.RetentionDays < 1 {
			errs = append(errs, "archive: retention_days must be >= 1")
		}
	}

	// Server
	if c.Server.Enabled {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

func (c *Config) postgresEnabled() bool {
	return strings.TrimSpace(c.Postgres.DSN) != "" || c.Postgres.Host != ""
}

// RedisEnabled reports whether a Redis price cache should be wired in.
func (c *Config) RedisEnabled() bool { return c.Redis.Addr != "" }

// PostgresEnabled reports whether the trade journal should be wired in.
func (c *Config) PostgresEnabled() bool { return c.postgresEnabled() }

// S3Enabled reports whether object storage should be wired in.
func (c *Config) S3Enabled() bool { return c.S3.Bucket != "" && c.S3.AccessKey != "" }
