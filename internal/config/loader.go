package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies COPYBOT_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known COPYBOT_* environment variables and
// overwrites the corresponding Config fields when a variable is set. This
// lets operators inject secrets at deploy time without touching the TOML
// file.
func applyEnvOverrides(cfg *Config) {
	// ── Breaker ──
	setStr(&cfg.Breaker.MaxDailyLoss, "COPYBOT_BREAKER_MAX_DAILY_LOSS")
	setInt(&cfg.Breaker.ConsecutiveLossThreshold, "COPYBOT_BREAKER_CONSECUTIVE_LOSS_THRESHOLD")
	setDuration(&cfg.Breaker.Cooldown, "COPYBOT_BREAKER_COOLDOWN")
	setStr(&cfg.Breaker.StateFile, "COPYBOT_BREAKER_STATE_FILE")
	setDuration(&cfg.Breaker.CheckInterval, "COPYBOT_BREAKER_CHECK_INTERVAL")

	// ── Coordinator ──
	setStr(&cfg.Coordinator.RiskBudgetFraction, "COPYBOT_COORDINATOR_RISK_BUDGET_FRACTION")
	setStr(&cfg.Coordinator.MinPositionSize, "COPYBOT_COORDINATOR_MIN_POSITION_SIZE")
	setStr(&cfg.Coordinator.MaxPositionSize, "COPYBOT_COORDINATOR_MAX_POSITION_SIZE")
	setStr(&cfg.Coordinator.StopLossPct, "COPYBOT_COORDINATOR_STOP_LOSS_PCT")
	setStr(&cfg.Coordinator.TakeProfitPct, "COPYBOT_COORDINATOR_TAKE_PROFIT_PCT")
	setStr(&cfg.Coordinator.PriceEpsilon, "COPYBOT_COORDINATOR_PRICE_EPSILON")
	setDuration(&cfg.Coordinator.PriceTimeout, "COPYBOT_COORDINATOR_PRICE_TIMEOUT")
	setDuration(&cfg.Coordinator.SuperviseInterval, "COPYBOT_COORDINATOR_SUPERVISE_INTERVAL")
	setStringSlice(&cfg.Coordinator.Markets, "COPYBOT_COORDINATOR_MARKETS")

	// ── Exchange ──
	setStr(&cfg.Exchange.BaseURL, "COPYBOT_EXCHANGE_BASE_URL")
	setStr(&cfg.Exchange.APIKey, "COPYBOT_EXCHANGE_API_KEY")
	setDuration(&cfg.Exchange.PriceCacheMaxAge, "COPYBOT_EXCHANGE_PRICE_CACHE_MAX_AGE")

	// ── Feed ──
	setStr(&cfg.Feed.URL, "COPYBOT_FEED_URL")
	setDuration(&cfg.Feed.ReconnectMin, "COPYBOT_FEED_RECONNECT_MIN")
	setDuration(&cfg.Feed.ReconnectMax, "COPYBOT_FEED_RECONNECT_MAX")
	setInt(&cfg.Feed.SignalBufferSize, "COPYBOT_FEED_SIGNAL_BUFFER_SIZE")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "COPYBOT_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "COPYBOT_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "COPYBOT_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "COPYBOT_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "COPYBOT_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "COPYBOT_REDIS_TLS_ENABLED")
	setDuration(&cfg.Redis.PriceTTL, "COPYBOT_REDIS_PRICE_TTL")

	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "COPYBOT_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "COPYBOT_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "COPYBOT_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "COPYBOT_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "COPYBOT_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "COPYBOT_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "COPYBOT_POSTGRES_SSL_MODE")
	setInt(&cfg.Postgres.PoolMaxConns, "COPYBOT_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "COPYBOT_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "COPYBOT_POSTGRES_RUN_MIGRATIONS")

	// ── S3 ──
	setStr(&cfg.S3.Endpoint, "COPYBOT_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "COPYBOT_S3_REGION")
	setStr(&cfg.S3.Bucket, "COPYBOT_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "COPYBOT_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "COPYBOT_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "COPYBOT_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "COPYBOT_S3_FORCE_PATH_STYLE")

	// ── Archive ──
	setBool(&cfg.Archive.Enabled, "COPYBOT_ARCHIVE_ENABLED")
	setInt(&cfg.Archive.RetentionDays, "COPYBOT_ARCHIVE_RETENTION_DAYS")
	setDuration(&cfg.Archive.Interval, "COPYBOT_ARCHIVE_INTERVAL")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "COPYBOT_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "COPYBOT_SERVER_PORT")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "COPYBOT_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "COPYBOT_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "COPYBOT_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "COPYBOT_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.LogLevel, "COPYBOT_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
