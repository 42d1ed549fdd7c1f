package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/shopspring/decimal"

	s3blob "github.com/copybotio/copybot/internal/blob/s3"
	"github.com/copybotio/copybot/internal/breaker"
	"github.com/copybotio/copybot/internal/cache/redis"
	"github.com/copybotio/copybot/internal/config"
	"github.com/copybotio/copybot/internal/coordinator"
	"github.com/copybotio/copybot/internal/domain"
	"github.com/copybotio/copybot/internal/exchange"
	"github.com/copybotio/copybot/internal/journal/postgres"
	"github.com/copybotio/copybot/internal/notify"
)

// Dependencies bundles everything the running bot needs. It is constructed
// by Wire and torn down by the returned cleanup function.
type Dependencies struct {
	Registry    *prometheus.Registry
	Breaker     *breaker.CircuitBreaker
	Coordinator *coordinator.Coordinator
	Journal     domain.TradeJournal
	Archiver    *s3blob.Archiver
	Notifier    *notify.Notifier
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that
// should be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	deps.Registry = reg

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(cfg.Notify.TelegramToken, cfg.Notify.TelegramChatID))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	notifier := notify.New(senders, cfg.Notify.Events, logger)
	deps.Notifier = notifier

	// --- Circuit breaker ---
	maxDailyLoss, err := decimal.NewFromString(cfg.Breaker.MaxDailyLoss)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: breaker max_daily_loss: %w", err)
	}
	store := breaker.NewStateStore(cfg.Breaker.StateFile)
	cb := breaker.New(breaker.Config{
		MaxDailyLoss:             maxDailyLoss,
		ConsecutiveLossThreshold: cfg.Breaker.ConsecutiveLossThreshold,
		Cooldown:                 cfg.Breaker.Cooldown.Duration,
	}, store, logger,
		breaker.WithMetrics(breaker.NewMetrics(reg)),
		breaker.WithNotifyHook(func(event, title, message string) {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := notifier.Notify(ctx, event, title, message); err != nil {
				logger.Warn("breaker notification failed",
					slog.String("event", event),
					slog.String("error", err.Error()),
				)
			}
		}),
	)
	deps.Breaker = cb

	// --- Redis price cache (optional) ---
	var priceCache domain.PriceCache
	if cfg.RedisEnabled() {
		redisClient, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: redis: %w", err)
		}
		closers = append(closers, func() { _ = redisClient.Close() })
		priceCache = redis.NewPriceCache(redisClient, cfg.Redis.PriceTTL.Duration)
	}

	// --- Trade journal (optional) ---
	if cfg.PostgresEnabled() {
		pgClient, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:      cfg.Postgres.DSN,
			Host:     cfg.Postgres.Host,
			Port:     cfg.Postgres.Port,
			Database: cfg.Postgres.Database,
			User:     cfg.Postgres.User,
			Password: cfg.Postgres.Password,
			SSLMode:  cfg.Postgres.SSLMode,
			MaxConns: cfg.Postgres.PoolMaxConns,
			MinConns: cfg.Postgres.PoolMinConns,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres: %w", err)
		}
		closers = append(closers, pgClient.Close)

		if cfg.Postgres.RunMigrations {
			if err := pgClient.RunMigrations(ctx); err != nil {
				cleanup()
				return nil, nil, fmt.Errorf("wire: migrations: %w", err)
			}
		}
		deps.Journal = postgres.NewTradeJournal(pgClient.Pool())
	}

	// --- Object storage + archiver (optional) ---
	if cfg.Archive.Enabled && cfg.S3Enabled() && deps.Journal != nil {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}
		if err := s3Client.Health(ctx); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}

		retention := time.Duration(cfg.Archive.RetentionDays) * 24 * time.Hour
		deps.Archiver = s3blob.NewArchiver(s3blob.NewWriter(s3Client), deps.Journal, retention, logger)
	}

	// --- Exchange client ---
	venue := exchange.NewClient(cfg.Exchange.BaseURL, cfg.Exchange.APIKey)
	var client coordinator.OrderExecutionClient = venue
	if priceCache != nil {
		client = exchange.NewCachedClient(venue, priceCache, cfg.Exchange.PriceCacheMaxAge.Duration, logger)
	}

	// --- Coordinator ---
	coordCfg, err := buildCoordinatorConfig(cfg, maxDailyLoss)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	deps.Coordinator = coordinator.New(cb, client, deps.Journal, deps.Notifier, coordCfg, logger)

	return deps, cleanup, nil
}

// buildCoordinatorConfig converts the string-based config section into exact
// decimals. The per-trade risk budget is derived from the breaker's daily
// loss limit so the two stay proportional.
func buildCoordinatorConfig(cfg *config.Config, maxDailyLoss decimal.Decimal) (coordinator.Config, error) {
	parse := func(name, value string) (decimal.Decimal, error) {
		v, err := decimal.NewFromString(value)
		if err != nil {
			return decimal.Decimal{}, fmt.Errorf("wire: coordinator %s: %w", name, err)
		}
		return v, nil
	}

	fraction, err := parse("risk_budget_fraction", cfg.Coordinator.RiskBudgetFraction)
	if err != nil {
		return coordinator.Config{}, err
	}
	minSize, err := parse("min_position_size", cfg.Coordinator.MinPositionSize)
	if err != nil {
		return coordinator.Config{}, err
	}
	maxSize, err := parse("max_position_size", cfg.Coordinator.MaxPositionSize)
	if err != nil {
		return coordinator.Config{}, err
	}
	stopPct, err := parse("stop_loss_pct", cfg.Coordinator.StopLossPct)
	if err != nil {
		return coordinator.Config{}, err
	}
	takePct, err := parse("take_profit_pct", cfg.Coordinator.TakeProfitPct)
	if err != nil {
		return coordinator.Config{}, err
	}
	epsilon, err := parse("price_epsilon", cfg.Coordinator.PriceEpsilon)
	if err != nil {
		return coordinator.Config{}, err
	}

	return coordinator.Config{
		RiskBudget:        maxDailyLoss.Mul(fraction),
		MinPositionSize:   minSize,
		MaxPositionSize:   maxSize,
		StopLossPct:       stopPct,
		TakeProfitPct:     takePct,
		PriceEpsilon:      epsilon,
		PriceTimeout:      cfg.Coordinator.PriceTimeout.Duration,
		SuperviseInterval: cfg.Coordinator.SuperviseInterval.Duration,
		Markets:           cfg.Coordinator.Markets,
	}, nil
}
