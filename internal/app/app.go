// Package app provides the top-level application lifecycle for the
// copy-trading bot. It wires together the circuit breaker, coordinator,
// signal feed, journal, archiver, and status server, and runs them until
// shutdown.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/copybotio/copybot/internal/config"
	"github.com/copybotio/copybot/internal/domain"
	"github.com/copybotio/copybot/internal/feed"
	"github.com/copybotio/copybot/internal/server"
	"github.com/copybotio/copybot/internal/server/handler"
)

// App is the root application object. It owns the configuration, logger,
// and a list of cleanup functions that are called in reverse order on
// shutdown.
type App struct {
	cfg     *config.Config
	logger  *slog.Logger
	closers []func()
}

// New creates a new App from the given configuration and logger.
func New(cfg *config.Config, logger *slog.Logger) *App {
	return &App{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "app")),
	}
}

// Run wires all dependencies, starts the worker goroutines, and blocks
// until the context is cancelled or a worker fails.
func (a *App) Run(ctx context.Context) error {
	a.logger.InfoContext(ctx, "starting application",
		slog.String("log_level", a.cfg.LogLevel),
	)

	deps, cleanup, err := Wire(ctx, a.cfg, a.logger)
	if err != nil {
		return fmt.Errorf("app: wire dependencies: %w", err)
	}
	a.closers = append(a.closers, cleanup)

	g, ctx := errgroup.WithContext(ctx)

	// Signal feed → coordinator.
	signalCh := make(chan domain.TradeSignal, a.cfg.Feed.SignalBufferSize)
	signalFeed := feed.NewSignalFeed(
		a.cfg.Feed.URL,
		signalCh,
		a.cfg.Feed.ReconnectMin.Duration,
		a.cfg.Feed.ReconnectMax.Duration,
		a.logger,
	)
	g.Go(func() error {
		return signalFeed.Run(ctx)
	})
	g.Go(func() error {
		return deps.Coordinator.Run(ctx, signalCh)
	})

	// Breaker rollover and cooldown recovery between trades.
	g.Go(func() error {
		ticker := time.NewTicker(a.cfg.Breaker.CheckInterval.Duration)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
				deps.Breaker.PeriodicCheck()
			}
		}
	})

	// Journal archival.
	if deps.Archiver != nil {
		g.Go(func() error {
			return deps.Archiver.Run(ctx, a.cfg.Archive.Interval.Duration)
		})
	}

	// Status server.
	if a.cfg.Server.Enabled {
		srv := server.NewServer(
			server.Config{Port: a.cfg.Server.Port},
			server.Handlers{
				Health: handler.NewHealthHandler(),
				Status: handler.NewStatusHandler(deps.Breaker, deps.Coordinator, a.logger),
				Trades: handler.NewTradeHandler(deps.Journal, a.logger),
			},
			deps.Registry,
			a.logger,
		)
		g.Go(srv.Start)
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	return g.Wait()
}

// Close tears down all resources in reverse registration order. It is safe
// to call multiple times; subsequent calls are no-ops.
func (a *App) Close() {
	a.logger.Info("shutting down application")
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
