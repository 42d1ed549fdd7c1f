package exchange

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/copybotio/copybot/internal/domain"
)

// PriceSource reads the current price for a market.
type PriceSource interface {
	GetCurrentPrice(ctx context.Context, marketID string) (decimal.Decimal, error)
}

// CachedPriceSource serves prices from a cache when they are fresh enough and
// falls through to the venue otherwise. Cache failures are logged and never
// surface: the venue remains the source of truth.
type CachedPriceSource struct {
	venue  PriceSource
	cache  domain.PriceCache
	maxAge time.Duration
	now    func() time.Time
	logger *slog.Logger
}

// NewCachedPriceSource wraps venue with a read-through price cache. Cached
// values older than maxAge are ignored.
func NewCachedPriceSource(venue PriceSource, cache domain.PriceCache, maxAge time.Duration, logger *slog.Logger) *CachedPriceSource {
	return &CachedPriceSource{
		venue:  venue,
		cache:  cache,
		maxAge: maxAge,
		now:    time.Now,
		logger: logger.With(slog.String("component", "price_source")),
	}
}

// CachedClient is a venue Client whose price reads go through a
// CachedPriceSource. Order placement always hits the venue directly.
type CachedClient struct {
	*Client
	prices *CachedPriceSource
}

// NewCachedClient layers the cached price source over the venue client.
func NewCachedClient(venue *Client, cache domain.PriceCache, maxAge time.Duration, logger *slog.Logger) *CachedClient {
	return &CachedClient{
		Client: venue,
		prices: NewCachedPriceSource(venue, cache, maxAge, logger),
	}
}

func (c *CachedClient) GetCurrentPrice(ctx context.Context, marketID string) (decimal.Decimal, error) {
	return c.prices.GetCurrentPrice(ctx, marketID)
}

// GetCurrentPrice returns the cached price if fresh, otherwise fetches from
// the venue and refreshes the cache.
func (s *CachedPriceSource) GetCurrentPrice(ctx context.Context, marketID string) (decimal.Decimal, error) {
	if price, ts, err := s.cache.GetPrice(ctx, marketID); err == nil {
		if s.now().Sub(ts) <= s.maxAge {
			return price, nil
		}
	}

	price, err := s.venue.GetCurrentPrice(ctx, marketID)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("price source: %w", err)
	}

	if err := s.cache.SetPrice(ctx, marketID, price, s.now()); err != nil {
		s.logger.WarnContext(ctx, "price cache update failed",
			slog.String("market", marketID),
			slog.String("error", err.Error()),
		)
	}
	return price, nil
}
