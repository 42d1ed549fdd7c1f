package exchange

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/copybotio/copybot/internal/domain"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestPlaceOrder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/orders", r.URL.Path)
		require.Equal(t, "test-key", r.Header.Get("X-API-Key"))

		var req orderRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "BTC-USD", req.MarketID)
		assert.Equal(t, "buy", req.Side)

		json.NewEncoder(w).Encode(orderResponse{
			OrderID:     "ord-123",
			FilledPrice: dec("50010.5"),
			Status:      "filled",
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "test-key")
	res, err := c.PlaceOrder(context.Background(), "BTC-USD", domain.OrderSideBuy, dec("0.5"), dec("50000"))
	require.NoError(t, err)
	assert.Equal(t, "ord-123", res.OrderID)
	assert.True(t, res.FilledPrice.Equal(dec("50010.5")))
	assert.Equal(t, domain.OrderStatusFilled, res.Status)
}

func TestPlaceOrderErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   error
	}{
		{"rejected", http.StatusBadRequest, domain.ErrOrderRejected},
		{"rate limited", http.StatusTooManyRequests, domain.ErrRateLimited},
		{"unknown market", http.StatusNotFound, domain.ErrUnknownMarket},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				json.NewEncoder(w).Encode(errorResponse{Code: "ERR", Message: "nope"})
			}))
			defer srv.Close()

			c := NewClient(srv.URL, "test-key")
			_, err := c.PlaceOrder(context.Background(), "BTC-USD", domain.OrderSideBuy, dec("1"), dec("100"))
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
		})
	}
}

func TestPlaceOrderVenueRejection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(orderResponse{OrderID: "ord-9", Status: "rejected"})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "test-key")
	_, err := c.PlaceOrder(context.Background(), "BTC-USD", domain.OrderSideBuy, dec("1"), dec("100"))
	require.ErrorIs(t, err, domain.ErrOrderRejected)
}

func TestGetCurrentPrice(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/markets/BTC-USD/ticker", r.URL.Path)
		json.NewEncoder(w).Encode(tickerResponse{MarketID: "BTC-USD", Price: dec("50123.45")})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "test-key")
	price, err := c.GetCurrentPrice(context.Background(), "BTC-USD")
	require.NoError(t, err)
	assert.True(t, price.Equal(dec("50123.45")))
}

func TestGetCurrentPriceMissing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(tickerResponse{MarketID: "BTC-USD"})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "test-key")
	_, err := c.GetCurrentPrice(context.Background(), "BTC-USD")
	require.ErrorIs(t, err, domain.ErrPriceUnavailable)
}

// memPriceCache is an in-memory domain.PriceCache for the cached source tests.
type memPriceCache struct {
	mu     sync.Mutex
	prices map[string]decimal.Decimal
	stamps map[string]time.Time
}

func newMemPriceCache() *memPriceCache {
	return &memPriceCache{
		prices: make(map[string]decimal.Decimal),
		stamps: make(map[string]time.Time),
	}
}

func (m *memPriceCache) SetPrice(_ context.Context, marketID string, price decimal.Decimal, ts time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prices[marketID] = price
	m.stamps[marketID] = ts
	return nil
}

func (m *memPriceCache) GetPrice(_ context.Context, marketID string) (decimal.Decimal, time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.prices[marketID]
	if !ok {
		return decimal.Decimal{}, time.Time{}, domain.ErrNotFound
	}
	return p, m.stamps[marketID], nil
}

type countingSource struct {
	mu    sync.Mutex
	calls int
	price decimal.Decimal
	err   error
}

func (s *countingSource) GetCurrentPrice(context.Context, string) (decimal.Decimal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return decimal.Decimal{}, s.err
	}
	return s.price, nil
}

func TestCachedPriceSourceServesFreshCache(t *testing.T) {
	venue := &countingSource{price: dec("100")}
	cache := newMemPriceCache()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	src := NewCachedPriceSource(venue, cache, time.Minute, logger)

	// First read misses the cache and hits the venue.
	p, err := src.GetCurrentPrice(context.Background(), "BTC-USD")
	require.NoError(t, err)
	assert.True(t, p.Equal(dec("100")))
	assert.Equal(t, 1, venue.calls)

	// Second read is served from the cache.
	p, err = src.GetCurrentPrice(context.Background(), "BTC-USD")
	require.NoError(t, err)
	assert.True(t, p.Equal(dec("100")))
	assert.Equal(t, 1, venue.calls)
}

func TestCachedPriceSourceIgnoresStaleEntry(t *testing.T) {
	venue := &countingSource{price: dec("105")}
	cache := newMemPriceCache()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	src := NewCachedPriceSource(venue, cache, time.Minute, logger)

	stale := time.Now().Add(-2 * time.Minute)
	require.NoError(t, cache.SetPrice(context.Background(), "BTC-USD", dec("100"), stale))

	p, err := src.GetCurrentPrice(context.Background(), "BTC-USD")
	require.NoError(t, err)
	assert.True(t, p.Equal(dec("105")))
	assert.Equal(t, 1, venue.calls)
}

func TestCachedPriceSourceVenueError(t *testing.T) {
	venue := &countingSource{err: domain.ErrPriceUnavailable}
	cache := newMemPriceCache()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	src := NewCachedPriceSource(venue, cache, time.Minute, logger)

	_, err := src.GetCurrentPrice(context.Background(), "BTC-USD")
	require.ErrorIs(t, err, domain.ErrPriceUnavailable)
}
