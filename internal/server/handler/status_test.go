package handler

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/copybotio/copybot/internal/breaker"
	"github.com/copybotio/copybot/internal/domain"
)

type stubBreaker struct {
	state breaker.State
}

func (s *stubBreaker) Snapshot() breaker.State { return s.state }

type stubPositions struct {
	positions []domain.Position
}

func (s *stubPositions) Positions() []domain.Position { return s.positions }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestGetStatus(t *testing.T) {
	activated := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	until := activated.Add(time.Hour)

	b := &stubBreaker{state: breaker.State{
		Active:            true,
		Reason:            "daily loss limit reached",
		ActivatedAt:       &activated,
		CooldownUntil:     &until,
		DailyLoss:         decimal.RequireFromString("510.25"),
		MaxDailyLoss:      decimal.RequireFromString("500"),
		ConsecutiveLosses: 2,
		LastResetDate:     "2025-06-01",
	}}
	p := &stubPositions{positions: []domain.Position{{
		ID:         "BTC-USD:buy",
		MarketID:   "BTC-USD",
		Side:       domain.OrderSideBuy,
		Size:       decimal.RequireFromString("0.5"),
		EntryPrice: decimal.RequireFromString("50000"),
		Status:     domain.PositionStatusOpen,
		OpenedAt:   activated,
	}}}

	h := NewStatusHandler(b, p, testLogger())
	rec := httptest.NewRecorder()
	h.GetStatus(rec, httptest.NewRequest(http.MethodGet, "/api/status", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var view struct {
		Breaker struct {
			Active        bool   `json:"active"`
			Reason        string `json:"reason"`
			DailyLoss     string `json:"daily_loss"`
			CooldownUntil string `json:"cooldown_until"`
		} `json:"breaker"`
		Positions []struct {
			ID     string `json:"id"`
			Side   string `json:"side"`
			Status string `json:"status"`
		} `json:"positions"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))

	assert.True(t, view.Breaker.Active)
	assert.Equal(t, "daily loss limit reached", view.Breaker.Reason)
	assert.Equal(t, "510.25", view.Breaker.DailyLoss)
	assert.Equal(t, "2025-06-01T13:00:00Z", view.Breaker.CooldownUntil)

	require.Len(t, view.Positions, 1)
	assert.Equal(t, "BTC-USD:buy", view.Positions[0].ID)
	assert.Equal(t, "open", view.Positions[0].Status)
}

func TestGetStatusEmptyPositionsIsArray(t *testing.T) {
	h := NewStatusHandler(&stubBreaker{}, &stubPositions{}, testLogger())
	rec := httptest.NewRecorder()
	h.GetStatus(rec, httptest.NewRequest(http.MethodGet, "/api/status", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"positions":[]`)
}

func TestTradesWithoutJournal(t *testing.T) {
	h := NewTradeHandler(nil, testLogger())
	rec := httptest.NewRecorder()
	h.ListRecent(rec, httptest.NewRequest(http.MethodGet, "/api/trades", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHealthCheckReportsIdentityAndUptime(t *testing.T) {
	h := NewHealthHandler()
	rec := httptest.NewRecorder()
	h.HealthCheck(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "copybot", body["service"])
	assert.NotEmpty(t, body["uptime"])

	_, err := time.Parse(time.RFC3339, body["timestamp"])
	assert.NoError(t, err)
}
