package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/copybotio/copybot/internal/breaker"
	"github.com/copybotio/copybot/internal/domain"
)

// BreakerStatus exposes the circuit breaker state for the status endpoint.
type BreakerStatus interface {
	Snapshot() breaker.State
}

// PositionLister exposes the coordinator's open position set.
type PositionLister interface {
	Positions() []domain.Position
}

// StatusHandler serves the combined bot status view.
type StatusHandler struct {
	breaker   BreakerStatus
	positions PositionLister
	logger    *slog.Logger
}

// NewStatusHandler creates a StatusHandler.
func NewStatusHandler(b BreakerStatus, p PositionLister, logger *slog.Logger) *StatusHandler {
	return &StatusHandler{breaker: b, positions: p, logger: logger}
}

type breakerView struct {
	Active            bool    `json:"active"`
	Reason            string  `json:"reason,omitempty"`
	ActivatedAt       *string `json:"activated_at,omitempty"`
	CooldownUntil     *string `json:"cooldown_until,omitempty"`
	DailyLoss         string  `json:"daily_loss"`
	MaxDailyLoss      string  `json:"max_daily_loss"`
	ConsecutiveLosses int     `json:"consecutive_losses"`
	LastResetDate     string  `json:"last_reset_date"`
}

type positionView struct {
	ID              string `json:"id"`
	TradeID         string `json:"trade_id"`
	OrderID         string `json:"order_id"`
	MarketID        string `json:"market_id"`
	Side            string `json:"side"`
	Size            string `json:"size"`
	EntryPrice      string `json:"entry_price"`
	StopLossPrice   string `json:"stop_loss_price"`
	TakeProfitPrice string `json:"take_profit_price"`
	Status          string `json:"status"`
	OpenedAt        string `json:"opened_at"`
}

type statusView struct {
	Breaker   breakerView    `json:"breaker"`
	Positions []positionView `json:"positions"`
}

// GetStatus returns the breaker state and all tracked positions.
// GET /api/status
func (h *StatusHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	state := h.breaker.Snapshot()

	view := statusView{
		Breaker: breakerView{
			Active:            state.Active,
			Reason:            state.Reason,
			ActivatedAt:       fmtTimePtr(state.ActivatedAt),
			CooldownUntil:     fmtTimePtr(state.CooldownUntil),
			DailyLoss:         state.DailyLoss.String(),
			MaxDailyLoss:      state.MaxDailyLoss.String(),
			ConsecutiveLosses: state.ConsecutiveLosses,
			LastResetDate:     state.LastResetDate,
		},
		Positions: []positionView{},
	}

	for _, pos := range h.positions.Positions() {
		view.Positions = append(view.Positions, positionView{
			ID:              pos.ID,
			TradeID:         pos.TradeID,
			OrderID:         pos.OrderID,
			MarketID:        pos.MarketID,
			Side:            string(pos.Side),
			Size:            pos.Size.String(),
			EntryPrice:      pos.EntryPrice.String(),
			StopLossPrice:   pos.StopLossPrice.String(),
			TakeProfitPrice: pos.TakeProfitPrice.String(),
			Status:          string(pos.Status),
			OpenedAt:        pos.OpenedAt.UTC().Format(time.RFC3339),
		})
	}

	writeJSON(w, http.StatusOK, view)
}

func fmtTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.UTC().Format(time.RFC3339)
	return &s
}
