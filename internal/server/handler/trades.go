package handler

import (
	"log/slog"
	"net/http"

	"github.com/copybotio/copybot/internal/domain"
)

// TradeHandler serves recent round trips from the trade journal.
type TradeHandler struct {
	journal domain.TradeJournal
	logger  *slog.Logger
}

// NewTradeHandler creates a TradeHandler. The journal may be nil when the
// bot runs without Postgres; the endpoint then reports 404.
func NewTradeHandler(journal domain.TradeJournal, logger *slog.Logger) *TradeHandler {
	return &TradeHandler{journal: journal, logger: logger.With(slog.String("handler", "trades"))}
}

// ListRecent returns the most recently closed trades.
// GET /api/trades?limit=50
func (h *TradeHandler) ListRecent(w http.ResponseWriter, r *http.Request) {
	if h.journal == nil {
		writeError(w, http.StatusNotFound, "trade journal not configured")
		return
	}

	limit := queryLimit(r, 50, 500)
	records, err := h.journal.ListRecent(r.Context(), limit)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "list recent trades failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "query failed")
		return
	}
	if records == nil {
		records = []domain.TradeRecord{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"trades": records,
		"count":  len(records),
	})
}
