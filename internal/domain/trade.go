package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// TradeRecord is one completed round trip (open and close) as written to the
// trade journal. Records are append-only history; the live position set is
// owned by the coordinator and never read back from the journal.
type TradeRecord struct {
	ID          string          `json:"id"`
	TradeID     string          `json:"trade_id"`
	MarketID    string          `json:"market_id"`
	Side        OrderSide       `json:"side"`
	Size        decimal.Decimal `json:"size"`
	EntryPrice  decimal.Decimal `json:"entry_price"`
	ExitPrice   decimal.Decimal `json:"exit_price"`
	RealizedPnL decimal.Decimal `json:"realized_pnl"`
	CloseReason string          `json:"close_reason"`
	OpenedAt    time.Time       `json:"opened_at"`
	ClosedAt    time.Time       `json:"closed_at"`
}
