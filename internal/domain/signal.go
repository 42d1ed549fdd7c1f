package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// TradeSignal is a copy-trade request produced by an external signal source.
// Signals are ephemeral: they are validated once at the coordinator boundary
// and never persisted.
type TradeSignal struct {
	TradeID    string          `json:"trade_id"`
	MarketID   string          `json:"market_id"`
	Side       OrderSide       `json:"side"`
	Amount     decimal.Decimal `json:"amount"`
	Price      decimal.Decimal `json:"price"`
	Confidence float64         `json:"confidence"`
	CreatedAt  time.Time       `json:"created_at"`
}

// Validate checks the signal for structural problems. All failures wrap
// ErrValidation so callers can classify them without string matching.
func (s TradeSignal) Validate() error {
	if s.TradeID == "" {
		return fmt.Errorf("%w: empty trade_id", ErrValidation)
	}
	if s.MarketID == "" {
		return fmt.Errorf("%w: empty market_id", ErrValidation)
	}
	if !s.Side.Valid() {
		return fmt.Errorf("%w: unknown side %q", ErrValidation, s.Side)
	}
	if !s.Amount.IsPositive() {
		return fmt.Errorf("%w: amount must be > 0, got %s", ErrValidation, s.Amount)
	}
	if !s.Price.IsPositive() {
		return fmt.Errorf("%w: price must be > 0, got %s", ErrValidation, s.Price)
	}
	if s.Confidence < 0 || s.Confidence > 1 {
		return fmt.Errorf("%w: confidence must be in [0,1], got %f", ErrValidation, s.Confidence)
	}
	return nil
}
