package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// PositionStatus tracks a copy-position through its lifecycle.
type PositionStatus string

const (
	PositionStatusPending PositionStatus = "pending"
	PositionStatusOpen    PositionStatus = "open"
	PositionStatusClosing PositionStatus = "closing"
	PositionStatusClosed  PositionStatus = "closed"
)

// PositionID builds the composite key under which a position is tracked.
// One position per market and side may be open at a time.
func PositionID(marketID string, side OrderSide) string {
	return marketID + ":" + string(side)
}

// Position is one open copy-trade exposure tracked until closed.
type Position struct {
	ID              string
	TradeID         string
	OrderID         string
	MarketID        string
	Side            OrderSide
	Size            decimal.Decimal
	EntryPrice      decimal.Decimal
	StopLossPrice   decimal.Decimal
	TakeProfitPrice decimal.Decimal
	Status          PositionStatus
	OpenedAt        time.Time
}

// RealizedPnL returns the profit (positive) or loss (negative) of closing
// the position at exitPrice.
func (p Position) RealizedPnL(exitPrice decimal.Decimal) decimal.Decimal {
	switch p.Side {
	case OrderSideSell:
		return p.EntryPrice.Sub(exitPrice).Mul(p.Size)
	default:
		return exitPrice.Sub(p.EntryPrice).Mul(p.Size)
	}
}
