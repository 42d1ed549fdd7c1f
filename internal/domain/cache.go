package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// PriceCache provides fast access to the latest known price per market.
type PriceCache interface {
	SetPrice(ctx context.Context, marketID string, price decimal.Decimal, ts time.Time) error
	GetPrice(ctx context.Context, marketID string) (decimal.Decimal, time.Time, error)
}
