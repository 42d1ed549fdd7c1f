package coordinator

import (
	"github.com/shopspring/decimal"

	"github.com/copybotio/copybot/internal/domain"
)

// defaultPriceEpsilon floors the per-unit price risk at 0.01% of the entry
// price so a stop placed on top of the entry cannot blow up the division.
var defaultPriceEpsilon = decimal.RequireFromString("0.0001")

// bracketPrices derives the stop-loss and take-profit levels from the entry
// price and the configured percentages. For a long, the stop sits below the
// entry and the target above; shorts mirror.
func bracketPrices(entry decimal.Decimal, side domain.OrderSide, stopPct, takePct decimal.Decimal) (stop, take decimal.Decimal) {
	one := decimal.NewFromInt(1)
	switch side {
	case domain.OrderSideSell:
		stop = entry.Mul(one.Add(stopPct))
		take = entry.Mul(one.Sub(takePct))
	default:
		stop = entry.Mul(one.Sub(stopPct))
		take = entry.Mul(one.Add(takePct))
	}
	return stop, take
}

// positionSize converts the risk budget into a position size. All arithmetic
// is exact decimal: rounding error here would compound into the breaker's
// daily-loss accounting on every close.
//
//	priceRisk := max(|entry - stop|, entry * epsilon)
//	size      := clamp(riskBudget / priceRisk, minSize, maxSize)
func positionSize(entry, stop, riskBudget, minSize, maxSize, epsilon decimal.Decimal) decimal.Decimal {
	if epsilon.IsZero() {
		epsilon = defaultPriceEpsilon
	}

	priceRisk := entry.Sub(stop).Abs()
	if floor := entry.Mul(epsilon); priceRisk.LessThan(floor) {
		priceRisk = floor
	}

	size := riskBudget.Div(priceRisk)
	if size.LessThan(minSize) {
		return minSize
	}
	if size.GreaterThan(maxSize) {
		return maxSize
	}
	return size
}
