// Package breaker implements the trading circuit breaker: a persisted state
// machine that halts copy-trading after excessive losses and automatically
// recovers once a cooldown has elapsed.
package breaker

import (
	"time"

	"github.com/shopspring/decimal"
)

// dateLayout is the UTC day key used for the daily loss window.
const dateLayout = "2006-01-02"

// State is an immutable snapshot of the breaker. The live value is owned by
// CircuitBreaker and replaced wholesale on every mutation; readers always
// receive copies.
type State struct {
	Active            bool
	Reason            string
	ActivatedAt       *time.Time
	CooldownUntil     *time.Time
	DailyLoss         decimal.Decimal
	MaxDailyLoss      decimal.Decimal
	ConsecutiveLosses int
	LastResetDate     string // UTC day, "2006-01-02"
}

// defaultState returns the inactive zero-counter state for the given limit,
// keyed to the current UTC day.
func defaultState(maxDailyLoss decimal.Decimal, now time.Time) State {
	return State{
		DailyLoss:     decimal.Zero,
		MaxDailyLoss:  maxDailyLoss,
		LastResetDate: now.UTC().Format(dateLayout),
	}
}
