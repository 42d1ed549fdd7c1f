package coordinator

import (
	"context"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/copybotio/copybot/internal/domain"
	"github.com/copybotio/copybot/internal/retry"
)

// Close reasons reported to the journal and notifications.
const (
	closeReasonStopLoss   = "stop_loss"
	closeReasonTakeProfit = "take_profit"
)

// ManagePositions runs one supervision pass over every open position: fetch
// the current price, check the stop-loss / take-profit conditions, and close
// what triggered. Each price fetch is individually timed out; a timed-out
// position is simply left Open for the next pass.
func (c *Coordinator) ManagePositions(ctx context.Context) {
	for _, pos := range c.table.Snapshot() {
		if pos.Status != domain.PositionStatusOpen {
			continue
		}

		price, err := c.fetchPrice(ctx, pos.MarketID)
		if err != nil {
			c.logger.WarnContext(ctx, "price fetch failed, leaving position for next pass",
				slog.String("position_id", pos.ID),
				slog.String("error", err.Error()),
			)
			continue
		}

		reason := triggerReason(pos, price)
		if reason == "" {
			continue
		}
		c.closeTriggered(ctx, pos.ID, price, reason)
	}
}

// closeTriggered closes a position whose exit condition fired. The condition
// is re-checked under the position lock: a stale trigger racing a concurrent
// close must observe the already-closed position and no-op.
func (c *Coordinator) closeTriggered(ctx context.Context, id string, price decimal.Decimal, reason string) {
	entry, ok := c.table.lockExisting(id)
	if !ok {
		// Lost the race: the position was closed and removed concurrently.
		return
	}
	defer entry.mu.Unlock()

	if entry.pos.Status != domain.PositionStatusOpen {
		return
	}
	if triggerReason(entry.pos, price) != reason {
		return
	}

	rec, err := c.closeLocked(ctx, entry, price, reason)
	if err != nil {
		c.logger.ErrorContext(ctx, "triggered close failed, position stays open",
			slog.String("position_id", id),
			slog.String("reason", reason),
			slog.String("error", err.Error()),
		)
		return
	}
	c.table.remove(id)
	c.finalizeClose(ctx, rec)
}

// triggerReason reports which exit condition, if any, the current price has
// met for the position.
func triggerReason(pos domain.Position, price decimal.Decimal) string {
	switch pos.Side {
	case domain.OrderSideSell:
		if price.GreaterThanOrEqual(pos.StopLossPrice) {
			return closeReasonStopLoss
		}
		if price.LessThanOrEqual(pos.TakeProfitPrice) {
			return closeReasonTakeProfit
		}
	default:
		if price.LessThanOrEqual(pos.StopLossPrice) {
			return closeReasonStopLoss
		}
		if price.GreaterThanOrEqual(pos.TakeProfitPrice) {
			return closeReasonTakeProfit
		}
	}
	return ""
}

// fetchPrice reads the current price with a per-call timeout and bounded
// retry on transient failures. Reads are safe to retry; order placement is
// not and never goes through this path.
func (c *Coordinator) fetchPrice(ctx context.Context, marketID string) (decimal.Decimal, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, c.cfg.PriceTimeout)
	defer cancel()

	var price decimal.Decimal
	err := retry.Do(fetchCtx, retry.DefaultAttempts, func() error {
		p, err := c.client.GetCurrentPrice(fetchCtx, marketID)
		if err != nil {
			return err
		}
		price = p
		return nil
	})
	return price, err
}
