// Package coordinator implements the trade execution coordinator: it
// consumes copy-trade signals, consults the circuit breaker, sizes and
// places orders, and supervises open positions for stop-loss and take-profit
// exits, reporting every realized outcome back into the breaker.
package coordinator

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/copybotio/copybot/internal/domain"
)

// OrderExecutionClient is the venue interface through which the coordinator
// places orders and reads prices. Implemented by internal/exchange.
type OrderExecutionClient interface {
	PlaceOrder(ctx context.Context, marketID string, side domain.OrderSide, size, price decimal.Decimal) (domain.OrderResult, error)
	GetCurrentPrice(ctx context.Context, marketID string) (decimal.Decimal, error)
}

// TradeGate is the circuit breaker surface the coordinator depends on.
type TradeGate interface {
	CheckTradeAllowed(tradeID string) domain.GateDecision
	RecordLoss(amount decimal.Decimal)
	RecordProfit(amount decimal.Decimal)
	RecordTradeResult(success bool, tradeID string)
}

// Notifier delivers fire-and-forget operator notifications. Delivery
// failures are never fatal to the trading path.
type Notifier interface {
	Notify(ctx context.Context, event, title, message string) error
}

// Config holds the coordinator's sizing and supervision parameters.
type Config struct {
	// RiskBudget is the absolute amount put at risk per trade.
	RiskBudget      decimal.Decimal
	MinPositionSize decimal.Decimal
	MaxPositionSize decimal.Decimal
	StopLossPct     decimal.Decimal
	TakeProfitPct   decimal.Decimal
	// PriceEpsilon floors the stop distance as a fraction of the entry price.
	PriceEpsilon decimal.Decimal
	// PriceTimeout bounds each individual price fetch during supervision.
	PriceTimeout time.Duration
	// SuperviseInterval is the delay between supervision passes.
	SuperviseInterval time.Duration
	// Markets optionally restricts trading to an allow-list of market ids.
	Markets []string
}

// Coordinator owns the open-position set. It is the only component that
// mutates positions; everything else reads snapshots.
type Coordinator struct {
	gate     TradeGate
	client   OrderExecutionClient
	table    *PositionTable
	journal  domain.TradeJournal // optional
	notifier Notifier            // optional
	cfg      Config
	markets  map[string]bool
	logger   *slog.Logger
	now      func() time.Time
}

// New creates a Coordinator. Journal and notifier may be nil; both are
// best-effort side channels.
func New(
	gate TradeGate,
	client OrderExecutionClient,
	journal domain.TradeJournal,
	notifier Notifier,
	cfg Config,
	logger *slog.Logger,
) *Coordinator {
	if cfg.PriceTimeout <= 0 {
		cfg.PriceTimeout = 5 * time.Second
	}
	if cfg.SuperviseInterval <= 0 {
		cfg.SuperviseInterval = 10 * time.Second
	}
	markets := make(map[string]bool, len(cfg.Markets))
	for _, m := range cfg.Markets {
		markets[m] = true
	}
	return &Coordinator{
		gate:     gate,
		client:   client,
		table:    NewPositionTable(),
		journal:  journal,
		notifier: notifier,
		cfg:      cfg,
		markets:  markets,
		logger:   logger.With(slog.String("component", "coordinator")),
		now:      time.Now,
	}
}

// Positions returns a snapshot of all tracked positions for status views.
func (c *Coordinator) Positions() []domain.Position {
	return c.table.Snapshot()
}

// ExecuteCopyTrade runs one signal through the full gate → validate → size →
// place pipeline. Every expected failure comes back as a structured outcome;
// the method itself never returns an error.
func (c *Coordinator) ExecuteCopyTrade(ctx context.Context, sig domain.TradeSignal) domain.ExecOutcome {
	log := c.logger.With(
		slog.String("trade_id", sig.TradeID),
		slog.String("market", sig.MarketID),
		slog.String("side", string(sig.Side)),
	)

	// 1. Circuit breaker gate.
	gate := c.gate.CheckTradeAllowed(sig.TradeID)
	if !gate.Allowed {
		log.WarnContext(ctx, "trade skipped, circuit breaker active",
			slog.String("reason", gate.Reason),
			slog.String("recovery_eta", gate.RecoveryETA),
		)
		return domain.Skipped(gate.Reason, gate.RecoveryETA)
	}

	// 2. Validation. Malformed signals are skipped, never retried.
	if err := sig.Validate(); err != nil {
		log.WarnContext(ctx, "trade skipped, invalid signal",
			slog.String("error", err.Error()),
		)
		return domain.Skipped(err.Error(), "")
	}
	if len(c.markets) > 0 && !c.markets[sig.MarketID] {
		log.WarnContext(ctx, "trade skipped, market not allowed")
		return domain.Skipped(fmt.Sprintf("%v: %s", domain.ErrUnknownMarket, sig.MarketID), "")
	}

	// 3. Size the position in exact decimal arithmetic.
	stop, take := bracketPrices(sig.Price, sig.Side, c.cfg.StopLossPct, c.cfg.TakeProfitPct)
	size := positionSize(
		sig.Price, stop,
		c.cfg.RiskBudget, c.cfg.MinPositionSize, c.cfg.MaxPositionSize,
		c.cfg.PriceEpsilon,
	)

	// 4. Acquire the per-position lock, place the order, open the position.
	id := domain.PositionID(sig.MarketID, sig.Side)
	entry, ok := c.table.lockNew(id)
	if !ok {
		log.WarnContext(ctx, "trade skipped, position already open",
			slog.String("position_id", id),
		)
		return domain.Skipped(fmt.Sprintf("%v: %s", domain.ErrPositionExists, id), "")
	}

	// The slot is reserved as Pending while the order is in flight; it only
	// becomes Open once the venue accepts.
	entry.pos = domain.Position{
		ID:       id,
		TradeID:  sig.TradeID,
		MarketID: sig.MarketID,
		Side:     sig.Side,
		Status:   domain.PositionStatusPending,
	}

	res, err := c.client.PlaceOrder(ctx, sig.MarketID, sig.Side, size, sig.Price)
	if err != nil {
		// No partial state: the entry and its lock are discarded together.
		c.table.remove(id)
		entry.mu.Unlock()
		c.gate.RecordTradeResult(false, sig.TradeID)
		log.ErrorContext(ctx, "order placement failed",
			slog.String("error", err.Error()),
		)
		return domain.Failed(fmt.Sprintf("order placement: %v", err))
	}

	fillPrice := res.FilledPrice
	if fillPrice.IsZero() {
		fillPrice = sig.Price
	}
	stop, take = bracketPrices(fillPrice, sig.Side, c.cfg.StopLossPct, c.cfg.TakeProfitPct)

	entry.pos = domain.Position{
		ID:              id,
		TradeID:         sig.TradeID,
		OrderID:         res.OrderID,
		MarketID:        sig.MarketID,
		Side:            sig.Side,
		Size:            size,
		EntryPrice:      fillPrice,
		StopLossPrice:   stop,
		TakeProfitPrice: take,
		Status:          domain.PositionStatusOpen,
		OpenedAt:        c.now().UTC(),
	}
	entry.mu.Unlock()

	c.gate.RecordTradeResult(true, sig.TradeID)
	c.notify(ctx, "position_opened", "Position opened",
		fmt.Sprintf("%s %s size=%s entry=%s stop=%s take=%s",
			sig.MarketID, sig.Side, size, fillPrice, stop, take),
	)
	log.InfoContext(ctx, "position opened",
		slog.String("position_id", id),
		slog.String("order_id", res.OrderID),
		slog.String("size", size.String()),
		slog.String("entry_price", fillPrice.String()),
	)
	return domain.Submitted(id, res.OrderID)
}

// ClosePosition closes the identified position at the current market price.
// It is idempotent: an absent or already-closed position is a success, not
// an error. Shared by the supervision loop's manual-close path and any
// operator-driven close.
func (c *Coordinator) ClosePosition(ctx context.Context, id, reason string) error {
	entry, ok := c.table.lockExisting(id)
	if !ok {
		return nil
	}
	defer entry.mu.Unlock()

	if entry.pos.Status != domain.PositionStatusOpen {
		return nil
	}

	price, err := c.fetchPrice(ctx, entry.pos.MarketID)
	if err != nil {
		return fmt.Errorf("coordinator: close %s: fetch price: %w", id, err)
	}

	rec, err := c.closeLocked(ctx, entry, price, reason)
	if err != nil {
		return fmt.Errorf("coordinator: close %s: %w", id, err)
	}
	c.table.remove(id)
	c.finalizeClose(ctx, rec)
	return nil
}

// closeLocked performs the Open→Closing→Closed transition. The caller holds
// the entry lock and has verified the position is Open. On order failure the
// position reverts to Open with no other state touched, so the next
// supervision pass can try again.
func (c *Coordinator) closeLocked(ctx context.Context, entry *positionEntry, exitPrice decimal.Decimal, reason string) (domain.TradeRecord, error) {
	pos := entry.pos
	entry.pos.Status = domain.PositionStatusClosing

	res, err := c.client.PlaceOrder(ctx, pos.MarketID, pos.Side.Opposite(), pos.Size, exitPrice)
	if err != nil {
		entry.pos.Status = domain.PositionStatusOpen
		return domain.TradeRecord{}, fmt.Errorf("close order: %w", err)
	}

	exit := res.FilledPrice
	if exit.IsZero() {
		exit = exitPrice
	}
	pnl := pos.RealizedPnL(exit)

	// Feed the realized outcome back into the breaker before anything else
	// can observe the closed position.
	if pnl.IsNegative() {
		c.gate.RecordLoss(pnl)
	} else {
		c.gate.RecordProfit(pnl)
	}
	c.gate.RecordTradeResult(true, pos.TradeID)

	entry.pos.Status = domain.PositionStatusClosed

	c.logger.InfoContext(ctx, "position closed",
		slog.String("position_id", pos.ID),
		slog.String("reason", reason),
		slog.String("exit_price", exit.String()),
		slog.String("realized_pnl", pnl.String()),
	)

	return domain.TradeRecord{
		ID:          uuid.New().String(),
		TradeID:     pos.TradeID,
		MarketID:    pos.MarketID,
		Side:        pos.Side,
		Size:        pos.Size,
		EntryPrice:  pos.EntryPrice,
		ExitPrice:   exit,
		RealizedPnL: pnl,
		CloseReason: reason,
		OpenedAt:    pos.OpenedAt,
		ClosedAt:    c.now().UTC(),
	}, nil
}

// finalizeClose records the round trip in the journal and notifies. Both are
// best-effort: failures are logged and swallowed.
func (c *Coordinator) finalizeClose(ctx context.Context, rec domain.TradeRecord) {
	if c.journal != nil {
		if err := c.journal.Insert(ctx, rec); err != nil {
			c.logger.WarnContext(ctx, "journal insert failed",
				slog.String("trade_id", rec.TradeID),
				slog.String("error", err.Error()),
			)
		}
	}
	c.notify(ctx, "position_closed", "Position closed",
		fmt.Sprintf("%s %s pnl=%s (%s)", rec.MarketID, rec.Side, rec.RealizedPnL, rec.CloseReason),
	)
}

// notify dispatches an operator notification if a sink is configured.
func (c *Coordinator) notify(ctx context.Context, event, title, message string) {
	if c.notifier == nil {
		return
	}
	if err := c.notifier.Notify(ctx, event, title, message); err != nil {
		c.logger.WarnContext(ctx, "notification failed",
			slog.String("event", event),
			slog.String("error", err.Error()),
		)
	}
}

// Run consumes signals from signalCh and drives the periodic supervision
// pass until ctx is cancelled, at which point buffered signals are drained
// and the method returns.
func (c *Coordinator) Run(ctx context.Context, signalCh <-chan domain.TradeSignal) error {
	c.logger.Info("coordinator started")
	defer c.logger.Info("coordinator stopped")

	ticker := time.NewTicker(c.cfg.SuperviseInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.drain(signalCh)
			return ctx.Err()

		case sig, ok := <-signalCh:
			if !ok {
				return nil
			}
			c.handleSignal(ctx, sig)

		case <-ticker.C:
			// The pass itself is never interrupted mid-flight; only the
			// timer stops between passes.
			c.ManagePositions(ctx)
		}
	}
}

func (c *Coordinator) handleSignal(ctx context.Context, sig domain.TradeSignal) {
	outcome := c.ExecuteCopyTrade(ctx, sig)
	if outcome.Kind == domain.OutcomeSubmitted {
		return
	}
	c.logger.InfoContext(ctx, "signal not traded",
		slog.String("trade_id", sig.TradeID),
		slog.String("outcome", string(outcome.Kind)),
		slog.String("reason", outcome.Reason),
	)
}

// drain processes signals already buffered in the channel after shutdown so
// in-flight copy trades are not silently dropped.
func (c *Coordinator) drain(signalCh <-chan domain.TradeSignal) {
	for {
		select {
		case sig, ok := <-signalCh:
			if !ok {
				return
			}
			c.logger.Warn("draining signal after shutdown",
				slog.String("trade_id", sig.TradeID),
			)
			drainCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			c.handleSignal(drainCtx, sig)
			cancel()
		default:
			return
		}
	}
}
