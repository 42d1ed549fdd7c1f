package breaker

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/copybotio/copybot/internal/domain"
)

// DefaultConsecutiveLossThreshold is used when the config leaves the
// threshold unset.
const DefaultConsecutiveLossThreshold = 5

// Config holds the breaker's risk limits.
type Config struct {
	MaxDailyLoss             decimal.Decimal
	ConsecutiveLossThreshold int
	Cooldown                 time.Duration
}

// Notification event names emitted through the notify hook.
const (
	eventActivated = "breaker_activated"
	eventRecovered = "breaker_recovered"
)

// NotifyFunc receives operator notifications for breaker transitions. It is
// invoked outside the state lock and must not call back into the breaker.
type NotifyFunc func(event, title, message string)

// note is a queued notification awaiting delivery after the lock is released.
type note struct {
	event   string
	title   string
	message string
}

// CircuitBreaker owns the live risk state under a single mutex. It is the
// only writer of that state; every mutation computes a complete new snapshot
// and persists it before the lock is released. None of the public operations
// ever return an error: internal faults degrade to fail-open with an ERROR
// log, trading availability being preferred over blanket denial.
type CircuitBreaker struct {
	mu        sync.Mutex
	state     State
	store     *StateStore
	threshold int
	cooldown  time.Duration
	now       func() time.Time
	logger    *slog.Logger
	metrics   *Metrics
	notify    NotifyFunc
	pending   []note
}

// Option customizes a CircuitBreaker.
type Option func(*CircuitBreaker)

// WithClock overrides the breaker's time source. Used by tests to simulate
// cooldown expiry and UTC-midnight rollover.
func WithClock(now func() time.Time) Option {
	return func(b *CircuitBreaker) { b.now = now }
}

// WithMetrics attaches Prometheus telemetry.
func WithMetrics(m *Metrics) Option {
	return func(b *CircuitBreaker) { b.metrics = m }
}

// WithNotifyHook attaches an operator notification sink. Activation emits a
// "breaker_activated" event; any recovery (cooldown elapsed or manual reset)
// emits "breaker_recovered".
func WithNotifyHook(fn NotifyFunc) Option {
	return func(b *CircuitBreaker) { b.notify = fn }
}

// New constructs a CircuitBreaker, restoring persisted state from the store.
// A missing or corrupt state file falls back to the inactive default state;
// startup never fails because of it. The configured limits always win over
// whatever limits were persisted.
func New(cfg Config, store *StateStore, logger *slog.Logger, opts ...Option) *CircuitBreaker {
	b := &CircuitBreaker{
		store:     store,
		threshold: cfg.ConsecutiveLossThreshold,
		cooldown:  cfg.Cooldown,
		now:       time.Now,
		logger:    logger.With(slog.String("component", "circuit_breaker")),
	}
	if b.threshold <= 0 {
		b.threshold = DefaultConsecutiveLossThreshold
	}
	for _, opt := range opts {
		opt(b)
	}

	st, err := store.Load()
	switch {
	case err == nil:
		st.MaxDailyLoss = cfg.MaxDailyLoss
		b.state = st
		b.logger.Info("restored breaker state",
			slog.Bool("active", st.Active),
			slog.String("daily_loss", st.DailyLoss.String()),
			slog.Int("consecutive_losses", st.ConsecutiveLosses),
		)
	case errors.Is(err, domain.ErrNotFound):
		b.state = defaultState(cfg.MaxDailyLoss, b.now())
		b.logger.Info("no persisted breaker state, starting inactive")
	default:
		b.state = defaultState(cfg.MaxDailyLoss, b.now())
		b.logger.Error("breaker state unreadable, falling back to defaults",
			slog.String("error", err.Error()),
		)
	}
	return b
}

// CheckTradeAllowed reports whether the given trade may proceed. It first
// applies the UTC-midnight rollover and cooldown auto-recovery, so a breaker
// whose cooldown has elapsed flips back to allowed without any external
// reset. An unexpected internal fault fails open.
func (b *CircuitBreaker) CheckTradeAllowed(tradeID string) (dec domain.GateDecision) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("breaker check panicked, failing open",
				slog.String("trade_id", tradeID),
				slog.Any("panic", r),
			)
			dec = domain.GateDecision{Allowed: true}
		}
	}()

	defer b.flushPending()
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.refreshLocked() {
		b.persistLocked()
	}

	if b.state.Active {
		eta := ""
		if b.state.CooldownUntil != nil {
			eta = humanETA(b.state.CooldownUntil.Sub(b.now()))
		}
		if b.metrics != nil {
			b.metrics.TradesBlocked.Inc()
		}
		b.logger.Warn("trade blocked by circuit breaker",
			slog.String("trade_id", tradeID),
			slog.String("reason", b.state.Reason),
			slog.String("recovery_eta", eta),
		)
		return domain.GateDecision{Allowed: false, Reason: b.state.Reason, RecoveryETA: eta}
	}

	if b.metrics != nil {
		b.metrics.TradesAllowed.Inc()
	}
	return domain.GateDecision{Allowed: true}
}

// RecordLoss adds a realized loss to the daily total and extends the
// consecutive-loss streak. The sign of amount is ignored. Crossing either
// limit activates the breaker exactly once.
func (b *CircuitBreaker) RecordLoss(amount decimal.Decimal) {
	defer b.flushPending()
	b.mu.Lock()
	defer b.mu.Unlock()

	b.refreshLocked()

	amount = amount.Abs()
	b.state.DailyLoss = b.state.DailyLoss.Add(amount)
	b.state.ConsecutiveLosses++
	if b.metrics != nil {
		b.metrics.LossesRecorded.Inc()
	}

	if !b.state.Active {
		switch {
		case b.state.DailyLoss.GreaterThanOrEqual(b.state.MaxDailyLoss):
			b.activateLocked(fmt.Sprintf(
				"daily loss limit reached: %s >= %s",
				b.state.DailyLoss, b.state.MaxDailyLoss,
			))
		case b.state.ConsecutiveLosses >= b.threshold:
			b.activateLocked(fmt.Sprintf(
				"%d consecutive losses (threshold %d)",
				b.state.ConsecutiveLosses, b.threshold,
			))
		}
	}

	b.persistLocked()
}

// RecordProfit resets the consecutive-loss streak. The daily loss total is
// losses-only accounting and is left untouched.
func (b *CircuitBreaker) RecordProfit(amount decimal.Decimal) {
	defer b.flushPending()
	b.mu.Lock()
	defer b.mu.Unlock()

	b.refreshLocked()
	b.state.ConsecutiveLosses = 0
	b.persistLocked()

	b.logger.Debug("profit recorded, loss streak cleared",
		slog.String("amount", amount.Abs().String()),
	)
}

// RecordTradeResult counts a trade success or failure for telemetry. It is
// deliberately decoupled from the loss rules: an execution failure is not a
// realized loss and never feeds the streak counter.
func (b *CircuitBreaker) RecordTradeResult(success bool, tradeID string) {
	if b.metrics != nil {
		outcome := "failure"
		if success {
			outcome = "success"
		}
		b.metrics.TradeResults.WithLabelValues(outcome).Inc()
	}
	b.logger.Debug("trade result recorded",
		slog.String("trade_id", tradeID),
		slog.Bool("success", success),
	)
}

// Activate trips the breaker with the given reason and starts the cooldown.
func (b *CircuitBreaker) Activate(reason string) {
	defer b.flushPending()
	b.mu.Lock()
	defer b.mu.Unlock()

	b.activateLocked(reason)
	b.persistLocked()
}

// Reset manually deactivates the breaker. The daily loss total and the last
// reset date are preserved: a manual reset is not a daily reset.
func (b *CircuitBreaker) Reset() {
	defer b.flushPending()
	b.mu.Lock()
	defer b.mu.Unlock()

	b.resetLocked("manual reset")
	b.persistLocked()
}

// PeriodicCheck is called on an external timer. It applies the UTC-midnight
// counter rollover and the cooldown auto-recovery, persisting only when the
// state actually changed.
func (b *CircuitBreaker) PeriodicCheck() {
	defer b.flushPending()
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.refreshLocked() {
		b.persistLocked()
	}
}

// Snapshot returns a copy of the current state for status views. Callers
// never receive a reference into the live value.
func (b *CircuitBreaker) Snapshot() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// IsActive reports whether the breaker currently blocks trading.
func (b *CircuitBreaker) IsActive() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state.Active
}

// DailyLoss returns the accumulated loss for the current UTC day.
func (b *CircuitBreaker) DailyLoss() decimal.Decimal {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state.DailyLoss
}

// ConsecutiveLosses returns the current loss streak length.
func (b *CircuitBreaker) ConsecutiveLosses() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state.ConsecutiveLosses
}

// ---------------------------------------------------------------------------
// Internal transitions. All run with b.mu held and contain no suspension
// point: the new snapshot is complete before any I/O happens.
// ---------------------------------------------------------------------------

// refreshLocked applies the UTC-midnight rollover and the cooldown
// auto-recovery. It returns true when the state changed. The rollover zeroes
// the counters but does not clear an active breaker; only the cooldown
// elapsing (or a manual Reset) deactivates.
func (b *CircuitBreaker) refreshLocked() bool {
	changed := false
	now := b.now()

	today := now.UTC().Format(dateLayout)
	if today != b.state.LastResetDate {
		b.logger.Info("utc day rollover, zeroing loss counters",
			slog.String("previous_date", b.state.LastResetDate),
			slog.String("date", today),
		)
		b.state.DailyLoss = decimal.Zero
		b.state.ConsecutiveLosses = 0
		b.state.LastResetDate = today
		changed = true
	}

	if b.state.Active && b.state.CooldownUntil != nil && !now.Before(*b.state.CooldownUntil) {
		b.resetLocked("cooldown elapsed")
		changed = true
	}

	return changed
}

func (b *CircuitBreaker) activateLocked(reason string) {
	if b.state.Active {
		// Already tripped: re-evaluating must not restart the cooldown or
		// fire side effects a second time.
		return
	}
	now := b.now().UTC()
	until := now.Add(b.cooldown)
	b.state.Active = true
	b.state.Reason = reason
	b.state.ActivatedAt = &now
	b.state.CooldownUntil = &until

	if b.metrics != nil {
		b.metrics.Activations.Inc()
	}
	if b.notify != nil {
		b.pending = append(b.pending, note{
			event:   eventActivated,
			title:   "Circuit breaker activated",
			message: fmt.Sprintf("%s (cooldown until %s)", reason, until.Format(time.RFC3339)),
		})
	}
	b.logger.Warn("circuit breaker activated",
		slog.String("reason", reason),
		slog.Time("cooldown_until", until),
	)
}

func (b *CircuitBreaker) resetLocked(cause string) {
	wasActive := b.state.Active
	b.state.Active = false
	b.state.Reason = ""
	b.state.ActivatedAt = nil
	b.state.CooldownUntil = nil
	b.state.ConsecutiveLosses = 0

	if wasActive && b.notify != nil {
		b.pending = append(b.pending, note{
			event:   eventRecovered,
			title:   "Circuit breaker recovered",
			message: fmt.Sprintf("%s, daily loss %s", cause, b.state.DailyLoss),
		})
	}
	b.logger.Info("circuit breaker reset",
		slog.String("cause", cause),
		slog.String("daily_loss", b.state.DailyLoss.String()),
	)
}

// flushPending delivers queued notifications. It runs after the state lock
// is released so a slow sink never blocks trading decisions.
func (b *CircuitBreaker) flushPending() {
	b.mu.Lock()
	notes := b.pending
	b.pending = nil
	b.mu.Unlock()

	for _, n := range notes {
		b.notify(n.event, n.title, n.message)
	}
}

// persistLocked writes the current snapshot to disk. Persistence failures
// are logged and swallowed: losing durability must not take down trading.
func (b *CircuitBreaker) persistLocked() {
	if b.metrics != nil {
		b.metrics.DailyLoss.Set(b.state.DailyLoss.InexactFloat64())
	}
	if err := b.store.Save(b.state); err != nil {
		b.logger.Error("failed to persist breaker state",
			slog.String("error", err.Error()),
		)
	}
}

// humanETA renders a duration the way an operator reads it: "45 minutes",
// "1h 15m", "less than a minute".
func humanETA(d time.Duration) string {
	total := int(d.Round(time.Minute) / time.Minute)
	if total < 1 {
		return "less than a minute"
	}
	if total < 60 {
		if total == 1 {
			return "1 minute"
		}
		return fmt.Sprintf("%d minutes", total)
	}
	return fmt.Sprintf("%dh %dm", total/60, total%60)
}
