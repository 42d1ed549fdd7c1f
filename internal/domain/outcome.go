package domain

// GateDecision is the result of asking the circuit breaker whether a trade
// may proceed. RecoveryETA is a human-readable duration ("45 minutes",
// "1h 15m") and is only set when the trade is blocked.
type GateDecision struct {
	Allowed     bool
	Reason      string
	RecoveryETA string
}

// OutcomeKind classifies the result of handling one trade signal.
type OutcomeKind string

const (
	// OutcomeSubmitted means an order was placed and a position opened.
	OutcomeSubmitted OutcomeKind = "submitted"
	// OutcomeSkipped means the signal was deliberately not traded
	// (breaker active, validation failure, duplicate position).
	OutcomeSkipped OutcomeKind = "skipped"
	// OutcomeFailed means the trade was attempted but order placement failed.
	OutcomeFailed OutcomeKind = "failed"
)

// ExecOutcome is the structured result of executing one copy-trade signal.
// Expected failures are reported here rather than as errors so the hosting
// loop never has to distinguish "trade skipped" from "bug".
type ExecOutcome struct {
	Kind        OutcomeKind
	Reason      string
	RecoveryETA string
	PositionID  string
	OrderID     string
}

// Submitted builds a successful outcome.
func Submitted(positionID, orderID string) ExecOutcome {
	return ExecOutcome{Kind: OutcomeSubmitted, PositionID: positionID, OrderID: orderID}
}

// Skipped builds a skip outcome with an optional recovery ETA.
func Skipped(reason, recoveryETA string) ExecOutcome {
	return ExecOutcome{Kind: OutcomeSkipped, Reason: reason, RecoveryETA: recoveryETA}
}

// Failed builds a failure outcome.
func Failed(reason string) ExecOutcome {
	return ExecOutcome{Kind: OutcomeFailed, Reason: reason}
}
