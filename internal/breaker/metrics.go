package breaker

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the breaker's Prometheus telemetry. The trade-result counter
// is informational only and never feeds back into the gating rules.
type Metrics struct {
	TradesAllowed  prometheus.Counter
	TradesBlocked  prometheus.Counter
	Activations    prometheus.Counter
	LossesRecorded prometheus.Counter
	TradeResults   *prometheus.CounterVec
	DailyLoss      prometheus.Gauge
}

// NewMetrics registers the breaker metrics with the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		TradesAllowed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "copybot",
			Subsystem: "breaker",
			Name:      "trades_allowed_total",
			Help:      "Trades that passed the circuit breaker gate.",
		}),
		TradesBlocked: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "copybot",
			Subsystem: "breaker",
			Name:      "trades_blocked_total",
			Help:      "Trades rejected because the breaker was active.",
		}),
		Activations: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "copybot",
			Subsystem: "breaker",
			Name:      "activations_total",
			Help:      "Times the breaker transitioned to active.",
		}),
		LossesRecorded: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "copybot",
			Subsystem: "breaker",
			Name:      "losses_recorded_total",
			Help:      "Realized losses reported to the breaker.",
		}),
		TradeResults: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "copybot",
			Subsystem: "breaker",
			Name:      "trade_results_total",
			Help:      "Trade executions by outcome.",
		}, []string{"outcome"}),
		DailyLoss: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "copybot",
			Subsystem: "breaker",
			Name:      "daily_loss",
			Help:      "Cumulative realized loss for the current UTC day.",
		}),
	}
}
