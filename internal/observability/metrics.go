// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the engine.
type Metrics struct {
	// Onboarding metrics
	OnboardingsTotal     *prometheus.CounterVec
	EvaluationSampleSize prometheus.Histogram
	EvaluationDrawdown   prometheus.Histogram

	// Trade gate metrics
	AuthorizationsTotal *prometheus.CounterVec
	KillSwitchTrips     prometheus.Counter
	TradesRecorded      prometheus.Counter

	// Ledger metrics
	FillsApplied      *prometheus.CounterVec
	AgentShareAccrued prometheus.Counter
	FirmShareAccrued  prometheus.Counter

	// Pool metrics
	PoolAccountsTotal prometheus.Gauge
	PoolAccountsFree  prometheus.Gauge

	// Exchange metrics
	ExchangeCallLatency *prometheus.HistogramVec
	ExchangeCallErrors  *prometheus.CounterVec

	// Settlement stream metrics
	SettlementEventsReceived prometheus.Counter
	SettlementEventsSkipped  *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "agent_funding_engine"
	}

	return &Metrics{
		// Onboarding metrics
		OnboardingsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "allocation",
			Name:      "onboardings_total",
			Help:      "Total number of onboarding requests by outcome",
		}, []string{"outcome"}),
		EvaluationSampleSize: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "evaluation",
			Name:      "sample_size",
			Help:      "Fill history length of evaluated candidates",
			Buckets:   []float64{0, 5, 10, 25, 50, 100, 250, 500},
		}),
		EvaluationDrawdown: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "evaluation",
			Name:      "max_drawdown_fraction",
			Help:      "Max drawdown fraction of evaluated fill histories",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.15, 0.25, 0.5, 1},
		}),

		// Trade gate metrics
		AuthorizationsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tradegate",
			Name:      "authorizations_total",
			Help:      "Total number of authorization decisions by outcome",
		}, []string{"outcome"}),
		KillSwitchTrips: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tradegate",
			Name:      "kill_switch_trips_total",
			Help:      "Total number of drawdown kill-switch revocations",
		}),
		TradesRecorded: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tradegate",
			Name:      "trades_recorded_total",
			Help:      "Total number of submitted orders counted against quotas",
		}),

		// Ledger metrics
		FillsApplied: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "fills_applied_total",
			Help:      "Total number of fill applications by result",
		}, []string{"result"}),
		AgentShareAccrued: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "agent_share_accrued_total",
			Help:      "Total agent profit share accrued across all agents",
		}),
		FirmShareAccrued: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "firm_share_accrued_total",
			Help:      "Total firm profit share accrued across all agents",
		}),

		// Pool metrics
		PoolAccountsTotal: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "pool",
			Name:      "accounts_total",
			Help:      "Number of pool accounts under management",
		}),
		PoolAccountsFree: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "pool",
			Name:      "accounts_free",
			Help:      "Number of unassigned pool accounts",
		}),

		// Exchange metrics
		ExchangeCallLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "exchange",
			Name:      "call_latency_seconds",
			Help:      "Exchange call latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
		ExchangeCallErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "exchange",
			Name:      "call_errors_total",
			Help:      "Total number of exchange call errors",
		}, []string{"method"}),

		// Settlement stream metrics
		SettlementEventsReceived: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "settlement",
			Name:      "events_received_total",
			Help:      "Total number of settlement events received",
		}),
		SettlementEventsSkipped: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "settlement",
			Name:      "events_skipped_total",
			Help:      "Total number of settlement events skipped by reason",
		}, []string{"reason"}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordOnboarding increments the onboarding counter for an outcome.
func RecordOnboarding(outcome string) {
	DefaultMetrics.OnboardingsTotal.WithLabelValues(outcome).Inc()
}

// RecordEvaluation records the metrics of one risk-gate evaluation.
func RecordEvaluation(sampleSize int, maxDrawdown float64) {
	DefaultMetrics.EvaluationSampleSize.Observe(float64(sampleSize))
	DefaultMetrics.EvaluationDrawdown.Observe(maxDrawdown)
}

// RecordAuthorization increments the authorization counter for an outcome.
func RecordAuthorization(outcome string) {
	DefaultMetrics.AuthorizationsTotal.WithLabelValues(outcome).Inc()
}

// RecordKillSwitch increments the kill-switch counter.
func RecordKillSwitch() {
	DefaultMetrics.KillSwitchTrips.Inc()
}

// RecordTradeSubmission increments the trade submission counter.
func RecordTradeSubmission() {
	DefaultMetrics.TradesRecorded.Inc()
}

// RecordFillApplied records a fill application and accrued shares.
func RecordFillApplied(result string, agentShare, firmShare float64) {
	DefaultMetrics.FillsApplied.WithLabelValues(result).Inc()
	if agentShare > 0 {
		DefaultMetrics.AgentShareAccrued.Add(agentShare)
	}
	if firmShare > 0 {
		DefaultMetrics.FirmShareAccrued.Add(firmShare)
	}
}

// UpdatePoolUtilization updates the pool occupancy gauges.
func UpdatePoolUtilization(total, free int) {
	DefaultMetrics.PoolAccountsTotal.Set(float64(total))
	DefaultMetrics.PoolAccountsFree.Set(float64(free))
}

// RecordExchangeCall records exchange call metrics.
func RecordExchangeCall(method string, seconds float64, err error) {
	DefaultMetrics.ExchangeCallLatency.WithLabelValues(method).Observe(seconds)
	if err != nil {
		DefaultMetrics.ExchangeCallErrors.WithLabelValues(method).Inc()
	}
}

// RecordSettlementEvent increments the settlement events counter.
func RecordSettlementEvent() {
	DefaultMetrics.SettlementEventsReceived.Inc()
}

// RecordSettlementSkip records a skipped settlement event.
func RecordSettlementSkip(reason string) {
	DefaultMetrics.SettlementEventsSkipped.WithLabelValues(reason).Inc()
}
