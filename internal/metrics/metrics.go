// internal/metrics/metrics.go
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Transaction outcome label values.
const (
	OutcomeApplied           = "applied"
	OutcomeReplayed          = "replayed"
	OutcomeInvalid           = "invalid"
	OutcomeInsufficientFunds = "insufficient_funds"
	OutcomeError             = "error"
)

// Race guard label values.
const (
	GuardBalanceToken = "balance_token"
	GuardLogKey       = "log_key"
)

// Metrics owns the application's collectors and the registry they are registered with.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	TransactionsTotal  *prometheus.CounterVec
	RaceRecoveries     *prometheus.CounterVec
	BalanceInitialized prometheus.Counter
	HTTPLatency        *prometheus.HistogramVec
	HTTPRequestsTotal  *prometheus.CounterVec
}

// New creates the collectors and registers them, together with the Go and process collectors, on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		TransactionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledger_transactions_total",
				Help: "Transaction requests by type and outcome.",
			},
			[]string{"type", "outcome"},
		),
		RaceRecoveries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledger_race_recoveries_total",
				Help: "Concurrent duplicates resolved by a conditional-write guard.",
			},
			[]string{"guard"},
		),
		BalanceInitialized: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "ledger_balances_initialized_total",
				Help: "Balances lazily materialized for unseen users.",
			},
		),
		HTTPLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_requests_latency_seconds",
				Help:    "Latency of HTTP requests.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route", "status"},
		),
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total HTTP requests.",
			},
			[]string{"method", "route", "status"},
		),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.TransactionsTotal,
		m.RaceRecoveries,
		m.BalanceInitialized,
		m.HTTPLatency,
		m.HTTPRequestsTotal,
	)
	return m
}

// Handler serves the registry for scraping.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveTransaction counts one processed request.
func (m *Metrics) ObserveTransaction(txType, outcome string) {
	if m == nil {
		return
	}
	if txType != "credit" && txType != "debit" {
		txType = "unknown" // keep label cardinality bounded
	}
	m.TransactionsTotal.WithLabelValues(txType, outcome).Inc()
}

// ObserveRaceRecovery counts a duplicate caught by guard.
func (m *Metrics) ObserveRaceRecovery(guard string) {
	if m == nil {
		return
	}
	m.RaceRecoveries.WithLabelValues(guard).Inc()
}

// ObserveBalanceInitialized counts a lazy zero-balance creation.
func (m *Metrics) ObserveBalanceInitialized() {
	if m == nil {
		return
	}
	m.BalanceInitialized.Inc()
}

// ObserveHTTP records one served request under its route pattern.
func (m *Metrics) ObserveHTTP(method, route string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	code := strconv.Itoa(status)
	m.HTTPLatency.WithLabelValues(method, route, code).Observe(elapsed.Seconds())
	m.HTTPRequestsTotal.WithLabelValues(method, route, code).Inc()
}
