// Package metrics exposes the Prometheus collectors of the ledger.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "stars"

// Metrics groups every collector. A nil *Metrics is valid and records nothing.
type Metrics struct {
	auditWriteFailures prometheus.Counter
	settlements        *prometheus.CounterVec
	invoices           *prometheus.CounterVec
	providerFailures   *prometheus.CounterVec
	starsCredited      prometheus.Counter
	orphanCharges      prometheus.Counter
	stalePending       prometheus.Gauge
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		auditWriteFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audit_write_failures_total",
			Help:      "Audit entries that could not be persisted.",
		}),
		settlements: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "settlement_outcomes_total",
			Help:      "Confirmation outcomes by result status.",
		}, []string{"status"}),
		invoices: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "invoices_issued_total",
			Help:      "Invoices issued by mode.",
		}, []string{"mode"}),
		providerFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_call_failures_total",
			Help:      "Failed payment provider calls by method.",
		}, []string{"method"}),
		starsCredited: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "credited_total",
			Help:      "Stars credited to accounts through settlement.",
		}),
		orphanCharges: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orphan_charges_total",
			Help:      "Provider charges that arrived for an intent that can no longer be settled.",
		}),
		stalePending: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "stale_pending_intents",
			Help:      "Pending intents older than the stale threshold at the last reconciliation run.",
		}),
	}

	reg.MustRegister(m.auditWriteFailures, m.settlements, m.invoices, m.providerFailures, m.starsCredited, m.orphanCharges, m.stalePending)
	return m
}

// AuditWriteFailed counts an audit entry that was lost.
func (m *Metrics) AuditWriteFailed() {
	if m == nil {
		return
	}
	m.auditWriteFailures.Inc()
}

// Settlement counts a confirmation outcome.
func (m *Metrics) Settlement(status string) {
	if m == nil {
		return
	}
	m.settlements.WithLabelValues(status).Inc()
}

// InvoiceIssued counts an issued invoice.
func (m *Metrics) InvoiceIssued(mode string) {
	if m == nil {
		return
	}
	m.invoices.WithLabelValues(mode).Inc()
}

// ProviderCallFailed counts a failed provider call attempt.
func (m *Metrics) ProviderCallFailed(method string) {
	if m == nil {
		return
	}
	m.providerFailures.WithLabelValues(method).Inc()
}

// StarsCredited adds a settled amount.
func (m *Metrics) StarsCredited(amount int64) {
	if m == nil {
		return
	}
	m.starsCredited.Add(float64(amount))
}

// OrphanCharge counts a charge that could not be credited.
func (m *Metrics) OrphanCharge() {
	if m == nil {
		return
	}
	m.orphanCharges.Inc()
}

// StalePending records how many intents the last reconciliation run flagged.
func (m *Metrics) StalePending(n int) {
	if m == nil {
		return
	}
	m.stalePending.Set(float64(n))
}

// Handler serves the metrics gathered by g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{
		ErrorHandling: promhttp.HTTPErrorOnError,
	})
}
