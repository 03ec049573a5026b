package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	ChecksTotal      *prometheus.CounterVec
	StoreErrorsTotal *prometheus.CounterVec
	DegradedTotal    *prometheus.CounterVec
	CircuitOpen      prometheus.Gauge
	StoreEntries     prometheus.Gauge
}

// New registers the rate limit metrics on reg. A nil reg uses the default
// registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &Metrics{
		ChecksTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "hudson_ratelimit_checks_total",
			Help: "Rate limit decisions by limit type and result",
		}, []string{"limit_type", "result"}),
		StoreErrorsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "hudson_ratelimit_store_errors_total",
			Help: "Errors returned by the primary window store, by operation",
		}, []string{"op"}),
		DegradedTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "hudson_ratelimit_degraded_total",
			Help: "Decisions served without the primary store, by mode (fallback or fail_open)",
		}, []string{"limit_type", "mode"}),
		CircuitOpen: factory.NewGauge(prometheus.GaugeOpts{
			Name: "hudson_ratelimit_circuit_open",
			Help: "1 while the primary store circuit breaker is open",
		}),
		StoreEntries: factory.NewGauge(prometheus.GaugeOpts{
			Name: "hudson_ratelimit_store_entries",
			Help: "Entries held by the in-process window store",
		}),
	}
}

func (m *Metrics) IncrementChecks(limitType string, allowed bool) {
	result := "allowed"
	if !allowed {
		result = "denied"
	}
	m.ChecksTotal.WithLabelValues(limitType, result).Inc()
}

func (m *Metrics) IncrementStoreErrors(op string) {
	m.StoreErrorsTotal.WithLabelValues(op).Inc()
}

func (m *Metrics) IncrementDegraded(limitType, mode string) {
	m.DegradedTotal.WithLabelValues(limitType, mode).Inc()
}

func (m *Metrics) SetCircuitOpen(open bool) {
	if open {
		m.CircuitOpen.Set(1)
		return
	}
	m.CircuitOpen.Set(0)
}

func (m *Metrics) SetStoreEntries(count int) {
	m.StoreEntries.Set(float64(count))
}
