package cleanup

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics are shared by every cleanup worker and labelled by worker name.
type Metrics struct {
	RunsTotal       *prometheus.CounterVec
	RemovedTotal    *prometheus.CounterVec
	DurationSeconds *prometheus.HistogramVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &Metrics{
		RunsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "hudson_cleanup_runs_total",
			Help: "Total number of cleanup runs",
		}, []string{"worker", "status"}),
		RemovedTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "hudson_cleanup_removed_total",
			Help: "Total number of expired entries removed by cleanup runs",
		}, []string{"worker"}),
		DurationSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "hudson_cleanup_duration_seconds",
			Help:    "Duration of cleanup runs in seconds",
			Buckets: []float64{.0005, .001, .005, .01, .05, .1, .5, 1},
		}, []string{"worker"}),
	}
}

func (m *Metrics) observe(worker, status string, removed int, seconds float64) {
	m.RunsTotal.WithLabelValues(worker, status).Inc()
	m.DurationSeconds.WithLabelValues(worker).Observe(seconds)
	if removed > 0 {
		m.RemovedTotal.WithLabelValues(worker).Add(float64(removed))
	}
}
