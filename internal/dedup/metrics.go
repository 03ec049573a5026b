package dedup

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	RequestsTotal   *prometheus.CounterVec
	FailuresTotal   *prometheus.CounterVec
	RetriesTotal    prometheus.Counter
	UpstreamSeconds prometheus.Histogram
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &Metrics{
		RequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "hudson_dedup_requests_total",
			Help: "Total number of deduplicated client calls by role (leader, waiter, bypass)",
		}, []string{"role"}),
		FailuresTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "hudson_dedup_failures_total",
			Help: "Total number of deduplicated client calls that returned an error, by role and error code",
		}, []string{"role", "code"}),
		RetriesTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "hudson_dedup_upstream_retries_total",
			Help: "Total number of upstream request retries",
		}),
		UpstreamSeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "hudson_dedup_upstream_duration_seconds",
			Help:    "Duration of upstream executions including retries",
			Buckets: prometheus.DefBuckets,
		}),
	}
}
