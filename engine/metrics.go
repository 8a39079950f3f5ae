package engine

import (
	"github.com/prometheus/client_golang/prometheus"
)

// --- Metrics ---

// Metrics holds all the Prometheus metrics for the engine.
type Metrics struct {
	operationDuration *prometheus.HistogramVec
	operationsTotal   *prometheus.CounterVec
	pools             prometheus.Gauge
}

// NewMetrics creates and registers the metrics for the engine.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		operationDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "amm_operation_duration_seconds",
			Help:    "Time taken to execute a state-changing operation.",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation"}),
		operationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "amm_operations_total",
			Help: "Total number of state-changing operations, labeled by operation and result.",
		}, []string{"operation", "result"}),
		pools: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "amm_pools",
			Help: "Number of pools created.",
		}),
	}
	reg.MustRegister(m.operationDuration, m.operationsTotal, m.pools)
	return m
}
