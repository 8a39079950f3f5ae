package server

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds all the Prometheus metrics for the stream server.
type Metrics struct {
	subscribers     prometheus.Gauge
	eventsPublished prometheus.Counter
	eventsDropped   prometheus.Counter
	resyncs         prometheus.Counter
}

// NewMetrics creates and registers the metrics for the stream server.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		subscribers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "amm_stream_subscribers",
			Help: "Number of active state stream subscribers.",
		}),
		eventsPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "amm_stream_events_published_total",
			Help: "Total number of engine events fanned out to subscribers.",
		}),
		eventsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "amm_stream_events_dropped_total",
			Help: "Total number of events not delivered because a subscriber's buffer was full.",
		}),
		resyncs: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "amm_stream_resyncs_total",
			Help: "Total number of full snapshots re-sent to subscribers that fell behind.",
		}),
	}
	reg.MustRegister(m.subscribers, m.eventsPublished, m.eventsDropped, m.resyncs)
	return m
}
