// Package rmetrics exposes the prometheus counters and gauges SyncMux
// updates as it runs. Metrics are an ambient concern the core
// event-dispatch lifecycle carries regardless of what an application
// handler does (spec.md §1's Non-goals exclude dynamic load balancing and
// TLS, not observability).
package rmetrics

import "github.com/prometheus/client_golang/prometheus"

// Metrics bundles the four counters/gauges SyncMux touches per worker.
// Each worker constructs its own Metrics with a distinct "worker" label so
// per-worker series stay independent under EPOLLEXCLUSIVE fan-out.
type Metrics struct {
	Accepts           prometheus.Counter
	Closes            prometheus.Counter
	AcceptErrors      prometheus.Counter
	ActiveConnections prometheus.Gauge
}

// New builds and registers a Metrics set against reg, labeled with
// worker. Passing a dedicated *prometheus.Registry (rather than the
// global default) lets tests construct independent Metrics instances
// without collector-already-registered panics.
func New(reg prometheus.Registerer, worker string) *Metrics {
	labels := prometheus.Labels{"worker": worker}

	m := &Metrics{
		Accepts: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "librux_accepts_total",
			Help:        "Total connections accepted by this worker.",
			ConstLabels: labels,
		}),
		Closes: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "librux_closes_total",
			Help:        "Total connections closed by this worker.",
			ConstLabels: labels,
		}),
		AcceptErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "librux_accept_errors_total",
			Help:        "Total accept(2)/slot-allocation failures on this worker.",
			ConstLabels: labels,
		}),
		ActiveConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "librux_active_connections",
			Help:        "Currently occupied slots on this worker.",
			ConstLabels: labels,
		}),
	}

	reg.MustRegister(m.Accepts, m.Closes, m.AcceptErrors, m.ActiveConnections)
	return m
}
