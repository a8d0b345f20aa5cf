// Package metrics exposes prometheus instrumentation for the kernel's
// hot paths (ticks, lifecycle transitions, risk rejects, partials,
// event-bus publish latency) over a minimal stdlib http.ServeMux
// handler; a full routing layer isn't needed for a single /metrics
// endpoint.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry bundles the kernel's counters and histogram. PublishLatency is
// registered and exposed, but nothing in this module observes it.
type Registry struct {
	reg *prometheus.Registry

	Ticks          *prometheus.CounterVec
	SignalsOpened  *prometheus.CounterVec
	SignalsClosed  *prometheus.CounterVec
	RiskRejects    *prometheus.CounterVec
	Partials       *prometheus.CounterVec
	PublishLatency prometheus.Histogram
}

// New creates a Registry with a dedicated prometheus.Registry (not the
// global default, so multiple kernels in one process don't collide).
func New() *Registry {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Registry{
		reg: reg,
		Ticks: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "kernel_ticks_total",
			Help: "Non-idle lifecycle events published on signal-any, by (strategy, symbol, mode).",
		}, []string{"strategy", "symbol", "mode"}),
		SignalsOpened: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "kernel_signals_opened_total",
			Help: "Signals promoted scheduled->pending or opened at market, by (strategy, symbol).",
		}, []string{"strategy", "symbol"}),
		SignalsClosed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "kernel_signals_closed_total",
			Help: "Signals closed, by (strategy, symbol, reason).",
		}, []string{"strategy", "symbol", "reason"}),
		RiskRejects: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "kernel_risk_rejects_total",
			Help: "Proposals rejected by RiskGate, by (strategy, symbol).",
		}, []string{"strategy", "symbol"}),
		Partials: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "kernel_partials_total",
			Help: "Partial closes recorded, by (strategy, symbol, kind).",
		}, []string{"strategy", "symbol", "kind"}),
		PublishLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "kernel_event_publish_seconds",
			Help:    "Time EventBus.Publish blocked on a subscriber's buffer.",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

// Handler returns an http.Handler exposing the registry in the
// Prometheus exposition format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}

// Serve starts a minimal metrics server on addr using stdlib net/http.
func (r *Registry) Serve(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", r.Handler())
	return http.ListenAndServe(addr, mux)
}
