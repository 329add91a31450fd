package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/woozymasta/matchlist/internal/ratelimit"
	"github.com/woozymasta/matchlist/internal/registry"
)

const (
	metricsNamespace = "matchlist"
	routeUnmatched   = "unmatched"
)

// metrics holds the per-server Prometheus collectors.
// Each Server owns its registry so several instances can coexist in one process.
type metrics struct {
	registry *prometheus.Registry

	requestsTotal   *prometheus.CounterVec
	requestsSeconds *prometheus.SummaryVec
	rateLimited     *prometheus.CounterVec
	eventsTotal     *prometheus.CounterVec
	journalDropped  prometheus.Counter
	journalErrors   prometheus.Counter
}

func newMetrics(reg *registry.Registry, limiter *ratelimit.Limiter) *metrics {
	m := &metrics{
		registry: prometheus.NewRegistry(),

		requestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: "api",
				Name:      "requests_total",
				Help:      "Number of API requests.",
			}, []string{"route", "code"}),
		requestsSeconds: prometheus.NewSummaryVec(
			prometheus.SummaryOpts{
				Namespace:  metricsNamespace,
				Subsystem:  "api",
				Name:       "requests_seconds",
				Help:       "Latency of API requests.",
				Objectives: map[float64]float64{0.5: 0.05, 0.9: 0.01, 0.99: 0.001},
			}, []string{"route"}),
		rateLimited: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: "api",
				Name:      "rate_limited_total",
				Help:      "Number of requests rejected by the rate limiter.",
			}, []string{"route"}),
		eventsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: "registry",
				Name:      "events_total",
				Help:      "Number of match lifecycle events.",
			}, []string{"kind"}),
		journalDropped: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: "journal",
				Name:      "dropped_total",
				Help:      "Number of events dropped because the journal queue was full.",
			}),
		journalErrors: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: "journal",
				Name:      "errors_total",
				Help:      "Number of events that failed to be written to the journal.",
			}),
	}

	m.registry.MustRegister(
		m.requestsTotal, m.requestsSeconds, m.rateLimited,
		m.eventsTotal, m.journalDropped, m.journalErrors,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: "registry",
			Name:      "matches_stored",
			Help:      "Number of matches held in the registry, stale ones included.",
		}, func() float64 { return float64(reg.Stats().Total) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: "registry",
			Name:      "matches_active",
			Help:      "Number of matches with a heartbeat inside the active window.",
		}, func() float64 { return float64(reg.Stats().Active) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: "ratelimit",
			Name:      "keys",
			Help:      "Number of tracked client and path windows.",
		}, func() float64 { return float64(limiter.Keys()) }),
	)

	return m
}
