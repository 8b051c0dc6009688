// ABOUTME: Prometheus collectors for dispatch, fallback, rate limiting, realtime and HTTP traffic.
// ABOUTME: Implements the observer interfaces of the plugins, assistant, ratelimit, realtime and speech packages.

package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Namespace prefixes every metric name.
const Namespace = "jarvis"

// Outcome label values.
const (
	OutcomeMatched = "matched"
	OutcomeNoMatch = "no_match"
	OutcomeOK      = "ok"
)

// Metrics owns a private registry so tests can build as many as they like.
type Metrics struct {
	registry *prometheus.Registry

	dispatch        *prometheus.CounterVec
	handlerFailures *prometheus.CounterVec
	fallback        *prometheus.CounterVec
	rejections      *prometheus.CounterVec
	sessions        prometheus.Gauge
	httpDuration    *prometheus.HistogramVec
	speech          *prometheus.CounterVec
}

// New creates and registers all collectors, including the Go runtime and
// process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		dispatch: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "dispatch_total",
			Help:      "Messages routed, by answering handler or no_match.",
		}, []string{"handler", "outcome"}),
		handlerFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "handler_failures_total",
			Help:      "Handler errors and panics, by handler and stage.",
		}, []string{"handler", "stage"}),
		fallback: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "fallback_total",
			Help:      "Generative fallback outcomes, by result kind.",
		}, []string{"kind"}),
		rejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "rate_limit_rejections_total",
			Help:      "Requests rejected by the rate guard, by bucket.",
		}, []string{"bucket"}),
		sessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "realtime_sessions",
			Help:      "Open realtime sessions.",
		}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency, by method, route and status.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
		speech: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "speech_requests_total",
			Help:      "Speech operations, by operation and outcome.",
		}, []string{"operation", "outcome"}),
	}

	reg.MustRegister(
		m.dispatch,
		m.handlerFailures,
		m.fallback,
		m.rejections,
		m.sessions,
		m.httpDuration,
		m.speech,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// TrackClients exports fn as a gauge sampled on every scrape.
func (m *Metrics) TrackClients(fn func() int) {
	m.registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: Namespace,
		Name:      "rate_limit_clients",
		Help:      "Client identifiers tracked by the rate guard.",
	}, func() float64 { return float64(fn()) }))
}

// HandlerMatched implements plugins.Observer.
func (m *Metrics) HandlerMatched(name string) {
	m.dispatch.WithLabelValues(name, OutcomeMatched).Inc()
}

// HandlerFailed implements plugins.Observer.
func (m *Metrics) HandlerFailed(name, stage string) {
	m.handlerFailures.WithLabelValues(name, stage).Inc()
}

// NoMatch implements plugins.Observer.
func (m *Metrics) NoMatch() {
	m.dispatch.WithLabelValues("", OutcomeNoMatch).Inc()
}

// FallbackOutcome implements assistant.Observer. An empty kind is a success.
func (m *Metrics) FallbackOutcome(kind string) {
	if kind == "" {
		kind = OutcomeOK
	}
	m.fallback.WithLabelValues(kind).Inc()
}

// Rejected implements ratelimit.Observer.
func (m *Metrics) Rejected(bucket string) {
	m.rejections.WithLabelValues(bucket).Inc()
}

// SessionOpened implements realtime.Observer.
func (m *Metrics) SessionOpened() {
	m.sessions.Inc()
}

// SessionClosed implements realtime.Observer.
func (m *Metrics) SessionClosed() {
	m.sessions.Dec()
}

// SpeechOutcome implements speech.Observer. An empty kind is a success.
func (m *Metrics) SpeechOutcome(operation, kind string) {
	if kind == "" {
		kind = OutcomeOK
	}
	m.speech.WithLabelValues(operation, kind).Inc()
}

// ObserveRequest records one finished HTTP request. Route should be the
// matched mux pattern, never the raw path, to keep label cardinality bounded.
func (m *Metrics) ObserveRequest(method, route string, status int, d time.Duration) {
	if route == "" {
		route = "unmatched"
	}
	m.httpDuration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(d.Seconds())
}
