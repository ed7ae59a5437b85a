// Package metrics exposes Prometheus instrumentation for AI requests, retries,
// circuit breakers and chat sessions.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sony/gobreaker"
)

const namespace = "agrovision"

// OutcomeOK labels a successful request.
const OutcomeOK = "ok"

// Recorder owns a private registry. A nil *Recorder is valid and records nothing,
// so components can be constructed without metrics in tests.
type Recorder struct {
	registry *prometheus.Registry

	requests       *prometheus.CounterVec
	retries        *prometheus.CounterVec
	latency        *prometheus.HistogramVec
	breakerState   *prometheus.GaugeVec
	chatTurns      *prometheus.CounterVec
	activeSessions prometheus.Gauge
}

// New creates a Recorder with its own registry, including Go runtime and process collectors.
func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ai",
			Name:      "requests_total",
			Help:      "AI requests by capability and outcome (ok or error type).",
		}, []string{"capability", "outcome"}),
		retries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ai",
			Name:      "retries_total",
			Help:      "Rate-limit retries by capability.",
		}, []string{"capability"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "ai",
			Name:      "request_duration_seconds",
			Help:      "End-to-end AI request latency including retries.",
			Buckets:   []float64{0.25, 0.5, 1, 2, 4, 8, 15, 30, 60},
		}, []string{"capability"}),
		breakerState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "ai",
			Name:      "circuit_breaker_state",
			Help:      "Circuit breaker state per provider: 0 closed, 1 half-open, 2 open.",
		}, []string{"provider"}),
		chatTurns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "chat",
			Name:      "turns_total",
			Help:      "Chat turns by outcome.",
		}, []string{"outcome"}),
		activeSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "chat",
			Name:      "active_sessions",
			Help:      "Chat sessions currently held in memory.",
		}),
	}

	r.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		r.requests,
		r.retries,
		r.latency,
		r.breakerState,
		r.chatTurns,
		r.activeSessions,
	)
	return r
}

// Registry returns the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

// ObserveRequest records one finished request. outcome is OutcomeOK or an error type.
func (r *Recorder) ObserveRequest(capability, outcome string, elapsed time.Duration) {
	if r == nil {
		return
	}
	r.requests.WithLabelValues(capability, outcome).Inc()
	r.latency.WithLabelValues(capability).Observe(elapsed.Seconds())
}

// IncRetry records one retry wait.
func (r *Recorder) IncRetry(capability string) {
	if r == nil {
		return
	}
	r.retries.WithLabelValues(capability).Inc()
}

// ObserveBreaker records a circuit breaker transition. Its signature matches the
// guarded provider's state observer.
func (r *Recorder) ObserveBreaker(provider string, _, to gobreaker.State) {
	if r == nil {
		return
	}
	r.breakerState.WithLabelValues(provider).Set(breakerValue(to))
}

func breakerValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}

// ObserveChatTurn records a finished chat turn.
func (r *Recorder) ObserveChatTurn(outcome string) {
	if r == nil {
		return
	}
	r.chatTurns.WithLabelValues(outcome).Inc()
}

// SetActiveSessions reports the number of live chat sessions.
func (r *Recorder) SetActiveSessions(n int) {
	if r == nil {
		return
	}
	r.activeSessions.Set(float64(n))
}
