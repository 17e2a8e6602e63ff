// Package metrics holds the Prometheus collectors for the intake gateway.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics is safe for concurrent use. Every method is a no-op on a nil
// receiver so callers can run with metrics disabled.
type Metrics struct {
	registry *prometheus.Registry

	httpRequests *prometheus.CounterVec

	liveSessionsActive  prometheus.Gauge
	liveSessionsTotal   *prometheus.CounterVec
	liveSessionDuration prometheus.Histogram
	liveAudioBytesTotal *prometheus.CounterVec

	extractionsTotal   *prometheus.CounterVec
	extractionDuration prometheus.Histogram

	intakesCompleted prometheus.Counter
	interrupts       prometheus.Counter
	persistErrors    prometheus.Counter
}

func New(namespace string) *Metrics {
	if namespace == "" {
		namespace = "intake"
	}

	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by handler, method and status code",
		}, []string{"handler", "method", "code"}),
		liveSessionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "live_sessions_active",
			Help:      "Number of active live sessions",
		}),
		liveSessionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "live_sessions_total",
			Help:      "Total number of live sessions by outcome",
		}, []string{"status"}),
		liveSessionDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "live_session_duration_seconds",
			Help:      "Live session duration in seconds",
			Buckets:   []float64{5, 30, 60, 120, 300, 600, 900, 1800},
		}),
		liveAudioBytesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "live_audio_bytes_total",
			Help:      "Audio bytes relayed in live sessions",
		}, []string{"direction"}),
		extractionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "extractions_total",
			Help:      "Structured extraction calls by trigger and outcome",
		}, []string{"trigger", "outcome"}),
		extractionDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "extraction_duration_seconds",
			Help:      "Structured extraction call latency in seconds",
			Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 30},
		}),
		intakesCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "intakes_completed_total",
			Help:      "Intakes completed through the completion tool",
		}),
		interrupts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "interrupts_total",
			Help:      "Client interrupts that drained pending model output",
		}),
		persistErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "persist_errors_total",
			Help:      "Failed attempts to persist a completed intake",
		}),
	}

	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequests,
		m.liveSessionsActive,
		m.liveSessionsTotal,
		m.liveSessionDuration,
		m.liveAudioBytesTotal,
		m.extractionsTotal,
		m.extractionDuration,
		m.intakesCompleted,
		m.interrupts,
		m.persistErrors,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Instrument counts requests served by next under the given handler label.
func (m *Metrics) Instrument(handler string, next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return promhttp.InstrumentHandlerCounter(m.httpRequests.MustCurryWith(prometheus.Labels{"handler": handler}), next)
}

func (m *Metrics) SessionStarted() {
	if m == nil {
		return
	}
	m.liveSessionsActive.Inc()
}

func (m *Metrics) SessionEnded(status string, d time.Duration) {
	if m == nil {
		return
	}
	m.liveSessionsActive.Dec()
	m.liveSessionsTotal.WithLabelValues(status).Inc()
	m.liveSessionDuration.Observe(d.Seconds())
}

func (m *Metrics) AddAudioBytes(direction string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.liveAudioBytesTotal.WithLabelValues(direction).Add(float64(n))
}

func (m *Metrics) ObserveExtraction(trigger, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.extractionsTotal.WithLabelValues(trigger, outcome).Inc()
	m.extractionDuration.Observe(d.Seconds())
}

func (m *Metrics) IncIntakesCompleted() {
	if m == nil {
		return
	}
	m.intakesCompleted.Inc()
}

func (m *Metrics) IncInterrupts() {
	if m == nil {
		return
	}
	m.interrupts.Inc()
}

func (m *Metrics) IncPersistErrors() {
	if m == nil {
		return
	}
	m.persistErrors.Inc()
}
