// Package metrics exposes Prometheus counters for uploads, editor commands
// and HTTP requests. A nil *Metrics records nothing.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "portal"

type Metrics struct {
	registry *prometheus.Registry

	uploadAttempts  *prometheus.CounterVec
	editorCommands  *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	articleFallback prometheus.Counter
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		uploadAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "image_upload_attempts_total",
			Help:      "Image upload attempts by result.",
		}, []string{"result"}),
		editorCommands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "editor_commands_total",
			Help:      "Formatting commands applied in the editor.",
		}, []string{"command", "result"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
		articleFallback: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "article_sample_fallback_total",
			Help:      "Article list requests served from the bundled samples.",
		}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.uploadAttempts,
		m.editorCommands,
		m.requestDuration,
		m.articleFallback,
	)
	return m
}

// Handler serves the registry in the Prometheus text format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry is exposed for tests
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) UploadAttempt(ok bool) {
	if m == nil {
		return
	}
	result := "error"
	if ok {
		result = "success"
	}
	m.uploadAttempts.WithLabelValues(result).Inc()
}

func (m *Metrics) EditorCommand(command, result string) {
	if m == nil {
		return
	}
	m.editorCommands.WithLabelValues(command, result).Inc()
}

func (m *Metrics) Request(method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.requestDuration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(d.Seconds())
}

func (m *Metrics) ArticleFallback() {
	if m == nil {
		return
	}
	m.articleFallback.Inc()
}
