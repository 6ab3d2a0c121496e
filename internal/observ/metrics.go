package observ

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups the collectors both processes register. Each process
// builds its own registry so tests can construct as many as they like.
type Metrics struct {
	registry *prometheus.Registry

	HTTPRequests  *prometheus.CounterVec
	HTTPLatency   *prometheus.HistogramVec
	WSConnections prometheus.Gauge
	WSMessages    *prometheus.CounterVec
}

func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "excursia_http_requests_total",
			Help: "HTTP requests by route and status.",
		}, []string{"method", "route", "status"}),
		HTTPLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "excursia_http_request_duration_seconds",
			Help:    "HTTP request latency by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		WSConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "excursia_ws_active_connections",
			Help: "Active chat relay websocket connections.",
		}),
		WSMessages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "excursia_ws_messages_total",
			Help: "Chat relay frames by event and outcome.",
		}, []string{"event", "outcome"}),
	}

	m.registry.MustRegister(
		m.HTTPRequests,
		m.HTTPLatency,
		m.WSConnections,
		m.WSMessages,
		collectors.NewGoCollector(),
	)
	return m
}

// Handler exposes the registry for Prometheus scraping.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
