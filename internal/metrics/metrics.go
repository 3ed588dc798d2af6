// Package metrics exposes gateway counters in Prometheus format.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// DefaultBuckets are the request duration histogram buckets in seconds.
var DefaultBuckets = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0}

// Collector owns the gateway's Prometheus registry and metrics.
type Collector struct {
	registry *prometheus.Registry

	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	authResults     *prometheus.CounterVec
	backendUp       *prometheus.GaugeVec
}

// NewCollector builds a collector with its own registry, so tests never
// collide on the global default registry.
func NewCollector() *Collector {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	return &Collector{
		registry: reg,
		requestsTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "gateway_requests_total",
			Help: "Requests handled by the gateway, by service, method, and status.",
		}, []string{"service", "method", "status"}),
		requestDuration: promauto.With(reg).NewHistogramVec(prometheus.HistogramOpts{
			Name:    "gateway_request_duration_seconds",
			Help:    "End-to-end request latency, including the backend call.",
			Buckets: DefaultBuckets,
		}, []string{"service", "method"}),
		authResults: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "gateway_auth_results_total",
			Help: "Token validation outcomes.",
		}, []string{"result"}),
		backendUp: promauto.With(reg).NewGaugeVec(prometheus.GaugeOpts{
			Name: "gateway_backend_up",
			Help: "Last settled health probe per service: 1 healthy, 0 unhealthy.",
		}, []string{"service"}),
	}
}

// RecordRequest records one completed request.
func (c *Collector) RecordRequest(service, method string, statusCode int, duration time.Duration) {
	status := strconv.Itoa(statusCode)
	c.requestsTotal.WithLabelValues(service, method, status).Inc()
	c.requestDuration.WithLabelValues(service, method).Observe(duration.Seconds())
}

// RecordAuthResult records one token validation outcome. Known results are
// "success", "rejected", "degraded", and "unavailable".
func (c *Collector) RecordAuthResult(result string) {
	c.authResults.WithLabelValues(result).Inc()
}

// SetBackendUp records a service's settled health status.
func (c *Collector) SetBackendUp(service string, up bool) {
	v := 0.0
	if up {
		v = 1.0
	}
	c.backendUp.WithLabelValues(service).Set(v)
}

// Handler serves the Prometheus exposition endpoint.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
