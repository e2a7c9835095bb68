// Package metrics exposes Prometheus collectors for the lending lifecycle.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "librotrack"

// Metrics holds every collector on a private registry
type Metrics struct {
	registry *prometheus.Registry

	Operations    *prometheus.CounterVec
	Fines         *prometheus.CounterVec
	Expired       prometheus.Counter
	SweepDuration prometheus.Histogram
	HTTPRequests  *prometheus.CounterVec
	HTTPDuration  *prometheus.HistogramVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		Operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lifecycle_operations_total",
			Help:      "Lifecycle operations by name and outcome.",
		}, []string{"operation", "outcome"}),
		Fines: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fines_assessed_total",
			Help:      "Fines assessed by type.",
		}, []string{"fine_type"}),
		Expired: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reservations_expired_total",
			Help:      "Reservations moved to EXPIRED by the sweep.",
		}),
		SweepDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "expiry_sweep_duration_seconds",
			Help:      "Duration of reservation expiry sweeps.",
			Buckets:   prometheus.DefBuckets,
		}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route, method and status.",
		}, []string{"route", "method", "status"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.Operations,
		m.Fines,
		m.Expired,
		m.SweepDuration,
		m.HTTPRequests,
		m.HTTPDuration,
	)
	return m
}

// Registry exposes the underlying registry, mainly for tests
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Observe records the outcome of one lifecycle operation. A nil receiver
// is a no-op so components can run without metrics.
func (m *Metrics) Observe(operation string, err error) {
	if m == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	m.Operations.WithLabelValues(operation, outcome).Inc()
}

func (m *Metrics) FineAssessed(fineType string) {
	if m == nil {
		return
	}
	m.Fines.WithLabelValues(fineType).Inc()
}

func (m *Metrics) SweepFinished(expired int, took time.Duration) {
	if m == nil {
		return
	}
	m.Expired.Add(float64(expired))
	m.SweepDuration.Observe(took.Seconds())
}

// Handler serves the registry in the Prometheus text format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Middleware records request counts and latency per matched route
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.HTTPRequests.WithLabelValues(route, c.Request.Method, strconv.Itoa(c.Writer.Status())).Inc()
		m.HTTPDuration.WithLabelValues(route, c.Request.Method).Observe(time.Since(start).Seconds())
	}
}
