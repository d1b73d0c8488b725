// Package observability owns the Prometheus collectors of the API.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups every collector the service exports.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	HTTPInFlight        prometheus.Gauge
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	RateLimitDecisions *prometheus.CounterVec
	AuthFailures       *prometheus.CounterVec
	JWKSRefreshes      *prometheus.CounterVec

	WebhookDeliveries *prometheus.CounterVec
	WebhookAttempts   prometheus.Histogram
	WebhookQueueDepth prometheus.Gauge
	WebhookDropped    prometheus.Counter
}

// NewMetrics creates and registers all collectors on a fresh registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry: reg,
		HTTPInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "http_in_flight_requests",
			Help: "In-flight HTTP requests.",
		}),
		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		}, []string{"method", "route", "status"}),
		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
		RateLimitDecisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ratelimit_decisions_total",
			Help: "Rate limit admissions by tier and outcome.",
		}, []string{"tier", "outcome"}),
		AuthFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "auth_failures_total",
			Help: "Rejected requests by pipeline stage.",
		}, []string{"stage"}),
		JWKSRefreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "jwks_refreshes_total",
			Help: "Remote key set fetches by result.",
		}, []string{"result"}),
		WebhookDeliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "webhook_deliveries_total",
			Help: "Terminal webhook delivery outcomes.",
		}, []string{"event", "outcome"}),
		WebhookAttempts: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "webhook_delivery_attempts",
			Help:    "Attempts used per webhook delivery.",
			Buckets: []float64{1, 2, 3, 4, 5},
		}),
		WebhookQueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "webhook_queue_depth",
			Help: "Dispatch jobs waiting for a worker.",
		}),
		WebhookDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "webhook_dispatch_dropped_total",
			Help: "Dispatch jobs dropped because the queue was full.",
		}),
	}

	reg.MustRegister(
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		m.HTTPInFlight, m.HTTPRequestsTotal, m.HTTPRequestDuration,
		m.RateLimitDecisions, m.AuthFailures, m.JWKSRefreshes,
		m.WebhookDeliveries, m.WebhookAttempts, m.WebhookQueueDepth, m.WebhookDropped,
	)
	return m
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) ObserveRateLimit(tier string, allowed bool) {
	if m == nil {
		return
	}
	outcome := "allowed"
	if !allowed {
		outcome = "denied"
	}
	m.RateLimitDecisions.WithLabelValues(tier, outcome).Inc()
}

func (m *Metrics) ObserveAuthFailure(stage string) {
	if m == nil {
		return
	}
	m.AuthFailures.WithLabelValues(stage).Inc()
}

func (m *Metrics) ObserveJWKSRefresh(err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.JWKSRefreshes.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveDelivery(event string, success bool, attempts int) {
	if m == nil {
		return
	}
	outcome := "success"
	if !success {
		outcome = "failure"
	}
	m.WebhookDeliveries.WithLabelValues(event, outcome).Inc()
	m.WebhookAttempts.Observe(float64(attempts))
}

func (m *Metrics) SetQueueDepth(n int) {
	if m == nil {
		return
	}
	m.WebhookQueueDepth.Set(float64(n))
}

func (m *Metrics) IncDropped() {
	if m == nil {
		return
	}
	m.WebhookDropped.Inc()
}
