package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics collects Prometheus metrics for the API process.
type Metrics struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	rateLimits      *prometheus.CounterVec
	auditWrites     *prometheus.CounterVec
	authzDenials    *prometheus.CounterVec
}

// NewMetrics builds a private registry with the HTTP and security collectors.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "lumen_http_requests_total",
		Help: "HTTP requests by route and status code.",
	}, []string{"route", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "lumen_http_request_duration_seconds",
		Help:    "HTTP request duration per route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	rateLimits := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "lumen_ratelimit_decisions_total",
		Help: "Rate limiter decisions by preset and outcome.",
	}, []string{"preset", "outcome"})
	auditWrites := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "lumen_audit_writes_total",
		Help: "Audit writes by outcome.",
	}, []string{"outcome"})
	denials := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "lumen_authz_denials_total",
		Help: "Requests refused by the authorizer, by kind.",
	}, []string{"kind"})
	registry.MustRegister(requests, duration, rateLimits, auditWrites, denials)
	return &Metrics{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestsTotal:   requests,
		requestDuration: duration,
		rateLimits:      rateLimits,
		auditWrites:     auditWrites,
		authzDenials:    denials,
	}
}

// Handler returns the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Middleware records request count and latency per route pattern.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(&recorder, r)
		route := routePattern(r)
		m.requestsTotal.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
		m.requestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

// ObserveRateLimit counts one limiter decision.
func (m *Metrics) ObserveRateLimit(preset, outcome string) {
	if m == nil {
		return
	}
	m.rateLimits.WithLabelValues(preset, outcome).Inc()
}

// ObserveAuditWrite counts one audit write outcome.
func (m *Metrics) ObserveAuditWrite(outcome string) {
	if m == nil {
		return
	}
	m.auditWrites.WithLabelValues(outcome).Inc()
}

// ObserveAuthzDenial counts one 401 or 403.
func (m *Metrics) ObserveAuthzDenial(kind string) {
	if m == nil {
		return
	}
	m.authzDenials.WithLabelValues(kind).Inc()
}

// Registerer exposes the registry for additional collectors.
func (m *Metrics) Registerer() prometheus.Registerer {
	if m == nil {
		return prometheus.DefaultRegisterer
	}
	return m.registry
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func routePattern(r *http.Request) string {
	if routeCtx := chi.RouteContext(r.Context()); routeCtx != nil {
		if pattern := routeCtx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unknown"
}
