package monitoring

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/turtacn/ssoguard/internal/domain/service"
)

const namespace = "ssoguard"

var _ service.Metrics = (*Metrics)(nil)

// Metrics manages the Prometheus metrics. Each instance owns its registry so several
// services can live in one test binary.
type Metrics struct {
	registry *prometheus.Registry

	TokenIssueRequests  *prometheus.CounterVec
	TokenIssueLatency   *prometheus.HistogramVec
	TokenVerifications  *prometheus.CounterVec
	TokenRevocations    *prometheus.CounterVec
	RevocationLookups   *prometheus.HistogramVec
	RevocationSweeps    *prometheus.CounterVec
	RateLimitHits       *prometheus.CounterVec
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

// NewMetrics creates and registers the Prometheus metrics on a fresh registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		TokenIssueRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "token_issue_requests_total",
				Help:      "Total number of token issue requests.",
			},
			[]string{"grant_type", "result"},
		),
		TokenIssueLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "token_issue_latency_seconds",
				Help:      "Latency of token issue requests.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"grant_type"},
		),
		TokenVerifications: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "token_verifications_total",
				Help:      "Token verifications by result and failure reason.",
			},
			[]string{"result", "reason"},
		),
		TokenRevocations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "token_revocations_total",
				Help:      "Total number of token revocations.",
			},
			[]string{"source"},
		),
		RevocationLookups: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "revocation_lookup_seconds",
				Help:      "Latency of revocation store lookups.",
				Buckets:   []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25},
			},
			[]string{"backend", "result"},
		),
		RevocationSweeps: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "revocation_records_swept_total",
				Help:      "Expired revocation records removed by the sweeper.",
			},
			[]string{"backend"},
		),
		RateLimitHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rate_limit_hits_total",
				Help:      "Total number of rate limit hits.",
			},
			[]string{"scope"},
		),
		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "HTTP requests by method, route and status.",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request latency by method and route.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
	}
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// RecordTokenIssue records metrics for a token issue event.
func (m *Metrics) RecordTokenIssue(grantType string, success bool, duration time.Duration) {
	m.TokenIssueRequests.WithLabelValues(grantType, result(success)).Inc()
	m.TokenIssueLatency.WithLabelValues(grantType).Observe(duration.Seconds())
}

// RecordTokenVerify records a verification outcome.
func (m *Metrics) RecordTokenVerify(success bool, reason string) {
	m.TokenVerifications.WithLabelValues(result(success), reason).Inc()
}

// RecordTokenRevoke records metrics for a token revocation event.
func (m *Metrics) RecordTokenRevoke(source string) {
	m.TokenRevocations.WithLabelValues(source).Inc()
}

// RecordRevocationLookup records a revocation store lookup.
func (m *Metrics) RecordRevocationLookup(backend string, duration time.Duration, err error) {
	m.RevocationLookups.WithLabelValues(backend, result(err == nil)).Observe(duration.Seconds())
}

// RecordRevocationSweep records swept records.
func (m *Metrics) RecordRevocationSweep(backend string, removed int64) {
	m.RevocationSweeps.WithLabelValues(backend).Add(float64(removed))
}

// RecordRateLimitHit records a rate limit hit.
func (m *Metrics) RecordRateLimitHit(scope string) {
	m.RateLimitHits.WithLabelValues(scope).Inc()
}

// ObserveHTTPRequest records one served HTTP request.
func (m *Metrics) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

func result(success bool) string {
	if success {
		return "success"
	}
	return "failure"
}
