package service

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService encapsulates Prometheus instrumentation for the
// registration engine and the HTTP layer.
type MetricsService struct {
	registry *prometheus.Registry
	handler  http.Handler

	requestDuration  *prometheus.HistogramVec
	requestTotal     *prometheus.CounterVec
	enrollmentsTotal *prometheus.CounterVec
	seatClaimsTotal  *prometheus.CounterVec
	compensationsRun prometheus.Counter
	auditFailures    prometheus.Counter
	cacheHits        prometheus.Counter
	cacheMisses      prometheus.Counter
}

// NewMetricsService registers core Prometheus collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	enrollmentsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "enrollments_total",
		Help: "Enrollment requests by terminal outcome",
	}, []string{"outcome"})

	seatClaimsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "seat_claims_total",
		Help: "Seat ledger operations by result",
	}, []string{"result"})

	compensationsRun := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "seat_compensations_total",
		Help: "Compensating seat releases after partial enrollment failures",
	})

	auditFailures := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "audit_append_failures_total",
		Help: "Enrollment events that could not be appended",
	})

	cacheHits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_hits_total",
		Help: "Total cache hits",
	})

	cacheMisses := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_misses_total",
		Help: "Total cache misses",
	})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, enrollmentsTotal, seatClaimsTotal, compensationsRun, auditFailures, cacheHits, cacheMisses, goroutines)

	return &MetricsService{
		registry:         registry,
		handler:          promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration:  requestDuration,
		requestTotal:     requestTotal,
		enrollmentsTotal: enrollmentsTotal,
		seatClaimsTotal:  seatClaimsTotal,
		compensationsRun: compensationsRun,
		auditFailures:    auditFailures,
		cacheHits:        cacheHits,
		cacheMisses:      cacheMisses,
	}
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveHTTPRequest records request metrics.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
}

// RecordOutcome counts an enrollment request's terminal outcome
// (registered, waitlisted, rejected, busy, dropped).
func (m *MetricsService) RecordOutcome(outcome string) {
	if m == nil {
		return
	}
	m.enrollmentsTotal.WithLabelValues(outcome).Inc()
}

// RecordSeatClaim counts a seat ledger operation result.
func (m *MetricsService) RecordSeatClaim(result string) {
	if m == nil {
		return
	}
	m.seatClaimsTotal.WithLabelValues(result).Inc()
}

// RecordCompensation counts a compensating seat release.
func (m *MetricsService) RecordCompensation() {
	if m == nil {
		return
	}
	m.compensationsRun.Inc()
}

// RecordAuditFailure counts an audit append that failed.
func (m *MetricsService) RecordAuditFailure() {
	if m == nil {
		return
	}
	m.auditFailures.Inc()
}

// RecordCacheOperation records a cache hit or miss.
func (m *MetricsService) RecordCacheOperation(hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.cacheHits.Inc()
	} else {
		m.cacheMisses.Inc()
	}
}
