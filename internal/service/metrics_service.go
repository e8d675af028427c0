package service

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService encapsulates Prometheus instrumentation for the API and
// the booking engine.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	cacheLatency    prometheus.Observer
	cacheWrite      prometheus.Observer
	cacheHits       prometheus.Counter
	cacheMisses     prometheus.Counter

	bookingsCommitted   prometheus.Counter
	settlementConflicts prometheus.Counter
	settlementReplays   prometheus.Counter
	sessionsExpired     prometheus.Counter
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

	cacheLatency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cache_latency_seconds",
		Help:    "Latency for cache operations",
		Buckets: prometheus.DefBuckets,
	})

	cacheWrite := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cache_write_seconds",
		Help:    "Latency for cache set operations",
		Buckets: prometheus.DefBuckets,
	})

	cacheHits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_hits_total",
		Help: "Total cache hits",
	})

	cacheMisses := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_misses_total",
		Help: "Total cache misses",
	})

	bookingsCommitted := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "bookings_committed_total",
		Help: "Bookings created by successful settlements",
	})

	settlementConflicts := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "settlement_conflicts_total",
		Help: "Settlements rejected because a slot was no longer free",
	})

	settlementReplays := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "settlement_replays_total",
		Help: "Duplicate settlement notifications short-circuited",
	})

	sessionsExpired := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "payment_sessions_expired_total",
		Help: "Pending payment sessions swept past their expiry",
	})

	registry.MustRegister(requestDuration, requestTotal, cacheLatency, cacheWrite, cacheHits, cacheMisses, bookingsCommitted, settlementConflicts, settlementReplays, sessionsExpired)

	return &MetricsService{
		registry:            registry,
		handler:             promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration:     requestDuration,
		requestTotal:        requestTotal,
		cacheLatency:        cacheLatency,
		cacheWrite:          cacheWrite,
		cacheHits:           cacheHits,
		cacheMisses:         cacheMisses,
		bookingsCommitted:   bookingsCommitted,
		settlementConflicts: settlementConflicts,
		settlementReplays:   settlementReplays,
		sessionsExpired:     sessionsExpired,
	}
}

// Handler exposes the Prometheus scrape endpoint.
func (s *MetricsService) Handler() http.Handler {
	return s.handler
}

// ObserveHTTPRequest records request metrics.
func (s *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	labels := []string{method, path, strconv.Itoa(status)}
	s.requestDuration.WithLabelValues(labels...).Observe(duration.Seconds())
	s.requestTotal.WithLabelValues(labels...).Inc()
}

// RecordCacheOperation records a cache lookup.
func (s *MetricsService) RecordCacheOperation(hit bool, duration time.Duration) {
	s.cacheLatency.Observe(duration.Seconds())
	if hit {
		s.cacheHits.Inc()
	} else {
		s.cacheMisses.Inc()
	}
}

// ObserveCacheWrite records a cache set.
func (s *MetricsService) ObserveCacheWrite(duration time.Duration) {
	s.cacheWrite.Observe(duration.Seconds())
}

// RecordBookingsCommitted counts bookings created by a settlement.
func (s *MetricsService) RecordBookingsCommitted(count int) {
	if s == nil {
		return
	}
	s.bookingsCommitted.Add(float64(count))
}

// RecordSettlementConflict counts a conflict rejection.
func (s *MetricsService) RecordSettlementConflict() {
	if s == nil {
		return
	}
	s.settlementConflicts.Inc()
}

// RecordSettlementReplay counts an idempotent replay.
func (s *MetricsService) RecordSettlementReplay() {
	if s == nil {
		return
	}
	s.settlementReplays.Inc()
}

// RecordSessionsExpired counts sessions swept by the expiry job.
func (s *MetricsService) RecordSessionsExpired(count int64) {
	if s == nil {
		return
	}
	s.sessionsExpired.Add(float64(count))
}
