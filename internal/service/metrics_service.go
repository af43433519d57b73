package service

import (
	"net/http"
	"runtime"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/stageflow/stageflow-api/internal/models"
)

const metricsNamespace = "stageflow"

// tally accumulates the plain counters behind the admin snapshot,
// separate from the Prometheus collectors so Snapshot never has to
// scrape its own registry.
type tally struct {
	cacheHits       uint64
	cacheMisses     uint64
	requests        uint64
	requestNanos    uint64
	dbQueries       uint64
	dbQueryNanos    uint64
}

// MetricsService owns the Prometheus registry and the snapshot tallies.
// All methods are safe on a nil receiver, so instrumentation call sites
// never need to guard against metrics being disabled.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	cacheLatency    prometheus.Observer
	cacheWrite      prometheus.Observer
	cacheHitRatio   prometheus.Gauge
	cacheHits       prometheus.Counter
	cacheMisses     prometheus.Counter
	dbQueryDuration *prometheus.HistogramVec

	tally tally
}

// NewMetricsService builds a service with its own registry, so tests
// can construct several instances without collector name collisions.
func NewMetricsService() *MetricsService {
	m := &MetricsService{registry: prometheus.NewRegistry()}

	m.requestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: metricsNamespace,
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency by route.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	m.requestTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "http_requests_total",
		Help:      "HTTP requests served.",
	}, []string{"method", "path", "status"})

	cacheLatency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: metricsNamespace,
		Name:      "cache_latency_seconds",
		Help:      "Cache lookup latency.",
		Buckets:   prometheus.DefBuckets,
	})
	m.cacheLatency = cacheLatency

	cacheWrite := prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: metricsNamespace,
		Name:      "cache_write_seconds",
		Help:      "Cache write latency.",
		Buckets:   prometheus.DefBuckets,
	})
	m.cacheWrite = cacheWrite

	m.cacheHitRatio = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: metricsNamespace,
		Name:      "cache_hit_ratio",
		Help:      "Hits over total cache lookups since start.",
	})

	m.cacheHits = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "cache_hits_total",
		Help:      "Cache lookups answered from cache.",
	})

	m.cacheMisses = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "cache_misses_total",
		Help:      "Cache lookups that fell through.",
	})

	m.dbQueryDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: metricsNamespace,
		Name:      "db_query_duration_seconds",
		Help:      "Database query latency by label.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"query"})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: metricsNamespace,
		Name:      "goroutines",
		Help:      "Live goroutine count.",
	}, func() float64 { return float64(runtime.NumGoroutine()) })

	m.registry.MustRegister(
		m.requestDuration, m.requestTotal,
		cacheLatency, cacheWrite,
		m.cacheHitRatio, m.cacheHits, m.cacheMisses,
		m.dbQueryDuration, goroutines,
	)
	m.handler = promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
	return m
}

// Handler serves the Prometheus text exposition for this registry.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveHTTPRequest records one served request.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	code := strconv.Itoa(status)
	m.requestDuration.WithLabelValues(method, path, code).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, code).Inc()
	atomic.AddUint64(&m.tally.requests, 1)
	atomic.AddUint64(&m.tally.requestNanos, uint64(duration.Nanoseconds()))
}

// RecordCacheOperation records one cache lookup and refreshes the hit
// ratio gauge.
func (m *MetricsService) RecordCacheOperation(hit bool, duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheLatency.Observe(duration.Seconds())
	if hit {
		m.cacheHits.Inc()
		atomic.AddUint64(&m.tally.cacheHits, 1)
	} else {
		m.cacheMisses.Inc()
		atomic.AddUint64(&m.tally.cacheMisses, 1)
	}
	if ratio, ok := hitRatio(atomic.LoadUint64(&m.tally.cacheHits), atomic.LoadUint64(&m.tally.cacheMisses)); ok {
		m.cacheHitRatio.Set(ratio)
	}
}

// ObserveCacheWrite records one cache write.
func (m *MetricsService) ObserveCacheWrite(duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheWrite.Observe(duration.Seconds())
}

// ObserveDBQuery records one database query under the given label.
func (m *MetricsService) ObserveDBQuery(label string, duration time.Duration) {
	if m == nil {
		return
	}
	m.dbQueryDuration.WithLabelValues(label).Observe(duration.Seconds())
	atomic.AddUint64(&m.tally.dbQueries, 1)
	atomic.AddUint64(&m.tally.dbQueryNanos, uint64(duration.Nanoseconds()))
}

// Snapshot summarises the tallies for the admin metrics endpoint.
func (m *MetricsService) Snapshot() models.SystemMetrics {
	if m == nil {
		return models.SystemMetrics{}
	}
	hits := atomic.LoadUint64(&m.tally.cacheHits)
	misses := atomic.LoadUint64(&m.tally.cacheMisses)
	requests := atomic.LoadUint64(&m.tally.requests)
	dbQueries := atomic.LoadUint64(&m.tally.dbQueries)

	ratio, _ := hitRatio(hits, misses)

	return models.SystemMetrics{
		CacheHitRatio:            ratio,
		CacheHits:                hits,
		CacheMisses:              misses,
		RequestsTotal:            requests,
		AverageRequestDurationMs: avgMillis(atomic.LoadUint64(&m.tally.requestNanos), requests),
		DBQueryCount:             dbQueries,
		AverageDBQueryDurationMs: avgMillis(atomic.LoadUint64(&m.tally.dbQueryNanos), dbQueries),
		Goroutines:               runtime.NumGoroutine(),
		GeneratedAt:              time.Now().UTC(),
	}
}

func hitRatio(hits, misses uint64) (float64, bool) {
	total := hits + misses
	if total == 0 {
		return 0, false
	}
	return float64(hits) / float64(total), true
}

func avgMillis(totalNanos, count uint64) float64 {
	if count == 0 {
		return 0
	}
	return float64(totalNanos) / float64(count) / float64(time.Millisecond)
}
