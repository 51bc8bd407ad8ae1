package metrics

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
)

var (
	// HTTP metrics
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "places",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total HTTP requests processed",
	}, []string{"method", "path", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "places",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency in seconds",
		Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
	}, []string{"method", "path"})

	httpResponseSize = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "places",
		Subsystem: "http",
		Name:      "response_size_bytes",
		Help:      "HTTP response size in bytes",
		Buckets:   prometheus.ExponentialBuckets(100, 10, 6),
	}, []string{"method", "path"})

	// Ingestion metrics
	SyncRunsStarted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "places",
		Subsystem: "sync",
		Name:      "runs_started_total",
		Help:      "Total ingestion runs started",
	}, []string{"region"})

	SyncRunsFinished = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "places",
		Subsystem: "sync",
		Name:      "runs_finished_total",
		Help:      "Total ingestion runs finished, by terminal status",
	}, []string{"region", "status"})

	SyncRunDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "places",
		Subsystem: "sync",
		Name:      "run_duration_seconds",
		Help:      "Duration of ingestion runs",
		Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
	}, []string{"region"})

	PlacesUpserted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "places",
		Subsystem: "sync",
		Name:      "places_upserted_total",
		Help:      "Total place records written, by upsert outcome",
	}, []string{"outcome"})

	CandidatesSkipped = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "places",
		Subsystem: "sync",
		Name:      "candidates_skipped_total",
		Help:      "Total candidates skipped during ingestion",
	}, []string{"reason"})

	// Upstream directory metrics
	UpstreamCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "places",
		Subsystem: "upstream",
		Name:      "calls_total",
		Help:      "Total upstream directory calls, by operation and outcome",
	}, []string{"operation", "outcome"})

	UpstreamRetries = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "places",
		Subsystem: "upstream",
		Name:      "retries_total",
		Help:      "Total upstream call retries, by failure kind",
	}, []string{"kind"})

	GateWaitDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "places",
		Subsystem: "upstream",
		Name:      "gate_wait_duration_seconds",
		Help:      "Time spent waiting on the upstream call gate",
		Buckets:   []float64{0.001, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 5, 30},
	})

	// Search metrics
	SearchQueries = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "places",
		Subsystem: "search",
		Name:      "queries_total",
		Help:      "Total search queries executed, by shape",
	}, []string{"shape"})

	CacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "places",
		Subsystem: "cache",
		Name:      "hits_total",
		Help:      "Total cache hits",
	}, []string{"operation"})

	CacheMisses = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "places",
		Subsystem: "cache",
		Name:      "misses_total",
		Help:      "Total cache misses",
	}, []string{"operation"})

	// Database pool metrics
	DBPoolConnsOpen = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "places",
		Subsystem: "db",
		Name:      "pool_conns_open",
		Help:      "Total connections open in the database pool",
	})

	DBPoolConnsAcquired = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "places",
		Subsystem: "db",
		Name:      "pool_conns_acquired",
		Help:      "Connections currently acquired from the database pool",
	})

	DBPoolConnsIdle = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "places",
		Subsystem: "db",
		Name:      "pool_conns_idle",
		Help:      "Idle connections in the database pool",
	})
)

// Middleware records request metrics.
func Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		err := c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Response().StatusCode())
		path := c.Route().Path
		if path == "" {
			path = c.Path()
		}
		method := c.Method()

		httpRequestsTotal.WithLabelValues(method, path, status).Inc()
		httpRequestDuration.WithLabelValues(method, path).Observe(duration)
		httpResponseSize.WithLabelValues(method, path).Observe(float64(len(c.Response().Body())))

		return err
	}
}

// Handler returns a Fiber handler serving the Prometheus /metrics endpoint.
func Handler() fiber.Handler {
	handler := promhttp.Handler()
	return func(c *fiber.Ctx) error {
		fasthttpadaptor.NewFastHTTPHandler(handler)(c.Context())
		return nil
	}
}

// UpdateDBPoolMetrics updates database pool gauges from pgx pool stats.
// The stat parameter is matched structurally so this package does not
// import pgxpool.
func UpdateDBPoolMetrics(stat interface{}) {
	type poolStat interface {
		AcquiredConns() int32
		IdleConns() int32
		TotalConns() int32
	}

	if s, ok := stat.(poolStat); ok {
		DBPoolConnsAcquired.Set(float64(s.AcquiredConns()))
		DBPoolConnsIdle.Set(float64(s.IdleConns()))
		DBPoolConnsOpen.Set(float64(s.TotalConns()))
	}
}
