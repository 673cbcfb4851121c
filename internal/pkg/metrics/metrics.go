package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP metrics
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "droneplan",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total HTTP requests processed",
	}, []string{"method", "path", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "droneplan",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency in seconds",
		Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
	}, []string{"method", "path"})

	// Planner metrics
	RoutesPlanned = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "droneplan",
		Subsystem: "planner",
		Name:      "routes_total",
		Help:      "Routes planned by fallback tier and category",
	}, []string{"tier", "category"})

	RoutesSkipped = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "droneplan",
		Subsystem: "planner",
		Name:      "routes_skipped_total",
		Help:      "Route pairs skipped because an endpoint could not be rescued",
	}, []string{"category"})

	SearchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "droneplan",
		Subsystem: "planner",
		Name:      "search_duration_seconds",
		Help:      "Time spent answering one route query",
		Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
	}, []string{"tier"})

	CellsExpanded = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "droneplan",
		Subsystem: "planner",
		Name:      "cells_expanded",
		Help:      "Cells expanded per route query over all search tiers",
		Buckets:   prometheus.ExponentialBuckets(10, 4, 10),
	})

	// Grid metrics
	GridBuildDuration = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "droneplan",
		Subsystem: "grid",
		Name:      "build_duration_seconds",
		Help:      "Duration of the last occupancy grid build",
	})

	GridCells = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "droneplan",
		Subsystem: "grid",
		Name:      "cells",
		Help:      "Occupancy grid cell counts by layer",
	}, []string{"layer"})

	// Cache metrics
	CacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "droneplan",
		Subsystem: "cache",
		Name:      "hits_total",
		Help:      "Total route cache hits",
	})

	CacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "droneplan",
		Subsystem: "cache",
		Name:      "misses_total",
		Help:      "Total route cache misses",
	})
)

// Middleware records request metrics.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		method := c.Request.Method
		status := strconv.Itoa(c.Writer.Status())

		httpRequestsTotal.WithLabelValues(method, path, status).Inc()
		httpRequestDuration.WithLabelValues(method, path).Observe(time.Since(start).Seconds())
	}
}

// Handler returns a gin handler serving the Prometheus /metrics endpoint.
func Handler() gin.HandlerFunc {
	return gin.WrapH(promhttp.Handler())
}

// ObserveRoute records one answered route query.
func ObserveRoute(category, tier string, expanded int, took time.Duration) {
	RoutesPlanned.WithLabelValues(tier, category).Inc()
	SearchDuration.WithLabelValues(tier).Observe(took.Seconds())
	CellsExpanded.Observe(float64(expanded))
}

// ObserveGrid records the outcome of an occupancy grid build.
func ObserveGrid(cells, blocked, interior int, took time.Duration) {
	GridBuildDuration.Set(took.Seconds())
	GridCells.WithLabelValues("total").Set(float64(cells))
	GridCells.WithLabelValues("blocked").Set(float64(blocked))
	GridCells.WithLabelValues("interior").Set(float64(interior))
}
