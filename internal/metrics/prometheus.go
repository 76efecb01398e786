package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lab_engine_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "lab_engine_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"method", "path"},
	)

	httpRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "lab_engine_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)

	// Engine metrics
	viewBuildsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lab_engine_view_builds_total",
			Help: "Total number of analysis view builds",
		},
		[]string{"source"},
	)

	viewBuildDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "lab_engine_view_build_duration_seconds",
			Help:    "Analysis view build duration in seconds",
			Buckets: []float64{.0001, .0005, .001, .005, .01, .05, .1},
		},
	)

	classificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lab_engine_classifications_total",
			Help: "Total number of test names classified, by category",
		},
		[]string{"category"},
	)

	abnormalRowsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lab_engine_abnormal_rows_total",
			Help: "Total number of lab result rows flagged abnormal, by tab",
		},
		[]string{"category"},
	)

	invalidRowsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "lab_engine_invalid_rows_total",
			Help: "Total number of lab result rows carrying neither a numeric nor a text value",
		},
	)

	cacheOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lab_engine_cache_operations_total",
			Help: "Total number of view cache operations",
		},
		[]string{"backend", "result"},
	)

	feedbackSubmissions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lab_engine_feedback_submissions_total",
			Help: "Total number of category feedback submissions",
		},
		[]string{"agreed"},
	)
)

// Handler returns the Prometheus metrics HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// GinMiddleware records request counts and latencies. Paths are taken from the
// matched route template to keep label cardinality bounded.
func GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		httpRequestsInFlight.Inc()
		defer httpRequestsInFlight.Dec()

		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}

		httpRequestsTotal.WithLabelValues(c.Request.Method, path, strconv.Itoa(c.Writer.Status())).Inc()
		httpRequestDuration.WithLabelValues(c.Request.Method, path).Observe(time.Since(start).Seconds())
	}
}

// --- Engine metric helpers ---

// RecordViewBuild records one view build. source is "computed" or "cache".
func RecordViewBuild(source string, duration time.Duration) {
	viewBuildsTotal.WithLabelValues(source).Inc()
	viewBuildDuration.Observe(duration.Seconds())
}

// RecordClassification records a classified test name
func RecordClassification(category string) {
	classificationsTotal.WithLabelValues(category).Inc()
}

// RecordAbnormalRows adds abnormal rows of one tab
func RecordAbnormalRows(category string, n int) {
	if n <= 0 {
		return
	}
	abnormalRowsTotal.WithLabelValues(category).Add(float64(n))
}

// RecordInvalidRow records a row that violates the value invariant
func RecordInvalidRow() {
	invalidRowsTotal.Inc()
}

// RecordCacheOperation records a cache hit, miss or error
func RecordCacheOperation(backend, result string) {
	cacheOperations.WithLabelValues(backend, result).Inc()
}

// RecordFeedback records a feedback submission
func RecordFeedback(agreed bool) {
	feedbackSubmissions.WithLabelValues(strconv.FormatBool(agreed)).Inc()
}
