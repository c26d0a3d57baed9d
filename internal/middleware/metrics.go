package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "securesearch_http_requests_total",
		Help: "Total HTTP requests processed, labeled by route, method and status.",
	}, []string{"route", "method", "status"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "securesearch_http_request_duration_seconds",
		Help:    "HTTP request latency in seconds, labeled by route and method.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route", "method"})

	candidatesChecked = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "securesearch_search_candidates_checked",
		Help:    "Number of candidates homomorphically scored per search request.",
		Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
	})
)

// Metrics records per-request counters and latency histograms for
// Prometheus scraping. Route labels use the registered gin route pattern
// (c.FullPath()) rather than the raw path, so per-client URLs like
// /stats/:client_id don't explode the label cardinality.
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := strconv.Itoa(c.Writer.Status())

		requestsTotal.WithLabelValues(route, c.Request.Method, status).Inc()
		requestDuration.WithLabelValues(route, c.Request.Method).Observe(time.Since(start).Seconds())
	}
}

// ObserveCandidatesChecked records how many candidates a single search
// request scored homomorphically, for capacity-planning dashboards.
func ObserveCandidatesChecked(n int) {
	candidatesChecked.Observe(float64(n))
}
