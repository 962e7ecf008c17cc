// Package metrics exposes the Prometheus collectors shared by the API server
// and the worker.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pathfinder_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"route", "status"},
	)

	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pathfinder_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)

	SubmissionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pathfinder_application_submissions_total",
			Help: "Application submissions by outcome",
		},
		[]string{"result"},
	)

	RollbacksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pathfinder_upload_rollbacks_total",
			Help: "Stored documents removed because a later submission step failed",
		},
		[]string{"category"},
	)

	StatusUpdatesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pathfinder_status_updates_total",
			Help: "Application status changes by target status",
		},
		[]string{"status"},
	)

	CVIndexedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pathfinder_cv_indexed_total",
			Help: "CV text extraction runs by outcome",
		},
		[]string{"result"},
	)

	OrphansRemovedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pathfinder_orphan_documents_removed_total",
			Help: "Unreferenced documents removed by the sweep",
		},
		[]string{"category"},
	)
)

func init() {
	prometheus.MustRegister(
		RequestsTotal,
		RequestDuration,
		SubmissionsTotal,
		RollbacksTotal,
		StatusUpdatesTotal,
		CVIndexedTotal,
		OrphansRemovedTotal,
	)
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordRequest records one served HTTP request.
func RecordRequest(route, status string, duration time.Duration) {
	RequestsTotal.WithLabelValues(route, status).Inc()
	RequestDuration.WithLabelValues(route).Observe(duration.Seconds())
}

// Middleware records every request under its matched route pattern so path
// parameters do not explode label cardinality.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		RecordRequest(c.Request.Method+" "+route, strconv.Itoa(c.Writer.Status()), time.Since(start))
	}
}
