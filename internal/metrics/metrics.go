// Package metrics exposes Prometheus collectors for the HTTP server and the
// background importers.
package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Import outcomes.
const (
	OutcomeOK    = "ok"
	OutcomeError = "error"
)

var (
	httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ty_http_requests_total",
		Help: "HTTP requests by method, route and status code",
	}, []string{"method", "route", "status"})

	httpDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ty_http_request_duration_seconds",
		Help:    "HTTP request latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})

	importsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ty_imports_total",
		Help: "Finished background imports by kind and outcome",
	}, []string{"kind", "outcome"})

	activeImports = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "ty_active_imports",
		Help: "Background imports currently running",
	}, []string{"kind"})
)

// Middleware records one counter sample and one latency observation per
// request. Unmatched routes are reported as "unmatched".
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		method := c.Request.Method
		httpRequests.WithLabelValues(method, route, strconv.Itoa(c.Writer.Status())).Inc()
		httpDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
	}
}

// Handler serves the default registry.
func Handler() gin.HandlerFunc {
	return gin.WrapH(promhttp.Handler())
}

// ImportStarted marks an import of kind as running and returns the func
// that records its outcome.
func ImportStarted(kind string) func(err error) {
	activeImports.WithLabelValues(kind).Inc()
	return func(err error) {
		activeImports.WithLabelValues(kind).Dec()
		outcome := OutcomeOK
		if err != nil {
			outcome = OutcomeError
		}
		importsTotal.WithLabelValues(kind, outcome).Inc()
	}
}
