package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status", "service"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint", "service"},
	)

	wallMutationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wall_mutations_total",
			Help: "Total number of wall mutations (posts, comments, reactions)",
		},
		[]string{"kind", "status", "service"},
	)

	wallWSConnections = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "wall_ws_connections",
			Help: "Current number of WebSocket connections to the wall room",
		},
		[]string{"service"},
	)
)

func PrometheusMiddleware(serviceName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		httpRequestsTotal.WithLabelValues(
			c.Request.Method,
			path,
			status,
			serviceName,
		).Inc()

		httpRequestDuration.WithLabelValues(
			c.Request.Method,
			path,
			serviceName,
		).Observe(duration)
	}
}

// RecordWallMutation учитывает мутацию стены в метриках
func RecordWallMutation(kind, status, serviceName string) {
	wallMutationsTotal.WithLabelValues(kind, status, serviceName).Inc()
}

// WSConnectionOpened / WSConnectionClosed ведут gauge активных соединений
func WSConnectionOpened(serviceName string) {
	wallWSConnections.WithLabelValues(serviceName).Inc()
}

func WSConnectionClosed(serviceName string) {
	wallWSConnections.WithLabelValues(serviceName).Dec()
}
