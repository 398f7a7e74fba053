package metrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RequestCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5},
		},
		[]string{"method", "endpoint"},
	)

	TokenRedemptions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quiz_token_redemptions_total",
			Help: "Access token redemption attempts by result",
		},
		[]string{"result"},
	)

	SessionsResolved = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quiz_sessions_resolved_total",
			Help: "Resolved quiz sessions by outcome (created, continued)",
		},
		[]string{"outcome"},
	)

	AnswersSubmitted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quiz_answers_submitted_total",
			Help: "Graded answers by correctness",
		},
		[]string{"correct"},
	)

	Finalizations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quiz_finalizations_total",
			Help: "Completion requests by status and whether a summary already existed",
		},
		[]string{"status", "duplicate"},
	)

	AuditLogsPersisted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "quiz_audit_logs_persisted_total",
			Help: "Admin audit entries written to the database",
		},
	)

	SessionsSwept = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "quiz_sessions_swept_total",
			Help: "Idle sessions finalized as timeout by the sweeper",
		},
	)
)

var once sync.Once

// Init registers every collector with the default registry.
func Init() {
	once.Do(func() {
		prometheus.MustRegister(
			RequestCounter,
			RequestDuration,
			TokenRedemptions,
			SessionsResolved,
			AnswersSubmitted,
			Finalizations,
			AuditLogsPersisted,
			SessionsSwept,
		)
	})
}

func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = "unmatched"
		}
		duration := time.Since(start).Seconds()

		RequestCounter.WithLabelValues(
			c.Request.Method,
			endpoint,
			strconv.Itoa(c.Writer.Status()),
		).Inc()

		RequestDuration.WithLabelValues(
			c.Request.Method,
			endpoint,
		).Observe(duration)
	}
}

func PrometheusHandler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}

// Bool renders a label value for boolean dimensions.
func Bool(b bool) string {
	return strconv.FormatBool(b)
}
