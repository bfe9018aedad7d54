package monitoring

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
			Buckets: []float64{0.1, 0.5, 1, 2, 5},
		},
		[]string{"method", "endpoint"},
	)

	SyncRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "questionnaire_sync_runs_total",
			Help: "Response ingestion runs by run type and terminal status",
		},
		[]string{"run_type", "status"},
	)

	SyncItems = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "questionnaire_sync_items_total",
			Help: "Ingested responses by outcome (new, updated, failed)",
		},
		[]string{"outcome"},
	)

	ProviderCalls = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "provider_request_duration_seconds",
			Help:    "Latency of external form/sheet API calls",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10},
		},
		[]string{"operation", "result"},
	)
)

var registerOnce sync.Once

func Init() {
	registerOnce.Do(func() {
		prometheus.MustRegister(RequestCounter)
		prometheus.MustRegister(RequestDuration)
		prometheus.MustRegister(SyncRuns)
		prometheus.MustRegister(SyncItems)
		prometheus.MustRegister(ProviderCalls)
	})
}

// ObserveProviderCall is meant to be deferred with a pointer to the caller's
// named error result.
func ObserveProviderCall(operation string, start time.Time, err *error) {
	result := "ok"
	if err != nil && *err != nil {
		result = "error"
	}
	ProviderCalls.WithLabelValues(operation, result).Observe(time.Since(start).Seconds())
}

func RecordSyncRun(runType, status string, created, updated, failed int) {
	SyncRuns.WithLabelValues(runType, status).Inc()
	SyncItems.WithLabelValues("new").Add(float64(created))
	SyncItems.WithLabelValues("updated").Add(float64(updated))
	SyncItems.WithLabelValues("failed").Add(float64(failed))
}

func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		duration := time.Since(start).Seconds()
		status := c.Writer.Status()

		RequestCounter.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			strconv.Itoa(status),
		).Inc()

		RequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
		).Observe(duration)
	}
}

func PrometheusHandler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}
