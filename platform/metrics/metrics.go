// Package metrics exposes Prometheus collectors for the lead pipeline.
// This is part of the platform layer and contains no business logic.
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
	// InboundMessages counts inbound deliveries by pipeline outcome.
	InboundMessages = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leadhandler_inbound_messages_total",
			Help: "Inbound SMS deliveries partitioned by pipeline outcome",
		},
		[]string{"outcome"},
	)

	// SMSSends counts outbound SMS attempts by purpose and result.
	SMSSends = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leadhandler_sms_sends_total",
			Help: "Outbound SMS send attempts",
		},
		[]string{"purpose", "result"},
	)

	// LLMRequests counts language-model calls per provider.
	LLMRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leadhandler_llm_requests_total",
			Help: "Language-model generate calls",
		},
		[]string{"provider", "result"},
	)

	// LLMDuration observes language-model latency.
	LLMDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "leadhandler_llm_request_duration_seconds",
			Help:    "Language-model generate latency in seconds",
			Buckets: []float64{0.25, 0.5, 1, 2, 4, 8, 16, 32},
		},
		[]string{"provider"},
	)

	// Qualifications counts guard decisions.
	Qualifications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leadhandler_qualifications_total",
			Help: "Qualification guard decisions",
		},
		[]string{"result"},
	)

	// Routing counts routing engine outcomes.
	Routing = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leadhandler_routing_total",
			Help: "Routing engine outcomes",
		},
		[]string{"result"},
	)

	// PointerConflicts counts rejected round-robin pointer writes.
	PointerConflicts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "leadhandler_rr_pointer_conflicts_total",
			Help: "Round-robin pointer compare-and-swap rejections",
		},
	)

	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests processed",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)
)

// Middleware records request counts and latencies labelled by the matched route.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		labels := prometheus.Labels{
			"method": c.Request.Method,
			"route":  route,
			"status": strconv.Itoa(c.Writer.Status()),
		}
		httpRequestsTotal.With(labels).Inc()
		httpRequestDuration.With(labels).Observe(time.Since(start).Seconds())
	}
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
