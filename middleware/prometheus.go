package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total HTTP requests by method, route and status.",
	}, []string{"method", "route", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency by method and route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})

	// RouteGuardDecisions counts route guard outcomes.
	RouteGuardDecisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "console_route_guard_decisions_total",
		Help: "Route guard decisions by outcome.",
	}, []string{"decision"})

	// SessionGuardRejections counts requests turned away by RequireSession.
	SessionGuardRejections = promauto.NewCounter(prometheus.CounterOpts{
		Name: "console_session_guard_rejections_total",
		Help: "Requests rejected for lack of a stored token or session.",
	})

	// NotificationPresentations counts push messages by presentation channel.
	NotificationPresentations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "console_notification_presentations_total",
		Help: "Push messages presented, by channel (toast or native).",
	}, []string{"channel"})

	// NotificationsDropped counts messages intentionally not presented.
	NotificationsDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "console_notifications_dropped_total",
		Help: "Push messages dropped on a path that did not own presentation.",
	}, []string{"reason"})
)

// PrometheusMiddleware records request count and latency per matched route.
func PrometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		httpRequestsTotal.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		httpRequestDuration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}
