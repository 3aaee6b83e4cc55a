package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HTTPMetrics records request counts, latencies and status categories for one service
type HTTPMetrics struct {
	ServiceName string

	requests       *prometheus.CounterVec
	duration       *prometheus.HistogramVec
	statusCategory *prometheus.CounterVec
}

// NewHTTPMetrics creates the collectors and registers them with reg
func NewHTTPMetrics(serviceName string, reg prometheus.Registerer) *HTTPMetrics {
	m := &HTTPMetrics{
		ServiceName: serviceName,
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"service", "method", "path", "status"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"service", "method", "path", "status"},
		),
		statusCategory: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_status_category_total",
				Help: "Total number of responses by status category (2xx, 4xx, 5xx)",
			},
			[]string{"service", "category", "method", "path"},
		),
	}
	reg.MustRegister(m.requests, m.duration, m.statusCategory)
	return m
}

func statusCategory(status int) string {
	switch {
	case status >= 200 && status < 300:
		return "2xx"
	case status >= 300 && status < 400:
		return "3xx"
	case status >= 400 && status < 500:
		return "4xx"
	case status >= 500 && status < 600:
		return "5xx"
	}
	return ""
}

// Middleware creates an Echo middleware function that records HTTP request metrics
func (m *HTTPMetrics) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			err := next(c)

			status := c.Response().Status
			if err != nil {
				// The error has not been written yet, echo's error handler will do it
				if he, ok := err.(*echo.HTTPError); ok {
					status = he.Code
				} else {
					status = http.StatusInternalServerError
				}
			}
			method := c.Request().Method
			path := c.Path()
			statusStr := strconv.Itoa(status)

			m.requests.WithLabelValues(m.ServiceName, method, path, statusStr).Inc()
			if category := statusCategory(status); category != "" {
				m.statusCategory.WithLabelValues(m.ServiceName, category, method, path).Inc()
			}
			m.duration.WithLabelValues(m.ServiceName, method, path, statusStr).Observe(time.Since(start).Seconds())

			return err
		}
	}
}

// GetPrometheusHandler returns an HTTP handler for exposing Prometheus metrics
func GetPrometheusHandler() http.Handler {
	return promhttp.Handler()
}
