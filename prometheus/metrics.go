package prometheus

import (
	"strconv"
	"time"

	"github.com/suteetoe/tradeflow/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collectors stay nil until InitMetrics runs; the Record helpers are no-ops before that.
var (
	// Authentication metrics
	AuthAttemptsCounter prometheus.Counter
	AuthSuccessCounter  prometheus.Counter
	AuthErrorsCounter   *prometheus.CounterVec

	// Database operation metrics
	DbOperationDuration *prometheus.HistogramVec

	// Domain metrics
	ShipmentOperationsCounter *prometheus.CounterVec
	QuoteTransitionsCounter   *prometheus.CounterVec
	TrackingEventsCounter     *prometheus.CounterVec
	ExtractionJobsCounter     *prometheus.CounterVec
	ExtractionInFlight        prometheus.Gauge
	ExtractionDuration        prometheus.Histogram

	// Third-party API metrics
	UpstreamCallsCounter *prometheus.CounterVec
	UpstreamDuration     *prometheus.HistogramVec

	NotificationsCounter *prometheus.CounterVec
)

// InitMetrics initializes Prometheus metrics with configuration
func InitMetrics(config *config.Config) {
	prefix := config.Metrics.Prefix

	AuthAttemptsCounter = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: prefix + "_auth_attempts_total",
			Help: "Total number of authentication attempts",
		},
	)

	AuthSuccessCounter = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: prefix + "_auth_success_total",
			Help: "Total number of successful authentications",
		},
	)

	AuthErrorsCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: prefix + "_auth_errors_total",
			Help: "Total number of authentication errors by reason",
		},
		[]string{"reason"},
	)

	DbOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    prefix + "_db_operation_duration_seconds",
			Help:    "Duration of database operations in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation_type"},
	)

	ShipmentOperationsCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: prefix + "_shipment_operations_total",
			Help: "Total number of shipment operations",
		},
		[]string{"operation"},
	)

	QuoteTransitionsCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: prefix + "_quote_transitions_total",
			Help: "Quote state changes by resulting status",
		},
		[]string{"status"},
	)

	TrackingEventsCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: prefix + "_tracking_events_total",
			Help: "Tracking events appended, split by milestone flag",
		},
		[]string{"milestone"},
	)

	ExtractionJobsCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: prefix + "_extraction_jobs_total",
			Help: "Document extraction runs by final status",
		},
		[]string{"status"},
	)

	ExtractionInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: prefix + "_extraction_jobs_in_flight",
			Help: "Extraction runs currently holding a worker slot",
		},
	)

	ExtractionDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    prefix + "_extraction_duration_seconds",
			Help:    "Duration of document extraction calls",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
	)

	UpstreamCallsCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: prefix + "_upstream_calls_total",
			Help: "Calls to carrier and customs APIs by upstream status code",
		},
		[]string{"service", "status"},
	)

	UpstreamDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    prefix + "_upstream_call_duration_seconds",
			Help:    "Duration of carrier and customs API calls",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"service"},
	)

	NotificationsCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: prefix + "_notifications_total",
			Help: "Notifications dispatched by outcome",
		},
		[]string{"type", "outcome"},
	)
}

// TrackDBOperation returns a function that records the duration of a database operation
func TrackDBOperation(operationType string) func(startTime time.Time) {
	return func(startTime time.Time) {
		if DbOperationDuration == nil {
			return
		}
		DbOperationDuration.WithLabelValues(operationType).Observe(time.Since(startTime).Seconds())
	}
}

// RecordAuthAttempt counts a token check or login attempt
func RecordAuthAttempt() {
	if AuthAttemptsCounter != nil {
		AuthAttemptsCounter.Inc()
	}
}

// RecordAuthSuccess counts a successful authentication
func RecordAuthSuccess() {
	if AuthSuccessCounter != nil {
		AuthSuccessCounter.Inc()
	}
}

// RecordAuthError counts a failed authentication by reason
func RecordAuthError(reason string) {
	if AuthErrorsCounter != nil {
		AuthErrorsCounter.WithLabelValues(reason).Inc()
	}
}

// RecordShipmentOperation increments the counter for shipment operations
func RecordShipmentOperation(operation string) {
	if ShipmentOperationsCounter != nil {
		ShipmentOperationsCounter.WithLabelValues(operation).Inc()
	}
}

// RecordQuoteTransition counts a quote reaching status
func RecordQuoteTransition(status string, n int) {
	if QuoteTransitionsCounter != nil && n > 0 {
		QuoteTransitionsCounter.WithLabelValues(status).Add(float64(n))
	}
}

func RecordTrackingEvent(milestone bool) {
	if TrackingEventsCounter != nil {
		TrackingEventsCounter.WithLabelValues(strconv.FormatBool(milestone)).Inc()
	}
}

// TrackExtraction marks one extraction run as started and returns the function that finishes it
func TrackExtraction() func(status string) {
	if ExtractionJobsCounter == nil {
		return func(string) {}
	}
	start := time.Now()
	ExtractionInFlight.Inc()
	return func(status string) {
		ExtractionInFlight.Dec()
		ExtractionDuration.Observe(time.Since(start).Seconds())
		ExtractionJobsCounter.WithLabelValues(status).Inc()
	}
}

// RecordUpstreamCall records an outbound API call; status 0 means no response was received
func RecordUpstreamCall(service string, status int, startTime time.Time) {
	if UpstreamCallsCounter == nil {
		return
	}
	UpstreamCallsCounter.WithLabelValues(service, strconv.Itoa(status)).Inc()
	UpstreamDuration.WithLabelValues(service).Observe(time.Since(startTime).Seconds())
}

func RecordNotification(notificationType, outcome string) {
	if NotificationsCounter != nil {
		NotificationsCounter.WithLabelValues(notificationType, outcome).Inc()
	}
}
