package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PrometheusMetrics contains all Prometheus metrics for logward
type PrometheusMetrics struct {
	// Ingestion metrics
	RecordsIngestedTotal     *prometheus.CounterVec
	RecordsDeduplicatedTotal prometheus.Counter
	RecordsFilteredTotal     *prometheus.CounterVec
	ReentrantDropsTotal      prometheus.Counter
	IngestDuration           prometheus.Histogram

	// Storage metrics
	DatabaseOperationsTotal   *prometheus.CounterVec
	DatabaseOperationDuration *prometheus.HistogramVec
	RecordsStoredTotal        prometheus.Counter
	RecordsPurgedTotal        prometheus.Counter

	// Notification metrics
	NotificationsSentTotal    *prometheus.CounterVec
	NotificationFailuresTotal *prometheus.CounterVec
	NotificationsSkippedTotal *prometheus.CounterVec
	NotificationDuration      *prometheus.HistogramVec

	// Stream metrics
	StreamSubscribers      prometheus.Gauge
	StreamEventsSentTotal  *prometheus.CounterVec
	StreamSessionsTotal    prometheus.Counter
	StreamSessionDuration  prometheus.Histogram

	// API metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Application health metrics
	ApplicationUptime prometheus.Gauge
	ComponentHealth   *prometheus.GaugeVec
	MemoryUsage       prometheus.Gauge
	GoroutineCount    prometheus.Gauge
}

// NewPrometheusMetrics creates and registers all Prometheus metrics
func NewPrometheusMetrics() *PrometheusMetrics {
	return &PrometheusMetrics{
		RecordsIngestedTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "logward_records_ingested_total",
				Help: "Total number of log records accepted by the pipeline",
			},
			[]string{"level", "channel"},
		),

		RecordsDeduplicatedTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "logward_records_deduplicated_total",
				Help: "Total number of records dropped as duplicates",
			},
		),

		RecordsFilteredTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "logward_records_filtered_total",
				Help: "Total number of records rejected by the filter chain",
			},
			[]string{"reason"},
		),

		ReentrantDropsTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "logward_reentrant_drops_total",
				Help: "Total number of records dropped by the reentrancy guard",
			},
		),

		IngestDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "logward_ingest_duration_seconds",
				Help:    "Time spent ingesting individual records",
				Buckets: prometheus.DefBuckets,
			},
		),

		DatabaseOperationsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "logward_database_operations_total",
				Help: "Total number of database operations",
			},
			[]string{"operation", "status"},
		),

		DatabaseOperationDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "logward_database_operation_duration_seconds",
				Help:    "Duration of database operations",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),

		RecordsStoredTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "logward_records_stored_total",
				Help: "Total number of records appended to storage",
			},
		),

		RecordsPurgedTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "logward_records_purged_total",
				Help: "Total number of records removed by retention cleanup",
			},
		),

		NotificationsSentTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "logward_notifications_sent_total",
				Help: "Total number of notifications delivered",
			},
			[]string{"channel"},
		),

		NotificationFailuresTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "logward_notification_failures_total",
				Help: "Total number of failed notification deliveries",
			},
			[]string{"channel"},
		),

		NotificationsSkippedTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "logward_notifications_skipped_total",
				Help: "Total number of notifications skipped by conditions or rate limit",
			},
			[]string{"channel", "reason"},
		),

		NotificationDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "logward_notification_duration_seconds",
				Help:    "Duration of notification delivery attempts",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"channel"},
		),

		StreamSubscribers: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "logward_stream_subscribers",
				Help: "Number of currently connected stream subscribers",
			},
		),

		StreamEventsSentTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "logward_stream_events_sent_total",
				Help: "Total number of stream events emitted",
			},
			[]string{"type"},
		),

		StreamSessionsTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "logward_stream_sessions_total",
				Help: "Total number of stream sessions opened",
			},
		),

		StreamSessionDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "logward_stream_session_duration_seconds",
				Help:    "Duration of completed stream sessions",
				Buckets: []float64{1, 10, 30, 60, 300, 900, 1800, 3600},
			},
		),

		HTTPRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "logward_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),

		HTTPRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "logward_http_request_duration_seconds",
				Help:    "Duration of HTTP requests",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),

		ApplicationUptime: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "logward_application_uptime_seconds",
				Help: "Application uptime in seconds",
			},
		),

		ComponentHealth: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "logward_component_health",
				Help: "Health of application components (1 healthy, 0 unhealthy)",
			},
			[]string{"component"},
		),

		MemoryUsage: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "logward_memory_usage_bytes",
				Help: "Current memory usage in bytes",
			},
		),

		GoroutineCount: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "logward_goroutines",
				Help: "Current number of goroutines",
			},
		),
	}
}

// RecordIngested records an accepted record
func (m *PrometheusMetrics) RecordIngested(level, channel string) {
	m.RecordsIngestedTotal.WithLabelValues(level, channel).Inc()
}

// RecordFiltered records a filter chain rejection
func (m *PrometheusMetrics) RecordFiltered(reason string) {
	m.RecordsFilteredTotal.WithLabelValues(reason).Inc()
}

// RecordDatabaseOperation records a database operation
func (m *PrometheusMetrics) RecordDatabaseOperation(operation, status string, duration time.Duration) {
	m.DatabaseOperationsTotal.WithLabelValues(operation, status).Inc()
	m.DatabaseOperationDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordNotificationSent records a successful delivery
func (m *PrometheusMetrics) RecordNotificationSent(channel string, duration time.Duration) {
	m.NotificationsSentTotal.WithLabelValues(channel).Inc()
	m.NotificationDuration.WithLabelValues(channel).Observe(duration.Seconds())
}

// RecordNotificationFailure records a failed delivery
func (m *PrometheusMetrics) RecordNotificationFailure(channel string, duration time.Duration) {
	m.NotificationFailuresTotal.WithLabelValues(channel).Inc()
	m.NotificationDuration.WithLabelValues(channel).Observe(duration.Seconds())
}

// RecordNotificationSkipped records a skipped delivery
func (m *PrometheusMetrics) RecordNotificationSkipped(channel, reason string) {
	m.NotificationsSkippedTotal.WithLabelValues(channel, reason).Inc()
}

// RecordStreamEvent records an emitted stream event
func (m *PrometheusMetrics) RecordStreamEvent(eventType string) {
	m.StreamEventsSentTotal.WithLabelValues(eventType).Inc()
}

// RecordHTTPRequest records an HTTP request
func (m *PrometheusMetrics) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// UpdateComponentHealth updates a component health gauge
func (m *PrometheusMetrics) UpdateComponentHealth(component string, healthy bool) {
	v := 0.0
	if healthy {
		v = 1.0
	}
	m.ComponentHealth.WithLabelValues(component).Set(v)
}

// UpdateMemoryUsage updates the memory usage gauge
func (m *PrometheusMetrics) UpdateMemoryUsage(bytes uint64) {
	m.MemoryUsage.Set(float64(bytes))
}

// UpdateGoroutineCount updates the goroutine count gauge
func (m *PrometheusMetrics) UpdateGoroutineCount(count int) {
	m.GoroutineCount.Set(float64(count))
}

// UpdateApplicationUptime updates the uptime gauge
func (m *PrometheusMetrics) UpdateApplicationUptime(startTime time.Time) {
	m.ApplicationUptime.Set(time.Since(startTime).Seconds())
}
