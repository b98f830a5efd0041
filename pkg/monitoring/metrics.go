package monitoring

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector handles Prometheus metrics collection
type MetricsCollector struct {
	serviceName string
	gatherer    prometheus.Gatherer

	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	dbQueryDuration     *prometheus.HistogramVec
	reservationsTotal   *prometheus.CounterVec
	cancellationsTotal  *prometheus.CounterVec
	statusChangesTotal  *prometheus.CounterVec
	notificationsTotal  *prometheus.CounterVec
	slotsGeneratedTotal prometheus.Counter
}

// NewMetricsCollector creates a collector registered on reg.
// Pass prometheus.NewRegistry() in tests to keep collectors isolated.
func NewMetricsCollector(serviceName string, reg *prometheus.Registry) *MetricsCollector {
	constLabels := prometheus.Labels{"service": serviceName}

	m := &MetricsCollector{
		serviceName: serviceName,
		gatherer:    reg,
		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name:        "http_requests_total",
				Help:        "Total number of HTTP requests",
				ConstLabels: constLabels,
			},
			[]string{"method", "route", "status_code"},
		),
		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:        "http_request_duration_seconds",
				Help:        "Duration of HTTP requests in seconds",
				Buckets:     prometheus.DefBuckets,
				ConstLabels: constLabels,
			},
			[]string{"method", "route"},
		),
		dbQueryDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:        "db_query_duration_seconds",
				Help:        "Duration of database queries in seconds",
				Buckets:     []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0, 2.0, 5.0},
				ConstLabels: constLabels,
			},
			[]string{"query_type"},
		),
		reservationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name:        "appointment_reservations_total",
				Help:        "Slot reservation attempts by result",
				ConstLabels: constLabels,
			},
			[]string{"result"},
		),
		cancellationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name:        "appointment_cancellations_total",
				Help:        "Appointment cancellation attempts by result",
				ConstLabels: constLabels,
			},
			[]string{"result"},
		),
		statusChangesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name:        "appointment_status_changes_total",
				Help:        "Appointment status transitions by target status and result",
				ConstLabels: constLabels,
			},
			[]string{"status", "result"},
		),
		notificationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name:        "appointment_notifications_total",
				Help:        "Appointment notifications emitted by kind and delivery status",
				ConstLabels: constLabels,
			},
			[]string{"kind", "status"},
		),
		slotsGeneratedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name:        "time_slots_generated_total",
				Help:        "Time slots created by schedule generation",
				ConstLabels: constLabels,
			},
		),
	}

	reg.MustRegister(
		m.httpRequestsTotal,
		m.httpRequestDuration,
		m.dbQueryDuration,
		m.reservationsTotal,
		m.cancellationsTotal,
		m.statusChangesTotal,
		m.notificationsTotal,
		m.slotsGeneratedTotal,
	)

	return m
}

// RecordHTTPRequest records HTTP request metrics
func (m *MetricsCollector) RecordHTTPRequest(method, route, statusCode string, duration time.Duration) {
	m.httpRequestsTotal.WithLabelValues(method, route, statusCode).Inc()
	m.httpRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// RecordDBQuery records database query metrics
func (m *MetricsCollector) RecordDBQuery(queryType string, duration time.Duration) {
	m.dbQueryDuration.WithLabelValues(queryType).Observe(duration.Seconds())
}

// RecordReservation counts a reservation outcome (created, slot_unavailable, failed, ...)
func (m *MetricsCollector) RecordReservation(result string) {
	m.reservationsTotal.WithLabelValues(result).Inc()
}

// RecordCancellation counts a cancellation outcome
func (m *MetricsCollector) RecordCancellation(result string) {
	m.cancellationsTotal.WithLabelValues(result).Inc()
}

// RecordStatusChange counts a status transition outcome
func (m *MetricsCollector) RecordStatusChange(status, result string) {
	m.statusChangesTotal.WithLabelValues(status, result).Inc()
}

// RecordNotification counts a notification by kind and delivery status
func (m *MetricsCollector) RecordNotification(kind, status string) {
	m.notificationsTotal.WithLabelValues(kind, status).Inc()
}

// RecordSlotsGenerated adds newly created slots
func (m *MetricsCollector) RecordSlotsGenerated(n int) {
	m.slotsGeneratedTotal.Add(float64(n))
}

// Handler returns the Prometheus metrics HTTP handler
func (m *MetricsCollector) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
