package monitoring

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ArtyomBY/ivastramedGit-sub000/pkg/logger"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePinger struct {
	err error
}

func (f fakePinger) PingContext(ctx context.Context) error {
	return f.err
}

func TestMetricsCollector_Counters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetricsCollector("scheduling-service", reg)

	m.RecordReservation("created")
	m.RecordReservation("created")
	m.RecordReservation("slot_unavailable")
	m.RecordCancellation("canceled")
	m.RecordNotification("appointment_booked", "sent")
	m.RecordSlotsGenerated(14)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.reservationsTotal.WithLabelValues("created")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.reservationsTotal.WithLabelValues("slot_unavailable")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.cancellationsTotal.WithLabelValues("canceled")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.notificationsTotal.WithLabelValues("appointment_booked", "sent")))
	assert.Equal(t, 14.0, testutil.ToFloat64(m.slotsGeneratedTotal))
}

func TestMetricsCollector_SeparateRegistries(t *testing.T) {
	assert.NotPanics(t, func() {
		NewMetricsCollector("a", prometheus.NewRegistry())
		NewMetricsCollector("a", prometheus.NewRegistry())
	})
}

func TestMetricsCollector_Handler(t *testing.T) {
	m := NewMetricsCollector("scheduling-service", prometheus.NewRegistry())
	m.RecordHTTPRequest("GET", "/health", "200", 10*time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "http_requests_total")
}

func TestHealthManager_Aggregation(t *testing.T) {
	tests := []struct {
		name       string
		dbErr      error
		extra      HealthStatus
		wantStatus HealthStatus
		wantCode   int
	}{
		{"all healthy", nil, HealthStatusHealthy, HealthStatusHealthy, http.StatusOK},
		{"degraded dependency", nil, HealthStatusDegraded, HealthStatusDegraded, http.StatusOK},
		{"database down", errors.New("connection refused"), HealthStatusHealthy, HealthStatusUnhealthy, http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hm := NewHealthManager("scheduling-service", "1.0.0")
			hm.RegisterChecker("database", NewDatabaseHealthChecker(fakePinger{err: tt.dbErr}))
			extra := tt.extra
			hm.RegisterChecker("broker", NewCustomHealthChecker(func(ctx context.Context) HealthCheck {
				return HealthCheck{Status: extra}
			}))

			rec := httptest.NewRecorder()
			hm.HTTPHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

			assert.Equal(t, tt.wantCode, rec.Code)

			var report HealthReport
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
			assert.Equal(t, tt.wantStatus, report.Status)
			assert.Len(t, report.Checks, 2)
		})
	}
}

func TestTracingManager_Disabled(t *testing.T) {
	tm, err := NewTracingManager(&TracingConfig{Enabled: false, ServiceName: "scheduling-service"})
	require.NoError(t, err)

	ctx, span := tm.StartSpan(context.Background(), "op")
	defer span.End()

	assert.Empty(t, TraceIDFromContext(ctx))
	assert.NoError(t, tm.Shutdown(context.Background()))
}

func TestHTTPMiddleware(t *testing.T) {
	var buf bytes.Buffer
	log := logger.NewWithOutput("info", &buf)
	tm, err := NewTracingManager(&TracingConfig{Enabled: false, ServiceName: "scheduling-service"})
	require.NoError(t, err)
	m := NewMetricsCollector("scheduling-service", prometheus.NewRegistry())
	mm := NewMonitoringMiddleware(m, tm, log)

	var seenRequestID interface{}
	router := mux.NewRouter()
	router.Use(mm.HTTPMiddleware)
	router.HandleFunc("/api/appointments/{id}", func(w http.ResponseWriter, r *http.Request) {
		seenRequestID = r.Context().Value(logger.RequestIDKey)
		w.WriteHeader(http.StatusNotFound)
	}).Methods(http.MethodGet)

	req := httptest.NewRequest(http.MethodGet, "/api/appointments/abc", nil)
	req.Header.Set("X-Request-ID", "req-42")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "req-42", rec.Header().Get("X-Request-ID"))
	assert.Equal(t, "req-42", seenRequestID)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.httpRequestsTotal.WithLabelValues("GET", "/api/appointments/{id}", "404")))

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "req-42", entry["request_id"])
	assert.Equal(t, "warning", entry["level"])
}
