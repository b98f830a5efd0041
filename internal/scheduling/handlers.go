package scheduling

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/ArtyomBY/ivastramedGit-sub000/internal/auth"
	"github.com/ArtyomBY/ivastramedGit-sub000/pkg/monitoring"
	"github.com/ArtyomBY/ivastramedGit-sub000/pkg/types"
	"github.com/gorilla/mux"
)

const maxBodyBytes = 1 << 20

// setupRoutes configures HTTP routes for the scheduling service
func (s *Service) setupRoutes(router *mux.Router) {
	router.Use(monitoring.NewMonitoringMiddleware(s.metrics, s.tracing, s.logger).HTTPMiddleware)
	router.Use(securityHeadersMiddleware)

	healthPath := s.config.Monitoring.HealthPath
	if healthPath == "" {
		healthPath = "/health"
	}
	router.Handle(healthPath, s.health.HTTPHandler()).Methods(http.MethodGet)

	if s.metrics != nil {
		metricsPath := s.config.Monitoring.MetricsPath
		if metricsPath == "" {
			metricsPath = "/metrics"
		}
		router.Handle(metricsPath, s.metrics.Handler()).Methods(http.MethodGet)
	}

	api := router.PathPrefix("/api").Subrouter()
	api.Use(s.auth.Authenticate)

	patientOnly := s.auth.RequireRoles(types.RolePatient)
	staffOnly := s.auth.RequireRoles(types.RoleRegistrar, types.RoleAdmin)
	clinicalStaff := s.auth.RequireRoles(types.RoleDoctor, types.RoleRegistrar, types.RoleAdmin)

	// Booking
	api.Handle("/appointments", patientOnly(http.HandlerFunc(s.createAppointmentHandler))).Methods(http.MethodPost)
	api.Handle("/registrar/appointments", staffOnly(http.HandlerFunc(s.createAppointmentHandler))).Methods(http.MethodPost)

	// Appointment lifecycle
	api.HandleFunc("/appointments/{id}/cancel", s.cancelAppointmentHandler).Methods(http.MethodPost)
	api.Handle("/appointments/{id}/status", clinicalStaff(http.HandlerFunc(s.updateStatusHandler))).Methods(http.MethodPatch)

	// Queries; /my must be registered before /{id}
	api.HandleFunc("/appointments/my", s.listMyAppointmentsHandler).Methods(http.MethodGet)
	api.HandleFunc("/appointments/{id}", s.getAppointmentHandler).Methods(http.MethodGet)

	// Doctor schedules
	api.HandleFunc("/doctors/{doctorId}/time-slots", s.getTimeSlotsHandler).Methods(http.MethodGet)
	api.Handle("/doctors/{doctorId}/time-slots", clinicalStaff(http.HandlerFunc(s.generateTimeSlotsHandler))).Methods(http.MethodPost)

	s.logger.Info("Scheduling service routes configured")
}

// createAppointmentHandler serves both patient self-booking and registrar
// booking; the route decides which roles get here
func (s *Service) createAppointmentHandler(w http.ResponseWriter, r *http.Request) {
	var req types.BookingRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.writeErrorResponse(w, r, err)
		return
	}

	apt, err := s.CreateAppointment(r.Context(), actorFromRequest(r), &req)
	if err != nil {
		s.writeErrorResponse(w, r, err)
		return
	}

	s.writeJSONResponse(w, http.StatusCreated, map[string]interface{}{
		"appointmentId": apt.ID,
		"message":       "Appointment created successfully",
	})
}

// cancelAppointmentHandler handles appointment cancellation
func (s *Service) cancelAppointmentHandler(w http.ResponseWriter, r *http.Request) {
	var req types.CancelRequest
	if err := decodeBody(w, r, &req); err != nil && !errors.Is(err, io.EOF) {
		s.writeErrorResponse(w, r, err)
		return
	}

	aptID := mux.Vars(r)["id"]
	if err := s.CancelAppointment(r.Context(), actorFromRequest(r), aptID, req.CancellationReason); err != nil {
		s.writeErrorResponse(w, r, err)
		return
	}

	s.writeJSONResponse(w, http.StatusOK, map[string]string{"message": "Appointment canceled successfully"})
}

// updateStatusHandler handles administrative status transitions
func (s *Service) updateStatusHandler(w http.ResponseWriter, r *http.Request) {
	var req types.StatusUpdateRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.writeErrorResponse(w, r, err)
		return
	}

	aptID := mux.Vars(r)["id"]
	if err := s.UpdateAppointmentStatus(r.Context(), actorFromRequest(r), aptID, &req); err != nil {
		s.writeErrorResponse(w, r, err)
		return
	}

	s.writeJSONResponse(w, http.StatusOK, map[string]string{"message": "Appointment status updated successfully"})
}

// listMyAppointmentsHandler lists the caller's appointments
func (s *Service) listMyAppointmentsHandler(w http.ResponseWriter, r *http.Request) {
	appointments, err := s.ListMyAppointments(r.Context(), actorFromRequest(r), parseAppointmentFilters(r))
	if err != nil {
		s.writeErrorResponse(w, r, err)
		return
	}

	s.writeJSONResponse(w, http.StatusOK, appointments)
}

// getAppointmentHandler handles appointment retrieval
func (s *Service) getAppointmentHandler(w http.ResponseWriter, r *http.Request) {
	apt, err := s.GetAppointment(r.Context(), actorFromRequest(r), mux.Vars(r)["id"])
	if err != nil {
		s.writeErrorResponse(w, r, err)
		return
	}

	s.writeJSONResponse(w, http.StatusOK, apt)
}

// getTimeSlotsHandler lists a doctor's slots for ?date=, free ones only unless ?all=true
func (s *Service) getTimeSlotsHandler(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	date := query.Get("date")
	if date == "" {
		s.writeErrorResponse(w, r, types.NewValidationError("date parameter is required", nil))
		return
	}

	includeBooked, _ := strconv.ParseBool(query.Get("all"))

	slots, err := s.GetAvailableSlots(r.Context(), mux.Vars(r)["doctorId"], date, includeBooked)
	if err != nil {
		s.writeErrorResponse(w, r, err)
		return
	}

	s.writeJSONResponse(w, http.StatusOK, slots)
}

// generateTimeSlotsHandler creates a day of slots for a doctor
func (s *Service) generateTimeSlotsHandler(w http.ResponseWriter, r *http.Request) {
	var req types.SlotGenerationRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.writeErrorResponse(w, r, err)
		return
	}

	created, err := s.GenerateTimeSlots(r.Context(), actorFromRequest(r), mux.Vars(r)["doctorId"], &req)
	if err != nil {
		s.writeErrorResponse(w, r, err)
		return
	}

	s.writeJSONResponse(w, http.StatusCreated, map[string]int{"created": created})
}

// parseAppointmentFilters parses query parameters into appointment filters
func parseAppointmentFilters(r *http.Request) *types.AppointmentFilters {
	query := r.URL.Query()
	filters := &types.AppointmentFilters{
		PatientID: query.Get("patient_id"),
		DoctorID:  query.Get("doctor_id"),
		FromDate:  query.Get("from"),
		ToDate:    query.Get("to"),
	}

	if status := query.Get("status"); status != "" {
		for _, part := range strings.Split(status, ",") {
			if part = strings.TrimSpace(part); part != "" {
				filters.Statuses = append(filters.Statuses, types.AppointmentStatus(part))
			}
		}
	}

	if limit := query.Get("limit"); limit != "" {
		if parsed, err := strconv.Atoi(limit); err == nil {
			filters.Limit = parsed
		}
	}

	if offset := query.Get("offset"); offset != "" {
		if parsed, err := strconv.Atoi(offset); err == nil {
			filters.Offset = parsed
		}
	}

	return filters
}

func actorFromRequest(r *http.Request) types.Actor {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		return types.Actor{}
	}
	return types.ActorFromClaims(claims)
}

// decodeBody decodes a JSON body. An empty body surfaces as io.EOF so
// callers with optional bodies can ignore it.
func decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return io.EOF
		}
		return types.NewValidationError("invalid request body", map[string]interface{}{"body": err.Error()})
	}
	return nil
}

// securityHeadersMiddleware adds security headers
func securityHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

		next.ServeHTTP(w, r)
	})
}

// writeJSONResponse writes a JSON response
func (s *Service) writeJSONResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.WithError(err).Error("Failed to encode JSON response")
	}
}

// writeErrorResponse maps err to the error envelope. Server-side failures
// are logged in full and reported to the client generically.
func (s *Service) writeErrorResponse(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, io.EOF) {
		err = types.NewValidationError("request body is required", nil)
	}

	resp := types.NewErrorResponse(err)
	entry := s.logger.WithContext(r.Context()).WithError(err).WithField("path", r.URL.Path)
	if resp.Status >= http.StatusInternalServerError {
		entry.Error("Request failed")
	} else {
		entry.Debug("Request rejected")
	}

	s.writeJSONResponse(w, resp.Status, resp)
}
