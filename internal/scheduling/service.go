package scheduling

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/ArtyomBY/ivastramedGit-sub000/internal/auth"
	"github.com/ArtyomBY/ivastramedGit-sub000/pkg/config"
	"github.com/ArtyomBY/ivastramedGit-sub000/pkg/interfaces"
	"github.com/ArtyomBY/ivastramedGit-sub000/pkg/logger"
	"github.com/ArtyomBY/ivastramedGit-sub000/pkg/monitoring"
	"github.com/ArtyomBY/ivastramedGit-sub000/pkg/types"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

// errStatusMoved signals that a conditional update matched no row because
// another request changed the appointment first
var errStatusMoved = errors.New("appointment status changed concurrently")

// Dependencies are the collaborators a Service is built from. Only
// Repository is required.
type Dependencies struct {
	Repository interfaces.SchedulingRepository
	Notifier   interfaces.Notifier
	Metrics    *monitoring.MetricsCollector
	Tracing    *monitoring.TracingManager
	Health     *monitoring.HealthManager
	Tokens     *auth.TokenValidator
}

// Service implements the SchedulingService interface
type Service struct {
	config        *config.Config
	logger        *logger.Logger
	repository    interfaces.SchedulingRepository
	notifications *AppointmentNotificationManager
	metrics       *monitoring.MetricsCollector
	tracing       *monitoring.TracingManager
	health        *monitoring.HealthManager
	auth          *auth.Middleware
	validate      *validator.Validate
	router        *mux.Router

	mu     sync.Mutex
	server *http.Server
}

var _ interfaces.SchedulingService = (*Service)(nil)

// New creates a new scheduling service
func New(cfg *config.Config, log *logger.Logger, deps Dependencies) (*Service, error) {
	if deps.Repository == nil {
		return nil, fmt.Errorf("scheduling repository is required")
	}

	tracing := deps.Tracing
	if tracing == nil {
		var err error
		tracing, err = monitoring.NewTracingManager(&monitoring.TracingConfig{ServiceName: "scheduling-service"})
		if err != nil {
			return nil, err
		}
	}

	health := deps.Health
	if health == nil {
		health = monitoring.NewHealthManager("scheduling-service", "1.0.0")
	}

	tokens := deps.Tokens
	if tokens == nil {
		tokens = auth.NewTokenValidator(cfg.JWT.SecretKey, cfg.JWT.Issuer, time.Duration(cfg.JWT.AccessTokenTTL)*time.Second)
	}

	notifier := deps.Notifier
	if notifier == nil {
		notifier = NewNotificationService(deps.Repository, nil, log)
	}

	s := &Service{
		config:        cfg,
		logger:        log,
		repository:    deps.Repository,
		notifications: NewAppointmentNotificationManager(notifier, log, deps.Metrics),
		metrics:       deps.Metrics,
		tracing:       tracing,
		health:        health,
		auth:          auth.NewMiddleware(tokens, log),
		validate:      validator.New(),
	}

	s.router = mux.NewRouter()
	s.setupRoutes(s.router)

	return s, nil
}

// begin opens a span and applies the per-request timeout
func (s *Service) begin(ctx context.Context, operation string, actor types.Actor) (context.Context, trace.Span, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(ctx, s.config.Scheduling.RequestTimeoutDuration())
	ctx, span := s.tracing.StartSpan(ctx, "scheduling."+operation,
		trace.WithAttributes(
			attribute.String("actor.id", actor.UserID),
			attribute.String("actor.role", string(actor.Role)),
		),
	)
	return ctx, span, cancel
}

func (s *Service) end(span trace.Span, cancel context.CancelFunc, err error) {
	if err != nil {
		s.tracing.RecordError(span, err)
	}
	span.End()
	cancel()
}

func (s *Service) validateRequest(req interface{}) error {
	if err := s.validate.Struct(req); err != nil {
		details := map[string]interface{}{}
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			for _, fe := range verrs {
				details[fe.Field()] = fe.Tag()
			}
		}
		return types.NewValidationError("invalid request", details)
	}
	return nil
}

// CreateAppointment reserves the requested slot and records a scheduled
// appointment. The slot flip and the insert commit together; a slot taken
// by a concurrent request yields SLOT_UNAVAILABLE.
func (s *Service) CreateAppointment(ctx context.Context, actor types.Actor, req *types.BookingRequest) (apt *types.Appointment, err error) {
	ctx, span, cancel := s.begin(ctx, "create_appointment", actor)
	defer func() { s.end(span, cancel, err) }()

	result := "failed"
	defer func() {
		if s.metrics != nil {
			s.metrics.RecordReservation(result)
		}
	}()

	if err := s.validateRequest(req); err != nil {
		result = "invalid"
		return nil, err
	}

	patient, err := s.resolvePatient(ctx, actor, req.PatientID)
	if err != nil {
		result = "rejected"
		return nil, err
	}

	doctor, err := s.repository.GetDoctorByID(ctx, req.DoctorID)
	if err != nil {
		result = "rejected"
		return nil, err
	}

	// Fast path only; TryReserve below is the authoritative check.
	if _, err := s.repository.GetAvailableSlot(ctx, req.TimeSlotID, doctor.ID); err != nil {
		if types.IsCode(err, types.ErrCodeSlotUnavailable) {
			result = "slot_unavailable"
		}
		return nil, err
	}

	aptType := req.AppointmentType
	if aptType == "" {
		aptType = types.TypeConsultation
	}

	apt = &types.Appointment{
		ID:              uuid.New().String(),
		PatientID:       patient.ID,
		DoctorID:        doctor.ID,
		TimeSlotID:      req.TimeSlotID,
		AppointmentType: aptType,
		Status:          types.StatusScheduled,
		ReasonForVisit:  req.ReasonForVisit,
		Symptoms:        req.Symptoms,
		CreatedBy:       actor.UserID,
		PatientUserID:   patient.UserID,
		DoctorUserID:    doctor.UserID,
	}

	err = s.repository.WithinTx(ctx, func(tx interfaces.ReservationTx) error {
		handle, err := tx.TryReserve(ctx, apt.TimeSlotID, apt.DoctorID)
		if err != nil {
			return err
		}
		apt.Date = handle.Date
		apt.StartTime = handle.StartTime
		apt.EndTime = handle.EndTime

		return tx.InsertAppointment(ctx, apt)
	})
	if err != nil {
		details := map[string]interface{}{"time_slot_id": req.TimeSlotID, "doctor_id": doctor.ID}
		s.logger.Audit(actor.UserID, "create_appointment", "appointment", false, details)

		if types.IsCode(err, types.ErrCodeSlotUnavailable) {
			result = "slot_unavailable"
			return nil, err
		}

		s.logger.WithContext(ctx).WithError(err).Error("Reservation transaction failed")
		return nil, types.NewReservationFailedError(err)
	}

	result = "created"
	s.logger.Audit(actor.UserID, "create_appointment", "appointment", true, map[string]interface{}{
		"appointment_id": apt.ID,
		"patient_id":     apt.PatientID,
		"doctor_id":      apt.DoctorID,
		"time_slot_id":   apt.TimeSlotID,
	})

	s.notifications.AppointmentBooked(ctx, apt, actor)

	return apt, nil
}

// resolvePatient returns the patient an actor books for. Patients book for
// themselves only; registrars and admins name the patient explicitly.
func (s *Service) resolvePatient(ctx context.Context, actor types.Actor, requestedID string) (*types.Patient, error) {
	switch {
	case actor.Role == types.RolePatient:
		patient, err := s.repository.GetPatientByUserID(ctx, actor.UserID)
		if err != nil {
			return nil, err
		}
		if requestedID != "" && requestedID != patient.ID {
			return nil, types.NewForbiddenError("patients may only book appointments for themselves")
		}
		return patient, nil

	case actor.Role.IsStaff():
		if requestedID == "" {
			return nil, types.NewValidationError("patientId is required", map[string]interface{}{"PatientID": "required"})
		}
		return s.repository.GetPatientByID(ctx, requestedID)

	default:
		return nil, types.NewForbiddenError("role may not book appointments")
	}
}

// CancelAppointment cancels a scheduled or confirmed appointment and frees
// its slot in one transaction
func (s *Service) CancelAppointment(ctx context.Context, actor types.Actor, aptID, reason string) (err error) {
	ctx, span, cancel := s.begin(ctx, "cancel_appointment", actor)
	defer func() { s.end(span, cancel, err) }()

	result := "failed"
	defer func() {
		if s.metrics != nil {
			s.metrics.RecordCancellation(result)
		}
	}()

	if err := s.validateRequest(&types.CancelRequest{CancellationReason: reason}); err != nil {
		result = "invalid"
		return err
	}

	apt, err := s.loadAppointment(ctx, aptID)
	if err != nil {
		result = "not_found"
		return err
	}

	if !apt.Status.IsCancelable() {
		result = "invalid_state"
		return types.NewInvalidStateError(apt.Status, "cancel")
	}

	if !isParty(actor, apt) && !actor.Role.IsStaff() {
		result = "forbidden"
		return types.NewForbiddenError("only the patient or the doctor of this appointment may cancel it")
	}

	err = s.repository.WithinTx(ctx, func(tx interfaces.ReservationTx) error {
		canceled, err := tx.CancelAppointment(ctx, apt.ID, actor.UserID, reason)
		if err != nil {
			return err
		}
		if !canceled {
			return errStatusMoved
		}
		return tx.ReleaseSlot(ctx, apt.TimeSlotID)
	})
	if errors.Is(err, errStatusMoved) {
		result = "invalid_state"
		return types.NewInvalidStateError(s.currentStatus(ctx, apt), "cancel")
	}
	if err != nil {
		s.logger.Audit(actor.UserID, "cancel_appointment", "appointment", false, map[string]interface{}{"appointment_id": apt.ID})
		s.logger.WithContext(ctx).WithError(err).Error("Cancellation transaction failed")
		return types.NewReservationFailedError(err)
	}

	result = "canceled"
	apt.Status = types.StatusCanceled
	apt.CancellationReason = reason
	apt.CanceledBy = actor.UserID

	s.logger.Audit(actor.UserID, "cancel_appointment", "appointment", true, map[string]interface{}{
		"appointment_id": apt.ID,
		"time_slot_id":   apt.TimeSlotID,
	})

	s.notifications.AppointmentCanceled(ctx, apt, actor, reason)

	return nil
}

// UpdateAppointmentStatus moves an appointment to confirmed, completed or
// no_show. Only the appointment's doctor and staff may do so.
func (s *Service) UpdateAppointmentStatus(ctx context.Context, actor types.Actor, aptID string, req *types.StatusUpdateRequest) (err error) {
	ctx, span, cancel := s.begin(ctx, "update_appointment_status", actor)
	defer func() { s.end(span, cancel, err) }()

	// The status label stays fixed until the request has been validated.
	status, result := "invalid", "invalid"
	defer func() {
		if s.metrics != nil {
			s.metrics.RecordStatusChange(status, result)
		}
	}()

	if err := s.validateRequest(req); err != nil {
		return err
	}
	status, result = string(req.Status), "failed"

	apt, err := s.loadAppointment(ctx, aptID)
	if err != nil {
		result = "not_found"
		return err
	}

	isOwnDoctor := actor.Role == types.RoleDoctor && actor.UserID == apt.DoctorUserID
	if !isOwnDoctor && !actor.Role.IsStaff() {
		result = "forbidden"
		return types.NewForbiddenError("only the appointment's doctor or staff may change its status")
	}

	if !apt.Status.CanTransitionTo(req.Status) {
		result = "invalid_state"
		return types.NewInvalidStateError(apt.Status, "mark as "+string(req.Status))
	}

	err = s.repository.WithinTx(ctx, func(tx interfaces.ReservationTx) error {
		updated, err := tx.UpdateStatus(ctx, apt.ID, []types.AppointmentStatus{apt.Status}, req.Status, req.Diagnosis)
		if err != nil {
			return err
		}
		if !updated {
			return errStatusMoved
		}
		return nil
	})
	if errors.Is(err, errStatusMoved) {
		result = "invalid_state"
		return types.NewInvalidStateError(s.currentStatus(ctx, apt), "mark as "+string(req.Status))
	}
	if err != nil {
		s.logger.WithContext(ctx).WithError(err).Error("Status update failed")
		return types.NewInternalError("failed to update appointment status", err)
	}

	result = "updated"
	previous := apt.Status
	apt.Status = req.Status

	s.logger.Audit(actor.UserID, "update_appointment_status", "appointment", true, map[string]interface{}{
		"appointment_id": apt.ID,
		"from":           previous,
		"to":             req.Status,
	})

	s.notifications.AppointmentStatusChanged(ctx, apt, actor, req.Status)

	return nil
}

// GetAppointment returns one appointment visible to actor
func (s *Service) GetAppointment(ctx context.Context, actor types.Actor, aptID string) (apt *types.Appointment, err error) {
	ctx, span, cancel := s.begin(ctx, "get_appointment", actor)
	defer func() { s.end(span, cancel, err) }()

	apt, err = s.loadAppointment(ctx, aptID)
	if err != nil {
		return nil, err
	}

	if !isParty(actor, apt) && !actor.Role.IsStaff() {
		return nil, types.NewForbiddenError("access to this appointment is not allowed")
	}

	return apt, nil
}

// ListMyAppointments scopes the listing by role: patients and doctors see
// their own appointments, staff see whatever the filters select
func (s *Service) ListMyAppointments(ctx context.Context, actor types.Actor, filters *types.AppointmentFilters) (list []*types.Appointment, err error) {
	ctx, span, cancel := s.begin(ctx, "list_appointments", actor)
	defer func() { s.end(span, cancel, err) }()

	scoped := types.AppointmentFilters{}
	if filters != nil {
		scoped = *filters
	}

	if err := s.validateRequest(&scoped); err != nil {
		return nil, err
	}
	for _, status := range scoped.Statuses {
		if !status.IsValid() {
			return nil, types.NewValidationError("unknown appointment status", map[string]interface{}{"status": string(status)})
		}
	}

	switch {
	case actor.Role == types.RolePatient:
		patient, err := s.repository.GetPatientByUserID(ctx, actor.UserID)
		if err != nil {
			return nil, err
		}
		scoped.PatientID = patient.ID

	case actor.Role == types.RoleDoctor:
		doctor, err := s.repository.GetDoctorByUserID(ctx, actor.UserID)
		if err != nil {
			return nil, err
		}
		scoped.DoctorID = doctor.ID

	case actor.Role.IsStaff():

	default:
		return nil, types.NewForbiddenError("role may not list appointments")
	}

	if scoped.Limit <= 0 {
		scoped.Limit = defaultListLimit
	}
	if scoped.Limit > maxListLimit {
		scoped.Limit = maxListLimit
	}
	if scoped.Offset < 0 {
		scoped.Offset = 0
	}

	return s.repository.ListAppointments(ctx, &scoped)
}

// GetAvailableSlots lists a doctor's slots for a date. Booked slots are
// included only when includeBooked is set.
func (s *Service) GetAvailableSlots(ctx context.Context, doctorID, date string, includeBooked bool) (slots []*types.TimeSlot, err error) {
	ctx, span, cancel := s.begin(ctx, "get_available_slots", types.Actor{})
	defer func() { s.end(span, cancel, err) }()

	if _, err := time.Parse(dateLayout, date); err != nil {
		return nil, types.NewValidationError("date must be formatted as YYYY-MM-DD", map[string]interface{}{"date": date})
	}

	if _, err := uuid.Parse(doctorID); err != nil {
		return nil, types.NewNotFoundError("doctor", doctorID)
	}

	if _, err := s.repository.GetDoctorByID(ctx, doctorID); err != nil {
		return nil, err
	}

	return s.repository.ListTimeSlots(ctx, doctorID, date, !includeBooked)
}

// GenerateTimeSlots creates the configured working day of slots for a
// doctor. Existing starts are left alone, so repeated calls are harmless.
func (s *Service) GenerateTimeSlots(ctx context.Context, actor types.Actor, doctorID string, req *types.SlotGenerationRequest) (created int, err error) {
	ctx, span, cancel := s.begin(ctx, "generate_time_slots", actor)
	defer func() { s.end(span, cancel, err) }()

	if err := s.validateRequest(req); err != nil {
		return 0, err
	}

	if _, err := uuid.Parse(doctorID); err != nil {
		return 0, types.NewNotFoundError("doctor", doctorID)
	}

	doctor, err := s.repository.GetDoctorByID(ctx, doctorID)
	if err != nil {
		return 0, err
	}

	isSelf := actor.Role == types.RoleDoctor && actor.UserID == doctor.UserID
	if !isSelf && !actor.Role.IsStaff() {
		return 0, types.NewForbiddenError("only the doctor or staff may manage this schedule")
	}

	slots, err := buildDaySlots(s.config.Scheduling, doctor.ID, req.Date)
	if err != nil {
		return 0, types.NewValidationError(err.Error(), nil)
	}

	created, err = s.repository.CreateTimeSlots(ctx, slots)
	if err != nil {
		s.logger.WithContext(ctx).WithError(err).Error("Failed to create time slots")
		return 0, types.NewInternalError("failed to create time slots", err)
	}

	if s.metrics != nil {
		s.metrics.RecordSlotsGenerated(created)
	}

	s.logger.Audit(actor.UserID, "generate_time_slots", "time_slot", true, map[string]interface{}{
		"doctor_id": doctor.ID,
		"date":      req.Date,
		"created":   created,
		"skipped":   len(slots) - created,
	})

	return created, nil
}

// loadAppointment maps malformed ids to NOT_FOUND before touching the database
func (s *Service) loadAppointment(ctx context.Context, aptID string) (*types.Appointment, error) {
	if _, err := uuid.Parse(aptID); err != nil {
		return nil, types.NewNotFoundError("appointment", aptID)
	}
	return s.repository.GetAppointmentDetails(ctx, aptID)
}

// currentStatus re-reads the status after a conditional update lost a race
func (s *Service) currentStatus(ctx context.Context, apt *types.Appointment) types.AppointmentStatus {
	fresh, err := s.repository.GetAppointmentDetails(ctx, apt.ID)
	if err != nil {
		return apt.Status
	}
	return fresh.Status
}

func isParty(actor types.Actor, apt *types.Appointment) bool {
	return actor.UserID != "" && (actor.UserID == apt.PatientUserID || actor.UserID == apt.DoctorUserID)
}

// Handler returns the HTTP handler with all routes mounted
func (s *Service) Handler() http.Handler {
	return s.router
}

// Start starts the HTTP server
func (s *Service) Start(addr string) error {
	server := &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  time.Duration(s.config.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(s.config.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(s.config.Server.IdleTimeout) * time.Second,
	}

	s.mu.Lock()
	s.server = server
	s.mu.Unlock()

	s.logger.WithComponent("scheduling").WithField("addr", addr).Info("Starting scheduling service")
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully stops the HTTP server
func (s *Service) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	server := s.server
	s.mu.Unlock()

	if server == nil {
		return nil
	}
	s.logger.WithComponent("scheduling").Info("Stopping scheduling service")
	return server.Shutdown(ctx)
}
