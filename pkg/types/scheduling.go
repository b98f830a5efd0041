package types

import "time"

// AppointmentStatus represents appointment status values
type AppointmentStatus string

const (
	StatusScheduled AppointmentStatus = "scheduled"
	StatusConfirmed AppointmentStatus = "confirmed"
	StatusCompleted AppointmentStatus = "completed"
	StatusCanceled  AppointmentStatus = "canceled"
	StatusNoShow    AppointmentStatus = "no_show"
)

// CancelableStatuses are the statuses from which an appointment may be canceled
var CancelableStatuses = []AppointmentStatus{StatusScheduled, StatusConfirmed}

// IsValid reports whether s is a known status
func (s AppointmentStatus) IsValid() bool {
	switch s {
	case StatusScheduled, StatusConfirmed, StatusCompleted, StatusCanceled, StatusNoShow:
		return true
	}
	return false
}

// IsCancelable reports whether an appointment in status s may be canceled
func (s AppointmentStatus) IsCancelable() bool {
	return s == StatusScheduled || s == StatusConfirmed
}

// IsTerminal reports whether no further transitions are allowed from s
func (s AppointmentStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCanceled || s == StatusNoShow
}

// CanTransitionTo reports whether the state machine allows s -> next
func (s AppointmentStatus) CanTransitionTo(next AppointmentStatus) bool {
	if s.IsTerminal() {
		return false
	}
	switch s {
	case StatusScheduled:
		return next == StatusConfirmed || next == StatusCanceled || next == StatusCompleted || next == StatusNoShow
	case StatusConfirmed:
		return next == StatusCanceled || next == StatusCompleted || next == StatusNoShow
	default:
		return false
	}
}

// AppointmentType represents appointment type values
type AppointmentType string

const (
	TypeConsultation AppointmentType = "consultation"
	TypeFollowUp     AppointmentType = "follow_up"
	TypeProcedure    AppointmentType = "procedure"
	TypeEmergency    AppointmentType = "emergency"
	TypeTelehealth   AppointmentType = "telehealth"
)

// TimeSlot is one bookable interval of a doctor's schedule.
// IsAvailable is false iff exactly one non-canceled appointment references it.
type TimeSlot struct {
	ID          string    `json:"id" db:"id"`
	DoctorID    string    `json:"doctor_id" db:"doctor_id"`
	Date        string    `json:"date" db:"date"`
	StartTime   string    `json:"start_time" db:"start_time"`
	EndTime     string    `json:"end_time" db:"end_time"`
	IsAvailable bool      `json:"is_available" db:"is_available"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// SlotHandle identifies a slot that has been reserved inside an open transaction
type SlotHandle struct {
	SlotID    string `json:"time_slot_id"`
	DoctorID  string `json:"doctor_id"`
	Date      string `json:"date"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

// Appointment represents a scheduled patient/doctor encounter
type Appointment struct {
	ID                 string            `json:"id" db:"id"`
	PatientID          string            `json:"patient_id" db:"patient_id"`
	DoctorID           string            `json:"doctor_id" db:"doctor_id"`
	TimeSlotID         string            `json:"time_slot_id" db:"time_slot_id"`
	AppointmentType    AppointmentType   `json:"appointment_type" db:"appointment_type"`
	Status             AppointmentStatus `json:"status" db:"status"`
	ReasonForVisit     string            `json:"reason_for_visit" db:"reason_for_visit"`
	Symptoms           string            `json:"symptoms" db:"symptoms"`
	Diagnosis          string            `json:"diagnosis,omitempty" db:"diagnosis"`
	TreatmentNotes     string            `json:"treatment_notes,omitempty" db:"treatment_notes"`
	Prescription       string            `json:"prescription,omitempty" db:"prescription"`
	CancellationReason string            `json:"cancellation_reason,omitempty" db:"cancellation_reason"`
	CreatedBy          string            `json:"created_by" db:"created_by"`
	CanceledBy         string            `json:"canceled_by,omitempty" db:"canceled_by"`
	CreatedAt          time.Time         `json:"created_at" db:"created_at"`
	UpdatedAt          time.Time         `json:"updated_at" db:"updated_at"`

	// Populated by joined reads only
	Date          string `json:"date,omitempty"`
	StartTime     string `json:"start_time,omitempty"`
	EndTime       string `json:"end_time,omitempty"`
	PatientUserID string `json:"-"`
	DoctorUserID  string `json:"-"`
}

// BookingRequest is the body of a booking made by a patient or a registrar
type BookingRequest struct {
	PatientID       string          `json:"patientId,omitempty" validate:"omitempty,uuid"`
	DoctorID        string          `json:"doctorId" validate:"required,uuid"`
	TimeSlotID      string          `json:"timeSlotId" validate:"required,uuid"`
	AppointmentType AppointmentType `json:"appointmentType" validate:"omitempty,oneof=consultation follow_up procedure emergency telehealth"`
	ReasonForVisit  string          `json:"reasonForVisit" validate:"max=1000"`
	Symptoms        string          `json:"symptoms" validate:"max=2000"`
}

// CancelRequest is the body of a cancellation
type CancelRequest struct {
	CancellationReason string `json:"cancellationReason" validate:"max=1000"`
}

// StatusUpdateRequest moves an appointment along the administrative part of the state machine
type StatusUpdateRequest struct {
	Status    AppointmentStatus `json:"status" validate:"required,oneof=confirmed completed no_show"`
	Diagnosis string            `json:"diagnosis" validate:"max=2000"`
}

// SlotGenerationRequest asks for a day of slots to be created for a doctor
type SlotGenerationRequest struct {
	Date string `json:"date" validate:"required,datetime=2006-01-02"`
}

// AppointmentFilters represents filters for appointment queries
type AppointmentFilters struct {
	PatientID string              `json:"patient_id,omitempty" validate:"omitempty,uuid"`
	DoctorID  string              `json:"doctor_id,omitempty" validate:"omitempty,uuid"`
	Statuses  []AppointmentStatus `json:"statuses,omitempty"`
	FromDate  string              `json:"from_date,omitempty" validate:"omitempty,datetime=2006-01-02"`
	ToDate    string              `json:"to_date,omitempty" validate:"omitempty,datetime=2006-01-02"`
	Limit     int                 `json:"limit,omitempty"`
	Offset    int                 `json:"offset,omitempty"`
}

// Patient is the read-only view of a patient row
type Patient struct {
	ID       string `json:"id" db:"id"`
	UserID   string `json:"user_id" db:"user_id"`
	FullName string `json:"full_name" db:"full_name"`
}

// Doctor is the read-only view of a doctor row
type Doctor struct {
	ID        string `json:"id" db:"id"`
	UserID    string `json:"user_id" db:"user_id"`
	FullName  string `json:"full_name" db:"full_name"`
	Specialty string `json:"specialty" db:"specialty"`
}

// NotificationKind names the event a notification was emitted for
type NotificationKind string

const (
	NotificationAppointmentBooked        NotificationKind = "appointment_booked"
	NotificationAppointmentCanceled      NotificationKind = "appointment_canceled"
	NotificationAppointmentStatusChanged NotificationKind = "appointment_status_changed"
)

// Notification is an event addressed to one user
type Notification struct {
	ID            string           `json:"id" db:"id"`
	UserID        string           `json:"user_id" db:"user_id"`
	AppointmentID string           `json:"appointment_id" db:"appointment_id"`
	Kind          NotificationKind `json:"kind" db:"kind"`
	Title         string           `json:"title" db:"title"`
	Message       string           `json:"message" db:"message"`
	IsRead        bool             `json:"is_read" db:"is_read"`
	CreatedAt     time.Time        `json:"created_at" db:"created_at"`
}
