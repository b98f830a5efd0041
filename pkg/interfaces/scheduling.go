package interfaces

import (
	"context"
	"net/http"

	"github.com/ArtyomBY/ivastramedGit-sub000/pkg/types"
)

// SchedulingService defines the appointment booking and slot reservation operations
type SchedulingService interface {
	// Reservation
	CreateAppointment(ctx context.Context, actor types.Actor, req *types.BookingRequest) (*types.Appointment, error)
	CancelAppointment(ctx context.Context, actor types.Actor, aptID, reason string) error
	UpdateAppointmentStatus(ctx context.Context, actor types.Actor, aptID string, req *types.StatusUpdateRequest) error

	// Appointment queries
	GetAppointment(ctx context.Context, actor types.Actor, aptID string) (*types.Appointment, error)
	ListMyAppointments(ctx context.Context, actor types.Actor, filters *types.AppointmentFilters) ([]*types.Appointment, error)

	// Time slots
	GetAvailableSlots(ctx context.Context, doctorID, date string, includeBooked bool) ([]*types.TimeSlot, error)
	GenerateTimeSlots(ctx context.Context, actor types.Actor, doctorID string, req *types.SlotGenerationRequest) (int, error)

	// Service management
	Handler() http.Handler
	Start(addr string) error
	Shutdown(ctx context.Context) error
}

// ReservationTx is the set of writes that must commit or roll back together
type ReservationTx interface {
	// TryReserve flips an available slot owned by doctorID to unavailable.
	// It returns a SLOT_UNAVAILABLE error when no row matched.
	TryReserve(ctx context.Context, slotID, doctorID string) (*types.SlotHandle, error)
	InsertAppointment(ctx context.Context, apt *types.Appointment) error
	// CancelAppointment returns false when the appointment was no longer cancelable.
	CancelAppointment(ctx context.Context, aptID, canceledBy, reason string) (bool, error)
	ReleaseSlot(ctx context.Context, slotID string) error
	// UpdateStatus returns false when the current status is not in from.
	UpdateStatus(ctx context.Context, aptID string, from []types.AppointmentStatus, to types.AppointmentStatus, diagnosis string) (bool, error)
}

// ReservationStore runs reservation writes inside a single database transaction
type ReservationStore interface {
	WithinTx(ctx context.Context, fn func(tx ReservationTx) error) error
}

// SchedulingRepository defines the read side and slot maintenance of scheduling data
type SchedulingRepository interface {
	ReservationStore

	// Time slots
	GetAvailableSlot(ctx context.Context, slotID, doctorID string) (*types.TimeSlot, error)
	ListTimeSlots(ctx context.Context, doctorID, date string, onlyAvailable bool) ([]*types.TimeSlot, error)
	CreateTimeSlots(ctx context.Context, slots []*types.TimeSlot) (int, error)

	// Appointments
	GetAppointmentDetails(ctx context.Context, id string) (*types.Appointment, error)
	ListAppointments(ctx context.Context, filters *types.AppointmentFilters) ([]*types.Appointment, error)

	// Parties
	GetPatientByID(ctx context.Context, id string) (*types.Patient, error)
	GetPatientByUserID(ctx context.Context, userID string) (*types.Patient, error)
	GetDoctorByID(ctx context.Context, id string) (*types.Doctor, error)
	GetDoctorByUserID(ctx context.Context, userID string) (*types.Doctor, error)

	// Notifications
	InsertNotification(ctx context.Context, n *types.Notification) error
}

// Notifier delivers appointment events to the external notification collaborator
type Notifier interface {
	Notify(ctx context.Context, n *types.Notification) error
}

// EventPublisher fans notification events out to subscribers
type EventPublisher interface {
	Publish(ctx context.Context, n *types.Notification) error
}
