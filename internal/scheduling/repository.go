package scheduling

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ArtyomBY/ivastramedGit-sub000/pkg/database"
	"github.com/ArtyomBY/ivastramedGit-sub000/pkg/interfaces"
	"github.com/ArtyomBY/ivastramedGit-sub000/pkg/logger"
	"github.com/ArtyomBY/ivastramedGit-sub000/pkg/monitoring"
	"github.com/ArtyomBY/ivastramedGit-sub000/pkg/types"
	"github.com/lib/pq"
)

const uniqueViolation = "23505"

// rowScanner is satisfied by *sql.Row and *sql.Rows
type rowScanner interface {
	Scan(dest ...interface{}) error
}

// Repository implements the SchedulingRepository interface on PostgreSQL
type Repository struct {
	db      *database.DB
	logger  *logger.Logger
	metrics *monitoring.MetricsCollector
}

// NewRepository creates a new scheduling repository. metrics may be nil.
func NewRepository(db *database.DB, log *logger.Logger, metrics *monitoring.MetricsCollector) *Repository {
	return &Repository{
		db:      db,
		logger:  log,
		metrics: metrics,
	}
}

var _ interfaces.SchedulingRepository = (*Repository)(nil)

// observe logs a finished statement and records its latency
func (r *Repository) observe(ctx context.Context, operation, table string, start time.Time, rows int64, err error) {
	duration := time.Since(start)
	if r.metrics != nil {
		r.metrics.RecordDBQuery(operation, duration)
	}

	var details map[string]interface{}
	if err != nil {
		details = map[string]interface{}{"error": err.Error()}
	}
	r.logger.DatabaseOperation(ctx, operation, table, duration.Milliseconds(), rows, err == nil, details)
}

// WithinTx runs fn with reservation writes bound to one transaction
func (r *Repository) WithinTx(ctx context.Context, fn func(tx interfaces.ReservationTx) error) error {
	return r.db.WithTx(ctx, nil, func(tx *sql.Tx) error {
		return fn(&reservationTx{tx: tx, repo: r})
	})
}

// reservationTx implements interfaces.ReservationTx on an open transaction
type reservationTx struct {
	tx   *sql.Tx
	repo *Repository
}

// TryReserve flips the slot to unavailable only if it is still free and
// belongs to the doctor. Concurrent callers serialize on the row lock, so at
// most one of them sees a returned row.
func (t *reservationTx) TryReserve(ctx context.Context, slotID, doctorID string) (*types.SlotHandle, error) {
	query := `
		UPDATE time_slots SET is_available = false
		WHERE id = $1 AND doctor_id = $2 AND is_available = true
		RETURNING id, doctor_id, to_char(date, 'YYYY-MM-DD'), to_char(start_time, 'HH24:MI'), to_char(end_time, 'HH24:MI')`

	start := time.Now()
	handle := &types.SlotHandle{}
	err := t.tx.QueryRowContext(ctx, query, slotID, doctorID).Scan(
		&handle.SlotID,
		&handle.DoctorID,
		&handle.Date,
		&handle.StartTime,
		&handle.EndTime,
	)
	if errors.Is(err, sql.ErrNoRows) {
		t.repo.observe(ctx, "reserve_slot", "time_slots", start, 0, nil)
		return nil, types.NewSlotUnavailableError(slotID)
	}
	t.repo.observe(ctx, "reserve_slot", "time_slots", start, 1, err)
	if err != nil {
		return nil, fmt.Errorf("failed to reserve time slot: %w", err)
	}

	return handle, nil
}

// InsertAppointment inserts apt and fills its timestamps
func (t *reservationTx) InsertAppointment(ctx context.Context, apt *types.Appointment) error {
	query := `
		INSERT INTO appointments (
			id, patient_id, doctor_id, time_slot_id, appointment_type,
			status, reason_for_visit, symptoms, created_by
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at, updated_at`

	start := time.Now()
	err := t.tx.QueryRowContext(ctx, query,
		apt.ID,
		apt.PatientID,
		apt.DoctorID,
		apt.TimeSlotID,
		apt.AppointmentType,
		apt.Status,
		apt.ReasonForVisit,
		apt.Symptoms,
		apt.CreatedBy,
	).Scan(&apt.CreatedAt, &apt.UpdatedAt)
	t.repo.observe(ctx, "insert_appointment", "appointments", start, 1, err)

	if err != nil {
		// The partial unique index on live appointments per slot backs up the
		// conditional update in TryReserve.
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return types.NewSlotUnavailableError(apt.TimeSlotID)
		}
		return fmt.Errorf("failed to insert appointment: %w", err)
	}

	return nil
}

// CancelAppointment marks the appointment canceled if it is still cancelable
func (t *reservationTx) CancelAppointment(ctx context.Context, aptID, canceledBy, reason string) (bool, error) {
	query := `
		UPDATE appointments
		SET status = $2, cancellation_reason = $3, canceled_by = $4, updated_at = NOW()
		WHERE id = $1 AND status = ANY($5)`

	start := time.Now()
	result, err := t.tx.ExecContext(ctx, query,
		aptID,
		types.StatusCanceled,
		reason,
		canceledBy,
		pq.Array(statusStrings(types.CancelableStatuses)),
	)
	if err != nil {
		t.repo.observe(ctx, "cancel_appointment", "appointments", start, 0, err)
		return false, fmt.Errorf("failed to cancel appointment: %w", err)
	}

	rows, err := result.RowsAffected()
	t.repo.observe(ctx, "cancel_appointment", "appointments", start, rows, err)
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rows == 1, nil
}

// ReleaseSlot makes the slot bookable again
func (t *reservationTx) ReleaseSlot(ctx context.Context, slotID string) error {
	query := `UPDATE time_slots SET is_available = true WHERE id = $1`

	start := time.Now()
	result, err := t.tx.ExecContext(ctx, query, slotID)
	if err != nil {
		t.repo.observe(ctx, "release_slot", "time_slots", start, 0, err)
		return fmt.Errorf("failed to release time slot: %w", err)
	}

	rows, err := result.RowsAffected()
	t.repo.observe(ctx, "release_slot", "time_slots", start, rows, err)
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return types.NewNotFoundError("time slot", slotID)
	}

	return nil
}

// UpdateStatus applies to only when the current status is one of from
func (t *reservationTx) UpdateStatus(ctx context.Context, aptID string, from []types.AppointmentStatus, to types.AppointmentStatus, diagnosis string) (bool, error) {
	query := `
		UPDATE appointments
		SET status = $2, diagnosis = COALESCE(NULLIF($3, ''), diagnosis), updated_at = NOW()
		WHERE id = $1 AND status = ANY($4)`

	start := time.Now()
	result, err := t.tx.ExecContext(ctx, query, aptID, to, diagnosis, pq.Array(statusStrings(from)))
	if err != nil {
		t.repo.observe(ctx, "update_status", "appointments", start, 0, err)
		return false, fmt.Errorf("failed to update appointment status: %w", err)
	}

	rows, err := result.RowsAffected()
	t.repo.observe(ctx, "update_status", "appointments", start, rows, err)
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rows == 1, nil
}

const timeSlotColumns = `id, doctor_id, to_char(date, 'YYYY-MM-DD'), to_char(start_time, 'HH24:MI'),
		to_char(end_time, 'HH24:MI'), is_available, created_at`

func scanTimeSlot(s rowScanner) (*types.TimeSlot, error) {
	slot := &types.TimeSlot{}
	err := s.Scan(
		&slot.ID,
		&slot.DoctorID,
		&slot.Date,
		&slot.StartTime,
		&slot.EndTime,
		&slot.IsAvailable,
		&slot.CreatedAt,
	)
	return slot, err
}

// GetAvailableSlot is the read-only pre-check before a reservation.
// A slot that is taken or owned by another doctor yields SLOT_UNAVAILABLE.
func (r *Repository) GetAvailableSlot(ctx context.Context, slotID, doctorID string) (*types.TimeSlot, error) {
	query := `SELECT ` + timeSlotColumns + `
		FROM time_slots
		WHERE id = $1 AND doctor_id = $2 AND is_available = true`

	start := time.Now()
	slot, err := scanTimeSlot(r.db.QueryRowContext(ctx, query, slotID, doctorID))
	if errors.Is(err, sql.ErrNoRows) {
		r.observe(ctx, "get_available_slot", "time_slots", start, 0, nil)
		return nil, types.NewSlotUnavailableError(slotID)
	}
	r.observe(ctx, "get_available_slot", "time_slots", start, 1, err)
	if err != nil {
		return nil, fmt.Errorf("failed to get time slot: %w", err)
	}

	return slot, nil
}

// ListTimeSlots returns a doctor's slots for one date ordered by start time
func (r *Repository) ListTimeSlots(ctx context.Context, doctorID, date string, onlyAvailable bool) ([]*types.TimeSlot, error) {
	query := `SELECT ` + timeSlotColumns + `
		FROM time_slots
		WHERE doctor_id = $1 AND date = $2 AND ($3 = false OR is_available = true)
		ORDER BY start_time`

	start := time.Now()
	rows, err := r.db.QueryContext(ctx, query, doctorID, date, onlyAvailable)
	if err != nil {
		r.observe(ctx, "list_time_slots", "time_slots", start, 0, err)
		return nil, fmt.Errorf("failed to list time slots: %w", err)
	}
	defer rows.Close()

	slots := make([]*types.TimeSlot, 0)
	for rows.Next() {
		slot, err := scanTimeSlot(rows)
		if err != nil {
			r.observe(ctx, "list_time_slots", "time_slots", start, int64(len(slots)), err)
			return nil, fmt.Errorf("failed to scan time slot: %w", err)
		}
		slots = append(slots, slot)
	}

	err = rows.Err()
	r.observe(ctx, "list_time_slots", "time_slots", start, int64(len(slots)), err)
	if err != nil {
		return nil, fmt.Errorf("failed to iterate time slots: %w", err)
	}

	return slots, nil
}

// CreateTimeSlots inserts slots in one transaction, skipping starts the
// doctor already has. It returns how many rows were created.
func (r *Repository) CreateTimeSlots(ctx context.Context, slots []*types.TimeSlot) (int, error) {
	query := `
		INSERT INTO time_slots (doctor_id, date, start_time, end_time)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (doctor_id, date, start_time) DO NOTHING`

	start := time.Now()
	created := 0
	err := r.db.WithTx(ctx, nil, func(tx *sql.Tx) error {
		for _, slot := range slots {
			result, err := tx.ExecContext(ctx, query, slot.DoctorID, slot.Date, slot.StartTime, slot.EndTime)
			if err != nil {
				return fmt.Errorf("failed to insert time slot %s %s: %w", slot.Date, slot.StartTime, err)
			}
			n, err := result.RowsAffected()
			if err != nil {
				return fmt.Errorf("failed to get rows affected: %w", err)
			}
			created += int(n)
		}
		return nil
	})
	r.observe(ctx, "create_time_slots", "time_slots", start, int64(created), err)
	if err != nil {
		return 0, err
	}

	return created, nil
}

const appointmentSelect = `
		SELECT a.id, a.patient_id, a.doctor_id, a.time_slot_id, a.appointment_type, a.status,
			COALESCE(a.reason_for_visit, ''), COALESCE(a.symptoms, ''), COALESCE(a.diagnosis, ''),
			COALESCE(a.treatment_notes, ''), COALESCE(a.prescription, ''), COALESCE(a.cancellation_reason, ''),
			a.created_by, COALESCE(a.canceled_by::text, ''), a.created_at, a.updated_at,
			to_char(ts.date, 'YYYY-MM-DD'), to_char(ts.start_time, 'HH24:MI'), to_char(ts.end_time, 'HH24:MI'),
			p.user_id, d.user_id
		FROM appointments a
		JOIN time_slots ts ON ts.id = a.time_slot_id
		JOIN patients p ON p.id = a.patient_id
		JOIN doctors d ON d.id = a.doctor_id`

func scanAppointment(s rowScanner) (*types.Appointment, error) {
	apt := &types.Appointment{}
	err := s.Scan(
		&apt.ID,
		&apt.PatientID,
		&apt.DoctorID,
		&apt.TimeSlotID,
		&apt.AppointmentType,
		&apt.Status,
		&apt.ReasonForVisit,
		&apt.Symptoms,
		&apt.Diagnosis,
		&apt.TreatmentNotes,
		&apt.Prescription,
		&apt.CancellationReason,
		&apt.CreatedBy,
		&apt.CanceledBy,
		&apt.CreatedAt,
		&apt.UpdatedAt,
		&apt.Date,
		&apt.StartTime,
		&apt.EndTime,
		&apt.PatientUserID,
		&apt.DoctorUserID,
	)
	return apt, err
}

// GetAppointmentDetails retrieves an appointment joined with its slot and
// the user ids of both parties
func (r *Repository) GetAppointmentDetails(ctx context.Context, id string) (*types.Appointment, error) {
	query := appointmentSelect + `
		WHERE a.id = $1`

	start := time.Now()
	apt, err := scanAppointment(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		r.observe(ctx, "get_appointment", "appointments", start, 0, nil)
		return nil, types.NewNotFoundError("appointment", id)
	}
	r.observe(ctx, "get_appointment", "appointments", start, 1, err)
	if err != nil {
		return nil, fmt.Errorf("failed to get appointment: %w", err)
	}

	return apt, nil
}

// ListAppointments retrieves appointments matching filters, newest slot first
func (r *Repository) ListAppointments(ctx context.Context, filters *types.AppointmentFilters) ([]*types.Appointment, error) {
	whereParts := []string{}
	args := []interface{}{}
	argIndex := 1

	if filters != nil {
		if filters.PatientID != "" {
			whereParts = append(whereParts, fmt.Sprintf("a.patient_id = $%d", argIndex))
			args = append(args, filters.PatientID)
			argIndex++
		}

		if filters.DoctorID != "" {
			whereParts = append(whereParts, fmt.Sprintf("a.doctor_id = $%d", argIndex))
			args = append(args, filters.DoctorID)
			argIndex++
		}

		if len(filters.Statuses) > 0 {
			whereParts = append(whereParts, fmt.Sprintf("a.status = ANY($%d)", argIndex))
			args = append(args, pq.Array(statusStrings(filters.Statuses)))
			argIndex++
		}

		if filters.FromDate != "" {
			whereParts = append(whereParts, fmt.Sprintf("ts.date >= $%d", argIndex))
			args = append(args, filters.FromDate)
			argIndex++
		}

		if filters.ToDate != "" {
			whereParts = append(whereParts, fmt.Sprintf("ts.date <= $%d", argIndex))
			args = append(args, filters.ToDate)
			argIndex++
		}
	}

	query := appointmentSelect
	if len(whereParts) > 0 {
		query += "\n\t\tWHERE " + strings.Join(whereParts, " AND ")
	}
	query += "\n\t\tORDER BY ts.date DESC, ts.start_time DESC"

	if filters != nil && filters.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIndex)
		args = append(args, filters.Limit)
		argIndex++
	}

	if filters != nil && filters.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIndex)
		args = append(args, filters.Offset)
	}

	start := time.Now()
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		r.observe(ctx, "list_appointments", "appointments", start, 0, err)
		return nil, fmt.Errorf("failed to list appointments: %w", err)
	}
	defer rows.Close()

	appointments := make([]*types.Appointment, 0)
	for rows.Next() {
		apt, err := scanAppointment(rows)
		if err != nil {
			r.observe(ctx, "list_appointments", "appointments", start, int64(len(appointments)), err)
			return nil, fmt.Errorf("failed to scan appointment: %w", err)
		}
		appointments = append(appointments, apt)
	}

	err = rows.Err()
	r.observe(ctx, "list_appointments", "appointments", start, int64(len(appointments)), err)
	if err != nil {
		return nil, fmt.Errorf("failed to iterate appointments: %w", err)
	}

	return appointments, nil
}

// GetPatientByID retrieves a patient by ID
func (r *Repository) GetPatientByID(ctx context.Context, id string) (*types.Patient, error) {
	return r.getPatient(ctx, "id", id)
}

// GetPatientByUserID retrieves the patient linked to a user account
func (r *Repository) GetPatientByUserID(ctx context.Context, userID string) (*types.Patient, error) {
	return r.getPatient(ctx, "user_id", userID)
}

func (r *Repository) getPatient(ctx context.Context, column, value string) (*types.Patient, error) {
	query := fmt.Sprintf(`SELECT id, user_id, full_name FROM patients WHERE %s = $1`, column)

	start := time.Now()
	patient := &types.Patient{}
	err := r.db.QueryRowContext(ctx, query, value).Scan(&patient.ID, &patient.UserID, &patient.FullName)
	if errors.Is(err, sql.ErrNoRows) {
		r.observe(ctx, "get_patient", "patients", start, 0, nil)
		return nil, types.NewNotFoundError("patient", value)
	}
	r.observe(ctx, "get_patient", "patients", start, 1, err)
	if err != nil {
		return nil, fmt.Errorf("failed to get patient: %w", err)
	}

	return patient, nil
}

// GetDoctorByID retrieves a doctor by ID
func (r *Repository) GetDoctorByID(ctx context.Context, id string) (*types.Doctor, error) {
	return r.getDoctor(ctx, "id", id)
}

// GetDoctorByUserID retrieves the doctor linked to a user account
func (r *Repository) GetDoctorByUserID(ctx context.Context, userID string) (*types.Doctor, error) {
	return r.getDoctor(ctx, "user_id", userID)
}

func (r *Repository) getDoctor(ctx context.Context, column, value string) (*types.Doctor, error) {
	query := fmt.Sprintf(`SELECT id, user_id, full_name, specialty FROM doctors WHERE %s = $1`, column)

	start := time.Now()
	doctor := &types.Doctor{}
	err := r.db.QueryRowContext(ctx, query, value).Scan(&doctor.ID, &doctor.UserID, &doctor.FullName, &doctor.Specialty)
	if errors.Is(err, sql.ErrNoRows) {
		r.observe(ctx, "get_doctor", "doctors", start, 0, nil)
		return nil, types.NewNotFoundError("doctor", value)
	}
	r.observe(ctx, "get_doctor", "doctors", start, 1, err)
	if err != nil {
		return nil, fmt.Errorf("failed to get doctor: %w", err)
	}

	return doctor, nil
}

// InsertNotification persists a notification and fills its id and timestamp
func (r *Repository) InsertNotification(ctx context.Context, n *types.Notification) error {
	query := `
		INSERT INTO notifications (user_id, appointment_id, kind, title, message)
		VALUES ($1, NULLIF($2, '')::uuid, $3, $4, $5)
		RETURNING id, created_at`

	start := time.Now()
	err := r.db.QueryRowContext(ctx, query, n.UserID, n.AppointmentID, n.Kind, n.Title, n.Message).Scan(&n.ID, &n.CreatedAt)
	r.observe(ctx, "insert_notification", "notifications", start, 1, err)
	if err != nil {
		return fmt.Errorf("failed to insert notification: %w", err)
	}

	return nil
}

func statusStrings(statuses []types.AppointmentStatus) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}
