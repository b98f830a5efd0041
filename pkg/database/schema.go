package database

import (
	"context"
	"fmt"
)

// CreateSchema creates the scheduling tables and indexes if they do not exist
func (db *DB) CreateSchema(ctx context.Context) error {
	db.logger.Info("Creating database schema...")

	for _, stmt := range SchemaStatements() {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema statement: %w", err)
		}
	}

	db.logger.Info("Database schema created successfully")
	return nil
}

// SchemaStatements returns the DDL in the order it must be applied
func SchemaStatements() []string {
	return []string{
		createPatientsTable,
		createDoctorsTable,
		createTimeSlotsTable,
		createAppointmentsTable,
		createNotificationsTable,
		createTimeSlotsIndexes,
		createAppointmentsIndexes,
		createNotificationsIndexes,
	}
}

// SQL DDL statements for table creation
const (
	createPatientsTable = `
		CREATE TABLE IF NOT EXISTS patients (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			user_id UUID NOT NULL UNIQUE,
			full_name VARCHAR(200) NOT NULL DEFAULT '',
			created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
		);`

	createDoctorsTable = `
		CREATE TABLE IF NOT EXISTS doctors (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			user_id UUID NOT NULL UNIQUE,
			full_name VARCHAR(200) NOT NULL DEFAULT '',
			specialty VARCHAR(100) NOT NULL DEFAULT '',
			created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
		);`

	createTimeSlotsTable = `
		CREATE TABLE IF NOT EXISTS time_slots (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			doctor_id UUID NOT NULL REFERENCES doctors(id),
			date DATE NOT NULL,
			start_time TIME NOT NULL,
			end_time TIME NOT NULL,
			is_available BOOLEAN NOT NULL DEFAULT TRUE,
			created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
			CONSTRAINT time_slots_interval CHECK (end_time > start_time),
			CONSTRAINT time_slots_doctor_start UNIQUE (doctor_id, date, start_time)
		);`

	createAppointmentsTable = `
		CREATE TABLE IF NOT EXISTS appointments (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			patient_id UUID NOT NULL REFERENCES patients(id),
			doctor_id UUID NOT NULL REFERENCES doctors(id),
			time_slot_id UUID NOT NULL REFERENCES time_slots(id),
			appointment_type VARCHAR(50) NOT NULL DEFAULT 'consultation',
			status VARCHAR(20) NOT NULL DEFAULT 'scheduled',
			reason_for_visit TEXT,
			symptoms TEXT,
			diagnosis TEXT,
			treatment_notes TEXT,
			prescription TEXT,
			cancellation_reason TEXT,
			created_by UUID NOT NULL,
			canceled_by UUID,
			created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
			updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
			CONSTRAINT appointments_status CHECK (status IN ('scheduled', 'confirmed', 'completed', 'canceled', 'no_show'))
		);`

	createNotificationsTable = `
		CREATE TABLE IF NOT EXISTS notifications (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			user_id UUID NOT NULL,
			appointment_id UUID REFERENCES appointments(id),
			kind VARCHAR(50) NOT NULL,
			title VARCHAR(200) NOT NULL,
			message TEXT NOT NULL,
			is_read BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
		);`
)

// SQL DDL statements for index creation
const (
	createTimeSlotsIndexes = `
		CREATE INDEX IF NOT EXISTS idx_time_slots_doctor_date ON time_slots(doctor_id, date);
		CREATE INDEX IF NOT EXISTS idx_time_slots_available ON time_slots(doctor_id, date) WHERE is_available;`

	// At most one live appointment per slot, independent of the is_available flag.
	createAppointmentsIndexes = `
		CREATE INDEX IF NOT EXISTS idx_appointments_patient_id ON appointments(patient_id);
		CREATE INDEX IF NOT EXISTS idx_appointments_doctor_id ON appointments(doctor_id);
		CREATE INDEX IF NOT EXISTS idx_appointments_status ON appointments(status);
		CREATE UNIQUE INDEX IF NOT EXISTS uq_appointments_active_slot ON appointments(time_slot_id) WHERE status <> 'canceled';`

	createNotificationsIndexes = `
		CREATE INDEX IF NOT EXISTS idx_notifications_user_id ON notifications(user_id, is_read);`
)
