package scheduling

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ArtyomBY/ivastramedGit-sub000/pkg/interfaces"
	"github.com/ArtyomBY/ivastramedGit-sub000/pkg/logger"
	"github.com/ArtyomBY/ivastramedGit-sub000/pkg/monitoring"
	"github.com/ArtyomBY/ivastramedGit-sub000/pkg/types"
	"github.com/redis/go-redis/v9"
)

// NotificationStore persists notification rows
type NotificationStore interface {
	InsertNotification(ctx context.Context, n *types.Notification) error
}

// NotificationService implements interfaces.Notifier. The row is the
// durable record; the published event is a hint for live subscribers.
type NotificationService struct {
	store     NotificationStore
	publisher interfaces.EventPublisher
	logger    *logger.Logger
}

// NewNotificationService creates a new notification service. publisher may be nil.
func NewNotificationService(store NotificationStore, publisher interfaces.EventPublisher, log *logger.Logger) *NotificationService {
	return &NotificationService{
		store:     store,
		publisher: publisher,
		logger:    log,
	}
}

// Notify persists n and publishes it. Only a persist failure is returned.
func (s *NotificationService) Notify(ctx context.Context, n *types.Notification) error {
	if err := s.store.InsertNotification(ctx, n); err != nil {
		return fmt.Errorf("failed to persist notification: %w", err)
	}

	if s.publisher == nil {
		return nil
	}

	if err := s.publisher.Publish(ctx, n); err != nil {
		s.logger.WithContext(ctx).WithError(err).WithFields(map[string]interface{}{
			"notification_id": n.ID,
			"kind":            n.Kind,
		}).Warn("Failed to publish notification event")
	}

	return nil
}

// RedisPublisher publishes notification events on a Redis pub/sub channel
type RedisPublisher struct {
	client  redis.UniversalClient
	channel string
}

// NewRedisPublisher creates a new Redis publisher
func NewRedisPublisher(client redis.UniversalClient, channel string) *RedisPublisher {
	return &RedisPublisher{client: client, channel: channel}
}

// Publish sends n as JSON to the configured channel
func (p *RedisPublisher) Publish(ctx context.Context, n *types.Notification) error {
	payload, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("failed to encode notification: %w", err)
	}

	if err := p.client.Publish(ctx, p.channel, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", p.channel, err)
	}

	return nil
}

// AppointmentNotificationManager decides who hears about an appointment
// event and what they are told. Delivery is best effort.
type AppointmentNotificationManager struct {
	notifier interfaces.Notifier
	logger   *logger.Logger
	metrics  *monitoring.MetricsCollector
}

// NewAppointmentNotificationManager creates a new appointment notification manager
func NewAppointmentNotificationManager(notifier interfaces.Notifier, log *logger.Logger, metrics *monitoring.MetricsCollector) *AppointmentNotificationManager {
	return &AppointmentNotificationManager{
		notifier: notifier,
		logger:   log,
		metrics:  metrics,
	}
}

// AppointmentBooked notifies the doctor, and the patient when someone else booked for them
func (m *AppointmentNotificationManager) AppointmentBooked(ctx context.Context, apt *types.Appointment, actor types.Actor) {
	when := describeSlot(apt)

	m.send(ctx, &types.Notification{
		UserID:        apt.DoctorUserID,
		AppointmentID: apt.ID,
		Kind:          types.NotificationAppointmentBooked,
		Title:         "New appointment",
		Message:       fmt.Sprintf("A patient booked an appointment%s.", when),
	})

	if actor.UserID != apt.PatientUserID {
		m.send(ctx, &types.Notification{
			UserID:        apt.PatientUserID,
			AppointmentID: apt.ID,
			Kind:          types.NotificationAppointmentBooked,
			Title:         "Appointment booked",
			Message:       fmt.Sprintf("An appointment was booked for you%s.", when),
		})
	}
}

// AppointmentCanceled notifies the counterpart of whoever canceled. Staff
// cancellations notify both parties.
func (m *AppointmentNotificationManager) AppointmentCanceled(ctx context.Context, apt *types.Appointment, actor types.Actor, reason string) {
	message := fmt.Sprintf("The appointment%s was canceled.", describeSlot(apt))
	if reason != "" {
		message = fmt.Sprintf("%s Reason: %s", message, reason)
	}

	for _, userID := range counterparts(apt, actor) {
		m.send(ctx, &types.Notification{
			UserID:        userID,
			AppointmentID: apt.ID,
			Kind:          types.NotificationAppointmentCanceled,
			Title:         "Appointment canceled",
			Message:       message,
		})
	}
}

// AppointmentStatusChanged notifies the parties other than the actor
func (m *AppointmentNotificationManager) AppointmentStatusChanged(ctx context.Context, apt *types.Appointment, actor types.Actor, status types.AppointmentStatus) {
	message := fmt.Sprintf("The appointment%s is now %s.", describeSlot(apt), status)

	for _, userID := range counterparts(apt, actor) {
		m.send(ctx, &types.Notification{
			UserID:        userID,
			AppointmentID: apt.ID,
			Kind:          types.NotificationAppointmentStatusChanged,
			Title:         "Appointment updated",
			Message:       message,
		})
	}
}

func (m *AppointmentNotificationManager) send(ctx context.Context, n *types.Notification) {
	if n.UserID == "" {
		return
	}

	status := "sent"
	if err := m.notifier.Notify(ctx, n); err != nil {
		status = "failed"
		m.logger.WithContext(ctx).WithError(err).WithFields(map[string]interface{}{
			"appointment_id": n.AppointmentID,
			"recipient":      n.UserID,
			"kind":           n.Kind,
		}).Error("Failed to send appointment notification")
	}

	if m.metrics != nil {
		m.metrics.RecordNotification(string(n.Kind), status)
	}
}

// counterparts returns the user ids that should hear about an action taken by actor
func counterparts(apt *types.Appointment, actor types.Actor) []string {
	switch actor.UserID {
	case apt.DoctorUserID:
		return []string{apt.PatientUserID}
	case apt.PatientUserID:
		return []string{apt.DoctorUserID}
	default:
		return []string{apt.PatientUserID, apt.DoctorUserID}
	}
}

func describeSlot(apt *types.Appointment) string {
	if apt.Date == "" {
		return ""
	}
	return fmt.Sprintf(" on %s at %s", apt.Date, apt.StartTime)
}
