package scheduling

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/ArtyomBY/ivastramedGit-sub000/pkg/logger"
	"github.com/ArtyomBY/ivastramedGit-sub000/pkg/types"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockNotificationStore struct {
	mock.Mock
}

func (m *MockNotificationStore) InsertNotification(ctx context.Context, n *types.Notification) error {
	args := m.Called(ctx, n)
	return args.Error(0)
}

type MockEventPublisher struct {
	mock.Mock
}

func (m *MockEventPublisher) Publish(ctx context.Context, n *types.Notification) error {
	args := m.Called(ctx, n)
	return args.Error(0)
}

func TestNotificationService_Notify(t *testing.T) {
	n := &types.Notification{UserID: testDoctorUserID, AppointmentID: testAptID, Kind: types.NotificationAppointmentBooked}

	t.Run("persists then publishes", func(t *testing.T) {
		store := &MockNotificationStore{}
		publisher := &MockEventPublisher{}
		store.On("InsertNotification", mock.Anything, n).Return(nil)
		publisher.On("Publish", mock.Anything, n).Return(nil)

		service := NewNotificationService(store, publisher, logger.NewWithOutput("error", io.Discard))

		require.NoError(t, service.Notify(context.Background(), n))
		store.AssertExpectations(t)
		publisher.AssertExpectations(t)
	})

	t.Run("publish failure is only logged", func(t *testing.T) {
		var buf bytes.Buffer
		store := &MockNotificationStore{}
		publisher := &MockEventPublisher{}
		store.On("InsertNotification", mock.Anything, n).Return(nil)
		publisher.On("Publish", mock.Anything, n).Return(errors.New("redis unavailable"))

		service := NewNotificationService(store, publisher, logger.NewWithOutput("warn", &buf))

		require.NoError(t, service.Notify(context.Background(), n))
		assert.Contains(t, buf.String(), "Failed to publish notification event")
	})

	t.Run("persist failure is returned and nothing is published", func(t *testing.T) {
		store := &MockNotificationStore{}
		publisher := &MockEventPublisher{}
		store.On("InsertNotification", mock.Anything, n).Return(errors.New("insert failed"))

		service := NewNotificationService(store, publisher, logger.NewWithOutput("error", io.Discard))

		err := service.Notify(context.Background(), n)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to persist notification")
		publisher.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything)
	})

	t.Run("nil publisher", func(t *testing.T) {
		store := &MockNotificationStore{}
		store.On("InsertNotification", mock.Anything, n).Return(nil)

		service := NewNotificationService(store, nil, logger.NewWithOutput("error", io.Discard))
		assert.NoError(t, service.Notify(context.Background(), n))
	})
}

func TestRedisPublisher_UnreachableServer(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer client.Close()

	publisher := NewRedisPublisher(client, "appointments.notifications")
	err := publisher.Publish(context.Background(), &types.Notification{UserID: testPatientUserID})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "appointments.notifications")
}

func TestCounterparts(t *testing.T) {
	apt := testAppointment(types.StatusScheduled)

	tests := []struct {
		name  string
		actor types.Actor
		want  []string
	}{
		{name: "doctor acts", actor: doctorActor, want: []string{testPatientUserID}},
		{name: "patient acts", actor: patientActor, want: []string{testDoctorUserID}},
		{name: "staff acts", actor: registrarActor, want: []string{testPatientUserID, testDoctorUserID}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, counterparts(apt, tt.actor))
		})
	}
}

func TestAppointmentNotificationManager_Messages(t *testing.T) {
	notifier := &MockNotifier{}
	manager := NewAppointmentNotificationManager(notifier, logger.NewWithOutput("error", io.Discard), nil)

	apt := testAppointment(types.StatusScheduled)

	notifier.On("Notify", mock.Anything, mock.MatchedBy(func(n *types.Notification) bool {
		return n.UserID == testPatientUserID &&
			n.Message == "The appointment on 2024-01-10 at 09:00 was canceled. Reason: doctor ill"
	})).Return(nil).Once()

	manager.AppointmentCanceled(context.Background(), apt, doctorActor, "doctor ill")

	notifier.AssertExpectations(t)
}

func TestAppointmentNotificationManager_SkipsUnknownRecipient(t *testing.T) {
	notifier := &MockNotifier{}
	manager := NewAppointmentNotificationManager(notifier, logger.NewWithOutput("error", io.Discard), nil)

	apt := testAppointment(types.StatusScheduled)
	apt.DoctorUserID = ""

	manager.AppointmentBooked(context.Background(), apt, patientActor)

	notifier.AssertNotCalled(t, "Notify", mock.Anything, mock.Anything)
}
