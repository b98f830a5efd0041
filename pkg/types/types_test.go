package types

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppointmentStatus_CanTransitionTo(t *testing.T) {
	tests := []struct {
		from AppointmentStatus
		to   AppointmentStatus
		want bool
	}{
		{StatusScheduled, StatusConfirmed, true},
		{StatusScheduled, StatusCanceled, true},
		{StatusScheduled, StatusNoShow, true},
		{StatusConfirmed, StatusCompleted, true},
		{StatusConfirmed, StatusScheduled, false},
		{StatusConfirmed, StatusConfirmed, false},
		{StatusCompleted, StatusCanceled, false},
		{StatusCanceled, StatusScheduled, false},
		{StatusNoShow, StatusConfirmed, false},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s->%s", tt.from, tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.from.CanTransitionTo(tt.to))
		})
	}
}

func TestAppointmentStatus_Predicates(t *testing.T) {
	for _, s := range CancelableStatuses {
		assert.True(t, s.IsCancelable())
		assert.False(t, s.IsTerminal())
	}

	for _, s := range []AppointmentStatus{StatusCompleted, StatusCanceled, StatusNoShow} {
		assert.True(t, s.IsTerminal())
		assert.False(t, s.IsCancelable())
	}

	assert.False(t, AppointmentStatus("pending").IsValid())
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"slot unavailable", NewSlotUnavailableError("s1"), http.StatusBadRequest},
		{"invalid state", NewInvalidStateError(StatusCompleted, "cancel"), http.StatusBadRequest},
		{"validation", NewValidationError("bad", nil), http.StatusBadRequest},
		{"not found", NewNotFoundError("appointment", "a1"), http.StatusNotFound},
		{"forbidden", NewForbiddenError("no"), http.StatusForbidden},
		{"unauthorized", NewAuthenticationError("no token", nil), http.StatusUnauthorized},
		{"reservation failed", NewReservationFailedError(errors.New("boom")), http.StatusInternalServerError},
		{"wrapped", fmt.Errorf("outer: %w", NewNotFoundError("doctor", "d1")), http.StatusNotFound},
		{"plain error", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HTTPStatus(tt.err))
		})
	}
}

func TestNewErrorResponse(t *testing.T) {
	resp := NewErrorResponse(NewSlotUnavailableError("s1"))
	assert.Equal(t, ErrorResponse{
		Error:   ErrCodeSlotUnavailable,
		Message: "the selected time slot is not available",
		Status:  http.StatusBadRequest,
	}, resp)

	resp = NewErrorResponse(NewReservationFailedError(errors.New(`pq: relation "appointments" does not exist`)))
	assert.Equal(t, ErrCodeReservationFailed, resp.Error)
	assert.Equal(t, "internal server error", resp.Message)

	resp = NewErrorResponse(errors.New("boom"))
	assert.Equal(t, ErrCodeInternalError, resp.Error)
	assert.Equal(t, http.StatusInternalServerError, resp.Status)
}

func TestAppError_Unwrap(t *testing.T) {
	cause := errors.New("connection reset")
	err := NewReservationFailedError(cause)

	assert.ErrorIs(t, err, cause)
	assert.True(t, IsCode(fmt.Errorf("wrap: %w", err), ErrCodeReservationFailed))
	assert.False(t, IsCode(cause, ErrCodeReservationFailed))
}

func TestUserRole(t *testing.T) {
	assert.True(t, RoleRegistrar.IsStaff())
	assert.True(t, RoleAdmin.IsStaff())
	assert.False(t, RoleDoctor.IsStaff())
	assert.False(t, UserRole("nurse").IsValid())

	actor := ActorFromClaims(&UserClaims{UserID: "u1", Role: RolePatient})
	assert.Equal(t, Actor{UserID: "u1", Role: RolePatient}, actor)
}
