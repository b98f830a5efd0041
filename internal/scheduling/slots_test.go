package scheduling

import (
	"testing"

	"github.com/ArtyomBY/ivastramedGit-sub000/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildDaySlots(t *testing.T) {
	tests := []struct {
		name       string
		cfg        config.SchedulingConfig
		wantStarts []string
		wantErr    bool
	}{
		{
			name:       "break removes overlapping slot",
			cfg:        config.SchedulingConfig{SlotMinutes: 30, DayStart: "09:00", DayEnd: "11:00", BreakStart: "10:00", BreakEnd: "10:30"},
			wantStarts: []string{"09:00", "09:30", "10:30"},
		},
		{
			name:       "trailing remainder dropped",
			cfg:        config.SchedulingConfig{SlotMinutes: 40, DayStart: "09:00", DayEnd: "10:30"},
			wantStarts: []string{"09:00", "09:40"},
		},
		{
			name:       "break inside a slot skips it",
			cfg:        config.SchedulingConfig{SlotMinutes: 60, DayStart: "12:00", DayEnd: "15:00", BreakStart: "13:15", BreakEnd: "13:45"},
			wantStarts: []string{"12:00", "14:00"},
		},
		{
			name:    "zero length",
			cfg:     config.SchedulingConfig{SlotMinutes: 0, DayStart: "09:00", DayEnd: "10:00"},
			wantErr: true,
		},
		{
			name:    "bad clock",
			cfg:     config.SchedulingConfig{SlotMinutes: 30, DayStart: "9am", DayEnd: "10:00"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			slots, err := buildDaySlots(tt.cfg, testDoctorID, "2024-01-10")
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)

			starts := make([]string, 0, len(slots))
			for _, slot := range slots {
				starts = append(starts, slot.StartTime)
				assert.Equal(t, testDoctorID, slot.DoctorID)
				assert.Equal(t, "2024-01-10", slot.Date)
				assert.True(t, slot.IsAvailable)
			}
			assert.Equal(t, tt.wantStarts, starts)
		})
	}
}

func TestBuildDaySlots_InvalidDate(t *testing.T) {
	cfg := config.SchedulingConfig{SlotMinutes: 30, DayStart: "09:00", DayEnd: "10:00"}

	_, err := buildDaySlots(cfg, testDoctorID, "2024-02-30")
	assert.Error(t, err)
}
