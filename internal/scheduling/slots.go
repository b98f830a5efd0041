package scheduling

import (
	"fmt"
	"time"

	"github.com/ArtyomBY/ivastramedGit-sub000/pkg/config"
	"github.com/ArtyomBY/ivastramedGit-sub000/pkg/types"
)

const (
	dateLayout  = "2006-01-02"
	clockLayout = "15:04"
)

// buildDaySlots splits the working day of date into fixed-length slots for
// doctorID. A slot that overlaps the break is skipped; a trailing remainder
// shorter than one slot is dropped.
func buildDaySlots(cfg config.SchedulingConfig, doctorID, date string) ([]*types.TimeSlot, error) {
	if _, err := time.Parse(dateLayout, date); err != nil {
		return nil, fmt.Errorf("invalid date %q: %w", date, err)
	}

	dayStart, err := time.Parse(clockLayout, cfg.DayStart)
	if err != nil {
		return nil, fmt.Errorf("invalid day start %q: %w", cfg.DayStart, err)
	}
	dayEnd, err := time.Parse(clockLayout, cfg.DayEnd)
	if err != nil {
		return nil, fmt.Errorf("invalid day end %q: %w", cfg.DayEnd, err)
	}
	if cfg.SlotMinutes <= 0 {
		return nil, fmt.Errorf("slot length must be positive: %d", cfg.SlotMinutes)
	}

	var breakStart, breakEnd time.Time
	hasBreak := cfg.BreakStart != "" && cfg.BreakEnd != ""
	if hasBreak {
		if breakStart, err = time.Parse(clockLayout, cfg.BreakStart); err != nil {
			return nil, fmt.Errorf("invalid break start %q: %w", cfg.BreakStart, err)
		}
		if breakEnd, err = time.Parse(clockLayout, cfg.BreakEnd); err != nil {
			return nil, fmt.Errorf("invalid break end %q: %w", cfg.BreakEnd, err)
		}
	}

	length := time.Duration(cfg.SlotMinutes) * time.Minute
	slots := make([]*types.TimeSlot, 0)

	for start := dayStart; !start.Add(length).After(dayEnd); start = start.Add(length) {
		end := start.Add(length)
		if hasBreak && start.Before(breakEnd) && end.After(breakStart) {
			continue
		}

		slots = append(slots, &types.TimeSlot{
			DoctorID:    doctorID,
			Date:        date,
			StartTime:   start.Format(clockLayout),
			EndTime:     end.Format(clockLayout),
			IsAvailable: true,
		})
	}

	return slots, nil
}
