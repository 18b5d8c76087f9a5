package access

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// parseClock converts an "HH:mm" value into minutes since midnight.
func parseClock(value string) (int, error) {
	parts := strings.Split(value, ":")
	if len(parts) != 2 || len(parts[0]) != 2 || len(parts[1]) != 2 {
		return 0, fmt.Errorf("%w: clock value must be HH:mm, got %q", ErrInvalidInput, value)
	}
	hours, err := strconv.Atoi(parts[0])
	if err != nil || hours < 0 || hours > 23 {
		return 0, fmt.Errorf("%w: invalid hour in %q", ErrInvalidInput, value)
	}
	minutes, err := strconv.Atoi(parts[1])
	if err != nil || minutes < 0 || minutes > 59 {
		return 0, fmt.Errorf("%w: invalid minute in %q", ErrInvalidInput, value)
	}
	return hours*60 + minutes, nil
}

// Validate checks the slot's clock values and day set. A slot whose start
// equals its end is rejected rather than treated as covering the whole day.
func (s TimeSlot) Validate() error {
	start, err := parseClock(s.Start)
	if err != nil {
		return err
	}
	end, err := parseClock(s.End)
	if err != nil {
		return err
	}
	if start == end {
		return fmt.Errorf("%w: time slot start %q equals end", ErrInvalidInput, s.Start)
	}
	if len(s.Days) == 0 {
		return fmt.Errorf("%w: time slot requires at least one day", ErrInvalidInput)
	}
	for _, d := range s.Days {
		if d < 0 || d > 6 {
			return fmt.Errorf("%w: day %d out of range 0..6", ErrInvalidInput, d)
		}
	}
	return nil
}

// Contains reports whether now falls inside the slot's weekly window.
//
// A slot whose end precedes its start wraps past midnight: it covers
// [start, 23:59] on each listed day and [00:00, end] on the day that follows
// a listed day. All comparisons use the location of now.
func (s TimeSlot) Contains(now time.Time) bool {
	start, err := parseClock(s.Start)
	if err != nil {
		return false
	}
	end, err := parseClock(s.End)
	if err != nil || start == end {
		return false
	}

	day := int(now.Weekday())
	minutes := now.Hour()*60 + now.Minute()

	if end > start {
		return s.onDay(day) && minutes >= start && minutes <= end
	}

	// Overnight wrap: the tail segment belongs to the slot that started the
	// previous calendar day.
	if s.onDay(day) && minutes >= start {
		return true
	}
	prev := (day + 6) % 7
	return s.onDay(prev) && minutes <= end
}

func (s TimeSlot) onDay(day int) bool {
	for _, d := range s.Days {
		if d == day {
			return true
		}
	}
	return false
}

// validateSchedules checks every slot in every tier group of a zone.
func validateSchedules(schedules []Schedule) error {
	for _, sched := range schedules {
		if !validTier(sched.Tier) {
			return fmt.Errorf("%w: unknown schedule tier %q", ErrInvalidInput, sched.Tier)
		}
		for _, slot := range sched.Slots {
			if err := slot.Validate(); err != nil {
				return err
			}
		}
	}
	return nil
}
