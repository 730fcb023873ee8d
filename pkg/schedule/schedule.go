// Package schedule implements appointment time-slot arithmetic: slot
// generation over a working day, overlap detection against existing
// bookings, and range-picker normalization. All functions are pure and
// operate on half-open [Start, End) intervals.
package schedule

import (
	"fmt"
	"time"
)

// Range is a half-open time interval [Start, End).
type Range struct {
	Start time.Time
	End   time.Time
}

// NewRange builds a range from two picker selections, ordering the
// endpoints. Selecting the same instant twice collapses to a zero-length
// range at that instant (a single-slot selection).
func NewRange(a, b time.Time) Range {
	if b.Before(a) {
		a, b = b, a
	}
	return Range{Start: a, End: b}
}

// IsZero reports whether the range has no extent.
func (r Range) IsZero() bool {
	return !r.End.After(r.Start)
}

// Duration returns the length of the range.
func (r Range) Duration() time.Duration {
	return r.End.Sub(r.Start)
}

// Overlaps reports whether two half-open ranges intersect. Ranges that
// merely touch (one ends exactly when the other starts) do not overlap.
func (r Range) Overlaps(other Range) bool {
	if r.IsZero() || other.IsZero() {
		return false
	}
	return r.Start.Before(other.End) && other.Start.Before(r.End)
}

// Contains reports whether t falls inside the range.
func (r Range) Contains(t time.Time) bool {
	return !t.Before(r.Start) && t.Before(r.End)
}

// SlotConfig describes how bookable slots are laid out over a working day.
type SlotConfig struct {
	// WorkdayStart is the offset from midnight when bookings open.
	WorkdayStart time.Duration

	// WorkdayEnd is the offset from midnight when bookings close.
	// Slots must end at or before this offset.
	WorkdayEnd time.Duration

	// Step is the spacing between consecutive slot starts.
	Step time.Duration

	// SlotDuration is the length of one appointment.
	SlotDuration time.Duration

	// MinLead is the minimum distance between "now" and a bookable
	// slot start.
	MinLead time.Duration
}

// DefaultSlotConfig returns a 09:00-18:00 working day with hour-long
// appointments every 30 minutes and a 2 hour booking lead.
func DefaultSlotConfig() SlotConfig {
	return SlotConfig{
		WorkdayStart: 9 * time.Hour,
		WorkdayEnd:   18 * time.Hour,
		Step:         30 * time.Minute,
		SlotDuration: time.Hour,
		MinLead:      2 * time.Hour,
	}
}

// Validate checks the config for internal consistency.
func (c SlotConfig) Validate() error {
	if c.Step <= 0 {
		return fmt.Errorf("step must be positive, got %v", c.Step)
	}
	if c.SlotDuration <= 0 {
		return fmt.Errorf("slot duration must be positive, got %v", c.SlotDuration)
	}
	if c.MinLead < 0 {
		return fmt.Errorf("minimum lead must not be negative, got %v", c.MinLead)
	}
	if c.WorkdayStart < 0 || c.WorkdayEnd > 24*time.Hour {
		return fmt.Errorf("workday [%v, %v] outside a calendar day", c.WorkdayStart, c.WorkdayEnd)
	}
	if c.WorkdayStart+c.SlotDuration > c.WorkdayEnd {
		return fmt.Errorf("workday [%v, %v] too short for a %v slot", c.WorkdayStart, c.WorkdayEnd, c.SlotDuration)
	}
	return nil
}

// Slots generates the bookable slots for the calendar day containing
// day, given the current time and existing bookings. Slots that start
// before now+MinLead or overlap a booked range are excluded.
func Slots(day, now time.Time, cfg SlotConfig, booked []Range) ([]Range, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	midnight := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	opensAt := midnight.Add(cfg.WorkdayStart)
	closesAt := midnight.Add(cfg.WorkdayEnd)
	earliest := now.Add(cfg.MinLead)

	var slots []Range
	for start := opensAt; !start.Add(cfg.SlotDuration).After(closesAt); start = start.Add(cfg.Step) {
		if start.Before(earliest) {
			continue
		}

		slot := Range{Start: start, End: start.Add(cfg.SlotDuration)}

		conflict := false
		for _, b := range booked {
			if slot.Overlaps(b) {
				conflict = true
				break
			}
		}
		if conflict {
			continue
		}

		slots = append(slots, slot)
	}

	return slots, nil
}

// ClampToDay trims a range to the working window of the calendar day
// containing day. Returns a zero range when there is no intersection.
func ClampToDay(r Range, day time.Time, cfg SlotConfig) Range {
	midnight := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	window := Range{Start: midnight.Add(cfg.WorkdayStart), End: midnight.Add(cfg.WorkdayEnd)}

	if !r.Overlaps(window) {
		return Range{}
	}

	clamped := r
	if clamped.Start.Before(window.Start) {
		clamped.Start = window.Start
	}
	if clamped.End.After(window.End) {
		clamped.End = window.End
	}
	return clamped
}

// NextAvailable returns the first bookable slot at or after now,
// scanning up to maxDays calendar days. The second return value is
// false when no slot is found in the scanned window.
func NextAvailable(now time.Time, cfg SlotConfig, booked []Range, maxDays int) (Range, bool) {
	for d := 0; d < maxDays; d++ {
		day := now.AddDate(0, 0, d)
		slots, err := Slots(day, now, cfg, booked)
		if err != nil {
			return Range{}, false
		}
		if len(slots) > 0 {
			return slots[0], true
		}
	}
	return Range{}, false
}
