package frequency

import (
	"fmt"
	"time"
)

// Next returns the next instant spec fires strictly after now, evaluated in
// now's location. A Specific spec returns its instant unchanged, even if it
// is not after now.
func Next(spec Spec, now time.Time) (time.Time, error) {
	switch s := spec.(type) {
	case Daily:
		if err := s.At.validate(); err != nil {
			return time.Time{}, err
		}
		return nextOnDay(now, 0, s.At, 1), nil
	case Weekly:
		if len(s.At) == 0 {
			return time.Time{}, fmt.Errorf("%w: weekly frequency needs at least one weekday", ErrInvalidSpec)
		}
		var earliest time.Time
		for _, day := range s.Days() {
			at := s.At[day]
			if err := at.validate(); err != nil {
				return time.Time{}, err
			}
			offset := (int(day) - int(now.Weekday()) + 7) % 7
			candidate := nextOnDay(now, offset, at, 7)
			if earliest.IsZero() || candidate.Before(earliest) {
				earliest = candidate
			}
		}
		return earliest, nil
	case Specific:
		if s.At.IsZero() {
			return time.Time{}, fmt.Errorf("%w: specific frequency without an instant", ErrInvalidSpec)
		}
		return s.At, nil
	default:
		return time.Time{}, fmt.Errorf("%w: unsupported frequency %T", ErrInvalidSpec, spec)
	}
}

// nextOnDay builds the wall-clock instant offset days from now's date; if that
// is not after now it rolls forward by rollDays.
func nextOnDay(now time.Time, offset int, at TimeOfDay, rollDays int) time.Time {
	y, m, d := now.Date()
	candidate := time.Date(y, m, d+offset, at.Hour, at.Minute, 0, 0, now.Location())
	if !candidate.After(now) {
		candidate = time.Date(y, m, d+offset+rollDays, at.Hour, at.Minute, 0, 0, now.Location())
	}
	return candidate
}

func (t TimeOfDay) validate() error {
	if t.Hour < 0 || t.Hour > 23 || t.Minute < 0 || t.Minute > 59 {
		return fmt.Errorf("%w: time %s out of range", ErrInvalidSpec, t)
	}
	return nil
}
