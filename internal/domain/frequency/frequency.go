// Package frequency models how often a medication reminder recurs and
// computes the next instant a reminder is due.
//
// A Spec is one of Daily, Weekly or Specific. The interface is sealed, so
// every consumer switches over exactly these three types.
package frequency

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// ErrInvalidSpec is returned for unknown kinds, malformed times and empty weekly specs.
var ErrInvalidSpec = errors.New("invalid frequency spec")

// Kind is the wire name of a frequency variant.
type Kind string

const (
	KindDaily    Kind = "daily"
	KindWeekly   Kind = "weekly"
	KindSpecific Kind = "specific"
)

// SpecificLayout is the accepted layout for specific_time values (RFC3339 is also accepted).
const SpecificLayout = "2006-01-02 15:04:05"

// Spec is a recurrence rule.
type Spec interface {
	Kind() Kind
	// Recurring reports whether the reminder re-arms after firing.
	Recurring() bool
	// Times renders the rule back into its reminder_times wire shape.
	Times() map[string]string
	sealed()
}

// TimeOfDay is a wall-clock HH:MM.
type TimeOfDay struct {
	Hour   int
	Minute int
}

// ParseTimeOfDay parses "HH:MM" with hour in [0,23] and minute in [0,59].
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	hh, mm, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return TimeOfDay{}, fmt.Errorf("%w: time %q is not HH:MM", ErrInvalidSpec, s)
	}
	if !allDigits(hh, 1, 2) || !allDigits(mm, 2, 2) {
		return TimeOfDay{}, fmt.Errorf("%w: time %q is not HH:MM", ErrInvalidSpec, s)
	}
	hour, err := strconv.Atoi(hh)
	if err != nil || hour > 23 {
		return TimeOfDay{}, fmt.Errorf("%w: hour out of range in %q", ErrInvalidSpec, s)
	}
	minute, err := strconv.Atoi(mm)
	if err != nil || minute > 59 {
		return TimeOfDay{}, fmt.Errorf("%w: minute out of range in %q", ErrInvalidSpec, s)
	}
	return TimeOfDay{Hour: hour, Minute: minute}, nil
}

// allDigits reports whether s is lo to hi ASCII digits.
func allDigits(s string, lo, hi int) bool {
	if len(s) < lo || len(s) > hi {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

// Daily fires every day at At.
type Daily struct {
	At TimeOfDay
}

func (Daily) Kind() Kind      { return KindDaily }
func (Daily) Recurring() bool { return true }
func (d Daily) Times() map[string]string {
	return map[string]string{string(KindDaily): d.At.String()}
}
func (Daily) sealed() {}

// Weekly fires on each listed weekday at that weekday's time.
type Weekly struct {
	At map[time.Weekday]TimeOfDay
}

func (Weekly) Kind() Kind      { return KindWeekly }
func (Weekly) Recurring() bool { return true }
func (w Weekly) Times() map[string]string {
	out := make(map[string]string, len(w.At))
	for day, at := range w.At {
		out[strings.ToLower(day.String())] = at.String()
	}
	return out
}
func (Weekly) sealed() {}

// Days returns the configured weekdays in Sunday-first order.
func (w Weekly) Days() []time.Weekday {
	days := make([]time.Weekday, 0, len(w.At))
	for day := range w.At {
		days = append(days, day)
	}
	sort.Slice(days, func(i, j int) bool { return days[i] < days[j] })
	return days
}

// Specific fires once at At.
type Specific struct {
	At time.Time
}

func (Specific) Kind() Kind               { return KindSpecific }
func (Specific) Recurring() bool          { return false }
func (Specific) Times() map[string]string { return map[string]string{} }
func (Specific) sealed()                  {}

var weekdays = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

// Parse builds a Spec from its wire form. times holds reminder_times
// ({"daily": "HH:MM"} or weekday names to "HH:MM"); specific is the
// specific_time value, interpreted in loc when it carries no offset.
func Parse(kind string, times map[string]string, specific string, loc *time.Location) (Spec, error) {
	switch Kind(strings.ToLower(strings.TrimSpace(kind))) {
	case KindDaily:
		raw, ok := times[string(KindDaily)]
		if !ok {
			return nil, fmt.Errorf("%w: daily frequency requires reminder_times.daily", ErrInvalidSpec)
		}
		at, err := ParseTimeOfDay(raw)
		if err != nil {
			return nil, err
		}
		return Daily{At: at}, nil
	case KindWeekly:
		if len(times) == 0 {
			return nil, fmt.Errorf("%w: weekly frequency needs at least one weekday", ErrInvalidSpec)
		}
		parsed := make(map[time.Weekday]TimeOfDay, len(times))
		for name, raw := range times {
			day, ok := weekdays[strings.ToLower(strings.TrimSpace(name))]
			if !ok {
				return nil, fmt.Errorf("%w: unknown weekday %q", ErrInvalidSpec, name)
			}
			at, err := ParseTimeOfDay(raw)
			if err != nil {
				return nil, err
			}
			parsed[day] = at
		}
		return Weekly{At: parsed}, nil
	case KindSpecific:
		at, err := ParseSpecific(specific, loc)
		if err != nil {
			return nil, err
		}
		return Specific{At: at}, nil
	default:
		return nil, fmt.Errorf("%w: unknown frequency %q", ErrInvalidSpec, kind)
	}
}

// ParseSpecific parses a specific_time value.
func ParseSpecific(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("%w: specific frequency requires specific_time", ErrInvalidSpec)
	}
	if loc == nil {
		loc = time.Local
	}
	if t, err := time.ParseInLocation(SpecificLayout, s, loc); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("%w: specific_time %q must be %q or RFC3339", ErrInvalidSpec, s, SpecificLayout)
}
