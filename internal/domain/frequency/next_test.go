package frequency

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func at(t *testing.T, value string) time.Time {
	t.Helper()
	ts, err := time.ParseInLocation("2006-01-02 15:04", value, time.UTC)
	require.NoError(t, err)
	return ts
}

func TestNext_Daily(t *testing.T) {
	spec := Daily{At: TimeOfDay{Hour: 9, Minute: 0}}

	tests := []struct {
		name string
		now  string
		want string
	}{
		{name: "later today", now: "2024-01-01 08:00", want: "2024-01-01 09:00"},
		{name: "already passed rolls to tomorrow", now: "2024-01-01 09:30", want: "2024-01-02 09:00"},
		{name: "exactly now rolls to tomorrow", now: "2024-01-01 09:00", want: "2024-01-02 09:00"},
		{name: "month boundary", now: "2024-01-31 23:59", want: "2024-02-01 09:00"},
		{name: "leap day", now: "2024-02-28 10:00", want: "2024-02-29 09:00"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Next(spec, at(t, tt.now))
			require.NoError(t, err)
			assert.Equal(t, at(t, tt.want), got)
		})
	}
}

func TestNext_DailyWithinOneDay(t *testing.T) {
	base := at(t, "2024-03-10 00:00")
	for hour := 0; hour < 24; hour++ {
		for minute := 0; minute < 60; minute += 7 {
			spec := Daily{At: TimeOfDay{Hour: hour, Minute: minute}}
			for step := 0; step < 48; step++ {
				now := base.Add(time.Duration(step) * 31 * time.Minute)
				got, err := Next(spec, now)
				require.NoError(t, err)
				assert.True(t, got.After(now), "next %v must be after now %v", got, now)
				assert.LessOrEqual(t, got.Sub(now), 24*time.Hour)
			}
		}
	}
}

func TestNext_Weekly(t *testing.T) {
	spec := Weekly{At: map[time.Weekday]TimeOfDay{
		time.Monday: {Hour: 8, Minute: 0},
		time.Friday: {Hour: 18, Minute: 0},
	}}

	tests := []struct {
		name string
		now  string
		want string
	}{
		// 2024-01-03 is a Wednesday: Monday already passed, Friday is next.
		{name: "wednesday picks friday", now: "2024-01-03 07:00", want: "2024-01-05 18:00"},
		{name: "monday before time", now: "2024-01-01 07:59", want: "2024-01-01 08:00"},
		{name: "monday after time picks friday", now: "2024-01-01 08:01", want: "2024-01-05 18:00"},
		{name: "friday after time picks next monday", now: "2024-01-05 18:00", want: "2024-01-08 08:00"},
		{name: "sunday picks monday", now: "2024-01-07 23:00", want: "2024-01-08 08:00"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Next(spec, at(t, tt.now))
			require.NoError(t, err)
			assert.Equal(t, at(t, tt.want), got)
		})
	}
}

func TestNext_WeeklyIsMinimumOfCandidates(t *testing.T) {
	spec := Weekly{At: map[time.Weekday]TimeOfDay{
		time.Sunday:    {Hour: 6, Minute: 15},
		time.Tuesday:   {Hour: 12, Minute: 0},
		time.Wednesday: {Hour: 21, Minute: 45},
		time.Saturday:  {Hour: 0, Minute: 0},
	}}
	base := at(t, "2024-01-01 00:00")

	for step := 0; step < 7*24*2; step++ {
		now := base.Add(time.Duration(step) * 30 * time.Minute)
		got, err := Next(spec, now)
		require.NoError(t, err)

		var want time.Time
		for day, tod := range spec.At {
			single, err := Next(Weekly{At: map[time.Weekday]TimeOfDay{day: tod}}, now)
			require.NoError(t, err)
			assert.True(t, single.After(now))
			assert.Equal(t, day, single.Weekday())
			if want.IsZero() || single.Before(want) {
				want = single
			}
		}
		assert.Equal(t, want, got, "now=%v", now)
	}
}

func TestNext_Specific(t *testing.T) {
	future := at(t, "2030-06-01 12:00")
	got, err := Next(Specific{At: future}, at(t, "2024-01-01 00:00"))
	require.NoError(t, err)
	assert.Equal(t, future, got)

	past := at(t, "2020-06-01 12:00")
	got, err = Next(Specific{At: past}, at(t, "2024-01-01 00:00"))
	require.NoError(t, err)
	assert.Equal(t, past, got, "past specific instants are returned as-is")
}

func TestNext_Idempotent(t *testing.T) {
	now := at(t, "2024-05-15 13:37")
	specs := []Spec{
		Daily{At: TimeOfDay{Hour: 7, Minute: 30}},
		Weekly{At: map[time.Weekday]TimeOfDay{time.Thursday: {Hour: 9}}},
		Specific{At: at(t, "2024-06-01 10:00")},
	}
	for _, spec := range specs {
		first, err := Next(spec, now)
		require.NoError(t, err)
		second, err := Next(spec, now)
		require.NoError(t, err)
		assert.Equal(t, first, second)
	}
}

func TestNext_InvalidSpecs(t *testing.T) {
	now := at(t, "2024-01-01 00:00")
	tests := []struct {
		name string
		spec Spec
	}{
		{name: "nil", spec: nil},
		{name: "empty weekly", spec: Weekly{}},
		{name: "hour out of range", spec: Daily{At: TimeOfDay{Hour: 24}}},
		{name: "minute out of range", spec: Weekly{At: map[time.Weekday]TimeOfDay{time.Monday: {Minute: 60}}}},
		{name: "zero specific", spec: Specific{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Next(tt.spec, now)
			assert.ErrorIs(t, err, ErrInvalidSpec)
		})
	}
}

func TestNext_UsesLocationOfNow(t *testing.T) {
	tokyo, err := time.LoadLocation("Asia/Tokyo")
	require.NoError(t, err)
	now := time.Date(2024, 1, 1, 8, 0, 0, 0, tokyo)

	got, err := Next(Daily{At: TimeOfDay{Hour: 9}}, now)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 1, 9, 0, 0, 0, tokyo), got)
}
