package model

import (
	"fmt"
	"strings"
	"time"
)

// WallClockLayout is the wire format for timezone-naive timestamps.
const WallClockLayout = "2006-01-02T15:04:05"

// Naive converts t to a timezone-naive wall-clock value: the local fields of t
// re-expressed in UTC, truncated to microseconds so it survives a round trip
// through a Postgres timestamp column.
func Naive(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	y, mo, d := t.Date()
	h, mi, s := t.Clock()
	return time.Date(y, mo, d, h, mi, s, t.Nanosecond(), time.UTC).Truncate(time.Microsecond)
}

// ParseWallClock accepts an ISO-8601 date-time with or without offset or
// fractional seconds. Any offset is dropped and the wall-clock fields are kept.
func ParseWallClock(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}
	layouts := []string{
		time.RFC3339Nano,
		"2006-01-02T15:04:05.999999999",
		WallClockLayout,
		"2006-01-02T15:04",
		"2006-01-02 15:04:05",
		"2006-01-02 15:04",
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return Naive(t), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid timestamp %q", raw)
}

// Day returns midnight of t's calendar day.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// TimeOfDay is a slot label on a day grid, such as 14:00.
type TimeOfDay struct {
	Hour   int `json:"hour"`
	Minute int `json:"minute"`
}

func ParseTimeOfDay(raw string) (TimeOfDay, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(raw))
	if err != nil {
		return TimeOfDay{}, fmt.Errorf("invalid time of day %q", raw)
	}
	return TimeOfDay{Hour: t.Hour(), Minute: t.Minute()}, nil
}

func TimeOfDayFromMinutes(m int) TimeOfDay {
	return TimeOfDay{Hour: m / 60, Minute: m % 60}
}

func (t TimeOfDay) Minutes() int { return t.Hour*60 + t.Minute }

func (t TimeOfDay) String() string { return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute) }

// On places t on the calendar day of day.
func (t TimeOfDay) On(day time.Time) time.Time {
	return Day(day).Add(time.Duration(t.Minutes()) * time.Minute)
}
