package calendar

import (
	"fmt"
	"strings"
	"time"

	"github.com/md-rashed-zaman/salonbook/services/scheduling-service/internal/model"
)

type Granularity string

const (
	Day    Granularity = "day"
	Week   Granularity = "week"
	Month  Granularity = "month"
	Agenda Granularity = "agenda"
)

// ParseGranularity defaults to Week for an empty value.
func ParseGranularity(raw string) (Granularity, error) {
	switch g := Granularity(strings.ToLower(strings.TrimSpace(raw))); g {
	case "":
		return Week, nil
	case Day, Week, Month, Agenda:
		return g, nil
	default:
		return "", fmt.Errorf("unknown view %q", raw)
	}
}

// Window is the half-open range [Start, End) shown by one view.
type Window struct {
	Granularity Granularity  `json:"granularity"`
	Anchor      time.Time    `json:"anchor"`
	Start       time.Time    `json:"start"`
	End         time.Time    `json:"end"`
	WeekStart   time.Weekday `json:"-"`
}

// WindowFor returns the window of granularity g containing anchor.
func WindowFor(anchor time.Time, g Granularity, weekStart time.Weekday) Window {
	day := model.Day(anchor)
	w := Window{Granularity: g, Anchor: anchor, WeekStart: weekStart}
	switch g {
	case Week:
		w.Start = day.AddDate(0, 0, -daysSince(day.Weekday(), weekStart))
		w.End = w.Start.AddDate(0, 0, 7)
	case Month:
		w.Start = time.Date(day.Year(), day.Month(), 1, 0, 0, 0, 0, day.Location())
		w.End = w.Start.AddDate(0, 1, 0)
	default:
		w.Start = day
		w.End = day.AddDate(0, 0, 1)
	}
	return w
}

// Next moves forward by one unit of the window's granularity.
func (w Window) Next() Window { return w.shift(1) }

// Prev moves back by one unit of the window's granularity.
func (w Window) Prev() Window { return w.shift(-1) }

func (w Window) shift(n int) Window {
	var anchor time.Time
	switch w.Granularity {
	case Week:
		anchor = w.Anchor.AddDate(0, 0, 7*n)
	case Month:
		// Step from the first of the month so Jan 31 + 1 lands in February.
		anchor = w.Start.AddDate(0, n, 0)
	default:
		anchor = w.Anchor.AddDate(0, 0, n)
	}
	return WindowFor(anchor, w.Granularity, w.WeekStart)
}

// Days lists the midnights in the window.
func (w Window) Days() []time.Time {
	var out []time.Time
	for d := w.Start; d.Before(w.End); d = d.AddDate(0, 0, 1) {
		out = append(out, d)
	}
	return out
}

func dateKey(t time.Time) string { return t.Format("2006-01-02") }

func daysSince(d, start time.Weekday) int {
	return (int(d) - int(start) + 7) % 7
}
