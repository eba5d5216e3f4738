// Package availability suggests free start times for a stylist.
package availability

import (
	"time"

	"github.com/md-rashed-zaman/salonbook/services/scheduling-service/internal/conflict"
	"github.com/md-rashed-zaman/salonbook/services/scheduling-service/internal/model"
)

type Interval struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Hours are the business opening hours as minutes after midnight.
type Hours struct {
	OpenMinute  int
	CloseMinute int
}

// Window returns the opening interval on day.
func (h Hours) Window(day time.Time) Interval {
	d := model.Day(day)
	return Interval{
		Start: d.Add(time.Duration(h.OpenMinute) * time.Minute),
		End:   d.Add(time.Duration(h.CloseMinute) * time.Minute),
	}
}

// AvailableSlots returns slot start times within [windowStart, windowEnd) where a booking of
// length duration would not overlap any of the busy intervals. Slots starting before now are skipped.
func AvailableSlots(windowStart, windowEnd time.Time, duration, step time.Duration, busy []Interval, now time.Time) []time.Time {
	if duration <= 0 || step <= 0 {
		return nil
	}
	if !windowEnd.After(windowStart) || windowStart.Add(duration).After(windowEnd) {
		return nil
	}

	var slots []time.Time
	for t := windowStart; !t.Add(duration).After(windowEnd); t = t.Add(step) {
		if t.Before(now) {
			continue
		}
		if !overlapsAny(t, t.Add(duration), busy) {
			slots = append(slots, t)
		}
	}
	return slots
}

func overlapsAny(start, end time.Time, busy []Interval) bool {
	for _, b := range busy {
		if conflict.Overlaps(start, end, b.Start, b.End) {
			return true
		}
	}
	return false
}

// Query asks for free starts of one service with one stylist on one day.
type Query struct {
	StylistID string
	Service   model.Service
	Day       time.Time
	Hours     Hours
	Step      time.Duration
	Now       time.Time
}

// FreeSlots lists start times on q.Day at which q.Service fits for q.StylistID
// within business hours without double-booking. Step defaults to 15 minutes.
func FreeSlots(idx *conflict.Index, q Query) []Interval {
	step := q.Step
	if step <= 0 {
		step = 15 * time.Minute
	}
	window := q.Hours.Window(q.Day)
	var busy []Interval
	for _, a := range idx.Busy(q.StylistID, window.Start, window.End) {
		busy = append(busy, Interval{Start: a.Start, End: a.End()})
	}

	duration := q.Service.Duration()
	starts := AvailableSlots(window.Start, window.End, duration, step, busy, q.Now)
	out := make([]Interval, 0, len(starts))
	for _, s := range starts {
		out = append(out, Interval{Start: s, End: s.Add(duration)})
	}
	return out
}
