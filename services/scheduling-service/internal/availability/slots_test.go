package availability

import (
	"testing"
	"time"

	"github.com/md-rashed-zaman/salonbook/services/scheduling-service/internal/conflict"
	"github.com/md-rashed-zaman/salonbook/services/scheduling-service/internal/model"
)

func TestAvailableSlots_Basic(t *testing.T) {
	day := time.Date(2026, 1, 28, 0, 0, 0, 0, time.UTC)
	windowStart := day.Add(9 * time.Hour)
	windowEnd := day.Add(10 * time.Hour)

	busy := []Interval{
		{Start: day.Add(9*time.Hour + 15*time.Minute), End: day.Add(9*time.Hour + 45*time.Minute)},
	}

	slots := AvailableSlots(windowStart, windowEnd, 15*time.Minute, 15*time.Minute, busy, day)
	if len(slots) != 2 {
		t.Fatalf("expected 2 slots, got %d", len(slots))
	}
	if !slots[0].Equal(day.Add(9 * time.Hour)) {
		t.Fatalf("expected first slot 09:00, got %s", slots[0].Format(time.RFC3339))
	}
	if !slots[1].Equal(day.Add(9*time.Hour + 45*time.Minute)) {
		t.Fatalf("expected second slot 09:45, got %s", slots[1].Format(time.RFC3339))
	}
}

func TestAvailableSlots_SkipsPast(t *testing.T) {
	day := time.Date(2026, 1, 28, 0, 0, 0, 0, time.UTC)
	now := day.Add(9*time.Hour + 31*time.Minute)
	slots := AvailableSlots(day.Add(9*time.Hour), day.Add(10*time.Hour), 15*time.Minute, 15*time.Minute, nil, now)
	if len(slots) != 1 || !slots[0].Equal(day.Add(9*time.Hour+45*time.Minute)) {
		t.Fatalf("expected single 09:45 slot, got %v", slots)
	}
}

func TestFreeSlots(t *testing.T) {
	day := time.Date(2024, 8, 16, 0, 0, 0, 0, time.UTC)
	idx := conflict.NewIndex([]model.Appointment{
		{ID: "a1", StylistID: "s1", Start: day.Add(8 * time.Hour), DurationMinutes: 60},
		{ID: "a2", StylistID: "s1", Start: day.Add(10 * time.Hour), DurationMinutes: 480},
		{ID: "b1", StylistID: "s2", Start: day.Add(9 * time.Hour), DurationMinutes: 60},
	})

	slots := FreeSlots(idx, Query{
		StylistID: "s1",
		Service:   model.Service{ID: "svc", DurationMinutes: 45},
		Day:       day.Add(13 * time.Hour),
		Hours:     Hours{OpenMinute: 8 * 60, CloseMinute: 18 * 60},
		Step:      15 * time.Minute,
	})
	// Only 09:00 and 09:15 fit; the 10:00 booking runs until close.
	if len(slots) != 2 {
		t.Fatalf("expected 2 slots, got %v", slots)
	}
	if !slots[0].Start.Equal(day.Add(9*time.Hour)) || !slots[1].End.Equal(day.Add(10*time.Hour)) {
		t.Fatalf("unexpected slots %v", slots)
	}
}
