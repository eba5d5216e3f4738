package calendar

import (
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/md-rashed-zaman/salonbook/services/scheduling-service/internal/model"
)

func date(y int, m time.Month, d, h, min int) time.Time {
	return time.Date(y, m, d, h, min, 0, 0, time.UTC)
}

func appt(id, stylist string, start time.Time, minutes int) model.Appointment {
	return model.Appointment{ID: id, StylistID: stylist, Start: start, DurationMinutes: minutes}
}

func TestWindowFor(t *testing.T) {
	anchor := date(2024, 8, 16, 15, 30) // Friday
	tests := []struct {
		g          Granularity
		start, end time.Time
	}{
		{Day, date(2024, 8, 16, 0, 0), date(2024, 8, 17, 0, 0)},
		{Week, date(2024, 8, 12, 0, 0), date(2024, 8, 19, 0, 0)},
		{Month, date(2024, 8, 1, 0, 0), date(2024, 9, 1, 0, 0)},
		{Agenda, date(2024, 8, 16, 0, 0), date(2024, 8, 17, 0, 0)},
	}
	for _, tt := range tests {
		t.Run(string(tt.g), func(t *testing.T) {
			w := WindowFor(anchor, tt.g, time.Monday)
			if !w.Start.Equal(tt.start) || !w.End.Equal(tt.end) {
				t.Fatalf("expected [%s,%s), got [%s,%s)", tt.start, tt.end, w.Start, w.End)
			}
		})
	}

	sunday := WindowFor(date(2024, 8, 18, 9, 0), Week, time.Monday)
	if !sunday.Start.Equal(date(2024, 8, 12, 0, 0)) {
		t.Fatalf("sunday should belong to the week starting monday 12th, got %s", sunday.Start)
	}
}

func TestWindowNavigation(t *testing.T) {
	tests := []struct {
		g    Granularity
		next time.Time
		prev time.Time
	}{
		{Day, date(2024, 8, 17, 0, 0), date(2024, 8, 15, 0, 0)},
		{Week, date(2024, 8, 19, 0, 0), date(2024, 8, 5, 0, 0)},
		{Month, date(2024, 9, 1, 0, 0), date(2024, 7, 1, 0, 0)},
		{Agenda, date(2024, 8, 17, 0, 0), date(2024, 8, 15, 0, 0)},
	}
	for _, tt := range tests {
		t.Run(string(tt.g), func(t *testing.T) {
			w := WindowFor(date(2024, 8, 16, 10, 0), tt.g, time.Monday)
			if got := w.Next().Start; !got.Equal(tt.next) {
				t.Fatalf("next: expected %s, got %s", tt.next, got)
			}
			if got := w.Prev().Start; !got.Equal(tt.prev) {
				t.Fatalf("prev: expected %s, got %s", tt.prev, got)
			}
		})
	}

	jan31 := WindowFor(date(2025, 1, 31, 0, 0), Month, time.Monday)
	if got := jan31.Next().Start; !got.Equal(date(2025, 2, 1, 0, 0)) {
		t.Fatalf("expected february, got %s", got)
	}
}

func TestParseGranularity(t *testing.T) {
	if g, err := ParseGranularity(""); err != nil || g != Week {
		t.Fatalf("expected week default, got %q %v", g, err)
	}
	if g, err := ParseGranularity("Month"); err != nil || g != Month {
		t.Fatalf("expected month, got %q %v", g, err)
	}
	if _, err := ParseGranularity("year"); err == nil {
		t.Fatalf("expected error")
	}
}

func TestSlots(t *testing.T) {
	slots := DefaultConfig().Slots()
	if len(slots) != 11 || slots[0].String() != "08:00" || slots[10].String() != "18:00" {
		t.Fatalf("unexpected slots %v", slots)
	}
	half := Config{OpenMinute: 9 * 60, CloseMinute: 10 * 60, SlotMinutes: 30}.Normalize().Slots()
	if len(half) != 3 || half[1].String() != "09:30" {
		t.Fatalf("unexpected half-hour slots %v", half)
	}
}

func TestDayPlacementIsTimeProportional(t *testing.T) {
	w := WindowFor(date(2024, 8, 16, 0, 0), Day, time.Monday)
	layout := Project([]model.Appointment{
		appt("a1", "s1", date(2024, 8, 16, 10, 30), 90),
		appt("a2", "s1", date(2024, 8, 17, 10, 0), 60),
	}, w, DefaultConfig())

	if len(layout.Columns) != 1 || len(layout.Columns[0].Placements) != 1 {
		t.Fatalf("expected one placement, got %+v", layout.Columns)
	}
	p := layout.Columns[0].Placements[0]
	if p.Offset != 2.5 || p.Size != 1.5 || p.Top != 160 || p.Height != 96 {
		t.Fatalf("unexpected geometry %+v", p)
	}
}

func TestWeekGroupsByDay(t *testing.T) {
	w := WindowFor(date(2024, 8, 16, 0, 0), Week, time.Monday)
	layout := Project([]model.Appointment{
		appt("fri", "s1", date(2024, 8, 16, 12, 0), 60),
		appt("mon", "s2", date(2024, 8, 12, 8, 0), 45),
		appt("sun", "s1", date(2024, 8, 18, 17, 0), 60),
		appt("next", "s1", date(2024, 8, 19, 9, 0), 60),
	}, w, DefaultConfig())

	if len(layout.Columns) != 7 {
		t.Fatalf("expected 7 columns, got %d", len(layout.Columns))
	}
	want := map[int]string{0: "mon", 4: "fri", 6: "sun"}
	for i, col := range layout.Columns {
		id, ok := want[i]
		if !ok {
			if len(col.Placements) != 0 {
				t.Fatalf("column %d should be empty, got %+v", i, col.Placements)
			}
			continue
		}
		if len(col.Placements) != 1 || col.Placements[0].Appointment.ID != id {
			t.Fatalf("column %d: expected %s, got %+v", i, id, col.Placements)
		}
	}
}

func TestMonthTruncation(t *testing.T) {
	w := WindowFor(date(2024, 8, 16, 0, 0), Month, time.Monday)
	var appts []model.Appointment
	for i := 5; i >= 1; i-- {
		appts = append(appts, appt(fmt.Sprintf("a%d", i), "s1", date(2024, 8, 16, 8+i, 0), 30))
	}
	appts = append(appts, appt("other", "s1", date(2024, 8, 2, 9, 0), 30))

	layout := Project(appts, w, DefaultConfig())
	if layout.Month == nil || len(layout.Month.Days) != 31 {
		t.Fatalf("expected 31 days, got %+v", layout.Month)
	}
	if layout.Month.LeadingBlanks != 3 {
		t.Fatalf("august 2024 starts on thursday, expected 3 blanks, got %d", layout.Month.LeadingBlanks)
	}
	day := layout.Month.Days[15]
	if day.Total != 5 || len(day.Visible) != 3 || day.Overflow != 2 || len(day.Hidden) != 2 {
		t.Fatalf("unexpected truncation %+v", day)
	}
	if day.Visible[0].ID != "a1" || day.Visible[2].ID != "a3" || day.Hidden[1].ID != "a5" {
		t.Fatalf("expected ascending order, got %+v / %+v", day.Visible, day.Hidden)
	}
	for _, d := range layout.Month.Days {
		if d.Overflow+len(d.Visible) != d.Total {
			t.Fatalf("%s: overflow %d + visible %d != total %d", d.Date, d.Overflow, len(d.Visible), d.Total)
		}
	}
}

func TestAgendaBounds(t *testing.T) {
	w := WindowFor(date(2024, 8, 16, 12, 0), Agenda, time.Monday)
	layout := Project([]model.Appointment{
		appt("late", "s1", time.Date(2024, 8, 16, 23, 59, 59, 999_000_000, time.UTC), 30),
		appt("prev", "s1", date(2024, 8, 15, 23, 30), 60),
		appt("midnight", "s1", date(2024, 8, 16, 0, 0), 30),
		appt("next", "s1", date(2024, 8, 17, 0, 0), 30),
	}, w, DefaultConfig())

	if len(layout.Agenda) != 2 {
		t.Fatalf("expected 2 agenda items, got %+v", layout.Agenda)
	}
	if layout.Agenda[0].Appointment.ID != "midnight" || layout.Agenda[1].Appointment.ID != "late" || layout.Agenda[1].Index != 1 {
		t.Fatalf("unexpected agenda %+v", layout.Agenda)
	}
}

func TestStableTieBreak(t *testing.T) {
	start := date(2024, 8, 16, 10, 0)
	appts := []model.Appointment{appt("z", "s1", start, 30), appt("a", "s2", start, 30), appt("m", "s3", start, 30)}
	layout := Project(appts, WindowFor(start, Agenda, time.Monday), DefaultConfig())
	for i, id := range []string{"z", "a", "m"} {
		if layout.Agenda[i].Appointment.ID != id {
			t.Fatalf("expected input order, got %+v", layout.Agenda)
		}
	}
}

func TestWithStylist(t *testing.T) {
	start := date(2024, 8, 16, 10, 0)
	appts := []model.Appointment{appt("a", "s1", start, 30), appt("b", "s2", start, 30)}
	w := WindowFor(start, Agenda, time.Monday)
	if got := Project(appts, w, DefaultConfig(), WithStylist("s2")).Agenda; len(got) != 1 || got[0].Appointment.ID != "b" {
		t.Fatalf("expected only s2, got %+v", got)
	}
	if got := Project(appts, w, DefaultConfig(), WithStylist("all")).Agenda; len(got) != 2 {
		t.Fatalf("expected everyone, got %+v", got)
	}
}

// Every appointment intersecting the window is projected exactly once.
func TestProjectionCompleteness(t *testing.T) {
	rng := rand.New(rand.NewSource(99))
	anchor := date(2024, 8, 16, 0, 0)
	var appts []model.Appointment
	for i := 0; i < 400; i++ {
		start := anchor.AddDate(0, 0, rng.Intn(90)-45).Add(time.Duration(rng.Intn(24*60)) * time.Minute)
		appts = append(appts, appt(fmt.Sprintf("a%d", i), "s1", start, 15+rng.Intn(600)))
	}

	for _, g := range []Granularity{Day, Week, Month, Agenda} {
		t.Run(string(g), func(t *testing.T) {
			w := WindowFor(anchor, g, time.Monday)
			seen := map[string]int{}
			layout := Project(appts, w, DefaultConfig())
			for _, col := range layout.Columns {
				for _, p := range col.Placements {
					seen[p.Appointment.ID]++
				}
			}
			if layout.Month != nil {
				for _, d := range layout.Month.Days {
					for _, a := range d.Visible {
						seen[a.ID]++
					}
					for _, a := range d.Hidden {
						seen[a.ID]++
					}
				}
			}
			for _, item := range layout.Agenda {
				seen[item.Appointment.ID]++
			}

			for _, a := range appts {
				var want int
				if g == Agenda {
					if !a.Start.Before(w.Start) && a.Start.Before(w.End) {
						want = 1
					}
				} else if a.Start.Before(w.End) && w.Start.Before(a.End()) {
					want = 1
				}
				if seen[a.ID] != want {
					t.Fatalf("%s: expected %d appearances, got %d", a.ID, want, seen[a.ID])
				}
			}
		})
	}
}
