package conflict

import (
	"math/rand"
	"testing"
	"time"

	"github.com/md-rashed-zaman/salonbook/services/scheduling-service/internal/model"
)

var base = time.Date(2024, 8, 16, 0, 0, 0, 0, time.UTC)

func at(h, m int) time.Time { return base.Add(time.Duration(h)*time.Hour + time.Duration(m)*time.Minute) }

func appt(id, stylist string, start time.Time, minutes int) model.Appointment {
	return model.Appointment{ID: id, StylistID: stylist, Start: start, DurationMinutes: minutes}
}

func TestHasConflict(t *testing.T) {
	existing := []model.Appointment{appt("a1", "s1", at(10, 0), 60)}

	tests := []struct {
		name      string
		candidate model.Appointment
		exclude   string
		want      bool
	}{
		{"inside", appt("", "s1", at(10, 30), 30), "", true},
		{"covers", appt("", "s1", at(9, 0), 180), "", true},
		{"starts at end", appt("", "s1", at(11, 0), 30), "", false},
		{"ends at start", appt("", "s1", at(9, 0), 60), "", false},
		{"other stylist", appt("", "s2", at(10, 0), 60), "", false},
		{"self excluded", appt("a1", "s1", at(10, 0), 60), "a1", false},
		{"self not excluded", appt("a1", "s1", at(10, 0), 60), "", true},
		{"zero duration", appt("", "s1", at(10, 30), 0), "", false},
		{"negative duration", appt("", "s1", at(10, 30), -30), "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := HasConflict(tt.candidate, existing, tt.exclude); got != tt.want {
				t.Fatalf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestFindConflictReturnsOffender(t *testing.T) {
	existing := []model.Appointment{
		appt("a1", "s1", at(9, 0), 30),
		appt("a2", "s1", at(11, 0), 30),
	}
	got, ok := FindConflict(appt("", "s1", at(11, 15), 30), existing, "")
	if !ok || got.ID != "a2" {
		t.Fatalf("expected a2, got %+v ok=%v", got, ok)
	}
}

// Randomized check that HasConflict is symmetric for overlapping pairs and
// that the index agrees with the linear scan.
func TestOverlapProperties(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 500; i++ {
		a := appt("a", "s1", at(8, rng.Intn(600)), 5+rng.Intn(120))
		b := appt("b", "s1", at(8, rng.Intn(600)), 5+rng.Intn(120))
		overlap := a.Start.Before(b.End()) && b.Start.Before(a.End())

		if HasConflict(a, []model.Appointment{b}, "") != overlap || HasConflict(b, []model.Appointment{a}, "") != overlap {
			t.Fatalf("asymmetric result for %v/%v", a, b)
		}
		back := appt("c", "s1", a.End(), 30)
		if HasConflict(back, []model.Appointment{a}, "") {
			t.Fatalf("back-to-back appointment reported as conflict")
		}
		other := b
		other.StylistID = "s2"
		other.Start = a.Start
		if HasConflict(other, []model.Appointment{a}, "") {
			t.Fatalf("different stylists conflicted")
		}
		if !HasConflict(a, []model.Appointment{a}, "") || HasConflict(a, []model.Appointment{a}, a.ID) {
			t.Fatalf("self exclusion broken")
		}
	}
}

func TestIndexMatchesLinearScan(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	var existing []model.Appointment
	for i := 0; i < 60; i++ {
		stylist := []string{"s1", "s2", "s3"}[rng.Intn(3)]
		existing = append(existing, appt(string(rune('A'+i)), stylist, at(8, rng.Intn(600)), 15+rng.Intn(240)))
	}
	idx := NewIndex(existing)
	for i := 0; i < 300; i++ {
		c := appt("", []string{"s1", "s2", "s3"}[rng.Intn(3)], at(8, rng.Intn(600)), rng.Intn(120))
		if idx.Has(c, "") != HasConflict(c, existing, "") {
			t.Fatalf("index disagrees for %+v", c)
		}
	}
}

func TestIndexBusy(t *testing.T) {
	idx := NewIndex([]model.Appointment{
		appt("a3", "s1", at(15, 0), 60),
		appt("a1", "s1", at(9, 0), 60),
		appt("a2", "s1", at(11, 0), 60),
		appt("b1", "s2", at(11, 0), 60),
	})
	busy := idx.Busy("s1", at(9, 30), at(15, 0))
	if len(busy) != 2 || busy[0].ID != "a1" || busy[1].ID != "a2" {
		t.Fatalf("unexpected busy list %+v", busy)
	}
}
