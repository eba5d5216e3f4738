// Package conflict decides whether an appointment may be committed without
// double-booking its stylist.
package conflict

import (
	"sort"
	"time"

	"github.com/md-rashed-zaman/salonbook/services/scheduling-service/internal/model"
)

// Overlaps reports whether [aStart,aEnd) and [bStart,bEnd) intersect.
// Touching intervals do not overlap; empty or inverted intervals never do.
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	if !aStart.Before(aEnd) || !bStart.Before(bEnd) {
		return false
	}
	return aStart.Before(bEnd) && bStart.Before(aEnd)
}

// HasConflict reports whether candidate overlaps any appointment of the same
// stylist in existing, ignoring the appointment with id excludeID.
func HasConflict(candidate model.Appointment, existing []model.Appointment, excludeID string) bool {
	_, ok := FindConflict(candidate, existing, excludeID)
	return ok
}

// FindConflict is HasConflict returning the first offending appointment.
func FindConflict(candidate model.Appointment, existing []model.Appointment, excludeID string) (model.Appointment, bool) {
	start, end := candidate.Start, candidate.End()
	for _, a := range existing {
		if a.StylistID != candidate.StylistID {
			continue
		}
		if excludeID != "" && a.ID == excludeID {
			continue
		}
		if Overlaps(start, end, a.Start, a.End()) {
			return a, true
		}
	}
	return model.Appointment{}, false
}

// Index keeps each stylist's appointments sorted by start so that lookups
// scan only the appointments that can still overlap.
type Index struct {
	byStylist map[string][]model.Appointment
	// longest duration per stylist bounds how far back an overlap can start.
	longest map[string]time.Duration
}

func NewIndex(appointments []model.Appointment) *Index {
	idx := &Index{
		byStylist: make(map[string][]model.Appointment),
		longest:   make(map[string]time.Duration),
	}
	for _, a := range appointments {
		idx.byStylist[a.StylistID] = append(idx.byStylist[a.StylistID], a)
		if d := a.End().Sub(a.Start); d > idx.longest[a.StylistID] {
			idx.longest[a.StylistID] = d
		}
	}
	for _, list := range idx.byStylist {
		sort.SliceStable(list, func(i, j int) bool { return list[i].Start.Before(list[j].Start) })
	}
	return idx
}

// Find has the same semantics as FindConflict.
func (idx *Index) Find(candidate model.Appointment, excludeID string) (model.Appointment, bool) {
	list := idx.byStylist[candidate.StylistID]
	start, end := candidate.Start, candidate.End()
	if !start.Before(end) {
		return model.Appointment{}, false
	}
	from := start.Add(-idx.longest[candidate.StylistID])
	i := sort.Search(len(list), func(i int) bool { return list[i].Start.After(from) || list[i].Start.Equal(from) })
	for ; i < len(list) && list[i].Start.Before(end); i++ {
		a := list[i]
		if excludeID != "" && a.ID == excludeID {
			continue
		}
		if Overlaps(start, end, a.Start, a.End()) {
			return a, true
		}
	}
	return model.Appointment{}, false
}

func (idx *Index) Has(candidate model.Appointment, excludeID string) bool {
	_, ok := idx.Find(candidate, excludeID)
	return ok
}

// Busy returns the stylist's appointments intersecting [from, to) in start order.
func (idx *Index) Busy(stylistID string, from, to time.Time) []model.Appointment {
	var out []model.Appointment
	for _, a := range idx.byStylist[stylistID] {
		if !a.Start.Before(to) {
			break
		}
		if Overlaps(from, to, a.Start, a.End()) {
			out = append(out, a)
		}
	}
	return out
}
