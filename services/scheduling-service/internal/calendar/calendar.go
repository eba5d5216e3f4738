// Package calendar lays appointments out on day, week, month and agenda grids.
// It never validates conflicts: overlapping appointments are laid out as given.
package calendar

import (
	"sort"
	"time"

	"github.com/md-rashed-zaman/salonbook/services/scheduling-service/internal/model"
)

// Config describes the time grid. Minutes are counted from midnight.
type Config struct {
	OpenMinute   int          `json:"open_minute"`
	CloseMinute  int          `json:"close_minute"`
	SlotMinutes  int          `json:"slot_minutes"`
	SlotHeight   float64      `json:"slot_height"`
	MonthVisible int          `json:"month_visible"`
	WeekStart    time.Weekday `json:"week_start"`
}

func DefaultConfig() Config {
	return Config{
		OpenMinute:   8 * 60,
		CloseMinute:  18 * 60,
		SlotMinutes:  60,
		SlotHeight:   64,
		MonthVisible: 3,
		WeekStart:    time.Monday,
	}
}

// Normalize replaces unusable values with defaults.
func (c Config) Normalize() Config {
	def := DefaultConfig()
	if c.SlotMinutes <= 0 {
		c.SlotMinutes = def.SlotMinutes
	}
	if c.OpenMinute < 0 || c.OpenMinute >= 24*60 {
		c.OpenMinute = def.OpenMinute
	}
	if c.CloseMinute <= c.OpenMinute || c.CloseMinute > 24*60 {
		c.CloseMinute = def.CloseMinute
		if c.CloseMinute <= c.OpenMinute {
			c.CloseMinute = 24 * 60
		}
	}
	if c.SlotHeight <= 0 {
		c.SlotHeight = def.SlotHeight
	}
	if c.MonthVisible <= 0 {
		c.MonthVisible = def.MonthVisible
	}
	if c.WeekStart < time.Sunday || c.WeekStart > time.Saturday {
		c.WeekStart = def.WeekStart
	}
	return c
}

// Slots returns the row labels of the day grid, from opening to closing time inclusive.
func (c Config) Slots() []model.TimeOfDay {
	var out []model.TimeOfDay
	for m := c.OpenMinute; m <= c.CloseMinute; m += c.SlotMinutes {
		out = append(out, model.TimeOfDayFromMinutes(m))
	}
	return out
}

// Placement positions one appointment on a time grid. Offset and Size are in
// slot units measured from opening time; Top and Height are the same in pixels.
type Placement struct {
	Appointment model.Appointment `json:"appointment"`
	Offset      float64           `json:"offset"`
	Size        float64           `json:"size"`
	Top         float64           `json:"top"`
	Height      float64           `json:"height"`
}

type DayColumn struct {
	Date       time.Time   `json:"date"`
	Placements []Placement `json:"placements"`
}

// MonthDay lists one day's appointments; only Visible is meant for display.
type MonthDay struct {
	Date     time.Time           `json:"date"`
	Visible  []model.Appointment `json:"visible"`
	Hidden   []model.Appointment `json:"hidden,omitempty"`
	Overflow int                 `json:"overflow"`
	Total    int                 `json:"total"`
}

type MonthGrid struct {
	LeadingBlanks int        `json:"leading_blanks"`
	Days          []MonthDay `json:"days"`
}

type AgendaItem struct {
	Index       int               `json:"index"`
	Appointment model.Appointment `json:"appointment"`
}

// Layout is the projection of one window. Exactly one of Columns, Month and
// Agenda is populated, according to Window.Granularity.
type Layout struct {
	Window  Window            `json:"window"`
	Slots   []model.TimeOfDay `json:"slots,omitempty"`
	Columns []DayColumn       `json:"columns,omitempty"`
	Month   *MonthGrid        `json:"month,omitempty"`
	Agenda  []AgendaItem      `json:"agenda,omitempty"`
}

type options struct {
	stylistID string
}

type Option func(*options)

// WithStylist keeps only the given stylist's appointments. Empty or "all" keeps everyone.
func WithStylist(id string) Option {
	return func(o *options) {
		if id == "all" {
			id = ""
		}
		o.stylistID = id
	}
}

// Project lays appointments out for window. Appointments with equal start
// times keep their input order.
func Project(appointments []model.Appointment, window Window, cfg Config, opts ...Option) Layout {
	cfg = cfg.Normalize()
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	selected := make([]model.Appointment, 0, len(appointments))
	for _, a := range appointments {
		if o.stylistID != "" && a.StylistID != o.stylistID {
			continue
		}
		selected = append(selected, a)
	}
	sort.SliceStable(selected, func(i, j int) bool { return selected[i].Start.Before(selected[j].Start) })

	layout := Layout{Window: window}
	switch window.Granularity {
	case Agenda:
		layout.Agenda = projectAgenda(selected, window)
	case Month:
		layout.Month = projectMonth(selected, window, cfg)
	default:
		layout.Slots = cfg.Slots()
		layout.Columns = projectColumns(selected, window, cfg)
	}
	return layout
}

// bucketDay is the window day an appointment is listed under: the day it
// starts, or the first day of the window when it started earlier.
func bucketDay(a model.Appointment, window Window) (time.Time, bool) {
	if !intersects(a, window) {
		return time.Time{}, false
	}
	start := a.Start
	if start.Before(window.Start) {
		start = window.Start
	}
	return model.Day(start), true
}

func intersects(a model.Appointment, window Window) bool {
	end := a.End()
	if !end.After(a.Start) {
		// Degenerate appointments are listed by their start instant.
		return !a.Start.Before(window.Start) && a.Start.Before(window.End)
	}
	return a.Start.Before(window.End) && window.Start.Before(end)
}

func projectColumns(appts []model.Appointment, window Window, cfg Config) []DayColumn {
	days := window.Days()
	columns := make([]DayColumn, len(days))
	index := make(map[string]int, len(days))
	for i, d := range days {
		columns[i] = DayColumn{Date: d, Placements: []Placement{}}
		index[dateKey(d)] = i
	}

	slot := float64(cfg.SlotMinutes)
	for _, a := range appts {
		day, ok := bucketDay(a, window)
		if !ok {
			continue
		}
		i, ok := index[dateKey(day)]
		if !ok {
			continue
		}
		open := day.Add(time.Duration(cfg.OpenMinute) * time.Minute)
		offset := a.Start.Sub(open).Minutes() / slot
		size := float64(a.DurationMinutes) / slot
		columns[i].Placements = append(columns[i].Placements, Placement{
			Appointment: a,
			Offset:      offset,
			Size:        size,
			Top:         offset * cfg.SlotHeight,
			Height:      size * cfg.SlotHeight,
		})
	}
	return columns
}

func projectMonth(appts []model.Appointment, window Window, cfg Config) *MonthGrid {
	days := window.Days()
	grid := &MonthGrid{Days: make([]MonthDay, len(days))}
	if len(days) > 0 {
		grid.LeadingBlanks = daysSince(days[0].Weekday(), cfg.WeekStart)
	}
	index := make(map[string]int, len(days))
	for i, d := range days {
		grid.Days[i] = MonthDay{Date: d, Visible: []model.Appointment{}}
		index[dateKey(d)] = i
	}

	for _, a := range appts {
		day, ok := bucketDay(a, window)
		if !ok {
			continue
		}
		i, ok := index[dateKey(day)]
		if !ok {
			continue
		}
		md := &grid.Days[i]
		md.Total++
		if len(md.Visible) < cfg.MonthVisible {
			md.Visible = append(md.Visible, a)
			continue
		}
		md.Hidden = append(md.Hidden, a)
		md.Overflow++
	}
	return grid
}

func projectAgenda(appts []model.Appointment, window Window) []AgendaItem {
	first := model.Day(window.Start)
	last := first.AddDate(0, 0, 1).Add(-time.Nanosecond)
	items := []AgendaItem{}
	for _, a := range appts {
		if a.Start.Before(first) || a.Start.After(last) {
			continue
		}
		items = append(items, AgendaItem{Index: len(items), Appointment: a})
	}
	return items
}
