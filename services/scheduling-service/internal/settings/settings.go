// Package settings loads the salon's business-hours and calendar-grid file.
package settings

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/md-rashed-zaman/salonbook/services/scheduling-service/internal/availability"
	"github.com/md-rashed-zaman/salonbook/services/scheduling-service/internal/calendar"
	"github.com/md-rashed-zaman/salonbook/services/scheduling-service/internal/model"
	"gopkg.in/yaml.v3"
)

// Settings is the YAML document at SETTINGS_PATH.
type Settings struct {
	// Timezone is the IANA zone whose wall clock defines "now" and "today".
	Timezone string `yaml:"timezone" json:"timezone"`
	// Opens and Closes are HH:MM; the day grid has one row per slot between them, inclusive.
	Opens  string `yaml:"opens" json:"opens"`
	Closes string `yaml:"closes" json:"closes"`

	SlotMinutes int     `yaml:"slot_minutes" json:"slot_minutes"`
	SlotHeight  float64 `yaml:"slot_height" json:"slot_height"`

	// MonthVisible caps the appointments listed per day in month view.
	MonthVisible int `yaml:"month_visible" json:"month_visible"`

	// WeekStart is "monday" (default) or "sunday".
	WeekStart string `yaml:"week_start" json:"week_start"`

	// SuggestStepMinutes is the spacing of free-slot suggestions.
	SuggestStepMinutes int `yaml:"suggest_step_minutes" json:"suggest_step_minutes"`
}

func Default() *Settings {
	return &Settings{
		Timezone:           "Europe/Bratislava",
		Opens:              "08:00",
		Closes:             "18:00",
		SlotMinutes:        60,
		SlotHeight:         64,
		MonthVisible:       3,
		WeekStart:          "monday",
		SuggestStepMinutes: 15,
	}
}

// Normalize fills in missing or invalid values with defaults.
func (s *Settings) Normalize() {
	def := Default()
	if _, err := time.LoadLocation(s.Timezone); s.Timezone == "" || err != nil {
		s.Timezone = def.Timezone
	}
	opens, errOpen := model.ParseTimeOfDay(s.Opens)
	closes, errClose := model.ParseTimeOfDay(s.Closes)
	if errOpen != nil || errClose != nil || closes.Minutes() <= opens.Minutes() {
		s.Opens, s.Closes = def.Opens, def.Closes
	}
	if s.SlotMinutes <= 0 {
		s.SlotMinutes = def.SlotMinutes
	}
	if s.SlotHeight <= 0 {
		s.SlotHeight = def.SlotHeight
	}
	if s.MonthVisible <= 0 {
		s.MonthVisible = def.MonthVisible
	}
	switch strings.ToLower(s.WeekStart) {
	case "monday", "sunday":
		s.WeekStart = strings.ToLower(s.WeekStart)
	default:
		s.WeekStart = def.WeekStart
	}
	if s.SuggestStepMinutes <= 0 {
		s.SuggestStepMinutes = def.SuggestStepMinutes
	}
}

// Location returns the configured zone, or UTC if it cannot be loaded.
func (s *Settings) Location() *time.Location {
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Calendar converts the settings into the projector's grid configuration.
func (s *Settings) Calendar() calendar.Config {
	opens, _ := model.ParseTimeOfDay(s.Opens)
	closes, _ := model.ParseTimeOfDay(s.Closes)
	weekStart := time.Monday
	if s.WeekStart == "sunday" {
		weekStart = time.Sunday
	}
	return calendar.Config{
		OpenMinute:   opens.Minutes(),
		CloseMinute:  closes.Minutes(),
		SlotMinutes:  s.SlotMinutes,
		SlotHeight:   s.SlotHeight,
		MonthVisible: s.MonthVisible,
		WeekStart:    weekStart,
	}.Normalize()
}

func (s *Settings) Hours() availability.Hours {
	cfg := s.Calendar()
	return availability.Hours{OpenMinute: cfg.OpenMinute, CloseMinute: cfg.CloseMinute}
}

func (s *Settings) SuggestStep() time.Duration {
	return time.Duration(s.SuggestStepMinutes) * time.Minute
}

// Load reads path. A missing file is created with defaults on first run.
func Load(path string) (*Settings, error) {
	if path == "" {
		return nil, errors.New("settings path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			s := Default()
			if err := Save(path, s); err != nil {
				return s, err
			}
			return s, nil
		}
		return nil, err
	}

	var s Settings
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	s.Normalize()
	return &s, nil
}

// Save writes s atomically with 0600 permissions.
func Save(path string, s *Settings) error {
	if path == "" {
		return errors.New("settings path is empty")
	}
	if s == nil {
		return errors.New("settings is nil")
	}
	s.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}
	data, err := yaml.Marshal(s)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".salonbook-settings-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
