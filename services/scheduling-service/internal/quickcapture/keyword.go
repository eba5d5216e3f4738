package quickcapture

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/md-rashed-zaman/salonbook/services/scheduling-service/internal/model"
	"github.com/md-rashed-zaman/salonbook/services/scheduling-service/internal/session"
)

var (
	dateTimeRe = regexp.MustCompile(`(\d{4}-\d{2}-\d{2})(?:[ T](\d{1,2}):(\d{2}))?`)
	clockRe    = regexp.MustCompile(`\b(\d{1,2}):(\d{2})\b`)
	tomorrowRe = regexp.MustCompile(`(?i)\b(zajtra|tomorrow)\b`)
)

// KeywordParser is the built-in parser used when no capture service is
// configured. It looks for catalog names contained in the text and for an
// ISO date, a clock time, or both.
type KeywordParser struct {
	source session.SnapshotSource
	now    func() time.Time
}

func NewKeywordParser(source session.SnapshotSource, now func() time.Time) *KeywordParser {
	if now == nil {
		now = time.Now
	}
	return &KeywordParser{source: source, now: now}
}

func (k *KeywordParser) Parse(_ context.Context, text string) (Parsed, error) {
	snap := k.source.Snapshot()
	lower := strings.ToLower(text)

	var p Parsed
	for _, s := range snap.Services {
		if strings.Contains(lower, strings.ToLower(s.Name)) && len(s.Name) > len(p.ServiceName) {
			p.ServiceName = s.Name
		}
	}
	for _, s := range snap.Stylists {
		if strings.Contains(lower, strings.ToLower(s.Name)) && len(s.Name) > len(p.StylistName) {
			p.StylistName = s.Name
		}
	}
	if start, ok := k.start(text); ok {
		p.StartTime = start.Format(model.WallClockLayout)
	}
	return p, nil
}

func (k *KeywordParser) start(text string) (time.Time, bool) {
	if m := dateTimeRe.FindStringSubmatch(text); m != nil {
		day, err := time.Parse("2006-01-02", m[1])
		if err != nil {
			return time.Time{}, false
		}
		if m[2] == "" {
			return day, true
		}
		tod, err := model.ParseTimeOfDay(m[2] + ":" + m[3])
		if err != nil {
			return time.Time{}, false
		}
		return tod.On(day), true
	}
	m := clockRe.FindStringSubmatch(text)
	if m == nil {
		return time.Time{}, false
	}
	tod, err := model.ParseTimeOfDay(m[1] + ":" + m[2])
	if err != nil {
		return time.Time{}, false
	}
	day := model.Naive(k.now())
	if tomorrowRe.MatchString(text) {
		day = day.AddDate(0, 0, 1)
	}
	return tod.On(day), true
}
