// Package quickcapture turns free text into a draft appointment by way of an
// external parser. Drafts are only opened in the editor, never committed.
package quickcapture

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/md-rashed-zaman/salonbook/services/scheduling-service/internal/model"
	"github.com/md-rashed-zaman/salonbook/services/scheduling-service/internal/session"
)

var ErrParse = errors.New("quick capture failed")

// ParseError means the text could not be turned into a usable draft.
type ParseError struct {
	Reason string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", ErrParse, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s: %s", ErrParse, e.Reason)
}

func (e *ParseError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrParse}
	}
	return []error{ErrParse, e.Err}
}

// Parsed is the structured result of the external text service.
// Every field is optional; StartTime is ISO-8601.
type Parsed struct {
	ServiceName string `json:"service_name,omitempty"`
	StylistName string `json:"stylist_name,omitempty"`
	StartTime   string `json:"start_time,omitempty"`
}

func (p Parsed) empty() bool {
	return p.ServiceName == "" && p.StylistName == "" && p.StartTime == ""
}

type Parser interface {
	Parse(ctx context.Context, text string) (Parsed, error)
}

// ParserFunc adapts a function to Parser.
type ParserFunc func(ctx context.Context, text string) (Parsed, error)

func (f ParserFunc) Parse(ctx context.Context, text string) (Parsed, error) { return f(ctx, text) }

// Result is a draft plus which parsed fields were resolved.
type Result struct {
	Draft          session.Draft `json:"draft"`
	Parsed         Parsed        `json:"parsed"`
	ServiceMatched bool          `json:"service_matched"`
	StylistMatched bool          `json:"stylist_matched"`
	StartParsed    bool          `json:"start_parsed"`
}

func (r Result) usable() bool {
	return r.ServiceMatched || r.StylistMatched || r.StartParsed
}

// BuildDraft resolves parsed names against the catalog by exact match after
// lowercasing. Unmatched or absent fields stay blank.
func BuildDraft(p Parsed, services []model.Service, stylists []model.Stylist) Result {
	res := Result{Parsed: p}
	if p.ServiceName != "" {
		want := strings.ToLower(p.ServiceName)
		for _, s := range services {
			if strings.ToLower(s.Name) == want {
				res.Draft.ServiceID = s.ID
				res.ServiceMatched = true
				break
			}
		}
	}
	if p.StylistName != "" {
		want := strings.ToLower(p.StylistName)
		for _, s := range stylists {
			if strings.ToLower(s.Name) == want {
				res.Draft.StylistID = s.ID
				res.StylistMatched = true
				break
			}
		}
	}
	if p.StartTime != "" {
		if t, err := model.ParseWallClock(p.StartTime); err == nil {
			res.Draft.Start = t
			res.StartParsed = true
		}
	}
	return res
}

// Opener receives the draft, normally a session.Controller.
type Opener interface {
	OpenDraft(d session.Draft) (session.Draft, error)
}

type Adapter struct {
	parser Parser
	source session.SnapshotSource
	logger *slog.Logger
}

func NewAdapter(parser Parser, source session.SnapshotSource, logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Adapter{parser: parser, source: source, logger: logger}
}

// Capture parses text and opens the resulting draft in opener. Nothing is
// opened when parsing fails or yields nothing usable.
func (a *Adapter) Capture(ctx context.Context, opener Opener, text string) (Result, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Result{}, &ParseError{Reason: "empty text"}
	}

	parsed, err := a.parser.Parse(ctx, text)
	if err != nil {
		a.logger.Warn("quick capture parse failed", "err", err)
		return Result{}, &ParseError{Reason: "parser unavailable", Err: err}
	}
	if parsed.empty() {
		return Result{}, &ParseError{Reason: "nothing recognised"}
	}

	snap := a.source.Snapshot()
	res := BuildDraft(parsed, snap.Services, snap.Stylists)
	if !res.usable() {
		return res, &ParseError{Reason: "no field matched a known service, stylist or time"}
	}

	draft, err := opener.OpenDraft(res.Draft)
	if err != nil {
		return res, err
	}
	res.Draft = draft
	a.logger.Info("quick capture opened draft",
		"service_matched", res.ServiceMatched,
		"stylist_matched", res.StylistMatched,
		"start_parsed", res.StartParsed,
	)
	return res, nil
}
