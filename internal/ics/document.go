package ics

import (
	"context"
	"fmt"
	"mime"
	"strings"
	"time"

	"planningsprite/internal/plan"
)

// MediaType is the media type routed to the local parser.
const MediaType = "text/calendar"

// IsCalendar reports whether mediaType names an iCalendar document.
func IsCalendar(mediaType string) bool {
	mt, _, err := mime.ParseMediaType(mediaType)
	if err != nil {
		mt = strings.ToLower(strings.TrimSpace(mediaType))
	}
	return mt == MediaType
}

// DocumentParser parses .ics uploads locally and satisfies plan.Parser.
// Recurring entries are expanded inside a window around the current time.
type DocumentParser struct {
	Now        func() time.Time
	Location   *time.Location
	PastDays   int
	FutureDays int
}

// NewDocumentParser returns a parser expanding recurrences from one week
// back to horizonDays ahead.
func NewDocumentParser(now func() time.Time, loc *time.Location, horizonDays int) *DocumentParser {
	if now == nil {
		now = time.Now
	}
	if horizonDays <= 0 {
		horizonDays = 30
	}
	return &DocumentParser{Now: now, Location: loc, PastDays: 7, FutureDays: horizonDays}
}

// ParseDocument implements plan.Parser for text/calendar payloads.
func (p *DocumentParser) ParseDocument(_ context.Context, data []byte, mediaType string) (plan.ParsedDocument, error) {
	if !IsCalendar(mediaType) {
		return plan.ParsedDocument{}, fmt.Errorf("ics: unsupported media type %q", mediaType)
	}
	occs, err := p.Occurrences("upload", data)
	if err != nil {
		return plan.ParsedDocument{}, err
	}
	return ToDocument(occs), nil
}

// Occurrences parses and expands body within the parser's window.
func (p *DocumentParser) Occurrences(sourceID string, body []byte) ([]Occurrence, error) {
	vevents, err := Parse(sourceID, body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", plan.ErrMalformedResponse, err)
	}
	now := p.Now()
	return Expand(vevents, ExpandConfig{
		Location:   p.Location,
		RangeStart: now.AddDate(0, 0, -p.PastDays),
		RangeEnd:   now.AddDate(0, 0, p.FutureDays),
	})
}

// ToDocument converts occurrences into parser output.
func ToDocument(occs []Occurrence) plan.ParsedDocument {
	doc := plan.ParsedDocument{Events: make([]plan.ParsedEvent, 0, len(occs))}
	for _, o := range occs {
		title := o.Summary
		if strings.TrimSpace(title) == "" {
			title = "(untitled)"
		}
		doc.Events = append(doc.Events, plan.ParsedEvent{
			Title:       title,
			Description: o.Description,
			Start:       o.Start,
			End:         o.End,
			IsRecurring: o.Recurring,
		})
	}
	doc.Summary = fmt.Sprintf("Imported %d events from calendar file.", len(doc.Events))
	return doc
}
