// Package ics reads and writes iCalendar documents: export of the event
// store, parsing and RRULE expansion of uploaded or subscribed calendars, and
// a caching fetcher for subscription URLs.
package ics

import (
	"io"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	"planningsprite/internal/model"
)

const (
	ProductID = "-//Planning Sprite//EN"
	UIDDomain = "planningsprite.com"
	// ExportFilename is the name offered for downloads.
	ExportFilename = "planning_sprite_schedule.ics"
	ContentType    = "text/calendar; charset=utf-8"

	timestampLayout = "20060102T150405Z"
)

// FormatTimestamp renders t in UTC as YYYYMMDDTHHMMSSZ, dropping fractional
// seconds. DTSTART, DTEND and DTSTAMP all go through it.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

// Build assembles one VCALENDAR holding a VEVENT per event, in the given
// order. generatedAt becomes every record's DTSTAMP.
func Build(events []model.CalendarEvent, generatedAt time.Time) *ical.Calendar {
	cal := ical.NewCalendar()
	cal.SetProductId(ProductID)

	stamp := FormatTimestamp(generatedAt)
	for _, ev := range events {
		vev := cal.AddEvent(ev.ID + "@" + UIDDomain)
		vev.SetProperty("DTSTAMP", stamp)
		vev.SetProperty(ical.ComponentPropertyDtStart, FormatTimestamp(ev.Start))
		vev.SetProperty(ical.ComponentPropertyDtEnd, FormatTimestamp(ev.End))
		vev.SetSummary(ev.Title)
		if strings.TrimSpace(ev.Description) != "" {
			vev.SetDescription(ev.Description)
		}
	}
	return cal
}

// Export writes the events as an iCalendar document.
func Export(w io.Writer, events []model.CalendarEvent, generatedAt time.Time) error {
	return Build(events, generatedAt).SerializeTo(w)
}
