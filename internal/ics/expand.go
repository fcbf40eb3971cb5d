package ics

import (
	"errors"
	"time"

	"github.com/teambition/rrule-go"

	appLog "planningsprite/internal/log"
)

const defaultMaxOccurrencesPerEvent = 500

// ExpandConfig bounds recurrence expansion.
type ExpandConfig struct {
	// Location is the zone occurrences are converted to. Nil means time.Local.
	Location *time.Location

	// RangeStart / RangeEnd is the inclusive window for occurrences.
	RangeStart time.Time
	RangeEnd   time.Time

	// MaxOccurrencesPerEvent caps runaway rules. Zero means the default.
	MaxOccurrencesPerEvent int
}

// Occurrence is one concrete instance of a VEvent.
type Occurrence struct {
	SourceID    string
	UID         string
	Summary     string
	Description string
	AllDay      bool
	Recurring   bool
	Start       time.Time
	End         time.Time
}

// Expand turns parsed VEVENTs into occurrences inside the configured range,
// applying RRULE, EXDATE and RECURRENCE-ID overrides.
func Expand(events []VEvent, cfg ExpandConfig) ([]Occurrence, error) {
	if cfg.RangeEnd.Before(cfg.RangeStart) {
		return nil, errors.New("expand: RangeEnd is before RangeStart")
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.MaxOccurrencesPerEvent <= 0 {
		cfg.MaxOccurrencesPerEvent = defaultMaxOccurrencesPerEvent
	}

	// Overrides are grouped by UID; base events keep document order.
	overrides := make(map[string][]VEvent)
	bases := make([]VEvent, 0, len(events))
	for _, ev := range events {
		if ev.IsOverride {
			overrides[ev.UID] = append(overrides[ev.UID], ev)
			continue
		}
		bases = append(bases, ev)
	}

	out := make([]Occurrence, 0)
	for _, ev := range bases {
		if ev.RawRRule == "" {
			if rangesOverlap(ev.Start, ev.End, cfg.RangeStart, cfg.RangeEnd) {
				out = append(out, makeOccurrence(ev, ev.Start, ev.End, false, cfg.Location))
			}
			continue
		}
		out = append(out, expandRecurring(ev, overrides[ev.UID], cfg)...)
	}
	return out, nil
}

func expandRecurring(ev VEvent, overrides []VEvent, cfg ExpandConfig) []Occurrence {
	r, err := rrule.StrToRRule(ev.RawRRule)
	if err != nil {
		appLog.Error("expand: failed to parse RRULE", err, "uid", ev.UID, "rrule", ev.RawRRule)
		return nil
	}
	r.DTStart(ev.Start)

	var set rrule.Set
	set.RRule(r)
	for _, ex := range ev.ExDates {
		set.ExDate(ex.In(ev.Start.Location()))
	}

	starts := set.Between(cfg.RangeStart.In(ev.Start.Location()), cfg.RangeEnd.In(ev.Start.Location()), true)
	if len(starts) > cfg.MaxOccurrencesPerEvent {
		appLog.Warn("expand: occurrences truncated", "uid", ev.UID, "cap", cfg.MaxOccurrencesPerEvent)
		starts = starts[:cfg.MaxOccurrencesPerEvent]
	}

	dur := ev.End.Sub(ev.Start)
	out := make([]Occurrence, 0, len(starts))
	for _, s := range starts {
		base, start, end := ev, s, s.Add(dur)
		if o, ok := findOverride(overrides, s); ok {
			base, start, end = o, o.Start, o.End
		}
		out = append(out, makeOccurrence(base, start, end, true, cfg.Location))
	}
	return out
}

func findOverride(overrides []VEvent, start time.Time) (VEvent, bool) {
	for _, ov := range overrides {
		if ov.Recurrence != nil && ov.Recurrence.Equal(start) {
			return ov, true
		}
	}
	return VEvent{}, false
}

func makeOccurrence(ev VEvent, start, end time.Time, recurring bool, loc *time.Location) Occurrence {
	return Occurrence{
		SourceID:    ev.SourceID,
		UID:         ev.UID,
		Summary:     ev.Summary,
		Description: ev.Description,
		AllDay:      ev.AllDay,
		Recurring:   recurring,
		Start:       start.In(loc),
		End:         end.In(loc),
	}
}

func rangesOverlap(aStart, aEnd, bStart, bEnd time.Time) bool {
	return !aEnd.Before(bStart) && !bEnd.Before(aStart)
}
