package grid

import (
	"time"

	"planningsprite/internal/model"
)

// DaysPerWeek is the number of columns in the week view.
const DaysPerWeek = 7

func midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// WeekStart returns midnight of the Monday of ref's week.
func WeekStart(ref time.Time) time.Time {
	// time.Weekday has Sunday = 0; shift so Monday = 0.
	offset := (int(ref.Weekday()) + 6) % 7
	return midnight(ref).AddDate(0, 0, -offset)
}

// ShiftWeek moves ref by n weeks, keeping its weekday and time of day.
func ShiftWeek(ref time.Time, n int) time.Time {
	return ref.AddDate(0, 0, 7*n)
}

// WeekDays returns the seven dates displayed for ref, Monday first.
func WeekDays(ref time.Time) []time.Time {
	start := WeekStart(ref)
	days := make([]time.Time, DaysPerWeek)
	for i := range days {
		days[i] = start.AddDate(0, 0, i)
	}
	return days
}

// SameDay reports whether a and b fall on the same calendar date in a's location.
func SameDay(a, b time.Time) bool {
	b = b.In(a.Location())
	return a.Year() == b.Year() && a.Month() == b.Month() && a.Day() == b.Day()
}

// Column is one day of the week view with its laid-out events.
type Column struct {
	Date   time.Time     `json:"date"`
	Events []PlacedEvent `json:"events"`
}

// PlacedEvent is an event together with its box.
type PlacedEvent struct {
	model.CalendarEvent
	Box Box `json:"box"`
}

// BucketByDay lays out events into the week containing ref. An event belongs
// to the column of its start date only; events crossing midnight are not
// split. Events outside the week are skipped.
func BucketByDay(events []model.CalendarEvent, ref time.Time, cfg Config) []Column {
	days := WeekDays(cfg.in(ref))
	cols := make([]Column, len(days))
	for i, d := range days {
		cols[i] = Column{Date: d, Events: []PlacedEvent{}}
	}

	for _, ev := range events {
		start := cfg.in(ev.Start)
		for i, d := range days {
			if !SameDay(d, start) {
				continue
			}
			cols[i].Events = append(cols[i].Events, PlacedEvent{
				CalendarEvent: ev,
				Box:           Layout(ev, cfg),
			})
			break
		}
	}
	return cols
}
