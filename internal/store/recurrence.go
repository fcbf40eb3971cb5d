package store

import (
	"fmt"
	"time"

	"github.com/teambition/rrule-go"

	"planningsprite/internal/model"
)

// Instance counts per pattern. Daily matches the week view; weekly and
// monthly cover roughly the same planning horizon in their own unit.
const (
	DefaultDailyCount   = 7
	DefaultWeeklyCount  = 4
	DefaultMonthlyCount = 3
)

// RecurrenceCounts controls how many instances each pattern expands into.
type RecurrenceCounts struct {
	Daily   int `yaml:"daily" json:"daily"`
	Weekly  int `yaml:"weekly" json:"weekly"`
	Monthly int `yaml:"monthly" json:"monthly"`
}

// DefaultRecurrenceCounts returns 7 daily, 4 weekly and 3 monthly instances.
func DefaultRecurrenceCounts() RecurrenceCounts {
	return RecurrenceCounts{
		Daily:   DefaultDailyCount,
		Weekly:  DefaultWeeklyCount,
		Monthly: DefaultMonthlyCount,
	}
}

func (c *RecurrenceCounts) normalize() {
	if c.Daily <= 0 {
		c.Daily = DefaultDailyCount
	}
	if c.Weekly <= 0 {
		c.Weekly = DefaultWeeklyCount
	}
	if c.Monthly <= 0 {
		c.Monthly = DefaultMonthlyCount
	}
}

func (c RecurrenceCounts) rule(r model.Recurrence) (rrule.Frequency, int, error) {
	switch r {
	case model.RecurDaily:
		return rrule.DAILY, c.Daily, nil
	case model.RecurWeekly:
		return rrule.WEEKLY, c.Weekly, nil
	case model.RecurMonthly:
		return rrule.MONTHLY, c.Monthly, nil
	}
	return 0, 0, fmt.Errorf("%w: %q", model.ErrUnsupportedRecurrence, r)
}

// Expand turns a recurring template into concrete instances. Each instance
// keeps the template's fields and wall-clock time of day, shifts start and
// end together, and gets the id "<template id>-<n>". The rule works in whole
// seconds, so any sub-second part of the template start is carried over to
// every instance.
func Expand(tmpl model.CalendarEvent, counts RecurrenceCounts) ([]model.CalendarEvent, error) {
	counts.normalize()
	freq, count, err := counts.rule(tmpl.Recurrence)
	if err != nil {
		return nil, err
	}

	frac := tmpl.Start.Sub(tmpl.Start.Truncate(time.Second))
	r, err := rrule.NewRRule(rrule.ROption{
		Freq:    freq,
		Count:   count,
		Dtstart: tmpl.Start.Add(-frac),
	})
	if err != nil {
		return nil, fmt.Errorf("build recurrence rule: %w", err)
	}

	dur := tmpl.Duration()
	starts := r.All()
	out := make([]model.CalendarEvent, 0, len(starts))
	for i, s := range starts {
		ev := tmpl
		ev.ID = fmt.Sprintf("%s-%d", tmpl.ID, i)
		s = s.Add(frac)
		ev.Start = s
		ev.End = s.Add(dur)
		out = append(out, ev)
	}
	return out, nil
}
