package plan

import (
	"time"

	"planningsprite/internal/availability"
	"planningsprite/internal/model"
	"planningsprite/internal/tasks"
)

// DefaultHorizonDays is how far ahead the planner may place work.
const DefaultHorizonDays = 7

// EventRef is the reduced view of an existing event sent to the planner.
type EventRef struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
	Title string    `json:"title"`
}

// DateConstraint is the availability of one date as sent to the planner.
type DateConstraint struct {
	Date      string   `json:"date"`
	Weekday   string   `json:"weekday"`
	Allowed   []string `json:"allowed,omitempty"`
	Forbidden bool     `json:"forbidden,omitempty"`
	MaxHours  float64  `json:"max_hours"`
}

// Request is the full payload handed to the planner.
type Request struct {
	ReferenceDate string              `json:"reference_date"`
	Events        []EventRef          `json:"events"`
	Tasks         []tasks.PlannerTask `json:"tasks"`
	Constraints   []DateConstraint    `json:"constraints"`

	// Windows is the resolved form of Constraints, for local use.
	Windows []availability.DayWindow `json:"-"`
}

// BuildRequest assembles the planner payload: every existing event reduced to
// start, end and title, the pending tasks, and one constraint entry per date
// for horizonDays days from now.
func BuildRequest(events []model.CalendarEvent, pending []tasks.PlannerTask, c availability.Constraints, now time.Time, horizonDays int) Request {
	if horizonDays <= 0 {
		horizonDays = DefaultHorizonDays
	}

	refs := make([]EventRef, 0, len(events))
	for _, ev := range events {
		refs = append(refs, EventRef{Start: ev.Start, End: ev.End, Title: ev.Title})
	}
	if pending == nil {
		pending = []tasks.PlannerTask{}
	}

	windows := c.ExpandToDates(now, horizonDays)
	dcs := make([]DateConstraint, 0, len(windows))
	for _, w := range windows {
		dc := DateConstraint{
			Date:      w.DateString(),
			Weekday:   w.Weekday.String(),
			Forbidden: w.Forbidden,
			MaxHours:  w.MaxHours,
		}
		if !w.Forbidden {
			dc.Allowed = w.RangeStrings()
		}
		dcs = append(dcs, dc)
	}

	return Request{
		ReferenceDate: now.Format("2006-01-02"),
		Events:        refs,
		Tasks:         pending,
		Constraints:   dcs,
		Windows:       windows,
	}
}
