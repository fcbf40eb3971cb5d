package plan

import (
	"fmt"
	"time"

	"planningsprite/internal/availability"
	appLog "planningsprite/internal/log"
	"planningsprite/internal/model"
	"planningsprite/internal/store"
	"planningsprite/internal/tasks"
)

// Bounds is the window a plan must fit into: the availability template
// resolved for Days dates starting at From.
type Bounds struct {
	Constraints availability.Constraints
	From        time.Time
	Days        int
}

func (b Bounds) windows() map[string]availability.DayWindow {
	days := b.Days
	if days <= 0 {
		days = DefaultHorizonDays
	}
	out := make(map[string]availability.DayWindow, days)
	for _, w := range b.Constraints.ExpandToDates(b.From, days) {
		out[w.DateString()] = w
	}
	return out
}

// Violation explains why a proposed event was not accepted.
type Violation struct {
	Event  model.CalendarEvent `json:"event"`
	Reason string              `json:"reason"`
}

// Check re-validates a plan against local state instead of trusting the
// planner. Events are examined in order; each must have a valid range, sit
// inside an allowed window of a date within the bounds, overlap neither a
// stored event nor an earlier accepted event of the same plan, and keep the
// date's PLANNED minutes within its cap.
func Check(p model.GeneratedPlan, existing []model.CalendarEvent, b Bounds) ([]model.CalendarEvent, []Violation) {
	windows := b.windows()
	loc := b.From.Location()

	planned := make(map[string]time.Duration)
	for _, ev := range existing {
		if ev.Type == model.EventPlanned {
			planned[ev.Start.In(loc).Format("2006-01-02")] += ev.Duration()
		}
	}

	accepted := make([]model.CalendarEvent, 0, len(p.Events))
	rejected := make([]Violation, 0)
	reject := func(ev model.CalendarEvent, format string, args ...any) {
		rejected = append(rejected, Violation{Event: ev, Reason: fmt.Sprintf(format, args...)})
	}

	for _, ev := range p.Events {
		if err := ev.Validate(); err != nil {
			reject(ev, "%v", err)
			continue
		}
		date := ev.Start.In(loc).Format("2006-01-02")
		w, ok := windows[date]
		if !ok {
			reject(ev, "%s is outside the planning horizon", date)
			continue
		}
		if !w.Allows(ev.Start, ev.End) {
			reject(ev, "outside the allowed hours of %s", w)
			continue
		}
		if clash := firstOverlap(existing, ev); clash != nil {
			reject(ev, "overlaps existing event %q", clash.Title)
			continue
		}
		if clash := firstOverlap(accepted, ev); clash != nil {
			reject(ev, "overlaps proposed event %q", clash.Title)
			continue
		}
		limit := time.Duration(w.MaxHours * float64(time.Hour))
		if planned[date]+ev.Duration() > limit {
			reject(ev, "exceeds the %.1fh cap for %s", w.MaxHours, date)
			continue
		}
		planned[date] += ev.Duration()
		accepted = append(accepted, ev)
	}
	return accepted, rejected
}

func firstOverlap(events []model.CalendarEvent, ev model.CalendarEvent) *model.CalendarEvent {
	for i := range events {
		if events[i].Overlaps(ev.Start, ev.End) {
			return &events[i]
		}
	}
	return nil
}

// Result reports what Apply merged.
type Result struct {
	Added          []model.CalendarEvent `json:"added"`
	Rejected       []Violation           `json:"rejected"`
	TasksScheduled int                   `json:"tasks_scheduled"`
}

// Apply merges the accepted events of p into st and moves the tasks those
// events reference from pending to scheduled. Events failing Check are
// dropped and reported. Tasks that only appear on dropped events stay
// pending. Nothing is written if the accepted batch cannot be stored.
func Apply(p model.GeneratedPlan, st *store.Store, q *tasks.Queue, b Bounds) (Result, error) {
	accepted, rejected := Check(p, st.All(), b)
	for _, v := range rejected {
		appLog.Info("plan event rejected", "plan", p.StrategyName, "title", v.Event.Title, "reason", v.Reason)
	}

	if err := st.AddAll(accepted); err != nil {
		return Result{}, fmt.Errorf("apply plan %q: %w", p.StrategyName, err)
	}

	scheduled := model.GeneratedPlan{Events: accepted}
	n := q.MarkScheduled(scheduled.TaskIDs())

	appLog.Info("plan applied",
		"plan", p.StrategyName,
		"added", len(accepted),
		"rejected", len(rejected),
		"tasks_scheduled", n,
	)
	return Result{Added: accepted, Rejected: rejected, TasksScheduled: n}, nil
}
