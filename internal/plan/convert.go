package plan

import (
	"fmt"
	"strings"

	"planningsprite/internal/model"
)

const (
	// DefaultPlannedDescription is used when the planner gives no reasoning.
	DefaultPlannedDescription = "AI scheduled"
	// RecurringImportNote marks imported events the parser saw as recurring.
	RecurringImportNote = "Detected from import"
)

// strategyPrefix is the "[xx] " label put in front of planned titles so the
// chosen strategy stays visible on the calendar.
func strategyPrefix(name string) string {
	r := []rune(strings.TrimSpace(name))
	if len(r) > 2 {
		r = r[:2]
	}
	return "[" + string(r) + "] "
}

// ToGeneratedPlans checks the planner answer and turns each candidate into a
// plan of PLANNED events with fresh ids. The answer must hold exactly
// PlanCount candidates with distinct, non-empty strategy names.
func ToGeneratedPlans(cands []Candidate, newID func() string) ([]model.GeneratedPlan, error) {
	newID = idFunc(newID)
	if len(cands) != PlanCount {
		return nil, fmt.Errorf("%w: got %d plans, want %d", ErrMalformedResponse, len(cands), PlanCount)
	}

	seen := make(map[string]bool, len(cands))
	plans := make([]model.GeneratedPlan, 0, len(cands))
	for i, c := range cands {
		name := strings.TrimSpace(c.StrategyName)
		if name == "" {
			return nil, fmt.Errorf("%w: plan %d has no strategy name", ErrMalformedResponse, i)
		}
		key := strings.ToLower(name)
		if seen[key] {
			return nil, fmt.Errorf("%w: duplicate strategy %q", ErrMalformedResponse, name)
		}
		seen[key] = true

		tags := c.Tags
		if tags == nil {
			tags = []string{}
		}
		p := model.GeneratedPlan{
			ID:           newID(),
			StrategyName: name,
			Description:  c.Description,
			Tags:         tags,
			Events:       make([]model.CalendarEvent, 0, len(c.ScheduledEvents)),
		}

		prefix := strategyPrefix(name)
		for _, se := range c.ScheduledEvents {
			desc := se.Reasoning
			if desc == "" {
				desc = DefaultPlannedDescription
			}
			p.Events = append(p.Events, model.CalendarEvent{
				ID:          newID(),
				Title:       prefix + se.Title,
				Description: desc,
				Start:       se.Start,
				End:         se.End,
				Type:        model.EventPlanned,
				TaskID:      se.TaskID,
			})
		}
		plans = append(plans, p)
	}
	return plans, nil
}

// ImportEvents converts parser output into FIXED events with fresh ids.
// Recurring entries get RecurringImportNote instead of a recurrence pattern.
// Any invalid entry fails the whole import.
func ImportEvents(doc ParsedDocument, source string, newID func() string) ([]model.CalendarEvent, error) {
	newID = idFunc(newID)
	out := make([]model.CalendarEvent, 0, len(doc.Events))
	for i, pe := range doc.Events {
		ev := model.CalendarEvent{
			ID:          newID(),
			Title:       strings.TrimSpace(pe.Title),
			Description: pe.Description,
			Start:       pe.Start,
			End:         pe.End,
			Type:        model.EventFixed,
			Source:      source,
		}
		if pe.IsRecurring {
			ev.RecurrenceNote = RecurringImportNote
		}
		if err := ev.Validate(); err != nil {
			return nil, fmt.Errorf("%w: event %d: %v", ErrMalformedResponse, i, err)
		}
		out = append(out, ev)
	}
	return out, nil
}
