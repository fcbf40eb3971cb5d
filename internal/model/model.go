package model

import (
	"errors"
	"strings"
	"time"
)

// Validation errors shared by the store, the task queue and plan application.
var (
	ErrEmptyTitle            = errors.New("title is required")
	ErrInvalidRange          = errors.New("invalid range: start must be before end")
	ErrUnsupportedRecurrence = errors.New("unsupported recurrence pattern")
	ErrInvalidMinutes        = errors.New("estimated minutes must be positive")
	ErrInvalidType           = errors.New("unknown event type")
	ErrDuplicateID           = errors.New("event id already exists")
	ErrImmovable             = errors.New("holiday events cannot be moved")
)

// EventType classifies where an event came from.
type EventType string

const (
	// EventFixed is user- or import-authored and is the source of truth.
	EventFixed EventType = "FIXED"
	// EventPlanned was produced by the external planner.
	EventPlanned EventType = "PLANNED"
	// EventHoliday is a non-movable blackout entry.
	EventHoliday EventType = "HOLIDAY"
)

// Valid reports whether t is one of the known event types.
func (t EventType) Valid() bool {
	return t == EventFixed || t == EventPlanned || t == EventHoliday
}

// Recurrence is the pattern tag of a template event.
type Recurrence string

const (
	RecurNone    Recurrence = ""
	RecurDaily   Recurrence = "daily"
	RecurWeekly  Recurrence = "weekly"
	RecurMonthly Recurrence = "monthly"
)

// Valid reports whether r is a pattern the store knows how to expand.
func (r Recurrence) Valid() bool {
	switch r {
	case RecurNone, RecurDaily, RecurWeekly, RecurMonthly:
		return true
	}
	return false
}

// CalendarEvent is a single concrete entry in the calendar.
//
// An event added with a non-empty Recurrence is a template: the store expands
// it into concrete instances and never keeps the template itself. Instances
// keep the tag to record which series they belong to.
type CalendarEvent struct {
	ID          string     `json:"id" yaml:"id"`
	Title       string     `json:"title" yaml:"title"`
	Description string     `json:"description,omitempty" yaml:"description,omitempty"`
	Start       time.Time  `json:"start" yaml:"start"`
	End         time.Time  `json:"end" yaml:"end"`
	Type        EventType  `json:"type" yaml:"type"`
	Recurrence  Recurrence `json:"recurrence,omitempty" yaml:"recurrence,omitempty"`
	AllDay      bool       `json:"all_day,omitempty" yaml:"all_day,omitempty"`

	// TaskID links a PLANNED event back to the task it schedules.
	TaskID string `json:"task_id,omitempty" yaml:"task_id,omitempty"`
	// Source is the subscription or import that produced the event.
	Source string `json:"source,omitempty" yaml:"source,omitempty"`
	// RecurrenceNote marks imported events the parser flagged as recurring.
	// It is descriptive only and never expanded.
	RecurrenceNote string `json:"recurrence_note,omitempty" yaml:"recurrence_note,omitempty"`
}

// Duration returns End - Start.
func (e CalendarEvent) Duration() time.Duration {
	return e.End.Sub(e.Start)
}

// Validate checks the invariants every stored event must satisfy.
func (e CalendarEvent) Validate() error {
	if strings.TrimSpace(e.Title) == "" {
		return ErrEmptyTitle
	}
	if !e.Start.Before(e.End) {
		return ErrInvalidRange
	}
	if !e.Recurrence.Valid() {
		return ErrUnsupportedRecurrence
	}
	if !e.Type.Valid() {
		return ErrInvalidType
	}
	return nil
}

// Overlaps reports whether [start, end) intersects the event. Touching
// boundaries do not count.
func (e CalendarEvent) Overlaps(start, end time.Time) bool {
	return start.Before(e.End) && end.After(e.Start)
}

// Priority of a task.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// Valid reports whether p is a known priority.
func (p Priority) Valid() bool {
	return p == PriorityHigh || p == PriorityMedium || p == PriorityLow
}

// TaskStatus is the lifecycle state of a task.
type TaskStatus string

const (
	TaskPending   TaskStatus = "pending"
	TaskScheduled TaskStatus = "scheduled"
	TaskCompleted TaskStatus = "completed"
)

// Task is a backlog entry waiting to be placed on the calendar.
type Task struct {
	ID               string     `json:"id"`
	Title            string     `json:"title"`
	EstimatedMinutes int        `json:"estimated_minutes"`
	Deadline         *time.Time `json:"deadline,omitempty"`
	Priority         Priority   `json:"priority"`
	Status           TaskStatus `json:"status"`
}

// GeneratedPlan is one candidate schedule returned by the planner. It only
// lives until the user picks or discards it.
type GeneratedPlan struct {
	ID           string          `json:"id"`
	StrategyName string          `json:"strategy_name"`
	Description  string          `json:"description"`
	Tags         []string        `json:"tags"`
	Events       []CalendarEvent `json:"events"`
}

// TaskIDs returns the distinct task ids referenced by the plan's events, in
// first-seen order.
func (p GeneratedPlan) TaskIDs() []string {
	seen := make(map[string]bool)
	out := make([]string, 0)
	for _, ev := range p.Events {
		if ev.TaskID == "" || seen[ev.TaskID] {
			continue
		}
		seen[ev.TaskID] = true
		out = append(out, ev.TaskID)
	}
	return out
}
