// Package store is the authoritative in-memory collection of calendar events.
//
// A Store has a single owner and is not safe for concurrent use; callers that
// share one across goroutines serialize access themselves.
package store

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"planningsprite/internal/model"
)

// Patch lists the fields Update replaces. Nil fields are left alone.
type Patch struct {
	Title       *string          `json:"title,omitempty"`
	Description *string          `json:"description,omitempty"`
	Start       *time.Time       `json:"start,omitempty"`
	End         *time.Time       `json:"end,omitempty"`
	Type        *model.EventType `json:"type,omitempty"`
}

// Store keeps events in insertion order.
type Store struct {
	events []model.CalendarEvent
	index  map[string]int
	counts RecurrenceCounts
	newID  func() string
}

// Option configures a Store.
type Option func(*Store)

// WithRecurrenceCounts overrides the instance counts used for expansion.
func WithRecurrenceCounts(c RecurrenceCounts) Option {
	return func(s *Store) {
		c.normalize()
		s.counts = c
	}
}

// WithIDGenerator replaces the id generator used for events added without one.
func WithIDGenerator(fn func() string) Option {
	return func(s *Store) { s.newID = fn }
}

// New returns an empty store.
func New(opts ...Option) *Store {
	s := &Store{
		index:  make(map[string]int),
		counts: DefaultRecurrenceCounts(),
		newID:  func() string { return uuid.New().String() },
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Add validates ev and stores it. A recurring template is expanded and only
// its instances are stored. An empty type defaults to FIXED. Ids must be
// unique: if ev or any of its instances collides with a stored event,
// nothing is stored and ErrDuplicateID is returned.
func (s *Store) Add(ev model.CalendarEvent) ([]model.CalendarEvent, error) {
	if ev.Type == "" {
		ev.Type = model.EventFixed
	}
	if err := ev.Validate(); err != nil {
		return nil, err
	}
	if ev.ID == "" {
		ev.ID = s.newID()
	}

	batch := []model.CalendarEvent{ev}
	if ev.Recurrence != model.RecurNone {
		expanded, err := Expand(ev, s.counts)
		if err != nil {
			return nil, err
		}
		batch = expanded
	}

	if err := s.checkIDs(batch); err != nil {
		return nil, err
	}
	for _, e := range batch {
		s.put(e)
	}
	return batch, nil
}

// AddAll validates every event first and stores them only if all are valid
// and no id collides. Recurrence tags are stored as-is; use Add for templates.
func (s *Store) AddAll(events []model.CalendarEvent) error {
	batch := make([]model.CalendarEvent, len(events))
	for i, ev := range events {
		if ev.Type == "" {
			ev.Type = model.EventFixed
		}
		if err := ev.Validate(); err != nil {
			return err
		}
		if ev.ID == "" {
			ev.ID = s.newID()
		}
		batch[i] = ev
	}
	if err := s.checkIDs(batch); err != nil {
		return err
	}
	for _, ev := range batch {
		s.put(ev)
	}
	return nil
}

// checkIDs rejects ids already stored or repeated within batch.
func (s *Store) checkIDs(batch []model.CalendarEvent) error {
	seen := make(map[string]bool, len(batch))
	for _, ev := range batch {
		if _, ok := s.index[ev.ID]; ok || seen[ev.ID] {
			return fmt.Errorf("%w: %q", model.ErrDuplicateID, ev.ID)
		}
		seen[ev.ID] = true
	}
	return nil
}

func (s *Store) put(ev model.CalendarEvent) {
	s.index[ev.ID] = len(s.events)
	s.events = append(s.events, ev)
}

// Get returns the event with the given id.
func (s *Store) Get(id string) (model.CalendarEvent, bool) {
	i, ok := s.index[id]
	if !ok {
		return model.CalendarEvent{}, false
	}
	return s.events[i], true
}

// Update applies p to the event with the given id. A missing id is a no-op.
// A patch that would break the event's invariants is rejected and the event
// is left unchanged.
func (s *Store) Update(id string, p Patch) (bool, error) {
	i, ok := s.index[id]
	if !ok {
		return false, nil
	}
	ev := s.events[i]
	if p.Title != nil {
		ev.Title = strings.TrimSpace(*p.Title)
	}
	if p.Description != nil {
		ev.Description = *p.Description
	}
	if p.Start != nil {
		ev.Start = *p.Start
	}
	if p.End != nil {
		ev.End = *p.End
	}
	if p.Type != nil {
		ev.Type = *p.Type
	}
	if err := ev.Validate(); err != nil {
		return true, err
	}
	s.events[i] = ev
	return true, nil
}

// Move sets new start and end. Duration preservation is the caller's job;
// the store only requires start < end. HOLIDAY events are blackouts and
// refuse to move with ErrImmovable.
func (s *Store) Move(id string, start, end time.Time) (bool, error) {
	i, ok := s.index[id]
	if !ok {
		return false, nil
	}
	if s.events[i].Type == model.EventHoliday {
		return true, model.ErrImmovable
	}
	if !start.Before(end) {
		return true, model.ErrInvalidRange
	}
	s.events[i].Start = start
	s.events[i].End = end
	return true, nil
}

// Remove deletes the event with the given id. A missing id is a no-op.
func (s *Store) Remove(id string) bool {
	i, ok := s.index[id]
	if !ok {
		return false
	}
	s.events = append(s.events[:i], s.events[i+1:]...)
	s.reindex()
	return true
}

// RemoveSource deletes every event imported from src and returns how many
// were removed.
func (s *Store) RemoveSource(src string) int {
	if src == "" {
		return 0
	}
	kept := s.events[:0]
	removed := 0
	for _, ev := range s.events {
		if ev.Source == src {
			removed++
			continue
		}
		kept = append(kept, ev)
	}
	s.events = kept
	s.reindex()
	return removed
}

func (s *Store) reindex() {
	s.index = make(map[string]int, len(s.events))
	for i, ev := range s.events {
		s.index[ev.ID] = i
	}
}

// Overlaps reports whether any stored event intersects [start, end).
// Touching boundaries are not overlaps. The check is advisory: Add and Move
// never call it.
func (s *Store) Overlaps(start, end time.Time) bool {
	for _, ev := range s.events {
		if ev.Overlaps(start, end) {
			return true
		}
	}
	return false
}

// Conflicts returns the stored events intersecting [start, end).
func (s *Store) Conflicts(start, end time.Time) []model.CalendarEvent {
	out := make([]model.CalendarEvent, 0)
	for _, ev := range s.events {
		if ev.Overlaps(start, end) {
			out = append(out, ev)
		}
	}
	return out
}

// All returns a copy of the stored events in insertion order.
func (s *Store) All() []model.CalendarEvent {
	out := make([]model.CalendarEvent, len(s.events))
	copy(out, s.events)
	return out
}

// Len returns the number of stored events.
func (s *Store) Len() int {
	return len(s.events)
}
