package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"planningsprite/internal/availability"
	"planningsprite/internal/grid"
	"planningsprite/internal/ics"
	appLog "planningsprite/internal/log"
	"planningsprite/internal/model"
	"planningsprite/internal/plan"
	"planningsprite/internal/store"
	"planningsprite/internal/tasks"
)

var (
	// ErrBusy is returned when a scheduling or import request is already in
	// flight.
	ErrBusy = errors.New("request already in progress")
	// ErrPlanNotFound is returned when applying a plan that is not on offer.
	ErrPlanNotFound = errors.New("plan not found")
	// ErrNotConfigured is returned when no planner or parser is wired.
	ErrNotConfigured = errors.New("capability not configured")
)

// Source tag for events added by document import.
const ImportSource = "import"

// Change kinds passed to the Notifier.
const (
	ChangeEvents      = "events.changed"
	ChangeTasks       = "tasks.changed"
	ChangeConstraints = "constraints.changed"
	ChangeState       = "state.changed"
)

// Clock returns the current time.
type Clock func() time.Time

// Notifier is told about every successful mutation.
type Notifier interface {
	Notify(kind string, payload any)
}

// Session serializes access to one user's calendar data. Planner and parser
// calls run without the lock; their results are merged only on success.
type Session struct {
	mu sync.Mutex

	state       State
	events      *store.Store
	queue       *tasks.Queue
	constraints availability.Constraints

	planner     plan.Planner
	parser      plan.Parser
	notifier    Notifier
	clock       Clock
	grid        grid.Config
	horizonDays int
	newID       func() string
}

// Option configures a Session.
type Option func(*Session)

func WithPlanner(p plan.Planner) Option { return func(s *Session) { s.planner = p } }

func WithParser(p plan.Parser) Option { return func(s *Session) { s.parser = p } }

func WithNotifier(n Notifier) Option { return func(s *Session) { s.notifier = n } }

func WithClock(c Clock) Option { return func(s *Session) { s.clock = c } }

// WithGrid sets the week geometry and display zone.
func WithGrid(cfg grid.Config) Option { return func(s *Session) { s.grid = cfg } }

func WithHorizonDays(n int) Option {
	return func(s *Session) {
		if n > 0 {
			s.horizonDays = n
		}
	}
}

func WithIDGenerator(f func() string) Option { return func(s *Session) { s.newID = f } }

// NewSession wires a session around existing data.
func NewSession(st *store.Store, q *tasks.Queue, c availability.Constraints, opts ...Option) *Session {
	s := &Session{
		events:      st,
		queue:       q,
		constraints: c,
		clock:       time.Now,
		grid:        grid.DefaultConfig(),
		horizonDays: plan.DefaultHorizonDays,
		newID:       func() string { return uuid.New().String() },
	}
	for _, o := range opts {
		o(s)
	}
	s.grid.Normalize()
	s.state.CurrentDate = s.now()
	return s
}

func (s *Session) now() time.Time {
	t := s.clock()
	if s.grid.Location != nil {
		t = t.In(s.grid.Location)
	}
	return t
}

// Location is the display zone used for day boundaries.
func (s *Session) Location() *time.Location {
	if s.grid.Location != nil {
		return s.grid.Location
	}
	return time.Local
}

func (s *Session) notify(kind string, payload any) {
	if s.notifier != nil {
		s.notifier.Notify(kind, payload)
	}
}

// mutate runs fn under the lock and notifies kind if fn succeeded.
func (s *Session) mutate(kind string, fn func() error) error {
	s.mu.Lock()
	err := fn()
	s.mu.Unlock()
	if err == nil {
		s.notify(kind, nil)
	}
	return err
}

// State returns a snapshot of the UI state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot()
}

func (s *Session) snapshot() State {
	st := s.state
	st.Plans = append([]model.GeneratedPlan(nil), st.Plans...)
	return st
}

// Dispatch applies a navigation or modal action and returns the new state.
// Busy flags and plans are driven by the session itself; dispatching those
// actions from outside is ignored.
func (s *Session) Dispatch(a Action) State {
	switch a.(type) {
	case NavigateWeek, GoToDate, OpenModal, CloseModal:
	default:
		return s.State()
	}
	s.mu.Lock()
	s.state = Reduce(s.state, a)
	st := s.snapshot()
	s.mu.Unlock()
	s.notify(ChangeState, st)
	return st
}

// Today moves the view back to the current date.
func (s *Session) Today() State {
	return s.Dispatch(GoToDate{Date: s.now()})
}

// --- events ---

// Events returns every stored event in insertion order.
func (s *Session) Events() []model.CalendarEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.events.All()
}

// Week lays out the week containing ref, or the current view date if ref is
// zero.
func (s *Session) Week(ref time.Time) []grid.Column {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ref.IsZero() {
		ref = s.state.CurrentDate
	}
	return grid.BucketByDay(s.events.All(), ref, s.grid)
}

// AddEvent stores ev, expanding a recurrence pattern into instances.
func (s *Session) AddEvent(ev model.CalendarEvent) ([]model.CalendarEvent, error) {
	var added []model.CalendarEvent
	err := s.mutate(ChangeEvents, func() error {
		var err error
		added, err = s.events.Add(ev)
		return err
	})
	return added, err
}

// UpdateEvent patches one event. ok is false if the id is unknown.
func (s *Session) UpdateEvent(id string, p store.Patch) (ok bool, err error) {
	err = s.mutate(ChangeEvents, func() error {
		ok, err = s.events.Update(id, p)
		return err
	})
	return ok, err
}

// RemoveEvent deletes one event.
func (s *Session) RemoveEvent(id string) bool {
	var ok bool
	_ = s.mutate(ChangeEvents, func() error {
		ok = s.events.Remove(id)
		return nil
	})
	return ok
}

// DropEvent moves an event to the snapped time under pixelOffset on day,
// keeping its duration.
func (s *Session) DropEvent(id string, day time.Time, pixelOffset float64) (model.CalendarEvent, bool, error) {
	var (
		moved model.CalendarEvent
		ok    bool
	)
	err := s.mutate(ChangeEvents, func() error {
		ev, found := s.events.Get(id)
		if !found {
			return nil
		}
		start, end := grid.Reschedule(ev, day, pixelOffset, s.grid)
		var err error
		if ok, err = s.events.Move(id, start, end); err != nil {
			return err
		}
		moved, _ = s.events.Get(id)
		return nil
	})
	return moved, ok, err
}

// ReplaceSource swaps every event tagged src for events. Used by
// subscription refresh.
func (s *Session) ReplaceSource(src string, events []model.CalendarEvent) (removed int, err error) {
	err = s.mutate(ChangeEvents, func() error {
		for i := range events {
			events[i].Source = src
			if err := events[i].Validate(); err != nil {
				return fmt.Errorf("replace %s: %w", src, err)
			}
		}
		removed = s.events.RemoveSource(src)
		return s.events.AddAll(events)
	})
	return removed, err
}

// --- tasks ---

func (s *Session) Tasks() []model.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queue.All()
}

func (s *Session) AddTask(title string, minutes int, opts ...tasks.Option) (model.Task, error) {
	var t model.Task
	err := s.mutate(ChangeTasks, func() error {
		var err error
		t, err = s.queue.Add(title, minutes, opts...)
		return err
	})
	return t, err
}

func (s *Session) RemoveTask(id string) bool {
	var ok bool
	_ = s.mutate(ChangeTasks, func() error {
		ok = s.queue.Remove(id)
		return nil
	})
	return ok
}

func (s *Session) CompleteTask(id string) bool {
	var ok bool
	_ = s.mutate(ChangeTasks, func() error {
		ok = s.queue.Complete(id)
		return nil
	})
	return ok
}

// --- constraints ---

func (s *Session) Constraints() availability.Constraints {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.constraints
}

// ToggleSlot flips one cell and returns its new value.
func (s *Session) ToggleSlot(day, hour int) (v bool, err error) {
	err = s.mutate(ChangeConstraints, func() error {
		v, err = s.constraints.Toggle(day, hour)
		return err
	})
	return v, err
}

// Cell addresses one hour of the weekly grid.
type Cell struct {
	Day  int `json:"day"`
	Hour int `json:"hour"`
}

// PaintStroke applies one drag gesture: the first cell is toggled and every
// following cell is set to that value. Cells are validated before anything
// changes.
func (s *Session) PaintStroke(cells []Cell) (v bool, err error) {
	if len(cells) == 0 {
		return false, errors.New("stroke has no cells")
	}
	err = s.mutate(ChangeConstraints, func() error {
		scratch := s.constraints
		stroke, err := scratch.BeginStroke(cells[0].Day, cells[0].Hour)
		if err != nil {
			return err
		}
		for _, c := range cells[1:] {
			if err := stroke.Paint(c.Day, c.Hour); err != nil {
				return err
			}
		}
		s.constraints = scratch
		v = stroke.Value()
		return nil
	})
	return v, err
}

func (s *Session) SetDailyCap(day int, hours float64) error {
	return s.mutate(ChangeConstraints, func() error {
		return s.constraints.SetDailyCap(day, hours)
	})
}

// Windows resolves the template for days dates from today.
func (s *Session) Windows(days int) []availability.DayWindow {
	s.mu.Lock()
	defer s.mu.Unlock()
	if days <= 0 {
		days = s.horizonDays
	}
	return s.constraints.ExpandToDates(s.now(), days)
}

// --- planning ---

// RequestPlans asks the planner for candidate schedules and offers them in
// State.Plans. Only one request may be in flight.
func (s *Session) RequestPlans(ctx context.Context) ([]model.GeneratedPlan, error) {
	if s.planner == nil {
		return nil, ErrNotConfigured
	}

	s.mu.Lock()
	if s.state.Generating {
		s.mu.Unlock()
		return nil, ErrBusy
	}
	s.state = Reduce(s.state, ScheduleStarted{})
	req := plan.BuildRequest(s.events.All(), s.queue.PendingForScheduling(), s.constraints, s.now(), s.horizonDays)
	s.mu.Unlock()
	s.notify(ChangeState, nil)

	appLog.Info("requesting plans", "tasks", len(req.Tasks), "events", len(req.Events))
	plans, err := s.generate(ctx, req)

	s.mu.Lock()
	if err != nil {
		s.state = Reduce(s.state, ScheduleFailed{Err: err})
	} else {
		s.state = Reduce(s.state, ScheduleSucceeded{Plans: plans})
	}
	s.mu.Unlock()
	s.notify(ChangeState, nil)

	if err != nil {
		appLog.Error("plan generation failed", err)
		return nil, err
	}
	return plans, nil
}

func (s *Session) generate(ctx context.Context, req plan.Request) ([]model.GeneratedPlan, error) {
	cands, err := s.planner.GeneratePlans(ctx, req)
	if err != nil {
		return nil, err
	}
	return plan.ToGeneratedPlans(cands, s.newID)
}

// Plans returns the plans currently on offer.
func (s *Session) Plans() []model.GeneratedPlan {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.GeneratedPlan(nil), s.state.Plans...)
}

// ApplyPlan merges the offered plan with the given id and withdraws all
// offers.
func (s *Session) ApplyPlan(id string) (plan.Result, error) {
	s.mu.Lock()
	var (
		chosen model.GeneratedPlan
		found  bool
	)
	for _, p := range s.state.Plans {
		if p.ID == id {
			chosen, found = p, true
			break
		}
	}
	if !found {
		s.mu.Unlock()
		return plan.Result{}, ErrPlanNotFound
	}

	res, err := plan.Apply(chosen, s.events, s.queue, plan.Bounds{
		Constraints: s.constraints,
		From:        s.now(),
		Days:        s.horizonDays,
	})
	if err == nil {
		s.state = Reduce(s.state, PlanApplied{Added: len(res.Added), Rejected: len(res.Rejected)})
	}
	s.mu.Unlock()

	if err != nil {
		return plan.Result{}, err
	}
	s.notify(ChangeEvents, nil)
	s.notify(ChangeTasks, nil)
	s.notify(ChangeState, nil)
	return res, nil
}

// DiscardPlans withdraws every offer without touching the calendar.
func (s *Session) DiscardPlans() {
	s.mu.Lock()
	s.state = Reduce(s.state, PlansDiscarded{})
	s.mu.Unlock()
	s.notify(ChangeState, nil)
}

// --- import / export ---

// ImportResult is what one document import added.
type ImportResult struct {
	Events  []model.CalendarEvent `json:"events"`
	Summary string                `json:"summary"`
}

// Import extracts events from a document and stores them as FIXED events.
// Only one import may be in flight; nothing is stored on failure.
func (s *Session) Import(ctx context.Context, data []byte, mediaType string) (ImportResult, error) {
	if s.parser == nil {
		return ImportResult{}, ErrNotConfigured
	}

	s.mu.Lock()
	if s.state.Importing {
		s.mu.Unlock()
		return ImportResult{}, ErrBusy
	}
	s.state = Reduce(s.state, ImportStarted{})
	s.mu.Unlock()
	s.notify(ChangeState, nil)

	var res ImportResult
	doc, err := s.parser.ParseDocument(ctx, data, mediaType)
	if err == nil {
		res.Events, err = plan.ImportEvents(doc, ImportSource, s.newID)
		res.Summary = doc.Summary
	}

	s.mu.Lock()
	if err == nil {
		err = s.events.AddAll(res.Events)
	}
	if err != nil {
		s.state = Reduce(s.state, ImportFailed{Err: err})
	} else {
		s.state = Reduce(s.state, ImportSucceeded{Summary: res.Summary})
	}
	s.mu.Unlock()

	if err != nil {
		appLog.Error("import failed", err, "media_type", mediaType)
		s.notify(ChangeState, nil)
		return ImportResult{}, err
	}
	appLog.Info("import completed", "media_type", mediaType, "events", len(res.Events))
	s.notify(ChangeEvents, nil)
	s.notify(ChangeState, nil)
	return res, nil
}

// Export writes every stored event as one iCalendar document.
func (s *Session) Export(w io.Writer) error {
	events := s.Events()
	return ics.Export(w, events, s.clock())
}

// ExportTo writes a snapshot to path atomically.
func (s *Session) ExportTo(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".planningsprite-export-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if err := s.Export(tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
