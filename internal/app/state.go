// Package app owns the running planner: the event store, the task queue and
// the availability template behind one mutex, the UI state machine, and the
// background jobs that keep subscriptions and snapshots fresh.
package app

import (
	"fmt"
	"time"

	"planningsprite/internal/grid"
	"planningsprite/internal/model"
)

// Modal is the dialog currently shown, if any.
type Modal string

const (
	ModalNone        Modal = ""
	ModalTasks       Modal = "tasks"
	ModalConstraints Modal = "constraints"
	ModalImport      Modal = "import"
	ModalPlans       Modal = "plans"
)

// State is everything the UI needs besides the stored data.
type State struct {
	CurrentDate time.Time             `json:"current_date"`
	Modal       Modal                 `json:"modal"`
	Generating  bool                  `json:"generating"`
	Importing   bool                  `json:"importing"`
	Plans       []model.GeneratedPlan `json:"plans"`
	// Notice is the last user-visible outcome message.
	Notice string `json:"notice,omitempty"`
}

// Action is a user or system event fed to Reduce.
type Action interface{ action() }

type (
	NavigateWeek      struct{ Delta int }
	GoToDate          struct{ Date time.Time }
	OpenModal         struct{ Modal Modal }
	CloseModal        struct{}
	ScheduleStarted   struct{}
	ScheduleSucceeded struct{ Plans []model.GeneratedPlan }
	ScheduleFailed    struct{ Err error }
	PlanApplied       struct{ Added, Rejected int }
	PlansDiscarded    struct{}
	ImportStarted     struct{}
	ImportSucceeded   struct{ Summary string }
	ImportFailed      struct{ Err error }
)

func (NavigateWeek) action()      {}
func (GoToDate) action()          {}
func (OpenModal) action()         {}
func (CloseModal) action()        {}
func (ScheduleStarted) action()   {}
func (ScheduleSucceeded) action() {}
func (ScheduleFailed) action()    {}
func (PlanApplied) action()       {}
func (PlansDiscarded) action()    {}
func (ImportStarted) action()     {}
func (ImportSucceeded) action()   {}
func (ImportFailed) action()      {}

// Reduce returns the state after a. It never mutates s.
func Reduce(s State, a Action) State {
	next := s
	switch a := a.(type) {
	case NavigateWeek:
		next.CurrentDate = grid.ShiftWeek(s.CurrentDate, a.Delta)
	case GoToDate:
		next.CurrentDate = a.Date
	case OpenModal:
		next.Modal = a.Modal
	case CloseModal:
		next.Modal = ModalNone

	case ScheduleStarted:
		next.Generating = true
		next.Notice = ""
	case ScheduleSucceeded:
		next.Generating = false
		next.Plans = append([]model.GeneratedPlan(nil), a.Plans...)
		next.Modal = ModalPlans
	case ScheduleFailed:
		next.Generating = false
		next.Notice = "Generating plans failed: " + errText(a.Err)
	case PlanApplied:
		next.Plans = nil
		next.Modal = ModalNone
		next.Notice = planNotice(a.Added, a.Rejected)
	case PlansDiscarded:
		next.Plans = nil
		if s.Modal == ModalPlans {
			next.Modal = ModalNone
		}

	case ImportStarted:
		next.Importing = true
		next.Notice = ""
	case ImportSucceeded:
		next.Importing = false
		next.Modal = ModalNone
		next.Notice = a.Summary
	case ImportFailed:
		next.Importing = false
		next.Notice = "Import failed: " + errText(a.Err)
	}
	return next
}

func errText(err error) string {
	if err == nil {
		return "unknown error"
	}
	return err.Error()
}

func planNotice(added, rejected int) string {
	switch {
	case rejected == 0:
		return fmt.Sprintf("%d events added to the calendar.", added)
	case added == 0:
		return fmt.Sprintf("No events added; all %d proposals conflicted with the calendar.", rejected)
	default:
		return fmt.Sprintf("%d events added, %d skipped due to conflicts.", added, rejected)
	}
}
