package app

import (
	"errors"
	"strings"
	"testing"
	"time"

	"planningsprite/internal/model"
)

func TestReduceNavigation(t *testing.T) {
	wed := time.Date(2024, 1, 10, 15, 0, 0, 0, time.UTC)
	s := State{CurrentDate: wed}

	next := Reduce(s, NavigateWeek{Delta: 1})
	if !next.CurrentDate.Equal(wed.AddDate(0, 0, 7)) {
		t.Errorf("next week = %v", next.CurrentDate)
	}
	if !s.CurrentDate.Equal(wed) {
		t.Error("Reduce mutated its input")
	}
	prev := Reduce(next, NavigateWeek{Delta: -2})
	if !prev.CurrentDate.Equal(wed.AddDate(0, 0, -7)) {
		t.Errorf("prev week = %v", prev.CurrentDate)
	}

	s = Reduce(s, OpenModal{Modal: ModalConstraints})
	if s.Modal != ModalConstraints {
		t.Errorf("modal = %q", s.Modal)
	}
	if s = Reduce(s, CloseModal{}); s.Modal != ModalNone {
		t.Errorf("modal after close = %q", s.Modal)
	}
}

func TestReduceScheduleLifecycle(t *testing.T) {
	var s State
	s = Reduce(s, ScheduleStarted{})
	if !s.Generating {
		t.Fatal("not generating after start")
	}

	plans := []model.GeneratedPlan{{ID: "p1"}, {ID: "p2"}, {ID: "p3"}}
	s = Reduce(s, ScheduleSucceeded{Plans: plans})
	if s.Generating || len(s.Plans) != 3 || s.Modal != ModalPlans {
		t.Fatalf("after success = %+v", s)
	}
	plans[0].ID = "changed"
	if s.Plans[0].ID != "p1" {
		t.Error("state aliases the caller's plans")
	}

	applied := Reduce(s, PlanApplied{Added: 2, Rejected: 1})
	if applied.Plans != nil || applied.Modal != ModalNone || !strings.Contains(applied.Notice, "1 skipped") {
		t.Errorf("after apply = %+v", applied)
	}

	discarded := Reduce(s, PlansDiscarded{})
	if discarded.Plans != nil || discarded.Modal != ModalNone {
		t.Errorf("after discard = %+v", discarded)
	}

	failed := Reduce(Reduce(State{}, ScheduleStarted{}), ScheduleFailed{Err: errors.New("timeout")})
	if failed.Generating || failed.Plans != nil || !strings.Contains(failed.Notice, "timeout") {
		t.Errorf("after failure = %+v", failed)
	}
}

func TestReduceImportLifecycle(t *testing.T) {
	s := Reduce(State{Modal: ModalImport}, ImportStarted{})
	if !s.Importing || s.Generating {
		t.Fatalf("import start = %+v", s)
	}
	ok := Reduce(s, ImportSucceeded{Summary: "Imported 3 events."})
	if ok.Importing || ok.Modal != ModalNone || ok.Notice != "Imported 3 events." {
		t.Errorf("import success = %+v", ok)
	}
	bad := Reduce(s, ImportFailed{Err: errors.New("unreadable")})
	if bad.Importing || bad.Modal != ModalImport {
		t.Errorf("import failure = %+v", bad)
	}
}
