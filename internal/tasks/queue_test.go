package tasks

import (
	"errors"
	"testing"
	"time"

	"planningsprite/internal/model"
)

func TestAddDefaults(t *testing.T) {
	q := New()
	task, err := q.Add("  Read chapter 3 ", 120)
	if err != nil {
		t.Fatal(err)
	}
	if task.Title != "Read chapter 3" {
		t.Errorf("title = %q", task.Title)
	}
	if task.Status != model.TaskPending || task.Priority != model.PriorityMedium {
		t.Errorf("task = %+v", task)
	}
	if task.ID == "" {
		t.Error("empty id")
	}
}

func TestAddValidates(t *testing.T) {
	q := New()
	if _, err := q.Add("", 30); !errors.Is(err, model.ErrEmptyTitle) {
		t.Errorf("empty title err = %v", err)
	}
	if _, err := q.Add("x", 0); !errors.Is(err, model.ErrInvalidMinutes) {
		t.Errorf("zero minutes err = %v", err)
	}
	if len(q.All()) != 0 {
		t.Error("invalid task stored")
	}
}

func TestAddOptions(t *testing.T) {
	q := New()
	due := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)
	task, _ := q.Add("x", 30, WithDeadline(due), WithPriority(model.PriorityHigh), WithPriority("urgent"))
	if task.Deadline == nil || !task.Deadline.Equal(due) {
		t.Errorf("deadline = %v", task.Deadline)
	}
	if task.Priority != model.PriorityHigh {
		t.Errorf("priority = %s", task.Priority)
	}
}

func TestPendingForScheduling(t *testing.T) {
	q := New()
	a, _ := q.Add("a", 60)
	b, _ := q.Add("b", 30)
	c, _ := q.Add("c", 45)
	q.MarkScheduled([]string{b.ID})
	q.Complete(c.ID)

	pending := q.PendingForScheduling()
	if len(pending) != 1 {
		t.Fatalf("pending = %+v", pending)
	}
	if pending[0].ID != a.ID || pending[0].Minutes != 60 || pending[0].Priority != model.PriorityMedium {
		t.Errorf("reduced task = %+v", pending[0])
	}
}

func TestMarkScheduledOnlyListed(t *testing.T) {
	q := New()
	a, _ := q.Add("a", 60)
	b, _ := q.Add("b", 30)

	if n := q.MarkScheduled([]string{a.ID, "unknown"}); n != 1 {
		t.Errorf("changed = %d", n)
	}
	if got, _ := q.Get(a.ID); got.Status != model.TaskScheduled {
		t.Errorf("a = %s", got.Status)
	}
	if got, _ := q.Get(b.ID); got.Status != model.TaskPending {
		t.Errorf("b = %s", got.Status)
	}
	// Already scheduled tasks do not count twice.
	if n := q.MarkScheduled([]string{a.ID}); n != 0 {
		t.Errorf("second mark changed %d", n)
	}
}

func TestRemove(t *testing.T) {
	q := New()
	a, _ := q.Add("a", 60)
	if !q.Remove(a.ID) {
		t.Error("Remove = false")
	}
	if q.Remove(a.ID) {
		t.Error("Remove of missing id = true")
	}
}
