// Package tasks holds the backlog of work waiting to be scheduled.
package tasks

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"planningsprite/internal/model"
)

// PlannerTask is the reduced view of a task sent to the planner. Nothing
// else about a task crosses that boundary.
type PlannerTask struct {
	ID       string         `json:"id"`
	Title    string         `json:"title"`
	Minutes  int            `json:"minutes"`
	Deadline *time.Time     `json:"deadline,omitempty"`
	Priority model.Priority `json:"priority"`
}

// Option adjusts a task at creation.
type Option func(*model.Task)

// WithDeadline sets the task's deadline.
func WithDeadline(d time.Time) Option {
	return func(t *model.Task) { t.Deadline = &d }
}

// WithPriority sets the task's priority. Unknown values are ignored.
func WithPriority(p model.Priority) Option {
	return func(t *model.Task) {
		if p.Valid() {
			t.Priority = p
		}
	}
}

// Queue is an ordered backlog. It is not safe for concurrent use.
type Queue struct {
	tasks []model.Task
	newID func() string
}

// New returns an empty queue.
func New() *Queue {
	return &Queue{newID: func() string { return uuid.New().String() }}
}

// Add creates a pending task with medium priority.
func (q *Queue) Add(title string, estimatedMinutes int, opts ...Option) (model.Task, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return model.Task{}, model.ErrEmptyTitle
	}
	if estimatedMinutes <= 0 {
		return model.Task{}, model.ErrInvalidMinutes
	}
	t := model.Task{
		ID:               q.newID(),
		Title:            title,
		EstimatedMinutes: estimatedMinutes,
		Priority:         model.PriorityMedium,
		Status:           model.TaskPending,
	}
	for _, o := range opts {
		o(&t)
	}
	q.tasks = append(q.tasks, t)
	return t, nil
}

func (q *Queue) find(id string) int {
	for i := range q.tasks {
		if q.tasks[i].ID == id {
			return i
		}
	}
	return -1
}

// Get returns the task with the given id.
func (q *Queue) Get(id string) (model.Task, bool) {
	i := q.find(id)
	if i < 0 {
		return model.Task{}, false
	}
	return q.tasks[i], true
}

// Remove deletes a task. A missing id is a no-op.
func (q *Queue) Remove(id string) bool {
	i := q.find(id)
	if i < 0 {
		return false
	}
	q.tasks = append(q.tasks[:i], q.tasks[i+1:]...)
	return true
}

// All returns a copy of every task in insertion order.
func (q *Queue) All() []model.Task {
	out := make([]model.Task, len(q.tasks))
	copy(out, q.tasks)
	return out
}

// PendingForScheduling returns the pending tasks reduced to the planner shape.
func (q *Queue) PendingForScheduling() []PlannerTask {
	out := make([]PlannerTask, 0)
	for _, t := range q.tasks {
		if t.Status != model.TaskPending {
			continue
		}
		out = append(out, PlannerTask{
			ID:       t.ID,
			Title:    t.Title,
			Minutes:  t.EstimatedMinutes,
			Deadline: t.Deadline,
			Priority: t.Priority,
		})
	}
	return out
}

// MarkScheduled moves the listed pending tasks to scheduled and returns how
// many changed. Unknown ids and non-pending tasks are skipped.
func (q *Queue) MarkScheduled(ids []string) int {
	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	n := 0
	for i := range q.tasks {
		if want[q.tasks[i].ID] && q.tasks[i].Status == model.TaskPending {
			q.tasks[i].Status = model.TaskScheduled
			n++
		}
	}
	return n
}

// Complete marks a task completed. A missing id is a no-op.
func (q *Queue) Complete(id string) bool {
	i := q.find(id)
	if i < 0 {
		return false
	}
	q.tasks[i].Status = model.TaskCompleted
	return true
}
