// Package plan builds planner requests, converts planner and parser output
// into calendar events, re-validates proposals locally and merges the chosen
// plan into the event store.
package plan

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrMalformedResponse is returned when planner or parser output does not
// match the expected contract.
var ErrMalformedResponse = errors.New("malformed response")

// PlanCount is the number of distinct strategies a planner must return.
const PlanCount = 3

// Planner produces candidate schedules for the pending tasks.
type Planner interface {
	GeneratePlans(ctx context.Context, req Request) ([]Candidate, error)
}

// Parser extracts events from an uploaded document.
type Parser interface {
	ParseDocument(ctx context.Context, data []byte, mediaType string) (ParsedDocument, error)
}

// ScheduledEvent is one placement proposed by the planner.
type ScheduledEvent struct {
	TaskID    string    `json:"taskId,omitempty"`
	Start     time.Time `json:"start"`
	End       time.Time `json:"end"`
	Title     string    `json:"title"`
	Reasoning string    `json:"reasoning,omitempty"`
}

// Candidate is a raw strategy as returned by the planner.
type Candidate struct {
	StrategyName    string           `json:"strategyName"`
	Description     string           `json:"description"`
	Tags            []string         `json:"tags"`
	ScheduledEvents []ScheduledEvent `json:"scheduledEvents"`
}

// ParsedEvent is one event extracted from a document.
type ParsedEvent struct {
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	IsRecurring bool      `json:"isRecurring,omitempty"`
}

// ParsedDocument is the parser's answer for one upload.
type ParsedDocument struct {
	Events  []ParsedEvent `json:"events"`
	Summary string        `json:"summary"`
}

func idFunc(newID func() string) func() string {
	if newID != nil {
		return newID
	}
	return func() string { return uuid.New().String() }
}
