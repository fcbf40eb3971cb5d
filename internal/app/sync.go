package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"planningsprite/internal/ics"
	appLog "planningsprite/internal/log"
	"planningsprite/internal/plan"
)

// SubscriptionSource is the Source tag of events mirrored from a
// subscription.
func SubscriptionSource(id string) string { return "subscription:" + id }

// SyncResult reports one subscription refresh.
type SyncResult struct {
	ID        string `json:"id"`
	Events    int    `json:"events"`
	Removed   int    `json:"removed"`
	FromCache bool   `json:"from_cache"`
	Error     string `json:"error,omitempty"`
}

// Syncer mirrors subscribed calendars into a session.
type Syncer struct {
	session *Session
	fetcher *ics.Fetcher
	parser  *ics.DocumentParser
	subs    []ics.Subscription
}

func NewSyncer(s *Session, f *ics.Fetcher, p *ics.DocumentParser, subs []ics.Subscription) *Syncer {
	return &Syncer{session: s, fetcher: f, parser: p, subs: subs}
}

// SyncOne fetches one subscription and replaces its events. A failed fetch
// or parse leaves the previous events in place.
func (y *Syncer) SyncOne(ctx context.Context, sub ics.Subscription) (SyncResult, error) {
	res := SyncResult{ID: sub.ID}

	fr, err := y.fetcher.Fetch(ctx, sub)
	if err != nil {
		return res, fmt.Errorf("fetch %s: %w", sub.ID, err)
	}
	res.FromCache = fr.FromCache

	occs, err := y.parser.Occurrences(sub.ID, fr.Body)
	if err != nil {
		return res, fmt.Errorf("parse %s: %w", sub.ID, err)
	}
	src := SubscriptionSource(sub.ID)
	events, err := plan.ImportEvents(ics.ToDocument(occs), src, y.session.newID)
	if err != nil {
		return res, fmt.Errorf("convert %s: %w", sub.ID, err)
	}

	removed, err := y.session.ReplaceSource(src, events)
	if err != nil {
		return res, err
	}
	res.Events, res.Removed = len(events), removed
	return res, nil
}

// SyncAll refreshes every subscription; one failure does not stop the rest.
func (y *Syncer) SyncAll(ctx context.Context) ([]SyncResult, error) {
	results := make([]SyncResult, 0, len(y.subs))
	var errs []error
	for _, sub := range y.subs {
		res, err := y.SyncOne(ctx, sub)
		if err != nil {
			appLog.Error("subscription sync failed", err, "id", sub.ID)
			res.Error = err.Error()
			errs = append(errs, err)
		} else {
			appLog.Info("subscription synced", "id", sub.ID, "events", res.Events, "removed", res.Removed, "from_cache", res.FromCache)
		}
		results = append(results, res)
	}
	return results, errors.Join(errs...)
}

// Scheduler runs named background jobs on cron schedules.
type Scheduler struct {
	cron *cron.Cron
	ctx  context.Context

	mu   sync.Mutex
	jobs map[string]cron.EntryID
}

// NewScheduler returns a stopped scheduler evaluating specs in loc. Jobs
// receive ctx.
func NewScheduler(ctx context.Context, loc *time.Location) *Scheduler {
	if loc == nil {
		loc = time.Local
	}
	return &Scheduler{
		cron: cron.New(cron.WithLocation(loc)),
		ctx:  ctx,
		jobs: make(map[string]cron.EntryID),
	}
}

// Add schedules fn under name, replacing any job with the same name.
func (s *Scheduler) Add(name, spec string, fn func(context.Context) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id, ok := s.jobs[name]; ok {
		s.cron.Remove(id)
		delete(s.jobs, name)
	}
	id, err := s.cron.AddFunc(spec, func() {
		started := time.Now()
		if err := fn(s.ctx); err != nil {
			appLog.Error("scheduled job failed", err, "job", name)
			return
		}
		appLog.Debug("scheduled job done", "job", name, "elapsed", time.Since(started).Round(time.Millisecond))
	})
	if err != nil {
		return fmt.Errorf("schedule %s %q: %w", name, spec, err)
	}
	s.jobs[name] = id
	appLog.Info("job scheduled", "job", name, "spec", spec)
	return nil
}

// Next returns the next run of the named job.
func (s *Scheduler) Next(name string) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.jobs[name]
	if !ok {
		return time.Time{}, false
	}
	next := s.cron.Entry(id).Next
	return next, !next.IsZero()
}

func (s *Scheduler) Start() { s.cron.Start() }

// Stop waits for running jobs to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}
