package web

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"planningsprite/internal/app"
	"planningsprite/internal/availability"
	"planningsprite/internal/config"
	"planningsprite/internal/grid"
	"planningsprite/internal/ics"
	"planningsprite/internal/model"
	"planningsprite/internal/plan"
	"planningsprite/internal/store"
	"planningsprite/internal/tasks"
)

// Monday 2024-01-08 08:00 UTC.
var monday = time.Date(2024, 1, 8, 8, 0, 0, 0, time.UTC)

func mon(hh int) time.Time { return time.Date(2024, 1, 8, hh, 0, 0, 0, time.UTC) }

type stubPlanner struct {
	cands []plan.Candidate
}

func (p stubPlanner) GeneratePlans(_ context.Context, req plan.Request) ([]plan.Candidate, error) {
	if p.cands != nil {
		return p.cands, nil
	}
	taskID := ""
	if len(req.Tasks) > 0 {
		taskID = req.Tasks[0].ID
	}
	var out []plan.Candidate
	for _, name := range []string{"Interleaved", "Sequential Focus", "Cognitive Load Aware"} {
		out = append(out, plan.Candidate{
			StrategyName:    name,
			ScheduledEvents: []plan.ScheduledEvent{{TaskID: taskID, Title: "Study", Start: mon(9), End: mon(10)}},
		})
	}
	return out, nil
}

func newTestServer(t *testing.T, opts Options, sessOpts ...app.Option) *httptest.Server {
	t.Helper()
	n := 0
	ids := func() string { n++; return fmt.Sprintf("id-%d", n) }
	base := []app.Option{
		app.WithClock(func() time.Time { return monday }),
		app.WithGrid(grid.Config{Location: time.UTC}),
		app.WithIDGenerator(ids),
		app.WithParser(app.ParserChain{
			Local: ics.NewDocumentParser(func() time.Time { return monday }, time.UTC, 30),
		}),
	}
	sess := app.NewSession(store.New(store.WithIDGenerator(ids)), tasks.New(), availability.Default(), append(base, sessOpts...)...)
	srv := httptest.NewServer(NewServer(sess, opts).Handler())
	t.Cleanup(srv.Close)
	return srv
}

func do(t *testing.T, method, url, contentType string, body any) *http.Response {
	t.Helper()
	var r io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		r = strings.NewReader(b)
	default:
		data, err := json.Marshal(b)
		if err != nil {
			t.Fatal(err)
		}
		r = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, url, r)
	if err != nil {
		t.Fatal(err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return v
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t, Options{})
	resp := do(t, http.MethodGet, srv.URL+"/health", "", nil)
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK || string(body) != "OK" {
		t.Fatalf("health = %d %q", resp.StatusCode, body)
	}
}

func TestBasicAuth(t *testing.T) {
	srv := newTestServer(t, Options{BasicAuth: &config.BasicAuthConfig{Username: "me", Password: "secret"}})

	if resp := do(t, http.MethodGet, srv.URL+"/health", "", nil); resp.StatusCode != http.StatusOK {
		t.Errorf("health without credentials = %d", resp.StatusCode)
	}

	resp := do(t, http.MethodGet, srv.URL+"/api/events", "", nil)
	if resp.StatusCode != http.StatusUnauthorized || resp.Header.Get("WWW-Authenticate") == "" {
		t.Errorf("no credentials = %d", resp.StatusCode)
	}

	for _, tc := range []struct {
		user, pass string
		want       int
	}{
		{"me", "secret", http.StatusOK},
		{"me", "wrong", http.StatusUnauthorized},
		{"other", "secret", http.StatusUnauthorized},
	} {
		req, _ := http.NewRequest(http.MethodGet, srv.URL+"/api/events", nil)
		req.SetBasicAuth(tc.user, tc.pass)
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		if resp.StatusCode != tc.want {
			t.Errorf("%s/%s = %d, want %d", tc.user, tc.pass, resp.StatusCode, tc.want)
		}
	}
}

func TestEventLifecycle(t *testing.T) {
	srv := newTestServer(t, Options{})

	resp := do(t, http.MethodPost, srv.URL+"/api/events", "application/json", map[string]any{
		"title": "Lab", "start": mon(10), "end": mon(11),
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create = %d", resp.StatusCode)
	}
	added := decode[[]model.CalendarEvent](t, resp)
	if len(added) != 1 || added[0].Type != model.EventFixed {
		t.Fatalf("added = %+v", added)
	}
	id := added[0].ID

	resp = do(t, http.MethodPost, srv.URL+"/api/events", "application/json", map[string]any{
		"title": "Weekly", "start": mon(14), "end": mon(15), "recurrence": "weekly",
	})
	if got := decode[[]model.CalendarEvent](t, resp); len(got) != 4 {
		t.Errorf("weekly instances = %d", len(got))
	}

	resp = do(t, http.MethodPost, srv.URL+"/api/events", "application/json", map[string]any{
		"title": "Backwards", "start": mon(11), "end": mon(10),
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("invalid range = %d", resp.StatusCode)
	}
	if e := decode[errorResponse](t, resp); e.Error != codeValidation {
		t.Errorf("error code = %q", e.Error)
	}

	resp = do(t, http.MethodPut, srv.URL+"/api/events/"+id, "application/json", map[string]any{"title": "Lab 2"})
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("update = %d", resp.StatusCode)
	}
	if resp := do(t, http.MethodPut, srv.URL+"/api/events/missing", "application/json", map[string]any{"title": "x"}); resp.StatusCode != http.StatusNotFound {
		t.Errorf("update missing = %d", resp.StatusCode)
	}

	// 14 hours plus 2 pixels at 64px/hour snaps to 14:00 on Tuesday.
	resp = do(t, http.MethodPost, srv.URL+"/api/events/"+id+"/drop", "application/json", map[string]any{
		"date": "2024-01-09", "offset": 14*64 + 2,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("drop = %d", resp.StatusCode)
	}
	moved := decode[model.CalendarEvent](t, resp)
	want := time.Date(2024, 1, 9, 14, 0, 0, 0, time.UTC)
	if !moved.Start.Equal(want) || moved.Duration() != time.Hour || moved.Title != "Lab 2" {
		t.Errorf("moved = %+v", moved)
	}

	resp = do(t, http.MethodGet, srv.URL+"/api/week?date=2024-01-10", "", nil)
	cols := decode[[]grid.Column](t, resp)
	if len(cols) != 7 {
		t.Fatalf("columns = %d", len(cols))
	}
	if len(cols[1].Events) != 1 || cols[1].Events[0].ID != id {
		t.Errorf("tuesday column = %+v", cols[1].Events)
	}

	if resp := do(t, http.MethodDelete, srv.URL+"/api/events/"+id, "", nil); resp.StatusCode != http.StatusNoContent {
		t.Errorf("delete = %d", resp.StatusCode)
	}
	if resp := do(t, http.MethodDelete, srv.URL+"/api/events/"+id, "", nil); resp.StatusCode != http.StatusNotFound {
		t.Errorf("second delete = %d", resp.StatusCode)
	}
}

func TestEventErrors(t *testing.T) {
	srv := newTestServer(t, Options{})

	resp := do(t, http.MethodPost, srv.URL+"/api/events", "application/json", map[string]any{
		"title": "Founders Day", "start": mon(0), "end": mon(23), "type": "HOLIDAY",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create holiday = %d", resp.StatusCode)
	}
	holiday := decode[[]model.CalendarEvent](t, resp)[0]

	tests := []struct {
		name       string
		method     string
		path       string
		body       map[string]any
		wantStatus int
		wantCode   string
	}{
		{"unknown type", http.MethodPost, "/api/events",
			map[string]any{"title": "x", "start": mon(9), "end": mon(10), "type": "BOGUS"},
			http.StatusBadRequest, codeValidation},
		{"unknown type patch", http.MethodPut, "/api/events/" + holiday.ID,
			map[string]any{"type": "BOGUS"},
			http.StatusBadRequest, codeValidation},
		{"holiday drop", http.MethodPost, "/api/events/" + holiday.ID + "/drop",
			map[string]any{"date": "2024-01-09", "offset": 9 * 64},
			http.StatusConflict, codeConflict},
	}
	for _, tt := range tests {
		resp := do(t, tt.method, srv.URL+tt.path, "application/json", tt.body)
		if resp.StatusCode != tt.wantStatus {
			t.Errorf("%s: status = %d, want %d", tt.name, resp.StatusCode, tt.wantStatus)
		}
		if e := decode[errorResponse](t, resp); e.Error != tt.wantCode {
			t.Errorf("%s: error code = %q, want %q", tt.name, e.Error, tt.wantCode)
		}
	}

	resp = do(t, http.MethodGet, srv.URL+"/api/events", "", nil)
	events := decode[[]model.CalendarEvent](t, resp)
	if len(events) != 1 || !events[0].Start.Equal(holiday.Start) || events[0].Type != model.EventHoliday {
		t.Errorf("events after rejected requests = %+v", events)
	}
}

func TestScheduleAndApply(t *testing.T) {
	srv := newTestServer(t, Options{}, app.WithPlanner(stubPlanner{}))

	resp := do(t, http.MethodPost, srv.URL+"/api/tasks", "application/json", map[string]any{
		"title": "Anatomy", "estimated_minutes": 60, "priority": "high",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create task = %d", resp.StatusCode)
	}
	task := decode[model.Task](t, resp)

	resp = do(t, http.MethodPost, srv.URL+"/api/schedule", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("schedule = %d", resp.StatusCode)
	}
	plans := decode[[]model.GeneratedPlan](t, resp)
	if len(plans) != plan.PlanCount {
		t.Fatalf("plans = %d", len(plans))
	}

	resp = do(t, http.MethodPost, srv.URL+"/api/plans/"+plans[0].ID+"/apply", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("apply = %d", resp.StatusCode)
	}
	res := decode[plan.Result](t, resp)
	if len(res.Added) != 1 || res.TasksScheduled != 1 {
		t.Errorf("result = %+v", res)
	}

	resp = do(t, http.MethodGet, srv.URL+"/api/tasks", "", nil)
	if got := decode[[]model.Task](t, resp); len(got) != 1 || got[0].ID != task.ID || got[0].Status != model.TaskScheduled {
		t.Errorf("tasks = %+v", got)
	}

	if resp := do(t, http.MethodPost, srv.URL+"/api/plans/"+plans[1].ID+"/apply", "", nil); resp.StatusCode != http.StatusNotFound {
		t.Errorf("apply withdrawn plan = %d", resp.StatusCode)
	}
}

func TestScheduleErrors(t *testing.T) {
	srv := newTestServer(t, Options{})
	if resp := do(t, http.MethodPost, srv.URL+"/api/schedule", "", nil); resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("no planner = %d", resp.StatusCode)
	}

	bad := stubPlanner{cands: []plan.Candidate{{StrategyName: "Only one"}}}
	srv = newTestServer(t, Options{}, app.WithPlanner(bad))
	resp := do(t, http.MethodPost, srv.URL+"/api/schedule", "", nil)
	if resp.StatusCode != http.StatusBadGateway {
		t.Errorf("malformed = %d", resp.StatusCode)
	}
	if e := decode[errorResponse](t, resp); e.Error != codeUpstream {
		t.Errorf("error code = %q", e.Error)
	}

	resp = do(t, http.MethodGet, srv.URL+"/api/plans", "", nil)
	if got := decode[[]model.GeneratedPlan](t, resp); len(got) != 0 {
		t.Errorf("plans after failure = %d", len(got))
	}
}

func TestConstraintEndpoints(t *testing.T) {
	srv := newTestServer(t, Options{})

	// Monday 08:00 is unavailable by default.
	resp := do(t, http.MethodPut, srv.URL+"/api/constraints/slots/1/8", "", nil)
	if got := decode[map[string]bool](t, resp); !got["available"] {
		t.Errorf("toggle = %v", got)
	}
	if resp := do(t, http.MethodPut, srv.URL+"/api/constraints/slots/7/8", "", nil); resp.StatusCode != http.StatusBadRequest {
		t.Errorf("bad day = %d", resp.StatusCode)
	}

	resp = do(t, http.MethodPost, srv.URL+"/api/constraints/stroke", "application/json", map[string]any{
		"cells": []app.Cell{{Day: 0, Hour: 10}, {Day: 0, Hour: 11}, {Day: 0, Hour: 12}},
	})
	if got := decode[map[string]bool](t, resp); !got["available"] {
		t.Errorf("stroke = %v", got)
	}

	if resp := do(t, http.MethodPut, srv.URL+"/api/constraints/caps/0", "application/json", map[string]any{"hours": 3}); resp.StatusCode != http.StatusNoContent {
		t.Errorf("set cap = %d", resp.StatusCode)
	}
	if resp := do(t, http.MethodPut, srv.URL+"/api/constraints/caps/0", "application/json", map[string]any{"hours": 25}); resp.StatusCode != http.StatusBadRequest {
		t.Errorf("cap over 24 = %d", resp.StatusCode)
	}

	resp = do(t, http.MethodGet, srv.URL+"/api/constraints", "", nil)
	c := decode[availability.Constraints](t, resp)
	if !c.AvailableSlots[1][8] || !c.AvailableSlots[0][11] || c.WeeklyMaxHours[0] != 3 {
		t.Errorf("constraints = %+v", c)
	}

	resp = do(t, http.MethodGet, srv.URL+"/api/constraints/windows?days=7", "", nil)
	wins := decode[[]windowResponse](t, resp)
	if len(wins) != 7 {
		t.Fatalf("windows = %d", len(wins))
	}
	if wins[0].Date != "2024-01-08" || wins[0].Ranges[0] != "08:00-18:00" {
		t.Errorf("monday window = %+v", wins[0])
	}
	if wins[6].Weekday != "Sunday" || wins[6].Forbidden || wins[6].Ranges[0] != "10:00-13:00" {
		t.Errorf("sunday window = %+v", wins[6])
	}
}

const weeklyICS = "BEGIN:VCALENDAR\r\nVERSION:2.0\r\nPRODID:-//test//EN\r\n" +
	"BEGIN:VEVENT\r\nUID:u1\r\nDTSTART:20240109T090000Z\r\nDTEND:20240109T100000Z\r\nSUMMARY:Seminar\r\n" +
	"RRULE:FREQ=WEEKLY;COUNT=2\r\nEND:VEVENT\r\nEND:VCALENDAR\r\n"

func TestImportAndExport(t *testing.T) {
	srv := newTestServer(t, Options{})

	resp := do(t, http.MethodPost, srv.URL+"/api/import", "text/calendar; charset=utf-8", weeklyICS)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("import = %d", resp.StatusCode)
	}
	res := decode[app.ImportResult](t, resp)
	if len(res.Events) != 2 || res.Summary == "" {
		t.Fatalf("import result = %+v", res)
	}

	if resp := do(t, http.MethodPost, srv.URL+"/api/import", "application/pdf", "%PDF-1.4"); resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("pdf without remote parser = %d", resp.StatusCode)
	}
	if resp := do(t, http.MethodPost, srv.URL+"/api/import", "", "x"); resp.StatusCode != http.StatusBadRequest {
		t.Errorf("missing content type = %d", resp.StatusCode)
	}

	resp = do(t, http.MethodGet, srv.URL+"/api/export.ics", "", nil)
	if resp.StatusCode != http.StatusOK || resp.Header.Get("Content-Type") != ics.ContentType {
		t.Fatalf("export = %d %q", resp.StatusCode, resp.Header.Get("Content-Type"))
	}
	if !strings.Contains(resp.Header.Get("Content-Disposition"), ics.ExportFilename) {
		t.Errorf("disposition = %q", resp.Header.Get("Content-Disposition"))
	}
	body, _ := io.ReadAll(resp.Body)
	if strings.Count(string(body), "BEGIN:VEVENT") != 2 {
		t.Errorf("export body:\n%s", body)
	}
}

func TestImportTooLarge(t *testing.T) {
	srv := newTestServer(t, Options{MaxUploadBytes: 16})
	resp := do(t, http.MethodPost, srv.URL+"/api/import", "text/calendar", weeklyICS)
	if resp.StatusCode != http.StatusRequestEntityTooLarge {
		t.Errorf("status = %d", resp.StatusCode)
	}
}

func TestStateDispatch(t *testing.T) {
	srv := newTestServer(t, Options{})

	resp := do(t, http.MethodPost, srv.URL+"/api/state", "application/json", map[string]any{"action": "go_to_date", "date": "2024-03-05"})
	st := decode[app.State](t, resp)
	if st.CurrentDate.Format(dateLayout) != "2024-03-05" {
		t.Errorf("current date = %v", st.CurrentDate)
	}

	resp = do(t, http.MethodPost, srv.URL+"/api/state", "application/json", map[string]any{"action": "navigate_week", "delta": -1})
	st = decode[app.State](t, resp)
	if st.CurrentDate.Format(dateLayout) != "2024-02-27" {
		t.Errorf("after navigate = %v", st.CurrentDate)
	}

	resp = do(t, http.MethodPost, srv.URL+"/api/state", "application/json", map[string]any{"action": "open_modal", "modal": "tasks"})
	if st := decode[app.State](t, resp); st.Modal != app.ModalTasks {
		t.Errorf("modal = %q", st.Modal)
	}

	for _, body := range []map[string]any{
		{"action": "explode"},
		{"action": "open_modal", "modal": "settings"},
		{"action": "go_to_date", "date": "March 5"},
	} {
		if resp := do(t, http.MethodPost, srv.URL+"/api/state", "application/json", body); resp.StatusCode != http.StatusBadRequest {
			t.Errorf("%v = %d", body, resp.StatusCode)
		}
	}
}

func TestSyncNotConfigured(t *testing.T) {
	srv := newTestServer(t, Options{})
	if resp := do(t, http.MethodPost, srv.URL+"/api/subscriptions/sync", "", nil); resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("status = %d", resp.StatusCode)
	}
}

func TestRecoveryMiddleware(t *testing.T) {
	h := logging(recovery(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	})))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d", rec.Code)
	}
}
