package web

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"planningsprite/internal/app"
	"planningsprite/internal/ics"
	"planningsprite/internal/model"
	"planningsprite/internal/store"
	"planningsprite/internal/tasks"
)

const dateLayout = "2006-01-02"

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}

func (s *Server) parseDate(v string) (time.Time, error) {
	return time.ParseInLocation(dateLayout, v, s.session.Location())
}

// --- state ---

type actionRequest struct {
	Action string `json:"action"`
	Delta  int    `json:"delta,omitempty"`
	Date   string `json:"date,omitempty"`
	Modal  string `json:"modal,omitempty"`
}

func (s *Server) handleGetState(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.session.State())
}

func (s *Server) handleDispatch(w http.ResponseWriter, r *http.Request) {
	var req actionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, err.Error())
		return
	}

	var a app.Action
	switch req.Action {
	case "navigate_week":
		a = app.NavigateWeek{Delta: req.Delta}
	case "today":
		writeJSON(w, http.StatusOK, s.session.Today())
		return
	case "go_to_date":
		d, err := s.parseDate(req.Date)
		if err != nil {
			writeError(w, http.StatusBadRequest, codeBadRequest, "date must be YYYY-MM-DD")
			return
		}
		a = app.GoToDate{Date: d}
	case "open_modal":
		m := app.Modal(req.Modal)
		switch m {
		case app.ModalTasks, app.ModalConstraints, app.ModalImport, app.ModalPlans:
		default:
			writeError(w, http.StatusBadRequest, codeBadRequest, fmt.Sprintf("unknown modal %q", req.Modal))
			return
		}
		a = app.OpenModal{Modal: m}
	case "close_modal":
		a = app.CloseModal{}
	default:
		writeError(w, http.StatusBadRequest, codeBadRequest, fmt.Sprintf("unknown action %q", req.Action))
		return
	}
	writeJSON(w, http.StatusOK, s.session.Dispatch(a))
}

// --- events ---

type eventRequest struct {
	Title       string           `json:"title"`
	Description string           `json:"description,omitempty"`
	Start       time.Time        `json:"start"`
	End         time.Time        `json:"end"`
	Type        model.EventType  `json:"type,omitempty"`
	Recurrence  model.Recurrence `json:"recurrence,omitempty"`
	AllDay      bool             `json:"all_day,omitempty"`
}

func (s *Server) handleListEvents(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.session.Events())
}

func (s *Server) handleCreateEvent(w http.ResponseWriter, r *http.Request) {
	var req eventRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, err.Error())
		return
	}
	if req.Type == "" {
		req.Type = model.EventFixed
	}
	added, err := s.session.AddEvent(model.CalendarEvent{
		Title:       req.Title,
		Description: req.Description,
		Start:       req.Start,
		End:         req.End,
		Type:        req.Type,
		Recurrence:  req.Recurrence,
		AllDay:      req.AllDay,
	})
	if err != nil {
		writeErr(w, err, http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusCreated, added)
}

func (s *Server) handleUpdateEvent(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	var p store.Patch
	if err := decodeJSON(r, &p); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, err.Error())
		return
	}
	ok, err := s.session.UpdateEvent(id, p)
	if err != nil {
		writeErr(w, err, http.StatusBadRequest)
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, codeNotFound, "event not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDeleteEvent(w http.ResponseWriter, r *http.Request) {
	if !s.session.RemoveEvent(mux.Vars(r)["id"]) {
		writeError(w, http.StatusNotFound, codeNotFound, "event not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type dropRequest struct {
	Date   string  `json:"date"`
	Offset float64 `json:"offset"`
}

func (s *Server) handleDropEvent(w http.ResponseWriter, r *http.Request) {
	var req dropRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, err.Error())
		return
	}
	day, err := s.parseDate(req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "date must be YYYY-MM-DD")
		return
	}
	ev, ok, err := s.session.DropEvent(mux.Vars(r)["id"], day, req.Offset)
	if err != nil {
		writeErr(w, err, http.StatusBadRequest)
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, codeNotFound, "event not found")
		return
	}
	writeJSON(w, http.StatusOK, ev)
}

func (s *Server) handleWeek(w http.ResponseWriter, r *http.Request) {
	var ref time.Time
	if v := r.URL.Query().Get("date"); v != "" {
		d, err := s.parseDate(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, codeBadRequest, "date must be YYYY-MM-DD")
			return
		}
		ref = d
	}
	writeJSON(w, http.StatusOK, s.session.Week(ref))
}

// --- tasks ---

type taskRequest struct {
	Title            string         `json:"title"`
	EstimatedMinutes int            `json:"estimated_minutes"`
	Deadline         *time.Time     `json:"deadline,omitempty"`
	Priority         model.Priority `json:"priority,omitempty"`
}

func (s *Server) handleListTasks(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.session.Tasks())
}

func (s *Server) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	var req taskRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, err.Error())
		return
	}
	var opts []tasks.Option
	if req.Deadline != nil {
		opts = append(opts, tasks.WithDeadline(*req.Deadline))
	}
	if req.Priority != "" {
		if !req.Priority.Valid() {
			writeError(w, http.StatusBadRequest, codeValidation, fmt.Sprintf("unknown priority %q", req.Priority))
			return
		}
		opts = append(opts, tasks.WithPriority(req.Priority))
	}
	t, err := s.session.AddTask(req.Title, req.EstimatedMinutes, opts...)
	if err != nil {
		writeErr(w, err, http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

func (s *Server) handleDeleteTask(w http.ResponseWriter, r *http.Request) {
	if !s.session.RemoveTask(mux.Vars(r)["id"]) {
		writeError(w, http.StatusNotFound, codeNotFound, "task not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleCompleteTask(w http.ResponseWriter, r *http.Request) {
	if !s.session.CompleteTask(mux.Vars(r)["id"]) {
		writeError(w, http.StatusNotFound, codeNotFound, "task not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- constraints ---

func (s *Server) handleGetConstraints(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.session.Constraints())
}

func (s *Server) handleToggleSlot(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	day := parseIntDefault(vars["day"], -1)
	hour := parseIntDefault(vars["hour"], -1)
	v, err := s.session.ToggleSlot(day, hour)
	if err != nil {
		writeErr(w, err, http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"available": v})
}

type strokeRequest struct {
	Cells []app.Cell `json:"cells"`
}

func (s *Server) handleStroke(w http.ResponseWriter, r *http.Request) {
	var req strokeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, err.Error())
		return
	}
	v, err := s.session.PaintStroke(req.Cells)
	if err != nil {
		writeErr(w, err, http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"available": v})
}

type capRequest struct {
	Hours float64 `json:"hours"`
}

func (s *Server) handleSetCap(w http.ResponseWriter, r *http.Request) {
	var req capRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, err.Error())
		return
	}
	day := parseIntDefault(mux.Vars(r)["day"], -1)
	if err := s.session.SetDailyCap(day, req.Hours); err != nil {
		writeErr(w, err, http.StatusBadRequest)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type windowResponse struct {
	Date      string   `json:"date"`
	Weekday   string   `json:"weekday"`
	Ranges    []string `json:"ranges"`
	MaxHours  float64  `json:"max_hours"`
	Forbidden bool     `json:"forbidden"`
}

func (s *Server) handleWindows(w http.ResponseWriter, r *http.Request) {
	days := parseIntDefault(r.URL.Query().Get("days"), 0)
	wins := s.session.Windows(days)
	out := make([]windowResponse, 0, len(wins))
	for _, win := range wins {
		out = append(out, windowResponse{
			Date:      win.DateString(),
			Weekday:   win.Weekday.String(),
			Ranges:    win.RangeStrings(),
			MaxHours:  win.MaxHours,
			Forbidden: win.Forbidden,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

// --- plans ---

func (s *Server) handleSchedule(w http.ResponseWriter, r *http.Request) {
	plans, err := s.session.RequestPlans(r.Context())
	if err != nil {
		writeErr(w, err, http.StatusBadGateway)
		return
	}
	writeJSON(w, http.StatusOK, plans)
}

func (s *Server) handleListPlans(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.session.Plans())
}

func (s *Server) handleDiscardPlans(w http.ResponseWriter, _ *http.Request) {
	s.session.DiscardPlans()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleApplyPlan(w http.ResponseWriter, r *http.Request) {
	res, err := s.session.ApplyPlan(mux.Vars(r)["id"])
	if err != nil {
		writeErr(w, err, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// --- import / export / sync ---

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil || mediaType == "" {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Content-Type is required")
		return
	}
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.opts.MaxUploadBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, codeBadRequest, "document too large")
			return
		}
		writeError(w, http.StatusBadRequest, codeBadRequest, err.Error())
		return
	}
	if len(body) == 0 {
		writeError(w, http.StatusBadRequest, codeBadRequest, "document is empty")
		return
	}
	res, err := s.session.Import(r.Context(), body, strings.ToLower(mediaType))
	if err != nil {
		writeErr(w, err, http.StatusBadGateway)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleExport(w http.ResponseWriter, _ *http.Request) {
	var buf bytes.Buffer
	if err := s.session.Export(&buf); err != nil {
		writeErr(w, err, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", ics.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", ics.ExportFilename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

type syncResponse struct {
	Results []app.SyncResult `json:"results"`
}

func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	if s.opts.Syncer == nil {
		writeErr(w, app.ErrNotConfigured, http.StatusServiceUnavailable)
		return
	}
	// Per-subscription errors are reported in the results.
	results, _ := s.opts.Syncer.SyncAll(r.Context())
	writeJSON(w, http.StatusOK, syncResponse{Results: results})
}
