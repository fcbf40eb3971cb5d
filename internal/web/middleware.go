package web

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"runtime/debug"
	"time"

	"planningsprite/internal/app"
	appLog "planningsprite/internal/log"
	"planningsprite/internal/model"
	"planningsprite/internal/plan"
)

// Error codes in API error bodies.
const (
	codeBadRequest   = "bad_request"
	codeValidation   = "validation_error"
	codeNotFound     = "not_found"
	codeConflict     = "conflict"
	codeUpstream     = "upstream_error"
	codeUnavailable  = "unavailable"
	codeUnauthorized = "unauthorized"
	codeInternal     = "internal_error"
)

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, errorResponse{Error: code, Message: msg})
}

// writeErr maps domain errors to HTTP statuses. Errors without a known
// sentinel get fallback.
func writeErr(w http.ResponseWriter, err error, fallback int) {
	status, code := fallback, codeForStatus(fallback)
	switch {
	case errors.Is(err, model.ErrEmptyTitle),
		errors.Is(err, model.ErrInvalidRange),
		errors.Is(err, model.ErrUnsupportedRecurrence),
		errors.Is(err, model.ErrInvalidMinutes),
		errors.Is(err, model.ErrInvalidType):
		status, code = http.StatusBadRequest, codeValidation
	case errors.Is(err, app.ErrBusy),
		errors.Is(err, model.ErrDuplicateID),
		errors.Is(err, model.ErrImmovable):
		status, code = http.StatusConflict, codeConflict
	case errors.Is(err, app.ErrPlanNotFound):
		status, code = http.StatusNotFound, codeNotFound
	case errors.Is(err, app.ErrNotConfigured):
		status, code = http.StatusServiceUnavailable, codeUnavailable
	case errors.Is(err, plan.ErrMalformedResponse):
		status, code = http.StatusBadGateway, codeUpstream
	}
	if status >= http.StatusInternalServerError {
		appLog.Error("request failed", err, "status", status)
	}
	writeError(w, status, code, err.Error())
}

func codeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return codeBadRequest
	case http.StatusNotFound:
		return codeNotFound
	case http.StatusBadGateway:
		return codeUpstream
	default:
		return codeInternal
	}
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	return nil
}

// statusRecorder captures the status code and size. It forwards Hijack so
// websocket upgrades still work behind the logger.
type statusRecorder struct {
	http.ResponseWriter
	status int
	size   int
}

func (rw *statusRecorder) WriteHeader(status int) {
	rw.status = status
	rw.ResponseWriter.WriteHeader(status)
}

func (rw *statusRecorder) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.size += n
	return n, err
}

func (rw *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := rw.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not implement http.Hijacker")
	}
	return h.Hijack()
}

func (rw *statusRecorder) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		appLog.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"bytes", rec.size,
			"elapsed", time.Since(start).Round(time.Microsecond),
		)
	})
}

func recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if v := recover(); v != nil {
				appLog.Error("panic recovered", fmt.Errorf("%v", v), "path", r.URL.Path, "stack", string(debug.Stack()))
				writeError(w, http.StatusInternalServerError, codeInternal, "an unexpected error occurred")
			}
		}()
		next.ServeHTTP(w, r)
	})
}
