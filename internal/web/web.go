// Package web exposes the planner session over a JSON HTTP API.
package web

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"planningsprite/internal/app"
	"planningsprite/internal/config"
	appLog "planningsprite/internal/log"
	"planningsprite/internal/websocket"
)

// DefaultMaxUploadBytes bounds POST /api/import bodies.
const DefaultMaxUploadBytes = 10 << 20

// Options are the optional collaborators of a Server.
type Options struct {
	Hub            *websocket.Hub
	Syncer         *app.Syncer
	BasicAuth      *config.BasicAuthConfig
	MaxUploadBytes int64
}

// Server routes API requests to one session.
type Server struct {
	session *app.Session
	opts    Options
	router  *mux.Router
}

// NewServer constructs a Server and registers its routes.
func NewServer(session *app.Session, opts Options) *Server {
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = DefaultMaxUploadBytes
	}
	s := &Server{session: session, opts: opts, router: mux.NewRouter()}
	s.registerRoutes()
	return s
}

// Handler returns the router wrapped with basic auth when configured.
func (s *Server) Handler() http.Handler {
	h := http.Handler(s.router)
	if s.basicAuthEnabled() {
		appLog.Info("HTTP basic auth enabled")
		return s.basicAuthMiddleware(h)
	}
	return h
}

func (s *Server) registerRoutes() {
	r := s.router
	r.Use(logging)
	r.Use(recovery)

	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()

	api.HandleFunc("/state", s.handleGetState).Methods(http.MethodGet)
	api.HandleFunc("/state", s.handleDispatch).Methods(http.MethodPost)

	api.HandleFunc("/events", s.handleListEvents).Methods(http.MethodGet)
	api.HandleFunc("/events", s.handleCreateEvent).Methods(http.MethodPost)
	api.HandleFunc("/events/{id}", s.handleUpdateEvent).Methods(http.MethodPut)
	api.HandleFunc("/events/{id}", s.handleDeleteEvent).Methods(http.MethodDelete)
	api.HandleFunc("/events/{id}/drop", s.handleDropEvent).Methods(http.MethodPost)
	api.HandleFunc("/week", s.handleWeek).Methods(http.MethodGet)

	api.HandleFunc("/tasks", s.handleListTasks).Methods(http.MethodGet)
	api.HandleFunc("/tasks", s.handleCreateTask).Methods(http.MethodPost)
	api.HandleFunc("/tasks/{id}", s.handleDeleteTask).Methods(http.MethodDelete)
	api.HandleFunc("/tasks/{id}/complete", s.handleCompleteTask).Methods(http.MethodPost)

	api.HandleFunc("/constraints", s.handleGetConstraints).Methods(http.MethodGet)
	api.HandleFunc("/constraints/slots/{day:[0-9]+}/{hour:[0-9]+}", s.handleToggleSlot).Methods(http.MethodPut)
	api.HandleFunc("/constraints/stroke", s.handleStroke).Methods(http.MethodPost)
	api.HandleFunc("/constraints/caps/{day:[0-9]+}", s.handleSetCap).Methods(http.MethodPut)
	api.HandleFunc("/constraints/windows", s.handleWindows).Methods(http.MethodGet)

	api.HandleFunc("/schedule", s.handleSchedule).Methods(http.MethodPost)
	api.HandleFunc("/plans", s.handleListPlans).Methods(http.MethodGet)
	api.HandleFunc("/plans", s.handleDiscardPlans).Methods(http.MethodDelete)
	api.HandleFunc("/plans/{id}/apply", s.handleApplyPlan).Methods(http.MethodPost)

	api.HandleFunc("/import", s.handleImport).Methods(http.MethodPost)
	api.HandleFunc("/export.ics", s.handleExport).Methods(http.MethodGet)
	api.HandleFunc("/subscriptions/sync", s.handleSync).Methods(http.MethodPost)

	if s.opts.Hub != nil {
		api.HandleFunc("/ws", s.opts.Hub.Handler()).Methods(http.MethodGet)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

func (s *Server) basicAuthEnabled() bool {
	a := s.opts.BasicAuth
	return a != nil && a.Username != "" && a.Password != ""
}

// basicAuthMiddleware guards everything except /health.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	username := s.opts.BasicAuth.Username
	password := s.opts.BasicAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}
		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="Planning Sprite", charset="UTF-8"`)
			writeError(w, http.StatusUnauthorized, codeUnauthorized, "authentication required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// ListenAndServe serves until ctx is canceled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	appLog.Info("HTTP server stopped")
	return nil
}
