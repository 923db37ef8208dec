// Package web serves the planner over HTTP/JSON.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"taskcal/internal/config"
	appLog "taskcal/internal/log"
	"taskcal/internal/metrics"
	"taskcal/internal/model"
	"taskcal/internal/planner"
)

var errBadRequest = errors.New("bad request")

// Server provides the calendar API.
type Server struct {
	planner *planner.Planner
	cfg     *config.Config
	metrics *metrics.Metrics
	now     func() time.Time

	prefsMu sync.RWMutex
	prefs   config.Preferences

	router *mux.Router
}

type Option func(*Server)

// WithMetrics exposes m on /metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// WithClock overrides time.Now, used as the default date of view queries.
func WithClock(now func() time.Time) Option {
	return func(s *Server) {
		if now != nil {
			s.now = now
		}
	}
}

// NewServer constructs a Server. Preferences are loaded from
// cfg.PreferencesPath; a missing or unreadable file yields defaults.
func NewServer(p *planner.Planner, cfg *config.Config, opts ...Option) *Server {
	s := &Server{
		planner: p,
		cfg:     cfg,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	prefs, err := config.LoadPreferences(cfg.PreferencesPath)
	if err != nil {
		appLog.Error("failed to load preferences; using defaults", err, "path", cfg.PreferencesPath)
		prefs = config.DefaultPreferences()
	}
	s.prefs = prefs

	s.router = s.routes()
	return s
}

func (s *Server) routes() *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	if s.metrics != nil {
		r.Handle("/metrics", s.metrics.Handler()).Methods(http.MethodGet)
	}

	api := r.PathPrefix("/api").Subrouter()

	api.HandleFunc("/events", s.handleListEvents).Methods(http.MethodGet)
	api.HandleFunc("/events", s.handleCreateEvent).Methods(http.MethodPost)
	api.HandleFunc("/events/{id}", s.handleUpdateEvent).Methods(http.MethodPut)
	api.HandleFunc("/events/{id}", s.handleDeleteEvent).Methods(http.MethodDelete)

	api.HandleFunc("/tasks", s.handleListTasks).Methods(http.MethodGet)
	api.HandleFunc("/tasks", s.handleCreateTask).Methods(http.MethodPost)
	api.HandleFunc("/tasks/{id}", s.handleUpdateTask).Methods(http.MethodPut)
	api.HandleFunc("/tasks/{id}", s.handleDeleteTask).Methods(http.MethodDelete)

	api.HandleFunc("/items/{id}", s.handleDeleteItem).Methods(http.MethodDelete)

	api.HandleFunc("/users", s.handleUsers).Methods(http.MethodGet)
	api.HandleFunc("/preferences", s.handleGetPreferences).Methods(http.MethodGet)
	api.HandleFunc("/preferences", s.handlePutPreferences).Methods(http.MethodPut)
	api.HandleFunc("/calendar.ics", s.handleCalendarICS).Methods(http.MethodGet)

	r.Use(recoveryMiddleware, loggingMiddleware)
	return r
}

// Handler returns the router wrapped in CORS handling for cfg.CORSOrigins.
func (s *Server) Handler() http.Handler {
	return cors.New(cors.Options{
		AllowedOrigins: s.cfg.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type"},
	}).Handler(s.router)
}

// StartServer serves s on addr until ctx is cancelled, then shuts down
// gracefully.
func StartServer(ctx context.Context, s *Server, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
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
	appLog.Info("HTTP server stopped")
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		appLog.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration_ms", time.Since(started).Milliseconds(),
		)
	})
}

func recoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if v := recover(); v != nil {
				appLog.Error("recovered from panic", errors.New("panic"), "value", v, "path", r.URL.Path)
				writeError(w, http.StatusInternalServerError, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, model.ErrNoSlot):
		return http.StatusConflict
	case errors.Is(err, model.ErrEventNotFound), errors.Is(err, model.ErrTaskNotFound):
		return http.StatusNotFound
	case errors.Is(err, model.ErrInvalidRange),
		errors.Is(err, model.ErrInvalidInstant),
		errors.Is(err, model.ErrUnknownCategory),
		errors.Is(err, model.ErrUnknownView),
		errors.Is(err, errUnknownUser),
		errors.Is(err, errBadRequest):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}

func writeDomainError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		appLog.Error("request failed", err)
	}
	writeError(w, status, err.Error())
}

func decodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return errors.Join(errBadRequest, err)
	}
	return nil
}

func pathID(r *http.Request) (int, error) {
	id, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil {
		return 0, errors.Join(errBadRequest, err)
	}
	return id, nil
}
