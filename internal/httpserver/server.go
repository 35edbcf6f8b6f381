package httpserver

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/destroydevs/TikFetchBot/internal/metrics"
	"github.com/destroydevs/TikFetchBot/internal/model"
	"github.com/destroydevs/TikFetchBot/internal/repository"
)

// StatsProvider returns current usage totals.
type StatsProvider interface {
	Snapshot(ctx context.Context) (model.Stats, error)
}

// Dependencies exposes core components to the admin handlers.
type Dependencies struct {
	Store repository.UserStore
	Stats StatsProvider
}

// Server wraps an http.Server with health, metrics and admin routes.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
	deps       Dependencies
}

// New mounts admin routes only when adminToken is non-empty.
func New(addr, adminToken string, deps Dependencies, logger *slog.Logger, m *metrics.Metrics) *Server {
	s := &Server{
		logger: logger.With("component", "http"),
		deps:   deps,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Get("/healthz", healthHandler)
	r.Method(http.MethodGet, "/metrics", m.Handler())

	if adminToken != "" {
		r.Route("/admin", func(r chi.Router) {
			r.Use(bearerAuth(adminToken))
			r.Get("/stats", s.handleStats)
			r.Get("/users/{id}", s.handleGetUser)
			r.Patch("/users/{id}", s.handlePatchUser)
			r.Delete("/users/{id}", s.handleDeleteUser)
		})
	}

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start blocks until the server stops.
func (s *Server) Start() error {
	s.logger.Info("http server listening", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server listen: %w", err)
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.deps.Stats.Snapshot(r.Context())
	if err != nil {
		s.logger.Error("load stats", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load stats")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	id, ok := userID(w, r)
	if !ok {
		return
	}
	user, err := s.deps.Store.Fetch(r.Context(), id)
	if err != nil {
		s.storeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

type patchRequest struct {
	Field string `json:"field"`
	Value string `json:"value"`
}

func (s *Server) handlePatchUser(w http.ResponseWriter, r *http.Request) {
	id, ok := userID(w, r)
	if !ok {
		return
	}
	var req patchRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	if err := s.deps.Store.SetField(r.Context(), id, model.Field(req.Field), req.Value); err != nil {
		s.storeError(w, err)
		return
	}
	user, err := s.deps.Store.Fetch(r.Context(), id)
	if err != nil {
		s.storeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (s *Server) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	id, ok := userID(w, r)
	if !ok {
		return
	}
	if err := s.deps.Store.Delete(r.Context(), id); err != nil {
		s.storeError(w, err)
		return
	}
	s.logger.Info("user removed", "user_id", id)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) storeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		writeError(w, http.StatusNotFound, "user not found")
	case errors.Is(err, repository.ErrInvalidField), errors.Is(err, repository.ErrInvalidValue):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		s.logger.Error("store request failed", "error", err)
		writeError(w, http.StatusInternalServerError, "storage failure")
	}
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

func bearerAuth(token string) func(http.Handler) http.Handler {
	want := []byte("Bearer " + token)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := []byte(strings.TrimSpace(r.Header.Get("Authorization")))
			if subtle.ConstantTimeCompare(got, want) != 1 {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func userID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid user id")
		return 0, false
	}
	return id, true
}

func healthHandler(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
