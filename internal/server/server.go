// Package server exposes the tracker over HTTP: the task API and the live
// presence stream.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/Tiliavir/trivial-study-tracker/internal/clock"
	"github.com/Tiliavir/trivial-study-tracker/internal/model"
	"github.com/Tiliavir/trivial-study-tracker/internal/presence"
	"github.com/Tiliavir/trivial-study-tracker/internal/timer"
)

// Authenticator resolves a bearer token to a user. Unknown tokens must
// produce an error matching timer.ErrUnauthenticated.
type Authenticator interface {
	UserByToken(ctx context.Context, token string) (model.User, error)
}

// Queries are the read-only lookups behind the listing endpoints.
type Queries interface {
	TasksForDay(ctx context.Context, day, userID string) ([]model.Task, error)
	Leaderboard(ctx context.Context) ([]model.Standing, error)
}

// Deps are the collaborators the handlers call into.
type Deps struct {
	Engine   *timer.Engine
	Queries  Queries
	Auth     Authenticator
	Presence *presence.Broadcaster
}

// Server wraps the HTTP listener and handlers.
type Server struct {
	settings Settings
	deps     Deps
	logger   *slog.Logger
	clock    clock.Clock
	handler  http.Handler

	mu        sync.RWMutex
	server    *http.Server
	listener  net.Listener
	startTime time.Time
}

// Option customizes server construction.
type Option func(*Server)

// WithLogger sets the request and lifecycle logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock allows tests to control uptime.
func WithClock(c clock.Clock) Option {
	return func(s *Server) {
		if c != nil {
			s.clock = c
		}
	}
}

// New prepares a server. Nothing listens until Start.
func New(settings Settings, deps Deps, opts ...Option) *Server {
	settings.normalize()
	s := &Server{
		settings: settings,
		deps:     deps,
		logger:   slog.New(slog.DiscardHandler),
		clock:    clock.Real(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	s.startTime = s.clock.Now()
	s.handler = s.routes()
	return s
}

// Handler returns the request router, for embedding or httptest.
func (s *Server) Handler() http.Handler { return s.handler }

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("GET /api/me", s.authed(s.handleMe))
	mux.Handle("GET /api/tasks/today", s.authed(s.handleTasksToday))
	mux.Handle("POST /api/tasks/batch", s.authed(s.handlePlan))
	mux.Handle("POST /api/tasks/{id}/start", s.authed(s.handleStart))
	mux.Handle("POST /api/tasks/{id}/pause", s.authed(s.handlePause))
	mux.Handle("POST /api/tasks/{id}/complete", s.authed(s.handleComplete))
	mux.Handle("GET /api/leaderboard", s.authed(s.handleLeaderboard))
	mux.Handle("GET /api/stream", s.authed(s.handleStream))
	return s.logRequests(mux)
}

// Start binds the TCP listener and begins serving HTTP traffic.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return fmt.Errorf("server: already started")
	}
	addr := s.settings.Address()
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("server: listen %s: %w", addr, err)
	}
	s.listener = listener
	s.startTime = s.clock.Now()
	server := &http.Server{
		Handler:      s.handler,
		ReadTimeout:  s.settings.ReadTimeout,
		WriteTimeout: s.settings.WriteTimeout,
		IdleTimeout:  s.settings.IdleTimeout,
		ErrorLog:     slog.NewLogLogger(s.logger.Handler(), slog.LevelWarn),
	}
	if ctx != nil {
		server.BaseContext = func(net.Listener) context.Context { return ctx }
	}
	s.server = server
	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("serve failed", "error", err)
		}
	}()
	s.logger.Info("listening", "addr", listener.Addr().String())
	return nil
}

// Shutdown ends every live stream, stops accepting connections and waits
// for in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil || s.server == nil {
		return nil
	}
	// Streams never finish on their own; close them so Shutdown can drain.
	if s.deps.Presence != nil {
		s.deps.Presence.Close()
	}
	if ctx == nil {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
	}
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	s.listener = nil
	s.server = nil
	s.logger.Info("server stopped")
	return nil
}

// Addr returns the bound TCP address once the server has started.
func (s *Server) Addr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// BaseURL returns the HTTP base URL for the running server.
func (s *Server) BaseURL() string {
	addr := s.Addr()
	if addr == "" {
		return s.settings.URL()
	}
	return "http://" + addr
}

// statusRecorder captures the response code for the access log. Unwrap
// keeps http.ResponseController working through it.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Unwrap() http.ResponseWriter { return r.ResponseWriter }

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := s.clock.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", s.clock.Now().Sub(start),
		)
	})
}
