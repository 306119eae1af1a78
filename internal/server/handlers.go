package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Tiliavir/trivial-study-tracker/internal/model"
	"github.com/Tiliavir/trivial-study-tracker/internal/timer"
)

// Wire shapes shared with the client package.
type (
	ErrorResponse struct {
		Error string `json:"error"`
		Kind  string `json:"kind"`
	}

	HealthResponse struct {
		Status        string `json:"status"`
		UptimeSeconds int64  `json:"uptime_seconds"`
		Subscribers   int    `json:"subscribers"`
	}

	PlanRequest struct {
		Tasks []model.PlannedTask `json:"tasks"`
	}

	PlanResponse struct {
		Success bool         `json:"success"`
		Tasks   []model.Task `json:"tasks"`
	}

	StartResponse struct {
		Success   bool      `json:"success"`
		StartedAt time.Time `json:"started_at"`
	}

	PauseResponse struct {
		Success            bool `json:"success"`
		AccumulatedMinutes int  `json:"accumulated_minutes"`
	}

	CompleteResponse struct {
		Success        bool         `json:"success"`
		Status         model.Status `json:"status"`
		ActualMinutes  int          `json:"actual_minutes"`
		CompletedToday int          `json:"completed_today"`
	}
)

// KindBadRequest labels request bodies that are not valid JSON.
const KindBadRequest = "bad_request"

// authed resolves the bearer token before calling next.
func (s *Server) authed(next func(http.ResponseWriter, *http.Request, model.User)) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok || s.deps.Auth == nil {
			s.writeError(w, r, timer.ErrUnauthenticated)
			return
		}
		user, err := s.deps.Auth.UserByToken(r.Context(), token)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		next(w, r, user)
	})
}

func bearerToken(r *http.Request) (string, bool) {
	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:        "ok",
		UptimeSeconds: int64(s.clock.Now().Sub(s.startTime).Seconds()),
	}
	if s.deps.Presence != nil {
		resp.Subscribers = s.deps.Presence.Subscribers()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request, user model.User) {
	writeJSON(w, http.StatusOK, user)
}

func (s *Server) handleTasksToday(w http.ResponseWriter, r *http.Request, user model.User) {
	userID := user.ID
	if all, _ := strconv.ParseBool(r.URL.Query().Get("all")); all {
		userID = ""
	}
	tasks, err := s.deps.Queries.TasksForDay(r.Context(), s.deps.Engine.Today(), userID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tasks)
}

func (s *Server) handlePlan(w http.ResponseWriter, r *http.Request, user model.User) {
	var req PlanRequest
	if !s.decode(w, r, &req) {
		return
	}
	tasks, err := s.deps.Engine.Plan(r.Context(), user.ID, req.Tasks)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, PlanResponse{Success: true, Tasks: tasks})
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request, user model.User) {
	started, err := s.deps.Engine.Start(r.Context(), user.ID, r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, StartResponse{Success: true, StartedAt: started})
}

func (s *Server) handlePause(w http.ResponseWriter, r *http.Request, user model.User) {
	task, err := s.deps.Engine.Pause(r.Context(), user.ID, r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, PauseResponse{Success: true, AccumulatedMinutes: task.AccumulatedMinutes})
}

func (s *Server) handleComplete(w http.ResponseWriter, r *http.Request, user model.User) {
	done, err := s.deps.Engine.Complete(r.Context(), user.ID, r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, CompleteResponse{
		Success:        true,
		Status:         done.Status,
		ActualMinutes:  done.ActualMinutes,
		CompletedToday: done.CompletedToday,
	})
}

func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request, _ model.User) {
	rows, err := s.deps.Queries.Leaderboard(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

// decode reads a size-limited JSON body into v, writing the error response
// itself when it fails.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	reader := http.MaxBytesReader(w, r.Body, s.settings.MaxBodyBytes)
	defer reader.Close()
	if err := json.NewDecoder(reader).Decode(v); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeJSON(w, http.StatusRequestEntityTooLarge, ErrorResponse{Error: "payload exceeds limit", Kind: KindBadRequest})
			return false
		}
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid JSON: " + err.Error(), Kind: KindBadRequest})
		return false
	}
	return true
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, timer.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, timer.ErrInvalidState):
		return http.StatusConflict
	case errors.Is(err, timer.ErrInvalidPlan):
		return http.StatusBadRequest
	case errors.Is(err, timer.ErrUnauthenticated):
		return http.StatusUnauthorized
	}
	return http.StatusInternalServerError
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		msg = "internal error"
	}
	if status == http.StatusUnauthorized {
		w.Header().Set("WWW-Authenticate", `Bearer realm="tst"`)
	}
	writeJSON(w, status, ErrorResponse{Error: msg, Kind: timer.Kind(err)})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
