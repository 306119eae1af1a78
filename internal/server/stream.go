package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/Tiliavir/trivial-study-tracker/internal/model"
)

// handleStream writes presence snapshots as Server-Sent Events until the
// client disconnects or the server shuts down.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request, user model.User) {
	if s.deps.Presence == nil {
		http.Error(w, "stream unavailable", http.StatusServiceUnavailable)
		return
	}
	rc := http.NewResponseController(w)
	// The server-wide write timeout would cut the stream off.
	if err := rc.SetWriteDeadline(time.Time{}); err != nil && !errors.Is(err, http.ErrNotSupported) {
		s.logger.Warn("clearing stream write deadline", "error", err)
	}

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	if err := rc.Flush(); err != nil {
		return
	}

	sub := s.deps.Presence.Subscribe(r.Context())
	defer sub.Close()
	s.logger.Info("stream opened", "user", user.ID)
	defer s.logger.Info("stream closed", "user", user.ID)

	for snap := range sub.C {
		data, err := json.Marshal(snap)
		if err != nil {
			s.logger.Error("encoding snapshot", "error", err)
			continue
		}
		if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
			return
		}
		if err := rc.Flush(); err != nil {
			return
		}
	}
}
