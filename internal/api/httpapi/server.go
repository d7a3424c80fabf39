// Package httpapi exposes playback session control over an HTTP JSON API.
//
// The API layer is a driver in the session's single-caller model: the
// session performs no locking of its own, so every session and poller
// access here is serialized behind the server mutex.
package httpapi

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/playbox/internal/app/playback"
	"github.com/osa030/playbox/internal/app/poller"
	"github.com/osa030/playbox/internal/domain/stream"
)

// Server controls at most one playback session at a time.
type Server struct {
	backend  stream.Backend
	interval time.Duration

	mu        sync.Mutex
	p         *poller.Poller
	sessionID string
	name      string
}

// NewServer creates an API server driving sessions on the given backend.
func NewServer(backend stream.Backend, interval time.Duration) *Server {
	return &Server{
		backend:  backend,
		interval: interval,
	}
}

// Handler returns the HTTP handler for all API routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/play", s.handlePlay)
	mux.HandleFunc("/v1/status", s.handleStatus)
	mux.HandleFunc("/v1/stop", s.handleStop)
	mux.HandleFunc("/healthz", handleHealthz)
	return mux
}

// Close stops any active session. Safe to call multiple times.
func (s *Server) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
}

type playRequest struct {
	Name string `json:"name"`
}

type statusResponse struct {
	SessionID string  `json:"session_id,omitempty"`
	Name      string  `json:"name,omitempty"`
	State     string  `json:"state"`
	Position  int64   `json:"position"`
	Length    int64   `json:"length"`
	Progress  float64 `json:"progress"`
	Error     string  `json:"error,omitempty"`
}

func (s *Server) handlePlay(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req playRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, errors.Wrap(err, "invalid request body"))
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// A new play force-closes whatever was playing.
	s.stopLocked()

	sess := playback.NewSession(s.backend)
	if err := sess.Open(r.Context(), req.Name); err != nil {
		writeError(w, openErrorCode(err), err)
		return
	}

	p := poller.New(sess, s.interval)
	p.Start()

	s.p = p
	s.sessionID = sess.ID()
	s.name = sess.StreamName()

	zlog.Info().Msgf("httpapi: play: session=%s name=%s", s.sessionID, s.name)
	writeJSON(w, http.StatusOK, statusResponse{
		SessionID: s.sessionID,
		Name:      s.name,
		State:     stream.StatePlaying.String(),
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.p == nil {
		writeJSON(w, http.StatusOK, statusResponse{State: stream.StateIdle.String()})
		return
	}

	st := s.p.LastStatus()
	resp := statusResponse{
		SessionID: s.sessionID,
		Name:      s.name,
		State:     st.State.String(),
		Position:  st.Position,
		Length:    st.Length,
		Progress:  st.Progress(),
	}
	if st.Err != nil {
		resp.Error = st.Err.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()

	writeJSON(w, http.StatusOK, statusResponse{State: stream.StateIdle.String()})
}

func handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// stopLocked tears down the active poller and session, if any.
// Must be called with s.mu held.
func (s *Server) stopLocked() {
	if s.p == nil {
		return
	}
	zlog.Info().Msgf("httpapi: stop: session=%s name=%s", s.sessionID, s.name)
	s.p.Stop()
	s.p = nil
	s.sessionID = ""
	s.name = ""
}

// openErrorCode maps an Open failure to an HTTP status code.
func openErrorCode(err error) int {
	switch {
	case errors.Is(err, stream.ErrStreamNotFound):
		return http.StatusNotFound
	case errors.Is(err, stream.ErrBackendUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}
