package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/claude/formcoach/internal/coach"
	"github.com/claude/formcoach/internal/tracker"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

type startRequest struct {
	ExerciseKey string `json:"exercise_key"`
}

// frameRequest is one landmark frame. Timestamp is in seconds and must not
// decrease within a session.
type frameRequest struct {
	Timestamp *float64                  `json:"timestamp"`
	Landmarks map[string]coach.Landmark `json:"landmarks"`
}

type stopResponse struct {
	Summary   coach.Summary `json:"summary"`
	Persisted bool          `json:"persisted"`
}

func (s *Server) handleStartSession(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON: " + err.Error()})
		return
	}
	if req.ExerciseKey == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "exercise_key is required"})
		return
	}

	info, err := s.tracker.Start(userIDFromContext(r), req.ExerciseKey)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, info)
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionID(w, r)
	if !ok {
		return
	}
	info, err := s.tracker.Get(id, userIDFromContext(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (s *Server) handleFrame(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionID(w, r)
	if !ok {
		return
	}
	var req frameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON: " + err.Error()})
		return
	}
	if req.Timestamp == nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "timestamp is required"})
		return
	}

	snap, err := s.tracker.Process(id, userIDFromContext(r), coach.NewFrame(req.Landmarks), *req.Timestamp)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleResetSession(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionID(w, r)
	if !ok {
		return
	}
	// The body is optional; an empty one keeps the current exercise.
	var req startRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON: " + err.Error()})
		return
	}

	info, err := s.tracker.Reset(id, userIDFromContext(r), req.ExerciseKey)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (s *Server) handleCalibrateSession(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionID(w, r)
	if !ok {
		return
	}
	var req tracker.Calibration
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON: " + err.Error()})
		return
	}

	info, err := s.tracker.Calibrate(id, userIDFromContext(r), req)
	switch {
	case errors.Is(err, tracker.ErrSessionNotFound):
		writeError(w, err)
	case err != nil:
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	default:
		writeJSON(w, http.StatusOK, info)
	}
}

func (s *Server) handleStopSession(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionID(w, r)
	if !ok {
		return
	}
	sum, persisted, err := s.tracker.Stop(r.Context(), id, userIDFromContext(r))
	if errors.Is(err, tracker.ErrSessionNotFound) {
		writeError(w, err)
		return
	}
	if err != nil {
		s.log.Error("persisting session", "id", id, "error", err)
	}
	writeJSON(w, http.StatusOK, stopResponse{Summary: sum, Persisted: persisted})
}

func sessionID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid session ID"})
		return uuid.Nil, false
	}
	return id, true
}
