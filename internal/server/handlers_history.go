package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/claude/formcoach/internal/models"
	"github.com/claude/formcoach/internal/storage"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

func (s *Server) handleHistorySessions(w http.ResponseWriter, r *http.Request) {
	start, end, err := parseTimeRange(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	sessions, err := s.store.QuerySessions(r.Context(), start, end, userIDFromContext(r), r.URL.Query().Get("exercise"))
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	if sessions == nil {
		sessions = []models.SessionRow{}
	}
	writeJSON(w, http.StatusOK, sessions)
}

func (s *Server) handleHistoryReps(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid session ID"})
		return
	}

	reps, err := s.store.GetSessionReps(r.Context(), id, userIDFromContext(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, reps)
}

func (s *Server) handleHistoryStats(w http.ResponseWriter, r *http.Request) {
	start, end, err := parseTimeRange(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	stats, err := s.store.GetExerciseStats(r.Context(), start, end, userIDFromContext(r))
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	if stats == nil {
		stats = []models.ExerciseStat{}
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleImportLogs(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if l := r.URL.Query().Get("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	logs, err := s.store.QueryImportLogs(r.Context(), userIDFromContext(r), limit)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, logs)
}

// handleIngestSession stores a session replayed offline. The exercise must
// exist in the catalog; the session is attributed to the caller.
func (s *Server) handleIngestSession(w http.ResponseWriter, r *http.Request) {
	began := time.Now()
	var imp models.SessionImport
	if err := json.NewDecoder(r.Body).Decode(&imp); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON: " + err.Error()})
		return
	}
	if err := imp.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	p, err := s.catalog.Lookup(imp.Session.ExerciseKey)
	if err != nil {
		writeError(w, err)
		return
	}

	uid := userIDFromContext(r)
	imp.Session.UserID = uid
	if imp.Session.ExerciseName == "" {
		imp.Session.ExerciseName = p.Name
	}
	if imp.Session.Source == "" {
		imp.Session.Source = models.SourceReplay
	}
	for i := range imp.Reps {
		imp.Reps[i].SessionID = imp.Session.ID
	}

	inserted, err := s.store.SaveImport(r.Context(), imp)
	s.logImport(uid, imp, inserted, err, int(time.Since(began).Milliseconds()))
	if err != nil {
		s.log.Error("ingest error", "session", imp.Session.ID, "error", err)
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"session_id":    imp.Session.ID,
		"reps_inserted": inserted,
	})
}

// logImport records an import's outcome to the import_logs table.
func (s *Server) logImport(uid int, imp models.SessionImport, inserted int64, importErr error, durationMs int) {
	entry := storage.ImportLog{
		UserID:       uid,
		Source:       imp.Session.Source,
		Status:       "success",
		ExerciseKey:  imp.Session.ExerciseKey,
		RepsReceived: len(imp.Reps),
		RepsInserted: inserted,
		DurationMs:   &durationMs,
	}
	if importErr != nil {
		entry.Status = "error"
		msg := importErr.Error()
		entry.ErrorMessage = &msg
	}

	ctx, cancel := contextWithTimeout()
	defer cancel()
	if _, err := s.store.InsertImportLog(ctx, entry); err != nil {
		s.log.Error("failed to log import", "source", entry.Source, "error", err)
	}
}

// contextWithTimeout returns a background context with a 5-second timeout,
// so import logs are written even when the client has gone away.
func contextWithTimeout() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 5*time.Second) //nolint:mnd
}
