package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/claude/formcoach/internal/coach"
	"github.com/claude/formcoach/internal/profiles"
	"github.com/claude/formcoach/internal/storage"
	"github.com/claude/formcoach/internal/tracker"
	"github.com/go-chi/chi/v5"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := http.StatusOK
	db := "ok"
	if err := s.store.Ping(r.Context()); err != nil {
		s.log.Warn("health: database unreachable", "error", err)
		status = http.StatusServiceUnavailable
		db = "unreachable"
	}
	writeJSON(w, status, map[string]any{
		"status":          http.StatusText(status),
		"version":         s.version,
		"exercises":       s.catalog.Len(),
		"active_sessions": s.tracker.Len(),
		"database":        db,
	})
}

func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, profiles.Categories(s.catalog))
}

func (s *Server) handleExercises(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, profiles.List(s.catalog, r.URL.Query().Get("category")))
}

func (s *Server) handleExercise(w http.ResponseWriter, r *http.Request) {
	p, err := s.catalog.Lookup(chi.URLParam(r, "key"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, profiles.Describe(p))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError maps lookup failures to 404 and everything else to 500.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, coach.ErrExerciseNotFound),
		errors.Is(err, tracker.ErrSessionNotFound),
		errors.Is(err, storage.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, storage.ErrConflict):
		status = http.StatusConflict
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func parseTimeRange(r *http.Request) (start, end time.Time, err error) {
	startStr := r.URL.Query().Get("start")
	endStr := r.URL.Query().Get("end")

	if startStr == "" {
		// Default: last 30 days
		end = time.Now()
		start = end.AddDate(0, 0, -30)
		return
	}

	start, err = time.Parse(time.RFC3339, startStr)
	if err != nil {
		start, err = time.Parse("2006-01-02", startStr)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
	}

	if endStr == "" {
		end = time.Now()
	} else {
		end, err = time.Parse(time.RFC3339, endStr)
		if err != nil {
			end, err = time.Parse("2006-01-02", endStr)
			if err != nil {
				return time.Time{}, time.Time{}, err
			}
			// End of day for date-only
			end = end.Add(24 * time.Hour)
		}
	}
	return
}
