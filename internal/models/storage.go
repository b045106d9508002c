package models

import (
	"time"

	"github.com/claude/formcoach/internal/coach"
	"github.com/google/uuid"
)

// Session sources.
const (
	SourceLive   = "live"
	SourceReplay = "replay"
)

// SessionRow is a row of the exercise_sessions table.
type SessionRow struct {
	ID           uuid.UUID `json:"id"`
	UserID       int       `json:"user_id"`
	ExerciseKey  string    `json:"exercise_key"`
	ExerciseName string    `json:"exercise_name"`
	Source       string    `json:"source"`
	StartedAt    time.Time `json:"started_at"`
	EndedAt      time.Time `json:"ended_at"`
	RepCount     int       `json:"rep_count"`
	AvgQuality   *float64  `json:"avg_quality"`
	BestQuality  *float64  `json:"best_quality"`
}

// RepRow is a row of the session_reps table.
type RepRow struct {
	SessionID   uuid.UUID `json:"session_id"`
	RepNumber   int       `json:"rep_number"`
	CompletedAt time.Time `json:"completed_at"`
	MinAngle    float64   `json:"min_angle"`
	Quality     float64   `json:"quality"`
}

// SessionImport is a finished session with its reps, as posted to the
// ingest endpoint and written by the tracker.
type SessionImport struct {
	Session SessionRow `json:"session"`
	Reps    []RepRow   `json:"reps"`
}

// ExerciseStat aggregates stored sessions of one exercise.
type ExerciseStat struct {
	ExerciseKey  string    `json:"exercise_key"`
	ExerciseName string    `json:"exercise_name"`
	Sessions     int64     `json:"sessions"`
	TotalReps    int64     `json:"total_reps"`
	AvgQuality   *float64  `json:"avg_quality"`
	BestQuality  *float64  `json:"best_quality"`
	LastSession  time.Time `json:"last_session"`
}

// NewSessionImport builds rows from an engine summary. repTime maps an
// engine timestamp to wall-clock time.
func NewSessionImport(row SessionRow, sum coach.Summary, repTime func(ts float64) time.Time) SessionImport {
	row.RepCount = sum.RepCount
	row.AvgQuality, row.BestQuality = nil, nil
	if len(sum.Reps) > 0 {
		avg, best := sum.AvgQuality, sum.BestQuality
		row.AvgQuality, row.BestQuality = &avg, &best
	}
	imp := SessionImport{Session: row, Reps: make([]RepRow, 0, len(sum.Reps))}
	for _, r := range sum.Reps {
		imp.Reps = append(imp.Reps, RepRow{
			SessionID:   row.ID,
			RepNumber:   r.Number,
			CompletedAt: repTime(r.Timestamp),
			MinAngle:    r.MinAngle,
			Quality:     r.Quality,
		})
	}
	return imp
}

// Validate checks an import received from a client.
func (s SessionImport) Validate() error {
	if s.Session.ID == uuid.Nil {
		return errMissing("session.id")
	}
	if s.Session.ExerciseKey == "" {
		return errMissing("session.exercise_key")
	}
	if s.Session.StartedAt.IsZero() {
		return errMissing("session.started_at")
	}
	if s.Session.EndedAt.Before(s.Session.StartedAt) {
		return ValidationError("session.ended_at is before started_at")
	}
	for _, r := range s.Reps {
		if r.RepNumber <= 0 {
			return ValidationError("rep_number must be positive")
		}
	}
	return nil
}

// ValidationError describes a malformed import.
type ValidationError string

func (e ValidationError) Error() string { return string(e) }

func errMissing(field string) error {
	return ValidationError(field + " is required")
}
