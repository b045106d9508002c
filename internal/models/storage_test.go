package models

import (
	"errors"
	"testing"
	"time"

	"github.com/claude/formcoach/internal/coach"
	"github.com/google/uuid"
)

// TestNewSessionImport verifies rep rows inherit the session ID and the
// quality aggregates are copied from the summary.
func TestNewSessionImport(t *testing.T) {
	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	row := SessionRow{ID: uuid.New(), ExerciseKey: "squat", StartedAt: start, EndedAt: start.Add(time.Minute)}
	sum := coach.Summary{
		RepCount:    2,
		Reps:        []coach.RepResult{{Number: 1, MinAngle: 85, Quality: 80, Timestamp: 2}, {Number: 2, MinAngle: 95, Quality: 100, Timestamp: 5}},
		AvgQuality:  90,
		BestQuality: 100,
	}
	imp := NewSessionImport(row, sum, func(ts float64) time.Time {
		return start.Add(time.Duration(ts * float64(time.Second)))
	})

	if imp.Session.RepCount != 2 {
		t.Errorf("rep_count = %d, want 2", imp.Session.RepCount)
	}
	if imp.Session.AvgQuality == nil || *imp.Session.AvgQuality != 90 {
		t.Errorf("avg_quality = %v, want 90", imp.Session.AvgQuality)
	}
	if len(imp.Reps) != 2 {
		t.Fatalf("reps = %d, want 2", len(imp.Reps))
	}
	if imp.Reps[1].SessionID != row.ID {
		t.Errorf("rep session_id = %v, want %v", imp.Reps[1].SessionID, row.ID)
	}
	if want := start.Add(5 * time.Second); !imp.Reps[1].CompletedAt.Equal(want) {
		t.Errorf("completed_at = %v, want %v", imp.Reps[1].CompletedAt, want)
	}
}

// TestNewSessionImportNoReps verifies quality aggregates stay NULL without reps.
func TestNewSessionImportNoReps(t *testing.T) {
	imp := NewSessionImport(SessionRow{ID: uuid.New()}, coach.Summary{}, nil)
	if imp.Session.AvgQuality != nil || imp.Session.BestQuality != nil {
		t.Errorf("aggregates = %v/%v, want nil", imp.Session.AvgQuality, imp.Session.BestQuality)
	}
	if imp.Reps == nil {
		t.Error("reps should be an empty slice, not nil")
	}
}

// TestSessionImportValidate verifies malformed imports are rejected.
func TestSessionImportValidate(t *testing.T) {
	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	valid := SessionImport{Session: SessionRow{ID: uuid.New(), ExerciseKey: "squat", StartedAt: start, EndedAt: start}}

	tests := []struct {
		name   string
		mutate func(*SessionImport)
		ok     bool
	}{
		{"valid", func(*SessionImport) {}, true},
		{"missing id", func(s *SessionImport) { s.Session.ID = uuid.Nil }, false},
		{"missing exercise", func(s *SessionImport) { s.Session.ExerciseKey = "" }, false},
		{"missing start", func(s *SessionImport) { s.Session.StartedAt = time.Time{} }, false},
		{"end before start", func(s *SessionImport) { s.Session.EndedAt = start.Add(-time.Second) }, false},
		{"bad rep number", func(s *SessionImport) { s.Reps = []RepRow{{RepNumber: 0}} }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			imp := valid
			tt.mutate(&imp)
			err := imp.Validate()
			if tt.ok && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if !tt.ok {
				var ve ValidationError
				if !errors.As(err, &ve) {
					t.Errorf("err = %v, want ValidationError", err)
				}
			}
		})
	}
}
