package storage

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/claude/formcoach/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
)

// TestValuesPlaceholders verifies multi-row placeholders are numbered row-major.
func TestValuesPlaceholders(t *testing.T) {
	tests := []struct {
		rows, cols int
		want       string
	}{
		{1, 1, "($1)"},
		{1, 5, "($1,$2,$3,$4,$5)"},
		{2, 3, "($1,$2,$3),($4,$5,$6)"},
		{0, 5, ""},
	}
	for _, tt := range tests {
		if got := valuesPlaceholders(tt.rows, tt.cols); got != tt.want {
			t.Errorf("valuesPlaceholders(%d, %d) = %q, want %q", tt.rows, tt.cols, got, tt.want)
		}
	}
}

// TestSessionsQueryExerciseFilter verifies the exercise filter adds a fourth
// bind parameter only when set.
func TestSessionsQueryExerciseFilter(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, 0)

	q, args := sessionsQuery(start, end, 7, "")
	if len(args) != 3 {
		t.Errorf("args without filter = %d, want 3", len(args))
	}
	if strings.Contains(q, "exercise_key = $4") {
		t.Errorf("unfiltered query has exercise clause: %s", q)
	}

	q, args = sessionsQuery(start, end, 7, "squat")
	if len(args) != 4 || args[3] != "squat" {
		t.Errorf("args with filter = %v", args)
	}
	if !strings.Contains(q, "exercise_key = $4") {
		t.Errorf("filtered query missing exercise clause: %s", q)
	}
}


type fakeExecer struct {
	tag  string
	sql  string
	args []any
}

func (f *fakeExecer) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.sql, f.args = sql, args
	return pgconn.NewCommandTag(f.tag), nil
}

// TestUpsertSessionOwner verifies the update is restricted to the owning
// user and a skipped update is reported as ErrConflict.
func TestUpsertSessionOwner(t *testing.T) {
	row := models.SessionRow{ID: uuid.New(), UserID: 2, ExerciseKey: "squat"}

	ex := &fakeExecer{tag: "INSERT 0 1"}
	if err := upsertSession(context.Background(), ex, row); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if !strings.Contains(ex.sql, "WHERE exercise_sessions.user_id = EXCLUDED.user_id") {
		t.Errorf("upsert is not owner-guarded: %s", ex.sql)
	}
	if ex.args[1] != 2 {
		t.Errorf("user_id arg = %v, want 2", ex.args[1])
	}

	ex = &fakeExecer{tag: "INSERT 0 0"}
	if err := upsertSession(context.Background(), ex, row); !errors.Is(err, ErrConflict) {
		t.Errorf("err = %v, want ErrConflict", err)
	}
}
