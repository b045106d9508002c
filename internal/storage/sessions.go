package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/claude/formcoach/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// ErrNotFound is returned when a session does not exist for the user.
var ErrNotFound = errors.New("not found")

// ErrConflict is returned when an upsert targets a session owned by another user.
var ErrConflict = errors.New("session belongs to another user")

const repColumns = 5

// execer is satisfied by *pgxpool.Pool and pgx.Tx.
type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// UpsertSession inserts a session or replaces its summary columns when the
// ID already exists for the same user. Re-imports of the same recording are
// idempotent; an ID owned by another user yields ErrConflict.
func (db *DB) UpsertSession(ctx context.Context, s models.SessionRow) error {
	return upsertSession(ctx, db.Pool, s)
}

// InsertReps batch-inserts reps. Returns count inserted.
func (db *DB) InsertReps(ctx context.Context, reps []models.RepRow) (int64, error) {
	return insertReps(ctx, db.Pool, reps)
}

// SaveImport writes a session and its reps in one transaction. Returns the
// number of reps inserted.
func (db *DB) SaveImport(ctx context.Context, imp models.SessionImport) (int64, error) {
	tx, err := db.Pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if err := upsertSession(ctx, tx, imp.Session); err != nil {
		return 0, err
	}
	n, err := insertReps(ctx, tx, imp.Reps)
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("committing import: %w", err)
	}
	return n, nil
}

// upsertSessionSQL updates an existing row only when the owner matches, so
// a foreign ID affects zero rows.
const upsertSessionSQL = `INSERT INTO exercise_sessions (id, user_id, exercise_key, exercise_name, source,
	 started_at, ended_at, rep_count, avg_quality, best_quality)
	 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
	 ON CONFLICT (id) DO UPDATE SET
		ended_at = EXCLUDED.ended_at,
		rep_count = EXCLUDED.rep_count,
		avg_quality = EXCLUDED.avg_quality,
		best_quality = EXCLUDED.best_quality
	 WHERE exercise_sessions.user_id = EXCLUDED.user_id`

func upsertSession(ctx context.Context, ex execer, s models.SessionRow) error {
	tag, err := ex.Exec(ctx, upsertSessionSQL,
		s.ID, s.UserID, s.ExerciseKey, s.ExerciseName, s.Source,
		s.StartedAt, s.EndedAt, s.RepCount, s.AvgQuality, s.BestQuality)
	if err != nil {
		return fmt.Errorf("upserting session %s: %w", s.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("upserting session %s: %w", s.ID, ErrConflict)
	}
	return nil
}

func insertReps(ctx context.Context, ex execer, reps []models.RepRow) (int64, error) {
	if len(reps) == 0 {
		return 0, nil
	}
	args := make([]any, 0, len(reps)*repColumns)
	for _, r := range reps {
		args = append(args, r.SessionID, r.RepNumber, r.CompletedAt, r.MinAngle, r.Quality)
	}
	query := `INSERT INTO session_reps (session_id, rep_number, completed_at, min_angle, quality) VALUES ` +
		valuesPlaceholders(len(reps), repColumns) + " ON CONFLICT DO NOTHING"

	tag, err := ex.Exec(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("inserting reps: %w", err)
	}
	return tag.RowsAffected(), nil
}

// QuerySessions returns a user's sessions that started in [start, end),
// newest first. An empty exercise matches every exercise.
func (db *DB) QuerySessions(ctx context.Context, start, end time.Time, userID int, exercise string) ([]models.SessionRow, error) {
	query, args := sessionsQuery(start, end, userID, exercise)
	rows, err := db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying sessions: %w", err)
	}
	defer rows.Close()

	var result []models.SessionRow
	for rows.Next() {
		var s models.SessionRow
		if err := rows.Scan(&s.ID, &s.UserID, &s.ExerciseKey, &s.ExerciseName, &s.Source,
			&s.StartedAt, &s.EndedAt, &s.RepCount, &s.AvgQuality, &s.BestQuality); err != nil {
			return nil, fmt.Errorf("scanning session: %w", err)
		}
		result = append(result, s)
	}
	return result, rows.Err()
}

// GetSessionReps returns the reps of one session in order. Sessions of
// other users are reported as ErrNotFound.
func (db *DB) GetSessionReps(ctx context.Context, sessionID uuid.UUID, userID int) ([]models.RepRow, error) {
	var owner int
	err := db.Pool.QueryRow(ctx,
		`SELECT user_id FROM exercise_sessions WHERE id = $1`, sessionID).Scan(&owner)
	if errors.Is(err, pgx.ErrNoRows) || (err == nil && owner != userID) {
		return nil, fmt.Errorf("session %s: %w", sessionID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("looking up session %s: %w", sessionID, err)
	}

	rows, err := db.Pool.Query(ctx,
		`SELECT session_id, rep_number, completed_at, min_angle, quality
		 FROM session_reps
		 WHERE session_id = $1
		 ORDER BY rep_number`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("querying reps: %w", err)
	}
	defer rows.Close()

	result := []models.RepRow{}
	for rows.Next() {
		var r models.RepRow
		if err := rows.Scan(&r.SessionID, &r.RepNumber, &r.CompletedAt, &r.MinAngle, &r.Quality); err != nil {
			return nil, fmt.Errorf("scanning rep: %w", err)
		}
		result = append(result, r)
	}
	return result, rows.Err()
}

// GetExerciseStats aggregates a user's sessions per exercise in [start, end).
func (db *DB) GetExerciseStats(ctx context.Context, start, end time.Time, userID int) ([]models.ExerciseStat, error) {
	rows, err := db.Pool.Query(ctx,
		`SELECT s.exercise_key, MAX(s.exercise_name), COUNT(*), COALESCE(SUM(s.rep_count), 0),
		 AVG(s.avg_quality), MAX(s.best_quality), MAX(s.started_at)
		 FROM exercise_sessions s
		 WHERE s.user_id = $1 AND s.started_at >= $2 AND s.started_at < $3
		 GROUP BY s.exercise_key
		 ORDER BY COUNT(*) DESC, s.exercise_key`, userID, start, end)
	if err != nil {
		return nil, fmt.Errorf("querying exercise stats: %w", err)
	}
	defer rows.Close()

	var result []models.ExerciseStat
	for rows.Next() {
		var s models.ExerciseStat
		if err := rows.Scan(&s.ExerciseKey, &s.ExerciseName, &s.Sessions, &s.TotalReps,
			&s.AvgQuality, &s.BestQuality, &s.LastSession); err != nil {
			return nil, fmt.Errorf("scanning exercise stat: %w", err)
		}
		result = append(result, s)
	}
	return result, rows.Err()
}

func sessionsQuery(start, end time.Time, userID int, exercise string) (string, []any) {
	query := `SELECT id, user_id, exercise_key, exercise_name, source,
		 started_at, ended_at, rep_count, avg_quality, best_quality
		 FROM exercise_sessions
		 WHERE user_id = $1 AND started_at >= $2 AND started_at < $3`
	args := []any{userID, start, end}
	if exercise != "" {
		args = append(args, exercise)
		query += fmt.Sprintf(" AND exercise_key = $%d", len(args))
	}
	return query + " ORDER BY started_at DESC", args
}

// valuesPlaceholders renders "($1,$2),($3,$4)" for a multi-row insert.
func valuesPlaceholders(rows, cols int) string {
	var b strings.Builder
	for i := range rows {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteByte('(')
		for j := range cols {
			if j > 0 {
				b.WriteByte(',')
			}
			fmt.Fprintf(&b, "$%d", i*cols+j+1)
		}
		b.WriteByte(')')
	}
	return b.String()
}
