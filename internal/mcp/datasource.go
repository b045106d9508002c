package mcp

import (
	"context"
	"time"

	"github.com/claude/formcoach/internal/coach"
	"github.com/claude/formcoach/internal/models"
	"github.com/claude/formcoach/internal/profiles"
	"github.com/claude/formcoach/internal/storage"
	"github.com/google/uuid"
)

// DataSource abstracts the data layer for MCP tools. Both LocalSource
// (database + catalog) and HTTPClient (remote via REST API) satisfy it.
type DataSource interface {
	ListExercises(ctx context.Context, category string) ([]profiles.Entry, error)
	QuerySessions(ctx context.Context, start, end time.Time, userID int, exercise string) ([]models.SessionRow, error)
	GetSessionReps(ctx context.Context, sessionID uuid.UUID, userID int) ([]models.RepRow, error)
	GetExerciseStats(ctx context.Context, start, end time.Time, userID int) ([]models.ExerciseStat, error)
}

// LocalSource serves stored history from the database and exercises from
// the in-memory catalog.
type LocalSource struct {
	*storage.DB
	Catalog *coach.Catalog
}

// Compile-time checks.
var (
	_ DataSource = LocalSource{}
	_ DataSource = (*HTTPClient)(nil)
)

// ListExercises lists the catalog, optionally filtered by display category.
func (l LocalSource) ListExercises(_ context.Context, category string) ([]profiles.Entry, error) {
	return profiles.List(l.Catalog, category), nil
}
