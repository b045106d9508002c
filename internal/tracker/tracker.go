// Package tracker holds the live exercise sessions of the server.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/claude/formcoach/internal/coach"
	"github.com/claude/formcoach/internal/metrics"
	"github.com/claude/formcoach/internal/models"
	"github.com/google/uuid"
)

// ErrSessionNotFound is returned for unknown or already stopped sessions.
var ErrSessionNotFound = errors.New("session not found")

// DefaultIdleTimeout is how long a session may go without frames before
// the sweeper stops it.
const DefaultIdleTimeout = 10 * time.Minute

// Recorder persists finished sessions.
type Recorder interface {
	SaveImport(ctx context.Context, imp models.SessionImport) (int64, error)
}

// Info describes a live session.
type Info struct {
	ID        uuid.UUID      `json:"id"`
	UserID    int            `json:"user_id"`
	Exercise  string         `json:"exercise"`
	Name      string         `json:"exercise_name"`
	StartedAt time.Time      `json:"started_at"`
	Snapshot  coach.Snapshot `json:"snapshot"`
}

// Calibration overrides the primary thresholds of one session. Zero fields
// keep the current value.
type Calibration struct {
	Flexed       float64 `json:"flexed"`
	Extended     float64 `json:"extended"`
	ExcellentMin float64 `json:"excellent_min"`
	ExcellentMax float64 `json:"excellent_max"`
}

type live struct {
	mu sync.Mutex

	id        uuid.UUID
	userID    int
	session   *coach.Session
	startedAt time.Time
	lastSeen  time.Time

	// first engine timestamp, anchoring rep times to startedAt
	firstTS  float64
	hasFrame bool
}

func (l *live) info() Info {
	p := l.session.Profile()
	return Info{
		ID:        l.id,
		UserID:    l.userID,
		Exercise:  p.Key,
		Name:      p.Name,
		StartedAt: l.startedAt,
		Snapshot:  l.session.Snapshot(),
	}
}

// Manager owns the live sessions. Frames for one session are serialized;
// different sessions proceed in parallel.
type Manager struct {
	catalog *coach.Catalog
	opts    coach.Options
	rec     Recorder
	metrics *metrics.Manager
	log     *slog.Logger
	now     func() time.Time

	mu       sync.RWMutex
	sessions map[uuid.UUID]*live
}

// NewManager creates a Manager. rec may be nil, in which case stopped
// sessions are not persisted.
func NewManager(catalog *coach.Catalog, opts coach.Options, rec Recorder, m *metrics.Manager, log *slog.Logger) *Manager {
	return &Manager{
		catalog:  catalog,
		opts:     opts,
		rec:      rec,
		metrics:  m,
		log:      log,
		now:      time.Now,
		sessions: make(map[uuid.UUID]*live),
	}
}

// Catalog returns the exercise catalog sessions are started from.
func (m *Manager) Catalog() *coach.Catalog {
	return m.catalog
}

// Start opens a session for the exercise.
func (m *Manager) Start(userID int, exerciseKey string) (Info, error) {
	p, err := m.catalog.Lookup(exerciseKey)
	if err != nil {
		return Info{}, err
	}
	now := m.now()
	l := &live{
		id:        uuid.New(),
		userID:    userID,
		session:   coach.NewSession(p, m.opts),
		startedAt: now,
		lastSeen:  now,
	}

	m.mu.Lock()
	m.sessions[l.id] = l
	n := len(m.sessions)
	m.mu.Unlock()

	m.metrics.ActiveSessions.Set(float64(n))
	m.log.Info("session started", "id", l.id, "exercise", p.Key, "user_id", userID)
	return l.info(), nil
}

// Get returns the current state of a session owned by userID.
func (m *Manager) Get(id uuid.UUID, userID int) (Info, error) {
	l, err := m.lookup(id, userID)
	if err != nil {
		return Info{}, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.info(), nil
}

// Process feeds one frame captured at ts seconds to the session.
func (m *Manager) Process(id uuid.UUID, userID int, f coach.Frame, ts float64) (coach.Snapshot, error) {
	l, err := m.lookup(id, userID)
	if err != nil {
		return coach.Snapshot{}, err
	}

	l.mu.Lock()
	if !l.hasFrame {
		l.firstTS, l.hasFrame = ts, true
	}
	prev := l.session.Snapshot().Feedback
	snap := l.session.Process(f, ts)
	l.lastSeen = m.now()
	l.mu.Unlock()

	m.metrics.ObserveFrame(prev, snap)
	if snap.Rep != nil {
		m.log.Debug("rep completed", "id", id, "rep", snap.Rep.Number, "quality", snap.Rep.Quality)
	}
	return snap, nil
}

// Reset clears a session's progress. A non-empty exerciseKey switches the
// session to that exercise; otherwise the current profile, including any
// calibration, is kept.
func (m *Manager) Reset(id uuid.UUID, userID int, exerciseKey string) (Info, error) {
	l, err := m.lookup(id, userID)
	if err != nil {
		return Info{}, err
	}
	var p *coach.Profile
	if exerciseKey != "" {
		if p, err = m.catalog.Lookup(exerciseKey); err != nil {
			return Info{}, err
		}
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.session.Reset(p)
	l.startedAt = m.now()
	l.hasFrame = false
	return l.info(), nil
}

// Calibrate replaces the session's primary thresholds and resets it. The
// shared catalog profile is not modified.
func (m *Manager) Calibrate(id uuid.UUID, userID int, c Calibration) (Info, error) {
	l, err := m.lookup(id, userID)
	if err != nil {
		return Info{}, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	current := l.session.Profile()
	_, pr := current.Primary()
	if c.Flexed > 0 {
		pr.Flexed = c.Flexed
	}
	if c.Extended > 0 {
		pr.Extended = c.Extended
	}
	if c.ExcellentMin > 0 {
		pr.ExcellentMin = c.ExcellentMin
	}
	if c.ExcellentMax > 0 {
		pr.ExcellentMax = c.ExcellentMax
	}
	if pr.ExcellentMax < pr.ExcellentMin {
		return Info{}, fmt.Errorf("calibrating: excellent_max (%.1f) below excellent_min (%.1f)", pr.ExcellentMax, pr.ExcellentMin)
	}
	p, err := current.WithPrimary(pr)
	if err != nil {
		return Info{}, fmt.Errorf("calibrating: %w", err)
	}
	l.session.Reset(p)
	l.startedAt = m.now()
	l.hasFrame = false
	m.log.Info("session calibrated", "id", id, "flexed", pr.Flexed, "extended", pr.Extended)
	return l.info(), nil
}

// Stop removes a session owned by userID and persists it when at least one
// frame was processed. persisted reports whether a row was written. The
// summary is returned even if persisting fails.
func (m *Manager) Stop(ctx context.Context, id uuid.UUID, userID int) (sum coach.Summary, persisted bool, err error) {
	m.mu.Lock()
	l, ok := m.sessions[id]
	if ok && l.userID != userID {
		ok = false
	}
	if ok {
		delete(m.sessions, id)
	}
	n := len(m.sessions)
	m.mu.Unlock()
	if !ok {
		return coach.Summary{}, false, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	m.metrics.ActiveSessions.Set(float64(n))

	l.mu.Lock()
	sum = l.session.Summary()
	imp, persist := m.sessionImport(l, sum)
	l.mu.Unlock()

	m.log.Info("session stopped", "id", id, "exercise", sum.Exercise, "reps", sum.RepCount)
	if !persist || m.rec == nil {
		return sum, false, nil
	}
	if _, err := m.rec.SaveImport(ctx, imp); err != nil {
		return sum, false, fmt.Errorf("saving session %s: %w", id, err)
	}
	return sum, true, nil
}

// Len returns the number of live sessions.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Sweep stops sessions that have not received a frame within maxIdle.
// Returns the number of sessions stopped.
func (m *Manager) Sweep(ctx context.Context, maxIdle time.Duration) int {
	cutoff := m.now().Add(-maxIdle)

	m.mu.RLock()
	var idle []*live
	for _, l := range m.sessions {
		l.mu.Lock()
		if l.lastSeen.Before(cutoff) {
			idle = append(idle, l)
		}
		l.mu.Unlock()
	}
	m.mu.RUnlock()

	stopped := 0
	for _, l := range idle {
		id := l.id
		if _, _, err := m.Stop(ctx, id, l.userID); err != nil {
			if errors.Is(err, ErrSessionNotFound) {
				continue
			}
			m.log.Error("stopping idle session", "id", id, "error", err)
		}
		stopped++
	}
	return stopped
}

// Run sweeps idle sessions every interval until ctx is cancelled.
func (m *Manager) Run(ctx context.Context, interval, maxIdle time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := m.Sweep(ctx, maxIdle); n > 0 {
				m.log.Info("idle sessions stopped", "count", n)
			}
		}
	}
}

// lookup returns the session if it exists and belongs to userID. Sessions
// of other users are reported as not found.
func (m *Manager) lookup(id uuid.UUID, userID int) (*live, error) {
	m.mu.RLock()
	l, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok || l.userID != userID {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return l, nil
}

// sessionImport converts a live session to storage rows. Callers hold l.mu.
func (m *Manager) sessionImport(l *live, sum coach.Summary) (models.SessionImport, bool) {
	if !l.hasFrame {
		return models.SessionImport{}, false
	}
	p := l.session.Profile()
	row := models.SessionRow{
		ID:           l.id,
		UserID:       l.userID,
		ExerciseKey:  p.Key,
		ExerciseName: p.Name,
		Source:       models.SourceLive,
		StartedAt:    l.startedAt,
		EndedAt:      m.now(),
	}
	return models.NewSessionImport(row, sum, func(ts float64) time.Time {
		return l.startedAt.Add(time.Duration((ts - l.firstTS) * float64(time.Second)))
	}), true
}
