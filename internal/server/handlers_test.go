package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/claude/formcoach/internal/coach"
	"github.com/claude/formcoach/internal/coach/coachtest"
	"github.com/claude/formcoach/internal/metrics"
	"github.com/claude/formcoach/internal/models"
	"github.com/claude/formcoach/internal/profiles"
	"github.com/claude/formcoach/internal/storage"
	"github.com/claude/formcoach/internal/tracker"
	"github.com/google/uuid"
)

type fakeStore struct {
	mu       sync.Mutex
	pingErr  error
	users    map[string]int
	imports  []models.SessionImport
	logs     []storage.ImportLog
	sessions []models.SessionRow
	reps     map[uuid.UUID][]models.RepRow
}

func newFakeStore() *fakeStore {
	return &fakeStore{users: map[string]int{}, reps: map[uuid.UUID][]models.RepRow{}}
}

func (f *fakeStore) Ping(context.Context) error { return f.pingErr }

func (f *fakeStore) GetOrCreateUser(_ context.Context, login, _ string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if id, ok := f.users[login]; ok {
		return id, nil
	}
	f.users[login] = len(f.users) + 2
	return f.users[login], nil
}

func (f *fakeStore) QuerySessions(_ context.Context, start, end time.Time, userID int, exercise string) ([]models.SessionRow, error) {
	var out []models.SessionRow
	for _, s := range f.sessions {
		if s.UserID != userID || s.StartedAt.Before(start) || !s.StartedAt.Before(end) {
			continue
		}
		if exercise != "" && s.ExerciseKey != exercise {
			continue
		}
		out = append(out, s)
	}
	return out, nil
}

func (f *fakeStore) GetSessionReps(_ context.Context, id uuid.UUID, _ int) ([]models.RepRow, error) {
	reps, ok := f.reps[id]
	if !ok {
		return nil, fmt.Errorf("session %s: %w", id, storage.ErrNotFound)
	}
	return reps, nil
}

func (f *fakeStore) GetExerciseStats(context.Context, time.Time, time.Time, int) ([]models.ExerciseStat, error) {
	return nil, nil
}

func (f *fakeStore) SaveImport(_ context.Context, imp models.SessionImport) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, prev := range f.imports {
		if prev.Session.ID == imp.Session.ID && prev.Session.UserID != imp.Session.UserID {
			return 0, fmt.Errorf("upserting session %s: %w", imp.Session.ID, storage.ErrConflict)
		}
	}
	f.imports = append(f.imports, imp)
	return int64(len(imp.Reps)), nil
}

func (f *fakeStore) InsertImportLog(_ context.Context, l storage.ImportLog) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logs = append(f.logs, l)
	return int64(len(f.logs)), nil
}

func (f *fakeStore) QueryImportLogs(context.Context, int, int) ([]storage.ImportLog, error) {
	return f.logs, nil
}

func newTestServer(t *testing.T) (*Server, *fakeStore) {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := newFakeStore()
	tr := tracker.NewManager(coachtest.Catalog(), coach.DefaultOptions(), store, metrics.NewTestManager(), log)
	return New(tr, store, "test-key", "test", log), store
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	if strings.HasPrefix(path, "/api/v1/ingest") {
		req.Header.Set("X-API-Key", "test-key")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(v); err != nil {
		t.Fatalf("decode error: %v (body %q)", err, rec.Body.String())
	}
}

func frameBody(angle, ts float64) string {
	req := frameRequest{Timestamp: &ts, Landmarks: map[string]coach.Landmark{}}
	for name, lm := range coachtest.KneeFrame(angle) {
		// Send upper-case names to exercise normalization.
		req.Landmarks[strings.ToUpper(name[:4])+"_"+strings.ToUpper(name[4:])] = lm
	}
	b, _ := json.Marshal(req)
	return string(b)
}

// TestHandleHealth verifies health reports the catalog size and database state.
func TestHandleHealth(t *testing.T) {
	s, store := newTestServer(t)
	rec := do(t, s, http.MethodGet, "/api/v1/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body map[string]any
	decode(t, rec, &body)
	if body["exercises"] != float64(2) {
		t.Errorf("exercises = %v, want 2", body["exercises"])
	}

	store.pingErr = errors.New("down")
	if rec := do(t, s, http.MethodGet, "/api/v1/health", ""); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status with db down = %d, want 503", rec.Code)
	}
}

// TestHandleExercises verifies the catalog listing, category filter and detail lookup.
func TestHandleExercises(t *testing.T) {
	s, _ := newTestServer(t)

	var cats []string
	decode(t, do(t, s, http.MethodGet, "/api/v1/categories", ""), &cats)
	if len(cats) != 2 || cats[0] != "Legs" {
		t.Errorf("categories = %v", cats)
	}

	var list []profiles.Entry
	decode(t, do(t, s, http.MethodGet, "/api/v1/exercises?category=Legs", ""), &list)
	if len(list) != 1 || list[0].Key != "squat" {
		t.Errorf("exercises = %+v", list)
	}

	var detail profiles.Detail
	decode(t, do(t, s, http.MethodGet, "/api/v1/exercises/curl", ""), &detail)
	if detail.PrimaryJoint != "elbow" || len(detail.Joints) != 1 {
		t.Errorf("detail = %+v", detail)
	}

	if rec := do(t, s, http.MethodGet, "/api/v1/exercises/deadlift", ""); rec.Code != http.StatusNotFound {
		t.Errorf("unknown exercise status = %d, want 404", rec.Code)
	}
}

// TestStartSessionErrors verifies a missing key is 400 and an unknown key is 404.
func TestStartSessionErrors(t *testing.T) {
	s, _ := newTestServer(t)
	tests := []struct {
		body string
		want int
	}{
		{`{}`, http.StatusBadRequest},
		{`not json`, http.StatusBadRequest},
		{`{"exercise_key":"deadlift"}`, http.StatusNotFound},
	}
	for _, tt := range tests {
		if rec := do(t, s, http.MethodPost, "/api/v1/sessions", tt.body); rec.Code != tt.want {
			t.Errorf("body %s: status = %d, want %d", tt.body, rec.Code, tt.want)
		}
	}
}

// TestSessionLifecycle drives a live session through frames, reset and stop.
func TestSessionLifecycle(t *testing.T) {
	s, store := newTestServer(t)

	rec := do(t, s, http.MethodPost, "/api/v1/sessions", `{"exercise_key":"squat"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("start status = %d, want 201", rec.Code)
	}
	var info tracker.Info
	decode(t, rec, &info)
	base := "/api/v1/sessions/" + info.ID.String()

	var snap coach.Snapshot
	for i, a := range coachtest.Cycle(2) {
		rec := do(t, s, http.MethodPost, base+"/frames", frameBody(a, float64(i)*0.1))
		if rec.Code != http.StatusOK {
			t.Fatalf("frame status = %d: %s", rec.Code, rec.Body.String())
		}
		decode(t, rec, &snap)
	}
	if snap.RepCount != 2 {
		t.Errorf("rep count = %d, want 2", snap.RepCount)
	}
	if !snap.Tracked {
		t.Error("knee should be tracked")
	}

	var got tracker.Info
	decode(t, do(t, s, http.MethodGet, base, ""), &got)
	if got.Snapshot.RepCount != 2 {
		t.Errorf("GET rep count = %d, want 2", got.Snapshot.RepCount)
	}

	rec = do(t, s, http.MethodDelete, base, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("stop status = %d", rec.Code)
	}
	var stop stopResponse
	decode(t, rec, &stop)
	if stop.Summary.RepCount != 2 || !stop.Persisted {
		t.Errorf("stop = %+v", stop)
	}
	if len(store.imports) != 1 || len(store.imports[0].Reps) != 2 {
		t.Errorf("stored imports = %+v", store.imports)
	}

	if rec := do(t, s, http.MethodGet, base, ""); rec.Code != http.StatusNotFound {
		t.Errorf("after stop status = %d, want 404", rec.Code)
	}
}

// TestFrameValidation verifies malformed frame requests are rejected.
func TestFrameValidation(t *testing.T) {
	s, _ := newTestServer(t)
	var info tracker.Info
	decode(t, do(t, s, http.MethodPost, "/api/v1/sessions", `{"exercise_key":"squat"}`), &info)
	base := "/api/v1/sessions/" + info.ID.String()

	if rec := do(t, s, http.MethodPost, base+"/frames", `{"landmarks":{}}`); rec.Code != http.StatusBadRequest {
		t.Errorf("missing timestamp status = %d, want 400", rec.Code)
	}
	if rec := do(t, s, http.MethodPost, "/api/v1/sessions/not-a-uuid/frames", frameBody(170, 0)); rec.Code != http.StatusBadRequest {
		t.Errorf("bad id status = %d, want 400", rec.Code)
	}
	if rec := do(t, s, http.MethodPost, "/api/v1/sessions/"+uuid.NewString()+"/frames", frameBody(170, 0)); rec.Code != http.StatusNotFound {
		t.Errorf("unknown session status = %d, want 404", rec.Code)
	}

	// An empty frame is accepted and reported as untracked.
	var snap coach.Snapshot
	decode(t, do(t, s, http.MethodPost, base+"/frames", `{"timestamp":0,"landmarks":{}}`), &snap)
	if snap.Tracked || snap.CurrentAngle != coach.NeutralAngle {
		t.Errorf("empty frame snapshot = %+v", snap)
	}
}

// TestResetAndCalibrate verifies the optional reset body and calibration errors.
func TestResetAndCalibrate(t *testing.T) {
	s, _ := newTestServer(t)
	var info tracker.Info
	decode(t, do(t, s, http.MethodPost, "/api/v1/sessions", `{"exercise_key":"squat"}`), &info)
	base := "/api/v1/sessions/" + info.ID.String()

	if rec := do(t, s, http.MethodPost, base+"/reset", ""); rec.Code != http.StatusOK {
		t.Errorf("empty reset status = %d, want 200", rec.Code)
	}
	var got tracker.Info
	decode(t, do(t, s, http.MethodPost, base+"/reset", `{"exercise_key":"curl"}`), &got)
	if got.Exercise != "curl" {
		t.Errorf("exercise = %q, want curl", got.Exercise)
	}

	if rec := do(t, s, http.MethodPost, base+"/calibrate", `{"flexed":170,"extended":100}`); rec.Code != http.StatusBadRequest {
		t.Errorf("invalid calibration status = %d, want 400", rec.Code)
	}
	if rec := do(t, s, http.MethodPost, base+"/calibrate", `{"flexed":50,"extended":140}`); rec.Code != http.StatusOK {
		t.Errorf("calibration status = %d, want 200", rec.Code)
	}
}

// TestIngestSession verifies imports are validated, attributed and logged.
func TestIngestSession(t *testing.T) {
	s, store := newTestServer(t)
	start := time.Date(2026, 4, 2, 18, 0, 0, 0, time.UTC)
	imp := models.SessionImport{
		Session: models.SessionRow{ID: uuid.New(), UserID: 99, ExerciseKey: "squat", StartedAt: start, EndedAt: start.Add(time.Minute)},
		Reps:    []models.RepRow{{RepNumber: 1, CompletedAt: start.Add(5 * time.Second), MinAngle: 88, Quality: 96}},
	}
	body, _ := json.Marshal(imp)

	rec := do(t, s, http.MethodPost, "/api/v1/ingest/sessions", string(body))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	if len(store.imports) != 1 {
		t.Fatalf("imports = %d, want 1", len(store.imports))
	}
	got := store.imports[0]
	if got.Session.UserID != 1 {
		t.Errorf("user_id = %d, want 1 (caller)", got.Session.UserID)
	}
	if got.Session.Source != models.SourceReplay || got.Session.ExerciseName != "Squat" {
		t.Errorf("session = %+v", got.Session)
	}
	if got.Reps[0].SessionID != imp.Session.ID {
		t.Errorf("rep session_id = %v, want %v", got.Reps[0].SessionID, imp.Session.ID)
	}
	if len(store.logs) != 1 || store.logs[0].Status != "success" {
		t.Errorf("import logs = %+v", store.logs)
	}

	imp.Session.ExerciseKey = "deadlift"
	body, _ = json.Marshal(imp)
	if rec := do(t, s, http.MethodPost, "/api/v1/ingest/sessions", string(body)); rec.Code != http.StatusNotFound {
		t.Errorf("unknown exercise status = %d, want 404", rec.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/ingest/sessions", strings.NewReader(string(body)))
	rec = httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("no key status = %d, want 401", rec.Code)
	}
}

// TestHistory verifies stored sessions are filtered and unknown reps are 404.
func TestHistory(t *testing.T) {
	s, store := newTestServer(t)
	id := uuid.New()
	store.sessions = []models.SessionRow{
		{ID: id, UserID: 1, ExerciseKey: "squat", StartedAt: time.Date(2026, 2, 3, 8, 0, 0, 0, time.UTC)},
		{ID: uuid.New(), UserID: 1, ExerciseKey: "curl", StartedAt: time.Date(2026, 2, 4, 8, 0, 0, 0, time.UTC)},
		{ID: uuid.New(), UserID: 2, ExerciseKey: "squat", StartedAt: time.Date(2026, 2, 4, 8, 0, 0, 0, time.UTC)},
	}
	store.reps[id] = []models.RepRow{{SessionID: id, RepNumber: 1, Quality: 90}}

	var rows []models.SessionRow
	decode(t, do(t, s, http.MethodGet, "/api/v1/history/sessions?start=2026-02-01&end=2026-02-28&exercise=squat", ""), &rows)
	if len(rows) != 1 || rows[0].ID != id {
		t.Errorf("sessions = %+v", rows)
	}

	var reps []models.RepRow
	decode(t, do(t, s, http.MethodGet, "/api/v1/history/sessions/"+id.String()+"/reps", ""), &reps)
	if len(reps) != 1 {
		t.Errorf("reps = %+v", reps)
	}
	if rec := do(t, s, http.MethodGet, "/api/v1/history/sessions/"+uuid.NewString()+"/reps", ""); rec.Code != http.StatusNotFound {
		t.Errorf("unknown session status = %d, want 404", rec.Code)
	}
	if rec := do(t, s, http.MethodGet, "/api/v1/history/sessions?start=yesterday", ""); rec.Code != http.StatusBadRequest {
		t.Errorf("bad start status = %d, want 400", rec.Code)
	}

	var stats []models.ExerciseStat
	decode(t, do(t, s, http.MethodGet, "/api/v1/history/stats", ""), &stats)
	if stats == nil {
		t.Error("stats should encode as an empty array")
	}
}

// TestParseTimeRangeDateOnlyEnd verifies a date-only end includes that whole day.
func TestParseTimeRangeDateOnlyEnd(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?start=2026-01-01&end=2026-01-31", nil)
	start, end, err := parseTimeRange(req)
	if err != nil {
		t.Fatal(err)
	}
	if !start.Equal(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("start = %v", start)
	}
	if !end.Equal(time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("end = %v, want 2026-02-01", end)
	}
}

// TestSessionOwnership verifies live sessions are only reachable by the
// tailnet user who started them.
func TestSessionOwnership(t *testing.T) {
	s, store := newTestServer(t)
	who := &fakeWhoIs{login: "alice@example.com"}
	s.SetTailscale(who)

	var info tracker.Info
	decode(t, do(t, s, http.MethodPost, "/api/v1/sessions", `{"exercise_key":"squat"}`), &info)
	base := "/api/v1/sessions/" + info.ID.String()
	if rec := do(t, s, http.MethodPost, base+"/frames", frameBody(170, 0)); rec.Code != http.StatusOK {
		t.Fatalf("owner frame status = %d", rec.Code)
	}

	who.login = "bob@example.com"
	tests := []struct {
		method, path, body string
	}{
		{http.MethodGet, base, ""},
		{http.MethodPost, base + "/frames", frameBody(90, 0.1)},
		{http.MethodPost, base + "/reset", ""},
		{http.MethodPost, base + "/calibrate", `{"flexed":100}`},
		{http.MethodDelete, base, ""},
	}
	for _, tt := range tests {
		if rec := do(t, s, tt.method, tt.path, tt.body); rec.Code != http.StatusNotFound {
			t.Errorf("%s %s as other user: status = %d, want 404", tt.method, tt.path, rec.Code)
		}
	}
	if len(store.imports) != 0 {
		t.Errorf("other user stored %d imports", len(store.imports))
	}

	who.login = "alice@example.com"
	var stop stopResponse
	decode(t, do(t, s, http.MethodDelete, base, ""), &stop)
	if !stop.Persisted {
		t.Error("owner stop not persisted")
	}
	if len(store.imports) != 1 || store.imports[0].Session.UserID != store.users["alice@example.com"] {
		t.Errorf("stored imports = %+v", store.imports)
	}
}

// TestStopWithoutFramesNotPersisted verifies the stop response reports
// sessions that were not written.
func TestStopWithoutFramesNotPersisted(t *testing.T) {
	s, store := newTestServer(t)
	var info tracker.Info
	decode(t, do(t, s, http.MethodPost, "/api/v1/sessions", `{"exercise_key":"squat"}`), &info)

	var stop stopResponse
	decode(t, do(t, s, http.MethodDelete, "/api/v1/sessions/"+info.ID.String(), ""), &stop)
	if stop.Persisted {
		t.Error("persisted = true for a session without frames")
	}
	if len(store.imports) != 0 {
		t.Errorf("imports = %d, want 0", len(store.imports))
	}
}

// TestIngestSessionOtherUsersID verifies a session ID already stored for one
// user cannot be overwritten by another.
func TestIngestSessionOtherUsersID(t *testing.T) {
	s, store := newTestServer(t)
	who := &fakeWhoIs{login: "alice@example.com"}
	s.SetTailscale(who)

	start := time.Date(2026, 4, 2, 18, 0, 0, 0, time.UTC)
	imp := models.SessionImport{
		Session: models.SessionRow{ID: uuid.New(), ExerciseKey: "squat", StartedAt: start, EndedAt: start.Add(time.Minute)},
	}
	body, _ := json.Marshal(imp)
	if rec := do(t, s, http.MethodPost, "/api/v1/ingest/sessions", string(body)); rec.Code != http.StatusOK {
		t.Fatalf("alice status = %d: %s", rec.Code, rec.Body.String())
	}

	who.login = "bob@example.com"
	if rec := do(t, s, http.MethodPost, "/api/v1/ingest/sessions", string(body)); rec.Code != http.StatusConflict {
		t.Errorf("bob status = %d, want 409", rec.Code)
	}
	if len(store.imports) != 1 || store.imports[0].Session.UserID != store.users["alice@example.com"] {
		t.Errorf("stored imports = %+v", store.imports)
	}
	if n := len(store.logs); n != 2 || store.logs[1].Status != "error" {
		t.Errorf("import logs = %+v", store.logs)
	}
}
