package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/claude/formcoach/internal/coach"
	formcoachmcp "github.com/claude/formcoach/internal/mcp"
	"github.com/claude/formcoach/internal/models"
	"github.com/claude/formcoach/internal/storage"
	"github.com/claude/formcoach/internal/tracker"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Store is the persistence the HTTP API needs. *storage.DB satisfies it.
type Store interface {
	Ping(ctx context.Context) error
	GetOrCreateUser(ctx context.Context, login, displayName string) (int, error)
	QuerySessions(ctx context.Context, start, end time.Time, userID int, exercise string) ([]models.SessionRow, error)
	GetSessionReps(ctx context.Context, sessionID uuid.UUID, userID int) ([]models.RepRow, error)
	GetExerciseStats(ctx context.Context, start, end time.Time, userID int) ([]models.ExerciseStat, error)
	SaveImport(ctx context.Context, imp models.SessionImport) (int64, error)
	InsertImportLog(ctx context.Context, log storage.ImportLog) (int64, error)
	QueryImportLogs(ctx context.Context, userID, limit int) ([]storage.ImportLog, error)
}

var _ Store = (*storage.DB)(nil)

// Server holds dependencies for HTTP handlers.
type Server struct {
	tracker *tracker.Manager
	catalog *coach.Catalog
	store   Store
	whois   whoIser
	log     *slog.Logger
	apiKey  string
	version string
	router  chi.Router
}

// New creates a new Server with all routes configured.
func New(tr *tracker.Manager, store Store, apiKey, version string, log *slog.Logger) *Server {
	s := &Server{
		tracker: tr,
		catalog: tr.Catalog(),
		store:   store,
		log:     log,
		apiKey:  apiKey,
		version: version,
		router:  chi.NewRouter(),
	}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	s.router.Use(RequestLogging(s.log))
	s.router.Use(CORS)
	s.router.Use(s.identity)

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/me", s.handleMe)

		// Exercise catalog
		r.Get("/categories", s.handleCategories)
		r.Get("/exercises", s.handleExercises)
		r.Get("/exercises/{key}", s.handleExercise)

		// Live sessions
		r.Post("/sessions", s.handleStartSession)
		r.Route("/sessions/{id}", func(r chi.Router) {
			r.Get("/", s.handleGetSession)
			r.Delete("/", s.handleStopSession)
			r.Post("/frames", s.handleFrame)
			r.Post("/reset", s.handleResetSession)
			r.Post("/calibrate", s.handleCalibrateSession)
		})

		// Stored history
		r.Get("/history/sessions", s.handleHistorySessions)
		r.Get("/history/sessions/{id}/reps", s.handleHistoryReps)
		r.Get("/history/stats", s.handleHistoryStats)
		r.Get("/imports", s.handleImportLogs)

		// Ingest (API key required)
		r.With(APIKeyAuth(s.apiKey)).Post("/ingest/sessions", s.handleIngestSession)
	})
}

// SetMetrics mounts the Prometheus handler at /metrics.
func (s *Server) SetMetrics(reg *prometheus.Registry) {
	s.router.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
}

// SetMCP mounts the MCP streamable HTTP transport at /mcp. Tool calls run
// as the user resolved by the identity middleware.
func (s *Server) SetMCP(m *mcpserver.MCPServer) {
	h := mcpserver.NewStreamableHTTPServer(m,
		mcpserver.WithHTTPContextFunc(func(ctx context.Context, r *http.Request) context.Context {
			return formcoachmcp.WithUserID(ctx, userIDFromContext(r))
		}),
	)
	s.router.Handle("/mcp", h)
}
