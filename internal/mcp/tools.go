package mcp

import (
	"context"
	"time"

	"github.com/claude/formcoach/internal/models"
	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"gonum.org/v1/gonum/stat"
)

// defaultTimeRange returns start/end defaulting to the last days days.
func defaultTimeRange(startStr, endStr string, days int) (time.Time, time.Time, error) {
	var start, end time.Time
	var err error

	if endStr != "" {
		end, err = parseFlexTime(endStr)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
	} else {
		end = time.Now()
	}

	if startStr != "" {
		start, err = parseFlexTime(startStr)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
	} else {
		start = end.AddDate(0, 0, -days)
	}

	return start, end, nil
}

func parseFlexTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, s)
	if err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", s)
}

// --- Tool definitions ---

var toolListExercises = mcp.NewTool("list_exercises",
	mcp.WithDescription("List supported exercises with their category and the joint that drives rep counting."),
	mcp.WithString("category", mcp.Description("Filter by display category (e.g. 'Legs', 'Chest', 'Upper Arms')")),
)

var toolGetSessions = mcp.NewTool("get_sessions",
	mcp.WithDescription("List recorded exercise sessions with rep count, average and best rep quality."),
	mcp.WithString("start", mcp.Description("Start date (ISO 8601 or YYYY-MM-DD). Defaults to 30 days ago.")),
	mcp.WithString("end", mcp.Description("End date (ISO 8601 or YYYY-MM-DD). Defaults to now.")),
	mcp.WithString("exercise", mcp.Description("Filter by exercise key (e.g. 'squat')")),
)

var toolGetSessionReps = mcp.NewTool("get_session_reps",
	mcp.WithDescription("Per-rep detail of one session: completion time, lowest joint angle reached and quality score."),
	mcp.WithString("session_id", mcp.Required(), mcp.Description("Session UUID from get_sessions")),
)

var toolGetExerciseStats = mcp.NewTool("get_exercise_stats",
	mcp.WithDescription("Per-exercise aggregates: session count, total reps, average and best quality, last session time."),
	mcp.WithString("start", mcp.Description("Start date. Defaults to 90 days ago.")),
	mcp.WithString("end", mcp.Description("End date. Defaults to now.")),
)

var toolGetQualityTrend = mcp.NewTool("get_quality_trend",
	mcp.WithDescription("Trend of average rep quality across sessions of one exercise: mean, standard deviation and least-squares slope in quality points per week."),
	mcp.WithString("exercise", mcp.Required(), mcp.Description("Exercise key (e.g. 'squat')")),
	mcp.WithString("start", mcp.Description("Start date. Defaults to 90 days ago.")),
	mcp.WithString("end", mcp.Description("End date. Defaults to now.")),
)

// --- Tool handlers ---

func (h *handlers) listExercises(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	entries, err := h.ds.ListExercises(ctx, req.GetString("category", ""))
	if err != nil {
		h.log.Error("mcp list_exercises", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}
	return jsonResult(entries)
}

func (h *handlers) getSessions(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	start, end, err := defaultTimeRange(req.GetString("start", ""), req.GetString("end", ""), 30)
	if err != nil {
		return mcp.NewToolResultError("invalid date format: " + err.Error()), nil
	}

	sessions, err := h.ds.QuerySessions(ctx, start, end, UserIDFromContext(ctx), req.GetString("exercise", ""))
	if err != nil {
		h.log.Error("mcp get_sessions", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}
	if sessions == nil {
		sessions = []models.SessionRow{}
	}
	return jsonResult(sessions)
}

func (h *handlers) getSessionReps(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	idStr, err := req.RequireString("session_id")
	if err != nil {
		return mcp.NewToolResultError("session_id parameter is required"), nil
	}
	id, err := uuid.Parse(idStr)
	if err != nil {
		return mcp.NewToolResultError("invalid session_id: " + err.Error()), nil
	}

	reps, err := h.ds.GetSessionReps(ctx, id, UserIDFromContext(ctx))
	if err != nil {
		h.log.Error("mcp get_session_reps", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}
	return jsonResult(reps)
}

func (h *handlers) getExerciseStats(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	start, end, err := defaultTimeRange(req.GetString("start", ""), req.GetString("end", ""), 90)
	if err != nil {
		return mcp.NewToolResultError("invalid date format: " + err.Error()), nil
	}

	stats, err := h.ds.GetExerciseStats(ctx, start, end, UserIDFromContext(ctx))
	if err != nil {
		h.log.Error("mcp get_exercise_stats", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}
	if stats == nil {
		stats = []models.ExerciseStat{}
	}
	return jsonResult(stats)
}

// QualityTrend summarizes session quality over time.
type QualityTrend struct {
	Exercise      string  `json:"exercise"`
	Sessions      int     `json:"sessions"`
	MeanQuality   float64 `json:"mean_quality"`
	StdQuality    float64 `json:"std_quality"`
	SlopePerWeek  float64 `json:"slope_per_week"`
	FirstQuality  float64 `json:"first_quality"`
	LatestQuality float64 `json:"latest_quality"`
}

func (h *handlers) getQualityTrend(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	exercise, err := req.RequireString("exercise")
	if err != nil {
		return mcp.NewToolResultError("exercise parameter is required"), nil
	}
	start, end, err := defaultTimeRange(req.GetString("start", ""), req.GetString("end", ""), 90)
	if err != nil {
		return mcp.NewToolResultError("invalid date format: " + err.Error()), nil
	}

	sessions, err := h.ds.QuerySessions(ctx, start, end, UserIDFromContext(ctx), exercise)
	if err != nil {
		h.log.Error("mcp get_quality_trend", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}
	return jsonResult(qualityTrend(exercise, sessions))
}

// qualityTrend fits avg_quality against session start in weeks. Sessions
// without reps are ignored; fewer than two distinct start times give a zero slope.
func qualityTrend(exercise string, sessions []models.SessionRow) QualityTrend {
	tr := QualityTrend{Exercise: exercise}
	var xs, ys []float64
	// Sessions arrive newest first.
	for i := len(sessions) - 1; i >= 0; i-- {
		s := sessions[i]
		if s.AvgQuality == nil {
			continue
		}
		xs = append(xs, s.StartedAt.Sub(time.Unix(0, 0)).Hours()/(24*7))
		ys = append(ys, *s.AvgQuality)
	}
	tr.Sessions = len(ys)
	if len(ys) == 0 {
		return tr
	}
	tr.FirstQuality, tr.LatestQuality = ys[0], ys[len(ys)-1]
	if len(ys) == 1 {
		tr.MeanQuality = ys[0]
		return tr
	}
	tr.MeanQuality, tr.StdQuality = stat.MeanStdDev(ys, nil)
	if stat.Variance(xs, nil) > 0 {
		_, tr.SlopePerWeek = stat.LinearRegression(xs, ys, nil, false)
	}
	return tr
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	result, err := mcp.NewToolResultJSON(v)
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}
