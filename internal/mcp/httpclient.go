package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/claude/formcoach/internal/models"
	"github.com/claude/formcoach/internal/profiles"
	"github.com/google/uuid"
)

// HTTPClient implements DataSource by calling the formcoach REST API.
// Used for remote MCP mode where the binary runs locally (stdio) but
// data lives on the remote server (accessed over Tailscale). The server
// resolves the user from the connection, so userID arguments are ignored.
type HTTPClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewHTTPClient creates an HTTPClient targeting the given base URL.
func NewHTTPClient(baseURL string) *HTTPClient {
	return &HTTPClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *HTTPClient) get(ctx context.Context, path string, params url.Values, v any) error {
	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("httpclient: create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("httpclient: %s: %w", path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("httpclient: read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("httpclient: %s returned %d: %s", path, resp.StatusCode, body)
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("httpclient: decode %s: %w", path, err)
	}
	return nil
}

func timeParams(start, end time.Time) url.Values {
	v := url.Values{}
	v.Set("start", start.Format(time.RFC3339))
	v.Set("end", end.Format(time.RFC3339))
	return v
}

func (c *HTTPClient) ListExercises(ctx context.Context, category string) ([]profiles.Entry, error) {
	params := url.Values{}
	if category != "" {
		params.Set("category", category)
	}
	var entries []profiles.Entry
	if err := c.get(ctx, "/api/v1/exercises", params, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

func (c *HTTPClient) QuerySessions(ctx context.Context, start, end time.Time, _ int, exercise string) ([]models.SessionRow, error) {
	params := timeParams(start, end)
	if exercise != "" {
		params.Set("exercise", exercise)
	}
	var sessions []models.SessionRow
	if err := c.get(ctx, "/api/v1/history/sessions", params, &sessions); err != nil {
		return nil, err
	}
	return sessions, nil
}

func (c *HTTPClient) GetSessionReps(ctx context.Context, sessionID uuid.UUID, _ int) ([]models.RepRow, error) {
	var reps []models.RepRow
	if err := c.get(ctx, "/api/v1/history/sessions/"+sessionID.String()+"/reps", nil, &reps); err != nil {
		return nil, err
	}
	return reps, nil
}

func (c *HTTPClient) GetExerciseStats(ctx context.Context, start, end time.Time, _ int) ([]models.ExerciseStat, error) {
	var stats []models.ExerciseStat
	if err := c.get(ctx, "/api/v1/history/stats", timeParams(start, end), &stats); err != nil {
		return nil, err
	}
	return stats, nil
}
