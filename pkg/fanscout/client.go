// Package fanscout is a thin client for the fanscout HTTP API. It is the
// integration surface for downstream tooling that drives discovery runs or
// pulls candidates programmatically.
package fanscout

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
)

// Config configures a Client.
type Config struct {
	// BaseURL is the server root, e.g. "http://localhost:8080".
	BaseURL string

	// APIKey authenticates every request except the health check.
	APIKey string

	// Timeout bounds each request. Defaults to 30s.
	Timeout time.Duration
}

// Client calls the fanscout API.
type Client struct {
	http *resty.Client
}

// New creates a client.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("BaseURL is required")
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}

	http := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetAuthToken(cfg.APIKey).
		SetHeader("Content-Type", "application/json")

	return &Client{http: http}, nil
}

// Health checks service health. Does not require the API key.
func (c *Client) Health(ctx context.Context) (*Health, error) {
	var out Health
	if err := c.get(ctx, "/api/v1/health", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetSettings fetches the discovery settings document.
func (c *Client) GetSettings(ctx context.Context) (*Settings, error) {
	var out Settings
	if err := c.get(ctx, "/api/v1/discovery/settings", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateSettings applies a partial settings edit and returns the saved document.
func (c *Client) UpdateSettings(ctx context.Context, update SettingsUpdate) (*Settings, error) {
	var out Settings
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(update).
		SetResult(&out).
		SetError(&Problem{}).
		Put("/api/v1/discovery/settings")
	if err != nil {
		return nil, fmt.Errorf("update settings: %w", err)
	}
	if resp.IsError() {
		return nil, responseError(resp)
	}
	return &out, nil
}

// TriggerRun starts a discovery cycle and returns its run entry. A cycle
// already in flight yields a conflict Problem.
func (c *Client) TriggerRun(ctx context.Context) (*RunEntry, error) {
	var out RunEntry
	if err := c.post(ctx, "/api/v1/discovery/run", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// TriggerExpansion starts a playlist-graph expansion pass.
func (c *Client) TriggerExpansion(ctx context.Context) (*ComboResult, error) {
	var out ComboResult
	if err := c.post(ctx, "/api/v1/discovery/expand", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListCandidates queries the candidate pool.
func (c *Client) ListCandidates(ctx context.Context, query CandidateQuery) (*CandidatePage, error) {
	params := map[string]string{}
	if query.Genre != "" {
		params["genre"] = query.Genre
	}
	if query.ArtistType != "" {
		params["artistType"] = query.ArtistType
	}
	if query.Kind != "" {
		params["kind"] = query.Kind
	}
	if query.Method != "" {
		params["method"] = query.Method
	}
	if query.SyncStatus != "" {
		params["syncStatus"] = query.SyncStatus
	}
	if query.MinScore > 0 {
		params["minScore"] = strconv.Itoa(query.MinScore)
	}
	if query.Limit > 0 {
		params["limit"] = strconv.Itoa(query.Limit)
	}
	if query.Offset > 0 {
		params["offset"] = strconv.Itoa(query.Offset)
	}

	var out CandidatePage
	if err := c.get(ctx, "/api/v1/candidates", params, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Reenrich queues candidates for profile re-enrichment and returns how many
// moved back to pending.
func (c *Client) Reenrich(ctx context.Context, userIDs []string) (int, error) {
	var out struct {
		Updated int `json:"updated"`
	}
	body := map[string][]string{"userIds": userIDs}
	if err := c.post(ctx, "/api/v1/candidates/reenrich", body, &out); err != nil {
		return 0, err
	}
	return out.Updated, nil
}

// Stats fetches candidate pool aggregates.
func (c *Client) Stats(ctx context.Context) (*Stats, error) {
	var out Stats
	if err := c.get(ctx, "/api/v1/discovery/stats", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// TriggerExport writes a CSV snapshot on the server and returns its path.
func (c *Client) TriggerExport(ctx context.Context) (*ExportResult, error) {
	var out ExportResult
	if err := c.post(ctx, "/api/v1/export", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) get(ctx context.Context, path string, params map[string]string, out any) error {
	req := c.http.R().
		SetContext(ctx).
		SetResult(out).
		SetError(&Problem{})
	if len(params) > 0 {
		req.SetQueryParams(params)
	}

	resp, err := req.Get(path)
	if err != nil {
		return fmt.Errorf("GET %s: %w", path, err)
	}
	if resp.IsError() {
		return responseError(resp)
	}
	return nil
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	req := c.http.R().
		SetContext(ctx).
		SetResult(out).
		SetError(&Problem{})
	if body != nil {
		req.SetBody(body)
	}

	resp, err := req.Post(path)
	if err != nil {
		return fmt.Errorf("POST %s: %w", path, err)
	}
	if resp.IsError() {
		return responseError(resp)
	}
	return nil
}

func responseError(resp *resty.Response) error {
	if p, ok := resp.Error().(*Problem); ok && p.Status != 0 {
		return p
	}
	return fmt.Errorf("request failed with status %d", resp.StatusCode())
}
