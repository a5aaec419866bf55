// Package spotify wraps the external music-platform API behind a
// rate-limit-aware HTTP client. All calls are idempotent GETs; 429 responses
// are retried with server-supplied or exponential backoff, every other
// non-2xx status fails immediately.
package spotify

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sethvargo/go-retry"
)

const (
	// DefaultBaseURL is the production API root.
	DefaultBaseURL = "https://api.spotify.com/v1"

	defaultTimeout     = 10 * time.Second
	defaultMaxRetries  = 3
	defaultBaseBackoff = 500 * time.Millisecond
)

// Client issues authenticated GET requests against the platform API.
// Safe for concurrent use; retry state is per-request but the underlying
// transport (and therefore connection reuse) is shared.
type Client struct {
	http        *resty.Client
	tokens      TokenSource
	baseURL     string
	maxRetries  uint64
	baseBackoff time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the API root, primarily for tests.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = u }
}

// WithTimeout overrides the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http.SetTimeout(d) }
}

// WithBaseBackoff overrides the exponential backoff base delay.
func WithBaseBackoff(d time.Duration) Option {
	return func(c *Client) { c.baseBackoff = d }
}

// NewClient creates a Client using the given token source.
func NewClient(tokens TokenSource, opts ...Option) *Client {
	c := &Client{
		http:        resty.New().SetTimeout(defaultTimeout),
		tokens:      tokens,
		baseURL:     DefaultBaseURL,
		maxRetries:  defaultMaxRetries,
		baseBackoff: defaultBaseBackoff,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetJSON fetches rawURL and decodes the JSON response into out.
// 429 responses are retried up to maxRetries times, honoring Retry-After
// when present and falling back to base*2^attempt; exhausted retries yield
// *RateLimitedError. 404 yields ErrNotFound, other non-2xx *UpstreamError,
// and network failures *TransportError.
func (c *Client) GetJSON(ctx context.Context, rawURL string, out any) error {
	var (
		attempt    int
		retryAfter time.Duration
	)

	backoff := retry.WithMaxRetries(c.maxRetries, retry.BackoffFunc(func() (time.Duration, bool) {
		delay := c.baseBackoff * (1 << attempt)
		if retryAfter > 0 {
			delay = retryAfter
			retryAfter = 0
		}
		attempt++
		return delay, false
	}))

	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		token, err := c.tokens.Token(ctx)
		if err != nil {
			return fmt.Errorf("acquire token: %w", err)
		}

		resp, err := c.http.R().
			SetContext(ctx).
			SetAuthToken(token).
			Get(rawURL)
		if err != nil {
			return &TransportError{URL: rawURL, Err: err}
		}

		switch {
		case resp.StatusCode() == 429:
			if secs, perr := strconv.Atoi(resp.Header().Get("Retry-After")); perr == nil && secs > 0 {
				retryAfter = time.Duration(secs) * time.Second
			}
			return retry.RetryableError(&RateLimitedError{URL: rawURL, Attempts: attempt + 1})
		case resp.StatusCode() == 404:
			return ErrNotFound
		case resp.StatusCode() < 200 || resp.StatusCode() > 299:
			return &UpstreamError{URL: rawURL, Status: resp.StatusCode(), Body: string(resp.Body())}
		}

		if err := json.Unmarshal(resp.Body(), out); err != nil {
			return fmt.Errorf("decode response from %s: %w", rawURL, err)
		}
		return nil
	})
}

// SearchPlaylists returns playlists matching query, at most limit items.
// Entries without a stable id are dropped.
func (c *Client) SearchPlaylists(ctx context.Context, query string, limit int) ([]Playlist, error) {
	q := url.Values{}
	q.Set("q", query)
	q.Set("type", "playlist")
	q.Set("limit", strconv.Itoa(limit))

	var res searchResponse
	if err := c.GetJSON(ctx, c.baseURL+"/search?"+q.Encode(), &res); err != nil {
		return nil, err
	}

	playlists := make([]Playlist, 0, len(res.Playlists.Items))
	for _, p := range res.Playlists.Items {
		if p.ID == "" {
			continue
		}
		playlists = append(playlists, p)
	}
	return playlists, nil
}

// GetPlaylist fetches a playlist's metadata by id.
func (c *Client) GetPlaylist(ctx context.Context, id string) (*Playlist, error) {
	var p Playlist
	if err := c.GetJSON(ctx, c.baseURL+"/playlists/"+url.PathEscape(id), &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// GetPlaylistTracks fetches up to limit track items of a playlist.
func (c *Client) GetPlaylistTracks(ctx context.Context, id string, limit int) ([]TrackItem, error) {
	var page TracksPage
	u := fmt.Sprintf("%s/playlists/%s/tracks?limit=%d", c.baseURL, url.PathEscape(id), limit)
	if err := c.GetJSON(ctx, u, &page); err != nil {
		return nil, err
	}
	return page.Items, nil
}

// GetUser fetches a public user profile by id.
func (c *Client) GetUser(ctx context.Context, id string) (*User, error) {
	var u User
	if err := c.GetJSON(ctx, c.baseURL+"/users/"+url.PathEscape(id), &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// GetUserPlaylists fetches up to limit of a user's public playlists.
func (c *Client) GetUserPlaylists(ctx context.Context, id string, limit int) ([]Playlist, error) {
	var page PlaylistsPage
	u := fmt.Sprintf("%s/users/%s/playlists?limit=%d", c.baseURL, url.PathEscape(id), limit)
	if err := c.GetJSON(ctx, u, &page); err != nil {
		return nil, err
	}
	return page.Items, nil
}

// GetArtist fetches an artist by id.
func (c *Client) GetArtist(ctx context.Context, id string) (*Artist, error) {
	var a Artist
	if err := c.GetJSON(ctx, c.baseURL+"/artists/"+url.PathEscape(id), &a); err != nil {
		return nil, err
	}
	return &a, nil
}
