package spotify

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
)

// DefaultTokenURL is the production client-credentials token endpoint.
const DefaultTokenURL = "https://accounts.spotify.com/api/token"

// tokenExpirySlack refreshes tokens slightly before they actually expire.
const tokenExpirySlack = 30 * time.Second

// TokenSource supplies bearer tokens for API requests.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// StaticTokenSource returns a TokenSource that always yields token.
func StaticTokenSource(token string) TokenSource {
	return staticTokenSource(token)
}

type staticTokenSource string

func (s staticTokenSource) Token(context.Context) (string, error) {
	return string(s), nil
}

// ClientCredentials exchanges an application id/secret for short-lived
// bearer tokens and caches them until expiry. Safe for concurrent use.
type ClientCredentials struct {
	http         *resty.Client
	tokenURL     string
	clientID     string
	clientSecret string

	mu      sync.Mutex
	token   string
	expires time.Time
}

// NewClientCredentials creates a caching client-credentials token source.
// tokenURL falls back to DefaultTokenURL when empty.
func NewClientCredentials(clientID, clientSecret, tokenURL string) *ClientCredentials {
	if tokenURL == "" {
		tokenURL = DefaultTokenURL
	}
	return &ClientCredentials{
		http:         resty.New().SetTimeout(defaultTimeout),
		tokenURL:     tokenURL,
		clientID:     clientID,
		clientSecret: clientSecret,
	}
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

// Token returns the cached token, refreshing it when expired.
func (c *ClientCredentials) Token(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && time.Now().Before(c.expires) {
		return c.token, nil
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetBasicAuth(c.clientID, c.clientSecret).
		SetHeader("Content-Type", "application/x-www-form-urlencoded").
		SetBody("grant_type=client_credentials").
		Post(c.tokenURL)
	if err != nil {
		return "", &TransportError{URL: c.tokenURL, Err: err}
	}
	if resp.StatusCode() < 200 || resp.StatusCode() > 299 {
		return "", &UpstreamError{URL: c.tokenURL, Status: resp.StatusCode(), Body: string(resp.Body())}
	}

	var tr tokenResponse
	if err := json.Unmarshal(resp.Body(), &tr); err != nil {
		return "", fmt.Errorf("decode token response: %w", err)
	}
	if tr.AccessToken == "" {
		return "", fmt.Errorf("token response missing access_token")
	}

	c.token = tr.AccessToken
	c.expires = time.Now().Add(time.Duration(tr.ExpiresIn)*time.Second - tokenExpirySlack)
	return c.token, nil
}
