package spotify

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned for 404 responses. Callers treat missing
// playlists/users/artists as empty results, not failures.
var ErrNotFound = errors.New("resource not found")

// TransportError wraps network-level failures (DNS, connect, timeout).
type TransportError struct {
	URL string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport error for %s: %v", e.URL, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// RateLimitedError is returned when a request kept receiving 429 responses
// after exhausting all retries.
type RateLimitedError struct {
	URL      string
	Attempts int
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("rate limited after %d attempts: %s", e.Attempts, e.URL)
}

// UpstreamError is any non-2xx response other than 429 and 404.
type UpstreamError struct {
	URL    string
	Status int
	Body   string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream error %d for %s: %s", e.Status, e.URL, e.Body)
}
