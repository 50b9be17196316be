// Package transport fetches raw bytes and text over HTTP.
package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
)

// maxTextBytes caps playlist and JSON bodies
const maxTextBytes = 8 << 20

var (
	ErrRateLimited  = errors.New("rate limited by upstream")
	ErrUnauthorized = errors.New("upstream rejected credentials")
)

// StatusError is returned for non-2xx responses not covered by a sentinel
type StatusError struct {
	URL    string
	Status int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s returned status %d", e.URL, e.Status)
}

// HTTPClient interface for mocking
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Fetcher downloads URLs, adding identification headers to every request
type Fetcher struct {
	client    HTTPClient
	userAgent string
	token     string
}

// NewFetcher creates a fetcher backed by a default http.Client. Requests are
// bounded by their context only, since media streams can take long.
func NewFetcher(userAgent, token string) *Fetcher {
	return NewFetcherWithClient(&http.Client{}, userAgent, token)
}

// NewFetcherWithClient creates a fetcher with a custom HTTP client
func NewFetcherWithClient(client HTTPClient, userAgent, token string) *Fetcher {
	return &Fetcher{
		client:    client,
		userAgent: userAgent,
		token:     token,
	}
}

// Get performs a GET and returns the response after status checks.
// The caller must close the body.
func (f *Fetcher) Get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}
	if f.token != "" {
		req.Header.Set("Authorization", f.token)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", url, err)
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return resp, nil
	case resp.StatusCode == http.StatusTooManyRequests:
		resp.Body.Close()
		return nil, fmt.Errorf("%w: %s", ErrRateLimited, url)
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		resp.Body.Close()
		return nil, fmt.Errorf("%w: status %d", ErrUnauthorized, resp.StatusCode)
	default:
		resp.Body.Close()
		return nil, &StatusError{URL: url, Status: resp.StatusCode}
	}
}

// Stream returns the response body for url
func (f *Fetcher) Stream(ctx context.Context, url string) (io.ReadCloser, error) {
	resp, err := f.Get(ctx, url)
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

// Text returns the response body for url as a string
func (f *Fetcher) Text(ctx context.Context, url string) (string, error) {
	resp, err := f.Get(ctx, url)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxTextBytes))
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", url, err)
	}
	return string(data), nil
}
