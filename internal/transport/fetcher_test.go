package transport

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// MockHTTPClient is a mock implementation of HTTPClient
type MockHTTPClient struct {
	DoFunc func(req *http.Request) (*http.Response, error)
}

func (m *MockHTTPClient) Do(req *http.Request) (*http.Response, error) {
	return m.DoFunc(req)
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	r := chi.NewRouter()
	r.Get("/ok", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ua=" + r.Header.Get("User-Agent") + " auth=" + r.Header.Get("Authorization")))
	})
	r.Get("/limited", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})
	r.Get("/private", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func TestFetcherText(t *testing.T) {
	srv := newTestServer(t)
	f := NewFetcher("mediamirror-test", "token-1")

	body, err := f.Text(context.Background(), srv.URL+"/ok")
	require.NoError(t, err)
	assert.Equal(t, "ua=mediamirror-test auth=token-1", body)
}

func TestFetcherStream(t *testing.T) {
	srv := newTestServer(t)
	f := NewFetcher("", "")

	rc, err := f.Stream(context.Background(), srv.URL+"/ok")
	require.NoError(t, err)
	defer rc.Close()

	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "ua="))
}

func TestFetcherStatusErrors(t *testing.T) {
	srv := newTestServer(t)
	f := NewFetcher("", "")
	ctx := context.Background()

	_, err := f.Text(ctx, srv.URL+"/limited")
	assert.ErrorIs(t, err, ErrRateLimited)

	_, err = f.Text(ctx, srv.URL+"/private")
	assert.ErrorIs(t, err, ErrUnauthorized)

	_, err = f.Stream(ctx, srv.URL+"/missing")
	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusNotFound, statusErr.Status)
}

func TestFetcherNetworkError(t *testing.T) {
	mock := &MockHTTPClient{
		DoFunc: func(req *http.Request) (*http.Response, error) {
			return nil, errors.New("connection reset")
		},
	}
	f := NewFetcherWithClient(mock, "", "")

	_, err := f.Text(context.Background(), "https://cdn.example.com/a")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to fetch")
}

func TestFetcherInvalidURL(t *testing.T) {
	f := NewFetcher("", "")
	_, err := f.Text(context.Background(), "://bad")
	assert.Error(t, err)
}
