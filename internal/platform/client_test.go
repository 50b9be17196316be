package platform

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mediamirror/internal/logger"
	"mediamirror/internal/transport"
	"mediamirror/pkg/models"
)

const timelineJSON = `{
  "success": true,
  "response": {
    "posts": [{"id": "p1"}, {"id": "p2"}],
    "accountMedia": [{"id": "m1", "access": true}, {"id": "m2", "access": true}],
    "accountMediaBundles": [{"id": "b1", "accountMediaIds": ["m2", "m3"]}]
  }
}`

const mediaJSON = `{
  "success": true,
  "response": [
    {"id": "m3", "access": false, "preview": {"mimetype": "image/jpeg", "createdAt": 1700000000,
      "locations": [{"location": "https://cdn.example.com/m3-preview.jpg"}]}},
    {"id": "m1", "access": true, "media": {"mimetype": "video/mp4", "createdAt": 1700000000000,
      "width": 1280, "height": 720,
      "locations": [{"location": "https://cdn.example.com/m1.mp4"}]}},
    {"id": "m2", "access": false}
  ]
}`

func newPlatformServer(t *testing.T) (*httptest.Server, *[]string) {
	t.Helper()
	var queries []string
	r := chi.NewRouter()
	r.Get("/api/v1/timeline/{source}", func(w http.ResponseWriter, r *http.Request) {
		queries = append(queries, chi.URLParam(r, "source")+"?"+r.URL.Query().Get("before"))
		if r.URL.Query().Get("before") == "p2" {
			w.Write([]byte(`{"success": true, "response": {"posts": []}}`))
			return
		}
		w.Write([]byte(timelineJSON))
	})
	r.Get("/api/v1/account/media", func(w http.ResponseWriter, r *http.Request) {
		queries = append(queries, "ids="+r.URL.Query().Get("ids"))
		w.Write([]byte(mediaJSON))
	})
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, &queries
}

func newTestClient(t *testing.T, base string, previews bool) *Client {
	t.Helper()
	c, err := NewClient(base+"/", transport.NewFetcher("", ""), previews, logger.Discard())
	require.NoError(t, err)
	return c
}

func TestFetchPage(t *testing.T) {
	srv, queries := newPlatformServer(t)
	c := newTestClient(t, srv.URL, true)

	page, err := c.FetchPage(context.Background(), "creator1", "")
	require.NoError(t, err)

	assert.Equal(t, []models.CatalogItem{{ID: "m1"}, {ID: "m2"}, {ID: "m3"}}, page.Items)
	assert.Equal(t, "p2", page.NextCursor)
	assert.Equal(t, []string{"creator1?0"}, *queries)

	page, err = c.FetchPage(context.Background(), "creator1", page.NextCursor)
	require.NoError(t, err)
	assert.Empty(t, page.Items)
	assert.Empty(t, page.NextCursor)
}

func TestResolve(t *testing.T) {
	srv, queries := newPlatformServer(t)
	c := newTestClient(t, srv.URL, true)

	descriptors, err := c.Resolve(context.Background(), []string{"m1", "m2", "m3"})
	require.NoError(t, err)
	require.Len(t, descriptors, 2)

	assert.Equal(t, "m1", descriptors[0].ID)
	assert.Equal(t, models.KindVideo, descriptors[0].Kind)
	assert.Equal(t, "mp4", descriptors[0].Extension)
	assert.False(t, descriptors[0].IsPreview)

	assert.Equal(t, "m3", descriptors[1].ID)
	assert.True(t, descriptors[1].IsPreview)
	assert.Equal(t, models.KindImage, descriptors[1].Kind)

	assert.Equal(t, []string{"ids=m1,m2,m3"}, *queries)
}

func TestResolveWithoutPreviews(t *testing.T) {
	srv, _ := newPlatformServer(t)
	c := newTestClient(t, srv.URL, false)

	descriptors, err := c.Resolve(context.Background(), []string{"m1", "m3"})
	require.NoError(t, err)
	require.Len(t, descriptors, 1)
	assert.Equal(t, "m1", descriptors[0].ID)
}

func TestResolveEmpty(t *testing.T) {
	c := newTestClient(t, "https://api.example.com", true)
	descriptors, err := c.Resolve(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, descriptors)
}

// MockFetcher is a mock implementation of TextFetcher
type MockFetcher struct {
	TextFunc func(ctx context.Context, url string) (string, error)
}

func (m *MockFetcher) Text(ctx context.Context, url string) (string, error) {
	return m.TextFunc(ctx, url)
}

func TestClientErrors(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		err     error
		wantErr error
		wantMsg string
	}{
		{name: "unsuccessful", body: `{"success": false}`, wantErr: ErrUnsuccessful},
		{name: "not json", body: `<html>`, wantMsg: "failed to parse response"},
		{name: "transport", err: transport.ErrRateLimited, wantErr: transport.ErrRateLimited},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := &MockFetcher{TextFunc: func(ctx context.Context, url string) (string, error) {
				return tt.body, tt.err
			}}
			c, err := NewClient("https://api.example.com", mock, true, nil)
			require.NoError(t, err)

			_, err = c.FetchPage(context.Background(), "s", "0")
			require.Error(t, err)
			if tt.wantErr != nil {
				assert.True(t, errors.Is(err, tt.wantErr))
			}
			if tt.wantMsg != "" {
				assert.Contains(t, err.Error(), tt.wantMsg)
			}
		})
	}
}

func TestNewClientRequiresBaseURL(t *testing.T) {
	_, err := NewClient("  ", &MockFetcher{}, true, nil)
	assert.ErrorIs(t, err, ErrEmptyBaseURL)
}

func TestTimelineEscapesSource(t *testing.T) {
	var got string
	mock := &MockFetcher{TextFunc: func(ctx context.Context, url string) (string, error) {
		got = url
		return `{"success": true, "response": {}}`, nil
	}}
	c, err := NewClient("https://api.example.com", mock, true, nil)
	require.NoError(t, err)

	_, err = c.Timeline(context.Background(), "a/b", "123")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(got, "https://api.example.com/api/v1/timeline/a%2Fb?before=123"), got)
}
