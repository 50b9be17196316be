package platform

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mediamirror/pkg/models"
)

const groupsJSON = `{
  "success": true,
  "response": {
    "groups": [
      {"id": "g1", "users": [{"userId": "u9", "username": "someone"}]},
      {"id": "g2", "users": [{"userId": "u1", "username": "Creator1"}]}
    ]
  }
}`

const messagesJSON = `{
  "success": true,
  "response": {
    "messages": [{"id": "msg1", "senderId": "u1"}, {"id": "msg2", "senderId": "u1"}],
    "accountMedia": [{"id": "m4", "access": true}],
    "accountMediaBundles": [{"id": "b2", "accountMediaIds": ["m5"]}]
  }
}`

const textOnlyMessagesJSON = `{
  "success": true,
  "response": {"messages": [{"id": "msg3", "senderId": "u1"}]}
}`

const postJSON = `{
  "success": true,
  "response": {
    "posts": [{"id": "1234567890123"}],
    "accountMedia": [{"id": "m6", "access": true}, {"id": "m7", "access": true}]
  }
}`

const ordersJSON = `{
  "success": true,
  "response": {
    "accountMediaOrders": [
      {"accountId": "a1", "accountMediaId": "m8", "type": 1, "createdAt": 1700000000},
      {"accountId": "a1", "accountMediaId": "m9", "type": 1, "createdAt": 1700000001, "bundleId": "b3"},
      {"accountId": "a2", "accountMediaId": "m8", "type": 2, "createdAt": 1700000002}
    ]
  }
}`

// recorder collects the requests a test server saw
type recorder struct {
	mu      sync.Mutex
	queries []string
}

func (r *recorder) add(q string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.queries = append(r.queries, q)
}

func (r *recorder) all() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.queries...)
}

func newCatalogServer(t *testing.T, groups string, groupsStatus int) (*httptest.Server, *recorder) {
	t.Helper()
	rec := &recorder{}
	r := chi.NewRouter()
	r.Get("/api/v1/group", func(w http.ResponseWriter, r *http.Request) {
		rec.add("group")
		w.WriteHeader(groupsStatus)
		w.Write([]byte(groups))
	})
	r.Get("/api/v1/message", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		rec.add("message?groupId=" + q.Get("groupId") + "&limit=" + q.Get("limit") + "&before=" + q.Get("before"))
		switch q.Get("before") {
		case "0":
			w.Write([]byte(messagesJSON))
		case "msg2":
			w.Write([]byte(textOnlyMessagesJSON))
		default:
			w.Write([]byte(`{"success": true, "response": {"messages": []}}`))
		}
	})
	r.Get("/api/v1/post", func(w http.ResponseWriter, r *http.Request) {
		rec.add("post?ids=" + r.URL.Query().Get("ids"))
		if r.URL.Query().Get("ids") != "1234567890123" {
			w.Write([]byte(`{"success": true, "response": {"posts": []}}`))
			return
		}
		w.Write([]byte(postJSON))
	})
	r.Get("/api/v1/timeline/{source}", func(w http.ResponseWriter, r *http.Request) {
		rec.add("timeline/" + chi.URLParam(r, "source") + "?before=" + r.URL.Query().Get("before"))
		w.Write([]byte(timelineJSON))
	})
	r.Get("/api/v1/account/media/orders/", func(w http.ResponseWriter, r *http.Request) {
		rec.add("orders")
		w.Write([]byte(ordersJSON))
	})
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, rec
}

func TestMessagesCatalog(t *testing.T) {
	srv, rec := newCatalogServer(t, groupsJSON, http.StatusOK)
	c := NewMessagesCatalog(newTestClient(t, srv.URL, true))
	ctx := context.Background()

	page, err := c.FetchPage(ctx, "creator1", "")
	require.NoError(t, err)
	assert.Equal(t, []models.CatalogItem{{ID: "m4"}, {ID: "m5"}}, page.Items)
	assert.Equal(t, "msg2", page.NextCursor)
	assert.False(t, page.Final)

	// a page of text messages still moves the cursor
	page, err = c.FetchPage(ctx, "creator1", page.NextCursor)
	require.NoError(t, err)
	assert.Empty(t, page.Items)
	assert.Equal(t, "msg3", page.NextCursor)
	assert.True(t, page.Advance)

	page, err = c.FetchPage(ctx, "creator1", page.NextCursor)
	require.NoError(t, err)
	assert.Empty(t, page.Items)
	assert.True(t, page.Final)

	assert.Equal(t, []string{
		"group",
		"message?groupId=g2&limit=25&before=0",
		"message?groupId=g2&limit=25&before=msg2",
		"message?groupId=g2&limit=25&before=msg3",
	}, rec.all())
}

func TestMessagesCatalogMatchesUserID(t *testing.T) {
	srv, rec := newCatalogServer(t, groupsJSON, http.StatusOK)
	c := NewMessagesCatalog(newTestClient(t, srv.URL, true))

	_, err := c.FetchPage(context.Background(), "u1", "")
	require.NoError(t, err)
	assert.Contains(t, rec.all(), "message?groupId=g2&limit=25&before=0")
}

func TestMessagesCatalogWithoutGroup(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		status int
	}{
		{name: "no matching group", body: groupsJSON, status: http.StatusOK},
		{name: "no groups at all", body: `{"success": false, "error": "missing groupId"}`, status: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, rec := newCatalogServer(t, tt.body, tt.status)
			c := NewMessagesCatalog(newTestClient(t, srv.URL, true))

			page, err := c.FetchPage(context.Background(), "stranger", "")
			require.NoError(t, err)
			assert.Empty(t, page.Items)
			assert.True(t, page.Final)
			assert.Equal(t, []string{"group"}, rec.all())
		})
	}
}

func TestMessagesCatalogGroupsFailure(t *testing.T) {
	srv, _ := newCatalogServer(t, `{}`, http.StatusInternalServerError)
	c := NewMessagesCatalog(newTestClient(t, srv.URL, true))

	_, err := c.FetchPage(context.Background(), "creator1", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to get groups")
}

func TestCollectionsCatalog(t *testing.T) {
	srv, rec := newCatalogServer(t, groupsJSON, http.StatusOK)
	c := &CollectionsCatalog{Client: newTestClient(t, srv.URL, true)}

	page, err := c.FetchPage(context.Background(), "purchases", "")
	require.NoError(t, err)
	assert.Equal(t, []models.CatalogItem{{ID: "m8"}, {ID: "m9"}}, page.Items)
	assert.True(t, page.Final)
	assert.Equal(t, []string{"orders"}, rec.all())
}

func TestPostCatalog(t *testing.T) {
	srv, rec := newCatalogServer(t, groupsJSON, http.StatusOK)
	client := newTestClient(t, srv.URL, true)

	c, err := NewPostCatalog(client, "https://example.com/post/1234567890123")
	require.NoError(t, err)

	page, err := c.FetchPage(context.Background(), "creator1", "")
	require.NoError(t, err)
	assert.Equal(t, []models.CatalogItem{{ID: "m6"}, {ID: "m7"}}, page.Items)
	assert.True(t, page.Final)
	assert.Equal(t, []string{"post?ids=1234567890123"}, rec.all())

	missing, err := NewPostCatalog(client, "9999999999")
	require.NoError(t, err)
	_, err = missing.FetchPage(context.Background(), "creator1", "")
	assert.ErrorIs(t, err, ErrPostNotFound)
}

func TestParsePostID(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr error
	}{
		{in: "1234567890123", want: "1234567890123"},
		{in: "  1234567890  ", want: "1234567890"},
		{in: "https://example.com/post/1234567890123", want: "1234567890123"},
		{in: "https://example.com/post/1234567890123?ref=share", want: "1234567890123"},
		{in: "", wantErr: ErrNoPostID},
		{in: "12345", wantErr: ErrInvalidPost},
		{in: "abc1234567890", wantErr: ErrInvalidPost},
		{in: "https://example.com/creator/1234567890123", wantErr: ErrInvalidPost},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParsePostID(tt.in)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPhases(t *testing.T) {
	c := newTestClient(t, "https://api.example.com", true)

	tests := []struct {
		mode     string
		names    []string
		optional []bool
	}{
		{mode: models.ModeNormal, names: []string{"timeline", "messages"}, optional: []bool{false, true}},
		{mode: "", names: []string{"timeline", "messages"}, optional: []bool{false, true}},
		{mode: models.ModeTimeline, names: []string{"timeline"}, optional: []bool{false}},
		{mode: models.ModeMessages, names: []string{"messages"}, optional: []bool{false}},
		{mode: models.ModeCollection, names: []string{"collection"}, optional: []bool{false}},
		{mode: models.ModeSingle, names: []string{"single"}, optional: []bool{false}},
	}

	for _, tt := range tests {
		t.Run(tt.mode, func(t *testing.T) {
			phases, err := c.Phases(tt.mode, "1234567890123")
			require.NoError(t, err)
			require.Len(t, phases, len(tt.names))
			for i, p := range phases {
				assert.Equal(t, tt.names[i], p.Name)
				assert.Equal(t, tt.optional[i], p.Optional)
				assert.NotNil(t, p.Catalog)
			}
		})
	}

	_, err := c.Phases(models.ModeSingle, "")
	assert.ErrorIs(t, err, ErrNoPostID)

	_, err = c.Phases("stories", "")
	assert.ErrorIs(t, err, ErrUnknownMode)
}

func TestNormalModeWalksTimelineThenMessages(t *testing.T) {
	srv, rec := newCatalogServer(t, groupsJSON, http.StatusOK)
	c := newTestClient(t, srv.URL, true)

	phases, err := c.Phases(models.ModeNormal, "")
	require.NoError(t, err)

	var seen []string
	for _, p := range phases {
		page, err := p.Catalog.FetchPage(context.Background(), "creator1", "")
		require.NoError(t, err)
		for _, it := range page.Items {
			seen = append(seen, it.ID)
		}
	}
	assert.Equal(t, []string{"m1", "m2", "m3", "m4", "m5"}, seen)
	assert.Equal(t, []string{
		"timeline/creator1?before=0",
		"group",
		"message?groupId=g2&limit=25&before=0",
	}, rec.all())
}
