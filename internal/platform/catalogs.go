package platform

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"mediamirror/internal/media"
	"mediamirror/internal/transport"
	"mediamirror/pkg/models"
)

const (
	groupsPath   = "/api/v1/group"
	messagesPath = "/api/v1/message"
	postPath     = "/api/v1/post"
	ordersPath   = "/api/v1/account/media/orders/"

	messagesPerPage = 25
)

var (
	ErrPostNotFound = errors.New("post not found")
	ErrNoPostID     = errors.New("a post id is required in single mode")
	ErrInvalidPost  = errors.New("invalid post id: must be 10 or more digits or a post URL")
	ErrUnknownMode  = errors.New("unknown retrieval mode")
)

var (
	postIDPattern  = regexp.MustCompile(`^\d{10,}$`)
	postURLPattern = regexp.MustCompile(`/post/(\d{10,})`)
)

// Group is a message thread and its members
type Group struct {
	ID    string      `json:"id"`
	Users []GroupUser `json:"users"`
}

// GroupUser is one member of a message group
type GroupUser struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
}

// Has reports whether sourceID names a member by id or username
func (g Group) Has(sourceID string) bool {
	for _, u := range g.Users {
		if u.UserID == sourceID || (u.Username != "" && strings.EqualFold(u.Username, sourceID)) {
			return true
		}
	}
	return false
}

// Message is a direct message. Only its identifier is used, as the cursor.
type Message struct {
	ID        string `json:"id"`
	SenderID  string `json:"senderId"`
	CreatedAt int64  `json:"createdAt"`
}

// Messages is one page of a message group
type Messages struct {
	Messages     []Message            `json:"messages"`
	AccountMedia []media.AccountMedia `json:"accountMedia"`
	MediaBundles []media.Bundle       `json:"accountMediaBundles"`
}

// PostDetail is a single post with its media
type PostDetail struct {
	Posts        []Post               `json:"posts"`
	AccountMedia []media.AccountMedia `json:"accountMedia"`
	MediaBundles []media.Bundle       `json:"accountMediaBundles"`
}

// MediaOrder is a purchased media item
type MediaOrder struct {
	AccountID      string `json:"accountId"`
	AccountMediaID string `json:"accountMediaId"`
	Type           int    `json:"type"`
	CreatedAt      int64  `json:"createdAt"`
	BundleID       string `json:"bundleId"`
}

type groupsResponse struct {
	Groups []Group `json:"groups"`
}

type ordersResponse struct {
	Orders []MediaOrder `json:"accountMediaOrders"`
}

// Groups lists the message groups of the account. The platform answers
// 400 "missing groupId" when there are none.
func (c *Client) Groups(ctx context.Context) ([]Group, error) {
	var resp groupsResponse
	if err := c.getJSON(ctx, c.baseURL+groupsPath, &resp); err != nil {
		var statusErr *transport.StatusError
		if errors.As(err, &statusErr) && statusErr.Status == http.StatusBadRequest {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get groups: %w", err)
	}
	return resp.Groups, nil
}

// Messages fetches the messages of groupID before cursor
func (c *Client) Messages(ctx context.Context, groupID, cursor string) (*Messages, error) {
	if cursor == "" {
		cursor = firstCursor
	}
	q := url.Values{
		"groupId": {groupID},
		"limit":   {strconv.Itoa(messagesPerPage)},
		"before":  {cursor},
	}

	var msgs Messages
	if err := c.getJSON(ctx, c.baseURL+messagesPath+"?"+q.Encode(), &msgs); err != nil {
		return nil, fmt.Errorf("failed to get messages: %w", err)
	}
	return &msgs, nil
}

// Post fetches one post and its media
func (c *Client) Post(ctx context.Context, postID string) (*PostDetail, error) {
	var detail PostDetail
	if err := c.getJSON(ctx, c.baseURL+postPath+"?"+url.Values{"ids": {postID}}.Encode(), &detail); err != nil {
		return nil, fmt.Errorf("failed to get post: %w", err)
	}
	if len(detail.Posts) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrPostNotFound, postID)
	}
	return &detail, nil
}

// Orders lists the purchased media of the account
func (c *Client) Orders(ctx context.Context) ([]MediaOrder, error) {
	var resp ordersResponse
	if err := c.getJSON(ctx, c.baseURL+ordersPath, &resp); err != nil {
		return nil, fmt.Errorf("failed to get collections: %w", err)
	}
	return resp.Orders, nil
}

func itemsOf(ids []string) []models.CatalogItem {
	items := make([]models.CatalogItem, 0, len(ids))
	for _, id := range ids {
		items = append(items, models.CatalogItem{ID: id})
	}
	return items
}

// MessagesCatalog lists the media sent in the message group shared with a
// source. A source without a group has nothing to list.
type MessagesCatalog struct {
	*Client

	mu     sync.Mutex
	groups map[string]string
}

// NewMessagesCatalog creates a new messages catalog
func NewMessagesCatalog(c *Client) *MessagesCatalog {
	return &MessagesCatalog{Client: c, groups: make(map[string]string)}
}

// FetchPage returns the media of one page of messages. The next cursor is
// the last message on the page; an empty page ends the listing.
func (m *MessagesCatalog) FetchPage(ctx context.Context, sourceID, cursor string) (models.CatalogPage, error) {
	groupID, err := m.groupOf(ctx, sourceID, cursor == "")
	if err != nil {
		return models.CatalogPage{}, err
	}
	if groupID == "" {
		m.log.Info("no message history", "source", sourceID)
		return models.CatalogPage{Final: true}, nil
	}

	msgs, err := m.Messages(ctx, groupID, cursor)
	if err != nil {
		return models.CatalogPage{}, err
	}

	page := models.CatalogPage{Items: itemsOf(media.MediaIDs(msgs.AccountMedia, msgs.MediaBundles))}
	if n := len(msgs.Messages); n > 0 {
		page.NextCursor = msgs.Messages[n-1].ID
		page.Advance = true
	} else {
		page.Final = true
	}

	m.log.Debug("fetched messages page", "source", sourceID, "group", groupID, "cursor", cursor, "messages", len(msgs.Messages), "items", len(page.Items))
	return page, nil
}

// groupOf finds the group shared with sourceID, reusing an earlier lookup
// unless refresh is set
func (m *MessagesCatalog) groupOf(ctx context.Context, sourceID string, refresh bool) (string, error) {
	m.mu.Lock()
	groupID, ok := m.groups[sourceID]
	m.mu.Unlock()
	if ok && !refresh {
		return groupID, nil
	}

	groups, err := m.Groups(ctx)
	if err != nil {
		return "", err
	}
	groupID = ""
	for _, g := range groups {
		if g.Has(sourceID) {
			groupID = g.ID
			break
		}
	}

	m.mu.Lock()
	m.groups[sourceID] = groupID
	m.mu.Unlock()
	return groupID, nil
}

// CollectionsCatalog lists every purchased media item of the account in a
// single page. The source only names the destination folder.
type CollectionsCatalog struct {
	*Client
}

// FetchPage returns the purchased media identifiers, oldest order first
func (c *CollectionsCatalog) FetchPage(ctx context.Context, sourceID, cursor string) (models.CatalogPage, error) {
	orders, err := c.Orders(ctx)
	if err != nil {
		return models.CatalogPage{}, err
	}

	seen := make(map[string]bool, len(orders))
	ids := make([]string, 0, len(orders))
	for _, o := range orders {
		if o.AccountMediaID == "" || seen[o.AccountMediaID] {
			continue
		}
		seen[o.AccountMediaID] = true
		ids = append(ids, o.AccountMediaID)
	}

	c.log.Debug("fetched collections", "source", sourceID, "orders", len(orders), "items", len(ids))
	return models.CatalogPage{Items: itemsOf(ids), Final: true}, nil
}

// PostCatalog lists the media of one post
type PostCatalog struct {
	*Client
	PostID string
}

// NewPostCatalog creates a catalog for the post named by postRef, either a
// post id or a post URL
func NewPostCatalog(c *Client, postRef string) (*PostCatalog, error) {
	id, err := ParsePostID(postRef)
	if err != nil {
		return nil, err
	}
	return &PostCatalog{Client: c, PostID: id}, nil
}

// FetchPage returns the media of the post as a single page
func (p *PostCatalog) FetchPage(ctx context.Context, sourceID, cursor string) (models.CatalogPage, error) {
	detail, err := p.Post(ctx, p.PostID)
	if err != nil {
		return models.CatalogPage{}, err
	}
	ids := media.MediaIDs(detail.AccountMedia, detail.MediaBundles)

	p.log.Debug("fetched post", "source", sourceID, "post", p.PostID, "items", len(ids))
	return models.CatalogPage{Items: itemsOf(ids), Final: true}, nil
}

// ParsePostID accepts a post id of 10 or more digits, or a URL whose path
// contains /post/{id}
func ParsePostID(ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", ErrNoPostID
	}
	if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		if m := postURLPattern.FindStringSubmatch(ref); m != nil {
			return m[1], nil
		}
		return "", fmt.Errorf("%w: %s", ErrInvalidPost, ref)
	}
	if postIDPattern.MatchString(ref) {
		return ref, nil
	}
	return "", fmt.Errorf("%w: %s", ErrInvalidPost, ref)
}
