// Package platform implements the catalog of the remote media platform.
package platform

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"mediamirror/internal/logger"
	"mediamirror/internal/media"
	"mediamirror/pkg/models"
)

const (
	timelinePath = "/api/v1/timeline/"
	mediaPath    = "/api/v1/account/media"

	// firstCursor requests the newest page of a timeline
	firstCursor = "0"
	// maxErrorBody caps how much of a bad response is echoed into errors
	maxErrorBody = 200
)

var (
	ErrUnsuccessful = errors.New("platform reported failure")
	ErrEmptyBaseURL = errors.New("platform base url is empty")
)

// TextFetcher fetches a URL body as text
type TextFetcher interface {
	Text(ctx context.Context, url string) (string, error)
}

type envelope[T any] struct {
	Success  bool `json:"success"`
	Response T    `json:"response"`
}

// Post is a timeline post. Only its identifier is used, as the cursor.
type Post struct {
	ID        string `json:"id"`
	AccountID string `json:"accountId"`
	CreatedAt int64  `json:"createdAt"`
}

// Timeline is one timeline page
type Timeline struct {
	Posts        []Post               `json:"posts"`
	AccountMedia []media.AccountMedia `json:"accountMedia"`
	MediaBundles []media.Bundle       `json:"accountMediaBundles"`
}

// Client talks to the platform JSON API. It is also the catalog of a
// source's timeline.
type Client struct {
	baseURL         string
	fetcher         TextFetcher
	includePreviews bool
	log             *slog.Logger
}

// NewClient creates a new platform client
func NewClient(baseURL string, fetcher TextFetcher, includePreviews bool, log *slog.Logger) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, ErrEmptyBaseURL
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}
	return &Client{
		baseURL:         baseURL,
		fetcher:         fetcher,
		includePreviews: includePreviews,
		log:             logger.Or(log).With("component", "platform"),
	}, nil
}

// Timeline fetches the raw timeline page of sourceID before cursor
func (c *Client) Timeline(ctx context.Context, sourceID, cursor string) (*Timeline, error) {
	if cursor == "" {
		cursor = firstCursor
	}
	u := c.baseURL + timelinePath + url.PathEscape(sourceID) + "?" + url.Values{"before": {cursor}}.Encode()

	var tl Timeline
	if err := c.getJSON(ctx, u, &tl); err != nil {
		return nil, fmt.Errorf("failed to get timeline: %w", err)
	}
	return &tl, nil
}

// FetchPage returns the media identifiers of one timeline page. The next
// cursor is the last post on the page.
func (c *Client) FetchPage(ctx context.Context, sourceID, cursor string) (models.CatalogPage, error) {
	tl, err := c.Timeline(ctx, sourceID, cursor)
	if err != nil {
		return models.CatalogPage{}, err
	}

	ids := media.MediaIDs(tl.AccountMedia, tl.MediaBundles)
	page := models.CatalogPage{Items: itemsOf(ids)}
	if n := len(tl.Posts); n > 0 {
		page.NextCursor = tl.Posts[n-1].ID
	}

	c.log.Debug("fetched timeline page", "source", sourceID, "cursor", cursor, "posts", len(tl.Posts), "items", len(page.Items))
	return page, nil
}

// Resolve looks up media records by identifier and converts the
// downloadable ones to descriptors, ordered as ids
func (c *Client) Resolve(ctx context.Context, ids []string) ([]models.Descriptor, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	u := c.baseURL + mediaPath + "?ids=" + url.QueryEscape(strings.Join(ids, ","))

	var records []media.AccountMedia
	if err := c.getJSON(ctx, u, &records); err != nil {
		return nil, fmt.Errorf("failed to get media info: %w", err)
	}

	byID := make(map[string]media.AccountMedia, len(records))
	for _, r := range records {
		byID[r.ID] = r
	}

	descriptors := make([]models.Descriptor, 0, len(records))
	for _, id := range ids {
		r, ok := byID[id]
		if !ok {
			continue
		}
		d, ok := media.Parse(r, c.includePreviews)
		if !ok {
			c.log.Debug("media not downloadable", "item", id, "access", r.Access)
			continue
		}
		descriptors = append(descriptors, d)
	}
	return descriptors, nil
}

func (c *Client) getJSON(ctx context.Context, u string, out any) error {
	text, err := c.fetcher.Text(ctx, u)
	if err != nil {
		return err
	}

	var env envelope[json.RawMessage]
	if err := json.Unmarshal([]byte(text), &env); err != nil {
		return fmt.Errorf("failed to parse response: %w: %s", err, truncate(text, maxErrorBody))
	}
	if !env.Success {
		return ErrUnsuccessful
	}
	if len(env.Response) == 0 || string(env.Response) == "null" {
		return nil
	}
	if err := json.Unmarshal(env.Response, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
