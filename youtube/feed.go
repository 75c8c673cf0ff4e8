package youtube

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/mmcdole/gofeed"

	"watchlater/internal/paginate"
	"watchlater/internal/retry"
)

const (
	// DefaultFeedBaseURL serves the public Atom feed of a playlist.
	DefaultFeedBaseURL = "https://www.youtube.com/feeds/videos.xml"
	defaultFeedTimeout = 30 * time.Second
	maxFeedBytes       = 5 * 1024 * 1024
)

// FeedClient lists uploads from the public playlist feed instead of the Data
// API. The feed costs no quota but only carries the 15 most recent uploads,
// newest first, in a single page.
type FeedClient struct {
	client *http.Client
	parser *gofeed.Parser

	// BaseURL is the feed endpoint; the playlist id is passed as playlist_id.
	BaseURL     string
	RetryConfig retry.Config
}

// NewFeedClient creates a feed-backed uploads lister. A nil client gets a
// default client with a 30s timeout.
func NewFeedClient(client *http.Client) *FeedClient {
	if client == nil {
		client = &http.Client{Timeout: defaultFeedTimeout}
	}
	return &FeedClient{
		client:      client,
		parser:      gofeed.NewParser(),
		BaseURL:     DefaultFeedBaseURL,
		RetryConfig: retry.DefaultConfig(),
	}
}

// ListUploads fetches the feed for playlistID. The cursor is ignored because
// the feed has no continuation; the returned page never has one.
func (f *FeedClient) ListUploads(ctx context.Context, playlistID, cursor string) (paginate.Page[UploadItem], error) {
	var page paginate.Page[UploadItem]

	err := retry.Do(ctx, f.RetryConfig, IsRetryable, func(ctx context.Context) error {
		feed, err := f.fetch(ctx, playlistID)
		if err != nil {
			return err
		}

		page = paginate.Page[UploadItem]{}
		for _, item := range feed.Items {
			page.Items = append(page.Items, UploadItem{
				VideoID:     feedVideoID(item),
				Title:       item.Title,
				PublishedAt: item.Published,
			})
		}
		return nil
	})
	if err != nil {
		var kind error
		var se *statusError
		if errors.As(err, &se) {
			kind = classifyStatus(se.code, nil)
		}
		return page, &CallError{Op: "feed.get", Kind: kind, Err: err}
	}

	return page, nil
}

func (f *FeedClient) fetch(ctx context.Context, playlistID string) (*gofeed.Feed, error) {
	u, err := url.Parse(f.BaseURL)
	if err != nil {
		return nil, retry.Permanent(fmt.Errorf("parse feed url: %w", err))
	}
	q := u.Query()
	q.Set("playlist_id", playlistID)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, retry.Permanent(fmt.Errorf("create request: %w", err))
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http get: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, &statusError{code: resp.StatusCode, status: resp.Status}
	}

	feed, err := f.parser.Parse(io.LimitReader(resp.Body, maxFeedBytes))
	if err != nil {
		return nil, retry.Permanent(fmt.Errorf("parse feed: %w", err))
	}
	return feed, nil
}

// feedVideoID reads the yt:videoId extension of an Atom entry.
func feedVideoID(item *gofeed.Item) string {
	if ids := item.Extensions["yt"]["videoId"]; len(ids) > 0 {
		return ids[0].Value
	}
	return ""
}
