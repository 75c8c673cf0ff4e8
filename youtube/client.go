package youtube

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"

	"watchlater/internal/paginate"
	"watchlater/internal/retry"
)

// Quota costs of the Data API operations used by Client.
const (
	listCost   = 1
	insertCost = 50
)

// Client implements the pipeline's remote call shapes on YouTube Data API v3.
// Every call is a single attempt unless RetryConfig allows retries.
type Client struct {
	service  *youtube.Service
	pageSize int64

	// RetryConfig controls retries of throttled or server-side failures.
	RetryConfig retry.Config
	// Logger receives per-call debug events.
	Logger zerolog.Logger

	mu        sync.Mutex
	quotaUsed int
}

// NewClient creates a Data API client. Pass option.WithHTTPClient with an
// OAuth-authorised client; subscriptions and inserts require user credentials.
func NewClient(ctx context.Context, opts ...option.ClientOption) (*Client, error) {
	service, err := youtube.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create youtube service: %w", err)
	}

	return &Client{
		service:     service,
		pageSize:    MaxPageSize,
		RetryConfig: retry.DefaultConfig(),
		Logger:      zerolog.Nop(),
	}, nil
}

// SetPageSize sets the maxResults used by list calls, clamped to [1, 50].
func (c *Client) SetPageSize(n int) {
	switch {
	case n < 1:
		n = 1
	case n > MaxPageSize:
		n = MaxPageSize
	}
	c.pageSize = int64(n)
}

// QuotaUsed returns the estimated quota units consumed by successful calls.
func (c *Client) QuotaUsed() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.quotaUsed
}

// ListSubscriptions returns one page of the authenticated user's subscriptions.
func (c *Client) ListSubscriptions(ctx context.Context, cursor string) (paginate.Page[ChannelRef], error) {
	var page paginate.Page[ChannelRef]

	err := c.do(ctx, "subscriptions.list", listCost, func(ctx context.Context) error {
		call := c.service.Subscriptions.List([]string{"snippet"}).
			Mine(true).
			MaxResults(c.pageSize).
			Context(ctx)
		if cursor != "" {
			call = call.PageToken(cursor)
		}

		resp, err := call.Do()
		if err != nil {
			return err
		}

		page = paginate.Page[ChannelRef]{NextCursor: resp.NextPageToken}
		for _, item := range resp.Items {
			if item.Snippet == nil || item.Snippet.ResourceId == nil {
				c.Logger.Warn().Str("subscription", item.Id).Msg("subscription without channel resource, skipping")
				continue
			}
			page.Items = append(page.Items, ChannelRef{
				ID:    item.Snippet.ResourceId.ChannelId,
				Title: item.Snippet.Title,
			})
		}
		return nil
	})

	return page, err
}

// ListChannels returns one page of channel metadata for up to
// MaxIDsPerRequest channel ids, carrying each channel's uploads playlist.
func (c *Client) ListChannels(ctx context.Context, ids []string, cursor string) (paginate.Page[UploadsSource], error) {
	var page paginate.Page[UploadsSource]
	if len(ids) > MaxIDsPerRequest {
		return page, &CallError{
			Op:   "channels.list",
			Kind: ErrTooManyIDs,
			Err:  fmt.Errorf("%d ids, limit is %d", len(ids), MaxIDsPerRequest),
		}
	}

	err := c.do(ctx, "channels.list", listCost, func(ctx context.Context) error {
		call := c.service.Channels.List([]string{"contentDetails", "snippet"}).
			Id(ids...).
			MaxResults(c.pageSize).
			Context(ctx)
		if cursor != "" {
			call = call.PageToken(cursor)
		}

		resp, err := call.Do()
		if err != nil {
			return err
		}

		page = paginate.Page[UploadsSource]{NextCursor: resp.NextPageToken}
		for _, ch := range resp.Items {
			src := UploadsSource{ChannelID: ch.Id}
			if ch.Snippet != nil {
				src.ChannelTitle = ch.Snippet.Title
			}
			if ch.ContentDetails != nil && ch.ContentDetails.RelatedPlaylists != nil {
				src.PlaylistID = ch.ContentDetails.RelatedPlaylists.Uploads
			}
			page.Items = append(page.Items, src)
		}
		return nil
	})

	return page, err
}

// ListUploads returns one page of a playlist's items. For uploads playlists
// YouTube orders items newest first.
func (c *Client) ListUploads(ctx context.Context, playlistID, cursor string) (paginate.Page[UploadItem], error) {
	var page paginate.Page[UploadItem]

	err := c.do(ctx, "playlistItems.list", listCost, func(ctx context.Context) error {
		call := c.service.PlaylistItems.List([]string{"snippet"}).
			PlaylistId(playlistID).
			MaxResults(c.pageSize).
			Context(ctx)
		if cursor != "" {
			call = call.PageToken(cursor)
		}

		resp, err := call.Do()
		if err != nil {
			return err
		}

		page = paginate.Page[UploadItem]{NextCursor: resp.NextPageToken}
		for _, item := range resp.Items {
			var up UploadItem
			if s := item.Snippet; s != nil {
				up.Title = s.Title
				up.PublishedAt = s.PublishedAt
				if s.ResourceId != nil {
					up.VideoID = s.ResourceId.VideoId
				}
			}
			page.Items = append(page.Items, up)
		}
		return nil
	})

	return page, err
}

// InsertPlaylistItem appends a video to the end of a playlist.
func (c *Client) InsertPlaylistItem(ctx context.Context, playlistID, videoID string) error {
	item := &youtube.PlaylistItem{
		Snippet: &youtube.PlaylistItemSnippet{
			PlaylistId: playlistID,
			ResourceId: &youtube.ResourceId{
				Kind:    "youtube#video",
				VideoId: videoID,
			},
		},
	}

	return c.do(ctx, "playlistItems.insert", insertCost, func(ctx context.Context) error {
		_, err := c.service.PlaylistItems.Insert([]string{"snippet"}, item).Context(ctx).Do()
		return err
	})
}

// do runs fn under the retry policy, records quota usage on success and
// wraps failures as *CallError.
func (c *Client) do(ctx context.Context, op string, cost int, fn func(context.Context) error) error {
	err := retry.Do(ctx, c.RetryConfig, IsRetryable, func(ctx context.Context) error {
		if err := fn(ctx); err != nil {
			c.Logger.Debug().Err(err).Str("op", op).Msg("youtube call failed")
			return err
		}
		return nil
	})
	if err != nil {
		return wrapCallError(op, err)
	}

	c.mu.Lock()
	c.quotaUsed += cost
	used := c.quotaUsed
	c.mu.Unlock()

	c.Logger.Debug().Str("op", op).Int("quota_used", used).Msg("youtube call")
	return nil
}
