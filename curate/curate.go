// Package curate implements the watch-later curation pipeline.
//
// A run has four stages, each consuming the previous stage's output:
//
//   - CollectChannels lists subscribed channels minus blocklisted titles.
//   - ResolveUploads maps channels to their uploads playlists.
//   - CollectVideos scans each uploads playlist newest-first down to a cutoff,
//     dropping blocklisted titles.
//   - AppendVideos inserts the videos, oldest first, into a playlist.
//
// Curator.Run sequences the stages. All remote calls are sequential.
package curate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"watchlater/blocklist"
	"watchlater/internal/paginate"
	"watchlater/youtube"
)

// SubscriptionLister lists the authenticated user's subscriptions.
type SubscriptionLister interface {
	ListSubscriptions(ctx context.Context, cursor string) (paginate.Page[youtube.ChannelRef], error)
}

// ChannelLister fetches channel metadata for at most youtube.MaxIDsPerRequest ids.
type ChannelLister interface {
	ListChannels(ctx context.Context, ids []string, cursor string) (paginate.Page[youtube.UploadsSource], error)
}

// UploadsLister lists the items of an uploads playlist, newest first.
type UploadsLister interface {
	ListUploads(ctx context.Context, playlistID, cursor string) (paginate.Page[youtube.UploadItem], error)
}

// PlaylistInserter appends a video to a playlist.
type PlaylistInserter interface {
	InsertPlaylistItem(ctx context.Context, playlistID, videoID string) error
}

// API is the full set of remote calls a run needs. *youtube.Client implements it.
type API interface {
	SubscriptionLister
	ChannelLister
	UploadsLister
	PlaylistInserter
}

// Configuration errors reported by Curator.Run before any remote call.
var (
	ErrNoAPI      = errors.New("curate: no API client")
	ErrNoPlaylist = errors.New("curate: no target playlist")
	ErrNoCutoff   = errors.New("curate: no cutoff")
)

// VideoRecord is a collected video. Published is always UTC.
type VideoRecord struct {
	VideoID      string    `json:"video_id"`
	Title        string    `json:"title"`
	ChannelTitle string    `json:"channel_title,omitempty"`
	PlaylistID   string    `json:"playlist_id"`
	Published    time.Time `json:"published"`
}

// Curator runs the pipeline against one target playlist.
type Curator struct {
	// API serves subscriptions, channel metadata and inserts.
	API API
	// Uploads lists uploads playlists. Nil means API.
	Uploads UploadsLister

	Blocklists *blocklist.Blocklists
	// Cutoff is the earliest publish instant kept (inclusive).
	Cutoff     time.Time
	PlaylistID string
	// InsertPolicy decides what a failed insert does to the rest of the run.
	InsertPolicy InsertPolicy
	// DryRun stops after collection; nothing is inserted.
	DryRun bool

	Logger zerolog.Logger
}

// Report summarises a run. On failure it holds everything gathered up to the
// failing stage.
type Report struct {
	RunID      string
	StartedAt  time.Time
	FinishedAt time.Time
	DryRun     bool

	Channels int
	Sources  int
	// Videos are in insertion order (oldest first).
	Videos []VideoRecord
	// SourceFailures are per-playlist scan failures (*ParseError) that did
	// not stop the run.
	SourceFailures  []error
	OrderViolations int
	Inserted        int
}

// Run executes every stage in order. Transport and auth failures abort the
// run; parse failures only abort the affected playlist's scan; insert
// failures follow InsertPolicy.
func (c *Curator) Run(ctx context.Context) (*Report, error) {
	report := &Report{
		RunID:     uuid.NewString(),
		StartedAt: time.Now(),
		DryRun:    c.DryRun,
	}
	defer func() { report.FinishedAt = time.Now() }()

	if err := c.validate(); err != nil {
		return report, err
	}

	log := c.Logger.With().Str("run", report.RunID).Logger()
	ctx = log.WithContext(ctx)

	uploads := c.Uploads
	if uploads == nil {
		uploads = c.API
	}

	channels, err := CollectChannels(ctx, c.API, c.Blocklists)
	if err != nil {
		return report, fmt.Errorf("collect channels: %w", err)
	}
	report.Channels = len(channels)
	log.Info().Int("channels", len(channels)).Msg("found channels")

	ids := make([]string, len(channels))
	for i, ch := range channels {
		ids[i] = ch.ID
	}
	sources, err := ResolveUploads(ctx, c.API, ids)
	if err != nil {
		return report, fmt.Errorf("resolve uploads: %w", err)
	}
	report.Sources = len(sources)
	log.Info().Int("playlists", len(sources)).Msg("found upload playlists")

	scan, err := CollectVideos(ctx, uploads, sources, c.Cutoff, c.Blocklists)
	report.SourceFailures = scan.Failures
	report.OrderViolations = scan.OrderViolations
	if err != nil {
		return report, fmt.Errorf("collect videos: %w", err)
	}

	videos := SortChronological(scan.Videos)
	report.Videos = videos
	log.Info().Int("videos", len(videos)).Msg("found videos")

	if c.DryRun {
		log.Info().Msg("dry run, skipping playlist inserts")
		return report, nil
	}

	ids = make([]string, len(videos))
	for i, v := range videos {
		ids[i] = v.VideoID
	}
	inserted, err := AppendVideos(ctx, c.API, c.PlaylistID, ids, c.InsertPolicy)
	report.Inserted = inserted
	if err != nil {
		return report, fmt.Errorf("append videos: %w", err)
	}
	log.Info().Int("inserted", inserted).Str("playlist", c.PlaylistID).Msg("playlist updated")

	return report, nil
}

func (c *Curator) validate() error {
	if c.API == nil {
		return ErrNoAPI
	}
	if c.Cutoff.IsZero() {
		return ErrNoCutoff
	}
	if c.PlaylistID == "" && !c.DryRun {
		return ErrNoPlaylist
	}
	if _, err := ParseInsertPolicy(string(c.InsertPolicy)); err != nil {
		return err
	}
	return nil
}
