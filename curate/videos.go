package curate

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"watchlater/blocklist"
	"watchlater/internal/paginate"
	"watchlater/youtube"
)

// naiveLayout is the publishedAt layout once the trailing "Z" is removed.
// Fractional seconds are accepted when parsing even though the layout has none.
const naiveLayout = "2006-01-02T15:04:05"

// ErrEmptyField is wrapped by a ParseError for a required field that is blank.
var ErrEmptyField = errors.New("empty value")

// VideoScan is the output of CollectVideos.
type VideoScan struct {
	// Videos are unsorted: grouped by playlist, newest first within each.
	Videos []VideoRecord
	// Failures holds one *ParseError per playlist whose scan was aborted.
	Failures []error
	// OrderViolations counts items newer than their predecessor in the same
	// playlist, which breaks the newest-first assumption behind early exit.
	OrderViolations int
}

// CollectVideos scans every uploads playlist newest-first and keeps videos
// published at or after cutoff whose title is not blocklisted.
//
// A playlist's scan stops at the first item published before cutoff: that
// item and everything after it are discarded and no further pages of that
// playlist are requested. A malformed item aborts only its playlist and is
// reported in VideoScan.Failures. Any other error aborts the whole scan.
// Videos are not deduplicated across playlists.
func CollectVideos(ctx context.Context, api UploadsLister, sources []youtube.UploadsSource, cutoff time.Time, blocks *blocklist.Blocklists) (VideoScan, error) {
	var scan VideoScan
	for _, src := range sources {
		videos, violations, err := scanSource(ctx, api, src, cutoff, blocks)
		scan.Videos = append(scan.Videos, videos...)
		scan.OrderViolations += violations

		var parseErr *ParseError
		switch {
		case errors.As(err, &parseErr):
			zerolog.Ctx(ctx).Error().Err(err).Str("playlist", src.PlaylistID).Msg("aborting playlist scan")
			scan.Failures = append(scan.Failures, err)
		case err != nil:
			return scan, err
		}
	}
	return scan, nil
}

// scanSource collects one playlist. Videos gathered before a parse error are
// kept.
func scanSource(ctx context.Context, api UploadsLister, src youtube.UploadsSource, cutoff time.Time, blocks *blocklist.Blocklists) ([]VideoRecord, int, error) {
	log := zerolog.Ctx(ctx).With().Str("playlist", src.PlaylistID).Logger()

	fetch := func(ctx context.Context, cursor string) (paginate.Page[youtube.UploadItem], error) {
		return api.ListUploads(ctx, src.PlaylistID, cursor)
	}

	var (
		videos     []VideoRecord
		violations int
		prev       time.Time
		index      = -1
	)
	for item, err := range paginate.Items(paginate.Pages(ctx, fetch)) {
		if err != nil {
			return videos, violations, err
		}
		index++

		published, err := ParsePublished(item.PublishedAt)
		if err != nil {
			return videos, violations, &ParseError{
				PlaylistID: src.PlaylistID, ItemIndex: index, VideoID: item.VideoID,
				Field: "publishedAt", Value: item.PublishedAt, Err: err,
			}
		}

		if !prev.IsZero() && published.After(prev) {
			violations++
			log.Warn().
				Str("video", item.VideoID).
				Time("published", published).
				Time("previous", prev).
				Msg("uploads not newest-first, early exit may drop videos")
		}
		prev = published

		if cutoff.After(published) {
			break
		}

		if sub, blocked := blocks.MatchTitle(item.Title); blocked {
			log.Debug().Str("video", item.VideoID).Str("match", sub).Msg("title blocklisted")
			continue
		}

		if item.VideoID == "" {
			return videos, violations, &ParseError{
				PlaylistID: src.PlaylistID, ItemIndex: index,
				Field: "videoId", Value: item.VideoID, Err: ErrEmptyField,
			}
		}

		videos = append(videos, VideoRecord{
			VideoID:      item.VideoID,
			Title:        item.Title,
			ChannelTitle: src.ChannelTitle,
			PlaylistID:   src.PlaylistID,
			Published:    published,
		})
	}
	return videos, violations, nil
}

// ParsePublished parses a publishedAt timestamp into a UTC instant. The API
// form "2023-08-31T10:00:00Z" has its "Z" stripped and is read as a naive UTC
// time; values with an explicit offset are read as RFC 3339.
func ParsePublished(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, ErrEmptyField
	}
	if naive, ok := strings.CutSuffix(raw, "Z"); ok {
		return time.ParseInLocation(naiveLayout, naive, time.UTC)
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}

// CutoffDate returns local midnight of the given day in loc. A nil loc means
// time.Local.
func CutoffDate(year int, month time.Month, day int, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.Local
	}
	return time.Date(year, month, day, 0, 0, 0, 0, loc)
}

// ParseCutoff parses a YYYY-MM-DD date as local midnight in loc.
func ParseCutoff(date string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	t, err := time.ParseInLocation(time.DateOnly, date, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("cutoff %q: %w", date, err)
	}
	return t, nil
}

// SortChronological returns videos ordered oldest first. Videos with equal
// publish times keep their collection order.
func SortChronological(videos []VideoRecord) []VideoRecord {
	out := slices.Clone(videos)
	slices.SortStableFunc(out, func(a, b VideoRecord) int {
		return a.Published.Compare(b.Published)
	})
	return out
}
