package curate

import (
	"context"

	"github.com/rs/zerolog"

	"watchlater/internal/paginate"
	"watchlater/youtube"
)

// ResolveUploads looks up the uploads playlist of every channel id. Ids are
// deduplicated and queried in batches of youtube.MaxIDsPerRequest, so a
// batch of exactly 50 is a single request. The result holds one entry per
// channel the API returned; its order is unspecified.
func ResolveUploads(ctx context.Context, api ChannelLister, channelIDs []string) ([]youtube.UploadsSource, error) {
	log := zerolog.Ctx(ctx)

	ids := dedupe(channelIDs)
	seen := make(map[string]struct{}, len(ids))
	var sources []youtube.UploadsSource

	for _, batch := range chunk(ids, youtube.MaxIDsPerRequest) {
		fetch := func(ctx context.Context, cursor string) (paginate.Page[youtube.UploadsSource], error) {
			return api.ListChannels(ctx, batch, cursor)
		}
		for src, err := range paginate.Items(paginate.Pages(ctx, fetch)) {
			if err != nil {
				return nil, err
			}
			if _, dup := seen[src.ChannelID]; dup {
				continue
			}
			seen[src.ChannelID] = struct{}{}
			if src.PlaylistID == "" {
				log.Warn().Str("channel", src.ChannelID).Msg("channel has no uploads playlist, skipping")
				continue
			}
			sources = append(sources, src)
		}
	}

	if missing := len(ids) - len(seen); missing > 0 {
		log.Warn().Int("missing", missing).Msg("channels not returned by the API")
	}
	return sources, nil
}

// dedupe drops repeated and empty ids, keeping first occurrences in order.
func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// chunk splits ids into consecutive batches of at most size elements.
func chunk(ids []string, size int) [][]string {
	var batches [][]string
	for len(ids) > size {
		batches = append(batches, ids[:size:size])
		ids = ids[size:]
	}
	if len(ids) > 0 {
		batches = append(batches, ids)
	}
	return batches
}
