package curate

import (
	"context"

	"github.com/rs/zerolog"

	"watchlater/blocklist"
	"watchlater/internal/paginate"
	"watchlater/youtube"
)

// CollectChannels returns every subscribed channel whose title is not on the
// channel blocklist, in the order the API lists them.
func CollectChannels(ctx context.Context, api SubscriptionLister, blocks *blocklist.Blocklists) ([]youtube.ChannelRef, error) {
	log := zerolog.Ctx(ctx)

	var channels []youtube.ChannelRef
	for ch, err := range paginate.Items(paginate.Pages(ctx, api.ListSubscriptions)) {
		if err != nil {
			return nil, err
		}
		if blocks.BlocksChannel(ch.Title) {
			log.Debug().Str("channel", ch.Title).Msg("channel blocklisted")
			continue
		}
		channels = append(channels, ch)
	}
	return channels, nil
}
