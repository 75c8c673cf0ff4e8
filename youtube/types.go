// Package youtube adapts the YouTube Data API v3 and the public uploads feed
// to the call shapes used by the curation pipeline: listing subscriptions,
// resolving uploads playlists, listing playlist items and inserting them.
package youtube

// MaxPageSize is the largest page the Data API serves for list calls.
const MaxPageSize = 50

// MaxIDsPerRequest is the largest number of ids channels.list accepts at once.
const MaxIDsPerRequest = 50

// ChannelRef identifies a subscribed channel.
type ChannelRef struct {
	// ID is the YouTube channel ID (e.g., "UCuAXFkgsw1L7xaCfnd5JJOw").
	ID string `json:"id"`
	// Title is the display name of the channel.
	Title string `json:"title"`
}

// UploadsSource links a channel to its implicit "all uploads" playlist.
type UploadsSource struct {
	ChannelID    string `json:"channel_id"`
	ChannelTitle string `json:"channel_title,omitempty"`
	// PlaylistID is the uploads playlist ID (usually "UU" + channel suffix).
	PlaylistID string `json:"playlist_id"`
}

// UploadItem is one entry of an uploads playlist as returned by the remote
// side. PublishedAt is kept raw so callers decide how malformed values fail.
type UploadItem struct {
	VideoID     string `json:"video_id"`
	Title       string `json:"title"`
	PublishedAt string `json:"published_at"`
}

// VideoURL returns the full YouTube URL for this item.
func (i UploadItem) VideoURL() string {
	return "https://www.youtube.com/watch?v=" + i.VideoID
}
