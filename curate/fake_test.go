package curate

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"watchlater/internal/paginate"
	"watchlater/youtube"
)

var errTransport = errors.New("connection reset by peer")

// fakeAPI serves canned pages keyed by cursor and records every call.
type fakeAPI struct {
	subs     map[string]paginate.Page[youtube.ChannelRef]
	subsErr  error
	channels map[string]youtube.UploadsSource // channel id -> source
	// channelPageSize splits one ListChannels batch across cursors when > 0.
	channelPageSize int
	channelsErr     error
	uploads         map[string]map[string]paginate.Page[youtube.UploadItem] // playlist -> cursor -> page
	uploadsErr      map[string]error                                        // playlist -> error
	insertErr       map[string]error                                        // video id -> error

	subCalls     []string
	channelCalls [][]string
	uploadCalls  []string
	inserted     []string
	insertCalls  []string
}

func (f *fakeAPI) ListSubscriptions(ctx context.Context, cursor string) (paginate.Page[youtube.ChannelRef], error) {
	f.subCalls = append(f.subCalls, cursor)
	if f.subsErr != nil {
		return paginate.Page[youtube.ChannelRef]{}, f.subsErr
	}
	return f.subs[cursor], nil
}

func (f *fakeAPI) ListChannels(ctx context.Context, ids []string, cursor string) (paginate.Page[youtube.UploadsSource], error) {
	if cursor == "" {
		f.channelCalls = append(f.channelCalls, slices.Clone(ids))
	}
	if f.channelsErr != nil {
		return paginate.Page[youtube.UploadsSource]{}, f.channelsErr
	}
	if len(ids) > youtube.MaxIDsPerRequest {
		return paginate.Page[youtube.UploadsSource]{}, youtube.ErrTooManyIDs
	}

	var all []youtube.UploadsSource
	for _, id := range ids {
		if src, ok := f.channels[id]; ok {
			all = append(all, src)
		}
	}
	if f.channelPageSize <= 0 {
		return paginate.Page[youtube.UploadsSource]{Items: all}, nil
	}

	start := 0
	if cursor != "" {
		fmt.Sscanf(cursor, "offset-%d", &start)
	}
	end := min(start+f.channelPageSize, len(all))
	page := paginate.Page[youtube.UploadsSource]{Items: all[start:end]}
	if end < len(all) {
		page.NextCursor = fmt.Sprintf("offset-%d", end)
	}
	return page, nil
}

func (f *fakeAPI) ListUploads(ctx context.Context, playlistID, cursor string) (paginate.Page[youtube.UploadItem], error) {
	f.uploadCalls = append(f.uploadCalls, playlistID+"@"+cursor)
	if err := f.uploadsErr[playlistID]; err != nil {
		return paginate.Page[youtube.UploadItem]{}, err
	}
	return f.uploads[playlistID][cursor], nil
}

func (f *fakeAPI) InsertPlaylistItem(ctx context.Context, playlistID, videoID string) error {
	f.insertCalls = append(f.insertCalls, videoID)
	if err := f.insertErr[videoID]; err != nil {
		return err
	}
	f.inserted = append(f.inserted, videoID)
	return nil
}

// onePage wraps items in a single final page.
func onePage(items ...youtube.UploadItem) map[string]paginate.Page[youtube.UploadItem] {
	return map[string]paginate.Page[youtube.UploadItem]{"": {Items: items}}
}

func upload(id, title, published string) youtube.UploadItem {
	return youtube.UploadItem{VideoID: id, Title: title, PublishedAt: published}
}
