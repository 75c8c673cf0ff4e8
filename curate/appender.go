package curate

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
)

// InsertPolicy decides how AppendVideos reacts to a failed insert.
type InsertPolicy string

const (
	// InsertAbort stops at the first failed insert. Later videos are not attempted.
	InsertAbort InsertPolicy = "abort"
	// InsertContinue attempts every video and reports all failures at the end.
	InsertContinue InsertPolicy = "continue"
)

// ParseInsertPolicy validates a policy name. The empty string means InsertAbort.
func ParseInsertPolicy(s string) (InsertPolicy, error) {
	switch InsertPolicy(s) {
	case "", InsertAbort:
		return InsertAbort, nil
	case InsertContinue:
		return InsertContinue, nil
	}
	return "", fmt.Errorf("curate: unknown insert policy %q (use %q or %q)", s, InsertAbort, InsertContinue)
}

// AppendVideos inserts videoIDs into playlistID in the given order, one call
// per video. It returns how many inserts succeeded. Under InsertAbort the
// error is the first *InsertError; under InsertContinue it joins every
// *InsertError. A canceled context stops the loop under either policy.
func AppendVideos(ctx context.Context, api PlaylistInserter, playlistID string, videoIDs []string, policy InsertPolicy) (int, error) {
	log := zerolog.Ctx(ctx)

	var (
		inserted int
		failures []error
	)
	for i, id := range videoIDs {
		if err := ctx.Err(); err != nil {
			failures = append(failures, err)
			break
		}

		log.Info().Str("video", id).Int("position", i).Msg("adding video to playlist")
		if err := api.InsertPlaylistItem(ctx, playlistID, id); err != nil {
			insertErr := &InsertError{PlaylistID: playlistID, VideoID: id, Position: i, Err: err}
			if policy != InsertContinue {
				return inserted, insertErr
			}
			log.Error().Err(err).Str("video", id).Msg("insert failed, continuing")
			failures = append(failures, insertErr)
			continue
		}
		inserted++
	}

	return inserted, errors.Join(failures...)
}
