package curate

import "fmt"

// ParseError reports a malformed item in an uploads playlist. It aborts the
// scan of that playlist only.
type ParseError struct {
	PlaylistID string
	// ItemIndex is the zero-based position of the item in the playlist stream.
	ItemIndex int
	VideoID   string
	// Field is the offending field ("publishedAt", "videoId").
	Field string
	Value string
	Err   error
}

// Error returns a string representation of the parse error.
func (e *ParseError) Error() string {
	return fmt.Sprintf("curate: playlist %s item %d (video %q): bad %s %q: %v",
		e.PlaylistID, e.ItemIndex, e.VideoID, e.Field, e.Value, e.Err)
}

// Unwrap returns the underlying error for use with errors.Is() and errors.As().
func (e *ParseError) Unwrap() error { return e.Err }

// InsertError reports a failed playlist insert for one video.
type InsertError struct {
	PlaylistID string
	VideoID    string
	// Position is the zero-based index of the video in the insertion order.
	Position int
	Err      error
}

// Error returns a string representation of the insert error.
func (e *InsertError) Error() string {
	return fmt.Sprintf("curate: insert video %s (#%d) into %s: %v", e.VideoID, e.Position, e.PlaylistID, e.Err)
}

// Unwrap returns the underlying error for use with errors.Is() and errors.As().
func (e *InsertError) Unwrap() error { return e.Err }
