package watchlater

import (
	"watchlater/auth"
	"watchlater/curate"
	"watchlater/internal/retry"
	"watchlater/storage"
	"watchlater/youtube"
)

// Error handling types exported for library users.
//
// From youtube package:
//   - youtube.CallError: a failed remote call, classified by Kind
//   - youtube.ErrUnauthorized, ErrQuotaExceeded, ErrRateLimited, ErrNotFound
//
// From curate package:
//   - curate.ParseError: a malformed uploads playlist item
//   - curate.InsertError: a failed playlist insert
//
// From auth package:
//   - auth.AuthError: a failed sign-in or token step
//
// From storage package:
//   - storage.StorageError: a failed token cache operation

// Type aliases for convenient error handling.
type (
	// CallError wraps a failed YouTube call with its operation name.
	CallError = youtube.CallError
	// ParseError reports a malformed item in an uploads playlist.
	ParseError = curate.ParseError
	// InsertError reports a video that could not be added to the playlist.
	InsertError = curate.InsertError
	// AuthError reports the OAuth stage that failed.
	AuthError = auth.AuthError
	// StorageError wraps errors during token cache operations.
	StorageError = storage.StorageError
	// RetryableError wraps errors that persisted after retries were exhausted.
	RetryableError = retry.RetryableError
)

// Sentinel errors exported from sub-packages.
var (
	// ErrUnauthorized indicates the credentials were rejected.
	ErrUnauthorized = youtube.ErrUnauthorized
	// ErrQuotaExceeded indicates the daily Data API quota is used up.
	ErrQuotaExceeded = youtube.ErrQuotaExceeded
	// ErrRateLimited indicates the request was throttled.
	ErrRateLimited = youtube.ErrRateLimited
	// ErrResourceNotFound indicates a channel or playlist does not exist.
	ErrResourceNotFound = youtube.ErrNotFound

	// ErrConsentDenied indicates the user declined the consent screen.
	ErrConsentDenied = auth.ErrConsentDenied

	// Storage errors
	// ErrNotFound indicates no token has been cached yet.
	ErrNotFound = storage.ErrNotFound
	// ErrStorageCorrupt indicates the token cache could not be decoded.
	ErrStorageCorrupt = storage.ErrStorageCorrupt
	// ErrLockTimeout indicates a timeout acquiring the token cache lock.
	ErrLockTimeout = storage.ErrLockTimeout
)

// IsRetryable reports whether an error is worth another attempt, using the
// same classification as the YouTube clients. Throttling and server errors
// are retryable; credentials, quota, missing resources, canceled contexts and
// permanent errors are not.
func IsRetryable(err error) bool {
	return youtube.IsRetryable(err)
}
