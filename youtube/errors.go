package youtube

import (
	"context"
	"errors"
	"net/http"
	"slices"

	"google.golang.org/api/googleapi"

	"watchlater/internal/retry"
	"watchlater/internal/transport"
)

// Sentinel errors for remote calls. A *CallError matches at most one of them.
var (
	ErrUnauthorized  = errors.New("youtube: unauthorized")
	ErrQuotaExceeded = errors.New("youtube: quota exceeded")
	ErrRateLimited   = errors.New("youtube: rate limited")
	ErrNotFound      = errors.New("youtube: not found")
	ErrTooManyIDs    = errors.New("youtube: too many ids in one request")
)

// quotaReasons are googleapi error reasons for an exhausted daily quota.
var quotaReasons = []string{"quotaExceeded", "dailyLimitExceeded"}

// rateReasons are googleapi error reasons for short-term throttling.
var rateReasons = []string{"rateLimitExceeded", "userRateLimitExceeded"}

// authReasons are googleapi 403 reasons caused by the credentials themselves.
var authReasons = []string{"forbidden", "insufficientPermissions", "authError", "accessNotConfigured"}

// CallError wraps a failed remote call with the operation that failed.
// Use errors.As() to extract it and errors.Is() against the sentinels:
//
//	var callErr *youtube.CallError
//	if errors.As(err, &callErr) {
//		fmt.Printf("%s failed: %v\n", callErr.Op, callErr.Err)
//	}
type CallError struct {
	// Op is the remote operation ("subscriptions.list", "playlistItems.insert", "feed.get").
	Op string
	// Kind is the sentinel classifying the failure, nil when unclassified.
	Kind error
	// Err is the underlying error that occurred.
	Err error
}

// Error returns a string representation of the call error.
func (e *CallError) Error() string {
	return "youtube: " + e.Op + ": " + e.Err.Error()
}

// Unwrap exposes both the cause and the classifying sentinel.
func (e *CallError) Unwrap() []error {
	if e.Kind == nil {
		return []error{e.Err}
	}
	return []error{e.Err, e.Kind}
}

// wrapCallError classifies err and wraps it as a *CallError.
func wrapCallError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &CallError{Op: op, Kind: classify(err), Err: err}
}

// classify maps a remote error to one of the package sentinels.
func classify(err error) error {
	var apiErr *googleapi.Error
	if !errors.As(err, &apiErr) {
		return nil
	}
	return classifyStatus(apiErr.Code, reasons(apiErr))
}

func classifyStatus(code int, reasons []string) error {
	switch {
	case code == http.StatusUnauthorized:
		return ErrUnauthorized
	case code == http.StatusTooManyRequests:
		return ErrRateLimited
	case code == http.StatusForbidden && hasAny(reasons, quotaReasons):
		return ErrQuotaExceeded
	case code == http.StatusForbidden && hasAny(reasons, rateReasons):
		return ErrRateLimited
	case code == http.StatusForbidden && hasAny(reasons, authReasons):
		return ErrUnauthorized
	case code == http.StatusNotFound:
		return ErrNotFound
	}
	return nil
}

func reasons(apiErr *googleapi.Error) []string {
	out := make([]string, 0, len(apiErr.Errors))
	for _, item := range apiErr.Errors {
		out = append(out, item.Reason)
	}
	return out
}

func hasAny(have, want []string) bool {
	for _, r := range have {
		if slices.Contains(want, r) {
			return true
		}
	}
	return false
}

// IsRetryable reports whether an error, raw or already wrapped in a
// *CallError, is worth another attempt. Only throttling and server-side
// failures qualify; credentials, quota, missing resources and bad requests
// never do.
func IsRetryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, retry.ErrPermanent) || errors.Is(err, transport.ErrCircuitOpen) {
		return false
	}

	switch {
	case errors.Is(err, ErrRateLimited):
		return true
	case errors.Is(err, ErrUnauthorized), errors.Is(err, ErrQuotaExceeded),
		errors.Is(err, ErrNotFound), errors.Is(err, ErrTooManyIDs):
		return false
	}

	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		if apiErr.Code >= http.StatusInternalServerError {
			return true
		}
		return errors.Is(classifyStatus(apiErr.Code, reasons(apiErr)), ErrRateLimited)
	}

	var statusErr *statusError
	if errors.As(err, &statusErr) {
		return statusErr.code >= http.StatusInternalServerError || statusErr.code == http.StatusTooManyRequests
	}

	// Network-level failures (connection reset, DNS) have no status.
	return true
}

// statusError reports an unexpected HTTP status from a plain HTTP source.
type statusError struct {
	code   int
	status string
}

func (e *statusError) Error() string {
	return "unexpected status " + e.status
}
