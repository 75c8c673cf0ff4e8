package youtube

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"google.golang.org/api/option"

	"watchlater/internal/paginate"
	"watchlater/internal/retry"
)

// newTestClient starts an httptest server with handler and returns a Client
// pointed at it.
func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := NewClient(context.Background(),
		option.WithHTTPClient(srv.Client()),
		option.WithEndpoint(srv.URL+"/"),
	)
	if err != nil {
		t.Fatalf("NewClient() failed: %v", err)
	}
	return client
}

func writeJSON(t *testing.T, w http.ResponseWriter, v any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		t.Errorf("encode response: %v", err)
	}
}

func writeAPIError(w http.ResponseWriter, code int, reason string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	fmt.Fprintf(w, `{"error":{"code":%d,"message":"%s","errors":[{"reason":"%s","message":"%s"}]}}`,
		code, reason, reason, reason)
}

func TestListSubscriptions(t *testing.T) {
	var gotQuery []string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/youtube/v3/subscriptions") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		gotQuery = append(gotQuery, r.URL.RawQuery)
		q := r.URL.Query()
		if q.Get("mine") != "true" {
			t.Errorf("mine = %q, want true", q.Get("mine"))
		}
		if q.Get("maxResults") != "50" {
			t.Errorf("maxResults = %q, want 50", q.Get("maxResults"))
		}

		if q.Get("pageToken") == "" {
			writeJSON(t, w, map[string]any{
				"nextPageToken": "CAUQAA",
				"items": []map[string]any{
					{"id": "s1", "snippet": map[string]any{"title": "Channel One", "resourceId": map[string]any{"kind": "youtube#channel", "channelId": "UC1"}}},
					{"id": "s2"},
				},
			})
			return
		}
		writeJSON(t, w, map[string]any{
			"items": []map[string]any{
				{"id": "s3", "snippet": map[string]any{"title": "Channel Three", "resourceId": map[string]any{"kind": "youtube#channel", "channelId": "UC3"}}},
			},
		})
	})

	first, err := client.ListSubscriptions(context.Background(), "")
	if err != nil {
		t.Fatalf("ListSubscriptions() error = %v", err)
	}
	want := paginate.Page[ChannelRef]{
		Items:      []ChannelRef{{ID: "UC1", Title: "Channel One"}},
		NextCursor: "CAUQAA",
	}
	if diff := cmp.Diff(want, first); diff != "" {
		t.Errorf("first page mismatch (-want +got):\n%s", diff)
	}

	second, err := client.ListSubscriptions(context.Background(), first.NextCursor)
	if err != nil {
		t.Fatalf("ListSubscriptions() error = %v", err)
	}
	if second.NextCursor != "" {
		t.Errorf("second page cursor = %q, want empty", second.NextCursor)
	}
	if strings.Contains(gotQuery[0], "pageToken") {
		t.Errorf("first request sent a pageToken: %s", gotQuery[0])
	}
	if client.QuotaUsed() != 2*listCost {
		t.Errorf("QuotaUsed() = %d, want %d", client.QuotaUsed(), 2*listCost)
	}
}

func TestListChannels(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/youtube/v3/channels") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		ids := strings.Join(r.URL.Query()["id"], ",")
		if ids != "UC1,UC2" {
			t.Errorf("id = %q, want UC1,UC2", ids)
		}
		writeJSON(t, w, map[string]any{
			"items": []map[string]any{
				{"id": "UC1", "snippet": map[string]any{"title": "One"}, "contentDetails": map[string]any{"relatedPlaylists": map[string]any{"uploads": "UU1"}}},
				{"id": "UC2", "contentDetails": map[string]any{"relatedPlaylists": map[string]any{"uploads": "UU2"}}},
			},
		})
	})

	page, err := client.ListChannels(context.Background(), []string{"UC1", "UC2"}, "")
	if err != nil {
		t.Fatalf("ListChannels() error = %v", err)
	}
	want := []UploadsSource{
		{ChannelID: "UC1", ChannelTitle: "One", PlaylistID: "UU1"},
		{ChannelID: "UC2", PlaylistID: "UU2"},
	}
	if diff := cmp.Diff(want, page.Items); diff != "" {
		t.Errorf("items mismatch (-want +got):\n%s", diff)
	}
}

func TestListChannelsTooManyIDs(t *testing.T) {
	var requests atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
	})

	ids := make([]string, MaxIDsPerRequest+1)
	for i := range ids {
		ids[i] = fmt.Sprintf("UC%d", i)
	}

	_, err := client.ListChannels(context.Background(), ids, "")
	if !errors.Is(err, ErrTooManyIDs) {
		t.Errorf("ListChannels() error = %v, want ErrTooManyIDs", err)
	}
	if requests.Load() != 0 {
		t.Errorf("made %d requests, want 0", requests.Load())
	}
}

func TestListUploads(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("playlistId"); got != "UU1" {
			t.Errorf("playlistId = %q, want UU1", got)
		}
		if got := r.URL.Query().Get("pageToken"); got != "next" {
			t.Errorf("pageToken = %q, want next", got)
		}
		writeJSON(t, w, map[string]any{
			"items": []map[string]any{
				{"id": "pi1", "snippet": map[string]any{
					"title":       "New video",
					"publishedAt": "2023-08-31T10:00:00Z",
					"resourceId":  map[string]any{"kind": "youtube#video", "videoId": "vid1"},
				}},
				{"id": "pi2"},
			},
		})
	})

	page, err := client.ListUploads(context.Background(), "UU1", "next")
	if err != nil {
		t.Fatalf("ListUploads() error = %v", err)
	}
	want := []UploadItem{
		{VideoID: "vid1", Title: "New video", PublishedAt: "2023-08-31T10:00:00Z"},
		{},
	}
	if diff := cmp.Diff(want, page.Items); diff != "" {
		t.Errorf("items mismatch (-want +got):\n%s", diff)
	}
}

func TestInsertPlaylistItem(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if got := r.URL.Query().Get("part"); got != "snippet" {
			t.Errorf("part = %q, want snippet", got)
		}
		body, _ := io.ReadAll(r.Body)
		var item struct {
			Snippet struct {
				PlaylistID string `json:"playlistId"`
				ResourceID struct {
					Kind    string `json:"kind"`
					VideoID string `json:"videoId"`
				} `json:"resourceId"`
			} `json:"snippet"`
		}
		if err := json.Unmarshal(body, &item); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		if item.Snippet.PlaylistID != "WL1" || item.Snippet.ResourceID.VideoID != "vid1" || item.Snippet.ResourceID.Kind != "youtube#video" {
			t.Errorf("unexpected insert body %s", body)
		}
		writeJSON(t, w, map[string]any{"id": "new"})
	})

	if err := client.InsertPlaylistItem(context.Background(), "WL1", "vid1"); err != nil {
		t.Fatalf("InsertPlaylistItem() error = %v", err)
	}
	if client.QuotaUsed() != insertCost {
		t.Errorf("QuotaUsed() = %d, want %d", client.QuotaUsed(), insertCost)
	}
}

func TestCallErrorClassification(t *testing.T) {
	tests := []struct {
		name     string
		code     int
		reason   string
		wantKind error
	}{
		{"unauthorized", http.StatusUnauthorized, "authError", ErrUnauthorized},
		{"insufficient permissions", http.StatusForbidden, "insufficientPermissions", ErrUnauthorized},
		{"quota exceeded", http.StatusForbidden, "quotaExceeded", ErrQuotaExceeded},
		{"rate limited", http.StatusForbidden, "rateLimitExceeded", ErrRateLimited},
		{"playlist not found", http.StatusNotFound, "playlistNotFound", ErrNotFound},
		{"bad request", http.StatusBadRequest, "invalidValue", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				writeAPIError(w, tt.code, tt.reason)
			})

			_, err := client.ListUploads(context.Background(), "UU1", "")
			var callErr *CallError
			if !errors.As(err, &callErr) {
				t.Fatalf("ListUploads() error = %v, want *CallError", err)
			}
			if callErr.Op != "playlistItems.list" {
				t.Errorf("Op = %q, want playlistItems.list", callErr.Op)
			}
			if callErr.Kind != tt.wantKind {
				t.Errorf("Kind = %v, want %v", callErr.Kind, tt.wantKind)
			}
			if tt.wantKind != nil && !errors.Is(err, tt.wantKind) {
				t.Errorf("errors.Is(err, %v) = false", tt.wantKind)
			}
			if client.QuotaUsed() != 0 {
				t.Errorf("QuotaUsed() = %d after failure, want 0", client.QuotaUsed())
			}
		})
	}
}

func TestClientRetry(t *testing.T) {
	tests := []struct {
		name         string
		maxRetries   int
		code         int
		reason       string
		wantRequests int32
		wantErr      bool
	}{
		{"no retries by default", 0, http.StatusInternalServerError, "backendError", 1, true},
		{"server error retried", 2, http.StatusInternalServerError, "backendError", 2, false},
		{"unauthorized not retried", 2, http.StatusUnauthorized, "authError", 1, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var requests atomic.Int32
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				if requests.Add(1) == 1 {
					writeAPIError(w, tt.code, tt.reason)
					return
				}
				writeJSON(t, w, map[string]any{"items": []any{}})
			})
			client.RetryConfig = retry.Config{
				MaxRetries:     tt.maxRetries,
				InitialBackoff: time.Millisecond,
				MaxBackoff:     5 * time.Millisecond,
				Multiplier:     2,
			}

			_, err := client.ListSubscriptions(context.Background(), "")
			if (err != nil) != tt.wantErr {
				t.Errorf("ListSubscriptions() error = %v, wantErr %v", err, tt.wantErr)
			}
			if requests.Load() != tt.wantRequests {
				t.Errorf("made %d requests, want %d", requests.Load(), tt.wantRequests)
			}
		})
	}
}

func TestSetPageSize(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {})

	tests := []struct {
		in   int
		want int64
	}{
		{0, 1},
		{10, 10},
		{500, MaxPageSize},
	}
	for _, tt := range tests {
		client.SetPageSize(tt.in)
		if client.pageSize != tt.want {
			t.Errorf("SetPageSize(%d) -> %d, want %d", tt.in, client.pageSize, tt.want)
		}
	}
}
