package youtube

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	playerrors "github.com/jscyril/noor_player/pkg/errors"
)

func TestParseDuration(t *testing.T) {
	tests := []struct {
		in      string
		want    float64
		wantErr bool
	}{
		{"PT3M", 180, false},
		{"PT1M30S", 90, false},
		{"PT1H2M3S", 3723, false},
		{"PT45S", 45, false},
		{"P1DT1S", 86401, false},
		{"P0D", 0, false},
		{"PT0S", 0, false},
		{"PT1.5S", 1.5, false},
		{"", 0, true},
		{"P", 0, true},
		{"PT", 0, true},
		{"3:00", 0, true},
		{"PT1X", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseDuration(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseDuration(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseDuration(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

const videosJSON = `{
  "items": [
    {
      "id": "aaaaaaaaaaa",
      "snippet": {"title": "Surah Al-Mulk", "thumbnails": {"default": {"url": "d.jpg"}, "high": {"url": "h.jpg"}}},
      "contentDetails": {"duration": "PT3M"},
      "status": {"uploadStatus": "processed", "privacyStatus": "public", "embeddable": true}
    },
    {
      "id": "bbbbbbbbbbb",
      "snippet": {"title": "Blocked"},
      "contentDetails": {"duration": "PT1M", "regionRestriction": {"blocked": ["SA"]}},
      "status": {"privacyStatus": "public", "embeddable": true}
    },
    {
      "id": "ccccccccccc",
      "snippet": {"title": "No embed"},
      "contentDetails": {"duration": "PT1M"},
      "status": {"privacyStatus": "unlisted", "embeddable": false}
    }
  ]
}`

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(Options{
		APIKey:  "test-key",
		BaseURL: srv.URL,
		Timeout: time.Second,
		Retries: 2,
		Backoff: time.Millisecond,
		Region:  "sa",
	}, nil)
}

func TestResolveItems(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/videos" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.URL.Query().Get("key") != "test-key" {
			t.Error("api key not sent")
		}
		fmt.Fprint(w, videosJSON)
	})

	metas, err := c.ResolveItems(context.Background(), []string{"aaaaaaaaaaa", "bbbbbbbbbbb", "ccccccccccc", "missingitem"})
	if err != nil {
		t.Fatal(err)
	}

	a := metas["aaaaaaaaaaa"]
	if !a.Available || a.DurationSeconds != 180 || a.Title != "Surah Al-Mulk" || a.ThumbnailURL != "h.jpg" {
		t.Errorf("unexpected meta %+v", a)
	}
	if b := metas["bbbbbbbbbbb"]; b.Available {
		t.Error("region-blocked item should be unavailable")
	}
	if cc := metas["ccccccccccc"]; cc.Available || cc.Reason != "not embeddable" {
		t.Errorf("non-embeddable item: %+v", cc)
	}
	if _, ok := metas["missingitem"]; ok {
		t.Error("missing item should not be in the map")
	}
}

func TestResolveItem_Missing(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"items": []}`)
	})
	meta, err := c.ResolveItem(context.Background(), "zzzzzzzzzzz")
	if err != nil {
		t.Fatal(err)
	}
	if meta.Available {
		t.Error("missing item must be unavailable")
	}
}

func TestResolveItems_Batches(t *testing.T) {
	var calls int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		ids := strings.Split(r.URL.Query().Get("id"), ",")
		if len(ids) > maxBatch {
			t.Errorf("batch of %d ids exceeds limit", len(ids))
		}
		fmt.Fprint(w, `{"items": []}`)
	})

	ids := make([]string, 120)
	for i := range ids {
		ids[i] = fmt.Sprintf("id%09d", i)
	}
	if _, err := c.ResolveItems(context.Background(), ids); err != nil {
		t.Fatal(err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestRetriesOn5xxOnly(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		wantCalls int32
	}{
		{"server error retried", http.StatusServiceUnavailable, 3},
		{"client error not retried", http.StatusForbidden, 1},
		{"not found not retried", http.StatusNotFound, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls int32
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				atomic.AddInt32(&calls, 1)
				w.WriteHeader(tt.status)
				fmt.Fprint(w, `{"error": {"code": 0, "message": "nope"}}`)
			})
			_, err := c.ResolveItem(context.Background(), "aaaaaaaaaaa")
			if !errors.Is(err, playerrors.ErrMetadataFetch) {
				t.Fatalf("want ErrMetadataFetch, got %v", err)
			}
			if calls != tt.wantCalls {
				t.Errorf("calls = %d, want %d", calls, tt.wantCalls)
			}
		})
	}
}

func TestRetryRecovers(t *testing.T) {
	var calls int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		fmt.Fprint(w, videosJSON)
	})
	meta, err := c.ResolveItem(context.Background(), "aaaaaaaaaaa")
	if err != nil {
		t.Fatal(err)
	}
	if !meta.Available || calls != 2 {
		t.Errorf("meta %+v after %d calls", meta, calls)
	}
}

func TestTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	}))
	defer srv.Close()

	c := NewClient(Options{BaseURL: srv.URL, Timeout: 20 * time.Millisecond, Retries: 1, Backoff: time.Millisecond}, nil)
	start := time.Now()
	_, err := c.ResolvePlaylist(context.Background(), "PL1234567890")
	if !errors.Is(err, playerrors.ErrMetadataFetch) {
		t.Fatalf("want ErrMetadataFetch, got %v", err)
	}
	if time.Since(start) > 500*time.Millisecond {
		t.Errorf("timeout not enforced, took %v", time.Since(start))
	}
}

func TestPlaylistEndpoints(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/playlists":
			fmt.Fprint(w, `{"items": [{"id": "PL1234567890", "snippet": {"title": "Ramadan Nasheeds"}, "contentDetails": {"itemCount": 3}}]}`)
		case "/playlistItems":
			if r.URL.Query().Get("pageToken") == "" {
				fmt.Fprint(w, `{"nextPageToken": "p2", "items": [
					{"snippet": {"title": "One", "resourceId": {"videoId": "aaaaaaaaaaa"}}, "status": {"privacyStatus": "public"}},
					{"snippet": {"title": "Private video", "resourceId": {"videoId": "bbbbbbbbbbb"}}, "status": {"privacyStatus": "private"}}
				]}`)
				return
			}
			fmt.Fprint(w, `{"items": [{"snippet": {"title": "Three", "resourceId": {"videoId": "ccccccccccc"}}, "status": {"privacyStatus": "public"}}]}`)
		default:
			http.NotFound(w, r)
		}
	})
	ctx := context.Background()

	meta, err := c.ResolvePlaylist(ctx, "PL1234567890")
	if err != nil {
		t.Fatal(err)
	}
	if meta.Title != "Ramadan Nasheeds" || meta.ItemCount != 3 {
		t.Errorf("unexpected playlist meta %+v", meta)
	}

	page, err := c.ListPlaylistItems(ctx, "PL1234567890", "")
	if err != nil {
		t.Fatal(err)
	}
	if page.NextPageToken != "p2" || len(page.Items) != 2 || !page.Items[1].Private || page.Items[0].Private {
		t.Errorf("unexpected first page %+v", page)
	}
	page, err = c.ListPlaylistItems(ctx, "PL1234567890", "p2")
	if err != nil {
		t.Fatal(err)
	}
	if page.NextPageToken != "" || len(page.Items) != 1 || page.Items[0].VideoID != "ccccccccccc" {
		t.Errorf("unexpected second page %+v", page)
	}
}

func TestResolvePlaylist_Empty(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"items": []}`)
	})
	if _, err := c.ResolvePlaylist(context.Background(), "PL1234567890"); !errors.Is(err, playerrors.ErrMetadataFetch) {
		t.Fatalf("want ErrMetadataFetch, got %v", err)
	}
}
