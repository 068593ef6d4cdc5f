// Package youtube resolves video and playlist metadata through the
// YouTube Data API v3.
package youtube

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/jscyril/noor_player/internal/catalog"
	playerrors "github.com/jscyril/noor_player/pkg/errors"
	"go.uber.org/zap"
)

// maxBatch is the largest id list the videos endpoint accepts
const maxBatch = 50

// Options configures the client
type Options struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
	Retries int
	Backoff time.Duration
	// Region is an ISO 3166-1 alpha-2 code used to detect blocked items
	Region     string
	HTTPClient *http.Client
}

// Client implements catalog.Provider
type Client struct {
	opts       Options
	httpClient *http.Client
	log        *zap.Logger
}

var _ catalog.Provider = (*Client)(nil)

// NewClient creates a new API client
func NewClient(opts Options, log *zap.Logger) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.Backoff <= 0 {
		opts.Backoff = 300 * time.Millisecond
	}
	opts.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: opts.Timeout}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{opts: opts, httpClient: httpClient, log: log}
}

type thumbnail struct {
	URL string `json:"url"`
}

type videoResource struct {
	ID      string `json:"id"`
	Snippet struct {
		Title      string `json:"title"`
		Thumbnails struct {
			Default thumbnail `json:"default"`
			Medium  thumbnail `json:"medium"`
			High    thumbnail `json:"high"`
		} `json:"thumbnails"`
	} `json:"snippet"`
	ContentDetails struct {
		Duration          string `json:"duration"`
		RegionRestriction *struct {
			Allowed []string `json:"allowed"`
			Blocked []string `json:"blocked"`
		} `json:"regionRestriction"`
	} `json:"contentDetails"`
	Status struct {
		UploadStatus  string `json:"uploadStatus"`
		PrivacyStatus string `json:"privacyStatus"`
		Embeddable    *bool  `json:"embeddable"`
	} `json:"status"`
}

type videoListResponse struct {
	Items []videoResource `json:"items"`
}

type playlistListResponse struct {
	Items []struct {
		ID      string `json:"id"`
		Snippet struct {
			Title string `json:"title"`
		} `json:"snippet"`
		ContentDetails struct {
			ItemCount int `json:"itemCount"`
		} `json:"contentDetails"`
	} `json:"items"`
}

type playlistItemListResponse struct {
	NextPageToken string `json:"nextPageToken"`
	Items         []struct {
		Snippet struct {
			Title      string `json:"title"`
			ResourceID struct {
				VideoID string `json:"videoId"`
			} `json:"resourceId"`
		} `json:"snippet"`
		Status struct {
			PrivacyStatus string `json:"privacyStatus"`
		} `json:"status"`
	} `json:"items"`
}

type apiError struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// ResolveItem looks up a single video. Unknown ids come back unavailable
// rather than as an error.
func (c *Client) ResolveItem(ctx context.Context, videoID string) (catalog.ItemMeta, error) {
	metas, err := c.ResolveItems(ctx, []string{videoID})
	if err != nil {
		return catalog.ItemMeta{}, err
	}
	meta, ok := metas[videoID]
	if !ok {
		return catalog.ItemMeta{ID: videoID, Reason: "not found"}, nil
	}
	return meta, nil
}

// ResolveItems looks up videos in batches. Ids missing from the response
// are left out of the map.
func (c *Client) ResolveItems(ctx context.Context, videoIDs []string) (map[string]catalog.ItemMeta, error) {
	out := make(map[string]catalog.ItemMeta, len(videoIDs))
	for start := 0; start < len(videoIDs); start += maxBatch {
		end := start + maxBatch
		if end > len(videoIDs) {
			end = len(videoIDs)
		}

		var resp videoListResponse
		params := url.Values{
			"part": {"snippet,contentDetails,status"},
			"id":   {strings.Join(videoIDs[start:end], ",")},
		}
		if err := c.get(ctx, "/videos", params, &resp); err != nil {
			return nil, err
		}
		for _, v := range resp.Items {
			out[v.ID] = c.toMeta(v)
		}
	}
	return out, nil
}

// ResolvePlaylist fetches a playlist's title and item count
func (c *Client) ResolvePlaylist(ctx context.Context, playlistID string) (catalog.PlaylistMeta, error) {
	var resp playlistListResponse
	params := url.Values{
		"part": {"snippet,contentDetails"},
		"id":   {playlistID},
	}
	if err := c.get(ctx, "/playlists", params, &resp); err != nil {
		return catalog.PlaylistMeta{}, err
	}
	if len(resp.Items) == 0 {
		return catalog.PlaylistMeta{}, fmt.Errorf("%w: playlist %s not found or private", playerrors.ErrMetadataFetch, playlistID)
	}
	p := resp.Items[0]
	return catalog.PlaylistMeta{ID: p.ID, Title: p.Snippet.Title, ItemCount: p.ContentDetails.ItemCount}, nil
}

// ListPlaylistItems fetches one page of a playlist
func (c *Client) ListPlaylistItems(ctx context.Context, playlistID, pageToken string) (catalog.ItemPage, error) {
	var resp playlistItemListResponse
	params := url.Values{
		"part":       {"snippet,status"},
		"playlistId": {playlistID},
		"maxResults": {"50"},
	}
	if pageToken != "" {
		params.Set("pageToken", pageToken)
	}
	if err := c.get(ctx, "/playlistItems", params, &resp); err != nil {
		return catalog.ItemPage{}, err
	}

	page := catalog.ItemPage{NextPageToken: resp.NextPageToken}
	for _, it := range resp.Items {
		private := it.Status.PrivacyStatus == "private" ||
			it.Snippet.Title == "Private video" ||
			it.Snippet.Title == "Deleted video"
		page.Items = append(page.Items, catalog.ItemRef{
			VideoID: it.Snippet.ResourceID.VideoID,
			Title:   it.Snippet.Title,
			Private: private,
		})
	}
	return page, nil
}

func (c *Client) toMeta(v videoResource) catalog.ItemMeta {
	meta := catalog.ItemMeta{
		ID:           v.ID,
		Title:        v.Snippet.Title,
		ThumbnailURL: firstNonEmpty(v.Snippet.Thumbnails.High.URL, v.Snippet.Thumbnails.Medium.URL, v.Snippet.Thumbnails.Default.URL),
		Available:    true,
	}

	if v.ContentDetails.Duration != "" {
		seconds, err := ParseDuration(v.ContentDetails.Duration)
		if err != nil {
			c.log.Warn("bad duration from provider", zap.String("video_id", v.ID), zap.Error(err))
		} else {
			meta.DurationSeconds = seconds
		}
	}

	switch {
	case v.Status.PrivacyStatus == "private":
		meta.Available, meta.Reason = false, "private"
	case v.Status.UploadStatus == "rejected" || v.Status.UploadStatus == "deleted" || v.Status.UploadStatus == "failed":
		meta.Available, meta.Reason = false, "removed"
	case v.Status.Embeddable != nil && !*v.Status.Embeddable:
		meta.Available, meta.Reason = false, "not embeddable"
	case c.blockedInRegion(v):
		meta.Available, meta.Reason = false, "blocked in region "+c.opts.Region
	}
	return meta
}

func (c *Client) blockedInRegion(v videoResource) bool {
	rr := v.ContentDetails.RegionRestriction
	if rr == nil || c.opts.Region == "" {
		return false
	}
	region := strings.ToUpper(c.opts.Region)
	for _, r := range rr.Blocked {
		if r == region {
			return true
		}
	}
	if len(rr.Allowed) > 0 {
		for _, r := range rr.Allowed {
			if r == region {
				return false
			}
		}
		return true
	}
	return false
}

// get performs a GET with bounded retries on transport errors and 5xx
func (c *Client) get(ctx context.Context, path string, params url.Values, out interface{}) error {
	if c.opts.APIKey != "" {
		params.Set("key", c.opts.APIKey)
	}
	endpoint := c.opts.BaseURL + path + "?" + params.Encode()

	var lastErr error
	for attempt := 0; attempt <= c.opts.Retries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return fmt.Errorf("%w: %v", playerrors.ErrMetadataFetch, ctx.Err())
			case <-time.After(c.opts.Backoff):
			}
		}

		retry, err := c.do(ctx, endpoint, out)
		if err == nil {
			return nil
		}
		lastErr = err
		c.log.Warn("provider request failed",
			zap.String("path", path),
			zap.Int("attempt", attempt+1),
			zap.Bool("retryable", retry),
			zap.Error(err))
		if !retry {
			break
		}
	}
	return fmt.Errorf("%w: %s: %v", playerrors.ErrMetadataFetch, path, lastErr)
}

func (c *Client) do(ctx context.Context, endpoint string, out interface{}) (retry bool, err error) {
	ctx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return false, err
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		// the caller's own cancellation is final
		if errors.Is(err, context.Canceled) {
			return false, err
		}
		return true, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return true, fmt.Errorf("read response: %w", err)
	}
	c.log.Debug("provider request",
		zap.String("url", req.URL.Path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("took", time.Since(start)))

	if resp.StatusCode != http.StatusOK {
		var apiErr apiError
		msg := http.StatusText(resp.StatusCode)
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Error.Message != "" {
			msg = apiErr.Error.Message
		}
		return resp.StatusCode >= 500, fmt.Errorf("status %d: %s", resp.StatusCode, msg)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return false, fmt.Errorf("decode response: %w", err)
	}
	return false, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
