package catalog

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/dhowden/tag"
	"github.com/google/uuid"
	"github.com/jscyril/noor_player/api"
	"github.com/jscyril/noor_player/internal/audio"
	playerrors "github.com/jscyril/noor_player/pkg/errors"
	"go.uber.org/zap"
)

// ItemMeta is what the streaming provider knows about one item
type ItemMeta struct {
	ID              string
	Title           string
	DurationSeconds float64
	ThumbnailURL    string
	// Available is false for private, deleted or region-blocked items
	Available bool
	Reason    string
}

// PlaylistMeta describes an external playlist
type PlaylistMeta struct {
	ID        string
	Title     string
	ItemCount int
}

// ItemRef is one entry of a playlist listing page
type ItemRef struct {
	VideoID string
	Title   string
	Private bool
}

// ItemPage is one page of a paginated playlist listing
type ItemPage struct {
	Items         []ItemRef
	NextPageToken string
}

// Provider is the external metadata provider boundary
type Provider interface {
	ResolveItem(ctx context.Context, videoID string) (ItemMeta, error)
	ResolveItems(ctx context.Context, videoIDs []string) (map[string]ItemMeta, error)
	ResolvePlaylist(ctx context.Context, playlistID string) (PlaylistMeta, error)
	ListPlaylistItems(ctx context.Context, playlistID, pageToken string) (ItemPage, error)
}

// MediaSaver stores raw audio bytes and returns their cache key
type MediaSaver interface {
	Save(ctx context.Context, name string, r io.Reader) (string, error)
}

// Catalog builds Track values from external sources and local files
type Catalog struct {
	provider Provider
	media    MediaSaver
	log      *zap.Logger
	now      func() time.Time
}

// New creates a catalog. provider or media may be nil when the session
// doesn't support that origin.
func New(provider Provider, media MediaSaver, log *zap.Logger) *Catalog {
	if log == nil {
		log = zap.NewNop()
	}
	return &Catalog{provider: provider, media: media, log: log, now: time.Now}
}

// Provider returns the streaming metadata provider, or nil
func (c *Catalog) Provider() Provider {
	return c.provider
}

// FromExternalSource resolves provider metadata for a streaming locator
func (c *Catalog) FromExternalSource(ctx context.Context, locator string) (api.Track, error) {
	videoID, err := ParseVideoID(locator)
	if err != nil {
		return api.Track{}, err
	}
	if c.provider == nil {
		return api.Track{}, fmt.Errorf("%w: no streaming provider configured", playerrors.ErrMetadataFetch)
	}

	meta, err := c.provider.ResolveItem(ctx, videoID)
	if err != nil {
		c.log.Warn("resolve item failed", zap.String("video_id", videoID), zap.Error(err))
		if errors.Is(err, playerrors.ErrMetadataFetch) {
			return api.Track{}, err
		}
		return api.Track{}, fmt.Errorf("%w: %s: %v", playerrors.ErrMetadataFetch, videoID, err)
	}
	if !meta.Available {
		return api.Track{}, fmt.Errorf("%w: %s is %s", playerrors.ErrMetadataFetch, videoID, meta.Reason)
	}
	return c.TrackFromMeta(meta), nil
}

// TrackFromMeta converts resolved provider metadata into a streaming track
func (c *Catalog) TrackFromMeta(meta ItemMeta) api.Track {
	return api.Track{
		ID:              StreamingTrackID(meta.ID),
		Origin:          api.OriginStreaming,
		Locator:         WatchURL(meta.ID),
		Name:            meta.Title,
		DurationSeconds: meta.DurationSeconds,
		ThumbnailURL:    meta.ThumbnailURL,
		AddedAt:         c.now(),
		ProviderID:      meta.ID,
	}
}

// FromLocalFile probes the duration of a user-supplied audio file, stores
// its bytes in the media cache and returns a local-origin track.
func (c *Catalog) FromLocalFile(ctx context.Context, name string, r io.ReadSeeker) (api.Track, error) {
	if c.media == nil {
		return api.Track{}, fmt.Errorf("no media cache configured")
	}

	seconds, err := audio.ProbeDuration(r, name)
	if err != nil {
		return api.Track{}, err
	}

	display := readTitle(r)
	if display == "" {
		base := filepath.Base(name)
		display = strings.TrimSuffix(base, filepath.Ext(base))
	}

	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return api.Track{}, fmt.Errorf("rewind %s: %w", name, err)
	}
	key, err := c.media.Save(ctx, filepath.Base(name), r)
	if err != nil {
		return api.Track{}, fmt.Errorf("cache %s: %w", name, err)
	}

	c.log.Debug("local track cached",
		zap.String("name", display),
		zap.String("cache_key", key),
		zap.Float64("duration", seconds))

	return api.Track{
		ID:              uuid.NewString(),
		Origin:          api.OriginLocal,
		Locator:         key,
		Name:            display,
		DurationSeconds: seconds,
		AddedAt:         c.now(),
	}, nil
}

// readTitle returns the embedded tag title, or "" when there is none
func readTitle(r io.ReadSeeker) string {
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return ""
	}
	metadata, err := tag.ReadFrom(r)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(metadata.Title())
}

// IsDuplicate reports whether two tracks refer to the same media.
// Streaming tracks match on provider id; local tracks match on cache key or
// display name; tracks of different origins never match.
func IsDuplicate(a, b api.Track) bool {
	if a.Origin != b.Origin {
		return false
	}
	switch a.Origin {
	case api.OriginStreaming:
		return a.ProviderID != "" && a.ProviderID == b.ProviderID
	case api.OriginLocal:
		if a.Locator != "" && a.Locator == b.Locator {
			return true
		}
		an, bn := normalizeName(a.Name), normalizeName(b.Name)
		return an != "" && an == bn
	}
	return false
}

// FindDuplicate returns the index of the first entry in list that
// duplicates t, or -1.
func FindDuplicate(list []api.Track, t api.Track) int {
	for i := range list {
		if IsDuplicate(list[i], t) {
			return i
		}
	}
	return -1
}

func normalizeName(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
