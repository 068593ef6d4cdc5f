package api

import (
	"fmt"
	"math"
	"time"
)

// Origin tells where a track's bytes come from
type Origin string

const (
	OriginStreaming Origin = "streaming"
	OriginLocal     Origin = "local"
)

// Track is an immutable playable item. Editing a track means building a
// replacement value with the same ID.
type Track struct {
	ID              string    `json:"id"`
	Origin          Origin    `json:"origin"`
	Locator         string    `json:"locator"` // remote URL or media cache key
	Name            string    `json:"name"`
	DurationSeconds float64   `json:"duration_seconds"` // 0 until metadata loads
	ThumbnailURL    string    `json:"thumbnail_url,omitempty"`
	AddedAt         time.Time `json:"added_at"`
	ProviderID      string    `json:"provider_id,omitempty"` // streaming origin only
}

// Duration returns the track length as a time.Duration
func (t Track) Duration() time.Duration {
	return time.Duration(t.DurationSeconds * float64(time.Second))
}

// Validate checks the invariants every stored track must hold
func (t Track) Validate() error {
	if t.ID == "" {
		return fmt.Errorf("track has no id")
	}
	switch t.Origin {
	case OriginStreaming:
		if t.ProviderID == "" {
			return fmt.Errorf("streaming track %s has no provider id", t.ID)
		}
	case OriginLocal:
		if t.Locator == "" {
			return fmt.Errorf("local track %s has no cache key", t.ID)
		}
	default:
		return fmt.Errorf("track %s has unknown origin %q", t.ID, t.Origin)
	}
	if math.IsNaN(t.DurationSeconds) || math.IsInf(t.DurationSeconds, 0) || t.DurationSeconds < 0 {
		return fmt.Errorf("track %s has invalid duration %v", t.ID, t.DurationSeconds)
	}
	return nil
}

// WithDuration returns a copy of the track with a resolved duration
func (t Track) WithDuration(seconds float64) Track {
	t.DurationSeconds = seconds
	return t
}

// PlaylistType classifies how a playlist came to exist
type PlaylistType string

const (
	PlaylistCustom   PlaylistType = "custom"
	PlaylistSystem   PlaylistType = "system"
	PlaylistQueue    PlaylistType = "queue"
	PlaylistImported PlaylistType = "imported-external"
)

// Reserved playlist ids
const (
	QueuePlaylistID     = "queue"
	FavoritesPlaylistID = "favorites"
	DefaultPlaylistID   = "default"
)

type Playlist struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	Description string       `json:"description"`
	Public      bool         `json:"public"`
	Type        PlaylistType `json:"type"`
	SourceID    string       `json:"source_id,omitempty"` // external playlist id for imports
	Tracks      []Track      `json:"tracks"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

// Clone returns a deep copy so callers can't mutate manager-owned slices
func (p *Playlist) Clone() *Playlist {
	if p == nil {
		return nil
	}
	c := *p
	c.Tracks = make([]Track, len(p.Tracks))
	copy(c.Tracks, p.Tracks)
	return &c
}

// TotalDuration sums the known durations of all tracks
func (p *Playlist) TotalDuration() time.Duration {
	var total time.Duration
	for _, t := range p.Tracks {
		total += t.Duration()
	}
	return total
}
