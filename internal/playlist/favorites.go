package playlist

import (
	"sync"

	"github.com/jscyril/noor_player/api"
	"github.com/samber/lo"
)

// Favorites is the set of starred track ids, kept in the order they were
// starred.
type Favorites struct {
	ids     []string
	set     map[string]struct{}
	persist Persister
	mu      sync.RWMutex
}

// NewFavorites creates an empty set. persist may be nil.
func NewFavorites(persist Persister) *Favorites {
	return &Favorites{set: make(map[string]struct{}), persist: persist}
}

// Restore loads persisted ids without writing them back
func (f *Favorites) Restore(ids []string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.ids = lo.Uniq(lo.Compact(ids))
	f.set = make(map[string]struct{}, len(f.ids))
	for _, id := range f.ids {
		f.set[id] = struct{}{}
	}
}

// Toggle flips membership and returns the new state. The persistence write
// happens in the background and never undoes the in-memory change.
func (f *Favorites) Toggle(trackID string) bool {
	f.mu.Lock()
	_, starred := f.set[trackID]
	if starred {
		delete(f.set, trackID)
		f.ids = lo.Without(f.ids, trackID)
	} else {
		f.set[trackID] = struct{}{}
		f.ids = append(f.ids, trackID)
	}
	snapshot := append([]string(nil), f.ids...)
	f.mu.Unlock()

	if f.persist != nil {
		f.persist.SaveFavorites(snapshot)
	}
	return !starred
}

// Contains reports whether a track is starred
func (f *Favorites) Contains(trackID string) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	_, ok := f.set[trackID]
	return ok
}

// IDs returns the starred ids in starring order
func (f *Favorites) IDs() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return append([]string(nil), f.ids...)
}

// Len returns the number of starred tracks
func (f *Favorites) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.ids)
}

// MaterializeFavorites builds the favorites playlist from every known track.
// Tracks are ordered by when they were starred, and a track known from
// several lists appears once (the first copy found wins).
func MaterializeFavorites(favoriteIDs []string, known []api.Track) api.Playlist {
	byID := lo.KeyBy(lo.UniqBy(known, func(t api.Track) string { return t.ID }), func(t api.Track) string {
		return t.ID
	})

	tracks := lo.FilterMap(lo.Uniq(favoriteIDs), func(id string, _ int) (api.Track, bool) {
		t, ok := byID[id]
		return t, ok
	})

	return api.Playlist{
		ID:     api.FavoritesPlaylistID,
		Name:   "Favorites",
		Type:   api.PlaylistSystem,
		Tracks: tracks,
	}
}
