package playlist

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/jscyril/noor_player/api"
	"github.com/jscyril/noor_player/internal/catalog"
	playerrors "github.com/jscyril/noor_player/pkg/errors"
	"github.com/jscyril/noor_player/pkg/events"
	"github.com/jscyril/noor_player/pkg/logger"
	"go.uber.org/zap"
)

// Manager handles playlist CRUD. The reserved "queue" id reads through to
// the Queue and "favorites" is recomputed on every read.
type Manager struct {
	playlists map[string]*api.Playlist
	order     []string // creation order

	queue     *Queue
	favorites *Favorites
	catalog   *catalog.Catalog
	persist   Persister
	bus       *events.EventBus
	log       *zap.Logger

	lastID int64
	now    func() time.Time
	mu     sync.RWMutex
}

// ManagerOptions wires a Manager to the rest of the session
type ManagerOptions struct {
	Queue     *Queue
	Favorites *Favorites
	Catalog   *catalog.Catalog
	Persister Persister
	Bus       *events.EventBus
	Log       *zap.Logger
}

// NewManager creates a new playlist manager holding only the default playlist
func NewManager(opts ManagerOptions) *Manager {
	if opts.Queue == nil {
		opts.Queue = NewQueue(nil, nil)
	}
	if opts.Favorites == nil {
		opts.Favorites = NewFavorites(nil)
	}
	opts.Log = logger.OrNop(opts.Log)
	m := &Manager{
		playlists: make(map[string]*api.Playlist),
		queue:     opts.Queue,
		favorites: opts.Favorites,
		catalog:   opts.Catalog,
		persist:   opts.Persister,
		bus:       opts.Bus,
		log:       opts.Log,
		now:       time.Now,
	}
	m.ensureDefaultLocked()
	return m
}

// Restore replaces the stored playlists with persisted ones. The default
// playlist is created (and persisted) if it is missing.
func (m *Manager) Restore(playlists []api.Playlist) {
	m.mu.Lock()
	m.playlists = make(map[string]*api.Playlist, len(playlists)+1)
	m.order = m.order[:0]
	for i := range playlists {
		p := playlists[i]
		if isVirtual(p.ID) || m.playlists[p.ID] != nil {
			continue
		}
		m.playlists[p.ID] = p.Clone()
		m.order = append(m.order, p.ID)
	}
	created := m.ensureDefaultLocked()
	m.mu.Unlock()

	if created != nil {
		m.save(*created)
	}
}

func (m *Manager) ensureDefaultLocked() *api.Playlist {
	if _, ok := m.playlists[api.DefaultPlaylistID]; ok {
		return nil
	}
	now := m.now()
	p := &api.Playlist{
		ID:        api.DefaultPlaylistID,
		Name:      "Default",
		Type:      api.PlaylistSystem,
		Tracks:    []api.Track{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	m.playlists[p.ID] = p
	m.order = append([]string{p.ID}, m.order...)
	return p.Clone()
}

// Create creates a new playlist
func (m *Manager) Create(name string, typ api.PlaylistType) (*api.Playlist, error) {
	return m.create(name, typ, "", nil)
}

func (m *Manager) create(name string, typ api.PlaylistType, sourceID string, tracks []api.Track) (*api.Playlist, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, playerrors.ErrInvalidName
	}
	switch typ {
	case "":
		typ = api.PlaylistCustom
	case api.PlaylistQueue, api.PlaylistSystem:
		return nil, fmt.Errorf("%w: cannot create %s playlists", playerrors.ErrProtectedPlaylist, typ)
	}

	m.mu.Lock()
	if m.nameTakenLocked(name, "") {
		m.mu.Unlock()
		return nil, fmt.Errorf("%w: %q", playerrors.ErrDuplicateName, name)
	}

	now := m.now()
	if tracks == nil {
		tracks = []api.Track{}
	}
	p := &api.Playlist{
		ID:        m.nextIDLocked(now),
		Name:      name,
		Type:      typ,
		SourceID:  sourceID,
		Tracks:    tracks,
		CreatedAt: now,
		UpdatedAt: now,
	}
	m.playlists[p.ID] = p
	m.order = append(m.order, p.ID)
	out := p.Clone()
	m.mu.Unlock()

	m.save(*out)
	m.log.Info("playlist created", zap.String("id", out.ID), zap.String("name", out.Name), zap.Int("tracks", len(out.Tracks)))
	return out, nil
}

// nextIDLocked returns playlist-<unixnano>, strictly increasing even when
// the clock doesn't advance between calls
func (m *Manager) nextIDLocked(now time.Time) string {
	n := now.UnixNano()
	if n <= m.lastID {
		n = m.lastID + 1
	}
	m.lastID = n
	return fmt.Sprintf("playlist-%d", n)
}

func (m *Manager) nameTakenLocked(name, exceptID string) bool {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "queue" || key == "favorites" {
		return true
	}
	for id, p := range m.playlists {
		if id != exceptID && strings.ToLower(strings.TrimSpace(p.Name)) == key {
			return true
		}
	}
	return false
}

// uniqueNameLocked appends " (2)", " (3)", ... until the name is free
func (m *Manager) uniqueNameLocked(base string) string {
	if !m.nameTakenLocked(base, "") {
		return base
	}
	for n := 2; ; n++ {
		candidate := fmt.Sprintf("%s (%d)", base, n)
		if !m.nameTakenLocked(candidate, "") {
			return candidate
		}
	}
}

// Get returns a copy of a playlist, including the virtual ones
func (m *Manager) Get(id string) (*api.Playlist, error) {
	switch id {
	case api.QueuePlaylistID:
		return m.queuePlaylist(), nil
	case api.FavoritesPlaylistID:
		p := m.Favorites()
		return &p, nil
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.playlists[id]
	if !ok {
		return nil, playerrors.ErrPlaylistNotFound
	}
	return p.Clone(), nil
}

// All returns the queue, favorites and then every stored playlist in
// creation order
func (m *Manager) All() []*api.Playlist {
	fav := m.Favorites()
	out := []*api.Playlist{m.queuePlaylist(), &fav}

	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, id := range m.order {
		out = append(out, m.playlists[id].Clone())
	}
	return out
}

// Stored returns copies of the persisted playlists only
func (m *Manager) Stored() []api.Playlist {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]api.Playlist, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, *m.playlists[id].Clone())
	}
	return out
}

// Favorites materializes the favorites playlist from the queue and every
// stored playlist
func (m *Manager) Favorites() api.Playlist {
	return MaterializeFavorites(m.favorites.IDs(), m.AllKnownTracks())
}

// AllKnownTracks returns every track entry from the queue followed by
// every stored playlist
func (m *Manager) AllKnownTracks() []api.Track {
	known := m.queue.Tracks()
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, id := range m.order {
		known = append(known, m.playlists[id].Tracks...)
	}
	return known
}

func (m *Manager) queuePlaylist() *api.Playlist {
	return &api.Playlist{
		ID:     api.QueuePlaylistID,
		Name:   "Queue",
		Type:   api.PlaylistQueue,
		Tracks: m.queue.Tracks(),
	}
}

// Delete deletes a playlist. Reserved and system playlists are protected.
func (m *Manager) Delete(id string) error {
	if isReserved(id) {
		return fmt.Errorf("%w: %s", playerrors.ErrProtectedPlaylist, id)
	}

	m.mu.Lock()
	p, ok := m.playlists[id]
	if !ok {
		m.mu.Unlock()
		return playerrors.ErrPlaylistNotFound
	}
	if p.Type == api.PlaylistSystem {
		m.mu.Unlock()
		return fmt.Errorf("%w: %s", playerrors.ErrProtectedPlaylist, id)
	}
	delete(m.playlists, id)
	for i, oid := range m.order {
		if oid == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	m.mu.Unlock()

	if m.persist != nil {
		m.persist.DeletePlaylist(id)
	}
	m.log.Info("playlist deleted", zap.String("id", id))
	return nil
}

// Rename renames a playlist
func (m *Manager) Rename(id, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return playerrors.ErrInvalidName
	}
	return m.update(id, func(p *api.Playlist) error {
		if m.nameTakenLocked(name, id) {
			return fmt.Errorf("%w: %q", playerrors.ErrDuplicateName, name)
		}
		p.Name = name
		return nil
	})
}

// SetDescription updates a playlist's description
func (m *Manager) SetDescription(id, description string) error {
	return m.update(id, func(p *api.Playlist) error {
		p.Description = description
		return nil
	})
}

// SetPublic updates a playlist's visibility flag
func (m *Manager) SetPublic(id string, public bool) error {
	return m.update(id, func(p *api.Playlist) error {
		p.Public = public
		return nil
	})
}

// AddTrack adds a track to a playlist, rejecting duplicates the same way
// the queue does
func (m *Manager) AddTrack(id string, track api.Track) error {
	if id == api.QueuePlaylistID {
		return m.queue.Enqueue(track)
	}
	return m.update(id, func(p *api.Playlist) error {
		if catalog.FindDuplicate(p.Tracks, track) >= 0 {
			return &playerrors.DuplicateTrackError{Name: track.Name, Where: fmt.Sprintf("%q", p.Name)}
		}
		p.Tracks = append(p.Tracks, track)
		return nil
	})
}

// RemoveTrack removes a track from a playlist
func (m *Manager) RemoveTrack(id, trackID string) error {
	if id == api.QueuePlaylistID {
		return m.queue.Remove(trackID)
	}
	return m.update(id, func(p *api.Playlist) error {
		for i, t := range p.Tracks {
			if t.ID == trackID {
				p.Tracks = append(p.Tracks[:i], p.Tracks[i+1:]...)
				return nil
			}
		}
		return playerrors.ErrTrackNotFound
	})
}

// Reorder moves one track within a playlist
func (m *Manager) Reorder(id string, from, to int) error {
	if id == api.QueuePlaylistID {
		return m.queue.Reorder(from, to)
	}
	return m.update(id, func(p *api.Playlist) error {
		if from < 0 || from >= len(p.Tracks) || to < 0 || to >= len(p.Tracks) {
			return playerrors.ErrIndexOutOfRange
		}
		p.Tracks = move(p.Tracks, from, to)
		return nil
	})
}

// update applies fn to a copy of a stored playlist and commits it only
// when fn succeeds, so failed edits leave no trace
func (m *Manager) update(id string, fn func(p *api.Playlist) error) error {
	if isVirtual(id) {
		return fmt.Errorf("%w: %s", playerrors.ErrProtectedPlaylist, id)
	}

	m.mu.Lock()
	current, ok := m.playlists[id]
	if !ok {
		m.mu.Unlock()
		return playerrors.ErrPlaylistNotFound
	}
	next := current.Clone()
	if err := fn(next); err != nil {
		m.mu.Unlock()
		return err
	}
	next.UpdatedAt = m.now()
	m.playlists[id] = next
	out := next.Clone()
	m.mu.Unlock()

	m.save(*out)
	return nil
}

func (m *Manager) save(p api.Playlist) {
	if m.persist != nil {
		m.persist.SavePlaylist(p)
	}
}

// isVirtual reports ids whose content is not stored as a playlist document
func isVirtual(id string) bool {
	return id == api.QueuePlaylistID || id == api.FavoritesPlaylistID
}

func isReserved(id string) bool {
	return isVirtual(id) || id == api.DefaultPlaylistID
}
