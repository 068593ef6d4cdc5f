package store

import (
	"context"

	"github.com/jscyril/noor_player/api"
)

// Sync turns in-memory mutations into background writes against a Store.
// Each entity has its own writer key, so repeated writes to one entity
// coalesce into the latest value.
type Sync struct {
	store  Store
	writer *Writer
}

// NewSync binds a store to a writer
func NewSync(s Store, w *Writer) *Sync {
	return &Sync{store: s, writer: w}
}

func (s *Sync) SaveQueue(doc QueueDoc) {
	s.writer.Submit(kindQueue, func(ctx context.Context) error {
		return s.store.SaveQueue(ctx, doc)
	})
}

func (s *Sync) SavePlaylist(p api.Playlist) {
	s.writer.Submit(kindPlaylist+":"+p.ID, func(ctx context.Context) error {
		return s.store.SavePlaylist(ctx, p)
	})
}

// DeletePlaylist shares the playlist's key so a pending save is replaced
func (s *Sync) DeletePlaylist(id string) {
	s.writer.Submit(kindPlaylist+":"+id, func(ctx context.Context) error {
		return s.store.DeletePlaylist(ctx, id)
	})
}

func (s *Sync) SaveFavorites(ids []string) {
	s.writer.Submit(kindFavorites, func(ctx context.Context) error {
		return s.store.SaveFavorites(ctx, ids)
	})
}
