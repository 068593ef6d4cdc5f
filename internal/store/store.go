// Package store persists the queue, playlists and favorites of one user.
package store

import (
	"context"
	"fmt"

	"github.com/jscyril/noor_player/api"
	"github.com/jscyril/noor_player/internal/config"
	playerrors "github.com/jscyril/noor_player/pkg/errors"
	"go.uber.org/zap"
)

// ErrNotFound is returned by loads when nothing has been saved yet
var ErrNotFound = playerrors.ErrNotFound

// QueueDoc is the persisted form of the queue
type QueueDoc struct {
	Tracks       []api.Track `json:"tracks"`
	CurrentIndex int         `json:"current_index"` // -1 when nothing is selected
	Shuffled     bool        `json:"shuffled"`
	// Unshuffled holds track ids in their pre-shuffle order
	Unshuffled []string `json:"unshuffled,omitempty"`
}

// Store is the persistence boundary. Every save fully replaces the entity.
type Store interface {
	LoadQueue(ctx context.Context) (QueueDoc, error)
	SaveQueue(ctx context.Context, doc QueueDoc) error

	LoadPlaylists(ctx context.Context) ([]api.Playlist, error)
	SavePlaylist(ctx context.Context, p api.Playlist) error
	DeletePlaylist(ctx context.Context, id string) error

	LoadFavorites(ctx context.Context) ([]string, error)
	SaveFavorites(ctx context.Context, ids []string) error

	Close() error
}

// Open picks the backend once for the whole session: anonymous sessions
// use the local store, signed-in users use the configured remote store.
func Open(ctx context.Context, cfg *config.Config, log *zap.Logger) (Store, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if !cfg.Authenticated() {
		log.Info("using local store", zap.String("dir", cfg.LocalStoreDir()))
		return NewLocalStore(cfg.LocalStoreDir())
	}

	switch cfg.Store.Backend {
	case "redis":
		log.Info("using redis store", zap.String("addr", cfg.Store.RedisAddr), zap.String("user", cfg.UserID))
		return NewRedisStore(ctx, RedisOptions{
			Addr:     cfg.Store.RedisAddr,
			Password: cfg.Store.RedisPassword,
			DB:       cfg.Store.RedisDB,
		}, cfg.UserID)
	case "postgres":
		log.Info("using postgres store", zap.String("user", cfg.UserID))
		return NewPostgresStore(ctx, cfg.Store.PostgresDSN, cfg.UserID)
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
}

const (
	kindQueue     = "queue"
	kindFavorites = "favorites"
	kindPlaylist  = "playlist"
)
