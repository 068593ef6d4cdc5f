package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/jscyril/noor_player/api"
	"github.com/redis/go-redis/v9"
)

// RedisOptions configures the redis connection
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
}

// RedisStore keeps a user's documents under noor:<uid>:* keys
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore connects and pings the server
func NewRedisStore(ctx context.Context, opts RedisOptions, userID string) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return newRedisStore(client, userID), nil
}

func newRedisStore(client *redis.Client, userID string) *RedisStore {
	return &RedisStore{client: client, prefix: "noor:" + userID + ":"}
}

func (s *RedisStore) queueKey() string     { return s.prefix + kindQueue }
func (s *RedisStore) favoritesKey() string { return s.prefix + kindFavorites }
func (s *RedisStore) playlistsKey() string { return s.prefix + "playlists" }

func (s *RedisStore) LoadQueue(ctx context.Context) (QueueDoc, error) {
	doc := QueueDoc{CurrentIndex: -1}
	if err := s.getJSON(ctx, s.queueKey(), &doc); err != nil {
		return QueueDoc{CurrentIndex: -1}, err
	}
	return doc, nil
}

func (s *RedisStore) SaveQueue(ctx context.Context, doc QueueDoc) error {
	return s.setJSON(ctx, s.queueKey(), doc)
}

func (s *RedisStore) LoadPlaylists(ctx context.Context) ([]api.Playlist, error) {
	raw, err := s.client.HGetAll(ctx, s.playlistsKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load playlists: %w", err)
	}
	playlists := make([]api.Playlist, 0, len(raw))
	for id, body := range raw {
		var p api.Playlist
		if err := json.Unmarshal([]byte(body), &p); err != nil {
			return nil, fmt.Errorf("failed to decode playlist %s: %w", id, err)
		}
		playlists = append(playlists, p)
	}
	sort.Slice(playlists, func(i, j int) bool {
		return playlists[i].CreatedAt.Before(playlists[j].CreatedAt)
	})
	return playlists, nil
}

func (s *RedisStore) SavePlaylist(ctx context.Context, p api.Playlist) error {
	body, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to marshal playlist: %w", err)
	}
	if err := s.client.HSet(ctx, s.playlistsKey(), p.ID, body).Err(); err != nil {
		return fmt.Errorf("failed to save playlist %s: %w", p.ID, err)
	}
	return nil
}

func (s *RedisStore) DeletePlaylist(ctx context.Context, id string) error {
	if err := s.client.HDel(ctx, s.playlistsKey(), id).Err(); err != nil {
		return fmt.Errorf("failed to delete playlist %s: %w", id, err)
	}
	return nil
}

func (s *RedisStore) LoadFavorites(ctx context.Context) ([]string, error) {
	var ids []string
	if err := s.getJSON(ctx, s.favoritesKey(), &ids); err != nil {
		return nil, err
	}
	return ids, nil
}

func (s *RedisStore) SaveFavorites(ctx context.Context, ids []string) error {
	if ids == nil {
		ids = []string{}
	}
	return s.setJSON(ctx, s.favoritesKey(), ids)
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) getJSON(ctx context.Context, key string, v interface{}) error {
	body, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	if err != nil {
		return fmt.Errorf("failed to get %s: %w", key, err)
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("failed to decode %s: %w", key, err)
	}
	return nil
}

func (s *RedisStore) setJSON(ctx context.Context, key string, v interface{}) error {
	body, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", key, err)
	}
	if err := s.client.Set(ctx, key, body, 0).Err(); err != nil {
		return fmt.Errorf("failed to set %s: %w", key, err)
	}
	return nil
}
