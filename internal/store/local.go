package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/jscyril/noor_player/api"
)

// LocalStore keeps one JSON file per entity under a directory. It backs
// anonymous sessions.
type LocalStore struct {
	dir string
	mu  sync.Mutex
}

// NewLocalStore creates the directory layout if it doesn't exist
func NewLocalStore(dir string) (*LocalStore, error) {
	if err := os.MkdirAll(filepath.Join(dir, "playlists"), 0755); err != nil {
		return nil, fmt.Errorf("create store directory: %w", err)
	}
	return &LocalStore{dir: dir}, nil
}

func (s *LocalStore) LoadQueue(ctx context.Context) (QueueDoc, error) {
	var doc QueueDoc
	if err := s.readJSON(filepath.Join(s.dir, "queue.json"), &doc); err != nil {
		return QueueDoc{CurrentIndex: -1}, err
	}
	return doc, nil
}

func (s *LocalStore) SaveQueue(ctx context.Context, doc QueueDoc) error {
	return s.writeJSON(filepath.Join(s.dir, "queue.json"), doc)
}

func (s *LocalStore) LoadPlaylists(ctx context.Context) ([]api.Playlist, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := os.ReadDir(filepath.Join(s.dir, "playlists"))
	if err != nil {
		return nil, fmt.Errorf("read playlist directory: %w", err)
	}

	var playlists []api.Playlist
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}
		data, err := os.ReadFile(filepath.Join(s.dir, "playlists", entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("read playlist %s: %w", entry.Name(), err)
		}
		var p api.Playlist
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, fmt.Errorf("decode playlist %s: %w", entry.Name(), err)
		}
		playlists = append(playlists, p)
	}
	sort.Slice(playlists, func(i, j int) bool {
		return playlists[i].CreatedAt.Before(playlists[j].CreatedAt)
	})
	return playlists, nil
}

func (s *LocalStore) SavePlaylist(ctx context.Context, p api.Playlist) error {
	path, err := s.playlistPath(p.ID)
	if err != nil {
		return err
	}
	return s.writeJSON(path, p)
}

func (s *LocalStore) DeletePlaylist(ctx context.Context, id string) error {
	path, err := s.playlistPath(id)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete playlist file: %w", err)
	}
	return nil
}

func (s *LocalStore) LoadFavorites(ctx context.Context) ([]string, error) {
	var ids []string
	if err := s.readJSON(filepath.Join(s.dir, "favorites.json"), &ids); err != nil {
		return nil, err
	}
	return ids, nil
}

func (s *LocalStore) SaveFavorites(ctx context.Context, ids []string) error {
	if ids == nil {
		ids = []string{}
	}
	return s.writeJSON(filepath.Join(s.dir, "favorites.json"), ids)
}

func (s *LocalStore) Close() error { return nil }

func (s *LocalStore) playlistPath(id string) (string, error) {
	if id == "" || strings.ContainsAny(id, `/\`) || id == "." || id == ".." {
		return "", fmt.Errorf("invalid playlist id %q", id)
	}
	return filepath.Join(s.dir, "playlists", id+".json"), nil
}

func (s *LocalStore) readJSON(path string, v interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrNotFound, filepath.Base(path))
		}
		return fmt.Errorf("read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

func (s *LocalStore) writeJSON(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", filepath.Base(path), err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename %s: %w", path, err)
	}
	return nil
}
