package session

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/jscyril/noor_player/api"
	"github.com/jscyril/noor_player/internal/audio"
	"github.com/jscyril/noor_player/internal/catalog"
	"github.com/jscyril/noor_player/internal/config"
	"github.com/jscyril/noor_player/internal/mediacache"
	"github.com/jscyril/noor_player/internal/store"
	"github.com/jscyril/noor_player/internal/testutil"
	playerrors "github.com/jscyril/noor_player/pkg/errors"
)

type stubProvider struct{}

func (stubProvider) ResolveItem(ctx context.Context, id string) (catalog.ItemMeta, error) {
	return catalog.ItemMeta{ID: id, Title: "Nasheed " + id, DurationSeconds: 180, Available: true}, nil
}

func (p stubProvider) ResolveItems(ctx context.Context, ids []string) (map[string]catalog.ItemMeta, error) {
	out := make(map[string]catalog.ItemMeta, len(ids))
	for _, id := range ids {
		out[id], _ = p.ResolveItem(ctx, id)
	}
	return out, nil
}

func (stubProvider) ResolvePlaylist(ctx context.Context, id string) (catalog.PlaylistMeta, error) {
	return catalog.PlaylistMeta{}, playerrors.ErrNotFound
}

func (stubProvider) ListPlaylistItems(ctx context.Context, id, token string) (catalog.ItemPage, error) {
	return catalog.ItemPage{}, playerrors.ErrNotFound
}

// silentBackend accepts every track and never ends on its own
type silentBackend struct {
	mu     sync.Mutex
	loaded string
	dur    float64
}

func (b *silentBackend) Load(ctx context.Context, src audio.Source, onEnd func(error)) error {
	src.Media.Release()
	b.mu.Lock()
	defer b.mu.Unlock()
	b.loaded = src.Track.ID
	b.dur = src.Track.DurationSeconds
	return nil
}

func (b *silentBackend) Play(ctx context.Context) error                    { return nil }
func (b *silentBackend) Pause(ctx context.Context) error                   { return nil }
func (b *silentBackend) Seek(ctx context.Context, seconds float64) error   { return nil }
func (b *silentBackend) Position(ctx context.Context) (float64, error)     { return 0, nil }
func (b *silentBackend) SetRate(ctx context.Context, rate float64) error   { return nil }
func (b *silentBackend) SetVolume(ctx context.Context, percent int) error { return nil }

func (b *silentBackend) Duration() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dur
}

func (b *silentBackend) Unload(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.loaded = ""
	return nil
}

func (b *silentBackend) loadedID() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.loaded
}

func openTestSession(t *testing.T, dataDir string) *Session {
	t.Helper()
	ctx := context.Background()

	cfg := config.GetDefaultConfig()
	cfg.DataDir = dataDir
	cfg.Player.TickInterval = config.Duration(10 * time.Millisecond)

	st, err := store.NewLocalStore(cfg.LocalStoreDir())
	if err != nil {
		t.Fatal(err)
	}
	media, err := mediacache.NewFSCache(cfg.MediaDir(), nil)
	if err != nil {
		t.Fatal(err)
	}

	s, err := New(ctx, cfg, nil, Deps{
		Store:    st,
		Media:    media,
		Provider: stubProvider{},
		Local:    &silentBackend{},
		Stream:   &silentBackend{},
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Load(ctx); err != nil {
		t.Fatal(err)
	}
	return s
}

func TestSession_FreshStart(t *testing.T) {
	s := openTestSession(t, t.TempDir())
	defer s.Close(context.Background())

	if s.Queue.Len() != 0 {
		t.Errorf("queue has %d entries", s.Queue.Len())
	}
	if _, err := s.Playlists.Get(api.DefaultPlaylistID); err != nil {
		t.Errorf("default playlist missing: %v", err)
	}
	if st := s.Engine.State(); st.Status != api.StatusIdle || st.Volume != 80 {
		t.Errorf("engine state = %+v", st)
	}
}

func TestSession_StatePersistsAcrossSessions(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	wav := filepath.Join(t.TempDir(), "Dua Kumayl.wav")
	if err := os.WriteFile(wav, testutil.WAV(0.5), 0644); err != nil {
		t.Fatal(err)
	}

	s := openTestSession(t, dir)
	streamed, err := s.Enqueue(ctx, "https://youtu.be/aaaaaaaaaaa?t=42")
	if err != nil {
		t.Fatal(err)
	}
	if streamed.ID != "yt:aaaaaaaaaaa" || streamed.Origin != api.OriginStreaming {
		t.Errorf("streamed track = %+v", streamed)
	}
	local, err := s.Enqueue(ctx, wav)
	if err != nil {
		t.Fatal(err)
	}
	if local.Origin != api.OriginLocal || local.Name != "Dua Kumayl" || local.DurationSeconds < 0.49 {
		t.Errorf("local track = %+v", local)
	}

	_, err = s.Enqueue(ctx, "https://www.youtube.com/watch?v=aaaaaaaaaaa")
	var dup *playerrors.DuplicateTrackError
	if !errors.As(err, &dup) {
		t.Errorf("want duplicate error, got %v", err)
	}

	if on, err := s.ToggleFavorite(local.ID); err != nil || !on {
		t.Errorf("toggle = %v, %v", on, err)
	}
	if _, err := s.ToggleFavorite("nope"); !errors.Is(err, playerrors.ErrTrackNotFound) {
		t.Errorf("unknown track favorited: %v", err)
	}
	if err := s.Close(ctx); err != nil {
		t.Fatal(err)
	}

	s = openTestSession(t, dir)
	defer s.Close(ctx)

	tracks := s.Queue.Tracks()
	if len(tracks) != 2 || tracks[0].ID != streamed.ID || tracks[1].ID != local.ID {
		t.Fatalf("restored queue = %v", tracks)
	}
	fav := s.Playlists.Favorites()
	if len(fav.Tracks) != 1 || fav.Tracks[0].ID != local.ID {
		t.Errorf("restored favorites = %v", fav.Tracks)
	}

	// the cached copy survives the original file
	os.Remove(wav)
	if err := s.Engine.JumpTo(ctx, 1); err != nil {
		t.Fatal(err)
	}
	if st := s.Engine.State(); st.Track == nil || st.Track.ID != local.ID || !st.Playing {
		t.Errorf("state = %+v", st)
	}
}

func TestSession_RemovingCurrentTrackMovesOn(t *testing.T) {
	ctx := context.Background()
	s := openTestSession(t, t.TempDir())
	defer s.Close(ctx)

	for _, id := range []string{"aaaaaaaaaaa", "bbbbbbbbbbb"} {
		if _, err := s.Enqueue(ctx, id); err != nil {
			t.Fatal(err)
		}
	}
	if err := s.Engine.Play(ctx); err != nil {
		t.Fatal(err)
	}
	if err := s.Queue.Remove("yt:aaaaaaaaaaa"); err != nil {
		t.Fatal(err)
	}

	st := s.Engine.State()
	if st.Track == nil || st.Track.ID != "yt:bbbbbbbbbbb" || st.Index != 0 || !st.Playing {
		t.Errorf("state after removal = %+v", st)
	}
}

func TestSession_Resolve(t *testing.T) {
	s := openTestSession(t, t.TempDir())
	defer s.Close(context.Background())

	if _, err := s.Resolve(context.Background(), "https://example.com/song.mp3"); !errors.Is(err, playerrors.ErrInvalidSource) {
		t.Errorf("want ErrInvalidSource, got %v", err)
	}
	if _, err := s.Resolve(context.Background(), t.TempDir()); !errors.Is(err, playerrors.ErrInvalidSource) {
		t.Errorf("a directory is not a source: %v", err)
	}
}

func TestSession_RejectedLocalFileLeavesNoCachedCopy(t *testing.T) {
	tests := []struct {
		name     string
		playlist string
	}{
		{"queue", ""},
		{"playlist", api.DefaultPlaylistID},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			dir := t.TempDir()
			wav := filepath.Join(t.TempDir(), "Burda.wav")
			if err := os.WriteFile(wav, testutil.WAV(0.5), 0644); err != nil {
				t.Fatal(err)
			}

			s := openTestSession(t, dir)
			defer s.Close(ctx)

			var first api.Track
			for i := 0; i < 2; i++ {
				track, err := s.Resolve(ctx, wav)
				if err != nil {
					t.Fatal(err)
				}
				err = s.AddResolved(ctx, tt.playlist, track)
				var dup *playerrors.DuplicateTrackError
				switch {
				case i == 0 && err != nil:
					t.Fatal(err)
				case i == 0:
					first = track
				case !errors.As(err, &dup):
					t.Fatalf("second add: want duplicate error, got %v", err)
				}
			}

			cfg := config.GetDefaultConfig()
			cfg.DataDir = dir
			blobs, err := filepath.Glob(filepath.Join(cfg.MediaDir(), "*.bin"))
			if err != nil {
				t.Fatal(err)
			}
			if len(blobs) != 1 || filepath.Base(blobs[0]) != first.Locator+".bin" {
				t.Errorf("cached media = %v, want only %s", blobs, first.Locator)
			}
			m, err := s.Media.Get(ctx, first.Locator)
			if err != nil {
				t.Fatalf("accepted track lost its media: %v", err)
			}
			m.Release()
		})
	}
}
