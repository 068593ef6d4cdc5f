//go:build integration

package store

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/jscyril/noor_player/api"
)

func exerciseStore(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	if _, err := s.LoadQueue(ctx); !errors.Is(err, ErrNotFound) {
		t.Fatalf("fresh user queue: want ErrNotFound, got %v", err)
	}
	doc := QueueDoc{
		Tracks:       []api.Track{{ID: "yt:aaaaaaaaaaa", Origin: api.OriginStreaming, ProviderID: "aaaaaaaaaaa"}},
		CurrentIndex: 0,
	}
	if err := s.SaveQueue(ctx, doc); err != nil {
		t.Fatal(err)
	}
	got, err := s.LoadQueue(ctx)
	if err != nil || len(got.Tracks) != 1 || got.CurrentIndex != 0 {
		t.Fatalf("queue round trip: %+v, %v", got, err)
	}

	p := api.Playlist{ID: "playlist-1", Name: "Morning adhkar", Type: api.PlaylistCustom}
	if err := s.SavePlaylist(ctx, p); err != nil {
		t.Fatal(err)
	}
	p.Name = "Evening adhkar"
	if err := s.SavePlaylist(ctx, p); err != nil {
		t.Fatal(err)
	}
	all, err := s.LoadPlaylists(ctx)
	if err != nil || len(all) != 1 || all[0].Name != "Evening adhkar" {
		t.Fatalf("playlist upsert: %+v, %v", all, err)
	}
	if err := s.DeletePlaylist(ctx, p.ID); err != nil {
		t.Fatal(err)
	}

	if err := s.SaveFavorites(ctx, []string{"x", "y"}); err != nil {
		t.Fatal(err)
	}
	ids, err := s.LoadFavorites(ctx)
	if err != nil || len(ids) != 2 || ids[0] != "x" {
		t.Fatalf("favorites round trip: %v, %v", ids, err)
	}
}

func TestRedisStore(t *testing.T) {
	addr := os.Getenv("NOOR_REDIS_ADDR")
	if addr == "" {
		t.Skip("NOOR_REDIS_ADDR not set")
	}
	s, err := NewRedisStore(context.Background(), RedisOptions{Addr: addr}, "test-"+uuid.NewString())
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	exerciseStore(t, s)
}

func TestPostgresStore(t *testing.T) {
	dsn := os.Getenv("NOOR_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("NOOR_POSTGRES_DSN not set")
	}
	s, err := NewPostgresStore(context.Background(), dsn, "test-"+uuid.NewString())
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	exerciseStore(t, s)
}
