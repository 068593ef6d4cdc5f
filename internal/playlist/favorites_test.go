package playlist

import (
	"fmt"
	"testing"

	"github.com/jscyril/noor_player/api"
)

func TestFavorites_ToggleTwiceRestores(t *testing.T) {
	p := newMemPersister()
	f := NewFavorites(p)
	f.Restore([]string{"a", "b"})

	for _, id := range []string{"a", "c"} {
		before := f.Contains(id)
		first := f.Toggle(id)
		if first == before {
			t.Errorf("%s: first toggle returned %v, want %v", id, first, !before)
		}
		second := f.Toggle(id)
		if second != before || f.Contains(id) != before {
			t.Errorf("%s: membership after two toggles = %v, want %v", id, f.Contains(id), before)
		}
	}

	if len(p.favorites) != 4 {
		t.Errorf("each toggle should persist, got %d writes", len(p.favorites))
	}
	if got := fmt.Sprint(f.IDs()); got != "[b a]" {
		// re-starring moves an id to the end of the starring order
		t.Errorf("ids = %s, want [b a]", got)
	}
}

func TestFavorites_RestoreDedups(t *testing.T) {
	f := NewFavorites(nil)
	f.Restore([]string{"x", "", "y", "x"})
	if got := fmt.Sprint(f.IDs()); got != "[x y]" {
		t.Errorf("ids = %s", got)
	}
	if f.Len() != 2 {
		t.Errorf("len = %d", f.Len())
	}
}

func TestMaterializeFavorites(t *testing.T) {
	a := streamTrack("aaaaaaaaaaa", "A")
	b := localTrack("b", "kb", "B")
	c := localTrack("c", "kc", "C")
	favs := []string{"c", "a", "missing"}

	tests := []struct {
		name  string
		known []api.Track
	}{
		{"queue order", []api.Track{a, b, c}},
		{"reverse order", []api.Track{c, b, a}},
		{"repeated across lists", []api.Track{a, c, a, b, c, a}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MaterializeFavorites(favs, tt.known)
			if got.ID != api.FavoritesPlaylistID || got.Type != api.PlaylistSystem {
				t.Errorf("unexpected identity %s/%s", got.ID, got.Type)
			}
			if ids := fmt.Sprint(trackIDs(got.Tracks)); ids != "[c yt:aaaaaaaaaaa]" {
				t.Errorf("tracks = %s", ids)
			}
		})
	}

	if empty := MaterializeFavorites(nil, []api.Track{a}); len(empty.Tracks) != 0 {
		t.Error("no favorites should give an empty playlist")
	}
}
