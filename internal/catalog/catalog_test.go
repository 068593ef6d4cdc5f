package catalog

import (
	"bytes"
	"context"
	"errors"
	"io"
	"math"
	"testing"

	"github.com/jscyril/noor_player/api"
	"github.com/jscyril/noor_player/internal/testutil"
	playerrors "github.com/jscyril/noor_player/pkg/errors"
)

func TestParseVideoID(t *testing.T) {
	tests := []struct {
		locator string
		want    string
		wantErr bool
	}{
		{"dQw4w9WgXcQ", "dQw4w9WgXcQ", false},
		{"https://www.youtube.com/watch?v=dQw4w9WgXcQ", "dQw4w9WgXcQ", false},
		{"https://www.youtube.com/watch?feature=share&v=dQw4w9WgXcQ&t=42", "dQw4w9WgXcQ", false},
		{"youtube.com/watch?v=dQw4w9WgXcQ", "dQw4w9WgXcQ", false},
		{"https://m.youtube.com/watch?v=dQw4w9WgXcQ", "dQw4w9WgXcQ", false},
		{"https://music.youtube.com/watch?v=dQw4w9WgXcQ&list=RDAMVM", "dQw4w9WgXcQ", false},
		{"https://youtu.be/dQw4w9WgXcQ", "dQw4w9WgXcQ", false},
		{"https://youtu.be/dQw4w9WgXcQ?si=abc&t=10", "dQw4w9WgXcQ", false},
		{"https://www.youtube.com/embed/dQw4w9WgXcQ?autoplay=1", "dQw4w9WgXcQ", false},
		{"https://www.youtube-nocookie.com/embed/dQw4w9WgXcQ", "dQw4w9WgXcQ", false},
		{"https://www.youtube.com/shorts/dQw4w9WgXcQ", "dQw4w9WgXcQ", false},
		{"https://www.youtube.com/live/dQw4w9WgXcQ?feature=share", "dQw4w9WgXcQ", false},
		{"HTTPS://WWW.YOUTUBE.COM/watch?v=dQw4w9WgXcQ", "dQw4w9WgXcQ", false},
		{"", "", true},
		{"not a url", "", true},
		{"https://vimeo.com/12345678901", "", true},
		{"https://www.youtube.com/watch?v=short", "", true},
		{"https://www.youtube.com/playlist?list=PL1234567890", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.locator, func(t *testing.T) {
			got, err := ParseVideoID(tt.locator)
			if tt.wantErr {
				if !errors.Is(err, playerrors.ErrInvalidSource) {
					t.Fatalf("ParseVideoID(%q) error = %v, want ErrInvalidSource", tt.locator, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseVideoID(%q) unexpected error: %v", tt.locator, err)
			}
			if got != tt.want {
				t.Errorf("ParseVideoID(%q) = %q, want %q", tt.locator, got, tt.want)
			}
		})
	}
}

func TestParsePlaylistID(t *testing.T) {
	tests := []struct {
		locator string
		want    string
		wantErr bool
	}{
		{"PLrAXtmErZgOeiKm4sgNOknGvNjby9efdf", "PLrAXtmErZgOeiKm4sgNOknGvNjby9efdf", false},
		{"https://www.youtube.com/playlist?list=PLrAXtmErZgOeiKm4sgNOknGvNjby9efdf", "PLrAXtmErZgOeiKm4sgNOknGvNjby9efdf", false},
		{"https://www.youtube.com/watch?v=dQw4w9WgXcQ&list=PLrAXtmErZgOeiKm4sgNOknGvNjby9efdf", "PLrAXtmErZgOeiKm4sgNOknGvNjby9efdf", false},
		{"https://www.youtube.com/watch?v=dQw4w9WgXcQ", "", true},
		{"https://example.com/playlist?list=PLrAXtmErZgOeiKm4sgNOknGvNjby9efdf", "", true},
		{"abc", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.locator, func(t *testing.T) {
			got, err := ParsePlaylistID(tt.locator)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParsePlaylistID(%q) error = %v, wantErr %v", tt.locator, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParsePlaylistID(%q) = %q, want %q", tt.locator, got, tt.want)
			}
		})
	}
}

func TestIsDuplicate(t *testing.T) {
	streamA := api.Track{ID: "yt:a", Origin: api.OriginStreaming, ProviderID: "aaaaaaaaaaa", Name: "Surah"}
	streamA2 := api.Track{ID: "other", Origin: api.OriginStreaming, ProviderID: "aaaaaaaaaaa", Name: "Different"}
	streamB := api.Track{ID: "yt:b", Origin: api.OriginStreaming, ProviderID: "bbbbbbbbbbb", Name: "Surah"}
	localA := api.Track{ID: "l1", Origin: api.OriginLocal, Locator: "k1", Name: "Surah"}
	localSameKey := api.Track{ID: "l2", Origin: api.OriginLocal, Locator: "k1", Name: "Other"}
	localSameName := api.Track{ID: "l3", Origin: api.OriginLocal, Locator: "k3", Name: "  surah "}
	localDiff := api.Track{ID: "l4", Origin: api.OriginLocal, Locator: "k4", Name: "Nasheed"}

	tests := []struct {
		name string
		a, b api.Track
		want bool
	}{
		{"same provider id", streamA, streamA2, true},
		{"different provider id same name", streamA, streamB, false},
		{"local same cache key", localA, localSameKey, true},
		{"local same name", localA, localSameName, true},
		{"local different", localA, localDiff, false},
		{"cross origin same name", streamA, localA, false},
		{"cross origin reversed", localA, streamA, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsDuplicate(tt.a, tt.b); got != tt.want {
				t.Errorf("IsDuplicate = %v, want %v", got, tt.want)
			}
			if got := IsDuplicate(tt.b, tt.a); got != tt.want {
				t.Errorf("IsDuplicate (swapped) = %v, want %v", got, tt.want)
			}
		})
	}

	if FindDuplicate([]api.Track{localDiff, streamB, localA}, localSameName) != 2 {
		t.Error("FindDuplicate should find the local track by name")
	}
	if FindDuplicate(nil, localA) != -1 {
		t.Error("FindDuplicate on empty list should be -1")
	}
}

type fakeProvider struct {
	items map[string]ItemMeta
	err   error
}

func (p *fakeProvider) ResolveItem(ctx context.Context, id string) (ItemMeta, error) {
	if p.err != nil {
		return ItemMeta{}, p.err
	}
	m, ok := p.items[id]
	if !ok {
		return ItemMeta{ID: id, Reason: "not found"}, nil
	}
	return m, nil
}

func (p *fakeProvider) ResolveItems(ctx context.Context, ids []string) (map[string]ItemMeta, error) {
	out := make(map[string]ItemMeta)
	for _, id := range ids {
		if m, ok := p.items[id]; ok {
			out[id] = m
		}
	}
	return out, p.err
}

func (p *fakeProvider) ResolvePlaylist(ctx context.Context, id string) (PlaylistMeta, error) {
	return PlaylistMeta{}, p.err
}

func (p *fakeProvider) ListPlaylistItems(ctx context.Context, id, token string) (ItemPage, error) {
	return ItemPage{}, p.err
}

func TestFromExternalSource(t *testing.T) {
	provider := &fakeProvider{items: map[string]ItemMeta{
		"dQw4w9WgXcQ": {ID: "dQw4w9WgXcQ", Title: "Recitation", DurationSeconds: 180, ThumbnailURL: "https://img/x.jpg", Available: true},
		"privateVid1": {ID: "privateVid1", Title: "Private video", Reason: "private"},
	}}
	c := New(provider, nil, nil)
	ctx := context.Background()

	track, err := c.FromExternalSource(ctx, "https://youtu.be/dQw4w9WgXcQ")
	if err != nil {
		t.Fatal(err)
	}
	if track.ID != "yt:dQw4w9WgXcQ" || track.ProviderID != "dQw4w9WgXcQ" {
		t.Errorf("unexpected identity %q / %q", track.ID, track.ProviderID)
	}
	if track.Origin != api.OriginStreaming || track.DurationSeconds != 180 || track.Name != "Recitation" {
		t.Errorf("unexpected track %+v", track)
	}
	if err := track.Validate(); err != nil {
		t.Errorf("track should validate: %v", err)
	}

	if _, err := c.FromExternalSource(ctx, "https://example.com/x"); !errors.Is(err, playerrors.ErrInvalidSource) {
		t.Errorf("want ErrInvalidSource, got %v", err)
	}
	if _, err := c.FromExternalSource(ctx, "privateVid1"); !errors.Is(err, playerrors.ErrMetadataFetch) {
		t.Errorf("private item: want ErrMetadataFetch, got %v", err)
	}

	provider.err = errors.New("connection refused")
	if _, err := c.FromExternalSource(ctx, "dQw4w9WgXcQ"); !errors.Is(err, playerrors.ErrMetadataFetch) {
		t.Errorf("provider failure: want ErrMetadataFetch, got %v", err)
	}
}

type memSaver struct {
	saved map[string][]byte
}

func (m *memSaver) Save(ctx context.Context, name string, r io.Reader) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	key := "key-" + name
	m.saved[key] = data
	return key, nil
}

func TestFromLocalFile(t *testing.T) {
	saver := &memSaver{saved: make(map[string][]byte)}
	c := New(nil, saver, nil)

	wav := testutil.WAV(2)
	track, err := c.FromLocalFile(context.Background(), "/music/Adhan Makkah.wav", bytes.NewReader(wav))
	if err != nil {
		t.Fatal(err)
	}
	if track.Origin != api.OriginLocal {
		t.Errorf("origin = %v", track.Origin)
	}
	if math.Abs(track.DurationSeconds-2) > 0.01 {
		t.Errorf("duration = %v, want 2", track.DurationSeconds)
	}
	if track.Name != "Adhan Makkah" {
		t.Errorf("name = %q", track.Name)
	}
	if !bytes.Equal(saver.saved[track.Locator], wav) {
		t.Error("cached bytes should equal the full original file")
	}
}

func TestFromLocalFile_Unsupported(t *testing.T) {
	saver := &memSaver{saved: make(map[string][]byte)}
	c := New(nil, saver, nil)

	_, err := c.FromLocalFile(context.Background(), "notes.txt", bytes.NewReader([]byte("hello")))
	if !errors.Is(err, playerrors.ErrUnsupportedFormat) {
		t.Fatalf("want ErrUnsupportedFormat, got %v", err)
	}
	if len(saver.saved) != 0 {
		t.Error("nothing should be cached when probing fails")
	}
}
