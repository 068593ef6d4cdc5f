package audio

import (
	"bytes"
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/faiface/beep"
	"github.com/jscyril/noor_player/api"
	"github.com/jscyril/noor_player/internal/mediacache"
	"github.com/jscyril/noor_player/internal/testutil"
	playerrors "github.com/jscyril/noor_player/pkg/errors"
)

// manualSink mixes only when the test pulls samples
type manualSink struct {
	rate      beep.SampleRate
	streamers []beep.Streamer
}

func (s *manualSink) SampleRate() beep.SampleRate { return s.rate }

func (s *manualSink) Play(st beep.Streamer) error {
	s.streamers = append(s.streamers, st)
	return nil
}

func (s *manualSink) Clear()  { s.streamers = nil }
func (s *manualSink) Lock()   {}
func (s *manualSink) Unlock() {}

func (s *manualSink) pull(seconds float64) {
	buf := make([][2]float64, 512)
	remaining := s.rate.N(time.Duration(seconds * float64(time.Second)))
	for remaining > 0 {
		n := len(buf)
		if remaining < n {
			n = remaining
		}
		for _, st := range s.streamers {
			st.Stream(buf[:n])
		}
		remaining -= n
	}
}

func wavMedia(seconds float64) (*mediacache.Media, *trackedBody) {
	body := &trackedBody{Reader: bytes.NewReader(testutil.WAV(seconds))}
	return &mediacache.Media{ID: "m", Name: "dua.wav", Body: body}, body
}

func approx(a, b, tol float64) bool { return math.Abs(a-b) <= tol }

func TestLocalBackend_Playback(t *testing.T) {
	ctx := context.Background()
	sink := &manualSink{rate: 44100}
	b := NewLocalBackend(sink, nil)

	media, body := wavMedia(2)
	ended := make(chan struct{})
	track := api.Track{ID: "l", Origin: api.OriginLocal, Locator: "m"}
	if err := b.Load(ctx, Source{Track: track, Media: media}, func(error) { close(ended) }); err != nil {
		t.Fatal(err)
	}
	if !body.closed {
		t.Error("cache handle should be released once decoded")
	}
	if d := b.Duration(); !approx(d, 2, 0.001) {
		t.Errorf("duration = %v, want 2", d)
	}

	if err := b.Seek(ctx, 1.5); err != nil {
		t.Fatal(err)
	}
	sink.pull(1)
	if pos, _ := b.Position(ctx); !approx(pos, 1.5, 0.001) {
		t.Errorf("paused position moved to %v", pos)
	}

	b.Play(ctx)
	sink.pull(0.25)
	if pos, _ := b.Position(ctx); !approx(pos, 1.75, 0.05) {
		t.Errorf("position after 0.25s = %v", pos)
	}

	sink.pull(1)
	select {
	case <-ended:
	case <-time.After(2 * time.Second):
		t.Fatal("end callback not called")
	}
}

func TestLocalBackend_Controls(t *testing.T) {
	ctx := context.Background()
	sink := &manualSink{rate: 44100}
	b := NewLocalBackend(sink, nil)

	// settings before load are kept for the next track
	b.SetRate(ctx, 1.5)
	media, _ := wavMedia(1)
	if err := b.Load(ctx, Source{Track: api.Track{ID: "l"}, Media: media}, func(error) {}); err != nil {
		t.Fatal(err)
	}
	if r := b.resampler.Ratio(); !approx(r, 1.5, 1e-9) {
		t.Errorf("ratio = %v, want 1.5", r)
	}

	b.SetRate(ctx, 0.5)
	if r := b.resampler.Ratio(); !approx(r, 0.5, 1e-9) {
		t.Errorf("ratio = %v, want 0.5", r)
	}

	b.SetVolume(ctx, 0)
	if !b.volume.Silent {
		t.Error("volume 0 should silence output")
	}
	b.SetVolume(ctx, 50)
	if b.volume.Silent || !approx(b.volume.Volume, -1, 1e-9) {
		t.Errorf("volume 50 gave silent=%v gain=%v", b.volume.Silent, b.volume.Volume)
	}

	if err := b.Seek(ctx, 99); err != nil {
		t.Fatal(err)
	}
	if pos, _ := b.Position(ctx); !approx(pos, 1, 0.001) {
		t.Errorf("seek past end should stop at the end, got %v", pos)
	}

	if err := b.Unload(ctx); err != nil {
		t.Fatal(err)
	}
	if len(sink.streamers) != 0 {
		t.Error("unload should clear the sink")
	}
	if b.Duration() != 0 {
		t.Error("duration after unload")
	}
	if err := b.Unload(ctx); err != nil {
		t.Errorf("second unload: %v", err)
	}
}

func TestLocalBackend_UnsupportedMedia(t *testing.T) {
	sink := &manualSink{rate: 44100}
	b := NewLocalBackend(sink, nil)

	body := &trackedBody{Reader: bytes.NewReader([]byte("definitely not audio"))}
	media := &mediacache.Media{ID: "x", Name: "notes.txt", Body: body}

	err := b.Load(context.Background(), Source{Track: api.Track{ID: "x"}, Media: media}, func(error) {})
	if !errors.Is(err, playerrors.ErrUnsupportedFormat) {
		t.Fatalf("want ErrUnsupportedFormat, got %v", err)
	}
	if !body.closed {
		t.Error("cache handle leaked on a failed load")
	}
	if len(sink.streamers) != 0 {
		t.Error("nothing should reach the sink")
	}
}
