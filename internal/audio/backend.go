package audio

import (
	"context"

	"github.com/jscyril/noor_player/api"
	"github.com/jscyril/noor_player/internal/mediacache"
)

// Source is what a backend needs to load a track. Media is set only for
// local-origin tracks and is owned by the backend once Load is called.
type Source struct {
	Track api.Track
	Media *mediacache.Media
}

// Backend is one way of producing sound. The engine keeps at most one
// backend loaded at a time and only talks to it through this interface.
//
// onEnd is called once when the loaded media stops on its own: with nil at
// the natural end, or with the reason when playback broke off. Backends
// call it from their own goroutine with no internal locks held.
type Backend interface {
	Load(ctx context.Context, src Source, onEnd func(err error)) error
	Play(ctx context.Context) error
	Pause(ctx context.Context) error
	// Seek moves to an absolute position in seconds
	Seek(ctx context.Context, seconds float64) error
	Position(ctx context.Context) (float64, error)
	// Duration returns the loaded media length in seconds, 0 if unknown
	Duration() float64
	SetRate(ctx context.Context, rate float64) error
	// SetVolume takes the effective volume, 0-100
	SetVolume(ctx context.Context, percent int) error
	// Unload stops playback and releases everything Load acquired.
	// Unloading an empty backend is a no-op.
	Unload(ctx context.Context) error
}
