// Package mediacache keeps user-supplied audio files available across
// sessions, addressed by an opaque id.
package mediacache

import (
	"context"
	"io"
	"sync"

	playerrors "github.com/jscyril/noor_player/pkg/errors"
)

// ErrNotFound is returned by Get and Delete for unknown ids
var ErrNotFound = playerrors.ErrNotFound

// Cache is the local media cache boundary
type Cache interface {
	// Save stores the bytes read from r and returns a fresh id
	Save(ctx context.Context, name string, r io.Reader) (string, error)
	// Get opens the media stored under id. Callers must Release it.
	Get(ctx context.Context, id string) (*Media, error)
	Delete(ctx context.Context, id string) error
}

// Media is an open handle on cached bytes
type Media struct {
	ID   string
	Name string
	Size int64
	Body io.ReadSeekCloser

	once sync.Once
	err  error
}

// Release closes the handle. It is safe to call more than once.
func (m *Media) Release() error {
	if m == nil || m.Body == nil {
		return nil
	}
	m.once.Do(func() {
		m.err = m.Body.Close()
	})
	return m.err
}
