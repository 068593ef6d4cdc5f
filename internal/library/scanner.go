package library

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/jscyril/noor_player/api"
	"github.com/jscyril/noor_player/internal/audio"
	playerrors "github.com/jscyril/noor_player/pkg/errors"
	"go.uber.org/zap"
)

// Importer turns audio bytes into a cached local-origin track
type Importer interface {
	FromLocalFile(ctx context.Context, name string, r io.ReadSeeker) (api.Track, error)
}

// Scanner walks directories and imports supported audio files using a
// worker pool
type Scanner struct {
	workers  int
	importer Importer
	log      *zap.Logger
}

// NewScanner creates a new file scanner
func NewScanner(importer Importer, workers int, log *zap.Logger) *Scanner {
	if workers <= 0 {
		workers = 4
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Scanner{workers: workers, importer: importer, log: log}
}

// Scan walks paths concurrently. Both channels are closed once every file
// has been handled or ctx is cancelled.
func (s *Scanner) Scan(ctx context.Context, paths []string) (<-chan api.Track, <-chan error) {
	tracks := make(chan api.Track, 100)
	errs := make(chan error, 100)
	files := make(chan string, 100)

	report := func(err error) {
		select {
		case errs <- err:
		case <-ctx.Done():
		}
	}

	var wg sync.WaitGroup

	go func() {
		defer close(files)
		for _, root := range paths {
			if ctx.Err() != nil {
				return
			}
			err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
				if err != nil {
					report(&playerrors.ScanError{Path: p, Err: err})
					return nil
				}
				if ctx.Err() != nil {
					return ctx.Err()
				}
				if d.IsDir() || !audio.IsSupported(p) {
					return nil
				}
				select {
				case files <- p:
					return nil
				case <-ctx.Done():
					return ctx.Err()
				}
			})
			if err != nil && !errors.Is(err, context.Canceled) {
				report(&playerrors.ScanError{Path: root, Err: err})
			}
		}
	}()

	for i := 0; i < s.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for p := range files {
				if ctx.Err() != nil {
					return
				}
				track, err := s.ImportFile(ctx, p)
				if err != nil {
					report(err)
					continue
				}
				select {
				case tracks <- track:
				case <-ctx.Done():
					return
				}
			}
		}()
	}

	go func() {
		wg.Wait()
		close(tracks)
		close(errs)
	}()

	return tracks, errs
}

// ImportFile imports a single file from any location
func (s *Scanner) ImportFile(ctx context.Context, path string) (api.Track, error) {
	if !audio.IsSupported(path) {
		return api.Track{}, &playerrors.ScanError{Path: path, Err: playerrors.ErrUnsupportedFormat}
	}
	f, err := os.Open(path)
	if err != nil {
		return api.Track{}, &playerrors.ScanError{Path: path, Err: err}
	}
	defer f.Close()

	track, err := s.importer.FromLocalFile(ctx, filepath.Base(path), f)
	if err != nil {
		return api.Track{}, &playerrors.ScanError{Path: path, Err: fmt.Errorf("import: %w", err)}
	}
	s.log.Debug("imported file", zap.String("path", path), zap.String("track_id", track.ID))
	return track, nil
}
