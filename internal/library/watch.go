package library

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/jscyril/noor_player/api"
	"github.com/jscyril/noor_player/internal/audio"
	"go.uber.org/zap"
)

const defaultSettle = 500 * time.Millisecond

// Watcher imports audio files as they appear in watched directories.
// A file is imported once it has stopped changing for the settle period,
// so half-copied files are not decoded.
type Watcher struct {
	scanner *Scanner
	settle  time.Duration
	onTrack func(api.Track)
	onError func(error)
	log     *zap.Logger
}

// WatchOptions configures a Watcher. OnTrack is required.
type WatchOptions struct {
	Settle  time.Duration
	OnTrack func(api.Track)
	OnError func(error)
}

func NewWatcher(scanner *Scanner, opts WatchOptions, log *zap.Logger) *Watcher {
	if opts.Settle <= 0 {
		opts.Settle = defaultSettle
	}
	if opts.OnError == nil {
		opts.OnError = func(error) {}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Watcher{
		scanner: scanner,
		settle:  opts.Settle,
		onTrack: opts.OnTrack,
		onError: opts.OnError,
		log:     log,
	}
}

// Run watches dirs until ctx is cancelled. Files already present are left
// alone; use Scan for those.
func (w *Watcher) Run(ctx context.Context, dirs []string) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer fw.Close()

	for _, dir := range dirs {
		if err := fw.Add(dir); err != nil {
			return fmt.Errorf("watch %s: %w", dir, err)
		}
		w.log.Info("watching directory", zap.String("dir", dir))
	}

	pending := make(map[string]time.Time)
	imported := make(map[string]bool)
	ticker := time.NewTicker(w.settle / 4)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
				delete(pending, event.Name)
				delete(imported, event.Name)
				continue
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
				continue
			}
			if imported[event.Name] || !audio.IsSupported(event.Name) {
				continue
			}
			pending[event.Name] = time.Now()

		case now := <-ticker.C:
			for path, last := range pending {
				if now.Sub(last) < w.settle {
					continue
				}
				delete(pending, path)
				if info, err := os.Stat(path); err != nil || info.IsDir() {
					continue
				}
				imported[path] = true

				track, err := w.scanner.ImportFile(ctx, path)
				if err != nil {
					w.log.Warn("import failed", zap.String("path", path), zap.Error(err))
					w.onError(err)
					continue
				}
				w.onTrack(track)
			}

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.log.Warn("watcher error", zap.Error(err))
			w.onError(err)
		}
	}
}
