package audio

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
)

// StreamOptions configures the mpv-driven streaming backend
type StreamOptions struct {
	// Path is the mpv binary. Empty means attach to an mpv that is already
	// listening on Socket.
	Path           string
	Socket         string
	ExtraArgs      []string
	CommandTimeout time.Duration
	LoadTimeout    time.Duration
}

// StreamBackend plays remote tracks through an mpv process controlled over
// its JSON IPC socket. mpv never pushes the playback position, so the
// engine polls Position while playing.
type StreamBackend struct {
	opts StreamOptions
	log  *zap.Logger

	mu       sync.Mutex
	proc     *exec.Cmd
	client   *mpvClient
	loading  chan error // set while Load waits for file-loaded
	loaded   bool
	duration float64
	onEnd    func(error)
}

var _ Backend = (*StreamBackend)(nil)

func NewStreamBackend(opts StreamOptions, log *zap.Logger) *StreamBackend {
	if log == nil {
		log = zap.NewNop()
	}
	if opts.Socket == "" {
		opts.Socket = filepath.Join(os.TempDir(), fmt.Sprintf("noor-mpv-%d.sock", os.Getpid()))
	}
	if opts.CommandTimeout <= 0 {
		opts.CommandTimeout = 5 * time.Second
	}
	if opts.LoadTimeout <= 0 {
		opts.LoadTimeout = 30 * time.Second
	}
	return &StreamBackend{opts: opts, log: log.With(zap.String("backend", "mpv"))}
}

// connect starts mpv if needed and attaches to its IPC socket
func (b *StreamBackend) connect(ctx context.Context) (*mpvClient, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.client != nil {
		select {
		case <-b.client.done:
			b.log.Warn("mpv connection lost, reconnecting")
			b.client = nil
		default:
			return b.client, nil
		}
	}

	if b.opts.Path != "" && (b.proc == nil || b.proc.ProcessState != nil) {
		os.Remove(b.opts.Socket)
		args := append([]string{
			"--idle=yes",
			"--no-video",
			"--no-terminal",
			"--input-ipc-server=" + b.opts.Socket,
		}, b.opts.ExtraArgs...)
		cmd := exec.Command(b.opts.Path, args...)
		if err := cmd.Start(); err != nil {
			return nil, fmt.Errorf("start mpv: %w", err)
		}
		b.proc = cmd
		go func() {
			err := cmd.Wait()
			b.log.Info("mpv exited", zap.Error(err))
		}()
		b.log.Info("mpv started", zap.Int("pid", cmd.Process.Pid), zap.String("socket", b.opts.Socket))
	}

	var dialer net.Dialer
	for {
		conn, err := dialer.DialContext(ctx, "unix", b.opts.Socket)
		if err == nil {
			b.client = newMPVClient(conn, b.handleEvent, b.log)
			return b.client, nil
		}
		// the socket appears shortly after mpv starts
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("mpv ipc %s: %w (last dial error: %v)", b.opts.Socket, ctx.Err(), err)
		case <-time.After(50 * time.Millisecond):
		}
	}
}

func (b *StreamBackend) handleEvent(ev mpvEvent) {
	switch ev.Event {
	case "file-loaded":
		b.mu.Lock()
		ch := b.loading
		b.loading = nil
		b.mu.Unlock()
		if ch != nil {
			ch <- nil
		}

	case "end-file":
		b.mu.Lock()
		ch := b.loading
		onEnd := b.onEnd
		ended := b.loaded && (ev.Reason == "eof" || ev.Reason == "error")
		if ev.Reason == "error" && ch != nil {
			b.loading = nil
		}
		if ended {
			b.loaded = false
			b.onEnd = nil
			b.duration = 0
		}
		b.mu.Unlock()

		switch {
		case ev.Reason == "error" && ch != nil:
			ch <- fmt.Errorf("mpv could not open media: %s", ev.FileError)
		case ended:
			var err error
			if ev.Reason == "error" {
				b.log.Warn("stream stopped with error", zap.String("error", ev.FileError))
				err = fmt.Errorf("mpv playback failed: %s", ev.FileError)
			}
			if onEnd != nil {
				go onEnd(err)
			}
		}
	}
}

func (b *StreamBackend) Load(ctx context.Context, src Source, onEnd func(error)) error {
	if src.Track.Locator == "" {
		return fmt.Errorf("streaming track %s has no locator", src.Track.ID)
	}
	ctx, cancel := context.WithTimeout(ctx, b.opts.LoadTimeout)
	defer cancel()

	c, err := b.connect(ctx)
	if err != nil {
		return err
	}

	ch := make(chan error, 1)
	b.mu.Lock()
	b.loading = ch
	b.loaded = false
	b.onEnd = nil
	b.duration = 0
	b.mu.Unlock()

	abandon := func() {
		b.mu.Lock()
		if b.loading == ch {
			b.loading = nil
		}
		b.mu.Unlock()
	}

	if err := c.set(ctx, "pause", true); err != nil {
		abandon()
		return err
	}
	if _, err := c.command(ctx, "loadfile", src.Track.Locator, "replace"); err != nil {
		abandon()
		return err
	}

	select {
	case err := <-ch:
		if err != nil {
			return err
		}
	case <-ctx.Done():
		abandon()
		return fmt.Errorf("mpv load %s: %w", src.Track.ID, ctx.Err())
	}

	duration, err := c.getFloat(ctx, "duration")
	if err != nil {
		// live streams have no duration; the engine falls back to metadata
		b.log.Debug("duration unavailable", zap.String("track_id", src.Track.ID), zap.Error(err))
		duration = 0
	}

	b.mu.Lock()
	b.loaded = true
	b.duration = duration
	b.onEnd = onEnd
	b.mu.Unlock()
	return nil
}

// active returns the client while media is loaded
func (b *StreamBackend) active() *mpvClient {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.loaded {
		return nil
	}
	return b.client
}

func (b *StreamBackend) set(ctx context.Context, property string, value interface{}) error {
	c := b.active()
	if c == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, b.opts.CommandTimeout)
	defer cancel()
	return c.set(ctx, property, value)
}

func (b *StreamBackend) Play(ctx context.Context) error {
	return b.set(ctx, "pause", false)
}

func (b *StreamBackend) Pause(ctx context.Context) error {
	return b.set(ctx, "pause", true)
}

func (b *StreamBackend) Seek(ctx context.Context, seconds float64) error {
	return b.set(ctx, "time-pos", seconds)
}

func (b *StreamBackend) Position(ctx context.Context) (float64, error) {
	c := b.active()
	if c == nil {
		return 0, nil
	}
	ctx, cancel := context.WithTimeout(ctx, b.opts.CommandTimeout)
	defer cancel()
	return c.getFloat(ctx, "time-pos")
}

func (b *StreamBackend) Duration() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.duration
}

func (b *StreamBackend) SetRate(ctx context.Context, rate float64) error {
	return b.set(ctx, "speed", rate)
}

func (b *StreamBackend) SetVolume(ctx context.Context, percent int) error {
	return b.set(ctx, "volume", percent)
}

// Unload stops the current file but keeps mpv running for the next load
func (b *StreamBackend) Unload(ctx context.Context) error {
	b.mu.Lock()
	c := b.client
	wasLoaded := b.loaded
	b.loaded = false
	b.onEnd = nil
	b.duration = 0
	b.mu.Unlock()

	if c == nil || !wasLoaded {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, b.opts.CommandTimeout)
	defer cancel()
	if _, err := c.command(ctx, "stop"); err != nil && !errors.Is(err, errMPVClosed) {
		return err
	}
	return nil
}

// Close quits mpv if this backend started it
func (b *StreamBackend) Close(ctx context.Context) error {
	if err := b.Unload(ctx); err != nil {
		b.log.Debug("unload on close", zap.Error(err))
	}

	b.mu.Lock()
	c, proc := b.client, b.proc
	b.client, b.proc = nil, nil
	b.mu.Unlock()

	if c == nil {
		return nil
	}
	if proc != nil {
		qctx, cancel := context.WithTimeout(ctx, b.opts.CommandTimeout)
		if _, err := c.command(qctx, "quit"); err != nil && !errors.Is(err, errMPVClosed) {
			b.log.Debug("quit mpv", zap.Error(err))
		}
		cancel()
	}
	return c.Close()
}
