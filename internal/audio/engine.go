package audio

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/jscyril/noor_player/api"
	"github.com/jscyril/noor_player/internal/mediacache"
	playerrors "github.com/jscyril/noor_player/pkg/errors"
	"github.com/jscyril/noor_player/pkg/events"
	"github.com/jscyril/noor_player/pkg/logger"
	"go.uber.org/zap"
)

const (
	MinRate = 0.25
	MaxRate = 4.0

	// Previous restarts the current track instead of going back once it
	// has played longer than this many seconds
	restartThreshold = 3.0

	defaultTick = time.Second
)

// TrackQueue is the part of the queue the engine reads and drives
type TrackQueue interface {
	Len() int
	Index() int
	At(index int) (api.Track, bool)
	JumpTo(index int) error
	Shuffle(enable bool)
}

// MediaSource resolves the cache key of a local-origin track
type MediaSource interface {
	Get(ctx context.Context, id string) (*mediacache.Media, error)
}

// EngineOptions wires an Engine to its queue, media and backends
type EngineOptions struct {
	Queue  TrackQueue
	Media  MediaSource
	Local  Backend
	Stream Backend
	Bus    *events.EventBus
	Log    *zap.Logger
	// TickInterval is the position reporting cadence while playing
	TickInterval time.Duration
	Volume       int
}

// Engine owns the playback session: which track is loaded, which backend
// plays it, and the transport state observers see.
type Engine struct {
	queue  TrackQueue
	media  MediaSource
	local  Backend
	stream Backend
	bus    *events.EventBus
	log    *zap.Logger
	tick   time.Duration

	mu       sync.Mutex
	state    api.PlaybackState
	active   Backend
	gen      uint64 // bumped by every load and stop
	tickStop chan struct{}
	closed   bool
	// playPending says whether the track being loaded starts once it is
	// ready; Play and Pause during a load flip it
	playPending bool

	// serializes backend switches so teardown always finishes before the
	// next backend is activated
	loadMu sync.Mutex
}

// NewEngine creates an idle engine
func NewEngine(opts EngineOptions) *Engine {
	opts.Log = logger.OrNop(opts.Log)
	if opts.TickInterval <= 0 {
		opts.TickInterval = defaultTick
	}
	if opts.Volume < 0 || opts.Volume > 100 {
		opts.Volume = 100
	}
	return &Engine{
		queue:  opts.Queue,
		media:  opts.Media,
		local:  opts.Local,
		stream: opts.Stream,
		bus:    opts.Bus,
		log:    opts.Log,
		tick:   opts.TickInterval,
		state: api.PlaybackState{
			Status: api.StatusIdle,
			Index:  -1,
			Rate:   1,
			Volume: opts.Volume,
		},
	}
}

// State returns a copy of the current playback state
func (e *Engine) State() api.PlaybackState {
	e.mu.Lock()
	s := e.snapshotLocked()
	e.mu.Unlock()
	if s.Track != nil {
		// the queue tracks the current entry through reorders and shuffles
		s.Index = e.queue.Index()
	}
	return s
}

func (e *Engine) snapshotLocked() api.PlaybackState {
	s := e.state
	if e.state.Track != nil {
		t := *e.state.Track
		s.Track = &t
	}
	return s
}

// LoadIndex loads the queue entry at index without starting playback
func (e *Engine) LoadIndex(ctx context.Context, index int) error {
	return e.start(ctx, index, false)
}

// JumpTo loads and plays the queue entry at index
func (e *Engine) JumpTo(ctx context.Context, index int) error {
	if index < 0 || index >= e.queue.Len() {
		return playerrors.ErrIndexOutOfRange
	}
	return e.start(ctx, index, true)
}

// Play resumes the loaded track, or starts the queue's current entry
func (e *Engine) Play(ctx context.Context) error {
	e.mu.Lock()
	loaded := e.active != nil
	status := e.state.Status
	if status == api.StatusLoading {
		e.playPending = true
	}
	e.mu.Unlock()

	switch {
	case status == api.StatusPlaying || status == api.StatusLoading:
		return nil
	case loaded:
		return e.resume(ctx)
	}

	n := e.queue.Len()
	if n == 0 {
		return playerrors.ErrEmptyQueue
	}
	idx := e.queue.Index()
	if idx < 0 || idx >= n {
		idx = 0
	}
	return e.start(ctx, idx, true)
}

// Pause pauses playback. The engine ends up paused even if the backend
// reports an error. A pause during a load keeps the track from starting.
func (e *Engine) Pause(ctx context.Context) error {
	e.mu.Lock()
	b, gen, status := e.active, e.gen, e.state.Status
	e.playPending = false
	e.mu.Unlock()
	if b == nil || status != api.StatusPlaying {
		return nil
	}

	err := b.Pause(ctx)

	e.mu.Lock()
	if gen != e.gen {
		e.mu.Unlock()
		return nil
	}
	e.stopTickerLocked()
	e.state.Status = api.StatusPaused
	e.state.Playing = false
	s := e.snapshotLocked()
	e.mu.Unlock()
	e.publishState(s)

	if err != nil {
		return e.report(playerrors.NewPlayerError("pause", trackID(s), fmt.Errorf("%w: %v", playerrors.ErrPlaybackFailed, err)))
	}
	return nil
}

// TogglePlay flips between playing and paused
func (e *Engine) TogglePlay(ctx context.Context) error {
	e.mu.Lock()
	playing := e.state.Status == api.StatusPlaying
	e.mu.Unlock()
	if playing {
		return e.Pause(ctx)
	}
	return e.Play(ctx)
}

// Stop unloads the current track and goes idle
func (e *Engine) Stop(ctx context.Context) error {
	e.halt(ctx, 0)
	return nil
}

// Close stops playback for good
func (e *Engine) Close(ctx context.Context) error {
	e.halt(ctx, 0)
	e.mu.Lock()
	e.closed = true
	e.mu.Unlock()
	return nil
}

// Seek moves to an absolute position, clamped to [0, duration]
func (e *Engine) Seek(ctx context.Context, seconds float64) error {
	e.mu.Lock()
	b, gen := e.active, e.gen
	duration := e.state.Duration
	e.mu.Unlock()
	if b == nil {
		return playerrors.ErrNothingLoaded
	}
	if d := b.Duration(); d > 0 {
		duration = d
	}
	target := clampPosition(seconds, duration)

	if err := b.Seek(ctx, target); err != nil {
		return e.report(playerrors.NewPlayerError("seek", trackID(e.State()), fmt.Errorf("%w: %v", playerrors.ErrPlaybackFailed, err)))
	}

	e.mu.Lock()
	if gen != e.gen {
		e.mu.Unlock()
		return nil
	}
	e.state.Position = target
	e.state.Duration = duration
	u := e.positionLocked()
	e.mu.Unlock()
	e.bus.Publish(api.Event{Type: api.EventPositionUpdate, Payload: u})
	return nil
}

// SeekRelative moves by delta seconds from the current position, clamped
// the same way as Seek
func (e *Engine) SeekRelative(ctx context.Context, delta float64) error {
	if math.IsNaN(delta) {
		return nil
	}
	pos, err := e.currentPosition(ctx)
	if err != nil {
		return err
	}
	return e.Seek(ctx, pos+delta)
}

// SetRate sets the playback speed, clamped to [MinRate, MaxRate]
func (e *Engine) SetRate(ctx context.Context, rate float64) error {
	rate = clampRate(rate)
	e.mu.Lock()
	e.state.Rate = rate
	b := e.active
	s := e.snapshotLocked()
	e.mu.Unlock()

	if b != nil {
		if err := b.SetRate(ctx, rate); err != nil {
			return e.report(playerrors.NewPlayerError("rate", trackID(s), fmt.Errorf("%w: %v", playerrors.ErrPlaybackFailed, err)))
		}
	}
	e.publishState(s)
	return nil
}

// SetVolume sets the volume, 0-100. While muted the new level is
// remembered and applied on unmute.
func (e *Engine) SetVolume(ctx context.Context, percent int) error {
	if percent < 0 || percent > 100 {
		return playerrors.ErrInvalidVolume
	}
	e.mu.Lock()
	e.state.Volume = percent
	e.mu.Unlock()
	return e.applyVolume(ctx)
}

// Mute silences output without touching the volume level
func (e *Engine) Mute(ctx context.Context) error { return e.setMuted(ctx, true) }

// Unmute restores the level that was set before muting
func (e *Engine) Unmute(ctx context.Context) error { return e.setMuted(ctx, false) }

func (e *Engine) ToggleMute(ctx context.Context) error {
	e.mu.Lock()
	muted := e.state.Muted
	e.mu.Unlock()
	return e.setMuted(ctx, !muted)
}

func (e *Engine) setMuted(ctx context.Context, muted bool) error {
	e.mu.Lock()
	e.state.Muted = muted
	e.mu.Unlock()
	return e.applyVolume(ctx)
}

func (e *Engine) applyVolume(ctx context.Context) error {
	e.mu.Lock()
	b := e.active
	level := e.effectiveVolumeLocked()
	s := e.snapshotLocked()
	e.mu.Unlock()

	if b != nil {
		if err := b.SetVolume(ctx, level); err != nil {
			return e.report(playerrors.NewPlayerError("volume", trackID(s), fmt.Errorf("%w: %v", playerrors.ErrPlaybackFailed, err)))
		}
	}
	e.publishState(s)
	return nil
}

func (e *Engine) effectiveVolumeLocked() int {
	if e.state.Muted {
		return 0
	}
	return e.state.Volume
}

// SetRepeat changes what happens when a track ends
func (e *Engine) SetRepeat(mode api.RepeatMode) {
	e.mu.Lock()
	e.state.Repeat = mode
	s := e.snapshotLocked()
	e.mu.Unlock()
	e.publishState(s)
}

// SetShuffle shuffles or restores the queue. The current track keeps its
// position so playback doesn't jump.
func (e *Engine) SetShuffle(enable bool) {
	e.queue.Shuffle(enable)
	e.mu.Lock()
	e.state.Shuffle = enable
	s := e.snapshotLocked()
	e.mu.Unlock()
	e.publishState(s)
}

// Next skips to the following queue entry. Past the last entry it wraps
// with repeat all and stops otherwise.
func (e *Engine) Next(ctx context.Context) error {
	n := e.queue.Len()
	if n == 0 {
		return playerrors.ErrEmptyQueue
	}
	idx := e.queue.Index()
	if idx < 0 {
		return e.start(ctx, 0, true)
	}

	e.mu.Lock()
	repeat := e.state.Repeat
	e.mu.Unlock()

	next, ok := nextIndex(repeat, idx, n)
	if !ok {
		return e.Stop(ctx)
	}
	return e.start(ctx, next, true)
}

// Previous restarts the current track once it is past the first few
// seconds, and otherwise goes back one entry.
func (e *Engine) Previous(ctx context.Context) error {
	n := e.queue.Len()
	if n == 0 {
		return playerrors.ErrEmptyQueue
	}

	e.mu.Lock()
	loaded := e.active != nil
	repeat := e.state.Repeat
	e.mu.Unlock()

	if loaded {
		pos, err := e.currentPosition(ctx)
		if err != nil {
			return err
		}
		if pos > restartThreshold {
			return e.Seek(ctx, 0)
		}
	}

	prev, ok := previousIndex(repeat, e.queue.Index(), n)
	if !ok {
		if loaded {
			return e.Seek(ctx, 0)
		}
		return nil
	}
	return e.start(ctx, prev, true)
}

// CurrentRemoved reacts to the loaded track leaving the queue: playback
// moves on to the entry that took its place, or stops.
func (e *Engine) CurrentRemoved(ctx context.Context, removed api.Track) {
	e.mu.Lock()
	loaded := e.state.Track != nil && e.state.Track.ID == removed.ID
	playing := e.state.Playing
	e.mu.Unlock()
	if !loaded {
		return
	}

	idx := e.queue.Index()
	if idx < 0 || !playing {
		e.halt(ctx, 0)
		return
	}
	if err := e.start(ctx, idx, true); err != nil {
		e.log.Debug("advance after removal", zap.String("track_id", removed.ID), zap.Error(err))
	}
}

// Ticking reports whether the position ticker is running
func (e *Engine) Ticking() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.tickStop != nil
}

// start loads index and, when that fails, keeps moving forward past failing
// entries. A full pass of failures leaves the engine idle.
func (e *Engine) start(ctx context.Context, index int, autoplay bool) error {
	n := e.queue.Len()
	if n == 0 {
		return playerrors.ErrEmptyQueue
	}

	var firstErr error
	for attempt := 0; attempt < n; attempt++ {
		gen, err := e.loadIndex(ctx, index, autoplay)
		if err == nil {
			return nil
		}
		if errors.Is(err, playerrors.ErrLoadSuperseded) || ctx.Err() != nil {
			return err
		}
		if firstErr == nil {
			firstErr = err
		}
		e.fail(gen, err)

		e.mu.Lock()
		repeat := e.state.Repeat
		e.mu.Unlock()
		next, ok := nextIndex(repeat, index, e.queue.Len())
		if !ok {
			break
		}
		index = next
	}

	e.halt(ctx, 0)
	return firstErr
}

// loadIndex tears down the active backend and loads the entry at index
// into the backend matching its origin. It returns the load's generation.
func (e *Engine) loadIndex(ctx context.Context, index int, autoplay bool) (uint64, error) {
	track, ok := e.queue.At(index)
	if !ok {
		return 0, playerrors.ErrIndexOutOfRange
	}

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return 0, playerrors.ErrLoadSuperseded
	}
	e.gen++
	gen := e.gen
	e.mu.Unlock()

	e.loadMu.Lock()
	defer e.loadMu.Unlock()

	if e.stale(gen) {
		return gen, playerrors.ErrLoadSuperseded
	}

	e.mu.Lock()
	prev := e.active
	e.active = nil
	e.stopTickerLocked()
	t := track
	e.state.Status = api.StatusLoading
	e.state.Track = &t
	e.state.Index = index
	e.state.Position = 0
	e.state.Duration = track.DurationSeconds
	e.state.Playing = false
	e.playPending = autoplay
	loading := e.snapshotLocked()
	e.mu.Unlock()
	e.publishState(loading)

	e.teardown(ctx, prev)

	if err := e.queue.JumpTo(index); err != nil {
		return gen, err
	}

	backend, src, err := e.resolve(ctx, track)
	if err != nil {
		return gen, err
	}
	if e.stale(gen) {
		src.Media.Release()
		return gen, playerrors.ErrLoadSuperseded
	}

	if err := backend.Load(ctx, src, func(err error) { e.handleEnd(gen, err) }); err != nil {
		src.Media.Release()
		if uerr := backend.Unload(ctx); uerr != nil {
			e.log.Debug("unload after failed load", zap.Error(uerr))
		}
		if errors.Is(err, playerrors.ErrUnsupportedFormat) {
			return gen, playerrors.NewPlayerError("load", track.ID, err)
		}
		return gen, playerrors.NewPlayerError("load", track.ID, fmt.Errorf("%w: %v", playerrors.ErrPlaybackFailed, err))
	}

	e.mu.Lock()
	rate, level := e.state.Rate, e.effectiveVolumeLocked()
	e.mu.Unlock()
	if err := backend.SetRate(ctx, rate); err != nil {
		e.log.Warn("apply rate", zap.String("track_id", track.ID), zap.Error(err))
	}
	if err := backend.SetVolume(ctx, level); err != nil {
		e.log.Warn("apply volume", zap.String("track_id", track.ID), zap.Error(err))
	}

	e.mu.Lock()
	if gen != e.gen {
		e.mu.Unlock()
		if err := backend.Unload(ctx); err != nil {
			e.log.Debug("unload superseded load", zap.String("track_id", track.ID), zap.Error(err))
		}
		return gen, playerrors.ErrLoadSuperseded
	}
	e.active = backend
	if d := backend.Duration(); d > 0 {
		e.state.Duration = d
	}
	e.state.Status = api.StatusPaused
	play := e.playPending
	loaded := e.snapshotLocked()
	e.mu.Unlock()

	e.log.Info("track loaded",
		zap.String("track_id", track.ID),
		zap.String("origin", string(track.Origin)),
		zap.Int("index", index),
		zap.Float64("duration", loaded.Duration),
	)
	e.bus.Publish(api.Event{Type: api.EventTrackStarted, Payload: track})

	if !play {
		e.publishState(loaded)
		return gen, nil
	}
	if err := e.resume(ctx); err != nil {
		return gen, err
	}

	// a pause that raced the start wins
	e.mu.Lock()
	cancelled := gen == e.gen && !e.playPending
	e.playPending = false
	e.mu.Unlock()
	if cancelled {
		return gen, e.Pause(ctx)
	}
	return gen, nil
}

func (e *Engine) resolve(ctx context.Context, track api.Track) (Backend, Source, error) {
	src := Source{Track: track}
	switch track.Origin {
	case api.OriginLocal:
		if e.local == nil {
			return nil, src, playerrors.NewPlayerError("load", track.ID, fmt.Errorf("%w: no local backend", playerrors.ErrPlaybackFailed))
		}
		if e.media == nil {
			return nil, src, playerrors.NewPlayerError("resolve", track.ID, playerrors.ErrTrackUnavailable)
		}
		m, err := e.media.Get(ctx, track.Locator)
		if err != nil {
			if errors.Is(err, playerrors.ErrNotFound) {
				return nil, src, playerrors.NewPlayerError("resolve", track.ID, playerrors.ErrTrackUnavailable)
			}
			return nil, src, playerrors.NewPlayerError("resolve", track.ID, fmt.Errorf("%w: %v", playerrors.ErrTrackUnavailable, err))
		}
		src.Media = m
		return e.local, src, nil

	case api.OriginStreaming:
		if e.stream == nil {
			return nil, src, playerrors.NewPlayerError("load", track.ID, fmt.Errorf("%w: no streaming backend", playerrors.ErrPlaybackFailed))
		}
		return e.stream, src, nil
	}
	return nil, src, playerrors.NewPlayerError("load", track.ID, fmt.Errorf("%w: origin %q", playerrors.ErrInvalidSource, track.Origin))
}

// resume starts the loaded backend. A failing backend leaves the engine
// paused.
func (e *Engine) resume(ctx context.Context) error {
	e.mu.Lock()
	b, gen := e.active, e.gen
	e.mu.Unlock()
	if b == nil {
		return playerrors.ErrNothingLoaded
	}

	err := b.Play(ctx)

	e.mu.Lock()
	if gen != e.gen {
		e.mu.Unlock()
		return playerrors.ErrLoadSuperseded
	}
	if err != nil {
		e.state.Status = api.StatusPaused
		e.state.Playing = false
	} else {
		e.state.Status = api.StatusPlaying
		e.state.Playing = true
		e.startTickerLocked(gen)
	}
	s := e.snapshotLocked()
	e.mu.Unlock()
	e.publishState(s)

	if err != nil {
		return e.report(playerrors.NewPlayerError("play", trackID(s), fmt.Errorf("%w: %v", playerrors.ErrPlaybackFailed, err)))
	}
	return nil
}

// handleEnd runs when the backend loaded by generation gen stops on its
// own. A nil cause is the natural end of the track.
func (e *Engine) handleEnd(gen uint64, cause error) {
	e.mu.Lock()
	if gen != e.gen || e.active == nil || e.closed {
		e.mu.Unlock()
		return
	}
	e.stopTickerLocked()
	if cause != nil {
		repeat := e.state.Repeat
		e.mu.Unlock()
		e.brokeOff(gen, repeat, cause)
		return
	}
	e.state.Status = api.StatusEnded
	e.state.Playing = false
	if e.state.Duration > 0 {
		e.state.Position = e.state.Duration
	}
	repeat := e.state.Repeat
	ended := e.snapshotLocked()
	e.mu.Unlock()

	e.publishState(ended)
	if ended.Track != nil {
		e.bus.Publish(api.Event{Type: api.EventTrackEnded, Payload: *ended.Track})
	}

	ctx := context.Background()
	d := DecideOnEnd(repeat, e.queue.Index(), e.queue.Len())
	e.log.Debug("track ended",
		zap.String("track_id", trackID(ended)),
		zap.Stringer("repeat", repeat),
		zap.Stringer("action", d.Action),
		zap.Int("next", d.Index),
	)

	if d.Action == EndStop {
		e.halt(ctx, gen)
		return
	}
	if err := e.start(ctx, d.Index, true); err != nil && !errors.Is(err, playerrors.ErrLoadSuperseded) {
		e.log.Warn("advance after end failed", zap.Error(err))
	}
}

// brokeOff handles a backend that failed mid-play: the failure is
// surfaced and playback moves on to the next entry, even with repeat one.
func (e *Engine) brokeOff(gen uint64, repeat api.RepeatMode, cause error) {
	ctx := context.Background()
	err := playerrors.NewPlayerError("play", trackID(e.State()), fmt.Errorf("%w: %v", playerrors.ErrPlaybackFailed, cause))
	e.fail(gen, err)

	next, ok := nextIndex(repeat, e.queue.Index(), e.queue.Len())
	if !ok {
		e.halt(ctx, gen)
		return
	}
	if err := e.start(ctx, next, true); err != nil && !errors.Is(err, playerrors.ErrLoadSuperseded) {
		e.log.Warn("advance after playback failure", zap.Error(err))
	}
}

// halt unloads the active backend and goes idle. A non-zero gen only halts
// if no newer load or stop happened since.
func (e *Engine) halt(ctx context.Context, gen uint64) {
	e.mu.Lock()
	if gen != 0 && gen != e.gen {
		e.mu.Unlock()
		return
	}
	e.gen++
	prev := e.active
	e.active = nil
	e.stopTickerLocked()
	e.state.Status = api.StatusIdle
	e.state.Track = nil
	e.state.Index = -1
	e.state.Position = 0
	e.state.Duration = 0
	e.state.Playing = false
	e.playPending = false
	s := e.snapshotLocked()
	e.mu.Unlock()

	e.loadMu.Lock()
	e.teardown(ctx, prev)
	e.loadMu.Unlock()
	e.publishState(s)
}

// teardown pauses and unloads a backend that is no longer active
func (e *Engine) teardown(ctx context.Context, b Backend) {
	if b == nil {
		return
	}
	if err := b.Pause(ctx); err != nil {
		e.log.Debug("pause before unload", zap.Error(err))
	}
	if err := b.Unload(ctx); err != nil {
		e.log.Warn("unload backend", zap.Error(err))
	}
}

// fail surfaces a track failure as an error event and a non-modal notice
func (e *Engine) fail(gen uint64, err error) {
	e.log.Warn("track failed", zap.Error(err))

	e.mu.Lock()
	var s api.PlaybackState
	current := gen == e.gen
	if current {
		e.state.Status = api.StatusError
		e.state.Playing = false
		s = e.snapshotLocked()
	}
	e.mu.Unlock()

	if current {
		e.publishState(s)
	}
	e.bus.Publish(api.Event{Type: api.EventError, Payload: err})
	e.bus.Publish(api.Event{Type: api.EventNotice, Payload: api.Notice{Message: noticeText(err), Err: err}})
}

func noticeText(err error) string {
	switch {
	case errors.Is(err, playerrors.ErrTrackUnavailable):
		return "Track is no longer available, skipping"
	case errors.Is(err, playerrors.ErrUnsupportedFormat):
		return "Track format is not supported, skipping"
	default:
		return "Playback failed, skipping"
	}
}

func (e *Engine) report(err error) error {
	e.log.Warn("playback error", zap.Error(err))
	e.bus.Publish(api.Event{Type: api.EventError, Payload: err})
	return err
}

// currentPosition refreshes the position from the active backend
func (e *Engine) currentPosition(ctx context.Context) (float64, error) {
	e.mu.Lock()
	b, gen := e.active, e.gen
	pos := e.state.Position
	e.mu.Unlock()
	if b == nil {
		return pos, playerrors.ErrNothingLoaded
	}

	p, err := b.Position(ctx)
	if err != nil {
		e.log.Debug("position query failed", zap.Error(err))
		return pos, nil
	}
	e.mu.Lock()
	if gen == e.gen {
		e.state.Position = clampPosition(p, e.state.Duration)
		pos = e.state.Position
	}
	e.mu.Unlock()
	return pos, nil
}

func (e *Engine) startTickerLocked(gen uint64) {
	e.stopTickerLocked()
	stop := make(chan struct{})
	e.tickStop = stop
	go e.runTicker(gen, stop)
}

func (e *Engine) stopTickerLocked() {
	if e.tickStop != nil {
		close(e.tickStop)
		e.tickStop = nil
	}
}

// runTicker polls the backend position; the streaming backend never pushes it
func (e *Engine) runTicker(gen uint64, stop <-chan struct{}) {
	ticker := time.NewTicker(e.tick)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			e.tickOnce(gen)
		}
	}
}

func (e *Engine) tickOnce(gen uint64) {
	e.mu.Lock()
	b := e.active
	ok := gen == e.gen && e.state.Status == api.StatusPlaying
	e.mu.Unlock()
	if !ok || b == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), e.tick)
	defer cancel()
	pos, err := b.Position(ctx)
	if err != nil {
		e.log.Debug("position tick failed", zap.Error(err))
		return
	}
	duration := b.Duration()

	e.mu.Lock()
	if gen != e.gen || e.state.Status != api.StatusPlaying {
		e.mu.Unlock()
		return
	}
	if duration > 0 {
		e.state.Duration = duration
	}
	e.state.Position = clampPosition(pos, e.state.Duration)
	u := e.positionLocked()
	e.mu.Unlock()

	e.bus.Publish(api.Event{Type: api.EventPositionUpdate, Payload: u})
}

func (e *Engine) positionLocked() api.PositionUpdate {
	u := api.PositionUpdate{Position: e.state.Position, Duration: e.state.Duration}
	if e.state.Track != nil {
		u.TrackID = e.state.Track.ID
	}
	return u
}

func (e *Engine) stale(gen uint64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return gen != e.gen
}

func (e *Engine) publishState(s api.PlaybackState) {
	e.bus.Publish(api.Event{Type: api.EventStateChange, Payload: s})
}

func trackID(s api.PlaybackState) string {
	if s.Track == nil {
		return ""
	}
	return s.Track.ID
}

// clampPosition keeps a position inside [0, duration]. With an unknown
// duration only the lower bound applies.
func clampPosition(pos, duration float64) float64 {
	switch {
	case math.IsNaN(pos) || pos < 0:
		return 0
	case duration > 0 && pos > duration:
		return duration
	case math.IsInf(pos, 1):
		return 0
	}
	return pos
}

func clampRate(rate float64) float64 {
	switch {
	case math.IsNaN(rate):
		return 1
	case rate < MinRate:
		return MinRate
	case rate > MaxRate:
		return MaxRate
	}
	return rate
}
