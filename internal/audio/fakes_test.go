package audio

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/jscyril/noor_player/api"
	"github.com/jscyril/noor_player/internal/mediacache"
	playerrors "github.com/jscyril/noor_player/pkg/errors"
)

// sliceQueue is a minimal TrackQueue
type sliceQueue struct {
	mu       sync.Mutex
	tracks   []api.Track
	index    int
	shuffled bool
}

func newSliceQueue(tracks ...api.Track) *sliceQueue {
	return &sliceQueue{tracks: tracks, index: -1}
}

func (q *sliceQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.tracks)
}

func (q *sliceQueue) Index() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.index
}

func (q *sliceQueue) At(i int) (api.Track, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if i < 0 || i >= len(q.tracks) {
		return api.Track{}, false
	}
	return q.tracks[i], true
}

func (q *sliceQueue) JumpTo(i int) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if i < 0 || i >= len(q.tracks) {
		return playerrors.ErrIndexOutOfRange
	}
	q.index = i
	return nil
}

func (q *sliceQueue) Shuffle(enable bool) {
	q.mu.Lock()
	q.shuffled = enable
	q.mu.Unlock()
}

// removeAt mirrors the real queue: the index stays on the follower
func (q *sliceQueue) removeAt(i int) api.Track {
	q.mu.Lock()
	defer q.mu.Unlock()
	t := q.tracks[i]
	q.tracks = append(q.tracks[:i], q.tracks[i+1:]...)
	switch {
	case i < q.index:
		q.index--
	case i == q.index && q.index >= len(q.tracks):
		q.index = -1
	}
	return t
}

// fakeBackend records what the engine asks of it. Loaded backends across
// all fakes sharing one counter must never exceed one.
type fakeBackend struct {
	name string

	mu       sync.Mutex
	track    *api.Track
	onEnd    func(error)
	playing  bool
	pos      float64
	duration float64
	rate     float64
	volume   int
	loads    int
	unloads  int

	loadErr error
	playErr error
	// when set, Load signals entered and waits for release
	entered chan struct{}
	release chan struct{}

	active    *int32
	maxActive *int32
}

func newFakePair() (stream, local *fakeBackend) {
	var active, max int32
	return &fakeBackend{name: "stream", active: &active, maxActive: &max},
		&fakeBackend{name: "local", active: &active, maxActive: &max}
}

func (f *fakeBackend) Load(ctx context.Context, src Source, onEnd func(error)) error {
	if f.entered != nil {
		f.entered <- struct{}{}
		<-f.release
	}
	src.Media.Release()

	f.mu.Lock()
	defer f.mu.Unlock()
	f.loads++
	if f.loadErr != nil {
		return f.loadErr
	}
	if f.track == nil {
		n := atomic.AddInt32(f.active, 1)
		for {
			m := atomic.LoadInt32(f.maxActive)
			if n <= m || atomic.CompareAndSwapInt32(f.maxActive, m, n) {
				break
			}
		}
	}
	t := src.Track
	f.track = &t
	f.onEnd = onEnd
	f.pos = 0
	f.duration = t.DurationSeconds
	f.playing = false
	return nil
}

func (f *fakeBackend) Play(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.playErr != nil {
		return f.playErr
	}
	if f.track != nil {
		f.playing = true
	}
	return nil
}

func (f *fakeBackend) Pause(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.playing = false
	return nil
}

func (f *fakeBackend) Seek(ctx context.Context, seconds float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pos = seconds
	return nil
}

func (f *fakeBackend) Position(ctx context.Context) (float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pos, nil
}

func (f *fakeBackend) Duration() float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.duration
}

func (f *fakeBackend) SetRate(ctx context.Context, rate float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rate = rate
	return nil
}

func (f *fakeBackend) SetVolume(ctx context.Context, percent int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.volume = percent
	return nil
}

func (f *fakeBackend) Unload(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.track != nil {
		atomic.AddInt32(f.active, -1)
	}
	f.unloads++
	f.track = nil
	f.onEnd = nil
	f.playing = false
	return nil
}

// finish plays the loaded media to its end
func (f *fakeBackend) finish() {
	f.breakOff(nil)
}

// breakOff stops the loaded media the way a backend does on its own,
// with err nil at the natural end
func (f *fakeBackend) breakOff(err error) {
	f.mu.Lock()
	onEnd := f.onEnd
	f.onEnd = nil
	f.mu.Unlock()
	if onEnd != nil {
		onEnd(err)
	}
}

func (f *fakeBackend) setPosition(p float64) {
	f.mu.Lock()
	f.pos = p
	f.mu.Unlock()
}

func (f *fakeBackend) loadedID() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.track == nil {
		return ""
	}
	return f.track.ID
}

func (f *fakeBackend) snapshot() (playing bool, volume int, rate float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.playing, f.volume, f.rate
}

// fakeMedia serves a fixed set of cache keys
type fakeMedia struct {
	mu     sync.Mutex
	keys   map[string]bool
	opened []*trackedBody
}

type trackedBody struct {
	*bytes.Reader
	closed bool
}

func (b *trackedBody) Close() error {
	b.closed = true
	return nil
}

func newFakeMedia(keys ...string) *fakeMedia {
	m := &fakeMedia{keys: make(map[string]bool)}
	for _, k := range keys {
		m.keys[k] = true
	}
	return m
}

func (m *fakeMedia) Get(ctx context.Context, id string) (*mediacache.Media, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.keys[id] {
		return nil, mediacache.ErrNotFound
	}
	body := &trackedBody{Reader: bytes.NewReader([]byte("audio"))}
	m.opened = append(m.opened, body)
	return &mediacache.Media{ID: id, Name: id + ".mp3", Size: 5, Body: body}, nil
}

func (m *fakeMedia) allReleased() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, b := range m.opened {
		if !b.closed {
			return false
		}
	}
	return true
}

var errBackend = errors.New("backend exploded")

func streamingTrack(id string, seconds float64) api.Track {
	return api.Track{
		ID:              "yt:" + id,
		Origin:          api.OriginStreaming,
		Locator:         "https://www.youtube.com/watch?v=" + id,
		Name:            id,
		DurationSeconds: seconds,
		ProviderID:      id,
	}
}

func localFileTrack(id string, seconds float64) api.Track {
	return api.Track{
		ID:              id,
		Origin:          api.OriginLocal,
		Locator:         "key-" + id,
		Name:            id,
		DurationSeconds: seconds,
	}
}
