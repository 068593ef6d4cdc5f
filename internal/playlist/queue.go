package playlist

import (
	"math/rand"
	"sync"
	"time"

	"github.com/jscyril/noor_player/api"
	"github.com/jscyril/noor_player/internal/catalog"
	"github.com/jscyril/noor_player/internal/store"
	playerrors "github.com/jscyril/noor_player/pkg/errors"
	"github.com/jscyril/noor_player/pkg/events"
)

// Persister receives full-replacement snapshots after every mutation.
// Implementations must not block; store.Sync hands them to a background
// writer.
type Persister interface {
	SaveQueue(doc store.QueueDoc)
	SavePlaylist(p api.Playlist)
	DeletePlaylist(id string)
	SaveFavorites(ids []string)
}

// Queue represents the playback queue
type Queue struct {
	tracks []api.Track
	index  int // -1 when nothing is selected

	shuffled bool
	// unshuffled holds track ids in the order they had before shuffling
	unshuffled []string

	rng     *rand.Rand
	persist Persister
	bus     *events.EventBus

	currentRemoved func(removed api.Track)

	mu sync.RWMutex
}

// NewQueue creates a new empty queue. persist and bus may be nil.
func NewQueue(persist Persister, bus *events.EventBus) *Queue {
	return &Queue{
		tracks:  make([]api.Track, 0),
		index:   -1,
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
		persist: persist,
		bus:     bus,
	}
}

// OnCurrentRemoved registers the observer told when the current entry
// leaves the queue through Remove or Clear. It runs after the mutation,
// outside the queue lock.
func (q *Queue) OnCurrentRemoved(fn func(removed api.Track)) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.currentRemoved = fn
}

// Restore replaces the queue with a persisted document without writing it
// back. Duplicate entries are dropped and the index is clamped.
func (q *Queue) Restore(doc store.QueueDoc) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.tracks = make([]api.Track, 0, len(doc.Tracks))
	for _, t := range doc.Tracks {
		if catalog.FindDuplicate(q.tracks, t) >= 0 {
			continue
		}
		q.tracks = append(q.tracks, t)
	}
	q.index = doc.CurrentIndex
	if q.index < -1 || q.index >= len(q.tracks) {
		q.index = -1
	}
	q.shuffled = doc.Shuffled
	q.unshuffled = nil
	if doc.Shuffled {
		q.unshuffled = append([]string(nil), doc.Unshuffled...)
	}
}

// Snapshot returns the persistable form of the queue
func (q *Queue) Snapshot() store.QueueDoc {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.snapshotLocked()
}

func (q *Queue) snapshotLocked() store.QueueDoc {
	doc := store.QueueDoc{
		Tracks:       make([]api.Track, len(q.tracks)),
		CurrentIndex: q.index,
		Shuffled:     q.shuffled,
	}
	copy(doc.Tracks, q.tracks)
	if q.shuffled {
		doc.Unshuffled = append([]string(nil), q.unshuffled...)
	}
	return doc
}

// changed persists and announces a mutation. Must be called without q.mu held.
func (q *Queue) changed(doc store.QueueDoc) {
	if q.persist != nil {
		q.persist.SaveQueue(doc)
	}
	q.bus.Publish(api.Event{Type: api.EventQueueChanged, Payload: len(doc.Tracks)})
}

// Enqueue appends a track unless it duplicates an entry already queued
func (q *Queue) Enqueue(track api.Track) error {
	q.mu.Lock()
	if catalog.FindDuplicate(q.tracks, track) >= 0 {
		q.mu.Unlock()
		return &playerrors.DuplicateTrackError{Name: track.Name, Where: "the queue"}
	}
	q.tracks = append(q.tracks, track)
	doc := q.snapshotLocked()
	q.mu.Unlock()

	q.changed(doc)
	return nil
}

// Remove removes the entry with the given track id. When it was the
// current entry, the index moves to the entry that followed it (or -1)
// and the OnCurrentRemoved observer is called.
func (q *Queue) Remove(trackID string) error {
	q.mu.Lock()
	pos := q.indexOfLocked(trackID)
	if pos < 0 {
		q.mu.Unlock()
		return playerrors.ErrTrackNotFound
	}

	removed := q.tracks[pos]
	q.tracks = append(q.tracks[:pos], q.tracks[pos+1:]...)

	wasCurrent := pos == q.index
	switch {
	case pos < q.index:
		q.index--
	case wasCurrent && q.index >= len(q.tracks):
		q.index = -1
	}
	if q.shuffled {
		q.unshuffled = removeID(q.unshuffled, trackID)
	}

	doc := q.snapshotLocked()
	notify := q.currentRemoved
	q.mu.Unlock()

	q.changed(doc)
	if wasCurrent && notify != nil {
		notify(removed)
	}
	return nil
}

// Reorder moves one entry. The current index keeps pointing at the same
// logical track.
func (q *Queue) Reorder(from, to int) error {
	q.mu.Lock()
	if from < 0 || from >= len(q.tracks) || to < 0 || to >= len(q.tracks) {
		q.mu.Unlock()
		return playerrors.ErrIndexOutOfRange
	}
	if from == to {
		q.mu.Unlock()
		return nil
	}

	q.tracks = move(q.tracks, from, to)
	q.index = remapIndex(q.index, from, to)

	doc := q.snapshotLocked()
	q.mu.Unlock()

	q.changed(doc)
	return nil
}

// Clear empties the queue and resets the current index to none
func (q *Queue) Clear() {
	q.mu.Lock()
	var removed *api.Track
	if q.index >= 0 && q.index < len(q.tracks) {
		t := q.tracks[q.index]
		removed = &t
	}
	q.tracks = make([]api.Track, 0)
	q.index = -1
	q.shuffled = false
	q.unshuffled = nil

	doc := q.snapshotLocked()
	notify := q.currentRemoved
	q.mu.Unlock()

	q.changed(doc)
	if removed != nil && notify != nil {
		notify(*removed)
	}
}

// Shuffle enables or disables shuffled order.
//
// Enabling caches the current order (only on the first enable) and then
// permutes every entry except the current one, which keeps its index so
// playback doesn't jump. Disabling restores the cached order; tracks
// enqueued while shuffled follow it in queue order and removed tracks are
// left out.
func (q *Queue) Shuffle(enable bool) {
	q.mu.Lock()
	if enable {
		if !q.shuffled {
			q.unshuffled = idsOf(q.tracks)
			q.shuffled = true
		}
		q.shuffleLocked()
	} else {
		if !q.shuffled {
			q.mu.Unlock()
			return
		}
		q.unshuffleLocked()
	}
	doc := q.snapshotLocked()
	q.mu.Unlock()

	q.changed(doc)
}

// shuffleLocked is a Fisher-Yates pass over every position but the current
func (q *Queue) shuffleLocked() {
	positions := make([]int, 0, len(q.tracks))
	for i := range q.tracks {
		if i != q.index {
			positions = append(positions, i)
		}
	}
	for i := len(positions) - 1; i > 0; i-- {
		j := q.rng.Intn(i + 1)
		a, b := positions[i], positions[j]
		q.tracks[a], q.tracks[b] = q.tracks[b], q.tracks[a]
	}
}

func (q *Queue) unshuffleLocked() {
	var currentID string
	if q.index >= 0 && q.index < len(q.tracks) {
		currentID = q.tracks[q.index].ID
	}

	byID := make(map[string]api.Track, len(q.tracks))
	for _, t := range q.tracks {
		byID[t.ID] = t
	}

	restored := make([]api.Track, 0, len(q.tracks))
	placed := make(map[string]bool, len(q.tracks))
	for _, id := range q.unshuffled {
		if t, ok := byID[id]; ok && !placed[id] {
			restored = append(restored, t)
			placed[id] = true
		}
	}
	for _, t := range q.tracks {
		if !placed[t.ID] {
			restored = append(restored, t)
			placed[t.ID] = true
		}
	}

	q.tracks = restored
	q.index = -1
	if currentID != "" {
		q.index = q.indexOfLocked(currentID)
	}
	q.shuffled = false
	q.unshuffled = nil
}

// JumpTo makes the entry at index current
func (q *Queue) JumpTo(index int) error {
	q.mu.Lock()
	if index < 0 || index >= len(q.tracks) {
		q.mu.Unlock()
		return playerrors.ErrIndexOutOfRange
	}
	if q.index == index {
		q.mu.Unlock()
		return nil
	}
	q.index = index
	doc := q.snapshotLocked()
	q.mu.Unlock()

	if q.persist != nil {
		q.persist.SaveQueue(doc)
	}
	return nil
}

// Current returns the current track
func (q *Queue) Current() (api.Track, bool) {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.index < 0 || q.index >= len(q.tracks) {
		return api.Track{}, false
	}
	return q.tracks[q.index], true
}

// At returns the track at index
func (q *Queue) At(index int) (api.Track, bool) {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if index < 0 || index >= len(q.tracks) {
		return api.Track{}, false
	}
	return q.tracks[index], true
}

// Tracks returns a copy of all tracks in the queue
func (q *Queue) Tracks() []api.Track {
	q.mu.RLock()
	defer q.mu.RUnlock()

	result := make([]api.Track, len(q.tracks))
	copy(result, q.tracks)
	return result
}

// Contains reports whether a track with this id is queued
func (q *Queue) Contains(trackID string) bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.indexOfLocked(trackID) >= 0
}

// Len returns the number of tracks in the queue
func (q *Queue) Len() int {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return len(q.tracks)
}

// Index returns the current index, -1 when none
func (q *Queue) Index() int {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.index
}

// IsShuffled returns whether the queue is shuffled
func (q *Queue) IsShuffled() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.shuffled
}

func (q *Queue) indexOfLocked(trackID string) int {
	for i := range q.tracks {
		if q.tracks[i].ID == trackID {
			return i
		}
	}
	return -1
}

// move relocates s[from] to position to, shifting the entries between
func move(s []api.Track, from, to int) []api.Track {
	t := s[from]
	if from < to {
		copy(s[from:to], s[from+1:to+1])
	} else {
		copy(s[to+1:from+1], s[to:from])
	}
	s[to] = t
	return s
}

// remapIndex returns where the entry at cur ends up after moving from→to
func remapIndex(cur, from, to int) int {
	switch {
	case cur < 0:
		return cur
	case cur == from:
		return to
	case from < cur && to >= cur:
		return cur - 1
	case from > cur && to <= cur:
		return cur + 1
	default:
		return cur
	}
}

func idsOf(tracks []api.Track) []string {
	ids := make([]string, len(tracks))
	for i, t := range tracks {
		ids[i] = t.ID
	}
	return ids
}

func removeID(ids []string, id string) []string {
	out := ids[:0]
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}
