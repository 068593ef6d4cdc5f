package playlist

import (
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"testing"

	"github.com/jscyril/noor_player/api"
	"github.com/jscyril/noor_player/internal/catalog"
	"github.com/jscyril/noor_player/internal/store"
	playerrors "github.com/jscyril/noor_player/pkg/errors"
)

type memPersister struct {
	mu        sync.Mutex
	queue     []store.QueueDoc
	playlists map[string]api.Playlist
	deleted   []string
	favorites [][]string
}

func newMemPersister() *memPersister {
	return &memPersister{playlists: make(map[string]api.Playlist)}
}

func (p *memPersister) SaveQueue(doc store.QueueDoc) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.queue = append(p.queue, doc)
}

func (p *memPersister) SavePlaylist(pl api.Playlist) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.playlists[pl.ID] = pl
}

func (p *memPersister) DeletePlaylist(id string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.playlists, id)
	p.deleted = append(p.deleted, id)
}

func (p *memPersister) SaveFavorites(ids []string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.favorites = append(p.favorites, ids)
}

func (p *memPersister) queueWrites() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.queue)
}

func streamTrack(vid, name string) api.Track {
	return api.Track{
		ID:              catalog.StreamingTrackID(vid),
		Origin:          api.OriginStreaming,
		Locator:         catalog.WatchURL(vid),
		Name:            name,
		DurationSeconds: 180,
		ProviderID:      vid,
	}
}

func localTrack(id, key, name string) api.Track {
	return api.Track{ID: id, Origin: api.OriginLocal, Locator: key, Name: name, DurationSeconds: 90}
}

func trackIDs(tracks []api.Track) []string {
	ids := make([]string, len(tracks))
	for i, t := range tracks {
		ids[i] = t.ID
	}
	return ids
}

func fillQueue(t *testing.T, q *Queue, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		if err := q.Enqueue(localTrack(fmt.Sprintf("t%d", i), fmt.Sprintf("k%d", i), fmt.Sprintf("Track %d", i))); err != nil {
			t.Fatal(err)
		}
	}
}

func TestQueue_EnqueueDuplicate(t *testing.T) {
	p := newMemPersister()
	q := NewQueue(p, nil)

	a := streamTrack("aaaaaaaaaaa", "Al-Fatiha")
	if err := q.Enqueue(a); err != nil {
		t.Fatal(err)
	}
	before := q.Tracks()
	writes := p.queueWrites()

	dupe := a
	dupe.ID = "other-id"
	err := q.Enqueue(dupe)

	var dupErr *playerrors.DuplicateTrackError
	if !errors.As(err, &dupErr) {
		t.Fatalf("want DuplicateTrackError, got %v", err)
	}
	if !errors.Is(err, playerrors.ErrDuplicateTrack) {
		t.Error("DuplicateTrackError should match ErrDuplicateTrack")
	}
	if dupErr.Error() != `"Al-Fatiha" is already in the queue` {
		t.Errorf("message = %q", dupErr.Error())
	}
	if got := q.Tracks(); len(got) != len(before) || got[0].ID != before[0].ID {
		t.Errorf("queue changed after rejected enqueue: %v", trackIDs(got))
	}
	if p.queueWrites() != writes {
		t.Error("rejected enqueue must not persist")
	}
}

func TestQueue_PersistsEveryMutation(t *testing.T) {
	p := newMemPersister()
	q := NewQueue(p, nil)
	fillQueue(t, q, 3)
	q.Reorder(0, 2)
	q.Remove("t1")
	q.Shuffle(true)
	q.Shuffle(false)
	q.Clear()

	if got := p.queueWrites(); got != 8 {
		t.Errorf("writes = %d, want 8", got)
	}
	last := p.queue[len(p.queue)-1]
	if len(last.Tracks) != 0 || last.CurrentIndex != -1 {
		t.Errorf("last snapshot should be empty, got %+v", last)
	}
}

func TestQueue_Reorder(t *testing.T) {
	tests := []struct {
		name      string
		current   int
		from, to  int
		wantOrder []string
		wantIndex int
	}{
		{"move current forward", 0, 0, 2, []string{"t1", "t2", "t0", "t3"}, 2},
		{"move current back", 3, 3, 1, []string{"t0", "t3", "t1", "t2"}, 1},
		{"move before current to after", 2, 0, 3, []string{"t1", "t2", "t3", "t0"}, 1},
		{"move after current to before", 1, 3, 0, []string{"t3", "t0", "t1", "t2"}, 2},
		{"move unrelated", 0, 2, 3, []string{"t0", "t1", "t3", "t2"}, 0},
		{"no current", -1, 1, 2, []string{"t0", "t2", "t1", "t3"}, -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := NewQueue(nil, nil)
			fillQueue(t, q, 4)
			if tt.current >= 0 {
				q.JumpTo(tt.current)
			}
			currentID := ""
			if c, ok := q.Current(); ok {
				currentID = c.ID
			}

			if err := q.Reorder(tt.from, tt.to); err != nil {
				t.Fatal(err)
			}
			if got := trackIDs(q.Tracks()); fmt.Sprint(got) != fmt.Sprint(tt.wantOrder) {
				t.Errorf("order = %v, want %v", got, tt.wantOrder)
			}
			if q.Index() != tt.wantIndex {
				t.Errorf("index = %d, want %d", q.Index(), tt.wantIndex)
			}
			if c, ok := q.Current(); ok && c.ID != currentID {
				t.Errorf("current track changed from %s to %s", currentID, c.ID)
			}
		})
	}

	q := NewQueue(nil, nil)
	fillQueue(t, q, 2)
	if err := q.Reorder(0, 5); !errors.Is(err, playerrors.ErrIndexOutOfRange) {
		t.Errorf("want ErrIndexOutOfRange, got %v", err)
	}
}

func TestQueue_Remove(t *testing.T) {
	t.Run("before current shifts index", func(t *testing.T) {
		q := NewQueue(nil, nil)
		fillQueue(t, q, 4)
		q.JumpTo(2)
		if err := q.Remove("t0"); err != nil {
			t.Fatal(err)
		}
		if c, _ := q.Current(); c.ID != "t2" || q.Index() != 1 {
			t.Errorf("current = %s at %d", c.ID, q.Index())
		}
	})

	t.Run("current notifies observer and moves to follower", func(t *testing.T) {
		q := NewQueue(nil, nil)
		fillQueue(t, q, 3)
		q.JumpTo(1)
		var got []string
		q.OnCurrentRemoved(func(removed api.Track) { got = append(got, removed.ID) })

		q.Remove("t1")
		if len(got) != 1 || got[0] != "t1" {
			t.Errorf("observer calls = %v", got)
		}
		if c, _ := q.Current(); c.ID != "t2" {
			t.Errorf("current = %s, want t2", c.ID)
		}

		q.Remove("t2")
		if q.Index() != -1 {
			t.Errorf("removing the last current entry should leave no current, got %d", q.Index())
		}
		q.Remove("t0")
		if len(got) != 2 {
			t.Errorf("removing a non-current entry must not notify, calls = %v", got)
		}
	})

	t.Run("missing id", func(t *testing.T) {
		q := NewQueue(nil, nil)
		if err := q.Remove("nope"); !errors.Is(err, playerrors.ErrTrackNotFound) {
			t.Errorf("want ErrTrackNotFound, got %v", err)
		}
	})
}

func TestQueue_Clear(t *testing.T) {
	q := NewQueue(nil, nil)
	fillQueue(t, q, 3)
	q.JumpTo(1)
	q.Shuffle(true)
	notified := false
	q.OnCurrentRemoved(func(api.Track) { notified = true })

	q.Clear()
	if q.Len() != 0 || q.Index() != -1 || q.IsShuffled() {
		t.Errorf("clear left len=%d index=%d shuffled=%v", q.Len(), q.Index(), q.IsShuffled())
	}
	if !notified {
		t.Error("clearing a queue with a current entry should notify")
	}
}

func TestQueue_ShuffleRoundTrip(t *testing.T) {
	for seed := int64(1); seed <= 20; seed++ {
		q := NewQueue(nil, nil)
		q.rng = rand.New(rand.NewSource(seed))
		fillQueue(t, q, 8)
		q.JumpTo(int(seed % 8))

		before := trackIDs(q.Tracks())
		current, _ := q.Current()
		idx := q.Index()

		q.Shuffle(true)
		if c, _ := q.Current(); c.ID != current.ID || q.Index() != idx {
			t.Fatalf("seed %d: current moved from %d to %d", seed, idx, q.Index())
		}
		if len(q.Tracks()) != len(before) {
			t.Fatalf("seed %d: shuffle changed length", seed)
		}

		q.Shuffle(false)
		if got := trackIDs(q.Tracks()); fmt.Sprint(got) != fmt.Sprint(before) {
			t.Fatalf("seed %d: order = %v, want %v", seed, got, before)
		}
		if c, _ := q.Current(); c.ID != current.ID {
			t.Fatalf("seed %d: current lost after unshuffle", seed)
		}
	}
}

func TestQueue_ShuffleTwiceKeepsOriginalOrder(t *testing.T) {
	q := NewQueue(nil, nil)
	fillQueue(t, q, 6)
	before := trackIDs(q.Tracks())

	q.Shuffle(true)
	q.Shuffle(true)
	q.Shuffle(false)
	if got := trackIDs(q.Tracks()); fmt.Sprint(got) != fmt.Sprint(before) {
		t.Errorf("order = %v, want %v", got, before)
	}
}

func TestQueue_UnshuffleWithChanges(t *testing.T) {
	q := NewQueue(nil, nil)
	fillQueue(t, q, 4)
	q.JumpTo(2)

	q.Shuffle(true)
	q.Remove("t1")
	q.Enqueue(localTrack("late", "klate", "Late arrival"))
	q.Shuffle(false)

	want := []string{"t0", "t2", "t3", "late"}
	if got := trackIDs(q.Tracks()); fmt.Sprint(got) != fmt.Sprint(want) {
		t.Errorf("order = %v, want %v", got, want)
	}
	if c, _ := q.Current(); c.ID != "t2" || q.Index() != 1 {
		t.Errorf("current = %s at %d", c.ID, q.Index())
	}
}

func TestQueue_NeverHoldsDuplicates(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	pool := []api.Track{
		streamTrack("aaaaaaaaaaa", "A"),
		streamTrack("bbbbbbbbbbb", "B"),
		localTrack("l1", "k1", "Dua"),
		localTrack("l2", "k2", "dua"), // same name as l1
		localTrack("l3", "k1", "Other"),
		localTrack("l4", "k4", "A"), // cross-origin name clash is allowed
	}

	q := NewQueue(nil, nil)
	for step := 0; step < 500; step++ {
		switch rng.Intn(3) {
		case 0:
			q.Enqueue(pool[rng.Intn(len(pool))])
		case 1:
			if n := q.Len(); n > 0 {
				tr, _ := q.At(rng.Intn(n))
				q.Remove(tr.ID)
			}
		case 2:
			if n := q.Len(); n > 1 {
				q.Reorder(rng.Intn(n), rng.Intn(n))
			}
		}

		tracks := q.Tracks()
		for i := range tracks {
			for j := i + 1; j < len(tracks); j++ {
				if catalog.IsDuplicate(tracks[i], tracks[j]) {
					t.Fatalf("step %d: duplicates %s and %s", step, tracks[i].ID, tracks[j].ID)
				}
			}
		}
	}
}

func TestQueue_Restore(t *testing.T) {
	q := NewQueue(nil, nil)
	a := streamTrack("aaaaaaaaaaa", "A")
	q.Restore(store.QueueDoc{
		Tracks:       []api.Track{a, a, localTrack("b", "kb", "B")},
		CurrentIndex: 5,
	})
	if q.Len() != 2 {
		t.Errorf("duplicates should be dropped on restore, len = %d", q.Len())
	}
	if q.Index() != -1 {
		t.Errorf("out-of-range index should reset to -1, got %d", q.Index())
	}

	q.Restore(store.QueueDoc{
		Tracks:       []api.Track{localTrack("x", "kx", "X"), localTrack("y", "ky", "Y")},
		CurrentIndex: 0,
		Shuffled:     true,
		Unshuffled:   []string{"y", "x"},
	})
	q.Shuffle(false)
	if got := trackIDs(q.Tracks()); fmt.Sprint(got) != "[y x]" {
		t.Errorf("restored shuffle state not honoured: %v", got)
	}
	if c, _ := q.Current(); c.ID != "x" {
		t.Errorf("current = %s, want x", c.ID)
	}
}
