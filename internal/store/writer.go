package store

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// WriteFunc performs one persistence write
type WriteFunc func(ctx context.Context) error

// WriterOptions tunes retry behaviour
type WriterOptions struct {
	Retries int
	Backoff time.Duration
	Timeout time.Duration // per attempt
	// OnFailure is called after the last retry of a write fails
	OnFailure func(key string, err error)
}

// Writer runs persistence writes in the background, one at a time.
// Writes submitted under the same key coalesce so only the latest runs;
// keys run in the order they were first submitted. A failed write is
// logged and dropped, the in-memory state is never rolled back.
type Writer struct {
	opts WriterOptions
	log  *zap.Logger

	mu      sync.Mutex
	pending map[string]WriteFunc
	order   []string
	busy    bool
	closed  bool
	waiters []chan struct{}

	wake chan struct{}
	quit chan struct{}
	done chan struct{}
}

// NewWriter starts the worker goroutine
func NewWriter(opts WriterOptions, log *zap.Logger) *Writer {
	if log == nil {
		log = zap.NewNop()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	w := &Writer{
		opts:    opts,
		log:     log,
		pending: make(map[string]WriteFunc),
		wake:    make(chan struct{}, 1),
		quit:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	go w.run()
	return w
}

// Submit schedules fn under key, replacing any not-yet-started write for
// the same key.
func (w *Writer) Submit(key string, fn WriteFunc) {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		w.log.Warn("write submitted after close, dropped", zap.String("key", key))
		return
	}
	if _, ok := w.pending[key]; !ok {
		w.order = append(w.order, key)
	}
	w.pending[key] = fn
	w.mu.Unlock()

	select {
	case w.wake <- struct{}{}:
	default:
	}
}

// Pending returns the number of writes not yet started
func (w *Writer) Pending() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.order)
}

// Flush blocks until every write submitted so far has finished
func (w *Writer) Flush(ctx context.Context) error {
	w.mu.Lock()
	if len(w.order) == 0 && !w.busy {
		w.mu.Unlock()
		return nil
	}
	ch := make(chan struct{})
	w.waiters = append(w.waiters, ch)
	w.mu.Unlock()

	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close drains pending writes and stops the worker
func (w *Writer) Close() {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		<-w.done
		return
	}
	w.closed = true
	w.mu.Unlock()

	close(w.quit)
	<-w.done
}

func (w *Writer) run() {
	defer close(w.done)
	for {
		if key, fn, ok := w.next(); ok {
			w.execute(key, fn)
			continue
		}
		select {
		case <-w.wake:
		case <-w.quit:
			for {
				key, fn, ok := w.next()
				if !ok {
					return
				}
				w.execute(key, fn)
			}
		}
	}
}

// next pops the oldest key, or marks the writer idle and wakes flushers
func (w *Writer) next() (string, WriteFunc, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if len(w.order) == 0 {
		w.busy = false
		for _, ch := range w.waiters {
			close(ch)
		}
		w.waiters = nil
		return "", nil, false
	}
	key := w.order[0]
	w.order = w.order[1:]
	fn := w.pending[key]
	delete(w.pending, key)
	w.busy = true
	return key, fn, true
}

func (w *Writer) execute(key string, fn WriteFunc) {
	var err error
	for attempt := 0; attempt <= w.opts.Retries; attempt++ {
		if attempt > 0 {
			time.Sleep(w.opts.Backoff)
		}
		ctx, cancel := context.WithTimeout(context.Background(), w.opts.Timeout)
		err = fn(ctx)
		cancel()
		if err == nil {
			return
		}
		w.log.Warn("persist attempt failed",
			zap.String("key", key),
			zap.Int("attempt", attempt+1),
			zap.Error(err))
	}
	w.log.Error("persist failed, giving up", zap.String("key", key), zap.Error(err))
	if w.opts.OnFailure != nil {
		w.opts.OnFailure(key, err)
	}
}
