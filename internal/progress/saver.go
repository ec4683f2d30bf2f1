package progress

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

const saveTimeout = 5 * time.Second

// saver writes snapshots on one goroutine. Only the newest pending snapshot is
// kept, so writes land in order and an older snapshot never replaces a newer one.
type saver struct {
	persister Persister

	mu       sync.Mutex
	pending  []byte
	queued   uint64 // sequence of the newest snapshot handed in
	written  uint64 // sequence of the newest snapshot attempted
	advanced chan struct{}

	kick     chan struct{}
	quit     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

func newSaver(persister Persister) *saver {
	w := &saver{
		persister: persister,
		advanced:  make(chan struct{}),
		kick:      make(chan struct{}, 1),
		quit:      make(chan struct{}),
		done:      make(chan struct{}),
	}
	go w.run()
	return w
}

func (w *saver) enqueue(data []byte) {
	w.mu.Lock()
	w.pending = data
	w.queued++
	w.mu.Unlock()

	select {
	case w.kick <- struct{}{}:
	default:
	}
}

func (w *saver) run() {
	defer close(w.done)
	for {
		select {
		case <-w.kick:
			w.drain()
		case <-w.quit:
			w.drain()
			return
		}
	}
}

func (w *saver) drain() {
	for {
		w.mu.Lock()
		if w.written == w.queued {
			w.mu.Unlock()
			return
		}
		data, seq := w.pending, w.queued
		w.pending = nil
		w.mu.Unlock()

		ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
		err := w.persister.Save(ctx, data)
		cancel()
		if err != nil {
			slog.Error("saving progress failed", "error", fmt.Errorf("%w: %w", ErrPersistence, err))
		}

		w.mu.Lock()
		w.written = seq
		close(w.advanced)
		w.advanced = make(chan struct{})
		w.mu.Unlock()
	}
}

func (w *saver) flush(ctx context.Context) error {
	w.mu.Lock()
	target := w.queued
	w.mu.Unlock()

	for {
		w.mu.Lock()
		if w.written >= target {
			w.mu.Unlock()
			return nil
		}
		ch := w.advanced
		w.mu.Unlock()

		select {
		case <-ch:
		case <-w.done:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (w *saver) close(ctx context.Context) error {
	w.stopOnce.Do(func() { close(w.quit) })
	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
