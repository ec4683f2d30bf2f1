// Package live pushes progress changes to connected clients.
package live

import (
	"sync"

	"github.com/p-n-ai/statsquest/internal/progress"
)

const subscriberBuffer = 8

// Hub fans progress updates out to subscribers. Publish never blocks: a
// subscriber that falls behind loses its oldest pending update.
type Hub struct {
	mu   sync.Mutex
	subs map[chan progress.Update]struct{}
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[chan progress.Update]struct{})}
}

// Publish delivers u to every subscriber. It matches the progress.Config.Notify signature.
func (h *Hub) Publish(u progress.Update) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for ch := range h.subs {
		select {
		case ch <- u:
		default:
			select {
			case <-ch:
			default:
			}
			ch <- u
		}
	}
}

// Subscribe registers a subscriber. The caller must invoke cancel when done;
// cancel closes the channel.
func (h *Hub) Subscribe() (<-chan progress.Update, func()) {
	ch := make(chan progress.Update, subscriberBuffer)

	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		if _, ok := h.subs[ch]; ok {
			delete(h.subs, ch)
			close(ch)
		}
		h.mu.Unlock()
	}
	return ch, cancel
}

// Subscribers returns the number of active subscribers.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}
