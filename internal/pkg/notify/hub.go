// Package notify fans out store change notifications to interested watchers.
package notify

import (
	"context"
	"sync"
)

// Hub delivers change signals for string keys. Signals coalesce: a watcher that
// has not consumed the previous signal receives only one.
type Hub struct {
	mu       sync.Mutex
	watchers map[*watcher]struct{}
}

type watcher struct {
	match func(key string) bool
	ch    chan struct{}
}

// NewHub creates an empty Hub.
func NewHub() *Hub {
	return &Hub{watchers: make(map[*watcher]struct{})}
}

// Watch registers a watcher for the keys accepted by match. The returned channel
// closes when ctx is done.
func (h *Hub) Watch(ctx context.Context, match func(key string) bool) <-chan struct{} {
	w := &watcher{match: match, ch: make(chan struct{}, 1)}

	h.mu.Lock()
	h.watchers[w] = struct{}{}
	h.mu.Unlock()

	go func() {
		<-ctx.Done()
		h.mu.Lock()
		delete(h.watchers, w)
		close(w.ch)
		h.mu.Unlock()
	}()
	return w.ch
}

// Notify signals every watcher interested in at least one of keys.
func (h *Hub) Notify(keys ...string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for w := range h.watchers {
		for _, key := range keys {
			if !w.match(key) {
				continue
			}
			select {
			case w.ch <- struct{}{}:
			default:
			}
			break
		}
	}
}

// Watchers returns the number of registered watchers.
func (h *Hub) Watchers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.watchers)
}

// KeySet returns a matcher accepting exactly keys.
func KeySet(keys ...string) func(string) bool {
	set := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		set[k] = struct{}{}
	}
	return func(key string) bool {
		_, ok := set[key]
		return ok
	}
}
