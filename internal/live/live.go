// Package live turns store reads into subscriptions. Writers publish the set
// of tables they changed after commit; every subscription depending on one of
// those tables recomputes its read and redelivers the result.
package live

import (
	"context"
	"sync"
)

// ChangeSet names the tables touched by one committed write
type ChangeSet struct {
	Tables []string
}

// Touches reports whether the change affects any of deps
func (c ChangeSet) Touches(deps map[string]bool) bool {
	for _, t := range c.Tables {
		if deps[t] {
			return true
		}
	}
	return false
}

type subscriber struct {
	deps   map[string]bool
	notify chan struct{}
}

// Hub fans committed changes out to subscribers. Publish never blocks: a
// subscriber that has not consumed its previous notification is already due
// to recompute, so further notifications coalesce into it.
type Hub struct {
	mu     sync.Mutex
	subs   map[uint64]*subscriber
	next   uint64
	closed bool
}

// NewHub creates an empty hub
func NewHub() *Hub {
	return &Hub{subs: make(map[uint64]*subscriber)}
}

// Subscribe registers interest in tables. The returned channel receives a
// value after each committed change touching them and is closed by cancel or
// by Close.
func (h *Hub) Subscribe(tables ...string) (<-chan struct{}, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	notify := make(chan struct{}, 1)
	if h.closed {
		close(notify)
		return notify, func() {}
	}

	deps := make(map[string]bool, len(tables))
	for _, t := range tables {
		deps[t] = true
	}

	id := h.next
	h.next++
	h.subs[id] = &subscriber{deps: deps, notify: notify}

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			if sub, ok := h.subs[id]; ok {
				delete(h.subs, id)
				close(sub.notify)
			}
		})
	}
	return notify, cancel
}

// Publish notifies every subscriber whose dependencies intersect cs
func (h *Hub) Publish(cs ChangeSet) {
	if len(cs.Tables) == 0 {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	for _, sub := range h.subs {
		if !cs.Touches(sub.deps) {
			continue
		}
		select {
		case sub.notify <- struct{}{}:
		default:
		}
	}
}

// Subscribers returns the number of live subscriptions
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Close ends every subscription
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}
	h.closed = true
	for id, sub := range h.subs {
		delete(h.subs, id)
		close(sub.notify)
	}
}

// Result is one delivery of a watched read
type Result[T any] struct {
	Value T
	Err   error
}

// Watch runs fetch once immediately and again after every change touching
// deps, delivering each result on the returned channel. Only the latest
// result is buffered: a subscriber that falls behind sees the newest state,
// never a stale one. The channel is closed when ctx is done or the hub closes.
func Watch[T any](ctx context.Context, h *Hub, deps []string, fetch func(context.Context) (T, error)) <-chan Result[T] {
	out := make(chan Result[T], 1)

	// Subscribe before the first fetch so a write racing it is not lost
	notify, cancel := h.Subscribe(deps...)

	deliver := func(r Result[T]) {
		select {
		case out <- r:
			return
		default:
		}
		// Replace the undelivered result with the newer one
		select {
		case <-out:
		default:
		}
		select {
		case out <- r:
		default:
		}
	}

	go func() {
		defer close(out)
		defer cancel()

		v, err := fetch(ctx)
		deliver(Result[T]{Value: v, Err: err})

		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-notify:
				if !ok {
					return
				}
				if ctx.Err() != nil {
					return
				}
				v, err := fetch(ctx)
				deliver(Result[T]{Value: v, Err: err})
			}
		}
	}()

	return out
}
