package store

import "sync"

// Hub fans per-user snapshots out to live subscribers. Publish never blocks:
// each subscriber channel buffers exactly one snapshot, and a newer snapshot
// replaces an undelivered older one (latest wins).
type Hub[T any] struct {
	mu     sync.Mutex
	nextID int
	closed bool
	subs   map[string]map[int]chan T
}

func NewHub[T any]() *Hub[T] {
	return &Hub[T]{subs: make(map[string]map[int]chan T)}
}

// Subscribe registers a listener for one user. The cancel func is idempotent
// and closes the channel.
func (h *Hub[T]) Subscribe(userID string) (<-chan T, func()) {
	ch := make(chan T, 1)
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	id := h.nextID
	h.nextID++
	group := h.subs[userID]
	if group == nil {
		group = make(map[int]chan T)
		h.subs[userID] = group
	}
	group[id] = ch
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		group, ok := h.subs[userID]
		if !ok {
			return
		}
		if _, live := group[id]; !live {
			return
		}
		delete(group, id)
		close(ch)
		if len(group) == 0 {
			delete(h.subs, userID)
		}
	}
	return ch, cancel
}

// Publish delivers a snapshot to every subscriber of the user. Only Publish
// sends on subscriber channels, and it holds the hub lock, so draining a full
// buffer before re-sending cannot race another sender.
func (h *Hub[T]) Publish(userID string, snapshot T) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	for _, ch := range h.subs[userID] {
		select {
		case ch <- snapshot:
		default:
			select {
			case <-ch:
			default:
			}
			ch <- snapshot
		}
	}
}

// Close terminates every subscription. Further Subscribe calls return an
// already-closed channel.
func (h *Hub[T]) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for _, group := range h.subs {
		for _, ch := range group {
			close(ch)
		}
	}
	h.subs = make(map[string]map[int]chan T)
}
