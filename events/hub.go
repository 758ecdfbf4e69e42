// Package events provides an in-process pub/sub channel for engine
// lifecycle and dispatch events: plugin registration, spec attachment,
// and hook calls. A small ring buffer lets late subscribers catch up.
package events

import (
	"sync"
	"sync/atomic"
	"time"
)

// Event types published by the registry.
const (
	TypePluginRegistered   = "plugin.registered"
	TypePluginUnregistered = "plugin.unregistered"
	TypePluginBlocked      = "plugin.blocked"
	TypeSpecAdded          = "hook.spec_added"
	TypeHookCalled         = "hook.called"
	TypeHookCallError      = "hook.call_error"
)

// Event is one engine occurrence.
type Event struct {
	ID       int64         `json:"id"`
	Type     string        `json:"type"`
	At       time.Time     `json:"at"`
	Hook     string        `json:"hook,omitempty"`
	Plugin   string        `json:"plugin,omitempty"`
	CallID   string        `json:"call_id,omitempty"`
	Duration time.Duration `json:"duration,omitempty"`
	Error    string        `json:"error,omitempty"`
}

// Hub is an in-memory pub/sub with a small ring buffer for late clients.
type Hub struct {
	nextID atomic.Int64

	mu    sync.Mutex
	ring  []Event
	start int
	size  int

	subs      map[int]chan Event
	nextSubID int
}

// NewHub creates a hub retaining the last capacity events.
func NewHub(capacity int) *Hub {
	if capacity <= 0 {
		capacity = 100
	}
	return &Hub{
		ring: make([]Event, capacity),
		subs: make(map[int]chan Event),
	}
}

// Publish stamps ev with an ID and timestamp and fans it out.
func (h *Hub) Publish(ev Event) {
	ev.ID = h.nextID.Add(1)
	ev.At = time.Now().UTC()

	h.mu.Lock()
	h.pushLocked(ev)
	for _, ch := range h.subs {
		// Don't let slow clients block producers.
		select {
		case ch <- ev:
		default:
		}
	}
	h.mu.Unlock()
}

// Subscribe returns a channel of future events and a cancel function.
func (h *Hub) Subscribe() (<-chan Event, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	id := h.nextSubID
	h.nextSubID++
	ch := make(chan Event, 128)
	h.subs[id] = ch

	cancel := func() {
		h.mu.Lock()
		if c, ok := h.subs[id]; ok {
			delete(h.subs, id)
			close(c)
		}
		h.mu.Unlock()
	}

	return ch, cancel
}

// SnapshotSince returns buffered events with ID > lastID, oldest-first.
// If lastID is 0, the full ring buffer snapshot is returned.
func (h *Hub) SnapshotSince(lastID int64) []Event {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := make([]Event, 0, h.size)
	for i := 0; i < h.size; i++ {
		ev := h.ring[(h.start+i)%len(h.ring)]
		if lastID == 0 || ev.ID > lastID {
			out = append(out, ev)
		}
	}
	return out
}

func (h *Hub) pushLocked(ev Event) {
	capacity := len(h.ring)
	if capacity == 0 {
		return
	}

	if h.size < capacity {
		idx := (h.start + h.size) % capacity
		h.ring[idx] = ev
		h.size++
		return
	}

	// Overwrite oldest.
	h.ring[h.start] = ev
	h.start = (h.start + 1) % capacity
}
