package web

import (
	"sort"
	"sync"
)

// DefaultBufferSize is the default maximum number of events kept for replay.
const DefaultBufferSize = 10000

// Buffer is a thread-safe ring of events with a per-type index. late-joining
// dashboard clients replay its contents before live streaming.
type Buffer struct {
	mu      sync.RWMutex
	ring    []Event
	size    int
	head    int // next slot to write, wraps around
	written int // total events ever written

	byType map[EventType][]int // ring positions per event type
}

// NewBuffer creates a ring buffer holding up to size events.
// a non-positive size falls back to DefaultBufferSize.
func NewBuffer(size int) *Buffer {
	if size <= 0 {
		size = DefaultBufferSize
	}
	return &Buffer{
		ring:   make([]Event, size),
		size:   size,
		byType: make(map[EventType][]int),
	}
}

// Add appends an event, overwriting the oldest when full.
func (b *Buffer) Add(e Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.written >= b.size { // slot is occupied, unindex the event being evicted
		b.unindex(b.head)
	}

	b.ring[b.head] = e
	b.byType[e.Type] = append(b.byType[e.Type], b.head)
	b.head = (b.head + 1) % b.size
	b.written++
}

// unindex removes index entries pointing at pos. caller holds the lock.
func (b *Buffer) unindex(pos int) {
	t := b.ring[pos].Type
	kept := b.byType[t][:0]
	for _, idx := range b.byType[t] {
		if idx != pos {
			kept = append(kept, idx)
		}
	}
	if len(kept) == 0 {
		delete(b.byType, t)
		return
	}
	b.byType[t] = kept
}

// All returns the buffered events in chronological order.
func (b *Buffer) All() []Event {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.written == 0 {
		return nil
	}
	if b.written <= b.size {
		out := make([]Event, b.written)
		copy(out, b.ring[:b.written])
		return out
	}

	// wrapped: the oldest event sits at head
	out := make([]Event, 0, b.size)
	out = append(out, b.ring[b.head:]...)
	return append(out, b.ring[:b.head]...)
}

// ByType returns the buffered events of one type in chronological order.
func (b *Buffer) ByType(t EventType) []Event {
	b.mu.RLock()
	defer b.mu.RUnlock()

	positions := b.byType[t]
	if len(positions) == 0 {
		return nil
	}

	out := make([]Event, len(positions))
	for i, pos := range positions {
		out[i] = b.ring[pos]
	}
	// ring positions lose chronology after wraparound, restore it by timestamp
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out
}

// Count returns the number of events currently held.
func (b *Buffer) Count() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.written > b.size {
		return b.size
	}
	return b.written
}

// Clear drops all buffered events.
func (b *Buffer) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.ring = make([]Event, b.size)
	b.head = 0
	b.written = 0
	b.byType = make(map[EventType][]int)
}
