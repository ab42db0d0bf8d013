package protocol

import (
	"sync"
)

// Log is a bounded, append-only record of envelopes for replay and debugging.
//
// Entries are stored in arrival order in a ring of fixed capacity; once full,
// the oldest envelopes are dropped. Logged envelopes are cloned on the way in
// and on the way out, so callers can never mutate a logged entry.
//
// Log is safe for concurrent use.
type Log struct {
	mu       sync.RWMutex
	capacity int
	entries  []*Envelope
	start    int
	count    int
	appended uint64
}

// DefaultLogCapacity bounds the in-memory envelope log.
const DefaultLogCapacity = 1024

// NewLog creates an envelope log holding at most capacity entries.
// Non-positive capacities fall back to DefaultLogCapacity.
func NewLog(capacity int) *Log {
	if capacity <= 0 {
		capacity = DefaultLogCapacity
	}
	return &Log{
		capacity: capacity,
		entries:  make([]*Envelope, capacity),
	}
}

// Append records an envelope. Nil envelopes are ignored.
func (l *Log) Append(e *Envelope) {
	if e == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	idx := (l.start + l.count) % l.capacity
	l.entries[idx] = e.Clone()
	if l.count < l.capacity {
		l.count++
	} else {
		l.start = (l.start + 1) % l.capacity
	}
	l.appended++
}

// ByInteraction returns all retained envelopes for one interaction, in
// arrival order.
func (l *Log) ByInteraction(interactionID string) []*Envelope {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var out []*Envelope
	for i := 0; i < l.count; i++ {
		e := l.entries[(l.start+i)%l.capacity]
		if e.InteractionID == interactionID {
			out = append(out, e.Clone())
		}
	}
	return out
}

// Recent returns up to limit most recent envelopes matching the filter, newest
// first. A nil filter matches everything.
func (l *Log) Recent(limit int, filter func(*Envelope) bool) []*Envelope {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if limit <= 0 || limit > l.count {
		limit = l.count
	}
	out := make([]*Envelope, 0, limit)
	for i := l.count - 1; i >= 0 && len(out) < limit; i-- {
		e := l.entries[(l.start+i)%l.capacity]
		if filter == nil || filter(e) {
			out = append(out, e.Clone())
		}
	}
	return out
}

// Len returns the number of currently retained envelopes.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.count
}

// TotalAppended returns the number of envelopes ever appended, including
// entries since evicted from the ring.
func (l *Log) TotalAppended() uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.appended
}
