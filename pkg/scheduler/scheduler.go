// Package scheduler delivers follow-up payloads at a future time. The
// reflector decides whether and what to follow up on; this package owns the
// actual delivery timing.
package scheduler

import (
	"sync"
	"time"
)

// Payload is the scheduled follow-up content.
type Payload struct {
	// OwnerID identifies the user to follow up with.
	OwnerID string `json:"owner_id"`

	// Message is the follow-up message template.
	Message string `json:"message"`

	// Reason records which trigger produced the follow-up.
	Reason string `json:"reason,omitempty"`

	// Metadata carries auxiliary delivery data.
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Scheduler schedules a payload for delivery at a future time.
type Scheduler interface {
	// Schedule registers a payload for delivery at the given time.
	Schedule(ownerID string, at time.Time, payload Payload) error

	// Stop shuts the scheduler down. Pending deliveries are dropped.
	Stop()
}

// Entry is a recorded scheduling request.
type Entry struct {
	OwnerID     string
	At          time.Time
	Payload     Payload
	ScheduledAt time.Time
}

// Recorder is an in-memory Scheduler that records requests without
// delivering them. Used in tests and as a default when no delivery channel
// is configured.
type Recorder struct {
	mu      sync.Mutex
	entries []Entry
}

// NewRecorder creates an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Schedule records the request.
func (r *Recorder) Schedule(ownerID string, at time.Time, payload Payload) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.entries = append(r.entries, Entry{
		OwnerID:     ownerID,
		At:          at,
		Payload:     payload,
		ScheduledAt: time.Now(),
	})
	return nil
}

// Entries returns a copy of all recorded requests in order.
func (r *Recorder) Entries() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Entry, len(r.entries))
	copy(out, r.entries)
	return out
}

// Stop is a no-op.
func (r *Recorder) Stop() {}
