package tool

import (
	"sync"
	"time"
)

// DefaultHistoryCapacity is the number of call records retained when no
// capacity is configured.
const DefaultHistoryCapacity = 256

// CallRecord is one entry in the call history.
type CallRecord struct {
	// Tool is the called tool name.
	Tool string `json:"tool"`

	// Params are the parameters as passed by the caller.
	Params map[string]interface{} `json:"params,omitempty"`

	// Timestamp is when the call started.
	Timestamp time.Time `json:"timestamp"`

	// Success reports whether the call produced a result.
	Success bool `json:"success"`

	// Latency is the wall-clock call duration.
	Latency time.Duration `json:"latency"`
}

// history is a bounded ring of call records, most-recent-N retained.
type history struct {
	mu       sync.Mutex
	records  []CallRecord
	capacity int
	next     int
	total    int
}

func newHistory(capacity int) *history {
	if capacity <= 0 {
		capacity = DefaultHistoryCapacity
	}
	return &history{
		records:  make([]CallRecord, 0, capacity),
		capacity: capacity,
	}
}

// add appends a record, evicting the oldest once full.
func (h *history) add(rec CallRecord) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.records) < h.capacity {
		h.records = append(h.records, rec)
	} else {
		h.records[h.next] = rec
	}
	h.next = (h.next + 1) % h.capacity
	h.total++
}

// recent returns up to limit records, newest first.
func (h *history) recent(limit int) []CallRecord {
	h.mu.Lock()
	defer h.mu.Unlock()

	n := len(h.records)
	if limit <= 0 || limit > n {
		limit = n
	}

	out := make([]CallRecord, 0, limit)
	for i := 0; i < limit; i++ {
		idx := (h.next - 1 - i + n*2) % n
		if n < h.capacity {
			// Buffer not yet wrapped; records are in append order.
			idx = n - 1 - i
		}
		out = append(out, h.records[idx])
	}
	return out
}

// size returns the number of retained records.
func (h *history) size() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.records)
}
