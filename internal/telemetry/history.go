package telemetry

import (
	"sync"
	"time"
)

// DefaultMaxPoints is the history length used when none is configured.
const DefaultMaxPoints = 200

// Sample is one timestamped orientation observation. It is a value type and
// is never modified after creation.
type Sample struct {
	Time  time.Time `json:"time"`
	Yaw   float64   `json:"yaw"`
	Pitch float64   `json:"pitch"`
	Roll  float64   `json:"roll"`
}

// History is a fixed-capacity ring of samples kept in insertion order.
// Pushing into a full history evicts the oldest sample.
type History struct {
	mu       sync.RWMutex
	data     []Sample
	head     int // next write position
	size     int
	capacity int
}

// NewHistory returns a history holding at most capacity samples.
// capacity <= 0 uses DefaultMaxPoints.
func NewHistory(capacity int) *History {
	if capacity <= 0 {
		capacity = DefaultMaxPoints
	}
	return &History{
		data:     make([]Sample, capacity),
		capacity: capacity,
	}
}

// Push appends s, evicting the oldest sample when full.
func (h *History) Push(s Sample) {
	h.mu.Lock()
	h.data[h.head] = s
	h.head = (h.head + 1) % h.capacity
	if h.size < h.capacity {
		h.size++
	}
	h.mu.Unlock()
}

// Snapshot returns a copy of the current contents, oldest first.
// The lock is held only for the copy.
func (h *History) Snapshot() []Sample {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]Sample, h.size)
	start := (h.head - h.size + h.capacity) % h.capacity
	n := copy(out, h.data[start:min(start+h.size, h.capacity)])
	copy(out[n:], h.data[:h.size-n])
	return out
}

// Len reports how many samples are stored.
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.size
}

// Cap reports the fixed capacity.
func (h *History) Cap() int {
	return h.capacity
}
