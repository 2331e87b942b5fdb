package telemetry

import (
	"sync/atomic"
	"time"

	"github.com/relabs-tech/imu_visualizer/internal/orientation"
)

// Store is the state shared between the acquisition loop (sole writer) and
// the render and label paths (readers). Reads never wait on the writer for
// longer than a copy.
type Store struct {
	history *History
	latest  atomic.Pointer[orientation.Pose]
	status  atomic.Pointer[Status]

	// updates carries the newest pose to the label path; capacity 1,
	// latest wins.
	updates chan orientation.Pose
}

// NewStore returns a store whose history holds maxPoints samples.
func NewStore(maxPoints int) *Store {
	s := &Store{
		history: NewHistory(maxPoints),
		updates: make(chan orientation.Pose, 1),
	}
	s.latest.Store(&orientation.Pose{})
	s.status.Store(&Status{State: Disconnected})
	return s
}

// Record publishes a freshly parsed pose: it becomes the latest value, is
// appended to the history and is offered to the label path.
func (s *Store) Record(p orientation.Pose, at time.Time) Sample {
	v := p
	s.latest.Store(&v)

	sample := Sample{Time: at, Yaw: p.Yaw, Pitch: p.Pitch, Roll: p.Roll}
	s.history.Push(sample)
	s.notify(p)
	return sample
}

func (s *Store) notify(p orientation.Pose) {
	select {
	case s.updates <- p:
		return
	default:
	}
	// Drop the stale pending value and retry once.
	select {
	case <-s.updates:
	default:
	}
	select {
	case s.updates <- p:
	default:
	}
}

// Latest returns the most recent pose, or the zero pose before any data.
func (s *Store) Latest() orientation.Pose {
	return *s.latest.Load()
}

// Snapshot returns the history, oldest first.
func (s *Store) Snapshot() []Sample {
	return s.history.Snapshot()
}

// History exposes the underlying ring.
func (s *Store) History() *History {
	return s.history
}

// SetStatus replaces the connection status.
func (s *Store) SetStatus(st Status) {
	s.status.Store(&st)
}

// Status returns the current connection status.
func (s *Store) Status() Status {
	return *s.status.Load()
}

// Updates delivers new poses for label display.
func (s *Store) Updates() <-chan orientation.Pose {
	return s.updates
}
