package serialport

import (
	"sync"
	"time"

	"github.com/relabs-tech/imu_visualizer/internal/orientation"
)

// simMaxBacklog caps how many undelivered lines the simulated device keeps.
const simMaxBacklog = 64

// SimPort is a simulated sensor. It produces one line per period from an
// orientation.Source, accumulating a backlog like a real UART when the
// reader falls behind.
type SimPort struct {
	mu      sync.Mutex
	src     orientation.Source
	period  time.Duration
	timeout time.Duration
	next    time.Time
	seq     uint64
	pending []byte

	closeOnce sync.Once
	closed    chan struct{}
}

// NewSim returns a simulated port driven by orientation.NewMockSource.
func NewSim(cfg Config) *SimPort {
	cfg = cfg.withDefaults()
	return NewSimFromSource(orientation.NewMockSource(), cfg.SimRateHz, cfg.ReadTimeout)
}

// NewSimFromSource returns a simulated port emitting rateHz lines per second
// from src.
func NewSimFromSource(src orientation.Source, rateHz int, readTimeout time.Duration) *SimPort {
	if rateHz <= 0 {
		rateHz = DefaultSimRateHz
	}
	return &SimPort{
		src:     src,
		period:  time.Second / time.Duration(rateHz),
		timeout: readTimeout,
		next:    time.Now(),
		closed:  make(chan struct{}),
	}
}

// fill appends every line due at or before now. Caller holds mu.
func (s *SimPort) fill(now time.Time) {
	if lag := now.Sub(s.next); lag > simMaxBacklog*s.period {
		skipped := uint64(lag/s.period) - simMaxBacklog
		s.seq += skipped
		s.next = s.next.Add(time.Duration(skipped) * s.period)
	}
	for !s.next.After(now) {
		p, err := s.src.Next()
		if err == nil {
			s.pending = append(s.pending, orientation.FormatLine(s.seq, 0, p)...)
			s.pending = append(s.pending, '\n')
		}
		s.seq++
		s.next = s.next.Add(s.period)
	}
}

func (s *SimPort) isClosed() bool {
	select {
	case <-s.closed:
		return true
	default:
		return false
	}
}

func (s *SimPort) Read(b []byte) (int, error) {
	var deadline time.Time
	if s.timeout > 0 {
		deadline = time.Now().Add(s.timeout)
	}

	for {
		s.mu.Lock()
		if s.isClosed() {
			s.mu.Unlock()
			return 0, ErrClosed
		}
		s.fill(time.Now())
		if len(s.pending) > 0 {
			n := copy(b, s.pending)
			s.pending = s.pending[n:]
			s.mu.Unlock()
			return n, nil
		}
		wait := time.Until(s.next)
		s.mu.Unlock()

		if !deadline.IsZero() {
			remaining := time.Until(deadline)
			if remaining <= 0 {
				return 0, nil
			}
			if wait > remaining {
				wait = remaining
			}
		}

		t := time.NewTimer(wait)
		select {
		case <-s.closed:
			t.Stop()
			return 0, ErrClosed
		case <-t.C:
		}
	}
}

// ResetInputBuffer drops every line already produced but not yet read.
func (s *SimPort) ResetInputBuffer() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.isClosed() {
		return ErrClosed
	}
	s.fill(time.Now())
	s.pending = s.pending[:0]
	return nil
}

// Close stops the simulated device. Further reads return ErrClosed.
func (s *SimPort) Close() error {
	s.closeOnce.Do(func() { close(s.closed) })
	return nil
}
