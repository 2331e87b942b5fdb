package render

import (
	"context"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/relabs-tech/imu_visualizer/internal/orientation"
	"github.com/relabs-tech/imu_visualizer/internal/telemetry"
)

// DefaultInterval is the refresh period of the render loop.
const DefaultInterval = 50 * time.Millisecond

// Source is the read side of the shared state. *telemetry.Store implements it.
type Source interface {
	Snapshot() []telemetry.Sample
	Latest() orientation.Pose
	Status() telemetry.Status
}

// Presenter displays frames and reports when the user asks to close.
type Presenter interface {
	Present(Frame)
	Labels(orientation.Pose)
	CloseRequested() <-chan struct{}
}

// Options configures a Renderer.
type Options struct {
	Interval   time.Duration
	AxisLength float64

	// Stopped reports whether shutdown has been requested. Once it returns
	// true, Tick neither reads the source nor calls the presenter.
	Stopped func() bool
}

// Renderer periodically builds a Frame from a Source.
type Renderer struct {
	src  Source
	out  Presenter
	opts Options
	cube []orientation.Edge

	seq atomic.Uint64

	stopOnce sync.Once
	stop     chan struct{}
}

func New(src Source, out Presenter, opts Options) *Renderer {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.AxisLength <= 0 {
		opts.AxisLength = orientation.DefaultAxisLength
	}
	if opts.Stopped == nil {
		opts.Stopped = func() bool { return false }
	}
	return &Renderer{
		src:  src,
		out:  out,
		opts: opts,
		cube: orientation.ReferenceCube(),
		stop: make(chan struct{}),
	}
}

// Frames returns how many frames have been presented.
func (r *Renderer) Frames() uint64 {
	return r.seq.Load()
}

// Tick renders one frame. It reports whether a frame was presented; a panic
// while building or presenting is logged and reported as false.
func (r *Renderer) Tick() (presented bool) {
	if r.opts.Stopped() {
		return false
	}
	defer func() {
		if rec := recover(); rec != nil {
			log.Printf("render: error updating plots: %v", rec)
			presented = false
		}
	}()

	samples := r.src.Snapshot()
	latest := r.src.Latest()
	status := r.src.Status()

	f := Frame{
		At:         time.Now(),
		Status:     status,
		StatusText: status.Text(),
		Latest:     latest,
		HaveSeries: len(samples) > 0,
		Basis:      orientation.RotateBasis(latest, r.opts.AxisLength),
		Cube:       r.cube,
		Title:      Title(latest),
	}
	if f.HaveSeries {
		f.Series = BuildSeries(samples)
	} else {
		f.Series = Series{XMax: DefaultXMax}
	}

	f.Seq = r.seq.Load() + 1
	r.out.Present(f)
	r.seq.Store(f.Seq)
	return true
}

// Run ticks every Interval until ctx is done or Stop is called.
func (r *Renderer) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.opts.Interval)
	defer ticker.Stop()

	log.Printf("render: starting update loop every %s", r.opts.Interval)
	for {
		select {
		case <-ctx.Done():
			log.Println("render: update loop stopped")
			return nil
		case <-r.stop:
			log.Println("render: update loop stopped")
			return nil
		case <-ticker.C:
			r.Tick()
		}
	}
}

// Stop ends Run. It may be called any number of times.
func (r *Renderer) Stop() {
	r.stopOnce.Do(func() { close(r.stop) })
}
