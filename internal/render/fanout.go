package render

import (
	"context"
	"sync"

	"github.com/relabs-tech/imu_visualizer/internal/orientation"
)

// Fanout forwards frames and labels to several presenters. A close request
// from any of them is a close request from the fanout.
type Fanout struct {
	presenters []Presenter

	closeOnce sync.Once
	closed    chan struct{}
}

// NewFanout watches the close requests of ps until ctx is done.
func NewFanout(ctx context.Context, ps ...Presenter) *Fanout {
	f := &Fanout{presenters: ps, closed: make(chan struct{})}
	for _, p := range ps {
		go func(p Presenter) {
			select {
			case <-p.CloseRequested():
				f.closeOnce.Do(func() { close(f.closed) })
			case <-f.closed:
			case <-ctx.Done():
			}
		}(p)
	}
	return f
}

func (f *Fanout) Present(fr Frame) {
	for _, p := range f.presenters {
		p.Present(fr)
	}
}

func (f *Fanout) Labels(pose orientation.Pose) {
	for _, p := range f.presenters {
		p.Labels(pose)
	}
}

func (f *Fanout) CloseRequested() <-chan struct{} {
	return f.closed
}
