// Package render turns the shared telemetry state into frames at a fixed
// refresh rate and hands them to a presentation collaborator.
package render

import (
	"fmt"
	"time"

	"github.com/relabs-tech/imu_visualizer/internal/orientation"
	"github.com/relabs-tech/imu_visualizer/internal/telemetry"
)

// DefaultXMax is the time axis extent used while the history spans no time.
const DefaultXMax = 10.0

// Series is the history laid out for plotting. T holds seconds relative to
// the oldest sample.
type Series struct {
	T     []float64 `json:"t"`
	Yaw   []float64 `json:"yaw"`
	Pitch []float64 `json:"pitch"`
	Roll  []float64 `json:"roll"`
	XMax  float64   `json:"x_max"`
}

// Frame is everything a presenter needs to draw one refresh.
type Frame struct {
	Seq        uint64             `json:"seq"`
	At         time.Time          `json:"at"`
	Status     telemetry.Status   `json:"status"`
	StatusText string             `json:"status_text"`
	Latest     orientation.Pose   `json:"latest"`
	HaveSeries bool               `json:"have_series"`
	Series     Series             `json:"series"`
	Basis      orientation.Basis  `json:"basis"`
	Cube       []orientation.Edge `json:"cube"`
	Title      string             `json:"title"`
}

// BuildSeries converts samples (oldest first) into plot series.
func BuildSeries(samples []telemetry.Sample) Series {
	s := Series{
		T:     make([]float64, len(samples)),
		Yaw:   make([]float64, len(samples)),
		Pitch: make([]float64, len(samples)),
		Roll:  make([]float64, len(samples)),
		XMax:  DefaultXMax,
	}
	if len(samples) == 0 {
		return s
	}

	t0 := samples[0].Time
	var maxT float64
	for i, smp := range samples {
		rel := smp.Time.Sub(t0).Seconds()
		s.T[i] = rel
		s.Yaw[i] = smp.Yaw
		s.Pitch[i] = smp.Pitch
		s.Roll[i] = smp.Roll
		if rel > maxT {
			maxT = rel
		}
	}
	if maxT > 0 {
		s.XMax = maxT
	}
	return s
}

// Title is the 3D view caption for p.
func Title(p orientation.Pose) string {
	return fmt.Sprintf("3D Orientation\nYaw: %.1f°, Pitch: %.1f°, Roll: %.1f°", p.Yaw, p.Pitch, p.Roll)
}

// Labels formats the three live value labels.
func Labels(p orientation.Pose) (yaw, pitch, roll string) {
	return fmt.Sprintf("Yaw: %6.2f°", p.Yaw),
		fmt.Sprintf("Pitch: %6.2f°", p.Pitch),
		fmt.Sprintf("Roll: %6.2f°", p.Roll)
}
