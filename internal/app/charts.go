package app

import (
	"fmt"
	"io"

	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"github.com/relabs-tech/imu_visualizer/internal/render"
)

const (
	chartWidth  = 640
	chartHeight = 240
)

// chartSpec describes one of the three angle plots.
type chartSpec struct {
	Title  string
	Name   string
	Color  drawing.Color
	Min    float64
	Max    float64
	Values func(render.Series) []float64
}

var chartSpecs = map[string]chartSpec{
	"yaw": {
		Title: "Yaw (Heading)", Name: "Yaw", Color: chart.ColorRed, Min: -180, Max: 180,
		Values: func(s render.Series) []float64 { return s.Yaw },
	},
	"pitch": {
		Title: "Pitch", Name: "Pitch", Color: chart.ColorGreen, Min: -90, Max: 90,
		Values: func(s render.Series) []float64 { return s.Pitch },
	},
	"roll": {
		Title: "Roll", Name: "Roll", Color: chart.ColorBlue, Min: -180, Max: 180,
		Values: func(s render.Series) []float64 { return s.Roll },
	},
}

func degreeTicks(lo, hi, step float64) []chart.Tick {
	var ticks []chart.Tick
	for v := lo; v <= hi; v += step {
		ticks = append(ticks, chart.Tick{Value: v, Label: fmt.Sprintf("%.0f", v)})
	}
	return ticks
}

// renderChartPNG draws one angle history as a PNG. With no history an empty
// plot with the fixed axes is drawn.
func renderChartPNG(w io.Writer, name string, f render.Frame) error {
	spec, ok := chartSpecs[name]
	if !ok {
		return fmt.Errorf("unknown chart %q", name)
	}

	xMax := f.Series.XMax
	if xMax <= 0 {
		xMax = render.DefaultXMax
	}

	style := chart.Style{StrokeColor: spec.Color, StrokeWidth: 2}
	series := chart.ContinuousSeries{Name: spec.Name, Style: style}
	if f.HaveSeries && len(f.Series.T) > 0 {
		series.XValues = f.Series.T
		series.YValues = spec.Values(f.Series)
	} else {
		// go-chart refuses a chart without a visible series.
		series.XValues = []float64{0, xMax}
		series.YValues = []float64{0, 0}
		series.Style = chart.Style{StrokeColor: drawing.ColorTransparent, StrokeWidth: 1}
	}

	step := 90.0
	if spec.Max-spec.Min <= 180 {
		step = 45
	}
	ch := chart.Chart{
		Title:      spec.Title,
		Width:      chartWidth,
		Height:     chartHeight,
		Background: chart.Style{Padding: chart.Box{Top: 30, Left: 16, Right: 16, Bottom: 12}},
		XAxis: chart.XAxis{
			Name:  "Time",
			Range: &chart.ContinuousRange{Min: 0, Max: xMax},
			ValueFormatter: func(v interface{}) string {
				if sec, ok := v.(float64); ok {
					return fmt.Sprintf("%.1fs", sec)
				}
				return ""
			},
		},
		YAxis: chart.YAxis{
			Name:  "Degrees",
			Range: &chart.ContinuousRange{Min: spec.Min, Max: spec.Max},
			Ticks: degreeTicks(spec.Min, spec.Max, step),
		},
		Series: []chart.Series{series},
	}

	if err := ch.Render(chart.PNG, w); err != nil {
		return fmt.Errorf("render %s chart: %w", name, err)
	}
	return nil
}
