package app

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/relabs-tech/imu_visualizer/internal/orientation"
	"github.com/relabs-tech/imu_visualizer/internal/render"
	"github.com/relabs-tech/imu_visualizer/internal/telemetry"
)

const (
	rst     = "\033[0m"
	dim     = "\033[2m"
	red     = "\033[31m"
	grn     = "\033[32m"
	blu     = "\033[34m"
	yel     = "\033[33m"
	bwht    = "\033[97m"
	hideCur = "\033[?25l"
	showCur = "\033[?25h"
	clear   = "\033[2J\033[H"

	blocks       = " ▁▂▃▄▅▆▇█"
	consoleWidth = 64
)

// Console is a terminal dashboard: live labels, a sparkline per angle and a
// compact view of the rotated axes.
type Console struct {
	out     io.Writer
	refresh time.Duration

	mu        sync.Mutex
	frame     render.Frame
	haveFrame bool
	labels    [3]string

	closeOnce sync.Once
	closeC    chan struct{}
}

func NewConsole(out io.Writer, refresh time.Duration) *Console {
	if refresh <= 0 {
		refresh = 250 * time.Millisecond
	}
	y, p, r := render.Labels(orientation.Pose{})
	return &Console{
		out:     out,
		refresh: refresh,
		labels:  [3]string{y, p, r},
		closeC:  make(chan struct{}),
	}
}

func (c *Console) Present(f render.Frame) {
	c.mu.Lock()
	c.frame = f
	c.haveFrame = true
	c.mu.Unlock()
}

func (c *Console) Labels(p orientation.Pose) {
	y, pi, r := render.Labels(p)
	c.mu.Lock()
	c.labels = [3]string{y, pi, r}
	c.mu.Unlock()
}

func (c *Console) CloseRequested() <-chan struct{} {
	return c.closeC
}

// RequestClose asks the application to quit.
func (c *Console) RequestClose() {
	c.closeOnce.Do(func() { close(c.closeC) })
}

// ListenInput treats a "q" or "quit" line on in as a close request. It
// returns when in is exhausted.
func (c *Console) ListenInput(in io.Reader) {
	sc := bufio.NewScanner(in)
	for sc.Scan() {
		switch strings.ToLower(strings.TrimSpace(sc.Text())) {
		case "q", "quit", "exit":
			log.Println("console: quit requested")
			c.RequestClose()
			return
		}
	}
}

// Run redraws the dashboard every refresh period until ctx is done.
func (c *Console) Run(ctx context.Context) error {
	fmt.Fprint(c.out, hideCur)
	defer fmt.Fprint(c.out, showCur+"\n")

	ticker := time.NewTicker(c.refresh)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		c.mu.Lock()
		f, have, labels := c.frame, c.haveFrame, c.labels
		c.mu.Unlock()
		if !have {
			continue
		}
		fmt.Fprint(c.out, clear+drawDashboard(f, labels))
	}
}

func drawDashboard(f render.Frame, labels [3]string) string {
	var b strings.Builder
	gw := consoleWidth - 8

	line := func(content string) {
		pad := max(0, consoleWidth-visLen(content))
		fmt.Fprintf(&b, "%s│%s%s%s│%s\n", dim, rst, content, strings.Repeat(" ", pad), rst)
	}
	sep := func(label string) {
		rest := max(0, consoleWidth-visLen(label)-1)
		fmt.Fprintf(&b, "%s├─%s%s┤%s\n", dim, label, strings.Repeat("─", rest), rst)
	}

	title := " IMU Data Visualizer - Yaw, Pitch, Roll "
	fmt.Fprintf(&b, "%s┌─%s%s%s%s%s┐%s\n", dim, rst, bwht, title, rst,
		dim+strings.Repeat("─", max(0, consoleWidth-len(title)-1)), rst)

	line(fmt.Sprintf(" %s%s%s   %s%s%s   %s%s%s",
		red, labels[0], rst, grn, labels[1], rst, blu, labels[2], rst))
	line(" " + statusColor(f) + f.StatusText + rst)

	sep(fmt.Sprintf(" History %.1fs ", f.Series.XMax))
	if f.HaveSeries {
		line(fmt.Sprintf(" %sY%s %s%s%s", red, rst, red, sparkline(f.Series.Yaw, gw, -180, 180), rst))
		line(fmt.Sprintf(" %sP%s %s%s%s", grn, rst, grn, sparkline(f.Series.Pitch, gw, -90, 90), rst))
		line(fmt.Sprintf(" %sR%s %s%s%s", blu, rst, blu, sparkline(f.Series.Roll, gw, -180, 180), rst))
	} else {
		line(fmt.Sprintf(" %swaiting for data...%s", dim, rst))
		line("")
		line("")
	}

	sep(" 3D Orientation ")
	axes := []struct {
		name  string
		color string
		v     orientation.Vec3
	}{
		{"X", red, f.Basis.X},
		{"Y", grn, f.Basis.Y},
		{"Z", blu, f.Basis.Z},
	}
	for _, a := range axes {
		line(fmt.Sprintf(" %s%s%s (%+5.2f %+5.2f %+5.2f)  %s",
			a.color, a.name, rst, a.v.X, a.v.Y, a.v.Z, gauge(a.v.Z, -1, 1, 24)))
	}

	fmt.Fprintf(&b, "%s└%s┘%s\n", dim, strings.Repeat("─", consoleWidth), rst)
	fmt.Fprintf(&b, " %sq + Enter to quit%s\n", dim, rst)
	return b.String()
}

func statusColor(f render.Frame) string {
	switch f.Status.State {
	case telemetry.Connected:
		return grn
	case telemetry.Error:
		return red
	default:
		return yel
	}
}

// sparkline maps the newest width values onto block glyphs between lo and hi.
func sparkline(data []float64, width int, lo, hi float64) string {
	if len(data) == 0 {
		return strings.Repeat(" ", width)
	}
	d := downsample(data, width)
	if len(d) < width {
		pad := make([]float64, width-len(d))
		for i := range pad {
			pad[i] = math.NaN()
		}
		d = append(pad, d...)
	}
	rng := hi - lo
	if rng <= 0 {
		rng = 1
	}
	blk := []rune(blocks)
	var b strings.Builder
	for _, v := range d {
		if math.IsNaN(v) {
			b.WriteRune(' ')
			continue
		}
		frac := math.Max(0, math.Min(1, (v-lo)/rng))
		b.WriteRune(blk[1+min(7, int(frac*8))])
	}
	return b.String()
}

func gauge(value, vmin, vmax float64, width int) string {
	rng := vmax - vmin
	if rng == 0 {
		rng = 1
	}
	t := math.Max(0, math.Min(1, (value-vmin)/rng))
	pos := int(t * float64(width-1))
	center := int((0 - vmin) / rng * float64(width-1))
	bar := make([]rune, width)
	for i := range bar {
		bar[i] = '─'
	}
	if center >= 0 && center < width {
		bar[center] = '┼'
	}
	bar[max(0, min(width-1, pos))] = '●'
	return string(bar)
}

// downsample keeps the last value of each bucket so the newest sample is
// always shown.
func downsample(data []float64, width int) []float64 {
	n := len(data)
	if n <= width {
		return data
	}
	step := float64(n) / float64(width)
	out := make([]float64, width)
	for c := range width {
		ei := min(n, int(float64(c+1)*step))
		out[c] = data[ei-1]
	}
	return out
}

func visLen(s string) int {
	n := 0
	inEsc := false
	for _, r := range s {
		if r == '\033' {
			inEsc = true
			continue
		}
		if inEsc {
			if r == 'm' {
				inEsc = false
			}
			continue
		}
		n++
	}
	return n
}
