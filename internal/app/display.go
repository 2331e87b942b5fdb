// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"io"
	"math"
	"strings"

	"github.com/wcharczuk/go-chart/v2/drawing"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/relabs-tech/imu_visualizer/internal/orientation"
	"github.com/relabs-tech/imu_visualizer/internal/render"
)

const (
	viewSize  = 480
	viewScale = 130.0

	// Camera placement of the 3D view, in degrees.
	viewAzimuth   = -60.0
	viewElevation = 30.0
)

var (
	axisColorX = drawing.Color{R: 220, G: 40, B: 40, A: 255}
	axisColorY = drawing.Color{R: 40, G: 170, B: 60, A: 255}
	axisColorZ = drawing.Color{R: 40, G: 80, B: 220, A: 255}
	cubeColor  = drawing.ColorFromHex("b3b3b3")
	frameColor = drawing.ColorFromHex("e0e0e0")
)

// viewProjection maps model space onto the image with a fixed camera.
type viewProjection struct {
	right, up orientation.Vec3
	cx, cy    float64
	scale     float64
}

func newViewProjection() viewProjection {
	az := viewAzimuth * math.Pi / 180
	el := viewElevation * math.Pi / 180
	return viewProjection{
		right: orientation.Vec3{X: -math.Sin(az), Y: math.Cos(az)},
		up: orientation.Vec3{
			X: -math.Sin(el) * math.Cos(az),
			Y: -math.Sin(el) * math.Sin(az),
			Z: math.Cos(el),
		},
		cx:    viewSize / 2,
		cy:    viewSize/2 + 20,
		scale: viewScale,
	}
}

func dot(a, b orientation.Vec3) float64 { return a.X*b.X + a.Y*b.Y + a.Z*b.Z }

func (p viewProjection) point(v orientation.Vec3) (x, y float64) {
	return p.cx + p.scale*dot(v, p.right), p.cy - p.scale*dot(v, p.up)
}

// drawOrientation renders the reference cube, the rotated body axes and the
// title of f.
func drawOrientation(f render.Frame) (*image.RGBA, error) {
	img := image.NewRGBA(image.Rect(0, 0, viewSize, viewSize))
	draw.Draw(img, img.Bounds(), &image.Uniform{color.White}, image.Point{}, draw.Src)

	gc, err := drawing.NewRasterGraphicContext(img)
	if err != nil {
		return nil, fmt.Errorf("display: %w", err)
	}
	proj := newViewProjection()

	line := func(a, b orientation.Vec3, c drawing.Color, width float64) {
		x0, y0 := proj.point(a)
		x1, y1 := proj.point(b)
		gc.SetStrokeColor(c)
		gc.SetLineWidth(width)
		gc.MoveTo(x0, y0)
		gc.LineTo(x1, y1)
		gc.Stroke()
	}

	// Unit bounding box floor as a visual anchor.
	floor := []orientation.Vec3{{X: -1, Y: -1, Z: -1}, {X: 1, Y: -1, Z: -1}, {X: 1, Y: 1, Z: -1}, {X: -1, Y: 1, Z: -1}}
	for i := range floor {
		line(floor[i], floor[(i+1)%len(floor)], frameColor, 1)
	}

	for _, e := range f.Cube {
		line(e.A, e.B, cubeColor, 1)
	}

	origin := orientation.Vec3{}
	axes := []struct {
		name string
		v    orientation.Vec3
		c    drawing.Color
	}{
		{"X", f.Basis.X, axisColorX},
		{"Y", f.Basis.Y, axisColorY},
		{"Z", f.Basis.Z, axisColorZ},
	}
	for _, a := range axes {
		line(origin, a.v, a.c, 3)
	}

	drawer := &font.Drawer{Dst: img, Face: basicfont.Face7x13}
	for _, a := range axes {
		x, y := proj.point(a.v)
		drawer.Src = image.NewUniform(a.c)
		drawer.Dot = fixed.P(int(x)+4, int(y)-4)
		drawer.DrawString(a.name)
	}

	drawer.Src = image.NewUniform(color.Black)
	for i, ln := range strings.Split(f.Title, "\n") {
		w := drawer.MeasureString(ln).Round()
		drawer.Dot = fixed.P((viewSize-w)/2, 18+i*16)
		drawer.DrawString(ln)
	}
	return img, nil
}

func renderOrientationPNG(w io.Writer, f render.Frame) error {
	img, err := drawOrientation(f)
	if err != nil {
		return err
	}
	return png.Encode(w, img)
}
