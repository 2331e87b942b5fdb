package app

import (
	"bytes"
	"encoding/json"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/relabs-tech/imu_visualizer/internal/orientation"
	"github.com/relabs-tech/imu_visualizer/internal/render"
	"github.com/relabs-tech/imu_visualizer/internal/telemetry"
)

func testFrame(p orientation.Pose) render.Frame {
	st := telemetry.Status{State: telemetry.Connected, Port: "COM8"}
	return render.Frame{
		Seq:        1,
		At:         time.Now(),
		Status:     st,
		StatusText: st.Text(),
		Latest:     p,
		HaveSeries: true,
		Series: render.Series{
			T:     []float64{0, 0.5, 1},
			Yaw:   []float64{p.Yaw - 10, p.Yaw - 5, p.Yaw},
			Pitch: []float64{p.Pitch, p.Pitch, p.Pitch},
			Roll:  []float64{p.Roll, p.Roll, p.Roll},
			XMax:  1,
		},
		Basis: orientation.RotateBasis(p, orientation.DefaultAxisLength),
		Cube:  orientation.ReferenceCube(),
		Title: render.Title(p),
	}
}

func TestAPIOrientation(t *testing.T) {
	w := NewWeb("127.0.0.1:0")
	ts := httptest.NewServer(w.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/orientation")
	if err != nil {
		t.Fatalf("get orientation: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("status code=%d before data", resp.StatusCode)
	}

	want := orientation.Pose{Yaw: 142.36, Pitch: -5.24, Roll: -15.82}
	w.Labels(want)

	resp, err = http.Get(ts.URL + "/api/orientation")
	if err != nil {
		t.Fatalf("get orientation: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status code=%d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Fatalf("content-type=%q", ct)
	}
	var got orientation.Pose
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("decode json: %v", err)
	}
	if got != want {
		t.Fatalf("pose=%+v want %+v", got, want)
	}
}

func TestAPIFrame(t *testing.T) {
	w := NewWeb("127.0.0.1:0")
	ts := httptest.NewServer(w.Handler())
	defer ts.Close()

	w.Present(testFrame(orientation.Pose{Yaw: 30}))

	resp, err := http.Get(ts.URL + "/api/frame")
	if err != nil {
		t.Fatalf("get frame: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status code=%d", resp.StatusCode)
	}
	var got map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("decode json: %v", err)
	}
	if got["status_text"] != "Status: Connected to COM8" {
		t.Fatalf("status_text=%v", got["status_text"])
	}
	st, _ := got["status"].(map[string]any)
	if st["state"] != "connected" {
		t.Fatalf("status.state=%v", st["state"])
	}
}

func TestAPIQuit(t *testing.T) {
	w := NewWeb("127.0.0.1:0")
	ts := httptest.NewServer(w.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/quit")
	if err != nil {
		t.Fatalf("get quit: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("GET status code=%d", resp.StatusCode)
	}
	select {
	case <-w.CloseRequested():
		t.Fatalf("GET must not request close")
	default:
	}

	resp, err = http.Post(ts.URL+"/api/quit", "application/json", nil)
	if err != nil {
		t.Fatalf("post quit: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("POST status code=%d", resp.StatusCode)
	}
	select {
	case <-w.CloseRequested():
	case <-time.After(time.Second):
		t.Fatalf("close not requested")
	}

	// A second request is harmless.
	resp, err = http.Post(ts.URL+"/api/quit", "application/json", nil)
	if err != nil {
		t.Fatalf("post quit: %v", err)
	}
	resp.Body.Close()
}

func TestCharts(t *testing.T) {
	w := NewWeb("127.0.0.1:0")
	ts := httptest.NewServer(w.Handler())
	defer ts.Close()

	check := func(path string) {
		t.Helper()
		resp, err := http.Get(ts.URL + path)
		if err != nil {
			t.Fatalf("get %s: %v", path, err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("%s status code=%d", path, resp.StatusCode)
		}
		cfg, err := png.DecodeConfig(resp.Body)
		if err != nil {
			t.Fatalf("%s decode png: %v", path, err)
		}
		if cfg.Width != chartWidth || cfg.Height != chartHeight {
			t.Fatalf("%s size=%dx%d", path, cfg.Width, cfg.Height)
		}
	}

	// Empty plots before any data arrives.
	check("/chart/yaw.png")

	w.Present(testFrame(orientation.Pose{Yaw: 90, Pitch: 10, Roll: -20}))
	for _, name := range []string{"yaw", "pitch", "roll"} {
		check("/chart/" + name + ".png")
	}
	check("/chart/roll")

	resp, err := http.Get(ts.URL + "/chart/bogus.png")
	if err != nil {
		t.Fatalf("get bogus chart: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("bogus status code=%d", resp.StatusCode)
	}
}

func TestRenderChartPNG_SingleSample(t *testing.T) {
	f := testFrame(orientation.Pose{Yaw: 5})
	f.Series = render.Series{T: []float64{0}, Yaw: []float64{5}, Pitch: []float64{0}, Roll: []float64{0}, XMax: render.DefaultXMax}

	var buf bytes.Buffer
	if err := renderChartPNG(&buf, "yaw", f); err != nil {
		t.Fatalf("renderChartPNG: %v", err)
	}
	if _, err := png.Decode(&buf); err != nil {
		t.Fatalf("decode png: %v", err)
	}
	if err := renderChartPNG(&buf, "heading", f); err == nil {
		t.Fatalf("expected error for unknown chart")
	}
}

func TestOrientationImage(t *testing.T) {
	w := NewWeb("127.0.0.1:0")
	ts := httptest.NewServer(w.Handler())
	defer ts.Close()

	w.Present(testFrame(orientation.Pose{}))

	resp, err := http.Get(ts.URL + "/orientation.png")
	if err != nil {
		t.Fatalf("get orientation.png: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status code=%d", resp.StatusCode)
	}
	img, err := png.Decode(resp.Body)
	if err != nil {
		t.Fatalf("decode png: %v", err)
	}
	if b := img.Bounds(); b.Dx() != viewSize || b.Dy() != viewSize {
		t.Fatalf("size=%dx%d", b.Dx(), b.Dy())
	}

	// Identity pose: the X axis runs along model X and is drawn in red.
	proj := newViewProjection()
	x, y := proj.point(orientation.Vec3{X: orientation.DefaultAxisLength / 2})
	r, g, bl, _ := img.At(int(x), int(y)).RGBA()
	if r>>8 < 150 || g>>8 > 120 || bl>>8 > 120 {
		t.Fatalf("pixel at X axis midpoint=(%d,%d,%d), want red", r>>8, g>>8, bl>>8)
	}
}

func TestOrientationImage_BeforeData(t *testing.T) {
	w := NewWeb("127.0.0.1:0")
	ts := httptest.NewServer(w.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/orientation.png")
	if err != nil {
		t.Fatalf("get orientation.png: %v", err)
	}
	defer resp.Body.Close()
	if _, err := png.DecodeConfig(resp.Body); err != nil {
		t.Fatalf("decode png: %v", err)
	}
}

func TestRootPage(t *testing.T) {
	w := NewWeb("127.0.0.1:0")
	ts := httptest.NewServer(w.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/")
	if err != nil {
		t.Fatalf("get root: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status code=%d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Fatalf("content-type=%q", ct)
	}

	resp2, err := http.Get(ts.URL + "/missing")
	if err != nil {
		t.Fatalf("get missing: %v", err)
	}
	resp2.Body.Close()
	if resp2.StatusCode != http.StatusNotFound {
		t.Fatalf("missing status code=%d", resp2.StatusCode)
	}
}

func TestWebSocket(t *testing.T) {
	w := NewWeb("127.0.0.1:0")
	ts := httptest.NewServer(w.Handler())
	defer ts.Close()

	w.Present(testFrame(orientation.Pose{Yaw: 45}))

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	var u WSUpdate
	if err := conn.ReadJSON(&u); err != nil {
		t.Fatalf("read initial frame: %v", err)
	}
	if u.Type != "frame" || u.Frame == nil || u.Frame.Latest.Yaw != 45 {
		t.Fatalf("initial update=%+v", u)
	}

	// The session is subscribed once the initial frame is out.
	w.Labels(orientation.Pose{Yaw: 142.36, Pitch: -5.24})
	u = WSUpdate{}
	if err := conn.ReadJSON(&u); err != nil {
		t.Fatalf("read labels: %v", err)
	}
	if u.Type != "labels" || len(u.Labels) != 3 || u.Labels[0] != "Yaw: 142.36°" {
		t.Fatalf("labels update=%+v", u)
	}

	if err := conn.WriteJSON(WSMessage{Action: "quit"}); err != nil {
		t.Fatalf("write quit: %v", err)
	}
	select {
	case <-w.CloseRequested():
	case <-time.After(2 * time.Second):
		t.Fatalf("close not requested over websocket")
	}

	_ = w.Close()
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Fatalf("session still open after Close")
	}
}
