package app

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"io/fs"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/relabs-tech/imu_visualizer/internal/orientation"
	"github.com/relabs-tech/imu_visualizer/internal/render"
)

//go:embed assets/*
var webAssets embed.FS

const wsWriteTimeout = 2 * time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for local development
	},
}

// WSMessage is sent by the browser.
type WSMessage struct {
	Action string `json:"action"` // quit
}

// WSUpdate is pushed to the browser for every new frame or label.
type WSUpdate struct {
	Type   string            `json:"type"` // frame, labels
	Frame  *render.Frame     `json:"frame,omitempty"`
	Labels []string          `json:"labels,omitempty"`
	Pose   *orientation.Pose `json:"pose,omitempty"`
}

// Web serves the browser view: live charts, the 3D orientation image and a
// websocket feed.
type Web struct {
	addr string

	mu        sync.RWMutex
	frame     render.Frame
	haveFrame bool
	pose      orientation.Pose
	havePose  bool

	subMu  sync.Mutex
	subs   map[int]chan WSUpdate
	nextID int

	closeOnce sync.Once
	closeC    chan struct{}

	// stopC ends websocket sessions, which the HTTP server no longer
	// tracks once hijacked.
	stopOnce sync.Once
	stopC    chan struct{}
}

func NewWeb(addr string) *Web {
	return &Web{
		addr:   addr,
		subs:   make(map[int]chan WSUpdate),
		closeC: make(chan struct{}),
		stopC:  make(chan struct{}),
	}
}

func (w *Web) Present(f render.Frame) {
	w.mu.Lock()
	w.frame = f
	w.haveFrame = true
	w.mu.Unlock()
	w.publish(WSUpdate{Type: "frame", Frame: &f})
}

func (w *Web) Labels(p orientation.Pose) {
	w.mu.Lock()
	w.pose = p
	w.havePose = true
	w.mu.Unlock()
	y, pi, r := render.Labels(p)
	w.publish(WSUpdate{Type: "labels", Labels: []string{y, pi, r}, Pose: &p})
}

func (w *Web) CloseRequested() <-chan struct{} {
	return w.closeC
}

// RequestClose asks the application to quit.
func (w *Web) RequestClose() {
	w.closeOnce.Do(func() { close(w.closeC) })
}

// Close ends every websocket session. It may be called more than once.
func (w *Web) Close() error {
	w.stopOnce.Do(func() { close(w.stopC) })
	return nil
}

func (w *Web) snapshot() (render.Frame, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.frame, w.haveFrame
}

// subscribe registers a websocket listener. Its channel holds one update;
// a slow listener only ever sees the newest one.
func (w *Web) subscribe() (int, <-chan WSUpdate) {
	ch := make(chan WSUpdate, 1)
	w.subMu.Lock()
	id := w.nextID
	w.nextID++
	w.subs[id] = ch
	w.subMu.Unlock()
	return id, ch
}

func (w *Web) unsubscribe(id int) {
	w.subMu.Lock()
	delete(w.subs, id)
	w.subMu.Unlock()
}

func (w *Web) publish(u WSUpdate) {
	w.subMu.Lock()
	defer w.subMu.Unlock()
	for _, ch := range w.subs {
		select {
		case ch <- u:
			continue
		default:
		}
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- u:
		default:
		}
	}
}

// Handler returns the HTTP routes of the browser view.
func (w *Web) Handler() http.Handler {
	mux := http.NewServeMux()

	// JSON API endpoint: latest pose
	mux.HandleFunc("/api/orientation", func(rw http.ResponseWriter, r *http.Request) {
		w.mu.RLock()
		p, have := w.pose, w.havePose
		w.mu.RUnlock()
		if !have {
			http.Error(rw, "no data yet", http.StatusServiceUnavailable)
			return
		}
		writeJSON(rw, p)
	})

	mux.HandleFunc("/api/frame", func(rw http.ResponseWriter, r *http.Request) {
		f, have := w.snapshot()
		if !have {
			http.Error(rw, "no frame yet", http.StatusServiceUnavailable)
			return
		}
		writeJSON(rw, f)
	})

	mux.HandleFunc("/api/quit", func(rw http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			rw.Header().Set("Allow", http.MethodPost)
			http.Error(rw, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		log.Println("web: quit requested")
		w.RequestClose()
		rw.WriteHeader(http.StatusAccepted)
	})

	mux.HandleFunc("/orientation.png", func(rw http.ResponseWriter, r *http.Request) {
		f, _ := w.snapshot()
		if f.Cube == nil {
			f.Cube = orientation.ReferenceCube()
			f.Basis = orientation.RotateBasis(f.Latest, 0)
			f.Title = render.Title(f.Latest)
		}
		rw.Header().Set("Content-Type", "image/png")
		rw.Header().Set("Cache-Control", "no-store")
		if err := renderOrientationPNG(rw, f); err != nil {
			log.Printf("web: orientation image error: %v", err)
		}
	})

	mux.HandleFunc("/chart/", func(rw http.ResponseWriter, r *http.Request) {
		name := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/chart/"), ".png")
		if _, ok := chartSpecs[name]; !ok {
			http.NotFound(rw, r)
			return
		}
		f, _ := w.snapshot()
		rw.Header().Set("Content-Type", "image/png")
		rw.Header().Set("Cache-Control", "no-store")
		if err := renderChartPNG(rw, name, f); err != nil {
			log.Printf("web: chart error: %v", err)
		}
	})

	mux.HandleFunc("/ws", w.handleWS)

	assets, err := fs.Sub(webAssets, "assets")
	if err != nil {
		log.Printf("web: embedded assets unavailable: %v", err)
	}
	mux.HandleFunc("/", func(rw http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" && r.URL.Path != "/index.html" {
			http.NotFound(rw, r)
			return
		}
		if assets == nil {
			http.Error(rw, "ui unavailable", http.StatusInternalServerError)
			return
		}
		b, err := fs.ReadFile(assets, "index.html")
		if err != nil {
			http.Error(rw, "ui unavailable", http.StatusInternalServerError)
			return
		}
		rw.Header().Set("Cache-Control", "no-store")
		rw.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = rw.Write(b)
	})

	return mux
}

func writeJSON(rw http.ResponseWriter, v any) {
	rw.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(rw).Encode(v); err != nil {
		log.Printf("web: json encode error: %v", err)
	}
}

func (w *Web) handleWS(rw http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(rw, r, nil)
	if err != nil {
		log.Printf("web: websocket upgrade error: %v", err)
		return
	}
	defer conn.Close()

	id, updates := w.subscribe()
	defer w.unsubscribe(id)

	if f, ok := w.snapshot(); ok {
		_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
		if err := conn.WriteJSON(WSUpdate{Type: "frame", Frame: &f}); err != nil {
			return
		}
	}

	readDone := make(chan struct{})
	go func() {
		defer close(readDone)
		for {
			var msg WSMessage
			if err := conn.ReadJSON(&msg); err != nil {
				return
			}
			switch msg.Action {
			case "quit":
				log.Println("web: quit requested over websocket")
				w.RequestClose()
			default:
				log.Printf("web: unknown websocket action %q", msg.Action)
			}
		}
	}()

	for {
		select {
		case <-readDone:
			return
		case <-w.stopC:
			return
		case <-r.Context().Done():
			return
		case u := <-updates:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteJSON(u); err != nil {
				log.Printf("web: websocket write error: %v", err)
				return
			}
		}
	}
}

// Serve listens on the configured address until ctx is done.
func (w *Web) Serve(ctx context.Context) error {
	srv := &http.Server{
		Addr:              w.addr,
		Handler:           w.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       30 * time.Second,
		MaxHeaderBytes:    1 << 20, // 1 MiB
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("web: server listening on http://%s", w.addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		_ = w.Close()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			_ = srv.Close()
		}
		log.Println("web: server stopped")
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
