// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package acquisition owns the serial link to the sensor. A Loop connects,
// then streams lines on its own goroutine, parsing each into a pose and
// publishing it to a telemetry.Store.
package acquisition

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/relabs-tech/imu_visualizer/internal/orientation"
	"github.com/relabs-tech/imu_visualizer/internal/serialport"
	"github.com/relabs-tech/imu_visualizer/internal/telemetry"
)

// State is the lifecycle of a Loop.
type State int32

const (
	Idle State = iota
	Connecting
	Streaming
	Stopped
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Connecting:
		return "connecting"
	case Streaming:
		return "streaming"
	case Stopped:
		return "stopped"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

const (
	DefaultPollInterval = 500 * time.Microsecond
	defaultReadBufBytes = 4096

	// maxFullReads bounds how many back-to-back full buffers are drained
	// before the newest line is processed anyway.
	maxFullReads = 8
)

var (
	ErrNotConnected   = errors.New("acquisition: not connected")
	ErrAlreadyStarted = errors.New("acquisition: already started")
)

// Config tunes the loop.
type Config struct {
	Serial serialport.Config

	// PollInterval is the pause after a read that returned no data.
	PollInterval time.Duration

	// LogRaw echoes every received line.
	LogRaw bool

	MaxLineBytes int
	ReadBufBytes int
}

// Opener opens a serial port. serialport.Open is the production opener.
type Opener func(serialport.Config) (serialport.Port, error)

// Stats are running counters of the streaming goroutine.
type Stats struct {
	Lines       uint64 `json:"lines"`
	Samples     uint64 `json:"samples"`
	ParseErrors uint64 `json:"parse_errors"`
	StaleLines  uint64 `json:"stale_lines"`
}

// Loop reads the sensor on its own goroutine.
type Loop struct {
	cfg   Config
	open  Opener
	store *telemetry.Store

	onFatal func(error)

	state   atomic.Int32
	started atomic.Bool
	done    chan struct{}

	// port is written by Connect before Start and released by Close.
	port      serialport.Port
	closeOnce sync.Once
	closeErr  error

	errMu sync.Mutex
	err   error

	lines       atomic.Uint64
	samples     atomic.Uint64
	parseErrors atomic.Uint64
	stale       atomic.Uint64
}

// New returns an idle loop. open may be nil to use serialport.Open.
func New(cfg Config, store *telemetry.Store, open Opener) *Loop {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.ReadBufBytes <= 0 {
		cfg.ReadBufBytes = defaultReadBufBytes
	}
	if cfg.Serial.ReadTimeout <= 0 {
		cfg.Serial.ReadTimeout = serialport.DefaultReadTimeout
	}
	if open == nil {
		open = serialport.Open
	}
	return &Loop{
		cfg:   cfg,
		open:  open,
		store: store,
		done:  make(chan struct{}),
	}
}

// OnFatal registers fn to be called once if streaming stops on an I/O
// failure. It runs after Done is closed. Must be set before Start.
func (l *Loop) OnFatal(fn func(error)) {
	l.onFatal = fn
}

// State reports the current lifecycle state.
func (l *Loop) State() State {
	return State(l.state.Load())
}

// Err returns the error that stopped the loop, if any.
func (l *Loop) Err() error {
	l.errMu.Lock()
	defer l.errMu.Unlock()
	return l.err
}

func (l *Loop) fail(st telemetry.Status, err error) {
	l.errMu.Lock()
	l.err = err
	l.errMu.Unlock()
	l.state.Store(int32(Stopped))
	l.store.SetStatus(st)
}

// Stats returns a copy of the loop counters.
func (l *Loop) Stats() Stats {
	return Stats{
		Lines:       l.lines.Load(),
		Samples:     l.samples.Load(),
		ParseErrors: l.parseErrors.Load(),
		StaleLines:  l.stale.Load(),
	}
}

// Connect opens the serial device. On failure the loop is Stopped, the
// store status is Error and Start will refuse to run.
func (l *Loop) Connect() error {
	if l.State() != Idle {
		return fmt.Errorf("acquisition: connect in state %s", l.State())
	}
	name := l.cfg.Serial.Name
	l.state.Store(int32(Connecting))
	l.store.SetStatus(telemetry.Status{State: telemetry.Connecting, Port: name})

	port, err := l.open(l.cfg.Serial)
	if err != nil {
		err = fmt.Errorf("acquisition: connect %s: %w", name, err)
		log.Printf("acquisition: error connecting to %s: %v", name, err)
		l.fail(telemetry.Status{State: telemetry.Error, Port: name, LastError: "Connection failed"}, err)
		return err
	}
	l.port = port

	l.store.SetStatus(telemetry.Status{State: telemetry.Connected, Port: name})
	log.Printf("acquisition: connected to %s at %d baud", name, l.cfg.Serial.BaudRate)
	return nil
}

// Start launches the streaming goroutine. It requires a successful Connect.
func (l *Loop) Start(ctx context.Context) error {
	if l.started.Load() {
		return ErrAlreadyStarted
	}
	if l.port == nil || l.State() != Connecting {
		return ErrNotConnected
	}
	if l.started.Swap(true) {
		return ErrAlreadyStarted
	}
	l.state.Store(int32(Streaming))

	go l.run(ctx)
	return nil
}

// Done is closed when the streaming goroutine has exited. It never closes
// if Start was not called.
func (l *Loop) Done() <-chan struct{} {
	return l.done
}

// Wait blocks until the goroutine exits or timeout elapses, and reports
// whether it exited.
func (l *Loop) Wait(timeout time.Duration) bool {
	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case <-l.done:
		return true
	case <-t.C:
		return false
	}
}

// Close releases the serial port exactly once. It is safe to call when the
// port was never opened and from several goroutines.
func (l *Loop) Close() error {
	l.closeOnce.Do(func() {
		if l.port == nil {
			return
		}
		log.Printf("acquisition: closing serial port %s", l.cfg.Serial.Name)
		l.closeErr = l.port.Close()
	})
	return l.closeErr
}

func (l *Loop) run(ctx context.Context) {
	var fatal error
	defer func() {
		close(l.done)
		if fatal != nil && l.onFatal != nil {
			l.onFatal(fatal)
		}
	}()

	asm := newLineAssembler(l.cfg.MaxLineBytes)
	buf := make([]byte, l.cfg.ReadBufBytes)
	r := &reader{}

	// Drop whatever piled up before we started listening.
	if err := l.port.ResetInputBuffer(); err != nil {
		log.Printf("acquisition: reset input buffer: %v", err)
	}
	asm.markReset()

	for {
		if ctx.Err() != nil {
			l.state.Store(int32(Stopped))
			log.Println("acquisition: serial reading stopped")
			return
		}

		err := l.step(asm, buf, r)
		if err == nil {
			continue
		}
		if ctx.Err() != nil {
			// The port was closed underneath us during shutdown.
			l.state.Store(int32(Stopped))
			log.Println("acquisition: serial reading stopped")
			return
		}

		log.Printf("acquisition: serial read error: %v", err)
		l.fail(telemetry.Status{
			State:     telemetry.Error,
			Port:      l.cfg.Serial.Name,
			LastError: "Serial error: " + err.Error(),
		}, err)
		fatal = err
		return
	}
}

// reader carries the newest complete line across reads while the port is
// still returning full buffers of backlog.
type reader struct {
	candidate []byte
	fullReads int
}

// step performs one read. A returned error is an I/O failure; panics are
// logged and swallowed so a bad line cannot kill the loop.
func (l *Loop) step(asm *lineAssembler, buf []byte, r *reader) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Printf("acquisition: unexpected error: %v", rec)
			err = nil
		}
	}()

	n, err := l.port.Read(buf)
	if err != nil {
		return err
	}
	if n == 0 {
		// Input drained while a line was held back.
		if r.candidate != nil {
			l.emit(r)
			return nil
		}
		time.Sleep(l.cfg.PollInterval)
		return nil
	}

	lines := asm.feed(buf[:n])
	if len(lines) > 0 {
		if r.candidate != nil {
			l.stale.Add(1)
		}
		l.stale.Add(uint64(len(lines) - 1))
		r.candidate = lines[len(lines)-1]
	}

	// A full buffer means more input is queued: keep draining so only the
	// freshest line is handled.
	if n == len(buf) && r.fullReads < maxFullReads {
		r.fullReads++
		return nil
	}
	if r.candidate != nil {
		l.emit(r)
	}
	return nil
}

func (l *Loop) emit(r *reader) {
	line := r.candidate
	r.candidate = nil
	r.fullReads = 0
	l.handleLine(line)
}

func (l *Loop) handleLine(raw []byte) {
	text := strings.TrimSpace(strings.ToValidUTF8(string(raw), ""))
	if text == "" {
		return
	}
	l.lines.Add(1)
	if l.cfg.LogRaw {
		log.Printf("acquisition: raw: %s", text)
	}

	pose, ok, err := orientation.ParseLine(text)
	if err != nil {
		l.parseErrors.Add(1)
		log.Printf("acquisition: %v (line %q)", err, text)
		return
	}
	if !ok {
		return
	}

	l.store.Record(pose, time.Now())
	l.samples.Add(1)
}
