// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package shutdown provides the single entry point used to stop the
// visualizer, whatever asked for it: the user, a signal or a failing worker.
package shutdown

import (
	"context"
	"log"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultJoinTimeout bounds how long Shutdown waits for registered workers.
const DefaultJoinTimeout = 2 * time.Second

// Result describes how the first Shutdown went.
type Result struct {
	Reason string
	// Graceful is false when a worker did not exit within the join timeout.
	Graceful bool
	// Stragglers names the workers still running at the timeout.
	Stragglers []string
}

type worker struct {
	name string
	done <-chan struct{}
}

type closer struct {
	name string
	fn   func() error
}

// Coordinator is a one-shot shutdown latch.
type Coordinator struct {
	requested   atomic.Bool
	once        sync.Once
	ctx         context.Context
	cancel      context.CancelFunc
	joinTimeout time.Duration

	mu      sync.Mutex
	workers []worker
	closers []closer

	done   chan struct{}
	result Result
}

// New returns a coordinator whose Context is derived from parent.
// joinTimeout <= 0 selects DefaultJoinTimeout.
func New(parent context.Context, joinTimeout time.Duration) *Coordinator {
	if joinTimeout <= 0 {
		joinTimeout = DefaultJoinTimeout
	}
	ctx, cancel := context.WithCancel(parent)
	return &Coordinator{
		ctx:         ctx,
		cancel:      cancel,
		joinTimeout: joinTimeout,
		done:        make(chan struct{}),
	}
}

// Context is cancelled as soon as shutdown starts.
func (c *Coordinator) Context() context.Context {
	return c.ctx
}

// Requested reports whether Shutdown has been called. Once true it stays true.
func (c *Coordinator) Requested() bool {
	return c.requested.Load()
}

// Done is closed after the first Shutdown has released every resource.
func (c *Coordinator) Done() <-chan struct{} {
	return c.done
}

// RegisterWorker adds a goroutine to join on shutdown; done must close when
// it exits.
func (c *Coordinator) RegisterWorker(name string, done <-chan struct{}) {
	c.mu.Lock()
	c.workers = append(c.workers, worker{name: name, done: done})
	c.mu.Unlock()
}

// RegisterCloser adds a release step. Closers run in registration order
// after the workers have been joined; their errors are logged and ignored.
func (c *Coordinator) RegisterCloser(name string, fn func() error) {
	c.mu.Lock()
	c.closers = append(c.closers, closer{name: name, fn: fn})
	c.mu.Unlock()
}

// Shutdown stops everything once. Concurrent and later calls block until the
// first call has finished and return its result.
func (c *Coordinator) Shutdown(reason string) Result {
	c.once.Do(func() {
		c.requested.Store(true)
		c.cancel()
		log.Printf("shutdown: requested (%s)", reason)

		c.mu.Lock()
		workers := append([]worker(nil), c.workers...)
		closers := append([]closer(nil), c.closers...)
		c.mu.Unlock()

		res := Result{Reason: reason, Graceful: true}
		res.Stragglers = c.join(workers)
		if len(res.Stragglers) > 0 {
			res.Graceful = false
			log.Printf("shutdown: %v did not stop within %s", res.Stragglers, c.joinTimeout)
		}

		for _, cl := range closers {
			runCloser(cl)
		}

		c.result = res
		log.Printf("shutdown: complete (graceful=%t)", res.Graceful)
		close(c.done)
	})
	<-c.done
	return c.result
}

// join waits for all workers against a single deadline and returns the names
// of those still running.
func (c *Coordinator) join(workers []worker) []string {
	timer := time.NewTimer(c.joinTimeout)
	defer timer.Stop()

	var late []string
	expired := false
	for _, w := range workers {
		if expired {
			select {
			case <-w.done:
			default:
				late = append(late, w.name)
			}
			continue
		}
		select {
		case <-w.done:
		case <-timer.C:
			expired = true
			late = append(late, w.name)
		}
	}
	return late
}

func runCloser(cl closer) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Printf("shutdown: %s panicked: %v", cl.name, rec)
		}
	}()
	if err := cl.fn(); err != nil {
		log.Printf("shutdown: error closing %s: %v", cl.name, err)
	}
}
