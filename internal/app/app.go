// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/relabs-tech/imu_visualizer/internal/acquisition"
	"github.com/relabs-tech/imu_visualizer/internal/config"
	"github.com/relabs-tech/imu_visualizer/internal/orientation"
	"github.com/relabs-tech/imu_visualizer/internal/render"
	"github.com/relabs-tech/imu_visualizer/internal/shutdown"
	"github.com/relabs-tech/imu_visualizer/internal/telemetry"
)

// Options lets callers replace the process-level collaborators of Run.
type Options struct {
	// Opener opens the serial link; nil uses serialport.Open.
	Opener acquisition.Opener

	Stdin  io.Reader
	Stdout io.Writer

	// Presenters are added to the ones selected by the configuration.
	Presenters []render.Presenter
}

// Run connects to the sensor and drives acquisition, rendering and the
// configured presenters until ctx is done, a presenter asks to close or the
// serial link fails. A failed connection returns an error before anything
// is rendered.
func Run(ctx context.Context, cfg config.Config, opts Options) error {
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	printBanner(opts.Stdout, cfg)

	store := telemetry.NewStore(cfg.MaxPoints)
	loop := acquisition.New(acquisition.Config{
		Serial:       cfg.SerialConfig(),
		PollInterval: cfg.PollInterval,
		LogRaw:       cfg.LogRaw,
	}, store, opts.Opener)

	if err := loop.Connect(); err != nil {
		log.Println("app: failed to connect to serial port, exiting")
		return err
	}

	coord := shutdown.New(ctx, cfg.ShutdownTimeout)
	runCtx := coord.Context()

	var console *Console
	var web *Web
	presenters := append([]render.Presenter(nil), opts.Presenters...)
	if cfg.WantsConsole() {
		console = NewConsole(opts.Stdout, cfg.ConsoleRefresh)
		presenters = append(presenters, console)
	}
	if cfg.WantsWeb() {
		web = NewWeb(cfg.WebAddr)
		presenters = append(presenters, web)
	}
	fan := render.NewFanout(runCtx, presenters...)

	renderer := render.New(store, fan, render.Options{
		Interval:   cfg.RenderInterval,
		AxisLength: cfg.AxisLength,
		Stopped:    coord.Requested,
	})

	loop.OnFatal(func(error) {
		coord.Shutdown("serial error")
	})
	coord.RegisterWorker("acquisition", loop.Done())
	coord.RegisterCloser("serial port", loop.Close)
	coord.RegisterCloser("render timer", func() error {
		renderer.Stop()
		return nil
	})
	if web != nil {
		coord.RegisterCloser("web sessions", web.Close)
	}

	if err := loop.Start(runCtx); err != nil {
		coord.Shutdown("start failed")
		return err
	}
	log.Println("app: application started, press Ctrl+C to exit")

	g, gctx := errgroup.WithContext(runCtx)
	g.Go(func() error {
		return renderer.Run(gctx)
	})
	g.Go(func() error {
		forwardLabels(gctx, store.Updates(), fan, coord.Requested)
		return nil
	})
	if console != nil {
		if opts.Stdin != nil {
			// Blocks on the terminal; ends with the process.
			go console.ListenInput(opts.Stdin)
		}
		g.Go(func() error {
			return console.Run(gctx)
		})
	}
	if web != nil {
		g.Go(func() error {
			return web.Serve(gctx)
		})
	}
	g.Go(func() error {
		select {
		case <-ctx.Done():
			coord.Shutdown("interrupt")
		case <-fan.CloseRequested():
			coord.Shutdown("window closed")
		case <-gctx.Done():
		}
		return nil
	})

	groupErr := g.Wait()
	reason := "exit"
	if ctx.Err() != nil {
		reason = "interrupt"
	}
	res := coord.Shutdown(reason)
	log.Printf("app: application closed (%s)", res.Reason)

	if groupErr != nil {
		return groupErr
	}
	if err := loop.Err(); err != nil {
		return fmt.Errorf("serial link lost: %w", err)
	}
	if !res.Graceful {
		log.Printf("app: %s did not exit gracefully", strings.Join(res.Stragglers, ", "))
	}
	return nil
}

// forwardLabels hands each new pose to the presenters' labels until ctx is
// done. Updates arriving after shutdown was requested are dropped.
func forwardLabels(ctx context.Context, updates <-chan orientation.Pose, p render.Presenter, stopped func() bool) {
	for {
		select {
		case <-ctx.Done():
			return
		case pose := <-updates:
			if stopped() {
				return
			}
			p.Labels(pose)
		}
	}
}

func printBanner(w io.Writer, cfg config.Config) {
	sep := strings.Repeat("=", 50)
	fmt.Fprintln(w, "IMU Data Visualizer")
	fmt.Fprintln(w, sep)
	fmt.Fprintf(w, "Make sure your sensor is connected to %s (%s driver)\n", cfg.SerialPort, cfg.SerialDriver)
	fmt.Fprintln(w, "and sending data in the format:")
	fmt.Fprintln(w, orientation.FormatLine(4576, 0, orientation.Pose{Yaw: 142.36, Pitch: -5.24, Roll: -15.82}))
	fmt.Fprintln(w, sep)
	if cfg.WantsWeb() {
		fmt.Fprintf(w, "Browser view: http://%s\n", cfg.WebAddr)
	}
	fmt.Fprintln(w, "Press Ctrl+C to exit at any time")
}
