// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"

	"github.com/relabs-tech/imu_visualizer/internal/app"
	"github.com/relabs-tech/imu_visualizer/internal/config"
	"github.com/relabs-tech/imu_visualizer/internal/serialport"
)

var version = "dev"

type flags struct {
	configPath string
	port       string
	baud       int
	driver     string
	presenter  string
	webAddr    string
	maxPoints  int
	verbose    bool
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	if err := fang.Execute(context.Background(), newRootCmd()); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	f := &flags{}
	cmd := &cobra.Command{
		Use:   "imu_visualizer",
		Short: "Live yaw, pitch and roll from a serial IMU",
		Long: `imu_visualizer reads orientation lines from a serial IMU
("<seq> <flag> <yaw> <pitch> <roll>"), keeps a short history and shows the
angles as sparklines and rotated body axes in the terminal, in a local
browser view, or both.

Use --driver sim to try it without hardware.`,
		Version: version,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, *f)
			if err != nil {
				return err
			}
			return run(cmd.Context(), cfg)
		},
		SilenceUsage: true,
	}

	bindFlags(cmd, f)
	cmd.AddCommand(newPortsCmd())
	return cmd
}

func bindFlags(cmd *cobra.Command, f *flags) {
	fl := cmd.Flags()
	fl.StringVarP(&f.configPath, "config", "c", "", "config file (.yaml/.yml or KEY=VALUE lines)")
	fl.StringVarP(&f.port, "port", "p", "", "serial device, e.g. COM8 or /dev/ttyUSB0")
	fl.IntVarP(&f.baud, "baud", "b", 0, "serial baud rate")
	fl.StringVar(&f.driver, "driver", "", "serial driver: bugst, jacobsa or sim")
	fl.StringVar(&f.presenter, "presenter", "", "console, web, both or none")
	fl.StringVar(&f.webAddr, "web-addr", "", "listen address of the browser view")
	fl.IntVar(&f.maxPoints, "max-points", 0, "samples kept in the history")
	fl.BoolVarP(&f.verbose, "verbose", "v", false, "log every received line")
}

func newPortsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ports",
		Short: "List the serial ports on this machine",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ports, err := serialport.ListPorts()
			if err != nil {
				return err
			}
			if len(ports) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No serial ports found")
				return nil
			}
			for _, p := range ports {
				fmt.Fprintln(cmd.OutOrStdout(), p)
			}
			return nil
		},
	}
}

// loadConfig reads the config file, if any, and applies the flags that were
// set explicitly on top of it.
func loadConfig(cmd *cobra.Command, f flags) (config.Config, error) {
	cfg := config.Defaults()
	if f.configPath != "" {
		loaded, err := config.Load(f.configPath)
		if err != nil {
			return config.Config{}, fmt.Errorf("failed to load config: %w", err)
		}
		cfg = loaded
	}

	changed := cmd.Flags().Changed
	if changed("port") {
		cfg.SerialPort = f.port
	}
	if changed("baud") {
		cfg.SerialBaudRate = f.baud
	}
	if changed("driver") {
		cfg.SerialDriver = f.driver
	}
	if changed("presenter") {
		cfg.Presenter = f.presenter
	}
	if changed("web-addr") {
		cfg.WebAddr = f.webAddr
	}
	if changed("max-points") {
		cfg.MaxPoints = f.maxPoints
	}
	if f.verbose {
		cfg.LogRaw = true
	}

	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

func run(ctx context.Context, cfg config.Config) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	err := app.Run(ctx, cfg, app.Options{Stdin: os.Stdin, Stdout: os.Stdout})
	if err != nil && errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
