// Package serialport opens the link to the orientation sensor. Three drivers
// are available: "bugst" (go.bug.st/serial, default), "jacobsa"
// (github.com/jacobsa/go-serial) and "sim", a simulated device that emits
// lines in the sensor's format.
package serialport

import (
	"errors"
	"fmt"
	"io"
	"time"

	"go.bug.st/serial"
)

const (
	DriverBugst   = "bugst"
	DriverJacobsa = "jacobsa"
	DriverSim     = "sim"
)

const (
	DefaultBaudRate    = 115200
	DefaultReadTimeout = 1 * time.Second
	DefaultSimRateHz   = 50
)

var (
	ErrUnknownDriver = errors.New("serialport: unknown driver")
	ErrClosed        = errors.New("serialport: port closed")
)

// Port is an open serial link.
//
// Read blocks for at most the configured read timeout and returns 0, nil
// when no bytes arrived in that window. ResetInputBuffer discards bytes
// received but not yet read.
type Port interface {
	io.Reader
	ResetInputBuffer() error
	Close() error
}

// Config selects the device and line settings.
type Config struct {
	Name        string
	BaudRate    int
	ReadTimeout time.Duration
	Driver      string

	// SimRateHz is the line rate of the "sim" driver.
	SimRateHz int
}

func (c Config) withDefaults() Config {
	if c.BaudRate <= 0 {
		c.BaudRate = DefaultBaudRate
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = DefaultReadTimeout
	}
	if c.Driver == "" {
		c.Driver = DriverBugst
	}
	if c.SimRateHz <= 0 {
		c.SimRateHz = DefaultSimRateHz
	}
	return c
}

// Open opens the configured device.
func Open(cfg Config) (Port, error) {
	cfg = cfg.withDefaults()
	switch cfg.Driver {
	case DriverBugst:
		return openBugst(cfg)
	case DriverJacobsa:
		return openJacobsa(cfg)
	case DriverSim:
		return NewSim(cfg), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, cfg.Driver)
	}
}

// ListPorts returns the serial devices present on this machine.
func ListPorts() ([]string, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("serialport: list ports: %w", err)
	}
	return ports, nil
}
