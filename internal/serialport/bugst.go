package serialport

import (
	"fmt"

	"go.bug.st/serial"
)

func openBugst(cfg Config) (Port, error) {
	mode := &serial.Mode{
		BaudRate: cfg.BaudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	p, err := serial.Open(cfg.Name, mode)
	if err != nil {
		return nil, fmt.Errorf("serialport: open %s at %d baud: %w", cfg.Name, cfg.BaudRate, err)
	}

	// Read returns 0, nil once the timeout elapses with no data.
	if err := p.SetReadTimeout(cfg.ReadTimeout); err != nil {
		_ = p.Close()
		return nil, fmt.Errorf("serialport: set read timeout on %s: %w", cfg.Name, err)
	}

	return p, nil
}
