package serialport

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	serial "github.com/jacobsa/go-serial/serial"
)

// jacobsaPort adapts the io.ReadWriteCloser returned by go-serial.
// The library has no input flush, so ResetInputBuffer is a no-op and the
// acquisition loop's newest-line selection bounds staleness on its own.
type jacobsaPort struct {
	rwc       io.ReadWriteCloser
	closeOnce sync.Once
	closeErr  error
}

// interCharTimeoutMs converts the read timeout to the VTIME granularity
// (tenths of a second, at most 25.5 s).
func interCharTimeoutMs(d time.Duration) uint {
	ms := uint(d / time.Millisecond)
	ms = (ms + 99) / 100 * 100
	if ms < 100 {
		ms = 100
	}
	if ms > 25500 {
		ms = 25500
	}
	return ms
}

func openJacobsa(cfg Config) (Port, error) {
	opts := serial.OpenOptions{
		PortName:              cfg.Name,
		BaudRate:              uint(cfg.BaudRate),
		DataBits:              8,
		StopBits:              1,
		ParityMode:            serial.PARITY_NONE,
		MinimumReadSize:       0,
		InterCharacterTimeout: interCharTimeoutMs(cfg.ReadTimeout),
	}

	rwc, err := serial.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("serialport: open %s at %d baud: %w", cfg.Name, cfg.BaudRate, err)
	}
	return &jacobsaPort{rwc: rwc}, nil
}

func (p *jacobsaPort) Read(b []byte) (int, error) {
	n, err := p.rwc.Read(b)
	// A VTIME expiry with nothing read surfaces as EOF on a tty.
	if n == 0 && errors.Is(err, io.EOF) {
		return 0, nil
	}
	return n, err
}

func (p *jacobsaPort) ResetInputBuffer() error { return nil }

func (p *jacobsaPort) Close() error {
	p.closeOnce.Do(func() {
		p.closeErr = p.rwc.Close()
	})
	return p.closeErr
}
