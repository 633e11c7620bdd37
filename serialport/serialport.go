// Package serialport opens 8N1 serial ports for the sessions.
package serialport

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"go.bug.st/serial"
)

// DefaultReadTimeout bounds each Read so the receive loop can notice stop
// requests even on a silent line.
const DefaultReadTimeout = 200 * time.Millisecond

// ErrReadTimeout may be returned by Port implementations whose Read reports
// an expired timeout as an error instead of a zero-length read.
var ErrReadTimeout = errors.New("serialport: read timeout")

// Port is an open serial port. Close must unblock a pending Read.
type Port interface {
	io.ReadWriteCloser
}

// Opener opens a port by name at the given baud rate.
type Opener interface {
	Open(name string, baud int) (Port, error)
}

// OpenerFunc adapts a function to Opener.
type OpenerFunc func(name string, baud int) (Port, error)

func (f OpenerFunc) Open(name string, baud int) (Port, error) {
	return f(name, baud)
}

// System opens real serial devices.
type System struct {
	ReadTimeout time.Duration
}

// Open opens name with 8 data bits, no parity and one stop bit.
func (s System) Open(name string, baud int) (Port, error) {
	mode := &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	p, err := serial.Open(name, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", name, err)
	}

	timeout := s.ReadTimeout
	if timeout <= 0 {
		timeout = DefaultReadTimeout
	}
	if err := p.SetReadTimeout(timeout); err != nil {
		_ = p.Close()
		return nil, fmt.Errorf("failed to set read timeout on %s: %w", name, err)
	}

	return p, nil
}

// List returns the serial ports present on the system.
func List() ([]string, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("failed to list serial ports: %w", err)
	}
	return ports, nil
}

// IsTimeout reports whether err only signals an expired read timeout.
func IsTimeout(err error) bool {
	if errors.Is(err, ErrReadTimeout) || errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var te interface{ Timeout() bool }
	return errors.As(err, &te) && te.Timeout()
}
