//go:build unix

package platform

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"markestedt/clipshare/hotkey"
)

// SignalHotkey stands in for a global hotkey on desktops without a
// registration API. Bind the key in the window manager to
// `pkill -USR1 clipshare`.
type SignalHotkey struct {
	Signal os.Signal
}

// NewHotkey returns a listener triggered by SIGUSR1.
func NewHotkey() Hotkey {
	return &SignalHotkey{Signal: syscall.SIGUSR1}
}

// Listen delivers one activation per received signal. The descriptor is
// accepted for interface parity and only used by the window manager binding.
func (h *SignalHotkey) Listen(ctx context.Context, _ hotkey.Descriptor) (<-chan struct{}, error) {
	sigCh := make(chan os.Signal, 4)
	signal.Notify(sigCh, h.Signal)

	events := make(chan struct{}, 8)
	go func() {
		defer close(events)
		defer signal.Stop(sigCh)
		for {
			select {
			case <-ctx.Done():
				return
			case <-sigCh:
				select {
				case events <- struct{}{}:
				default:
				}
			}
		}
	}()
	return events, nil
}
