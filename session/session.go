// Package session runs the sender and receiver sides of a serial clipboard
// link.
//
// A session owns exactly one serial port while it runs. Start and Stop are
// idempotent and serialized per session; failures after Start are reported
// through the logger, the notifier and the observer, never returned.
package session

import (
	"errors"
	"sync"
	"time"
)

// Error taxonomy. Only ErrPortUnavailable and ErrHotkeyUnavailable are
// returned to callers (from Start); the rest are reported in Events.
var (
	ErrPortUnavailable      = errors.New("serial port unavailable")
	ErrHotkeyUnavailable    = errors.New("hotkey unavailable")
	ErrTransmitFailed       = errors.New("transmit failed")
	ErrReceiveFailed        = errors.New("receive failed")
	ErrClipboardReadFailed  = errors.New("clipboard read failed")
	ErrClipboardWriteFailed = errors.New("clipboard write failed")
)

// State is the lifecycle state of a session.
type State int32

const (
	StateStopped State = iota
	StateStarting
	StateRunning
	StateStopping
)

func (s State) String() string {
	switch s {
	case StateStopped:
		return "Stopped"
	case StateStarting:
		return "Starting"
	case StateRunning:
		return "Running"
	case StateStopping:
		return "Stopping"
	default:
		return "Unknown"
	}
}

// Direction tells whether an event came from the sender or the receiver.
type Direction string

const (
	DirectionSent     Direction = "sent"
	DirectionReceived Direction = "received"
)

// Outcome classifies one activation or one decoded frame.
type Outcome string

const (
	OutcomeSent          Outcome = "sent"
	OutcomeNothingToSend Outcome = "nothing_to_send"
	OutcomeReceived      Outcome = "received"
	OutcomeFailed        Outcome = "failed"
)

// Event describes one transfer attempt.
type Event struct {
	Direction Direction
	Outcome   Outcome
	Port      string
	Text      string
	Bytes     int // UTF-8 payload length
	Err       error
	At        time.Time
}

// Observer receives events. It is called from session goroutines and must
// not block for long.
type Observer func(Event)

// ClipboardReader reads the current clipboard text.
type ClipboardReader interface {
	Get() (string, error)
}

// ClipboardWriter replaces the clipboard text.
type ClipboardWriter interface {
	Set(text string) error
}

const defaultPreviewChars = 100

func normalizePreview(n int) int {
	if n <= 0 {
		return defaultPreviewChars
	}
	return n
}

// Clipboard is the two-operation clipboard capability the sessions use.
type Clipboard interface {
	ClipboardReader
	ClipboardWriter
}

func waitGroupTimeout(wg *sync.WaitGroup, d time.Duration) bool {
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	return waitClosed(done, d)
}

func waitClosed(ch <-chan struct{}, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ch:
		return true
	case <-timer.C:
		return false
	}
}
