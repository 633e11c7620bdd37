package session

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"markestedt/clipshare/notify"
	"markestedt/clipshare/protocol"
	"markestedt/clipshare/serialport"
)

// ReceiverConfig is the immutable configuration of a Receiver.
type ReceiverConfig struct {
	Port           string
	Baud           int
	Notifications  bool
	PreviewChars   int
	ReadBufferSize int
	Backoff        time.Duration // pause after a failed read
	JoinTimeout    time.Duration // how long Stop waits for the read loop
}

// Receiver reads frames from the serial port and places each decoded text
// on the clipboard.
type Receiver struct {
	cfg  ReceiverConfig
	deps Deps

	notifications atomic.Bool
	previewChars  atomic.Int64
	state         atomic.Int32

	mu  sync.Mutex
	run *receiverRun
}

type receiverRun struct {
	port   serialport.Port
	stop   chan struct{}
	exited chan struct{}
}

func (r *receiverRun) stopping() bool {
	select {
	case <-r.stop:
		return true
	default:
		return false
	}
}

// NewReceiver creates a stopped receiver.
func NewReceiver(cfg ReceiverConfig, deps Deps) *Receiver {
	if cfg.ReadBufferSize <= 0 {
		cfg.ReadBufferSize = 4096
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = 300 * time.Millisecond
	}
	if cfg.JoinTimeout <= 0 {
		cfg.JoinTimeout = time.Second
	}
	r := &Receiver{cfg: cfg, deps: deps.withDefaults()}
	r.deps.Logger = r.deps.Logger.With("component", "receiver")
	r.notifications.Store(cfg.Notifications)
	r.previewChars.Store(int64(normalizePreview(cfg.PreviewChars)))
	return r
}

// Start opens the port and launches the read loop. It is a no-op when
// already running.
func (r *Receiver) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.run != nil {
		return nil
	}
	r.state.Store(int32(StateStarting))

	port, err := r.deps.Opener.Open(r.cfg.Port, r.cfg.Baud)
	if err != nil {
		r.state.Store(int32(StateStopped))
		r.deps.Logger.Error("Failed to open port", "port", r.cfg.Port, "error", err)
		return fmt.Errorf("%w: %s: %w", ErrPortUnavailable, r.cfg.Port, err)
	}

	run := &receiverRun{
		port:   port,
		stop:   make(chan struct{}),
		exited: make(chan struct{}),
	}
	go r.readLoop(run)

	r.run = run
	r.state.Store(int32(StateRunning))
	r.deps.Logger.Info("Receiver started", "port", r.cfg.Port, "baud", r.cfg.Baud)
	return nil
}

// Stop signals the read loop, closes the port to unblock it and waits a
// bounded time for it to exit. It is a no-op when already stopped.
func (r *Receiver) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()

	run := r.run
	if run == nil {
		return
	}
	r.state.Store(int32(StateStopping))

	close(run.stop)
	if err := run.port.Close(); err != nil {
		r.deps.Logger.Warn("Failed to close port", "port", r.cfg.Port, "error", err)
	}
	if !waitClosed(run.exited, r.cfg.JoinTimeout) {
		r.deps.Logger.Warn("Read loop did not exit in time", "port", r.cfg.Port)
	}

	r.run = nil
	r.state.Store(int32(StateStopped))
	r.deps.Logger.Info("Receiver stopped", "port", r.cfg.Port)
}

// Started reports whether the receiver is running.
func (r *Receiver) Started() bool {
	return r.State() == StateRunning
}

// State returns the current lifecycle state.
func (r *Receiver) State() State {
	return State(r.state.Load())
}

// Config returns the configuration the receiver was built with.
func (r *Receiver) Config() ReceiverConfig {
	return r.cfg
}

// Notifications reports whether notifications are shown.
func (r *Receiver) Notifications() bool {
	return r.notifications.Load()
}

// SetNotifications toggles notifications on a running receiver.
func (r *Receiver) SetNotifications(enabled bool) {
	r.notifications.Store(enabled)
}

// PreviewChars returns the preview length used in notifications.
func (r *Receiver) PreviewChars() int {
	return int(r.previewChars.Load())
}

// SetPreviewChars changes the preview length; values <= 0 reset to the
// default.
func (r *Receiver) SetPreviewChars(n int) {
	r.previewChars.Store(int64(normalizePreview(n)))
}

func (r *Receiver) readLoop(run *receiverRun) {
	defer close(run.exited)

	decoder := protocol.NewFrameDecoder()
	buf := make([]byte, r.cfg.ReadBufferSize)

	for !run.stopping() {
		n, err := run.port.Read(buf)
		if n > 0 {
			decoder.Feed(buf[:n])
			for _, text := range decoder.TakeAll() {
				r.deliver(text)
			}
		}

		if err == nil || serialport.IsTimeout(err) {
			continue
		}
		if run.stopping() {
			return
		}

		err = fmt.Errorf("%w: %w", ErrReceiveFailed, err)
		r.deps.Logger.Error("Receive failed", "port", r.cfg.Port, "error", err)
		r.deps.Notifier.Show(r.Notifications(), "Receive failed", err.Error())
		r.emit(Event{Outcome: OutcomeFailed, Err: err})

		if !r.backoff(run) {
			return
		}
	}
}

// backoff pauses after a read error. It returns false if stop was requested
// meanwhile.
func (r *Receiver) backoff(run *receiverRun) bool {
	timer := time.NewTimer(r.cfg.Backoff)
	defer timer.Stop()
	select {
	case <-run.stop:
		return false
	case <-timer.C:
		return true
	}
}

func (r *Receiver) deliver(text string) {
	if err := r.deps.Clipboard.Set(text); err != nil {
		err = fmt.Errorf("%w: %w", ErrClipboardWriteFailed, err)
		r.deps.Logger.Error("Failed to set clipboard", "error", err)
		r.deps.Notifier.Show(r.Notifications(), "Clipboard failed", err.Error())
		r.emit(Event{Outcome: OutcomeFailed, Text: text, Bytes: len(text), Err: err})
		return
	}

	chars := utf8.RuneCountInString(text)
	r.deps.Logger.Info("Clipboard received", "chars", chars)
	r.deps.Notifier.Show(r.Notifications(), "Received",
		fmt.Sprintf("%d chars ← %s\n%s", chars, r.cfg.Port, notify.Preview(text, r.PreviewChars())))
	r.emit(Event{Outcome: OutcomeReceived, Text: text, Bytes: len(text)})
}

func (r *Receiver) emit(e Event) {
	e.Direction = DirectionReceived
	e.Port = r.cfg.Port
	e.At = time.Now()
	r.deps.Observer(e)
}
