package session

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"markestedt/clipshare/hotkey"
	"markestedt/clipshare/notify"
	"markestedt/clipshare/protocol"
	"markestedt/clipshare/serialport"
)

// HotkeySource arms a global hotkey. The returned channel delivers one value
// per activation and is closed once the hotkey has been released after ctx
// is cancelled.
type HotkeySource interface {
	Listen(ctx context.Context, d hotkey.Descriptor) (<-chan struct{}, error)
}

// SenderConfig is the immutable configuration of a Sender.
type SenderConfig struct {
	Port          string
	Baud          int
	Delay         time.Duration // pause between activation and clipboard capture
	Hotkey        hotkey.Descriptor
	Notifications bool
	PreviewChars  int
	StopTimeout   time.Duration
}

// Deps are the collaborators shared by both session kinds. Nil Notifier,
// Logger and Observer are replaced with no-ops.
type Deps struct {
	Opener    serialport.Opener
	Clipboard Clipboard
	Hotkeys   HotkeySource
	Notifier  notify.Notifier
	Logger    *slog.Logger
	Observer  Observer
}

func (d Deps) withDefaults() Deps {
	if d.Opener == nil {
		d.Opener = serialport.System{}
	}
	if d.Notifier == nil {
		d.Notifier = notify.Nop{}
	}
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.Observer == nil {
		d.Observer = func(Event) {}
	}
	return d
}

// Sender captures the clipboard on each hotkey activation and writes it to
// the serial port as one frame.
type Sender struct {
	cfg  SenderConfig
	deps Deps

	notifications atomic.Bool
	previewChars  atomic.Int64
	state         atomic.Int32

	mu  sync.Mutex
	run *senderRun
}

// senderRun holds the resources of one Start..Stop cycle.
type senderRun struct {
	ctx        context.Context
	cancel     context.CancelFunc
	port       serialport.Port
	dispatched chan struct{}
	inflight   sync.WaitGroup

	// Frames from concurrent activations are written one at a time so their
	// bytes never interleave on the wire.
	writeMu sync.Mutex
}

// NewSender creates a stopped sender.
func NewSender(cfg SenderConfig, deps Deps) *Sender {
	if cfg.StopTimeout <= 0 {
		cfg.StopTimeout = 2 * time.Second
	}
	s := &Sender{cfg: cfg, deps: deps.withDefaults()}
	s.deps.Logger = s.deps.Logger.With("component", "sender")
	s.notifications.Store(cfg.Notifications)
	s.previewChars.Store(int64(normalizePreview(cfg.PreviewChars)))
	return s
}

// Start opens the port and arms the hotkey. It is a no-op when already
// running. On failure nothing stays acquired.
func (s *Sender) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.run != nil {
		return nil
	}
	s.state.Store(int32(StateStarting))

	port, err := s.deps.Opener.Open(s.cfg.Port, s.cfg.Baud)
	if err != nil {
		s.state.Store(int32(StateStopped))
		s.deps.Logger.Error("Failed to open port", "port", s.cfg.Port, "error", err)
		return fmt.Errorf("%w: %s: %w", ErrPortUnavailable, s.cfg.Port, err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	var activations <-chan struct{}
	if s.deps.Hotkeys != nil {
		activations, err = s.deps.Hotkeys.Listen(ctx, s.cfg.Hotkey)
		if err != nil {
			cancel()
			_ = port.Close()
			s.state.Store(int32(StateStopped))
			s.deps.Logger.Error("Failed to register hotkey", "hotkey", s.cfg.Hotkey.Label, "error", err)
			return fmt.Errorf("%w: %s: %w", ErrHotkeyUnavailable, s.cfg.Hotkey.Label, err)
		}
	}

	run := &senderRun{
		ctx:        ctx,
		cancel:     cancel,
		port:       port,
		dispatched: make(chan struct{}),
	}
	go s.dispatch(run, activations)

	s.run = run
	s.state.Store(int32(StateRunning))
	s.deps.Logger.Info("Sender started", "port", s.cfg.Port, "baud", s.cfg.Baud, "hotkey", s.cfg.Hotkey.Label)
	return nil
}

// Stop disarms the hotkey, waits for in-flight activations and closes the
// port. It is a no-op when already stopped.
func (s *Sender) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	run := s.run
	if run == nil {
		return
	}
	s.state.Store(int32(StateStopping))

	run.cancel()
	if !waitClosed(run.dispatched, s.cfg.StopTimeout) {
		s.deps.Logger.Warn("Hotkey listener did not release in time")
	}
	if !waitGroupTimeout(&run.inflight, s.cfg.StopTimeout) {
		s.deps.Logger.Warn("Activations still running at stop")
	}
	if err := run.port.Close(); err != nil {
		s.deps.Logger.Warn("Failed to close port", "port", s.cfg.Port, "error", err)
	}

	s.run = nil
	s.state.Store(int32(StateStopped))
	s.deps.Logger.Info("Sender stopped", "port", s.cfg.Port)
}

// Activate triggers one capture-and-send cycle as if the hotkey fired.
// It reports false when the sender is not running.
func (s *Sender) Activate() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.run == nil {
		return false
	}
	s.spawn(s.run)
	return true
}

// Started reports whether the sender is running.
func (s *Sender) Started() bool {
	return s.State() == StateRunning
}

// State returns the current lifecycle state.
func (s *Sender) State() State {
	return State(s.state.Load())
}

// Config returns the configuration the sender was built with.
func (s *Sender) Config() SenderConfig {
	return s.cfg
}

// Notifications reports whether notifications are shown.
func (s *Sender) Notifications() bool {
	return s.notifications.Load()
}

// SetNotifications toggles notifications on a running sender.
func (s *Sender) SetNotifications(enabled bool) {
	s.notifications.Store(enabled)
}

// PreviewChars returns the preview length used in notifications.
func (s *Sender) PreviewChars() int {
	return int(s.previewChars.Load())
}

// SetPreviewChars changes the preview length; values <= 0 reset to the
// default.
func (s *Sender) SetPreviewChars(n int) {
	s.previewChars.Store(int64(normalizePreview(n)))
}

// dispatch turns hotkey activations into independent handler goroutines.
func (s *Sender) dispatch(run *senderRun, activations <-chan struct{}) {
	defer close(run.dispatched)

	if activations == nil {
		<-run.ctx.Done()
		return
	}

	for {
		select {
		case _, ok := <-activations:
			if !ok {
				return
			}
			if run.ctx.Err() == nil {
				s.spawn(run)
			}
		case <-run.ctx.Done():
			// Wait for the source to release the hotkey so a restart can
			// register it again.
			for range activations {
			}
			return
		}
	}
}

func (s *Sender) spawn(run *senderRun) {
	run.inflight.Add(1)
	go func() {
		defer run.inflight.Done()
		s.handleActivation(run)
	}()
}

func (s *Sender) handleActivation(run *senderRun) {
	timer := time.NewTimer(s.cfg.Delay)
	select {
	case <-run.ctx.Done():
		timer.Stop()
		return
	case <-timer.C:
	}

	text, err := s.deps.Clipboard.Get()
	if err != nil {
		err = fmt.Errorf("%w: %w", ErrClipboardReadFailed, err)
		s.deps.Logger.Warn("Failed to read clipboard", "error", err)
		text = ""
	}

	if text == "" {
		s.deps.Logger.Info("Clipboard has no text, nothing to send")
		s.deps.Notifier.Show(s.Notifications(), "Nothing to send", "Clipboard has no text")
		s.emit(Event{Outcome: OutcomeNothingToSend, Err: err})
		return
	}

	frame := protocol.EncodeText(text)
	if err := run.write(frame); err != nil {
		if run.ctx.Err() != nil {
			return
		}
		err = fmt.Errorf("%w: %w", ErrTransmitFailed, err)
		s.deps.Logger.Error("Send failed", "port", s.cfg.Port, "error", err)
		s.deps.Notifier.Show(s.Notifications(), "Send failed", err.Error())
		s.emit(Event{Outcome: OutcomeFailed, Text: text, Bytes: len(text), Err: err})
		return
	}

	chars := utf8.RuneCountInString(text)
	s.deps.Logger.Info("Clipboard sent", "chars", chars, "frame_bytes", len(frame))
	s.deps.Notifier.Show(s.Notifications(), "Sent",
		fmt.Sprintf("%d chars → %s\n%s", chars, s.cfg.Port, notify.Preview(text, s.PreviewChars())))
	s.emit(Event{Outcome: OutcomeSent, Text: text, Bytes: len(text)})
}

func (s *Sender) emit(e Event) {
	e.Direction = DirectionSent
	e.Port = s.cfg.Port
	e.At = time.Now()
	s.deps.Observer(e)
}

func (r *senderRun) write(frame []byte) error {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	n, err := r.port.Write(frame)
	if err != nil {
		return err
	}
	if n < len(frame) {
		return io.ErrShortWrite
	}
	return nil
}
