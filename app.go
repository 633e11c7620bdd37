package main

import (
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"strings"
	"sync"
	"time"

	"markestedt/clipshare/config"
	"markestedt/clipshare/hotkey"
	"markestedt/clipshare/notify"
	"markestedt/clipshare/serialport"
	"markestedt/clipshare/session"
	"markestedt/clipshare/storage"
	"markestedt/clipshare/web"
)

const fallbackHotkey = "Ctrl+C"

// TransferStore records finished transfers.
type TransferStore interface {
	SaveTransfer(t *storage.Transfer) error
}

// Broadcaster pushes live updates to dashboard clients.
type Broadcaster interface {
	BroadcastStatus(status web.Status)
	BroadcastTransfer(t *storage.Transfer)
}

// AppDeps are the platform collaborators handed to every session the app
// builds. History may be nil.
type AppDeps struct {
	Opener    serialport.Opener
	Clipboard session.Clipboard
	Hotkeys   session.HotkeySource
	Notifier  notify.Notifier
	Logger    *slog.Logger
	History   TransferStore
}

// App owns the current configuration and the sender and receiver built
// from it. A reload replaces both sessions with fresh instances.
type App struct {
	deps   AppDeps
	logger *slog.Logger

	mu       sync.Mutex
	cfg      *config.Config
	cfgPath  string
	hotkey   hotkey.Descriptor
	sender   *session.Sender
	receiver *session.Receiver

	// obsMu guards the fields touched from session goroutines. It is never
	// held together with mu.
	obsMu        sync.Mutex
	dashboard    Broadcaster
	dashboardURL string
	onChange     func()
}

// NewApp builds stopped sessions from cfg. cfgPath is where mode and
// notification changes are saved; empty disables saving.
func NewApp(cfg *config.Config, cfgPath string, deps AppDeps) *App {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	a := &App{
		deps:    deps,
		logger:  deps.Logger,
		cfgPath: cfgPath,
	}
	a.rebuild(cfg)
	return a
}

// SetDashboard attaches the live dashboard. b may be nil to detach it.
func (a *App) SetDashboard(b Broadcaster, url string) {
	a.obsMu.Lock()
	a.dashboard = b
	a.dashboardURL = url
	a.obsMu.Unlock()
}

// OnChange registers fn to run after every state change.
func (a *App) OnChange(fn func()) {
	a.obsMu.Lock()
	a.onChange = fn
	a.obsMu.Unlock()
}

// rebuild replaces the sessions. The caller holds mu and has stopped the
// previous sessions.
func (a *App) rebuild(cfg *config.Config) {
	desc, err := hotkey.ParseOrDefault(cfg.Hotkey, fallbackHotkey)
	if err != nil {
		a.logger.Warn("Invalid hotkey, using fallback", "hotkey", cfg.Hotkey, "fallback", fallbackHotkey, "error", err)
	}

	deps := session.Deps{
		Opener:    a.deps.Opener,
		Clipboard: a.deps.Clipboard,
		Hotkeys:   a.deps.Hotkeys,
		Notifier:  a.deps.Notifier,
		Logger:    a.logger,
		Observer:  a.observe,
	}

	a.cfg = cfg
	a.hotkey = desc
	a.sender = session.NewSender(session.SenderConfig{
		Port:          cfg.SendPort,
		Baud:          cfg.Baud,
		Delay:         cfg.Delay(),
		Hotkey:        desc,
		Notifications: cfg.Notifications,
		PreviewChars:  cfg.PreviewChars,
	}, deps)
	a.receiver = session.NewReceiver(session.ReceiverConfig{
		Port:          cfg.RecvPort,
		Baud:          cfg.Baud,
		Notifications: cfg.Notifications,
		PreviewChars:  cfg.PreviewChars,
	}, deps)
}

// Config returns a copy of the current configuration.
func (a *App) Config() *config.Config {
	a.mu.Lock()
	defer a.mu.Unlock()
	cfg := *a.cfg
	return &cfg
}

// ConfigPath is the file mode and notification changes are saved to.
func (a *App) ConfigPath() string {
	return a.cfgPath
}

// DashboardURL is empty when the dashboard is off.
func (a *App) DashboardURL() string {
	a.obsMu.Lock()
	defer a.obsMu.Unlock()
	return a.dashboardURL
}

// Mode returns the configured mode.
func (a *App) Mode() config.Mode {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.cfg.Mode
}

// ApplyMode starts the sessions the configured mode asks for. Sessions
// that fail to start are reported and the others still run.
func (a *App) ApplyMode() error {
	defer a.changed()
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.applyMode()
}

func (a *App) applyMode() error {
	mode := a.cfg.Mode
	if !mode.Valid() {
		a.logger.Warn("Unknown mode, no session started", "mode", mode)
		return nil
	}

	var errs []error
	if mode.Sends() {
		if err := a.sender.Start(); err != nil {
			a.logger.Error("Start sender failed", "error", err)
			errs = append(errs, fmt.Errorf("sender: %w", err))
		}
	}
	if mode.Receives() {
		if err := a.receiver.Start(); err != nil {
			a.logger.Error("Start receiver failed", "error", err)
			errs = append(errs, fmt.Errorf("receiver: %w", err))
		}
	}
	return errors.Join(errs...)
}

// SetMode saves mode and starts or stops sessions to match it.
func (a *App) SetMode(mode config.Mode) error {
	if !mode.Valid() {
		return fmt.Errorf("unknown mode %q", mode)
	}

	defer a.changed()
	a.mu.Lock()
	defer a.mu.Unlock()

	a.cfg.Mode = mode
	a.save()

	if !mode.Sends() {
		a.sender.Stop()
	}
	if !mode.Receives() {
		a.receiver.Stop()
	}
	return a.applyMode()
}

// StartSender starts the sender regardless of mode.
func (a *App) StartSender() error {
	defer a.changed()
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.sender.Start()
}

// StopSender stops the sender.
func (a *App) StopSender() {
	defer a.changed()
	a.mu.Lock()
	defer a.mu.Unlock()
	a.sender.Stop()
}

// SenderStarted reports whether the sender is running.
func (a *App) SenderStarted() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.sender.Started()
}

// SendNow triggers one activation as if the hotkey had been pressed.
func (a *App) SendNow() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.sender.Activate()
}

// StartReceiver starts the receiver regardless of mode.
func (a *App) StartReceiver() error {
	defer a.changed()
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.receiver.Start()
}

// StopReceiver stops the receiver.
func (a *App) StopReceiver() {
	defer a.changed()
	a.mu.Lock()
	defer a.mu.Unlock()
	a.receiver.Stop()
}

// ReceiverStarted reports whether the receiver is running.
func (a *App) ReceiverStarted() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.receiver.Started()
}

// Notifications reports the notification toggle.
func (a *App) Notifications() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.cfg.Notifications
}

// SetNotifications saves the toggle and applies it to both running
// sessions without restarting them.
func (a *App) SetNotifications(enabled bool) {
	defer a.changed()
	a.mu.Lock()
	defer a.mu.Unlock()

	a.cfg.Notifications = enabled
	a.sender.SetNotifications(enabled)
	a.receiver.SetNotifications(enabled)
	a.save()
}

// Reload re-reads the configuration file and restarts the sessions.
func (a *App) Reload() error {
	if a.cfgPath == "" {
		return errors.New("no config file")
	}
	cfg, err := config.LoadFrom(a.cfgPath)
	if err != nil {
		return err
	}

	defer a.changed()
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.reloadWith(cfg)
}

// ReloadIfChanged reloads only when the file differs from the running
// configuration, so the app's own saves don't restart the sessions.
func (a *App) ReloadIfChanged() error {
	if a.cfgPath == "" {
		return nil
	}
	cfg, err := config.LoadFrom(a.cfgPath)
	if err != nil {
		return err
	}

	a.mu.Lock()
	same := reflect.DeepEqual(*cfg, *a.cfg)
	a.mu.Unlock()
	if same {
		return nil
	}

	a.logger.Info("Config file changed, reloading", "path", a.cfgPath)
	defer a.changed()
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.reloadWith(cfg)
}

// ApplyConfig saves cfg and reloads from it.
func (a *App) ApplyConfig(cfg *config.Config) error {
	defer a.changed()
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.cfgPath != "" {
		if err := config.Save(a.cfgPath, cfg); err != nil {
			return err
		}
	}
	return a.reloadWith(cfg)
}

// reloadWith stops both sessions, rebuilds them from cfg and starts them
// again. A receiver that was started by hand survives the reload.
func (a *App) reloadWith(cfg *config.Config) error {
	wasReceiving := a.receiver.Started()
	a.sender.Stop()
	a.receiver.Stop()

	a.rebuild(cfg)
	a.logger.Info("Configuration reloaded", "mode", cfg.Mode, "send_port", cfg.SendPort, "recv_port", cfg.RecvPort, "hotkey", a.hotkey.Label)

	var errs []error
	if wasReceiving && !cfg.Mode.Receives() {
		if err := a.receiver.Start(); err != nil {
			errs = append(errs, fmt.Errorf("receiver: %w", err))
		}
	}
	if err := a.applyMode(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Shutdown stops both sessions.
func (a *App) Shutdown() {
	defer a.changed()
	a.mu.Lock()
	defer a.mu.Unlock()
	a.sender.Stop()
	a.receiver.Stop()
	a.logger.Info("Sessions stopped")
}

// StatusLine summarizes the running sessions for the tray.
func (a *App) StatusLine() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.statusLine()
}

func (a *App) statusLine() string {
	sending, receiving := a.sender.Started(), a.receiver.Started()
	if !sending && !receiving {
		return "stopped"
	}

	parts := []string{fmt.Sprintf("Mode: %s", a.cfg.Mode)}
	if sending {
		sc := a.sender.Config()
		parts = append(parts, fmt.Sprintf("Sender[%s@%d] HK:%s", sc.Port, sc.Baud, sc.Hotkey.Label))
	}
	if receiving {
		rc := a.receiver.Config()
		parts = append(parts, fmt.Sprintf("Receiver[%s@%d]", rc.Port, rc.Baud))
	}
	return strings.Join(parts, " | ")
}

// Status is the dashboard snapshot.
func (a *App) Status() web.Status {
	a.mu.Lock()
	defer a.mu.Unlock()

	sc, rc := a.sender.Config(), a.receiver.Config()
	return web.Status{
		Mode:          string(a.cfg.Mode),
		Line:          a.statusLine(),
		Notifications: a.cfg.Notifications,
		Sender: web.SessionStatus{
			Enabled: a.cfg.Mode.Sends(),
			Port:    sc.Port,
			Baud:    sc.Baud,
			State:   a.sender.State().String(),
			Hotkey:  sc.Hotkey.Label,
		},
		Receiver: web.SessionStatus{
			Enabled: a.cfg.Mode.Receives(),
			Port:    rc.Port,
			Baud:    rc.Baud,
			State:   a.receiver.State().String(),
		},
	}
}

// save writes the current configuration. The caller holds mu.
func (a *App) save() {
	if a.cfgPath == "" {
		return
	}
	if err := config.Save(a.cfgPath, a.cfg); err != nil {
		a.logger.Error("Failed to save config", "path", a.cfgPath, "error", err)
	}
}

// changed notifies the tray and the dashboard. It must run without mu held.
func (a *App) changed() {
	a.obsMu.Lock()
	fn, dash := a.onChange, a.dashboard
	a.obsMu.Unlock()

	if fn != nil {
		fn()
	}
	if dash != nil {
		dash.BroadcastStatus(a.Status())
	}
}

// observe records session events. Sessions call it from their own
// goroutines, possibly while Stop holds mu, so it never takes mu.
func (a *App) observe(e session.Event) {
	if e.Outcome == session.OutcomeNothingToSend {
		return
	}

	t := &storage.Transfer{
		Timestamp: e.At,
		Direction: string(e.Direction),
		Port:      e.Port,
		Chars:     len([]rune(e.Text)),
		Bytes:     e.Bytes,
		Preview:   notify.Preview(e.Text, config.DefaultPreviewChars),
		Success:   e.Err == nil,
	}
	if e.Err != nil {
		t.ErrorMessage = e.Err.Error()
	}
	if t.Timestamp.IsZero() {
		t.Timestamp = time.Now()
	}

	if a.deps.History != nil {
		if err := a.deps.History.SaveTransfer(t); err != nil {
			a.logger.Error("Failed to save transfer", "error", err)
		}
	}

	a.obsMu.Lock()
	dash := a.dashboard
	a.obsMu.Unlock()
	if dash != nil {
		dash.BroadcastTransfer(t)
	}
}
