// Package systray shows the tray icon and menu that control the sessions.
package systray

import (
	"fmt"
	"log/slog"
	"os/exec"
	"runtime"
	"sync"

	"github.com/getlantern/systray"

	"markestedt/clipshare/config"
)

// Controller is the application surface the menu drives.
type Controller interface {
	StatusLine() string
	Mode() config.Mode
	SetMode(config.Mode) error

	SenderStarted() bool
	StartSender() error
	StopSender()
	SendNow() bool

	ReceiverStarted() bool
	StartReceiver() error
	StopReceiver()

	Notifications() bool
	SetNotifications(bool)

	ConfigPath() string
	Reload() error
	DashboardURL() string

	Shutdown()
}

// SystrayManager manages the system tray icon and menu
type SystrayManager struct {
	ctrl     Controller
	iconData []byte
	quit     chan struct{}

	mu    sync.Mutex
	ready bool
	items menuItems
}

type menuItems struct {
	status        *systray.MenuItem
	modeSender    *systray.MenuItem
	modeReceiver  *systray.MenuItem
	modeBoth      *systray.MenuItem
	sendNow       *systray.MenuItem
	startSender   *systray.MenuItem
	stopSender    *systray.MenuItem
	startReceiver *systray.MenuItem
	stopReceiver  *systray.MenuItem
	notifications *systray.MenuItem
	editConfig    *systray.MenuItem
	reloadConfig  *systray.MenuItem
	dashboard     *systray.MenuItem
	exit          *systray.MenuItem
}

// NewSystrayManager creates a new systray manager
func NewSystrayManager(ctrl Controller, iconData []byte) *SystrayManager {
	return &SystrayManager{
		ctrl:     ctrl,
		iconData: iconData,
		quit:     make(chan struct{}),
	}
}

// Run starts the system tray (blocking call). It must run on the main
// goroutine.
func (m *SystrayManager) Run() {
	systray.Run(m.onReady, m.onExit)
}

// Stop stops the system tray
func (m *SystrayManager) Stop() {
	systray.Quit()
}

// WaitForQuit returns a channel that will be closed when user clicks Exit
func (m *SystrayManager) WaitForQuit() <-chan struct{} {
	return m.quit
}

func (m *SystrayManager) onReady() {
	if len(m.iconData) > 0 {
		systray.SetIcon(m.iconData)
	}
	systray.SetTitle("ClipShare")
	systray.SetTooltip("ClipShare: Sender/Receiver over Serial")

	it := menuItems{}
	it.status = systray.AddMenuItem("Status: stopped", "")
	it.status.Disable()
	it.modeSender = systray.AddMenuItemCheckbox("Mode: Sender", "Send clipboard on hotkey", false)
	it.modeReceiver = systray.AddMenuItemCheckbox("Mode: Receiver", "Receive clipboard from the port", false)
	it.modeBoth = systray.AddMenuItemCheckbox("Mode: Both", "Send and receive", false)
	systray.AddSeparator()
	it.sendNow = systray.AddMenuItem("Send Clipboard Now", "Send the clipboard without the hotkey")
	it.startSender = systray.AddMenuItem("Start Sender", "")
	it.stopSender = systray.AddMenuItem("Stop Sender", "")
	it.startReceiver = systray.AddMenuItem("Start Receiver", "")
	it.stopReceiver = systray.AddMenuItem("Stop Receiver", "")
	systray.AddSeparator()
	it.notifications = systray.AddMenuItemCheckbox("Notifications", "Show desktop notifications", m.ctrl.Notifications())
	it.editConfig = systray.AddMenuItem("Edit Config…", "Open the configuration file")
	it.reloadConfig = systray.AddMenuItem("Reload Config", "Re-read the configuration file")
	it.dashboard = systray.AddMenuItem("Open Dashboard", "Open the transfer dashboard")
	if m.ctrl.DashboardURL() == "" {
		it.dashboard.Hide()
	}
	systray.AddSeparator()
	it.exit = systray.AddMenuItem("Exit", "Stop both sessions and exit")

	m.mu.Lock()
	m.items = it
	m.ready = true
	m.mu.Unlock()

	m.Refresh()
	go m.loop(it)
}

func (m *SystrayManager) loop(it menuItems) {
	for {
		select {
		case <-it.modeSender.ClickedCh:
			m.logErr("Failed to switch mode", m.ctrl.SetMode(config.ModeSender))
		case <-it.modeReceiver.ClickedCh:
			m.logErr("Failed to switch mode", m.ctrl.SetMode(config.ModeReceiver))
		case <-it.modeBoth.ClickedCh:
			m.logErr("Failed to switch mode", m.ctrl.SetMode(config.ModeBoth))
		case <-it.sendNow.ClickedCh:
			if !m.ctrl.SendNow() {
				slog.Warn("Sender is not running")
			}
		case <-it.startSender.ClickedCh:
			m.logErr("Start sender failed", m.ctrl.StartSender())
		case <-it.stopSender.ClickedCh:
			m.ctrl.StopSender()
		case <-it.startReceiver.ClickedCh:
			m.logErr("Start receiver failed", m.ctrl.StartReceiver())
		case <-it.stopReceiver.ClickedCh:
			m.ctrl.StopReceiver()
		case <-it.notifications.ClickedCh:
			m.ctrl.SetNotifications(!m.ctrl.Notifications())
		case <-it.editConfig.ClickedCh:
			m.open(m.ctrl.ConfigPath())
		case <-it.reloadConfig.ClickedCh:
			m.logErr("Reload config failed", m.ctrl.Reload())
		case <-it.dashboard.ClickedCh:
			if url := m.ctrl.DashboardURL(); url != "" {
				m.open(url)
			}
		case <-it.exit.ClickedCh:
			slog.Info("User requested exit from system tray")
			m.ctrl.Shutdown()
			close(m.quit)
			systray.Quit()
			return
		}
		m.Refresh()
	}
}

// Refresh re-renders the status line and check marks. It is safe to call
// from any goroutine and before the tray is ready.
func (m *SystrayManager) Refresh() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.ready {
		return
	}

	it := m.items
	it.status.SetTitle(m.ctrl.StatusLine())

	mode := m.ctrl.Mode()
	setChecked(it.modeSender, mode == config.ModeSender)
	setChecked(it.modeReceiver, mode == config.ModeReceiver)
	setChecked(it.modeBoth, mode == config.ModeBoth)
	setChecked(it.notifications, m.ctrl.Notifications())

	sending := m.ctrl.SenderStarted()
	setEnabled(it.sendNow, sending)
	setEnabled(it.startSender, !sending)
	setEnabled(it.stopSender, sending)

	receiving := m.ctrl.ReceiverStarted()
	setEnabled(it.startReceiver, !receiving)
	setEnabled(it.stopReceiver, receiving)

	if m.ctrl.DashboardURL() == "" {
		it.dashboard.Hide()
	} else {
		it.dashboard.Show()
	}
}

func (m *SystrayManager) onExit() {
	slog.Info("System tray exited")
}

func (m *SystrayManager) logErr(msg string, err error) {
	if err != nil {
		slog.Error(msg, "error", err)
	}
}

// open hands target (a file or URL) to the desktop's default handler.
func (m *SystrayManager) open(target string) {
	argv, err := OpenCommand(runtime.GOOS, target)
	if err != nil {
		slog.Error("Failed to open", "target", target, "error", err)
		return
	}

	slog.Info("Opening", "target", target)
	if err := exec.Command(argv[0], argv[1:]...).Start(); err != nil {
		slog.Error("Failed to open", "target", target, "error", err)
	}
}

// OpenCommand returns the argv that opens target with the default
// application on goos.
func OpenCommand(goos, target string) ([]string, error) {
	switch goos {
	case "windows":
		return []string{"rundll32", "url.dll,FileProtocolHandler", target}, nil
	case "darwin":
		return []string{"open", target}, nil
	case "linux", "freebsd", "openbsd", "netbsd":
		return []string{"xdg-open", target}, nil
	default:
		return nil, fmt.Errorf("unsupported platform %s", goos)
	}
}

func setChecked(item *systray.MenuItem, on bool) {
	if on {
		item.Check()
	} else {
		item.Uncheck()
	}
}

func setEnabled(item *systray.MenuItem, on bool) {
	if on {
		item.Enable()
	} else {
		item.Disable()
	}
}
