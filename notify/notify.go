// Package notify formats clipboard previews and delivers desktop
// notifications.
package notify

import (
	"log/slog"
	"strings"

	"github.com/gen2brain/beeep"
)

const ellipsis = "…"

// Notifier shows a titled message to the user. Implementations never fail
// the caller; delivery problems are logged and swallowed.
type Notifier interface {
	Show(enabled bool, title, message string)
}

// Nop discards every notification.
type Nop struct{}

func (Nop) Show(bool, string, string) {}

// Cue is an optional audible signal played alongside a notification.
type Cue interface {
	Play() error
}

// Desktop delivers notifications through the OS notification center.
type Desktop struct {
	appName string
	cue     Cue
	logger  *slog.Logger
	send    func(title, message string) error
}

// NewDesktop creates a desktop notifier. cue may be nil.
func NewDesktop(appName string, cue Cue, logger *slog.Logger) *Desktop {
	if logger == nil {
		logger = slog.Default()
	}
	return &Desktop{
		appName: appName,
		cue:     cue,
		logger:  logger,
		send: func(title, message string) error {
			return beeep.Notify(title, message, "")
		},
	}
}

// Show displays the notification when enabled is true.
func (d *Desktop) Show(enabled bool, title, message string) {
	if !enabled {
		return
	}

	if err := d.send(d.appName+" – "+title, message); err != nil {
		d.logger.Warn("Notification failed", "title", title, "error", err)
	}

	if d.cue != nil {
		go func() {
			if err := d.cue.Play(); err != nil {
				d.logger.Debug("Sound cue failed", "error", err)
			}
		}()
	}
}

// Preview collapses line breaks and tabs into spaces, trims the result and
// truncates it to maxChars characters followed by an ellipsis.
// maxChars must be positive; callers normalize it.
func Preview(text string, maxChars int) string {
	msg := strings.NewReplacer("\r\n", " ", "\n", " ", "\t", " ").Replace(text)
	msg = strings.TrimSpace(msg)

	runes := []rune(msg)
	if len(runes) <= maxChars {
		return msg
	}
	return string(runes[:maxChars]) + ellipsis
}
