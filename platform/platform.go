// Package platform provides clipboard and global hotkey access for the host
// desktop.
package platform

import (
	"context"

	"markestedt/clipshare/hotkey"
)

// Hotkey provides global hotkey detection. The returned channel receives one
// value per activation and is closed after the hotkey has been released
// following ctx cancellation.
type Hotkey interface {
	Listen(ctx context.Context, d hotkey.Descriptor) (<-chan struct{}, error)
}

// Clipboard provides clipboard access
type Clipboard interface {
	Get() (string, error)
	Set(text string) error
}
