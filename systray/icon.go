package systray

import (
	_ "embed"
	"runtime"
)

var (
	//go:embed icon.ico
	iconICO []byte
	//go:embed icon.png
	iconPNG []byte
)

// Icon returns the tray icon in the format the host tray expects.
func Icon() []byte {
	if runtime.GOOS == "windows" {
		return iconICO
	}
	return iconPNG
}
