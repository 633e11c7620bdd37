//go:build unix

package platform

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"time"
)

// ErrNoClipboardTool is returned when no supported clipboard command is
// installed.
var ErrNoClipboardTool = errors.New("no clipboard tool found (install wl-clipboard or xclip)")

// CommandClipboard shells out to clipboard tools such as wl-copy or xclip.
type CommandClipboard struct {
	GetArgv []string
	SetArgv []string
	Timeout time.Duration
}

// NewClipboard picks clipboard commands for the running desktop session.
func NewClipboard() Clipboard {
	get, set := detectClipboardArgv(os.Getenv, exec.LookPath)
	return &CommandClipboard{GetArgv: get, SetArgv: set, Timeout: 2 * time.Second}
}

func detectClipboardArgv(getenv func(string) string, lookPath func(string) (string, error)) ([]string, []string) {
	has := func(name string) bool {
		_, err := lookPath(name)
		return err == nil
	}

	switch {
	case runtime.GOOS == "darwin" && has("pbcopy"):
		return []string{"pbpaste"}, []string{"pbcopy"}
	case getenv("WAYLAND_DISPLAY") != "" && has("wl-copy"):
		return []string{"wl-paste", "--no-newline", "--type", "text"}, []string{"wl-copy", "--type", "text/plain;charset=utf-8"}
	case has("xclip"):
		return []string{"xclip", "-selection", "clipboard", "-o"}, []string{"xclip", "-selection", "clipboard", "-i"}
	case has("xsel"):
		return []string{"xsel", "--clipboard", "--output"}, []string{"xsel", "--clipboard", "--input"}
	}
	return nil, nil
}

// Get returns the clipboard text.
func (c *CommandClipboard) Get() (string, error) {
	if len(c.GetArgv) == 0 {
		return "", ErrNoClipboardTool
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.timeout())
	defer cancel()

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, c.GetArgv[0], c.GetArgv[1:]...)
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("run %s: %w: %s", c.GetArgv[0], err, bytes.TrimSpace(stderr.Bytes()))
	}
	return string(out), nil
}

// Set replaces the clipboard text.
func (c *CommandClipboard) Set(text string) error {
	if len(c.SetArgv) == 0 {
		return ErrNoClipboardTool
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.timeout())
	defer cancel()

	cmd := exec.CommandContext(ctx, c.SetArgv[0], c.SetArgv[1:]...)
	cmd.Stdin = bytes.NewBufferString(text)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("run %s: %w: %s", c.SetArgv[0], err, bytes.TrimSpace(out))
	}
	return nil
}

func (c *CommandClipboard) timeout() time.Duration {
	if c.Timeout <= 0 {
		return 2 * time.Second
	}
	return c.Timeout
}
