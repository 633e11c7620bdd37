//go:build windows

package platform

import (
	"context"
	"fmt"
	"runtime"
	"sync/atomic"
	"unsafe"

	"golang.org/x/sys/windows"

	"markestedt/clipshare/hotkey"
)

var (
	registerHotKey    = user32.NewProc("RegisterHotKey")
	unregisterHotKey  = user32.NewProc("UnregisterHotKey")
	getMessage        = user32.NewProc("GetMessageW")
	postThreadMessage = user32.NewProc("PostThreadMessageW")
)

const (
	wmQuit   = 0x0012
	wmHotkey = 0x0312

	modAlt      = 0x0001
	modControl  = 0x0002
	modShift    = 0x0004
	modWin      = 0x0008
	modNoRepeat = 0x4000
)

type msg struct {
	hwnd    uintptr
	message uint32
	wParam  uintptr
	lParam  uintptr
	time    uint32
	pt      struct{ x, y int32 }
}

var nextHotkeyID atomic.Int32

// WindowsHotkey registers system-wide hotkeys with RegisterHotKey.
type WindowsHotkey struct{}

// NewHotkey creates a new Windows hotkey listener
func NewHotkey() Hotkey {
	return &WindowsHotkey{}
}

// Listen registers d on a dedicated OS thread and pumps its message queue
// until ctx is cancelled.
func (h *WindowsHotkey) Listen(ctx context.Context, d hotkey.Descriptor) (<-chan struct{}, error) {
	events := make(chan struct{}, 8)
	errCh := make(chan error, 1)

	go h.run(ctx, d, events, errCh)

	if err := <-errCh; err != nil {
		return nil, err
	}
	return events, nil
}

func (h *WindowsHotkey) run(ctx context.Context, d hotkey.Descriptor, events chan<- struct{}, errCh chan<- error) {
	// Hotkey messages are delivered to the registering thread.
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	id := uintptr(nextHotkeyID.Add(1))
	r, _, err := registerHotKey.Call(0, id, uintptr(nativeModifiers(d)), uintptr(d.Key))
	if r == 0 {
		errCh <- fmt.Errorf("RegisterHotKey %s failed: %w", d.Label, err)
		return
	}
	errCh <- nil

	tid := windows.GetCurrentThreadId()
	go func() {
		<-ctx.Done()
		postThreadMessage.Call(uintptr(tid), wmQuit, 0, 0)
	}()

	var m msg
	for {
		r, _, _ := getMessage.Call(uintptr(unsafe.Pointer(&m)), 0, 0, 0)
		if r == 0 || int32(r) == -1 {
			break
		}
		if m.message == wmHotkey && m.wParam == id {
			select {
			case events <- struct{}{}:
			default:
			}
		}
	}

	unregisterHotKey.Call(0, id)
	close(events)
}

func nativeModifiers(d hotkey.Descriptor) uint32 {
	mods := uint32(modNoRepeat)
	if d.Has(hotkey.ModAlt) {
		mods |= modAlt
	}
	if d.Has(hotkey.ModCtrl) {
		mods |= modControl
	}
	if d.Has(hotkey.ModShift) {
		mods |= modShift
	}
	if d.Has(hotkey.ModWin) {
		mods |= modWin
	}
	return mods
}
