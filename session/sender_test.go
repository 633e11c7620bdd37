package session

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"markestedt/clipshare/hotkey"
	"markestedt/clipshare/protocol"
)

type senderFixture struct {
	opener    *fakeOpener
	clipboard *fakeClipboard
	hotkeys   *fakeHotkeys
	notifier  *recordingNotifier
	events    *eventLog
	sender    *Sender
}

func newSenderFixture(t *testing.T, mutate func(*SenderConfig)) *senderFixture {
	t.Helper()
	f := &senderFixture{
		opener:    &fakeOpener{},
		clipboard: &fakeClipboard{},
		hotkeys:   &fakeHotkeys{},
		notifier:  &recordingNotifier{},
		events:    &eventLog{},
	}
	hk, err := hotkey.Parse("Ctrl+Shift+C")
	require.NoError(t, err)

	cfg := SenderConfig{
		Port:          "COM3",
		Baud:          115200,
		Delay:         time.Millisecond,
		Hotkey:        hk,
		Notifications: true,
		PreviewChars:  100,
		StopTimeout:   time.Second,
	}
	if mutate != nil {
		mutate(&cfg)
	}
	f.sender = NewSender(cfg, Deps{
		Opener:    f.opener,
		Clipboard: f.clipboard,
		Hotkeys:   f.hotkeys,
		Notifier:  f.notifier,
		Observer:  f.events.observe,
	})
	t.Cleanup(f.sender.Stop)
	return f
}

func (f *senderFixture) waitEvent(t *testing.T) Event {
	t.Helper()
	require.Eventually(t, func() bool { return f.events.len() > 0 }, time.Second, 5*time.Millisecond)
	return f.events.all()[0]
}

func TestSenderStartStopIdempotent(t *testing.T) {
	f := newSenderFixture(t, nil)

	require.NoError(t, f.sender.Start())
	require.NoError(t, f.sender.Start())
	require.True(t, f.sender.Started())
	require.Len(t, f.opener.opened(), 1)
	require.Equal(t, 1, f.hotkeys.listenCount())

	port := f.opener.last(t)
	f.sender.Stop()
	f.sender.Stop()
	require.False(t, f.sender.Started())
	require.Equal(t, StateStopped, f.sender.State())
	require.True(t, port.isClosed())
	require.False(t, f.sender.Activate())

	require.NoError(t, f.sender.Start())
	require.Len(t, f.opener.opened(), 2)
	require.Equal(t, 2, f.hotkeys.listenCount())
}

func TestSenderStopBeforeStartIsNoop(t *testing.T) {
	f := newSenderFixture(t, nil)

	f.sender.Stop()
	f.sender.Stop()
	require.Equal(t, StateStopped, f.sender.State())
	require.False(t, f.sender.Started())
	require.Empty(t, f.opener.opened())
	require.Zero(t, f.hotkeys.listenCount())
	require.False(t, f.sender.Activate())
	require.Zero(t, f.events.len())
}

func TestSenderStartPortUnavailable(t *testing.T) {
	f := newSenderFixture(t, nil)
	f.opener.err = errors.New("access denied")

	err := f.sender.Start()
	require.ErrorIs(t, err, ErrPortUnavailable)
	require.Contains(t, err.Error(), "COM3")
	require.Equal(t, StateStopped, f.sender.State())
	require.Zero(t, f.hotkeys.listenCount())
}

func TestSenderStartHotkeyUnavailableReleasesPort(t *testing.T) {
	f := newSenderFixture(t, nil)
	f.hotkeys.err = errors.New("already registered")

	err := f.sender.Start()
	require.ErrorIs(t, err, ErrHotkeyUnavailable)
	require.False(t, f.sender.Started())
	require.True(t, f.opener.last(t).isClosed())
}

func TestSenderHotkeySendsClipboardFrame(t *testing.T) {
	f := newSenderFixture(t, nil)
	f.clipboard.text = "hello"
	require.NoError(t, f.sender.Start())

	f.hotkeys.fire(t)

	ev := f.waitEvent(t)
	require.Equal(t, DirectionSent, ev.Direction)
	require.Equal(t, OutcomeSent, ev.Outcome)
	require.Equal(t, "COM3", ev.Port)
	require.Equal(t, 5, ev.Bytes)
	require.NoError(t, ev.Err)

	require.Equal(t, [][]byte{protocol.EncodeText("hello")}, f.opener.last(t).writes())
	require.Equal(t, []note{{enabled: true, title: "Sent", message: "5 chars → COM3\nhello"}}, f.notifier.all())
}

func TestSenderEmptyClipboardSendsNothing(t *testing.T) {
	f := newSenderFixture(t, nil)
	require.NoError(t, f.sender.Start())

	require.True(t, f.sender.Activate())

	ev := f.waitEvent(t)
	require.Equal(t, OutcomeNothingToSend, ev.Outcome)
	require.NoError(t, ev.Err)
	require.Empty(t, f.opener.last(t).writes())
	require.Equal(t, "Nothing to send", f.notifier.all()[0].title)
	require.True(t, f.sender.Started())
}

func TestSenderClipboardReadFailureIsNothingToSend(t *testing.T) {
	f := newSenderFixture(t, nil)
	f.clipboard.text = "ignored"
	f.clipboard.getErr = errBoom
	require.NoError(t, f.sender.Start())

	f.sender.Activate()

	ev := f.waitEvent(t)
	require.Equal(t, OutcomeNothingToSend, ev.Outcome)
	require.ErrorIs(t, ev.Err, ErrClipboardReadFailed)
	require.ErrorIs(t, ev.Err, errBoom)
	require.Empty(t, f.opener.last(t).writes())
}

func TestSenderWriteFailureKeepsRunning(t *testing.T) {
	f := newSenderFixture(t, nil)
	f.opener.setup = func(p *fakePort) { p.writeErr = errBoom }
	f.clipboard.text = "data"
	require.NoError(t, f.sender.Start())

	f.sender.Activate()

	ev := f.waitEvent(t)
	require.Equal(t, OutcomeFailed, ev.Outcome)
	require.ErrorIs(t, ev.Err, ErrTransmitFailed)
	require.True(t, f.sender.Started())
	require.Equal(t, "Send failed", f.notifier.all()[0].title)
}

func TestSenderConcurrentActivationsWriteWholeFrames(t *testing.T) {
	f := newSenderFixture(t, nil)
	f.opener.setup = func(p *fakePort) { p.writeDelay = 10 * time.Millisecond }
	f.clipboard.text = "same text"
	require.NoError(t, f.sender.Start())

	for range 5 {
		require.True(t, f.sender.Activate())
	}

	require.Eventually(t, func() bool { return f.events.len() == 5 }, 2*time.Second, 5*time.Millisecond)
	port := f.opener.last(t)
	require.EqualValues(t, 1, port.maxWriters.Load())

	frame := protocol.EncodeText("same text")
	for _, w := range port.writes() {
		require.Equal(t, frame, w)
	}
	require.Len(t, port.writes(), 5)
}

func TestSenderStopCancelsPendingActivation(t *testing.T) {
	f := newSenderFixture(t, func(cfg *SenderConfig) { cfg.Delay = time.Hour })
	f.clipboard.text = "never"
	require.NoError(t, f.sender.Start())
	f.sender.Activate()

	start := time.Now()
	f.sender.Stop()
	require.Less(t, time.Since(start), time.Second)

	require.Empty(t, f.opener.last(t).writes())
	require.Zero(t, f.events.len())
}

func TestSenderNotificationsToggle(t *testing.T) {
	f := newSenderFixture(t, func(cfg *SenderConfig) { cfg.Notifications = false })
	f.clipboard.text = "quiet"
	require.NoError(t, f.sender.Start())

	f.sender.Activate()
	f.waitEvent(t)
	require.False(t, f.notifier.all()[0].enabled)

	f.sender.SetNotifications(true)
	require.True(t, f.sender.Notifications())
}

func TestSenderPreviewChars(t *testing.T) {
	f := newSenderFixture(t, func(cfg *SenderConfig) { cfg.PreviewChars = 3 })
	f.clipboard.text = "abcdef\nghi"
	require.NoError(t, f.sender.Start())

	f.sender.Activate()
	f.waitEvent(t)
	require.Equal(t, "10 chars → COM3\nabc…", f.notifier.all()[0].message)

	f.sender.SetPreviewChars(0)
	require.Equal(t, 100, f.sender.PreviewChars())
}
