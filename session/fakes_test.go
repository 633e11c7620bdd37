package session

import (
	"context"
	"errors"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"markestedt/clipshare/hotkey"
	"markestedt/clipshare/serialport"
)

type fakePort struct {
	incoming chan []byte
	readErrs chan error
	closed   chan struct{}
	once     sync.Once

	writeErr   error
	writeDelay time.Duration

	mu      sync.Mutex
	written [][]byte

	readers    atomic.Int32
	maxReaders atomic.Int32
	writers    atomic.Int32
	maxWriters atomic.Int32
}

func newFakePort() *fakePort {
	return &fakePort{
		incoming: make(chan []byte, 16),
		readErrs: make(chan error, 4),
		closed:   make(chan struct{}),
	}
}

func trackMax(cur, max *atomic.Int32) {
	n := cur.Add(1)
	for {
		m := max.Load()
		if n <= m || max.CompareAndSwap(m, n) {
			return
		}
	}
}

func (p *fakePort) Read(b []byte) (int, error) {
	trackMax(&p.readers, &p.maxReaders)
	defer p.readers.Add(-1)

	select {
	case chunk := <-p.incoming:
		return copy(b, chunk), nil
	case err := <-p.readErrs:
		return 0, err
	case <-p.closed:
		return 0, os.ErrClosed
	case <-time.After(20 * time.Millisecond):
		return 0, serialport.ErrReadTimeout
	}
}

func (p *fakePort) Write(b []byte) (int, error) {
	trackMax(&p.writers, &p.maxWriters)
	defer p.writers.Add(-1)

	if p.writeDelay > 0 {
		time.Sleep(p.writeDelay)
	}
	if p.writeErr != nil {
		return 0, p.writeErr
	}
	p.mu.Lock()
	p.written = append(p.written, append([]byte(nil), b...))
	p.mu.Unlock()
	return len(b), nil
}

func (p *fakePort) Close() error {
	p.once.Do(func() { close(p.closed) })
	return nil
}

func (p *fakePort) isClosed() bool {
	select {
	case <-p.closed:
		return true
	default:
		return false
	}
}

func (p *fakePort) writes() [][]byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([][]byte(nil), p.written...)
}

type fakeOpener struct {
	mu    sync.Mutex
	err   error
	ports []*fakePort
	setup func(*fakePort)
}

func (o *fakeOpener) Open(name string, baud int) (serialport.Port, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.err != nil {
		return nil, o.err
	}
	p := newFakePort()
	if o.setup != nil {
		o.setup(p)
	}
	o.ports = append(o.ports, p)
	return p, nil
}

func (o *fakeOpener) opened() []*fakePort {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]*fakePort(nil), o.ports...)
}

func (o *fakeOpener) last(t *testing.T) *fakePort {
	t.Helper()
	ports := o.opened()
	if len(ports) == 0 {
		t.Fatal("no port opened")
	}
	return ports[len(ports)-1]
}

type fakeClipboard struct {
	mu     sync.Mutex
	text   string
	getErr error
	setErr error
	sets   []string
}

func (c *fakeClipboard) Get() (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.text, c.getErr
}

func (c *fakeClipboard) Set(text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.setErr != nil {
		return c.setErr
	}
	c.text = text
	c.sets = append(c.sets, text)
	return nil
}

func (c *fakeClipboard) setFailure(err error) {
	c.mu.Lock()
	c.setErr = err
	c.mu.Unlock()
}

func (c *fakeClipboard) history() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.sets...)
}

type fakeHotkeys struct {
	mu      sync.Mutex
	err     error
	listens int
	current chan struct{}
}

func (h *fakeHotkeys) Listen(ctx context.Context, d hotkey.Descriptor) (<-chan struct{}, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.err != nil {
		return nil, h.err
	}
	h.listens++
	ch := make(chan struct{})
	h.current = ch
	go func() {
		<-ctx.Done()
		close(ch)
	}()
	return ch, nil
}

func (h *fakeHotkeys) fire(t *testing.T) {
	t.Helper()
	h.mu.Lock()
	ch := h.current
	h.mu.Unlock()
	if ch == nil {
		t.Fatal("hotkey not armed")
	}
	select {
	case ch <- struct{}{}:
	case <-time.After(time.Second):
		t.Fatal("hotkey activation not consumed")
	}
}

func (h *fakeHotkeys) listenCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.listens
}

type note struct {
	enabled bool
	title   string
	message string
}

type recordingNotifier struct {
	mu    sync.Mutex
	notes []note
}

func (n *recordingNotifier) Show(enabled bool, title, message string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notes = append(n.notes, note{enabled: enabled, title: title, message: message})
}

func (n *recordingNotifier) all() []note {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]note(nil), n.notes...)
}

type eventLog struct {
	mu     sync.Mutex
	events []Event
}

func (l *eventLog) observe(e Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, e)
}

func (l *eventLog) all() []Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Event(nil), l.events...)
}

func (l *eventLog) len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.events)
}

var errBoom = errors.New("boom")
