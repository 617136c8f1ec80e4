package mesh

import (
	"encoding/json"
	"errors"
	"slices"
	"sync"
	"testing"
	"time"
)

// journal records side effects across fakes in the order they happen.
type journal struct {
	mu      sync.Mutex
	entries []string
}

func (j *journal) add(entry string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.entries = append(j.entries, entry)
}

func (j *journal) all() []string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return slices.Clone(j.entries)
}

type fakeSignaler struct {
	j       *journal
	mu      sync.Mutex
	signals map[string][]string
	joinErr error
}

func newFakeSignaler(j *journal) *fakeSignaler {
	return &fakeSignaler{j: j, signals: make(map[string][]string)}
}

func (s *fakeSignaler) JoinRoom(roomID string) error {
	if s.joinErr != nil {
		return s.joinErr
	}
	s.j.add("join-room " + roomID)
	return nil
}

func (s *fakeSignaler) LeaveRoom() error {
	s.j.add("leave-room")
	return nil
}

func (s *fakeSignaler) SendSignal(to string, payload json.RawMessage) error {
	s.mu.Lock()
	s.signals[to] = append(s.signals[to], string(payload))
	s.mu.Unlock()
	return nil
}

func (s *fakeSignaler) Close() error {
	s.j.add("signaler closed")
	return nil
}

func (s *fakeSignaler) sent(to string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.signals[to])
}

type fakeCapture struct {
	j       *journal
	mu      sync.Mutex
	enabled bool

	// held and release, when set, stall the next SetEnabled call.
	held    chan struct{}
	release chan struct{}
}

func (c *fakeCapture) SetEnabled(enabled bool) {
	c.mu.Lock()
	c.enabled = enabled
	held, release := c.held, c.release
	c.held, c.release = nil, nil
	c.mu.Unlock()

	if held != nil {
		close(held)
		<-release
	}
}

// stall makes the next SetEnabled block until release is closed. held is
// closed once the call has started.
func (c *fakeCapture) stall() (held, release chan struct{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.held = make(chan struct{})
	c.release = make(chan struct{})
	return c.held, c.release
}

func (c *fakeCapture) isEnabled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.enabled
}

func (c *fakeCapture) Close() error {
	c.j.add("capture closed")
	return nil
}

type fakeConn struct {
	j      *journal
	remote string
	role   Role
	cb     Callbacks

	mu      sync.Mutex
	signals []string
	closes  int
}

func (c *fakeConn) Signal(payload json.RawMessage) error {
	c.mu.Lock()
	c.signals = append(c.signals, string(payload))
	c.mu.Unlock()
	return nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	c.closes++
	c.mu.Unlock()
	c.j.add("conn closed " + c.remote)
	return nil
}

func (c *fakeConn) received() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.signals)
}

func (c *fakeConn) closeCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closes
}

type fakePlayback struct {
	j      *journal
	remote string

	mu     sync.Mutex
	volume float64
	closed bool
}

func (p *fakePlayback) SetVolume(v float64) {
	p.mu.Lock()
	p.volume = v
	p.mu.Unlock()
}

func (p *fakePlayback) Close() error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	p.j.add("playback closed " + p.remote)
	return nil
}

func (p *fakePlayback) state() (float64, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.volume, p.closed
}

type fakeMedia struct {
	j          *journal
	captureErr error

	mu      sync.Mutex
	capture *fakeCapture
	conns   []*fakeConn
}

func (m *fakeMedia) OpenCapture() (Capture, error) {
	if m.captureErr != nil {
		return nil, m.captureErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.capture = &fakeCapture{j: m.j}
	return m.capture, nil
}

func (m *fakeMedia) NewConn(remote string, role Role, cb Callbacks) (Conn, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := &fakeConn{j: m.j, remote: remote, role: role, cb: cb}
	m.conns = append(m.conns, c)
	return c, nil
}

func (m *fakeMedia) connsTo(remote string) []*fakeConn {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*fakeConn
	for _, c := range m.conns {
		if c.remote == remote {
			out = append(out, c)
		}
	}
	return out
}

func (m *fakeMedia) getCapture() *fakeCapture {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.capture
}

var errNoMic = errors.New("no microphone")

// eventually polls cond until it holds or the deadline passes.
func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}
