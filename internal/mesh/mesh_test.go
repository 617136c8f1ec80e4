package mesh_test

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cagdaskarabulut/yali-speak/internal/config"
	"github.com/cagdaskarabulut/yali-speak/internal/mesh"
	"github.com/cagdaskarabulut/yali-speak/internal/protocol"
	"github.com/cagdaskarabulut/yali-speak/internal/server"
	"github.com/cagdaskarabulut/yali-speak/internal/signalclient"
	"github.com/cagdaskarabulut/yali-speak/internal/signaling"
)

// loopMedia completes a handshake in one round trip: the initiator sends
// an offer, the responder answers, and both sides then report a stream.
type loopMedia struct{}

type nopCapture struct{}

func (nopCapture) SetEnabled(bool) {}
func (nopCapture) Close() error    { return nil }

type nopPlayback struct{}

func (nopPlayback) SetVolume(float64) {}
func (nopPlayback) Close() error      { return nil }

func (loopMedia) OpenCapture() (mesh.Capture, error) { return nopCapture{}, nil }

func (loopMedia) NewConn(remote string, role mesh.Role, cb mesh.Callbacks) (mesh.Conn, error) {
	if role == mesh.Initiator {
		go cb.OnSignal(json.RawMessage(`{"type":"offer"}`))
	}
	return &loopConn{cb: cb}, nil
}

type loopConn struct {
	cb   mesh.Callbacks
	once sync.Once
}

func (c *loopConn) Signal(payload json.RawMessage) error {
	var msg struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(payload, &msg); err != nil {
		return err
	}
	if msg.Type == "offer" {
		c.cb.OnSignal(json.RawMessage(`{"type":"answer"}`))
	}
	c.once.Do(func() { c.cb.OnStream(nopPlayback{}) })
	return nil
}

func (c *loopConn) Close() error { return nil }

type member struct {
	coord *mesh.Coordinator
	id    string
}

func join(t *testing.T, url, room string) *member {
	t.Helper()
	client := signalclient.NewClient(url, protocol.JSON, nil)
	if err := client.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}
	coord := mesh.New(mesh.Options{Signaler: client, Media: loopMedia{}})
	t.Cleanup(func() { coord.Leave() })
	go signalclient.NewHandler(client, coord).Start()

	if err := coord.Join(context.Background(), room); err != nil {
		t.Fatalf("join: %v", err)
	}
	m := &member{coord: coord}
	waitUntil(t, "welcome", func() bool {
		m.id = coord.Snapshot().SelfID
		return m.id != ""
	})
	return m
}

func waitUntil(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func established(m *member, n int) bool {
	st := m.coord.Snapshot()
	if len(st.Links) != n {
		return false
	}
	for _, l := range st.Links {
		if l.State != mesh.Established {
			return false
		}
	}
	return true
}

func TestFullMeshOverRelay(t *testing.T) {
	hub := signaling.NewHub(nil, nil)
	ts := httptest.NewServer(server.NewMux(hub, &config.ServerConfig{SendBuffer: 64}, nil))
	defer ts.Close()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"

	var members []*member
	for i := range 3 {
		members = append(members, join(t, url, "r1"))
		waitUntil(t, "room to grow", func() bool {
			return len(hub.Registry.Members("r1")) == i+1
		})
	}

	for _, m := range members {
		waitUntil(t, "links to establish", func() bool { return established(m, 2) })
	}

	// Exactly one side of every pair initiated.
	for i, x := range members {
		for _, y := range members[i+1:] {
			xy, ok1 := x.coord.Snapshot().Link(y.id)
			yx, ok2 := y.coord.Snapshot().Link(x.id)
			if !ok1 || !ok2 {
				t.Fatalf("missing link between %s and %s", x.id, y.id)
			}
			if xy.Role == yx.Role {
				t.Errorf("both sides of %s/%s are %v", x.id, y.id, xy.Role)
			}
			// The earlier member learned of the later one through a
			// joined notice.
			if xy.Role != mesh.Initiator {
				t.Errorf("%s should initiate toward %s, got %v", x.id, y.id, xy.Role)
			}
		}
	}

	last := members[2]
	if err := last.coord.Leave(); err != nil {
		t.Fatalf("leave: %v", err)
	}
	for _, m := range members[:2] {
		waitUntil(t, "departed link to go away", func() bool {
			_, ok := m.coord.Snapshot().Link(last.id)
			return !ok && established(m, 1)
		})
	}
	waitUntil(t, "registry to drop the member", func() bool {
		return len(hub.Registry.Members("r1")) == 2
	})
}

func TestRelayLossEndsCoordinator(t *testing.T) {
	hub := signaling.NewHub(nil, nil)
	ts := httptest.NewServer(server.NewMux(hub, &config.ServerConfig{SendBuffer: 64}, nil))
	defer ts.Close()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"

	client := signalclient.NewClient(url, protocol.JSON, nil)
	if err := client.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}
	coord := mesh.New(mesh.Options{Signaler: client, Media: loopMedia{}})
	go signalclient.NewHandler(client, coord).Start()
	if err := coord.Join(context.Background(), "r1"); err != nil {
		t.Fatalf("join: %v", err)
	}

	// Closing the client underneath the coordinator looks like relay loss.
	client.Close()

	select {
	case <-coord.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("coordinator did not stop")
	}
	if err := coord.Err(); err == nil {
		t.Error("expected ErrRelayClosed")
	}
}
