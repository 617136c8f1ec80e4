package signalclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/cagdaskarabulut/yali-speak/internal/config"
	"github.com/cagdaskarabulut/yali-speak/internal/protocol"
	"github.com/cagdaskarabulut/yali-speak/internal/server"
	"github.com/cagdaskarabulut/yali-speak/internal/signaling"
)

// recorder is a Receiver that turns every call into a line on a channel.
type recorder struct {
	events chan string
	closed chan error
}

func newRecorder() *recorder {
	return &recorder{events: make(chan string, 64), closed: make(chan error, 1)}
}

func (r *recorder) Welcome(id string)        { r.events <- "welcome " + id }
func (r *recorder) UsersInRoom(ids []string) { r.events <- "users " + strings.Join(ids, ",") }
func (r *recorder) UserJoined(id string)     { r.events <- "joined " + id }
func (r *recorder) UserLeft(id string)       { r.events <- "left " + id }
func (r *recorder) ReceiveSignal(from string, payload json.RawMessage) {
	r.events <- fmt.Sprintf("signal %s %s", from, payload)
}
func (r *recorder) RelayClosed(err error) { r.closed <- err }

func (r *recorder) next(t *testing.T) string {
	t.Helper()
	select {
	case ev := <-r.events:
		return ev
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for event")
		return ""
	}
}

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	hub := signaling.NewHub(nil, nil)
	ts := httptest.NewServer(server.NewMux(hub, &config.ServerConfig{SendBuffer: 64}, nil))
	t.Cleanup(ts.Close)
	return ts
}

func wsURL(ts *httptest.Server) string {
	return "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
}

type participant struct {
	client *Client
	rec    *recorder
	id     string
}

func connect(t *testing.T, ts *httptest.Server, codec protocol.Codec) *participant {
	t.Helper()
	c := NewClient(wsURL(ts), codec, nil)
	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(func() { c.Close() })

	rec := newRecorder()
	go NewHandler(c, rec).Start()

	ev := rec.next(t)
	if !strings.HasPrefix(ev, "welcome ") {
		t.Fatalf("expected welcome, got %q", ev)
	}
	return &participant{client: c, rec: rec, id: strings.TrimPrefix(ev, "welcome ")}
}

func TestClientRoomLifecycle(t *testing.T) {
	ts := newServer(t)

	alice := connect(t, ts, protocol.JSON)
	bob := connect(t, ts, protocol.Msgpack)

	if bob.client.Codec() != protocol.Msgpack {
		t.Fatalf("expected msgpack to be negotiated, got %s", bob.client.Codec().Name())
	}

	if err := alice.client.JoinRoom("r1"); err != nil {
		t.Fatalf("join: %v", err)
	}
	if ev := alice.rec.next(t); ev != "users "+alice.id {
		t.Fatalf("alice: unexpected %q", ev)
	}

	if err := bob.client.JoinRoom("r1"); err != nil {
		t.Fatalf("join: %v", err)
	}
	both := "users " + alice.id + "," + bob.id
	got := []string{alice.rec.next(t), alice.rec.next(t)}
	if want := []string{both, "joined " + bob.id}; !reflect.DeepEqual(got, want) {
		t.Fatalf("alice: got %q, want %q", got, want)
	}
	if ev := bob.rec.next(t); ev != both {
		t.Fatalf("bob: unexpected %q", ev)
	}

	if err := alice.client.SendSignal(bob.id, json.RawMessage(`{"type":"offer"}`)); err != nil {
		t.Fatalf("signal: %v", err)
	}
	if ev := bob.rec.next(t); ev != "signal "+alice.id+` {"type":"offer"}` {
		t.Fatalf("bob: unexpected %q", ev)
	}

	if err := bob.client.LeaveRoom(); err != nil {
		t.Fatalf("leave: %v", err)
	}
	got = []string{alice.rec.next(t), alice.rec.next(t)}
	if want := []string{"users " + alice.id, "left " + bob.id}; !reflect.DeepEqual(got, want) {
		t.Fatalf("alice: got %q, want %q", got, want)
	}
}

func TestCloseFlushesLeave(t *testing.T) {
	ts := newServer(t)

	alice := connect(t, ts, protocol.JSON)
	bob := connect(t, ts, protocol.JSON)

	alice.client.JoinRoom("r1")
	alice.rec.next(t)
	bob.client.JoinRoom("r1")
	alice.rec.next(t)
	alice.rec.next(t)
	bob.rec.next(t)

	bob.client.LeaveRoom()
	bob.client.Close()

	got := []string{alice.rec.next(t), alice.rec.next(t)}
	if want := []string{"users " + alice.id, "left " + bob.id}; !reflect.DeepEqual(got, want) {
		t.Fatalf("alice: got %q, want %q", got, want)
	}

	select {
	case err := <-bob.rec.closed:
		if err != nil {
			t.Errorf("expected nil error after local close, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("RelayClosed was not called")
	}

	if err := bob.client.SendSignal(alice.id, json.RawMessage(`{}`)); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}
	if err := bob.client.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
}

func TestRelayClosedOnServerDrop(t *testing.T) {
	upgrader := websocket.Upgrader{Subprotocols: protocol.Subprotocols}
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		conn.WriteJSON(protocol.Welcome("p1"))
		conn.Close()
	}))
	defer ts.Close()

	alice := connect(t, ts, protocol.JSON)
	if alice.id != "p1" {
		t.Fatalf("unexpected id %q", alice.id)
	}

	select {
	case err := <-alice.rec.closed:
		if err == nil {
			t.Error("expected a connection error")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("RelayClosed was not called")
	}
}

func TestSendBeforeConnect(t *testing.T) {
	c := NewClient("ws://127.0.0.1:1/ws", nil, nil)
	if err := c.JoinRoom("r1"); !errors.Is(err, ErrNotConnected) {
		t.Errorf("expected ErrNotConnected, got %v", err)
	}
}

func TestConnectBadURL(t *testing.T) {
	c := NewClient("://bad", nil, nil)
	if err := c.Connect(context.Background()); err == nil {
		t.Error("expected error for invalid URL")
	}
}
