package ui

import (
	"bytes"
	"errors"
	"strings"
	"sync"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/cagdaskarabulut/yali-speak/internal/mesh"
	"github.com/cagdaskarabulut/yali-speak/internal/signaling"
)

type fakeController struct {
	mu      sync.Mutex
	status  mesh.Status
	muted   []bool
	volumes []float64
	leaves  int
	updates chan struct{}
	done    chan struct{}
	err     error
}

func newFakeController(st mesh.Status) *fakeController {
	return &fakeController{status: st, updates: make(chan struct{}, 1), done: make(chan struct{})}
}

func (f *fakeController) SetMuted(m bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.muted = append(f.muted, m)
}

func (f *fakeController) SetVolume(v float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.volumes = append(f.volumes, v)
}

func (f *fakeController) Snapshot() mesh.Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.status
}

func (f *fakeController) Updates() <-chan struct{} { return f.updates }
func (f *fakeController) Done() <-chan struct{}    { return f.done }
func (f *fakeController) Err() error               { return f.err }

func (f *fakeController) Leave() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.leaves++
	return nil
}

func key(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func twoMembers() mesh.Status {
	return mesh.Status{
		SelfID:  "alice",
		RoomID:  "r1",
		Joined:  true,
		Members: []string{"alice", "bob"},
		Links:   []mesh.LinkStatus{{Remote: "bob", Role: mesh.Initiator, State: mesh.Established}},
		Volume:  0.75,
	}
}

func TestRoomModelControls(t *testing.T) {
	ctrl := newFakeController(twoMembers())
	m := NewRoomModel(ctrl)

	m.Update(key("m"))
	m.Update(key("m"))
	m.Update(key("+"))
	m.Update(key("-"))
	m.Update(key("-"))

	if want := []bool{true, false}; len(ctrl.muted) != 2 || ctrl.muted[0] != want[0] || ctrl.muted[1] != want[1] {
		t.Errorf("mute calls = %v, want %v", ctrl.muted, want)
	}
	if len(ctrl.volumes) != 3 {
		t.Fatalf("volume calls = %v", ctrl.volumes)
	}
	for i, want := range []float64{0.80, 0.75, 0.70} {
		if diff := ctrl.volumes[i] - want; diff > 1e-9 || diff < -1e-9 {
			t.Errorf("volume call %d = %v, want %v", i, ctrl.volumes[i], want)
		}
	}
}

func TestRoomModelVolumeClamped(t *testing.T) {
	st := twoMembers()
	st.Volume = 1
	ctrl := newFakeController(st)
	m := NewRoomModel(ctrl)

	m.Update(key("+"))
	if ctrl.volumes[0] != 1 {
		t.Errorf("expected clamp at 1, got %v", ctrl.volumes[0])
	}
}

func TestRoomModelLeave(t *testing.T) {
	ctrl := newFakeController(twoMembers())
	m := NewRoomModel(ctrl)

	_, cmd := m.Update(key("q"))
	if cmd == nil {
		t.Fatal("expected a leave command")
	}
	msg := cmd()
	if ctrl.leaves != 1 {
		t.Errorf("expected Leave to be called once, got %d", ctrl.leaves)
	}

	// Keys are ignored while leaving.
	m.Update(key("m"))
	if len(ctrl.muted) != 0 {
		t.Error("mute toggled while leaving")
	}

	_, cmd = m.Update(msg)
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("expected quit after leave")
	}
	if m.Err() != nil {
		t.Errorf("unexpected error %v", m.Err())
	}
}

func TestRoomModelRelayLoss(t *testing.T) {
	ctrl := newFakeController(twoMembers())
	ctrl.err = mesh.ErrRelayClosed
	close(ctrl.done)
	m := NewRoomModel(ctrl)

	msg := m.waitForUpdate()()
	_, cmd := m.Update(msg)
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("expected quit on relay loss")
	}
	if !errors.Is(m.Err(), mesh.ErrRelayClosed) {
		t.Errorf("expected ErrRelayClosed, got %v", m.Err())
	}
}

func TestRoomModelStatusUpdate(t *testing.T) {
	st := twoMembers()
	st.Members = []string{"alice"}
	st.Links = nil
	ctrl := newFakeController(st)
	m := NewRoomModel(ctrl)

	if view := m.View(); !strings.Contains(view, "Waiting for others") {
		t.Errorf("expected waiting view, got:\n%s", view)
	}

	ctrl.status = twoMembers()
	ctrl.updates <- struct{}{}
	_, cmd := m.Update(m.waitForUpdate()())
	if cmd == nil {
		t.Error("expected the model to keep listening")
	}

	view := m.View()
	for _, want := range []string{"r1", "bob", "initiator", "established"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q:\n%s", want, view)
		}
	}
}

func TestRoomsTable(t *testing.T) {
	out := RoomsTable([]signaling.RoomInfo{{ID: "lobby", Members: 3}, {ID: "r1", Members: 2}})
	for _, want := range []string{"lobby", "r1", "Members", "Total", "5"} {
		if !strings.Contains(out, want) {
			t.Errorf("table missing %q:\n%s", want, out)
		}
	}

	if out := RoomsTable(nil); !strings.Contains(out, "No active rooms") {
		t.Errorf("unexpected empty table %q", out)
	}
}

func TestSpinnerStop(t *testing.T) {
	var buf bytes.Buffer
	s := NewWaitingSpinner("connecting")
	s.out = &buf
	s.Start()
	s.UpdateMessage("still connecting")
	s.Success("connected")
	s.Stop()

	if !strings.Contains(buf.String(), "connected") {
		t.Errorf("unexpected output %q", buf.String())
	}
}

func TestMembersTableMarksSelfAndWaiting(t *testing.T) {
	st := twoMembers()
	st.Members = append(st.Members, "carol")

	out := MembersTable(st)
	for _, want := range []string{"you", "established", "waiting", "carol"} {
		if !strings.Contains(out, want) {
			t.Errorf("members table missing %q:\n%s", want, out)
		}
	}
}

func TestPrintHelpers(t *testing.T) {
	var buf bytes.Buffer
	old := Output
	Output = &buf
	defer func() { Output = old }()

	PrintWarning("no capture file")
	PrintSuccessf("created room %s", "r1")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %q", buf.String())
	}
	if !strings.Contains(lines[0], IconWarning) || !strings.Contains(lines[0], "no capture file") {
		t.Errorf("unexpected warning line %q", lines[0])
	}
	if !strings.Contains(lines[1], IconSuccess) || !strings.Contains(lines[1], "created room r1") {
		t.Errorf("unexpected success line %q", lines[1])
	}
}
