// Package ui renders the terminal views: the live room, the rooms table,
// spinners and status lines.
package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/cagdaskarabulut/yali-speak/internal/mesh"
)

// VolumeStep is how much one key press changes the volume.
const VolumeStep = 0.05

// Controller is what the room view drives. *mesh.Coordinator satisfies it.
type Controller interface {
	SetMuted(muted bool)
	SetVolume(v float64)
	Snapshot() mesh.Status
	Updates() <-chan struct{}
	Done() <-chan struct{}
	Err() error
	Leave() error
}

type statusMsg mesh.Status

type endedMsg struct{ err error }

// RoomModel is the bubbletea model for an active room.
type RoomModel struct {
	ctrl     Controller
	status   mesh.Status
	spinner  spinner.Model
	volume   progress.Model
	quitting bool
	err      error
}

func NewRoomModel(ctrl Controller) *RoomModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = SpinnerStyle

	return &RoomModel{
		ctrl:    ctrl,
		status:  ctrl.Snapshot(),
		spinner: s,
		volume: progress.New(
			progress.WithGradient(VolumeStart, VolumeEnd),
			progress.WithWidth(20),
			progress.WithoutPercentage(),
		),
	}
}

// Err is why the room ended, nil after a normal leave.
func (m *RoomModel) Err() error {
	return m.err
}

func (m *RoomModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.waitForUpdate())
}

// waitForUpdate blocks until the coordinator changes or stops.
func (m *RoomModel) waitForUpdate() tea.Cmd {
	ctrl := m.ctrl
	return func() tea.Msg {
		select {
		case <-ctrl.Updates():
			return statusMsg(ctrl.Snapshot())
		case <-ctrl.Done():
			return endedMsg{err: ctrl.Err()}
		}
	}
}

func (m *RoomModel) leave() tea.Cmd {
	ctrl := m.ctrl
	return func() tea.Msg {
		if err := ctrl.Leave(); err != nil {
			return endedMsg{err: err}
		}
		return endedMsg{err: ctrl.Err()}
	}
}

func (m *RoomModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.quitting {
			return m, nil
		}
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			m.quitting = true
			return m, m.leave()
		case "m":
			m.status.Muted = !m.status.Muted
			m.ctrl.SetMuted(m.status.Muted)
		case "+", "=", "up":
			m.setVolume(m.status.Volume + VolumeStep)
		case "-", "_", "down":
			m.setVolume(m.status.Volume - VolumeStep)
		}
		return m, nil

	case statusMsg:
		m.status = mesh.Status(msg)
		return m, m.waitForUpdate()

	case endedMsg:
		m.err = msg.err
		m.quitting = true
		return m, tea.Quit

	case tea.WindowSizeMsg:
		m.volume.Width = max(10, min(30, msg.Width-40))
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *RoomModel) setVolume(v float64) {
	v = min(max(v, 0), 1)
	m.status.Volume = v
	m.ctrl.SetVolume(v)
}

func (m *RoomModel) View() string {
	var b strings.Builder

	st := m.status
	header := fmt.Sprintf("%s %s", IconRoom, RoomTitleStyle.Render(st.RoomID))
	if st.SelfID != "" {
		header += DimStyle.Render("  as " + shortID(st.SelfID))
	}
	b.WriteString(header + "\n\n")

	switch {
	case m.quitting:
		b.WriteString(DimStyle.Render("Leaving room...") + "\n")
		return b.String()
	case !st.Joined || len(st.Members) == 0:
		b.WriteString(m.spinner.View() + " Joining room...\n")
	case len(st.Members) == 1:
		b.WriteString(m.spinner.View() + " Waiting for others to join...\n")
	default:
		b.WriteString(MembersTable(st) + "\n")
	}

	mic := LiveBadgeStyle.Render(IconMic + " live")
	if st.Muted {
		mic = MutedBadgeStyle.Render(IconMuted + " muted")
	}
	b.WriteString(fmt.Sprintf("\n%s  %s %s %3.0f%%\n", mic, IconSpeaker, m.volume.ViewAs(st.Volume), st.Volume*100))

	b.WriteString(HintStyle.Render("m mute  +/- volume  q leave"))
	b.WriteString("\n")
	return b.String()
}

// RunRoom shows the room view until the user leaves or the connection
// drops.
func RunRoom(ctrl Controller) error {
	final, err := tea.NewProgram(NewRoomModel(ctrl)).Run()
	if err != nil {
		ctrl.Leave()
		return fmt.Errorf("room view: %w", err)
	}
	if rm, ok := final.(*RoomModel); ok {
		return rm.Err()
	}
	return nil
}
