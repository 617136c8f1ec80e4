package ui

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"

	"github.com/cagdaskarabulut/yali-speak/internal/mesh"
)

// Palette
var (
	Accent  = lipgloss.Color("#F97316") // orange, the room's colour
	Live    = lipgloss.Color("#10B981")
	Caution = lipgloss.Color("#F59E0B")
	Alert   = lipgloss.Color("#EF4444")
	Dim     = lipgloss.Color("#6B7280")
	Ink     = lipgloss.Color("#F9FAFB")

	VolumeStart = "#FDBA74"
	VolumeEnd   = "#F97316"
)

// Room view
var (
	RoomTitleStyle = lipgloss.NewStyle().Bold(true).Foreground(Accent)
	DimStyle       = lipgloss.NewStyle().Foreground(Dim)
	HintStyle      = DimStyle.MarginTop(1)
	SpinnerStyle   = lipgloss.NewStyle().Foreground(Accent)

	micBadge        = lipgloss.NewStyle().Foreground(Ink).Padding(0, 1).Bold(true)
	LiveBadgeStyle  = micBadge.Background(Accent)
	MutedBadgeStyle = micBadge.Background(Alert)
)

// Member table
var (
	TableHeaderStyle = lipgloss.NewStyle().Bold(true).Foreground(Accent).Align(lipgloss.Center)
	TableRowStyle    = lipgloss.NewStyle().Padding(0, 1).Foreground(lipgloss.Color("255"))
	TableRowAltStyle = TableRowStyle.Foreground(lipgloss.Color("245"))
	SelfStyle        = lipgloss.NewStyle().Italic(true).Foreground(Accent)
)

// A member with no link yet is shown as waiting.
var (
	waitingStyle    = lipgloss.NewStyle().Foreground(Dim)
	linkStateStyles = map[mesh.State]lipgloss.Style{
		mesh.Negotiating: lipgloss.NewStyle().Foreground(Caution),
		mesh.Established: lipgloss.NewStyle().Foreground(Live).Bold(true),
	}
)

// LinkStateStyle returns the colour for a link in state s.
func LinkStateStyle(s mesh.State) lipgloss.Style {
	if st, ok := linkStateStyles[s]; ok {
		return st
	}
	return waitingStyle
}

const (
	IconSuccess = "✅"
	IconError   = "❌"
	IconWarning = "⚠️"
	IconInfo    = "ℹ️"
	IconRoom    = "🚪"
	IconPeer    = "👤"
	IconMic     = "🎙️"
	IconMuted   = "🔇"
	IconSpeaker = "🔊"
	IconLink    = "🔗"
	IconWaiting = "⏳"
)

// Output is where the Print helpers write.
var Output io.Writer = os.Stdout

// notice is one kind of one-line message printed outside the room view.
type notice struct {
	icon  string
	style lipgloss.Style
	// tint colours the text as well as the icon.
	tint bool
}

var (
	errorNotice   = notice{IconError, lipgloss.NewStyle().Foreground(Alert).Bold(true), true}
	warningNotice = notice{IconWarning, lipgloss.NewStyle().Foreground(Caution), true}
	successNotice = notice{IconSuccess, lipgloss.NewStyle().Foreground(Live).Bold(true), false}
	infoNotice    = notice{IconInfo, lipgloss.NewStyle(), false}
)

func (n notice) line(msg string) string {
	if n.tint {
		msg = n.style.Render(msg)
	}
	return n.style.Render(n.icon) + " " + msg
}

func (n notice) fprint(w io.Writer, msg string) {
	fmt.Fprintln(w, n.line(msg))
}

func PrintError(msg string)   { errorNotice.fprint(Output, msg) }
func PrintWarning(msg string) { warningNotice.fprint(Output, msg) }
func PrintSuccess(msg string) { successNotice.fprint(Output, msg) }
func PrintInfo(msg string)    { infoNotice.fprint(Output, msg) }

func PrintSuccessf(format string, args ...any) {
	PrintSuccess(fmt.Sprintf(format, args...))
}

func PrintInfof(format string, args ...any) {
	PrintInfo(fmt.Sprintf(format, args...))
}
