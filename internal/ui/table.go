package ui

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	prettytable "github.com/jedib0t/go-pretty/v6/table"

	"github.com/cagdaskarabulut/yali-speak/internal/mesh"
	"github.com/cagdaskarabulut/yali-speak/internal/signaling"
)

// RoomsTable renders the server's active rooms.
func RoomsTable(rooms []signaling.RoomInfo) string {
	if len(rooms) == 0 {
		return DimStyle.Render("No active rooms")
	}

	t := prettytable.NewWriter()
	t.SetStyle(prettytable.StyleRounded)
	t.AppendHeader(prettytable.Row{"#", "Room", "Members"})

	total := 0
	for i, r := range rooms {
		t.AppendRow(prettytable.Row{i + 1, r.ID, r.Members})
		total += r.Members
	}
	t.AppendFooter(prettytable.Row{"", "Total", total})
	return t.Render()
}

func RenderRoomsTable(w io.Writer, rooms []signaling.RoomInfo) {
	fmt.Fprintln(w, RoomsTable(rooms))
}

// MembersTable lists everyone in the room with the state of our link to
// them.
func MembersTable(st mesh.Status) string {
	rows := make([][]string, 0, len(st.Members))
	for _, id := range st.Members {
		if id == st.SelfID {
			rows = append(rows, []string{IconPeer + " " + SelfStyle.Render(shortID(id)), SelfStyle.Render("you"), ""})
			continue
		}
		role, state := "", waitingStyle.Render(IconWaiting + " waiting")
		if l, ok := st.Link(id); ok {
			role = l.Role.String()
			state = linkState(l.State)
		}
		rows = append(rows, []string{IconPeer + " " + shortID(id), role, state})
	}

	return table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(Accent)).
		Headers("Participant", "Role", "Link").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return TableHeaderStyle
			case row%2 == 0:
				return TableRowStyle
			default:
				return TableRowAltStyle
			}
		}).
		Render()
}

func linkState(s mesh.State) string {
	icon := IconLink
	if s == mesh.Established {
		icon = IconSpeaker
	}
	return LinkStateStyle(s).Render(icon + " " + s.String())
}

// shortID trims long generated ids for display.
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
