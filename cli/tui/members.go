package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
)

// defaultPageSize is the number of rows shown before a window size arrives.
const defaultPageSize = 20

// MemberRow is one room member.
type MemberRow struct {
	Wxid        string `json:"wxid" yaml:"wxid"`
	NickName    string `json:"nickname" yaml:"nickname"`
	Alias       string `json:"alias" yaml:"alias"`
	DisplayName string `json:"display_name" yaml:"display_name"`
}

// MembersView is the payload of the members command.
type MembersView struct {
	RoomID  string      `json:"room_id" yaml:"room_id"`
	Members []MemberRow `json:"members" yaml:"members"`
}

// MembersModel is a scrollable member list.
type MembersModel struct {
	data     *MembersView
	offset   int
	page     int
	quitting bool
}

// NewMembersModel creates a members model.
func NewMembersModel(data *MembersView) MembersModel {
	return MembersModel{data: data, page: defaultPageSize}
}

// Init implements tea.Model.
func (m MembersModel) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m MembersModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		// Title, header, box border and help take eight lines.
		m.page = max(msg.Height-8, 1)
		m.offset = min(m.offset, m.maxOffset())
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Quit):
			m.quitting = true
			return m, tea.Quit
		case key.Matches(msg, keys.Up):
			m.offset = max(m.offset-1, 0)
		case key.Matches(msg, keys.Down):
			m.offset = min(m.offset+1, m.maxOffset())
		}
	}
	return m, nil
}

func (m MembersModel) maxOffset() int {
	return max(len(m.data.Members)-m.page, 0)
}

// View implements tea.Model.
func (m MembersModel) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString(TitleStyle.Render(fmt.Sprintf("Members of %s (%d)", m.data.RoomID, len(m.data.Members))))
	b.WriteString("\n")

	if len(m.data.Members) == 0 {
		b.WriteString(WarningStyle.Render("(no members found)"))
	} else {
		fmt.Fprintf(&b, "%s %s %s\n",
			HeaderStyle.Render("WXID"), HeaderStyle.Render("NICKNAME"), HeaderStyle.Render("IN ROOM"))
		end := min(m.offset+m.page, len(m.data.Members))
		for _, row := range m.data.Members[m.offset:end] {
			fmt.Fprintf(&b, "%s %s %s\n",
				ColumnStyle.Render(truncate(row.Wxid, memberColumnWidth)),
				ColumnStyle.Render(truncate(row.NickName, memberColumnWidth)),
				ValueStyle.Render(row.DisplayName))
		}
	}

	help := HelpStyle.Render("↑/↓ scroll • q quit")
	return BoxStyle.Render(b.String()) + "\n" + help
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
