package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// StatusView is the payload of the status command.
type StatusView struct {
	Endpoint string `json:"endpoint" yaml:"endpoint"`
	LoggedIn bool   `json:"logged_in" yaml:"logged_in"`
	Wxid     string `json:"wxid,omitempty" yaml:"wxid,omitempty"`
	Name     string `json:"name,omitempty" yaml:"name,omitempty"`
	Mobile   string `json:"mobile,omitempty" yaml:"mobile,omitempty"`
	Home     string `json:"home,omitempty" yaml:"home,omitempty"`
	Contacts int    `json:"contacts" yaml:"contacts"`
	DBs      int    `json:"dbs" yaml:"dbs"`
}

// StatusModel shows the engine login state and account.
type StatusModel struct {
	data     *StatusView
	width    int
	quitting bool
}

// NewStatusModel creates a status model.
func NewStatusModel(data *StatusView) StatusModel {
	return StatusModel{data: data}
}

// Init implements tea.Model.
func (m StatusModel) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m StatusModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
	case tea.KeyMsg:
		if key.Matches(msg, keys.Quit) {
			m.quitting = true
			return m, tea.Quit
		}
	}
	return m, nil
}

// View implements tea.Model.
func (m StatusModel) View() string {
	if m.quitting {
		return ""
	}
	d := m.data

	var b strings.Builder
	b.WriteString(TitleStyle.Render("Engine Status"))
	b.WriteString("\n")

	state := "offline"
	if d.LoggedIn {
		state = "online"
	}
	rows := [][2]string{
		{"Endpoint", d.Endpoint},
		{"State", state},
		{"Wxid", d.Wxid},
		{"Name", d.Name},
		{"Mobile", d.Mobile},
		{"Home", d.Home},
	}
	for _, row := range rows {
		if row[1] == "" {
			continue
		}
		value := ValueStyle.Render(row[1])
		if row[0] == "State" {
			value = StateStyle(row[1]).Render(row[1])
		}
		fmt.Fprintf(&b, "%s %s\n", LabelStyle.Render(row[0]+":"), value)
	}

	boxes := lipgloss.JoinHorizontal(lipgloss.Top,
		statBox("Contacts", d.Contacts, highlightColor),
		statBox("Databases", d.DBs, primaryColor),
	)

	help := HelpStyle.Render("Press q or Ctrl+C to quit")
	return BoxStyle.Render(b.String()) + "\n" + boxes + "\n" + help
}

func statBox(label string, value int, color lipgloss.Color) string {
	valueStr := StatValueStyle.Foreground(color).Render(fmt.Sprintf("%d", value))
	content := lipgloss.JoinVertical(lipgloss.Center, valueStr, StatLabelStyle.Render(label))
	return StatBoxStyle.BorderForeground(color).Render(content)
}
