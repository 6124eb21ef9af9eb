package tui

import (
	"fmt"
	"slices"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// View types with an interactive rendering.
const (
	ViewStatus  = "status"
	ViewMembers = "members"
)

// Run starts the TUI for viewType.
func Run(viewType string, data any) error {
	model, err := newModel(viewType, data)
	if err != nil {
		return err
	}
	_, err = tea.NewProgram(model, tea.WithAltScreen()).Run()
	return err
}

// RenderStatic renders the view once without starting a program.
func RenderStatic(viewType string, data any) (string, error) {
	model, err := newModel(viewType, data)
	if err != nil {
		return "", err
	}
	return lipgloss.NewStyle().Padding(1, 2).Render(model.View()), nil
}

// IsTUISupported reports whether viewType has an interactive rendering.
func IsTUISupported(viewType string) bool {
	return slices.Contains(SupportedTUIViews(), viewType)
}

// SupportedTUIViews returns the view types that support TUI.
func SupportedTUIViews() []string {
	return []string{ViewStatus, ViewMembers}
}

func newModel(viewType string, data any) (tea.Model, error) {
	switch viewType {
	case ViewStatus:
		s, ok := data.(*StatusView)
		if !ok {
			return nil, fmt.Errorf("status view needs *StatusView, got %T", data)
		}
		return NewStatusModel(s), nil
	case ViewMembers:
		m, ok := data.(*MembersView)
		if !ok {
			return nil, fmt.Errorf("members view needs *MembersView, got %T", data)
		}
		return NewMembersModel(m), nil
	default:
		return nil, fmt.Errorf("TUI mode is not supported for %s", viewType)
	}
}
