package main

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/mhbvr/shutter/controller"
)

// Styles holds the TUI styling definitions
type Styles struct {
	Title    lipgloss.Style
	Selected lipgloss.Style
	Row      lipgloss.Style
	Pending  lipgloss.Style
	Muted    lipgloss.Style
	Error    lipgloss.Style

	// Prompt sheet
	Sheet       lipgloss.Style
	SheetHeader lipgloss.Style
	Option      lipgloss.Style
	Destructive lipgloss.Style
	Focused     lipgloss.Style
}

func DefaultStyles() Styles {
	return NewStyles(lipgloss.DefaultRenderer())
}

func NewStyles(r *lipgloss.Renderer) Styles {
	return Styles{
		Title: r.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15")).
			Background(lipgloss.Color("62")).
			Padding(0, 1),
		Selected: r.NewStyle().Bold(true).Foreground(lipgloss.Color("212")),
		Row:      r.NewStyle(),
		Pending:  r.NewStyle().Italic(true).Foreground(lipgloss.Color("214")),
		Muted:    r.NewStyle().Foreground(lipgloss.Color("241")),
		Error:    r.NewStyle().Foreground(lipgloss.Color("196")),

		Sheet: r.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("62")).
			Padding(0, 2),
		SheetHeader: r.NewStyle().Bold(true),
		Option:      r.NewStyle().Padding(0, 1),
		Destructive: r.NewStyle().Padding(0, 1).Foreground(lipgloss.Color("196")),
		Focused:     r.NewStyle().Padding(0, 1).Reverse(true),
	}
}

func (s Styles) option(o controller.PromptOption, focused bool) lipgloss.Style {
	switch {
	case focused:
		return s.Focused
	case o.Role == controller.RoleDestructive:
		return s.Destructive
	default:
		return s.Option
	}
}

var icons = map[string]string{
	"trash": "🗑",
	"close": "✕",
}
