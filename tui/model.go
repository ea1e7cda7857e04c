package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mhbvr/shutter"
	"github.com/mhbvr/shutter/controller"
)

// refreshMsg asks the model to re-read the controller's photos
type refreshMsg struct{}

// Model is the root BubbleTea model
type Model struct {
	ctrl    *controller.Controller
	styles  Styles
	keys    keyMap
	help    help.Model
	refresh time.Duration

	photos []shutter.Record
	cursor int

	prompt      controller.Prompt
	prompting   bool
	optionFocus int

	status string
	err    error

	width    int
	quitting bool
}

func NewModel(ctrl *controller.Controller, refresh time.Duration) Model {
	return Model{
		ctrl:    ctrl,
		styles:  DefaultStyles(),
		keys:    defaultKeyMap(),
		help:    help.New(),
		refresh: refresh,
		photos:  ctrl.Photos(),
	}
}

func (m Model) tick() tea.Cmd {
	return tea.Tick(m.refresh, func(time.Time) tea.Msg { return refreshMsg{} })
}

func (m Model) Init() tea.Cmd {
	return m.tick()
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.help.Width = msg.Width

	case refreshMsg:
		m.sync()
		return m, m.tick()

	case tea.KeyMsg:
		if key.Matches(msg, m.keys.Quit) {
			m.quitting = true
			return m, tea.Quit
		}
		if m.prompting {
			m.handlePromptKey(msg)
		} else {
			m.handleGalleryKey(msg)
		}
		m.sync()
	}
	return m, nil
}

// sync pulls the latest photos and prompt state from the controller.
func (m *Model) sync() {
	m.photos = m.ctrl.Photos()
	m.cursor = min(m.cursor, max(len(m.photos)-1, 0))

	p, ok := m.ctrl.Prompt()
	if ok != m.prompting {
		m.optionFocus = 0
	}
	m.prompt, m.prompting = p, ok
}

func (m *Model) handleGalleryKey(msg tea.KeyMsg) {
	switch {
	case key.Matches(msg, m.keys.Up):
		if m.cursor > 0 {
			m.cursor--
		}
	case key.Matches(msg, m.keys.Down):
		if m.cursor < len(m.photos)-1 {
			m.cursor++
		}
	case key.Matches(msg, m.keys.Capture):
		m.ctrl.Capture()
		m.status, m.err = "capturing...", nil
	case key.Matches(msg, m.keys.Delete):
		if len(m.photos) == 0 {
			return
		}
		rec := m.photos[m.cursor]
		if rec.State == shutter.Pending {
			m.err = errors.New("photo is still being captured")
			return
		}
		m.ctrl.RequestDelete(rec, m.cursor)
		m.status, m.err = "", nil
	}
}

func (m *Model) handlePromptKey(msg tea.KeyMsg) {
	n := len(m.prompt.Options)
	switch {
	case key.Matches(msg, m.keys.Left):
		m.optionFocus = (m.optionFocus + n - 1) % n
	case key.Matches(msg, m.keys.Right):
		m.optionFocus = (m.optionFocus + 1) % n
	case key.Matches(msg, m.keys.Choose):
		m.choose(m.prompt.Options[m.optionFocus].Text)
	case key.Matches(msg, m.keys.Confirm):
		m.choose(controller.OptionDelete)
	case key.Matches(msg, m.keys.Cancel):
		m.choose(controller.OptionCancel)
	}
}

func (m *Model) choose(option string) {
	if err := m.ctrl.Choose(option); err != nil {
		m.err = err
		return
	}
	m.err = nil
	if option == controller.OptionDelete {
		m.status = fmt.Sprintf("deleting %s", m.prompt.Record.FilePath)
	} else {
		m.status = ""
	}
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString(m.styles.Title.Render(fmt.Sprintf("%s (%d)", controller.PromptHeader, len(m.photos))))
	b.WriteString("\n\n")

	if len(m.photos) == 0 {
		b.WriteString(m.styles.Muted.Render("No photos yet. Press c to take one."))
		b.WriteString("\n")
	}
	for i, r := range m.photos {
		b.WriteString(m.row(i, r))
		b.WriteString("\n")
	}

	if m.prompting {
		b.WriteString("\n")
		b.WriteString(m.sheet())
		b.WriteString("\n")
	}

	b.WriteString("\n")
	switch {
	case m.err != nil:
		b.WriteString(m.styles.Error.Render(m.err.Error()))
		b.WriteString("\n")
	case m.status != "":
		b.WriteString(m.styles.Muted.Render(m.status))
		b.WriteString("\n")
	}

	if m.prompting {
		b.WriteString(m.help.View(promptKeys(m.keys)))
	} else {
		b.WriteString(m.help.View(galleryKeys(m.keys)))
	}
	return b.String()
}

func (m Model) row(i int, r shutter.Record) string {
	marker := "  "
	style := m.styles.Row
	if i == m.cursor {
		marker = "> "
		style = m.styles.Selected
	}

	name := r.FilePath
	if r.State == shutter.Pending {
		name = m.styles.Pending.Render(shutter.PendingPath)
	}
	return style.Render(fmt.Sprintf("%s%3d ", marker, i)) + name + "  " + m.styles.Muted.Render(abbreviate(r.DisplayPath, 48))
}

func (m Model) sheet() string {
	buttons := make([]string, 0, len(m.prompt.Options))
	for i, o := range m.prompt.Options {
		label := o.Text
		if icon, ok := icons[o.Icon]; ok {
			label = icon + " " + label
		}
		buttons = append(buttons, m.styles.option(o, i == m.optionFocus).Render(label))
	}

	return m.styles.Sheet.Render(lipgloss.JoinVertical(lipgloss.Left,
		m.styles.SheetHeader.Render(m.prompt.Header),
		m.styles.Muted.Render(m.prompt.Record.FilePath),
		"",
		lipgloss.JoinHorizontal(lipgloss.Top, buttons...),
	))
}

// abbreviate shortens long display paths such as inline data URIs.
func abbreviate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
