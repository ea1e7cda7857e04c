package main

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Up      key.Binding
	Down    key.Binding
	Capture key.Binding
	Delete  key.Binding
	Left    key.Binding
	Right   key.Binding
	Choose  key.Binding
	Confirm key.Binding
	Cancel  key.Binding
	Quit    key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		Up:      key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
		Down:    key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
		Capture: key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "capture")),
		Delete:  key.NewBinding(key.WithKeys("d", "delete"), key.WithHelp("d", "delete")),
		Left:    key.NewBinding(key.WithKeys("left", "h", "shift+tab")),
		Right:   key.NewBinding(key.WithKeys("right", "l", "tab")),
		Choose:  key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "choose")),
		Confirm: key.NewBinding(key.WithKeys("y"), key.WithHelp("y", "delete")),
		Cancel:  key.NewBinding(key.WithKeys("esc", "n"), key.WithHelp("esc/n", "cancel")),
		Quit:    key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

// gallery keys, shown while no prompt is open
type galleryKeys keyMap

func (k galleryKeys) ShortHelp() []key.Binding {
	return []key.Binding{k.Up, k.Down, k.Capture, k.Delete, k.Quit}
}

func (k galleryKeys) FullHelp() [][]key.Binding {
	return [][]key.Binding{k.ShortHelp()}
}

type promptKeys keyMap

func (k promptKeys) ShortHelp() []key.Binding {
	return []key.Binding{k.Choose, k.Confirm, k.Cancel}
}

func (k promptKeys) FullHelp() [][]key.Binding {
	return [][]key.Binding{k.ShortHelp()}
}
