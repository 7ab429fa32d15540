package tui

import "github.com/charmbracelet/bubbles/key"

// keyMap holds the dashboard's bindings. It implements help.KeyMap.
type keyMap struct {
	Finish key.Binding
	Cancel key.Binding
	Quit   key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		Finish: key.NewBinding(
			key.WithKeys("f", "enter"),
			key.WithHelp("f/enter", "finish & save"),
		),
		Cancel: key.NewBinding(
			key.WithKeys("c", "esc"),
			key.WithHelp("c/esc", "discard"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Finish, k.Cancel, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{k.ShortHelp()}
}
