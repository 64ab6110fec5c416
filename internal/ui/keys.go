package ui

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines the application shortcuts. Tree navigation keys live in
// the tree component's own key map.
type KeyMap struct {
	Monitor    key.Binding
	Unmonitor  key.Binding
	Tree       key.Binding
	Attributes key.Binding
	Monitored  key.Binding
	Info       key.Binding
	Clear      key.Binding
	Next       key.Binding
	Copy       key.Binding
	Refresh    key.Binding
	Help       key.Binding
	Escape     key.Binding
	Quit       key.Binding

	// Scrolling inside the attribute, monitored and info panes.
	ScrollUp   key.Binding
	ScrollDown key.Binding
}

// DefaultKeyMap returns the default keybindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Monitor: key.NewBinding(
			key.WithKeys("m"),
			key.WithHelp("m", "Monitor selected node"),
		),
		Unmonitor: key.NewBinding(
			key.WithKeys("u"),
			key.WithHelp("u", "Stop monitoring selected node"),
		),
		Tree: key.NewBinding(
			key.WithKeys("t"),
			key.WithHelp("t", "Focus address space tree"),
		),
		Attributes: key.NewBinding(
			key.WithKeys("a"),
			key.WithHelp("a", "Focus attributes"),
		),
		Monitored: key.NewBinding(
			key.WithKeys("o"),
			key.WithHelp("o", "Focus monitored items"),
		),
		Info: key.NewBinding(
			key.WithKeys("i"),
			key.WithHelp("i", "Focus info log"),
		),
		Clear: key.NewBinding(
			key.WithKeys("c"),
			key.WithHelp("c", "Clear info log"),
		),
		Next: key.NewBinding(
			key.WithKeys("tab"),
			key.WithHelp("Tab", "Next pane"),
		),
		Copy: key.NewBinding(
			key.WithKeys("y"),
			key.WithHelp("y", "Copy NodeId"),
		),
		Refresh: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "Reload tree"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "Toggle help"),
		),
		Escape: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("Esc", "Close help or exit"),
		),
		Quit: key.NewBinding(
			key.WithKeys("ctrl+c", "q"),
			key.WithHelp("q  Ctrl+C", "Exit"),
		),
		ScrollUp: key.NewBinding(
			key.WithKeys("up", "k"),
			key.WithHelp("↑/↓  j/k", "Scroll"),
		),
		ScrollDown: key.NewBinding(
			key.WithKeys("down", "j"),
			key.WithHelp("↑/↓  j/k", "Scroll"),
		),
	}
}
