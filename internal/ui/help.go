package ui

import (
	"fmt"
	"strings"

	"uacommander/internal/tree"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/lipgloss"
)

const helpMaxWidth = 72

// helpSection is a titled group of bindings.
type helpSection struct {
	title    string
	bindings []key.Binding
}

func getHelpSections(keys KeyMap, treeKeys tree.KeyMap) []helpSection {
	return []helpSection{
		{title: "Address space tree", bindings: treeKeys.Bindings()},
		{title: "Nodes", bindings: []key.Binding{keys.Monitor, keys.Unmonitor, keys.Copy, keys.Refresh}},
		{title: "Panes", bindings: []key.Binding{
			keys.Tree, keys.Attributes, keys.Monitored, keys.Info, keys.Next, keys.ScrollUp, keys.Clear,
		}},
		{title: "Application", bindings: []key.Binding{keys.Help, keys.Escape, keys.Quit}},
	}
}

// helpMarkdown renders the sections as markdown tables.
func helpMarkdown(sections []helpSection) string {
	var b strings.Builder
	b.WriteString("# uacommander\n")
	for _, s := range sections {
		fmt.Fprintf(&b, "\n## %s\n\n| Key | Action |\n| --- | --- |\n", s.title)
		for _, binding := range s.bindings {
			h := binding.Help()
			fmt.Fprintf(&b, "| `%s` | %s |\n", strings.ReplaceAll(h.Key, "|", "\\|"), h.Desc)
		}
	}
	b.WriteString("\nPress `?` or `Esc` to close.\n")
	return b.String()
}

// renderHelpOverlay creates the centered help modal.
func (m *App) renderHelpOverlay() string {
	width := helpMaxWidth
	if m.width > 0 && m.width-8 < width {
		width = m.width - 8
	}
	if width < 20 {
		width = 20
	}
	render := buildMarkdownRenderer(m.outputFormat, width)
	body := render(helpMarkdown(getHelpSections(m.keys, m.tree.KeyMap())))
	box := styleHelpBox.Render(body)
	if m.width <= 0 || m.height <= 0 {
		return box
	}
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, box)
}
