package tree

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
)

const (
	markerCollapsed = "► "
	markerExpanded  = "▼ "
	markerFetching  = "◌ "
)

// Styles controls how rows are painted.
type Styles struct {
	Collapsed       lipgloss.Style
	Expanded        lipgloss.Style
	Leaf            lipgloss.Style
	Fetching        lipgloss.Style
	Connector       lipgloss.Style
	Label           lipgloss.Style
	Selected        lipgloss.Style
	SelectedBlurred lipgloss.Style
}

// DefaultStyles returns the standard palette: green for expanded nodes with
// children, blue for expanded leaves.
func DefaultStyles() Styles {
	return Styles{
		Collapsed:       lipgloss.NewStyle().Foreground(lipgloss.Color("250")),
		Expanded:        lipgloss.NewStyle().Foreground(lipgloss.Color("2")),
		Leaf:            lipgloss.NewStyle().Foreground(lipgloss.Color("4")),
		Fetching:        lipgloss.NewStyle().Foreground(lipgloss.Color("220")),
		Connector:       lipgloss.NewStyle().Foreground(lipgloss.Color("240")),
		Label:           lipgloss.NewStyle().Foreground(lipgloss.Color("255")),
		Selected:        lipgloss.NewStyle().Background(lipgloss.Color("57")).Foreground(lipgloss.Color("255")).Bold(true),
		SelectedBlurred: lipgloss.NewStyle().Background(lipgloss.Color("240")).Foreground(lipgloss.Color("250")),
	}
}

// SetSize sets the viewport used by View and page movement.
func (t *Tree) SetSize(width, height int) {
	t.width = width
	t.height = height
	t.scrollToCursor()
}

// Line renders a row as plain text: prefix, connector, state marker, label.
func (t *Tree) Line(r Row) string {
	return r.Prefix + r.Connector + t.markerText(r.Node) + t.label(r.Node)
}

// View paints the visible window of rows.
func (t *Tree) View() string {
	if len(t.rows) == 0 {
		return ""
	}
	start, end := t.window()
	lines := make([]string, 0, end-start)
	for i := start; i < end; i++ {
		r := t.rows[i]
		if i == t.sel.Index {
			line := t.Line(r)
			if t.width > 0 {
				line = ansi.Truncate(line, t.width, "…")
			}
			style := t.styles.Selected
			if !t.focus {
				style = t.styles.SelectedBlurred
			}
			lines = append(lines, style.Render(line))
			continue
		}
		line := t.styles.Connector.Render(r.Prefix+r.Connector) +
			t.markerStyle(r.Node).Render(t.markerText(r.Node)) +
			t.styles.Label.Render(t.label(r.Node))
		if t.width > 0 {
			line = ansi.Truncate(line, t.width, "…")
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

func (t *Tree) markerText(n *Node) string {
	switch {
	case t.Fetching(n):
		return markerFetching
	case !n.Expanded:
		return markerCollapsed
	default:
		return markerExpanded
	}
}

func (t *Tree) markerStyle(n *Node) lipgloss.Style {
	switch {
	case t.Fetching(n):
		return t.styles.Fetching
	case !n.Expanded:
		return t.styles.Collapsed
	case n.IsLeaf():
		return t.styles.Leaf
	default:
		return t.styles.Expanded
	}
}

func (t *Tree) window() (int, int) {
	end := len(t.rows)
	start := t.offset
	if start > end {
		start = end
	}
	if t.height > 0 && start+t.height < end {
		end = start + t.height
	}
	return start, end
}

func (t *Tree) scrollToCursor() {
	if t.height <= 0 {
		t.offset = 0
		return
	}
	if t.sel.Index < t.offset {
		t.offset = t.sel.Index
	}
	if t.sel.Index >= t.offset+t.height {
		t.offset = t.sel.Index - t.height + 1
	}
	if maxOffset := len(t.rows) - t.height; t.offset > maxOffset {
		t.offset = maxOffset
	}
	if t.offset < 0 {
		t.offset = 0
	}
}

func (t *Tree) pageSize() int {
	if t.height > 1 {
		return t.height - 1
	}
	return 1
}
