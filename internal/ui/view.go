package ui

import (
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// geometry holds the outer sizes of the panes, borders included.
type geometry struct {
	treeW, rightW  int
	bodyH          int
	attrsH, monH   int
	infoH          int
	headerH, footH int
}

func (m *App) geometry() geometry {
	g := geometry{headerH: 1, footH: 1}
	g.infoH = clampDimension(m.height/4, minPaneHeight+2, 12)
	g.bodyH = m.height - g.headerH - g.footH - g.infoH
	if g.bodyH < 2*(minPaneHeight+2) {
		g.bodyH = 2 * (minPaneHeight + 2)
	}
	g.treeW = clampDimension(m.width*55/100, minTreeWidth, m.width-minTreeWidth)
	g.rightW = m.width - g.treeW
	g.attrsH = g.bodyH * 3 / 5
	g.monH = g.bodyH - g.attrsH
	return g
}

// layout resizes every pane to the current window.
func (m *App) layout() {
	g := m.geometry()
	m.tree.SetSize(innerWidth(g.treeW), innerHeight(g.bodyH))
	m.attrs.SetSize(innerWidth(g.rightW), innerHeight(g.attrsH))
	m.monitored.SetSize(innerWidth(g.rightW), innerHeight(g.monH))
	m.info.SetSize(innerWidth(m.width), innerHeight(g.infoH))
}

// innerWidth is the content width of a bordered pane.
func innerWidth(outer int) int { return max(outer-2, 1) }

// innerHeight is the content height of a bordered pane below its title.
func innerHeight(outer int) int { return max(outer-3, 1) }

func clampDimension(v, lo, hi int) int {
	if hi < lo {
		hi = lo
	}
	return min(max(v, lo), hi)
}

// treeMouse converts a mouse event inside the tree pane into tree
// coordinates.
func (m *App) treeMouse(msg tea.MouseMsg) (tea.MouseMsg, bool) {
	g := m.geometry()
	top := g.headerH + 2
	if msg.X < 1 || msg.X > g.treeW-2 || msg.Y < top || msg.Y >= g.headerH+g.bodyH-1 {
		return msg, false
	}
	msg.Y -= top
	msg.X--
	return msg, true
}

func (m *App) View() string {
	if !m.ready {
		return "Loading..."
	}
	if m.showHelp {
		return m.renderHelpOverlay()
	}
	g := m.geometry()

	header := styleAppHeader.Render("uacommander")
	if m.version != "" {
		header += styleHeaderInfo.Render(" " + m.version + " ")
	}
	if pad := m.width - lipgloss.Width(header); pad > 0 {
		header += styleHeaderInfo.Render(strings.Repeat(" ", pad))
	}

	treePane := m.renderPane(paneTree, "Address Space", m.tree.View(), g.treeW, g.bodyH)
	attrsPane := m.renderPane(paneAttributes, "Attributes", m.attrs.View(), g.rightW, g.attrsH)
	monPane := m.renderPane(paneMonitored, "Monitored Items", m.monitored.View(), g.rightW, g.monH)
	infoPane := m.renderPane(paneInfo, "Info", m.info.View(), m.width, g.infoH)

	body := lipgloss.JoinHorizontal(lipgloss.Top, treePane, lipgloss.JoinVertical(lipgloss.Left, attrsPane, monPane))
	return lipgloss.JoinVertical(lipgloss.Left, header, body, infoPane, m.renderFooter())
}

// renderPane draws a bordered pane with a title line. width and height are
// outer sizes.
func (m *App) renderPane(p pane, title, content string, width, height int) string {
	style := stylePane
	if m.focus == p {
		style = stylePaneFocused
	}
	inner := innerHeight(height)
	lines := strings.Split(content, "\n")
	if len(lines) > inner {
		lines = lines[:inner]
	}
	body := stylePaneTitle.Render(title) + "\n" + strings.Join(lines, "\n")
	return style.
		Width(innerWidth(width)).
		Height(inner + 1).
		MaxHeight(height).
		Render(body)
}
