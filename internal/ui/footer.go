package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// footerHint defines a key hint for the footer bar.
type footerHint struct {
	key  string
	desc string
}

// Global footer hints, in the order of the menu bar.
var globalFooterHints = []footerHint{
	{"m", "Monitor"},
	{"u", "Unmonitor"},
	{"t", "Tree"},
	{"a", "Attributes"},
	{"i", "Info"},
	{"c", "Clear"},
	{"⇥", "Next"},
	{"y", "Copy"},
	{"r", "Refresh"},
	{"?", "Help"},
	{"esc", "Exit"},
}

var treeFooterHints = []footerHint{
	{"↑↓", "Navigate"},
	{"←→", "Expand"},
}

var scrollFooterHints = []footerHint{
	{"↑↓", "Scroll"},
}

// renderFooter renders the footer bar with pill-style key hints and the
// busy or copy status on the right.
func (m *App) renderFooter() string {
	var hints []footerHint
	if m.focus == paneTree {
		hints = append(hints, treeFooterHints...)
	} else {
		hints = append(hints, scrollFooterHints...)
	}
	hints = append(hints, globalFooterHints...)

	status := m.footerStatus()
	statusWidth := lipgloss.Width(status)
	hints = trimHintsToFit(hints, m.width-statusWidth-2)

	var parts []string
	for _, h := range hints {
		parts = append(parts, keyPill(h.key, h.desc))
	}
	left := strings.Join(parts, "  ")

	spacing := m.width - lipgloss.Width(left) - statusWidth
	if spacing < 2 {
		spacing = 2
	}
	return left + strings.Repeat(" ", spacing) + status
}

func (m *App) footerStatus() string {
	switch {
	case m.copied != "":
		return styleToast.Render("copied " + m.copied)
	case m.tree.Busy():
		return m.spinner.View() + styleFooterMuted.Render(" browsing")
	default:
		return styleFooterMuted.Render(m.source)
	}
}

// keyPill renders a single key hint as a pill with description.
func keyPill(key, desc string) string {
	return styleKeyPill.Render(" "+key+" ") + " " + styleKeyDesc.Render(desc)
}

// trimHintsToFit removes context hints first, then globals from the end.
func trimHintsToFit(hints []footerHint, availableWidth int) []footerHint {
	globalCount := len(globalFooterHints)
	for len(hints) > 0 {
		if renderHintsWidth(hints) <= availableWidth {
			break
		}
		if len(hints) > globalCount {
			hints = hints[1:]
		} else {
			hints = hints[:len(hints)-1]
		}
	}
	return hints
}

// renderHintsWidth calculates the visual width of rendered hints.
func renderHintsWidth(hints []footerHint) int {
	var parts []string
	for _, h := range hints {
		parts = append(parts, keyPill(h.key, h.desc))
	}
	return lipgloss.Width(strings.Join(parts, "  "))
}
