package ui

import (
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"
)

var (
	cPurple     = lipgloss.Color("99")
	cCyan       = lipgloss.Color("39")
	cNeonGreen  = lipgloss.Color("118")
	cRed        = lipgloss.Color("203")
	cGold       = lipgloss.Color("220")
	cGray       = lipgloss.Color("240")
	cBrightGray = lipgloss.Color("246")
	cLightGray  = lipgloss.Color("250")
	cWhite      = lipgloss.Color("255")
	cHighlight  = lipgloss.Color("57")

	styleAppHeader = lipgloss.NewStyle().
			Foreground(cWhite).
			Background(cPurple).
			Bold(true).
			Padding(0, 1)

	styleHeaderInfo = lipgloss.NewStyle().
			Foreground(cLightGray).
			Background(cPurple)

	stylePane = lipgloss.NewStyle().
			Border(lipgloss.NormalBorder()).
			BorderForeground(cGray)

	stylePaneFocused = lipgloss.NewStyle().
				Border(lipgloss.ThickBorder()).
				BorderForeground(cPurple)

	stylePaneTitle = lipgloss.NewStyle().
			Foreground(cCyan).
			Bold(true)

	styleAttrName  = lipgloss.NewStyle().Foreground(cGold)
	styleAttrValue = lipgloss.NewStyle().Foreground(cWhite)
	styleDim       = lipgloss.NewStyle().Foreground(cBrightGray)
	styleError     = lipgloss.NewStyle().Foreground(cRed)
	styleSpinner   = lipgloss.NewStyle().Foreground(cNeonGreen)

	styleKeyPill = lipgloss.NewStyle().
			Foreground(cWhite).
			Background(cGray).
			Bold(true)

	styleKeyDesc = lipgloss.NewStyle().Foreground(cBrightGray)

	styleFooterMuted = lipgloss.NewStyle().Foreground(cGray)

	styleToast = lipgloss.NewStyle().
			Foreground(cWhite).
			Background(cHighlight).
			Padding(0, 1)

	styleHelpBox = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(cPurple).
			Padding(1, 2)
)

// buildMarkdownRenderer returns a glamour renderer wrapping at width, or a
// plain word wrapper when glamour cannot be set up.
func buildMarkdownRenderer(format string, width int) func(string) string {
	fallback := func(input string) string {
		return wordwrap.String(input, width)
	}

	style := strings.ToLower(strings.TrimSpace(format))
	if style == "" || style == "rich" || style == "dark" {
		style = "dark"
	}
	if style == "plain" {
		return fallback
	}

	renderer, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(style),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return fallback
	}
	return func(input string) string {
		out, err := renderer.Render(input)
		if err != nil {
			return fallback(input)
		}
		return strings.TrimSpace(out)
	}
}
