package ui

import (
	"strings"

	"uacommander/internal/debug"

	"github.com/charmbracelet/bubbles/viewport"
	"github.com/muesli/reflow/wordwrap"
)

var infoLog = debug.Scope("info")

// infoPane is the scrolling log shown under the tree. It keeps the last
// max lines and follows the newest line.
type infoPane struct {
	lines []string
	max   int
	vp    viewport.Model
}

func newInfoPane(max int) *infoPane {
	if max <= 0 {
		max = 1
	}
	return &infoPane{max: max, vp: viewport.New(0, 0)}
}

// Append adds lines, dropping the oldest beyond capacity. Every line is
// mirrored to the debug log.
func (p *infoPane) Append(lines ...string) {
	for _, line := range lines {
		for _, l := range strings.Split(line, "\n") {
			infoLog.Logf("%s", l)
			p.lines = append(p.lines, l)
		}
	}
	if over := len(p.lines) - p.max; over > 0 {
		p.lines = append(p.lines[:0:0], p.lines[over:]...)
	}
	p.sync()
	p.vp.GotoBottom()
}

// Clear empties the log.
func (p *infoPane) Clear() {
	p.lines = nil
	p.sync()
	p.vp.GotoTop()
}

// Lines returns the buffered lines, oldest first.
func (p *infoPane) Lines() []string { return p.lines }

func (p *infoPane) SetSize(width, height int) {
	p.vp.Width = width
	p.vp.Height = height
	p.sync()
	p.vp.GotoBottom()
}

func (p *infoPane) ScrollUp()   { p.vp.LineUp(1) }
func (p *infoPane) ScrollDown() { p.vp.LineDown(1) }

func (p *infoPane) View() string { return p.vp.View() }

func (p *infoPane) sync() {
	content := strings.Join(p.lines, "\n")
	if p.vp.Width > 0 {
		content = wordwrap.String(content, p.vp.Width)
	}
	p.vp.SetContent(content)
}
