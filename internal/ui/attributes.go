package ui

import (
	"strings"

	"uacommander/internal/addrspace"

	"github.com/charmbracelet/bubbles/viewport"
	"github.com/muesli/reflow/truncate"
)

// attributePane shows the attributes of the selected node.
type attributePane struct {
	nodeID  string
	rows    []addrspace.AttributeRow
	err     error
	loading bool
	vp      viewport.Model
}

func newAttributePane() *attributePane {
	return &attributePane{vp: viewport.New(0, 0)}
}

// Loading marks the pane as waiting for nodeID.
func (p *attributePane) Loading(nodeID string) {
	p.nodeID = nodeID
	p.loading = true
	p.sync()
}

// Set shows the attributes read for nodeID.
func (p *attributePane) Set(nodeID string, attrs []addrspace.Attribute, err error) {
	p.nodeID = nodeID
	p.loading = false
	p.err = err
	p.rows = nil
	if err == nil {
		p.rows = addrspace.AttributeRows(attrs)
	}
	p.sync()
	p.vp.GotoTop()
}

// NodeID returns the node whose attributes are shown or loading.
func (p *attributePane) NodeID() string { return p.nodeID }

// Rows returns the formatted attribute rows.
func (p *attributePane) Rows() []addrspace.AttributeRow { return p.rows }

func (p *attributePane) SetSize(width, height int) {
	p.vp.Width = width
	p.vp.Height = height
	p.sync()
}

func (p *attributePane) ScrollUp()   { p.vp.LineUp(1) }
func (p *attributePane) ScrollDown() { p.vp.LineDown(1) }

func (p *attributePane) View() string { return p.vp.View() }

func (p *attributePane) sync() {
	var lines []string
	switch {
	case p.nodeID == "":
		lines = append(lines, styleDim.Render("no node selected"))
	case p.loading && len(p.rows) == 0:
		lines = append(lines, styleDim.Render("reading "+p.nodeID+"..."))
	case p.err != nil:
		lines = append(lines, styleError.Render(p.err.Error()))
	default:
		for _, r := range p.rows {
			line := styleAttrName.Render(addrspace.DotPad(r.Name, addrspace.AttributeNameWidth)) +
				": " + styleAttrValue.Render(r.Value)
			if p.vp.Width > 0 {
				line = truncate.StringWithTail(line, uint(p.vp.Width), "…")
			}
			lines = append(lines, line)
		}
	}
	p.vp.SetContent(strings.Join(lines, "\n"))
}
