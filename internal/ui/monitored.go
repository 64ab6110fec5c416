package ui

import (
	"uacommander/internal/addrspace"

	"github.com/charmbracelet/bubbles/table"
)

const (
	monitoredNameWidth   = 24
	monitoredNodeIDWidth = 28
)

// monitoredItem is one row of the monitored items table.
type monitoredItem struct {
	NodeID     string
	BrowseName string
	Value      string
	Status     addrspace.StatusCode
}

// monitoredPane lists monitored nodes with their latest value, in the order
// they were added.
type monitoredPane struct {
	items []monitoredItem
	index map[string]int
	table table.Model
}

func newMonitoredPane() *monitoredPane {
	styles := table.DefaultStyles()
	styles.Header = styles.Header.Foreground(cCyan).Bold(true)
	styles.Selected = styles.Selected.Foreground(cWhite).Background(cHighlight)
	t := table.New(
		table.WithColumns(monitoredColumns(0)),
		table.WithStyles(styles),
	)
	return &monitoredPane{index: make(map[string]int), table: t}
}

func monitoredColumns(width int) []table.Column {
	name, id := monitoredNameWidth, monitoredNodeIDWidth
	if width > 0 {
		rest := width - addrspace.MonitoredValueWidth - 6
		if rest < name+id {
			name = rest / 2
			id = rest - name
		}
		if name < 4 {
			name = 4
		}
		if id < 4 {
			id = 4
		}
	}
	return []table.Column{
		{Title: "Browse Name", Width: name},
		{Title: "NodeId", Width: id},
		{Title: "Value", Width: addrspace.MonitoredValueWidth},
	}
}

// Has reports whether nodeID is monitored.
func (p *monitoredPane) Has(nodeID string) bool {
	_, ok := p.index[nodeID]
	return ok
}

// Add appends a row for nodeID. It returns false when the node is already
// listed.
func (p *monitoredPane) Add(nodeID, browseName string) bool {
	if p.Has(nodeID) {
		return false
	}
	p.index[nodeID] = len(p.items)
	p.items = append(p.items, monitoredItem{NodeID: nodeID, BrowseName: browseName})
	p.sync()
	return true
}

// Remove drops the row for nodeID. It returns false when the node is not
// listed.
func (p *monitoredPane) Remove(nodeID string) bool {
	i, ok := p.index[nodeID]
	if !ok {
		return false
	}
	p.items = append(p.items[:i], p.items[i+1:]...)
	delete(p.index, nodeID)
	for j := i; j < len(p.items); j++ {
		p.index[p.items[j].NodeID] = j
	}
	p.sync()
	if p.table.Cursor() >= len(p.items) {
		p.table.SetCursor(max(len(p.items)-1, 0))
	}
	return true
}

// Update records a new value. Values for nodes not listed are ignored.
func (p *monitoredPane) Update(nodeID string, dv addrspace.DataValue) (string, bool) {
	i, ok := p.index[nodeID]
	if !ok {
		return "", false
	}
	value := addrspace.FormatMonitoredValue(dv.Value)
	p.items[i].Value = value
	p.items[i].Status = dv.Status
	p.sync()
	return value, true
}

// Items returns the rows in display order.
func (p *monitoredPane) Items() []monitoredItem { return p.items }

func (p *monitoredPane) SetSize(width, height int) {
	p.table.SetColumns(monitoredColumns(width))
	p.table.SetWidth(width)
	p.table.SetHeight(height)
}

func (p *monitoredPane) Focus() { p.table.Focus() }
func (p *monitoredPane) Blur()  { p.table.Blur() }

func (p *monitoredPane) ScrollUp()   { p.table.MoveUp(1) }
func (p *monitoredPane) ScrollDown() { p.table.MoveDown(1) }

func (p *monitoredPane) View() string { return p.table.View() }

func (p *monitoredPane) sync() {
	rows := make([]table.Row, len(p.items))
	for i, it := range p.items {
		value := it.Value
		if value != "" && !it.Status.IsGood() {
			value = it.Status.String()
		}
		rows[i] = table.Row{it.BrowseName, it.NodeID, value}
	}
	p.table.SetRows(rows)
}
