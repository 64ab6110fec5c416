package ui

import (
	"errors"
	"strings"

	"uacommander/internal/addrspace"
	"uacommander/internal/tree"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
)

func (m *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true
		m.layout()
		return m, nil

	case tree.ChildrenLoadedMsg:
		return m, m.checkTree(m.tree.Update(msg))

	case attributesDueMsg:
		if msg.seq != m.attrSeq {
			return m, nil
		}
		return m, readAttributesCmd(m.ctx, m.client, msg.seq, msg.nodeID, m.timeout)

	case attributesLoadedMsg:
		if msg.seq != m.attrSeq {
			return m, nil
		}
		m.attrs.Set(msg.nodeID, msg.attrs, msg.err)
		if msg.err != nil {
			m.info.Append("read " + msg.nodeID + " failed: " + msg.err.Error())
		}
		return m, nil

	case monitorResultMsg:
		m.handleMonitorResult(msg)
		return m, nil

	case unmonitorResultMsg:
		m.handleUnmonitorResult(msg)
		return m, nil

	case valueChangeMsg:
		m.applyValueChange(msg.change)
		return m, waitForChange(m.client.Changes())

	case changesClosedMsg:
		return m, nil

	case snapshotChangedMsg:
		m.info.Append("snapshot changed, reloading address space")
		return m, tea.Batch(m.checkTree(m.tree.Reload()), waitForSnapshotChange(m.snapshotEvents))

	case copyToastExpiredMsg:
		m.copied = ""
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.MouseMsg:
		if local, ok := m.treeMouse(msg); ok {
			m.setFocus(paneTree)
			return m, m.checkTree(m.tree.Update(local))
		}
		return m, nil

	case tea.KeyMsg:
		return m, m.handleKey(msg)
	}
	return m, nil
}

func (m *App) handleKey(msg tea.KeyMsg) tea.Cmd {
	if m.showHelp {
		switch {
		case key.Matches(msg, m.keys.Quit) && msg.String() == "ctrl+c":
			m.cancel()
			return tea.Quit
		case key.Matches(msg, m.keys.Help), key.Matches(msg, m.keys.Escape), key.Matches(msg, m.keys.Quit):
			m.showHelp = false
		}
		return nil
	}

	switch {
	case key.Matches(msg, m.keys.Quit), key.Matches(msg, m.keys.Escape):
		m.cancel()
		return tea.Quit
	case key.Matches(msg, m.keys.Help):
		m.showHelp = true
		return nil
	case key.Matches(msg, m.keys.Next):
		m.setFocus((m.focus + 1) % paneCount)
		return nil
	case key.Matches(msg, m.keys.Tree):
		m.setFocus(paneTree)
		return nil
	case key.Matches(msg, m.keys.Attributes):
		m.setFocus(paneAttributes)
		return nil
	case key.Matches(msg, m.keys.Monitored):
		m.setFocus(paneMonitored)
		return nil
	case key.Matches(msg, m.keys.Info):
		m.setFocus(paneInfo)
		return nil
	case key.Matches(msg, m.keys.Clear):
		m.info.Clear()
		return nil
	case key.Matches(msg, m.keys.Refresh):
		m.info.Append("reloading address space")
		return m.checkTree(m.tree.Reload())
	case key.Matches(msg, m.keys.Monitor):
		return m.monitorSelected()
	case key.Matches(msg, m.keys.Unmonitor):
		return m.unmonitorSelected()
	case key.Matches(msg, m.keys.Copy):
		return m.copySelected()
	}

	switch m.focus {
	case paneTree:
		return m.checkTree(m.tree.Update(msg))
	case paneAttributes:
		m.scroll(msg, m.attrs.ScrollUp, m.attrs.ScrollDown)
	case paneMonitored:
		m.scroll(msg, m.monitored.ScrollUp, m.monitored.ScrollDown)
	case paneInfo:
		m.scroll(msg, m.info.ScrollUp, m.info.ScrollDown)
	}
	return nil
}

func (m *App) scroll(msg tea.KeyMsg, up, down func()) {
	switch {
	case key.Matches(msg, m.keys.ScrollUp):
		up()
	case key.Matches(msg, m.keys.ScrollDown):
		down()
	}
}

func (m *App) monitorSelected() tea.Cmd {
	info := m.selectedInfo()
	if info == nil {
		return nil
	}
	if m.monitored.Has(info.NodeID) {
		m.info.Append(" Already monitoring " + info.NodeID)
		return nil
	}
	return monitorCmd(m.ctx, m.client, info.NodeID, info.BrowseName)
}

func (m *App) unmonitorSelected() tea.Cmd {
	info := m.selectedInfo()
	if info == nil {
		return nil
	}
	if !m.monitored.Has(info.NodeID) {
		m.info.Append(info.NodeID + " was not being monitored")
		return nil
	}
	return unmonitorCmd(m.ctx, m.client, info.NodeID)
}

func (m *App) copySelected() tea.Cmd {
	info := m.selectedInfo()
	if info == nil {
		return nil
	}
	if err := m.clipboard(info.NodeID); err != nil {
		m.info.Append("copy failed: " + err.Error())
		return nil
	}
	m.copied = info.NodeID
	return scheduleCopyToastTick()
}

func (m *App) handleMonitorResult(msg monitorResultMsg) {
	switch {
	case errors.Is(msg.err, addrspace.ErrAlreadyMonitored):
		m.info.Append(" Already monitoring " + msg.nodeID)
		m.monitored.Add(msg.nodeID, msg.browseName)
	case msg.err != nil:
		m.info.Append("monitor " + msg.nodeID + " failed: " + msg.err.Error())
	default:
		m.monitored.Add(msg.nodeID, msg.browseName)
		m.info.Append("monitoring " + msg.nodeID)
	}
}

func (m *App) handleUnmonitorResult(msg unmonitorResultMsg) {
	if msg.err != nil && !errors.Is(msg.err, addrspace.ErrNotMonitored) {
		m.info.Append("unmonitor " + msg.nodeID + " failed: " + msg.err.Error())
		return
	}
	if errors.Is(msg.err, addrspace.ErrNotMonitored) {
		m.info.Append(msg.nodeID + " was not being monitored")
	} else {
		m.info.Append("stopped monitoring " + msg.nodeID)
	}
	m.monitored.Remove(msg.nodeID)
	delete(m.values, msg.nodeID)
	m.tree.Refresh()
}

// applyValueChange updates the table and the node's tree label.
func (m *App) applyValueChange(change addrspace.ValueChange) {
	if change.Err != nil {
		m.info.Append("subscription " + change.NodeID + ": " + change.Err.Error())
		return
	}
	value, ok := m.monitored.Update(change.NodeID, change.Value)
	if !ok {
		return
	}
	if change.Value.Status.IsGood() {
		m.values[change.NodeID] = strings.TrimSpace(value)
	} else {
		delete(m.values, change.NodeID)
	}
	m.tree.Refresh()
}
