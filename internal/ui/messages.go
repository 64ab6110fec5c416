package ui

import (
	"context"
	"time"

	"uacommander/internal/addrspace"

	tea "github.com/charmbracelet/bubbletea"
)

const copyToastDuration = 2 * time.Second

// attributesDueMsg fires when the selection has been stable for the
// debounce interval.
type attributesDueMsg struct {
	seq    int
	nodeID string
}

type attributesLoadedMsg struct {
	seq    int
	nodeID string
	attrs  []addrspace.Attribute
	err    error
}

type monitorResultMsg struct {
	nodeID     string
	browseName string
	err        error
}

type unmonitorResultMsg struct {
	nodeID string
	err    error
}

// valueChangeMsg carries one notification from the client's change stream.
type valueChangeMsg struct {
	change addrspace.ValueChange
}

// changesClosedMsg reports that the client's change stream ended.
type changesClosedMsg struct{}

// snapshotChangedMsg reports that the snapshot file was replaced.
type snapshotChangedMsg struct{}

type copyToastExpiredMsg struct{}

func scheduleAttributes(seq int, nodeID string, delay time.Duration) tea.Cmd {
	if delay <= 0 {
		return func() tea.Msg { return attributesDueMsg{seq: seq, nodeID: nodeID} }
	}
	return tea.Tick(delay, func(time.Time) tea.Msg {
		return attributesDueMsg{seq: seq, nodeID: nodeID}
	})
}

func readAttributesCmd(ctx context.Context, c addrspace.Client, seq int, nodeID string, timeout time.Duration) tea.Cmd {
	return func() tea.Msg {
		if timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}
		attrs, err := c.ReadAttributes(ctx, nodeID)
		return attributesLoadedMsg{seq: seq, nodeID: nodeID, attrs: attrs, err: err}
	}
}

func monitorCmd(ctx context.Context, c addrspace.Client, nodeID, browseName string) tea.Cmd {
	return func() tea.Msg {
		return monitorResultMsg{nodeID: nodeID, browseName: browseName, err: c.Monitor(ctx, nodeID)}
	}
}

func unmonitorCmd(ctx context.Context, c addrspace.Client, nodeID string) tea.Cmd {
	return func() tea.Msg {
		return unmonitorResultMsg{nodeID: nodeID, err: c.Unmonitor(ctx, nodeID)}
	}
}

// waitForChange blocks on the next value change. A nil channel yields no
// command.
func waitForChange(ch <-chan addrspace.ValueChange) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		change, ok := <-ch
		if !ok {
			return changesClosedMsg{}
		}
		return valueChangeMsg{change: change}
	}
}

func waitForSnapshotChange(events <-chan struct{}) tea.Cmd {
	if events == nil {
		return nil
	}
	return func() tea.Msg {
		if _, ok := <-events; !ok {
			return nil
		}
		return snapshotChangedMsg{}
	}
}

func scheduleCopyToastTick() tea.Cmd {
	return tea.Tick(copyToastDuration, func(time.Time) tea.Msg {
		return copyToastExpiredMsg{}
	})
}
