package ui

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"uacommander/internal/addrspace"
	appErrors "uacommander/internal/errors"

	tea "github.com/charmbracelet/bubbletea"
)

func TestNewAppRequiresClient(t *testing.T) {
	if _, err := NewApp(Config{}); !appErrors.IsCode(err, appErrors.CodeNotConnected) {
		t.Fatalf("expected not connected error, got %v", err)
	}
}

func TestStartupBrowsesRootAndReadsAttributes(t *testing.T) {
	mock := newMockClient()
	app := newTestApp(t, mock, nil)

	rows := app.tree.Rows()
	if len(rows) != 3 {
		t.Fatalf("got %d rows, want 3", len(rows))
	}
	if rows[1].Node.ID != objectsID || rows[2].Node.ID != tempID {
		t.Fatalf("unexpected children: %s, %s", rows[1].Node.ID, rows[2].Node.ID)
	}
	if app.attrs.NodeID() != addrspace.RootNodeID {
		t.Fatalf("attributes shown for %q", app.attrs.NodeID())
	}
	attrRows := app.attrs.Rows()
	if len(attrRows) != 2 || attrRows[1].Value != "Object (1)" {
		t.Fatalf("attribute rows = %+v", attrRows)
	}
	if lines := app.info.Lines(); len(lines) == 0 || lines[0] != "   endpoint url   = mock" {
		t.Fatalf("banner not logged: %q", lines)
	}
}

func TestSelectionReadsAttributesOfNewNode(t *testing.T) {
	mock := newMockClient()
	app := newTestApp(t, mock, nil)

	press(t, app, keyDown, keyDown)
	if app.attrs.NodeID() != tempID {
		t.Fatalf("attributes shown for %q, want %q", app.attrs.NodeID(), tempID)
	}
	if rows := app.attrs.Rows(); len(rows) != 2 || rows[1].Value != "20" {
		t.Fatalf("attribute rows = %+v", rows)
	}
}

func TestAttributeReadsAreDebounced(t *testing.T) {
	mock := newMockClient()
	app := newTestApp(t, mock, func(c *Config) { c.AttributesDebounce = 10 * time.Millisecond })
	_, reads := mock.Calls()
	before := len(reads)

	// Two quick moves: only the last selection is read.
	app.Update(keyDown)
	staleSeq := app.attrSeq
	app.Update(keyDown)

	if _, cmd := app.Update(attributesDueMsg{seq: staleSeq, nodeID: objectsID}); cmd != nil {
		t.Fatal("stale debounce tick should not read")
	}
	_, cmd := app.Update(attributesDueMsg{seq: app.attrSeq, nodeID: tempID})
	if cmd == nil {
		t.Fatal("current debounce tick should read")
	}
	run(t, app, cmd)

	_, reads = mock.Calls()
	if got := reads[before:]; len(got) != 1 || got[0] != tempID {
		t.Fatalf("reads after navigation = %v", got)
	}
	if app.attrs.NodeID() != tempID {
		t.Fatalf("attributes shown for %q", app.attrs.NodeID())
	}
}

func TestStaleAttributeResultIgnored(t *testing.T) {
	app := newTestApp(t, newMockClient(), nil)
	app.Update(attributesLoadedMsg{seq: app.attrSeq - 1, nodeID: pumpID, err: errors.New("late")})
	if app.attrs.NodeID() == pumpID {
		t.Fatal("stale result replaced the attribute panel")
	}
}

func TestMonitorUpdatesTableAndLabel(t *testing.T) {
	app := newTestApp(t, newMockClient(), nil)
	selectID(t, app, tempID)

	press(t, app, runeKey('m'))
	items := app.monitored.Items()
	if len(items) != 1 || items[0].NodeID != tempID || items[0].BrowseName != "Temp" {
		t.Fatalf("monitored items = %+v", items)
	}

	app.Update(valueChangeMsg{change: addrspace.ValueChange{
		NodeID: tempID,
		Value:  addrspace.DataValue{Value: 21.5},
	}})
	if got := app.monitored.Items()[0].Value; strings.TrimSpace(got) != "21.500" {
		t.Fatalf("table value = %q", got)
	}
	row := app.tree.Rows()[app.tree.Cursor()]
	if row.Node.ID != tempID {
		t.Fatalf("selection moved to %s", row.Node.ID)
	}
	if line := app.tree.Line(row); !strings.HasSuffix(line, "o->   Temp = 21.500") {
		t.Fatalf("tree line = %q", line)
	}

	press(t, app, runeKey('m'))
	if got := lastInfoLine(app); got != " Already monitoring "+tempID {
		t.Fatalf("last info line = %q", got)
	}
}

func TestUnmonitor(t *testing.T) {
	mock := newMockClient()
	app := newTestApp(t, mock, nil)
	selectID(t, app, tempID)

	press(t, app, runeKey('u'))
	if got := lastInfoLine(app); got != tempID+" was not being monitored" {
		t.Fatalf("last info line = %q", got)
	}
	if len(mock.UnmonitorCallArgs) != 0 {
		t.Fatal("client called for a node that was not monitored")
	}

	press(t, app, runeKey('m'))
	app.Update(valueChangeMsg{change: addrspace.ValueChange{NodeID: tempID, Value: addrspace.DataValue{Value: 1.0}}})
	press(t, app, runeKey('u'))
	if len(app.monitored.Items()) != 0 {
		t.Fatalf("items after unmonitor = %+v", app.monitored.Items())
	}
	row := app.tree.Rows()[app.tree.Cursor()]
	if line := app.tree.Line(row); strings.Contains(line, "=") {
		t.Fatalf("value still shown after unmonitor: %q", line)
	}
}

func TestMonitorFailureIsLogged(t *testing.T) {
	mock := newMockClient()
	mock.MonitorFn = failingMonitor(appErrors.New(appErrors.CodeUnsupported, "monitoring is not available", nil))
	app := newTestApp(t, mock, nil)
	selectID(t, app, tempID)

	press(t, app, runeKey('m'))
	if len(app.monitored.Items()) != 0 {
		t.Fatal("failed monitor added a row")
	}
	if !strings.HasPrefix(lastInfoLine(app), "monitor "+tempID+" failed") {
		t.Fatalf("last info line = %q", lastInfoLine(app))
	}
}

func TestStartupMonitorsConfiguredNode(t *testing.T) {
	mock := newMockClient()
	app := newTestApp(t, mock, func(c *Config) { c.MonitorNode = "ns=1;s=Speed" })
	if !app.monitored.Has("ns=1;s=Speed") {
		t.Fatal("configured node not monitored")
	}
	if len(mock.MonitorCallArgs) != 1 {
		t.Fatalf("monitor calls = %v", mock.MonitorCallArgs)
	}
}

func TestValueChangeForUnknownNodeIgnored(t *testing.T) {
	app := newTestApp(t, newMockClient(), nil)
	app.Update(valueChangeMsg{change: addrspace.ValueChange{NodeID: "ns=9;s=Other", Value: addrspace.DataValue{Value: 1.0}}})
	if len(app.values) != 0 {
		t.Fatalf("values = %v", app.values)
	}
	app.Update(valueChangeMsg{change: addrspace.ValueChange{NodeID: tempID, Err: errors.New("bad node")}})
	if !infoContains(app, "bad node") {
		t.Fatal("subscription error not logged")
	}
}

func TestFetchFailureIsLoggedAndIsolated(t *testing.T) {
	mock := newMockClient()
	space := testSpace()
	mock.BrowseFn = func(_ context.Context, nodeID string) ([]addrspace.Reference, error) {
		if nodeID == objectsID {
			return nil, errors.New("BadUserAccessDenied")
		}
		return space.Refs[nodeID], nil
	}
	app := newTestApp(t, mock, nil)
	selectID(t, app, objectsID)
	press(t, app, keyRight)

	if !infoContains(app, "browse "+objectsID+" failed") {
		t.Fatalf("fetch failure not logged: %q", app.info.Lines())
	}
	if len(app.tree.Rows()) != 3 {
		t.Fatalf("rows after failed expand = %d", len(app.tree.Rows()))
	}
	if app.Err() != nil {
		t.Fatalf("fetch failure stopped the app: %v", app.Err())
	}
}

func TestRefreshKeyReloadsAndKeepsState(t *testing.T) {
	mock := newMockClient()
	app := newTestApp(t, mock, nil)
	selectID(t, app, objectsID)
	press(t, app, keyRight)
	selectID(t, app, pumpID)

	browses, _ := mock.Calls()
	before := len(browses)
	press(t, app, runeKey('r'))

	browses, _ = mock.Calls()
	if len(browses)-before != 2 {
		t.Fatalf("reload browsed %v", browses[before:])
	}
	sel := app.tree.Selected()
	if sel == nil || sel.ID != pumpID {
		t.Fatalf("selection after reload = %v", sel)
	}
}

func TestSnapshotChangeReloadsTree(t *testing.T) {
	events := make(chan struct{})
	close(events)
	mock := newMockClient()
	app := newTestApp(t, mock, func(c *Config) { c.SnapshotEvents = events })
	selectID(t, app, tempID)

	space := testSpace()
	space.Refs[addrspace.RootNodeID] = append(space.Refs[addrspace.RootNodeID],
		addrspace.Reference{NodeID: "i=86", BrowseName: "Types", NodeClass: addrspace.NodeClassObject, Kind: addrspace.KindOrganizes})
	space.Install(mock)

	_, cmd := app.Update(snapshotChangedMsg{})
	run(t, app, cmd)

	if len(app.tree.Rows()) != 4 {
		t.Fatalf("rows after snapshot change = %d", len(app.tree.Rows()))
	}
	if sel := app.tree.Selected(); sel == nil || sel.ID != tempID {
		t.Fatalf("selection after reload = %v", sel)
	}
	if !infoContains(app, "snapshot changed") {
		t.Fatal("reload not logged")
	}
}

func TestClearAndCopyKeys(t *testing.T) {
	clip := &fakeClipboard{}
	app := newTestApp(t, newMockClient(), func(c *Config) { c.Clipboard = clip.WriteAll })

	press(t, app, runeKey('c'))
	if len(app.info.Lines()) != 0 {
		t.Fatalf("info not cleared: %q", app.info.Lines())
	}

	selectID(t, app, tempID)
	_, cmd := app.Update(runeKey('y'))
	if cmd == nil {
		t.Fatal("copy should schedule the toast")
	}
	if len(clip.copied) != 1 || clip.copied[0] != tempID {
		t.Fatalf("copied = %v", clip.copied)
	}
	if app.copied != tempID {
		t.Fatalf("toast for %q", app.copied)
	}
	app.Update(copyToastExpiredMsg{})
	if app.copied != "" {
		t.Fatal("toast not cleared")
	}
}

func TestFocusKeys(t *testing.T) {
	app := newTestApp(t, newMockClient(), nil)
	if app.focus != paneTree || !app.tree.Focused() {
		t.Fatal("tree should start focused")
	}
	press(t, app, keyTab)
	if app.focus != paneAttributes || app.tree.Focused() {
		t.Fatalf("focus after tab = %v", app.focus)
	}

	// Navigation keys scroll the focused pane instead of moving the tree.
	cursor := app.tree.Cursor()
	press(t, app, keyDown)
	if app.tree.Cursor() != cursor {
		t.Fatal("tree moved while attributes were focused")
	}

	press(t, app, keyTab, keyTab, keyTab)
	if app.focus != paneTree {
		t.Fatalf("tab did not wrap, focus = %v", app.focus)
	}
	press(t, app, runeKey('i'))
	if app.focus != paneInfo {
		t.Fatalf("focus after i = %v", app.focus)
	}
	press(t, app, runeKey('o'))
	if app.focus != paneMonitored {
		t.Fatalf("focus after o = %v", app.focus)
	}
	press(t, app, runeKey('t'))
	if app.focus != paneTree {
		t.Fatalf("focus after t = %v", app.focus)
	}
}

func TestHelpAndExit(t *testing.T) {
	app := newTestApp(t, newMockClient(), nil)
	app.Update(tea.WindowSizeMsg{Width: 100, Height: 40})

	press(t, app, runeKey('?'))
	if !app.showHelp {
		t.Fatal("help not shown")
	}
	if view := app.View(); !strings.Contains(view, "Monitor selected node") {
		t.Fatalf("help view missing bindings:\n%s", view)
	}
	if quit := press(t, app, keyEsc); quit || app.showHelp {
		t.Fatalf("esc should close help only (quit=%v)", quit)
	}
	if quit := press(t, app, keyEsc); !quit {
		t.Fatal("esc should exit")
	}
}

func TestMouseClickSelectsTreeRow(t *testing.T) {
	app := newTestApp(t, newMockClient(), nil)
	app.Update(tea.WindowSizeMsg{Width: 100, Height: 40})
	press(t, app, keyTab)

	g := app.geometry()
	_, cmd := app.Update(tea.MouseMsg{X: 2, Y: g.headerH + 2 + 1, Action: tea.MouseActionPress, Button: tea.MouseButtonLeft})
	run(t, app, cmd)

	if app.focus != paneTree {
		t.Fatal("click did not focus the tree")
	}
	if sel := app.tree.Selected(); sel == nil || sel.ID != objectsID {
		t.Fatalf("selected %v, want %s", sel, objectsID)
	}
	if len(app.tree.Rows()) != 4 {
		t.Fatalf("click did not expand Objects: %d rows", len(app.tree.Rows()))
	}
}
