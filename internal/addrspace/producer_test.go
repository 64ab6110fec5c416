package addrspace

import (
	"context"
	"errors"
	"testing"
	"time"

	appErrors "uacommander/internal/errors"
	"uacommander/internal/tree"

	tea "github.com/charmbracelet/bubbletea"
)

// runTreeCmds runs cmd and everything it spawns, feeding tree messages back.
func runTreeCmds(tr *tree.Tree, cmd tea.Cmd) {
	queue := []tea.Cmd{cmd}
	for len(queue) > 0 {
		c := queue[0]
		queue = queue[1:]
		if c == nil {
			continue
		}
		switch msg := c().(type) {
		case tea.BatchMsg:
			queue = append(queue, msg...)
		case tree.ChildrenLoadedMsg:
			queue = append(queue, tr.Update(msg))
		}
	}
}

func TestProducerDedupesAndKeepsFirstKind(t *testing.T) {
	m := NewMockClient()
	m.BrowseFn = func(_ context.Context, nodeID string) ([]Reference, error) {
		if nodeID != RootNodeID {
			t.Fatalf("browse %q, want root", nodeID)
		}
		return []Reference{
			{NodeID: "i=85", BrowseName: "Objects", NodeClass: NodeClassObject, Kind: KindOrganizes},
			{NodeID: "i=86", BrowseName: "Types", NodeClass: NodeClassObject, Kind: KindOrganizes},
			{NodeID: "i=85", BrowseName: "Objects", NodeClass: NodeClassObject, Kind: KindAggregates},
		}, nil
	}

	produce := Producer(m, time.Second)
	got, err := produce(context.Background(), &tree.Node{ID: RootNodeID})
	if err != nil {
		t.Fatalf("produce: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d children, want 2", len(got))
	}
	info, ok := got[0].Meta.(*NodeInfo)
	if !ok || info.Kind != KindOrganizes || info.NodeID != "i=85" {
		t.Fatalf("first child meta = %#v", got[0].Meta)
	}
	if _, ok := got[1].Children.(tree.Pending); !ok {
		t.Fatalf("children should be pending, got %T", got[1].Children)
	}
}

func TestProducerRejectsEmptyNodeID(t *testing.T) {
	m := NewMockClient()
	m.BrowseFn = func(context.Context, string) ([]Reference, error) {
		return []Reference{{BrowseName: "Broken"}}, nil
	}
	_, err := Producer(m, 0)(context.Background(), &tree.Node{ID: RootNodeID})
	if !appErrors.IsCode(err, appErrors.CodeBrowseFailed) {
		t.Fatalf("expected browse failure, got %v", err)
	}
}

func TestProducerAppliesTimeout(t *testing.T) {
	m := NewMockClient()
	m.BrowseFn = func(ctx context.Context, _ string) ([]Reference, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	_, err := Producer(m, 10*time.Millisecond)(context.Background(), &tree.Node{ID: RootNodeID})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestRootDescriptorBrowsesThroughTree(t *testing.T) {
	m := NewMockClient()
	MockAddressSpace{Refs: map[string][]Reference{
		RootNodeID: {{NodeID: "i=85", BrowseName: "Objects", NodeClass: NodeClassObject, Kind: KindOrganizes}},
	}}.Install(m)

	tr, err := tree.New(RootDescriptor(m, time.Second))
	if err != nil {
		t.Fatalf("tree.New: %v", err)
	}
	runTreeCmds(tr, tr.Init())
	rows := tr.Rows()
	if len(rows) != 2 {
		t.Fatalf("got %d rows, want 2", len(rows))
	}
	if got := Label(rows[1].Node, ""); got != "o->   Objects" {
		t.Fatalf("label = %q", got)
	}
}

func TestLabel(t *testing.T) {
	variable := &tree.Node{Label: "Temp", Meta: &NodeInfo{BrowseName: "Temp", NodeClass: NodeClassVariable, Kind: KindAggregates}}
	if got := Label(variable, "21.500"); got != "+->   Temp = 21.500" {
		t.Fatalf("variable label = %q", got)
	}
	object := &tree.Node{Label: "Pump", Meta: &NodeInfo{BrowseName: "Pump", NodeClass: NodeClassObject, Kind: KindOrganizes}}
	if got := Label(object, "ignored"); got != "o->   Pump" {
		t.Fatalf("object label = %q", got)
	}
	root := &tree.Node{Label: RootBrowseName, Meta: &NodeInfo{BrowseName: RootBrowseName}}
	if got := Label(root, ""); got != RootBrowseName {
		t.Fatalf("root label = %q", got)
	}
	if got := Label(&tree.Node{Label: "plain"}, ""); got != "plain" {
		t.Fatalf("label without meta = %q", got)
	}
}
