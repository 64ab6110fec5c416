package tree

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"pgregory.net/rapid"
)

// shape is a randomly drawn tree with a mix of concrete and lazy nodes.
type shape struct {
	children map[string][]string
	lazy     map[string]bool

	mu    sync.Mutex
	calls map[Key]int
}

func drawShape(t *rapid.T) *shape {
	s := &shape{children: map[string][]string{}, lazy: map[string]bool{}, calls: map[Key]int{}}
	var draw func(id string, depth int)
	draw = func(id string, depth int) {
		s.lazy[id] = rapid.Bool().Draw(t, "lazy "+id)
		fanout := 0
		if depth < 4 {
			fanout = rapid.IntRange(0, 3).Draw(t, "fanout "+id)
		}
		for i := 0; i < fanout; i++ {
			child := fmt.Sprintf("%s.%d", id, i)
			s.children[id] = append(s.children[id], child)
			draw(child, depth+1)
		}
	}
	draw("r", 0)
	return s
}

func (s *shape) descriptor(id string) Descriptor {
	d := Descriptor{ID: id, Label: id}
	if s.lazy[id] {
		d.Children = Pending(func(_ context.Context, n *Node) ([]Descriptor, error) {
			s.mu.Lock()
			s.calls[n.Key()]++
			s.mu.Unlock()
			return s.childDescriptors(id), nil
		})
		return d
	}
	d.Children = Concrete(s.childDescriptors(id))
	return d
}

func (s *shape) childDescriptors(id string) []Descriptor {
	var ds []Descriptor
	for _, child := range s.children[id] {
		ds = append(ds, s.descriptor(child))
	}
	return ds
}

// expectedRows recomputes visibility independently of Flatten.
func expectedRows(root *Node) []Key {
	keys := []Key{root.Key()}
	var walk func(n *Node)
	walk = func(n *Node) {
		if !n.Expanded {
			return
		}
		for _, kid := range n.Children() {
			keys = append(keys, kid.Key())
			walk(kid)
		}
	}
	walk(root)
	return keys
}

func checkTreeInvariants(t *rapid.T, tr *Tree, s *shape) {
	if err := tr.Err(); err != nil {
		t.Fatalf("unexpected invariant violation: %v", err)
	}

	root := tr.Root()
	if root.Depth != 0 {
		t.Fatalf("root depth %d", root.Depth)
	}
	tr.Walk(func(n *Node) {
		for _, kid := range n.Children() {
			if kid.Depth != n.Depth+1 {
				t.Fatalf("%s depth %d under parent depth %d", kid.Key(), kid.Depth, n.Depth)
			}
		}
		if n.Expanded && !n.Loaded() {
			t.Fatalf("%s expanded without concrete children", n.Key())
		}
	})

	want := expectedRows(root)
	rows := tr.Rows()
	if len(rows) != len(want) {
		t.Fatalf("expected %d rows, got %d", len(want), len(rows))
	}
	for i, r := range rows {
		if r.Node.Key() != want[i] {
			t.Fatalf("row %d: got %s, want %s", i, r.Node.Key(), want[i])
		}
	}

	if c := tr.Cursor(); c < 0 || c >= len(rows) {
		t.Fatalf("cursor %d outside %d rows", c, len(rows))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for k, n := range s.calls {
		if n > 1 {
			t.Fatalf("producer for %s invoked %d times", k, n)
		}
	}
}

func TestTreeProperties(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		s := drawShape(t)
		tr, err := New(s.descriptor("r"))
		if err != nil {
			t.Fatalf("New: %v", err)
		}
		drain(tr, tr.Init())
		checkTreeInvariants(t, tr, s)

		steps := rapid.IntRange(1, 40).Draw(t, "steps")
		for i := 0; i < steps; i++ {
			rows := tr.Rows()
			switch rapid.IntRange(0, 3).Draw(t, "op") {
			case 0:
				drain(tr, tr.Move(rapid.IntRange(-3, 3).Draw(t, "delta")))
			case 1:
				sel := tr.Selected().Key()
				drain(tr, tr.Expand(tr.Selected()))
				if tr.Selected().Key() != sel {
					t.Fatalf("expanding the selection moved it from %s to %s", sel, tr.Selected().Key())
				}
			case 2:
				sel := tr.Selected().Key()
				drain(tr, tr.Collapse(tr.Selected()))
				if tr.Selected().Key() != sel {
					t.Fatalf("collapsing the selection moved it from %s to %s", sel, tr.Selected().Key())
				}
			case 3:
				target := rows[rapid.IntRange(0, len(rows)-1).Draw(t, "row")].Node
				sel := tr.Selected().Key()
				hidden := target.Expanded && strings.HasPrefix(string(sel), string(target.Key())+keySep)
				drain(tr, tr.Toggle(target))
				switch {
				case hidden && tr.Cursor() != 0:
					t.Fatalf("selection %s under collapsed %s should fall back to row 0", sel, target.Key())
				case !hidden && tr.Selected().Key() != sel:
					t.Fatalf("toggling %s moved selection from %s to %s", target.Key(), sel, tr.Selected().Key())
				}
			}
			checkTreeInvariants(t, tr, s)
		}
	})
}

func TestReloadPreservesVisibleState(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		s := drawShape(t)
		tr, err := New(s.descriptor("r"))
		if err != nil {
			t.Fatalf("New: %v", err)
		}
		drain(tr, tr.Init())

		steps := rapid.IntRange(0, 20).Draw(t, "steps")
		for i := 0; i < steps; i++ {
			rows := tr.Rows()
			target := rows[rapid.IntRange(0, len(rows)-1).Draw(t, "row")].Node
			drain(tr, tr.Toggle(target))
		}
		drain(tr, tr.Move(rapid.IntRange(0, len(tr.Rows())).Draw(t, "cursor")))

		before := expectedRows(tr.Root())
		sel := tr.Selected().Key()

		s.mu.Lock()
		s.calls = map[Key]int{}
		s.mu.Unlock()
		drain(tr, tr.Reload())
		checkTreeInvariants(t, tr, s)

		after := expectedRows(tr.Root())
		if strings.Join(keyStrings(before), ",") != strings.Join(keyStrings(after), ",") {
			t.Fatalf("visible rows changed across reload:\n%v\n%v", before, after)
		}
		if tr.Selected().Key() != sel {
			t.Fatalf("selection %s not restored, got %s", sel, tr.Selected().Key())
		}
	})
}

func keyStrings(keys []Key) []string {
	out := make([]string, len(keys))
	for i, k := range keys {
		out[i] = k.String()
	}
	return out
}
