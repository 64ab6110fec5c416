// Package tree implements a lazily populated terminal tree view.
//
// Children are either known up front (Concrete) or produced on first
// expansion (Pending). Producers run as tea.Cmds and their results are
// applied on the Bubble Tea update loop, so the node graph is only ever
// mutated from a single goroutine.
package tree

import (
	"context"
	"fmt"
	"strings"

	appErrors "uacommander/internal/errors"
)

// MaxDepth bounds the depth of any node. Deeper nodes indicate a cyclic or
// malformed producer.
const MaxDepth = 100

// keySep separates IDs inside a Key. OPC UA string identifiers may contain
// slashes, so a control character is used.
const keySep = "\x1f"

// Producer resolves the children of a node. It runs off the update loop and
// must not mutate n.
type Producer func(ctx context.Context, n *Node) ([]Descriptor, error)

// Children is the tagged variant describing a descriptor's children:
// either Concrete or Pending.
type Children interface {
	isChildren()
}

// Concrete is an already known, ordered child list. A nil Concrete is a leaf.
type Concrete []Descriptor

// Pending defers the child list to a producer invoked on first expansion.
type Pending Producer

func (Concrete) isChildren() {}
func (Pending) isChildren()  {}

// Descriptor is the typed input used to create a node.
type Descriptor struct {
	ID       string
	Label    string
	Meta     any
	Children Children
}

// Key identifies a node by the path of IDs from the root. The same ID may
// appear under several parents, the Key never does.
type Key string

// Child returns the key of the child with the given id.
func (k Key) Child(id string) Key {
	if k == "" {
		return Key(id)
	}
	return k + Key(keySep) + Key(id)
}

// IDs splits the key back into its path components.
func (k Key) IDs() []string {
	if k == "" {
		return nil
	}
	return strings.Split(string(k), keySep)
}

// String renders the key with slashes for logs.
func (k Key) String() string {
	return strings.Join(k.IDs(), " / ")
}

// Node is a single installed tree entry. ID, Label, Meta and Depth never
// change after installation.
type Node struct {
	ID       string
	Label    string
	Meta     any
	Depth    int
	Expanded bool

	key      Key
	children nodeChildren
}

// nodeChildren mirrors Children for installed nodes.
type nodeChildren interface {
	isNodeChildren()
}

type loaded []*Node

type unloaded struct {
	produce Producer
}

func (loaded) isNodeChildren()   {}
func (unloaded) isNodeChildren() {}

// Key returns the node's path identity.
func (n *Node) Key() Key {
	return n.key
}

// Loaded reports whether the node's children are concrete.
func (n *Node) Loaded() bool {
	_, ok := n.children.(loaded)
	return ok
}

// Children returns the installed children, or nil while they are pending.
func (n *Node) Children() []*Node {
	if kids, ok := n.children.(loaded); ok {
		return kids
	}
	return nil
}

// IsLeaf reports whether the node has been resolved to zero children.
func (n *Node) IsLeaf() bool {
	kids, ok := n.children.(loaded)
	return ok && len(kids) == 0
}

func newNode(d Descriptor, parent Key, depth int) (*Node, error) {
	if d.ID == "" {
		return nil, invariantf("descriptor with label %q under %s has an empty id", d.Label, parent)
	}
	if depth < 0 || depth >= MaxDepth {
		return nil, invariantf("node %s at depth %d outside [0, %d)", parent.Child(d.ID), depth, MaxDepth)
	}
	n := &Node{
		ID:    d.ID,
		Label: d.Label,
		Meta:  d.Meta,
		Depth: depth,
		key:   parent.Child(d.ID),
	}
	switch c := d.Children.(type) {
	case nil:
		n.children = loaded{}
	case Concrete:
		kids, err := newChildren(c, n.key, depth+1)
		if err != nil {
			return nil, err
		}
		n.children = kids
	case Pending:
		if c == nil {
			return nil, invariantf("node %s has a nil producer", n.key)
		}
		n.children = unloaded{produce: Producer(c)}
	default:
		return nil, invariantf("node %s has unsupported children %T", n.key, d.Children)
	}
	return n, nil
}

func newChildren(ds []Descriptor, parent Key, depth int) (loaded, error) {
	seen := make(map[string]struct{}, len(ds))
	kids := make(loaded, 0, len(ds))
	for _, d := range ds {
		if _, dup := seen[d.ID]; dup {
			return nil, invariantf("duplicate child id %q under %s", d.ID, parent)
		}
		seen[d.ID] = struct{}{}
		kid, err := newNode(d, parent, depth)
		if err != nil {
			return nil, err
		}
		kids = append(kids, kid)
	}
	return kids, nil
}

func invariantf(format string, args ...any) error {
	return appErrors.New(appErrors.CodeInvariantViolation, fmt.Sprintf(format, args...), nil)
}
