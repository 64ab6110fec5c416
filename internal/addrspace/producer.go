package addrspace

import (
	"context"
	"fmt"
	"time"

	appErrors "uacommander/internal/errors"
	"uacommander/internal/tree"
)

// NodeInfo is the address space metadata attached to every tree node.
type NodeInfo struct {
	NodeID     string
	BrowseName string
	NodeClass  NodeClass
	Kind       ReferenceKind
}

// Info returns the NodeInfo of a tree node, or nil.
func Info(n *tree.Node) *NodeInfo {
	if n == nil {
		return nil
	}
	info, _ := n.Meta.(*NodeInfo)
	return info
}

// Producer returns a tree producer that browses the node's children through
// c. Each browse is bounded by timeout when it is positive. References that
// reach the same NodeId twice keep the first kind seen.
func Producer(c Client, timeout time.Duration) tree.Producer {
	var produce tree.Producer
	produce = func(ctx context.Context, n *tree.Node) ([]tree.Descriptor, error) {
		if timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}
		refs, err := c.Browse(ctx, n.ID)
		if err != nil {
			return nil, err
		}
		seen := make(map[string]struct{}, len(refs))
		children := make([]tree.Descriptor, 0, len(refs))
		for _, ref := range refs {
			if ref.NodeID == "" {
				return nil, appErrors.New(appErrors.CodeBrowseFailed, fmt.Sprintf("browse %s returned a reference without NodeId", n.ID), nil)
			}
			if _, dup := seen[ref.NodeID]; dup {
				continue
			}
			seen[ref.NodeID] = struct{}{}
			children = append(children, tree.Descriptor{
				ID:    ref.NodeID,
				Label: ref.BrowseName,
				Meta: &NodeInfo{
					NodeID:     ref.NodeID,
					BrowseName: ref.BrowseName,
					NodeClass:  ref.NodeClass,
					Kind:       ref.Kind,
				},
				Children: tree.Pending(produce),
			})
		}
		logger.Logf("browse %s: %d references, %d children", n.ID, len(refs), len(children))
		return children, nil
	}
	return produce
}

// RootDescriptor describes the RootFolder with lazily browsed children.
func RootDescriptor(c Client, timeout time.Duration) tree.Descriptor {
	return tree.Descriptor{
		ID:    RootNodeID,
		Label: RootBrowseName,
		Meta: &NodeInfo{
			NodeID:     RootNodeID,
			BrowseName: RootBrowseName,
			NodeClass:  NodeClassObject,
		},
		Children: tree.Pending(Producer(c, timeout)),
	}
}

// Label renders a tree label: the reference arrow, the browse name and, for
// variables with a known value, the value.
func Label(n *tree.Node, value string) string {
	info := Info(n)
	if info == nil {
		return n.Label
	}
	label := info.BrowseName
	if arrow := info.Kind.Arrow(); arrow != "" {
		label = arrow + "  " + info.BrowseName
	}
	if info.NodeClass == NodeClassVariable && value != "" {
		label += " = " + value
	}
	return label
}
