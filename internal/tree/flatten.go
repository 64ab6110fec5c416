package tree

const (
	connectorMid  = "├"
	connectorLast = "└"
	prefixPipe    = "│"
	prefixBlank   = " "
)

// Row is one visible line of the tree. Rows are recomputed after every
// structural change and must not be retained across updates.
type Row struct {
	Node      *Node
	Prefix    string
	Connector string
	IsLast    bool
	Depth     int
}

// Flatten walks the expanded part of the tree in pre-order. The root is
// always row 0 and carries no connector. Collapsed and pending nodes end the
// descent. Flatten only reads the graph.
func Flatten(root *Node) ([]Row, error) {
	if root == nil {
		return nil, nil
	}
	if root.Depth != 0 {
		return nil, invariantf("root %s has depth %d", root.key, root.Depth)
	}
	rows := []Row{{Node: root}}
	if !root.Expanded {
		return rows, nil
	}
	if err := flattenChildren(root, "", &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

func flattenChildren(parent *Node, prefix string, rows *[]Row) error {
	var kids loaded
	switch c := parent.children.(type) {
	case loaded:
		kids = c
	case unloaded:
		return nil
	default:
		return invariantf("node %s has unsupported children %T", parent.key, parent.children)
	}

	for i, kid := range kids {
		if kid.Depth != parent.Depth+1 || kid.Depth >= MaxDepth {
			return invariantf("node %s has depth %d under parent depth %d", kid.key, kid.Depth, parent.Depth)
		}
		last := i == len(kids)-1
		connector := connectorMid
		next := prefix + prefixPipe
		if last {
			connector = connectorLast
			next = prefix + prefixBlank
		}
		*rows = append(*rows, Row{
			Node:      kid,
			Prefix:    prefix,
			Connector: connector,
			IsLast:    last,
			Depth:     kid.Depth,
		})
		if kid.Expanded {
			if err := flattenChildren(kid, next, rows); err != nil {
				return err
			}
		}
	}
	return nil
}
