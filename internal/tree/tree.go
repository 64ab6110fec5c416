package tree

import (
	"context"
	"fmt"

	"uacommander/internal/debug"
	appErrors "uacommander/internal/errors"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
)

var logger = debug.Scope("tree")

// Hooks let the host react to tree events. Both run on the update loop and
// should return quickly, deferring work to the returned command.
type Hooks struct {
	// SelectionChanged fires after navigation moves the cursor to another
	// node and after every successful expansion.
	SelectionChanged func(n *Node) tea.Cmd
	// FetchFailed fires once per failed producer call.
	FetchFailed func(n *Node, err error) tea.Cmd
}

// LabelFunc renders the text shown for a node.
type LabelFunc func(n *Node) string

// ChildrenLoadedMsg carries a producer result back to the update loop.
type ChildrenLoadedMsg struct {
	node     *Node
	gen      int
	children []Descriptor
	err      error
}

// Node returns the node whose children were fetched.
func (m ChildrenLoadedMsg) Node() *Node { return m.node }

// Err returns the producer error, if any.
func (m ChildrenLoadedMsg) Err() error { return m.err }

type reloadState struct {
	expanded map[Key]bool
	selected Key
}

// Option configures a Tree.
type Option func(*Tree)

// WithHooks installs host callbacks.
func WithHooks(h Hooks) Option {
	return func(t *Tree) { t.hooks = h }
}

// WithLabelFunc overrides how node labels are rendered.
func WithLabelFunc(f LabelFunc) Option {
	return func(t *Tree) { t.label = f }
}

// WithContext sets the context handed to producers.
func WithContext(ctx context.Context) Option {
	return func(t *Tree) { t.ctx = ctx }
}

// WithKeyMap replaces the default bindings.
func WithKeyMap(k KeyMap) Option {
	return func(t *Tree) { t.keys = k }
}

// WithStyles replaces the default styles.
func WithStyles(s Styles) Option {
	return func(t *Tree) { t.styles = s }
}

// Tree is the lazy tree component. It is not safe for concurrent use; drive
// it from a single Bubble Tea model.
type Tree struct {
	rootDesc Descriptor
	root     *Node
	rows     []Row
	sel      Selection
	inflight map[*Node]struct{}
	gen      int
	restore  *reloadState
	err      error

	hooks  Hooks
	label  LabelFunc
	ctx    context.Context
	keys   KeyMap
	styles Styles

	width  int
	height int
	offset int
	focus  bool
}

// New builds a tree from the root descriptor. The root starts expanded when
// its children are concrete; pending roots are fetched by Init.
func New(root Descriptor, opts ...Option) (*Tree, error) {
	t := &Tree{
		rootDesc: root,
		inflight: make(map[*Node]struct{}),
		label:    func(n *Node) string { return n.Label },
		ctx:      context.Background(),
		keys:     DefaultKeyMap(),
		styles:   DefaultStyles(),
		focus:    true,
	}
	for _, opt := range opts {
		opt(t)
	}
	n, err := newNode(root, "", 0)
	if err != nil {
		return nil, err
	}
	t.root = n
	if n.Loaded() {
		n.Expanded = true
	}
	t.refresh(n.key)
	if t.err != nil {
		return nil, t.err
	}
	return t, nil
}

// Init fetches a pending root and reports the initial selection.
func (t *Tree) Init() tea.Cmd {
	var cmds []tea.Cmd
	if !t.root.Expanded {
		cmds = append(cmds, t.open(t.root))
	}
	cmds = append(cmds, t.selectionChanged())
	return tea.Batch(cmds...)
}

// Update handles fetch completions, keys and mouse events. Mouse
// coordinates must be relative to the tree's top-left corner.
func (t *Tree) Update(msg tea.Msg) tea.Cmd {
	switch msg := msg.(type) {
	case ChildrenLoadedMsg:
		return t.handleLoaded(msg)
	case tea.KeyMsg:
		if !t.focus {
			return nil
		}
		switch {
		case key.Matches(msg, t.keys.Up):
			return t.Move(-1)
		case key.Matches(msg, t.keys.Down):
			return t.Move(1)
		case key.Matches(msg, t.keys.Expand):
			return t.Expand(t.Selected())
		case key.Matches(msg, t.keys.Collapse):
			return t.Collapse(t.Selected())
		case key.Matches(msg, t.keys.Home):
			return t.Move(-len(t.rows))
		case key.Matches(msg, t.keys.End):
			return t.Move(len(t.rows))
		case key.Matches(msg, t.keys.PageUp):
			return t.Move(-t.pageSize())
		case key.Matches(msg, t.keys.PageDown):
			return t.Move(t.pageSize())
		}
	case tea.MouseMsg:
		switch {
		case msg.Action == tea.MouseActionPress && msg.Button == tea.MouseButtonLeft:
			return t.Click(msg.Y)
		case msg.Button == tea.MouseButtonWheelUp:
			return t.Move(-1)
		case msg.Button == tea.MouseButtonWheelDown:
			return t.Move(1)
		}
	}
	return nil
}

// Expand opens n. Concrete children are shown immediately; pending children
// are fetched once, and repeated calls while the fetch runs do nothing.
func (t *Tree) Expand(n *Node) tea.Cmd {
	if t.err != nil || n == nil || n.Expanded {
		return nil
	}
	before := t.sel.Key
	cmd := t.open(n)
	if !n.Expanded {
		return cmd
	}
	t.refresh(before)
	return tea.Batch(cmd, t.selectionChanged())
}

// Collapse hides n's subtree. Fetched children stay cached.
func (t *Tree) Collapse(n *Node) tea.Cmd {
	if t.err != nil || n == nil || !n.Expanded {
		return nil
	}
	logger.Logf("collapse %s", n.key)
	before := t.sel.Key
	n.Expanded = false
	if t.refresh(before) {
		return t.selectionChanged()
	}
	return nil
}

// Toggle expands a collapsed node and collapses an expanded one.
func (t *Tree) Toggle(n *Node) tea.Cmd {
	if n == nil {
		return nil
	}
	if n.Expanded {
		return t.Collapse(n)
	}
	return t.Expand(n)
}

// Move shifts the cursor by delta rows.
func (t *Tree) Move(delta int) tea.Cmd {
	if t.err != nil || len(t.rows) == 0 {
		return nil
	}
	if t.restore != nil {
		t.restore.selected = ""
	}
	prev := t.sel.Key
	t.sel = t.sel.Move(t.rows, delta)
	t.scrollToCursor()
	if t.sel.Key != prev {
		return t.selectionChanged()
	}
	return nil
}

// Select moves the cursor to the visible node with key.
func (t *Tree) Select(k Key) (tea.Cmd, bool) {
	idx := IndexOf(t.rows, k)
	if idx < 0 {
		return nil, false
	}
	return t.Move(idx - t.sel.Index), true
}

// Click selects the row at screen line y and toggles it.
func (t *Tree) Click(y int) tea.Cmd {
	idx := t.RowAt(y)
	if idx < 0 {
		return nil
	}
	moveCmd := t.Move(idx - t.sel.Index)
	return tea.Batch(moveCmd, t.Toggle(t.rows[idx].Node))
}

// RowAt maps a screen line to a row index, or -1.
func (t *Tree) RowAt(y int) int {
	idx := t.offset + y
	if y < 0 || idx >= len(t.rows) {
		return -1
	}
	return idx
}

// Reload discards every cached child list and refetches from the root.
// Previously expanded nodes are re-expanded as they reappear and the
// selection returns to the same key once it is visible again.
func (t *Tree) Reload() tea.Cmd {
	if t.err != nil {
		return nil
	}
	state := &reloadState{expanded: t.expandedKeys(), selected: t.sel.Key}
	openRoot := t.root.Expanded || !t.root.Loaded()
	root, err := newNode(t.rootDesc, "", 0)
	if err != nil {
		t.fail(err)
		return nil
	}
	logger.Logf("reload, %d expanded keys, selected %s", len(state.expanded), state.selected)

	t.gen++
	t.inflight = make(map[*Node]struct{})
	t.root = root
	t.restore = state
	t.sel = Selection{}

	var cmd tea.Cmd
	if openRoot {
		cmd = t.open(root)
	}
	t.refresh(root.key)
	t.finishRestore()
	return tea.Batch(cmd, t.selectionChanged())
}

// Refresh recomputes rows without changing the model, keeping the selection.
func (t *Tree) Refresh() {
	if t.err != nil {
		return
	}
	t.refresh(t.sel.Key)
}

func (t *Tree) open(n *Node) tea.Cmd {
	switch c := n.children.(type) {
	case loaded:
		logger.Logf("expand %s (%d cached)", n.key, len(c))
		n.Expanded = true
		return tea.Batch(t.restoreExpansion(c)...)
	case unloaded:
		if _, busy := t.inflight[n]; busy {
			logger.Logf("expand %s ignored, fetch in flight", n.key)
			return nil
		}
		t.inflight[n] = struct{}{}
		logger.Logf("fetch %s", n.key)
		return t.fetch(n, c.produce)
	default:
		t.fail(invariantf("node %s has unsupported children %T", n.key, n.children))
		return nil
	}
}

func (t *Tree) fetch(n *Node, produce Producer) tea.Cmd {
	ctx, gen := t.ctx, t.gen
	return func() tea.Msg {
		ds, err := produce(ctx, n)
		return ChildrenLoadedMsg{node: n, gen: gen, children: ds, err: err}
	}
}

func (t *Tree) handleLoaded(msg ChildrenLoadedMsg) tea.Cmd {
	if msg.gen != t.gen || t.err != nil {
		logger.Logf("dropping stale result for %s", msg.node.key)
		return nil
	}
	n := msg.node
	delete(t.inflight, n)
	defer t.finishRestore()

	if msg.err != nil {
		err := appErrors.New(appErrors.CodeFetchFailed, fmt.Sprintf("expand %s", n.Label), msg.err)
		logger.Logf("fetch %s failed: %v", n.key, msg.err)
		if t.restore != nil {
			delete(t.restore.expanded, n.key)
		}
		t.refresh(t.sel.Key)
		if t.hooks.FetchFailed != nil {
			return t.hooks.FetchFailed(n, err)
		}
		return nil
	}

	kids, err := newChildren(msg.children, n.key, n.Depth+1)
	if err != nil {
		t.fail(err)
		return nil
	}
	logger.Logf("fetched %s: %d children", n.key, len(kids))
	before := t.sel.Key
	n.children = kids
	n.Expanded = true
	cmds := t.restoreExpansion(kids)
	t.refresh(before)
	cmds = append(cmds, t.selectionChanged())
	return tea.Batch(cmds...)
}

func (t *Tree) restoreExpansion(kids []*Node) []tea.Cmd {
	if t.restore == nil {
		return nil
	}
	var cmds []tea.Cmd
	for _, kid := range kids {
		if t.restore.expanded[kid.key] && !kid.Expanded {
			cmds = append(cmds, t.open(kid))
		}
	}
	return cmds
}

func (t *Tree) finishRestore() {
	if t.restore != nil && len(t.inflight) == 0 {
		t.restore = nil
	}
}

// refresh recomputes rows and resolves the cursor, reporting whether the
// selected node changed.
func (t *Tree) refresh(before Key) bool {
	rows, err := Flatten(t.root)
	if err != nil {
		t.fail(err)
		return false
	}
	t.rows = rows
	if t.restore != nil && t.restore.selected != "" {
		if idx := IndexOf(rows, t.restore.selected); idx >= 0 {
			t.sel = Capture(rows, idx)
			t.restore.selected = ""
			t.scrollToCursor()
			return t.sel.Key != before
		}
	}
	t.sel = Selection{Index: t.sel.Index, Key: before}.Resolve(rows)
	t.scrollToCursor()
	return t.sel.Key != before
}

func (t *Tree) expandedKeys() map[Key]bool {
	keys := make(map[Key]bool)
	var walk func(n *Node)
	walk = func(n *Node) {
		if n.Expanded {
			keys[n.key] = true
		}
		for _, kid := range n.Children() {
			walk(kid)
		}
	}
	walk(t.root)
	return keys
}

func (t *Tree) selectionChanged() tea.Cmd {
	if t.hooks.SelectionChanged == nil {
		return nil
	}
	n := t.Selected()
	if n == nil {
		return nil
	}
	return t.hooks.SelectionChanged(n)
}

func (t *Tree) fail(err error) {
	if t.err == nil {
		logger.Logf("invariant violation: %v", err)
		t.err = err
	}
}

// Err returns the invariant violation that stopped the tree, if any.
func (t *Tree) Err() error { return t.err }

// Root returns the root node.
func (t *Tree) Root() *Node { return t.root }

// Rows returns the current visible rows.
func (t *Tree) Rows() []Row { return t.rows }

// Cursor returns the selected row index.
func (t *Tree) Cursor() int { return t.sel.Index }

// Selected returns the selected node, or nil when there are no rows.
func (t *Tree) Selected() *Node {
	if t.sel.Index < 0 || t.sel.Index >= len(t.rows) {
		return nil
	}
	return t.rows[t.sel.Index].Node
}

// Fetching reports whether n has a producer call in flight.
func (t *Tree) Fetching(n *Node) bool {
	_, ok := t.inflight[n]
	return ok
}

// Busy reports whether any fetch is in flight.
func (t *Tree) Busy() bool { return len(t.inflight) > 0 }

// Find returns the installed node with key, visible or not.
func (t *Tree) Find(k Key) *Node {
	ids := k.IDs()
	if len(ids) == 0 || t.root == nil || ids[0] != t.root.ID {
		return nil
	}
	n := t.root
	for _, id := range ids[1:] {
		var next *Node
		for _, kid := range n.Children() {
			if kid.ID == id {
				next = kid
				break
			}
		}
		if next == nil {
			return nil
		}
		n = next
	}
	return n
}

// Walk visits every installed node in pre-order.
func (t *Tree) Walk(fn func(n *Node)) {
	var walk func(n *Node)
	walk = func(n *Node) {
		fn(n)
		for _, kid := range n.Children() {
			walk(kid)
		}
	}
	if t.root != nil {
		walk(t.root)
	}
}

// KeyMap returns the active bindings.
func (t *Tree) KeyMap() KeyMap { return t.keys }

// Focus enables keyboard handling.
func (t *Tree) Focus() { t.focus = true }

// Blur disables keyboard handling.
func (t *Tree) Blur() { t.focus = false }

// Focused reports whether the tree handles keys.
func (t *Tree) Focused() bool { return t.focus }
