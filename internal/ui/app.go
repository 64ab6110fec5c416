package ui

import (
	"context"
	"time"

	"uacommander/internal/addrspace"
	appErrors "uacommander/internal/errors"
	"uacommander/internal/tree"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
)

const (
	defaultAttributesDebounce = 100 * time.Millisecond
	defaultLogMaxLines        = 500
	minTreeWidth              = 24
	minPaneHeight             = 3
)

// pane identifies a focusable area of the screen.
type pane int

const (
	paneTree pane = iota
	paneAttributes
	paneMonitored
	paneInfo
	paneCount
)

// Config configures the UI application.
type Config struct {
	Client addrspace.Client
	// Source names the endpoint or snapshot being browsed, for the header.
	Source             string
	BrowseTimeout      time.Duration
	AttributesDebounce time.Duration
	LogMaxLines        int
	// MonitorNode is monitored as soon as the UI starts.
	MonitorNode string
	// SnapshotEvents triggers a tree reload on every receive.
	SnapshotEvents <-chan struct{}
	// Clipboard defaults to the system clipboard.
	Clipboard    func(string) error
	OutputFormat string
	Version      string
}

// App implements the Bubble Tea model for the commander.
type App struct {
	client addrspace.Client
	tree   *tree.Tree
	keys   KeyMap

	focus     pane
	attrs     *attributePane
	monitored *monitoredPane
	info      *infoPane
	values    map[string]string
	spinner   spinner.Model

	attrSeq        int
	debounce       time.Duration
	timeout        time.Duration
	monitorNode    string
	snapshotEvents <-chan struct{}
	clipboard      func(string) error
	copied         string

	showHelp     bool
	outputFormat string

	source  string
	version string
	width   int
	height  int
	ready   bool

	err    error
	ctx    context.Context
	cancel context.CancelFunc
}

// NewApp creates the application around an address space client.
func NewApp(cfg Config) (*App, error) {
	if cfg.Client == nil {
		return nil, appErrors.New(appErrors.CodeNotConnected, "no address space client", nil)
	}
	if cfg.AttributesDebounce < 0 {
		cfg.AttributesDebounce = 0
	} else if cfg.AttributesDebounce == 0 {
		cfg.AttributesDebounce = defaultAttributesDebounce
	}
	if cfg.LogMaxLines <= 0 {
		cfg.LogMaxLines = defaultLogMaxLines
	}
	if cfg.Clipboard == nil {
		cfg.Clipboard = clipboard.WriteAll
	}

	ctx, cancel := context.WithCancel(context.Background())
	sp := spinner.New()
	sp.Spinner = spinner.MiniDot
	sp.Style = styleSpinner

	app := &App{
		client:         cfg.Client,
		keys:           DefaultKeyMap(),
		focus:          paneTree,
		attrs:          newAttributePane(),
		monitored:      newMonitoredPane(),
		info:           newInfoPane(cfg.LogMaxLines),
		values:         make(map[string]string),
		spinner:        sp,
		debounce:       cfg.AttributesDebounce,
		timeout:        cfg.BrowseTimeout,
		monitorNode:    cfg.MonitorNode,
		snapshotEvents: cfg.SnapshotEvents,
		clipboard:      cfg.Clipboard,
		outputFormat:   cfg.OutputFormat,
		source:         cfg.Source,
		version:        cfg.Version,
		ctx:            ctx,
		cancel:         cancel,
	}

	t, err := tree.New(addrspace.RootDescriptor(cfg.Client, cfg.BrowseTimeout),
		tree.WithContext(ctx),
		tree.WithHooks(tree.Hooks{
			SelectionChanged: app.onSelectionChanged,
			FetchFailed:      app.onFetchFailed,
		}),
		tree.WithLabelFunc(app.label),
	)
	if err != nil {
		cancel()
		return nil, err
	}
	app.tree = t
	app.info.Append(cfg.Client.Describe()...)
	return app, nil
}

func (m *App) Init() tea.Cmd {
	cmds := []tea.Cmd{
		m.tree.Init(),
		m.spinner.Tick,
		waitForChange(m.client.Changes()),
		waitForSnapshotChange(m.snapshotEvents),
	}
	if m.monitorNode != "" {
		cmds = append(cmds, monitorCmd(m.ctx, m.client, m.monitorNode, m.monitorNode))
	}
	return tea.Batch(cmds...)
}

// Err returns the error that stopped the application, if any.
func (m *App) Err() error { return m.err }

// Close cancels outstanding requests started by the UI.
func (m *App) Close() { m.cancel() }

// Tree exposes the address space tree.
func (m *App) Tree() *tree.Tree { return m.tree }

func (m *App) label(n *tree.Node) string {
	return addrspace.Label(n, m.values[n.ID])
}

func (m *App) onSelectionChanged(n *tree.Node) tea.Cmd {
	m.attrSeq++
	m.attrs.Loading(n.ID)
	return scheduleAttributes(m.attrSeq, n.ID, m.debounce)
}

func (m *App) onFetchFailed(n *tree.Node, err error) tea.Cmd {
	m.info.Append("browse " + n.ID + " failed: " + err.Error())
	return nil
}

// selectedInfo returns the address space data of the selected node.
func (m *App) selectedInfo() *addrspace.NodeInfo {
	return addrspace.Info(m.tree.Selected())
}

// checkTree stops the program once the tree has reported an invariant
// violation.
func (m *App) checkTree(cmd tea.Cmd) tea.Cmd {
	if err := m.tree.Err(); err != nil && m.err == nil {
		m.err = err
		m.info.Append("fatal: " + err.Error())
		m.cancel()
		return tea.Quit
	}
	return cmd
}

func (m *App) setFocus(p pane) {
	m.focus = p
	if p == paneTree {
		m.tree.Focus()
	} else {
		m.tree.Blur()
	}
	if p == paneMonitored {
		m.monitored.Focus()
	} else {
		m.monitored.Blur()
	}
}
