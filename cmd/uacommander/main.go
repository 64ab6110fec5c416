package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"uacommander/internal/addrspace"
	"uacommander/internal/config"
	"uacommander/internal/debug"
	"uacommander/internal/ui"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

const closeTimeout = 5 * time.Second

func main() {
	if err := newRootCommand(defaultDeps()).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// deps holds the collaborators of the commands so tests can replace the
// server connection and the terminal program.
type deps struct {
	dial         func(context.Context, addrspace.OPCUAConfig) (addrspace.Client, error)
	openSnapshot func(context.Context, string) (addrspace.Client, error)
	builder      func(ui.Config) (*ui.App, error)
	factory      programFactory
	spinner      func() startupAnimator
	stderr       io.Writer
}

func defaultDeps() deps {
	return deps{
		dial: addrspace.DialOPCUA,
		openSnapshot: func(ctx context.Context, path string) (addrspace.Client, error) {
			snap, err := addrspace.OpenSnapshot(ctx, path)
			if err != nil {
				return nil, err
			}
			return snap, nil
		},
		builder: ui.NewApp,
		factory: func(app *ui.App) programRunner {
			return tea.NewProgram(app, tea.WithAltScreen(), tea.WithMouseCellMotion())
		},
		spinner: func() startupAnimator {
			return newStartupSpinner(os.Stderr, defaultSpinnerDelay)
		},
		stderr: os.Stderr,
	}
}

// flagKeys maps command line flags onto configuration keys. Only flags the
// user set explicitly override the configuration.
var flagKeys = map[string]string{
	"endpoint":       config.KeyEndpoint,
	"securityMode":   config.KeySecurityMode,
	"securityPolicy": config.KeySecurityPolicy,
	"userName":       config.KeyUserName,
	"password":       config.KeyPassword,
	"node":           config.KeyMonitorNode,
	"snapshot":       config.KeySnapshotPath,
	"watch":          config.KeySnapshotWatch,
	"output-format":  config.KeyOutputFormat,
	"debug":          config.KeyDebug,
}

func newRootCommand(d deps) *cobra.Command {
	root := &cobra.Command{
		Use:           "uacommander",
		Short:         "Browse the address space of an OPC UA server",
		Long:          "uacommander browses the address space of an OPC UA server or of a snapshot file, shows node attributes and monitors values.",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runRoot(cmd, d)
		},
	}

	pf := root.PersistentFlags()
	pf.StringP("endpoint", "e", config.DefaultEndpoint, "the end point to connect to")
	pf.StringP("securityMode", "s", "None", "the security mode (None, Sign, SignAndEncrypt)")
	pf.StringP("securityPolicy", "P", "None", "the policy mode (None, Basic128Rsa15, Basic256, Basic256Sha256)")
	pf.StringP("userName", "u", "", "specify the user name of a UserNameIdentityToken")
	pf.StringP("password", "p", "", "specify the password of a UserNameIdentityToken")
	pf.Bool("debug", false, "write a debug log to ~/.uacommander/debug.log")

	f := root.Flags()
	f.StringP("node", "n", "", "the nodeId of the value to monitor at start")
	f.String("snapshot", "", "browse a snapshot file instead of a live server")
	f.Bool("watch", true, "reload the tree when the snapshot file changes")
	f.String("output-format", config.DefaultOutputFormat, "help overlay style (rich, dark, light, plain)")

	root.AddCommand(newSnapshotCommand(d), newVersionCommand())
	return root
}

// collectOverrides returns the configuration overrides for every flag the
// user set on the command line.
func collectOverrides(flags *pflag.FlagSet) map[string]any {
	overrides := map[string]any{}
	flags.Visit(func(f *pflag.Flag) {
		key, ok := flagKeys[f.Name]
		if !ok {
			return
		}
		if f.Value.Type() == "bool" {
			overrides[key] = f.Value.String() == "true"
			return
		}
		overrides[key] = f.Value.String()
	})
	return overrides
}

// loadSettings applies the command line on top of the configuration files.
func loadSettings(cmd *cobra.Command) (config.Settings, error) {
	if err := config.ApplyOverrides(collectOverrides(cmd.Flags())); err != nil {
		return config.Settings{}, err
	}
	return config.Load()
}

func opcuaConfig(s config.Settings) addrspace.OPCUAConfig {
	queue := s.QueueSize
	if queue < 0 {
		queue = 0
	}
	return addrspace.OPCUAConfig{
		Endpoint:           s.Endpoint,
		SecurityMode:       s.SecurityMode,
		SecurityPolicy:     s.SecurityPolicy,
		UserName:           s.UserName,
		Password:           s.Password,
		PublishingInterval: s.PublishingInterval,
		SamplingInterval:   s.SamplingInterval,
		QueueSize:          uint32(queue), //nolint:gosec // G115: clamped above
	}
}

func runRoot(cmd *cobra.Command, d deps) error {
	settings, err := loadSettings(cmd)
	if err != nil {
		return err
	}
	if err := debug.Init(settings.Debug); err != nil {
		fmt.Fprintf(d.stderr, "Warning: debug log unavailable: %v\n", err)
	}
	defer debug.Close()

	var sp startupAnimator = noopAnimator{}
	if d.spinner != nil {
		sp = d.spinner()
	}
	sess, err := openSession(cmd.Context(), settings, d, sp)
	sp.Stop()
	if err != nil {
		return err
	}
	defer sess.close()

	cfg := ui.Config{
		Client:             sess.client,
		Source:             sess.source,
		BrowseTimeout:      settings.BrowseTimeout,
		AttributesDebounce: settings.AttributesDebounce,
		LogMaxLines:        settings.LogMaxLines,
		MonitorNode:        settings.MonitorNode,
		SnapshotEvents:     sess.events,
		OutputFormat:       settings.OutputFormat,
		Version:            Version,
	}
	return runProgram(cfg, d.builder, d.factory)
}

// session is an open address space source plus its optional file watcher.
type session struct {
	client  addrspace.Client
	source  string
	events  <-chan struct{}
	watcher *addrspace.SnapshotWatcher
}

func openSession(ctx context.Context, s config.Settings, d deps, reporter ui.StartupReporter) (*session, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	reporter.Stage(ui.StartupStageInit, "")

	if s.SnapshotPath != "" {
		reporter.Stage(ui.StartupStageOpeningSnapshot, s.SnapshotPath)
		client, err := d.openSnapshot(ctx, s.SnapshotPath)
		if err != nil {
			return nil, err
		}
		sess := &session{client: client, source: s.SnapshotPath}
		if s.SnapshotWatch {
			sess.watch(s.SnapshotPath)
		}
		reporter.Stage(ui.StartupStageReady, "")
		return sess, nil
	}

	reporter.Stage(ui.StartupStageConnecting, s.Endpoint)
	// The session keeps using ctx after the dial returns, so it must not
	// carry a deadline.
	client, err := d.dial(ctx, opcuaConfig(s))
	if err != nil {
		return nil, err
	}
	reporter.Stage(ui.StartupStageReady, "")
	return &session{client: client, source: s.Endpoint}, nil
}

// watch starts reloading on snapshot changes. A watcher that cannot start
// leaves the snapshot browsable without live reloads.
func (s *session) watch(path string) {
	w, err := addrspace.NewSnapshotWatcher(path, addrspace.DefaultWatchDebounce)
	if err == nil {
		err = w.Start()
	}
	if err != nil {
		debug.Logf("snapshot watch disabled: %v", err)
		if w != nil {
			w.Stop()
		}
		return
	}
	s.watcher = w
	s.events = w.Events()
}

func (s *session) close() {
	if s.watcher != nil {
		s.watcher.Stop()
	}
	ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
	defer cancel()
	if err := s.client.Close(ctx); err != nil {
		debug.Logf("close %s: %v", s.source, err)
	}
}

type programRunner interface {
	Run() (tea.Model, error)
}

type programFactory func(*ui.App) programRunner

func runProgram(cfg ui.Config, builder func(ui.Config) (*ui.App, error), factory programFactory) error {
	if builder == nil {
		return fmt.Errorf("app builder is nil")
	}
	app, err := builder(cfg)
	if err != nil {
		return fmt.Errorf("initialize UI: %w", err)
	}
	defer app.Close()
	if factory == nil {
		return fmt.Errorf("program factory is nil")
	}
	prog := factory(app)
	if prog == nil {
		return fmt.Errorf("program is nil")
	}
	if _, err := prog.Run(); err != nil {
		return fmt.Errorf("run UI: %w", err)
	}
	if err := app.Err(); err != nil {
		return fmt.Errorf("address space tree: %w", err)
	}
	return nil
}

type noopAnimator struct{}

func (noopAnimator) Stage(ui.StartupStage, string) {}
func (noopAnimator) Stop()                         {}
