package main

import (
	"context"
	"fmt"
	"io"

	"uacommander/internal/addrspace"
	"uacommander/internal/debug"
	"uacommander/internal/ui"

	"github.com/spf13/cobra"
)

type snapshotOptions struct {
	out         string
	depth       int
	concurrency int
}

func newSnapshotCommand(d deps) *cobra.Command {
	opts := &snapshotOptions{}
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Crawl the server address space into a snapshot file",
		Long: "snapshot browses the address space breadth first from RootFolder and stores " +
			"every node, reference and attribute in a SQLite file that can be browsed " +
			"offline with --snapshot.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSnapshot(cmd, d, *opts)
		},
	}
	cmd.Flags().StringVarP(&opts.out, "out", "o", "", "snapshot file to write")
	cmd.Flags().IntVar(&opts.depth, "depth", 0, "levels below RootFolder to browse (0 for all)")
	cmd.Flags().IntVar(&opts.concurrency, "concurrency", addrspace.DefaultCrawlConcurrency, "parallel requests to the server")
	_ = cmd.MarkFlagRequired("out")
	return cmd
}

func runSnapshot(cmd *cobra.Command, d deps, opts snapshotOptions) error {
	if opts.depth < 0 {
		return fmt.Errorf("--depth must not be negative, got %d", opts.depth)
	}
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
	defer sp.Stop()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	// A snapshot is always taken from the live server.
	settings.SnapshotPath = ""
	if settings.Endpoint == "" {
		return fmt.Errorf("an endpoint is required to take a snapshot")
	}
	sess, err := openSession(ctx, settings, d, sp)
	if err != nil {
		return err
	}
	defer sess.close()

	stats, err := crawlToFile(ctx, sess.client, settings.Endpoint, addrspace.CrawlOptions{
		Depth:       opts.depth,
		Concurrency: opts.concurrency,
		Timeout:     settings.BrowseTimeout,
		Progress: func(s addrspace.CrawlStats) {
			sp.Stage(ui.StartupStageCrawling, fmt.Sprintf("level %d, %d nodes", s.Levels, s.Nodes))
		},
	}, opts.out)
	sp.Stop()
	if err != nil {
		return err
	}
	printCrawlStats(cmd.OutOrStdout(), opts.out, stats)
	return nil
}

// crawlToFile writes a complete snapshot of c to path. The previous file,
// if any, is only replaced when the crawl succeeds.
func crawlToFile(ctx context.Context, c addrspace.Client, endpoint string, opts addrspace.CrawlOptions, path string) (addrspace.CrawlStats, error) {
	w, err := addrspace.CreateSnapshot(ctx, path, endpoint)
	if err != nil {
		return addrspace.CrawlStats{}, err
	}
	stats, err := addrspace.Crawl(ctx, c, w, opts)
	if err != nil {
		w.Abort()
		return stats, err
	}
	if err := w.Commit(); err != nil {
		w.Abort()
		return stats, err
	}
	return stats, nil
}

func printCrawlStats(w io.Writer, path string, stats addrspace.CrawlStats) {
	_, _ = fmt.Fprintf(w, "Wrote %s\n", path)
	_, _ = fmt.Fprintf(w, "  nodes:    %d\n", stats.Nodes)
	_, _ = fmt.Fprintf(w, "  browsed:  %d\n", stats.Browsed)
	_, _ = fmt.Fprintf(w, "  levels:   %d\n", stats.Levels)
	if stats.Failures > 0 {
		_, _ = fmt.Fprintf(w, "  failures: %d (see --debug log)\n", stats.Failures)
	}
}
