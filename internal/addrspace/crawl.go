package addrspace

import (
	"context"
	"sync"
	"time"

	appErrors "uacommander/internal/errors"

	"golang.org/x/sync/errgroup"
)

// DefaultCrawlConcurrency bounds parallel browse/read calls during a crawl.
const DefaultCrawlConcurrency = 8

// CrawlOptions controls Crawl.
type CrawlOptions struct {
	// Depth is the number of levels below the root to browse. Nodes at
	// Depth get attributes but no references. Zero means no limit.
	Depth int
	// Concurrency bounds parallel requests; zero uses DefaultCrawlConcurrency.
	Concurrency int
	// Timeout bounds each request when positive.
	Timeout time.Duration
	// Progress is called after every level with the running totals.
	Progress func(CrawlStats)
}

// CrawlStats summarizes a crawl.
type CrawlStats struct {
	Levels   int
	Nodes    int
	Browsed  int
	Failures int
}

type crawlItem struct {
	ref   Reference
	depth int
}

// Crawl walks the address space breadth first from the root and stores every
// node it reaches in w. A node that fails to browse or read is stored with
// what could be read and counted in Failures; only cancellation aborts.
func Crawl(ctx context.Context, c Client, w *SnapshotWriter, opts CrawlOptions) (CrawlStats, error) {
	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = DefaultCrawlConcurrency
	}

	var stats CrawlStats
	visited := map[string]struct{}{RootNodeID: {}}
	level := []crawlItem{{
		ref:   Reference{NodeID: RootNodeID, BrowseName: RootBrowseName, NodeClass: NodeClassObject},
		depth: 0,
	}}

	for len(level) > 0 {
		records := make([]NodeRecord, len(level))
		var mu sync.Mutex
		failures := 0

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(concurrency)
		for i, item := range level {
			g.Go(func() error {
				rec, failed := crawlNode(gctx, c, item, opts)
				records[i] = rec
				if failed > 0 {
					mu.Lock()
					failures += failed
					mu.Unlock()
				}
				return gctx.Err()
			})
		}
		if err := g.Wait(); err != nil {
			return stats, appErrors.New(appErrors.CodeSnapshotFailed, "crawl cancelled", err)
		}
		if err := ctx.Err(); err != nil {
			return stats, appErrors.New(appErrors.CodeSnapshotFailed, "crawl cancelled", err)
		}
		if err := w.PutNodes(ctx, records); err != nil {
			return stats, err
		}

		var next []crawlItem
		for i, rec := range records {
			stats.Nodes++
			if rec.Browsed {
				stats.Browsed++
			}
			for _, ref := range rec.References {
				if _, seen := visited[ref.NodeID]; seen {
					continue
				}
				visited[ref.NodeID] = struct{}{}
				next = append(next, crawlItem{ref: ref, depth: level[i].depth + 1})
			}
		}
		stats.Failures += failures
		stats.Levels++
		logger.Logf("crawl level %d: %d nodes, %d queued, %d failures", stats.Levels, len(level), len(next), failures)
		if opts.Progress != nil {
			opts.Progress(stats)
		}
		level = next
	}
	return stats, nil
}

func crawlNode(ctx context.Context, c Client, item crawlItem, opts CrawlOptions) (NodeRecord, int) {
	rec := NodeRecord{Reference: item.ref}
	failed := 0

	attrs, err := withTimeout(ctx, opts.Timeout, func(ctx context.Context) ([]Attribute, error) {
		return c.ReadAttributes(ctx, item.ref.NodeID)
	})
	if err != nil {
		logger.Logf("crawl read %s: %v", item.ref.NodeID, err)
		failed++
	} else {
		rec.Attributes = attrs
	}

	if opts.Depth > 0 && item.depth >= opts.Depth {
		return rec, failed
	}
	refs, err := withTimeout(ctx, opts.Timeout, func(ctx context.Context) ([]Reference, error) {
		return c.Browse(ctx, item.ref.NodeID)
	})
	if err != nil {
		logger.Logf("crawl browse %s: %v", item.ref.NodeID, err)
		return rec, failed + 1
	}
	rec.Browsed = true
	rec.References = dedupeReferences(refs)
	return rec, failed
}

func withTimeout[T any](ctx context.Context, timeout time.Duration, fn func(context.Context) (T, error)) (T, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return fn(ctx)
}

// dedupeReferences drops references without a NodeId and repeats of the
// same NodeId, keeping the first.
func dedupeReferences(refs []Reference) []Reference {
	seen := make(map[string]struct{}, len(refs))
	out := make([]Reference, 0, len(refs))
	for _, ref := range refs {
		if ref.NodeID == "" {
			continue
		}
		if _, dup := seen[ref.NodeID]; dup {
			continue
		}
		seen[ref.NodeID] = struct{}{}
		out = append(out, ref)
	}
	return out
}
