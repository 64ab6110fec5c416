package addrspace

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultWatchDebounce coalesces the burst of events a snapshot rewrite
// produces into one notification.
const DefaultWatchDebounce = 250 * time.Millisecond

// SnapshotWatcher reports when a snapshot file is rewritten or replaced.
type SnapshotWatcher struct {
	path     string
	watcher  *fsnotify.Watcher
	debounce time.Duration
	events   chan struct{}

	ctx    context.Context
	cancel context.CancelFunc

	mu    sync.Mutex
	timer *time.Timer
	done  chan struct{}
}

// NewSnapshotWatcher creates a watcher for path. The file's directory is
// watched so that replacing the file by rename is noticed.
func NewSnapshotWatcher(path string, debounce time.Duration) (*SnapshotWatcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve snapshot path: %w", err)
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}
	if debounce <= 0 {
		debounce = DefaultWatchDebounce
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &SnapshotWatcher{
		path:     filepath.Clean(abs),
		watcher:  watcher,
		debounce: debounce,
		events:   make(chan struct{}, 1),
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}, nil
}

// Events delivers one value per settled change. Changes that arrive while a
// value is still pending are merged into it.
func (w *SnapshotWatcher) Events() <-chan struct{} { return w.events }

// Start begins watching.
func (w *SnapshotWatcher) Start() error {
	if err := w.watcher.Add(filepath.Dir(w.path)); err != nil {
		return fmt.Errorf("watch snapshot directory: %w", err)
	}
	go w.watchLoop()
	return nil
}

// Stop shuts the watcher down and waits for its loop to exit.
func (w *SnapshotWatcher) Stop() {
	w.cancel()
	_ = w.watcher.Close()
	w.mu.Lock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.mu.Unlock()
	select {
	case <-w.done:
	case <-time.After(time.Second):
	}
}

func (w *SnapshotWatcher) watchLoop() {
	defer close(w.done)
	for {
		select {
		case <-w.ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			w.schedule()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			logger.Logf("snapshot watcher: %v", err)
		}
	}
}

// schedule restarts the debounce timer so the notification fires once the
// file has been quiet for the debounce interval.
func (w *SnapshotWatcher) schedule() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, w.notify)
}

func (w *SnapshotWatcher) notify() {
	if w.ctx.Err() != nil {
		return
	}
	select {
	case w.events <- struct{}{}:
	default:
	}
}
