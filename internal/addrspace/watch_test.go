package addrspace

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func startWatcher(t *testing.T, path string, debounce time.Duration) *SnapshotWatcher {
	t.Helper()
	w, err := NewSnapshotWatcher(path, debounce)
	if err != nil {
		t.Fatalf("NewSnapshotWatcher: %v", err)
	}
	if err := w.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(w.Stop)
	return w
}

func TestSnapshotWatcherFiresOnReplace(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "space.db")
	w := startWatcher(t, path, 20*time.Millisecond)

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, []byte("v1"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		t.Fatalf("rename: %v", err)
	}

	select {
	case <-w.Events():
	case <-time.After(5 * time.Second):
		t.Fatal("no event after replacing the snapshot")
	}
}

func TestSnapshotWatcherIgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	w := startWatcher(t, filepath.Join(dir, "space.db"), 20*time.Millisecond)

	if err := os.WriteFile(filepath.Join(dir, "other.db"), []byte("x"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	select {
	case <-w.Events():
		t.Fatal("unexpected event for another file")
	case <-time.After(300 * time.Millisecond):
	}
}

func TestSnapshotWatcherCoalescesBursts(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "space.db")
	w := startWatcher(t, path, 300*time.Millisecond)

	for i := 0; i < 5; i++ {
		if err := os.WriteFile(path, []byte{byte(i)}, 0o600); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	select {
	case <-w.Events():
	case <-time.After(5 * time.Second):
		t.Fatal("no event after writes")
	}
	select {
	case <-w.Events():
		t.Fatal("burst produced more than one event")
	case <-time.After(600 * time.Millisecond):
	}
}
