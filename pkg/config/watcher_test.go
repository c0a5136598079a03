package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfigFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config file: %v", err)
	}
}

func TestFileWatcherLoadInitial(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	writeConfigFile(t, path, "server:\n  port: 5601\n")

	d := NewDistributor(nil)
	w := NewFileWatcher(path, d)

	if err := w.LoadInitial(); err != nil {
		t.Fatalf("LoadInitial failed: %v", err)
	}

	snap := d.Latest()
	if snap == nil {
		t.Fatal("no snapshot published after LoadInitial")
	}
	var srv ServerConfig
	if err := snap.Decode("server", &srv); err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if srv.Port != 5601 {
		t.Errorf("server port = %d, want 5601", srv.Port)
	}
}

func TestFileWatcherLoadInitialMissingFile(t *testing.T) {
	d := NewDistributor(nil)
	w := NewFileWatcher(filepath.Join(t.TempDir(), "absent.yaml"), d)

	if err := w.LoadInitial(); err == nil {
		t.Error("expected error for missing config file")
	}
}

func TestFileWatcherRepublishesOnChange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	writeConfigFile(t, path, "server:\n  port: 5601\n")

	d := NewDistributor(nil)
	w := NewFileWatcher(path, d)

	if err := w.LoadInitial(); err != nil {
		t.Fatalf("LoadInitial failed: %v", err)
	}
	if err := w.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer w.Stop()

	got := make(chan *Snapshot, 4)
	sub := d.Subscribe(func(s *Snapshot) { got <- s })
	defer sub.Release()

	// Drain the replayed initial snapshot.
	if s := waitSnapshot(t, got); s.Revision() != 1 {
		t.Fatalf("replayed revision %d, want 1", s.Revision())
	}

	writeConfigFile(t, path, "server:\n  port: 8080\n")

	deadline := time.After(3 * time.Second)
	for {
		select {
		case s := <-got:
			var srv ServerConfig
			if err := s.Decode("server", &srv); err != nil {
				t.Fatalf("Decode failed: %v", err)
			}
			if srv.Port == 8080 {
				return
			}
		case <-deadline:
			t.Fatal("updated snapshot never delivered")
		}
	}
}

func TestFileWatcherReloadFailureKeepsLastGood(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	writeConfigFile(t, path, "server:\n  port: 5601\n")

	d := NewDistributor(nil)
	w := NewFileWatcher(path, d)

	if err := w.LoadInitial(); err != nil {
		t.Fatalf("LoadInitial failed: %v", err)
	}
	if err := w.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer w.Stop()

	writeConfigFile(t, path, "server: [not a map\n")

	deadline := time.After(3 * time.Second)
	for d.LastSourceError() == nil {
		select {
		case <-deadline:
			t.Fatal("source error never recorded for unparseable file")
		case <-time.After(10 * time.Millisecond):
		}
	}

	if d.Latest() == nil || d.Latest().Revision() != 1 {
		t.Error("last good snapshot lost after reload failure")
	}
}

func TestFileWatcherStopIdempotent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	writeConfigFile(t, path, "server:\n  port: 5601\n")

	w := NewFileWatcher(path, NewDistributor(nil))
	if err := w.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	w.Stop()
	w.Stop()

	// A never-started watcher tolerates Stop too.
	NewFileWatcher(path, NewDistributor(nil)).Stop()
}
