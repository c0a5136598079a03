package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"github.com/switchyard-io/switchyard/internal/logger"
)

// FileWatcher feeds a Distributor from a configuration file on disk.
//
// LoadInitial reads and publishes the file once; Start then watches the
// file's parent directory and republishes the full settings tree on every
// change. Watching the directory rather than the file itself survives
// atomic replacement (write to temp file, rename over the original), which
// is how most editors and config management tools write files.
//
// Read or parse failures after the initial load are reported through
// Distributor.RecordSourceError and do not stop the watcher: consumers
// keep the last good snapshot.
type FileWatcher struct {
	path        string
	distributor *Distributor

	mu      sync.Mutex
	watcher *fsnotify.Watcher
	stopCh  chan struct{}
	done    chan struct{}
	started bool
}

// NewFileWatcher creates a watcher for the given config file (not yet started).
func NewFileWatcher(path string, d *Distributor) *FileWatcher {
	return &FileWatcher{
		path:        path,
		distributor: d,
	}
}

// LoadInitial reads the file and publishes the first snapshot. Unlike
// subsequent reloads, a failure here is returned to the caller: without a
// first snapshot nothing downstream can start.
func (w *FileWatcher) LoadInitial() error {
	snap, err := w.read()
	if err != nil {
		return fmt.Errorf("initial config load: %w", err)
	}
	w.distributor.Publish(snap)
	return nil
}

// Start begins watching the config file for changes.
func (w *FileWatcher) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.started {
		return fmt.Errorf("file watcher already started")
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create file watcher: %w", err)
	}

	dir := filepath.Dir(w.path)
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return fmt.Errorf("watch %s: %w", dir, err)
	}

	w.watcher = watcher
	w.stopCh = make(chan struct{})
	w.done = make(chan struct{})
	w.started = true

	go w.watchLoop()

	logger.Info("Config file watcher started", "path", w.path)
	return nil
}

// Stop stops the watcher and waits for the watch goroutine to exit.
// Safe to call multiple times or on a watcher that was never started.
func (w *FileWatcher) Stop() {
	w.mu.Lock()
	if !w.started {
		w.mu.Unlock()
		return
	}
	w.started = false
	close(w.stopCh)
	done := w.done
	w.mu.Unlock()

	<-done
}

func (w *FileWatcher) watchLoop() {
	defer close(w.done)
	defer w.watcher.Close()

	target := filepath.Clean(w.path)

	for {
		select {
		case <-w.stopCh:
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			w.reload()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.distributor.RecordSourceError(fmt.Errorf("config watch: %w", err))
		}
	}
}

// reload re-reads the file and publishes a fresh snapshot. Failures are
// recorded as source errors; the last good snapshot stays current.
func (w *FileWatcher) reload() {
	snap, err := w.read()
	if err != nil {
		w.distributor.RecordSourceError(fmt.Errorf("config reload: %w", err))
		return
	}
	logger.Info("Config file changed, republishing", "path", w.path)
	w.distributor.Publish(snap)
}

// read parses the config file into a snapshot of the full settings tree.
func (w *FileWatcher) read() (*Snapshot, error) {
	if _, err := os.Stat(w.path); err != nil {
		return nil, err
	}

	v := viper.New()
	v.SetConfigFile(w.path)
	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	return NewSnapshot(v.AllSettings()), nil
}
