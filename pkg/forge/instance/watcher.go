package instance

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher reloads an instance file when it changes on disk.
type Watcher struct {
	watcher *fsnotify.Watcher
	path    string
	reload  func(*Instance)
	stdout  io.Writer
	stderr  io.Writer

	// Track last change time to debounce rapid changes
	mu          sync.Mutex
	lastChange  time.Time
	fingerprint string
	reloads     uint64
}

// NewWatcher creates a watcher for path. reload receives each successfully
// loaded instance whose content differs from the previous one.
func NewWatcher(path string, reload func(*Instance), stdout, stderr io.Writer) (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		watcher: fsWatcher,
		path:    path,
		reload:  reload,
		stdout:  stdout,
		stderr:  stderr,
	}

	if inst, err := Load(path); err == nil {
		w.fingerprint = inst.Fingerprint()
	}

	return w, nil
}

// Start begins watching. The directory is watched rather than the file so
// that editors which replace the file on save are still seen.
func (w *Watcher) Start(ctx context.Context) error {
	dir := filepath.Dir(w.path)
	if err := w.watcher.Add(dir); err != nil {
		w.logError("failed to watch %s: %v", dir, err)
		return err
	}
	w.logInfo("watching instance: %s", w.path)

	go w.eventLoop(ctx)

	return nil
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}

// Reloads returns how many times the reload callback has run.
func (w *Watcher) Reloads() uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.reloads
}

// eventLoop processes file system events
func (w *Watcher) eventLoop(ctx context.Context) {
	// Debounce duration - wait for rapid changes to settle
	const debounce = 100 * time.Millisecond

	target := filepath.Clean(w.path)

	for {
		select {
		case <-ctx.Done():
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

			w.mu.Lock()
			if time.Since(w.lastChange) < debounce {
				w.mu.Unlock()
				continue
			}
			w.lastChange = time.Now()
			w.mu.Unlock()

			// Let the writer finish before reading.
			time.Sleep(debounce)
			w.handleChange()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logError("watcher error: %v", err)
		}
	}
}

func (w *Watcher) handleChange() {
	inst, err := Load(w.path)
	if err != nil {
		w.logError("reload failed: %v", err)
		return
	}
	if err := inst.Validate(); err != nil {
		w.logError("reloaded instance is invalid: %v", err)
		return
	}

	fp := inst.Fingerprint()
	w.mu.Lock()
	if fp == w.fingerprint {
		w.mu.Unlock()
		return
	}
	w.fingerprint = fp
	w.reloads++
	w.mu.Unlock()

	w.logInfo("instance changed: %s", w.path)
	w.reload(inst)
}

func (w *Watcher) logInfo(format string, args ...any) {
	if w.stdout != nil {
		fmt.Fprintf(w.stdout, "[WATCH] "+format+"\n", args...)
	}
}

func (w *Watcher) logError(format string, args ...any) {
	if w.stderr != nil {
		fmt.Fprintf(w.stderr, "[WATCH ERROR] "+format+"\n", args...)
	}
}
