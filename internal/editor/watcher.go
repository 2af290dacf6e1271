package editor

import (
	"fmt"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/Faultbox/shaderbench/internal/logger"
)

// Watcher reports changes to registered files. Directories are watched
// rather than files so editors that save by rename keep being tracked.
type Watcher struct {
	watch *fsnotify.Watcher
	done  chan struct{}
	wg    sync.WaitGroup
	log   *zap.Logger

	mu      sync.Mutex
	files   map[string]bool
	dirs    map[string]bool
	pending []string
}

// NewWatcher starts a watcher with no files.
func NewWatcher() (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("file watcher: %w", err)
	}
	w := &Watcher{
		watch: fw,
		done:  make(chan struct{}),
		log:   logger.Named("watcher"),
		files: make(map[string]bool),
		dirs:  make(map[string]bool),
	}
	w.wg.Add(1)
	go w.run()
	return w, nil
}

func clean(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return filepath.Clean(path)
}

// Add registers a file. Its directory must exist.
func (w *Watcher) Add(path string) error {
	path = clean(path)
	dir := filepath.Dir(path)

	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.dirs[dir] {
		if err := w.watch.Add(dir); err != nil {
			return fmt.Errorf("watch %s: %w", dir, err)
		}
		w.dirs[dir] = true
	}
	w.files[path] = true
	return nil
}

func (w *Watcher) run() {
	defer w.wg.Done()
	for {
		select {
		case <-w.done:
			return
		case ev, ok := <-w.watch.Events:
			if !ok {
				return
			}
			if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) || ev.Has(fsnotify.Rename) {
				w.notify(ev.Name)
			}
		case err, ok := <-w.watch.Errors:
			if !ok {
				return
			}
			w.log.Warn("watch error", zap.Error(err))
		}
	}
}

// notify queues a change unless the file is unknown or already queued.
func (w *Watcher) notify(name string) {
	name = clean(name)

	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.files[name] {
		return
	}
	for _, p := range w.pending {
		if p == name {
			return
		}
	}
	w.pending = append(w.pending, name)
}

// Poll returns the files changed since the last Poll, each once, in the
// order they first changed. It never blocks.
func (w *Watcher) Poll() []string {
	w.mu.Lock()
	defer w.mu.Unlock()

	out := w.pending
	w.pending = nil
	return out
}

// Close stops watching.
func (w *Watcher) Close() error {
	close(w.done)
	err := w.watch.Close()
	w.wg.Wait()
	return err
}
