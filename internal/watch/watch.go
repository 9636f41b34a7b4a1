// Package watch reports debounced changes to a single file.
package watch

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/thoth-viewer/thoth/internal/logging"
)

var watchLog = logging.ForComponent(logging.CompWatch)

// DefaultDebounce coalesces bursts of writes into one notification.
const DefaultDebounce = 300 * time.Millisecond

// Watcher signals on Changes after path is written or replaced. The parent
// directory is watched so atomic saves (write temp, rename over) are seen.
type Watcher struct {
	path     string
	debounce time.Duration
	watcher  *fsnotify.Watcher
	changes  chan struct{}
	done     chan struct{}

	mu    sync.Mutex
	timer *time.Timer

	closeOnce sync.Once
	wg        sync.WaitGroup
}

// New starts watching path. A non-positive debounce uses DefaultDebounce.
func New(path string, debounce time.Duration) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("watch: resolve %s: %w", path, err)
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watch: create fsnotify watcher: %w", err)
	}
	if err := fw.Add(filepath.Dir(abs)); err != nil {
		fw.Close()
		return nil, fmt.Errorf("watch: add %s: %w", filepath.Dir(abs), err)
	}

	w := &Watcher{
		path:     filepath.Clean(abs),
		debounce: debounce,
		watcher:  fw,
		changes:  make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
	w.wg.Add(1)
	go w.loop()
	watchLog.Debug("watch_started", slog.String("path", w.path), slog.Duration("debounce", debounce))
	return w, nil
}

// Changes delivers at most one pending notification; reads never block
// the watcher.
func (w *Watcher) Changes() <-chan struct{} {
	return w.changes
}

// Path returns the absolute path being watched.
func (w *Watcher) Path() string {
	return w.path
}

func (w *Watcher) loop() {
	defer w.wg.Done()
	for {
		select {
		case <-w.done:
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			w.schedule()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			watchLog.Warn("watch_error", slog.String("path", w.path), slog.String("error", err.Error()))
		}
	}
}

func (w *Watcher) schedule() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, w.notify)
}

func (w *Watcher) notify() {
	select {
	case <-w.done:
		return
	default:
	}
	select {
	case w.changes <- struct{}{}:
		watchLog.Debug("file_changed", slog.String("path", w.path))
	default:
	}
}

// Close stops the watcher. Pending notifications are dropped.
func (w *Watcher) Close() error {
	var err error
	w.closeOnce.Do(func() {
		close(w.done)
		w.mu.Lock()
		if w.timer != nil {
			w.timer.Stop()
		}
		w.mu.Unlock()
		err = w.watcher.Close()
		w.wg.Wait()
	})
	return err
}
