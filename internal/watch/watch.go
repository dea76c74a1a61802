// Package watch notifies about repository changes on disk.
//
// A Watcher observes the .git directory of a repository (falling back to
// the root itself for bare layouts) and collapses bursts of filesystem
// events into a single callback through a debouncer. Transient files
// written by git itself, such as *.lock, never trigger the callback.
package watch

import (
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/arverne/gitscope/internal/debounce"
)

// DefaultDebounceDelay is how long a Watcher waits after the last
// filesystem event before invoking its callback.
const DefaultDebounceDelay = 350 * time.Millisecond

// Watcher invokes a callback after repository files change on disk.
type Watcher struct {
	fs       *fsnotify.Watcher
	delay    time.Duration
	onChange func()

	mu       sync.Mutex
	closed   bool
	debounce *debounce.Debouncer
}

// New starts watching the repository rooted at root and arranges for
// onChange to run, debounced by delay, whenever relevant files change.
// A non-positive delay selects DefaultDebounceDelay.
func New(root string, delay time.Duration, onChange func()) (*Watcher, error) {
	if root == "" {
		return nil, errors.New("watch: empty repository root")
	}
	if delay <= 0 {
		delay = DefaultDebounceDelay
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("fsnotify: %w", err)
	}
	for path := range watchPaths(root) {
		slog.Debug("adding path to FS watcher", slog.String("path", path))
		if err := fsw.Add(path); err != nil {
			err := errors.Join(err, fsw.Close())
			return nil, fmt.Errorf("watch %s: %w", path, err)
		}
	}
	w := &Watcher{
		fs:       fsw,
		delay:    delay,
		onChange: onChange,
	}
	go w.loop()
	return w, nil
}

// Close stops the watcher and cancels any pending callback. It is safe
// to call more than once.
func (w *Watcher) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true
	if w.debounce != nil {
		w.debounce.Stop()
	}
	return w.fs.Close()
}

func (w *Watcher) loop() {
	for {
		select {
		case ev, ok := <-w.fs.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			if shouldIgnorePath(ev.Name) {
				continue
			}
			slog.Debug("fsnotify event",
				slog.String("op", ev.Op.String()),
				slog.String("path", ev.Name),
			)
			w.schedule()
		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			slog.Error("fsnotify error", slog.Any("error", err))
		}
	}
}

// schedule arms the callback debouncer, building it on the first relevant
// event.
func (w *Watcher) schedule() {
	deb := func() *debounce.Debouncer {
		w.mu.Lock()
		defer w.mu.Unlock()
		if w.closed {
			return nil
		}
		return debounce.Ensure(&w.debounce, w.delay, w.onChange)
	}()
	if deb == nil {
		return
	}
	deb.Trigger()
}

// watchPaths yields the directories to observe for the repository at
// root. fsnotify does not recurse, so loose ref directories are added
// alongside the .git directory when they exist.
func watchPaths(root string) iter.Seq[string] {
	uniquePaths := map[string]struct{}{}
	appendUnique := func(p string) {
		if info, err := os.Stat(p); err == nil && info.IsDir() {
			uniquePaths[p] = struct{}{}
		}
	}
	gitDir := filepath.Join(root, ".git")
	if info, err := os.Stat(gitDir); err == nil && info.IsDir() {
		appendUnique(gitDir)
		appendUnique(filepath.Join(gitDir, "refs", "heads"))
		appendUnique(filepath.Join(gitDir, "refs", "tags"))
		return maps.Keys(uniquePaths)
	}
	uniquePaths[root] = struct{}{}
	return maps.Keys(uniquePaths)
}

func shouldIgnorePath(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	return ext == ".lock" || ext == ".ipc"
}
