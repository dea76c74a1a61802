// Package repo binds one open repository to its serial command lane.
//
// A Repository owns the two backends (go-git for reads, the git binary for
// mutations) and a queue that totally orders every operation against the
// repository. Derived state (HEAD, refs, status, graph entries) is cached on
// the handle and marked stale after each successful mutation, so reads stay
// cheap between writes without ever observing a half-applied one.
package repo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/arverne/gitscope/internal/git"
	"github.com/arverne/gitscope/internal/queue"
	"github.com/arverne/gitscope/internal/watch"
)

// ErrClosed reports an operation submitted after Close.
var ErrClosed = errors.New("repository is closed")

// Options tunes how a repository is opened.
type Options struct {
	// GitBin overrides the git executable used for mutations. Empty
	// means "git" from PATH.
	GitBin string
}

// Repository is the handle for one open repository. Exactly one exists per
// opened path; all access to the underlying repository funnels through its
// queue worker.
type Repository struct {
	root   string
	runner *git.Runner
	lib    *git.Library
	queue  *queue.Queue

	mu      sync.Mutex
	closed  bool
	fresh   bool
	gen     uint64
	snap    snapshot
	watcher *watch.Watcher
}

// Open locates the repository containing path and returns a handle for it.
// The git binary is verified against the minimum supported version once per
// process.
func Open(path string, opts Options) (*Repository, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	runner := &git.Runner{Bin: opts.GitBin, Dir: abs}
	ctx := context.Background()
	if err := git.CheckVersion(ctx, runner); err != nil {
		return nil, err
	}
	out, err := runner.Run(ctx, []string{"rev-parse", "--show-toplevel"}, nil)
	if err != nil {
		return nil, fmt.Errorf("locate repository from %s: %w", abs, git.TranslateError(err))
	}
	root := strings.TrimSpace(string(out.Stdout))
	if root == "" {
		return nil, fmt.Errorf("locate repository from %s: %w", abs, git.ErrNotFound)
	}
	runner.Dir = root
	lib, err := git.OpenLibrary(root)
	if err != nil {
		return nil, git.TranslateError(err)
	}
	r := &Repository{
		root:   root,
		runner: runner,
		lib:    lib,
		queue:  queue.New(filepath.Base(root)),
	}
	slog.Debug("repository opened", slog.String("root", root))
	return r, nil
}

// Root returns the top-level working directory of the repository.
func (r *Repository) Root() string { return r.root }

// Wait blocks until every operation submitted before the call has completed.
func (r *Repository) Wait() { r.queue.Wait() }

// Close stops the watcher, drains pending operations, and shuts the lane
// down. Operations submitted afterwards fail with ErrClosed. Safe to call
// more than once.
func (r *Repository) Close() {
	r.mu.Lock()
	alreadyClosed := r.closed
	r.closed = true
	w := r.watcher
	r.watcher = nil
	r.mu.Unlock()
	if w != nil {
		if err := w.Close(); err != nil {
			slog.Error("watcher close", slog.Any("error", err))
		}
	}
	r.queue.Shutdown()
	if !alreadyClosed {
		slog.Debug("repository closed", slog.String("root", r.root))
	}
}

// EnableWatch starts observing the repository on disk. Changes invalidate
// the caches and then invoke onChange, debounced by delay; a non-positive
// delay selects the watcher default. No-op when already watching.
func (r *Repository) EnableWatch(delay time.Duration, onChange func()) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrClosed
	}
	if r.watcher != nil {
		return nil
	}
	w, err := watch.New(r.root, delay, func() {
		r.invalidate()
		if onChange != nil {
			onChange()
		}
	})
	if err != nil {
		return err
	}
	r.watcher = w
	return nil
}

// DisableWatch stops the on-disk watcher, if running.
func (r *Repository) DisableWatch() {
	r.mu.Lock()
	w := r.watcher
	r.watcher = nil
	r.mu.Unlock()
	if w == nil {
		return
	}
	if err := w.Close(); err != nil {
		slog.Error("watcher close", slog.Any("error", err))
	}
}

func (r *Repository) isClosed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

// invalidate marks every cached read model stale. The next read recomputes
// them from the backends. Bumping the generation keeps a refresh that is
// already rebuilding from caching its pre-invalidation snapshot as fresh.
func (r *Repository) invalidate() {
	r.mu.Lock()
	r.fresh = false
	r.gen++
	r.mu.Unlock()
	slog.Debug("repository caches invalidated", slog.String("root", r.root))
}
