package repo

import (
	"context"
	"log/slog"
	"time"

	"github.com/arverne/gitscope/internal/git"
	"github.com/arverne/gitscope/internal/graph"
)

// Entry is one rendered history row: the commit, its dot position, and the
// line segments crossing the row. Entries are handed out by value and must
// not be mutated by consumers.
type Entry struct {
	Commit     git.Commit
	Column     int
	ColorIndex int
	Lines      []graph.Line
	Labels     []string
}

// snapshot holds every cached read model. It is rebuilt as a whole on the
// queue worker whenever a read finds it stale.
type snapshot struct {
	headHash string
	headName string
	headOK   bool
	refs     []git.Ref
	stashes  []git.Stash
	status   git.WorkingTreeState
	entries  []Entry
}

// Head reports the current HEAD commit hash and symbolic name. ok is false
// on an unborn branch.
func (r *Repository) Head() (hash, name string, ok bool, err error) {
	snap, err := r.currentSnapshot()
	if err != nil {
		return "", "", false, err
	}
	return snap.headHash, snap.headName, snap.headOK, nil
}

// Refs returns every branch, remote branch, and tag, sorted by kind then
// name.
func (r *Repository) Refs() ([]git.Ref, error) {
	snap, err := r.currentSnapshot()
	if err != nil {
		return nil, err
	}
	return append([]git.Ref(nil), snap.refs...), nil
}

// Stashes returns the stash stack, newest first.
func (r *Repository) Stashes() ([]git.Stash, error) {
	snap, err := r.currentSnapshot()
	if err != nil {
		return nil, err
	}
	return append([]git.Stash(nil), snap.stashes...), nil
}

// Status reports the per-file staging and worktree state.
func (r *Repository) Status() (git.WorkingTreeState, error) {
	snap, err := r.currentSnapshot()
	if err != nil {
		return git.WorkingTreeState{}, err
	}
	return snap.status, nil
}

// CommitEntries returns the laid-out history rows, newest first, across all
// refs. offset skips rows from the top; limit caps how many are returned,
// with zero or negative meaning the rest.
func (r *Repository) CommitEntries(offset, limit int) ([]Entry, error) {
	snap, err := r.currentSnapshot()
	if err != nil {
		return nil, err
	}
	entries := snap.entries
	if offset < 0 {
		offset = 0
	}
	if offset >= len(entries) {
		return nil, nil
	}
	entries = entries[offset:]
	if limit > 0 && limit < len(entries) {
		entries = entries[:limit]
	}
	return append([]Entry(nil), entries...), nil
}

// Log returns every commit reachable from the given refs (HEAD when none),
// each exactly once, in no particular order.
func (r *Repository) Log(refs ...string) ([]git.Commit, error) {
	var commits []git.Commit
	err := r.readOnLane("log", func() error {
		var err error
		commits, err = r.lib.Commits(refs...)
		return err
	})
	if err != nil {
		return nil, err
	}
	return commits, nil
}

// CommitDiff returns the commit header and unified diff of rev against its
// primary parent.
func (r *Repository) CommitDiff(rev string) (string, error) {
	var text string
	err := r.readOnLane("commit diff", func() error {
		var err error
		text, err = r.lib.CommitDiff(rev)
		return err
	})
	if err != nil {
		return "", err
	}
	return text, nil
}

// WorktreeDiff returns the unified diff of local changes: the index against
// HEAD when staged, the working tree against HEAD otherwise.
func (r *Repository) WorktreeDiff(staged bool) (string, error) {
	var text string
	err := r.readOnLane("worktree diff", func() error {
		var err error
		text, err = r.lib.WorktreeDiff(staged)
		return err
	})
	if err != nil {
		return "", err
	}
	return text, nil
}

// currentSnapshot returns the cached read models, rebuilding them on the
// queue worker first when stale. A fresh snapshot is served without touching
// the lane.
//
// The rebuilt snapshot is cached inside the refresh task itself, so the
// store is ordered on the lane against every mutation's invalidate. The
// generation check covers invalidations arriving off the lane (the watcher):
// a snapshot built before one is still returned, but never cached as fresh.
func (r *Repository) currentSnapshot() (snapshot, error) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return snapshot{}, ErrClosed
	}
	if r.fresh {
		snap := r.snap
		r.mu.Unlock()
		return snap, nil
	}
	r.mu.Unlock()

	var snap snapshot
	err := r.readOnLane("refresh", func() error {
		r.mu.Lock()
		if r.fresh {
			// A refresh queued ahead of this one already published.
			snap = r.snap
			r.mu.Unlock()
			return nil
		}
		gen := r.gen
		r.mu.Unlock()

		built, err := r.buildSnapshot()
		if err != nil {
			return err
		}
		snap = built

		r.mu.Lock()
		if r.gen == gen {
			r.snap = built
			r.fresh = true
		}
		r.mu.Unlock()
		return nil
	})
	if err != nil {
		return snapshot{}, err
	}
	return snap, nil
}

// buildSnapshot recomputes every read model from the backends. Runs on the
// queue worker only. The graph is rebuilt from scratch each time; history
// rewrites invalidate prior column assignments wholesale, so nothing is
// patched incrementally.
func (r *Repository) buildSnapshot() (snapshot, error) {
	start := time.Now()
	var snap snapshot

	hash, name, ok, err := r.lib.Head()
	if err != nil {
		return snap, err
	}
	snap.headHash, snap.headName, snap.headOK = hash, name, ok

	refs, err := r.lib.ListRefs()
	if err != nil {
		return snap, err
	}
	snap.refs = refs

	stashes, err := git.ListStashes(context.Background(), r.runner)
	if err != nil {
		return snap, err
	}
	snap.stashes = stashes

	status, err := r.lib.Status()
	if err != nil {
		return snap, err
	}
	snap.status = status

	tips := historyTips(refs, hash, ok)
	if len(tips) > 0 {
		commits, err := r.lib.Commits(tips...)
		if err != nil {
			return snap, err
		}
		entries, err := layoutEntries(commits, git.BranchLabels(refs, hash, name))
		if err != nil {
			return snap, err
		}
		snap.entries = entries
	}

	slog.Debug("snapshot rebuilt",
		slog.String("root", r.root),
		slog.Int("entries", len(snap.entries)),
		slog.Duration("elapsed", time.Since(start)),
	)
	return snap, nil
}

// historyTips collects the distinct commit hashes history is walked from:
// every ref plus HEAD when born.
func historyTips(refs []git.Ref, headHash string, headOK bool) []string {
	seen := map[string]struct{}{}
	var tips []string
	add := func(hash string) {
		if hash == "" {
			return
		}
		if _, dup := seen[hash]; dup {
			return
		}
		seen[hash] = struct{}{}
		tips = append(tips, hash)
	}
	if headOK {
		add(headHash)
	}
	for _, ref := range refs {
		add(ref.Hash)
	}
	return tips
}

// layoutEntries runs the graph builder over the commits and joins the
// resulting rows back with their commit data and decorations.
func layoutEntries(commits []git.Commit, labels map[string][]string) ([]Entry, error) {
	nodes := make([]graph.Node, 0, len(commits))
	byOID := make(map[string]git.Commit, len(commits))
	for _, c := range commits {
		nodes = append(nodes, graph.Node{
			OID:     c.Hash,
			Parents: c.ParentHashes,
			When:    c.Committer.When,
		})
		byOID[c.Hash] = c
	}
	rows, err := graph.Build(nodes)
	if err != nil {
		return nil, err
	}
	entries := make([]Entry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, Entry{
			Commit:     byOID[row.Node.OID],
			Column:     row.Column,
			ColorIndex: row.ColorIndex,
			Lines:      row.Lines,
			Labels:     labels[row.Node.OID],
		})
	}
	return entries, nil
}
