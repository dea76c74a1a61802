package repo

import (
	"context"
	"fmt"
)

// The typed mutating vocabulary. Every operation builds an argument vector
// for the git binary, funnels it through performWriting, and passes textual
// payloads (commit messages, tag messages, patches) on stdin so arbitrary
// content never hits the command line.

// Commit records the staged changes with the given message. amend replaces
// the current HEAD commit instead of adding a new one.
func (r *Repository) Commit(ctx context.Context, message string, amend bool) error {
	args := []string{"commit", "-F", "-"}
	if amend {
		args = append(args, "--amend")
	}
	return r.performWriting("commit", func() error {
		_, err := r.runner.Run(ctx, args, []byte(message))
		return err
	})
}

// Checkout switches the working tree to rev. An unknown rev fails with
// ErrNotFound, decorated with the closest known ref name when one is near.
func (r *Repository) Checkout(ctx context.Context, rev string) error {
	return r.performWriting("checkout", func() error {
		_, err := r.runner.Run(ctx, []string{"checkout", rev}, nil)
		return r.suggestRef(err, rev)
	})
}

// CreateBranch creates a branch at startPoint, or at HEAD when startPoint
// is empty. The current branch is left checked out.
func (r *Repository) CreateBranch(ctx context.Context, name, startPoint string) error {
	args := []string{"branch", name}
	if startPoint != "" {
		args = append(args, startPoint)
	}
	return r.performWriting("branch create", func() error {
		_, err := r.runner.Run(ctx, args, nil)
		return err
	})
}

// DeleteBranch deletes a local branch. force discards unmerged commits.
func (r *Repository) DeleteBranch(ctx context.Context, name string, force bool) error {
	flag := "-d"
	if force {
		flag = "-D"
	}
	return r.performWriting("branch delete", func() error {
		_, err := r.runner.Run(ctx, []string{"branch", flag, name}, nil)
		return err
	})
}

// CreateTag tags rev (HEAD when empty). A non-empty message produces an
// annotated tag with the message delivered on stdin; otherwise the tag is
// lightweight.
func (r *Repository) CreateTag(ctx context.Context, name, rev, message string) error {
	var args []string
	var stdin []byte
	if message != "" {
		args = []string{"tag", "-a", "-F", "-", name}
		stdin = []byte(message)
	} else {
		args = []string{"tag", name}
	}
	if rev != "" {
		args = append(args, rev)
	}
	return r.performWriting("tag create", func() error {
		_, err := r.runner.Run(ctx, args, stdin)
		return r.suggestRef(err, rev)
	})
}

// DeleteTag removes a tag.
func (r *Repository) DeleteTag(ctx context.Context, name string) error {
	return r.performWriting("tag delete", func() error {
		_, err := r.runner.Run(ctx, []string{"tag", "-d", name}, nil)
		return err
	})
}

// StashSave pushes the local changes onto the stash stack.
// includeUntracked also stashes files git does not track yet.
func (r *Repository) StashSave(ctx context.Context, message string, includeUntracked bool) error {
	args := []string{"stash", "push"}
	if includeUntracked {
		args = append(args, "-u")
	}
	if message != "" {
		args = append(args, "-m", message)
	}
	return r.performWriting("stash save", func() error {
		_, err := r.runner.Run(ctx, args, nil)
		return err
	})
}

// StashPop applies stash entry index and drops it from the stack.
func (r *Repository) StashPop(ctx context.Context, index int) error {
	return r.stashOp(ctx, "pop", index)
}

// StashApply applies stash entry index, keeping it on the stack.
func (r *Repository) StashApply(ctx context.Context, index int) error {
	return r.stashOp(ctx, "apply", index)
}

// StashDrop removes stash entry index without applying it.
func (r *Repository) StashDrop(ctx context.Context, index int) error {
	return r.stashOp(ctx, "drop", index)
}

func (r *Repository) stashOp(ctx context.Context, verb string, index int) error {
	entry := fmt.Sprintf("stash@{%d}", index)
	return r.performWriting("stash "+verb, func() error {
		_, err := r.runner.Run(ctx, []string{"stash", verb, entry}, nil)
		return err
	})
}

// AddRemote registers a remote under the given name.
func (r *Repository) AddRemote(ctx context.Context, name, url string) error {
	return r.performWriting("remote add", func() error {
		_, err := r.runner.Run(ctx, []string{"remote", "add", name, url}, nil)
		return err
	})
}

// RemoveRemote deletes a remote and its tracking refs.
func (r *Repository) RemoveRemote(ctx context.Context, name string) error {
	return r.performWriting("remote remove", func() error {
		_, err := r.runner.Run(ctx, []string{"remote", "remove", name}, nil)
		return err
	})
}

// RenameRemote renames a remote, rewriting its tracking refs.
func (r *Repository) RenameRemote(ctx context.Context, oldName, newName string) error {
	return r.performWriting("remote rename", func() error {
		_, err := r.runner.Run(ctx, []string{"remote", "rename", oldName, newName}, nil)
		return err
	})
}

// Merge merges rev into the current branch without opening an editor. A
// conflicted merge surfaces as a command failure and leaves the repository
// mid-merge; resolution is up to the caller.
func (r *Repository) Merge(ctx context.Context, rev string) error {
	return r.performWriting("merge", func() error {
		_, err := r.runner.Run(ctx, []string{"merge", "--no-edit", rev}, nil)
		return r.suggestRef(err, rev)
	})
}

// ApplyPatch applies a unified diff delivered on stdin. toIndex stages the
// result instead of touching the working tree, which is how hunk-level
// staging is implemented.
func (r *Repository) ApplyPatch(ctx context.Context, patch []byte, toIndex bool) error {
	args := []string{"apply"}
	if toIndex {
		args = append(args, "--cached")
	}
	args = append(args, "-")
	return r.performWriting("apply patch", func() error {
		_, err := r.runner.Run(ctx, args, patch)
		return err
	})
}

// StageFiles adds the given paths to the index.
func (r *Repository) StageFiles(ctx context.Context, paths ...string) error {
	args := append([]string{"add", "--"}, paths...)
	return r.performWriting("stage", func() error {
		_, err := r.runner.Run(ctx, args, nil)
		return err
	})
}

// StageAll stages every change in the working tree, deletions included.
func (r *Repository) StageAll(ctx context.Context) error {
	return r.performWriting("stage all", func() error {
		_, err := r.runner.Run(ctx, []string{"add", "-A"}, nil)
		return err
	})
}

// UnstageFiles resets the index entries for the given paths back to HEAD.
func (r *Repository) UnstageFiles(ctx context.Context, paths ...string) error {
	args := append([]string{"restore", "--staged", "--"}, paths...)
	return r.performWriting("unstage", func() error {
		_, err := r.runner.Run(ctx, args, nil)
		return err
	})
}
