package repo

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/arverne/gitscope/internal/git"
)

func TestOpenFindsToplevelFromSubdir(t *testing.T) {
	t.Parallel()

	dir, _ := initTestRepo(t)
	sub := filepath.Join(dir, "deep", "nested")
	if err := os.MkdirAll(sub, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	r, err := Open(sub, Options{})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer r.Close()

	if !samePath(t, r.Root(), dir) {
		t.Fatalf("Root = %q, want %q", r.Root(), dir)
	}
}

func TestOpenOutsideRepositoryFails(t *testing.T) {
	t.Parallel()
	requireTool(t, "git")

	_, err := Open(t.TempDir(), Options{})
	if !errors.Is(err, git.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestUnbornRepositoryYieldsEmptyHistory(t *testing.T) {
	t.Parallel()
	requireTool(t, "git")

	dir := t.TempDir()
	mustRunGit(t, dir, "init")
	r, err := Open(dir, Options{})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer r.Close()

	entries, err := r.CommitEntries(0, 0)
	if err != nil {
		t.Fatalf("CommitEntries: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("entries = %d, want 0", len(entries))
	}
	_, _, ok, err := r.Head()
	if err != nil {
		t.Fatalf("Head: %v", err)
	}
	if ok {
		t.Fatal("Head ok = true on an unborn branch")
	}
}

func TestCommitInvalidatesEntries(t *testing.T) {
	t.Parallel()

	r, dir := openTestRepo(t)
	ctx := context.Background()

	entries, err := r.CommitEntries(0, 0)
	if err != nil {
		t.Fatalf("CommitEntries: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(entries))
	}

	writeFile(t, filepath.Join(dir, "feature.txt"), "content\n")
	if err := r.StageFiles(ctx, "feature.txt"); err != nil {
		t.Fatalf("StageFiles: %v", err)
	}
	if err := r.Commit(ctx, "add feature file\n\nwith a body", false); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	entries, err = r.CommitEntries(0, 0)
	if err != nil {
		t.Fatalf("CommitEntries: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("entries after commit = %d, want 2", len(entries))
	}
	if got := entries[0].Commit.Summary(); got != "add feature file" {
		t.Errorf("newest summary = %q", got)
	}
	if len(entries[0].Labels) == 0 || entries[0].Labels[0] != "HEAD -> main" {
		t.Errorf("newest labels = %v, want HEAD -> main first", entries[0].Labels)
	}
}

func TestFailedMutationKeepsCachesWarm(t *testing.T) {
	t.Parallel()

	r, dir := openTestRepo(t)
	ctx := context.Background()

	entries, err := r.CommitEntries(0, 0)
	if err != nil {
		t.Fatalf("CommitEntries: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(entries))
	}

	// Change the repository behind the handle's back; the cache must not
	// notice until a mutation through the handle succeeds.
	mustRunGit(t, dir, "commit", "--allow-empty", "-m", "external change")

	if err := r.Checkout(ctx, "no-such-branch-xyz"); !errors.Is(err, git.ErrNotFound) {
		t.Fatalf("Checkout err = %v, want ErrNotFound", err)
	}
	entries, err = r.CommitEntries(0, 0)
	if err != nil {
		t.Fatalf("CommitEntries: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("entries after failed mutation = %d, want still 1", len(entries))
	}

	if err := r.StageAll(ctx); err != nil {
		t.Fatalf("StageAll: %v", err)
	}
	entries, err = r.CommitEntries(0, 0)
	if err != nil {
		t.Fatalf("CommitEntries: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("entries after successful mutation = %d, want 2", len(entries))
	}
}

func TestConcurrentReadsDoNotMaskWrites(t *testing.T) {
	t.Parallel()

	r, dir := openTestRepo(t)
	ctx := context.Background()

	// Readers race the writer below; a refresh finishing between a write
	// and its invalidation must not pin the pre-write snapshot as fresh.
	stop := make(chan struct{})
	var wg sync.WaitGroup
	defer func() {
		close(stop)
		wg.Wait()
	}()
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				if _, _, _, err := r.Head(); err != nil {
					select {
					case <-stop:
					default:
						t.Errorf("concurrent Head: %v", err)
					}
					return
				}
			}
		}()
	}

	for i := 0; i < 15; i++ {
		msg := fmt.Sprintf("change %d", i)
		if _, err := r.Submit(ctx, []string{"commit", "--allow-empty", "-m", msg}, nil, true); err != nil {
			t.Fatalf("commit %d: %v", i, err)
		}
		want := strings.TrimSpace(mustCaptureGit(t, dir, "rev-parse", "HEAD"))
		got, _, _, err := r.Head()
		if err != nil {
			t.Fatalf("Head after commit %d: %v", i, err)
		}
		if got != want {
			t.Fatalf("Head after commit %d = %s, want %s", i, got, want)
		}
	}
}

func TestPreexistingIndexLockSurfacesWriteLock(t *testing.T) {
	t.Parallel()

	r, dir := openTestRepo(t)
	ctx := context.Background()

	lock := filepath.Join(dir, ".git", "index.lock")
	writeFile(t, lock, "")
	defer os.Remove(lock)

	writeFile(t, filepath.Join(dir, "blocked.txt"), "x\n")
	err := r.StageFiles(ctx, "blocked.txt")
	if !errors.Is(err, git.ErrWriteLock) {
		t.Fatalf("err = %v, want ErrWriteLock", err)
	}

	if err := os.Remove(lock); err != nil {
		t.Fatalf("remove lock: %v", err)
	}
	if err := r.StageFiles(ctx, "blocked.txt"); err != nil {
		t.Fatalf("StageFiles after lock removal: %v", err)
	}
}

func TestCheckoutSuggestsClosestRef(t *testing.T) {
	t.Parallel()

	r, _ := openTestRepo(t)
	ctx := context.Background()

	if err := r.CreateBranch(ctx, "feature", ""); err != nil {
		t.Fatalf("CreateBranch: %v", err)
	}
	err := r.Checkout(ctx, "feautre")
	if !errors.Is(err, git.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	if !strings.Contains(err.Error(), `did you mean "feature"`) {
		t.Fatalf("err = %q, want a suggestion for feature", err)
	}
}

func TestSubmitAsyncSerializesAndWaitDrains(t *testing.T) {
	t.Parallel()

	r, _ := openTestRepo(t)
	ctx := context.Background()

	messages := []string{"one", "two", "three"}
	pending := make([]*Pending, 0, len(messages))
	for _, msg := range messages {
		p := r.SubmitAsync(ctx, []string{"commit", "--allow-empty", "-m", msg}, nil, true)
		pending = append(pending, p)
	}
	r.Wait()

	for i, p := range pending {
		select {
		case <-p.Done():
		default:
			t.Fatalf("operation %d not complete after Wait", i)
		}
		out, err := p.Output()
		if err != nil {
			t.Fatalf("operation %d: %v", i, err)
		}
		if out.ExitCode != 0 {
			t.Fatalf("operation %d exit code = %d", i, out.ExitCode)
		}
	}

	entries, err := r.CommitEntries(0, 0)
	if err != nil {
		t.Fatalf("CommitEntries: %v", err)
	}
	if len(entries) != 4 {
		t.Fatalf("entries = %d, want 4", len(entries))
	}
	if got := entries[0].Commit.Summary(); got != "three" {
		t.Errorf("newest summary = %q, want %q", got, "three")
	}
}

func TestStashRoundtrip(t *testing.T) {
	t.Parallel()

	r, dir := openTestRepo(t)
	ctx := context.Background()

	writeFile(t, filepath.Join(dir, "README.md"), "initial\nwork in progress\n")
	if err := r.StashSave(ctx, "wip notes", false); err != nil {
		t.Fatalf("StashSave: %v", err)
	}

	stashes, err := r.Stashes()
	if err != nil {
		t.Fatalf("Stashes: %v", err)
	}
	if len(stashes) != 1 {
		t.Fatalf("stashes = %d, want 1", len(stashes))
	}
	if !strings.Contains(stashes[0].Message, "wip notes") {
		t.Errorf("stash message = %q", stashes[0].Message)
	}
	status, err := r.Status()
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if len(status.Files) != 0 {
		t.Fatalf("worktree not clean after stash: %+v", status.Files)
	}

	if err := r.StashPop(ctx, 0); err != nil {
		t.Fatalf("StashPop: %v", err)
	}
	stashes, err = r.Stashes()
	if err != nil {
		t.Fatalf("Stashes: %v", err)
	}
	if len(stashes) != 0 {
		t.Fatalf("stashes after pop = %d, want 0", len(stashes))
	}
	status, err = r.Status()
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if !status.HasUnstaged {
		t.Fatal("expected unstaged changes back after pop")
	}
}

func TestApplyPatchRestoresLocalChanges(t *testing.T) {
	t.Parallel()

	r, dir := openTestRepo(t)
	ctx := context.Background()

	readme := filepath.Join(dir, "README.md")
	writeFile(t, readme, "initial\nextended\n")
	patch := mustCaptureGit(t, dir, "diff")
	mustRunGit(t, dir, "checkout", "--", ".")

	if err := r.ApplyPatch(ctx, []byte(patch), false); err != nil {
		t.Fatalf("ApplyPatch: %v", err)
	}
	status, err := r.Status()
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	var found bool
	for _, f := range status.Files {
		if f.Path == "README.md" && f.Worktree == 'M' {
			found = true
		}
	}
	if !found {
		t.Fatalf("README.md not modified after apply: %+v", status.Files)
	}
}

func TestBranchTagRemoteLifecycle(t *testing.T) {
	t.Parallel()

	r, dir := openTestRepo(t)
	ctx := context.Background()

	if err := r.CreateBranch(ctx, "dev", ""); err != nil {
		t.Fatalf("CreateBranch: %v", err)
	}
	if err := r.CreateTag(ctx, "v1", "", "first release\n"); err != nil {
		t.Fatalf("CreateTag: %v", err)
	}

	refs, err := r.Refs()
	if err != nil {
		t.Fatalf("Refs: %v", err)
	}
	headHash, _, _, err := r.Head()
	if err != nil {
		t.Fatalf("Head: %v", err)
	}
	var sawDev, sawTag bool
	for _, ref := range refs {
		switch {
		case ref.Kind == git.RefKindBranch && ref.Name == "dev":
			sawDev = true
		case ref.Kind == git.RefKindTag && ref.Name == "v1":
			sawTag = true
			if ref.Hash != headHash {
				t.Errorf("tag v1 peeled to %s, want %s", ref.Hash, headHash)
			}
		}
	}
	if !sawDev || !sawTag {
		t.Fatalf("refs missing dev/v1: %+v", refs)
	}

	if err := r.DeleteTag(ctx, "v1"); err != nil {
		t.Fatalf("DeleteTag: %v", err)
	}
	if err := r.DeleteBranch(ctx, "dev", false); err != nil {
		t.Fatalf("DeleteBranch: %v", err)
	}
	refs, err = r.Refs()
	if err != nil {
		t.Fatalf("Refs: %v", err)
	}
	for _, ref := range refs {
		if ref.Name == "dev" || ref.Name == "v1" {
			t.Fatalf("ref %q still present after delete", ref.Name)
		}
	}

	if err := r.AddRemote(ctx, "origin", dir); err != nil {
		t.Fatalf("AddRemote: %v", err)
	}
	if err := r.RenameRemote(ctx, "origin", "upstream"); err != nil {
		t.Fatalf("RenameRemote: %v", err)
	}
	remotes := mustCaptureGit(t, dir, "remote")
	if !strings.Contains(remotes, "upstream") || strings.Contains(remotes, "origin") {
		t.Fatalf("remotes = %q, want just upstream", remotes)
	}
	if err := r.RemoveRemote(ctx, "upstream"); err != nil {
		t.Fatalf("RemoveRemote: %v", err)
	}
	if remotes := strings.TrimSpace(mustCaptureGit(t, dir, "remote")); remotes != "" {
		t.Fatalf("remotes after remove = %q, want none", remotes)
	}
}

func TestMergeFastForwards(t *testing.T) {
	t.Parallel()

	r, dir := openTestRepo(t)
	ctx := context.Background()

	if err := r.CreateBranch(ctx, "topic", ""); err != nil {
		t.Fatalf("CreateBranch: %v", err)
	}
	if err := r.Checkout(ctx, "topic"); err != nil {
		t.Fatalf("Checkout topic: %v", err)
	}
	writeFile(t, filepath.Join(dir, "topic.txt"), "topic\n")
	if err := r.StageFiles(ctx, "topic.txt"); err != nil {
		t.Fatalf("StageFiles: %v", err)
	}
	if err := r.Commit(ctx, "topic work", false); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	topicHash, _, _, err := r.Head()
	if err != nil {
		t.Fatalf("Head: %v", err)
	}

	if err := r.Checkout(ctx, "main"); err != nil {
		t.Fatalf("Checkout main: %v", err)
	}
	if err := r.Merge(ctx, "topic"); err != nil {
		t.Fatalf("Merge: %v", err)
	}
	mergedHash, name, _, err := r.Head()
	if err != nil {
		t.Fatalf("Head: %v", err)
	}
	if mergedHash != topicHash {
		t.Fatalf("HEAD = %s, want fast-forward to %s", mergedHash, topicHash)
	}
	if name != "main" {
		t.Fatalf("HEAD name = %q, want main", name)
	}
}

func TestCloseRejectsFurtherOperations(t *testing.T) {
	t.Parallel()

	r, _ := openTestRepo(t)
	ctx := context.Background()
	r.Close()
	r.Close()

	if err := r.Commit(ctx, "late", false); !errors.Is(err, ErrClosed) {
		t.Fatalf("Commit err = %v, want ErrClosed", err)
	}
	if _, err := r.CommitEntries(0, 0); !errors.Is(err, ErrClosed) {
		t.Fatalf("CommitEntries err = %v, want ErrClosed", err)
	}
	if _, err := r.Submit(ctx, []string{"status"}, nil, false); !errors.Is(err, ErrClosed) {
		t.Fatalf("Submit err = %v, want ErrClosed", err)
	}
}

func TestCommitEntriesPagination(t *testing.T) {
	t.Parallel()

	r, dir := openTestRepo(t)

	for _, msg := range []string{"two", "three", "four"} {
		mustRunGit(t, dir, "commit", "--allow-empty", "-m", msg)
	}
	r.invalidate()

	page, err := r.CommitEntries(1, 2)
	if err != nil {
		t.Fatalf("CommitEntries: %v", err)
	}
	if len(page) != 2 {
		t.Fatalf("page = %d entries, want 2", len(page))
	}
	if got := page[0].Commit.Summary(); got != "three" {
		t.Errorf("page[0] = %q, want %q", got, "three")
	}
	if got := page[1].Commit.Summary(); got != "two" {
		t.Errorf("page[1] = %q, want %q", got, "two")
	}

	tail, err := r.CommitEntries(3, 0)
	if err != nil {
		t.Fatalf("CommitEntries: %v", err)
	}
	if len(tail) != 1 {
		t.Fatalf("tail = %d entries, want 1", len(tail))
	}
	if beyond, err := r.CommitEntries(10, 5); err != nil || len(beyond) != 0 {
		t.Fatalf("beyond = %v entries, err %v; want empty, nil", beyond, err)
	}
}
