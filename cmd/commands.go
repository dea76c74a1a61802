package cmd

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/arverne/gitscope/internal/config"
	"github.com/arverne/gitscope/internal/git"
	"github.com/arverne/gitscope/internal/repo"
)

func runLog(r *repo.Repository, cfg config.Config, colored bool, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("gitscope log", flag.ContinueOnError)
	limit := fs.Int("limit", cfg.LogLimit, "maximum commits to show, 0 for all")
	offset := fs.Int("offset", 0, "rows to skip from the newest")
	if ok, err := parseSub(fs, args); !ok {
		return err
	}
	entries, err := r.CommitEntries(*offset, *limit)
	if err != nil {
		return err
	}
	return renderEntries(out, entries, colored)
}

func runStatus(r *repo.Repository, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("gitscope status", flag.ContinueOnError)
	if ok, err := parseSub(fs, args); !ok {
		return err
	}
	hash, name, ok, err := r.Head()
	if err != nil {
		return err
	}
	switch {
	case !ok:
		fmt.Fprintln(out, "No commits yet")
	case name == "HEAD":
		fmt.Fprintf(out, "HEAD detached at %s\n", shortHash(hash))
	default:
		fmt.Fprintf(out, "On branch %s\n", name)
	}
	st, err := r.Status()
	if err != nil {
		return err
	}
	if len(st.Files) == 0 {
		fmt.Fprintln(out, "nothing to commit, working tree clean")
		return nil
	}
	for _, f := range st.Files {
		fmt.Fprintf(out, "%c%c %s\n", f.Staging, f.Worktree, f.Path)
	}
	return nil
}

func runRefs(r *repo.Repository, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("gitscope refs", flag.ContinueOnError)
	if ok, err := parseSub(fs, args); !ok {
		return err
	}
	refs, err := r.Refs()
	if err != nil {
		return err
	}
	groups := []struct {
		kind  git.RefKind
		title string
	}{
		{git.RefKindBranch, "Branches:"},
		{git.RefKindRemoteBranch, "Remote branches:"},
		{git.RefKindTag, "Tags:"},
	}
	for _, g := range groups {
		var lines []string
		for _, ref := range refs {
			if ref.Kind == g.kind {
				lines = append(lines, fmt.Sprintf("  %s %s", shortHash(ref.Hash), ref.Name))
			}
		}
		if len(lines) == 0 {
			continue
		}
		fmt.Fprintln(out, g.title)
		for _, line := range lines {
			fmt.Fprintln(out, line)
		}
	}
	return nil
}

func runStashes(r *repo.Repository, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("gitscope stashes", flag.ContinueOnError)
	if ok, err := parseSub(fs, args); !ok {
		return err
	}
	stashes, err := r.Stashes()
	if err != nil {
		return err
	}
	for _, s := range stashes {
		fmt.Fprintf(out, "%s: %s\n", s.Name, s.Message)
	}
	return nil
}

func runDiff(r *repo.Repository, colored bool, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("gitscope diff", flag.ContinueOnError)
	staged := fs.Bool("staged", false, "show changes staged in the index")
	if ok, err := parseSub(fs, args); !ok {
		return err
	}
	var text string
	var err error
	if rev := fs.Arg(0); rev != "" {
		text, err = r.CommitDiff(rev)
	} else {
		text, err = r.WorktreeDiff(*staged)
	}
	if err != nil {
		return err
	}
	if text == "" {
		return nil
	}
	_, err = io.WriteString(out, colorizeDiff(text, colored))
	return err
}

func runCommit(ctx context.Context, r *repo.Repository, args []string, in io.Reader, out io.Writer) error {
	fs := flag.NewFlagSet("gitscope commit", flag.ContinueOnError)
	message := fs.String("m", "", "commit message; read from stdin when empty")
	amend := fs.Bool("amend", false, "replace the current HEAD commit")
	all := fs.Bool("all", false, "stage every change before committing")
	if ok, err := parseSub(fs, args); !ok {
		return err
	}
	msg := *message
	if msg == "" {
		raw, err := io.ReadAll(in)
		if err != nil {
			return fmt.Errorf("read message from stdin: %w", err)
		}
		msg = string(raw)
	}
	if strings.TrimSpace(msg) == "" {
		return fmt.Errorf("empty commit message")
	}
	if *all {
		if err := r.StageAll(ctx); err != nil {
			return err
		}
	}
	if err := r.Commit(ctx, msg, *amend); err != nil {
		return err
	}
	hash, _, _, err := r.Head()
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "created commit %s\n", shortHash(hash))
	return nil
}

func runCheckout(ctx context.Context, r *repo.Repository, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("gitscope checkout", flag.ContinueOnError)
	if ok, err := parseSub(fs, args); !ok {
		return err
	}
	rev := fs.Arg(0)
	if rev == "" {
		return fmt.Errorf("checkout needs a revision or branch name")
	}
	if err := r.Checkout(ctx, rev); err != nil {
		return err
	}
	fmt.Fprintf(out, "switched to %s\n", rev)
	return nil
}

func runBranch(ctx context.Context, r *repo.Repository, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("gitscope branch", flag.ContinueOnError)
	del := fs.Bool("d", false, "delete the named branch")
	force := fs.Bool("f", false, "with -d, delete even when unmerged")
	if ok, err := parseSub(fs, args); !ok {
		return err
	}
	name := fs.Arg(0)
	if *del {
		if name == "" {
			return fmt.Errorf("branch -d needs a branch name")
		}
		return r.DeleteBranch(ctx, name, *force)
	}
	if name == "" {
		refs, err := r.Refs()
		if err != nil {
			return err
		}
		_, headName, _, err := r.Head()
		if err != nil {
			return err
		}
		for _, ref := range refs {
			if ref.Kind != git.RefKindBranch {
				continue
			}
			marker := "  "
			if ref.Name == headName {
				marker = "* "
			}
			fmt.Fprintf(out, "%s%s\n", marker, ref.Name)
		}
		return nil
	}
	return r.CreateBranch(ctx, name, fs.Arg(1))
}

func runTag(ctx context.Context, r *repo.Repository, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("gitscope tag", flag.ContinueOnError)
	del := fs.Bool("d", false, "delete the named tag")
	message := fs.String("m", "", "create an annotated tag with this message")
	if ok, err := parseSub(fs, args); !ok {
		return err
	}
	name := fs.Arg(0)
	if *del {
		if name == "" {
			return fmt.Errorf("tag -d needs a tag name")
		}
		return r.DeleteTag(ctx, name)
	}
	if name == "" {
		refs, err := r.Refs()
		if err != nil {
			return err
		}
		for _, ref := range refs {
			if ref.Kind == git.RefKindTag {
				fmt.Fprintln(out, ref.Name)
			}
		}
		return nil
	}
	return r.CreateTag(ctx, name, fs.Arg(1), *message)
}

func runMerge(ctx context.Context, r *repo.Repository, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("gitscope merge", flag.ContinueOnError)
	if ok, err := parseSub(fs, args); !ok {
		return err
	}
	rev := fs.Arg(0)
	if rev == "" {
		return fmt.Errorf("merge needs a revision or branch name")
	}
	if err := r.Merge(ctx, rev); err != nil {
		return err
	}
	hash, _, _, err := r.Head()
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "merged %s into HEAD (%s)\n", rev, shortHash(hash))
	return nil
}

func runRemote(ctx context.Context, r *repo.Repository, args []string, out io.Writer) error {
	if len(args) == 0 || args[0] == "list" {
		listArgs := args
		if len(listArgs) > 0 {
			listArgs = listArgs[1:]
		}
		fs := flag.NewFlagSet("gitscope remote", flag.ContinueOnError)
		if ok, err := parseSub(fs, listArgs); !ok {
			return err
		}
		res, err := r.Submit(ctx, []string{"remote", "-v"}, nil, false)
		if err != nil {
			return err
		}
		_, err = out.Write(res.Stdout)
		return err
	}
	verb, rest := args[0], args[1:]
	switch verb {
	case "add":
		if len(rest) != 2 {
			return fmt.Errorf("remote add needs a name and a url")
		}
		return r.AddRemote(ctx, rest[0], rest[1])
	case "remove":
		if len(rest) != 1 {
			return fmt.Errorf("remote remove needs a name")
		}
		return r.RemoveRemote(ctx, rest[0])
	case "rename":
		if len(rest) != 2 {
			return fmt.Errorf("remote rename needs an old and a new name")
		}
		return r.RenameRemote(ctx, rest[0], rest[1])
	default:
		return fmt.Errorf("unknown remote command %q", verb)
	}
}

func runStash(ctx context.Context, r *repo.Repository, args []string, out io.Writer) error {
	if len(args) == 0 || args[0] == "list" {
		listArgs := args
		if len(listArgs) > 0 {
			listArgs = listArgs[1:]
		}
		return runStashes(r, listArgs, out)
	}
	verb, rest := args[0], args[1:]
	switch verb {
	case "push":
		fs := flag.NewFlagSet("gitscope stash push", flag.ContinueOnError)
		untracked := fs.Bool("u", false, "include untracked files")
		message := fs.String("m", "", "stash message")
		if ok, err := parseSub(fs, rest); !ok {
			return err
		}
		return r.StashSave(ctx, *message, *untracked)
	case "pop", "apply", "drop":
		index := 0
		if len(rest) > 0 {
			n, err := strconv.Atoi(rest[0])
			if err != nil {
				return fmt.Errorf("stash %s: bad index %q", verb, rest[0])
			}
			index = n
		}
		switch verb {
		case "pop":
			return r.StashPop(ctx, index)
		case "apply":
			return r.StashApply(ctx, index)
		default:
			return r.StashDrop(ctx, index)
		}
	default:
		return fmt.Errorf("unknown stash command %q", verb)
	}
}

func runApply(ctx context.Context, r *repo.Repository, args []string, in io.Reader, out io.Writer) error {
	fs := flag.NewFlagSet("gitscope apply", flag.ContinueOnError)
	cached := fs.Bool("cached", false, "apply to the index instead of the working tree")
	if ok, err := parseSub(fs, args); !ok {
		return err
	}
	patch, err := io.ReadAll(in)
	if err != nil {
		return fmt.Errorf("read patch from stdin: %w", err)
	}
	if len(patch) == 0 {
		return fmt.Errorf("empty patch on stdin")
	}
	if err := r.ApplyPatch(ctx, patch, *cached); err != nil {
		return err
	}
	target := "working tree"
	if *cached {
		target = "index"
	}
	fmt.Fprintf(out, "patch applied to %s\n", target)
	return nil
}

func runWatch(r *repo.Repository, cfg config.Config, colored bool, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("gitscope watch", flag.ContinueOnError)
	limit := fs.Int("limit", cfg.LogLimit, "maximum commits to show per refresh")
	if ok, err := parseSub(fs, args); !ok {
		return err
	}

	var mu sync.Mutex
	render := func() {
		mu.Lock()
		defer mu.Unlock()
		entries, err := r.CommitEntries(0, *limit)
		if err != nil {
			slog.Error("refresh failed", slog.Any("error", err))
			return
		}
		fmt.Fprintf(out, "-- %s --\n", time.Now().Format("15:04:05"))
		if err := renderEntries(out, entries, colored); err != nil {
			slog.Error("render failed", slog.Any("error", err))
		}
	}
	if err := r.EnableWatch(cfg.DebounceDelay(), render); err != nil {
		return err
	}
	defer r.DisableWatch()

	fmt.Fprintf(out, "watching %s (interrupt to stop)\n", r.Root())
	render()

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(done)
	<-done
	return nil
}

func shortHash(hash string) string {
	if len(hash) > 7 {
		return hash[:7]
	}
	return hash
}
