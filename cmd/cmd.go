// Package cmd implements the gitscope command line interface: a thin front
// end over the repository core that renders history graphs, diffs, and ref
// listings, and forwards mutations to the serial command lane.
package cmd

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"

	"golang.org/x/term"

	"github.com/arverne/gitscope/internal/buildinfo"
	"github.com/arverne/gitscope/internal/config"
	"github.com/arverne/gitscope/internal/repo"
)

const usageText = `usage: gitscope [flags] <command> [args]

Commands:
  log        show commit history as a graph (default)
  status     show working tree status
  refs       list branches, remote branches, and tags
  stashes    list stash entries
  diff       show a commit diff or local changes
  commit     record staged changes
  checkout   switch branches or restore a revision
  branch     list, create, or delete branches
  tag        list, create, or delete tags
  merge      merge a revision into the current branch
  remote     list or edit remotes
  stash      save, apply, or drop stashed changes
  apply      apply a patch from standard input
  watch      rerender the log whenever the repository changes
  version    print version information

Flags:
`

func Run() error {
	return run(os.Args[1:], os.Stdin, os.Stdout)
}

func run(args []string, in io.Reader, out io.Writer) error {
	fs := flag.NewFlagSet("gitscope", flag.ContinueOnError)
	fs.Usage = func() {
		fmt.Fprint(fs.Output(), usageText)
		fs.PrintDefaults()
	}
	dir := fs.String("C", ".", "run as if started in this directory")
	gitBin := fs.String("git", "", "git executable used for mutations")
	colorMode := fs.String("color", "", "colorize output: auto, always, or never")
	verbose := fs.Bool("verbose", false, "enable verbose logging")
	showVersion := fs.Bool("version", false, "print version information and exit")
	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return nil
		}
		return err
	}
	if *showVersion {
		fmt.Fprintln(out, buildinfo.String())
		return nil
	}

	cfg, cfgErr := config.Load()
	setupLogging(*verbose || cfg.Verbose)
	if cfgErr != nil {
		slog.Warn("config file ignored", slog.Any("error", cfgErr))
	}
	if *gitBin != "" {
		cfg.GitBin = *gitBin
	}
	if *colorMode != "" {
		switch *colorMode {
		case "auto", "always", "never":
			cfg.Color = *colorMode
		default:
			return fmt.Errorf("invalid -color %q: want auto, always, or never", *colorMode)
		}
	}

	sub := "log"
	rest := fs.Args()
	if len(rest) > 0 {
		sub = rest[0]
		rest = rest[1:]
	}
	if sub == "version" {
		fmt.Fprintln(out, buildinfo.String())
		return nil
	}

	r, err := repo.Open(*dir, repo.Options{GitBin: cfg.GitBin})
	if err != nil {
		return err
	}
	defer r.Close()

	ctx := context.Background()
	colored := colorEnabled(cfg.Color, out)

	switch sub {
	case "log":
		return runLog(r, cfg, colored, rest, out)
	case "status":
		return runStatus(r, rest, out)
	case "refs":
		return runRefs(r, rest, out)
	case "stashes":
		return runStashes(r, rest, out)
	case "diff":
		return runDiff(r, colored, rest, out)
	case "commit":
		return runCommit(ctx, r, rest, in, out)
	case "checkout":
		return runCheckout(ctx, r, rest, out)
	case "branch":
		return runBranch(ctx, r, rest, out)
	case "tag":
		return runTag(ctx, r, rest, out)
	case "merge":
		return runMerge(ctx, r, rest, out)
	case "remote":
		return runRemote(ctx, r, rest, out)
	case "stash":
		return runStash(ctx, r, rest, out)
	case "apply":
		return runApply(ctx, r, rest, in, out)
	case "watch":
		return runWatch(r, cfg, colored, rest, out)
	default:
		return fmt.Errorf("unknown command %q (run gitscope -h for usage)", sub)
	}
}

func setupLogging(verbose bool) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}

// colorEnabled resolves the color mode against the actual output: auto only
// colors real terminals.
func colorEnabled(mode string, out io.Writer) bool {
	switch mode {
	case "always":
		return true
	case "never":
		return false
	}
	f, ok := out.(*os.File)
	if !ok {
		return false
	}
	return term.IsTerminal(int(f.Fd()))
}

// parseSub parses a subcommand flag set. proceed is false when the user
// asked for help, which is not an error.
func parseSub(fs *flag.FlagSet, args []string) (proceed bool, err error) {
	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
