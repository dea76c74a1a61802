package git

import (
	"errors"
	"fmt"
	"strings"

	gitlib "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
)

// The error surface is a small fixed set of kinds. Callers match with
// errors.Is / errors.As; anything not translated below stays an unexpected
// error and is surfaced as-is.
var (
	// ErrNotFound reports a missing object, revision, or ref.
	ErrNotFound = errors.New("not found")

	// ErrWriteLock reports that another git process holds the repository
	// lock. The operation is not retried; the caller decides when to try
	// again.
	ErrWriteLock = errors.New("repository locked by another git process")
)

// CommandError reports a git invocation that started and exited nonzero.
// Stderr is kept verbatim for display.
type CommandError struct {
	Args     []string
	ExitCode int
	Stderr   string
	Err      error
}

func (e *CommandError) Error() string {
	if e == nil {
		return ""
	}
	msg := fmt.Sprintf("git %s: exit status %d", strings.Join(e.Args, " "), e.ExitCode)
	if s := strings.TrimSpace(e.Stderr); s != "" {
		return msg + ": " + s
	}
	return msg
}

func (e *CommandError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// TranslateError maps backend failures onto the fixed error kinds. Lock
// conflicts become ErrWriteLock, missing revisions become ErrNotFound, other
// nonzero exits stay *CommandError. Errors from the go-git library are
// mapped the same way. Everything else passes through unchanged.
func TranslateError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrWriteLock) {
		return err
	}

	var cmdErr *CommandError
	if errors.As(err, &cmdErr) {
		stderr := strings.TrimSpace(cmdErr.Stderr)
		switch {
		case stderrReportsLock(stderr):
			return fmt.Errorf("%s: %w", firstLine(stderr), ErrWriteLock)
		case stderrReportsNotFound(stderr):
			return fmt.Errorf("%s: %w", firstLine(stderr), ErrNotFound)
		}
		return err
	}

	switch {
	case errors.Is(err, plumbing.ErrReferenceNotFound),
		errors.Is(err, plumbing.ErrObjectNotFound),
		errors.Is(err, gitlib.ErrRepositoryNotExists):
		return fmt.Errorf("%v: %w", err, ErrNotFound)
	}
	return err
}

func stderrReportsLock(stderr string) bool {
	if strings.Contains(stderr, "Another git process seems to be running") {
		return true
	}
	if !strings.Contains(stderr, ".lock") {
		return false
	}
	return strings.Contains(stderr, "File exists") ||
		strings.Contains(stderr, "Unable to create")
}

func stderrReportsNotFound(stderr string) bool {
	for _, pattern := range []string{
		"unknown revision or path",
		"not a valid ref",
		"did not match any file(s) known to git",
		"not something we can merge",
		"no such remote",
		"not a git repository",
		"not found",
	} {
		if strings.Contains(stderr, pattern) {
			return true
		}
	}
	return false
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return strings.TrimSpace(s[:i])
	}
	return s
}
