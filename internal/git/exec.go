package git

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
)

// Runner executes the external git binary for one repository. It is the
// only mutation path; reads go through Library. Runner imposes no timeout of
// its own: git operations can legitimately take minutes, and the serial lane
// above it guarantees nothing else is waiting on the repository meanwhile.
type Runner struct {
	// Bin is the executable to run. Defaults to "git" when empty.
	Bin string

	// Dir is the working directory for every invocation, normally the
	// repository root.
	Dir string
}

func (r *Runner) bin() string {
	if r == nil || r.Bin == "" {
		return "git"
	}
	return r.Bin
}

// Run executes args with the optional stdin payload and captures stdout.
// The payload is streamed to the child by os/exec on its own goroutine and
// the pipe closed at EOF, so payloads larger than the kernel pipe buffer
// cannot deadlock against output capture.
//
// A nonzero exit returns *CommandError alongside whatever stdout was
// produced. ctx only bounds the child's lifetime for callers that need a
// watchdog; pass context.Background() otherwise.
func (r *Runner) Run(ctx context.Context, args []string, stdin []byte) (Output, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	cmd := exec.CommandContext(ctx, r.bin(), args...)
	cmd.Dir = r.Dir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if stdin != nil {
		cmd.Stdin = bytes.NewReader(stdin)
	}
	err := cmd.Run()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			code := exitErr.ExitCode()
			return Output{Stdout: stdout.Bytes(), ExitCode: code}, &CommandError{
				Args:     args,
				ExitCode: code,
				Stderr:   stderr.String(),
				Err:      err,
			}
		}
		return Output{ExitCode: -1}, fmt.Errorf("run %s: %w", r.bin(), err)
	}
	return Output{Stdout: stdout.Bytes(), ExitCode: 0}, nil
}
