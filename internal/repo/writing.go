package repo

import (
	"context"

	"github.com/arverne/gitscope/internal/git"
	"github.com/arverne/gitscope/internal/queue"
)

// Pending is the completion slot of one submitted operation. It is resolved
// exactly once, when the operation finishes on the queue worker; operations
// discarded because the repository closed resolve to ErrClosed.
type Pending struct {
	done <-chan struct{}
	out  git.Output
	err  error
}

// Done returns a channel closed once the operation has finished.
func (p *Pending) Done() <-chan struct{} { return p.done }

// Err blocks until the operation has finished and returns its error.
func (p *Pending) Err() error {
	<-p.done
	return p.err
}

// Output blocks until the operation has finished and returns the captured
// output alongside its error.
func (p *Pending) Output() (git.Output, error) {
	<-p.done
	return p.out, p.err
}

// performWriting runs fn on the queue worker with exclusive access to the
// repository. Failures are translated onto the fixed error kinds; the caches
// are marked stale only when fn succeeds, so a failed mutation never hides
// the state it left behind.
func (r *Repository) performWriting(name string, fn func() error) error {
	return r.performWritingAsync(name, fn).Err()
}

func (r *Repository) performWritingAsync(name string, fn func() error) *Pending {
	p := &Pending{err: ErrClosed}
	h := r.queue.SubmitWrite(queue.Func(name, func() {
		err := git.TranslateError(fn())
		if err == nil {
			r.invalidate()
		}
		p.err = err
	}))
	p.done = h.Done()
	return p
}

// Submit runs a raw git invocation through the repository lane and blocks
// for its result. writes marks the invocation as mutating: its success
// invalidates the caches, exactly like the typed operations.
func (r *Repository) Submit(ctx context.Context, argv []string, stdin []byte, writes bool) (git.Output, error) {
	return r.SubmitAsync(ctx, argv, stdin, writes).Output()
}

// SubmitAsync is the future form of Submit: it enqueues the invocation and
// returns immediately with its completion slot.
func (r *Repository) SubmitAsync(ctx context.Context, argv []string, stdin []byte, writes bool) *Pending {
	name := "git"
	if len(argv) > 0 {
		name = "git " + argv[0]
	}
	p := &Pending{err: ErrClosed}
	run := func() {
		out, err := r.runner.Run(ctx, argv, stdin)
		err = git.TranslateError(err)
		if writes && err == nil {
			r.invalidate()
		}
		p.out, p.err = out, err
	}
	var h *queue.Handle
	if writes {
		h = r.queue.SubmitWrite(queue.Func(name, run))
	} else {
		h = r.queue.SubmitRead(queue.Func(name, run))
	}
	p.done = h.Done()
	return p
}

// readOnLane runs fn on the queue worker and blocks until it finishes.
// Reads share the lane with writes, so fn always observes fully applied
// mutations.
func (r *Repository) readOnLane(name string, fn func() error) error {
	if r.isClosed() {
		return ErrClosed
	}
	err := ErrClosed
	r.queue.SubmitRead(queue.Func(name, func() {
		err = git.TranslateError(fn())
	})).Wait()
	return err
}
