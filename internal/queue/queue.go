// Package queue provides the serial command lane used by a repository
// handle. Every operation against a repository goes through one Queue, which
// runs tasks strictly in submission order on a single worker goroutine. At
// most one task executes at any time, so backends never see concurrent
// access from the same repository.
package queue

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Task is a unit of work executed on the queue worker.
type Task interface {
	Name() string
	Run()
}

type funcTask struct {
	name string
	fn   func()
}

func (t funcTask) Name() string { return t.name }
func (t funcTask) Run()         { t.fn() }

// Func wraps fn as a Task with the given name.
func Func(name string, fn func()) Task {
	return funcTask{name: name, fn: fn}
}

// Handle tracks completion of a single submitted task.
type Handle struct {
	done chan struct{}
}

// Done returns a channel closed once the task has finished.
func (h *Handle) Done() <-chan struct{} { return h.done }

// Wait blocks until the task has finished.
func (h *Handle) Wait() { <-h.done }

type item struct {
	id     string
	kind   string
	task   Task
	handle *Handle
}

// Queue is a FIFO command lane with a dedicated worker goroutine. Submission
// never blocks the caller; enqueued tasks always run to completion and are
// never cancelled mid-flight.
type Queue struct {
	label string

	mu      sync.Mutex
	pending []*item
	closed  bool

	wake    chan struct{}
	drained chan struct{}
}

// New starts a queue whose log lines carry the given label.
func New(label string) *Queue {
	q := &Queue{
		label:   label,
		wake:    make(chan struct{}, 1),
		drained: make(chan struct{}),
	}
	go q.worker()
	return q
}

// SubmitWrite enqueues a mutating task.
func (q *Queue) SubmitWrite(t Task) *Handle { return q.submit(t, "write") }

// SubmitRead enqueues a read-only task. Reads share the single serial lane
// with writes, so a read never observes a mutation half-applied.
func (q *Queue) SubmitRead(t Task) *Handle { return q.submit(t, "read") }

func (q *Queue) submit(t Task, kind string) *Handle {
	it := &item{
		id:     uuid.NewString(),
		kind:   kind,
		task:   t,
		handle: &Handle{done: make(chan struct{})},
	}
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		slog.Warn("task submitted to closed queue",
			slog.String("queue", q.label),
			slog.String("task", t.Name()),
		)
		close(it.handle.done)
		return it.handle
	}
	q.pending = append(q.pending, it)
	q.mu.Unlock()
	q.notify()
	slog.Debug("task enqueued",
		slog.String("queue", q.label),
		slog.String("task", t.Name()),
		slog.String("kind", kind),
		slog.String("op", it.id),
	)
	return it.handle
}

// Wait blocks until every task submitted before the call has finished. It
// must not be called from a task running on this queue.
func (q *Queue) Wait() {
	q.submit(Func("barrier", func() {}), "read").Wait()
}

// Shutdown runs all pending tasks, then stops the worker. Tasks submitted
// after Shutdown are discarded with their handles completed immediately.
func (q *Queue) Shutdown() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		<-q.drained
		return
	}
	q.closed = true
	q.mu.Unlock()
	q.notify()
	<-q.drained
}

func (q *Queue) notify() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

func (q *Queue) worker() {
	for {
		q.mu.Lock()
		if len(q.pending) > 0 {
			it := q.pending[0]
			q.pending = q.pending[1:]
			q.mu.Unlock()
			q.run(it)
			continue
		}
		if q.closed {
			q.mu.Unlock()
			close(q.drained)
			return
		}
		q.mu.Unlock()
		<-q.wake
	}
}

func (q *Queue) run(it *item) {
	defer close(it.handle.done)
	start := time.Now()
	slog.Debug("task start",
		slog.String("queue", q.label),
		slog.String("task", it.task.Name()),
		slog.String("kind", it.kind),
		slog.String("op", it.id),
	)
	it.task.Run()
	slog.Debug("task done",
		slog.String("queue", q.label),
		slog.String("task", it.task.Name()),
		slog.String("op", it.id),
		slog.Duration("elapsed", time.Since(start)),
	)
}
