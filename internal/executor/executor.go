// Package executor provides the single-slot outbound task queue the UDP
// channel uses to perform transmission off its receive goroutine (spec.md
// §9 design notes: "model as a bounded channel with a worker task").
//
// It is grounded on the teacher's UDP receive/worker hand-off
// (internal/server/udp_server.go recvLoop -> workerLoop via a buffered
// channel) but inverted: there the channel carries inbound packets to a
// large worker pool; here it carries outbound send requests from any
// caller goroutine to a single worker so the channel's send path never
// races with its own receive path.
package executor

import "context"

// Task is a unit of outbound work submitted to the executor.
type Task func()

// Executor runs submitted tasks serially on one worker goroutine.
type Executor struct {
	slot chan Task
	done chan struct{}
}

// New creates an Executor with the given queue depth (1 is the "single
// slot" the design note calls for; a larger depth is useful for tests that
// submit faster than the worker drains).
func New(queueDepth int) *Executor {
	if queueDepth < 1 {
		queueDepth = 1
	}
	return &Executor{
		slot: make(chan Task, queueDepth),
		done: make(chan struct{}),
	}
}

// Run drains the queue until ctx is cancelled. Intended to be started in
// its own goroutine by the owning channel.
func (e *Executor) Run(ctx context.Context) {
	defer close(e.done)
	for {
		select {
		case <-ctx.Done():
			return
		case task := <-e.slot:
			task()
		}
	}
}

// Submit enqueues a task without blocking. It returns false if the queue
// is full, matching the teacher's "drop rather than block the receive
// path" policy in recvLoop.
func (e *Executor) Submit(t Task) bool {
	select {
	case e.slot <- t:
		return true
	default:
		return false
	}
}

// SubmitBlocking enqueues a task, blocking until there is room or ctx is
// cancelled. Used by callers (e.g. the UDP channel's
// SendVehicleIdentificationRequest) that must not silently drop the send.
func (e *Executor) SubmitBlocking(ctx context.Context, t Task) bool {
	select {
	case e.slot <- t:
		return true
	case <-ctx.Done():
		return false
	}
}

// Done returns a channel closed once Run has exited.
func (e *Executor) Done() <-chan struct{} { return e.done }
