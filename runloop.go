// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package runloop

// Task is a unit of work scheduled on a RunLoop.
type Task func()

// RunLoop is the contract shared by every execution engine. All methods are
// safe to call from any goroutine.
type RunLoop interface {
	// Execute schedules task, after all previously scheduled tasks.
	Execute(task Task)

	// Urgent schedules task ahead of all pending non-urgent tasks. Pending
	// urgent tasks run most recently scheduled first.
	Urgent(task Task)

	// ExecuteAfter schedules task to run once timeout expires. The deadline
	// is computed at call time. An Infinite timeout never fires.
	ExecuteAfter(timeout Timeout, task Task)

	// Semaphore returns a semaphore suitable for waiting on the calling
	// goroutine, see NewSemaphore.
	Semaphore(value int) Semaphore

	// SyncFunc runs fn on the loop and waits for it, see Sync.
	SyncFunc(fn func() error) error

	// Native returns the underlying engine. Two RunLoop values are the same
	// loop if their Native values are equal.
	Native() any

	// AsRunnable returns nil if the loop cannot be driven by its owner.
	AsRunnable() Runnable

	// AsRelayable returns nil if the loop does not support relaying.
	AsRelayable() Relayable
}

// Runnable is implemented by loops that are driven by their owner goroutine.
type Runnable interface {
	RunLoop

	// Run drives the loop until Stop is called, the timeout expires, or (if
	// once is true) a single iteration has completed. Calls may be nested,
	// in which case Stop applies to the innermost. Returns true if the run
	// ended because the timeout expired. The first call binds the loop to
	// the calling goroutine. Panics with ErrNotHome if the loop is owned by
	// another goroutine.
	Run(timeout Timeout, once bool) (timedOut bool)

	// Stop ends the innermost Run. It is a no-op while protected.
	Stop()

	// SetProtected sets whether Stop is ignored.
	SetProtected(protected bool)

	// Protected reports whether Stop is ignored.
	Protected() bool

	// Closed reports whether the loop has been closed.
	Closed() bool
}

// Relayable is implemented by loops that can forward relay-flagged work to
// another loop.
type Relayable interface {
	RunLoop

	// SetRelay sets the loop that relay-flagged work is forwarded to. Nil
	// stops relaying, and pending relay work is reclaimed locally.
	SetRelay(target RunLoop)
	Relay() RunLoop

	ExecuteRelay(relay bool, task Task)
	UrgentRelay(relay bool, task Task)
	ExecuteAfterRelay(relay bool, timeout Timeout, task Task)
}

// Equal reports whether a and b are the same underlying loop.
func Equal(a, b RunLoop) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Native() == b.Native()
}

// ExecuteNoRelay is Execute, bypassing any relay.
func ExecuteNoRelay(loop RunLoop, task Task) {
	if r := loop.AsRelayable(); r != nil {
		r.ExecuteRelay(false, task)
		return
	}
	loop.Execute(task)
}

// UrgentNoRelay is Urgent, bypassing any relay.
func UrgentNoRelay(loop RunLoop, task Task) {
	if r := loop.AsRelayable(); r != nil {
		r.UrgentRelay(false, task)
		return
	}
	loop.Urgent(task)
}

// ExecuteAfterNoRelay is ExecuteAfter, bypassing any relay.
func ExecuteAfterNoRelay(loop RunLoop, timeout Timeout, task Task) {
	if r := loop.AsRelayable(); r != nil {
		r.ExecuteAfterRelay(false, timeout, task)
		return
	}
	loop.ExecuteAfter(timeout, task)
}

// MustRunnable panics with a *NotImplementedError if loop is not runnable.
func MustRunnable(loop RunLoop) Runnable {
	if r := loop.AsRunnable(); r != nil {
		return r
	}
	panic(&NotImplementedError{What: `runnable`})
}

// MustRelayable panics with a *NotImplementedError if loop is not relayable.
func MustRelayable(loop RunLoop) Relayable {
	if r := loop.AsRelayable(); r != nil {
		return r
	}
	panic(&NotImplementedError{What: `relayable`})
}

// UnimplementedRunLoop may be embedded by partial engines. Every method
// panics with a *NotImplementedError, except AsRunnable and AsRelayable which
// return nil.
type UnimplementedRunLoop struct{}

func (UnimplementedRunLoop) Execute(Task) {
	panic(&NotImplementedError{What: `Execute`})
}

func (UnimplementedRunLoop) Urgent(Task) {
	panic(&NotImplementedError{What: `Urgent`})
}

func (UnimplementedRunLoop) ExecuteAfter(Timeout, Task) {
	panic(&NotImplementedError{What: `ExecuteAfter`})
}

func (UnimplementedRunLoop) Semaphore(int) Semaphore {
	panic(&NotImplementedError{What: `Semaphore`})
}

func (UnimplementedRunLoop) SyncFunc(func() error) error {
	panic(&NotImplementedError{What: `SyncFunc`})
}

func (UnimplementedRunLoop) Native() any {
	panic(&NotImplementedError{What: `Native`})
}

func (UnimplementedRunLoop) AsRunnable() Runnable { return nil }

func (UnimplementedRunLoop) AsRelayable() Relayable { return nil }
