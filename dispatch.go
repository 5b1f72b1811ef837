// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package runloop

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gammazero/deque"
	"github.com/joeycumines/goroutineid"
	"github.com/joeycumines/logiface"
)

type (
	// DispatchQueue is a serial task queue, run by a dedicated worker
	// goroutine.
	DispatchQueue struct {
		logger *logiface.Logger[logiface.Event]
		name   string
		loop   *DispatchLoop
		timers map[*time.Timer]struct{}
		signal chan struct{}
		done   chan struct{}
		tasks  deque.Deque[Task]
		mu     sync.Mutex
		worker atomic.Int64
		closed bool
	}

	// DispatchLoop is the RunLoop of a DispatchQueue. It is neither runnable
	// nor relayable. All DispatchLoop values for the same queue are Equal.
	DispatchLoop struct {
		queue *DispatchQueue
	}
)

var (
	_ RunLoop = (*Loop)(nil)
	_ RunLoop = (*DispatchLoop)(nil)
)

var dispatchIDs atomic.Uint64

// NewDispatchQueue starts a DispatchQueue. Close must be called to stop the
// worker goroutine.
func NewDispatchQueue(opts ...LoopOption) (*DispatchQueue, error) {
	cfg, err := resolveLoopOptions(opts)
	if err != nil {
		return nil, err
	}

	q := &DispatchQueue{
		logger: cfg.logger,
		name:   cfg.name,
		timers: make(map[*time.Timer]struct{}),
		signal: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
	if q.name == `` {
		q.name = fmt.Sprintf(`dispatch-%d`, dispatchIDs.Add(1))
	}
	q.loop = &DispatchLoop{queue: q}

	ready := make(chan struct{})
	go q.work(ready)
	<-ready

	return q, nil
}

// NewDispatchLoop is NewDispatchQueue, returning the queue's loop.
func NewDispatchLoop(opts ...LoopOption) (*DispatchLoop, error) {
	q, err := NewDispatchQueue(opts...)
	if err != nil {
		return nil, err
	}
	return q.Loop(), nil
}

// Loop returns a RunLoop backed by the queue.
func (q *DispatchQueue) Loop() *DispatchLoop {
	return &DispatchLoop{queue: q}
}

// Submit schedules task, after all previously submitted tasks.
func (q *DispatchQueue) Submit(task Task) error {
	return q.push(task, false)
}

// SubmitUrgent schedules task ahead of all pending tasks.
func (q *DispatchQueue) SubmitUrgent(task Task) error {
	return q.push(task, true)
}

// SubmitAfter schedules task to be submitted once d has elapsed. Pending
// timers are stopped by Close.
func (q *DispatchQueue) SubmitAfter(d time.Duration, task Task) error {
	if task == nil {
		return nil
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrClosed
	}

	var t *time.Timer
	t = time.AfterFunc(d, func() {
		q.mu.Lock()
		delete(q.timers, t)
		q.mu.Unlock()
		if err := q.Submit(task); err != nil {
			q.logger.Warning().
				Str(`queue`, q.name).
				Err(err).
				Log(`dropped delayed task`)
		}
	})
	q.timers[t] = struct{}{}

	return nil
}

// Close stops accepting tasks and pending timers, then waits for the tasks
// already queued to run, unless called from the worker itself.
func (q *DispatchQueue) Close() error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrClosed
	}
	q.closed = true
	for t := range q.timers {
		t.Stop()
	}
	clear(q.timers)
	q.mu.Unlock()

	q.wake()

	if goroutineid.Get() != q.worker.Load() {
		<-q.done
	}

	return nil
}

// Closed reports whether Close has been called.
func (q *DispatchQueue) Closed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

func (q *DispatchQueue) push(task Task, urgent bool) error {
	if task == nil {
		return nil
	}

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrClosed
	}
	if urgent {
		q.tasks.PushFront(task)
	} else {
		q.tasks.PushBack(task)
	}
	q.mu.Unlock()

	q.wake()

	return nil
}

func (q *DispatchQueue) wake() {
	select {
	case q.signal <- struct{}{}:
	default:
	}
}

func (q *DispatchQueue) work(ready chan<- struct{}) {
	defer close(q.done)

	q.worker.Store(goroutineid.Get())
	TrySetFactory(func() RunLoop { return q.loop })
	defer Release()
	Current()

	close(ready)

	for {
		var task Task
		q.mu.Lock()
		if q.tasks.Len() != 0 {
			task = q.tasks.PopFront()
		}
		closed := q.closed
		q.mu.Unlock()

		if task != nil {
			q.run(task)
			continue
		}

		if closed {
			return
		}

		<-q.signal
	}
}

func (q *DispatchQueue) run(task Task) {
	defer func() {
		if r := recover(); r != nil {
			q.logger.Err().
				Str(`queue`, q.name).
				Any(`panic`, r).
				Log(`task panicked`)
		}
	}()
	task()
}

// Queue returns the underlying DispatchQueue.
func (d *DispatchLoop) Queue() *DispatchQueue { return d.queue }

// Execute submits task to the queue, logging it if dropped.
func (d *DispatchLoop) Execute(task Task) {
	d.logDropped(d.queue.Submit(task))
}

// Urgent submits task ahead of the queue's pending tasks, logging it if
// dropped.
func (d *DispatchLoop) Urgent(task Task) {
	d.logDropped(d.queue.SubmitUrgent(task))
}

// ExecuteAfter schedules task once timeout expires. An Infinite timeout
// never fires.
func (d *DispatchLoop) ExecuteAfter(timeout Timeout, task Task) {
	delay, ok := timeout.Remaining()
	if !ok {
		return
	}
	if delay <= 0 {
		d.Execute(task)
		return
	}
	d.logDropped(d.queue.SubmitAfter(delay, task))
}

// Semaphore returns NewSemaphore(value).
func (d *DispatchLoop) Semaphore(value int) Semaphore {
	return NewSemaphore(value)
}

// SyncFunc runs fn on the queue's worker and waits for it, see Sync.
func (d *DispatchLoop) SyncFunc(fn func() error) error {
	if d.queue.Closed() {
		return ErrClosed
	}
	return syncThroughAsync(d, fn)
}

// Native returns the underlying DispatchQueue.
func (d *DispatchLoop) Native() any { return d.queue }

// AsRunnable returns nil, the worker drives the queue.
func (d *DispatchLoop) AsRunnable() Runnable { return nil }

// AsRelayable returns nil.
func (d *DispatchLoop) AsRelayable() Relayable { return nil }

// Closed reports whether the underlying queue is closed.
func (d *DispatchLoop) Closed() bool { return d.queue.Closed() }

// Close closes the underlying queue.
func (d *DispatchLoop) Close() error { return d.queue.Close() }

func (d *DispatchLoop) logDropped(err error) {
	if err == nil {
		return
	}
	d.queue.logger.Warning().
		Str(`queue`, d.queue.name).
		Err(err).
		Log(`dropped task`)
}
