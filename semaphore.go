// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package runloop

import (
	"slices"
	"sync"
	"sync/atomic"
	"time"
)

// Semaphore is a counting semaphore.
type Semaphore interface {
	// Wait decrements the counter, waiting while it is negative. Returns
	// false if the timeout expired first, in which case the decrement is
	// undone.
	Wait(timeout Timeout) bool

	// Signal increments the counter, waking the longest waiting caller of
	// Wait, if any. Returns 1 if a waiter was woken, otherwise 0.
	Signal() int
}

// BlockingSemaphore parks the waiting goroutine.
type BlockingSemaphore struct {
	mu      sync.Mutex
	waiters []chan struct{}
	value   int
}

// CooperativeSemaphore is a semaphore that, if the waiting goroutine owns a
// runnable loop, drives that loop while waiting, rather than blocking it.
type CooperativeSemaphore struct {
	mu      sync.Mutex
	waiters []waiter
	value   int
}

// waiter is a registered CooperativeSemaphore.Wait call.
type waiter interface {
	wait(timeout Timeout) bool
	wake()
}

// loopWaiter drives a runnable loop, until woken by a task dispatched to
// that same loop.
type loopWaiter struct {
	loop     Runnable
	done     chan struct{}
	signaled atomic.Bool
}

// semaWaiter parks on a per-wait semaphore.
type semaWaiter struct {
	sema Semaphore
}

// NewSemaphore returns a CooperativeSemaphore if the calling goroutine's
// current loop is runnable, otherwise a BlockingSemaphore. No loop is
// constructed.
func NewSemaphore(value int) Semaphore {
	if cur, ok := lookupCurrent(); ok && cur.AsRunnable() != nil {
		return NewCooperativeSemaphore(value)
	}
	return NewBlockingSemaphore(value)
}

func NewBlockingSemaphore(value int) *BlockingSemaphore {
	return &BlockingSemaphore{value: value}
}

// Wait decrements the count, waiting for a Signal if it went negative.
// Returns false if timeout expired first.
func (x *BlockingSemaphore) Wait(timeout Timeout) bool {
	x.mu.Lock()
	x.value--
	if x.value >= 0 {
		x.mu.Unlock()
		return true
	}
	if timeout.Expired() {
		x.value++
		x.mu.Unlock()
		return false
	}
	ch := make(chan struct{})
	x.waiters = append(x.waiters, ch)
	x.mu.Unlock()

	if waitChan(ch, timeout) {
		return true
	}

	x.mu.Lock()
	defer x.mu.Unlock()
	if i := slices.Index(x.waiters, ch); i >= 0 {
		x.waiters = slices.Delete(x.waiters, i, i+1)
		x.value++
		return false
	}
	// signaled concurrently with the timeout
	return true
}

// Signal increments the count, returning 1 if it woke a waiter.
func (x *BlockingSemaphore) Signal() int {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.value++
	if len(x.waiters) == 0 {
		return 0
	}
	ch := x.waiters[0]
	x.waiters[0] = nil
	x.waiters = x.waiters[1:]
	close(ch)
	return 1
}

func NewCooperativeSemaphore(value int) *CooperativeSemaphore {
	return &CooperativeSemaphore{value: value}
}

// Wait decrements the count, waiting for a Signal if it went negative.
// Returns false if timeout expired first.
func (x *CooperativeSemaphore) Wait(timeout Timeout) bool {
	x.mu.Lock()
	x.value--
	if x.value >= 0 {
		x.mu.Unlock()
		return true
	}
	if timeout.Expired() {
		x.value++
		x.mu.Unlock()
		return false
	}
	w := newWaiter()
	x.waiters = append(x.waiters, w)
	x.mu.Unlock()

	if w.wait(timeout) {
		return true
	}

	x.mu.Lock()
	defer x.mu.Unlock()
	if i := slices.Index(x.waiters, w); i >= 0 {
		x.waiters = slices.Delete(x.waiters, i, i+1)
		x.value++
		return false
	}
	return true
}

// Signal increments the count, returning 1 if it woke a waiter.
func (x *CooperativeSemaphore) Signal() int {
	x.mu.Lock()
	x.value++
	if len(x.waiters) == 0 {
		x.mu.Unlock()
		return 0
	}
	w := x.waiters[0]
	x.waiters[0] = nil
	x.waiters = x.waiters[1:]
	x.mu.Unlock()
	w.wake()
	return 1
}

// newWaiter picks the wait strategy for the calling goroutine.
func newWaiter() waiter {
	cur, ok := lookupCurrent()
	if !ok {
		return &semaWaiter{sema: NewBlockingSemaphore(0)}
	}
	if r := cur.AsRunnable(); r != nil {
		if r.Closed() {
			return &semaWaiter{sema: NewBlockingSemaphore(0)}
		}
		return &loopWaiter{loop: r, done: make(chan struct{})}
	}
	return &semaWaiter{sema: cur.Semaphore(0)}
}

func (x *loopWaiter) wait(timeout Timeout) bool {
	for !x.signaled.Load() {
		if timeout.Expired() {
			return false
		}
		if x.loop.Closed() {
			return waitChan(x.done, timeout)
		}
		x.loop.Run(timeout, true)
	}
	return true
}

func (x *loopWaiter) wake() {
	close(x.done)
	UrgentNoRelay(x.loop, func() { x.signaled.Store(true) })
}

func (x *semaWaiter) wait(timeout Timeout) bool {
	return x.sema.Wait(timeout)
}

func (x *semaWaiter) wake() {
	x.sema.Signal()
}

// waitChan waits for ch to be closed, returning false on timeout.
func waitChan(ch <-chan struct{}, timeout Timeout) bool {
	d, ok := timeout.Remaining()
	if !ok {
		<-ch
		return true
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ch:
		return true
	case <-t.C:
		return false
	}
}
