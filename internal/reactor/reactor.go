// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

// Package reactor implements the embeddable event loop primitive that
// drives a run loop: a coalescing cross-goroutine wake source, a prepare
// callback invoked at the start of every iteration, and one-shot timers.
//
// Apart from Wake, every method must be called from the goroutine that drives
// the reactor, including from within its callbacks.
package reactor

import (
	"container/heap"
	"errors"
	"sync/atomic"
	"time"
)

// ErrClosed is returned by Wake after Close.
var ErrClosed = errors.New("reactor: closed")

// Reactor is a minimal single-goroutine event loop. Iterations are driven by
// RunOnce, which may be called re-entrantly, from within callbacks.
type Reactor struct { // betteralign:ignore
	_ [0]func()

	onWake  func()
	prepare func() bool

	wakeCh      chan struct{}
	wakePending atomic.Uint32
	closed      atomic.Bool

	timers timerHeap
	stop   bool
}

// Timer is a pending one-shot timer, see Reactor.AddTimer.
type Timer struct {
	when  time.Time
	fn    func()
	seq   uint64
	index int
}

type timerHeap struct {
	items []*Timer
	seq   uint64
}

func (h *timerHeap) Len() int { return len(h.items) }

func (h *timerHeap) Less(i, j int) bool {
	a, b := h.items[i], h.items[j]
	if a.when.Equal(b.when) {
		return a.seq < b.seq
	}
	return a.when.Before(b.when)
}

func (h *timerHeap) Swap(i, j int) {
	h.items[i], h.items[j] = h.items[j], h.items[i]
	h.items[i].index = i
	h.items[j].index = j
}

func (h *timerHeap) Push(x any) {
	t := x.(*Timer)
	t.index = len(h.items)
	h.items = append(h.items, t)
}

func (h *timerHeap) Pop() any {
	old := h.items
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	h.items = old[:n-1]
	t.index = -1
	return t
}

// New constructs a Reactor. Callbacks must be registered, using
// SetWakeHandler and SetPrepare, before the first iteration.
func New() (*Reactor, error) {
	return &Reactor{
		wakeCh: make(chan struct{}, 1),
	}, nil
}

// SetWakeHandler registers the callback run, on the reactor goroutine, after
// one or more calls to Wake.
func (r *Reactor) SetWakeHandler(fn func()) {
	r.onWake = fn
}

// SetPrepare registers the callback run at the start of every iteration,
// before blocking. It must return true if it performed any work, in which
// case the iteration will not block.
func (r *Reactor) SetPrepare(fn func() bool) {
	r.prepare = fn
}

// Wake signals the reactor from any goroutine. Calls made before the wake
// handler runs are coalesced into a single invocation.
func (r *Reactor) Wake() error {
	if r.closed.Load() {
		return ErrClosed
	}
	if r.wakePending.CompareAndSwap(0, 1) {
		select {
		case r.wakeCh <- struct{}{}:
		default:
		}
	}
	return nil
}

// Stop causes the current iteration to return without blocking.
func (r *Reactor) Stop() {
	r.stop = true
}

// AddTimer arms a one-shot timer, calling fn on the reactor goroutine once
// when has passed. Timers with equal deadlines fire in the order added.
func (r *Reactor) AddTimer(when time.Time, fn func()) *Timer {
	r.timers.seq++
	t := &Timer{when: when, fn: fn, seq: r.timers.seq}
	heap.Push(&r.timers, t)
	return t
}

// CancelTimer disarms t, returning false if it already fired or was
// cancelled.
func (r *Reactor) CancelTimer(t *Timer) bool {
	if t == nil || t.index < 0 || t.index >= len(r.timers.items) || r.timers.items[t.index] != t {
		return false
	}
	heap.Remove(&r.timers, t.index)
	return true
}

// Timers returns the number of armed timers.
func (r *Reactor) Timers() int {
	return r.timers.Len()
}

// RunOnce performs a single iteration: due timers, the prepare callback, then
// (if block is true, and neither prepare did work nor Stop was called) waits
// for a wake or the next timer deadline, and finally any timers that became
// due.
func (r *Reactor) RunOnce(block bool) {
	defer func() { r.stop = false }()

	r.runTimers()

	if r.prepare != nil && r.prepare() {
		block = false
	}

	if r.stop || r.closed.Load() {
		return
	}

	var timerC <-chan time.Time
	if block && len(r.timers.items) != 0 {
		d := time.Until(r.timers.items[0].when)
		if d <= 0 {
			block = false
		} else {
			t := time.NewTimer(d)
			defer t.Stop()
			timerC = t.C
		}
	}

	if block {
		select {
		case <-r.wakeCh:
			r.handleWake()
		case <-timerC:
		}
	} else {
		select {
		case <-r.wakeCh:
			r.handleWake()
		default:
		}
	}

	r.runTimers()
}

// Close releases the reactor, and may be called from any goroutine. Further
// calls to Wake fail, and iterations return without blocking. Pending timers
// never fire.
func (r *Reactor) Close() error {
	if !r.closed.CompareAndSwap(false, true) {
		return ErrClosed
	}
	// unblock an iteration, if one is waiting
	select {
	case r.wakeCh <- struct{}{}:
	default:
	}
	return nil
}

func (r *Reactor) handleWake() {
	// must reset before the handler, so that wakes racing with it are kept
	r.wakePending.Store(0)
	if r.onWake != nil {
		r.onWake()
	}
}

func (r *Reactor) runTimers() {
	if len(r.timers.items) == 0 || r.closed.Load() {
		return
	}
	now := time.Now()
	for len(r.timers.items) != 0 && !r.timers.items[0].when.After(now) {
		t := heap.Pop(&r.timers).(*Timer)
		t.fn()
	}
}
