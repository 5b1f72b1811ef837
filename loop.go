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
	"github.com/joeycumines/go-catrate"
	"github.com/joeycumines/go-runloop/internal/reactor"
	"github.com/joeycumines/goroutineid"
	"github.com/joeycumines/logiface"
)

// scheduledTask is a queued Task, with its submission flags.
type scheduledTask struct {
	task   Task
	urgent bool
	relay  bool
}

// Loop is a RunLoop owned by a single goroutine, which drives it by calling
// Run. It is the default engine, see Current.
//
// Tasks submitted from the owner goroutine are queued without locking. Tasks
// submitted from other goroutines are queued under a mutex, and the owner is
// woken, coalescing concurrent wakes.
type Loop struct { // betteralign:ignore
	_ [0]func() // Prevent copying

	reactor      *reactor.Reactor
	logger       *logiface.Logger[logiface.Event]
	staleLimiter *catrate.Limiter
	name         string
	id           uint64

	// owner is the goroutine ID of the home goroutine, or 0 if unbound
	owner atomic.Int64

	commonMu  sync.Mutex
	common    []scheduledTask
	commonBuf []scheduledTask

	// owner only
	personal     deque.Deque[scheduledTask]
	relayPending deque.Deque[scheduledTask]

	relay         atomic.Pointer[relayState]
	relayMu       sync.Mutex
	relayRequests atomic.Uint64

	// owner only
	depth         int
	running       bool
	stopRequested bool

	protected atomic.Bool
	closed    atomic.Bool
}

var loopIDs atomic.Uint64

// NewLoop constructs a Loop. It is bound to a goroutine on the first call to
// Run, or when it becomes the result of Current.
func NewLoop(opts ...LoopOption) (*Loop, error) {
	cfg, err := resolveLoopOptions(opts)
	if err != nil {
		return nil, err
	}

	limiter, err := newStaleLimiter(cfg.staleLogRates)
	if err != nil {
		return nil, err
	}

	r, err := reactor.New()
	if err != nil {
		return nil, fmt.Errorf("runloop: reactor: %w", err)
	}

	l := &Loop{
		reactor:      r,
		logger:       cfg.logger,
		staleLimiter: limiter,
		name:         cfg.name,
		id:           loopIDs.Add(1),
	}
	if l.name == `` {
		l.name = fmt.Sprintf(`loop-%d`, l.id)
	}

	// callbacks last, all state they reference exists
	r.SetWakeHandler(l.onWake)
	r.SetPrepare(l.drain)

	return l, nil
}

// MustNewLoop is NewLoop, panicking on error.
func MustNewLoop(opts ...LoopOption) *Loop {
	l, err := NewLoop(opts...)
	if err != nil {
		panic(err)
	}
	return l
}

func newStaleLimiter(rates map[time.Duration]int) (limiter *catrate.Limiter, err error) {
	if len(rates) == 0 {
		return nil, nil
	}
	defer func() {
		if r := recover(); r != nil {
			limiter, err = nil, fmt.Errorf("runloop: stale relay log rate: %v", r)
		}
	}()
	return catrate.NewLimiter(rates), nil
}

// ID returns a process-unique identifier for the loop.
func (l *Loop) ID() uint64 { return l.id }

// Name returns the name set by WithName, or a generated default.
func (l *Loop) Name() string { return l.name }

// Depth returns the number of nested Run calls in progress. It must only be
// called from the owner goroutine.
func (l *Loop) Depth() int { return l.depth }

// Closed reports whether Close has been called.
func (l *Loop) Closed() bool { return l.closed.Load() }

// Native returns the loop's reactor, which identifies it for Equal.
func (l *Loop) Native() any { return l.reactor }

// AsRunnable returns the loop itself.
func (l *Loop) AsRunnable() Runnable { return l }

// AsRelayable returns the loop itself.
func (l *Loop) AsRelayable() Relayable { return l }

// SetProtected sets whether Stop is ignored.
func (l *Loop) SetProtected(protected bool) { l.protected.Store(protected) }

// Protected reports whether Stop is ignored.
func (l *Loop) Protected() bool { return l.protected.Load() }

// Execute schedules a relayable task, after all previously scheduled tasks.
func (l *Loop) Execute(task Task) { l.ExecuteRelay(true, task) }

// Urgent schedules a relayable task ahead of pending non-urgent tasks.
func (l *Loop) Urgent(task Task) { l.UrgentRelay(true, task) }

// ExecuteAfter schedules a relayable task once timeout expires.
func (l *Loop) ExecuteAfter(timeout Timeout, task Task) {
	l.ExecuteAfterRelay(true, timeout, task)
}

// ExecuteRelay is Execute, with relay controlling whether the task may be
// handed to the relay target.
func (l *Loop) ExecuteRelay(relay bool, task Task) {
	l.submit(scheduledTask{task: task, relay: relay})
}

// UrgentRelay is Urgent, with relay controlling whether the task may be
// handed to the relay target.
func (l *Loop) UrgentRelay(relay bool, task Task) {
	l.submit(scheduledTask{task: task, urgent: true, relay: relay})
}

// ExecuteAfterRelay schedules task once timeout expires. The deadline is
// fixed at call time, and timers are managed by the owner goroutine, so the
// loop must be running for the task to fire.
func (l *Loop) ExecuteAfterRelay(relay bool, timeout Timeout, task Task) {
	if timeout.IsImmediate() {
		l.ExecuteRelay(relay, task)
		return
	}
	deadline, ok := timeout.Deadline()
	if !ok {
		// never fires
		return
	}
	l.ExecuteRelay(false, func() { l.schedule(relay, deadline, task) })
}

func (l *Loop) schedule(relay bool, deadline time.Time, task Task) {
	if relay {
		if rs := l.relay.Load(); rs != nil {
			rs.target.ExecuteAfter(Until(deadline), task)
			return
		}
	}
	if !time.Now().Before(deadline) {
		l.UrgentRelay(relay, task)
		return
	}
	l.reactor.AddTimer(deadline, func() {
		// the relay may have changed since scheduling
		if !relay || l.relay.Load() == nil {
			l.runTask(task)
		} else {
			l.ExecuteRelay(relay, task)
		}
	})
}

// Semaphore returns NewSemaphore(value).
func (l *Loop) Semaphore(value int) Semaphore {
	return NewSemaphore(value)
}

// SyncFunc runs fn on the loop and waits for it to complete, returning its
// error. It runs fn inline if called from the owner goroutine.
func (l *Loop) SyncFunc(fn func() error) error {
	if l.closed.Load() {
		return ErrClosed
	}
	return syncThroughAsync(l, fn)
}

// Run drives the loop, see Runnable.
func (l *Loop) Run(timeout Timeout, once bool) (timedOut bool) {
	id := goroutineid.Get()
	if !l.bindOwner(id) {
		panic(ErrNotHome)
	}
	// the goroutine's current loop, if any, is kept
	adoptVacant(id, l)
	if l.closed.Load() {
		return false
	}

	prevRunning, prevStop := l.running, l.stopRequested
	l.running, l.stopRequested = true, false
	l.depth++
	depth := l.depth
	defer func() {
		l.depth--
		l.running, l.stopRequested = prevRunning, prevStop
		if l.depth == 0 && l.closed.Load() {
			l.teardown()
		}
	}()

	if timeout.IsImmediate() {
		l.reactor.RunOnce(false)
		return true
	}

	if deadline, ok := timeout.Deadline(); ok {
		timer := l.reactor.AddTimer(deadline, func() {
			timedOut = true
			// a nested run will return to this one, which then exits
			if l.depth == depth {
				l.halt()
			}
		})
		defer l.reactor.CancelTimer(timer)
	}

	for {
		l.reactor.RunOnce(true)
		if timedOut {
			return true
		}
		if !timeout.IsInfinite() && timeout.Expired() {
			return true
		}
		if once || l.stopRequested || l.closed.Load() {
			return false
		}
	}
}

// Stop ends the innermost Run. Calls from goroutines other than the owner
// are routed through the queue, as an urgent task.
func (l *Loop) Stop() {
	if l.protected.Load() {
		return
	}
	if l.isHome() {
		l.halt()
		return
	}
	l.UrgentRelay(false, func() {
		if !l.protected.Load() {
			l.halt()
		}
	})
}

func (l *Loop) halt() {
	if l.depth == 0 {
		return
	}
	l.stopRequested = true
	l.reactor.Stop()
}

// Close stops the loop and discards queued work. It may be called from any
// goroutine. Any Run in progress returns, and subsequently submitted tasks
// are dropped.
func (l *Loop) Close() error {
	l.commonMu.Lock()
	if !l.closed.CompareAndSwap(false, true) {
		l.commonMu.Unlock()
		return ErrClosed
	}
	dropped := len(l.common)
	clear(l.common)
	l.common = l.common[:0]
	l.commonMu.Unlock()
	l.logDropped(dropped)

	if err := l.reactor.Close(); err != nil {
		return err
	}

	if l.isHome() && l.depth == 0 {
		l.teardown()
	}

	return nil
}

// teardown discards the owner's queues, after Close.
func (l *Loop) teardown() {
	dropped := l.personal.Len() + l.relayPending.Len()
	l.personal.Clear()
	l.relayPending.Clear()
	l.logDropped(dropped)
}

func (l *Loop) logDropped(n int) {
	if n == 0 {
		return
	}
	l.logger.Warning().
		Str(`loop`, l.name).
		Int(`count`, n).
		Log(`dropped task(s) on close`)
}

func (l *Loop) bindOwner(id int64) bool {
	return l.owner.CompareAndSwap(0, id) || l.owner.Load() == id
}

// isHome reports whether the caller is the owner goroutine.
func (l *Loop) isHome() bool {
	owner := l.owner.Load()
	return owner != 0 && owner == goroutineid.Get()
}

func (l *Loop) submit(st scheduledTask) {
	if st.task == nil {
		return
	}

	if l.closed.Load() {
		l.logDropped(1)
		return
	}

	if l.isHome() {
		l.pushPersonal(st)
		return
	}

	l.commonMu.Lock()
	if l.closed.Load() {
		l.commonMu.Unlock()
		l.logDropped(1)
		return
	}
	l.common = append(l.common, st)
	l.commonMu.Unlock()

	_ = l.reactor.Wake()
}

func (l *Loop) pushPersonal(st scheduledTask) {
	if st.urgent {
		l.personal.PushFront(st)
	} else {
		l.personal.PushBack(st)
	}
}

// onWake moves tasks from common to personal. Pending urgent tasks end up
// in reverse submission order, ahead of everything else.
func (l *Loop) onWake() {
	l.commonMu.Lock()
	tasks := l.common
	l.common = l.commonBuf[:0]
	l.commonMu.Unlock()

	for _, st := range tasks {
		l.pushPersonal(st)
	}

	clear(tasks)
	l.commonBuf = tasks[:0]
}

// drain runs queued tasks, diverting relay tasks while a relay is set.
// Returns true if the reactor should not block.
func (l *Loop) drain() bool {
	var worked bool
	for !l.stopRequested && !l.closed.Load() {
		rs := l.relay.Load()
		if rs == nil && l.relayPending.Len() != 0 {
			l.reclaimRelayPending()
		}

		if l.personal.Len() == 0 {
			break
		}
		st := l.personal.PopFront()
		worked = true

		if st.relay && rs != nil {
			l.relayPending.PushBack(st)
			if rs.armed.CompareAndSwap(false, true) {
				l.sendRelayRequest(rs)
			}
			continue
		}

		l.runTask(st.task)
	}
	return worked || l.stopRequested
}

// reclaimRelayPending moves relay pending tasks to the head of personal,
// preserving their order.
func (l *Loop) reclaimRelayPending() {
	for l.relayPending.Len() != 0 {
		l.personal.PushFront(l.relayPending.PopBack())
	}
}

func (l *Loop) runTask(task Task) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Err().
				Str(`loop`, l.name).
				Any(`panic`, r).
				Log(`task panicked`)
		}
	}()
	task()
}
