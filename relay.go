// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package runloop

import (
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// relayPollInterval bounds how long a relay request waits on its target
// before checking whether the source loop has been closed.
const relayPollInterval = 100 * time.Millisecond

// relayState is replaced on every change of relay target. The signature
// identifies the current target, and is compared before trusting a relay
// acknowledgment.
type relayState struct {
	target    RunLoop
	armed     *atomic.Bool
	signature uuid.UUID
}

// SetRelay sets the loop that relay tasks are forwarded to. It may be called
// from any goroutine. Setting a target equal to the current one has no
// effect. Setting nil stops forwarding, and any tasks pending relay are run
// locally, ahead of other queued work.
func (l *Loop) SetRelay(target RunLoop) {
	l.relayMu.Lock()
	defer l.relayMu.Unlock()

	prev := l.relay.Load()

	if target == nil {
		if prev == nil {
			return
		}
		l.relay.Store(nil)
		l.logger.Debug().
			Str(`loop`, l.name).
			Log(`relay cleared`)
		// the drain reclaims, this makes sure it happens
		l.UrgentRelay(false, l.reclaimRelayPending)
		return
	}

	if Equal(target, l) {
		panic(ErrRelaySelf)
	}

	if prev != nil && Equal(prev.target, target) {
		return
	}

	rs := &relayState{
		target:    target,
		armed:     new(atomic.Bool),
		signature: uuid.New(),
	}
	rs.armed.Store(true)
	l.relay.Store(rs)

	l.logger.Debug().
		Str(`loop`, l.name).
		Str(`signature`, rs.signature.String()).
		Log(`relay set`)

	l.sendRelayRequest(rs)
}

// Relay returns the current relay target, or nil.
func (l *Loop) Relay() RunLoop {
	if rs := l.relay.Load(); rs != nil {
		return rs.target
	}
	return nil
}

// RelayRequests returns the number of relay requests sent to date.
func (l *Loop) RelayRequests() uint64 {
	return l.relayRequests.Load()
}

func (l *Loop) sendRelayRequest(rs *relayState) {
	l.relayRequests.Add(1)
	sig := rs.signature
	ExecuteNoRelay(rs.target, func() { l.relayTasks(sig) })
}

// relayTasks runs on the relay target, and waits for the source loop to
// hand over its pending relay tasks.
func (l *Loop) relayTasks(sig uuid.UUID) {
	sema := NewSemaphore(0)
	l.ExecuteRelay(false, func() {
		defer sema.Signal()
		l.handoff(sig)
	})
	for !sema.Wait(In(relayPollInterval)) {
		if l.closed.Load() {
			return
		}
	}
}

// handoff runs on the owner goroutine, and forwards pending relay tasks, if
// sig is still current.
func (l *Loop) handoff(sig uuid.UUID) {
	rs := l.relay.Load()
	if rs == nil || rs.signature != sig {
		l.logStaleRelay(sig)
		return
	}

	var moved int
	for l.relayPending.Len() != 0 {
		rs.target.Execute(l.relayPending.PopFront().task)
		moved++
	}

	if moved == 0 {
		// re-armed by the drain, when it next diverts a task
		rs.armed.Store(false)
		return
	}

	l.sendRelayRequest(rs)
}

func (l *Loop) logStaleRelay(sig uuid.UUID) {
	b := l.logger.Debug()
	if !b.Enabled() {
		return
	}
	if _, ok := l.staleLimiter.Allow(l.id); !ok {
		b.Release()
		return
	}
	b.Str(`loop`, l.name).
		Str(`signature`, sig.String()).
		Log(`ignored stale relay acknowledgment`)
}
