// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package runloop

import (
	"sync"
	"sync/atomic"

	"github.com/joeycumines/goroutineid"
)

// Factory constructs the current loop of a goroutine, see TrySetFactory.
type Factory func() RunLoop

type (
	// slot is the per-goroutine registry entry. It is only ever accessed by
	// the goroutine it belongs to.
	slot struct {
		factory Factory
		loop    atomic.Pointer[loopRef]
	}

	loopRef struct {
		loop RunLoop
	}

	// ownerBinder is implemented by engines that record the goroutine they
	// belong to.
	ownerBinder interface {
		bindOwner(id int64) bool
	}
)

// slots maps goroutine ID to *slot.
var slots sync.Map

func defaultFactory() RunLoop {
	return MustNewLoop()
}

func loadSlot(id int64, factory Factory) *slot {
	if v, ok := slots.Load(id); ok {
		return v.(*slot)
	}
	v, _ := slots.LoadOrStore(id, &slot{factory: factory})
	return v.(*slot)
}

func (x *slot) get(id int64) RunLoop {
	if ref := x.loop.Load(); ref != nil {
		return ref.loop
	}
	loop := x.factory()
	if loop == nil {
		panic(`runloop: factory returned nil`)
	}
	if b, ok := loop.(ownerBinder); ok && !b.bindOwner(id) {
		panic(ErrNotHome)
	}
	ref := &loopRef{loop: loop}
	if !x.loop.CompareAndSwap(nil, ref) {
		return x.loop.Load().loop
	}
	return loop
}

// Current returns the calling goroutine's loop, constructing it on first use,
// using the factory set by TrySetFactory, or NewLoop. The loop is retained
// until Release is called.
func Current() RunLoop {
	id := goroutineid.Get()
	return loadSlot(id, defaultFactory).get(id)
}

// TrySetFactory sets the factory used by Current, for the calling goroutine.
// It returns false, and has no effect, if the goroutine already has a factory.
func TrySetFactory(factory Factory) bool {
	if factory == nil {
		factory = defaultFactory
	}
	_, loaded := slots.LoadOrStore(goroutineid.Get(), &slot{factory: factory})
	return !loaded
}

// Release removes the calling goroutine's registry entry. It does not close
// the loop. Goroutines that used Current should call Release before exiting.
func Release() {
	slots.Delete(goroutineid.Get())
}

// lookupCurrent returns the calling goroutine's loop, without constructing it.
func lookupCurrent() (RunLoop, bool) {
	v, ok := slots.Load(goroutineid.Get())
	if !ok {
		return nil, false
	}
	ref := v.(*slot).loop.Load()
	if ref == nil {
		return nil, false
	}
	return ref.loop, true
}

// adopt makes loop the calling goroutine's current loop, if it has none,
// returning false if the goroutine already belongs to a different loop.
func adopt(loop RunLoop) bool {
	id := goroutineid.Get()
	return Equal(loadSlot(id, func() RunLoop { return loop }).get(id), loop)
}

// adoptVacant makes loop the current loop of goroutine id, only if that
// goroutine has no registry entry. It never constructs a loop.
func adoptVacant(id int64, loop RunLoop) {
	if _, ok := slots.Load(id); ok {
		return
	}
	x := &slot{factory: func() RunLoop { return loop }}
	x.loop.Store(&loopRef{loop: loop})
	slots.LoadOrStore(id, x)
}
