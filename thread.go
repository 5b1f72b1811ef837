// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package runloop

import (
	"runtime"

	"golang.org/x/sync/errgroup"
)

// Thread is a goroutine started by Spawn, locked to its OS thread.
type Thread struct {
	group errgroup.Group
}

// Spawn runs fn on a new goroutine, locked to its OS thread. The goroutine's
// registry entry is released when fn returns. A panic in fn is returned by
// Join as a *PanicError.
func Spawn(fn func() error) *Thread {
	t := new(Thread)
	t.group.Go(func() (err error) {
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()
		defer Release()
		defer func() {
			if r := recover(); r != nil {
				err = &PanicError{Value: r}
			}
		}()
		return fn()
	})
	return t
}

// Join waits for the goroutine to exit, returning the error from its
// function.
func (t *Thread) Join() error {
	return t.group.Wait()
}

// SpawnLoop starts a goroutine that owns a new Loop, and runs it until it is
// stopped or closed.
func SpawnLoop(opts ...LoopOption) (*Loop, *Thread, error) {
	l, err := NewLoop(opts...)
	if err != nil {
		return nil, nil, err
	}

	ready := make(chan struct{})
	t := Spawn(func() error {
		if !adopt(l) {
			close(ready)
			return ErrNotHome
		}
		close(ready)
		l.Run(Infinite, false)
		return nil
	})
	<-ready

	return l, t, nil
}
