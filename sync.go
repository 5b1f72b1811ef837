// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package runloop

// Sync runs fn on loop, and waits for its result. If the caller is already
// running on loop, fn is called directly. Otherwise the wait uses
// NewSemaphore, so a caller that owns a runnable loop keeps running its
// queued tasks in the meantime.
//
// The error returned by fn is returned as-is. A panic in fn is returned as a
// *PanicError.
func Sync[T any](loop RunLoop, fn func() (T, error)) (T, error) {
	var v T
	err := loop.SyncFunc(func() error {
		var err error
		v, err = fn()
		return err
	})
	return v, err
}

// SyncVoid is Sync for functions that return only an error.
func SyncVoid(loop RunLoop, fn func() error) error {
	return loop.SyncFunc(fn)
}

func syncThroughAsync(loop RunLoop, fn func() error) error {
	if cur, ok := lookupCurrent(); ok && Equal(cur, loop) {
		return callCaptured(fn)
	}

	var err error
	sema := NewSemaphore(0)
	ExecuteNoRelay(loop, func() {
		defer sema.Signal()
		err = callCaptured(fn)
	})

	c, _ := loop.(closedChecker)
	if c == nil {
		sema.Wait(Infinite)
		return err
	}
	for !sema.Wait(In(relayPollInterval)) {
		// the task is dropped if the loop closed first
		if c.Closed() {
			return ErrClosed
		}
	}
	return err
}

type closedChecker interface {
	Closed() bool
}

func callCaptured(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r}
		}
	}()
	return fn()
}
