// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package runloop

import (
	"errors"
	"fmt"
)

var (
	// ErrNotHome is the panic value used when a loop is driven from a
	// goroutine that is not its owner.
	ErrNotHome = errors.New("runloop: loop is owned by another goroutine")

	// ErrClosed is returned by operations on a closed loop or queue.
	ErrClosed = errors.New("runloop: closed")

	// ErrRelaySelf is the panic value used when a loop is set as its own
	// relay target.
	ErrRelaySelf = errors.New("runloop: loop cannot relay to itself")
)

// NotImplementedError is the panic value raised when a capability is used on
// a loop that does not provide it, e.g. MustRunnable on a DispatchLoop.
type NotImplementedError struct {
	What string
}

func (e *NotImplementedError) Error() string {
	return "runloop: not implemented: " + e.What
}

// PanicError wraps a value recovered from a panicking task, see Sync.
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("runloop: task panicked: %v", e.Value)
}

// Unwrap returns the panic value if it is an error, otherwise nil.
func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}
