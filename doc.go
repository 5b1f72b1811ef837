// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

// Package runloop provides run loops: per-goroutine schedulers that accept
// deferred, urgent and delayed tasks, and are driven cooperatively by the
// goroutine that owns them.
//
// # Engines
//
// Two engines implement the [RunLoop] contract:
//   - [Loop]: owned by a single goroutine, which drives it by calling
//     [Loop.Run]. Runs may be nested, and each nested run may be stopped,
//     or time out, without affecting the outer one. A Loop may forward
//     relay-flagged work to another loop, see [Relayable].
//   - [DispatchLoop]: a serial queue, run by a dedicated worker goroutine.
//     It cannot be driven, and does not relay.
//
// Optional capabilities are exposed as typed interfaces, reached via
// [RunLoop.AsRunnable] and [RunLoop.AsRelayable].
//
// # Current Loop
//
// Every goroutine has at most one current loop, returned by [Current], and
// constructed on first use. [TrySetFactory] may be used to change how it is
// constructed, and [Release] drops it. A loop is "home" for the goroutine it
// is current for, and only that goroutine touches its private queues. A
// [Loop] that is not current anywhere may still be driven, by calling Run,
// which binds it to the calling goroutine, becoming current only if the
// goroutine has no loop yet.
//
// # Ordering
//
// Non-urgent tasks run in submission order. Urgent tasks are placed ahead of
// all pending tasks, such that an urgent task submitted later runs before an
// earlier one that has not yet run. Tasks submitted from other goroutines
// are ordered relative to each other, but not relative to tasks submitted by
// the owner.
//
// # Waiting
//
// [NewSemaphore] returns a [CooperativeSemaphore] if the calling goroutine
// owns a runnable loop, which continues running that loop's tasks while
// waiting, or a [BlockingSemaphore] otherwise. [Sync] builds on this, to
// wait for the result of a function run on another loop.
//
// # Usage
//
//	loop, thread, err := runloop.SpawnLoop(runloop.WithName(`worker`))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer thread.Join()
//	defer loop.Stop()
//
//	v, err := runloop.Sync(loop, func() (int, error) {
//	    return 42, nil
//	})
package runloop
