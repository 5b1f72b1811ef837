// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package runloop

import (
	"bytes"
	"sync"
	"testing"
	"time"

	"github.com/joeycumines/logiface"
	"github.com/joeycumines/stumpy"
	"github.com/stretchr/testify/require"
)

// currentLoop returns the test goroutine's loop, closing and releasing it
// on cleanup.
func currentLoop(t *testing.T) *Loop {
	t.Helper()
	l, ok := Current().(*Loop)
	require.True(t, ok)
	t.Cleanup(func() {
		_ = l.Close()
		Release()
	})
	return l
}

// spawnLoop starts a loop on its own goroutine, stopping and joining it on
// cleanup.
func spawnLoop(t *testing.T, opts ...LoopOption) *Loop {
	t.Helper()
	l, thread, err := SpawnLoop(opts...)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = l.Close()
		require.NoError(t, thread.Join())
	})
	return l
}

// newDispatchLoop returns a new DispatchLoop, closed on cleanup.
func newDispatchLoop(t *testing.T, opts ...LoopOption) *DispatchLoop {
	t.Helper()
	d, err := NewDispatchLoop(opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.Close() })
	return d
}

// syncBuffer is a bytes.Buffer safe for concurrent use.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (x *syncBuffer) Write(p []byte) (int, error) {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.buf.Write(p)
}

func (x *syncBuffer) String() string {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.buf.String()
}

// newTestLogger returns a JSON logger writing to the returned buffer.
func newTestLogger(level logiface.Level) (*logiface.Logger[logiface.Event], *syncBuffer) {
	var buf syncBuffer
	logger := stumpy.L.New(
		stumpy.L.WithStumpy(
			stumpy.WithWriter(&buf),
			stumpy.WithTimeField(``),
		),
		logiface.WithLevel[*stumpy.Event](level),
	)
	return logger.Logger(), &buf
}

// waitFor fails the test if ch is not closed within a generous bound.
func waitFor(t *testing.T, ch <-chan struct{}) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(10 * time.Second):
		t.Fatal(`timed out waiting`)
	}
}

// homeLoop returns a new loop owned by the test goroutine.
func homeLoop(t *testing.T, opts ...LoopOption) *Loop {
	t.Helper()
	l, err := NewLoop(opts...)
	require.NoError(t, err)
	require.True(t, adopt(l))
	t.Cleanup(func() {
		_ = l.Close()
		Release()
	})
	return l
}

// commonLen returns the number of tasks waiting for the owner to wake.
func (l *Loop) commonLen() int {
	l.commonMu.Lock()
	defer l.commonMu.Unlock()
	return len(l.common)
}
