// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package reactor

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newReactor(t *testing.T) *Reactor {
	t.Helper()
	r, err := New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })
	return r
}

func TestReactor_wakeCoalesces(t *testing.T) {
	r := newReactor(t)
	var calls int
	r.SetWakeHandler(func() { calls++ })

	for i := 0; i < 10; i++ {
		require.NoError(t, r.Wake())
	}
	r.RunOnce(true)
	assert.Equal(t, 1, calls)

	// nothing pending, must not block
	r.RunOnce(false)
	assert.Equal(t, 1, calls)

	require.NoError(t, r.Wake())
	r.RunOnce(true)
	assert.Equal(t, 2, calls)
}

func TestReactor_wakeFromOtherGoroutine(t *testing.T) {
	r := newReactor(t)
	woke := make(chan struct{}, 1)
	r.SetWakeHandler(func() { woke <- struct{}{} })

	go func() {
		time.Sleep(20 * time.Millisecond)
		_ = r.Wake()
	}()

	start := time.Now()
	r.RunOnce(true)
	select {
	case <-woke:
	default:
		t.Fatal("expected the wake handler to have run")
	}
	assert.GreaterOrEqual(t, time.Since(start), 15*time.Millisecond)
}

func TestReactor_timersFireInDeadlineOrder(t *testing.T) {
	r := newReactor(t)
	var order []int
	now := time.Now()
	r.AddTimer(now.Add(30*time.Millisecond), func() { order = append(order, 3) })
	r.AddTimer(now.Add(10*time.Millisecond), func() { order = append(order, 1) })
	r.AddTimer(now.Add(10*time.Millisecond), func() { order = append(order, 2) })
	assert.Equal(t, 3, r.Timers())

	deadline := time.Now().Add(time.Second)
	for r.Timers() != 0 && time.Now().Before(deadline) {
		r.RunOnce(true)
	}
	assert.Equal(t, []int{1, 2, 3}, order)
}

func TestReactor_cancelTimer(t *testing.T) {
	r := newReactor(t)
	var fired bool
	tm := r.AddTimer(time.Now(), func() { fired = true })
	assert.True(t, r.CancelTimer(tm))
	assert.False(t, r.CancelTimer(tm))
	assert.False(t, r.CancelTimer(nil))
	r.RunOnce(false)
	assert.False(t, fired)
}

func TestReactor_prepareWorkSkipsBlocking(t *testing.T) {
	r := newReactor(t)
	var n int
	r.SetPrepare(func() bool {
		n++
		return true
	})
	done := make(chan struct{})
	go func() {
		defer close(done)
		r.RunOnce(true)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("iteration blocked despite prepare doing work")
	}
	assert.Equal(t, 1, n)
}

func TestReactor_stopSkipsBlocking(t *testing.T) {
	r := newReactor(t)
	r.SetPrepare(func() bool {
		r.Stop()
		return false
	})
	done := make(chan struct{})
	go func() {
		defer close(done)
		r.RunOnce(true)
		// stop only applies to a single iteration
		assert.False(t, r.stop)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("iteration blocked despite Stop")
	}
}

func TestReactor_closeUnblocks(t *testing.T) {
	r, err := New()
	require.NoError(t, err)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		r.RunOnce(true)
	}()
	time.Sleep(10 * time.Millisecond)
	require.NoError(t, r.Close())
	wg.Wait()
	assert.ErrorIs(t, r.Close(), ErrClosed)
	assert.ErrorIs(t, r.Wake(), ErrClosed)
}
