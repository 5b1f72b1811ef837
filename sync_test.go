// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package runloop

import (
	"errors"
	"io"
	"testing"
	"time"

	"github.com/joeycumines/goroutineid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errTest = errors.New(`test error`)

func TestSync_loop(t *testing.T) {
	l := spawnLoop(t)

	v, err := Sync(l, func() (string, error) { return `result`, nil })
	require.NoError(t, err)
	assert.Equal(t, `result`, v)

	owner, err := Sync(l, func() (int64, error) { return goroutineid.Get(), nil })
	require.NoError(t, err)
	assert.Equal(t, l.owner.Load(), owner)
	assert.NotEqual(t, goroutineid.Get(), owner)

	_, err = Sync(l, func() (int, error) { return 0, errTest })
	assert.Equal(t, errTest, err)
}

func TestSync_dispatch(t *testing.T) {
	d := newDispatchLoop(t)

	v, err := Sync(d, func() (string, error) { return `result`, nil })
	require.NoError(t, err)
	assert.Equal(t, `result`, v)

	assert.Equal(t, errTest, SyncVoid(d, func() error { return errTest }))
}

func TestSync_panic(t *testing.T) {
	d := newDispatchLoop(t)

	_, err := Sync(d, func() (int, error) { panic(io.EOF) })
	var pe *PanicError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, io.EOF, pe.Value)
	assert.ErrorIs(t, err, io.EOF)

	// still usable
	v, err := Sync(d, func() (int, error) { return 1, nil })
	require.NoError(t, err)
	assert.Equal(t, 1, v)
}

func TestSync_inlineWhenHome(t *testing.T) {
	l := currentLoop(t)

	id := goroutineid.Get()
	v, err := Sync(l, func() (int64, error) {
		assert.Zero(t, l.Depth())
		return goroutineid.Get(), nil
	})
	require.NoError(t, err)
	assert.Equal(t, id, v)

	_, err = Sync(l, func() (int, error) { panic(`inline`) })
	var pe *PanicError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, `inline`, pe.Value)
}

func TestSync_nestedDispatch(t *testing.T) {
	d := newDispatchLoop(t)

	v, err := Sync(d, func() (int, error) {
		return Sync(d, func() (int, error) { return 2, nil })
	})
	require.NoError(t, err)
	assert.Equal(t, 2, v)
}

func TestSync_callerKeepsServicingItsLoop(t *testing.T) {
	l := currentLoop(t)
	target := spawnLoop(t)

	var serviced bool
	v, err := Sync(target, func() (int, error) {
		done := make(chan struct{})
		l.Execute(func() {
			serviced = true
			close(done)
		})
		<-done
		return 7, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 7, v)
	assert.True(t, serviced)
}

func TestSync_closed(t *testing.T) {
	l, err := NewLoop()
	require.NoError(t, err)
	require.NoError(t, l.Close())
	_, err = Sync(l, func() (int, error) { return 1, nil })
	assert.ErrorIs(t, err, ErrClosed)

	d, err := NewDispatchLoop()
	require.NoError(t, err)
	require.NoError(t, d.Close())
	assert.ErrorIs(t, SyncVoid(d, func() error { return nil }), ErrClosed)
}

func TestSync_closedWhileWaiting(t *testing.T) {
	// never run, so the task is never picked up
	l, err := NewLoop()
	require.NoError(t, err)

	timer := time.AfterFunc(50*time.Millisecond, func() { _ = l.Close() })
	defer timer.Stop()

	_, err = Sync(l, func() (int, error) { return 1, nil })
	assert.ErrorIs(t, err, ErrClosed)
}
