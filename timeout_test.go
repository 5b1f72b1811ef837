// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package runloop

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTimeout_zeroValueIsInfinite(t *testing.T) {
	var x Timeout
	assert.True(t, x.IsInfinite())
	assert.False(t, x.Expired())
	_, ok := x.Deadline()
	assert.False(t, ok)
	_, ok = x.Remaining()
	assert.False(t, ok)
	assert.Equal(t, `infinite`, x.String())
	assert.Equal(t, Infinite, x)
}

func TestTimeout_immediate(t *testing.T) {
	assert.True(t, Immediate.IsImmediate())
	assert.True(t, Immediate.Expired())
	d, ok := Immediate.Remaining()
	assert.True(t, ok)
	assert.Zero(t, d)
	assert.Equal(t, `immediate`, Immediate.String())

	assert.Equal(t, Immediate, In(0))
	assert.Equal(t, Immediate, In(-time.Second))
}

func TestTimeout_deadline(t *testing.T) {
	at := time.Now().Add(time.Hour)
	x := Until(at)
	assert.False(t, x.IsInfinite())
	assert.False(t, x.IsImmediate())
	assert.False(t, x.Expired())

	deadline, ok := x.Deadline()
	assert.True(t, ok)
	assert.True(t, deadline.Equal(at))

	d, ok := x.Remaining()
	assert.True(t, ok)
	assert.Greater(t, d, 59*time.Minute)

	past := Until(time.Now().Add(-time.Second))
	assert.True(t, past.Expired())
	d, ok = past.Remaining()
	assert.True(t, ok)
	assert.Zero(t, d)
}

func TestIn_fixesDeadlineAtCallTime(t *testing.T) {
	x := In(20 * time.Millisecond)
	time.Sleep(30 * time.Millisecond)
	assert.True(t, x.Expired())
}
