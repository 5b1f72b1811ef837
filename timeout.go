// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package runloop

import (
	"time"
)

type timeoutKind uint8

const (
	timeoutInfinite timeoutKind = iota
	timeoutImmediate
	timeoutDeadline
)

// Timeout is a point in time used to bound waits and runs. The zero value is
// Infinite.
type Timeout struct {
	deadline time.Time
	kind     timeoutKind
}

var (
	// Infinite never expires.
	Infinite = Timeout{}

	// Immediate has always expired.
	Immediate = Timeout{kind: timeoutImmediate}
)

// Until returns a Timeout that expires at t.
func Until(t time.Time) Timeout {
	return Timeout{deadline: t, kind: timeoutDeadline}
}

// In returns a Timeout that expires after d, measured from now. A
// non-positive d results in Immediate.
func In(d time.Duration) Timeout {
	if d <= 0 {
		return Immediate
	}
	return Until(time.Now().Add(d))
}

// Deadline returns the absolute deadline, and false if the timeout is
// Infinite. The deadline of Immediate is the zero time.
func (x Timeout) Deadline() (time.Time, bool) {
	switch x.kind {
	case timeoutInfinite:
		return time.Time{}, false
	case timeoutImmediate:
		return time.Time{}, true
	default:
		return x.deadline, true
	}
}

func (x Timeout) IsInfinite() bool { return x.kind == timeoutInfinite }

func (x Timeout) IsImmediate() bool { return x.kind == timeoutImmediate }

// Expired reports whether the deadline has been reached.
func (x Timeout) Expired() bool {
	switch x.kind {
	case timeoutInfinite:
		return false
	case timeoutImmediate:
		return true
	default:
		return !time.Now().Before(x.deadline)
	}
}

// Remaining returns the time left before the deadline, clamped at zero, and
// false if the timeout is Infinite.
func (x Timeout) Remaining() (time.Duration, bool) {
	switch x.kind {
	case timeoutInfinite:
		return 0, false
	case timeoutImmediate:
		return 0, true
	default:
		d := time.Until(x.deadline)
		if d < 0 {
			d = 0
		}
		return d, true
	}
}

func (x Timeout) String() string {
	switch x.kind {
	case timeoutInfinite:
		return `infinite`
	case timeoutImmediate:
		return `immediate`
	default:
		return x.deadline.Format(time.RFC3339Nano)
	}
}
