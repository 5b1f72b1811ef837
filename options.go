// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package runloop

import (
	"errors"
	"time"

	"github.com/joeycumines/logiface"
)

// LoopOption configures a Loop or DispatchQueue.
type LoopOption interface {
	applyLoop(*loopOptions) error
}

type loopOptions struct {
	logger        *logiface.Logger[logiface.Event]
	name          string
	staleLogRates map[time.Duration]int
}

// loopOptionImpl implements LoopOption.
type loopOptionImpl struct {
	applyLoopFunc func(*loopOptions) error
}

func (l *loopOptionImpl) applyLoop(opts *loopOptions) error {
	return l.applyLoopFunc(opts)
}

// WithLogger sets the structured logger. Logging is disabled by default.
func WithLogger(logger *logiface.Logger[logiface.Event]) LoopOption {
	return &loopOptionImpl{func(opts *loopOptions) error {
		opts.logger = logger
		return nil
	}}
}

// WithName sets the name attached to log events.
func WithName(name string) LoopOption {
	return &loopOptionImpl{func(opts *loopOptions) error {
		opts.name = name
		return nil
	}}
}

// WithStaleRelayLogRate limits how often stale relay acknowledgments are
// logged, e.g. map[time.Duration]int{time.Second: 5}. A nil or empty map
// disables the limit.
func WithStaleRelayLogRate(rates map[time.Duration]int) LoopOption {
	return &loopOptionImpl{func(opts *loopOptions) error {
		for d, n := range rates {
			if d <= 0 || n <= 0 {
				return errors.New("runloop: invalid stale relay log rate")
			}
		}
		opts.staleLogRates = rates
		return nil
	}}
}

// resolveLoopOptions applies LoopOption instances to loopOptions.
func resolveLoopOptions(opts []LoopOption) (*loopOptions, error) {
	cfg := &loopOptions{
		staleLogRates: map[time.Duration]int{
			time.Second: 10,
			time.Minute: 100,
		},
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt.applyLoop(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}
