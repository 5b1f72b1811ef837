// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package main

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/joeycumines/go-runloop"
	"github.com/joeycumines/logiface"
	"golang.org/x/sync/errgroup"
)

// result summarises a scenario run.
type result struct {
	Executed int64
	Expected int64
	Elapsed  time.Duration
}

func run(ctx context.Context, cfg *Config, logger *logiface.Logger[logiface.Event]) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	logger.Info().
		Str(`scenario`, cfg.Scenario).
		Int(`loops`, cfg.Loops).
		Int(`tasks`, cfg.Tasks).
		Log(`scenario started`)

	var (
		res *result
		err error
	)
	switch cfg.Scenario {
	case scenarioFanout:
		res, err = runFanout(ctx, cfg, logger)
	case scenarioContention:
		res, err = runContention(ctx, cfg)
	case scenarioRelay:
		res, err = runRelay(ctx, cfg, logger)
	default:
		err = fmt.Errorf("unknown scenario %q", cfg.Scenario)
	}

	if err != nil {
		logger.Err().
			Str(`scenario`, cfg.Scenario).
			Err(err).
			Log(`scenario failed`)
		return err
	}

	logger.Info().
		Str(`scenario`, cfg.Scenario).
		Int64(`executed`, res.Executed).
		Dur(`elapsed`, res.Elapsed).
		Log(`scenario complete`)

	return nil
}

// spawnLoops starts n loops, returning a function that stops and joins them.
func spawnLoops(n int, prefix string, logger *logiface.Logger[logiface.Event]) ([]*runloop.Loop, func() error, error) {
	loops := make([]*runloop.Loop, 0, n)
	threads := make([]*runloop.Thread, 0, n)

	stop := func() error {
		var errs []error
		for i, l := range loops {
			if err := l.Close(); err != nil {
				errs = append(errs, err)
			}
			if err := threads[i].Join(); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	}

	for i := range n {
		l, thread, err := runloop.SpawnLoop(
			runloop.WithLogger(logger),
			runloop.WithName(fmt.Sprintf(`%s-%d`, prefix, i)),
		)
		if err != nil {
			_ = stop()
			return nil, nil, err
		}
		loops = append(loops, l)
		threads = append(threads, thread)
	}

	return loops, stop, nil
}

// awaitCount waits until counter reaches expected, or ctx is done.
func awaitCount(ctx context.Context, counter *atomic.Int64, expected int64) error {
	ticker := time.NewTicker(time.Millisecond)
	defer ticker.Stop()
	for counter.Load() < expected {
		select {
		case <-ctx.Done():
			return fmt.Errorf("executed %d of %d tasks: %w", counter.Load(), expected, ctx.Err())
		case <-ticker.C:
		}
	}
	return nil
}

// runFanout submits tasks to every loop, from one goroutine per loop.
func runFanout(ctx context.Context, cfg *Config, logger *logiface.Logger[logiface.Event]) (_ *result, err error) {
	loops, stop, err := spawnLoops(cfg.Loops, `fanout`, logger)
	if err != nil {
		return nil, err
	}
	defer func() { err = errors.Join(err, stop()) }()

	start := time.Now()
	var executed, misplaced atomic.Int64

	var g errgroup.Group
	for _, l := range loops {
		g.Go(func() error {
			for range cfg.Tasks {
				l.Execute(func() {
					if !runloop.Equal(runloop.Current(), l) {
						misplaced.Add(1)
					}
					executed.Add(1)
				})
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	expected := int64(cfg.Loops * cfg.Tasks)
	if err := awaitCount(ctx, &executed, expected); err != nil {
		return nil, err
	}
	if n := misplaced.Load(); n != 0 {
		return nil, fmt.Errorf("%d task(s) ran off their loop", n)
	}

	return &result{Executed: executed.Load(), Expected: expected, Elapsed: time.Since(start)}, nil
}

// runContention serialises increments through a single semaphore.
func runContention(ctx context.Context, cfg *Config) (*result, error) {
	var sema runloop.Semaphore
	if cfg.Semaphore == semaphoreBlocking {
		sema = runloop.NewBlockingSemaphore(1)
	} else {
		sema = runloop.NewCooperativeSemaphore(1)
	}

	deadline, ok := ctx.Deadline()
	timeout := runloop.Infinite
	if ok {
		timeout = runloop.Until(deadline)
	}

	start := time.Now()
	var counter int64

	threads := make([]*runloop.Thread, cfg.Loops)
	for i := range threads {
		threads[i] = runloop.Spawn(func() error {
			if cfg.Semaphore == semaphoreCooperative {
				l := runloop.Current().(*runloop.Loop)
				defer l.Close()
			}
			for range cfg.Tasks {
				if !sema.Wait(timeout) {
					return context.DeadlineExceeded
				}
				counter++
				sema.Signal()
			}
			return nil
		})
	}

	var errs []error
	for _, thread := range threads {
		errs = append(errs, thread.Join())
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}

	expected := int64(cfg.Loops * cfg.Tasks)
	if counter != expected {
		return nil, fmt.Errorf("lost updates: counted %d of %d", counter, expected)
	}

	return &result{Executed: counter, Expected: expected, Elapsed: time.Since(start)}, nil
}

// runRelay relays the work of background loops onto a single consolidating
// loop.
func runRelay(ctx context.Context, cfg *Config, logger *logiface.Logger[logiface.Event]) (_ *result, err error) {
	consolidators, stopConsolidator, err := spawnLoops(1, `consolidator`, logger)
	if err != nil {
		return nil, err
	}
	defer func() { err = errors.Join(err, stopConsolidator()) }()
	consolidator := consolidators[0]

	loops, stop, err := spawnLoops(cfg.Loops, `background`, logger)
	if err != nil {
		return nil, err
	}
	// background loops first, they may be waiting on a handoff
	defer func() { err = errors.Join(err, stop()) }()

	for _, l := range loops {
		l.SetRelay(consolidator)
	}

	start := time.Now()
	var executed, misplaced atomic.Int64
	for _, l := range loops {
		for range cfg.Tasks {
			l.Execute(func() {
				if !runloop.Equal(runloop.Current(), consolidator) {
					misplaced.Add(1)
				}
				executed.Add(1)
			})
		}
	}

	expected := int64(cfg.Loops * cfg.Tasks)
	if err := awaitCount(ctx, &executed, expected); err != nil {
		return nil, err
	}
	if n := misplaced.Load(); n != 0 {
		return nil, fmt.Errorf("%d relayed task(s) ran off the consolidating loop", n)
	}

	var requests uint64
	for _, l := range loops {
		requests += l.RelayRequests()
	}
	logger.Debug().
		Uint64(`relay_requests`, requests).
		Log(`relay settled`)

	return &result{Executed: executed.Load(), Expected: expected, Elapsed: time.Since(start)}, nil
}
