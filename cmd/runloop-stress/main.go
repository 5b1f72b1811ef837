// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

// Command runloop-stress runs stress scenarios against the runloop package,
// logging results as JSON.
package main

import (
	"io"
	"os"

	"github.com/joeycumines/logiface"
	"github.com/joeycumines/stumpy"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCommand(os.Stderr).Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand(logOutput io.Writer) *cobra.Command {
	var (
		configPath string
		flags      = DefaultConfig()
	)

	cmd := &cobra.Command{
		Use:          "runloop-stress",
		Short:        "Run stress scenarios against run loops",
		Long:         "Runs one of the fanout, contention or relay scenarios, verifying every task ran exactly once, on the expected goroutine.",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := LoadConfig(configPath)
			if err != nil {
				return err
			}

			// explicitly set flags override the file
			fs := cmd.Flags()
			if fs.Changed(`scenario`) {
				cfg.Scenario = flags.Scenario
			}
			if fs.Changed(`loops`) {
				cfg.Loops = flags.Loops
			}
			if fs.Changed(`tasks`) {
				cfg.Tasks = flags.Tasks
			}
			if fs.Changed(`semaphore`) {
				cfg.Semaphore = flags.Semaphore
			}
			if fs.Changed(`timeout`) {
				cfg.Timeout = flags.Timeout
			}
			if fs.Changed(`log-level`) {
				cfg.LogLevel = flags.LogLevel
			}

			if err := cfg.Validate(); err != nil {
				return err
			}

			level, _ := parseLevel(cfg.LogLevel)
			logger := newLogger(logOutput, level)

			return run(cmd.Context(), cfg, logger)
		},
	}

	fs := cmd.Flags()
	fs.StringVar(&configPath, `config`, ``, `path to a YAML config file`)
	fs.StringVar(&flags.Scenario, `scenario`, flags.Scenario, `scenario: fanout, contention or relay`)
	fs.IntVar(&flags.Loops, `loops`, flags.Loops, `number of loops, or goroutines for contention`)
	fs.IntVar(&flags.Tasks, `tasks`, flags.Tasks, `number of tasks per loop`)
	fs.StringVar(&flags.Semaphore, `semaphore`, flags.Semaphore, `contention semaphore: blocking or cooperative`)
	fs.DurationVar(&flags.Timeout, `timeout`, flags.Timeout, `bound on the whole run`)
	fs.StringVar(&flags.LogLevel, `log-level`, flags.LogLevel, `debug, info, warning, error or disabled`)

	return cmd
}

func newLogger(w io.Writer, level logiface.Level) *logiface.Logger[logiface.Event] {
	return stumpy.L.New(
		stumpy.L.WithStumpy(stumpy.WithWriter(w)),
		logiface.WithLevel[*stumpy.Event](level),
	).Logger()
}
