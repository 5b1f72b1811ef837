// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joeycumines/logiface"
	"gopkg.in/yaml.v3"
)

const (
	scenarioFanout     = `fanout`
	scenarioContention = `contention`
	scenarioRelay      = `relay`

	semaphoreBlocking    = `blocking`
	semaphoreCooperative = `cooperative`
)

// Config describes a stress run. Zero values are replaced by defaults.
type Config struct {
	// Scenario is one of fanout, contention or relay.
	Scenario string `yaml:"scenario"`

	// Loops is the number of loops (fanout, relay), or the number of
	// goroutines (contention).
	Loops int `yaml:"loops"`

	// Tasks is the number of tasks submitted per loop.
	Tasks int `yaml:"tasks"`

	// Semaphore is the semaphore used by the contention scenario, either
	// blocking or cooperative.
	Semaphore string `yaml:"semaphore"`

	// Timeout bounds the whole run.
	Timeout time.Duration `yaml:"timeout"`

	LogLevel string `yaml:"log_level"`
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() *Config {
	return &Config{
		Scenario:  scenarioFanout,
		Loops:     3,
		Tasks:     1000,
		Semaphore: semaphoreCooperative,
		Timeout:   30 * time.Second,
		LogLevel:  `info`,
	}
}

// LoadConfig reads a YAML config file over the defaults.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == `` {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	switch c.Scenario {
	case scenarioFanout, scenarioContention, scenarioRelay:
	default:
		return fmt.Errorf("unknown scenario %q", c.Scenario)
	}
	switch c.Semaphore {
	case semaphoreBlocking, semaphoreCooperative:
	default:
		return fmt.Errorf("unknown semaphore %q", c.Semaphore)
	}
	if c.Loops <= 0 {
		return errors.New("loops must be positive")
	}
	if c.Tasks <= 0 {
		return errors.New("tasks must be positive")
	}
	if c.Timeout <= 0 {
		return errors.New("timeout must be positive")
	}
	if _, err := parseLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

func parseLevel(s string) (logiface.Level, error) {
	switch s {
	case `debug`:
		return logiface.LevelDebug, nil
	case `info`, ``:
		return logiface.LevelInformational, nil
	case `warning`, `warn`:
		return logiface.LevelWarning, nil
	case `error`, `err`:
		return logiface.LevelError, nil
	case `disabled`, `off`:
		return logiface.LevelDisabled, nil
	default:
		return 0, fmt.Errorf("unknown log level %q", s)
	}
}
