// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package main

import (
	"bytes"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out syncBuffer
	cmd := newRootCommand(&out)
	cmd.SetArgs(args)
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	err := cmd.Execute()
	return out.String(), err
}

func TestRootCommand_scenarios(t *testing.T) {
	for _, args := range [...][]string{
		{`--scenario`, `fanout`, `--loops`, `3`, `--tasks`, `200`},
		{`--scenario`, `contention`, `--loops`, `4`, `--tasks`, `50`, `--semaphore`, `blocking`},
		{`--scenario`, `contention`, `--loops`, `4`, `--tasks`, `50`, `--semaphore`, `cooperative`},
		{`--scenario`, `relay`, `--loops`, `3`, `--tasks`, `100`},
	} {
		t.Run(strings.Join(args[1:], ` `), func(t *testing.T) {
			out, err := execute(t, append(args, `--timeout`, `20s`)...)
			require.NoError(t, err, out)
			assert.Contains(t, out, `"msg":"scenario started"`)
			assert.Contains(t, out, `"msg":"scenario complete"`)
			assert.Contains(t, out, `"scenario":"`+args[1]+`"`)
		})
	}
}

func TestRootCommand_logLevel(t *testing.T) {
	out, err := execute(t, `--tasks`, `10`, `--log-level`, `disabled`)
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestRootCommand_invalid(t *testing.T) {
	_, err := execute(t, `--scenario`, `nope`)
	assert.EqualError(t, err, `unknown scenario "nope"`)

	_, err = execute(t, `--loops`, `0`)
	assert.EqualError(t, err, `loops must be positive`)

	_, err = execute(t, `extra`)
	assert.Error(t, err)
}
