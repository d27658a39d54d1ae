// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package syscmd runs external system commands as typed descriptors. A
// Command is a binary plus an argument vector, never a shell string, so
// user-supplied values (SSID, passphrase) can't be injected into anything.
package syscmd

import (
	"context"
	"errors"
	"os/exec"
	"time"
)

// DefaultTimeout bounds a single command execution. No call in the
// controller blocks indefinitely.
const DefaultTimeout = 10 * time.Second

// Command describes one external invocation.
type Command struct {
	Bin  string
	Args []string
}

// String renders the command for logging.
func (c Command) String() string {
	s := c.Bin
	for _, a := range c.Args {
		s += " " + a
	}
	return s
}

// Runner executes commands. Production code uses ExecRunner; tests inject
// fakes to script outcomes.
type Runner interface {
	// Run executes the command and returns its combined output.
	Run(ctx context.Context, cmd Command) ([]byte, error)
	// LookPath reports where the binary lives, or an error if absent.
	LookPath(bin string) (string, error)
}

// ExecRunner runs commands via os/exec with a per-call timeout.
type ExecRunner struct {
	Timeout time.Duration
}

// NewRunner returns an ExecRunner with the default timeout.
func NewRunner() *ExecRunner {
	return &ExecRunner{Timeout: DefaultTimeout}
}

func (r *ExecRunner) Run(ctx context.Context, cmd Command) ([]byte, error) {
	timeout := r.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return exec.CommandContext(ctx, cmd.Bin, cmd.Args...).CombinedOutput()
}

func (r *ExecRunner) LookPath(bin string) (string, error) {
	return exec.LookPath(bin)
}

// IsNotFound reports whether err means the binary does not exist on PATH.
func IsNotFound(err error) bool {
	return errors.Is(err, exec.ErrNotFound)
}
