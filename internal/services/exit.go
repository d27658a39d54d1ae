// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package services

import (
	"os/exec"
	"syscall"
)

// ExitClass categorizes HOW a supervised process exited, so a stop the
// supervisor requested is never mistaken for a daemon crash.
type ExitClass int

const (
	ExitClean ExitClass = iota
	ExitRequested
	ExitCrash
)

func (c ExitClass) String() string {
	switch c {
	case ExitClean:
		return "clean"
	case ExitRequested:
		return "requested"
	default:
		return "crash"
	}
}

// ClassifyExit inspects a Wait error.
func ClassifyExit(err error) ExitClass {
	if err == nil {
		return ExitClean
	}
	exitErr, ok := err.(*exec.ExitError)
	if !ok {
		return ExitCrash
	}
	status, ok := exitErr.Sys().(syscall.WaitStatus)
	if !ok {
		return ExitCrash
	}
	if status.Signaled() {
		switch status.Signal() {
		case syscall.SIGTERM, syscall.SIGINT, syscall.SIGHUP:
			return ExitRequested
		default:
			// SIGKILL, SIGSEGV, SIGBUS, SIGABRT and friends.
			return ExitCrash
		}
	}
	if status.ExitStatus() == 0 {
		return ExitClean
	}
	return ExitCrash
}
