// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package hotspot

import (
	"os"
	"strconv"
	"strings"
	"syscall"

	"grimm.is/flytrap/internal/errors"
)

// PidFile is the single-instance lock for the controller. Only one lifecycle
// may run per host; a second start must fail fast instead of fighting the
// first over the interface and the firewall.
type PidFile struct {
	path string
	held bool
}

func NewPidFile(path string) *PidFile {
	return &PidFile{path: path}
}

// Acquire claims the pidfile. A pidfile whose process is dead is stale and
// silently replaced.
func (p *PidFile) Acquire() error {
	if data, err := os.ReadFile(p.path); err == nil {
		if pid, err := strconv.Atoi(strings.TrimSpace(string(data))); err == nil {
			if processAlive(pid) {
				return errors.Errorf(errors.KindConflict, "already running (pid %d)", pid)
			}
		}
		// Stale pidfile from a dead process.
		os.Remove(p.path)
	}

	if err := os.WriteFile(p.path, []byte(strconv.Itoa(os.Getpid())), 0o644); err != nil {
		return errors.Wrap(err, errors.KindInternal, "failed to write pidfile")
	}
	p.held = true
	return nil
}

// Release removes the pidfile if this process holds it.
func (p *PidFile) Release() {
	if !p.held {
		return
	}
	p.held = false
	os.Remove(p.path)
}

// processAlive checks a pid with signal 0.
func processAlive(pid int) bool {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return proc.Signal(syscall.Signal(0)) == nil
}
