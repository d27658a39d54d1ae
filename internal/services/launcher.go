// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package services

import (
	"bytes"
	"os/exec"
	"syscall"
)

// Process is a launched OS process under supervision.
type Process interface {
	PID() int
	// Signal delivers a signal to the process.
	Signal(sig syscall.Signal) error
	// Done is closed when the process has exited.
	Done() <-chan struct{}
	// ExitErr returns the wait error after Done is closed.
	ExitErr() error
	// Output returns captured combined output, for start-failure diagnosis.
	Output() string
	// Alive reports whether the process is still running.
	Alive() bool
}

// Launcher starts processes. Tests inject a fake.
type Launcher interface {
	Launch(bin string, args ...string) (Process, error)
	LookPath(bin string) (string, error)
}

// ExecLauncher launches real processes via os/exec.
type ExecLauncher struct{}

func (ExecLauncher) LookPath(bin string) (string, error) {
	return exec.LookPath(bin)
}

func (ExecLauncher) Launch(bin string, args ...string) (Process, error) {
	cmd := exec.Command(bin, args...)
	var buf bytes.Buffer
	cmd.Stdout = &buf
	cmd.Stderr = &buf
	// Own process group so a signal to the controller's group doesn't take
	// the daemons down behind the supervisor's back.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	if err := cmd.Start(); err != nil {
		return nil, err
	}

	p := &execProcess{cmd: cmd, buf: &buf, done: make(chan struct{})}
	go func() {
		p.exitErr = cmd.Wait()
		close(p.done)
	}()
	return p, nil
}

type execProcess struct {
	cmd     *exec.Cmd
	buf     *bytes.Buffer
	done    chan struct{}
	exitErr error
}

func (p *execProcess) PID() int { return p.cmd.Process.Pid }

func (p *execProcess) Signal(sig syscall.Signal) error {
	return p.cmd.Process.Signal(sig)
}

func (p *execProcess) Done() <-chan struct{} { return p.done }

func (p *execProcess) ExitErr() error {
	select {
	case <-p.done:
		return p.exitErr
	default:
		return nil
	}
}

// Output is only safe to read once the process has exited; the supervisor
// consults it for start-failure diagnosis after observing Done.
func (p *execProcess) Output() string {
	return p.buf.String()
}

func (p *execProcess) Alive() bool {
	select {
	case <-p.done:
		return false
	default:
		return true
	}
}
