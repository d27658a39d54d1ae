// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package services

import (
	"context"
	"fmt"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"grimm.is/flytrap/internal/errors"
	"grimm.is/flytrap/internal/logging"
	"grimm.is/flytrap/internal/syscmd"
)

// fakeProcess is a scriptable Process.
type fakeProcess struct {
	pid     int
	output  string
	exitErr error

	mu      sync.Mutex
	done    chan struct{}
	signals []syscall.Signal

	// killExits makes SIGKILL terminate the process, SIGTERM ignored.
	killExits bool
	// termExits makes SIGTERM terminate the process.
	termExits bool
}

func newFakeProcess(pid int) *fakeProcess {
	return &fakeProcess{pid: pid, done: make(chan struct{}), termExits: true}
}

func (p *fakeProcess) PID() int { return p.pid }

func (p *fakeProcess) Signal(sig syscall.Signal) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.signals = append(p.signals, sig)
	if (sig == syscall.SIGTERM && p.termExits) || (sig == syscall.SIGKILL && p.killExits) {
		p.exitLocked()
	}
	return nil
}

func (p *fakeProcess) exitLocked() {
	select {
	case <-p.done:
	default:
		close(p.done)
	}
}

func (p *fakeProcess) exit() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.exitLocked()
}

func (p *fakeProcess) Done() <-chan struct{} { return p.done }

func (p *fakeProcess) ExitErr() error {
	select {
	case <-p.done:
		return p.exitErr
	default:
		return nil
	}
}

func (p *fakeProcess) Output() string { return p.output }

func (p *fakeProcess) Alive() bool {
	select {
	case <-p.done:
		return false
	default:
		return true
	}
}

// fakeLauncher hands out scripted processes and tracks lookups.
type fakeLauncher struct {
	missing   map[string]bool
	processes map[string]*fakeProcess
	launched  [][]string
	launchErr error
}

func (l *fakeLauncher) LookPath(bin string) (string, error) {
	if l.missing[bin] {
		return "", fmt.Errorf("exec: %q: executable file not found in $PATH", bin)
	}
	return "/usr/sbin/" + bin, nil
}

func (l *fakeLauncher) Launch(bin string, args ...string) (Process, error) {
	l.launched = append(l.launched, append([]string{bin}, args...))
	if l.launchErr != nil {
		return nil, l.launchErr
	}
	if p, ok := l.processes[bin]; ok {
		return p, nil
	}
	return newFakeProcess(1000 + len(l.launched)), nil
}

// recordingRunner records commands and succeeds.
type recordingRunner struct {
	calls []string
}

func (r *recordingRunner) Run(ctx context.Context, cmd syscmd.Command) ([]byte, error) {
	r.calls = append(r.calls, cmd.String())
	return nil, nil
}

func (r *recordingRunner) LookPath(bin string) (string, error) {
	return "/usr/sbin/" + bin, nil
}

func newTestSupervisor(l Launcher, r syscmd.Runner) *Supervisor {
	s := NewSupervisorWithDeps(l, r, logging.New(logging.Config{Level: logging.LevelError}))
	s.SetStartGrace(20 * time.Millisecond)
	return s
}

func TestStartRunsDaemon(t *testing.T) {
	launcher := &fakeLauncher{processes: map[string]*fakeProcess{"hostapd": newFakeProcess(42)}}
	sup := newTestSupervisor(launcher, &recordingRunner{})

	h, err := sup.Start(context.Background(), KindAPDaemon, "/run/flytrap/hostapd.conf")
	require.NoError(t, err)
	assert.Equal(t, StateRunning, h.State)
	assert.Equal(t, 42, h.PID)
	require.Len(t, launcher.launched, 1)
	assert.Equal(t, []string{"hostapd", "/run/flytrap/hostapd.conf"}, launcher.launched[0])
}

func TestStartMissingBinary(t *testing.T) {
	launcher := &fakeLauncher{missing: map[string]bool{"hostapd": true}}
	sup := newTestSupervisor(launcher, &recordingRunner{})

	_, err := sup.Start(context.Background(), KindAPDaemon, "/tmp/hostapd.conf")
	require.Error(t, err)
	assert.Equal(t, errors.KindServiceStart, errors.GetKind(err))
	assert.Equal(t, errors.ReasonBinaryMissing, errors.StartReason(err))
	assert.Empty(t, launcher.launched, "must not launch a missing binary")
}

func TestStartAddressInUse(t *testing.T) {
	proc := newFakeProcess(77)
	proc.output = "dnsmasq: failed to create listening socket for 192.168.4.1: Address already in use\n"
	proc.exitErr = fmt.Errorf("exit status 2")
	proc.exit()

	launcher := &fakeLauncher{processes: map[string]*fakeProcess{"dnsmasq": proc}}
	runner := &recordingRunner{}
	sup := newTestSupervisor(launcher, runner)

	_, err := sup.Start(context.Background(), KindDHCPDNS, "/run/flytrap/dnsmasq.conf")
	require.Error(t, err)
	assert.Equal(t, errors.KindServiceStart, errors.GetKind(err))
	assert.Equal(t, errors.ReasonAddressInUse, errors.StartReason(err))

	// dnsmasq config is test-validated before launch.
	require.NotEmpty(t, runner.calls)
	assert.Contains(t, runner.calls[0], "--test")
}

func TestStartEarlyExitWithoutBindError(t *testing.T) {
	proc := newFakeProcess(78)
	proc.output = "hostapd: could not configure driver mode\n"
	proc.exitErr = fmt.Errorf("exit status 1")
	proc.exit()

	launcher := &fakeLauncher{processes: map[string]*fakeProcess{"hostapd": proc}}
	sup := newTestSupervisor(launcher, &recordingRunner{})

	_, err := sup.Start(context.Background(), KindAPDaemon, "/tmp/hostapd.conf")
	require.Error(t, err)
	assert.Equal(t, errors.KindServiceStart, errors.GetKind(err))
	assert.Empty(t, errors.StartReason(err))
	assert.Contains(t, fmt.Sprint(errors.GetAttributes(err)["output"]), "could not configure driver")
}

func TestHealthCheck(t *testing.T) {
	proc := newFakeProcess(90)
	launcher := &fakeLauncher{processes: map[string]*fakeProcess{"hostapd": proc}}
	sup := newTestSupervisor(launcher, &recordingRunner{})

	h, err := sup.Start(context.Background(), KindAPDaemon, "/tmp/hostapd.conf")
	require.NoError(t, err)
	assert.True(t, sup.HealthCheck(context.Background(), h))

	// Probe failures count as unhealthy even while the process lives.
	h.SetProbe(func(ctx context.Context) error { return fmt.Errorf("not serving") })
	assert.False(t, sup.HealthCheck(context.Background(), h))
	h.SetProbe(nil)

	proc.exitErr = fmt.Errorf("signal: killed")
	proc.exit()
	assert.False(t, sup.HealthCheck(context.Background(), h))
	assert.Equal(t, StateFailed, h.State)
}

func TestStopGraceful(t *testing.T) {
	proc := newFakeProcess(91)
	launcher := &fakeLauncher{processes: map[string]*fakeProcess{"dnsmasq": proc}}
	sup := newTestSupervisor(launcher, &recordingRunner{})

	h, err := sup.Start(context.Background(), KindDHCPDNS, "/tmp/dnsmasq.conf")
	require.NoError(t, err)

	sup.Stop(h, time.Second)
	assert.Equal(t, StateStopped, h.State)
	assert.Equal(t, []syscall.Signal{syscall.SIGTERM}, proc.signals)
}

func TestStopEscalatesToKill(t *testing.T) {
	proc := newFakeProcess(92)
	proc.termExits = false
	proc.killExits = true
	launcher := &fakeLauncher{processes: map[string]*fakeProcess{"hostapd": proc}}
	sup := newTestSupervisor(launcher, &recordingRunner{})

	h, err := sup.Start(context.Background(), KindAPDaemon, "/tmp/hostapd.conf")
	require.NoError(t, err)

	sup.Stop(h, 20*time.Millisecond)
	assert.Equal(t, StateStopped, h.State)
	assert.Equal(t, []syscall.Signal{syscall.SIGTERM, syscall.SIGKILL}, proc.signals)
}

func TestStopIdempotent(t *testing.T) {
	proc := newFakeProcess(93)
	launcher := &fakeLauncher{processes: map[string]*fakeProcess{"dnsmasq": proc}}
	sup := newTestSupervisor(launcher, &recordingRunner{})

	h, err := sup.Start(context.Background(), KindDHCPDNS, "/tmp/dnsmasq.conf")
	require.NoError(t, err)

	sup.Stop(h, time.Second)
	sup.Stop(h, time.Second)
	assert.Equal(t, StateStopped, h.State)
	assert.Len(t, proc.signals, 1, "second stop must not signal again")
}

func TestCleanupStaleMatchesCommName(t *testing.T) {
	runner := &recordingRunner{}
	sup := newTestSupervisor(&fakeLauncher{}, runner)

	// The portal child renames itself after re-exec; pkill must match that
	// name, not the executable path.
	sup.CleanupStale(context.Background(), KindWebServer)
	sup.CleanupStale(context.Background(), KindAPDaemon)

	require.Len(t, runner.calls, 2)
	assert.Equal(t, "pkill -x flytrap-portal", runner.calls[0])
	assert.Equal(t, "pkill -x hostapd", runner.calls[1])
}

func TestClassifyExit(t *testing.T) {
	assert.Equal(t, ExitClean, ClassifyExit(nil))
	assert.Equal(t, ExitCrash, ClassifyExit(fmt.Errorf("not an exec error")))
}
