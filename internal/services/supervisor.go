// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package services

import (
	"context"
	"strings"
	"syscall"
	"time"

	"grimm.is/flytrap/internal/brand"
	"grimm.is/flytrap/internal/errors"
	"grimm.is/flytrap/internal/logging"
	"grimm.is/flytrap/internal/syscmd"
)

// startGrace is how long a freshly launched daemon is watched for an
// immediate exit before it is declared Running.
const startGrace = 2 * time.Second

// Supervisor starts, health-checks and stops the external daemons.
type Supervisor struct {
	launcher Launcher
	runner   syscmd.Runner
	logger   *logging.Logger
	grace    time.Duration
}

// NewSupervisor builds a Supervisor launching real processes.
func NewSupervisor(logger *logging.Logger) *Supervisor {
	return NewSupervisorWithDeps(ExecLauncher{}, syscmd.NewRunner(), logger)
}

// NewSupervisorWithDeps builds a Supervisor with injected dependencies.
func NewSupervisorWithDeps(launcher Launcher, runner syscmd.Runner, logger *logging.Logger) *Supervisor {
	if logger == nil {
		logger = logging.WithComponent("services")
	}
	return &Supervisor{launcher: launcher, runner: runner, logger: logger, grace: startGrace}
}

// SetStartGrace overrides the immediate-exit watch window (tests).
func (s *Supervisor) SetStartGrace(d time.Duration) { s.grace = d }

// Start launches the daemon of the given kind with its generated config and
// returns a running handle. Failures are KindServiceStart errors whose
// reason distinguishes a bind conflict from a missing binary, so the
// orchestrator can pick between stale-cleanup-and-retry and a hard abort.
func (s *Supervisor) Start(ctx context.Context, kind Kind, configPath string, extraArgs ...string) (*Handle, error) {
	bin, args := commandFor(kind, configPath, extraArgs)

	if _, err := s.launcher.LookPath(bin); err != nil {
		return nil, errors.StartFailure(err, errors.ReasonBinaryMissing, string(kind))
	}

	// dnsmasq validates its own config cheaply; do that before launching
	// so a config error is reported as text instead of a dead process.
	if kind == KindDHCPDNS {
		if out, err := s.runner.Run(ctx, syscmd.Command{
			Bin:  bin,
			Args: []string{"--test", "--conf-file=" + configPath},
		}); err != nil {
			return nil, errors.Wrapf(err, errors.KindValidation, "dnsmasq rejected generated config: %s", strings.TrimSpace(string(out)))
		}
	}

	handle := &Handle{Kind: kind, ConfigPath: configPath, State: StateStarting}
	s.logger.Info("Starting service", "service", kind, "config", configPath)

	proc, err := s.launcher.Launch(bin, args...)
	if err != nil {
		if syscmd.IsNotFound(err) {
			return nil, errors.StartFailure(err, errors.ReasonBinaryMissing, string(kind))
		}
		return nil, errors.StartFailure(err, "", string(kind))
	}
	handle.proc = proc
	handle.PID = proc.PID()

	// Watch for an immediate exit: a daemon that dies within the grace
	// window almost always failed to bind its interface or port.
	select {
	case <-proc.Done():
		out := proc.Output()
		reason := ""
		if isAddressInUse(out) {
			reason = errors.ReasonAddressInUse
		}
		handle.State = StateFailed
		err := errors.StartFailure(proc.ExitErr(), reason, string(kind))
		return nil, errors.Attr(err, "output", strings.TrimSpace(out))
	case <-time.After(s.grace):
	case <-ctx.Done():
		s.stopProcess(handle, StopTimeout)
		return nil, errors.Wrap(ctx.Err(), errors.KindTimeout, "start cancelled")
	}

	handle.State = StateRunning
	s.logger.Info("Service running", "service", kind, "pid", handle.PID)
	return handle, nil
}

// HealthCheck reports whether the handle's process is alive and, when a
// readiness probe is attached, actually serving.
func (s *Supervisor) HealthCheck(ctx context.Context, h *Handle) bool {
	if h == nil || h.proc == nil || h.State != StateRunning {
		return false
	}
	if !h.proc.Alive() {
		class := ClassifyExit(h.proc.ExitErr())
		s.logger.Warn("Service process exited", "service", h.Kind, "pid", h.PID, "class", class.String())
		h.State = StateFailed
		return false
	}
	if h.probe != nil {
		if err := h.probe(ctx); err != nil {
			s.logger.Warn("Readiness probe failed", "service", h.Kind, "error", err)
			return false
		}
	}
	return true
}

// Stop terminates the handle's process: SIGTERM, wait up to timeout, then
// SIGKILL. The handle always ends in StateStopped, even when escalation was
// required or the process was already gone.
func (s *Supervisor) Stop(h *Handle, timeout time.Duration) {
	if h == nil || h.State == StateStopped {
		return
	}
	h.State = StateStopping
	s.stopProcess(h, timeout)
	h.State = StateStopped
	s.logger.Info("Service stopped", "service", h.Kind)
}

func (s *Supervisor) stopProcess(h *Handle, timeout time.Duration) {
	if h.proc == nil || !h.proc.Alive() {
		return
	}
	if err := h.proc.Signal(syscall.SIGTERM); err != nil {
		s.logger.Warn("Failed to signal service", "service", h.Kind, "error", err)
	}
	select {
	case <-h.proc.Done():
		return
	case <-time.After(timeout):
	}
	s.logger.Warn("Service did not exit in time, killing", "service", h.Kind, "pid", h.PID)
	if err := h.proc.Signal(syscall.SIGKILL); err != nil {
		s.logger.Warn("Failed to kill service", "service", h.Kind, "error", err)
		return
	}
	<-h.proc.Done()
}

// CleanupStale terminates leftover daemon instances from a previous, possibly
// crashed, lifecycle. Used once before the single start retry.
func (s *Supervisor) CleanupStale(ctx context.Context, kind Kind) {
	// pkill -x matches the comm name, never a path, so the portal child
	// must be matched by the name it renames itself to.
	name := processNameFor(kind)
	s.logger.Info("Cleaning up stale instances", "process", name)
	if out, err := s.runner.Run(ctx, syscmd.Command{Bin: "pkill", Args: []string{"-x", name}}); err != nil {
		// pkill exits 1 when nothing matched; only log real failures.
		if len(out) > 0 {
			s.logger.Debug("pkill", "output", strings.TrimSpace(string(out)), "error", err)
		}
	}
	time.Sleep(500 * time.Millisecond)
}

// processNameFor returns the comm name a daemon of the given kind runs under.
func processNameFor(kind Kind) string {
	switch kind {
	case KindAPDaemon:
		return "hostapd"
	case KindDHCPDNS:
		return "dnsmasq"
	case KindWebServer:
		return brand.PortalProcessName
	default:
		return string(kind)
	}
}

func commandFor(kind Kind, configPath string, extraArgs []string) (string, []string) {
	switch kind {
	case KindAPDaemon:
		return "hostapd", append([]string{configPath}, extraArgs...)
	case KindDHCPDNS:
		return "dnsmasq", append([]string{"--conf-file=" + configPath, "--no-daemon"}, extraArgs...)
	case KindWebServer:
		// The portal web server is this same executable re-invoked in
		// server mode, supervised like any other daemon.
		return selfExe(), append([]string{"__portal"}, extraArgs...)
	default:
		return string(kind), extraArgs
	}
}

func isAddressInUse(output string) bool {
	out := strings.ToLower(output)
	return strings.Contains(out, "address already in use") ||
		strings.Contains(out, "failed to bind") ||
		strings.Contains(out, "failed to create listening socket")
}
