// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package services supervises the external daemon processes of one hotspot
// lifecycle: the access-point daemon, the DHCP/DNS daemon and the local
// portal web server. The controller supervises these processes, it never
// performs their work in-process.
package services

import (
	"context"
	"time"
)

// Kind identifies a supervised process.
type Kind string

const (
	KindAPDaemon  Kind = "hostapd"
	KindDHCPDNS   Kind = "dnsmasq"
	KindWebServer Kind = "portal-web"
)

// State is a handle's lifecycle state. Transitions are monotonic within one
// lifecycle: Stopped -> Starting -> Running -> Stopping -> Stopped, with
// Failed as the terminal state of a crashed daemon.
type State int

const (
	StateStopped State = iota
	StateStarting
	StateRunning
	StateFailed
	StateStopping
)

func (s State) String() string {
	switch s {
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateFailed:
		return "failed"
	case StateStopping:
		return "stopping"
	default:
		return "stopped"
	}
}

// ReadinessProbe checks that a running process is actually serving.
type ReadinessProbe func(ctx context.Context) error

// Handle tracks one supervised process. Created on launch, destroyed (by
// dropping it) after a confirmed stop.
type Handle struct {
	Kind       Kind
	PID        int
	ConfigPath string
	State      State

	proc  Process
	probe ReadinessProbe
}

// SetProbe attaches a readiness probe consulted by HealthCheck.
func (h *Handle) SetProbe(p ReadinessProbe) { h.probe = p }

// StopTimeout is how long a daemon gets to exit after SIGTERM before the
// supervisor escalates to SIGKILL.
const StopTimeout = 5 * time.Second
