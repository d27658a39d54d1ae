// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package hotspot drives the lifecycle of one access point: configure,
// provision, run, tear down. The orchestrator is the only place that decides
// whether an error is fatal, retryable or merely logged; every collaborator
// just reports what happened.
package hotspot

import (
	"context"
	"net"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"grimm.is/flytrap/internal/config"
	"grimm.is/flytrap/internal/confgen"
	"grimm.is/flytrap/internal/errors"
	"grimm.is/flytrap/internal/firewall"
	"grimm.is/flytrap/internal/install"
	"grimm.is/flytrap/internal/logging"
	"grimm.is/flytrap/internal/metrics"
	"grimm.is/flytrap/internal/network"
	"grimm.is/flytrap/internal/portal"
	"grimm.is/flytrap/internal/services"
)

// Phase is the orchestrator's lifecycle state. Transitions only move
// forward; Stopped is terminal and idempotent.
type Phase int

const (
	PhaseInit Phase = iota
	PhaseConfiguring
	PhaseProvisioning
	PhaseRunning
	PhaseStopping
	PhaseStopped
)

func (p Phase) String() string {
	switch p {
	case PhaseInit:
		return "init"
	case PhaseConfiguring:
		return "configuring"
	case PhaseProvisioning:
		return "provisioning"
	case PhaseRunning:
		return "running"
	case PhaseStopping:
		return "stopping"
	default:
		return "stopped"
	}
}

func phaseNames() []string {
	return []string{"init", "configuring", "provisioning", "running", "stopping", "stopped"}
}

// healthInterval is how often the running phase checks its daemons.
const healthInterval = 10 * time.Second

// interfaceManager is what the orchestrator needs from internal/network.
type interfaceManager interface {
	Prepare(ctx context.Context, name string) (*network.Snapshot, error)
	Assign(name, cidr string) error
	Restore(snap *network.Snapshot)
	UplinkInterface(hotspotIface string) (string, error)
}

// ruleManager is what the orchestrator needs from internal/firewall.
type ruleManager interface {
	CheckBinary() error
	Apply(ctx context.Context, records []firewall.RuleRecord) error
	Revert(ctx context.Context, records []firewall.RuleRecord)
}

// daemonSupervisor is what the orchestrator needs from internal/services.
type daemonSupervisor interface {
	Start(ctx context.Context, kind services.Kind, configPath string, extraArgs ...string) (*services.Handle, error)
	HealthCheck(ctx context.Context, h *services.Handle) bool
	Stop(h *services.Handle, timeout time.Duration)
	CleanupStale(ctx context.Context, kind services.Kind)
}

// Controller runs one hotspot lifecycle from a single goroutine.
type Controller struct {
	cfg     *config.Hotspot
	logger  *logging.Logger
	session string

	net       interfaceManager
	fw        ruleManager
	sup       daemonSupervisor
	collector *metrics.Collector
	pidfile   *PidFile
	writeFile func(path string, data []byte, perm os.FileMode) error
	geteuid   func() int

	healthEvery time.Duration

	phase    Phase
	snapshot *network.Snapshot
	records  []firewall.RuleRecord
	handles  []*services.Handle
	router   *portal.Router
	uplink   string

	teardownOnce sync.Once
}

// New builds a Controller against the real host.
func New(cfg *config.Hotspot, logger *logging.Logger) *Controller {
	session := uuid.NewString()
	if logger == nil {
		logger = logging.WithComponent("hotspot")
	}
	logger = logger.With("session", session)
	return &Controller{
		cfg:         cfg,
		logger:      logger,
		session:     session,
		net:         network.NewManager(logger),
		fw:          firewall.NewManager(logger),
		sup:         services.NewSupervisor(logger),
		collector:   metrics.NewCollector(),
		pidfile:     NewPidFile(install.PidFilePath()),
		writeFile:   os.WriteFile,
		geteuid:     os.Geteuid,
		healthEvery: healthInterval,
	}
}

// NewWithDeps builds a Controller with injected collaborators (tests).
func NewWithDeps(cfg *config.Hotspot, logger *logging.Logger,
	net interfaceManager, fw ruleManager, sup daemonSupervisor, pidfile *PidFile) *Controller {
	c := New(cfg, logger)
	c.net = net
	c.fw = fw
	c.sup = sup
	c.pidfile = pidfile
	return c
}

// Phase returns the current lifecycle phase.
func (c *Controller) Phase() Phase { return c.phase }

// Run executes the full lifecycle and blocks until teardown completes. It
// returns nil on a clean run ended by ctx cancellation, or the error that
// aborted the lifecycle. Either way the host is restored before Run returns.
func (c *Controller) Run(ctx context.Context) error {
	err := c.run(ctx)
	c.teardown(context.Background())
	return err
}

func (c *Controller) run(ctx context.Context) error {
	c.setPhase(PhaseInit)

	if c.geteuid() != 0 {
		return errors.New(errors.KindPermission, "must run as root: interface, firewall and daemon control need it")
	}
	if err := c.cfg.Validate(); err != nil {
		return err
	}
	if err := c.pidfile.Acquire(); err != nil {
		return err
	}

	// Configure: everything here is pure generation, nothing on the host
	// has been touched yet.
	c.setPhase(PhaseConfiguring)

	// A crashed previous run leaves its generated files behind. The configs
	// are regenerated below; stale leases would hand clients addresses from
	// a network that no longer exists.
	if err := os.Remove(install.LeaseFilePath()); err == nil {
		c.logger.Info("Removed stale lease file", "path", install.LeaseFilePath())
	}

	domains := portal.DefaultDomains()
	if c.cfg.DomainsFile != "" {
		loaded, err := portal.LoadDomainsFile(c.cfg.DomainsFile)
		if err != nil {
			return err
		}
		domains = loaded
	}
	c.router = portal.NewRouter(domains)

	hostapdConf, err := confgen.Hostapd(c.cfg)
	if err != nil {
		return err
	}
	dnsmasqConf, err := confgen.Dnsmasq(c.cfg, c.router.Domains(), install.LeaseFilePath())
	if err != nil {
		return err
	}
	if err := c.writeFile(install.HostapdConfPath(), []byte(hostapdConf), 0o600); err != nil {
		return errors.Wrap(err, errors.KindInternal, "failed to write hostapd config")
	}
	if err := c.writeFile(install.DnsmasqConfPath(), []byte(dnsmasqConf), 0o644); err != nil {
		return errors.Wrap(err, errors.KindInternal, "failed to write dnsmasq config")
	}

	// Provision: from here on every step has a registered undo, performed
	// by teardown in reverse order.
	c.setPhase(PhaseProvisioning)

	if err := c.fw.CheckBinary(); err != nil {
		return err
	}

	snap, err := c.net.Prepare(ctx, c.cfg.Interface)
	if err != nil {
		return err
	}
	c.snapshot = snap

	if err := c.net.Assign(c.cfg.Interface, c.cfg.GatewayCIDR()); err != nil {
		return err
	}

	c.uplink = c.cfg.Uplink
	if c.uplink == "" {
		uplink, err := c.net.UplinkInterface(c.cfg.Interface)
		if err != nil {
			c.logger.Warn("No uplink detected, clients will have portal access only", "error", err)
		}
		c.uplink = uplink
	}

	records := firewall.Plan(c.cfg, c.uplink, c.router.Domains())
	if err := c.fw.Apply(ctx, records); err != nil {
		return err
	}
	c.records = records
	c.collector.SetRulesApplied(len(records))

	// Daemon order matters: the AP must exist before dnsmasq binds it, and
	// the portal only makes sense once both are up.
	for _, start := range []struct {
		kind services.Kind
		conf string
	}{
		{services.KindAPDaemon, install.HostapdConfPath()},
		{services.KindDHCPDNS, install.DnsmasqConfPath()},
		{services.KindWebServer, ""},
	} {
		h, err := c.startWithRetry(ctx, start.kind, start.conf)
		if err != nil {
			return err
		}
		if probe := c.readinessProbe(start.kind); probe != nil {
			h.SetProbe(probe)
		}
		c.handles = append(c.handles, h)
	}

	c.setPhase(PhaseRunning)
	c.logger.Info("Hotspot running",
		"ssid", c.cfg.SSID,
		"interface", c.cfg.Interface,
		"gateway", c.cfg.GatewayIP,
		"uplink", c.uplink,
		"portal", c.cfg.PortalAddr())

	return c.monitor(ctx)
}

// startWithRetry starts a daemon, allowing exactly one stale-cleanup retry
// when the failure looks like a leftover instance holding the address. A
// missing binary or a second failure is final.
func (c *Controller) startWithRetry(ctx context.Context, kind services.Kind, confPath string) (*services.Handle, error) {
	args := c.portalArgs(kind)
	h, err := c.sup.Start(ctx, kind, confPath, args...)
	if err == nil {
		return h, nil
	}
	if errors.StartReason(err) != errors.ReasonAddressInUse {
		return nil, err
	}

	c.logger.Warn("Start failed with address in use, cleaning up stale instance and retrying", "service", kind)
	c.collector.ObserveStartRetry(string(kind))
	c.sup.CleanupStale(ctx, kind)

	h, err = c.sup.Start(ctx, kind, confPath, args...)
	if err != nil {
		return nil, err
	}
	return h, nil
}

// readinessProbe returns the health probe attached to a freshly started
// daemon. Liveness alone misses a wedged process; the probe confirms it is
// actually serving. hostapd exposes nothing cheap to poll from userspace, so
// it stays liveness-only.
func (c *Controller) readinessProbe(kind services.Kind) services.ReadinessProbe {
	switch kind {
	case services.KindDHCPDNS:
		domains := c.router.Domains()
		if len(domains) == 0 {
			return nil
		}
		return services.DNSReadiness(net.JoinHostPort(c.cfg.GatewayIP, "53"), domains[0])
	case services.KindWebServer:
		return services.HTTPReadiness("http://" + c.cfg.PortalAddr() + "/success.txt")
	default:
		return nil
	}
}

// portalArgs builds the argv tail for the self-exec'd portal process.
func (c *Controller) portalArgs(kind services.Kind) []string {
	if kind != services.KindWebServer {
		return nil
	}
	return []string{
		"--ssid", c.cfg.SSID,
		"--gateway", c.cfg.GatewayIP,
		"--port", strconv.Itoa(c.cfg.PortalPort),
		"--leases", install.LeaseFilePath(),
	}
}

// monitor is the running phase: a ticker-driven health loop that exits on
// cancellation or on the first daemon failure. One dead daemon takes the
// whole hotspot down; a half-alive hotspot (AP gone, DHCP still answering)
// strands clients worse than a clean stop.
func (c *Controller) monitor(ctx context.Context) error {
	ticker := time.NewTicker(c.healthEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("Shutdown requested")
			return nil
		case <-ticker.C:
			for _, h := range c.handles {
				healthy := c.sup.HealthCheck(ctx, h)
				c.collector.ObserveHealthCheck(string(h.Kind), healthy)
				if !healthy {
					return errors.Errorf(errors.KindServiceStart, "%s died, stopping hotspot", h.Kind)
				}
			}
		}
	}
}

// teardown restores the host: daemons stopped in reverse start order, rules
// reverted newest-first, interface snapshot restored, pidfile released.
// Guarded by sync.Once so signal paths and error paths can both call it.
// Errors here are logged, never escalated; teardown always runs to the end.
func (c *Controller) teardown(ctx context.Context) {
	c.teardownOnce.Do(func() {
		c.setPhase(PhaseStopping)
		c.logger.Info("Tearing down hotspot")

		for i := len(c.handles) - 1; i >= 0; i-- {
			c.sup.Stop(c.handles[i], services.StopTimeout)
		}
		c.handles = nil

		if c.records != nil {
			c.fw.Revert(ctx, c.records)
			c.records = nil
			c.collector.SetRulesApplied(0)
		}

		if c.snapshot != nil {
			c.net.Restore(c.snapshot)
			c.snapshot = nil
		}

		c.pidfile.Release()
		c.setPhase(PhaseStopped)
		c.logger.Info("Hotspot stopped")
	})
}

func (c *Controller) setPhase(p Phase) {
	c.phase = p
	c.collector.SetLifecycleState(p.String(), phaseNames())
	c.logger.Debug("Phase transition", "phase", p.String())
}
