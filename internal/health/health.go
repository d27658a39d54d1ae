// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package health implements diagnose mode: a battery of point-in-time checks
// over a hotspot that should already be running. Nothing here mutates state.
package health

import (
	"context"
	"fmt"
	"strings"

	"grimm.is/flytrap/internal/config"
	"grimm.is/flytrap/internal/firewall"
	"grimm.is/flytrap/internal/logging"
	"grimm.is/flytrap/internal/metrics"
	"grimm.is/flytrap/internal/network"
	"grimm.is/flytrap/internal/syscmd"
)

// Status grades one check.
type Status int

const (
	StatusOK Status = iota
	StatusWarn
	StatusFail
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "OK"
	case StatusWarn:
		return "WARN"
	default:
		return "FAIL"
	}
}

// Check is the outcome of one diagnostic.
type Check struct {
	Name   string
	Status Status
	Detail string
}

// Report aggregates all checks of one diagnose run.
type Report struct {
	Checks []Check
}

// Healthy reports whether no check failed. Warnings do not count as failure.
func (r Report) Healthy() bool {
	for _, c := range r.Checks {
		if c.Status == StatusFail {
			return false
		}
	}
	return true
}

// Render formats the report for terminal output.
func (r Report) Render() string {
	var b strings.Builder
	for _, c := range r.Checks {
		fmt.Fprintf(&b, "[%-4s] %-22s %s\n", c.Status, c.Name, c.Detail)
	}
	if r.Healthy() {
		b.WriteString("\nAll checks passed.\n")
	} else {
		b.WriteString("\nOne or more checks failed.\n")
	}
	return b.String()
}

// Diagnoser runs the check battery. Every external touchpoint is an
// injectable probe so the battery itself is testable without a live hotspot.
type Diagnoser struct {
	cfg       *config.Hotspot
	uplink    string
	leasePath string
	domains   []string
	logger    *logging.Logger

	runner syscmd.Runner
	nl     network.Netlinker
	fw     *firewall.Manager

	httpProbe   HTTPProbe
	dnsProbe    DNSProbe
	pingProbe   PingProbe
	dhcpProbe   DHCPProbe
	driverProbe DriverProbe

	deep bool
}

// New builds a Diagnoser with real probes.
func New(cfg *config.Hotspot, uplink, leasePath string, domains []string, logger *logging.Logger) *Diagnoser {
	if logger == nil {
		logger = logging.WithComponent("health")
	}
	return NewWithDeps(cfg, uplink, leasePath, domains, logger,
		syscmd.NewRunner(), network.DefaultNetlinker, firewall.NewManager(logger))
}

// NewWithDeps builds a Diagnoser with injected host dependencies.
func NewWithDeps(cfg *config.Hotspot, uplink, leasePath string, domains []string,
	logger *logging.Logger, runner syscmd.Runner, nl network.Netlinker, fw *firewall.Manager) *Diagnoser {
	if logger == nil {
		logger = logging.WithComponent("health")
	}
	return &Diagnoser{
		cfg:         cfg,
		uplink:      uplink,
		leasePath:   leasePath,
		domains:     domains,
		logger:      logger,
		runner:      runner,
		nl:          nl,
		fw:          fw,
		httpProbe:   fetchURL,
		dnsProbe:    resolveAt,
		pingProbe:   pingHost,
		dhcpProbe:   discoverOffer,
		driverProbe: driverName,
	}
}

// Run executes every check and returns the combined report.
func (d *Diagnoser) Run(ctx context.Context) Report {
	var r Report
	r.Checks = append(r.Checks, d.checkInterface())
	r.Checks = append(r.Checks, d.checkDriver())
	r.Checks = append(r.Checks, d.checkProcess(ctx, "hostapd"))
	r.Checks = append(r.Checks, d.checkProcess(ctx, "dnsmasq"))
	r.Checks = append(r.Checks, d.checkFirewall(ctx))
	r.Checks = append(r.Checks, d.checkPortal(ctx))
	r.Checks = append(r.Checks, d.checkDNSRedirect(ctx))
	r.Checks = append(r.Checks, d.checkGatewayPing(ctx))
	r.Checks = append(r.Checks, d.checkLeases())
	if d.deep {
		r.Checks = append(r.Checks, d.checkDHCPOffer(ctx))
	}
	return r
}

// SetDeep enables the on-wire DHCP DISCOVER probe. It raises real broadcast
// traffic on the hotspot interface, so it is opt-in.
func (d *Diagnoser) SetDeep(deep bool) { d.deep = deep }

func (d *Diagnoser) checkInterface() Check {
	c := Check{Name: "interface"}
	link, err := d.nl.LinkByName(d.cfg.Interface)
	if err != nil {
		c.Status = StatusFail
		c.Detail = fmt.Sprintf("%s not found: %v", d.cfg.Interface, err)
		return c
	}
	if link.Attrs().Flags&flagUp() == 0 {
		c.Status = StatusFail
		c.Detail = d.cfg.Interface + " is down"
		return c
	}
	addrs, err := d.nl.AddrList(link, familyV4())
	if err != nil {
		c.Status = StatusWarn
		c.Detail = "could not list addresses: " + err.Error()
		return c
	}
	for _, a := range addrs {
		if a.IP.String() == d.cfg.GatewayIP {
			c.Detail = fmt.Sprintf("%s up with %s", d.cfg.Interface, d.cfg.GatewayCIDR())
			return c
		}
	}
	c.Status = StatusFail
	c.Detail = fmt.Sprintf("%s up but gateway address %s missing", d.cfg.Interface, d.cfg.GatewayIP)
	return c
}

func (d *Diagnoser) checkDriver() Check {
	c := Check{Name: "driver"}
	drv, err := d.driverProbe(d.cfg.Interface)
	if err != nil {
		c.Status = StatusWarn
		c.Detail = "driver query failed: " + err.Error()
		return c
	}
	c.Detail = drv
	return c
}

func (d *Diagnoser) checkProcess(ctx context.Context, name string) Check {
	c := Check{Name: name}
	out, err := d.runner.Run(ctx, syscmd.Command{Bin: "pgrep", Args: []string{"-x", name}})
	if err != nil {
		c.Status = StatusFail
		c.Detail = "not running"
		return c
	}
	c.Detail = "running (pid " + strings.TrimSpace(strings.Split(string(out), "\n")[0]) + ")"
	return c
}

func (d *Diagnoser) checkFirewall(ctx context.Context) Check {
	c := Check{Name: "firewall"}
	records := firewall.Plan(d.cfg, d.uplink, d.domains)
	var checked int
	var missing []string
	for i := range records {
		if records[i].Table == firewall.TableSysctl {
			continue
		}
		checked++
		if !d.fw.Installed(ctx, &records[i]) {
			missing = append(missing, records[i].Comment)
		}
	}
	if len(missing) > 0 {
		c.Status = StatusFail
		c.Detail = "missing rules: " + strings.Join(missing, ", ")
		return c
	}
	c.Detail = fmt.Sprintf("all %d rules installed", checked)
	return c
}

func (d *Diagnoser) checkPortal(ctx context.Context) Check {
	c := Check{Name: "portal"}
	url := fmt.Sprintf("http://%s/success.txt", d.cfg.PortalAddr())
	body, err := d.httpProbe(ctx, url)
	if err != nil {
		c.Status = StatusFail
		c.Detail = "unreachable: " + err.Error()
		return c
	}
	if !strings.Contains(body, "Success") {
		c.Status = StatusFail
		c.Detail = "unexpected portal response"
		return c
	}
	c.Detail = "serving on " + d.cfg.PortalAddr()
	return c
}

func (d *Diagnoser) checkDNSRedirect(ctx context.Context) Check {
	c := Check{Name: "dns redirect"}
	if len(d.domains) == 0 {
		c.Status = StatusWarn
		c.Detail = "no detection domains configured"
		return c
	}

	server := d.cfg.GatewayIP + ":53"
	redirected, err := d.dnsProbe(ctx, d.domains[0], server)
	if err != nil {
		c.Status = StatusFail
		c.Detail = "query failed: " + err.Error()
		return c
	}
	if !containsIP(redirected, d.cfg.GatewayIP) {
		c.Status = StatusFail
		c.Detail = fmt.Sprintf("%s did not resolve to gateway (got %v)", d.domains[0], redirected)
		return c
	}

	// A name outside the detection set must NOT be rewritten.
	passthrough, err := d.dnsProbe(ctx, "example.com", server)
	if err == nil && containsIP(passthrough, d.cfg.GatewayIP) {
		c.Status = StatusFail
		c.Detail = "example.com was rewritten to the gateway; redirect is not selective"
		return c
	}
	c.Detail = fmt.Sprintf("%s -> %s, other names pass through", d.domains[0], d.cfg.GatewayIP)
	return c
}

func (d *Diagnoser) checkGatewayPing(ctx context.Context) Check {
	c := Check{Name: "gateway ping"}
	rtt, err := d.pingProbe(ctx, d.cfg.GatewayIP)
	if err != nil {
		c.Status = StatusWarn
		c.Detail = "ping failed: " + err.Error()
		return c
	}
	c.Detail = fmt.Sprintf("%s reachable (%s)", d.cfg.GatewayIP, rtt)
	return c
}

func (d *Diagnoser) checkLeases() Check {
	c := Check{Name: "dhcp leases"}
	leases, err := metrics.ReadLeases(d.leasePath, timeNow())
	if err != nil {
		c.Status = StatusWarn
		c.Detail = "lease file unreadable: " + err.Error()
		return c
	}
	if len(leases) == 0 {
		c.Detail = "no clients connected"
		return c
	}
	names := make([]string, 0, len(leases))
	for _, l := range leases {
		names = append(names, fmt.Sprintf("%s (%s)", l.IP, l.Hostname))
	}
	c.Detail = fmt.Sprintf("%d client(s): %s", len(leases), strings.Join(names, ", "))
	return c
}

func (d *Diagnoser) checkDHCPOffer(ctx context.Context) Check {
	c := Check{Name: "dhcp offer"}
	offered, err := d.dhcpProbe(ctx, d.cfg.Interface)
	if err != nil {
		c.Status = StatusFail
		c.Detail = err.Error()
		return c
	}
	c.Detail = "offered " + offered
	return c
}

func containsIP(ips []string, want string) bool {
	for _, ip := range ips {
		if ip == want {
			return true
		}
	}
	return false
}
