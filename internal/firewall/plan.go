// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package firewall plans, applies and reverses the NAT and redirect rules of
// one hotspot lifecycle. Ordering is data: Plan returns an ordered record
// list, Apply walks it forward, Revert walks it backward, so teardown is a
// data-driven reverse iteration rather than a mirrored code path.
package firewall

import (
	"fmt"
	"strconv"

	"grimm.is/flytrap/internal/config"
)

// Record tables. Sysctl steps ride in the same ordered list as iptables
// rules so forwarding is enabled first and disabled last.
const (
	TableNAT    = "nat"
	TableFilter = "filter"
	TableSysctl = "sysctl"
)

// RuleRecord is one reversible provisioning step. Applied flips true only
// after the underlying command succeeds, and drives exact-reverse teardown.
type RuleRecord struct {
	Table   string
	Chain   string   // iptables chain, or sysctl path for TableSysctl
	Spec    []string // rule specification, or desired value for TableSysctl
	Comment string
	Applied bool

	prior string // sysctl value before Apply, restored on Revert
}

// String renders the record for logs.
func (r *RuleRecord) String() string {
	if r.Table == TableSysctl {
		return fmt.Sprintf("sysctl %s=%s", r.Chain, r.Spec[0])
	}
	s := "-t " + r.Table + " -A " + r.Chain
	for _, a := range r.Spec {
		s += " " + a
	}
	return s
}

// Plan builds the ordered rule set for the hotspot. portalIP is the gateway
// address hosting the portal web server; detectionDomains gates the DNS
// interception step: with an empty set there is nothing to rewrite, so
// client DNS is left alone entirely.
//
// Interception is deliberately narrow. Client DNS is steered into the local
// dnsmasq, whose config (generated from the same detection set) rewrites
// only the detection domains and resolves everything else upstream. Plain
// HTTP is captured to the portal. HTTPS is never touched: the portal works
// through detection-domain redirection and HTTP capture alone.
func Plan(cfg *config.Hotspot, uplink string, detectionDomains []string) []RuleRecord {
	iface := cfg.Interface
	subnet := cfg.Subnet()
	gw := cfg.GatewayIP
	portalPort := strconv.Itoa(cfg.PortalPort)

	var records []RuleRecord

	// Without an uplink the hotspot is portal-only: no forwarding, no NAT,
	// just capture and local services.
	if uplink != "" {
		records = append(records,
			RuleRecord{
				Table:   TableSysctl,
				Chain:   "/proc/sys/net/ipv4/ip_forward",
				Spec:    []string{"1"},
				Comment: "enable IPv4 forwarding toward " + uplink,
			},
			RuleRecord{
				Table:   TableNAT,
				Chain:   "POSTROUTING",
				Spec:    []string{"-s", subnet, "-o", uplink, "-j", "MASQUERADE"},
				Comment: "masquerade hotspot subnet via uplink",
			},
			RuleRecord{
				Table:   TableFilter,
				Chain:   "FORWARD",
				Spec:    []string{"-i", iface, "-o", uplink, "-j", "ACCEPT"},
				Comment: "forward client traffic to uplink",
			},
			RuleRecord{
				Table:   TableFilter,
				Chain:   "FORWARD",
				Spec:    []string{"-i", uplink, "-o", iface, "-m", "state", "--state", "RELATED,ESTABLISHED", "-j", "ACCEPT"},
				Comment: "return traffic for established flows",
			},
		)
	}

	if len(detectionDomains) > 0 {
		// Clients with hardcoded resolvers still have to pass through the
		// local dnsmasq for the detection set to apply.
		records = append(records, RuleRecord{
			Table:   TableNAT,
			Chain:   "PREROUTING",
			Spec:    []string{"-i", iface, "-p", "udp", "--dport", "53", "-j", "DNAT", "--to-destination", gw + ":53"},
			Comment: "steer client DNS through local resolver",
		})
	}

	records = append(records,
		RuleRecord{
			Table:   TableNAT,
			Chain:   "PREROUTING",
			Spec:    []string{"-i", iface, "-p", "tcp", "--dport", "80", "-j", "DNAT", "--to-destination", gw + ":" + portalPort},
			Comment: "capture plain HTTP to the portal",
		},
		// Host-side accepts for the services clients must reach.
		RuleRecord{
			Table:   TableFilter,
			Chain:   "INPUT",
			Spec:    []string{"-i", iface, "-p", "udp", "--dport", "67", "-j", "ACCEPT"},
			Comment: "accept DHCP",
		},
		RuleRecord{
			Table:   TableFilter,
			Chain:   "INPUT",
			Spec:    []string{"-i", iface, "-p", "udp", "--dport", "53", "-j", "ACCEPT"},
			Comment: "accept DNS (udp)",
		},
		RuleRecord{
			Table:   TableFilter,
			Chain:   "INPUT",
			Spec:    []string{"-i", iface, "-p", "tcp", "--dport", "53", "-j", "ACCEPT"},
			Comment: "accept DNS (tcp)",
		},
		RuleRecord{
			Table:   TableFilter,
			Chain:   "INPUT",
			Spec:    []string{"-i", iface, "-p", "tcp", "--dport", portalPort, "-j", "ACCEPT"},
			Comment: "accept portal HTTP",
		},
		RuleRecord{
			Table:   TableFilter,
			Chain:   "INPUT",
			Spec:    []string{"-i", iface, "-p", "icmp", "-j", "ACCEPT"},
			Comment: "accept ping from clients",
		},
	)

	return records
}
