// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package confgen

import (
	"fmt"
	"strings"

	"grimm.is/flytrap/internal/brand"
	"grimm.is/flytrap/internal/config"
)

// Dnsmasq renders dnsmasq.conf. detectionDomains is the ordered list of
// captive-portal-detection domains that get rewritten to the gateway; every
// other name resolves normally through the configured upstreams. leasePath is
// where dnsmasq persists DHCP leases so the controller can inspect them.
func Dnsmasq(cfg *config.Hotspot, detectionDomains []string, leasePath string) (string, error) {
	if err := cfg.Validate(); err != nil {
		return "", err
	}

	var b strings.Builder
	w := func(format string, args ...any) {
		fmt.Fprintf(&b, format+"\n", args...)
	}

	w("interface=%s", cfg.Interface)
	w("bind-interfaces")
	w("listen-address=127.0.0.1")
	w("listen-address=%s", cfg.GatewayIP)
	w("no-dhcp-interface=lo")
	b.WriteString("\n")

	w("dhcp-range=%s,%s,%s,%dh", cfg.RangeStart, cfg.RangeEnd, cfg.Netmask, cfg.LeaseHours)
	w("dhcp-leasefile=%s", leasePath)
	w("dhcp-authoritative")
	w("dhcp-rapid-commit")
	w("dhcp-lease-max=100")
	// Router, DNS and broadcast options all point clients at the gateway.
	w("dhcp-option=1,%s", cfg.Netmask)
	w("dhcp-option=3,%s", cfg.GatewayIP)
	w("dhcp-option=6,%s", cfg.GatewayIP)
	w("dhcp-option=15,%s", domainToken(cfg.SSID))
	// RFC 8910 captive portal API URL, for clients that support it.
	w("dhcp-option=114,http://%s/", cfg.PortalAddr())
	b.WriteString("\n")

	for _, srv := range cfg.UpstreamDNS {
		w("server=%s", srv)
	}
	b.WriteString("\n")

	// Only the detection domains are rewritten to the portal. Everything
	// else must resolve for real or clients decide the network is broken
	// and stop retrying.
	for _, domain := range detectionDomains {
		w("address=/%s/%s", domain, cfg.GatewayIP)
	}
	b.WriteString("\n")

	w("cache-size=1000")
	w("neg-ttl=3600")
	w("log-queries")
	w("log-dhcp")

	return b.String(), nil
}

// domainToken derives a hostname-safe label from the SSID for the DHCP
// domain-name option. dnsmasq splits option values on commas and a domain
// name allows only letters, digits and hyphens, while an SSID allows almost
// anything printable.
func domainToken(ssid string) string {
	var b strings.Builder
	dash := true
	for _, r := range strings.ToLower(ssid) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			dash = false
			continue
		}
		if !dash {
			b.WriteByte('-')
			dash = true
		}
	}
	token := strings.TrimRight(b.String(), "-")
	if token == "" {
		return brand.LowerName
	}
	return token
}
