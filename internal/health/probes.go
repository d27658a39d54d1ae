// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package health

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/insomniacslk/dhcp/dhcpv4/nclient4"
	"github.com/miekg/dns"
	probing "github.com/prometheus-community/pro-bing"
	"github.com/safchain/ethtool"
	"github.com/vishvananda/netlink"
)

// Probe signatures. Production implementations live below; tests swap in
// fakes through the SetProbes hook.
type (
	HTTPProbe   func(ctx context.Context, url string) (string, error)
	DNSProbe    func(ctx context.Context, name, server string) ([]string, error)
	PingProbe   func(ctx context.Context, host string) (time.Duration, error)
	DHCPProbe   func(ctx context.Context, iface string) (string, error)
	DriverProbe func(iface string) (string, error)
)

// SetProbes replaces the external touchpoints. Nil entries keep the current
// probe.
func (d *Diagnoser) SetProbes(httpP HTTPProbe, dnsP DNSProbe, pingP PingProbe, dhcpP DHCPProbe, driverP DriverProbe) {
	if httpP != nil {
		d.httpProbe = httpP
	}
	if dnsP != nil {
		d.dnsProbe = dnsP
	}
	if pingP != nil {
		d.pingProbe = pingP
	}
	if dhcpP != nil {
		d.dhcpProbe = dhcpP
	}
	if driverP != nil {
		d.driverProbe = driverP
	}
}

func fetchURL(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	return string(body), err
}

// resolveAt queries one A record against a specific server and returns the
// answer addresses as strings.
func resolveAt(ctx context.Context, name, server string) ([]string, error) {
	m := new(dns.Msg)
	m.SetQuestion(dns.CanonicalName(name), dns.TypeA)

	client := &dns.Client{Timeout: 3 * time.Second}
	resp, _, err := client.ExchangeContext(ctx, m, server)
	if err != nil {
		return nil, err
	}
	if resp.Rcode != dns.RcodeSuccess {
		return nil, fmt.Errorf("rcode %s", dns.RcodeToString[resp.Rcode])
	}
	var ips []string
	for _, rr := range resp.Answer {
		if a, ok := rr.(*dns.A); ok {
			ips = append(ips, a.A.String())
		}
	}
	return ips, nil
}

func pingHost(ctx context.Context, host string) (time.Duration, error) {
	pinger, err := probing.NewPinger(host)
	if err != nil {
		return 0, err
	}
	pinger.Count = 1
	pinger.Timeout = 2 * time.Second
	pinger.SetPrivileged(false)

	if err := pinger.RunWithContext(ctx); err != nil {
		return 0, err
	}
	stats := pinger.Statistics()
	if stats.PacketsRecv == 0 {
		return 0, fmt.Errorf("packet loss")
	}
	return stats.AvgRtt, nil
}

// discoverOffer sends a DHCP DISCOVER on iface and reports the offered
// address. This confirms the DHCP daemon answers on the wire, not just that
// its process exists.
func discoverOffer(ctx context.Context, iface string) (string, error) {
	client, err := nclient4.New(iface)
	if err != nil {
		return "", fmt.Errorf("create DHCPv4 client: %w", err)
	}
	defer client.Close()

	exCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	offer, err := client.DiscoverOffer(exCtx)
	if err != nil {
		return "", fmt.Errorf("DHCPv4 discover: %w", err)
	}
	if offer.YourIPAddr == nil || offer.YourIPAddr.IsUnspecified() {
		return "", fmt.Errorf("offer carried no address")
	}
	return offer.YourIPAddr.String(), nil
}

func driverName(iface string) (string, error) {
	et, err := ethtool.NewEthtool()
	if err != nil {
		return "", err
	}
	defer et.Close()
	return et.DriverName(iface)
}

func flagUp() net.Flags { return net.FlagUp }

func familyV4() int { return netlink.FAMILY_V4 }

var timeNow = time.Now
