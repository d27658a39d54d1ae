// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package config defines the hotspot configuration and its validation rules.
// Limits here mirror the hard limits of the underlying daemons (hostapd caps
// the SSID at 32 bytes, WPA2 passphrases are 8-63 characters) so a bad value
// is rejected before any process is spawned rather than after it fails to
// bind.
package config

import (
	"fmt"
	"net"
	"strings"
	"time"
	"unicode"

	"github.com/hashicorp/hcl/v2/hclsimple"

	"grimm.is/flytrap/internal/errors"
)

// Defaults applied when neither the config file nor the command line
// provides a value.
const (
	DefaultSSID       = "ActivePortal"
	DefaultPassphrase = "portal123"
	DefaultInterface  = "wlan0"
	DefaultGatewayIP  = "192.168.4.1"
	DefaultRangeStart = "192.168.4.2"
	DefaultRangeEnd   = "192.168.4.50"
	DefaultNetmask    = "255.255.255.0"
	DefaultPortalPort = 5000
	DefaultChannel    = 7
	DefaultLease      = 24 * time.Hour
)

// DefaultUpstreamDNS are the resolvers dnsmasq forwards ordinary queries to.
var DefaultUpstreamDNS = []string{"8.8.8.8", "1.1.1.1"}

// Hotspot is the full controller configuration. It is treated as immutable
// once the orchestrator leaves the Configuring state.
type Hotspot struct {
	SSID        string   `hcl:"ssid,optional"`
	Passphrase  string   `hcl:"passphrase,optional"`
	Interface   string   `hcl:"interface,optional"`
	Uplink      string   `hcl:"uplink,optional"` // empty = auto-detect from default route
	GatewayIP   string   `hcl:"gateway_ip,optional"`
	RangeStart  string   `hcl:"dhcp_range_start,optional"`
	RangeEnd    string   `hcl:"dhcp_range_end,optional"`
	Netmask     string   `hcl:"netmask,optional"`
	LeaseHours  int      `hcl:"lease_hours,optional"`
	UpstreamDNS []string `hcl:"upstream_dns,optional"`
	PortalPort  int      `hcl:"portal_port,optional"`
	Channel     int      `hcl:"channel,optional"`
	CountryCode string   `hcl:"country_code,optional"`
	DomainsFile string   `hcl:"detection_domains_file,optional"`
	LogLevel    string   `hcl:"log_level,optional"`
}

// Default returns a Hotspot populated with the documented defaults.
func Default() *Hotspot {
	return &Hotspot{
		SSID:        DefaultSSID,
		Passphrase:  DefaultPassphrase,
		Interface:   DefaultInterface,
		GatewayIP:   DefaultGatewayIP,
		RangeStart:  DefaultRangeStart,
		RangeEnd:    DefaultRangeEnd,
		Netmask:     DefaultNetmask,
		LeaseHours:  int(DefaultLease / time.Hour),
		UpstreamDNS: append([]string(nil), DefaultUpstreamDNS...),
		PortalPort:  DefaultPortalPort,
		Channel:     DefaultChannel,
		CountryCode: "US",
	}
}

// Load reads the HCL config file at path over the defaults. A missing file
// is an error; call with an empty path to get plain defaults.
func Load(path string) (*Hotspot, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	if err := hclsimple.DecodeFile(path, nil, cfg); err != nil {
		return nil, errors.Wrapf(err, errors.KindValidation, "failed to parse config file %s", path)
	}
	cfg.fillEmpty()
	return cfg, nil
}

// fillEmpty restores defaults for fields the file explicitly blanked.
func (c *Hotspot) fillEmpty() {
	d := Default()
	if c.SSID == "" {
		c.SSID = d.SSID
	}
	if c.Passphrase == "" {
		c.Passphrase = d.Passphrase
	}
	if c.Interface == "" {
		c.Interface = d.Interface
	}
	if c.GatewayIP == "" {
		c.GatewayIP = d.GatewayIP
	}
	if c.RangeStart == "" {
		c.RangeStart = d.RangeStart
	}
	if c.RangeEnd == "" {
		c.RangeEnd = d.RangeEnd
	}
	if c.Netmask == "" {
		c.Netmask = d.Netmask
	}
	if c.LeaseHours <= 0 {
		c.LeaseHours = d.LeaseHours
	}
	if len(c.UpstreamDNS) == 0 {
		c.UpstreamDNS = d.UpstreamDNS
	}
	if c.PortalPort <= 0 {
		c.PortalPort = d.PortalPort
	}
	if c.Channel <= 0 {
		c.Channel = d.Channel
	}
	if c.CountryCode == "" {
		c.CountryCode = d.CountryCode
	}
}

// LeaseDuration returns the DHCP lease duration.
func (c *Hotspot) LeaseDuration() time.Duration {
	return time.Duration(c.LeaseHours) * time.Hour
}

// Subnet returns the hotspot subnet in CIDR notation, derived from the
// gateway IP and netmask.
func (c *Hotspot) Subnet() string {
	ip := net.ParseIP(c.GatewayIP)
	maskIP := net.ParseIP(c.Netmask)
	if ip == nil || maskIP == nil {
		return ""
	}
	mask := net.IPMask(maskIP.To4())
	ones, _ := mask.Size()
	return fmt.Sprintf("%s/%d", ip.Mask(mask), ones)
}

// GatewayCIDR returns the gateway address with prefix length, the form the
// interface manager assigns to the wireless interface.
func (c *Hotspot) GatewayCIDR() string {
	maskIP := net.ParseIP(c.Netmask)
	if maskIP == nil {
		return c.GatewayIP + "/24"
	}
	ones, _ := net.IPMask(maskIP.To4()).Size()
	return fmt.Sprintf("%s/%d", c.GatewayIP, ones)
}

// PortalAddr returns host:port of the local portal web server.
func (c *Hotspot) PortalAddr() string {
	return fmt.Sprintf("%s:%d", c.GatewayIP, c.PortalPort)
}

// Validate enforces daemon limits and internal consistency. All failures are
// KindValidation: the user has to correct the input, retrying is pointless.
func (c *Hotspot) Validate() error {
	if c.SSID == "" {
		return errors.New(errors.KindValidation, "ssid must not be empty")
	}
	if len(c.SSID) > 32 {
		return errors.Errorf(errors.KindValidation, "ssid %q is %d bytes, hostapd allows at most 32", c.SSID, len(c.SSID))
	}
	// Both values are written verbatim into generated daemon configs; a
	// control character (a newline above all) would terminate the directive
	// and smuggle in another one. hostapd additionally requires the
	// passphrase to be printable ASCII.
	if strings.ContainsFunc(c.SSID, unicode.IsControl) {
		return errors.Errorf(errors.KindValidation, "ssid %q contains control characters", c.SSID)
	}
	for _, r := range c.Passphrase {
		if r < 0x20 || r > 0x7e {
			return errors.New(errors.KindValidation, "passphrase must be printable ASCII (characters 32-126)")
		}
	}
	if len(c.Passphrase) < 8 {
		return errors.Errorf(errors.KindValidation, "passphrase must be at least 8 characters, got %d", len(c.Passphrase))
	}
	if len(c.Passphrase) > 63 {
		return errors.Errorf(errors.KindValidation, "passphrase must be at most 63 characters, got %d", len(c.Passphrase))
	}
	if c.Interface == "" {
		return errors.New(errors.KindValidation, "interface must not be empty")
	}

	gw := net.ParseIP(c.GatewayIP)
	if gw == nil || gw.To4() == nil {
		return errors.Errorf(errors.KindValidation, "gateway_ip %q is not a valid IPv4 address", c.GatewayIP)
	}
	maskIP := net.ParseIP(c.Netmask)
	if maskIP == nil || maskIP.To4() == nil {
		return errors.Errorf(errors.KindValidation, "netmask %q is not a valid IPv4 mask", c.Netmask)
	}

	start := net.ParseIP(c.RangeStart)
	end := net.ParseIP(c.RangeEnd)
	if start == nil || end == nil {
		return errors.Errorf(errors.KindValidation, "dhcp range %q-%q is not a valid IPv4 range", c.RangeStart, c.RangeEnd)
	}
	mask := net.IPMask(maskIP.To4())
	network := gw.Mask(mask)
	if !network.Equal(start.Mask(mask)) || !network.Equal(end.Mask(mask)) {
		return errors.Errorf(errors.KindValidation, "dhcp range %s-%s is outside the gateway subnet %s", c.RangeStart, c.RangeEnd, c.Subnet())
	}
	// The gateway address itself must never be leased out.
	if ipInRange(gw, start, end) {
		return errors.Errorf(errors.KindValidation, "dhcp range %s-%s contains the gateway address %s", c.RangeStart, c.RangeEnd, c.GatewayIP)
	}

	if c.Channel < 1 || c.Channel > 14 {
		return errors.Errorf(errors.KindValidation, "channel %d is outside the 2.4GHz range 1-14", c.Channel)
	}
	if c.PortalPort < 1 || c.PortalPort > 65535 {
		return errors.Errorf(errors.KindValidation, "portal_port %d is not a valid port", c.PortalPort)
	}
	for _, srv := range c.UpstreamDNS {
		if net.ParseIP(srv) == nil {
			return errors.Errorf(errors.KindValidation, "upstream_dns entry %q is not an IP address", srv)
		}
	}
	return nil
}

func ipInRange(ip, start, end net.IP) bool {
	ip4, s4, e4 := ip.To4(), start.To4(), end.To4()
	if ip4 == nil || s4 == nil || e4 == nil {
		return false
	}
	v := ipU32(ip4)
	return v >= ipU32(s4) && v <= ipU32(e4)
}

func ipU32(ip net.IP) uint32 {
	return uint32(ip[0])<<24 | uint32(ip[1])<<16 | uint32(ip[2])<<8 | uint32(ip[3])
}
