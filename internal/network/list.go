// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package network

import (
	"strings"

	"github.com/safchain/ethtool"
	"github.com/vishvananda/netlink"
)

// InterfaceInfo describes one candidate interface for the picker output.
type InterfaceInfo struct {
	Name      string
	Driver    string
	Wireless  bool
	Up        bool
	Addresses []string
}

var wirelessPrefixes = []string{"wlan", "wlo", "wlx", "wlp", "wifi"}

// IsWirelessName reports whether an interface name looks like a wireless
// adapter. Kernel predictable-naming prefixes cover the common cases.
func IsWirelessName(name string) bool {
	for _, p := range wirelessPrefixes {
		if strings.HasPrefix(name, p) {
			return true
		}
	}
	return false
}

// ListInterfaces returns every non-loopback interface with its driver name
// and current addresses, wireless candidates first.
func (m *Manager) ListInterfaces() ([]InterfaceInfo, error) {
	links, err := m.nl.LinkList()
	if err != nil {
		return nil, err
	}

	et, etErr := ethtool.NewEthtool()
	if etErr == nil {
		defer et.Close()
	}

	var wireless, wired []InterfaceInfo
	for _, link := range links {
		attrs := link.Attrs()
		if attrs.Name == "lo" {
			continue
		}
		info := InterfaceInfo{
			Name:     attrs.Name,
			Wireless: IsWirelessName(attrs.Name),
			Up:       attrs.OperState == netlink.OperUp,
		}
		if etErr == nil {
			if drv, err := et.DriverName(attrs.Name); err == nil {
				info.Driver = drv
			}
		}
		if addrs, err := m.nl.AddrList(link, netlink.FAMILY_V4); err == nil {
			for _, a := range addrs {
				info.Addresses = append(info.Addresses, a.IPNet.String())
			}
		}
		if info.Wireless {
			wireless = append(wireless, info)
		} else {
			wired = append(wired, info)
		}
	}
	return append(wireless, wired...), nil
}
