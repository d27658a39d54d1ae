// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package network

import (
	"github.com/vishvananda/netlink"
)

// Netlinker abstracts the netlink operations the interface manager needs so
// tests can run without CAP_NET_ADMIN.
type Netlinker interface {
	LinkByName(name string) (netlink.Link, error)
	LinkByIndex(index int) (netlink.Link, error)
	LinkSetUp(link netlink.Link) error
	LinkSetDown(link netlink.Link) error
	AddrList(link netlink.Link, family int) ([]netlink.Addr, error)
	AddrAdd(link netlink.Link, addr *netlink.Addr) error
	AddrDel(link netlink.Link, addr *netlink.Addr) error
	RouteList(link netlink.Link, family int) ([]netlink.Route, error)
	LinkList() ([]netlink.Link, error)
}

// RealNetlinker talks to the kernel.
type RealNetlinker struct{}

func (RealNetlinker) LinkByName(name string) (netlink.Link, error)  { return netlink.LinkByName(name) }
func (RealNetlinker) LinkByIndex(index int) (netlink.Link, error)   { return netlink.LinkByIndex(index) }
func (RealNetlinker) LinkSetUp(link netlink.Link) error             { return netlink.LinkSetUp(link) }
func (RealNetlinker) LinkSetDown(link netlink.Link) error           { return netlink.LinkSetDown(link) }
func (RealNetlinker) AddrAdd(link netlink.Link, a *netlink.Addr) error {
	return netlink.AddrAdd(link, a)
}
func (RealNetlinker) AddrDel(link netlink.Link, a *netlink.Addr) error {
	return netlink.AddrDel(link, a)
}
func (RealNetlinker) AddrList(link netlink.Link, family int) ([]netlink.Addr, error) {
	return netlink.AddrList(link, family)
}
func (RealNetlinker) RouteList(link netlink.Link, family int) ([]netlink.Route, error) {
	return netlink.RouteList(link, family)
}
func (RealNetlinker) LinkList() ([]netlink.Link, error) { return netlink.LinkList() }

// DefaultNetlinker is the default RealNetlinker instance.
var DefaultNetlinker Netlinker = RealNetlinker{}
