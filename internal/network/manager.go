// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package network owns the wireless interface for the duration of one
// hotspot lifecycle: it snapshots the interface's prior state, assigns the
// gateway address, and restores the snapshot on teardown.
package network

import (
	"context"
	"net"
	"strings"

	"github.com/vishvananda/netlink"

	"grimm.is/flytrap/internal/errors"
	"grimm.is/flytrap/internal/logging"
	"grimm.is/flytrap/internal/syscmd"
)

// Snapshot captures an interface's addresses and link state before the
// manager mutates it. It is consumed (restored) at most once.
type Snapshot struct {
	Name           string
	PriorAddresses []netlink.Addr
	PriorLinkUp    bool

	restored bool
}

// Manager mutates and restores interface state.
type Manager struct {
	nl     Netlinker
	runner syscmd.Runner
	logger *logging.Logger
}

// NewManager builds a Manager against the real kernel.
func NewManager(logger *logging.Logger) *Manager {
	return NewManagerWithDeps(DefaultNetlinker, syscmd.NewRunner(), logger)
}

// NewManagerWithDeps builds a Manager with injected dependencies.
func NewManagerWithDeps(nl Netlinker, runner syscmd.Runner, logger *logging.Logger) *Manager {
	if logger == nil {
		logger = logging.WithComponent("network")
	}
	return &Manager{nl: nl, runner: runner, logger: logger}
}

// Prepare verifies the interface exists and supports AP mode, and captures
// its current state for later restoration.
func (m *Manager) Prepare(ctx context.Context, name string) (*Snapshot, error) {
	link, err := m.nl.LinkByName(name)
	if err != nil {
		if isLinkNotFound(err) {
			return nil, errors.Errorf(errors.KindNotFound, "interface %s does not exist", name)
		}
		return nil, errors.Wrapf(err, errors.KindInternal, "failed to query interface %s", name)
	}

	if err := m.checkAPSupport(ctx, name); err != nil {
		return nil, err
	}

	addrs, err := m.nl.AddrList(link, netlink.FAMILY_V4)
	if err != nil {
		return nil, errors.Wrapf(err, errors.KindInternal, "failed to list addresses on %s", name)
	}

	up := link.Attrs().Flags&net.FlagUp != 0
	m.logger.Debug("Captured interface snapshot", "interface", name, "addresses", len(addrs), "up", up)
	return &Snapshot{
		Name:           name,
		PriorAddresses: addrs,
		PriorLinkUp:    up,
	}, nil
}

// checkAPSupport asks iw whether the adapter advertises AP mode. A missing
// iw binary downgrades to a warning, matching what admins expect on minimal
// installs; a query that runs but shows no AP support is fatal.
func (m *Manager) checkAPSupport(ctx context.Context, name string) error {
	out, err := m.runner.Run(ctx, syscmd.Command{Bin: "iw", Args: []string{"list"}})
	if err != nil {
		if syscmd.IsNotFound(err) {
			m.logger.Warn("iw not found, assuming interface supports AP mode", "interface", name)
			return nil
		}
		return errors.Wrapf(err, errors.KindUnsupported, "cannot query AP capability of %s", name)
	}
	if !strings.Contains(string(out), "* AP") {
		return errors.Errorf(errors.KindUnsupported, "adapter for %s does not support AP mode", name)
	}
	return nil
}

// Assign puts the gateway address on the interface and brings it up.
// Calling it again with the same address is a no-op.
func (m *Manager) Assign(name, cidr string) error {
	addr, err := netlink.ParseAddr(cidr)
	if err != nil {
		return errors.Wrapf(err, errors.KindValidation, "invalid address %s", cidr)
	}

	link, err := m.nl.LinkByName(name)
	if err != nil {
		return errors.Wrapf(err, errors.KindInternal, "failed to query interface %s", name)
	}

	existing, err := m.nl.AddrList(link, netlink.FAMILY_V4)
	if err != nil {
		return errors.Wrapf(err, errors.KindInternal, "failed to list addresses on %s", name)
	}

	alreadyAssigned := false
	for _, a := range existing {
		if a.IPNet.String() == addr.IPNet.String() {
			alreadyAssigned = true
			continue
		}
		// Leftover addresses confuse dnsmasq's bind-interfaces.
		if err := m.nl.AddrDel(link, &a); err != nil {
			m.logger.Warn("Failed to flush address", "interface", name, "address", a.IPNet.String(), "error", err)
		}
	}

	if alreadyAssigned && link.Attrs().Flags&net.FlagUp != 0 {
		m.logger.Debug("Address already assigned", "interface", name, "address", cidr)
		return nil
	}

	if !alreadyAssigned {
		if err := m.nl.LinkSetDown(link); err != nil {
			return errors.Wrapf(err, errors.KindInternal, "failed to bring %s down", name)
		}
		if err := m.nl.AddrAdd(link, addr); err != nil {
			return errors.Wrapf(err, errors.KindInternal, "failed to assign %s to %s", cidr, name)
		}
	}
	if err := m.nl.LinkSetUp(link); err != nil {
		return errors.Wrapf(err, errors.KindInternal, "failed to bring %s up", name)
	}

	m.logger.Info("Interface configured", "interface", name, "address", cidr)
	return nil
}

// Restore reverts the interface to its snapshotted state. It never
// propagates failure: an interface that was unplugged mid-session is logged
// and skipped, and a snapshot is only ever restored once.
func (m *Manager) Restore(snap *Snapshot) {
	if snap == nil || snap.restored {
		return
	}
	snap.restored = true

	link, err := m.nl.LinkByName(snap.Name)
	if err != nil {
		m.logger.Warn("Interface gone, skipping restore", "interface", snap.Name, "error", err)
		return
	}

	current, err := m.nl.AddrList(link, netlink.FAMILY_V4)
	if err != nil {
		m.logger.Warn("Failed to list addresses during restore", "interface", snap.Name, "error", err)
		current = nil
	}
	for _, a := range current {
		if err := m.nl.AddrDel(link, &a); err != nil {
			m.logger.Warn("Failed to remove address during restore", "address", a.IPNet.String(), "error", err)
		}
	}
	for _, a := range snap.PriorAddresses {
		prior := a
		if err := m.nl.AddrAdd(link, &prior); err != nil {
			m.logger.Warn("Failed to restore address", "address", a.IPNet.String(), "error", err)
		}
	}

	if snap.PriorLinkUp {
		if err := m.nl.LinkSetUp(link); err != nil {
			m.logger.Warn("Failed to restore link state", "interface", snap.Name, "error", err)
		}
	} else {
		if err := m.nl.LinkSetDown(link); err != nil {
			m.logger.Warn("Failed to restore link state", "interface", snap.Name, "error", err)
		}
	}

	m.logger.Info("Interface state restored", "interface", snap.Name)
}

// UplinkInterface finds the interface carrying the default route, excluding
// the hotspot interface itself. Used when the config leaves uplink empty.
func (m *Manager) UplinkInterface(hotspotIface string) (string, error) {
	routes, err := m.nl.RouteList(nil, netlink.FAMILY_V4)
	if err != nil {
		return "", errors.Wrap(err, errors.KindInternal, "failed to list routes")
	}
	for _, r := range routes {
		if r.Dst != nil || r.Gw == nil {
			continue
		}
		link, err := m.nl.LinkByIndex(r.LinkIndex)
		if err != nil {
			continue
		}
		name := link.Attrs().Name
		if name != hotspotIface {
			return name, nil
		}
	}
	return "", errors.New(errors.KindNotFound, "no default route found for uplink detection")
}

func isLinkNotFound(err error) bool {
	var lnf netlink.LinkNotFoundError
	return errors.As(err, &lnf)
}
