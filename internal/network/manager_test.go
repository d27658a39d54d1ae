// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package network

import (
	"context"
	"net"
	"testing"

	"github.com/vishvananda/netlink"

	"grimm.is/flytrap/internal/errors"
	"grimm.is/flytrap/internal/logging"
	"grimm.is/flytrap/internal/syscmd"
)

// fakeNetlinker is an in-memory Netlinker.
type fakeNetlinker struct {
	links map[string]*fakeLink
}

type fakeLink struct {
	netlink.LinkAttrs
	addrs []netlink.Addr
}

func (l *fakeLink) Attrs() *netlink.LinkAttrs { return &l.LinkAttrs }
func (l *fakeLink) Type() string              { return "dummy" }

func newFakeNetlinker() *fakeNetlinker {
	return &fakeNetlinker{links: make(map[string]*fakeLink)}
}

func (f *fakeNetlinker) addLink(name string, up bool, addrs ...string) *fakeLink {
	l := &fakeLink{}
	l.Name = name
	l.Index = len(f.links) + 1
	if up {
		l.Flags = net.FlagUp
		l.OperState = netlink.OperUp
	}
	for _, a := range addrs {
		addr, err := netlink.ParseAddr(a)
		if err != nil {
			panic(err)
		}
		l.addrs = append(l.addrs, *addr)
	}
	f.links[name] = l
	return l
}

func (f *fakeNetlinker) LinkByName(name string) (netlink.Link, error) {
	if l, ok := f.links[name]; ok {
		return l, nil
	}
	return nil, netlink.LinkNotFoundError{}
}

func (f *fakeNetlinker) LinkByIndex(index int) (netlink.Link, error) {
	for _, l := range f.links {
		if l.Index == index {
			return l, nil
		}
	}
	return nil, netlink.LinkNotFoundError{}
}

func (f *fakeNetlinker) LinkSetUp(link netlink.Link) error {
	link.Attrs().Flags |= net.FlagUp
	return nil
}

func (f *fakeNetlinker) LinkSetDown(link netlink.Link) error {
	link.Attrs().Flags &^= net.FlagUp
	return nil
}

func (f *fakeNetlinker) AddrList(link netlink.Link, family int) ([]netlink.Addr, error) {
	l := f.links[link.Attrs().Name]
	return append([]netlink.Addr(nil), l.addrs...), nil
}

func (f *fakeNetlinker) AddrAdd(link netlink.Link, addr *netlink.Addr) error {
	l := f.links[link.Attrs().Name]
	l.addrs = append(l.addrs, *addr)
	return nil
}

func (f *fakeNetlinker) AddrDel(link netlink.Link, addr *netlink.Addr) error {
	l := f.links[link.Attrs().Name]
	for i, a := range l.addrs {
		if a.IPNet.String() == addr.IPNet.String() {
			l.addrs = append(l.addrs[:i], l.addrs[i+1:]...)
			return nil
		}
	}
	return nil
}

func (f *fakeNetlinker) RouteList(link netlink.Link, family int) ([]netlink.Route, error) {
	return nil, nil
}

func (f *fakeNetlinker) LinkList() ([]netlink.Link, error) {
	var out []netlink.Link
	for _, l := range f.links {
		out = append(out, l)
	}
	return out, nil
}

// fakeRunner scripts iw output.
type fakeRunner struct {
	output  string
	err     error
	lookErr error
}

func (r *fakeRunner) Run(ctx context.Context, cmd syscmd.Command) ([]byte, error) {
	return []byte(r.output), r.err
}

func (r *fakeRunner) LookPath(bin string) (string, error) {
	return "/usr/sbin/" + bin, r.lookErr
}

func quietLogger() *logging.Logger {
	return logging.New(logging.Config{Level: logging.LevelError})
}

func apRunner() *fakeRunner {
	return &fakeRunner{output: "Supported interface modes:\n\t * managed\n\t * AP\n"}
}

func TestPrepareUnknownInterface(t *testing.T) {
	m := NewManagerWithDeps(newFakeNetlinker(), apRunner(), quietLogger())
	_, err := m.Prepare(context.Background(), "wlan9")
	if errors.GetKind(err) != errors.KindNotFound {
		t.Fatalf("expected KindNotFound, got %v", err)
	}
}

func TestPrepareNoAPSupport(t *testing.T) {
	nl := newFakeNetlinker()
	nl.addLink("wlan0", true)
	runner := &fakeRunner{output: "Supported interface modes:\n\t * managed\n"}
	m := NewManagerWithDeps(nl, runner, quietLogger())
	_, err := m.Prepare(context.Background(), "wlan0")
	if errors.GetKind(err) != errors.KindUnsupported {
		t.Fatalf("expected KindUnsupported, got %v", err)
	}
}

func TestAssignIdempotent(t *testing.T) {
	nl := newFakeNetlinker()
	nl.addLink("wlan0", false, "10.1.2.3/24")
	m := NewManagerWithDeps(nl, apRunner(), quietLogger())

	if err := m.Assign("wlan0", "192.168.4.1/24"); err != nil {
		t.Fatalf("first Assign: %v", err)
	}
	if err := m.Assign("wlan0", "192.168.4.1/24"); err != nil {
		t.Fatalf("second Assign must be a no-op: %v", err)
	}

	l := nl.links["wlan0"]
	if len(l.addrs) != 1 || l.addrs[0].IPNet.String() != "192.168.4.1/24" {
		t.Errorf("addresses after assign: %v", l.addrs)
	}
	if l.Flags&net.FlagUp == 0 {
		t.Error("link should be up after Assign")
	}
}

func TestPrepareAssignRestoreRoundTrip(t *testing.T) {
	nl := newFakeNetlinker()
	nl.addLink("wlan0", true, "10.1.2.3/24")
	m := NewManagerWithDeps(nl, apRunner(), quietLogger())

	snap, err := m.Prepare(context.Background(), "wlan0")
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if err := m.Assign("wlan0", "192.168.4.1/24"); err != nil {
		t.Fatalf("Assign: %v", err)
	}

	m.Restore(snap)

	l := nl.links["wlan0"]
	if len(l.addrs) != 1 || l.addrs[0].IPNet.String() != "10.1.2.3/24" {
		t.Errorf("addresses not restored: %v", l.addrs)
	}
	if l.Flags&net.FlagUp == 0 {
		t.Error("link state not restored")
	}
}

func TestRestoreAtMostOnce(t *testing.T) {
	nl := newFakeNetlinker()
	nl.addLink("wlan0", true, "10.1.2.3/24")
	m := NewManagerWithDeps(nl, apRunner(), quietLogger())

	snap, err := m.Prepare(context.Background(), "wlan0")
	if err != nil {
		t.Fatal(err)
	}
	m.Restore(snap)

	// Mutate after restore; a second Restore must not touch the interface.
	if err := m.Assign("wlan0", "192.168.4.1/24"); err != nil {
		t.Fatal(err)
	}
	m.Restore(snap)

	l := nl.links["wlan0"]
	if len(l.addrs) != 1 || l.addrs[0].IPNet.String() != "192.168.4.1/24" {
		t.Errorf("second Restore must be a no-op, got %v", l.addrs)
	}
}

func TestRestoreMissingInterfaceDoesNotPanic(t *testing.T) {
	nl := newFakeNetlinker()
	nl.addLink("wlan0", true)
	m := NewManagerWithDeps(nl, apRunner(), quietLogger())

	snap, err := m.Prepare(context.Background(), "wlan0")
	if err != nil {
		t.Fatal(err)
	}
	delete(nl.links, "wlan0")
	m.Restore(snap) // must log and return, not panic or error
}
