// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package confgen

import (
	"strings"
	"testing"

	"grimm.is/flytrap/internal/config"
	"grimm.is/flytrap/internal/errors"
	"grimm.is/flytrap/internal/portal"
)

func testConfig() *config.Hotspot {
	cfg := config.Default()
	cfg.SSID = "Test"
	cfg.Passphrase = "password1"
	cfg.Interface = "wlan0"
	return cfg
}

func TestHostapdContainsSuppliedFields(t *testing.T) {
	cfg := testConfig()
	out, err := Hostapd(cfg)
	if err != nil {
		t.Fatalf("Hostapd: %v", err)
	}

	for _, want := range []string{
		"interface=wlan0",
		"ssid=Test",
		"wpa_passphrase=password1",
		"channel=7",
		"wpa=2",
		"driver=nl80211",
	} {
		if !strings.Contains(out, want+"\n") {
			t.Errorf("hostapd config missing %q:\n%s", want, out)
		}
	}
}

func TestHostapdDeterministic(t *testing.T) {
	cfg := testConfig()
	a, err := Hostapd(cfg)
	if err != nil {
		t.Fatal(err)
	}
	b, err := Hostapd(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if a != b {
		t.Error("output is not deterministic")
	}
}

func TestHostapdRejectsBadConfig(t *testing.T) {
	cfg := testConfig()
	cfg.Passphrase = "short"
	if _, err := Hostapd(cfg); errors.GetKind(err) != errors.KindValidation {
		t.Errorf("expected KindValidation, got %v", err)
	}

	cfg = testConfig()
	cfg.SSID = strings.Repeat("s", 33)
	if _, err := Hostapd(cfg); errors.GetKind(err) != errors.KindValidation {
		t.Errorf("expected KindValidation, got %v", err)
	}
}

func TestHostapdRejectsDirectiveInjection(t *testing.T) {
	// A newline in the SSID would otherwise land verbatim in hostapd.conf
	// and smuggle in a second directive.
	cfg := testConfig()
	cfg.SSID = "x\nwpa_passphrase=evil123"
	out, err := Hostapd(cfg)
	if errors.GetKind(err) != errors.KindValidation {
		t.Fatalf("expected KindValidation, got %v", err)
	}
	if strings.Contains(out, "wpa_passphrase=evil123") {
		t.Errorf("injected directive reached the config:\n%s", out)
	}

	cfg = testConfig()
	cfg.Passphrase = "evilpass\nctrl_interface=/tmp/x"
	out, err = Hostapd(cfg)
	if errors.GetKind(err) != errors.KindValidation {
		t.Fatalf("expected KindValidation, got %v", err)
	}
	if strings.Contains(out, "ctrl_interface=") {
		t.Errorf("injected directive reached the config:\n%s", out)
	}
}

func TestDnsmasq(t *testing.T) {
	cfg := testConfig()
	domains := portal.NewRouter(portal.DefaultDomains()).Domains()
	out, err := Dnsmasq(cfg, domains, "/run/flytrap/dnsmasq.leases")
	if err != nil {
		t.Fatalf("Dnsmasq: %v", err)
	}

	for _, want := range []string{
		"interface=wlan0",
		"dhcp-range=192.168.4.2,192.168.4.50,255.255.255.0,24h",
		"dhcp-leasefile=/run/flytrap/dnsmasq.leases",
		"dhcp-option=3,192.168.4.1",
		"server=8.8.8.8",
		"server=1.1.1.1",
		"address=/captive.apple.com/192.168.4.1",
		"address=/connectivitycheck.gstatic.com/192.168.4.1",
		"dhcp-option=114,http://192.168.4.1:5000/",
	} {
		if !strings.Contains(out, want+"\n") {
			t.Errorf("dnsmasq config missing %q", want)
		}
	}

	// Selective redirection only: no catch-all address rewrite.
	if strings.Contains(out, "address=/#/") {
		t.Error("dnsmasq config must not rewrite all domains")
	}
	if strings.Contains(out, "address=/google.com/") {
		t.Error("ordinary domains must not be rewritten")
	}
}

func TestDnsmasqDomainOptionIsHostnameSafe(t *testing.T) {
	cfg := testConfig()
	cfg.SSID = "My Guest WiFi!"
	out, err := Dnsmasq(cfg, nil, "/tmp/leases")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "dhcp-option=15,my-guest-wifi\n") {
		t.Errorf("domain option not sanitized:\n%s", out)
	}

	// An SSID with no usable characters falls back to the project name.
	cfg.SSID = "!!!"
	out, err = Dnsmasq(cfg, nil, "/tmp/leases")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "dhcp-option=15,flytrap\n") {
		t.Errorf("empty token fallback missing:\n%s", out)
	}
}

func TestDnsmasqRejectsDirectiveInjection(t *testing.T) {
	cfg := testConfig()
	cfg.SSID = "x\naddress=/#/6.6.6.6"
	out, err := Dnsmasq(cfg, nil, "/tmp/leases")
	if errors.GetKind(err) != errors.KindValidation {
		t.Fatalf("expected KindValidation, got %v", err)
	}
	if strings.Contains(out, "address=/#/") {
		t.Errorf("injected directive reached the config:\n%s", out)
	}
}

func TestDnsmasqLeaseDuration(t *testing.T) {
	cfg := testConfig()
	cfg.LeaseHours = 12
	out, err := Dnsmasq(cfg, nil, "/tmp/leases")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, ",12h\n") {
		t.Errorf("lease duration not reflected:\n%s", out)
	}
}
