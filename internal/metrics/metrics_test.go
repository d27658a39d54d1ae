// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package metrics

import (
	"fmt"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestReadLeases(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	dir := t.TempDir()
	path := filepath.Join(dir, "dnsmasq.leases")

	content := fmt.Sprintf(
		"%d aa:bb:cc:dd:ee:01 192.168.4.2 phone 01:aa:bb:cc:dd:ee:01\n"+
			"%d aa:bb:cc:dd:ee:02 192.168.4.3 laptop *\n"+
			"0 aa:bb:cc:dd:ee:03 192.168.4.4 printer *\n"+
			"garbage line\n",
		now.Add(time.Hour).Unix(),  // valid
		now.Add(-time.Hour).Unix(), // expired
	)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	leases, err := ReadLeases(path, now)
	if err != nil {
		t.Fatalf("ReadLeases: %v", err)
	}
	if len(leases) != 2 {
		t.Fatalf("expected 2 active leases, got %d", len(leases))
	}
	if leases[0].IP != "192.168.4.2" || leases[0].Hostname != "phone" {
		t.Errorf("unexpected first lease: %+v", leases[0])
	}
	if leases[1].IP != "192.168.4.4" {
		t.Errorf("infinite lease should be active: %+v", leases[1])
	}
}

func TestReadLeasesMissingFile(t *testing.T) {
	leases, err := ReadLeases(filepath.Join(t.TempDir(), "nope"), time.Now())
	if err != nil {
		t.Fatalf("missing lease file must not be an error: %v", err)
	}
	if leases != nil {
		t.Errorf("expected no leases, got %v", leases)
	}
}

func TestCollectorScrape(t *testing.T) {
	c := NewCollector()
	c.SetLifecycleState("running", []string{"init", "running", "stopped"})
	c.ObserveHealthCheck("hostapd", true)
	c.ObserveHealthCheck("dnsmasq", false)
	c.SetConnectedClients(3)
	c.SetRulesApplied(9)

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body := rec.Body.String()

	for _, want := range []string{
		`flytrap_lifecycle_state{state="running"} 1`,
		`flytrap_lifecycle_state{state="stopped"} 0`,
		`flytrap_health_checks_total{result="healthy",service="hostapd"} 1`,
		`flytrap_health_checks_total{result="unhealthy",service="dnsmasq"} 1`,
		`flytrap_connected_clients 3`,
		`flytrap_firewall_rules_applied 9`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("scrape output missing %q", want)
		}
	}
}
