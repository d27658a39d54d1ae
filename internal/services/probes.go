// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package services

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/miekg/dns"
)

// probeTimeout bounds a single readiness probe. The health ticker must never
// stall behind a wedged daemon.
const probeTimeout = 3 * time.Second

// HTTPReadiness returns a probe that GETs url and fails on any transport
// error or non-2xx status.
func HTTPReadiness(url string) ReadinessProbe {
	client := &http.Client{Timeout: probeTimeout}
	return func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return err
		}
		resp, err := client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return fmt.Errorf("unexpected status %d from %s", resp.StatusCode, url)
		}
		return nil
	}
}

// DNSReadiness returns a probe that sends an A query for domain to the
// resolver at addr (host:port) and fails on any exchange error or an empty
// answer section.
func DNSReadiness(addr, domain string) ReadinessProbe {
	client := &dns.Client{Timeout: probeTimeout}
	return func(ctx context.Context) error {
		m := new(dns.Msg)
		m.SetQuestion(dns.Fqdn(domain), dns.TypeA)
		resp, _, err := client.ExchangeContext(ctx, m, addr)
		if err != nil {
			return err
		}
		if len(resp.Answer) == 0 {
			return fmt.Errorf("no answer for %s from %s", domain, addr)
		}
		return nil
	}
}
