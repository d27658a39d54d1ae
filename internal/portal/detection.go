// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package portal decides which DNS names are rewritten to the portal
// address. Only the hosts operating systems probe to detect captive portals
// are redirected; all other resolution passes through to the upstreams. A
// blanket redirect makes clients conclude the network is broken, so the set
// is deliberately narrow.
package portal

import (
	"os"
	"sort"

	"github.com/miekg/dns"
	"gopkg.in/yaml.v3"

	"grimm.is/flytrap/internal/errors"
)

// defaultDomains are the connectivity-check hosts of the major platforms.
var defaultDomains = []string{
	// Android / Chrome
	"clients3.google.com",
	"connectivitycheck.gstatic.com",
	"connectivitycheck.android.com",
	// iOS / macOS
	"captive.apple.com",
	// Windows NCSI
	"msftconnecttest.com",
	"www.msftconnecttest.com",
	"www.msftncsi.com",
	// Firefox
	"detectportal.firefox.com",
	// Linux desktops
	"nmcheck.gnome.org",
	"connectivity-check.ubuntu.com",
	"network-test.debian.org",
	// Kindle
	"spectrum.s3.amazonaws.com",
}

// Router answers redirect decisions against an immutable domain set. The set
// is built once at startup and never mutated during a session.
type Router struct {
	domains []string // canonical FQDNs, sorted
}

// DefaultDomains returns the built-in detection domain list.
func DefaultDomains() []string {
	return append([]string(nil), defaultDomains...)
}

// NewRouter builds a Router over the given domains. Names are canonicalized
// (lowercased, fully qualified) and de-duplicated.
func NewRouter(domains []string) *Router {
	seen := make(map[string]bool, len(domains))
	canon := make([]string, 0, len(domains))
	for _, d := range domains {
		fqdn := dns.CanonicalName(d)
		if fqdn == "." || seen[fqdn] {
			continue
		}
		seen[fqdn] = true
		canon = append(canon, fqdn)
	}
	sort.Strings(canon)
	return &Router{domains: canon}
}

// ShouldRedirect reports whether a query for name must be answered with the
// portal address. Matching is exact or by suffix: a query for
// sub.captive.apple.com matches the captive.apple.com entry.
func (r *Router) ShouldRedirect(name string) bool {
	q := dns.CanonicalName(name)
	for _, d := range r.domains {
		if q == d || dns.IsSubDomain(d, q) {
			return true
		}
	}
	return false
}

// Domains returns the set as bare (non-FQDN) names in sorted order, the form
// dnsmasq address= directives expect.
func (r *Router) Domains() []string {
	out := make([]string, len(r.domains))
	for i, d := range r.domains {
		out[i] = trimDot(d)
	}
	return out
}

// Len returns the number of domains in the set.
func (r *Router) Len() int {
	return len(r.domains)
}

func trimDot(s string) string {
	if len(s) > 0 && s[len(s)-1] == '.' {
		return s[:len(s)-1]
	}
	return s
}

// domainsFile is the YAML shape of an extra-domains file.
type domainsFile struct {
	Domains []string `yaml:"domains"`
}

// LoadDomainsFile reads additional detection domains from a YAML file and
// returns them appended to the defaults.
func LoadDomainsFile(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, errors.KindValidation, "failed to read detection domains file %s", path)
	}
	var f domainsFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, errors.Wrapf(err, errors.KindValidation, "failed to parse detection domains file %s", path)
	}
	return append(DefaultDomains(), f.Domains...), nil
}
