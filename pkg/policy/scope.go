// Package policy decides which discovered URLs a crawl is allowed to
// enqueue: scope containment relative to the seed, and include/exclude
// pattern filtering.
package policy

import (
	"net/url"
	"strings"
)

// ScopeMode selects how discovered URLs are confined relative to the seed
type ScopeMode string

const (
	ScopeModeUnset      ScopeMode = ""           // Zero value, treated as default
	ScopeModeDefault    ScopeMode = "default"    // Same host and seed path prefix
	ScopeModeHostOnly   ScopeMode = "host_only"  // Same host, any path
	ScopeModeSubdomains ScopeMode = "subdomains" // Same registrable domain, any path
)

// String implements fmt.Stringer for logging
func (m ScopeMode) String() string {
	if m == "" {
		return "default"
	}
	return string(m)
}

// IsValid returns true if the mode is a known operational value
func (m ScopeMode) IsValid() bool {
	switch m {
	case ScopeModeDefault, ScopeModeHostOnly, ScopeModeSubdomains:
		return true
	}
	return false
}

// Scope confines candidate URLs relative to a seed URL
type Scope struct {
	mode       ScopeMode
	seedHost   string
	seedDomain string // Registrable domain of the seed host
	seedPath   string // Seed path exactly as given
}

// NewScope builds a Scope for the given seed. An unset or unknown mode
// falls back to ScopeModeDefault.
func NewScope(seed *url.URL, mode ScopeMode) *Scope {
	if !mode.IsValid() {
		mode = ScopeModeDefault
	}
	host := strings.ToLower(seed.Hostname())
	return &Scope{
		mode:       mode,
		seedHost:   host,
		seedDomain: registrableDomain(host),
		seedPath:   seed.Path,
	}
}

// Mode returns the effective scope mode
func (s *Scope) Mode() ScopeMode { return s.mode }

// Contains reports whether a candidate URL falls inside the crawl scope
func (s *Scope) Contains(u *url.URL) bool {
	if u == nil {
		return false
	}
	host := strings.ToLower(u.Hostname())

	switch s.mode {
	case ScopeModeHostOnly:
		return host == s.seedHost
	case ScopeModeSubdomains:
		return registrableDomain(host) == s.seedDomain
	default:
		if host != s.seedHost {
			return false
		}
		// Plain string prefix on the unmodified paths: seed "/docs" admits
		// both "/docs/intro" and "/docs-other"
		return strings.HasPrefix(u.Path, s.seedPath)
	}
}

// registrableDomain approximates the registrable domain as the last two
// dot-separated labels. Hosts with fewer labels (localhost, IPs are kept
// whole) are returned unchanged.
func registrableDomain(host string) string {
	parts := strings.Split(host, ".")
	if len(parts) < 2 {
		return host
	}
	return strings.Join(parts[len(parts)-2:], ".")
}
