package policy

import (
	"path/filepath"
	"strings"

	"github.com/slok/sessionbox/internal/model"
)

// Matcher evaluates a sandbox policy against domains and paths. Deny rules always
// take precedence over allow rules.
//
// Paths starting with "~" are expanded with the home dir passed on creation.
type Matcher struct {
	policy  model.SandboxPolicy
	homeDir string
}

// NewMatcher creates a policy matcher from a sandbox policy.
func NewMatcher(p model.SandboxPolicy, homeDir string) *Matcher {
	return &Matcher{
		policy:  p.Clone(),
		homeDir: homeDir,
	}
}

// AllowDomain checks if a domain is allowed by the policy.
func (m *Matcher) AllowDomain(domain string) bool {
	domain = strings.ToLower(strings.TrimSuffix(domain, "."))

	for _, p := range m.policy.Network.DeniedDomains {
		if matchDomain(p, domain) {
			return false
		}
	}

	for _, p := range m.policy.Network.AllowedDomains {
		if matchDomain(p, domain) {
			return true
		}
	}

	return false
}

// AllowWrite checks if a path can be written by a sandboxed command.
func (m *Matcher) AllowWrite(path string) bool {
	if m.matchAnyPath(m.policy.Filesystem.DenyWrite, path) {
		return false
	}

	return m.matchAnyPath(m.policy.Filesystem.AllowWrite, path)
}

// AllowRead checks if a path can be read by a sandboxed command. Reads are
// allowed everywhere except the denied paths.
func (m *Matcher) AllowRead(path string) bool {
	return !m.matchAnyPath(m.policy.Filesystem.DenyRead, path)
}

func (m *Matcher) matchAnyPath(patterns []string, path string) bool {
	path = filepath.Clean(path)
	for _, p := range patterns {
		if matchPath(m.expand(p), path) {
			return true
		}
	}
	return false
}

func (m *Matcher) expand(p string) string {
	if p == "~" {
		return m.homeDir
	}
	if strings.HasPrefix(p, "~/") {
		return filepath.Join(m.homeDir, p[2:])
	}
	return p
}

// matchPath matches a path against a directory or file pattern, a pattern matches
// itself and everything under it.
func matchPath(pattern, path string) bool {
	pattern = filepath.Clean(pattern)
	if pattern == path {
		return true
	}
	if pattern == string(filepath.Separator) {
		return true
	}
	return strings.HasPrefix(path, pattern+string(filepath.Separator))
}

// matchDomain matches a domain against a pattern.
// Supports "*" (any domain), exact match and wildcard prefix ("*.example.com").
// Wildcard matches any subdomain but not the base domain itself.
func matchDomain(pattern, domain string) bool {
	pattern = strings.ToLower(pattern)

	if pattern == AllowAllDomains {
		return true
	}

	if strings.HasPrefix(pattern, "*.") {
		suffix := pattern[1:] // ".example.com"
		return strings.HasSuffix(domain, suffix)
	}

	return pattern == domain
}
