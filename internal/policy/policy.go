package policy

import (
	"fmt"

	"github.com/slok/sessionbox/internal/conventions"
	"github.com/slok/sessionbox/internal/model"
)

// AllowAllDomains is the domain pattern that matches every domain.
const AllowAllDomains = "*"

// sensitivePaths are always denied for read and write, regardless of configuration.
var sensitivePaths = []string{
	"~/.ssh",
	"/etc/shadow",
	"/etc/gshadow",
	"/etc/sudoers",
}

// Defaults are extra rules layered on every built policy. They can only restrict:
// the allow-write list and the fixed denials are not affected.
type Defaults struct {
	DeniedDomains []string
	DenyRead      []string
	DenyWrite     []string
}

// BuilderConfig is the configuration for the policy builder.
type BuilderConfig struct {
	// TmpDir is the shared temp path sessions can write to.
	TmpDir   string
	Defaults Defaults
}

func (c *BuilderConfig) defaults() error {
	if c.TmpDir == "" {
		c.TmpDir = conventions.TmpDir
	}

	for _, d := range c.Defaults.DeniedDomains {
		if d == AllowAllDomains {
			return fmt.Errorf("denying all domains must be done by the enforcer, not with %q: %w", d, model.ErrNotValid)
		}
	}

	return nil
}

// Builder builds sandbox policies for sessions.
type Builder struct {
	tmpDir   string
	defaults Defaults
}

// NewBuilder returns a new policy builder.
func NewBuilder(cfg BuilderConfig) (*Builder, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Builder{
		tmpDir:   cfg.TmpDir,
		defaults: cfg.Defaults,
	}, nil
}

// Build returns the sandbox policy for a session directory. It doesn't do any I/O
// and always succeeds, the returned policy never shares memory with the builder.
func (b *Builder) Build(sessionDir string, relaxedNestedSandbox bool) model.SandboxPolicy {
	denyRead := append(append([]string{}, sensitivePaths...), b.defaults.DenyRead...)
	denyWrite := append(append([]string{}, sensitivePaths...), b.defaults.DenyWrite...)

	return model.SandboxPolicy{
		Network: model.NetworkPolicy{
			AllowedDomains:    []string{AllowAllDomains},
			DeniedDomains:     append([]string{}, b.defaults.DeniedDomains...),
			AllowLocalBinding: true,
		},
		Filesystem: model.FilesystemPolicy{
			AllowWrite: []string{sessionDir, b.tmpDir},
			DenyWrite:  dedup(denyWrite),
			DenyRead:   dedup(denyRead),
		},
		EnableWeakerNestedSandbox: relaxedNestedSandbox,
	}
}

func dedup(s []string) []string {
	seen := make(map[string]struct{}, len(s))
	res := make([]string, 0, len(s))
	for _, v := range s {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		res = append(res, v)
	}
	return res
}
