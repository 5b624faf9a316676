package io

import (
	"context"
	"fmt"
	"io/fs"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/slok/sessionbox/internal/model"
	"github.com/slok/sessionbox/internal/policy"
)

// PolicyYAMLRepository loads sandbox policy defaults from YAML files.
type PolicyYAMLRepository struct {
	fs fs.FS
}

// NewPolicyYAMLRepository creates a new YAML policy repository.
func NewPolicyYAMLRepository(filesystem fs.FS) *PolicyYAMLRepository {
	return &PolicyYAMLRepository{fs: filesystem}
}

// GetPolicyDefaults loads the policy defaults from a YAML file and returns validated domain defaults.
func (r *PolicyYAMLRepository) GetPolicyDefaults(ctx context.Context, path string) (policy.Defaults, error) {
	data, err := fs.ReadFile(r.fs, path)
	if err != nil {
		return policy.Defaults{}, fmt.Errorf("reading policy file: %w", err)
	}

	if ctx.Err() != nil {
		return policy.Defaults{}, ctx.Err()
	}

	var cfg PolicyConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return policy.Defaults{}, fmt.Errorf("parsing YAML: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return policy.Defaults{}, fmt.Errorf("invalid policy: %w: %w", err, model.ErrNotValid)
	}

	return cfg.toModel(), nil
}

// PolicyConfig represents the YAML structure for the policy defaults.
type PolicyConfig struct {
	Network    NetworkConfig    `yaml:"network"`
	Filesystem FilesystemConfig `yaml:"filesystem"`
}

// NetworkConfig represents the YAML structure for the network policy defaults.
type NetworkConfig struct {
	DeniedDomains []string `yaml:"denied_domains"`
}

// FilesystemConfig represents the YAML structure for the filesystem policy defaults.
type FilesystemConfig struct {
	DenyRead  []string `yaml:"deny_read"`
	DenyWrite []string `yaml:"deny_write"`
}

func (c PolicyConfig) validate() error {
	for _, d := range c.Network.DeniedDomains {
		if strings.TrimSpace(d) == "" {
			return fmt.Errorf("denied domain can't be empty")
		}
		if d == policy.AllowAllDomains {
			return fmt.Errorf("denied domain can't be %q", d)
		}
	}

	paths := append(append([]string{}, c.Filesystem.DenyRead...), c.Filesystem.DenyWrite...)
	for _, p := range paths {
		if !strings.HasPrefix(p, "/") && !strings.HasPrefix(p, "~") {
			return fmt.Errorf("path %q must be absolute or start with ~", p)
		}
	}

	return nil
}

func (c PolicyConfig) toModel() policy.Defaults {
	return policy.Defaults{
		DeniedDomains: c.Network.DeniedDomains,
		DenyRead:      c.Filesystem.DenyRead,
		DenyWrite:     c.Filesystem.DenyWrite,
	}
}
