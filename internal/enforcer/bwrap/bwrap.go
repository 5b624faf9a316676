// Package bwrap has an enforcer that confines commands with bubblewrap.
//
// The host filesystem is mounted read-only, the policy allow-write paths are bind
// mounted read-write and the deny rules are layered on top (later mounts win).
// Bubblewrap can't filter by domain, so the network is only unshared when the policy
// doesn't allow any domain.
package bwrap

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/slok/sessionbox/internal/conventions"
	"github.com/slok/sessionbox/internal/enforcer"
	"github.com/slok/sessionbox/internal/log"
	"github.com/slok/sessionbox/internal/model"
	"github.com/slok/sessionbox/internal/utils/shell"
)

// PathKind is the kind of a filesystem path.
type PathKind int

const (
	// PathMissing is a path that doesn't exist.
	PathMissing PathKind = iota
	// PathFile is a path to a non directory.
	PathFile
	// PathDir is a path to a directory.
	PathDir
)

// EnforcerConfig is the configuration for the bwrap enforcer.
type EnforcerConfig struct {
	// BwrapBinary is the bubblewrap binary, default "bwrap".
	BwrapBinary string
	// HomeDir is used to expand "~" on policy paths.
	HomeDir string
	// PathKind returns the kind of a host path, defaults to os.Stat based detection.
	PathKind func(path string) (PathKind, error)
	Logger   log.Logger
}

func (c *EnforcerConfig) defaults() error {
	if c.BwrapBinary == "" {
		c.BwrapBinary = "bwrap"
	}

	if c.HomeDir == "" {
		return fmt.Errorf("home dir is required")
	}

	if c.PathKind == nil {
		c.PathKind = statPathKind
	}

	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "enforcer.Bwrap"})

	return nil
}

// Enforcer wraps commands with bubblewrap.
type Enforcer struct {
	binary   string
	homeDir  string
	pathKind func(path string) (PathKind, error)
	logger   log.Logger
}

// NewEnforcer returns a new bwrap enforcer.
func NewEnforcer(cfg EnforcerConfig) (*Enforcer, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Enforcer{
		binary:   cfg.BwrapBinary,
		homeDir:  cfg.HomeDir,
		pathKind: cfg.PathKind,
		logger:   cfg.Logger,
	}, nil
}

// Wrap satisfies enforcer.Enforcer interface.
func (e *Enforcer) Wrap(ctx context.Context, command string, policy model.SandboxPolicy) (string, error) {
	args, err := e.args(policy)
	if err != nil {
		return "", err
	}

	args = append(args, "--", conventions.Shell, "-c", command)
	wrapped := shell.Join(append([]string{e.binary}, args...)...)
	e.logger.WithCtxValues(ctx).Debugf("Wrapped command: %s", wrapped)

	return wrapped, nil
}

func (e *Enforcer) args(policy model.SandboxPolicy) ([]string, error) {
	args := []string{
		"--die-with-parent",
		"--new-session",
		"--ro-bind", "/", "/",
	}

	// Nested inside a container we can't create a new pid namespace nor mount a fresh
	// /proc, reuse the host ones.
	if policy.EnableWeakerNestedSandbox {
		args = append(args, "--dev-bind", "/dev", "/dev")
	} else {
		args = append(args, "--unshare-pid", "--unshare-ipc", "--dev", "/dev", "--proc", "/proc")
	}

	if len(policy.Network.AllowedDomains) == 0 {
		args = append(args, "--unshare-net")
	} else if !policy.Network.AllowLocalBinding {
		e.logger.Warningf("Local binding can't be denied without denying all network, ignoring")
	}

	for _, p := range policy.Filesystem.AllowWrite {
		p = e.expand(p)
		kind, err := e.pathKind(p)
		if err != nil {
			return nil, fmt.Errorf("could not check allow write path %q: %w", p, err)
		}
		if kind == PathMissing {
			continue
		}
		args = append(args, "--bind", p, p)
	}

	for _, p := range policy.Filesystem.DenyWrite {
		p = e.expand(p)
		kind, err := e.pathKind(p)
		if err != nil {
			return nil, fmt.Errorf("could not check deny write path %q: %w", p, err)
		}
		if kind == PathMissing {
			continue
		}
		args = append(args, "--ro-bind", p, p)
	}

	for _, p := range policy.Filesystem.DenyRead {
		p = e.expand(p)
		kind, err := e.pathKind(p)
		if err != nil {
			return nil, fmt.Errorf("could not check deny read path %q: %w", p, err)
		}
		switch kind {
		case PathDir:
			args = append(args, "--tmpfs", p)
		case PathFile:
			args = append(args, "--ro-bind", "/dev/null", p)
		}
	}

	return args, nil
}

func (e *Enforcer) expand(p string) string {
	if p == "~" {
		return e.homeDir
	}
	if strings.HasPrefix(p, "~/") {
		return filepath.Join(e.homeDir, p[2:])
	}
	return p
}

func statPathKind(path string) (PathKind, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return PathMissing, nil
		}
		// Unreadable paths are treated as files so they are still masked.
		if errors.Is(err, fs.ErrPermission) {
			return PathFile, nil
		}
		return PathMissing, err
	}
	if info.IsDir() {
		return PathDir, nil
	}
	return PathFile, nil
}

// Check satisfies enforcer.Checker interface.
func (e *Enforcer) Check(ctx context.Context) []model.CheckResult {
	return []model.CheckResult{
		enforcer.CheckBinary(ctx, "bwrap_binary", e.binary, "--version"),
	}
}
