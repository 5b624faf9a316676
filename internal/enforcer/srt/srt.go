// Package srt has an enforcer that confines commands with the sandbox runtime CLI (srt).
//
// The policy is written as an srt settings file (content addressed, so sessions with
// the same policy share it) and the command is handed to srt.
package srt

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/slok/sessionbox/internal/enforcer"
	"github.com/slok/sessionbox/internal/log"
	"github.com/slok/sessionbox/internal/model"
	"github.com/slok/sessionbox/internal/utils/shell"
)

// EnforcerConfig is the configuration for the srt enforcer.
type EnforcerConfig struct {
	// Binary is the sandbox runtime binary, default "srt".
	Binary string
	// SettingsDir is where the settings files are written.
	SettingsDir string
	Logger      log.Logger
}

func (c *EnforcerConfig) defaults() error {
	if c.Binary == "" {
		c.Binary = "srt"
	}

	if c.SettingsDir == "" {
		return fmt.Errorf("settings dir is required")
	}

	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "enforcer.SRT"})

	return nil
}

// Enforcer wraps commands with srt.
type Enforcer struct {
	binary      string
	settingsDir string
	logger      log.Logger
}

// NewEnforcer returns a new srt enforcer.
func NewEnforcer(cfg EnforcerConfig) (*Enforcer, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Enforcer{
		binary:      cfg.Binary,
		settingsDir: cfg.SettingsDir,
		logger:      cfg.Logger,
	}, nil
}

// Wrap satisfies enforcer.Enforcer interface.
func (e *Enforcer) Wrap(ctx context.Context, command string, policy model.SandboxPolicy) (string, error) {
	path, err := e.ensureSettings(policy)
	if err != nil {
		return "", fmt.Errorf("could not write settings: %w", err)
	}

	return shell.Join(e.binary, "--settings", path, command), nil
}

func (e *Enforcer) ensureSettings(policy model.SandboxPolicy) (string, error) {
	data, err := json.Marshal(normalize(policy))
	if err != nil {
		return "", err
	}

	sum := sha256.Sum256(data)
	path := filepath.Join(e.settingsDir, hex.EncodeToString(sum[:])+".json")

	if _, err := os.Stat(path); err == nil {
		return path, nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return "", err
	}

	if err := os.MkdirAll(e.settingsDir, 0o755); err != nil {
		return "", err
	}

	// Write and rename so concurrent writers never expose a partial file.
	tmp, err := os.CreateTemp(e.settingsDir, ".settings-*")
	if err != nil {
		return "", err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return "", err
	}
	if err := tmp.Close(); err != nil {
		return "", err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", err
	}

	e.logger.Debugf("Settings file written: %s", path)
	return path, nil
}

// normalize makes sure lists are encoded as empty lists instead of null.
func normalize(p model.SandboxPolicy) model.SandboxPolicy {
	p = p.Clone()
	for _, s := range []*[]string{
		&p.Network.AllowedDomains,
		&p.Network.DeniedDomains,
		&p.Filesystem.AllowWrite,
		&p.Filesystem.DenyWrite,
		&p.Filesystem.DenyRead,
	} {
		if *s == nil {
			*s = []string{}
		}
	}
	return p
}

// Check satisfies enforcer.Checker interface.
func (e *Enforcer) Check(ctx context.Context) []model.CheckResult {
	results := []model.CheckResult{enforcer.CheckBinary(ctx, "srt_binary", e.binary)}

	if err := os.MkdirAll(e.settingsDir, 0o700); err != nil {
		results = append(results, model.CheckResult{
			ID:      "srt_settings_dir",
			Message: fmt.Sprintf("Settings dir %s is not usable: %v", e.settingsDir, err),
			Status:  model.CheckStatusError,
		})
	} else {
		results = append(results, model.CheckResult{
			ID:      "srt_settings_dir",
			Message: fmt.Sprintf("Settings dir %s is usable", e.settingsDir),
			Status:  model.CheckStatusOK,
		})
	}

	return results
}
