// Package doctor runs the host preflight checks.
package doctor

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/slok/sessionbox/internal/enforcer"
	"github.com/slok/sessionbox/internal/model"
)

// Config is the configuration of the checks.
type Config struct {
	// SessionsDir must be writable.
	SessionsDir string
	// Shell runs the commands.
	Shell string
	// Enforcer is checked when it implements enforcer.Checker.
	Enforcer enforcer.Enforcer
	// PipBinary and NpmBinary are optional, missing ones are reported as warnings.
	PipBinary string
	NpmBinary string
}

// Check runs all the preflight checks.
func Check(ctx context.Context, cfg Config) []model.CheckResult {
	results := []model.CheckResult{
		checkShell(cfg.Shell),
		checkSessionsDir(cfg.SessionsDir),
	}

	if c, ok := cfg.Enforcer.(enforcer.Checker); ok {
		results = append(results, c.Check(ctx)...)
	}

	if cfg.PipBinary != "" {
		results = append(results, checkOptionalBinary("pip_binary", cfg.PipBinary))
	}
	if cfg.NpmBinary != "" {
		results = append(results, checkOptionalBinary("npm_binary", cfg.NpmBinary))
	}

	return results
}

func checkShell(shell string) model.CheckResult {
	info, err := os.Stat(shell)
	if err != nil {
		return model.CheckResult{ID: "shell", Message: fmt.Sprintf("Shell %s is not available: %v", shell, err), Status: model.CheckStatusError}
	}
	if info.Mode()&0o111 == 0 {
		return model.CheckResult{ID: "shell", Message: fmt.Sprintf("Shell %s is not executable", shell), Status: model.CheckStatusError}
	}

	return model.CheckResult{ID: "shell", Message: fmt.Sprintf("Shell %s is available", shell), Status: model.CheckStatusOK}
}

func checkSessionsDir(dir string) model.CheckResult {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return model.CheckResult{ID: "sessions_dir", Message: fmt.Sprintf("Could not create %s: %v", dir, err), Status: model.CheckStatusError}
	}

	f, err := os.CreateTemp(dir, ".doctor-*")
	if err != nil {
		return model.CheckResult{ID: "sessions_dir", Message: fmt.Sprintf("%s is not writable: %v", dir, err), Status: model.CheckStatusError}
	}
	_ = f.Close()
	_ = os.Remove(f.Name())

	return model.CheckResult{ID: "sessions_dir", Message: fmt.Sprintf("%s is writable", filepath.Clean(dir)), Status: model.CheckStatusOK}
}

func checkOptionalBinary(id, binary string) model.CheckResult {
	path, err := exec.LookPath(binary)
	if err != nil {
		return model.CheckResult{ID: id, Message: fmt.Sprintf("%s not found, installs will fail", binary), Status: model.CheckStatusWarning}
	}

	return model.CheckResult{ID: id, Message: fmt.Sprintf("Found at %s", path), Status: model.CheckStatusOK}
}
