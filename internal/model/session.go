package model

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// Session is an isolated execution context with its own private directory,
// sandbox policy and expiry deadline.
type Session struct {
	ID string
	// Directory is the private session directory, exclusive to this session.
	Directory string
	// PackageLibDirectory is the isolated target for language package installs.
	PackageLibDirectory string
	// Policy is computed once on creation and never changes.
	Policy    SandboxPolicy
	Timeout   time.Duration
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Validate validates the session.
func (s *Session) Validate() error {
	if s.ID == "" {
		return fmt.Errorf("id is required: %w", ErrNotValid)
	}

	if !filepath.IsAbs(s.Directory) {
		return fmt.Errorf("directory must be an absolute path: %w", ErrNotValid)
	}

	if !strings.HasPrefix(filepath.Clean(s.PackageLibDirectory), filepath.Clean(s.Directory)+string(filepath.Separator)) {
		return fmt.Errorf("package lib directory must be inside the session directory: %w", ErrNotValid)
	}

	if s.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive: %w", ErrNotValid)
	}

	return nil
}
