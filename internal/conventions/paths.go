package conventions

import "path/filepath"

const (
	// DefaultWorkspaceDir is the default sessionbox workspace directory name (relative to home).
	DefaultWorkspaceDir = ".sessionbox"
	// SessionsDir is the workspace subdirectory for session directories.
	SessionsDir = "sessions"
	// PackageLibDir is the session subdirectory used as the python package install target.
	PackageLibDir = "lib"
	// TmpDir is the shared temp path every session is allowed to write to.
	TmpDir = "/tmp"
	// Shell is the shell used to run the wrapped commands.
	Shell = "/bin/sh"

	// DefaultListenAddress is the default address the RPC service listens on.
	DefaultListenAddress = "127.0.0.1:8765"
)

// DefaultSessionsDir returns the sessions directory for a workspace.
func DefaultSessionsDir(workspaceDir string) string {
	return filepath.Join(workspaceDir, SessionsDir)
}

// SessionDir returns the private directory for a specific session.
func SessionDir(sessionsDir, sessionID string) string {
	return filepath.Join(sessionsDir, sessionID)
}

// SessionPackageLibDir returns the package install directory for a specific session.
func SessionPackageLibDir(sessionsDir, sessionID string) string {
	return filepath.Join(SessionDir(sessionsDir, sessionID), PackageLibDir)
}
