package service

import (
	"time"

	"github.com/slok/sessionbox/internal/model"
)

// CreateSessionRequest is the request of the create_session operation.
type CreateSessionRequest struct {
	// TimeoutMS is the session lease in milliseconds, 0 uses the server default.
	TimeoutMS int64 `json:"timeoutMs,omitempty"`
}

// CreateSessionResponse is the response of the create_session operation.
type CreateSessionResponse struct {
	SessionID string    `json:"sessionId"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// RunCommandRequest is the request of the run_command operation.
type RunCommandRequest struct {
	SessionID string `json:"sessionId"`
	// Command is a shell command line.
	Command string `json:"command"`
	// Args are appended to the command quoted, they are not interpreted by the shell.
	Args []string `json:"args,omitempty"`
	// Cwd is optional, relative paths are resolved from the session directory.
	Cwd string `json:"cwd,omitempty"`
}

// InstallPipRequest is the request of the install_pip operation.
type InstallPipRequest struct {
	SessionID string `json:"sessionId"`
	Package   string `json:"package"`
}

// InstallNpmRequest is the request of the install_npm operation.
type InstallNpmRequest struct {
	SessionID string `json:"sessionId"`
	Package   string `json:"package"`
}

// CommandResponse is the outcome of run_command, install_pip and install_npm.
type CommandResponse = model.CommandResult

// DestroySessionRequest is the request of the destroy_session operation.
type DestroySessionRequest struct {
	SessionID string `json:"sessionId"`
}

// DestroySessionResponse is the response of the destroy_session operation.
type DestroySessionResponse struct {
	// Destroyed is false when there was nothing to destroy.
	Destroyed bool `json:"destroyed"`
}

// ListSessionsRequest is the request of the list_sessions operation.
type ListSessionsRequest struct {
	// ExpiringWithinMS only returns the sessions whose lease ends in this window.
	ExpiringWithinMS int64 `json:"expiringWithinMs,omitempty"`
}

// ListSessionsResponse is the response of the list_sessions operation.
type ListSessionsResponse struct {
	Sessions []SessionInfo `json:"sessions"`
}

// GetSessionRequest is the request of the get_session operation.
type GetSessionRequest struct {
	SessionID string `json:"sessionId"`
}

// GetSessionResponse is the response of the get_session operation.
type GetSessionResponse struct {
	Session SessionInfo `json:"session"`
}

// SessionInfo is the public view of a session.
type SessionInfo struct {
	ID                  string              `json:"id"`
	Directory           string              `json:"directory"`
	PackageLibDirectory string              `json:"packageLibDirectory"`
	Policy              model.SandboxPolicy `json:"policy"`
	CreatedAt           time.Time           `json:"createdAt"`
	ExpiresAt           time.Time           `json:"expiresAt"`
	// RemainingMS and RunningCommands are only set by get_session.
	RemainingMS     int64 `json:"remainingMs,omitempty"`
	RunningCommands int   `json:"runningCommands,omitempty"`
}

func toSessionInfo(s model.Session) SessionInfo {
	return SessionInfo{
		ID:                  s.ID,
		Directory:           s.Directory,
		PackageLibDirectory: s.PackageLibDirectory,
		Policy:              s.Policy,
		CreatedAt:           s.CreatedAt,
		ExpiresAt:           s.ExpiresAt,
	}
}
