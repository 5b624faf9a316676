package lib

import (
	"errors"
	"time"

	"github.com/slok/sessionbox/internal/model"
	"github.com/slok/sessionbox/internal/service"
)

var (
	// ErrNotFound is returned when the session does not exist or has been destroyed.
	ErrNotFound = model.ErrNotFound
	// ErrNotValid is returned when a request is not valid.
	ErrNotValid = model.ErrNotValid
	// ErrLaunchFailed is returned when a command could not be started at all.
	ErrLaunchFailed = model.ErrLaunchFailed
)

// LaunchError is returned when a command could not be started. It carries the
// output captured before the failure.
type LaunchError struct {
	Message string
	Stdout  string
	Stderr  string
}

func (e *LaunchError) Error() string { return e.Message }

// Is matches ErrLaunchFailed.
func (e *LaunchError) Is(target error) bool { return target == ErrLaunchFailed }

// Session is a session returned by the SDK.
//
// This is a read-only snapshot of the session at the time of the API call.
type Session struct {
	// ID is the unique identifier (ULID) assigned at creation.
	ID string
	// Directory is the session working directory on the server.
	Directory string
	// PackageLibDirectory is where python packages are installed.
	PackageLibDirectory string
	// Policy is the sandbox policy applied to the session commands.
	Policy Policy
	// CreatedAt is when the session was created.
	CreatedAt time.Time
	// ExpiresAt is when the session will be destroyed. Using the session doesn't extend it.
	ExpiresAt time.Time
	// Remaining is the time left, only set by GetSession.
	Remaining time.Duration
	// RunningCommands is the number of commands in progress, only set by GetSession.
	RunningCommands int
}

// Policy is the sandbox policy of a session.
type Policy struct {
	AllowedDomains            []string
	DeniedDomains             []string
	AllowLocalBinding         bool
	AllowWrite                []string
	DenyWrite                 []string
	DenyRead                  []string
	EnableWeakerNestedSandbox bool
}

// CommandResult is the outcome of a command that ran to completion.
type CommandResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
	// Error is set when ExitCode is not 0.
	Error string
}

// CreateSessionOpts configures session creation.
type CreateSessionOpts struct {
	// Timeout is the session lifetime, 0 uses the server default.
	Timeout time.Duration
}

// RunCommandOpts configures command execution.
type RunCommandOpts struct {
	// WorkingDir defaults to the session directory, relative paths are resolved from it.
	WorkingDir string
}

// ListSessionsOpts configures session listing.
type ListSessionsOpts struct {
	// ExpiringWithin only returns sessions that end within this duration.
	ExpiringWithin time.Duration
}

func fromSessionInfo(s service.SessionInfo) Session {
	return Session{
		ID:                  s.ID,
		Directory:           s.Directory,
		PackageLibDirectory: s.PackageLibDirectory,
		Policy: Policy{
			AllowedDomains:            s.Policy.Network.AllowedDomains,
			DeniedDomains:             s.Policy.Network.DeniedDomains,
			AllowLocalBinding:         s.Policy.Network.AllowLocalBinding,
			AllowWrite:                s.Policy.Filesystem.AllowWrite,
			DenyWrite:                 s.Policy.Filesystem.DenyWrite,
			DenyRead:                  s.Policy.Filesystem.DenyRead,
			EnableWeakerNestedSandbox: s.Policy.EnableWeakerNestedSandbox,
		},
		CreatedAt:       s.CreatedAt,
		ExpiresAt:       s.ExpiresAt,
		Remaining:       time.Duration(s.RemainingMS) * time.Millisecond,
		RunningCommands: s.RunningCommands,
	}
}

func fromCommandResult(r model.CommandResult) *CommandResult {
	return &CommandResult{
		Stdout:   r.Stdout,
		Stderr:   r.Stderr,
		ExitCode: r.ExitCode,
		Error:    r.Error,
	}
}

// mapError converts launch failures into *LaunchError, the rest keep matching
// the sentinel errors.
func mapError(err error) error {
	if err == nil {
		return nil
	}

	var svcErr *service.Error
	if errors.As(err, &svcErr) && svcErr.Code == service.ErrorCodeLaunchFailed {
		return &LaunchError{Message: svcErr.Message, Stdout: svcErr.Stdout, Stderr: svcErr.Stderr}
	}

	return err
}
