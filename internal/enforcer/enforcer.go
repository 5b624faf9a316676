package enforcer

import (
	"context"

	"github.com/slok/sessionbox/internal/model"
)

// Enforcer rewrites a command line into an equivalent one confined by a sandbox policy.
// The returned command must be runnable directly by a POSIX shell.
type Enforcer interface {
	Wrap(ctx context.Context, command string, policy model.SandboxPolicy) (string, error)
}

//go:generate mockery --case underscore --output enforcermock --outpkg enforcermock --name Enforcer

// EnforcerFunc is a helper to create enforcers from functions.
type EnforcerFunc func(ctx context.Context, command string, policy model.SandboxPolicy) (string, error)

// Wrap satisfies Enforcer interface.
func (f EnforcerFunc) Wrap(ctx context.Context, command string, policy model.SandboxPolicy) (string, error) {
	return f(ctx, command, policy)
}

// Checker is implemented by enforcers that can validate the host before
// being used.
type Checker interface {
	Check(ctx context.Context) []model.CheckResult
}
