// Package passthrough has an enforcer that doesn't confine commands. It's meant for
// hosts where the confinement is done by an outer layer (e.g. a locked down container)
// and for tests.
package passthrough

import (
	"context"

	"github.com/slok/sessionbox/internal/enforcer"
	"github.com/slok/sessionbox/internal/model"
)

type passthrough struct{}

// Enforcer returns the commands as they are.
var Enforcer enforcer.Enforcer = passthrough{}

func (passthrough) Wrap(_ context.Context, command string, _ model.SandboxPolicy) (string, error) {
	return command, nil
}

// Check warns that commands run unconfined.
func (passthrough) Check(context.Context) []model.CheckResult {
	return []model.CheckResult{{
		ID:      "enforcer",
		Message: "passthrough enforcer: commands are not confined by the session policy",
		Status:  model.CheckStatusWarning,
	}}
}
