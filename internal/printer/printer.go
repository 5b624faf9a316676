package printer

import (
	"github.com/slok/sessionbox/internal/model"
	"github.com/slok/sessionbox/internal/service"
)

// Printer knows how to print session information in different formats.
type Printer interface {
	PrintList(sessions []service.SessionInfo) error
	PrintStatus(session service.SessionInfo) error
	PrintResult(result model.CommandResult) error
	PrintPolicy(policy model.SandboxPolicy) error
	PrintChecks(results []model.CheckResult) error
	PrintMessage(msg string) error
}
