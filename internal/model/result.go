package model

import "fmt"

// CommandResult is the outcome of a command that ran to completion. A non-zero
// exit code is a reportable outcome, not an execution error.
type CommandResult struct {
	Stdout   string `json:"stdout"`
	Stderr   string `json:"stderr"`
	ExitCode int    `json:"exitCode"`
	// Error is only set when ExitCode is not 0.
	Error string `json:"error,omitempty"`
}

// NewCommandResult returns a command result classified by its exit code.
func NewCommandResult(stdout, stderr string, exitCode int) *CommandResult {
	res := &CommandResult{
		Stdout:   stdout,
		Stderr:   stderr,
		ExitCode: exitCode,
	}
	if exitCode != 0 {
		res.Error = fmt.Sprintf("Exited with code %d", exitCode)
	}

	return res
}

// Succeeded returns true when the command exited with code 0.
func (r CommandResult) Succeeded() bool {
	return r.ExitCode == 0
}
