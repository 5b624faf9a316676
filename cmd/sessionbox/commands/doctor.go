package commands

import (
	"context"
	"fmt"

	"github.com/alecthomas/kingpin/v2"

	"github.com/slok/sessionbox/internal/conventions"
	"github.com/slok/sessionbox/internal/doctor"
	"github.com/slok/sessionbox/internal/model"
)

type DoctorCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	opts   sandboxOptions
	format string
}

// NewDoctorCommand returns the doctor command.
func NewDoctorCommand(rootCmd *RootCommand, app *kingpin.Application) *DoctorCommand {
	c := &DoctorCommand{rootCmd: rootCmd}

	c.Cmd = app.Command("doctor", "Run the host preflight checks for serving sessions.")
	registerSandboxOptions(c.Cmd, &c.opts)
	formatFlag(c.Cmd, &c.format)

	return c
}

func (c DoctorCommand) Name() string { return c.Cmd.FullCommand() }

func (c DoctorCommand) Run(ctx context.Context) error {
	enf, err := c.opts.newEnforcer(c.rootCmd.WorkspaceDir, c.rootCmd.Logger)
	if err != nil {
		return err
	}

	results := doctor.Check(ctx, doctor.Config{
		SessionsDir: c.opts.sessionsDir(c.rootCmd.WorkspaceDir),
		Shell:       conventions.Shell,
		Enforcer:    enf,
		PipBinary:   c.opts.PipBinary,
		NpmBinary:   c.opts.NpmBinary,
	})

	if err := c.rootCmd.newPrinter(c.format).PrintChecks(results); err != nil {
		return fmt.Errorf("could not print checks: %w", err)
	}

	if model.SummarizeChecks(results).Failed() {
		return fmt.Errorf("preflight checks failed")
	}

	return nil
}
