package commands

import (
	"context"
	"fmt"

	"github.com/alecthomas/kingpin/v2"

	"github.com/slok/sessionbox/pkg/lib"
)

type RunCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	sessionID string
	command   string
	args      []string
	cwd       string
	format    string
}

// NewRunCommand returns the run command.
func NewRunCommand(rootCmd *RootCommand, app *kingpin.Application) *RunCommand {
	c := &RunCommand{rootCmd: rootCmd}

	c.Cmd = app.Command("run", "Run a command in a session.")
	c.Cmd.Arg("session-id", "Session ID.").Required().StringVar(&c.sessionID)
	c.Cmd.Arg("command", "Shell command line to run.").Required().StringVar(&c.command)
	c.Cmd.Arg("args", "Command arguments, passed literally (use -- before flags).").StringsVar(&c.args)
	c.Cmd.Flag("cwd", "Working directory, relative paths are resolved from the session directory.").StringVar(&c.cwd)
	formatFlag(c.Cmd, &c.format)

	return c
}

func (c RunCommand) Name() string { return c.Cmd.FullCommand() }

func (c RunCommand) Run(ctx context.Context) error {
	client, err := c.rootCmd.newClient(ctx)
	if err != nil {
		return err
	}
	defer client.Close()

	result, err := client.RunCommand(ctx, c.sessionID, c.command, c.args, &lib.RunCommandOpts{WorkingDir: c.cwd})
	if err != nil {
		return fmt.Errorf("could not run command: %w", err)
	}

	return printCommandResult(c.rootCmd.newPrinter(c.format), result)
}
