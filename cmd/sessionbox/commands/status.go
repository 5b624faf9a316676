package commands

import (
	"context"
	"fmt"

	"github.com/alecthomas/kingpin/v2"
)

type StatusCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	sessionID string
	format    string
}

// NewStatusCommand returns the status command.
func NewStatusCommand(rootCmd *RootCommand, app *kingpin.Application) *StatusCommand {
	c := &StatusCommand{rootCmd: rootCmd}

	c.Cmd = app.Command("status", "Show the details of a session.")
	c.Cmd.Arg("session-id", "Session ID.").Required().StringVar(&c.sessionID)
	formatFlag(c.Cmd, &c.format)

	return c
}

func (c StatusCommand) Name() string { return c.Cmd.FullCommand() }

func (c StatusCommand) Run(ctx context.Context) error {
	client, err := c.rootCmd.newClient(ctx)
	if err != nil {
		return err
	}
	defer client.Close()

	s, err := client.GetSession(ctx, c.sessionID)
	if err != nil {
		return fmt.Errorf("could not get session: %w", err)
	}

	if err := c.rootCmd.newPrinter(c.format).PrintStatus(toSessionInfo(*s)); err != nil {
		return fmt.Errorf("could not print session: %w", err)
	}

	return nil
}
