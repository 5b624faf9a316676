package commands

import (
	"context"
	"fmt"

	"github.com/alecthomas/kingpin/v2"
)

type RemoveCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	sessionIDs []string
}

// NewRemoveCommand returns the remove command.
func NewRemoveCommand(rootCmd *RootCommand, app *kingpin.Application) *RemoveCommand {
	c := &RemoveCommand{rootCmd: rootCmd}

	c.Cmd = app.Command("rm", "Destroy sessions.")
	c.Cmd.Arg("session-id", "Session IDs.").Required().StringsVar(&c.sessionIDs)

	return c
}

func (c RemoveCommand) Name() string { return c.Cmd.FullCommand() }

func (c RemoveCommand) Run(ctx context.Context) error {
	client, err := c.rootCmd.newClient(ctx)
	if err != nil {
		return err
	}
	defer client.Close()

	p := c.rootCmd.newPrinter(formatTable)
	for _, id := range c.sessionIDs {
		destroyed, err := client.DestroySession(ctx, id)
		if err != nil {
			return fmt.Errorf("could not destroy session %s: %w", id, err)
		}

		msg := fmt.Sprintf("Destroyed session: %s", id)
		if !destroyed {
			msg = fmt.Sprintf("Session already gone: %s", id)
		}
		if err := p.PrintMessage(msg); err != nil {
			return fmt.Errorf("could not print message: %w", err)
		}
	}

	return nil
}
