package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/alecthomas/kingpin/v2"

	"github.com/slok/sessionbox/pkg/lib"
)

type CreateCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	timeout time.Duration
	format  string
}

// NewCreateCommand returns the create command.
func NewCreateCommand(rootCmd *RootCommand, app *kingpin.Application) *CreateCommand {
	c := &CreateCommand{rootCmd: rootCmd}

	c.Cmd = app.Command("create", "Create a new session.")
	c.Cmd.Flag("timeout", "Session lifetime (0 uses the server default).").DurationVar(&c.timeout)
	c.Cmd.Flag("format", "Output format (id, table, json).").Default("id").EnumVar(&c.format, "id", formatTable, formatJSON)

	return c
}

func (c CreateCommand) Name() string { return c.Cmd.FullCommand() }

func (c CreateCommand) Run(ctx context.Context) error {
	client, err := c.rootCmd.newClient(ctx)
	if err != nil {
		return err
	}
	defer client.Close()

	s, err := client.CreateSession(ctx, lib.CreateSessionOpts{Timeout: c.timeout})
	if err != nil {
		return fmt.Errorf("could not create session: %w", err)
	}

	// Plain ID so it can be captured by scripts.
	if c.format == "id" {
		return c.rootCmd.newPrinter(formatTable).PrintMessage(s.ID)
	}

	return c.rootCmd.newPrinter(c.format).PrintStatus(toSessionInfo(*s))
}
