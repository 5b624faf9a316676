package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/alecthomas/kingpin/v2"

	"github.com/slok/sessionbox/internal/service"
	"github.com/slok/sessionbox/pkg/lib"
)

type ListCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	expiringWithin time.Duration
	format         string
}

// NewListCommand returns the list command.
func NewListCommand(rootCmd *RootCommand, app *kingpin.Application) *ListCommand {
	c := &ListCommand{rootCmd: rootCmd}

	c.Cmd = app.Command("list", "List all sessions.")
	c.Cmd.Flag("expiring-within", "Only list the sessions that expire within this duration.").DurationVar(&c.expiringWithin)
	formatFlag(c.Cmd, &c.format)

	return c
}

func (c ListCommand) Name() string { return c.Cmd.FullCommand() }

func (c ListCommand) Run(ctx context.Context) error {
	if c.expiringWithin < 0 {
		return fmt.Errorf("invalid --expiring-within value: must be positive")
	}

	client, err := c.rootCmd.newClient(ctx)
	if err != nil {
		return err
	}
	defer client.Close()

	sessions, err := client.ListSessions(ctx, &lib.ListSessionsOpts{ExpiringWithin: c.expiringWithin})
	if err != nil {
		return fmt.Errorf("could not list sessions: %w", err)
	}

	infos := make([]service.SessionInfo, 0, len(sessions))
	for _, s := range sessions {
		infos = append(infos, toSessionInfo(s))
	}

	if err := c.rootCmd.newPrinter(c.format).PrintList(infos); err != nil {
		return fmt.Errorf("could not print sessions: %w", err)
	}

	return nil
}
