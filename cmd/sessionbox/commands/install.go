package commands

import (
	"context"
	"fmt"

	"github.com/alecthomas/kingpin/v2"
)

type PipCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	sessionID string
	pkg       string
	format    string
}

// NewPipCommand returns the pip command.
func NewPipCommand(rootCmd *RootCommand, app *kingpin.Application) *PipCommand {
	c := &PipCommand{rootCmd: rootCmd}

	c.Cmd = app.Command("pip", "Install a python package in a session.")
	c.Cmd.Arg("session-id", "Session ID.").Required().StringVar(&c.sessionID)
	c.Cmd.Arg("package", "Package specifier (e.g. requests==2.32.0).").Required().StringVar(&c.pkg)
	formatFlag(c.Cmd, &c.format)

	return c
}

func (c PipCommand) Name() string { return c.Cmd.FullCommand() }

func (c PipCommand) Run(ctx context.Context) error {
	client, err := c.rootCmd.newClient(ctx)
	if err != nil {
		return err
	}
	defer client.Close()

	result, err := client.InstallPip(ctx, c.sessionID, c.pkg)
	if err != nil {
		return fmt.Errorf("could not install python package: %w", err)
	}

	return printCommandResult(c.rootCmd.newPrinter(c.format), result)
}

type NpmCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	sessionID string
	pkg       string
	format    string
}

// NewNpmCommand returns the npm command.
func NewNpmCommand(rootCmd *RootCommand, app *kingpin.Application) *NpmCommand {
	c := &NpmCommand{rootCmd: rootCmd}

	c.Cmd = app.Command("npm", "Install a node package in a session.")
	c.Cmd.Arg("session-id", "Session ID.").Required().StringVar(&c.sessionID)
	c.Cmd.Arg("package", "Package specifier (e.g. lodash@4).").Required().StringVar(&c.pkg)
	formatFlag(c.Cmd, &c.format)

	return c
}

func (c NpmCommand) Name() string { return c.Cmd.FullCommand() }

func (c NpmCommand) Run(ctx context.Context) error {
	client, err := c.rootCmd.newClient(ctx)
	if err != nil {
		return err
	}
	defer client.Close()

	result, err := client.InstallNpm(ctx, c.sessionID, c.pkg)
	if err != nil {
		return fmt.Errorf("could not install node package: %w", err)
	}

	return printCommandResult(c.rootCmd.newPrinter(c.format), result)
}
