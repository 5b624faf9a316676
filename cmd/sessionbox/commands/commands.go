package commands

import (
	"context"
	"fmt"
	"io"
	"path/filepath"

	"github.com/alecthomas/kingpin/v2"
	"k8s.io/client-go/util/homedir"

	"github.com/slok/sessionbox/internal/conventions"
	"github.com/slok/sessionbox/internal/log"
	"github.com/slok/sessionbox/internal/model"
	"github.com/slok/sessionbox/internal/printer"
	"github.com/slok/sessionbox/internal/service"
	"github.com/slok/sessionbox/pkg/lib"
)

const (
	// LoggerTypeDefault is the logger default type.
	LoggerTypeDefault = "default"
	// LoggerTypeJSON is the logger json type.
	LoggerTypeJSON = "json"

	formatTable = "table"
	formatJSON  = "json"
)

// Command represents an application command, all commands that want to be executed
// should implement and setup on main.
type Command interface {
	Name() string
	Run(ctx context.Context) error
}

// ExitCodeError is returned when a remote command ran and exited with a non zero code,
// the process should exit with the same code.
type ExitCodeError struct {
	Code int
}

func (e *ExitCodeError) Error() string {
	return fmt.Sprintf("exited with code %d", e.Code)
}

// RootCommand represents the root command configuration and global configuration
// for all the commands.
type RootCommand struct {
	// Global flags.
	Debug        bool
	NoLog        bool
	NoColor      bool
	LoggerType   string
	WorkspaceDir string
	Address      string

	// Global instances.
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
	Logger log.Logger
}

// NewRootCommand initializes the main root configuration.
func NewRootCommand(app *kingpin.Application) *RootCommand {
	c := &RootCommand{}

	app.Flag("debug", "Enable debug mode.").BoolVar(&c.Debug)
	app.Flag("no-log", "Disable logger.").BoolVar(&c.NoLog)
	app.Flag("no-color", "Disable logger color.").BoolVar(&c.NoColor)
	app.Flag("logger", "Selects the logger type.").Default(LoggerTypeDefault).EnumVar(&c.LoggerType, LoggerTypeDefault, LoggerTypeJSON)

	defaultWorkspaceDir := filepath.Join(homedir.HomeDir(), conventions.DefaultWorkspaceDir)
	app.Flag("workspace-dir", "Directory for the sessionbox data.").Envar("SESSIONBOX_WORKSPACE_DIR").Default(defaultWorkspaceDir).StringVar(&c.WorkspaceDir)
	app.Flag("address", "Address of the sessionbox server used by the client commands.").Envar("SESSIONBOX_ADDRESS").Default(conventions.DefaultListenAddress).StringVar(&c.Address)

	return c
}

// newClient connects to the sessionbox server.
func (c *RootCommand) newClient(ctx context.Context) (*lib.Client, error) {
	client, err := lib.New(ctx, lib.Config{
		Address: c.Address,
		Logger:  c.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("could not connect to server (is `sessionbox serve` running?): %w", err)
	}
	return client, nil
}

func (c *RootCommand) newPrinter(format string) printer.Printer {
	if format == formatJSON {
		return printer.NewJSONPrinter(c.Stdout)
	}
	return printer.NewTablePrinter(c.Stdout, c.Stderr)
}

func formatFlag(cmd *kingpin.CmdClause, v *string) {
	cmd.Flag("format", "Output format (table, json).").Default(formatTable).EnumVar(v, formatTable, formatJSON)
}

func toSessionInfo(s lib.Session) service.SessionInfo {
	return service.SessionInfo{
		ID:                  s.ID,
		Directory:           s.Directory,
		PackageLibDirectory: s.PackageLibDirectory,
		Policy: model.SandboxPolicy{
			Network: model.NetworkPolicy{
				AllowedDomains:    s.Policy.AllowedDomains,
				DeniedDomains:     s.Policy.DeniedDomains,
				AllowLocalBinding: s.Policy.AllowLocalBinding,
			},
			Filesystem: model.FilesystemPolicy{
				AllowWrite: s.Policy.AllowWrite,
				DenyWrite:  s.Policy.DenyWrite,
				DenyRead:   s.Policy.DenyRead,
			},
			EnableWeakerNestedSandbox: s.Policy.EnableWeakerNestedSandbox,
		},
		CreatedAt:       s.CreatedAt,
		ExpiresAt:       s.ExpiresAt,
		RemainingMS:     s.Remaining.Milliseconds(),
		RunningCommands: s.RunningCommands,
	}
}

// printCommandResult prints the result and returns an ExitCodeError when the command failed.
func printCommandResult(p printer.Printer, r *lib.CommandResult) error {
	res := model.CommandResult{
		Stdout:   r.Stdout,
		Stderr:   r.Stderr,
		ExitCode: r.ExitCode,
		Error:    r.Error,
	}
	if err := p.PrintResult(res); err != nil {
		return fmt.Errorf("could not print result: %w", err)
	}

	if !res.Succeeded() {
		return &ExitCodeError{Code: res.ExitCode}
	}

	return nil
}
