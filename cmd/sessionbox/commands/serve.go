package commands

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"github.com/oklog/run"

	"github.com/slok/sessionbox/internal/conventions"
	"github.com/slok/sessionbox/internal/executor"
	"github.com/slok/sessionbox/internal/service"
	"github.com/slok/sessionbox/internal/transport/websocket"
)

const serveShutdownTimeout = 30 * time.Second

type ServeCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	opts           sandboxOptions
	listenAddress  string
	defaultTimeout time.Duration
	drainTimeout   time.Duration
}

// NewServeCommand returns the serve command.
func NewServeCommand(rootCmd *RootCommand, app *kingpin.Application) *ServeCommand {
	c := &ServeCommand{rootCmd: rootCmd}

	c.Cmd = app.Command("serve", "Serve the session sandbox service.")
	c.Cmd.Flag("listen-address", "Address where the service listens.").Envar("SESSIONBOX_LISTEN_ADDRESS").Default(conventions.DefaultListenAddress).StringVar(&c.listenAddress)
	c.Cmd.Flag("default-timeout", "Session lifetime when the request doesn't set one.").Default("1h").DurationVar(&c.defaultTimeout)
	c.Cmd.Flag("drain-timeout", "Max time teardown waits for the running commands of a session.").Default("30s").DurationVar(&c.drainTimeout)
	registerSandboxOptions(c.Cmd, &c.opts)

	return c
}

func (c ServeCommand) Name() string { return c.Cmd.FullCommand() }

func (c ServeCommand) Run(ctx context.Context) error {
	logger := c.rootCmd.Logger

	enf, err := c.opts.newEnforcer(c.rootCmd.WorkspaceDir, logger)
	if err != nil {
		return err
	}

	policyBuilder, err := c.opts.newPolicyBuilder(ctx)
	if err != nil {
		return err
	}

	exe, err := executor.NewProcessExecutor(executor.ProcessExecutorConfig{
		Enforcer: enf,
		Logger:   logger,
	})
	if err != nil {
		return fmt.Errorf("could not create executor: %w", err)
	}

	sandbox, err := service.NewSandbox(service.SandboxConfig{
		SessionsDir:          c.opts.sessionsDir(c.rootCmd.WorkspaceDir),
		Executor:             exe,
		PolicyBuilder:        policyBuilder,
		RelaxedNestedSandbox: c.opts.NestedSandbox,
		DefaultTimeout:       c.defaultTimeout,
		DrainTimeout:         c.drainTimeout,
		PipBinary:            c.opts.PipBinary,
		NpmBinary:            c.opts.NpmBinary,
		Logger:               logger,
	})
	if err != nil {
		return fmt.Errorf("could not create sandbox service: %w", err)
	}

	wsServer, err := websocket.NewServer(websocket.ServerConfig{
		Operations: service.Operations(sandbox),
		Logger:     logger,
	})
	if err != nil {
		return fmt.Errorf("could not create server: %w", err)
	}

	ln, err := net.Listen("tcp", c.listenAddress)
	if err != nil {
		return fmt.Errorf("could not listen on %s: %w", c.listenAddress, err)
	}

	httpSrv := &http.Server{
		Handler:           wsServer,
		ReadHeaderTimeout: 10 * time.Second,
	}

	var g run.Group

	// HTTP server.
	g.Add(
		func() error {
			logger.Infof("Listening on %s", ln.Addr())
			err := httpSrv.Serve(ln)
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return err
		},
		func(_ error) {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), serveShutdownTimeout)
			defer cancel()
			if err := httpSrv.Shutdown(shutdownCtx); err != nil {
				logger.Errorf("Could not shutdown HTTP server: %s", err)
			}
		},
	)

	// Stop on context cancellation.
	{
		ctx, cancel := context.WithCancel(ctx)
		g.Add(
			func() error {
				<-ctx.Done()
				return nil
			},
			func(_ error) {
				cancel()
			},
		)
	}

	runErr := g.Run()

	// Destroy every live session before exiting.
	closeCtx, cancel := context.WithTimeout(context.Background(), serveShutdownTimeout)
	defer cancel()
	if err := sandbox.Close(closeCtx); err != nil {
		logger.Errorf("Could not close sandbox service: %s", err)
	}
	logger.Infof("Sandbox service stopped")

	return runErr
}
