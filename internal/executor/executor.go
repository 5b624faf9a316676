package executor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/slok/sessionbox/internal/conventions"
	"github.com/slok/sessionbox/internal/enforcer"
	"github.com/slok/sessionbox/internal/log"
	"github.com/slok/sessionbox/internal/model"
	"github.com/slok/sessionbox/internal/utils/shell"
)

// Command is a command to execute in a session.
type Command struct {
	// Line is the shell command line, run as is by the shell.
	Line string
	// Args are appended to the line quoted, so they are taken literally.
	Args []string
	// Cwd is the working directory, relative paths are relative to the session directory.
	// Defaults to the session directory.
	Cwd string
	// Stdout and Stderr optionally receive the output as it arrives, on top of
	// being accumulated in the result.
	Stdout io.Writer
	Stderr io.Writer
}

// Executor knows how to execute commands in sessions.
type Executor interface {
	Execute(ctx context.Context, session model.Session, cmd Command) (*model.CommandResult, error)
}

//go:generate mockery --case underscore --output executormock --outpkg executormock --name Executor

// ProcessExecutorConfig is the configuration for the process executor.
type ProcessExecutorConfig struct {
	Enforcer enforcer.Enforcer
	// Shell runs the wrapped commands, defaults to /bin/sh.
	Shell string
	// Environ returns the ambient environment inherited by the commands, defaults to os.Environ.
	Environ func() []string
	// WaitDelay is how long to wait for the output streams after the process is
	// killed by a cancellation.
	WaitDelay time.Duration
	Logger    log.Logger
}

func (c *ProcessExecutorConfig) defaults() error {
	if c.Enforcer == nil {
		return fmt.Errorf("enforcer is required")
	}

	if c.Shell == "" {
		c.Shell = conventions.Shell
	}

	if c.Environ == nil {
		c.Environ = os.Environ
	}

	if c.WaitDelay <= 0 {
		c.WaitDelay = 5 * time.Second
	}

	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "executor.Process"})

	return nil
}

// ProcessExecutor executes commands as child processes confined by the enforcer.
type ProcessExecutor struct {
	enforcer  enforcer.Enforcer
	shell     string
	environ   func() []string
	waitDelay time.Duration
	logger    log.Logger
}

// NewProcessExecutor returns a new process executor.
func NewProcessExecutor(cfg ProcessExecutorConfig) (*ProcessExecutor, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &ProcessExecutor{
		enforcer:  cfg.Enforcer,
		shell:     cfg.Shell,
		environ:   cfg.Environ,
		waitDelay: cfg.WaitDelay,
		logger:    cfg.Logger,
	}, nil
}

// Execute runs the command and returns its result. A command that runs and exits with
// a non zero code is a regular result, only a command that can't be started returns
// an error, a *model.LaunchError.
func (e *ProcessExecutor) Execute(ctx context.Context, session model.Session, c Command) (*model.CommandResult, error) {
	logger := e.logger.WithCtxValues(ctx).WithValues(log.Kv{"session-id": session.ID})

	if strings.TrimSpace(c.Line) == "" {
		return nil, fmt.Errorf("command is required: %w", model.ErrNotValid)
	}

	cwd := resolveCwd(session.Directory, c.Cwd)
	env := BuildEnv(e.environ(), session)

	// Only simple lines are resolved up front, the rest is up to the shell.
	if name, ok := externalCommand(c.Line); ok {
		if _, err := lookPath(name, cwd, env); err != nil {
			return nil, &model.LaunchError{Cause: err}
		}
	}

	line := c.Line
	if len(c.Args) > 0 {
		line += " " + shell.Join(c.Args...)
	}
	wrapped, err := e.enforcer.Wrap(ctx, line, session.Policy)
	if err != nil {
		return nil, &model.LaunchError{Cause: fmt.Errorf("could not apply sandbox policy: %w", err)}
	}

	var stdout, stderr lockedBuffer
	cmd := exec.CommandContext(ctx, e.shell, "-c", wrapped)
	cmd.Dir = cwd
	cmd.Env = env
	cmd.Stdout = teeWriter(&stdout, c.Stdout)
	cmd.Stderr = teeWriter(&stderr, c.Stderr)
	cmd.WaitDelay = e.waitDelay
	setProcessGroup(cmd)

	logger.Debugf("Executing command: %s", line)
	start := time.Now()

	if err := cmd.Start(); err != nil {
		return nil, &model.LaunchError{Stdout: stdout.Text(), Stderr: stderr.Text(), Cause: err}
	}

	err = cmd.Wait()
	exitCode := 0
	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return nil, &model.LaunchError{Stdout: stdout.Text(), Stderr: stderr.Text(), Cause: err}
		}
		exitCode = exitStatus(exitErr)
	}

	logger.Debugf("Command finished in %s with exit code %d", time.Since(start), exitCode)

	return model.NewCommandResult(stdout.Text(), stderr.Text(), exitCode), nil
}

// BuildEnv returns the environment for the commands of a session: the ambient environment
// with HOME set to the session directory and the session package lib directory as the
// first PYTHONPATH entry.
func BuildEnv(base []string, session model.Session) []string {
	env := make([]string, 0, len(base)+2)
	pythonPath := ""
	for _, kv := range base {
		k, v, _ := strings.Cut(kv, "=")
		switch k {
		case "HOME":
			continue
		case "PYTHONPATH":
			pythonPath = v
			continue
		}
		env = append(env, kv)
	}

	if pythonPath != "" {
		pythonPath = session.PackageLibDirectory + string(os.PathListSeparator) + pythonPath
	} else {
		pythonPath = session.PackageLibDirectory
	}

	return append(env,
		"HOME="+session.Directory,
		"PYTHONPATH="+pythonPath,
	)
}

func exitStatus(err *exec.ExitError) int {
	if ws, ok := err.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		return 128 + int(ws.Signal())
	}
	return err.ExitCode()
}

func teeWriter(buf *lockedBuffer, w io.Writer) io.Writer {
	if w == nil {
		return buf
	}
	return io.MultiWriter(buf, w)
}

// lockedBuffer is a buffer safe to read while the process is writing on it.
type lockedBuffer struct {
	buf bytes.Buffer
	mu  sync.Mutex
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

// Text returns the accumulated output decoded as UTF-8 text.
func (b *lockedBuffer) Text() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return strings.ToValidUTF8(b.buf.String(), "�")
}
