package exec

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/slok/sessionbox/internal/executor"
	"github.com/slok/sessionbox/internal/inflight"
	"github.com/slok/sessionbox/internal/log"
	"github.com/slok/sessionbox/internal/model"
	"github.com/slok/sessionbox/internal/storage"
)

// ServiceConfig is the configuration for the exec service.
type ServiceConfig struct {
	Executor   executor.Executor
	Repository storage.Repository
	Tracker    *inflight.Tracker
	Logger     log.Logger
}

func (c *ServiceConfig) defaults() error {
	if c.Executor == nil {
		return fmt.Errorf("executor is required")
	}
	if c.Repository == nil {
		return fmt.Errorf("repository is required")
	}
	if c.Tracker == nil {
		return fmt.Errorf("tracker is required")
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "app.Exec"})
	return nil
}

// Service handles command execution in sessions.
type Service struct {
	executor executor.Executor
	repo     storage.Repository
	tracker  *inflight.Tracker
	logger   log.Logger
}

// NewService creates a new exec service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Service{
		executor: cfg.Executor,
		repo:     cfg.Repository,
		tracker:  cfg.Tracker,
		logger:   cfg.Logger,
	}, nil
}

// Request contains the parameters for executing a command.
type Request struct {
	SessionID string
	Command   string
	Args      []string
	// WorkingDir is optional, defaults to the session directory.
	WorkingDir string
	Stdout     io.Writer
	Stderr     io.Writer
}

// Run executes a command in a session.
//
// Concurrent commands on the same session are not serialized, they share the
// session directory.
func (s *Service) Run(ctx context.Context, req Request) (*model.CommandResult, error) {
	// 1. Validate command
	if strings.TrimSpace(req.Command) == "" {
		return nil, fmt.Errorf("command cannot be empty: %w", model.ErrNotValid)
	}

	// 2. Get session.
	session, err := s.repo.GetSession(ctx, req.SessionID)
	if err != nil {
		return nil, fmt.Errorf("could not find session: %w", err)
	}

	// 3. Register the command so a teardown can cancel it and wait for it. This fails
	// if the session is being torn down.
	ctx, release, err := s.tracker.Acquire(ctx, session.ID)
	if err != nil {
		return nil, fmt.Errorf("could not find session %s: %w", session.ID, model.ErrNotFound)
	}
	defer release()

	// 4. Execute.
	result, err := s.executor.Execute(ctx, *session, executor.Command{
		Line:   req.Command,
		Args:   req.Args,
		Cwd:    req.WorkingDir,
		Stdout: req.Stdout,
		Stderr: req.Stderr,
	})
	if err != nil {
		return nil, fmt.Errorf("could not execute command: %w", err)
	}

	s.logger.Debugf("executed command in session %s: exit code %d", session.ID, result.ExitCode)

	return result, nil
}
